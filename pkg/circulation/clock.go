package circulation

import "time"

// Clock supplies the current time. Production code passes nil and gets
// time.Now; tests pin a fixed date to make due-date math deterministic.
type Clock func() time.Time

// Today returns the clock's current day at UTC midnight. Circulation dates
// are civil dates: a loan returned any time on its due date is on time.
func (c Clock) Today() time.Time {
	t := c().UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func orNow(c Clock) Clock {
	if c == nil {
		return time.Now
	}
	return c
}
