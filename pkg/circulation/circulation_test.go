package circulation

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"library-circulation/pkg/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.BookCopy{}, &models.Loan{}, &models.Reservation{}))
	return db
}

// fixedClock pins "today" to the given date so due-date math is exact.
func fixedClock(date string) Clock {
	parsed, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return parsed }
}

func addCopy(t *testing.T, db *gorm.DB, isbn string, status models.CopyStatus) *models.BookCopy {
	t.Helper()
	copy := models.BookCopy{
		CopyUid: uuid.New().String(),
		Author:  "Test Author",
		Title:   "Test Book",
		ISBN:    isbn,
		Status:  status,
	}
	require.NoError(t, db.Create(&copy).Error)
	return &copy
}

// assertStatusMatchesLoans checks the central invariant: a copy is Borrowed
// exactly when one open loan references it.
func assertStatusMatchesLoans(t *testing.T, db *gorm.DB) {
	t.Helper()
	var copies []models.BookCopy
	require.NoError(t, db.Find(&copies).Error)
	for _, copy := range copies {
		var open int64
		require.NoError(t, db.Model(&models.Loan{}).
			Where("copy_id = ? AND return_date IS NULL", copy.ID).
			Count(&open).Error)
		if copy.Status == models.StatusBorrowed {
			assert.EqualValues(t, 1, open, "borrowed copy %s must have exactly one open loan", copy.CopyUid)
		} else {
			assert.Zero(t, open, "copy %s with status %s must have no open loan", copy.CopyUid, copy.Status)
		}
	}
}

func TestStatusAgreesWithOpenLoansAcrossTransitions(t *testing.T) {
	db := setupTestDB(t)
	clock := fixedClock("2024-01-01")
	coord := NewCoordinator(db, clock)
	queue := NewReservationQueue(db, clock)

	first := addCopy(t, db, "isbn-flow", models.StatusAvailable)
	addCopy(t, db, "isbn-flow", models.StatusAvailable)
	assertStatusMatchesLoans(t, db)

	loan, err := coord.Borrow("reader-1", first.CopyUid)
	require.NoError(t, err)
	assertStatusMatchesLoans(t, db)

	reservation, err := queue.Create("reader-2", "isbn-flow")
	require.NoError(t, err)
	assertStatusMatchesLoans(t, db)

	_, _, err = coord.FulfillReservation(reservation.ReservationUid)
	require.NoError(t, err)
	assertStatusMatchesLoans(t, db)

	_, err = coord.Return(loan.LoanUid)
	require.NoError(t, err)
	assertStatusMatchesLoans(t, db)
}
