package circulation

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"library-circulation/pkg/models"
)

// ReservationQueue creates, cancels and lists reservations. A reservation
// targets an ISBN, never a specific copy, and nothing stops a borrower from
// holding several pending reservations for the same title.
type ReservationQueue struct {
	db    *gorm.DB
	clock Clock
}

func NewReservationQueue(db *gorm.DB, clock Clock) *ReservationQueue {
	return &ReservationQueue{db: db, clock: orNow(clock)}
}

func (q *ReservationQueue) Create(borrowerUid, isbn string) (*models.Reservation, error) {
	reservation := models.Reservation{
		ReservationUid: uuid.New().String(),
		BorrowerUid:    borrowerUid,
		ISBN:           isbn,
		ReserveDate:    q.clock.Today(),
		Status:         models.ReservationPending,
	}
	if err := q.db.Create(&reservation).Error; err != nil {
		return nil, err
	}
	return &reservation, nil
}

// Cancel moves a pending reservation to its Canceled terminal state. Any
// other starting state fails with ErrInvalidState and changes nothing.
func (q *ReservationQueue) Cancel(reservationUid string) (*models.Reservation, error) {
	return q.transition(reservationUid, models.ReservationCanceled)
}

func (q *ReservationQueue) Get(reservationUid string) (*models.Reservation, error) {
	var reservation models.Reservation
	if err := q.db.Where("reservation_uid = ?", reservationUid).First(&reservation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &reservation, nil
}

// ListForBorrower returns the borrower's reservations, newest first.
func (q *ReservationQueue) ListForBorrower(borrowerUid string) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := q.db.Where("borrower_uid = ?", borrowerUid).
		Order("reserve_date DESC, id DESC").
		Find(&reservations).Error
	if err != nil {
		return nil, err
	}
	return reservations, nil
}

// ListAll returns every reservation, newest first. Used by the librarian views.
func (q *ReservationQueue) ListAll() ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := q.db.Order("reserve_date DESC, id DESC").Find(&reservations).Error
	if err != nil {
		return nil, err
	}
	return reservations, nil
}

// transition moves a reservation out of Pending into the given terminal
// state. The row is locked for the duration so two callers cannot both see
// Pending.
func (q *ReservationQueue) transition(reservationUid string, to models.ReservationStatus) (*models.Reservation, error) {
	var reservation models.Reservation
	err := forUpdate(q.db).Where("reservation_uid = ?", reservationUid).First(&reservation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if reservation.Status != models.ReservationPending {
		return nil, ErrInvalidState
	}
	err = q.db.Model(&models.Reservation{}).Where("id = ?", reservation.ID).
		Update("status", to).Error
	if err != nil {
		return nil, err
	}
	reservation.Status = to
	return &reservation, nil
}
