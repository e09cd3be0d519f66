package circulation

import (
	"gorm.io/gorm"

	"library-circulation/pkg/models"
)

// Coordinator owns every cross-entity transition. Each method runs as one
// database transaction: the rows it reads before writing are locked for the
// duration, so a failed precondition rolls back with zero side effects and
// two concurrent calls cannot consume the same copy.
type Coordinator struct {
	db    *gorm.DB
	clock Clock
}

func NewCoordinator(db *gorm.DB, clock Clock) *Coordinator {
	return &Coordinator{db: db, clock: orNow(clock)}
}

// Borrow lends an available copy to the borrower and returns the new loan.
func (co *Coordinator) Borrow(borrowerUid, copyUid string) (*models.Loan, error) {
	var loan *models.Loan
	err := co.db.Transaction(func(tx *gorm.DB) error {
		cat := NewCatalog(tx)
		copy, err := cat.getCopy(forUpdate(tx), copyUid)
		if err != nil {
			return err
		}
		if copy.Status != models.StatusAvailable {
			return ErrNotAvailable
		}
		loan, err = NewLoanLedger(tx, co.clock).OpenLoan(borrowerUid, copy)
		if err != nil {
			return err
		}
		if err := cat.SetStatus(copy.CopyUid, models.StatusBorrowed); err != nil {
			return err
		}
		copy.Status = models.StatusBorrowed
		loan.Copy = *copy
		return nil
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

// Return closes the loan and puts its copy back in circulation. It does not
// fulfill pending reservations; that stays a separate librarian action.
func (co *Coordinator) Return(loanUid string) (*models.Loan, error) {
	var loan *models.Loan
	err := co.db.Transaction(func(tx *gorm.DB) error {
		var err error
		loan, err = NewLoanLedger(tx, co.clock).CloseLoan(loanUid)
		if err != nil {
			return err
		}
		var copy models.BookCopy
		if err := forUpdate(tx).First(&copy, loan.CopyID).Error; err != nil {
			return err
		}
		if err := NewCatalog(tx).SetStatus(copy.CopyUid, models.StatusAvailable); err != nil {
			return err
		}
		copy.Status = models.StatusAvailable
		loan.Copy = copy
		return nil
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

// FulfillReservation converts a pending reservation into a loan against the
// first available copy of its ISBN. Reservation, copy and loan change
// together or not at all.
func (co *Coordinator) FulfillReservation(reservationUid string) (*models.Loan, *models.Reservation, error) {
	var (
		loan        *models.Loan
		reservation *models.Reservation
	)
	err := co.db.Transaction(func(tx *gorm.DB) error {
		var err error
		queue := NewReservationQueue(tx, co.clock)
		reservation, err = queue.transition(reservationUid, models.ReservationFulfilled)
		if err != nil {
			return err
		}
		cat := NewCatalog(tx)
		copy, err := cat.findAvailable(forUpdate(tx), reservation.ISBN)
		if err != nil {
			return err
		}
		if copy == nil {
			return ErrNoCopyAvailable
		}
		if err := cat.SetStatus(copy.CopyUid, models.StatusBorrowed); err != nil {
			return err
		}
		loan, err = NewLoanLedger(tx, co.clock).OpenLoan(reservation.BorrowerUid, copy)
		if err != nil {
			return err
		}
		copy.Status = models.StatusBorrowed
		loan.Copy = *copy
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return loan, reservation, nil
}

// CancelReservation moves a pending reservation to Canceled. No copy or loan
// is touched.
func (co *Coordinator) CancelReservation(reservationUid string) (*models.Reservation, error) {
	var reservation *models.Reservation
	err := co.db.Transaction(func(tx *gorm.DB) error {
		var err error
		reservation, err = NewReservationQueue(tx, co.clock).Cancel(reservationUid)
		return err
	})
	if err != nil {
		return nil, err
	}
	return reservation, nil
}
