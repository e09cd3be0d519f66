package circulation

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"library-circulation/pkg/models"
)

// LoanPeriodDays is the fixed loan period applied to every new loan.
const LoanPeriodDays = 14

// LoanLedger creates, tracks and closes loans. Loans are append-only audit
// history; closing one only fills in its return date and delay flag.
type LoanLedger struct {
	db    *gorm.DB
	clock Clock
}

func NewLoanLedger(db *gorm.DB, clock Clock) *LoanLedger {
	return &LoanLedger{db: db, clock: orNow(clock)}
}

// OpenLoan creates an open loan for the given copy due LoanPeriodDays from
// today. The Coordinator checks availability before calling; the duplicate
// open-loan check here is a defensive invariant guard.
func (l *LoanLedger) OpenLoan(borrowerUid string, copy *models.BookCopy) (*models.Loan, error) {
	var open int64
	err := l.db.Model(&models.Loan{}).
		Where("copy_id = ? AND return_date IS NULL", copy.ID).
		Count(&open).Error
	if err != nil {
		return nil, err
	}
	if open > 0 {
		return nil, ErrConflict
	}

	today := l.clock.Today()
	loan := models.Loan{
		LoanUid:     uuid.New().String(),
		BorrowerUid: borrowerUid,
		CopyID:      copy.ID,
		BorrowDate:  today,
		DueDate:     today.AddDate(0, 0, LoanPeriodDays),
	}
	if err := l.db.Create(&loan).Error; err != nil {
		return nil, err
	}
	return &loan, nil
}

// CloseLoan records the return. A second call for the same loan fails with
// ErrAlreadyReturned and leaves the first call's result untouched.
func (l *LoanLedger) CloseLoan(loanUid string) (*models.Loan, error) {
	var loan models.Loan
	if err := forUpdate(l.db).Where("loan_uid = ?", loanUid).First(&loan).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if loan.ReturnDate != nil {
		return nil, ErrAlreadyReturned
	}

	today := l.clock.Today()
	loan.ReturnDate = &today
	loan.Delay = today.After(loan.DueDate)
	err := l.db.Model(&models.Loan{}).Where("id = ?", loan.ID).
		Updates(map[string]interface{}{
			"return_date": loan.ReturnDate,
			"delay":       loan.Delay,
		}).Error
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

func (l *LoanLedger) Get(loanUid string) (*models.Loan, error) {
	var loan models.Loan
	if err := l.db.Preload("Copy").Where("loan_uid = ?", loanUid).First(&loan).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &loan, nil
}

// ListForBorrower returns the borrower's loans, newest first. Same-day loans
// break the tie on id so the order is stable.
func (l *LoanLedger) ListForBorrower(borrowerUid string) ([]models.Loan, error) {
	var loans []models.Loan
	err := l.db.Preload("Copy").Where("borrower_uid = ?", borrowerUid).
		Order("borrow_date DESC, id DESC").
		Find(&loans).Error
	if err != nil {
		return nil, err
	}
	return loans, nil
}

// ListAll returns every loan, newest first. Used by the librarian views.
func (l *LoanLedger) ListAll() ([]models.Loan, error) {
	var loans []models.Loan
	err := l.db.Preload("Copy").Order("borrow_date DESC, id DESC").Find(&loans).Error
	if err != nil {
		return nil, err
	}
	return loans, nil
}

// ListOverdue returns open loans whose due date has passed.
func (l *LoanLedger) ListOverdue() ([]models.Loan, error) {
	var loans []models.Loan
	err := l.db.Preload("Copy").
		Where("return_date IS NULL AND due_date < ?", l.clock.Today()).
		Order("due_date, id").
		Find(&loans).Error
	if err != nil {
		return nil, err
	}
	return loans, nil
}

// ListDueSoon returns open loans due within the next windowDays days,
// today included.
func (l *LoanLedger) ListDueSoon(windowDays int) ([]models.Loan, error) {
	today := l.clock.Today()
	var loans []models.Loan
	err := l.db.Preload("Copy").
		Where("return_date IS NULL AND due_date >= ? AND due_date <= ?",
			today, today.AddDate(0, 0, windowDays)).
		Order("due_date, id").
		Find(&loans).Error
	if err != nil {
		return nil, err
	}
	return loans, nil
}

// OverdueSummary aggregates ListOverdue by borrower for librarian reporting.
// Borrowers with no overdue loan do not appear.
func (l *LoanLedger) OverdueSummary() (map[string]int, error) {
	var rows []struct {
		BorrowerUid string
		Total       int
	}
	err := l.db.Model(&models.Loan{}).
		Select("borrower_uid, COUNT(*) AS total").
		Where("return_date IS NULL AND due_date < ?", l.clock.Today()).
		Group("borrower_uid").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	summary := make(map[string]int, len(rows))
	for _, row := range rows {
		summary[row.BorrowerUid] = row.Total
	}
	return summary, nil
}
