package circulation

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"library-circulation/pkg/models"
)

func day(date string) time.Time {
	parsed, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return parsed
}

func addLoan(t *testing.T, db *gorm.DB, borrowerUid string, copyID uint, borrowDate, dueDate string, returnDate *string) *models.Loan {
	t.Helper()
	loan := models.Loan{
		LoanUid:     uuid.New().String(),
		BorrowerUid: borrowerUid,
		CopyID:      copyID,
		BorrowDate:  day(borrowDate),
		DueDate:     day(dueDate),
	}
	if returnDate != nil {
		returned := day(*returnDate)
		loan.ReturnDate = &returned
		loan.Delay = returned.After(loan.DueDate)
	}
	require.NoError(t, db.Create(&loan).Error)
	return &loan
}

func TestOpenLoanDates(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLoanLedger(db, fixedClock("2024-01-01"))
	copy := addCopy(t, db, "isbn-1", models.StatusAvailable)

	loan, err := ledger.OpenLoan("reader-1", copy)

	require.NoError(t, err)
	assert.Equal(t, day("2024-01-01"), loan.BorrowDate)
	assert.Equal(t, day("2024-01-15"), loan.DueDate)
	assert.Nil(t, loan.ReturnDate)
	assert.False(t, loan.Delay)
}

func TestOpenLoanRejectsDuplicateOpenLoan(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLoanLedger(db, fixedClock("2024-01-01"))
	copy := addCopy(t, db, "isbn-1", models.StatusAvailable)

	_, err := ledger.OpenLoan("reader-1", copy)
	require.NoError(t, err)
	_, err = ledger.OpenLoan("reader-2", copy)

	assert.ErrorIs(t, err, ErrConflict)
}

func TestCloseLoanOnTime(t *testing.T) {
	db := setupTestDB(t)
	copy := addCopy(t, db, "isbn-1", models.StatusAvailable)
	opened, err := NewLoanLedger(db, fixedClock("2024-01-01")).OpenLoan("reader-1", copy)
	require.NoError(t, err)

	// returning on the due date itself is on time
	closed, err := NewLoanLedger(db, fixedClock("2024-01-15")).CloseLoan(opened.LoanUid)

	require.NoError(t, err)
	require.NotNil(t, closed.ReturnDate)
	assert.Equal(t, day("2024-01-15"), *closed.ReturnDate)
	assert.False(t, closed.Delay)
}

func TestCloseLoanLate(t *testing.T) {
	db := setupTestDB(t)
	copy := addCopy(t, db, "isbn-1", models.StatusAvailable)
	opened, err := NewLoanLedger(db, fixedClock("2024-01-01")).OpenLoan("reader-1", copy)
	require.NoError(t, err)

	closed, err := NewLoanLedger(db, fixedClock("2024-01-16")).CloseLoan(opened.LoanUid)

	require.NoError(t, err)
	require.NotNil(t, closed.ReturnDate)
	assert.Equal(t, day("2024-01-16"), *closed.ReturnDate)
	assert.True(t, closed.Delay)
}

func TestCloseLoanTwice(t *testing.T) {
	db := setupTestDB(t)
	copy := addCopy(t, db, "isbn-1", models.StatusAvailable)
	opened, err := NewLoanLedger(db, fixedClock("2024-01-01")).OpenLoan("reader-1", copy)
	require.NoError(t, err)

	first, err := NewLoanLedger(db, fixedClock("2024-01-10")).CloseLoan(opened.LoanUid)
	require.NoError(t, err)
	_, err = NewLoanLedger(db, fixedClock("2024-01-20")).CloseLoan(opened.LoanUid)

	assert.ErrorIs(t, err, ErrAlreadyReturned)

	// the first close's result must be untouched
	stored, err := NewLoanLedger(db, nil).Get(opened.LoanUid)
	require.NoError(t, err)
	require.NotNil(t, stored.ReturnDate)
	assert.Equal(t, *first.ReturnDate, *stored.ReturnDate)
	assert.False(t, stored.Delay)
}

func TestCloseLoanUnknown(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLoanLedger(db, fixedClock("2024-01-01"))

	_, err := ledger.CloseLoan("no-such-loan")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListForBorrowerNewestFirst(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLoanLedger(db, fixedClock("2024-02-01"))
	copy1 := addCopy(t, db, "isbn-1", models.StatusBorrowed)
	copy2 := addCopy(t, db, "isbn-2", models.StatusBorrowed)
	copy3 := addCopy(t, db, "isbn-3", models.StatusBorrowed)
	old := addLoan(t, db, "reader-1", copy1.ID, "2024-01-01", "2024-01-15", nil)
	recent := addLoan(t, db, "reader-1", copy2.ID, "2024-01-20", "2024-02-03", nil)
	addLoan(t, db, "reader-2", copy3.ID, "2024-01-25", "2024-02-08", nil)

	loans, err := ledger.ListForBorrower("reader-1")

	require.NoError(t, err)
	require.Len(t, loans, 2)
	assert.Equal(t, recent.LoanUid, loans[0].LoanUid)
	assert.Equal(t, old.LoanUid, loans[1].LoanUid)
}

func TestListOverdue(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLoanLedger(db, fixedClock("2024-01-10"))
	copy1 := addCopy(t, db, "isbn-1", models.StatusBorrowed)
	copy2 := addCopy(t, db, "isbn-2", models.StatusAvailable)
	copy3 := addCopy(t, db, "isbn-3", models.StatusBorrowed)
	overdue := addLoan(t, db, "reader-1", copy1.ID, "2023-12-18", "2024-01-01", nil)
	returnedLate := "2024-01-05"
	addLoan(t, db, "reader-2", copy2.ID, "2023-12-18", "2024-01-01", &returnedLate)
	addLoan(t, db, "reader-3", copy3.ID, "2024-01-05", "2024-01-19", nil)

	loans, err := ledger.ListOverdue()

	require.NoError(t, err)
	require.Len(t, loans, 1)
	assert.Equal(t, overdue.LoanUid, loans[0].LoanUid)
}

func TestListDueSoon(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLoanLedger(db, fixedClock("2024-01-10"))
	copy1 := addCopy(t, db, "isbn-1", models.StatusBorrowed)
	copy2 := addCopy(t, db, "isbn-2", models.StatusBorrowed)
	copy3 := addCopy(t, db, "isbn-3", models.StatusBorrowed)
	dueToday := addLoan(t, db, "reader-1", copy1.ID, "2023-12-27", "2024-01-10", nil)
	dueInWindow := addLoan(t, db, "reader-2", copy2.ID, "2024-01-03", "2024-01-17", nil)
	addLoan(t, db, "reader-3", copy3.ID, "2024-01-09", "2024-01-23", nil)

	loans, err := ledger.ListDueSoon(7)

	require.NoError(t, err)
	require.Len(t, loans, 2)
	assert.Equal(t, dueToday.LoanUid, loans[0].LoanUid)
	assert.Equal(t, dueInWindow.LoanUid, loans[1].LoanUid)
}

func TestOverdueSummary(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLoanLedger(db, fixedClock("2024-01-10"))
	copy1 := addCopy(t, db, "isbn-1", models.StatusBorrowed)
	copy2 := addCopy(t, db, "isbn-2", models.StatusBorrowed)
	copy3 := addCopy(t, db, "isbn-3", models.StatusBorrowed)
	copy4 := addCopy(t, db, "isbn-4", models.StatusAvailable)
	addLoan(t, db, "reader-1", copy1.ID, "2023-12-10", "2023-12-24", nil)
	addLoan(t, db, "reader-1", copy2.ID, "2023-12-18", "2024-01-01", nil)
	addLoan(t, db, "reader-2", copy3.ID, "2023-12-18", "2024-01-01", nil)
	returned := "2024-01-08"
	addLoan(t, db, "reader-3", copy4.ID, "2023-12-18", "2024-01-01", &returned)

	summary, err := ledger.OverdueSummary()

	require.NoError(t, err)
	assert.Equal(t, map[string]int{"reader-1": 2, "reader-2": 1}, summary)
}
