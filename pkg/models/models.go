package models

import (
	"time"
)

// Role of a borrower. Only the HTTP layer reads it; the circulation core
// treats borrowers as opaque identities.
type Role string

const (
	RoleReader    Role = "Reader"
	RoleLibrarian Role = "Librarian"
)

func (r Role) Valid() bool {
	return r == RoleReader || r == RoleLibrarian
}

// CopyStatus of a physical book copy. Only the circulation coordinator may
// change it. StatusReserved is declared for completeness but no transition
// assigns it: reservations never lock a specific copy.
type CopyStatus string

const (
	StatusAvailable CopyStatus = "Available"
	StatusBorrowed  CopyStatus = "Borrowed"
	StatusReserved  CopyStatus = "Reserved"
)

// ReservationStatus lifecycle: Pending is the only non-terminal state.
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "Pending"
	ReservationFulfilled ReservationStatus = "Fulfilled"
	ReservationCanceled  ReservationStatus = "Canceled"
)

type Borrower struct {
	ID          uint   `gorm:"primaryKey"`
	BorrowerUid string `gorm:"type:uuid;uniqueIndex;not null"`
	Name        string `gorm:"size:100;not null"`
	Email       string `gorm:"size:120;uniqueIndex;not null"`
	Role        Role   `gorm:"size:10;not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type LibraryCard struct {
	ID          uint   `gorm:"primaryKey"`
	CardUid     string `gorm:"type:uuid;uniqueIndex;not null"`
	BorrowerUid string `gorm:"type:uuid;not null;index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type BookCopy struct {
	ID        uint       `gorm:"primaryKey"`
	CopyUid   string     `gorm:"type:uuid;uniqueIndex;not null"`
	Author    string     `gorm:"size:100"`
	Title     string     `gorm:"size:255;not null"`
	ISBN      string     `gorm:"size:50;not null;index"`
	Category  string     `gorm:"size:50"`
	ShelfLoc  string     `gorm:"size:50"`
	Status    CopyStatus `gorm:"size:10;not null;default:'Available'"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Loan is never deleted; the ledger is the audit history of circulation.
// A loan is open while ReturnDate is null. Delay is meaningful only once
// ReturnDate is set and then equals "returned after due date".
type Loan struct {
	ID          uint   `gorm:"primaryKey"`
	LoanUid     string `gorm:"type:uuid;uniqueIndex;not null"`
	BorrowerUid string `gorm:"size:80;not null;index"`
	CopyID      uint   `gorm:"not null;index"`
	BorrowDate  time.Time
	DueDate     time.Time
	ReturnDate  *time.Time
	Delay       bool `gorm:"not null;default:false"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Copy BookCopy `gorm:"foreignKey:CopyID"`
}

// Reservation targets an ISBN, not a copy; fulfillment picks whichever copy
// of that title is available at the time.
type Reservation struct {
	ID             uint   `gorm:"primaryKey"`
	ReservationUid string `gorm:"type:uuid;uniqueIndex;not null"`
	BorrowerUid    string `gorm:"size:80;not null;index"`
	ISBN           string `gorm:"size:50;not null;index"`
	ReserveDate    time.Time
	Status         ReservationStatus `gorm:"size:10;not null"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Review struct {
	ID          uint   `gorm:"primaryKey"`
	ReviewUid   string `gorm:"type:uuid;uniqueIndex;not null"`
	BorrowerUid string `gorm:"size:80;not null;index"`
	ISBN        string `gorm:"size:50;not null;index"`
	Rating      int    `gorm:"not null;check:rating >= 1 AND rating <= 5"`
	Comment     string `gorm:"type:text"`
	ReviewDate  time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
