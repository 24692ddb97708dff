package model

import (
	"fmt"
	"time"
)

type LendingStatus string

const (
	LendingActive   LendingStatus = "ACTIVE"
	LendingReturned LendingStatus = "RETURNED"
	LendingOverdue  LendingStatus = "OVERDUE"
	LendingLost     LendingStatus = "LOST"
	LendingDamaged  LendingStatus = "DAMAGED"
)

func (s LendingStatus) Valid() bool {
	switch s {
	case LendingActive, LendingReturned, LendingOverdue, LendingLost, LendingDamaged:
		return true
	}
	return false
}

// LendingRecord links one loan of a book to a user. Records are never
// deleted, only status-transitioned.
type LendingRecord struct {
	ID           string        `json:"id" db:"record_id"`
	BookID       string        `json:"bookId" db:"book_id"`
	UserID       string        `json:"userId" db:"user_id"`
	CheckoutDate time.Time     `json:"checkoutDate" db:"checkout_date"`
	DueDate      *time.Time    `json:"dueDate,omitempty" db:"due_date"`
	ReturnDate   *time.Time    `json:"returnDate,omitempty" db:"return_date"`
	Status       LendingStatus `json:"status" db:"status"`
	RenewalCount int           `json:"renewalCount" db:"renewal_count"`
	LateFee      float64       `json:"lateFee" db:"late_fee"`
	Notes        string        `json:"notes,omitempty" db:"notes"`
}

func NewLendingRecord(recordID, bookID, userID string, checkoutDate time.Time) *LendingRecord {
	return &LendingRecord{
		ID:           recordID,
		BookID:       bookID,
		UserID:       userID,
		CheckoutDate: checkoutDate,
		Status:       LendingActive,
	}
}

// IsOverdue reports whether the loan is past due at the given time.
// Returned records and records without a due date are never overdue.
func (r *LendingRecord) IsOverdue(now time.Time) bool {
	if r.Status == LendingReturned {
		return false
	}
	if r.DueDate == nil {
		return false
	}
	return now.After(*r.DueDate)
}

// IsOpen reports whether the loan has not been closed yet. A record swept
// into Overdue status stays open until the book comes back.
func (r *LendingRecord) IsOpen() bool {
	if r.ReturnDate != nil {
		return false
	}
	return r.Status == LendingActive || r.Status == LendingOverdue
}

// DaysOverdue returns whole days past due, zero when not overdue.
func (r *LendingRecord) DaysOverdue(now time.Time) int {
	if !r.IsOverdue(now) {
		return 0
	}
	return int(now.Sub(*r.DueDate).Hours() / 24)
}

// Renew extends the due date. Returns false without mutating when the
// record is not active or already overdue. Never returns an error.
func (r *LendingRecord) Renew(days int, now time.Time) bool {
	if r.Status != LendingActive || r.DueDate == nil {
		return false
	}
	if r.IsOverdue(now) {
		return false
	}
	d := r.DueDate.AddDate(0, 0, days)
	r.DueDate = &d
	r.RenewalCount++
	return true
}

// Return closes the loan: Damaged if the condition changed, Overdue if the
// return was late, Returned otherwise. The accumulated late fee is returned.
func (r *LendingRecord) Return(at time.Time, conditionChanged bool) float64 {
	r.ReturnDate = &at
	switch {
	case conditionChanged:
		r.Status = LendingDamaged
	case r.IsOverdue(at):
		r.Status = LendingOverdue
	default:
		r.Status = LendingReturned
	}
	return r.LateFee
}

func (r *LendingRecord) MarkLost() {
	r.Status = LendingLost
}

func (r *LendingRecord) String() string {
	if r.ReturnDate != nil {
		return fmt.Sprintf("Lending %s: Book %s to User %s - %s (returned %s)",
			r.ID, r.BookID, r.UserID, r.Status, r.ReturnDate.Format(time.DateOnly))
	}
	due := "N/A"
	if r.DueDate != nil {
		due = r.DueDate.Format(time.DateOnly)
	}
	return fmt.Sprintf("Lending %s: Book %s to User %s - %s (due %s)",
		r.ID, r.BookID, r.UserID, r.Status, due)
}
