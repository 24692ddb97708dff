package model

import (
	"fmt"
	"time"

	"github.com/enchantedlib/lending-service/internal/errs"
)

type Condition string

const (
	ConditionExcellent Condition = "EXCELLENT"
	ConditionGood      Condition = "GOOD"
	ConditionFair      Condition = "FAIR"
	ConditionPoor      Condition = "POOR"
	ConditionCritical  Condition = "CRITICAL"
)

// conditionRank orders conditions from best (0) to worst (4).
var conditionRank = map[Condition]int{
	ConditionExcellent: 0,
	ConditionGood:      1,
	ConditionFair:      2,
	ConditionPoor:      3,
	ConditionCritical:  4,
}

var conditionByRank = []Condition{
	ConditionExcellent,
	ConditionGood,
	ConditionFair,
	ConditionPoor,
	ConditionCritical,
}

func (c Condition) Valid() bool {
	_, ok := conditionRank[c]
	return ok
}

// Rank returns the ordinal of the condition, 0 = Excellent .. 4 = Critical.
func (c Condition) Rank() int {
	return conditionRank[c]
}

// WorseThan reports whether c is a more degraded condition than other.
func (c Condition) WorseThan(other Condition) bool {
	return c.Rank() > other.Rank()
}

// Degraded returns the condition one step worse. Critical stays Critical.
func (c Condition) Degraded() Condition {
	r := c.Rank()
	if r >= len(conditionByRank)-1 {
		return ConditionCritical
	}
	return conditionByRank[r+1]
}

func ParseCondition(s string) (Condition, error) {
	c := Condition(s)
	if !c.Valid() {
		return "", errs.ErrValidation
	}
	return c, nil
}

type BookStatus string

const (
	StatusAvailable   BookStatus = "AVAILABLE"
	StatusBorrowed    BookStatus = "BORROWED"
	StatusReserved    BookStatus = "RESERVED"
	StatusRestoration BookStatus = "RESTORATION"
	StatusLost        BookStatus = "LOST"
)

func (s BookStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusBorrowed, StatusReserved, StatusRestoration, StatusLost:
		return true
	}
	return false
}

// BookKind is the closed set of book variants.
type BookKind string

const (
	KindGeneral BookKind = "general"
	KindRare    BookKind = "rare"
	KindAncient BookKind = "ancient"
)

func (k BookKind) Valid() bool {
	switch k {
	case KindGeneral, KindRare, KindAncient:
		return true
	}
	return false
}

// Borrowing is one entry of a book's borrowing history.
type Borrowing struct {
	UserID     string     `json:"userId"`
	BorrowDate time.Time  `json:"borrowDate"`
	DueDate    time.Time  `json:"dueDate"`
	ReturnDate *time.Time `json:"returnDate,omitempty"`
}

// GeneralInfo holds fields specific to general-collection books.
type GeneralInfo struct {
	Genre      string `json:"genre,omitempty"`
	Bestseller bool   `json:"bestseller,omitempty"`
}

// RareInfo holds fields specific to rare books.
type RareInfo struct {
	EstimatedValue float64 `json:"estimatedValue,omitempty"`
	RarityLevel    int     `json:"rarityLevel"`
	HandlingNotes  string  `json:"handlingNotes,omitempty"`
}

// RequiresGloves reports whether handling requires gloves.
func (r RareInfo) RequiresGloves() bool { return r.RarityLevel > 5 }

// AncientInfo holds fields specific to ancient scripts.
type AncientInfo struct {
	Origin                   string   `json:"origin,omitempty"`
	Language                 string   `json:"language,omitempty"`
	TranslationAvailable     bool     `json:"translationAvailable,omitempty"`
	DigitalCopyAvailable     bool     `json:"digitalCopyAvailable,omitempty"`
	PreservationRequirements []string `json:"preservationRequirements,omitempty"`
}

// Book is a catalog entry. Exactly one of General/Rare/Ancient is set,
// selected by Kind.
type Book struct {
	ID              string     `json:"id" db:"book_id"`
	Kind            BookKind   `json:"kind" db:"kind"`
	Title           string     `json:"title" db:"title"`
	Author          string     `json:"author" db:"author"`
	YearPublished   int        `json:"yearPublished" db:"year_published"`
	ISBN            string     `json:"isbn,omitempty" db:"isbn"`
	Condition       Condition  `json:"condition" db:"condition"`
	Status          BookStatus `json:"status" db:"status"`
	Location        string     `json:"location,omitempty" db:"location"`
	Quantity        int        `json:"quantity" db:"quantity"`
	Available       int        `json:"available" db:"available_quantity"`
	AcquisitionDate time.Time  `json:"acquisitionDate" db:"acquisition_date"`

	General *GeneralInfo `json:"general,omitempty"`
	Rare    *RareInfo    `json:"rare,omitempty"`
	Ancient *AncientInfo `json:"ancient,omitempty"`

	BorrowingHistory []Borrowing `json:"-"`
}

// LendingPeriodDays returns the maximum loan length in days.
// Zero means reading-room only.
func (b *Book) LendingPeriodDays() int {
	switch b.Kind {
	case KindGeneral:
		if b.General != nil && b.General.Bestseller {
			return 14
		}
		return 21
	case KindRare:
		return 7
	case KindAncient:
		return 0
	}
	return 0
}

// LateFee returns the uncapped per-book late fee for the given number of
// overdue days. Caps live in the fee calculator.
func (b *Book) LateFee(daysOverdue int) float64 {
	if daysOverdue <= 0 {
		return 0
	}
	switch b.Kind {
	case KindGeneral:
		return float64(daysOverdue) * 0.25
	case KindRare:
		return float64(daysOverdue) * 1.00
	case KindAncient:
		return 0
	}
	return 0
}

// NeedsRestoration applies the variant-specific condition threshold:
// general books at Poor, rare at Fair, ancient scripts at anything short
// of Excellent.
func (b *Book) NeedsRestoration() bool {
	switch b.Kind {
	case KindGeneral:
		return b.Condition.Rank() >= ConditionPoor.Rank()
	case KindRare:
		return b.Condition.Rank() >= ConditionFair.Rank()
	case KindAncient:
		return b.Condition.Rank() >= ConditionGood.Rank()
	}
	return false
}

// DecreaseAvailable takes one copy out of circulation for a loan.
func (b *Book) DecreaseAvailable() error {
	if b.Available <= 0 {
		return errs.ErrBookUnavailable
	}
	b.Available--
	if b.Available == 0 {
		b.Status = StatusBorrowed
	}
	return nil
}

// IncreaseAvailable puts one copy back into circulation.
func (b *Book) IncreaseAvailable() error {
	if b.Available >= b.Quantity {
		return errs.ErrQuantityExceeded
	}
	b.Available++
	if b.Available > 0 && b.Status == StatusBorrowed {
		b.Status = StatusAvailable
	}
	return nil
}

func (b *Book) RecordBorrowing(userID string, borrowDate, dueDate time.Time) {
	b.BorrowingHistory = append(b.BorrowingHistory, Borrowing{
		UserID:     userID,
		BorrowDate: borrowDate,
		DueDate:    dueDate,
	})
}

func (b *Book) RecordReturn(returnDate time.Time) {
	for i := len(b.BorrowingHistory) - 1; i >= 0; i-- {
		if b.BorrowingHistory[i].ReturnDate == nil {
			b.BorrowingHistory[i].ReturnDate = &returnDate
			return
		}
	}
}

func (b *Book) String() string {
	return fmt.Sprintf("%s by %s (%d)", b.Title, b.Author, b.YearPublished)
}
