package model

import (
	"fmt"
	"time"

	"github.com/enchantedlib/lending-service/internal/errs"
)

type UserRole string

const (
	RoleLibrarian UserRole = "LIBRARIAN"
	RoleScholar   UserRole = "SCHOLAR"
	RoleGuest     UserRole = "GUEST"
)

func (r UserRole) Valid() bool {
	switch r {
	case RoleLibrarian, RoleScholar, RoleGuest:
		return true
	}
	return false
}

type AcademicLevel string

const (
	LevelGeneral       AcademicLevel = "General"
	LevelGraduate      AcademicLevel = "Graduate"
	LevelProfessor     AcademicLevel = "Professor"
	LevelDistinguished AcademicLevel = "Distinguished"
)

func (l AcademicLevel) Valid() bool {
	switch l {
	case LevelGeneral, LevelGraduate, LevelProfessor, LevelDistinguished:
		return true
	}
	return false
}

type MembershipType string

const (
	MembershipStandard MembershipType = "Standard"
	MembershipPremium  MembershipType = "Premium"
)

func (m MembershipType) Valid() bool {
	return m == MembershipStandard || m == MembershipPremium
}

// Loan is one entry of a user's borrowed books or reading history.
type Loan struct {
	BookID     string     `json:"bookId"`
	BorrowDate time.Time  `json:"borrowDate"`
	DueDate    time.Time  `json:"dueDate"`
	Returned   bool       `json:"returned"`
	ReturnDate *time.Time `json:"returnDate,omitempty"`
}

// LibrarianInfo holds staff-only fields.
type LibrarianInfo struct {
	Department string `json:"department,omitempty"`
	StaffID    string `json:"staffId,omitempty"`
	AdminLevel int    `json:"adminLevel"` // 1..3
}

// ScholarInfo holds academic fields.
type ScholarInfo struct {
	Institution    string        `json:"institution,omitempty"`
	FieldOfStudy   string        `json:"fieldOfStudy,omitempty"`
	AcademicLevel  AcademicLevel `json:"academicLevel"`
	ResearchTopics []string      `json:"researchTopics,omitempty"`
}

// GuestInfo holds public-membership fields.
type GuestInfo struct {
	Address          string         `json:"address,omitempty"`
	Phone            string         `json:"phone,omitempty"`
	MembershipType   MembershipType `json:"membershipType"`
	MembershipExpiry *time.Time     `json:"membershipExpiry,omitempty"`
}

// User is a library patron or staff member. Exactly one of
// Librarian/Scholar/Guest is set, selected by Role.
type User struct {
	ID               string    `json:"id" db:"user_id"`
	Role             UserRole  `json:"role" db:"role"`
	Name             string    `json:"name" db:"name"`
	Email            string    `json:"email" db:"email"`
	Password         string    `json:"-" db:"password"`
	RegistrationDate time.Time `json:"registrationDate" db:"registration_date"`
	LastLogin        *time.Time `json:"lastLogin,omitempty" db:"last_login"`
	Active           bool      `json:"active" db:"active"`

	Librarian *LibrarianInfo `json:"librarian,omitempty"`
	Scholar   *ScholarInfo   `json:"scholar,omitempty"`
	Guest     *GuestInfo     `json:"guest,omitempty"`

	BorrowedBooks  []Loan `json:"-"`
	ReadingHistory []Loan `json:"-"`
}

// MaxBooks caps the number of concurrent active loans for the user.
func (u *User) MaxBooks() int {
	switch u.Role {
	case RoleLibrarian:
		return 10
	case RoleScholar:
		if u.Scholar == nil {
			return 5
		}
		switch u.Scholar.AcademicLevel {
		case LevelGraduate:
			return 8
		case LevelProfessor:
			return 12
		case LevelDistinguished:
			return 15
		default:
			return 5
		}
	case RoleGuest:
		if u.Guest != nil && u.Guest.MembershipType == MembershipPremium {
			return 5
		}
		return 3
	}
	return 0
}

// CanAccessSection applies the role's section visibility rules.
func (u *User) CanAccessSection(sectionName string) bool {
	switch u.Role {
	case RoleLibrarian:
		return true
	case RoleScholar:
		if sectionName == "Rare Books" || sectionName == "Ancient Manuscripts" {
			if u.Scholar == nil {
				return false
			}
			return u.Scholar.AcademicLevel == LevelProfessor ||
				u.Scholar.AcademicLevel == LevelDistinguished
		}
		return true
	case RoleGuest:
		switch sectionName {
		case "Fiction", "Non-Fiction", "Children", "Reference":
			return true
		}
		return false
	}
	return false
}

// MembershipValid reports whether a guest's membership is current at the
// given time. Non-guest roles do not carry memberships and always return true.
func (u *User) MembershipValid(now time.Time) bool {
	if u.Role != RoleGuest {
		return true
	}
	if u.Guest == nil || u.Guest.MembershipExpiry == nil {
		return false
	}
	return !now.After(*u.Guest.MembershipExpiry)
}

// CanModifyCatalog is an admin-level gate for librarians.
func (u *User) CanModifyCatalog() bool {
	return u.Role == RoleLibrarian && u.Librarian != nil && u.Librarian.AdminLevel >= 2
}

// CanManageUsers is an admin-level gate for librarians.
func (u *User) CanManageUsers() bool {
	return u.Role == RoleLibrarian && u.Librarian != nil && u.Librarian.AdminLevel >= 2
}

// CanAccessRestrictedRecords is reserved for the highest admin level.
func (u *User) CanAccessRestrictedRecords() bool {
	return u.Role == RoleLibrarian && u.Librarian != nil && u.Librarian.AdminLevel == 3
}

func (u *User) RecordLogin(at time.Time) {
	u.LastLogin = &at
}

// BorrowBook appends an active loan entry.
func (u *User) BorrowBook(bookID string, borrowDate, dueDate time.Time) {
	u.BorrowedBooks = append(u.BorrowedBooks, Loan{
		BookID:     bookID,
		BorrowDate: borrowDate,
		DueDate:    dueDate,
	})
}

// ReturnBook marks the oldest open loan of bookID returned and moves it to
// the reading history. Returns false if no open loan exists.
func (u *User) ReturnBook(bookID string, at time.Time) bool {
	for i := range u.BorrowedBooks {
		loan := &u.BorrowedBooks[i]
		if loan.BookID == bookID && !loan.Returned {
			loan.Returned = true
			loan.ReturnDate = &at
			u.ReadingHistory = append(u.ReadingHistory, *loan)
			u.BorrowedBooks = append(u.BorrowedBooks[:i], u.BorrowedBooks[i+1:]...)
			return true
		}
	}
	return false
}

// ActiveLoans counts loans that have not been returned.
func (u *User) ActiveLoans() int {
	n := 0
	for _, loan := range u.BorrowedBooks {
		if !loan.Returned {
			n++
		}
	}
	return n
}

func (u *User) HasOverdueBooks(now time.Time) bool {
	for _, loan := range u.BorrowedBooks {
		if !loan.Returned && loan.DueDate.Before(now) {
			return true
		}
	}
	return false
}

func (u *User) String() string {
	return fmt.Sprintf("%s (%s)", u.Name, u.Email)
}

// SetAdminLevel validates and sets a librarian's admin level.
func (u *User) SetAdminLevel(level int) error {
	if u.Role != RoleLibrarian || u.Librarian == nil {
		return errs.ErrValidation
	}
	if level < 1 || level > 3 {
		return errs.ErrValidation
	}
	u.Librarian.AdminLevel = level
	return nil
}
