package strategy

import (
	"time"

	"github.com/enchantedlib/lending-service/internal/model"
)

// Strategy parameterizes due dates, borrow eligibility, renewals and late
// fees for one (book, user) pairing.
type Strategy interface {
	// DueDate computes the due date for a checkout. ok is false when the
	// book cannot be lent under this strategy; callers must check it before
	// creating a lending record.
	DueDate(book *model.Book, user *model.User, checkout time.Time) (due time.Time, ok bool)
	CanBorrow(book *model.Book, user *model.User, now time.Time) bool
	CanRenew(record *model.LendingRecord, book *model.Book, user *model.User, now time.Time) bool
	LateFee(book *model.Book, daysOverdue int) float64
}

// ID names a strategy row in the selection table.
type ID string

const (
	IDAcademic    ID = "academic"
	IDPublic      ID = "public"
	IDReadingRoom ID = "reading_room"
)

// Academic lends to scholars with level-based extensions and a 3-day late
// grace period.
type Academic struct{}

var academicExtension = map[model.AcademicLevel]int{
	model.LevelGeneral:       0,
	model.LevelGraduate:      7,
	model.LevelProfessor:     14,
	model.LevelDistinguished: 21,
}

func (Academic) DueDate(book *model.Book, user *model.User, checkout time.Time) (time.Time, bool) {
	base := book.LendingPeriodDays()
	if base == 0 {
		return time.Time{}, false
	}
	ext := 0
	if user.Scholar != nil {
		ext = academicExtension[user.Scholar.AcademicLevel]
	}
	return checkout.AddDate(0, 0, base+ext), true
}

func (Academic) CanBorrow(book *model.Book, user *model.User, _ time.Time) bool {
	return user.Role == model.RoleScholar && book.LendingPeriodDays() > 0
}

func (Academic) CanRenew(record *model.LendingRecord, book *model.Book, user *model.User, now time.Time) bool {
	if user.Role != model.RoleScholar || book.LendingPeriodDays() == 0 {
		return false
	}
	if record.IsOverdue(now) {
		return false
	}
	return record.RenewalCount < 3
}

func (Academic) LateFee(book *model.Book, daysOverdue int) float64 {
	adjusted := daysOverdue - 3
	if adjusted < 0 {
		adjusted = 0
	}
	return book.LateFee(adjusted)
}

// Public lends general-collection books to guests with valid memberships.
type Public struct{}

func (Public) DueDate(book *model.Book, user *model.User, checkout time.Time) (time.Time, bool) {
	base := book.LendingPeriodDays()
	if base == 0 {
		return time.Time{}, false
	}
	ext := 0
	if user.Guest != nil && user.Guest.MembershipType == model.MembershipPremium {
		ext = 7
	}
	return checkout.AddDate(0, 0, base+ext), true
}

func (Public) CanBorrow(book *model.Book, user *model.User, now time.Time) bool {
	if user.Role != model.RoleGuest {
		return false
	}
	if !user.MembershipValid(now) {
		return false
	}
	if book.LendingPeriodDays() == 0 {
		return false
	}
	return book.Kind != model.KindRare && book.Kind != model.KindAncient
}

func (Public) CanRenew(record *model.LendingRecord, book *model.Book, user *model.User, now time.Time) bool {
	if user.Role != model.RoleGuest || !user.MembershipValid(now) {
		return false
	}
	if record.IsOverdue(now) {
		return false
	}
	max := 1
	if user.Guest != nil && user.Guest.MembershipType == model.MembershipPremium {
		max = 2
	}
	return record.RenewalCount < max
}

func (Public) LateFee(book *model.Book, daysOverdue int) float64 {
	return book.LateFee(daysOverdue)
}

// ReadingRoom covers ancient scripts and highly rare books: an eight-hour
// slot, no renewals, triple late fees.
type ReadingRoom struct{}

func (ReadingRoom) DueDate(_ *model.Book, _ *model.User, checkout time.Time) (time.Time, bool) {
	return checkout.Add(8 * time.Hour), true
}

func (ReadingRoom) CanBorrow(book *model.Book, user *model.User, _ time.Time) bool {
	switch book.Kind {
	case model.KindAncient:
		switch user.Role {
		case model.RoleLibrarian:
			return true
		case model.RoleScholar:
			if user.Scholar == nil {
				return false
			}
			return user.Scholar.AcademicLevel == model.LevelProfessor ||
				user.Scholar.AcademicLevel == model.LevelDistinguished
		}
		return false
	case model.KindRare:
		return user.Role == model.RoleLibrarian || user.Role == model.RoleScholar
	}
	return false
}

func (ReadingRoom) CanRenew(_ *model.LendingRecord, _ *model.Book, _ *model.User, _ time.Time) bool {
	return false
}

func (ReadingRoom) LateFee(book *model.Book, daysOverdue int) float64 {
	return book.LateFee(daysOverdue) * 3
}

// restrictedRarity is the rarity level at or above which rare books move
// to the reading room.
const restrictedRarity = 8

// selectionRow is one row of the strategy decision table, evaluated in
// order; the first match wins.
type selectionRow struct {
	match func(book *model.Book, user *model.User) bool
	id    ID
}

var selectionTable = []selectionRow{
	{
		match: func(b *model.Book, _ *model.User) bool { return b.Kind == model.KindAncient },
		id:    IDReadingRoom,
	},
	{
		match: func(b *model.Book, _ *model.User) bool {
			return b.Kind == model.KindRare && b.Rare != nil && b.Rare.RarityLevel >= restrictedRarity
		},
		id: IDReadingRoom,
	},
	{
		match: func(_ *model.Book, u *model.User) bool { return u.Role == model.RoleScholar },
		id:    IDAcademic,
	},
	{
		match: func(_ *model.Book, _ *model.User) bool { return true },
		id:    IDPublic,
	},
}

var strategies = map[ID]Strategy{
	IDAcademic:    Academic{},
	IDPublic:      Public{},
	IDReadingRoom: ReadingRoom{},
}

// SelectID resolves the decision table to a strategy id.
func SelectID(book *model.Book, user *model.User) ID {
	for _, row := range selectionTable {
		if row.match(book, user) {
			return row.id
		}
	}
	return IDPublic
}

// Select picks the strategy for a (book, user) pairing.
func Select(book *model.Book, user *model.User) Strategy {
	return strategies[SelectID(book, user)]
}
