package strategy_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/enchantedlib/lending-service/internal/model"
	"github.com/enchantedlib/lending-service/internal/strategy"
)

func newScholar(t *testing.T, level model.AcademicLevel) *model.User {
	t.Helper()
	u, err := model.NewScholar("Ada", "ada@uni.edu", "secret", "MIT", "CS")
	require.NoError(t, err)
	u.Scholar.AcademicLevel = level
	return u
}

func newGuest(t *testing.T, premium bool) *model.User {
	t.Helper()
	u, err := model.NewGuest("Bob", "bob@mail.com", "secret", "", "")
	require.NoError(t, err)
	if premium {
		u.Guest.MembershipType = model.MembershipPremium
	}
	expiry := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	u.Guest.MembershipExpiry = &expiry
	return u
}

func newLibrarian(t *testing.T) *model.User {
	t.Helper()
	u, err := model.NewLibrarian("Liz", "liz@lib.org", "secret", "Archives", "S-1")
	require.NoError(t, err)
	return u
}

func TestSelectID(t *testing.T) {
	t.Parallel()

	general, err := model.NewGeneralBook("Dune", "Herbert", 1965, "", "SF", 1)
	require.NoError(t, err)
	mildRare, err := model.NewRareBook("Folio", "Shakespeare", 1623, "", 9000, 5, 1)
	require.NoError(t, err)
	highRare, err := model.NewRareBook("Folio", "Shakespeare", 1623, "", 9000, 8, 1)
	require.NoError(t, err)
	ancient, err := model.NewAncientScript("Codex", "Unknown", 900, "", "Byzantium", "Greek", false, 1)
	require.NoError(t, err)

	tests := []struct {
		name string
		book *model.Book
		user *model.User
		want strategy.ID
	}{
		{"ancient always reading room", ancient, newGuest(t, false), strategy.IDReadingRoom},
		{"ancient for scholar reading room", ancient, newScholar(t, model.LevelProfessor), strategy.IDReadingRoom},
		{"high rarity reading room", highRare, newScholar(t, model.LevelGeneral), strategy.IDReadingRoom},
		{"mild rare scholar academic", mildRare, newScholar(t, model.LevelGeneral), strategy.IDAcademic},
		{"general scholar academic", general, newScholar(t, model.LevelGraduate), strategy.IDAcademic},
		{"general guest public", general, newGuest(t, false), strategy.IDPublic},
		{"general librarian public", general, newLibrarian(t), strategy.IDPublic},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, strategy.SelectID(tt.book, tt.user))
		})
	}
}

func TestAcademic_DueDate(t *testing.T) {
	t.Parallel()

	general, err := model.NewGeneralBook("Dune", "Herbert", 1965, "", "SF", 1)
	require.NoError(t, err)
	checkout := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		level model.AcademicLevel
		days  int
	}{
		{model.LevelGeneral, 21},
		{model.LevelGraduate, 28},
		{model.LevelProfessor, 35},
		{model.LevelDistinguished, 42},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.level), func(t *testing.T) {
			t.Parallel()
			due, ok := strategy.Academic{}.DueDate(general, newScholar(t, tt.level), checkout)
			require.True(t, ok)
			require.Equal(t, checkout.AddDate(0, 0, tt.days), due)
		})
	}

	ancient, err := model.NewAncientScript("Codex", "Unknown", 900, "", "Byzantium", "Greek", false, 1)
	require.NoError(t, err)
	_, ok := strategy.Academic{}.DueDate(ancient, newScholar(t, model.LevelProfessor), checkout)
	require.False(t, ok)
}

func TestAcademic_GraceAndRenewals(t *testing.T) {
	t.Parallel()

	general, err := model.NewGeneralBook("Dune", "Herbert", 1965, "", "SF", 1)
	require.NoError(t, err)

	// 3-day grace before fees start
	require.Zero(t, strategy.Academic{}.LateFee(general, 3))
	require.InDelta(t, 0.25, strategy.Academic{}.LateFee(general, 4), 1e-9)

	checkout := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	due := checkout.AddDate(0, 0, 21)
	record := model.NewLendingRecord("r-1", "b-1", "u-1", checkout)
	record.DueDate = &due
	scholar := newScholar(t, model.LevelGeneral)

	require.True(t, strategy.Academic{}.CanRenew(record, general, scholar, checkout))
	record.RenewalCount = 3
	require.False(t, strategy.Academic{}.CanRenew(record, general, scholar, checkout))

	record.RenewalCount = 0
	require.False(t, strategy.Academic{}.CanRenew(record, general, scholar, due.AddDate(0, 0, 1)),
		"overdue loans do not renew")
}

func TestPublic_Borrowing(t *testing.T) {
	t.Parallel()

	general, err := model.NewGeneralBook("Dune", "Herbert", 1965, "", "SF", 1)
	require.NoError(t, err)
	rare, err := model.NewRareBook("Folio", "Shakespeare", 1623, "", 9000, 5, 1)
	require.NoError(t, err)
	checkout := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	standard := newGuest(t, false)
	premium := newGuest(t, true)

	require.True(t, strategy.Public{}.CanBorrow(general, standard, checkout))
	require.False(t, strategy.Public{}.CanBorrow(rare, standard, checkout), "no rare books for guests")

	expired := newGuest(t, false)
	past := checkout.AddDate(0, -1, 0)
	expired.Guest.MembershipExpiry = &past
	require.False(t, strategy.Public{}.CanBorrow(general, expired, checkout))

	// validity is judged at the caller's clock, not the wall clock
	soon := newGuest(t, false)
	soonExpiry := checkout.AddDate(0, 2, 0)
	soon.Guest.MembershipExpiry = &soonExpiry
	require.True(t, strategy.Public{}.CanBorrow(general, soon, checkout))
	require.False(t, strategy.Public{}.CanBorrow(general, soon, checkout.AddDate(0, 3, 0)))

	due, ok := strategy.Public{}.DueDate(general, standard, checkout)
	require.True(t, ok)
	require.Equal(t, checkout.AddDate(0, 0, 21), due)

	due, ok = strategy.Public{}.DueDate(general, premium, checkout)
	require.True(t, ok)
	require.Equal(t, checkout.AddDate(0, 0, 28), due, "premium adds a week")

	duePtr := checkout.AddDate(0, 0, 21)
	record := model.NewLendingRecord("r-1", "b-1", "u-1", checkout)
	record.DueDate = &duePtr
	require.True(t, strategy.Public{}.CanRenew(record, general, standard, checkout))
	record.RenewalCount = 1
	require.False(t, strategy.Public{}.CanRenew(record, general, standard, checkout))
	require.True(t, strategy.Public{}.CanRenew(record, general, premium, checkout))
	record.RenewalCount = 2
	require.False(t, strategy.Public{}.CanRenew(record, general, premium, checkout))
}

func TestReadingRoom(t *testing.T) {
	t.Parallel()

	ancient, err := model.NewAncientScript("Codex", "Unknown", 900, "", "Byzantium", "Greek", false, 1)
	require.NoError(t, err)
	rare, err := model.NewRareBook("Folio", "Shakespeare", 1623, "", 9000, 8, 1)
	require.NoError(t, err)
	checkout := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	due, ok := strategy.ReadingRoom{}.DueDate(ancient, newLibrarian(t), checkout)
	require.True(t, ok)
	require.Equal(t, checkout.Add(8*time.Hour), due)

	require.True(t, strategy.ReadingRoom{}.CanBorrow(ancient, newLibrarian(t), checkout))
	require.True(t, strategy.ReadingRoom{}.CanBorrow(ancient, newScholar(t, model.LevelProfessor), checkout))
	require.True(t, strategy.ReadingRoom{}.CanBorrow(ancient, newScholar(t, model.LevelDistinguished), checkout))
	require.False(t, strategy.ReadingRoom{}.CanBorrow(ancient, newScholar(t, model.LevelGraduate), checkout))
	require.False(t, strategy.ReadingRoom{}.CanBorrow(ancient, newGuest(t, true), checkout))

	require.True(t, strategy.ReadingRoom{}.CanBorrow(rare, newScholar(t, model.LevelGeneral), checkout))
	require.False(t, strategy.ReadingRoom{}.CanBorrow(rare, newGuest(t, true), checkout))

	record := model.NewLendingRecord("r-1", "b-1", "u-1", checkout)
	require.False(t, strategy.ReadingRoom{}.CanRenew(record, ancient, newLibrarian(t), checkout))

	require.InDelta(t, 12.00, strategy.ReadingRoom{}.LateFee(rare, 4), 1e-9, "triple the base fee")
}
