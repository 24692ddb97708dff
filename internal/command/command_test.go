package command_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/enchantedlib/lending-service/internal/catalog"
	"github.com/enchantedlib/lending-service/internal/command"
	"github.com/enchantedlib/lending-service/internal/model"
)

var baseTime = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

type fixture struct {
	cat *catalog.Memory
	inv *command.Invoker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{
		cat: catalog.NewMemory(zap.NewExample().Named("test")),
		inv: command.NewInvoker(),
	}
}

func (f *fixture) addGeneralBook(t *testing.T, quantity int) *model.Book {
	t.Helper()
	book, err := model.NewGeneralBook("Dune", "Herbert", 1965, "", "SF", quantity)
	require.NoError(t, err)
	_, err = f.cat.AddBook(context.Background(), book)
	require.NoError(t, err)
	return book
}

func (f *fixture) addGuest(t *testing.T) *model.User {
	t.Helper()
	user, err := model.NewGuest("Bob", "bob@mail.com", "secret", "", "")
	require.NoError(t, err)
	expiry := baseTime.AddDate(1, 0, 0)
	user.Guest.MembershipExpiry = &expiry
	_, err = f.cat.AddUser(context.Background(), user)
	require.NoError(t, err)
	return user
}

func TestCheckout_Success(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	book := f.addGeneralBook(t, 1)
	user := f.addGuest(t)

	res, err := f.inv.Execute(ctx, command.NewCheckout(f.cat, book.ID, user.ID,
		command.WithClock(fixedClock(baseTime))))
	require.NoError(t, err)
	require.True(t, res.OK)
	require.NotNil(t, res.Record)
	require.Equal(t, model.LendingActive, res.Record.Status)
	require.Equal(t, baseTime.AddDate(0, 0, 21), *res.DueDate)

	stored, err := f.cat.GetBook(ctx, book.ID)
	require.NoError(t, err)
	require.Equal(t, 0, stored.Available)
	require.Equal(t, model.StatusBorrowed, stored.Status)
	require.Len(t, stored.BorrowingHistory, 1)

	storedUser, err := f.cat.GetUser(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, 1, storedUser.ActiveLoans())
}

func TestCheckout_Failures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("book not found", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		user := f.addGuest(t)
		res, err := f.inv.Execute(ctx, command.NewCheckout(f.cat, "missing", user.ID))
		require.NoError(t, err)
		require.False(t, res.OK)
		require.Equal(t, "Book not found", res.Message)
		require.Zero(t, f.inv.HistorySize(), "failed commands are not pushed")
	})

	t.Run("user not found", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		book := f.addGeneralBook(t, 1)
		res, err := f.inv.Execute(ctx, command.NewCheckout(f.cat, book.ID, "missing"))
		require.NoError(t, err)
		require.False(t, res.OK)
		require.Equal(t, "User not found", res.Message)
	})

	t.Run("one active record per book", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		book := f.addGeneralBook(t, 2)
		user := f.addGuest(t)
		other, err := model.NewGuest("Eve", "eve@mail.com", "secret", "", "")
		require.NoError(t, err)
		expiry := baseTime.AddDate(1, 0, 0)
		other.Guest.MembershipExpiry = &expiry
		_, err = f.cat.AddUser(ctx, other)
		require.NoError(t, err)

		res, err := f.inv.Execute(ctx, command.NewCheckout(f.cat, book.ID, user.ID,
			command.WithClock(fixedClock(baseTime))))
		require.NoError(t, err)
		require.True(t, res.OK)

		res, err = f.inv.Execute(ctx, command.NewCheckout(f.cat, book.ID, other.ID,
			command.WithClock(fixedClock(baseTime))))
		require.NoError(t, err)
		require.False(t, res.OK)
		require.Equal(t, "Book already has an active lending record", res.Message)
	})

	t.Run("overdue record still holds the copy", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		book := f.addGeneralBook(t, 2)
		user := f.addGuest(t)
		other, err := model.NewGuest("Eve", "eve@mail.com", "secret", "", "")
		require.NoError(t, err)
		expiry := baseTime.AddDate(1, 0, 0)
		other.Guest.MembershipExpiry = &expiry
		_, err = f.cat.AddUser(ctx, other)
		require.NoError(t, err)

		res, err := f.inv.Execute(ctx, command.NewCheckout(f.cat, book.ID, user.ID,
			command.WithClock(fixedClock(baseTime))))
		require.NoError(t, err)
		require.True(t, res.OK)

		record, err := f.cat.GetLendingRecord(ctx, res.Record.ID)
		require.NoError(t, err)
		record.Status = model.LendingOverdue
		require.NoError(t, f.cat.UpdateLendingRecord(ctx, record))

		res, err = f.inv.Execute(ctx, command.NewCheckout(f.cat, book.ID, other.ID,
			command.WithClock(fixedClock(baseTime))))
		require.NoError(t, err)
		require.False(t, res.OK)
		require.Equal(t, "Book already has an active lending record", res.Message)
	})

	t.Run("borrowing limit", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		user := f.addGuest(t)
		for i := 0; i < 3; i++ {
			user.BorrowBook("other", baseTime, baseTime.AddDate(0, 0, 21))
		}
		require.NoError(t, f.cat.UpdateUser(ctx, user))
		book := f.addGeneralBook(t, 1)

		res, err := f.inv.Execute(ctx, command.NewCheckout(f.cat, book.ID, user.ID,
			command.WithClock(fixedClock(baseTime))))
		require.NoError(t, err)
		require.False(t, res.OK)
		require.Equal(t, "User has reached their borrowing limit of 3 books", res.Message)
	})

	t.Run("reading room only", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ancient, err := model.NewAncientScript("Codex", "Unknown", 900, "", "Byzantium", "Greek", false, 1)
		require.NoError(t, err)
		_, err = f.cat.AddBook(ctx, ancient)
		require.NoError(t, err)
		user := f.addGuest(t)

		res, err := f.inv.Execute(ctx, command.NewCheckout(f.cat, ancient.ID, user.ID,
			command.WithClock(fixedClock(baseTime))))
		require.NoError(t, err)
		require.False(t, res.OK)
		require.Equal(t, "this book can only be viewed in the library and cannot be borrowed", res.Message)
	})
}

func TestCheckout_WithStrategy(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	book := f.addGeneralBook(t, 1)

	scholar, err := model.NewScholar("Ada", "ada@uni.edu", "secret", "MIT", "CS")
	require.NoError(t, err)
	scholar.Scholar.AcademicLevel = model.LevelProfessor
	_, err = f.cat.AddUser(ctx, scholar)
	require.NoError(t, err)

	res, err := f.inv.Execute(ctx, command.NewCheckout(f.cat, book.ID, scholar.ID,
		command.WithClock(fixedClock(baseTime)), command.WithStrategy()))
	require.NoError(t, err)
	require.True(t, res.OK)
	require.Equal(t, baseTime.AddDate(0, 0, 35), *res.DueDate, "21 base + 14 professor extension")
}

func TestReturn_OnTime(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	book := f.addGeneralBook(t, 1)
	user := f.addGuest(t)

	res, err := f.inv.Execute(ctx, command.NewCheckout(f.cat, book.ID, user.ID,
		command.WithClock(fixedClock(baseTime))))
	require.NoError(t, err)
	require.True(t, res.OK)

	returnAt := baseTime.AddDate(0, 0, 10)
	res, err = f.inv.Execute(ctx, command.NewReturn(f.cat, book.ID, user.ID, false,
		command.WithClock(fixedClock(returnAt))))
	require.NoError(t, err)
	require.True(t, res.OK)
	require.Equal(t, "Book returned successfully", res.Message)
	require.Zero(t, res.LateFee)

	stored, err := f.cat.GetBook(ctx, book.ID)
	require.NoError(t, err)
	require.Equal(t, 1, stored.Available)
	require.Equal(t, model.StatusAvailable, stored.Status)
	require.Equal(t, model.ConditionGood, stored.Condition)
}

func TestReturn_LateAndDamaged(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	book := f.addGeneralBook(t, 1)
	user := f.addGuest(t)

	res, err := f.inv.Execute(ctx, command.NewCheckout(f.cat, book.ID, user.ID,
		command.WithClock(fixedClock(baseTime))))
	require.NoError(t, err)
	require.True(t, res.OK)

	// 21-day period, returned 25 days in: 4 days overdue at $0.25/day
	returnAt := baseTime.AddDate(0, 0, 25)
	res, err = f.inv.Execute(ctx, command.NewReturn(f.cat, book.ID, user.ID, true,
		command.WithClock(fixedClock(returnAt))))
	require.NoError(t, err)
	require.True(t, res.OK)
	require.InDelta(t, 1.00, res.LateFee, 1e-9)
	require.Contains(t, res.Message, "late fee of $1.00")
	require.Equal(t, model.LendingDamaged, res.Record.Status)

	stored, err := f.cat.GetBook(ctx, book.ID)
	require.NoError(t, err)
	require.Equal(t, model.ConditionFair, stored.Condition, "single-step degrade from Good")
}

func TestReturn_NoActiveLoan(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	book := f.addGeneralBook(t, 1)
	user := f.addGuest(t)

	res, err := f.inv.Execute(ctx, command.NewReturn(f.cat, book.ID, user.ID, false))
	require.NoError(t, err)
	require.False(t, res.OK)
	require.Equal(t, "no active lending record found for this book and user", res.Message)
}

func TestUndo_CheckoutThenReturn(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	book := f.addGeneralBook(t, 1)
	user := f.addGuest(t)

	res, err := f.inv.Execute(ctx, command.NewCheckout(f.cat, book.ID, user.ID,
		command.WithClock(fixedClock(baseTime))))
	require.NoError(t, err)
	require.True(t, res.OK)
	recordID := res.Record.ID

	returnAt := baseTime.AddDate(0, 0, 10)
	res, err = f.inv.Execute(ctx, command.NewReturn(f.cat, book.ID, user.ID, true,
		command.WithClock(fixedClock(returnAt))))
	require.NoError(t, err)
	require.True(t, res.OK)
	require.Equal(t, 2, f.inv.HistorySize())

	// undo the return: condition restored, record active again
	res, err = f.inv.UndoLast(ctx)
	require.NoError(t, err)
	require.True(t, res.OK)

	stored, err := f.cat.GetBook(ctx, book.ID)
	require.NoError(t, err)
	require.Equal(t, 0, stored.Available)
	require.Equal(t, model.ConditionGood, stored.Condition)

	record, err := f.cat.GetLendingRecord(ctx, recordID)
	require.NoError(t, err)
	require.Equal(t, model.LendingActive, record.Status)
	require.Nil(t, record.ReturnDate)

	// undo the checkout: the copy is back on the shelf
	res, err = f.inv.UndoLast(ctx)
	require.NoError(t, err)
	require.True(t, res.OK)

	stored, err = f.cat.GetBook(ctx, book.ID)
	require.NoError(t, err)
	require.Equal(t, 1, stored.Available)
	require.Equal(t, model.StatusAvailable, stored.Status)

	storedUser, err := f.cat.GetUser(ctx, user.ID)
	require.NoError(t, err)
	require.Zero(t, storedUser.ActiveLoans())

	// nothing left to undo
	res, err = f.inv.UndoLast(ctx)
	require.NoError(t, err)
	require.False(t, res.OK)
	require.Equal(t, "no command to undo", res.Message)
}

func TestAddBook_ExecuteAndUndo(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	book, err := model.NewGeneralBook("Dune", "Herbert", 1965, "", "SF", 1)
	require.NoError(t, err)

	res, err := f.inv.Execute(ctx, command.NewAddBook(f.cat, book, "Fiction"))
	require.NoError(t, err)
	require.True(t, res.OK)
	require.NotEmpty(t, res.BookID)
	require.NotEmpty(t, res.SectionID)

	section, err := f.cat.GetSectionByName(ctx, "Fiction")
	require.NoError(t, err)
	require.Contains(t, section.BookIDs, res.BookID)

	// second book reuses the section
	book2, err := model.NewGeneralBook("The Hobbit", "Tolkien", 1937, "", "Fantasy", 1)
	require.NoError(t, err)
	res2, err := f.inv.Execute(ctx, command.NewAddBook(f.cat, book2, "Fiction"))
	require.NoError(t, err)
	require.Equal(t, res.SectionID, res2.SectionID)

	res, err = f.inv.UndoLast(ctx)
	require.NoError(t, err)
	require.True(t, res.OK)
	_, err = f.cat.GetBook(ctx, book2.ID)
	require.Error(t, err)
}

func TestInvoker_ClearHistory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	book := f.addGeneralBook(t, 1)
	user := f.addGuest(t)

	res, err := f.inv.Execute(ctx, command.NewCheckout(f.cat, book.ID, user.ID,
		command.WithClock(fixedClock(baseTime))))
	require.NoError(t, err)
	require.True(t, res.OK)
	require.Equal(t, 1, f.inv.HistorySize())

	f.inv.ClearHistory()
	require.Zero(t, f.inv.HistorySize())
}
