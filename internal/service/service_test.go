package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/enchantedlib/lending-service/internal/access"
	"github.com/enchantedlib/lending-service/internal/catalog"
	"github.com/enchantedlib/lending-service/internal/errs"
	"github.com/enchantedlib/lending-service/internal/events"
	"github.com/enchantedlib/lending-service/internal/model"
	"github.com/enchantedlib/lending-service/internal/service"
)

var baseTime = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

type suite struct {
	cat     *catalog.Memory
	evm     *events.Manager
	acl     *access.Control
	lib     *service.Library
	current time.Time
}

func newSuite(t *testing.T) *suite {
	t.Helper()
	log := zap.NewExample().Named("test")
	s := &suite{
		cat:     catalog.NewMemory(log),
		evm:     events.NewManager(log),
		acl:     access.NewControl(log),
		current: baseTime,
	}
	s.lib = service.NewLibrary(s.cat, s.evm, log,
		service.WithClock(func() time.Time { return s.current }),
		service.WithStrategies(),
		service.WithAccessControl(s.acl),
	)
	return s
}

func (s *suite) addGeneral(t *testing.T, title string) *model.Book {
	t.Helper()
	book, err := model.NewGeneralBook(title, "Herbert", 1965, "", "SF", 1)
	require.NoError(t, err)
	_, err = s.cat.AddBook(context.Background(), book)
	require.NoError(t, err)
	return book
}

func (s *suite) addScholar(t *testing.T, email string) *model.User {
	t.Helper()
	user, err := model.NewScholar("Ada", email, "secret", "MIT", "CS")
	require.NoError(t, err)
	_, err = s.cat.AddUser(context.Background(), user)
	require.NoError(t, err)
	return user
}

func TestRegisterAndAuthenticate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newSuite(t)

	guest, err := model.NewGuest("Bob", "bob@mail.com", "secret", "", "")
	require.NoError(t, err)
	id, err := s.lib.RegisterUser(ctx, guest)
	require.NoError(t, err)
	require.Equal(t, guest.ID, id)

	dup, err := model.NewGuest("Bobby", "bob@mail.com", "secret", "", "")
	require.NoError(t, err)
	_, err = s.lib.RegisterUser(ctx, dup)
	require.ErrorIs(t, err, errs.ErrAlreadyExists)

	authed, err := s.lib.Authenticate(ctx, "bob@mail.com", "secret")
	require.NoError(t, err)
	require.NotNil(t, authed.LastLogin)
	require.Equal(t, baseTime, *authed.LastLogin)

	_, err = s.lib.Authenticate(ctx, "bob@mail.com", "wrong")
	require.ErrorIs(t, err, errs.ErrNotPermitted)
	_, err = s.lib.Authenticate(ctx, "nobody@mail.com", "secret")
	require.ErrorIs(t, err, errs.ErrNotPermitted)

	evs := s.evm.Events()
	require.Len(t, evs, 1)
	require.Equal(t, events.UserRegistered, evs[0].Type)
}

func TestCheckout_EmitsEventAndDueDate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newSuite(t)

	book := s.addGeneral(t, "Dune")
	scholar := s.addScholar(t, "ada@uni.edu")

	res, err := s.lib.Checkout(ctx, book.ID, scholar.ID)
	require.NoError(t, err)
	require.True(t, res.OK)
	require.NotNil(t, res.DueDate)
	require.Equal(t, baseTime.AddDate(0, 0, 21), *res.DueDate)

	var types []events.EventType
	for _, ev := range s.evm.Events() {
		types = append(types, ev.Type)
	}
	require.Contains(t, types, events.BookBorrowed)
}

func TestCheckout_SectionGate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newSuite(t)

	book := s.addGeneral(t, "Folio Studies")
	sectionID, err := s.cat.AddSection(ctx, "Rare Books", "Restricted stacks", 0)
	require.NoError(t, err)
	require.NoError(t, s.cat.AddBookToSection(ctx, book.ID, sectionID))

	general := s.addScholar(t, "grad@uni.edu")
	res, err := s.lib.Checkout(ctx, book.ID, general.ID)
	require.NoError(t, err)
	require.False(t, res.OK)
	require.Equal(t, "User does not have permission to access the Rare Books section", res.Message)

	professor := s.addScholar(t, "prof@uni.edu")
	professor.Scholar.AcademicLevel = model.LevelProfessor
	require.NoError(t, s.cat.UpdateUser(ctx, professor))

	res, err = s.lib.Checkout(ctx, book.ID, professor.ID)
	require.NoError(t, err)
	require.True(t, res.OK)

	denied := false
	require.Len(t, s.acl.Logs(access.LogFilter{Success: &denied}), 1, "the refusal is audited")
}

func TestCheckout_GuestMembershipUsesServiceClock(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newSuite(t)

	book := s.addGeneral(t, "Dune")
	other := s.addGeneral(t, "Dune Messiah")

	guest, err := model.NewGuest("Bob", "bob@mail.com", "secret", "", "")
	require.NoError(t, err)
	expiry := baseTime.AddDate(0, 3, 0)
	guest.Guest.MembershipExpiry = &expiry
	_, err = s.cat.AddUser(ctx, guest)
	require.NoError(t, err)

	// valid at the injected clock even when the wall clock is past the expiry
	res, err := s.lib.Checkout(ctx, book.ID, guest.ID)
	require.NoError(t, err)
	require.True(t, res.OK)

	s.current = expiry.AddDate(0, 1, 0)

	res, err = s.lib.Checkout(ctx, other.ID, guest.ID)
	require.NoError(t, err)
	require.False(t, res.OK)
	require.Equal(t, "User is not permitted to borrow this book", res.Message)
}

func TestRenewLoan(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newSuite(t)

	book := s.addGeneral(t, "Dune")
	scholar := s.addScholar(t, "ada@uni.edu")

	res, err := s.lib.Checkout(ctx, book.ID, scholar.ID)
	require.NoError(t, err)
	require.True(t, res.OK)

	renewed, err := s.lib.RenewLoan(ctx, res.Record.ID)
	require.NoError(t, err)
	require.True(t, renewed.OK)
	require.Equal(t, "Loan renewed successfully", renewed.Message)
	require.Equal(t, baseTime.AddDate(0, 0, 42), *renewed.DueDate, "base period added on top of the original due date")

	missing, err := s.lib.RenewLoan(ctx, "missing")
	require.NoError(t, err)
	require.False(t, missing.OK)
	require.Equal(t, "Lending record not found", missing.Message)

	// past the renewal cap
	record, err := s.cat.GetLendingRecord(ctx, res.Record.ID)
	require.NoError(t, err)
	record.RenewalCount = 3
	require.NoError(t, s.cat.UpdateLendingRecord(ctx, record))

	blocked, err := s.lib.RenewLoan(ctx, res.Record.ID)
	require.NoError(t, err)
	require.False(t, blocked.OK)
	require.Equal(t, "This loan cannot be renewed", blocked.Message)
}

func TestAvailability(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newSuite(t)

	book := s.addGeneral(t, "Dune")
	scholar := s.addScholar(t, "ada@uni.edu")

	avail, err := s.lib.Availability(ctx, book.ID)
	require.NoError(t, err)
	require.True(t, avail.Available)
	require.Equal(t, "Book is available (1 of 1 copies available)", avail.Message)

	res, err := s.lib.Checkout(ctx, book.ID, scholar.ID)
	require.NoError(t, err)
	require.True(t, res.OK)

	avail, err = s.lib.Availability(ctx, book.ID)
	require.NoError(t, err)
	require.False(t, avail.Available)
	require.Equal(t, "Book is currently borrowed by Ada", avail.Message)
	require.NotNil(t, avail.DueDate)

	missing, err := s.lib.Availability(ctx, "missing")
	require.NoError(t, err)
	require.Equal(t, "Book not found", missing.Message)
}

func TestOverdueBooks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newSuite(t)

	book := s.addGeneral(t, "Dune")
	scholar := s.addScholar(t, "ada@uni.edu")

	res, err := s.lib.Checkout(ctx, book.ID, scholar.ID)
	require.NoError(t, err)
	require.True(t, res.OK)

	overdue, err := s.lib.OverdueBooks(ctx)
	require.NoError(t, err)
	require.Empty(t, overdue)

	s.current = baseTime.AddDate(0, 0, 25)

	overdue, err = s.lib.OverdueBooks(ctx)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	require.Equal(t, book.ID, overdue[0].Book.ID)
	require.Equal(t, scholar.ID, overdue[0].User.ID)
	require.Equal(t, 4, overdue[0].DaysOverdue)
	require.InDelta(t, 1.00, overdue[0].LateFee, 1e-9)
}

func TestReturn_FlagsRestoration(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newSuite(t)

	book := s.addGeneral(t, "Dune")
	book.Condition = model.ConditionFair
	require.NoError(t, s.cat.UpdateBook(ctx, book))
	scholar := s.addScholar(t, "ada@uni.edu")

	res, err := s.lib.Checkout(ctx, book.ID, scholar.ID)
	require.NoError(t, err)
	require.True(t, res.OK)

	res, err = s.lib.Return(ctx, book.ID, scholar.ID, true)
	require.NoError(t, err)
	require.True(t, res.OK)

	var types []events.EventType
	for _, ev := range s.evm.Events() {
		types = append(types, ev.Type)
	}
	require.Contains(t, types, events.BookReturned)
	require.Contains(t, types, events.BookNeedsRestoration, "damage degraded the book past its threshold")
}

func TestBorrowedBooksAndUndo(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newSuite(t)

	book := s.addGeneral(t, "Dune")
	scholar := s.addScholar(t, "ada@uni.edu")

	res, err := s.lib.Checkout(ctx, book.ID, scholar.ID)
	require.NoError(t, err)
	require.True(t, res.OK)
	require.Equal(t, 1, s.lib.HistorySize())

	borrowed, err := s.lib.BorrowedBooks(ctx, scholar.ID)
	require.NoError(t, err)
	require.Len(t, borrowed, 1)
	require.Equal(t, book.ID, borrowed[0].Book.ID)
	require.Equal(t, baseTime.AddDate(0, 0, 21), borrowed[0].DueDate)

	undo, err := s.lib.UndoLast(ctx)
	require.NoError(t, err)
	require.True(t, undo.OK)
	require.Zero(t, s.lib.HistorySize())

	borrowed, err = s.lib.BorrowedBooks(ctx, scholar.ID)
	require.NoError(t, err)
	require.Empty(t, borrowed)
}

func TestAddBook_Facade(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newSuite(t)

	book, err := model.NewGeneralBook("Dune", "Herbert", 1965, "", "SF", 1)
	require.NoError(t, err)

	res, err := s.lib.AddBook(ctx, book, "Fiction")
	require.NoError(t, err)
	require.True(t, res.OK)

	section, err := s.cat.SectionOfBook(ctx, book.ID)
	require.NoError(t, err)
	require.Equal(t, "Fiction", section.Name)

	found, err := s.lib.SearchBooks(ctx, catalog.SearchQuery{Title: "dune"})
	require.NoError(t, err)
	require.Len(t, found, 1)

	var types []events.EventType
	for _, ev := range s.evm.Events() {
		types = append(types, ev.Type)
	}
	require.Contains(t, types, events.BookAdded)
}

func TestMembershipFee_Facade(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newSuite(t)

	scholar := s.addScholar(t, "ada@uni.edu")
	scholar.Scholar.AcademicLevel = model.LevelGraduate
	require.NoError(t, s.cat.UpdateUser(ctx, scholar))

	fee, err := s.lib.MembershipFee(ctx, scholar.ID, model.MembershipStandard, 6)
	require.NoError(t, err)
	require.InDelta(t, 25.65, fee, 1e-9, "graduate discount on the half-year rate")

	guest, err := model.NewGuest("Bob", "bob@mail.com", "secret", "", "")
	require.NoError(t, err)
	_, err = s.cat.AddUser(ctx, guest)
	require.NoError(t, err)

	fee, err = s.lib.MembershipFee(ctx, guest.ID, model.MembershipStandard, 6)
	require.NoError(t, err)
	require.InDelta(t, 28.50, fee, 1e-9)
}
