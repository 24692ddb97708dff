package catalog_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/enchantedlib/lending-service/internal/catalog"
	"github.com/enchantedlib/lending-service/internal/errs"
	"github.com/enchantedlib/lending-service/internal/model"
)

func newMemory(t *testing.T) *catalog.Memory {
	t.Helper()
	return catalog.NewMemory(zap.NewExample().Named("test"))
}

func TestMemory_BookCRUD(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newMemory(t)

	book, err := model.NewGeneralBook("Dune", "Herbert", 1965, "", "SF", 2)
	require.NoError(t, err)

	id, err := m.AddBook(ctx, book)
	require.NoError(t, err)
	require.Equal(t, book.ID, id)

	_, err = m.AddBook(ctx, book)
	require.ErrorIs(t, err, errs.ErrAlreadyExists)

	got, err := m.GetBook(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "Dune", got.Title)

	// mutations to the returned copy do not leak into the store
	got.Title = "changed"
	again, err := m.GetBook(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "Dune", again.Title)

	got.Title = "Dune Messiah"
	require.NoError(t, m.UpdateBook(ctx, got))
	updated, err := m.GetBook(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "Dune Messiah", updated.Title)

	require.NoError(t, m.RemoveBook(ctx, id))
	_, err = m.GetBook(ctx, id)
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.ErrorIs(t, m.RemoveBook(ctx, id), errs.ErrNotFound)
}

func TestMemory_SearchBooks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newMemory(t)

	dune, err := model.NewGeneralBook("Dune", "Frank Herbert", 1965, "", "SF", 1)
	require.NoError(t, err)
	hobbit, err := model.NewGeneralBook("The Hobbit", "J.R.R. Tolkien", 1937, "", "Fantasy", 1)
	require.NoError(t, err)
	_, err = m.AddBook(ctx, dune)
	require.NoError(t, err)
	_, err = m.AddBook(ctx, hobbit)
	require.NoError(t, err)

	byTitle, err := m.SearchBooks(ctx, catalog.SearchQuery{Title: "hobbit"})
	require.NoError(t, err)
	require.Len(t, byTitle, 1)
	require.Equal(t, "The Hobbit", byTitle[0].Title)

	byAuthor, err := m.SearchBooks(ctx, catalog.SearchQuery{Author: "herbert"})
	require.NoError(t, err)
	require.Len(t, byAuthor, 1)

	byYear, err := m.SearchBooks(ctx, catalog.SearchQuery{Year: 1937})
	require.NoError(t, err)
	require.Len(t, byYear, 1)

	none, err := m.SearchBooks(ctx, catalog.SearchQuery{Title: "hobbit", Year: 1965})
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestMemory_UserUniqueEmail(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newMemory(t)

	u1, err := model.NewGuest("Bob", "bob@mail.com", "secret", "", "")
	require.NoError(t, err)
	_, err = m.AddUser(ctx, u1)
	require.NoError(t, err)

	u2, err := model.NewGuest("Bobby", "bob@mail.com", "secret", "", "")
	require.NoError(t, err)
	_, err = m.AddUser(ctx, u2)
	require.ErrorIs(t, err, errs.ErrAlreadyExists)

	byEmail, err := m.GetUserByEmail(ctx, "bob@mail.com")
	require.NoError(t, err)
	require.Equal(t, u1.ID, byEmail.ID)

	_, err = m.GetUserByEmail(ctx, "nobody@mail.com")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestMemory_LendingRecords(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newMemory(t)

	checkout := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	due := checkout.AddDate(0, 0, 21)

	r1 := model.NewLendingRecord("r-1", "b-1", "u-1", checkout)
	r1.DueDate = &due
	r2 := model.NewLendingRecord("r-2", "b-2", "u-1", checkout)
	r2.DueDate = &due
	r3 := model.NewLendingRecord("r-3", "b-1", "u-2", checkout)

	for _, r := range []*model.LendingRecord{r1, r2, r3} {
		_, err := m.AddLendingRecord(ctx, r)
		require.NoError(t, err)
	}

	byUser, err := m.GetUserLendingRecords(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, byUser, 2)

	byBook, err := m.GetBookLendingRecords(ctx, "b-1")
	require.NoError(t, err)
	require.Len(t, byBook, 2)

	overdue, err := m.GetOverdueRecords(ctx, due.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, overdue, 2, "record without a due date is never overdue")

	r1.Status = model.LendingReturned
	require.NoError(t, m.UpdateLendingRecord(ctx, r1))
	overdue, err = m.GetOverdueRecords(ctx, due.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, overdue, 1)
}

func TestMemory_Sections(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newMemory(t)

	book, err := model.NewGeneralBook("Dune", "Herbert", 1965, "", "SF", 1)
	require.NoError(t, err)
	bookID, err := m.AddBook(ctx, book)
	require.NoError(t, err)

	sectionID, err := m.AddSection(ctx, "Fiction", "Section for Fiction books", 0)
	require.NoError(t, err)

	byName, err := m.GetSectionByName(ctx, "fiction")
	require.NoError(t, err)
	require.Equal(t, sectionID, byName.ID)

	require.NoError(t, m.AddBookToSection(ctx, bookID, sectionID))
	require.NoError(t, m.AddBookToSection(ctx, bookID, sectionID), "idempotent")

	section, err := m.SectionOfBook(ctx, bookID)
	require.NoError(t, err)
	require.Equal(t, "Fiction", section.Name)
	require.Len(t, section.BookIDs, 1)

	_, err = m.SectionOfBook(ctx, "missing")
	require.ErrorIs(t, err, errs.ErrNotFound)

	require.ErrorIs(t, m.AddBookToSection(ctx, "missing", sectionID), errs.ErrNotFound)
}
