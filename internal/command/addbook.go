package command

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/enchantedlib/lending-service/internal/catalog"
	"github.com/enchantedlib/lending-service/internal/errs"
	"github.com/enchantedlib/lending-service/internal/model"
)

// AddBook inserts a book into the catalog and links it to a section,
// creating the section when it does not exist yet.
type AddBook struct {
	cat         catalog.Catalog
	book        *model.Book
	sectionName string

	bookID    string
	sectionID string
}

func NewAddBook(cat catalog.Catalog, book *model.Book, sectionName string) *AddBook {
	return &AddBook{
		cat:         cat,
		book:        book,
		sectionName: sectionName,
	}
}

func (c *AddBook) Execute(ctx context.Context) (Result, error) {
	bookID, err := c.cat.AddBook(ctx, c.book)
	if err != nil {
		if errors.Is(err, errs.ErrAlreadyExists) {
			return failure("Book already exists"), nil
		}
		return Result{}, err
	}
	c.bookID = bookID

	if c.sectionName != "" {
		section, err := c.cat.GetSectionByName(ctx, c.sectionName)
		switch {
		case err == nil:
			c.sectionID = section.ID
		case errors.Is(err, errs.ErrNotFound):
			id, err := c.cat.AddSection(ctx, c.sectionName, fmt.Sprintf("Section for %s books", c.sectionName), 0)
			if err != nil {
				return Result{}, err
			}
			c.sectionID = id
		default:
			return Result{}, err
		}
		if err := c.cat.AddBookToSection(ctx, bookID, c.sectionID); err != nil {
			return Result{}, err
		}
	}

	return Result{
		OK:        true,
		Message:   "Book added successfully",
		BookID:    bookID,
		SectionID: c.sectionID,
	}, nil
}

// Undo removes the book from the catalog. Section creation is not reversed.
func (c *AddBook) Undo(ctx context.Context) (Result, error) {
	if c.bookID == "" {
		return failure("no book to remove"), nil
	}
	if err := c.cat.RemoveBook(ctx, c.bookID); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return failure("Book not found"), nil
		}
		return Result{}, err
	}
	return Result{OK: true, Message: "Book addition undone successfully"}, nil
}
