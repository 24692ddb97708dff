package command

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/enchantedlib/lending-service/internal/catalog"
	"github.com/enchantedlib/lending-service/internal/errs"
	"github.com/enchantedlib/lending-service/internal/model"
	"github.com/enchantedlib/lending-service/internal/strategy"
)

// Option tweaks a command's construction.
type Option func(*options)

type options struct {
	now func() time.Time
	// useStrategy switches due-date computation from the flat
	// checkout+lending_period path to the strategy layer, including its
	// borrow-eligibility check.
	useStrategy bool
}

// WithClock overrides the command's time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithStrategy routes due dates and eligibility through strategy selection.
func WithStrategy() Option {
	return func(o *options) { o.useStrategy = true }
}

func buildOptions(ops []Option) options {
	o := options{now: time.Now}
	for _, op := range ops {
		op(&o)
	}
	return o
}

// Checkout creates an active lending record and moves a copy of the book to
// the user, updating all three aggregates as a unit.
type Checkout struct {
	cat    catalog.Catalog
	bookID string
	userID string
	opts   options

	record         *model.LendingRecord
	previousStatus model.BookStatus
}

func NewCheckout(cat catalog.Catalog, bookID, userID string, ops ...Option) *Checkout {
	return &Checkout{
		cat:    cat,
		bookID: bookID,
		userID: userID,
		opts:   buildOptions(ops),
	}
}

func (c *Checkout) Execute(ctx context.Context) (Result, error) {
	book, err := c.cat.GetBook(ctx, c.bookID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return failure("Book not found"), nil
		}
		return Result{}, err
	}
	user, err := c.cat.GetUser(ctx, c.userID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return failure("User not found"), nil
		}
		return Result{}, err
	}

	c.previousStatus = book.Status

	if book.Available <= 0 {
		return failure(fmt.Sprintf("No copies of this book are available (current status: %s)", book.Status)), nil
	}

	// At most one open record may reference a book at a time. A swept
	// Overdue loan still holds the copy.
	bookRecords, err := c.cat.GetBookLendingRecords(ctx, c.bookID)
	if err != nil {
		return Result{}, err
	}
	for _, r := range bookRecords {
		if r.IsOpen() {
			return failure("Book already has an active lending record"), nil
		}
	}

	if user.ActiveLoans() >= user.MaxBooks() {
		return failure(fmt.Sprintf("User has reached their borrowing limit of %d books", user.MaxBooks())), nil
	}

	checkoutDate := c.opts.now()
	var dueDate time.Time

	if c.opts.useStrategy {
		st := strategy.Select(book, user)
		if !st.CanBorrow(book, user, checkoutDate) {
			return failure("User is not permitted to borrow this book"), nil
		}
		due, ok := st.DueDate(book, user, checkoutDate)
		if !ok {
			return failure(errs.ErrNotLendable.Error()), nil
		}
		dueDate = due
	} else {
		period := book.LendingPeriodDays()
		if period == 0 {
			return failure(errs.ErrNotLendable.Error()), nil
		}
		dueDate = checkoutDate.AddDate(0, 0, period)
	}

	record := model.NewLendingRecord(uuid.NewString(), c.bookID, c.userID, checkoutDate)
	record.DueDate = &dueDate

	// All validations passed; apply the three-way mutation as a unit.
	if err := book.DecreaseAvailable(); err != nil {
		return failure(err.Error()), nil
	}
	book.RecordBorrowing(c.userID, checkoutDate, dueDate)
	user.BorrowBook(c.bookID, checkoutDate, dueDate)

	if _, err := c.cat.AddLendingRecord(ctx, record); err != nil {
		return Result{}, err
	}
	if err := c.cat.UpdateBook(ctx, book); err != nil {
		return Result{}, err
	}
	if err := c.cat.UpdateUser(ctx, user); err != nil {
		return Result{}, err
	}

	c.record = record

	return Result{
		OK:      true,
		Message: "Book checked out successfully",
		Record:  record,
		DueDate: &dueDate,
		BookID:  c.bookID,
	}, nil
}

// Undo compensates a successful checkout: the saved book status is
// restored, the record flips to Returned and the user's open loan is closed.
func (c *Checkout) Undo(ctx context.Context) (Result, error) {
	if c.record == nil {
		return failure("no checkout to undo"), nil
	}

	book, err := c.cat.GetBook(ctx, c.bookID)
	if err != nil {
		return Result{}, err
	}
	user, err := c.cat.GetUser(ctx, c.userID)
	if err != nil {
		return Result{}, err
	}

	if err := book.IncreaseAvailable(); err != nil {
		return failure(err.Error()), nil
	}
	if book.Status != c.previousStatus {
		book.Status = c.previousStatus
	}

	now := c.opts.now()
	c.record.Status = model.LendingReturned
	c.record.ReturnDate = &now

	user.ReturnBook(c.bookID, now)

	if err := c.cat.UpdateLendingRecord(ctx, c.record); err != nil {
		return Result{}, err
	}
	if err := c.cat.UpdateBook(ctx, book); err != nil {
		return Result{}, err
	}
	if err := c.cat.UpdateUser(ctx, user); err != nil {
		return Result{}, err
	}

	return Result{OK: true, Message: "Checkout undone successfully"}, nil
}
