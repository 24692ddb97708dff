package command

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/enchantedlib/lending-service/internal/catalog"
	"github.com/enchantedlib/lending-service/internal/errs"
	"github.com/enchantedlib/lending-service/internal/model"
)

// Return closes the open loan of a book by a user, charging late fees and
// degrading the condition one step when damage was reported. Loans the
// sweeper already marked Overdue are still open and still returnable.
type Return struct {
	cat              catalog.Catalog
	bookID           string
	userID           string
	conditionChanged bool
	opts             options

	record            *model.LendingRecord
	previousStatus    model.BookStatus
	previousCondition model.Condition
}

func NewReturn(cat catalog.Catalog, bookID, userID string, conditionChanged bool, ops ...Option) *Return {
	return &Return{
		cat:              cat,
		bookID:           bookID,
		userID:           userID,
		conditionChanged: conditionChanged,
		opts:             buildOptions(ops),
	}
}

func (c *Return) Execute(ctx context.Context) (Result, error) {
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
	c.previousCondition = book.Condition

	records, err := c.cat.GetUserLendingRecords(ctx, c.userID)
	if err != nil {
		return Result{}, err
	}
	var open *model.LendingRecord
	for _, r := range records {
		if r.BookID == c.bookID && r.IsOpen() {
			open = r
			break
		}
	}
	if open == nil {
		return failure(errs.ErrNoActiveLoan.Error()), nil
	}
	c.record = open

	returnDate := c.opts.now()
	var lateFee float64
	if open.IsOverdue(returnDate) {
		lateFee = book.LateFee(open.DaysOverdue(returnDate))
		open.LateFee = lateFee
	}

	open.Return(returnDate, c.conditionChanged)

	if c.conditionChanged {
		book.Condition = book.Condition.Degraded()
	}

	if err := book.IncreaseAvailable(); err != nil {
		return failure(err.Error()), nil
	}
	book.RecordReturn(returnDate)
	user.ReturnBook(c.bookID, returnDate)

	if err := c.cat.UpdateLendingRecord(ctx, open); err != nil {
		return Result{}, err
	}
	if err := c.cat.UpdateBook(ctx, book); err != nil {
		return Result{}, err
	}
	if err := c.cat.UpdateUser(ctx, user); err != nil {
		return Result{}, err
	}

	message := "Book returned successfully"
	if lateFee > 0 {
		message += fmt.Sprintf(" with a late fee of $%.2f", lateFee)
	}

	return Result{
		OK:      true,
		Message: message,
		Record:  open,
		LateFee: lateFee,
		BookID:  c.bookID,
	}, nil
}

// Undo compensates a successful return: book status and condition are
// restored from the saved values and the record flips back to Active. The
// user gets a fresh open-loan entry, which may differ from the original
// (best-effort contract).
func (c *Return) Undo(ctx context.Context) (Result, error) {
	if c.record == nil {
		return failure("no return to undo"), nil
	}

	book, err := c.cat.GetBook(ctx, c.bookID)
	if err != nil {
		return Result{}, err
	}
	user, err := c.cat.GetUser(ctx, c.userID)
	if err != nil {
		return Result{}, err
	}

	if err := book.DecreaseAvailable(); err != nil {
		return failure(err.Error()), nil
	}
	book.Status = c.previousStatus
	book.Condition = c.previousCondition

	c.record.Status = model.LendingActive
	c.record.ReturnDate = nil

	if c.record.DueDate != nil {
		user.BorrowBook(c.bookID, c.record.CheckoutDate, *c.record.DueDate)
	}

	if err := c.cat.UpdateLendingRecord(ctx, c.record); err != nil {
		return Result{}, err
	}
	if err := c.cat.UpdateBook(ctx, book); err != nil {
		return Result{}, err
	}
	if err := c.cat.UpdateUser(ctx, user); err != nil {
		return Result{}, err
	}

	return Result{OK: true, Message: "Return undone successfully"}, nil
}
