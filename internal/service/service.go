package service

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/enchantedlib/lending-service/internal/access"
	"github.com/enchantedlib/lending-service/internal/catalog"
	"github.com/enchantedlib/lending-service/internal/command"
	"github.com/enchantedlib/lending-service/internal/errs"
	"github.com/enchantedlib/lending-service/internal/events"
	"github.com/enchantedlib/lending-service/internal/fees"
	"github.com/enchantedlib/lending-service/internal/model"
	"github.com/enchantedlib/lending-service/internal/preservation"
	"github.com/enchantedlib/lending-service/internal/recommend"
	"github.com/enchantedlib/lending-service/internal/strategy"
)

// BorrowedBook joins a user's open loan with the book it refers to.
type BorrowedBook struct {
	Book       *model.Book `json:"book"`
	BorrowDate time.Time   `json:"borrowDate"`
	DueDate    time.Time   `json:"dueDate"`
}

// Availability describes whether a book can be checked out right now.
type Availability struct {
	Available bool       `json:"available"`
	Message   string     `json:"message"`
	DueDate   *time.Time `json:"dueDate,omitempty"`
}

// OverdueBook joins an overdue record with its book, user and the late fee
// accrued so far.
type OverdueBook struct {
	Record      *model.LendingRecord `json:"record"`
	Book        *model.Book          `json:"book"`
	User        *model.User          `json:"user"`
	DaysOverdue int                  `json:"daysOverdue"`
	LateFee     float64              `json:"lateFee"`
}

// Option configures the library service.
type Option func(*Library)

// WithClock overrides the service time source.
func WithClock(now func() time.Time) Option {
	return func(l *Library) { l.now = now }
}

// WithStrategies routes checkouts through strategy selection instead of the
// flat lending-period path.
func WithStrategies() Option {
	return func(l *Library) { l.useStrategy = true }
}

// WithAccessControl attaches the permission oracle. When set, checkouts are
// additionally gated by the full access policy and decisions are audited.
func WithAccessControl(acl *access.Control) Option {
	return func(l *Library) { l.acl = acl }
}

// Library is the single entry point for lending operations. It owns the
// command invoker (and with it the undo history), fans domain events out
// through the event manager and delegates policy questions to the fee
// calculator, strategy layer and access control.
type Library struct {
	cat  catalog.Catalog
	inv  *command.Invoker
	calc *fees.Calculator
	evm  *events.Manager
	pres *preservation.Service
	rec  *recommend.Service
	acl  *access.Control
	log  *zap.Logger

	now         func() time.Time
	useStrategy bool
}

func NewLibrary(cat catalog.Catalog, evm *events.Manager, log *zap.Logger, opts ...Option) *Library {
	l := &Library{
		cat:  cat,
		inv:  command.NewInvoker(),
		calc: fees.NewCalculator(),
		evm:  evm,
		log:  log.Named("library"),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.pres = preservation.NewService(cat, evm, log)
	l.rec = recommend.NewService(cat, log)
	return l
}

// Preservation exposes the restoration subsystem.
func (l *Library) Preservation() *preservation.Service { return l.pres }

// Recommendations exposes the recommendation subsystem.
func (l *Library) Recommendations() *recommend.Service { return l.rec }

// RegisterUser stores a new user and announces the registration. Duplicate
// emails are rejected by the catalog.
func (l *Library) RegisterUser(ctx context.Context, user *model.User) (string, error) {
	id, err := l.cat.AddUser(ctx, user)
	if err != nil {
		return "", err
	}
	l.evm.UserRegistered(ctx, user)
	l.log.Info("user registered", zap.String("userId", id), zap.String("role", string(user.Role)))
	return id, nil
}

// Authenticate matches email and password and stamps the login time.
// Failures return ErrNotPermitted without revealing which part failed.
func (l *Library) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	user, err := l.cat.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.ErrNotPermitted
		}
		return nil, err
	}
	if user.Password != password {
		return nil, errs.ErrNotPermitted
	}
	user.RecordLogin(l.now())
	if err := l.cat.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// AddBook stores a book through the command layer so the insert can be
// undone, filing it under the named section when one is given.
func (l *Library) AddBook(ctx context.Context, book *model.Book, sectionName string) (command.Result, error) {
	res, err := l.inv.Execute(ctx, command.NewAddBook(l.cat, book, sectionName))
	if err != nil {
		return res, err
	}
	if res.OK {
		l.evm.BookAdded(ctx, book)
	}
	return res, nil
}

// SearchBooks passes the query through to the catalog.
func (l *Library) SearchBooks(ctx context.Context, q catalog.SearchQuery) ([]*model.Book, error) {
	return l.cat.SearchBooks(ctx, q)
}

// Checkout lends a book to a user through the command layer. Section access
// is verified first; the command then enforces availability, the borrowing
// limit, lendability and single-active-record exclusivity.
func (l *Library) Checkout(ctx context.Context, bookID, userID string) (command.Result, error) {
	user, err := l.cat.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return command.Result{Message: "User not found"}, nil
		}
		return command.Result{}, err
	}

	if section, err := l.cat.SectionOfBook(ctx, bookID); err == nil {
		allowed := user.CanAccessSection(section.Name)
		if allowed && l.acl != nil {
			allowed = l.acl.CanAccessSection(user, section.ID)
		}
		if l.acl != nil {
			l.acl.LogAttempt(userID, "section", section.ID, "checkout", allowed)
		}
		if !allowed {
			return command.Result{
				Message: fmt.Sprintf("User does not have permission to access the %s section", section.Name),
			}, nil
		}
	}

	var opts []command.Option
	opts = append(opts, command.WithClock(l.now))
	if l.useStrategy {
		opts = append(opts, command.WithStrategy())
	}

	res, err := l.inv.Execute(ctx, command.NewCheckout(l.cat, bookID, userID, opts...))
	if err != nil {
		return res, err
	}
	if res.OK {
		if book, berr := l.cat.GetBook(ctx, bookID); berr == nil {
			l.evm.BookBorrowed(ctx, book, user)
		}
	}
	return res, nil
}

// Return closes a loan through the command layer. conditionChanged reports
// damage and degrades the book's condition one step.
func (l *Library) Return(ctx context.Context, bookID, userID string, conditionChanged bool) (command.Result, error) {
	res, err := l.inv.Execute(ctx,
		command.NewReturn(l.cat, bookID, userID, conditionChanged, command.WithClock(l.now)))
	if err != nil {
		return res, err
	}
	if res.OK {
		book, berr := l.cat.GetBook(ctx, bookID)
		user, uerr := l.cat.GetUser(ctx, userID)
		if berr == nil && uerr == nil {
			l.evm.BookReturned(ctx, book, user)
		}
		if berr == nil && book.NeedsRestoration() {
			l.evm.BookNeedsRestoration(ctx, book)
		}
	}
	return res, nil
}

// UndoLast reverses the most recent successful command.
func (l *Library) UndoLast(ctx context.Context) (command.Result, error) {
	return l.inv.UndoLast(ctx)
}

// HistorySize reports how many commands can still be undone.
func (l *Library) HistorySize() int { return l.inv.HistorySize() }

// RenewLoan extends an active loan by the book's base lending period when
// the pairing's strategy allows another renewal.
func (l *Library) RenewLoan(ctx context.Context, recordID string) (command.Result, error) {
	record, err := l.cat.GetLendingRecord(ctx, recordID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return command.Result{Message: "Lending record not found"}, nil
		}
		return command.Result{}, err
	}
	book, err := l.cat.GetBook(ctx, record.BookID)
	if err != nil {
		return command.Result{}, err
	}
	user, err := l.cat.GetUser(ctx, record.UserID)
	if err != nil {
		return command.Result{}, err
	}

	now := l.now()
	st := strategy.Select(book, user)
	if !st.CanRenew(record, book, user, now) {
		return command.Result{Message: "This loan cannot be renewed"}, nil
	}
	if !record.Renew(book.LendingPeriodDays(), now) {
		return command.Result{Message: "This loan cannot be renewed"}, nil
	}
	if err := l.cat.UpdateLendingRecord(ctx, record); err != nil {
		return command.Result{}, err
	}

	return command.Result{
		OK:      true,
		Message: "Loan renewed successfully",
		Record:  record,
		DueDate: record.DueDate,
	}, nil
}

// BorrowedBooks lists the user's open loans joined with their books.
func (l *Library) BorrowedBooks(ctx context.Context, userID string) ([]BorrowedBook, error) {
	user, err := l.cat.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var out []BorrowedBook
	for _, loan := range user.BorrowedBooks {
		if loan.Returned {
			continue
		}
		book, err := l.cat.GetBook(ctx, loan.BookID)
		if err != nil {
			continue
		}
		out = append(out, BorrowedBook{
			Book:       book,
			BorrowDate: loan.BorrowDate,
			DueDate:    loan.DueDate,
		})
	}
	return out, nil
}

// Availability reports whether a book can be borrowed, and when it is out,
// who has it and until when.
func (l *Library) Availability(ctx context.Context, bookID string) (Availability, error) {
	book, err := l.cat.GetBook(ctx, bookID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return Availability{Message: "Book not found"}, nil
		}
		return Availability{}, err
	}

	if book.Available > 0 {
		return Availability{
			Available: true,
			Message:   fmt.Sprintf("Book is available (%d of %d copies available)", book.Available, book.Quantity),
		}, nil
	}

	if book.Status == model.StatusBorrowed {
		records, err := l.cat.GetBookLendingRecords(ctx, bookID)
		if err != nil {
			return Availability{}, err
		}
		for _, r := range records {
			if !r.IsOpen() {
				continue
			}
			holder := "unknown user"
			if user, uerr := l.cat.GetUser(ctx, r.UserID); uerr == nil {
				holder = user.Name
			}
			return Availability{
				Message: fmt.Sprintf("Book is currently borrowed by %s", holder),
				DueDate: r.DueDate,
			}, nil
		}
	}

	return Availability{
		Message: fmt.Sprintf("Book is not available (status: %s)", book.Status),
	}, nil
}

// OverdueBooks joins every overdue record with its book, user and the late
// fee accrued up to now.
func (l *Library) OverdueBooks(ctx context.Context) ([]OverdueBook, error) {
	now := l.now()
	records, err := l.cat.GetOverdueRecords(ctx, now)
	if err != nil {
		return nil, err
	}

	var out []OverdueBook
	for _, record := range records {
		book, berr := l.cat.GetBook(ctx, record.BookID)
		user, uerr := l.cat.GetUser(ctx, record.UserID)
		if berr != nil || uerr != nil {
			continue
		}
		days := record.DaysOverdue(now)
		out = append(out, OverdueBook{
			Record:      record,
			Book:        book,
			User:        user,
			DaysOverdue: days,
			LateFee:     book.LateFee(days),
		})
	}
	return out, nil
}

// TotalFees computes the full fee breakdown for a closed or open loan.
// originalCondition is the book's condition at checkout time.
func (l *Library) TotalFees(ctx context.Context, recordID string, originalCondition model.Condition) (fees.Breakdown, error) {
	record, err := l.cat.GetLendingRecord(ctx, recordID)
	if err != nil {
		return fees.Breakdown{}, err
	}
	book, err := l.cat.GetBook(ctx, record.BookID)
	if err != nil {
		return fees.Breakdown{}, err
	}
	return l.calc.TotalFees(record, book, originalCondition, l.now()), nil
}

// MembershipFee quotes a guest membership with duration discounts and the
// academic discount when the payer is a scholar.
func (l *Library) MembershipFee(ctx context.Context, userID string, membership model.MembershipType, months int) (float64, error) {
	fee, err := l.calc.MembershipFee(membership, months)
	if err != nil {
		return 0, err
	}
	user, err := l.cat.GetUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return l.calc.AcademicDiscount(fee, user), nil
}
