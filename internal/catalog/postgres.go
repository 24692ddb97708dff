package catalog

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/enchantedlib/lending-service/internal/errs"
	"github.com/enchantedlib/lending-service/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	booksTableName          = `books`
	usersTableName          = `users`
	lendingRecordsTableName = `lending_records`
	sectionsTableName       = `sections`
	sectionBooksTableName   = `section_books`
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Postgres is the durable Catalog. Variant-specific fields and embedded
// histories are stored as jsonb next to the flat columns.
type Postgres struct {
	db  *sqlx.DB
	log *zap.Logger
}

var _ Catalog = (*Postgres)(nil)

func NewPostgres(db *sqlx.DB, log *zap.Logger) (*Postgres, error) {
	return &Postgres{
		db:  db,
		log: log.Named("catalog"),
	}, nil
}

func mapWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return errs.ErrAlreadyExists
	}
	return err
}

type bookRow struct {
	BookID           string    `db:"book_id"`
	Kind             string    `db:"kind"`
	Title            string    `db:"title"`
	Author           string    `db:"author"`
	YearPublished    int       `db:"year_published"`
	ISBN             string    `db:"isbn"`
	Condition        string    `db:"condition"`
	Status           string    `db:"status"`
	Location         string    `db:"location"`
	Quantity         int       `db:"quantity"`
	Available        int       `db:"available_quantity"`
	AcquisitionDate  time.Time `db:"acquisition_date"`
	Info             []byte    `db:"info"`
	BorrowingHistory []byte    `db:"borrowing_history"`
}

type bookInfo struct {
	General *model.GeneralInfo `json:"general,omitempty"`
	Rare    *model.RareInfo    `json:"rare,omitempty"`
	Ancient *model.AncientInfo `json:"ancient,omitempty"`
}

func (r bookRow) toModel() (*model.Book, error) {
	var info bookInfo
	if len(r.Info) > 0 {
		if err := json.Unmarshal(r.Info, &info); err != nil {
			return nil, err
		}
	}
	var history []model.Borrowing
	if len(r.BorrowingHistory) > 0 {
		if err := json.Unmarshal(r.BorrowingHistory, &history); err != nil {
			return nil, err
		}
	}
	return &model.Book{
		ID:               r.BookID,
		Kind:             model.BookKind(r.Kind),
		Title:            r.Title,
		Author:           r.Author,
		YearPublished:    r.YearPublished,
		ISBN:             r.ISBN,
		Condition:        model.Condition(r.Condition),
		Status:           model.BookStatus(r.Status),
		Location:         r.Location,
		Quantity:         r.Quantity,
		Available:        r.Available,
		AcquisitionDate:  r.AcquisitionDate,
		General:          info.General,
		Rare:             info.Rare,
		Ancient:          info.Ancient,
		BorrowingHistory: history,
	}, nil
}

func bookValues(book *model.Book) (info, history []byte, err error) {
	info, err = json.Marshal(bookInfo{
		General: book.General,
		Rare:    book.Rare,
		Ancient: book.Ancient,
	})
	if err != nil {
		return nil, nil, err
	}
	if book.BorrowingHistory == nil {
		history = []byte(`[]`)
	} else if history, err = json.Marshal(book.BorrowingHistory); err != nil {
		return nil, nil, err
	}
	return info, history, nil
}

var bookColumns = []string{
	"book_id", "kind", "title", "author", "year_published", "isbn",
	"condition", "status", "location", "quantity", "available_quantity",
	"acquisition_date", "info", "borrowing_history",
}

func (p *Postgres) AddBook(ctx context.Context, book *model.Book) (string, error) {
	if book.ID == "" {
		book.ID = uuid.NewString()
	}
	if book.AcquisitionDate.IsZero() {
		book.AcquisitionDate = time.Now()
	}
	info, history, err := bookValues(book)
	if err != nil {
		return "", err
	}

	query, args, err := qb.Insert(booksTableName).
		Columns(bookColumns...).
		Values(book.ID, string(book.Kind), book.Title, book.Author, book.YearPublished, book.ISBN,
			string(book.Condition), string(book.Status), book.Location, book.Quantity, book.Available,
			book.AcquisitionDate, info, history).
		ToSql()
	if err != nil {
		return "", err
	}
	if _, err := p.db.ExecContext(ctx, query, args...); err != nil {
		return "", mapWriteErr(err)
	}
	return book.ID, nil
}

func (p *Postgres) GetBook(ctx context.Context, bookID string) (*model.Book, error) {
	query, args, err := qb.Select(bookColumns...).
		From(booksTableName).
		Where(sq.Eq{"book_id": bookID}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var row bookRow
	if err := p.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return row.toModel()
}

func (p *Postgres) UpdateBook(ctx context.Context, book *model.Book) error {
	info, history, err := bookValues(book)
	if err != nil {
		return err
	}

	query, args, err := qb.Update(booksTableName).
		Set("kind", string(book.Kind)).
		Set("title", book.Title).
		Set("author", book.Author).
		Set("year_published", book.YearPublished).
		Set("isbn", book.ISBN).
		Set("condition", string(book.Condition)).
		Set("status", string(book.Status)).
		Set("location", book.Location).
		Set("quantity", book.Quantity).
		Set("available_quantity", book.Available).
		Set("info", info).
		Set("borrowing_history", history).
		Where(sq.Eq{"book_id": book.ID}).
		ToSql()
	if err != nil {
		return err
	}

	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck
		return errs.ErrNotFound
	}
	return nil
}

func (p *Postgres) RemoveBook(ctx context.Context, bookID string) error {
	query, args, err := qb.Delete(booksTableName).
		Where(sq.Eq{"book_id": bookID}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck
		return errs.ErrNotFound
	}
	return nil
}

func (p *Postgres) selectBooks(ctx context.Context, b sq.SelectBuilder) ([]*model.Book, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	var rows []bookRow
	if err := p.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	books := make([]*model.Book, 0, len(rows))
	for _, row := range rows {
		book, err := row.toModel()
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	return books, nil
}

func (p *Postgres) ListBooks(ctx context.Context) ([]*model.Book, error) {
	return p.selectBooks(ctx, qb.Select(bookColumns...).
		From(booksTableName).
		OrderBy("title"))
}

func (p *Postgres) SearchBooks(ctx context.Context, q SearchQuery) ([]*model.Book, error) {
	b := qb.Select(bookColumns...).From(booksTableName)
	if q.Title != "" {
		b = b.Where(sq.ILike{"title": "%" + q.Title + "%"})
	}
	if q.Author != "" {
		b = b.Where(sq.ILike{"author": "%" + q.Author + "%"})
	}
	if q.Year != 0 {
		b = b.Where(sq.Eq{"year_published": q.Year})
	}
	if q.Status != "" {
		b = b.Where(sq.Eq{"status": string(q.Status)})
	}
	return p.selectBooks(ctx, b.OrderBy("title"))
}

type userRow struct {
	UserID           string     `db:"user_id"`
	Role             string     `db:"role"`
	Name             string     `db:"name"`
	Email            string     `db:"email"`
	Password         string     `db:"password"`
	RegistrationDate time.Time  `db:"registration_date"`
	LastLogin        *time.Time `db:"last_login"`
	Active           bool       `db:"active"`
	Info             []byte     `db:"info"`
	BorrowedBooks    []byte     `db:"borrowed_books"`
	ReadingHistory   []byte     `db:"reading_history"`
}

type userInfo struct {
	Librarian *model.LibrarianInfo `json:"librarian,omitempty"`
	Scholar   *model.ScholarInfo   `json:"scholar,omitempty"`
	Guest     *model.GuestInfo     `json:"guest,omitempty"`
}

func (r userRow) toModel() (*model.User, error) {
	var info userInfo
	if len(r.Info) > 0 {
		if err := json.Unmarshal(r.Info, &info); err != nil {
			return nil, err
		}
	}
	var borrowed, history []model.Loan
	if len(r.BorrowedBooks) > 0 {
		if err := json.Unmarshal(r.BorrowedBooks, &borrowed); err != nil {
			return nil, err
		}
	}
	if len(r.ReadingHistory) > 0 {
		if err := json.Unmarshal(r.ReadingHistory, &history); err != nil {
			return nil, err
		}
	}
	return &model.User{
		ID:               r.UserID,
		Role:             model.UserRole(r.Role),
		Name:             r.Name,
		Email:            r.Email,
		Password:         r.Password,
		RegistrationDate: r.RegistrationDate,
		LastLogin:        r.LastLogin,
		Active:           r.Active,
		Librarian:        info.Librarian,
		Scholar:          info.Scholar,
		Guest:            info.Guest,
		BorrowedBooks:    borrowed,
		ReadingHistory:   history,
	}, nil
}

func userValues(user *model.User) (info, borrowed, history []byte, err error) {
	info, err = json.Marshal(userInfo{
		Librarian: user.Librarian,
		Scholar:   user.Scholar,
		Guest:     user.Guest,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	if user.BorrowedBooks == nil {
		borrowed = []byte(`[]`)
	} else if borrowed, err = json.Marshal(user.BorrowedBooks); err != nil {
		return nil, nil, nil, err
	}
	if user.ReadingHistory == nil {
		history = []byte(`[]`)
	} else if history, err = json.Marshal(user.ReadingHistory); err != nil {
		return nil, nil, nil, err
	}
	return info, borrowed, history, nil
}

var userColumns = []string{
	"user_id", "role", "name", "email", "password", "registration_date",
	"last_login", "active", "info", "borrowed_books", "reading_history",
}

func (p *Postgres) AddUser(ctx context.Context, user *model.User) (string, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.RegistrationDate.IsZero() {
		user.RegistrationDate = time.Now()
	}
	info, borrowed, history, err := userValues(user)
	if err != nil {
		return "", err
	}

	query, args, err := qb.Insert(usersTableName).
		Columns(userColumns...).
		Values(user.ID, string(user.Role), user.Name, user.Email, user.Password,
			user.RegistrationDate, user.LastLogin, user.Active, info, borrowed, history).
		ToSql()
	if err != nil {
		return "", err
	}
	if _, err := p.db.ExecContext(ctx, query, args...); err != nil {
		return "", mapWriteErr(err)
	}
	return user.ID, nil
}

func (p *Postgres) getUserWhere(ctx context.Context, pred sq.Eq) (*model.User, error) {
	query, args, err := qb.Select(userColumns...).
		From(usersTableName).
		Where(pred).
		ToSql()
	if err != nil {
		return nil, err
	}

	var row userRow
	if err := p.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return row.toModel()
}

func (p *Postgres) GetUser(ctx context.Context, userID string) (*model.User, error) {
	return p.getUserWhere(ctx, sq.Eq{"user_id": userID})
}

func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return p.getUserWhere(ctx, sq.Eq{"email": email})
}

func (p *Postgres) UpdateUser(ctx context.Context, user *model.User) error {
	info, borrowed, history, err := userValues(user)
	if err != nil {
		return err
	}

	query, args, err := qb.Update(usersTableName).
		Set("role", string(user.Role)).
		Set("name", user.Name).
		Set("email", user.Email).
		Set("password", user.Password).
		Set("last_login", user.LastLogin).
		Set("active", user.Active).
		Set("info", info).
		Set("borrowed_books", borrowed).
		Set("reading_history", history).
		Where(sq.Eq{"user_id": user.ID}).
		ToSql()
	if err != nil {
		return err
	}

	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapWriteErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck
		return errs.ErrNotFound
	}
	return nil
}

func (p *Postgres) RemoveUser(ctx context.Context, userID string) error {
	query, args, err := qb.Delete(usersTableName).
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck
		return errs.ErrNotFound
	}
	return nil
}

var recordColumns = []string{
	"record_id", "book_id", "user_id", "checkout_date", "due_date",
	"return_date", "status", "renewal_count", "late_fee", "notes",
}

func (p *Postgres) AddLendingRecord(ctx context.Context, record *model.LendingRecord) (string, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	query, args, err := qb.Insert(lendingRecordsTableName).
		Columns(recordColumns...).
		Values(record.ID, record.BookID, record.UserID, record.CheckoutDate, record.DueDate,
			record.ReturnDate, string(record.Status), record.RenewalCount, record.LateFee, record.Notes).
		ToSql()
	if err != nil {
		return "", err
	}
	if _, err := p.db.ExecContext(ctx, query, args...); err != nil {
		return "", mapWriteErr(err)
	}
	return record.ID, nil
}

func (p *Postgres) GetLendingRecord(ctx context.Context, recordID string) (*model.LendingRecord, error) {
	query, args, err := qb.Select(recordColumns...).
		From(lendingRecordsTableName).
		Where(sq.Eq{"record_id": recordID}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var record model.LendingRecord
	if err := p.db.GetContext(ctx, &record, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (p *Postgres) UpdateLendingRecord(ctx context.Context, record *model.LendingRecord) error {
	query, args, err := qb.Update(lendingRecordsTableName).
		Set("due_date", record.DueDate).
		Set("return_date", record.ReturnDate).
		Set("status", string(record.Status)).
		Set("renewal_count", record.RenewalCount).
		Set("late_fee", record.LateFee).
		Set("notes", record.Notes).
		Where(sq.Eq{"record_id": record.ID}).
		ToSql()
	if err != nil {
		return err
	}

	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck
		return errs.ErrNotFound
	}
	return nil
}

func (p *Postgres) selectRecords(ctx context.Context, b sq.SelectBuilder) ([]*model.LendingRecord, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	var records []*model.LendingRecord
	if err := p.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, err
	}
	return records, nil
}

func (p *Postgres) GetUserLendingRecords(ctx context.Context, userID string) ([]*model.LendingRecord, error) {
	return p.selectRecords(ctx, qb.Select(recordColumns...).
		From(lendingRecordsTableName).
		Where(sq.Eq{"user_id": userID}).
		OrderBy("checkout_date"))
}

func (p *Postgres) GetBookLendingRecords(ctx context.Context, bookID string) ([]*model.LendingRecord, error) {
	return p.selectRecords(ctx, qb.Select(recordColumns...).
		From(lendingRecordsTableName).
		Where(sq.Eq{"book_id": bookID}).
		OrderBy("checkout_date"))
}

func (p *Postgres) GetOverdueRecords(ctx context.Context, now time.Time) ([]*model.LendingRecord, error) {
	return p.selectRecords(ctx, qb.Select(recordColumns...).
		From(lendingRecordsTableName).
		Where(sq.Eq{"status": []string{string(model.LendingActive), string(model.LendingOverdue)}}).
		Where(sq.NotEq{"due_date": nil}).
		Where(sq.Lt{"due_date": now}).
		Where(sq.Eq{"return_date": nil}).
		OrderBy("due_date"))
}

type sectionRow struct {
	SectionID   string `db:"section_id"`
	Name        string `db:"name"`
	Description string `db:"description"`
	AccessLevel int    `db:"access_level"`
}

func (p *Postgres) AddSection(ctx context.Context, name, description string, accessLevel int) (string, error) {
	id := uuid.NewString()
	query, args, err := qb.Insert(sectionsTableName).
		Columns("section_id", "name", "description", "access_level").
		Values(id, name, description, accessLevel).
		ToSql()
	if err != nil {
		return "", err
	}
	if _, err := p.db.ExecContext(ctx, query, args...); err != nil {
		return "", mapWriteErr(err)
	}
	return id, nil
}

func (p *Postgres) getSectionWhere(ctx context.Context, pred sq.Eq) (*Section, error) {
	query, args, err := qb.Select("section_id", "name", "description", "access_level").
		From(sectionsTableName).
		Where(pred).
		ToSql()
	if err != nil {
		return nil, err
	}

	var row sectionRow
	if err := p.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	section := &Section{
		ID:          row.SectionID,
		Name:        row.Name,
		Description: row.Description,
		AccessLevel: row.AccessLevel,
	}

	linkQuery, linkArgs, err := qb.Select("book_id").
		From(sectionBooksTableName).
		Where(sq.Eq{"section_id": section.ID}).
		ToSql()
	if err != nil {
		return nil, err
	}
	if err := p.db.SelectContext(ctx, &section.BookIDs, linkQuery, linkArgs...); err != nil {
		return nil, err
	}
	return section, nil
}

func (p *Postgres) GetSection(ctx context.Context, sectionID string) (*Section, error) {
	return p.getSectionWhere(ctx, sq.Eq{"section_id": sectionID})
}

func (p *Postgres) GetSectionByName(ctx context.Context, name string) (*Section, error) {
	return p.getSectionWhere(ctx, sq.Eq{"name": name})
}

func (p *Postgres) AddBookToSection(ctx context.Context, bookID, sectionID string) error {
	query, args, err := qb.Insert(sectionBooksTableName).
		Columns("section_id", "book_id").
		Values(sectionID, bookID).
		Suffix("ON CONFLICT DO NOTHING").
		ToSql()
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, query, args...)
	return err
}

func (p *Postgres) SectionOfBook(ctx context.Context, bookID string) (*Section, error) {
	query, args, err := qb.Select("section_id").
		From(sectionBooksTableName).
		Where(sq.Eq{"book_id": bookID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, err
	}

	var sectionID string
	if err := p.db.GetContext(ctx, &sectionID, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return p.GetSection(ctx, sectionID)
}
