package catalog

import (
	"context"
	"time"

	"github.com/enchantedlib/lending-service/internal/model"
)

// Section groups books under a named shelf with an access level
// (0=public, 1=restricted, 2=highly restricted).
type Section struct {
	ID          string   `json:"id" db:"section_id"`
	Name        string   `json:"name" db:"name"`
	Description string   `json:"description" db:"description"`
	AccessLevel int      `json:"accessLevel" db:"access_level"`
	BookIDs     []string `json:"bookIds"`
}

// SearchQuery filters books; zero-value fields are ignored.
type SearchQuery struct {
	Title  string
	Author string
	Year   int
	Status model.BookStatus
}

// Catalog is the canonical store of books, users, lending records and
// sections. It is constructed explicitly and passed by reference; there is
// no process-wide instance. All other components hold ids and fetch through
// the catalog rather than caching entities across operations.
type Catalog interface {
	AddBook(ctx context.Context, book *model.Book) (string, error)
	GetBook(ctx context.Context, bookID string) (*model.Book, error)
	UpdateBook(ctx context.Context, book *model.Book) error
	RemoveBook(ctx context.Context, bookID string) error
	ListBooks(ctx context.Context) ([]*model.Book, error)
	SearchBooks(ctx context.Context, q SearchQuery) ([]*model.Book, error)

	AddUser(ctx context.Context, user *model.User) (string, error)
	GetUser(ctx context.Context, userID string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateUser(ctx context.Context, user *model.User) error
	RemoveUser(ctx context.Context, userID string) error

	AddLendingRecord(ctx context.Context, record *model.LendingRecord) (string, error)
	GetLendingRecord(ctx context.Context, recordID string) (*model.LendingRecord, error)
	UpdateLendingRecord(ctx context.Context, record *model.LendingRecord) error
	GetUserLendingRecords(ctx context.Context, userID string) ([]*model.LendingRecord, error)
	GetBookLendingRecords(ctx context.Context, bookID string) ([]*model.LendingRecord, error)
	GetOverdueRecords(ctx context.Context, now time.Time) ([]*model.LendingRecord, error)

	AddSection(ctx context.Context, name, description string, accessLevel int) (string, error)
	GetSection(ctx context.Context, sectionID string) (*Section, error)
	GetSectionByName(ctx context.Context, name string) (*Section, error)
	AddBookToSection(ctx context.Context, bookID, sectionID string) error
	SectionOfBook(ctx context.Context, bookID string) (*Section, error)
}
