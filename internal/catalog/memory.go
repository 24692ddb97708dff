package catalog

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/enchantedlib/lending-service/internal/errs"
	"github.com/enchantedlib/lending-service/internal/model"
)

// searchEntry records one search for diagnostics.
type searchEntry struct {
	At      time.Time
	Query   SearchQuery
	Results int
}

// Memory is the in-memory catalog. A single RWMutex serializes access;
// entities are deep-copied on the way in and out so callers never share
// state with the store.
type Memory struct {
	mu sync.RWMutex

	books    map[string]*model.Book
	users    map[string]*model.User
	records  map[string]*model.LendingRecord
	sections map[string]*Section

	lastUpdated   time.Time
	searchHistory []searchEntry

	log *zap.Logger
}

var _ Catalog = (*Memory)(nil)

func NewMemory(log *zap.Logger) *Memory {
	return &Memory{
		books:       make(map[string]*model.Book),
		users:       make(map[string]*model.User),
		records:     make(map[string]*model.LendingRecord),
		sections:    make(map[string]*Section),
		lastUpdated: time.Now(),
		log:         log.Named("catalog"),
	}
}

func (m *Memory) touch() { m.lastUpdated = time.Now() }

// LastUpdated reports the time of the most recent mutation.
func (m *Memory) LastUpdated() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastUpdated
}

func copyBook(b *model.Book) *model.Book {
	cp := *b
	if b.General != nil {
		g := *b.General
		cp.General = &g
	}
	if b.Rare != nil {
		r := *b.Rare
		cp.Rare = &r
	}
	if b.Ancient != nil {
		a := *b.Ancient
		a.PreservationRequirements = append([]string(nil), b.Ancient.PreservationRequirements...)
		cp.Ancient = &a
	}
	cp.BorrowingHistory = append([]model.Borrowing(nil), b.BorrowingHistory...)
	return &cp
}

func copyUser(u *model.User) *model.User {
	cp := *u
	if u.Librarian != nil {
		l := *u.Librarian
		cp.Librarian = &l
	}
	if u.Scholar != nil {
		s := *u.Scholar
		s.ResearchTopics = append([]string(nil), u.Scholar.ResearchTopics...)
		cp.Scholar = &s
	}
	if u.Guest != nil {
		g := *u.Guest
		cp.Guest = &g
	}
	cp.BorrowedBooks = append([]model.Loan(nil), u.BorrowedBooks...)
	cp.ReadingHistory = append([]model.Loan(nil), u.ReadingHistory...)
	return &cp
}

func copyRecord(r *model.LendingRecord) *model.LendingRecord {
	cp := *r
	return &cp
}

func copySection(s *Section) *Section {
	cp := *s
	cp.BookIDs = append([]string(nil), s.BookIDs...)
	return &cp
}

func (m *Memory) AddBook(_ context.Context, book *model.Book) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.books[book.ID]; ok {
		return "", errs.ErrAlreadyExists
	}
	m.books[book.ID] = copyBook(book)
	m.touch()
	return book.ID, nil
}

func (m *Memory) GetBook(_ context.Context, bookID string) (*model.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.books[bookID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return copyBook(b), nil
}

func (m *Memory) UpdateBook(_ context.Context, book *model.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.books[book.ID]; !ok {
		return errs.ErrNotFound
	}
	m.books[book.ID] = copyBook(book)
	m.touch()
	return nil
}

func (m *Memory) RemoveBook(_ context.Context, bookID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.books[bookID]; !ok {
		return errs.ErrNotFound
	}
	delete(m.books, bookID)
	m.touch()
	return nil
}

func (m *Memory) ListBooks(_ context.Context) ([]*model.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Book, 0, len(m.books))
	for _, b := range m.books {
		out = append(out, copyBook(b))
	}
	return out, nil
}

func (m *Memory) SearchBooks(_ context.Context, q SearchQuery) ([]*model.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Book
	for _, b := range m.books {
		if q.Title != "" && !strings.Contains(strings.ToLower(b.Title), strings.ToLower(q.Title)) {
			continue
		}
		if q.Author != "" && !strings.Contains(strings.ToLower(b.Author), strings.ToLower(q.Author)) {
			continue
		}
		if q.Year != 0 && b.YearPublished != q.Year {
			continue
		}
		if q.Status != "" && b.Status != q.Status {
			continue
		}
		out = append(out, copyBook(b))
	}
	m.searchHistory = append(m.searchHistory, searchEntry{At: time.Now(), Query: q, Results: len(out)})
	return out, nil
}

func (m *Memory) AddUser(_ context.Context, user *model.User) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; ok {
		return "", errs.ErrAlreadyExists
	}
	for _, u := range m.users {
		if u.Email == user.Email {
			return "", errs.ErrAlreadyExists
		}
	}
	m.users[user.ID] = copyUser(user)
	m.touch()
	return user.ID, nil
}

func (m *Memory) GetUser(_ context.Context, userID string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return copyUser(u), nil
}

func (m *Memory) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, errs.ErrNotFound
}

func (m *Memory) UpdateUser(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return errs.ErrNotFound
	}
	m.users[user.ID] = copyUser(user)
	m.touch()
	return nil
}

func (m *Memory) RemoveUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userID]; !ok {
		return errs.ErrNotFound
	}
	delete(m.users, userID)
	m.touch()
	return nil
}

func (m *Memory) AddLendingRecord(_ context.Context, record *model.LendingRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[record.ID]; ok {
		return "", errs.ErrAlreadyExists
	}
	m.records[record.ID] = copyRecord(record)
	m.touch()
	return record.ID, nil
}

func (m *Memory) GetLendingRecord(_ context.Context, recordID string) (*model.LendingRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[recordID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return copyRecord(r), nil
}

func (m *Memory) UpdateLendingRecord(_ context.Context, record *model.LendingRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[record.ID]; !ok {
		return errs.ErrNotFound
	}
	m.records[record.ID] = copyRecord(record)
	m.touch()
	return nil
}

func (m *Memory) GetUserLendingRecords(_ context.Context, userID string) ([]*model.LendingRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.LendingRecord
	for _, r := range m.records {
		if r.UserID == userID {
			out = append(out, copyRecord(r))
		}
	}
	return out, nil
}

func (m *Memory) GetBookLendingRecords(_ context.Context, bookID string) ([]*model.LendingRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.LendingRecord
	for _, r := range m.records {
		if r.BookID == bookID {
			out = append(out, copyRecord(r))
		}
	}
	return out, nil
}

func (m *Memory) GetOverdueRecords(_ context.Context, now time.Time) ([]*model.LendingRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.LendingRecord
	for _, r := range m.records {
		if r.IsOverdue(now) {
			out = append(out, copyRecord(r))
		}
	}
	return out, nil
}

func (m *Memory) AddSection(_ context.Context, name, description string, accessLevel int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	m.sections[id] = &Section{
		ID:          id,
		Name:        name,
		Description: description,
		AccessLevel: accessLevel,
	}
	m.touch()
	return id, nil
}

func (m *Memory) GetSection(_ context.Context, sectionID string) (*Section, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sections[sectionID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return copySection(s), nil
}

func (m *Memory) GetSectionByName(_ context.Context, name string) (*Section, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sections {
		if strings.EqualFold(s.Name, name) {
			return copySection(s), nil
		}
	}
	return nil, errs.ErrNotFound
}

func (m *Memory) AddBookToSection(_ context.Context, bookID, sectionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.books[bookID]; !ok {
		return errs.ErrNotFound
	}
	s, ok := m.sections[sectionID]
	if !ok {
		return errs.ErrNotFound
	}
	for _, id := range s.BookIDs {
		if id == bookID {
			return nil
		}
	}
	s.BookIDs = append(s.BookIDs, bookID)
	m.touch()
	return nil
}

func (m *Memory) SectionOfBook(_ context.Context, bookID string) (*Section, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sections {
		for _, id := range s.BookIDs {
			if id == bookID {
				return copySection(s), nil
			}
		}
	}
	return nil, errs.ErrNotFound
}
