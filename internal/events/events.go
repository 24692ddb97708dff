package events

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/enchantedlib/lending-service/internal/model"
)

type EventType string

const (
	BookAdded            EventType = "book_added"
	BookRemoved          EventType = "book_removed"
	BookBorrowed         EventType = "book_borrowed"
	BookReturned         EventType = "book_returned"
	BookOverdue          EventType = "book_overdue"
	BookNeedsRestoration EventType = "book_needs_restoration"
	BookRestored         EventType = "book_restored"
	UserRegistered       EventType = "user_registered"
)

// Event is a library domain notification.
type Event struct {
	Type EventType              `json:"type"`
	At   time.Time              `json:"at"`
	Data map[string]interface{} `json:"data"`
}

// Sink receives events. What a sink does with them (log, notify, publish,
// drop) is its own business; the core never depends on the outcome.
type Sink interface {
	Notify(ctx context.Context, ev Event) error
}

// Manager records events and fans them out to the attached sinks. A sink
// failure is logged and does not stop delivery to the remaining sinks.
type Manager struct {
	mu     sync.Mutex
	sinks  []Sink
	events []Event
	log    *zap.Logger
}

func NewManager(log *zap.Logger) *Manager {
	return &Manager{log: log.Named("events")}
}

func (m *Manager) Attach(sink Sink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinks = append(m.sinks, sink)
}

// Events returns a snapshot of everything emitted so far.
func (m *Manager) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

func (m *Manager) emit(ctx context.Context, typ EventType, data map[string]interface{}) {
	ev := Event{Type: typ, At: time.Now(), Data: data}

	m.mu.Lock()
	m.events = append(m.events, ev)
	sinks := append([]Sink(nil), m.sinks...)
	m.mu.Unlock()

	for _, sink := range sinks {
		if err := sink.Notify(ctx, ev); err != nil {
			m.log.Warn("event delivery failed", zap.String("type", string(typ)), zap.Error(err))
		}
	}
}

func (m *Manager) BookAdded(ctx context.Context, book *model.Book) {
	m.emit(ctx, BookAdded, map[string]interface{}{
		"bookId": book.ID,
		"title":  book.Title,
		"author": book.Author,
	})
}

func (m *Manager) BookRemoved(ctx context.Context, bookID, title string) {
	m.emit(ctx, BookRemoved, map[string]interface{}{
		"bookId": bookID,
		"title":  title,
	})
}

func (m *Manager) BookBorrowed(ctx context.Context, book *model.Book, user *model.User) {
	m.emit(ctx, BookBorrowed, map[string]interface{}{
		"bookId":   book.ID,
		"title":    book.Title,
		"userId":   user.ID,
		"userName": user.Name,
	})
}

func (m *Manager) BookReturned(ctx context.Context, book *model.Book, user *model.User) {
	m.emit(ctx, BookReturned, map[string]interface{}{
		"bookId":   book.ID,
		"title":    book.Title,
		"userId":   user.ID,
		"userName": user.Name,
	})
}

func (m *Manager) BookOverdue(ctx context.Context, book *model.Book, user *model.User, daysOverdue int) {
	m.emit(ctx, BookOverdue, map[string]interface{}{
		"bookId":      book.ID,
		"title":       book.Title,
		"userId":      user.ID,
		"userName":    user.Name,
		"daysOverdue": daysOverdue,
	})
}

func (m *Manager) BookNeedsRestoration(ctx context.Context, book *model.Book) {
	m.emit(ctx, BookNeedsRestoration, map[string]interface{}{
		"bookId":    book.ID,
		"title":     book.Title,
		"condition": string(book.Condition),
	})
}

func (m *Manager) BookRestored(ctx context.Context, book *model.Book) {
	m.emit(ctx, BookRestored, map[string]interface{}{
		"bookId":    book.ID,
		"title":     book.Title,
		"condition": string(book.Condition),
	})
}

func (m *Manager) UserRegistered(ctx context.Context, user *model.User) {
	m.emit(ctx, UserRegistered, map[string]interface{}{
		"userId": user.ID,
		"name":   user.Name,
		"role":   string(user.Role),
	})
}

// LogSink writes every event to the structured log.
type LogSink struct {
	log *zap.Logger
}

func NewLogSink(log *zap.Logger) *LogSink {
	return &LogSink{log: log.Named("event-log")}
}

func (s *LogSink) Notify(_ context.Context, ev Event) error {
	s.log.Info("library event",
		zap.String("type", string(ev.Type)),
		zap.Time("at", ev.At),
		zap.Any("data", ev.Data),
	)
	return nil
}
