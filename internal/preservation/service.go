package preservation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/enchantedlib/lending-service/internal/catalog"
	"github.com/enchantedlib/lending-service/internal/errs"
	"github.com/enchantedlib/lending-service/internal/events"
	"github.com/enchantedlib/lending-service/internal/model"
)

// QueueItem is one entry of the restoration backlog.
type QueueItem struct {
	BookID              string          `json:"bookId"`
	Title               string          `json:"title"`
	Kind                model.BookKind  `json:"kind"`
	Condition           model.Condition `json:"condition"`
	Priority            int             `json:"priority"` // 0..10
	Notes               string          `json:"notes,omitempty"`
	AddedDate           time.Time       `json:"addedDate"`
	EstimatedDuration   int             `json:"estimatedDuration"` // days
	EstimatedCompletion time.Time       `json:"estimatedCompletion"`
}

// HistoryItem records one completed restoration.
type HistoryItem struct {
	BookID             string          `json:"bookId"`
	Title              string          `json:"title"`
	Kind               model.BookKind  `json:"kind"`
	OriginalCondition  model.Condition `json:"originalCondition"`
	NewCondition       model.Condition `json:"newCondition"`
	StartDate          time.Time       `json:"startDate"`
	CompletionDate     time.Time       `json:"completionDate"`
	DurationDays       int             `json:"durationDays"`
	Notes              string          `json:"notes,omitempty"`
}

// Recommendation scores a book for restoration.
type Recommendation struct {
	Book     *model.Book `json:"book"`
	Priority int         `json:"priority"`
	Reason   string      `json:"reason"`
}

// SortBy names a queue ordering.
type SortBy string

const (
	SortByPriority            SortBy = "priority"
	SortByAddedDate           SortBy = "added_date"
	SortByEstimatedCompletion SortBy = "estimated_completion"
)

var restorationDurations = map[model.BookKind]int{
	model.KindGeneral: 7,
	model.KindRare:    14,
	model.KindAncient: 30,
}

var typeFactor = map[model.BookKind]int{
	model.KindGeneral: 1,
	model.KindRare:    2,
	model.KindAncient: 3,
}

var conditionFactor = map[model.Condition]int{
	model.ConditionExcellent: 0,
	model.ConditionGood:      1,
	model.ConditionFair:      2,
	model.ConditionPoor:      3,
	model.ConditionCritical:  4,
}

// Service schedules and tracks book restoration work.
type Service struct {
	cat catalog.Catalog
	evm *events.Manager
	log *zap.Logger

	queue     []QueueItem
	history   []HistoryItem
	records   []*Record
	schedules []*Schedule
	now       func() time.Time
}

func NewService(cat catalog.Catalog, evm *events.Manager, log *zap.Logger) *Service {
	return &Service{
		cat: cat,
		evm: evm,
		log: log.Named("preservation"),
		now: time.Now,
	}
}

// NeedsRestoration applies the book's variant threshold.
func (s *Service) NeedsRestoration(book *model.Book) bool {
	return book.NeedsRestoration()
}

// Enqueue adds a book to the restoration queue and pulls it from
// circulation. Books already queued, or in a status other than Available or
// Restoration, are rejected.
func (s *Service) Enqueue(ctx context.Context, bookID string, priority int, notes string) (QueueItem, error) {
	for _, item := range s.queue {
		if item.BookID == bookID {
			return QueueItem{}, errs.ErrAlreadyQueued
		}
	}

	book, err := s.cat.GetBook(ctx, bookID)
	if err != nil {
		return QueueItem{}, err
	}
	if book.Status != model.StatusAvailable && book.Status != model.StatusRestoration {
		return QueueItem{}, errors.Wrapf(errs.ErrNotPermitted,
			"book is not available for restoration (current status: %s)", book.Status)
	}

	duration := restorationDurations[book.Kind]
	added := s.now()
	item := QueueItem{
		BookID:              bookID,
		Title:               book.Title,
		Kind:                book.Kind,
		Condition:           book.Condition,
		Priority:            priority,
		Notes:               notes,
		AddedDate:           added,
		EstimatedDuration:   duration,
		EstimatedCompletion: added.AddDate(0, 0, duration),
	}
	s.queue = append(s.queue, item)

	book.Status = model.StatusRestoration
	if err := s.cat.UpdateBook(ctx, book); err != nil {
		return QueueItem{}, err
	}

	if s.evm != nil {
		s.evm.BookNeedsRestoration(ctx, book)
	}

	s.log.Info("book queued for restoration",
		zap.String("bookId", bookID), zap.Int("priority", priority))
	return item, nil
}

// Dequeue removes a book from the queue without completing restoration.
func (s *Service) Dequeue(bookID string) (QueueItem, error) {
	for i, item := range s.queue {
		if item.BookID == bookID {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return item, nil
		}
	}
	return QueueItem{}, errs.ErrNotFound
}

// Queue returns the backlog in the requested order. Priority ordering is
// descending priority, ties broken by added date; the sort is stable.
func (s *Service) Queue(sortBy SortBy) []QueueItem {
	out := append([]QueueItem(nil), s.queue...)
	switch sortBy {
	case SortByPriority:
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].Priority != out[j].Priority {
				return out[i].Priority > out[j].Priority
			}
			return out[i].AddedDate.Before(out[j].AddedDate)
		})
	case SortByAddedDate:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].AddedDate.Before(out[j].AddedDate)
		})
	case SortByEstimatedCompletion:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].EstimatedCompletion.Before(out[j].EstimatedCompletion)
		})
	}
	return out
}

// CompleteRestoration removes the book from the queue, records history and
// returns the book to circulation in its new condition. The book's status
// goes back to Available here rather than in a separate follow-up call.
func (s *Service) CompleteRestoration(ctx context.Context, bookID string, newCondition model.Condition, notes string) (HistoryItem, error) {
	var (
		item  QueueItem
		found bool
	)
	for i, q := range s.queue {
		if q.BookID == bookID {
			item = q
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		return HistoryItem{}, errs.ErrNotFound
	}

	if newCondition == "" {
		newCondition = model.ConditionGood
	}
	if !newCondition.Valid() {
		return HistoryItem{}, errs.ErrValidation
	}

	completed := s.now()
	hist := HistoryItem{
		BookID:            bookID,
		Title:             item.Title,
		Kind:              item.Kind,
		OriginalCondition: item.Condition,
		NewCondition:      newCondition,
		StartDate:         item.AddedDate,
		CompletionDate:    completed,
		DurationDays:      int(completed.Sub(item.AddedDate).Hours() / 24),
		Notes:             notes,
	}
	if hist.Notes == "" {
		hist.Notes = item.Notes
	}
	s.history = append(s.history, hist)

	book, err := s.cat.GetBook(ctx, bookID)
	if err != nil {
		return HistoryItem{}, err
	}
	book.Condition = newCondition
	if book.Status == model.StatusRestoration {
		book.Status = model.StatusAvailable
	}
	if err := s.cat.UpdateBook(ctx, book); err != nil {
		return HistoryItem{}, err
	}

	if s.evm != nil {
		s.evm.BookRestored(ctx, book)
	}
	return hist, nil
}

// History filters completed restorations by book and completion window.
// Zero-value filters are ignored. Newest first.
func (s *Service) History(bookID string, from, to time.Time) []HistoryItem {
	var out []HistoryItem
	for _, h := range s.history {
		if bookID != "" && h.BookID != bookID {
			continue
		}
		if !from.IsZero() && h.CompletionDate.Before(from) {
			continue
		}
		if !to.IsZero() && h.CompletionDate.After(to) {
			continue
		}
		out = append(out, h)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CompletionDate.After(out[j].CompletionDate)
	})
	return out
}

// BooksNeedingRestoration scans the catalog for books past their threshold
// that are not already under restoration.
func (s *Service) BooksNeedingRestoration(ctx context.Context) ([]*model.Book, error) {
	books, err := s.cat.ListBooks(ctx)
	if err != nil {
		return nil, err
	}
	var out []*model.Book
	for _, b := range books {
		if b.NeedsRestoration() && b.Status != model.StatusRestoration {
			out = append(out, b)
		}
	}
	return out, nil
}

// Recommendations scores every circulating book as
// min(10, typeFactor * conditionFactor); zero-priority books are skipped.
func (s *Service) Recommendations(ctx context.Context) ([]Recommendation, error) {
	books, err := s.cat.ListBooks(ctx)
	if err != nil {
		return nil, err
	}

	var out []Recommendation
	for _, b := range books {
		if b.Status == model.StatusRestoration {
			continue
		}
		priority := typeFactor[b.Kind] * conditionFactor[b.Condition]
		if priority > 10 {
			priority = 10
		}
		if priority == 0 {
			continue
		}
		out = append(out, Recommendation{
			Book:     b,
			Priority: priority,
			Reason:   fmt.Sprintf("%s book in %s condition", b.Kind, b.Condition),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out, nil
}
