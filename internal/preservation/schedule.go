package preservation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/enchantedlib/lending-service/internal/errs"
	"github.com/enchantedlib/lending-service/internal/model"
)

// Action is a kind of preservation work.
type Action string

const (
	ActionInspection      Action = "INSPECTION"
	ActionCleaning        Action = "CLEANING"
	ActionRepair          Action = "REPAIR"
	ActionRebinding       Action = "REBINDING"
	ActionRestoration     Action = "RESTORATION"
	ActionDigitization    Action = "DIGITIZATION"
	ActionDeacidification Action = "DEACIDIFICATION"
	ActionClimateControl  Action = "CLIMATE_CONTROL"
)

// Record documents one preservation action performed on a book.
type Record struct {
	ID              string          `json:"id"`
	BookID          string          `json:"bookId"`
	Action          Action          `json:"action"`
	PerformedBy     string          `json:"performedBy"`
	Timestamp       time.Time       `json:"timestamp"`
	Notes           string          `json:"notes,omitempty"`
	BeforeCondition model.Condition `json:"beforeCondition,omitempty"`
	AfterCondition  model.Condition `json:"afterCondition,omitempty"`
}

// Schedule plans a recurring preservation action.
type Schedule struct {
	ID            string     `json:"id"`
	BookID        string     `json:"bookId"`
	Action        Action     `json:"action"`
	IntervalDays  int        `json:"intervalDays"`
	LastPerformed *time.Time `json:"lastPerformed,omitempty"`
	NextDue       time.Time  `json:"nextDue"`
	Active        bool       `json:"active"`
}

// IsDue reports whether the scheduled action should run now.
func (s *Schedule) IsDue(now time.Time) bool {
	return s.Active && !now.Before(s.NextDue)
}

func (s *Schedule) recalc(now time.Time) {
	if s.LastPerformed != nil {
		s.NextDue = s.LastPerformed.AddDate(0, 0, s.IntervalDays)
	} else {
		s.NextDue = now.AddDate(0, 0, s.IntervalDays)
	}
}

// ActionAdvice suggests one preservation action with urgency.
type ActionAdvice struct {
	Action   Action `json:"action"`
	Interval int    `json:"interval"` // days, 0 = one-off
	Priority string `json:"priority"`
	Reason   string `json:"reason"`
}

// AddRecord opens a preservation record for a book, capturing its condition
// before the work starts.
func (s *Service) AddRecord(ctx context.Context, bookID string, action Action, performedBy, notes string) (*Record, error) {
	rec := &Record{
		ID:          uuid.NewString(),
		BookID:      bookID,
		Action:      action,
		PerformedBy: performedBy,
		Timestamp:   s.now(),
		Notes:       notes,
	}
	if book, err := s.cat.GetBook(ctx, bookID); err == nil {
		rec.BeforeCondition = book.Condition
	}
	s.records = append(s.records, rec)
	return rec, nil
}

// CompleteAction closes a preservation record, updates the book's condition
// and releases it from restoration when applicable.
func (s *Service) CompleteAction(ctx context.Context, recordID string, newCondition model.Condition, notes string) error {
	var rec *Record
	for _, r := range s.records {
		if r.ID == recordID {
			rec = r
			break
		}
	}
	if rec == nil {
		return errs.ErrNotFound
	}

	rec.AfterCondition = newCondition
	if notes != "" {
		rec.Notes += "\nCompletion notes: " + notes
	}

	book, err := s.cat.GetBook(ctx, rec.BookID)
	if err != nil {
		return nil
	}
	book.Condition = newCondition

	now := s.now()
	for _, sched := range s.schedules {
		if sched.BookID == rec.BookID && sched.Action == rec.Action {
			sched.LastPerformed = &now
			sched.recalc(now)
		}
	}

	if book.Status == model.StatusRestoration {
		book.Status = model.StatusAvailable
		if s.evm != nil {
			s.evm.BookRestored(ctx, book)
		}
	}
	return s.cat.UpdateBook(ctx, book)
}

// SchedulePreservation plans a recurring action. startAfterDays shifts the
// first due date earlier than a full interval.
func (s *Service) SchedulePreservation(ctx context.Context, bookID string, action Action, intervalDays, startAfterDays int) (*Schedule, error) {
	if _, err := s.cat.GetBook(ctx, bookID); err != nil {
		return nil, err
	}

	now := s.now()
	sched := &Schedule{
		ID:           uuid.NewString(),
		BookID:       bookID,
		Action:       action,
		IntervalDays: intervalDays,
		Active:       true,
	}
	if startAfterDays > 0 {
		last := now.AddDate(0, 0, -(intervalDays - startAfterDays))
		sched.LastPerformed = &last
	}
	sched.recalc(now)

	s.schedules = append(s.schedules, sched)
	return sched, nil
}

// DueActions returns every active schedule whose next run is due.
func (s *Service) DueActions() []*Schedule {
	now := s.now()
	var out []*Schedule
	for _, sched := range s.schedules {
		if sched.IsDue(now) {
			out = append(out, sched)
		}
	}
	return out
}

// BookRecords lists preservation records for one book.
func (s *Service) BookRecords(bookID string) []*Record {
	var out []*Record
	for _, r := range s.records {
		if r.BookID == bookID {
			out = append(out, r)
		}
	}
	return out
}

// BookSchedules lists preservation schedules for one book.
func (s *Service) BookSchedules(bookID string) []*Schedule {
	var out []*Schedule
	for _, sched := range s.schedules {
		if sched.BookID == bookID {
			out = append(out, sched)
		}
	}
	return out
}

// AssessCondition runs a routine inspection. Books past their threshold are
// pulled into restoration status and flagged to the event sinks.
func (s *Service) AssessCondition(ctx context.Context, bookID, assessorID string) (*Record, bool, error) {
	book, err := s.cat.GetBook(ctx, bookID)
	if err != nil {
		return nil, false, err
	}

	rec, err := s.AddRecord(ctx, bookID, ActionInspection, assessorID, "Routine condition assessment")
	if err != nil {
		return nil, false, err
	}

	needs := book.NeedsRestoration()
	if needs {
		book.Status = model.StatusRestoration
		if err := s.cat.UpdateBook(ctx, book); err != nil {
			return nil, false, err
		}
		if s.evm != nil {
			s.evm.BookNeedsRestoration(ctx, book)
		}
	}
	return rec, needs, nil
}

// RecommendActions proposes preservation work based on condition and kind.
func (s *Service) RecommendActions(ctx context.Context, bookID string) ([]ActionAdvice, error) {
	book, err := s.cat.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	var out []ActionAdvice
	switch book.Condition {
	case model.ConditionExcellent:
		out = append(out, ActionAdvice{ActionInspection, 180, "Low", "Regular maintenance for excellent condition book"})
	case model.ConditionGood:
		out = append(out,
			ActionAdvice{ActionInspection, 90, "Low", "Regular maintenance for good condition book"},
			ActionAdvice{ActionCleaning, 180, "Low", "Preventive cleaning to maintain condition"})
	case model.ConditionFair:
		out = append(out,
			ActionAdvice{ActionInspection, 60, "Medium", "Regular monitoring of fair condition book"},
			ActionAdvice{ActionCleaning, 90, "Medium", "Regular cleaning to prevent deterioration"},
			ActionAdvice{ActionRepair, 365, "Medium", "Minor repairs to prevent further deterioration"})
	case model.ConditionPoor:
		out = append(out,
			ActionAdvice{ActionInspection, 30, "High", "Close monitoring of poor condition book"},
			ActionAdvice{ActionRepair, 90, "High", "Regular repairs needed for poor condition"},
			ActionAdvice{ActionRebinding, 0, "High", "Rebinding needed to preserve book structure"})
	case model.ConditionCritical:
		out = append(out,
			ActionAdvice{ActionRestoration, 0, "Urgent", "Full restoration needed for critically damaged book"},
			ActionAdvice{ActionDigitization, 0, "Urgent", "Digitize content before further deterioration"})
	}

	switch book.Kind {
	case model.KindRare:
		out = append(out, ActionAdvice{ActionClimateControl, 7, "High", "Maintain optimal climate conditions for rare book"})
		if book.Rare != nil && book.Rare.EstimatedValue > 10000 {
			for i := range out {
				if out[i].Priority != "Urgent" {
					out[i].Priority = "High"
				}
			}
		}
	case model.KindAncient:
		out = append(out,
			ActionAdvice{ActionDeacidification, 365, "High", "Prevent acid deterioration of ancient paper"},
			ActionAdvice{ActionClimateControl, 1, "Urgent", "Strict climate control required for ancient manuscript"})
		hasDigitization := false
		for _, a := range out {
			if a.Action == ActionDigitization {
				hasDigitization = true
				break
			}
		}
		if !hasDigitization {
			out = append(out, ActionAdvice{ActionDigitization, 0, "High",
				fmt.Sprintf("Create digital backup of irreplaceable ancient script %q", book.Title)})
		}
	}
	return out, nil
}
