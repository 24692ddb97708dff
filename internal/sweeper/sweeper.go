package sweeper

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/enchantedlib/lending-service/internal/catalog"
	"github.com/enchantedlib/lending-service/internal/events"
	"github.com/enchantedlib/lending-service/internal/model"
)

// Sweeper periodically scans for overdue loans, flips their status to
// Overdue and announces each one. Event emission is rate limited so a large
// backlog does not flood the sinks.
type Sweeper struct {
	cat      catalog.Catalog
	evm      *events.Manager
	log      *zap.Logger
	interval time.Duration
	limiter  *rate.Limiter
	now      func() time.Time
}

// Option tweaks the sweeper's construction.
type Option func(*Sweeper)

// WithClock overrides the sweeper's time source.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

func New(cat catalog.Catalog, evm *events.Manager, log *zap.Logger, interval time.Duration, eventsPerSec rate.Limit, opts ...Option) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	s := &Sweeper{
		cat:      cat,
		evm:      evm,
		log:      log.Named("sweeper"),
		interval: interval,
		limiter:  rate.NewLimiter(eventsPerSec, 1),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n, err := s.Sweep(ctx); err != nil {
				s.log.Error("sweep failed", zap.Error(err))
			} else if n > 0 {
				s.log.Info("sweep finished", zap.Int("overdue", n))
			}
		}
	}
}

// Sweep runs one scan and returns how many records were marked overdue.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	now := s.now()
	records, err := s.cat.GetOverdueRecords(ctx, now)
	if err != nil {
		return 0, err
	}

	marked := 0
	for _, record := range records {
		if record.Status != model.LendingActive {
			continue
		}
		record.Status = model.LendingOverdue
		if err := s.cat.UpdateLendingRecord(ctx, record); err != nil {
			s.log.Warn("mark overdue failed", zap.String("recordId", record.ID), zap.Error(err))
			continue
		}
		marked++

		book, berr := s.cat.GetBook(ctx, record.BookID)
		user, uerr := s.cat.GetUser(ctx, record.UserID)
		if berr != nil || uerr != nil {
			continue
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return marked, err
		}
		s.evm.BookOverdue(ctx, book, user, record.DaysOverdue(now))
	}
	return marked, nil
}
