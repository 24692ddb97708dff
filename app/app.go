package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/enchantedlib/lending-service/config"
	"github.com/enchantedlib/lending-service/internal/access"
	"github.com/enchantedlib/lending-service/internal/catalog"
	"github.com/enchantedlib/lending-service/internal/events"
	"github.com/enchantedlib/lending-service/internal/service"
	"github.com/enchantedlib/lending-service/internal/sweeper"
	"github.com/enchantedlib/lending-service/migrations"
	"github.com/enchantedlib/lending-service/pkg/circuit_breaker"
	"github.com/enchantedlib/lending-service/pkg/kafka"
	"github.com/enchantedlib/lending-service/pkg/logger"
	"github.com/enchantedlib/lending-service/pkg/postgres"
)

// App bundles the wired components for one process.
type App struct {
	Library *service.Library
	Events  *events.Manager
	Log     *zap.Logger

	db     interface{ Close() error }
	sweep  *sweeper.Sweeper
	closes []func() error
}

// New wires the catalog, event sinks and library service from config.
func New(cfg *config.Config) (*App, error) {
	log := logger.NewLogger(cfg.Log, "lending")

	var (
		cat catalog.Catalog
		a   = &App{Log: log}
	)
	if cfg.UsePostgres {
		db, err := postgres.NewPostgresDB(context.Background(), &cfg.Database, migrations.MigrationFiles)
		if err != nil {
			return nil, err
		}
		a.db = db
		pg, err := catalog.NewPostgres(db, log)
		if err != nil {
			return nil, err
		}
		cat = pg
	} else {
		cat = catalog.NewMemory(log)
	}

	evm := events.NewManager(log)
	evm.Attach(events.NewLogSink(log))

	if cfg.KafkaEnabled {
		producer, err := kafka.NewProducer(cfg.Kafka)
		if err != nil {
			return nil, err
		}
		a.closes = append(a.closes, producer.Close)
		cb := circuit_breaker.New(100, 5*time.Second, 0.5, 10)
		evm.Attach(events.NewKafkaSink(producer, cfg.Kafka.Topic, cb))
	}

	acl := access.NewControl(log)
	a.Events = evm
	a.Library = service.NewLibrary(cat, evm, log,
		service.WithStrategies(),
		service.WithAccessControl(acl),
	)
	a.sweep = sweeper.New(cat, evm, log, cfg.Sweep.Interval, rate.Limit(cfg.Sweep.EventsPerSec))
	return a, nil
}

// Close releases the producer and database handles.
func (a *App) Close() {
	for _, fn := range a.closes {
		if err := fn(); err != nil {
			a.Log.Warn("close", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.Log.Warn("db close", zap.Error(err))
		}
	}
}

// Run keeps the overdue sweeper going until a termination signal arrives.
func Run(cfg *config.Config) {
	a, err := New(cfg)
	if err != nil {
		logger.NewLogger(cfg.Log, "lending").Fatal("app init", zap.Error(err))
	}
	defer a.Close()
	log := a.Log

	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.sweep.Run(ctx)
	})

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	termSig := <-sig

	log.Debug("Graceful shutdown", zap.Any("signal", termSig))
	cancel()

	if err := g.Wait(); err != nil && !isCancel(err) {
		log.Error("shutdown", zap.Error(err))
	}
	log.Info("Graceful shutdown finished")
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled)
}
