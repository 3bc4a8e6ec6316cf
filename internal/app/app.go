// Package app wires Planboard components from configuration. Both the
// worker and boardctl build the same graph through Build.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/text/language"

	"github.com/planboard/planboard-core/config"
	"github.com/planboard/planboard-core/internal/application/eventhandler"
	"github.com/planboard/planboard-core/internal/application/query"
	"github.com/planboard/planboard-core/internal/domain/project"
	"github.com/planboard/planboard-core/internal/domain/ranking"
	"github.com/planboard/planboard-core/internal/domain/shared"
	"github.com/planboard/planboard-core/internal/infrastructure/directory"
	"github.com/planboard/planboard-core/internal/infrastructure/messaging"
	"github.com/planboard/planboard-core/internal/infrastructure/persistence/mongodb"
	"github.com/planboard/planboard-core/internal/infrastructure/persistence/postgres"
	"github.com/planboard/planboard-core/internal/infrastructure/persistence/redis"
	"github.com/planboard/planboard-core/internal/infrastructure/service"
	"github.com/planboard/planboard-core/pkg/circuitbreaker"
	"github.com/planboard/planboard-core/pkg/logger"
	"github.com/planboard/planboard-core/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// APP
// ══════════════════════════════════════════════════════════════════════════════

// App holds the wired component graph.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	DB    *postgres.Connection
	Cache *redis.Cache // nil when Redis is disabled or unreachable
	Mongo *mongo.Client

	Bus        shared.EventBus
	InstanceID string

	Projects   *postgres.ProjectRepository
	Members    *postgres.MemberRepository
	Tasks      *service.ResilientTaskSource
	Directory  *directory.Refresher
	Aggregator *query.ProgressAggregator
	Sessions   *query.Sessions
	Board      *query.GetBoardHandler

	// Shared is the cross-process progress store; nil without Redis.
	Shared project.ProgressStore

	local  *messaging.InMemoryEventBus
	bridge *messaging.RedisEventBus
}

// Build connects to the stores and wires every component.
// On error, everything opened so far is closed.
func Build(ctx context.Context, cfg *config.Config, log *slog.Logger) (_ *App, err error) {
	log = logger.OrDefault(log)
	a := &App{Config: cfg, Logger: log}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// PostgreSQL: projects, members and (by default) tasks
	// ─────────────────────────────────────────────────────────────────────────
	a.DB, err = retry.DoWithData(ctx, retry.DatabaseRetrier(), func(ctx context.Context) (*postgres.Connection, error) {
		return postgres.NewConnection(ctx, cfg.Database.Postgres())
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	a.Projects = postgres.NewProjectRepository(a.DB)
	a.Members = postgres.NewMemberRepository(a.DB)

	// ─────────────────────────────────────────────────────────────────────────
	// Redis: optional, the worker keeps running without it
	// ─────────────────────────────────────────────────────────────────────────
	if !cfg.Redis.Disabled {
		cache, cerr := redis.NewCache(cfg.Redis.Cache())
		if cerr != nil {
			log.Warn("redis unavailable, shared caches disabled", logger.Err(cerr))
		} else {
			a.Cache = cache
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Event bus, bridged over Redis Pub/Sub when available
	// ─────────────────────────────────────────────────────────────────────────
	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = log
	a.local = messaging.NewInMemoryEventBus(busCfg)
	a.Bus = a.local
	if a.Cache != nil {
		a.bridge = messaging.NewRedisEventBus(a.Cache.Client(), a.local, messaging.RedisEventBusConfig{
			Channel: cfg.Redis.EventChannel,
			Logger:  log,
		})
		a.Bus = a.bridge
		a.InstanceID = a.bridge.InstanceID()
		a.Shared = redis.NewProgressCache(a.Cache)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Task source: postgres or mongo, behind retry + circuit breaker
	// ─────────────────────────────────────────────────────────────────────────
	base, err := a.taskSource(ctx)
	if err != nil {
		return nil, err
	}
	a.Tasks = service.NewResilientTaskSource(base,
		retry.New(
			retry.WithMaxAttempts(cfg.Aggregator.RetryAttempts),
			retry.WithInitialDelay(cfg.Aggregator.RetryDelay),
		),
		circuitbreaker.New("task_store",
			circuitbreaker.WithFailureThreshold(cfg.Aggregator.BreakerThreshold),
			circuitbreaker.WithTimeout(cfg.Aggregator.BreakerTimeout),
			circuitbreaker.WithOnStateChange(breakerLogger(log)),
		),
		log,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// Member directory
	// ─────────────────────────────────────────────────────────────────────────
	dirCfg := directory.Config{
		Retrier: retry.New(
			retry.WithMaxAttempts(cfg.Directory.RetryAttempts),
			retry.WithInitialDelay(cfg.Directory.RetryDelay),
		),
		Breaker: circuitbreaker.New("member_directory",
			circuitbreaker.WithFailureThreshold(cfg.Directory.BreakerThreshold),
			circuitbreaker.WithTimeout(cfg.Directory.BreakerTimeout),
			circuitbreaker.WithOnStateChange(breakerLogger(log)),
		),
		Publisher:          a.Bus,
		EmptyPullsToAccept: cfg.Directory.EmptyPullsToAccept,
		Logger:             log,
	}
	if a.Cache != nil {
		dirCfg.Cache = redis.NewDirectoryCache(a.Cache)
	}
	a.Directory = directory.NewRefresher(a.Members, dirCfg)

	// ─────────────────────────────────────────────────────────────────────────
	// Aggregation and board
	// ─────────────────────────────────────────────────────────────────────────
	aggCfg := query.AggregatorConfig{Concurrency: cfg.Aggregator.Concurrency}

	// The scheduler owns the published aggregate; callers get their own.
	a.Aggregator = query.NewProgressAggregator(a.Tasks, a.Bus, log, aggCfg)
	a.Sessions = query.NewSessions(a.Tasks, log, aggCfg, query.SessionConfig{
		TTL:         cfg.Aggregator.SessionTTL,
		MaxSessions: cfg.Aggregator.MaxSessions,
	})
	a.Board = query.NewGetBoardHandler(a.Projects, a.Sessions, a.Directory, log,
		ranking.WithLanguage(language.Make(cfg.App.Language)),
	).WithPublished(a.Aggregator)

	if err := a.subscribe(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) taskSource(ctx context.Context) (project.TaskSource, error) {
	if a.Config.Aggregator.TaskBackend != config.BackendMongo {
		return postgres.NewTaskRepository(a.DB), nil
	}

	client, err := mongodb.Connect(ctx, a.Config.Mongo.Client())
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	a.Mongo = client

	m := a.Config.Mongo
	src := mongodb.NewTaskSource(client.Database(m.Database).Collection(m.Collection))
	if err := src.EnsureIndexes(ctx); err != nil {
		a.Logger.Warn("mongo index creation failed", logger.Err(err))
	}
	return src, nil
}

// subscribe registers the event handlers that keep processes in sync.
func (a *App) subscribe() error {
	if a.Shared != nil {
		h := eventhandler.NewOnProgressPublishedHandler(a.Shared, a.InstanceID, a.Logger)
		if err := a.Bus.Subscribe(shared.EventProgressPublished, h.Handle); err != nil {
			return fmt.Errorf("subscribe progress handler: %w", err)
		}
	}
	h := eventhandler.NewOnDirectoryRefreshedHandler(a.Directory, a.Logger)
	if err := a.Bus.Subscribe(shared.EventDirectoryRefreshed, h.Handle); err != nil {
		return fmt.Errorf("subscribe directory handler: %w", err)
	}
	return nil
}

// Start begins receiving events from other processes.
func (a *App) Start(ctx context.Context) error {
	if a.bridge == nil {
		return nil
	}
	return a.bridge.Start(ctx)
}

// Migrate applies pending schema migrations.
func (a *App) Migrate(ctx context.Context) (int, error) {
	return postgres.NewMigrator(a.DB).Migrate(ctx)
}

// Close releases every connection. Safe on a partially built App.
func (a *App) Close() {
	var errs []error
	if a.bridge != nil {
		errs = append(errs, a.bridge.Close())
	}
	if a.local != nil {
		errs = append(errs, a.local.Close())
	}
	if a.Mongo != nil {
		errs = append(errs, a.Mongo.Disconnect(context.Background()))
	}
	if a.Cache != nil {
		errs = append(errs, a.Cache.Close())
	}
	if a.DB != nil {
		a.DB.Close()
	}
	if err := errors.Join(errs...); err != nil {
		a.Logger.Warn("close failed", logger.Err(err))
	}
}

func breakerLogger(log *slog.Logger) func(name string, from, to circuitbreaker.State) {
	return func(name string, from, to circuitbreaker.State) {
		log.Warn("breaker state changed",
			slog.String("breaker", name),
			slog.String("from", from.String()),
			logger.BreakerState(to.String()),
		)
	}
}
