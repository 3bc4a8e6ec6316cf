// Package directory keeps the in-process snapshot of the member roster.
//
// The roster lives outside Planboard. Refresher pulls it periodically,
// falls back to the Redis copy when the source is down and swaps the
// snapshot atomically, so readers never see a half-built directory.
package directory

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/planboard/planboard-core/internal/domain/member"
	"github.com/planboard/planboard-core/internal/domain/shared"
	"github.com/planboard/planboard-core/pkg/circuitbreaker"
	"github.com/planboard/planboard-core/pkg/logger"
	"github.com/planboard/planboard-core/pkg/retry"
)

// Origin values reported in Status and DirectoryRefreshedEvent.
const (
	OriginSource = "source"
	OriginCache  = "cache"
)

// Config configures a Refresher.
type Config struct {
	// Retrier wraps each pull from the source. Default: retry.DirectoryRetrier.
	Retrier *retry.Retrier

	// Breaker guards the source. Default: circuitbreaker.DirectoryBreaker.
	Breaker *circuitbreaker.CircuitBreaker

	// Publisher receives DirectoryRefreshedEvent. Optional.
	Publisher shared.EventPublisher

	// Cache keeps the last good roster. Optional.
	Cache member.SnapshotCache

	// EmptyPullsToAccept is how many empty rosters in a row replace a
	// non-empty snapshot. A single empty pull is treated as a glitch.
	// Default: 3.
	EmptyPullsToAccept int

	// Logger for structured logging.
	Logger *slog.Logger
}

// Status describes the current snapshot.
type Status struct {
	Fingerprint string    `json:"fingerprint"`
	Members     int       `json:"members"`
	Origin      string    `json:"origin"`
	RefreshedAt time.Time `json:"refreshed_at"`
	LastError   string    `json:"last_error,omitempty"`
}

// Refresher implements member.SnapshotProvider.
type Refresher struct {
	source    member.Source
	cache     member.SnapshotCache
	publisher shared.EventPublisher
	retrier   *retry.Retrier
	breaker   *circuitbreaker.CircuitBreaker
	logger    *slog.Logger
	now       func() time.Time

	emptyPullsToAccept int

	current atomic.Pointer[member.Directory]

	// mu serializes Refresh and guards status and emptyPulls.
	mu         sync.Mutex
	status     Status
	emptyPulls int
}

// NewRefresher creates a Refresher. Snapshot returns an empty directory
// until the first successful Refresh.
func NewRefresher(source member.Source, config Config) *Refresher {
	log := logger.OrDefault(config.Logger).With(logger.Component("directory"))
	if config.Retrier == nil {
		config.Retrier = retry.DirectoryRetrier()
	}
	if config.Breaker == nil {
		config.Breaker = circuitbreaker.DirectoryBreaker(func(name string, from, to circuitbreaker.State) {
			log.Warn("breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				logger.BreakerState(to.String()),
			)
		})
	}
	if config.EmptyPullsToAccept <= 0 {
		config.EmptyPullsToAccept = 3
	}

	// Retry everything except breaker rejections and a finished context.
	retrier := config.Retrier.With(retry.WithRetryIf(func(err error) bool {
		return !circuitbreaker.IsRejected(err) &&
			!errors.Is(err, context.Canceled) &&
			!errors.Is(err, context.DeadlineExceeded)
	}))

	return &Refresher{
		source:    source,
		cache:     config.Cache,
		publisher: config.Publisher,
		retrier:   retrier,
		breaker:   config.Breaker,
		logger:    log,
		now:       time.Now,

		emptyPullsToAccept: config.EmptyPullsToAccept,
	}
}

// Snapshot implements member.SnapshotProvider. Never nil.
func (r *Refresher) Snapshot() *member.Directory {
	if d := r.current.Load(); d != nil {
		return d
	}
	return member.NewDirectory(nil)
}

// Ready reports whether a roster has been loaded.
func (r *Refresher) Ready() bool {
	return r.current.Load() != nil
}

// Status returns a copy of the refresher status.
func (r *Refresher) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Refresh pulls the roster and swaps the snapshot when it changed.
//
// When the source fails, a directory that was never loaded is seeded from
// the cache; an already loaded one is kept. An empty roster replaces a
// non-empty one only after EmptyPullsToAccept empty pulls in a row.
func (r *Refresher) Refresh(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, err := retry.DoWithData(ctx, r.retrier, func(ctx context.Context) ([]member.Member, error) {
		var result []member.Member
		err := r.breaker.Execute(ctx, func(ctx context.Context) error {
			var err error
			result, err = r.source.Members(ctx)
			return err
		})
		return result, err
	})
	if err != nil {
		return r.fallback(ctx, err)
	}

	prev := r.current.Load()
	if len(members) == 0 && prev != nil && prev.Len() > 0 {
		r.emptyPulls++
		if r.emptyPulls < r.emptyPullsToAccept {
			r.status.LastError = shared.ErrDirectoryEmpty.Error()
			r.logger.Warn("source returned an empty roster, keeping previous snapshot",
				slog.Int("previous_members", prev.Len()),
				slog.Int("empty_pulls", r.emptyPulls),
			)
			return shared.ErrDirectoryEmpty
		}
		r.logger.Warn("source keeps returning an empty roster, accepting it",
			slog.Int("previous_members", prev.Len()),
			slog.Int("empty_pulls", r.emptyPulls),
		)
	}
	r.emptyPulls = 0

	if r.cache != nil {
		if err := r.cache.StoreMembers(ctx, members); err != nil {
			r.logger.Warn("failed to cache roster", logger.Err(err))
		}
	}

	r.install(member.NewDirectory(members), OriginSource)
	r.status.LastError = ""
	return nil
}

func (r *Refresher) fallback(ctx context.Context, sourceErr error) error {
	kind := shared.ErrServiceUnavailable
	if errors.Is(sourceErr, context.DeadlineExceeded) {
		kind = shared.ErrTimeout
	}
	wrapped := shared.WrapError("member", "Refresh", kind, "roster source unavailable", sourceErr)
	r.status.LastError = wrapped.Error()

	if r.current.Load() != nil {
		r.logger.Warn("roster refresh failed, keeping previous snapshot", logger.Err(sourceErr))
		return wrapped
	}
	if r.cache == nil {
		return wrapped
	}

	cached, err := r.cache.LoadMembers(ctx)
	if err != nil {
		r.logger.Error("roster source and cache both unavailable",
			logger.Err(sourceErr),
			slog.String("cache_error", err.Error()),
		)
		return shared.WrapError("member", "Refresh", kind, "roster source and cache unavailable", errors.Join(sourceErr, err))
	}

	r.logger.Warn("roster source unavailable, seeded from cache",
		logger.Err(sourceErr),
		slog.Int("members", len(cached)),
	)
	r.install(member.NewDirectory(cached), OriginCache)
	return nil
}

// install swaps in next unless it matches the current snapshot.
// Caller holds r.mu.
func (r *Refresher) install(next *member.Directory, origin string) {
	prev := r.current.Load()
	r.status.RefreshedAt = r.now().UTC()
	if prev != nil && prev.SameAs(next) {
		r.logger.Debug("roster unchanged", logger.Fingerprint(next.Fingerprint()))
		return
	}

	r.current.Store(next)
	r.status.Fingerprint = next.Fingerprint()
	r.status.Members = next.Len()
	r.status.Origin = origin

	r.logger.Info("roster snapshot updated",
		logger.Fingerprint(next.Fingerprint()),
		slog.Int("members", next.Len()),
		slog.String("origin", origin),
	)

	if r.publisher == nil {
		return
	}
	event := shared.NewDirectoryRefreshedEvent(next.Fingerprint(), next.Len(), origin)
	if err := r.publisher.Publish(event); err != nil {
		r.logger.Warn("failed to publish directory event", logger.Err(err))
	}
}

var _ member.SnapshotProvider = (*Refresher)(nil)
