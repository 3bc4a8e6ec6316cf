// Package query contains read operations following CQRS pattern.
// Queries never modify domain state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/planboard/planboard-core/internal/domain/project"
	"github.com/planboard/planboard-core/internal/domain/shared"
	"github.com/planboard/planboard-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS AGGREGATOR
// Считает прогресс (выполнено / всего задач) для набора проектов.
// Запросы на разные проекты идут параллельно, а результат устаревшего вызова
// отбрасывается: побеждает последний выданный вызов, даже если его ответы
// пришли раньше ответов предыдущего.
// ══════════════════════════════════════════════════════════════════════════════

// AggregatorConfig содержит настройки агрегатора.
type AggregatorConfig struct {
	// Concurrency - максимум одновременных запросов к хранилищу задач.
	Concurrency int
}

// DefaultAggregatorConfig возвращает конфигурацию по умолчанию.
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{Concurrency: 8}
}

// Aggregate - результат одного прохода агрегации.
type Aggregate struct {
	// Token - номер вызова ComputeAll, который построил агрегат.
	Token uint64 `json:"token"`

	// Progress - прогресс по проектам. Проекты с ошибкой загрузки отсутствуют.
	Progress map[string]project.Progress `json:"progress"`

	// ComputedAt - время завершения прохода.
	ComputedAt time.Time `json:"computed_at"`

	// Superseded - вызов устарел, результат отброшен и не опубликован.
	Superseded bool `json:"superseded,omitempty"`

	// Failed - проекты, чьи задачи загрузить не удалось.
	Failed []string `json:"failed,omitempty"`
}

// Get возвращает прогресс проекта или нулевой прогресс, если его нет.
func (a Aggregate) Get(projectID string) project.Progress {
	if p, ok := a.Progress[projectID]; ok {
		return p
	}
	return project.Progress{ProjectID: projectID}
}

// Has сообщает, есть ли проект в агрегате.
func (a Aggregate) Has(projectID string) bool {
	_, ok := a.Progress[projectID]
	return ok
}

// IsZero возвращает true, если агрегат ещё ни разу не публиковался.
func (a Aggregate) IsZero() bool {
	return a.Token == 0
}

// ProgressAggregator владеет счётчиком вызовов и последним опубликованным
// агрегатом. Безопасен для конкурентного использования.
type ProgressAggregator struct {
	source    project.TaskSource
	publisher shared.EventPublisher
	logger    *slog.Logger
	config    AggregatorConfig
	now       func() time.Time

	latest atomic.Uint64

	mu      sync.RWMutex
	current Aggregate
}

// NewProgressAggregator создаёт агрегатор. publisher может быть nil.
func NewProgressAggregator(
	source project.TaskSource,
	publisher shared.EventPublisher,
	log *slog.Logger,
	config AggregatorConfig,
) *ProgressAggregator {
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultAggregatorConfig().Concurrency
	}
	return &ProgressAggregator{
		source:    source,
		publisher: publisher,
		logger:    logger.OrDefault(log).With(logger.Component("progress_aggregator")),
		config:    config,
		now:       time.Now,
		current:   Aggregate{Progress: map[string]project.Progress{}},
	}
}

// ComputeAll считает прогресс для projectIDs и публикует результат, если
// вызов всё ещё последний.
//
// Ошибка отдельного проекта не ломает весь проход: проект пропускается и
// попадает в Aggregate.Failed. Если не удалось загрузить ни одного проекта,
// возвращается пустой агрегат и ошибка с видом shared.ErrServiceUnavailable,
// а ранее опубликованный агрегат сохраняется. Устаревший вызов не является
// ошибкой: возвращается Aggregate{Superseded: true}. Отмена ctx вызывающим
// даёт ошибку вида shared.ErrCanceled без публикации и без события о сбое.
func (a *ProgressAggregator) ComputeAll(ctx context.Context, projectIDs []string) (Aggregate, error) {
	token := a.latest.Add(1)
	ids := uniqueIDs(projectIDs)
	start := a.now()

	progress, failed, firstErr := a.fetchAll(ctx, token, ids)

	a.mu.Lock()
	if a.latest.Load() != token {
		a.mu.Unlock()
		a.logger.Debug("discarding superseded aggregation",
			logger.Token(token),
			logger.ProjectCount(len(ids)),
		)
		return Aggregate{Token: token, Superseded: true}, nil
	}

	// Отменённый проход неполон: не публикуем его и не считаем сбоем.
	if errors.Is(ctx.Err(), context.Canceled) || (len(ids) > 0 && len(progress) == 0 && errors.Is(firstErr, context.Canceled)) {
		a.mu.Unlock()
		a.logger.Debug("aggregation canceled by caller",
			logger.Token(token),
			logger.ProjectCount(len(ids)),
			slog.Int("loaded", len(progress)),
		)
		return Aggregate{Token: token, Progress: map[string]project.Progress{}, Failed: failed},
			shared.WrapError("progress", "ComputeAll", shared.ErrCanceled, "aggregation canceled", context.Canceled)
	}

	result := Aggregate{
		Token:      token,
		Progress:   progress,
		ComputedAt: a.now(),
		Failed:     failed,
	}

	if len(ids) > 0 && len(progress) == 0 {
		a.mu.Unlock()
		a.logger.Error("aggregation failed for every project",
			logger.Token(token),
			logger.ProjectCount(len(ids)),
			logger.Err(firstErr),
		)
		a.emit(shared.NewProgressFailedEvent(token, failed, errorText(firstErr)))
		return result, shared.WrapError("progress", "ComputeAll", batchKind(firstErr),
			"could not load tasks for any project", firstErr)
	}

	a.current = result
	a.mu.Unlock()

	a.logger.Info("aggregate published",
		logger.Token(token),
		logger.ProjectCount(len(progress)),
		slog.Int("failed", len(failed)),
		logger.Latency(a.now().Sub(start)),
	)
	a.emit(shared.NewProgressPublishedEvent(token, toCounts(progress)))

	return cloneAggregate(result), nil
}

// Current возвращает последний опубликованный агрегат.
// Агрегат заменяется целиком, частичных состояний не бывает.
func (a *ProgressAggregator) Current() Aggregate {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return cloneAggregate(a.current)
}

// LatestToken возвращает номер последнего выданного вызова.
func (a *ProgressAggregator) LatestToken() uint64 {
	return a.latest.Load()
}

// fetchAll загружает задачи параллельно, не больше Concurrency одновременно.
func (a *ProgressAggregator) fetchAll(ctx context.Context, token uint64, ids []string) (map[string]project.Progress, []string, error) {
	progress := make(map[string]project.Progress, len(ids))
	var (
		mu       sync.Mutex
		failed   []string
		firstErr error
	)

	var g errgroup.Group
	g.SetLimit(a.config.Concurrency)

	for _, id := range ids {
		g.Go(func() error {
			tasks, err := a.source.TasksByProject(ctx, id)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed = append(failed, id)
				if firstErr == nil {
					firstErr = err
				}
				level := slog.LevelWarn
				if errors.Is(err, context.Canceled) {
					level = slog.LevelDebug
				}
				a.logger.Log(ctx, level, "failed to load project tasks",
					logger.Token(token),
					logger.ProjectID(id),
					logger.Err(err),
				)
				return nil
			}
			progress[id] = project.CountProgress(id, tasks)
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(failed)
	return progress, failed, firstErr
}

func (a *ProgressAggregator) emit(event shared.Event) {
	if a.publisher == nil {
		return
	}
	if err := a.publisher.Publish(event); err != nil {
		a.logger.Warn("failed to publish event",
			slog.String("event_type", string(event.EventType())),
			logger.Err(err),
		)
	}
}

// uniqueIDs убирает пустые и повторяющиеся ID, сохраняя порядок.
func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}

// batchKind сохраняет вид ошибки контекста, остальное считается недоступностью.
func batchKind(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return shared.ErrTimeout
	}
	return shared.ErrServiceUnavailable
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func toCounts(progress map[string]project.Progress) map[string]shared.ProgressCounts {
	counts := make(map[string]shared.ProgressCounts, len(progress))
	for id, p := range progress {
		counts[id] = shared.ProgressCounts{
			TotalTasks:     p.TotalTasks,
			CompletedTasks: p.CompletedTasks,
			Percentage:     p.Percentage,
		}
	}
	return counts
}

func cloneAggregate(a Aggregate) Aggregate {
	a.Progress = maps.Clone(a.Progress)
	if a.Progress == nil {
		a.Progress = map[string]project.Progress{}
	}
	if a.Failed != nil {
		a.Failed = append([]string(nil), a.Failed...)
	}
	return a
}
