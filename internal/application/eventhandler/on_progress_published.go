// Package eventhandler содержит обработчики доменных событий.
package eventhandler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/planboard/planboard-core/internal/domain/project"
	"github.com/planboard/planboard-core/internal/domain/shared"
	"github.com/planboard/planboard-core/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON PROGRESS PUBLISHED HANDLER
// Сохраняет опубликованный агрегат в общее хранилище, откуда его читают
// API-процессы и CLI. Хранилище само отбрасывает устаревшие токены.
// ═══════════════════════════════════════════════════════════════════════════

// OnProgressPublishedHandler обрабатывает shared.ProgressPublishedEvent.
type OnProgressPublishedHandler struct {
	store    project.ProgressStore
	instance string
	timeout  time.Duration
	logger   *slog.Logger
}

// NewOnProgressPublishedHandler создаёт обработчик.
// instance - идентификатор процесса, чьи токены попадают в хранилище.
func NewOnProgressPublishedHandler(store project.ProgressStore, instance string, log *slog.Logger) *OnProgressPublishedHandler {
	return &OnProgressPublishedHandler{
		store:    store,
		instance: instance,
		timeout:  5 * time.Second,
		logger:   logger.OrDefault(log).With("handler", "on_progress_published"),
	}
}

// Handle реализует shared.EventHandler.
func (h *OnProgressPublishedHandler) Handle(event shared.Event) error {
	published, ok := event.(shared.ProgressPublishedEvent)
	if !ok {
		// Удалённые копии пишет процесс-источник.
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	snapshot := project.ProgressSnapshot{
		Instance:    h.instance,
		Token:       published.Token,
		Progress:    fromCounts(published.Progress),
		PublishedAt: published.OccurredAt(),
	}

	stored, err := h.store.Store(ctx, snapshot)
	if err != nil {
		return fmt.Errorf("store progress token %d: %w", published.Token, err)
	}
	if !stored {
		h.logger.Debug("newer aggregate already stored", logger.Token(published.Token))
		return nil
	}

	h.logger.Info("progress aggregate stored",
		logger.Token(published.Token),
		logger.ProjectCount(len(snapshot.Progress)),
	)
	return nil
}

func fromCounts(counts map[string]shared.ProgressCounts) map[string]project.Progress {
	progress := make(map[string]project.Progress, len(counts))
	for id, c := range counts {
		progress[id] = project.Progress{
			ProjectID:      id,
			TotalTasks:     c.TotalTasks,
			CompletedTasks: c.CompletedTasks,
			Percentage:     c.Percentage,
		}
	}
	return progress
}
