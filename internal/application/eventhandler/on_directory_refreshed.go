package eventhandler

import (
	"context"
	"log/slog"
	"time"

	"github.com/planboard/planboard-core/internal/domain/member"
	"github.com/planboard/planboard-core/internal/domain/shared"
	"github.com/planboard/planboard-core/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON DIRECTORY REFRESHED HANDLER
// Когда справочник обновил другой процесс, перечитываем свой снапшот,
// чтобы имена на доске совпадали во всех экземплярах.
// ═══════════════════════════════════════════════════════════════════════════

// DirectoryReloader перечитывает снапшот справочника.
type DirectoryReloader interface {
	member.SnapshotProvider

	// Refresh загружает ростер заново.
	Refresh(ctx context.Context) error
}

// OnDirectoryRefreshedHandler обрабатывает удалённые DirectoryRefreshed.
type OnDirectoryRefreshedHandler struct {
	directory DirectoryReloader
	timeout   time.Duration
	logger    *slog.Logger
}

// NewOnDirectoryRefreshedHandler создаёт обработчик.
func NewOnDirectoryRefreshedHandler(directory DirectoryReloader, log *slog.Logger) *OnDirectoryRefreshedHandler {
	return &OnDirectoryRefreshedHandler{
		directory: directory,
		timeout:   10 * time.Second,
		logger:    logger.OrDefault(log).With("handler", "on_directory_refreshed"),
	}
}

// Handle реализует shared.EventHandler.
func (h *OnDirectoryRefreshedHandler) Handle(event shared.Event) error {
	if event.EventType() != shared.EventDirectoryRefreshed {
		return nil
	}
	// Своё событие: снапшот уже актуален.
	if _, local := event.(shared.DirectoryRefreshedEvent); local {
		return nil
	}

	fingerprint, _ := event.Payload()["fingerprint"].(string)
	if fingerprint != "" && fingerprint == h.directory.Snapshot().Fingerprint() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	if err := h.directory.Refresh(ctx); err != nil {
		return err
	}

	h.logger.Info("directory reloaded after remote refresh",
		logger.Fingerprint(h.directory.Snapshot().Fingerprint()),
	)
	return nil
}
