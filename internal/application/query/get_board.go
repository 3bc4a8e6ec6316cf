package query

import (
	"context"
	"log/slog"
	"time"

	"github.com/planboard/planboard-core/internal/domain/assignee"
	"github.com/planboard/planboard-core/internal/domain/member"
	"github.com/planboard/planboard-core/internal/domain/project"
	"github.com/planboard/planboard-core/internal/domain/ranking"
	"github.com/planboard/planboard-core/internal/domain/shared"
	"github.com/planboard/planboard-core/pkg/logger"
	"github.com/planboard/planboard-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET BOARD QUERY
// Собирает доску проектов: прогресс, порядок и имена ответственных.
// Прогресс на доске всегда берётся из одного агрегата целиком.
// ══════════════════════════════════════════════════════════════════════════════

// ErrBoardSuperseded возвращается, когда во время сборки доски был запущен
// более новый пересчёт. Вызывающий код просто игнорирует такой ответ.
var ErrBoardSuperseded = shared.NewDomainError("board", "GetBoard", shared.ErrSuperseded,
	"board request superseded by a newer one")

// GetBoardQuery содержит параметры запроса доски.
type GetBoardQuery struct {
	// ProjectIDs - выбранные проекты (пусто = все проекты).
	ProjectIDs []string

	// Mode - режим сортировки (пусто = ranking.DefaultMode).
	Mode ranking.Mode

	// Session - ключ вызывающего. Вызовы одной сессии вытесняют друг друга,
	// вызовы разных сессий независимы. Пусто = разовый вызов.
	Session string
}

// Validate проверяет корректность параметров запроса.
func (q *GetBoardQuery) Validate() error {
	if q.Mode == "" {
		q.Mode = ranking.DefaultMode
	}
	if !q.Mode.Valid() {
		return shared.NewDomainError("board", "Validate", shared.ErrInvalidInput,
			"unknown ranking mode "+string(q.Mode))
	}
	return nil
}

// BoardEntryDTO - строка доски.
type BoardEntryDTO struct {
	Position  int    `json:"position"`
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
	EndDate   string `json:"end_date,omitempty"`

	TotalTasks     int  `json:"total_tasks"`
	CompletedTasks int  `json:"completed_tasks"`
	Percentage     int  `json:"percentage"`
	IsCompleted    bool `json:"is_completed"`

	// ProgressKnown - false, если задачи проекта загрузить не удалось.
	ProgressKnown bool `json:"progress_known"`

	Responsibles     []string `json:"responsibles"`
	ResponsiblesText string   `json:"responsibles_text"`
	Members          []string `json:"members"`

	// DaysLeft - дней до срока; nil, если срока нет.
	DaysLeft  *int `json:"days_left,omitempty"`
	IsOverdue bool `json:"is_overdue"`
}

// BoardView - результат запроса доски.
type BoardView struct {
	Token       uint64          `json:"token"`
	Mode        ranking.Mode    `json:"mode"`
	Entries     []BoardEntryDTO `json:"entries"`
	Failed      []string        `json:"failed,omitempty"`
	GeneratedAt time.Time       `json:"generated_at"`

	// Degraded - свежий пересчёт не удался, показан предыдущий агрегат.
	Degraded bool `json:"degraded"`

	// DirectoryFingerprint - отпечаток снапшота справочника, по которому
	// разрешались имена.
	DirectoryFingerprint string `json:"directory_fingerprint"`
}

// ProgressComputer - то, что нужно доске от агрегатора.
type ProgressComputer interface {
	ComputeAll(ctx context.Context, projectIDs []string) (Aggregate, error)
	Current() Aggregate
}

// GetBoardHandler обрабатывает запрос доски.
type GetBoardHandler struct {
	projects  project.Repository
	computers ComputerProvider
	published AggregateReader
	directory member.SnapshotProvider
	logger    *slog.Logger
	rankOpts  []ranking.Option
	now       func() time.Time
}

// NewGetBoardHandler создаёт обработчик доски.
func NewGetBoardHandler(
	projects project.Repository,
	computers ComputerProvider,
	directory member.SnapshotProvider,
	log *slog.Logger,
	rankOpts ...ranking.Option,
) *GetBoardHandler {
	return &GetBoardHandler{
		projects:  projects,
		computers: computers,
		directory: directory,
		logger:    logger.OrDefault(log).With(logger.Component("board")),
		rankOpts:  rankOpts,
		now:       timeutil.Now,
	}
}

// WithPublished задаёт агрегат, который показывается при сбое пересчёта,
// пока у сессии нет собственного предыдущего агрегата.
func (h *GetBoardHandler) WithPublished(published AggregateReader) *GetBoardHandler {
	h.published = published
	return h
}

// Handle выполняет запрос доски.
func (h *GetBoardHandler) Handle(ctx context.Context, query GetBoardQuery) (*BoardView, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	projects, err := h.projects.ListProjects(ctx, query.ProjectIDs)
	if err != nil {
		return nil, shared.WrapError("board", "GetBoard", shared.ErrExternalService,
			"failed to load projects", err)
	}

	ids := make([]string, 0, len(projects))
	for _, p := range projects {
		ids = append(ids, p.ID)
	}

	computer := h.computers.For(query.Session)

	degraded := false
	agg, err := computer.ComputeAll(ctx, ids)
	switch {
	case shared.IsCanceled(err):
		return nil, err
	case err != nil:
		h.logger.Warn("progress unavailable, showing previous aggregate",
			logger.ProjectCount(len(ids)),
			logger.Err(err),
		)
		failed := agg.Failed
		agg = h.previous(computer)
		agg.Failed = failed
		degraded = true
	case agg.Superseded:
		return nil, ErrBoardSuperseded
	}

	dir := h.directory.Snapshot()
	now := h.now()

	ranked := ranking.Rank(projects, agg.Progress, query.Mode, h.rankOpts...)
	entries := make([]BoardEntryDTO, 0, len(ranked))
	for _, r := range ranked {
		entries = append(entries, h.toDTO(r, agg, dir, now))
	}

	return &BoardView{
		Token:                agg.Token,
		Mode:                 query.Mode,
		Entries:              entries,
		Failed:               agg.Failed,
		GeneratedAt:          now,
		Degraded:             degraded,
		DirectoryFingerprint: dir.Fingerprint(),
	}, nil
}

// previous возвращает последний агрегат сессии, а без него - опубликованный.
func (h *GetBoardHandler) previous(computer ProgressComputer) Aggregate {
	agg := computer.Current()
	if agg.IsZero() && h.published != nil {
		agg = h.published.Current()
	}
	return agg
}

func (h *GetBoardHandler) toDTO(r ranking.Ranked, agg Aggregate, dir *member.Directory, now time.Time) BoardEntryDTO {
	responsibles := assignee.ResolveResponsibleNames(r.Project, dir)

	dto := BoardEntryDTO{
		Position:         r.Position,
		ProjectID:        r.Project.ID,
		Name:             r.Project.Name,
		TotalTasks:       r.Progress.TotalTasks,
		CompletedTasks:   r.Progress.CompletedTasks,
		Percentage:       r.Progress.Percentage,
		IsCompleted:      r.Progress.IsCompleted(),
		ProgressKnown:    agg.Has(r.Project.ID),
		Responsibles:     responsibles,
		ResponsiblesText: assignee.Join(responsibles),
		Members:          assignee.ResolveMemberNames(r.Project, dir),
	}

	if due, ok := r.Project.DueDate(); ok {
		dto.EndDate = timeutil.FormatDateStr(due)
		days := timeutil.DaysUntil(now, due)
		dto.DaysLeft = &days
		dto.IsOverdue = !dto.IsCompleted && timeutil.IsOverdue(now, due)
	}
	return dto
}
