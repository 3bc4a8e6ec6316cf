package project

import (
	"fmt"
	"math"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS VALUE OBJECT
// ══════════════════════════════════════════════════════════════════════════════

// Progress - вычисленный прогресс проекта. Не сохраняется ядром,
// пересчитывается по запросу.
type Progress struct {
	// ProjectID - идентификатор проекта.
	ProjectID string `json:"project_id"`

	// TotalTasks - всего задач (>= 0).
	TotalTasks int `json:"total_tasks"`

	// CompletedTasks - выполнено задач (0 <= CompletedTasks <= TotalTasks).
	CompletedTasks int `json:"completed_tasks"`

	// Percentage - round(completed/total*100), либо 0 при total == 0.
	Percentage int `json:"percentage"`
}

// NewProgress создаёт Progress с валидацией счётчиков.
func NewProgress(projectID string, total, completed int) (Progress, error) {
	if total < 0 || completed < 0 || completed > total {
		return Progress{}, fmt.Errorf("%w: total=%d completed=%d", ErrInvalidCounts, total, completed)
	}
	return Progress{
		ProjectID:      projectID,
		TotalTasks:     total,
		CompletedTasks: completed,
		Percentage:     Percentage(completed, total),
	}, nil
}

// CountProgress считает прогресс по списку задач проекта.
func CountProgress(projectID string, tasks []Task) Progress {
	completed := 0
	for _, t := range tasks {
		if t.IsCompleted() {
			completed++
		}
	}
	return Progress{
		ProjectID:      projectID,
		TotalTasks:     len(tasks),
		CompletedTasks: completed,
		Percentage:     Percentage(completed, len(tasks)),
	}
}

// Percentage возвращает процент выполнения, округлённый до целого.
// Проект без задач даёт 0 ("не начат").
func Percentage(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}

// IsCompleted возвращает true, если проект выполнен на 100%.
func (p Progress) IsCompleted() bool {
	return p.Percentage == 100
}

// IsEmpty возвращает true, если в проекте нет задач.
func (p Progress) IsEmpty() bool {
	return p.TotalTasks == 0
}

// Remaining возвращает количество невыполненных задач.
func (p Progress) Remaining() int {
	return p.TotalTasks - p.CompletedTasks
}

// String возвращает строковое представление для логирования.
func (p Progress) String() string {
	return fmt.Sprintf("Progress{Project: %s, %d/%d, %d%%}", p.ProjectID, p.CompletedTasks, p.TotalTasks, p.Percentage)
}
