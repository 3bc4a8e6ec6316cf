package project

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// TASK SOURCE INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// TaskSource определяет контракт чтения задач проекта (getTasksByProjectId).
// Используется только для подсчёта; вызовы для разных проектов независимы
// и могут выполняться конкурентно.
type TaskSource interface {
	// TasksByProject возвращает все задачи проекта.
	TasksByProject(ctx context.Context, projectID string) ([]Task, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// PROJECT REPOSITORY INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет контракт чтения проектов.
type Repository interface {
	// ListProjects возвращает проекты с указанными ID.
	// Пустой список ID возвращает все проекты.
	ListProjects(ctx context.Context, ids []string) ([]Project, error)

	// ListProjectIDs возвращает ID всех проектов.
	ListProjectIDs(ctx context.Context) ([]string, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS STORE INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// ProgressSnapshot - опубликованный агрегат прогресса, разделяемый процессами.
type ProgressSnapshot struct {
	// Instance - идентификатор процесса, опубликовавшего агрегат.
	// Токены сравнимы только внутри одного процесса.
	Instance string `json:"instance"`

	// Token - номер вызова агрегатора.
	Token uint64 `json:"token"`

	// Progress - прогресс по проектам.
	Progress map[string]Progress `json:"progress"`

	// PublishedAt - время публикации.
	PublishedAt time.Time `json:"published_at"`
}

// Supersedes сообщает, должен ли s заменить prev.
func (s ProgressSnapshot) Supersedes(prev ProgressSnapshot) bool {
	if s.Instance != prev.Instance {
		return !s.PublishedAt.Before(prev.PublishedAt)
	}
	return s.Token > prev.Token
}

// ProgressStore хранит последний опубликованный агрегат.
type ProgressStore interface {
	// Store сохраняет snapshot, если он новее сохранённого.
	Store(ctx context.Context, snapshot ProgressSnapshot) (bool, error)

	// Load возвращает последний сохранённый агрегат.
	Load(ctx context.Context) (ProgressSnapshot, error)
}
