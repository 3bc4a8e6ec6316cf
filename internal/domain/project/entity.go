// Package project содержит доменную модель проектов и задач Planboard:
// проекты с ответственными, задачи с назначениями и вычисляемый прогресс.
package project

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/planboard/planboard-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// Status - статус задачи. Для подсчёта прогресса важен только StatusCompleted,
// остальные значения непрозрачны.
type Status string

const (
	// StatusTodo - задача ещё не начата.
	StatusTodo Status = "todo"
	// StatusInProgress - задача в работе.
	StatusInProgress Status = "in_progress"
	// StatusReview - задача на проверке.
	StatusReview Status = "review"
	// StatusCompleted - задача выполнена (сравнивается строго по равенству).
	StatusCompleted Status = "completed"
)

// IsCompleted возвращает true только для StatusCompleted.
func (s Status) IsCompleted() bool {
	return s == StatusCompleted
}

// ══════════════════════════════════════════════════════════════════════════════
// PROJECT
// ══════════════════════════════════════════════════════════════════════════════

// Responsible - запись об ответственном за проект.
// MemberID предпочтительнее; MemberName остался от старых записей.
type Responsible struct {
	MemberID   string `json:"memberId"`
	MemberName string `json:"memberName"`
}

// Project представляет снапшот проекта, прочитанный для одного прохода
// ранжирования или разрешения имён.
type Project struct {
	// ID - идентификатор проекта.
	ID string

	// Name - отображаемое имя (последний критерий сортировки).
	Name string

	// EndDate - срок в ISO формате; пустая строка = срока нет.
	EndDate string

	// Responsibles - упорядоченный список ответственных.
	Responsibles []Responsible

	// Responsible - устаревшее текстовое поле с именами через запятую.
	Responsible string

	// Members - устаревший список имён команды через запятую.
	Members string
}

// DueDate разбирает EndDate. Отсутствующая или нераспознанная дата
// возвращает ok == false и трактуется как "бесконечно далёкая".
func (p Project) DueDate() (time.Time, bool) {
	if strings.TrimSpace(p.EndDate) == "" {
		return time.Time{}, false
	}
	t, err := timeutil.ParseISODate(p.EndDate)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Validate проверяет обязательные поля.
func (p Project) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return ErrEmptyProjectID
	}
	return nil
}

// String возвращает строковое представление для логирования.
func (p Project) String() string {
	return fmt.Sprintf("Project{ID: %s, Name: %s, EndDate: %s}", p.ID, p.Name, p.EndDate)
}

// ══════════════════════════════════════════════════════════════════════════════
// TASK
// ══════════════════════════════════════════════════════════════════════════════

// Task содержит поля задачи, важные для прогресса и назначений.
type Task struct {
	ID        string
	ProjectID string
	Title     string
	Status    Status

	// AssignedMembers - список ID участников (предпочтительный способ).
	AssignedMembers []string

	// Assignee - устаревшая строка с именами через запятую (запасной вариант).
	Assignee string
}

// IsCompleted возвращает true, если задача выполнена.
func (t Task) IsCompleted() bool {
	return t.Status.IsCompleted()
}

// Assignment приводит сырые поля назначения к явному варианту.
func (t Task) Assignment() Assignment {
	ids := make([]string, 0, len(t.AssignedMembers))
	for _, id := range t.AssignedMembers {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) > 0 {
		return ByIDs{IDs: ids}
	}
	if strings.TrimSpace(t.Assignee) != "" {
		return ByLegacyString{Names: t.Assignee}
	}
	return Empty{}
}

// ══════════════════════════════════════════════════════════════════════════════
// ASSIGNMENT VARIANTS
// ══════════════════════════════════════════════════════════════════════════════

// Assignment - вариант назначения: ByIDs | ByLegacyString | Empty.
// Разбирается через type switch.
type Assignment interface {
	isAssignment()
}

// ByIDs - назначение по списку ID участников (не пустой).
type ByIDs struct {
	IDs []string
}

// ByLegacyString - назначение старого формата: имена через запятую.
type ByLegacyString struct {
	Names string
}

// Fragments возвращает непустые имена после разбиения и обрезки пробелов.
func (a ByLegacyString) Fragments() []string {
	return SplitLegacyNames(a.Names)
}

// Empty - назначения нет.
type Empty struct{}

func (ByIDs) isAssignment()          {}
func (ByLegacyString) isAssignment() {}
func (Empty) isAssignment()          {}

// SplitLegacyNames разбивает строку по запятым, обрезает пробелы и
// отбрасывает пустые фрагменты.
func SplitLegacyNames(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrEmptyProjectID - у проекта нет ID.
	ErrEmptyProjectID = errors.New("invalid project: id cannot be empty")

	// ErrInvalidCounts - нарушено 0 <= completed <= total.
	ErrInvalidCounts = errors.New("invalid progress: completed must be within [0, total]")
)
