// Package ranking содержит политику упорядочивания проектов для отображения.
//
// Порядок детерминирован и полон: выполненные проекты всегда после
// невыполненных, затем выбранный режим, затем ближайший срок, затем имя
// с учётом локали.
package ranking

import (
	"fmt"
	"strings"

	"github.com/planboard/planboard-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RANKING MODE
// ══════════════════════════════════════════════════════════════════════════════

// Mode - режим сортировки, выбранный пользователем.
// Ядро его не сохраняет: значение хранится во внешнем хранилище настроек.
type Mode string

const (
	// ModeDueDateAsc - ближайший срок первым.
	ModeDueDateAsc Mode = "due_date_asc"
	// ModeDueDateDesc - дальний срок первым.
	ModeDueDateDesc Mode = "due_date_desc"
	// ModeProgressDesc - наибольший прогресс первым.
	ModeProgressDesc Mode = "progress_desc"
	// ModeProgressAsc - наименьший прогресс первым.
	ModeProgressAsc Mode = "progress_asc"
)

// DefaultMode используется, когда предпочтение не задано.
const DefaultMode = ModeDueDateAsc

// aliases принимает и старые camelCase значения из настроек клиента.
var aliases = map[string]Mode{
	"duedateascending":   ModeDueDateAsc,
	"duedatedescending":  ModeDueDateDesc,
	"progressdescending": ModeProgressDesc,
	"progressascending":  ModeProgressAsc,
}

// Modes возвращает все режимы в порядке отображения.
func Modes() []Mode {
	return []Mode{ModeDueDateAsc, ModeDueDateDesc, ModeProgressDesc, ModeProgressAsc}
}

// ParseMode разбирает строку в Mode.
func ParseMode(s string) (Mode, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	if m := Mode(normalized); m.Valid() {
		return m, nil
	}
	if m, ok := aliases[strings.NewReplacer("_", "", "-", "").Replace(normalized)]; ok {
		return m, nil
	}
	return "", shared.WrapError("ranking", "ParseMode", shared.ErrInvalidInput,
		"unknown ranking mode", fmt.Errorf("%q", s))
}

// Valid проверяет, что режим известен.
func (m Mode) Valid() bool {
	switch m {
	case ModeDueDateAsc, ModeDueDateDesc, ModeProgressDesc, ModeProgressAsc:
		return true
	default:
		return false
	}
}

// IsDueDate возвращает true для режимов по сроку.
func (m Mode) IsDueDate() bool {
	return m == ModeDueDateAsc || m == ModeDueDateDesc
}

// String возвращает строковое представление режима.
func (m Mode) String() string {
	return string(m)
}

// Label возвращает подпись для отображения.
func (m Mode) Label() string {
	switch m {
	case ModeDueDateAsc:
		return "Due date (nearest first)"
	case ModeDueDateDesc:
		return "Due date (latest first)"
	case ModeProgressDesc:
		return "Progress (highest first)"
	case ModeProgressAsc:
		return "Progress (lowest first)"
	default:
		return "Unknown"
	}
}

// MarshalText реализует encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m), nil
}

// UnmarshalText реализует encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
