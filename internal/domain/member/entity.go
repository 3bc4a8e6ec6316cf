package member

import (
	"errors"
	"fmt"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// MEMBER ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Member представляет участника, которому можно назначать задачи и проекты.
type Member struct {
	// ID - стабильный уникальный идентификатор.
	ID string `json:"id"`

	// Name - текущее отображаемое имя (может меняться).
	Name string `json:"name"`

	// Email - адрес участника.
	Email string `json:"email"`
}

// Validate проверяет обязательные поля.
func (m Member) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return ErrEmptyMemberID
	}
	return nil
}

// String возвращает строковое представление для логирования.
func (m Member) String() string {
	return fmt.Sprintf("Member{ID: %s, Name: %s}", m.ID, m.Name)
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrEmptyMemberID - у участника нет ID.
	ErrEmptyMemberID = errors.New("invalid member: id cannot be empty")
)
