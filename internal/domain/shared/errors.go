// Package shared содержит общие для доменных пакетов ошибки и события.
// Из внешних зависимостей только uuid для идентификаторов событий.
package shared

import (
	"context"
	"errors"
	"fmt"
)

// ══════════════════════════════════════════════════════════════════════════════
// ВИДЫ ОШИБОК
// Проверяются через errors.Is; конкретная ошибка несёт вид в DomainError.Kind.
// ══════════════════════════════════════════════════════════════════════════════

var (
	ErrNotFound = errors.New("entity not found")

	ErrInvalidInput = errors.New("invalid input")
	ErrEmptyValue   = errors.New("value cannot be empty")

	ErrInvalidState = errors.New("invalid state")

	// ErrSuperseded - результат вызова устарел: после него был выдан новый.
	ErrSuperseded = errors.New("superseded by a newer request")

	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")

	// ErrCanceled - вызывающий сам отменил операцию. Это не сбой.
	ErrCanceled = errors.New("operation canceled")
)

// DomainError - ошибка с контекстом домена и операции.
type DomainError struct {
	Domain  string // "project", "member", "ranking", "board"
	Op      string // операция, например "FetchTasks"
	Kind    error  // один из видов выше
	Message string
	Err     error // причина, может быть nil
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap возвращает причину, а без неё - вид.
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is совпадает и с видом, и с причиной.
func (e *DomainError) Is(target error) bool {
	return (e.Kind != nil && errors.Is(e.Kind, target)) ||
		(e.Err != nil && errors.Is(e.Err, target))
}

// NewDomainError создаёт ошибку без причины.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message}
}

// WrapError создаёт ошибку с причиной err.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message, Err: err}
}

// ══════════════════════════════════════════════════════════════════════════════
// ИМЕНОВАННЫЕ ОШИБКИ
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrTaskStoreOffline - хранилище задач недоступно (открыт предохранитель).
	ErrTaskStoreOffline = NewDomainError("project", "FetchTasks", ErrServiceUnavailable, "task store is unavailable")

	ErrDirectoryEmpty    = NewDomainError("member", "Refresh", ErrEmptyValue, "member directory is empty")
	ErrDirectoryNotReady = NewDomainError("member", "Snapshot", ErrInvalidState, "member directory has not been loaded")

	ErrInvalidRankingMode = NewDomainError("ranking", "ParseMode", ErrInvalidInput, "unknown ranking mode")
)

// ══════════════════════════════════════════════════════════════════════════════
// ПРОВЕРКИ
// ══════════════════════════════════════════════════════════════════════════════

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation - ошибка во входных данных вызывающего.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrEmptyValue)
}

// IsExternalService - ошибка на стороне внешнего хранилища.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService) || IsRetryable(err)
}

// IsRetryable - повтор позже может пройти.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) || errors.Is(err, ErrTimeout)
}

// IsCanceled - операция прервана отменой контекста вызывающего.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled)
}
