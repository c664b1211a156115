package reconcile

import (
	"errors"
	"fmt"

	"github.com/iudanet/canvassync/internal/duplicate"
	"github.com/iudanet/canvassync/internal/models"
)

var (
	// ErrCancelled обновление отменено до получения результата
	ErrCancelled = errors.New("update was cancelled")
	// ErrMissingSender оркестратору не передан транспорт
	ErrMissingSender = errors.New("sender is required")
	// ErrNoManualConflict обновление не ожидает ручного разрешения
	ErrNoManualConflict = errors.New("update has no conflict awaiting manual resolution")
	// ErrNotApplied проверка нашла объект на сервере без локального изменения
	ErrNotApplied = errors.New("change is not present on the server")
)

// UserError ошибка, показываемая пользователю
type UserError interface {
	error
	Code() string
	UserMessage() string
}

var (
	_ UserError = (*ValidationError)(nil)
	_ UserError = (*ConflictError)(nil)
	_ UserError = (*ExhaustionError)(nil)
	_ UserError = (*DuplicateError)(nil)
)

// ValidationError некорректное намерение
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return "invalid intent: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Code машинно-читаемый код
func (e *ValidationError) Code() string { return "invalid_intent" }

// UserMessage сообщение для пользователя
func (e *ValidationError) UserMessage() string {
	return "The change is invalid: " + e.Err.Error() + "."
}

// ConflictError расхождение, требующее решения пользователя
type ConflictError struct {
	Conflict *models.UpdateConflict
	UpdateID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("update %s requires manual resolution: %s", e.UpdateID, e.Conflict.Message)
}

// Code машинно-читаемый код
func (e *ConflictError) Code() string {
	return "conflict_" + string(e.Conflict.Type)
}

// UserMessage сообщение для пользователя
func (e *ConflictError) UserMessage() string {
	return "Someone else changed this object at the same time. Keep their version or reapply yours."
}

// Причины исчерпания
const (
	ReasonRejected   = "rejected"
	ReasonUnverified = "unverified"
	ReasonCancelled  = "cancelled"
	ReasonInternal   = "internal"
)

// ExhaustionError исчерпаны все повторы и оба канала
type ExhaustionError struct {
	Cause       error
	OperationID string
	Reason      string
	Message     string
}

func (e *ExhaustionError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("operation %s exhausted (%s)", e.OperationID, e.Reason)
	}
	return fmt.Sprintf("operation %s exhausted (%s): %v", e.OperationID, e.Reason, e.Cause)
}

func (e *ExhaustionError) Unwrap() error { return e.Cause }

// Code машинно-читаемый код
func (e *ExhaustionError) Code() string {
	return "exhausted_" + e.Reason
}

// UserMessage сообщение для пользователя
func (e *ExhaustionError) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	switch e.Reason {
	case ReasonRejected:
		return "The server rejected the change and it was rolled back."
	case ReasonCancelled:
		return "The change was interrupted before it could be confirmed."
	default:
		return "The change could not be saved. Retry it or reload the canvas."
	}
}

// DuplicateError создание остановлено как дубликат недавнего объекта
type DuplicateError struct {
	Candidate duplicate.Candidate
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("object duplicates %s (similarity %.2f)", e.Candidate.Object.ID, e.Candidate.Similarity)
}

// Code машинно-читаемый код
func (e *DuplicateError) Code() string { return "duplicate_object" }

// UserMessage сообщение для пользователя
func (e *DuplicateError) UserMessage() string {
	return fmt.Sprintf("An identical %s was just created here, so this one was skipped.", e.Candidate.Object.ObjectType)
}
