package models

import "time"

// UpdateType тип локальной мутации
type UpdateType string

const (
	UpdateCreate UpdateType = "create"
	UpdateUpdate UpdateType = "update"
	UpdateDelete UpdateType = "delete"
	UpdateMove   UpdateType = "move"
	UpdateResize UpdateType = "resize"
)

// Valid сообщает, является ли тип мутации известным.
func (t UpdateType) Valid() bool {
	switch t {
	case UpdateCreate, UpdateUpdate, UpdateDelete, UpdateMove, UpdateResize:
		return true
	}
	return false
}

// UpdateStatus состояние оптимистичного обновления
type UpdateStatus string

const (
	StatusPending    UpdateStatus = "pending"
	StatusConfirmed  UpdateStatus = "confirmed"
	StatusFailed     UpdateStatus = "failed"
	StatusConflicted UpdateStatus = "conflicted"
)

// OptimisticUpdate локальная запись об одной мутации в полете.
// Принадлежит очереди; остальные компоненты получают только копии.
type OptimisticUpdate struct {
	Timestamp      time.Time     `json:"timestamp"`
	Object         *CanvasObject `json:"object,omitempty"`          // кандидат (nil для delete)
	OriginalObject *CanvasObject `json:"original_object,omitempty"` // снимок до мутации для отката
	ServerObject   *CanvasObject `json:"server_object,omitempty"`   // подтвержденное состояние
	ID             string        `json:"id"`
	OperationID    string        `json:"operation_id"`
	CanvasID       string        `json:"canvas_id"`
	ObjectID       string        `json:"object_id"`
	Type           UpdateType    `json:"type"`
	Status         UpdateStatus  `json:"status"`
	FailureReason  string        `json:"failure_reason,omitempty"`
	RetryCount     int           `json:"retry_count"`
	MaxRetries     int           `json:"max_retries"`
}

// Clone создает глубокую копию обновления
func (u *OptimisticUpdate) Clone() *OptimisticUpdate {
	if u == nil {
		return nil
	}
	c := *u
	c.Object = u.Object.Clone()
	c.OriginalObject = u.OriginalObject.Clone()
	c.ServerObject = u.ServerObject.Clone()
	return &c
}

// IsTerminal сообщает, покинуло ли обновление состояние pending.
func (u *OptimisticUpdate) IsTerminal() bool {
	return u.Status != StatusPending
}
