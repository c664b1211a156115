package api

import (
	"encoding/json"
	"fmt"
	"time"
)

// Имена событий потока
const (
	EventObjectCreate  = "object:create"
	EventObjectUpdate  = "object:update"
	EventObjectDelete  = "object:delete"
	EventObjectAck     = "object:ack"
	EventObjectChanged = "object:changed"
	EventObjectDeleted = "object:deleted"
	EventObjectVerify  = "object:verify"
	EventObjectState   = "object:state"
	EventPresence      = "presence"
)

// Приоритеты событий
const (
	PriorityLow    = 0
	PriorityNormal = 1
	PriorityHigh   = 2
)

// Event единый конверт сообщения в потоке событий
type Event struct {
	Timestamp  time.Time       `json:"timestamp"`
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Priority   int             `json:"priority"`
	RetryCount int             `json:"retry_count,omitempty"`
	MaxRetries int             `json:"max_retries,omitempty"`
}

// Decode разбирает полезную нагрузку события в v
func (e *Event) Decode(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("event %s has empty payload", e.Type)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Type, err)
	}
	return nil
}

// NewEvent собирает конверт с закодированной нагрузкой
func NewEvent(id, eventType string, priority int, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to encode %s payload: %w", eventType, err)
	}
	return Event{
		ID:        id,
		Type:      eventType,
		Priority:  priority,
		Timestamp: time.Now().UTC(),
		Payload:   raw,
	}, nil
}

// ObjectMutation нагрузка object:create / object:update / object:delete
type ObjectMutation struct {
	Properties  map[string]any `json:"properties,omitempty"`
	OperationID string         `json:"operation_id"`
	ObjectID    string         `json:"object_id"`
	CanvasID    string         `json:"canvas_id"`
	ObjectType  string         `json:"object_type,omitempty"`
	BaseVersion int64          `json:"base_version,omitempty"`
}

// Ack нагрузка object:ack; отправляется только инициатору мутации
type Ack struct {
	Object      *Object `json:"object,omitempty"`
	OperationID string  `json:"operation_id"`
	ObjectID    string  `json:"object_id"`
	Error       string  `json:"error,omitempty"`
	Code        string  `json:"code,omitempty"`
	StatusCode  int     `json:"status_code,omitempty"`
	Success     bool    `json:"success"`
}

// ObjectChanged нагрузка object:changed, рассылается всем участникам холста
type ObjectChanged struct {
	Object      Object `json:"object"`
	OperationID string `json:"operation_id,omitempty"`
}

// ObjectDeleted нагрузка object:deleted
type ObjectDeleted struct {
	ObjectID    string `json:"object_id"`
	CanvasID    string `json:"canvas_id"`
	OperationID string `json:"operation_id,omitempty"`
	Version     int64  `json:"version"`
}

// VerifyRequest нагрузка object:verify
type VerifyRequest struct {
	RequestID string `json:"request_id"`
	ObjectID  string `json:"object_id"`
}

// ObjectState нагрузка object:state, ответ на object:verify
type ObjectState struct {
	Object    *Object `json:"object,omitempty"`
	RequestID string  `json:"request_id"`
	ObjectID  string  `json:"object_id"`
	Exists    bool    `json:"exists"`
}

// Presence нагрузка presence
type Presence struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Status   string `json:"status"` // joined | left
}
