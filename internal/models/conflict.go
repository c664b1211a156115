package models

import "time"

// ConflictType вид расхождения между локальным и серверным состоянием
type ConflictType string

const (
	ConflictVersionMismatch ConflictType = "version_mismatch"
	ConflictConcurrentEdit  ConflictType = "concurrent_edit"
	ConflictStateDrift      ConflictType = "state_drift"
	ConflictServerRejection ConflictType = "server_rejection"
)

// Severity серьезность конфликта
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ResolutionStrategy выбранная стратегия разрешения
type ResolutionStrategy string

const (
	ResolutionNone       ResolutionStrategy = "none"
	ResolutionServerWins ResolutionStrategy = "server_wins"
	ResolutionMerge      ResolutionStrategy = "merge"
	ResolutionRetry      ResolutionStrategy = "retry"
	ResolutionRollback   ResolutionStrategy = "rollback"
	ResolutionManual     ResolutionStrategy = "manual"
)

// UpdateConflict обнаруженное расхождение для одного обновления.
type UpdateConflict struct {
	Timestamp     time.Time          `json:"timestamp"`
	Update        *OptimisticUpdate  `json:"update"`
	ServerObject  *CanvasObject      `json:"server_object,omitempty"`
	Type          ConflictType       `json:"type"`
	Severity      Severity           `json:"severity"`
	Message       string             `json:"message"`
	Resolution    ResolutionStrategy `json:"resolution"`
	ChangedFields []string           `json:"changed_fields,omitempty"`
}

// Clone создает глубокую копию конфликта
func (c *UpdateConflict) Clone() *UpdateConflict {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Update = c.Update.Clone()
	cp.ServerObject = c.ServerObject.Clone()
	if c.ChangedFields != nil {
		cp.ChangedFields = append([]string(nil), c.ChangedFields...)
	}
	return &cp
}
