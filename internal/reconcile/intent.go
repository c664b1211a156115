package reconcile

import (
	"github.com/iudanet/canvassync/internal/models"
	"github.com/iudanet/canvassync/internal/validation"
)

// Intent намерение пользователя изменить объект
type Intent struct {
	// Payload свойства: для create полный набор, иначе изменения поверх
	// текущего состояния. nil значение удаляет свойство.
	Payload map[string]any
	// OperationID ключ идемпотентности; пустой генерируется
	OperationID string
	CanvasID    string
	// ObjectID для create может быть пустым
	ObjectID string
	Type     models.UpdateType
	// ObjectType только для create
	ObjectType models.ObjectType
	// Replace заменяет свойства целиком вместо наложения
	Replace bool
	// AllowDuplicate отключает блокировку похожих объектов для create
	AllowDuplicate bool
}

func invalid(field, reason string) error {
	return &ValidationError{Err: &validation.FieldError{Field: field, Reason: reason}}
}

// validateIntent проверяет намерение без обращения к состоянию
func validateIntent(in Intent) error {
	if !in.Type.Valid() {
		return invalid("type", "unknown update type "+string(in.Type))
	}
	if err := validation.ValidateID("canvas_id", in.CanvasID); err != nil {
		return &ValidationError{Err: err}
	}
	if in.Type != models.UpdateCreate || in.ObjectID != "" {
		if err := validation.ValidateID("object_id", in.ObjectID); err != nil {
			return &ValidationError{Err: err}
		}
	}

	switch in.Type {
	case models.UpdateCreate:
		if err := validation.ValidateObjectType(in.ObjectType); err != nil {
			return &ValidationError{Err: err}
		}
	case models.UpdateMove:
		if !hasNumbers(in.Payload, models.PropX, models.PropY) {
			return invalid("properties", "move requires x and y")
		}
	case models.UpdateResize:
		if !hasNumbers(in.Payload, models.PropWidth, models.PropHeight) {
			return invalid("properties", "resize requires width and height")
		}
	case models.UpdateUpdate:
		if len(in.Payload) == 0 {
			return invalid("properties", "update requires at least one property")
		}
	}

	if err := validation.ValidateProperties(withoutNil(in.Payload)); err != nil {
		return &ValidationError{Err: err}
	}
	return nil
}

func hasNumbers(p map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := models.ToNumber(p[k]); !ok {
			return false
		}
	}
	return true
}

func withoutNil(p map[string]any) map[string]any {
	out := make(map[string]any, len(p))
	for k, v := range p {
		if v != nil {
			out[k] = v
		}
	}
	return out
}

// applyPayload накладывает payload на base (или заменяет целиком)
func applyPayload(base models.Properties, payload map[string]any, replace bool) models.Properties {
	var out models.Properties
	if replace || base == nil {
		out = make(models.Properties, len(payload))
	} else {
		out = base.Clone()
	}
	for k, v := range payload {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}

// prepare строит кандидата и снимок для отката по текущему состоянию
func (o *Orchestrator) prepare(in Intent, objectID string) (candidate, original *models.CanvasObject, err error) {
	current := o.store.Get(objectID)
	if current != nil && current.CanvasID != in.CanvasID {
		return nil, nil, invalid("object_id", "object belongs to another canvas")
	}
	now := o.now().UTC()

	switch in.Type {
	case models.UpdateCreate:
		if current != nil {
			return nil, nil, invalid("object_id", "object already exists")
		}
		return &models.CanvasObject{
			ID:         objectID,
			CanvasID:   in.CanvasID,
			ObjectType: in.ObjectType,
			Properties: applyPayload(nil, in.Payload, true),
			Version:    1,
			CreatedAt:  now,
			UpdatedAt:  now,
		}, nil, nil

	case models.UpdateDelete:
		return nil, current, nil
	}

	if current == nil {
		return nil, nil, invalid("object_id", "unknown object "+objectID)
	}
	if in.ObjectType != "" && in.ObjectType != current.ObjectType {
		return nil, nil, invalid("object_type", "object type cannot change")
	}
	candidate = current.Clone()
	candidate.Properties = applyPayload(current.Properties, in.Payload, in.Replace)
	candidate.Version = current.Version + 1
	candidate.UpdatedAt = now
	return candidate, current, nil
}
