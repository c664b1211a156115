package validation

import (
	"fmt"
	"math"
	"regexp"

	"github.com/iudanet/canvassync/internal/models"
)

// IDPattern допустимый формат идентификаторов холстов и объектов (uuid и slug)
var IDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,128}$`)

// MaxProperties ограничение на число свойств одного объекта
const MaxProperties = 64

// FieldError ошибка валидации конкретного поля
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

var (
	numericProps = map[string]struct{}{
		models.PropX:           {},
		models.PropY:           {},
		models.PropWidth:       {},
		models.PropHeight:      {},
		models.PropStrokeWidth: {},
		models.PropOpacity:     {},
		models.PropFontSize:    {},
	}
	nonNegativeProps = map[string]struct{}{
		models.PropWidth:       {},
		models.PropHeight:      {},
		models.PropStrokeWidth: {},
		models.PropFontSize:    {},
	}
	stringProps = map[string]struct{}{
		models.PropFill:       {},
		models.PropStroke:     {},
		models.PropFontFamily: {},
		models.PropColor:      {},
		models.PropText:       {},
	}
)

// ValidateID проверяет идентификатор; field попадает в текст ошибки
func ValidateID(field, id string) error {
	if id == "" {
		return &FieldError{Field: field, Reason: "cannot be empty"}
	}
	if !IDPattern.MatchString(id) {
		return &FieldError{Field: field, Reason: "must be 1-128 characters of letters, digits, '-' or '_'"}
	}
	return nil
}

// ValidateObjectType проверяет, что тип фигуры известен
func ValidateObjectType(t models.ObjectType) error {
	if !t.Valid() {
		return &FieldError{Field: "object_type", Reason: fmt.Sprintf("unknown type %q", t)}
	}
	return nil
}

// ValidateProperties проверяет типы и диапазоны стандартных свойств.
// Неизвестные ключи допускаются.
func ValidateProperties(props map[string]any) error {
	if len(props) > MaxProperties {
		return &FieldError{Field: "properties", Reason: fmt.Sprintf("at most %d properties allowed", MaxProperties)}
	}
	for key, value := range props {
		if _, ok := numericProps[key]; ok {
			n, isNum := models.ToNumber(value)
			if !isNum {
				return &FieldError{Field: "properties." + key, Reason: "must be a number"}
			}
			if math.IsNaN(n) || math.IsInf(n, 0) {
				return &FieldError{Field: "properties." + key, Reason: "must be finite"}
			}
			if _, nonNeg := nonNegativeProps[key]; nonNeg && n < 0 {
				return &FieldError{Field: "properties." + key, Reason: "must not be negative"}
			}
			if key == models.PropOpacity && (n < 0 || n > 1) {
				return &FieldError{Field: "properties." + key, Reason: "must be within [0, 1]"}
			}
			continue
		}
		if _, ok := stringProps[key]; ok {
			if _, isStr := value.(string); !isStr {
				return &FieldError{Field: "properties." + key, Reason: "must be a string"}
			}
		}
	}
	return nil
}
