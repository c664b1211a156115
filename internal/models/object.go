package models

import (
	"encoding/json"
	"maps"
	"math"
	"time"
)

// ObjectType тип фигуры на холсте
type ObjectType string

const (
	ObjectTypeRectangle ObjectType = "rectangle"
	ObjectTypeCircle    ObjectType = "circle"
	ObjectTypeText      ObjectType = "text"
	ObjectTypeHeart     ObjectType = "heart"
	ObjectTypeStar      ObjectType = "star"
	ObjectTypeDiamond   ObjectType = "diamond"
	ObjectTypeLine      ObjectType = "line"
	ObjectTypeArrow     ObjectType = "arrow"
)

// ObjectTypes все поддерживаемые типы фигур
var ObjectTypes = []ObjectType{
	ObjectTypeRectangle,
	ObjectTypeCircle,
	ObjectTypeText,
	ObjectTypeHeart,
	ObjectTypeStar,
	ObjectTypeDiamond,
	ObjectTypeLine,
	ObjectTypeArrow,
}

// Valid сообщает, является ли тип известным.
func (t ObjectType) Valid() bool {
	for _, known := range ObjectTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Стандартные ключи свойств
const (
	PropX           = "x"
	PropY           = "y"
	PropWidth       = "width"
	PropHeight      = "height"
	PropFill        = "fill"
	PropStroke      = "stroke"
	PropStrokeWidth = "strokeWidth"
	PropOpacity     = "opacity"
	PropFontSize    = "fontSize"
	PropFontFamily  = "fontFamily"
	PropColor       = "color"
	PropText        = "text"
)

// Properties открытый набор свойств объекта (позиция, размеры, цвета, шрифт и т.д.)
type Properties map[string]any

// Number возвращает числовое значение свойства.
// JSON декодирует числа как float64, но локально созданные объекты
// могут содержать int.
func (p Properties) Number(key string) (float64, bool) {
	v, ok := p[key]
	if !ok {
		return 0, false
	}
	return ToNumber(v)
}

// ToNumber приводит числовое значение любого типа к float64
func ToNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Clone создает копию набора свойств. Вложенные значения копируются поверхностно.
func (p Properties) Clone() Properties {
	if p == nil {
		return nil
	}
	return maps.Clone(p)
}

// CanvasObject представляет объект на холсте.
// Version назначается только сервером и строго растет при каждой принятой мутации.
type CanvasObject struct {
	UpdatedAt  time.Time  `json:"updated_at"`
	CreatedAt  time.Time  `json:"created_at"`
	Properties Properties `json:"properties"`
	ID         string     `json:"id"`
	CanvasID   string     `json:"canvas_id"`
	ObjectType ObjectType `json:"object_type"`
	CreatedBy  string     `json:"created_by,omitempty"`
	Version    int64      `json:"version"`
}

// Clone создает копию объекта
func (o *CanvasObject) Clone() *CanvasObject {
	if o == nil {
		return nil
	}
	c := *o
	c.Properties = o.Properties.Clone()
	return &c
}

// Position возвращает координаты x, y (0 для отсутствующих)
func (o *CanvasObject) Position() (float64, float64) {
	x, _ := o.Properties.Number(PropX)
	y, _ := o.Properties.Number(PropY)
	return x, y
}

// Size возвращает ширину и высоту (0 для отсутствующих)
func (o *CanvasObject) Size() (float64, float64) {
	w, _ := o.Properties.Number(PropWidth)
	h, _ := o.Properties.Number(PropHeight)
	return w, h
}

// Distance евклидово расстояние между позициями двух объектов
func Distance(a, b *CanvasObject) float64 {
	ax, ay := a.Position()
	bx, by := b.Position()
	return math.Hypot(ax-bx, ay-by)
}
