// Package duplicate оценивает сходство нового объекта с недавно созданными,
// чтобы двойной клик или шторм повторов не порождал призрачные копии.
package duplicate

import (
	"math"
	"reflect"
	"sort"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/iudanet/canvassync/internal/models"
)

// Signal название сигнала сходства
type Signal string

const (
	SignalExactPosition Signal = "exact_position"
	SignalNearPosition  Signal = "near_position"
	SignalExactSize     Signal = "exact_size"
	SignalNearSize      Signal = "near_size"
	SignalSameType      Signal = "same_type"
	SignalCosmetic      Signal = "cosmetic"
)

// Confidence уверенность в том, что объект дубликат
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// cosmeticKeys свойства, сравниваемые сигналом cosmetic
var cosmeticKeys = []string{
	models.PropFill,
	models.PropStroke,
	models.PropStrokeWidth,
	models.PropOpacity,
	models.PropFontSize,
	models.PropFontFamily,
	models.PropColor,
}

// Weights веса сигналов
type Weights struct {
	ExactPosition float64 `yaml:"exact_position"`
	NearPosition  float64 `yaml:"near_position"`
	ExactSize     float64 `yaml:"exact_size"`
	NearSize      float64 `yaml:"near_size"`
	SameType      float64 `yaml:"same_type"`
	Cosmetic      float64 `yaml:"cosmetic"`
}

// Config пороги и допуски
type Config struct {
	Weights           Weights       `yaml:"weights"`
	Window            time.Duration `yaml:"window"`
	PositionTolerance float64       `yaml:"position_tolerance"`
	SizeTolerance     float64       `yaml:"size_tolerance"`
	Threshold         float64       `yaml:"threshold"`
}

// DefaultConfig конфигурация по умолчанию
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			ExactPosition: 0.30,
			NearPosition:  0.20,
			ExactSize:     0.20,
			NearSize:      0.15,
			SameType:      0.10,
			Cosmetic:      0.05,
		},
		Window:            5000 * time.Millisecond,
		PositionTolerance: 10,
		SizeTolerance:     5,
		Threshold:         0.8,
	}
}

// Candidate существующий объект, похожий на новый
type Candidate struct {
	Object     *models.CanvasObject `json:"object"`
	Signals    map[Signal]float64   `json:"signals"`
	Confidence Confidence           `json:"confidence"`
	Similarity float64              `json:"similarity"`
	Distance   float64              `json:"distance"`
}

// ShouldBlock автоматическое предотвращение только для высокой уверенности
func (c Candidate) ShouldBlock() bool {
	return c.Confidence == ConfidenceHigh
}

// LivenessFunc сообщает, что объект уже ожидает удаления и не должен учитываться
type LivenessFunc func(objectID string) bool

// Detector оценщик дубликатов
type Detector struct {
	pendingDelete LivenessFunc
	cfg           Config
}

// NewDetector создает детектор. pendingDelete может быть nil.
func NewDetector(cfg Config, pendingDelete LivenessFunc) *Detector {
	d := DefaultConfig()
	if cfg.Window <= 0 {
		cfg.Window = d.Window
	}
	if cfg.PositionTolerance <= 0 {
		cfg.PositionTolerance = d.PositionTolerance
	}
	if cfg.SizeTolerance <= 0 {
		cfg.SizeTolerance = d.SizeTolerance
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = d.Threshold
	}
	if cfg.Weights == (Weights{}) {
		cfg.Weights = d.Weights
	}
	return &Detector{cfg: cfg, pendingDelete: pendingDelete}
}

// Check возвращает отмеченных кандидатов (сходство >= порога),
// отсортированных по убыванию сходства.
func (d *Detector) Check(candidate *models.CanvasObject, existing []*models.CanvasObject, now time.Time) []Candidate {
	if candidate == nil {
		return nil
	}

	var out []Candidate
	for _, obj := range existing {
		if obj == nil || obj.ID == candidate.ID || obj.CanvasID != candidate.CanvasID {
			continue
		}
		if obj.CreatedAt.IsZero() || now.Sub(obj.CreatedAt) > d.cfg.Window {
			continue
		}
		if d.pendingDelete != nil && d.pendingDelete(obj.ID) {
			continue
		}

		c := d.Score(candidate, obj)
		if c.Similarity >= d.cfg.Threshold {
			out = append(out, c)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].Distance < out[j].Distance
	})
	return out
}

// Score вычисляет взвешенное сходство без учета окна и порога
func (d *Detector) Score(candidate, existing *models.CanvasObject) Candidate {
	w := d.cfg.Weights
	signals := make(map[Signal]float64, 6)

	distance := models.Distance(candidate, existing)
	if distance <= d.cfg.PositionTolerance {
		signals[SignalExactPosition] = 1
	}
	signals[SignalNearPosition] = math.Max(0, 1-distance/d.cfg.PositionTolerance)

	cw, ch := candidate.Size()
	ew, eh := existing.Size()
	sizeDelta := math.Max(math.Abs(cw-ew), math.Abs(ch-eh))
	if sizeDelta <= d.cfg.SizeTolerance {
		signals[SignalExactSize] = 1
	}
	signals[SignalNearSize] = math.Max(0, 1-sizeDelta/d.cfg.SizeTolerance)

	if candidate.ObjectType == existing.ObjectType {
		signals[SignalSameType] = 1
	}
	signals[SignalCosmetic] = cosmeticOverlap(candidate.Properties, existing.Properties)

	similarity := signals[SignalExactPosition]*w.ExactPosition +
		signals[SignalNearPosition]*w.NearPosition +
		signals[SignalExactSize]*w.ExactSize +
		signals[SignalNearSize]*w.NearSize +
		signals[SignalSameType]*w.SameType +
		signals[SignalCosmetic]*w.Cosmetic

	contributing := 0
	for _, v := range signals {
		if v > 0 {
			contributing++
		}
	}

	return Candidate{
		Object:     existing.Clone(),
		Signals:    signals,
		Similarity: roundScore(similarity),
		Distance:   distance,
		Confidence: confidence(roundScore(similarity), contributing),
	}
}

func confidence(similarity float64, signals int) Confidence {
	switch {
	case similarity >= 0.9 && signals >= 3:
		return ConfidenceHigh
	case similarity >= 0.8 && signals >= 2:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// cosmeticOverlap доля совпадающих косметических свойств среди присутствующих
// хотя бы у одного объекта. Пустое объединение дает 1.
func cosmeticOverlap(a, b models.Properties) float64 {
	union := mapset.NewThreadUnsafeSet[string]()
	for _, k := range cosmeticKeys {
		_, inA := a[k]
		_, inB := b[k]
		if inA || inB {
			union.Add(k)
		}
	}
	if union.Cardinality() == 0 {
		return 1
	}

	matching := 0
	for k := range union.Iter() {
		av, inA := a[k]
		bv, inB := b[k]
		if inA && inB && sameValue(av, bv) {
			matching++
		}
	}
	return float64(matching) / float64(union.Cardinality())
}

func sameValue(a, b any) bool {
	if af, ok := models.ToNumber(a); ok {
		bf, ok := models.ToNumber(b)
		return ok && af == bf
	}
	return reflect.DeepEqual(a, b)
}

// roundScore убирает ошибки округления float, чтобы 0.8 оставалось 0.8
func roundScore(v float64) float64 {
	return math.Round(v*1e9) / 1e9
}
