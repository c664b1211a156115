// Package conflict обнаруживает расхождения между оптимистичным и серверным
// состоянием объекта и разрешает их по фиксированным правилам приоритета.
package conflict

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/r3labs/diff/v3"

	"github.com/iudanet/canvassync/internal/models"
	"github.com/iudanet/canvassync/internal/retry"
)

// Допуски по умолчанию
const (
	DefaultConcurrentWindow = 5000 * time.Millisecond
	DefaultDriftDistance    = 100.0
	DefaultDriftSize        = 100.0
	DefaultHistorySize      = 100
)

// Config допуски детектора и емкость истории
type Config struct {
	// ManualTypes типы конфликтов, требующие решения пользователя
	ManualTypes      []models.ConflictType `yaml:"manual_types"`
	ConcurrentWindow time.Duration         `yaml:"concurrent_window"`
	DriftDistance    float64               `yaml:"drift_distance"`
	DriftSize        float64               `yaml:"drift_size"`
	HistorySize      int                   `yaml:"history_size"`
}

// DefaultConfig допуски по умолчанию
func DefaultConfig() Config {
	return Config{
		ConcurrentWindow: DefaultConcurrentWindow,
		DriftDistance:    DefaultDriftDistance,
		DriftSize:        DefaultDriftSize,
		HistorySize:      DefaultHistorySize,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ConcurrentWindow <= 0 {
		c.ConcurrentWindow = d.ConcurrentWindow
	}
	if c.DriftDistance <= 0 {
		c.DriftDistance = d.DriftDistance
	}
	if c.DriftSize <= 0 {
		c.DriftSize = d.DriftSize
	}
	if c.HistorySize <= 0 {
		c.HistorySize = d.HistorySize
	}
	return c
}

// Detect сравнивает кандидата обновления с ответом сервера.
// Возвращает nil, если значимого расхождения нет.
// Порядок проверки: version_mismatch, concurrent_edit, state_drift.
// serverErr != nil означает server_rejection.
func (r *Resolver) Detect(update *models.OptimisticUpdate, server *models.CanvasObject, serverErr error) *models.UpdateConflict {
	if update == nil {
		return nil
	}

	if serverErr != nil {
		severity := models.SeverityHigh
		if !retry.IsRetryable(serverErr) {
			severity = models.SeverityCritical
		}
		return r.newConflict(update, server, models.ConflictServerRejection, severity,
			fmt.Sprintf("server rejected %s of %s: %v", update.Type, update.ObjectID, serverErr), nil)
	}

	local := update.Object
	if local == nil || server == nil {
		return nil
	}
	if local.ObjectType == server.ObjectType && PropertiesEqual(local.Properties, server.Properties) {
		return nil
	}

	changed := ChangedFields(local, server)
	cfg := r.cfg

	if local.Version != server.Version {
		return r.newConflict(update, server, models.ConflictVersionMismatch, models.SeverityHigh,
			fmt.Sprintf("expected version %d, server has %d", local.Version, server.Version), changed)
	}

	if delta := absDuration(local.UpdatedAt.Sub(server.UpdatedAt)); delta < cfg.ConcurrentWindow {
		return r.newConflict(update, server, models.ConflictConcurrentEdit, models.SeverityMedium,
			fmt.Sprintf("object edited concurrently (%s apart)", delta), changed)
	}

	distance := models.Distance(local, server)
	lw, lh := local.Size()
	sw, sh := server.Size()
	sizeDelta := math.Abs(lw-sw) + math.Abs(lh-sh)
	if distance > cfg.DriftDistance || sizeDelta > cfg.DriftSize {
		return r.newConflict(update, server, models.ConflictStateDrift, models.SeverityMedium,
			fmt.Sprintf("local state drifted (position %.1f, size %.1f)", distance, sizeDelta), changed)
	}

	return nil
}

func (r *Resolver) newConflict(
	update *models.OptimisticUpdate,
	server *models.CanvasObject,
	ct models.ConflictType,
	severity models.Severity,
	message string,
	changed []string,
) *models.UpdateConflict {
	return &models.UpdateConflict{
		Timestamp:     r.now(),
		Update:        update.Clone(),
		ServerObject:  server.Clone(),
		Type:          ct,
		Severity:      severity,
		Message:       message,
		ChangedFields: changed,
	}
}

// PropertiesEqual сравнивает наборы свойств; числа сравниваются по значению
// независимо от типа (int и float64 после JSON).
func PropertiesEqual(a, b models.Properties) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok {
			return false
		}
		if !valuesEqual(av, bv) {
			return false
		}
	}
	return true
}

// Reflects сообщает, дошло ли локальное изменение до сервера: версия сервера
// не ниже версии кандидата, а поля, измененные кандидатом относительно
// original, совпадают на сервере. Ключи, удаленные кандидатом, на сервере
// должны отсутствовать.
func Reflects(original, candidate, server *models.CanvasObject) bool {
	if candidate == nil || server == nil || server.Version < candidate.Version {
		return false
	}
	var before models.Properties
	if original != nil {
		before = original.Properties
	}
	for k, cv := range candidate.Properties {
		if ov, ok := before[k]; ok && valuesEqual(ov, cv) {
			continue
		}
		sv, ok := server.Properties[k]
		if !ok || !valuesEqual(sv, cv) {
			return false
		}
	}
	for k := range before {
		if _, kept := candidate.Properties[k]; kept {
			continue
		}
		if _, ok := server.Properties[k]; ok {
			return false
		}
	}
	return true
}

func valuesEqual(a, b any) bool {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		return ok && af == bf
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	return models.ToNumber(v)
}

// ChangedFields возвращает отсортированные пути различающихся полей
func ChangedFields(local, server *models.CanvasObject) []string {
	fields := make(map[string]struct{})
	if local.ObjectType != server.ObjectType {
		fields["object_type"] = struct{}{}
	}
	if local.Version != server.Version {
		fields["version"] = struct{}{}
	}

	changelog, err := diff.Diff(normalize(server.Properties), normalize(local.Properties))
	if err != nil {
		// diff не смог сравнить значения - сравниваем ключи напрямую
		for k := range unionKeys(local.Properties, server.Properties) {
			if !valuesEqual(local.Properties[k], server.Properties[k]) {
				fields["properties."+k] = struct{}{}
			}
		}
	} else {
		for _, change := range changelog {
			if len(change.Path) == 0 {
				continue
			}
			fields["properties."+change.Path[0]] = struct{}{}
		}
	}

	out := make([]string, 0, len(fields))
	for f := range fields {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// normalize приводит числа к float64, чтобы diff не видел разницы int/float64
func normalize(p models.Properties) map[string]any {
	out := make(map[string]any, len(p))
	for k, v := range p {
		if f, ok := toFloat(v); ok {
			out[k] = f
			continue
		}
		out[k] = v
	}
	return out
}

func unionKeys(a, b models.Properties) map[string]struct{} {
	keys := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		keys[k] = struct{}{}
	}
	for k := range b {
		keys[k] = struct{}{}
	}
	return keys
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func describeFields(fields []string) string {
	if len(fields) == 0 {
		return "-"
	}
	return strings.Join(fields, ",")
}
