package conflict

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/iudanet/canvassync/internal/models"
)

// Resolution итог разрешения конфликта
type Resolution struct {
	Object   *models.CanvasObject   // итоговое состояние; nil означает, что объекта нет
	Conflict *models.UpdateConflict // nil, если конфликта не было
	Strategy models.ResolutionStrategy
}

// Stats счетчики конфликтов
type Stats struct {
	ByType       map[models.ConflictType]int64       `json:"by_type"`
	ByResolution map[models.ResolutionStrategy]int64 `json:"by_resolution"`
	Total        int64                               `json:"total"`
}

// Resolver детектор и резолвер конфликтов с ограниченной историей
type Resolver struct {
	now          func() time.Time
	logger       *slog.Logger
	manual       mapset.Set[models.ConflictType]
	byType       map[models.ConflictType]int64
	byResolution map[models.ResolutionStrategy]int64
	history      []*models.UpdateConflict
	cfg          Config
	total        int64
	mu           sync.Mutex
}

// NewResolver создает резолвер
func NewResolver(cfg Config, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &Resolver{
		now:          time.Now,
		logger:       logger,
		manual:       mapset.NewSet(cfg.ManualTypes...),
		byType:       make(map[models.ConflictType]int64),
		byResolution: make(map[models.ResolutionStrategy]int64),
		cfg:          cfg,
	}
}

// SetClock подменяет источник времени меток конфликтов
func (r *Resolver) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// Reconcile выполняет обнаружение и разрешение за один шаг.
// Без конфликта итоговым состоянием становится ответ сервера.
func (r *Resolver) Reconcile(update *models.OptimisticUpdate, server *models.CanvasObject, serverErr error) Resolution {
	c := r.Detect(update, server, serverErr)
	if c == nil {
		return Resolution{Strategy: models.ResolutionNone, Object: server.Clone()}
	}
	return r.Resolve(update, c)
}

// Resolve выбирает детерминированное разрешение и записывает конфликт в историю.
func (r *Resolver) Resolve(update *models.OptimisticUpdate, c *models.UpdateConflict) Resolution {
	res := r.resolve(update, c)
	c.Resolution = res.Strategy
	res.Conflict = c
	r.record(c)

	r.logger.Info("conflict resolved",
		"update_id", update.ID,
		"object_id", update.ObjectID,
		"type", c.Type,
		"severity", c.Severity,
		"resolution", res.Strategy,
		"fields", describeFields(c.ChangedFields),
	)
	return res
}

func (r *Resolver) resolve(update *models.OptimisticUpdate, c *models.UpdateConflict) Resolution {
	server := c.ServerObject
	local := update.Object

	if r.manual.Contains(c.Type) {
		if server == nil {
			return Resolution{Strategy: models.ResolutionManual, Object: update.OriginalObject.Clone()}
		}
		return Resolution{Strategy: models.ResolutionManual, Object: server.Clone()}
	}

	switch c.Type {
	case models.ConflictVersionMismatch:
		if server.Version > local.Version {
			return Resolution{Strategy: models.ResolutionServerWins, Object: server.Clone()}
		}
		merged, err := Merge(server, local)
		if err != nil {
			r.logger.Warn("merge failed, server wins", "update_id", update.ID, "error", err)
			return Resolution{Strategy: models.ResolutionServerWins, Object: server.Clone()}
		}
		// max+1 опережает серверный счетчик; следующий ответ сервера
		// снова даст version_mismatch и будет разрешен в пользу сервера
		r.logger.Warn("version advanced locally past server",
			"object_id", update.ObjectID,
			"local_version", local.Version,
			"server_version", server.Version,
			"merged_version", merged.Version,
		)
		return Resolution{Strategy: models.ResolutionMerge, Object: merged}

	case models.ConflictConcurrentEdit:
		merged, err := Merge(server, local)
		if err != nil {
			return Resolution{Strategy: models.ResolutionServerWins, Object: server.Clone()}
		}
		return Resolution{Strategy: models.ResolutionMerge, Object: merged}

	case models.ConflictStateDrift:
		return Resolution{Strategy: models.ResolutionServerWins, Object: server.Clone()}

	case models.ConflictServerRejection:
		if update.RetryCount < update.MaxRetries {
			return Resolution{Strategy: models.ResolutionRetry, Object: local.Clone()}
		}
		// откат: для create исходного снимка нет, объект исчезает
		return Resolution{Strategy: models.ResolutionRollback, Object: update.OriginalObject.Clone()}
	}

	return Resolution{Strategy: models.ResolutionServerWins, Object: server.Clone()}
}

// Merge накладывает свойства local поверх server (локальные значения
// выигрывают при совпадении ключей). Остальные поля берутся с сервера,
// версия равна max(local, server)+1.
func Merge(server, local *models.CanvasObject) (*models.CanvasObject, error) {
	if server == nil || local == nil {
		return nil, fmt.Errorf("%w: missing side", ErrMergeFailed)
	}
	if server.ObjectType != local.ObjectType {
		return nil, fmt.Errorf("%w: type %s vs %s", ErrMergeFailed, local.ObjectType, server.ObjectType)
	}
	if server.CanvasID != local.CanvasID {
		return nil, fmt.Errorf("%w: canvas %s vs %s", ErrMergeFailed, local.CanvasID, server.CanvasID)
	}

	merged := server.Clone()
	if merged.Properties == nil {
		merged.Properties = make(models.Properties, len(local.Properties))
	}
	for k, v := range local.Properties {
		merged.Properties[k] = v
	}
	merged.Version = max(server.Version, local.Version) + 1
	if local.UpdatedAt.After(merged.UpdatedAt) {
		merged.UpdatedAt = local.UpdatedAt
	}
	return merged, nil
}

func (r *Resolver) record(c *models.UpdateConflict) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.history = append(r.history, c.Clone())
	if over := len(r.history) - r.cfg.HistorySize; over > 0 {
		clear(r.history[:over])
		r.history = r.history[over:]
	}
	r.total++
	r.byType[c.Type]++
	r.byResolution[c.Resolution]++
}

// History возвращает копию истории конфликтов, старые первыми
func (r *Resolver) History() []*models.UpdateConflict {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*models.UpdateConflict, len(r.history))
	for i, c := range r.history {
		out[i] = c.Clone()
	}
	return out
}

// ClearHistory очищает историю (счетчики сохраняются)
func (r *Resolver) ClearHistory() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = nil
}

// Stats возвращает копию счетчиков
func (r *Resolver) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Stats{
		Total:        r.total,
		ByType:       make(map[models.ConflictType]int64, len(r.byType)),
		ByResolution: make(map[models.ResolutionStrategy]int64, len(r.byResolution)),
	}
	for k, v := range r.byType {
		s.ByType[k] = v
	}
	for k, v := range r.byResolution {
		s.ByResolution[k] = v
	}
	return s
}
