package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/iudanet/canvassync/internal/conflict"
	"github.com/iudanet/canvassync/internal/models"
	"github.com/iudanet/canvassync/internal/pubsub"
	"github.com/iudanet/canvassync/internal/queue"
	"github.com/iudanet/canvassync/pkg/api"
)

// Choice решение пользователя по ручному конфликту
type Choice string

const (
	ChoiceAcceptServer Choice = "accept_server"
	ChoiceRetryLocal   Choice = "retry_local"
)

// Metrics снимок телеметрии оркестратора
type Metrics struct {
	Outcomes          map[string]int64 `json:"outcomes"`
	Methods           map[Method]int64 `json:"methods"`
	Conflicts         conflict.Stats   `json:"conflicts"`
	Queue             queue.Statistics `json:"queue"`
	AverageLatency    time.Duration    `json:"average_latency"`
	Total             int64            `json:"total"`
	Unverified        int64            `json:"unverified"`
	DuplicatesBlocked int64            `json:"duplicates_blocked"`
}

type counters struct {
	outcomes   map[string]int64
	methods    map[Method]int64
	latency    time.Duration
	total      int64
	unverified int64
	mu         sync.Mutex
}

func newCounters() *counters {
	return &counters{
		outcomes: make(map[string]int64),
		methods:  make(map[Method]int64),
	}
}

func (c *counters) record(res Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total++
	c.outcomes[res.Outcome()]++
	if res.UpdateID != "" {
		c.methods[res.Method]++
	}
	if res.Unverified {
		c.unverified++
	}
	c.latency += res.Elapsed
}

// GetMetrics снимок счетчиков оркестратора, очереди и резолвера
func (o *Orchestrator) GetMetrics() Metrics {
	o.counters.mu.Lock()
	m := Metrics{
		Outcomes:          make(map[string]int64, len(o.counters.outcomes)),
		Methods:           make(map[Method]int64, len(o.counters.methods)),
		Total:             o.counters.total,
		Unverified:        o.counters.unverified,
		DuplicatesBlocked: o.counters.outcomes[OutcomeDuplicate],
	}
	for k, v := range o.counters.outcomes {
		m.Outcomes[k] = v
	}
	for k, v := range o.counters.methods {
		m.Methods[k] = v
	}
	if o.counters.total > 0 {
		m.AverageLatency = o.counters.latency / time.Duration(o.counters.total)
	}
	o.counters.mu.Unlock()

	m.Queue = o.queue.Statistics()
	m.Conflicts = o.resolver.Stats()
	return m
}

// GetPendingUpdates копии ожидающих обновлений
func (o *Orchestrator) GetPendingUpdates() []*models.OptimisticUpdate {
	return o.queue.Pending()
}

// GetConflictHistory копия истории конфликтов
func (o *Orchestrator) GetConflictHistory() []*models.UpdateConflict {
	return o.resolver.History()
}

// GetFailedUpdates копии неудачных обновлений
func (o *Orchestrator) GetFailedUpdates() []*models.OptimisticUpdate {
	failed, _ := o.queue.History(models.StatusFailed)
	return failed
}

// Cancel снимает ожидающее обновление и возвращает объект в исходное
// состояние. Ответ сервера, пришедший позже, не меняет итог.
func (o *Orchestrator) Cancel(updateID string) error {
	o.stateMu.Lock()
	u, err := o.queue.Cancel(updateID)
	if err != nil {
		o.stateMu.Unlock()
		return fmt.Errorf("failed to cancel update %s: %w", updateID, err)
	}
	o.store.Settle(u.ObjectID, u.OriginalObject)
	o.stateMu.Unlock()
	o.logger.Info("update cancelled", "update_id", updateID, "object_id", u.ObjectID)
	return nil
}

// ResolveManually завершает конфликт, ожидающий решения пользователя.
// accept_server оставляет серверное состояние, retry_local заново
// отправляет локальные свойства поверх него.
func (o *Orchestrator) ResolveManually(ctx context.Context, updateID string, choice Choice) Result {
	if choice != ChoiceAcceptServer && choice != ChoiceRetryLocal {
		return Result{Method: MethodNone, Err: invalid("choice", "unknown choice "+string(choice))}
	}

	o.mu.Lock()
	c, ok := o.manual[updateID]
	if ok {
		delete(o.manual, updateID)
	}
	o.mu.Unlock()
	if !ok {
		return Result{Method: MethodNone, Err: fmt.Errorf("%w: %s", ErrNoManualConflict, updateID)}
	}

	u := c.Update
	// при отказе сервера его состояние - исходный объект
	server := c.ServerObject
	if c.Type == models.ConflictServerRejection {
		server = u.OriginalObject
	}

	o.stateMu.Lock()
	err := o.queue.Confirm(updateID, server)
	var obj *models.CanvasObject
	if err == nil && choice == ChoiceAcceptServer {
		obj = o.store.Settle(u.ObjectID, server)
	}
	o.stateMu.Unlock()
	if err != nil {
		return Result{Method: MethodNone, ObjectID: u.ObjectID, Err: fmt.Errorf("failed to close conflict: %w", err)}
	}

	if choice == ChoiceAcceptServer {
		o.logger.Info("conflict resolved by user", "update_id", updateID, "choice", choice)
		return Result{
			Object:      obj,
			OperationID: u.OperationID,
			UpdateID:    updateID,
			ObjectID:    u.ObjectID,
			Method:      MethodNone,
			Resolution:  models.ResolutionServerWins,
			Status:      models.StatusConfirmed,
			Success:     true,
			Deleted:     obj == nil,
		}
	}

	in := Intent{
		OperationID: o.newID(),
		CanvasID:    u.CanvasID,
		ObjectID:    u.ObjectID,
		Type:        u.Type,
		Replace:     true,
	}
	switch {
	case u.Type == models.UpdateDelete:
	case u.Type == models.UpdateCreate && server == nil:
		in.Type = models.UpdateCreate
		in.ObjectType = u.Object.ObjectType
		in.Payload = u.Object.Properties.Clone()
		in.AllowDuplicate = true
	default:
		in.Type = models.UpdateUpdate
		in.Payload = u.Object.Properties.Clone()
	}
	o.logger.Info("conflict resolved by user", "update_id", updateID, "choice", choice, "operation_id", in.OperationID)
	return o.Reconcile(ctx, in)
}

// RetryFailed заново отправляет неудачные обновления, объекты которых
// свободны. Кандидат перестраивается поверх текущего состояния.
func (o *Orchestrator) RetryFailed(ctx context.Context) []Result {
	requeued := o.queue.RetryFailed()
	results := make([]Result, 0, len(requeued))
	for _, u := range requeued {
		res := o.redispatch(ctx, u)
		o.results.put(u.OperationID, res)
		results = append(results, res.clone())
	}
	return results
}

func (o *Orchestrator) redispatch(ctx context.Context, u *models.OptimisticUpdate) (res Result) {
	start := o.now()
	f := &flight{update: u}
	res = Result{OperationID: u.OperationID, UpdateID: u.ID, ObjectID: u.ObjectID, Method: MethodNone}
	defer o.finish(f, &res, start)

	o.rebase(f)
	return o.dispatch(ctx, f, res)
}

// rebase перестраивает кандидата поверх текущего состояния и применяет его
func (o *Orchestrator) rebase(f *flight) {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()

	u := f.update
	if base := o.store.Get(u.ObjectID); base != nil && u.Type != models.UpdateCreate {
		u.OriginalObject = base
		if u.Object != nil {
			candidate := base.Clone()
			candidate.Properties = u.Object.Properties.Clone()
			candidate.Version = base.Version + 1
			candidate.UpdatedAt = o.now().UTC()
			u.Object = candidate
		}
	}
	o.store.ApplyOptimistic(u.ObjectID, u.Object)
	f.applied = true
}

// EventSource подписка на события потока
type EventSource interface {
	Subscribe(eventType string, handler func(api.Event)) pubsub.Unsubscribe
}

// Attach применяет изменения других участников к хранилищу.
// Возвращает функцию отписки.
func (o *Orchestrator) Attach(src EventSource) pubsub.Unsubscribe {
	unsubs := []pubsub.Unsubscribe{
		src.Subscribe(api.EventObjectChanged, func(ev api.Event) { o.HandleRemote(ev) }),
		src.Subscribe(api.EventObjectDeleted, func(ev api.Event) { o.HandleRemote(ev) }),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// HandleRemote применяет object:changed / object:deleted. Для ожидающего
// объекта изменение откладывается до итога. Возвращает true, если видимое
// состояние изменилось.
func (o *Orchestrator) HandleRemote(ev api.Event) bool {
	switch ev.Type {
	case api.EventObjectChanged:
		var changed api.ObjectChanged
		if err := ev.Decode(&changed); err != nil {
			o.logger.Warn("failed to decode remote change", "event_id", ev.ID, "error", err)
			return false
		}
		return o.store.ApplyRemote(models.ObjectFromAPI(changed.Object))
	case api.EventObjectDeleted:
		var deleted api.ObjectDeleted
		if err := ev.Decode(&deleted); err != nil {
			o.logger.Warn("failed to decode remote delete", "event_id", ev.ID, "error", err)
			return false
		}
		return o.store.ApplyRemoteDelete(deleted.ObjectID, deleted.Version)
	}
	return false
}
