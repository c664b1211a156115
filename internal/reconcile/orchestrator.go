// Package reconcile координирует путь пользовательского намерения:
// проверка дубликатов, очередь, оптимистичное применение, доставка,
// разрешение конфликтов и проверка подтверждения.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/iudanet/canvassync/internal/conflict"
	"github.com/iudanet/canvassync/internal/duplicate"
	"github.com/iudanet/canvassync/internal/models"
	"github.com/iudanet/canvassync/internal/queue"
	"github.com/iudanet/canvassync/internal/retry"
	"github.com/iudanet/canvassync/internal/state"
	"github.com/iudanet/canvassync/internal/transport"
	"github.com/iudanet/canvassync/internal/verify"
)

//go:generate moq -out sender_mock.go . Sender
//go:generate moq -out verifier_mock.go . Verifier

// Sender доставляет операцию на сервер
type Sender interface {
	Send(ctx context.Context, op transport.Operation) (*transport.Confirmation, error)
}

// Verifier выясняет судьбу операции без ответа
type Verifier interface {
	Verify(ctx context.Context, update *models.OptimisticUpdate) verify.Result
}

// Observer получает итог каждого намерения
type Observer interface {
	ObserveReconcile(res Result)
}

// Method способ, которым получен итог
type Method string

const (
	MethodNone   Method = "none"
	MethodSocket Method = Method(transport.MethodSocket)
	MethodREST   Method = Method(transport.MethodREST)
	MethodFailed Method = "failed"
)

// Итоги намерения
const (
	OutcomeConfirmed  = "confirmed"
	OutcomeConflicted = "conflicted"
	OutcomeFailed     = "failed"
	OutcomeDuplicate  = "duplicate"
	OutcomeInvalid    = "invalid"
	OutcomeCancelled  = "cancelled"
)

// Result единственный итог намерения
type Result struct {
	Object      *models.CanvasObject      `json:"object,omitempty"`
	Conflict    *models.UpdateConflict    `json:"conflict,omitempty"`
	Err         error                     `json:"-"`
	Duplicates  []duplicate.Candidate     `json:"duplicates,omitempty"`
	OperationID string                    `json:"operation_id"`
	UpdateID    string                    `json:"update_id,omitempty"`
	ObjectID    string                    `json:"object_id"`
	Method      Method                    `json:"method"`
	Resolution  models.ResolutionStrategy `json:"resolution,omitempty"`
	Status      models.UpdateStatus       `json:"status,omitempty"`
	Elapsed     time.Duration             `json:"elapsed"`
	Success     bool                      `json:"success"`
	Unverified  bool                      `json:"unverified,omitempty"`
	Deleted     bool                      `json:"deleted,omitempty"`
}

// Outcome классифицирует итог для телеметрии
func (r Result) Outcome() string {
	var dupErr *DuplicateError
	var valErr *ValidationError
	switch {
	case r.Success:
		return OutcomeConfirmed
	case errors.As(r.Err, &dupErr):
		return OutcomeDuplicate
	case errors.As(r.Err, &valErr):
		return OutcomeInvalid
	case errors.Is(r.Err, ErrCancelled):
		return OutcomeCancelled
	case r.Status == models.StatusConflicted:
		return OutcomeConflicted
	default:
		return OutcomeFailed
	}
}

func (r Result) clone() Result {
	c := r
	c.Object = r.Object.Clone()
	c.Conflict = r.Conflict.Clone()
	if r.Duplicates != nil {
		c.Duplicates = append([]duplicate.Candidate(nil), r.Duplicates...)
	}
	return c
}

// Config параметры оркестратора
type Config struct {
	// RejectionBackoff задержка перед повтором отклоненной операции
	RejectionBackoff retry.Policy `yaml:"-"`
	MaxRetries       int          `yaml:"max_retries"`
	ResultCacheSize  int          `yaml:"result_cache_size"`
	// DisableMergeWriteBack оставляет слитое состояние только локально
	DisableMergeWriteBack bool `yaml:"disable_merge_write_back"`
}

// DefaultConfig 3 повтора, кеш 1024 итогов
func DefaultConfig() Config {
	return Config{
		MaxRetries:      queue.DefaultMaxRetries,
		ResultCacheSize: 1024,
		RejectionBackoff: retry.Policy{
			BaseDelay: 500 * time.Millisecond,
			MaxDelay:  5 * time.Second,
			Jitter:    250 * time.Millisecond,
		},
	}
}

// Deps компоненты оркестратора. Sender обязателен, остальное
// создается по умолчанию. Verifier может отсутствовать.
type Deps struct {
	Sender     Sender
	Verifier   Verifier
	Observer   Observer
	Queue      *queue.Queue
	Resolver   *conflict.Resolver
	Duplicates *duplicate.Detector
	Store      *state.Store
	Logger     *slog.Logger
}

// Orchestrator точка входа Reconcile
type Orchestrator struct {
	sender     Sender
	verifier   Verifier
	observer   Observer
	queue      *queue.Queue
	resolver   *conflict.Resolver
	duplicates *duplicate.Detector
	store      *state.Store
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string
	sleep      retry.Sleeper
	results    *resultCache
	manual     map[string]*models.UpdateConflict // updateID -> конфликт
	counters   *counters
	inflight   singleflight.Group
	cfg        Config
	mu         sync.Mutex
	// stateMu делает переход очереди и запись в хранилище атомарными
	// для ожидающих того же объекта
	stateMu sync.Mutex
}

// Option настройка оркестратора
type Option func(*Orchestrator)

// WithClock подменяет источник времени
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithSleeper подменяет ожидание между повторами
func WithSleeper(s retry.Sleeper) Option {
	return func(o *Orchestrator) { o.sleep = s }
}

// WithIDGenerator подменяет генератор идентификаторов операций и объектов
func WithIDGenerator(gen func() string) Option {
	return func(o *Orchestrator) { o.newID = gen }
}

// New создает оркестратор
func New(cfg Config, deps Deps, opts ...Option) (*Orchestrator, error) {
	if deps.Sender == nil {
		return nil, ErrMissingSender
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	d := DefaultConfig()
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = d.MaxRetries
	}
	if cfg.ResultCacheSize <= 0 {
		cfg.ResultCacheSize = d.ResultCacheSize
	}
	if cfg.RejectionBackoff.BaseDelay <= 0 {
		cfg.RejectionBackoff = d.RejectionBackoff
	}

	o := &Orchestrator{
		sender:     deps.Sender,
		verifier:   deps.Verifier,
		observer:   deps.Observer,
		queue:      deps.Queue,
		resolver:   deps.Resolver,
		duplicates: deps.Duplicates,
		store:      deps.Store,
		logger:     logger,
		now:        time.Now,
		newID:      uuid.NewString,
		sleep:      retry.Wait,
		results:    newResultCache(cfg.ResultCacheSize),
		manual:     make(map[string]*models.UpdateConflict),
		counters:   newCounters(),
		cfg:        cfg,
	}
	if o.queue == nil {
		o.queue = queue.New(logger)
	}
	if o.resolver == nil {
		o.resolver = conflict.NewResolver(conflict.DefaultConfig(), logger)
	}
	if o.duplicates == nil {
		o.duplicates = duplicate.NewDetector(duplicate.DefaultConfig(), o.queue.HasPendingDelete)
	}
	if o.store == nil {
		o.store = state.NewStore()
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Store видимое состояние объектов
func (o *Orchestrator) Store() *state.Store {
	return o.store
}

// Reconcile проводит намерение до единственного итога.
// Повторный вызов с тем же OperationID возвращает сохраненный итог,
// одновременные вызовы разделяют один проход.
func (o *Orchestrator) Reconcile(ctx context.Context, in Intent) Result {
	if in.OperationID == "" {
		in.OperationID = o.newID()
	}
	if res, ok := o.results.get(in.OperationID); ok {
		return res.clone()
	}

	v, _, _ := o.inflight.Do(in.OperationID, func() (any, error) {
		if res, ok := o.results.get(in.OperationID); ok {
			return res, nil
		}
		res := o.run(ctx, in)
		if res.UpdateID != "" {
			o.results.put(in.OperationID, res)
		}
		return res, nil
	})
	return v.(Result).clone()
}

// flight рабочее состояние одного обновления
type flight struct {
	update  *models.OptimisticUpdate // локальная копия записи очереди
	applied bool                     // кандидат применен к хранилищу
}

func (f *flight) operation() transport.Operation {
	u := f.update
	op := transport.Operation{
		Object:      u.Object.Clone(),
		OperationID: u.OperationID,
		CanvasID:    u.CanvasID,
		ObjectID:    u.ObjectID,
		Type:        u.Type,
	}
	if u.OriginalObject != nil {
		op.BaseVersion = u.OriginalObject.Version
	}
	return op
}

func (o *Orchestrator) run(ctx context.Context, in Intent) (res Result) {
	start := o.now()
	f := &flight{}
	res = Result{OperationID: in.OperationID, ObjectID: in.ObjectID, Method: MethodNone}
	defer o.finish(f, &res, start)

	if !o.admit(ctx, in, f, &res) {
		return res
	}
	return o.dispatch(ctx, f, res)
}

// finish гасит панику, публикует телеметрию. Вызывается только через defer.
func (o *Orchestrator) finish(f *flight, res *Result, start time.Time) {
	if r := recover(); r != nil {
		o.logger.Error("reconcile panicked",
			"operation_id", res.OperationID,
			"panic", r,
			"stack", string(debug.Stack()))
		cause := fmt.Errorf("panic: %v", r)
		if f.update != nil {
			*res = o.exhaust(f, *res, ReasonInternal, cause, "")
		} else {
			res.Method = MethodFailed
			res.Err = &ExhaustionError{OperationID: res.OperationID, Reason: ReasonInternal, Cause: cause}
		}
	}
	res.Elapsed = o.now().Sub(start)
	o.counters.record(*res)
	if o.observer != nil {
		o.observer.ObserveReconcile(*res)
	}
}

// admit проверяет намерение, ждет освобождения объекта, ставит в очередь
// и применяет кандидата. false означает, что итог уже в res.
func (o *Orchestrator) admit(ctx context.Context, in Intent, f *flight, res *Result) bool {
	if err := validateIntent(in); err != nil {
		res.Err = err
		return false
	}
	objectID := in.ObjectID
	if objectID == "" {
		objectID = o.newID()
	}
	res.ObjectID = objectID

	for {
		if err := o.queue.WaitIdle(ctx, objectID); err != nil {
			res.Method = MethodFailed
			res.Err = &ExhaustionError{OperationID: in.OperationID, Reason: ReasonCancelled, Cause: err}
			return false
		}
		admitted, busy := o.enqueue(in, objectID, f, res)
		if !busy {
			return admitted
		}
	}
}

// enqueue строит кандидата, ставит его в очередь и применяет к
// хранилищу. busy означает, что объект успели занять и нужно ждать снова.
func (o *Orchestrator) enqueue(in Intent, objectID string, f *flight, res *Result) (admitted, busy bool) {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()

	candidate, original, err := o.prepare(in, objectID)
	if err != nil {
		res.Err = err
		return false, false
	}

	if in.Type == models.UpdateCreate && !in.AllowDuplicate {
		dups := o.duplicates.Check(candidate, o.store.List(in.CanvasID), o.now())
		res.Duplicates = dups
		if len(dups) > 0 && dups[0].ShouldBlock() {
			o.logger.Info("duplicate create prevented",
				"operation_id", in.OperationID,
				"duplicate_of", dups[0].Object.ID,
				"similarity", dups[0].Similarity)
			res.Err = &DuplicateError{Candidate: dups[0]}
			return false, false
		}
	}

	id, err := o.queue.Enqueue(queue.EnqueueRequest{
		Object:         candidate,
		OriginalObject: original,
		OperationID:    in.OperationID,
		CanvasID:       in.CanvasID,
		ObjectID:       objectID,
		Type:           in.Type,
		MaxRetries:     o.cfg.MaxRetries,
	})
	if errors.Is(err, queue.ErrObjectBusy) {
		return false, true
	}
	if err != nil {
		res.Err = &ValidationError{Err: err}
		return false, false
	}
	res.UpdateID = id

	update, err := o.queue.Get(id)
	if err != nil {
		res.Err = ErrCancelled
		return false, false
	}
	f.update = update

	o.store.ApplyOptimistic(objectID, update.Object)
	f.applied = true
	o.logger.Debug("optimistic update applied",
		"update_id", id,
		"object_id", objectID,
		"type", update.Type)
	return true, false
}

// dispatch доставляет операцию и переводит обновление в итоговое состояние
func (o *Orchestrator) dispatch(ctx context.Context, f *flight, res Result) Result {
	for {
		conf, err := o.sender.Send(ctx, f.operation())
		if err == nil {
			res.Method = Method(conf.Method)
			if conf.Deleted || f.update.Type == models.UpdateDelete {
				res.Resolution = models.ResolutionNone
				return o.confirm(f, nil, res)
			}
			if conf.Object != nil {
				return o.apply(ctx, f, o.resolver.Reconcile(f.update, conf.Object, nil), res)
			}
			err = fmt.Errorf("confirmation for %s carried no object", f.update.ObjectID)
		}

		var terr *transport.TransportError
		if !errors.As(err, &terr) || terr.Rejection() == nil {
			return o.verifyUnconfirmed(ctx, f, err, res)
		}

		resolution := o.resolver.Reconcile(f.update, nil, terr)
		res.Conflict = resolution.Conflict
		res.Resolution = resolution.Strategy
		switch resolution.Strategy {
		case models.ResolutionRetry:
			n, ierr := o.queue.IncrementRetry(f.update.ID)
			if ierr != nil {
				return o.cancelled(f, res)
			}
			f.update.RetryCount = n
			delay := o.cfg.RejectionBackoff.Delay(n - 1)
			o.logger.Info("retrying rejected update",
				"update_id", f.update.ID,
				"object_id", f.update.ObjectID,
				"retry", n,
				"delay", delay,
				"code", terr.Code())
			if serr := o.sleep(ctx, delay); serr != nil {
				return o.exhaust(f, res, ReasonCancelled, errors.Join(terr, serr), "")
			}
		case models.ResolutionManual:
			return o.markManual(f, resolution, res)
		default:
			return o.rollback(f, resolution, terr, res)
		}
	}
}

// apply применяет разрешение к очереди и хранилищу
func (o *Orchestrator) apply(ctx context.Context, f *flight, resolution conflict.Resolution, res Result) Result {
	res.Conflict = resolution.Conflict
	res.Resolution = resolution.Strategy

	switch resolution.Strategy {
	case models.ResolutionManual:
		return o.markManual(f, resolution, res)
	case models.ResolutionMerge:
		return o.confirm(f, o.writeBack(ctx, f, resolution), res)
	default:
		return o.confirm(f, resolution.Object, res)
	}
}

// writeBack отправляет слитое состояние серверу, чтобы версия сошлась
// с серверной. При неудаче остается локальное слияние.
func (o *Orchestrator) writeBack(ctx context.Context, f *flight, resolution conflict.Resolution) *models.CanvasObject {
	merged := resolution.Object
	if o.cfg.DisableMergeWriteBack || resolution.Conflict == nil || resolution.Conflict.ServerObject == nil {
		return merged
	}
	server := resolution.Conflict.ServerObject
	if conflict.PropertiesEqual(merged.Properties, server.Properties) {
		return server.Clone()
	}

	conf, err := o.sender.Send(ctx, transport.Operation{
		Object:      merged.Clone(),
		OperationID: f.update.OperationID + "-merge",
		CanvasID:    f.update.CanvasID,
		ObjectID:    f.update.ObjectID,
		Type:        models.UpdateUpdate,
		BaseVersion: server.Version,
	})
	if err != nil || conf.Object == nil {
		o.logger.Warn("merge write-back failed, keeping local merge",
			"update_id", f.update.ID,
			"object_id", f.update.ObjectID,
			"version", merged.Version,
			"error", err)
		return merged
	}
	return conf.Object
}

// confirm фиксирует итог; final == nil означает, что объекта нет
func (o *Orchestrator) confirm(f *flight, final *models.CanvasObject, res Result) Result {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()

	if err := o.queue.Confirm(f.update.ID, final); err != nil {
		o.absorbLate(f, final)
		return o.cancelled(f, res)
	}
	res.Object = o.store.Settle(f.update.ObjectID, final)
	res.Status = models.StatusConfirmed
	res.Success = true
	res.Deleted = final == nil
	return res
}

func (o *Orchestrator) markManual(f *flight, resolution conflict.Resolution, res Result) Result {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()

	res.Conflict = resolution.Conflict
	res.Resolution = models.ResolutionManual
	if err := o.queue.MarkConflicted(f.update.ID, resolution.Object); err != nil {
		o.absorbLate(f, resolution.Object)
		return o.cancelled(f, res)
	}
	res.Object = o.store.Settle(f.update.ObjectID, resolution.Object)
	res.Status = models.StatusConflicted
	res.Err = &ConflictError{Conflict: resolution.Conflict.Clone(), UpdateID: f.update.ID}

	o.mu.Lock()
	o.manual[f.update.ID] = resolution.Conflict.Clone()
	o.mu.Unlock()
	return res
}

func (o *Orchestrator) rollback(f *flight, resolution conflict.Resolution, terr *transport.TransportError, res Result) Result {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()

	if err := o.queue.Fail(f.update.ID, terr.Code()); err != nil {
		return o.cancelled(f, res)
	}
	res.Object = o.store.Settle(f.update.ObjectID, resolution.Object)
	res.Status = models.StatusFailed
	res.Method = MethodFailed
	res.Err = &ExhaustionError{
		OperationID: f.update.OperationID,
		Reason:      ReasonRejected,
		Cause:       terr,
		Message:     terr.UserMessage(),
	}
	o.logger.Warn("update rolled back",
		"update_id", f.update.ID,
		"object_id", f.update.ObjectID,
		"retries", f.update.RetryCount,
		"code", terr.Code())
	return res
}

// verifyUnconfirmed передает операцию без ответа сервера в Verifier.
// Проверка выполняется даже после отмены ctx, чтобы хранилище не
// осталось с неподтвержденным значением.
func (o *Orchestrator) verifyUnconfirmed(ctx context.Context, f *flight, sendErr error, res Result) Result {
	if o.verifier == nil {
		return o.exhaust(f, res, ReasonUnverified, sendErr, "")
	}
	o.logger.Warn("delivery unconfirmed, verifying",
		"update_id", f.update.ID,
		"object_id", f.update.ObjectID,
		"error", sendErr)

	vres := o.verifier.Verify(context.WithoutCancel(ctx), f.update.Clone())
	res.Method = Method(vres.Method)

	switch {
	case vres.Method == verify.MethodFailed || vres.Err != nil:
		return o.exhaust(f, res, ReasonUnverified, errors.Join(sendErr, vres.Err), vres.Message)
	case vres.Deleted && f.update.Type == models.UpdateDelete:
		res.Resolution = models.ResolutionNone
		return o.confirm(f, nil, res)
	case vres.Unverified:
		o.logger.Warn("accepting unverified state",
			"update_id", f.update.ID,
			"object_id", f.update.ObjectID,
			"method", vres.Method)
		res.Unverified = true
		res.Resolution = models.ResolutionNone
		return o.confirm(f, vres.Object, res)
	case vres.Object == nil:
		return o.exhaust(f, res, ReasonUnverified, sendErr, vres.Message)
	}

	// найденный объект итоговый и с кандидатом не сливается
	if f.update.Type == models.UpdateCreate ||
		conflict.Reflects(f.update.OriginalObject, f.update.Object, vres.Object) {
		res.Resolution = models.ResolutionNone
		return o.confirm(f, vres.Object, res)
	}
	o.logger.Warn("verified state does not contain the change",
		"update_id", f.update.ID,
		"object_id", f.update.ObjectID,
		"method", vres.Method,
		"server_version", vres.Object.Version)
	return o.fail(f, res, vres.Object, ReasonUnverified, errors.Join(ErrNotApplied, sendErr),
		"The change did not reach the server. The canvas shows the current server state.")
}

// exhaust переводит обновление в failed и откатывает хранилище
func (o *Orchestrator) exhaust(f *flight, res Result, reason string, cause error, message string) Result {
	return o.fail(f, res, f.update.OriginalObject, reason, cause, message)
}

// fail переводит обновление в failed; хранилище получает final
func (o *Orchestrator) fail(f *flight, res Result, final *models.CanvasObject, reason string, cause error, message string) Result {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()

	if err := o.queue.Fail(f.update.ID, reason); err != nil && !errors.Is(err, queue.ErrNotFound) {
		return o.cancelled(f, res)
	}
	if f.applied {
		res.Object = o.store.Settle(f.update.ObjectID, final)
	}
	res.Status = models.StatusFailed
	res.Method = MethodFailed
	res.Success = false
	res.Err = &ExhaustionError{
		OperationID: f.update.OperationID,
		Reason:      reason,
		Cause:       cause,
		Message:     message,
	}
	return res
}

func (o *Orchestrator) cancelled(f *flight, res Result) Result {
	o.logger.Info("result of cancelled update ignored",
		"update_id", f.update.ID,
		"object_id", f.update.ObjectID)
	res.Status = ""
	res.Success = false
	res.Object = o.store.Get(f.update.ObjectID)
	res.Err = ErrCancelled
	return res
}

// absorbLate учитывает ответ сервера, пришедший после отмены: в хранилище
// попадает фактическое серверное состояние.
func (o *Orchestrator) absorbLate(f *flight, final *models.CanvasObject) {
	objectID := f.update.ObjectID
	if o.store.IsPending(objectID) && !o.queue.HasPending(objectID) {
		o.store.Settle(objectID, final)
		return
	}
	if final == nil {
		o.store.ApplyRemoteDelete(objectID, 0)
		return
	}
	o.store.ApplyRemote(final)
}

// resultCache ограниченный кеш итогов по OperationID, вытесняет старые
type resultCache struct {
	items map[string]Result
	order []string
	size  int
	mu    sync.Mutex
}

func newResultCache(size int) *resultCache {
	return &resultCache{items: make(map[string]Result), size: size}
}

func (c *resultCache) get(key string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.items[key]
	return r, ok
}

func (c *resultCache) put(key string, r Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[key]; !ok {
		c.order = append(c.order, key)
	}
	c.items[key] = r
	if over := len(c.order) - c.size; over > 0 {
		for _, old := range c.order[:over] {
			delete(c.items, old)
		}
		c.order = c.order[over:]
	}
}
