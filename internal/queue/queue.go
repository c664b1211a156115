// Package queue отслеживает мутации в полете и гарантирует, что у каждого
// объекта не более одного ожидающего обновления.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"

	"github.com/iudanet/canvassync/internal/models"
)

// DefaultHistorySize емкость каждой истории (confirmed/failed/conflicted)
const DefaultHistorySize = 100

// DefaultMaxRetries лимит повторов для новых обновлений
const DefaultMaxRetries = 3

// EnqueueRequest параметры новой мутации
type EnqueueRequest struct {
	Object         *models.CanvasObject // кандидат, nil для delete
	OriginalObject *models.CanvasObject // снимок для отката, nil для create
	OperationID    string
	CanvasID       string
	ObjectID       string
	Type           models.UpdateType
	MaxRetries     int
}

// Statistics снимок счетчиков очереди
type Statistics struct {
	OldestPending  time.Duration `json:"oldest_pending"`
	Pending        int           `json:"pending"`
	Confirmed      int           `json:"confirmed"`
	Failed         int           `json:"failed"`
	Conflicted     int           `json:"conflicted"`
	TotalEnqueued  int64         `json:"total_enqueued"`
	TotalConfirmed int64         `json:"total_confirmed"`
	TotalFailed    int64         `json:"total_failed"`
	TotalConflicts int64         `json:"total_conflicts"`
	Cancelled      int64         `json:"cancelled"`
}

// Queue очередь ожидающих операций
type Queue struct {
	now    func() time.Time
	newID  func() string
	logger *slog.Logger

	pending  map[string]*models.OptimisticUpdate // updateID -> update
	byObject map[string]string                   // objectID -> updateID
	idle     map[string]chan struct{}            // закрывается, когда объект освобождается

	confirmed  []*models.OptimisticUpdate
	failed     []*models.OptimisticUpdate
	conflicted []*models.OptimisticUpdate

	// отмененные обновления: поздние результаты получают ErrNotPending
	cancelled      mapset.Set[string]
	cancelledOrder []string

	stats       Statistics
	historySize int
	mu          sync.Mutex
}

// Option настройка очереди
type Option func(*Queue)

// WithHistorySize задает емкость историй
func WithHistorySize(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.historySize = n
		}
	}
}

// WithClock подменяет источник времени
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// WithIDGenerator подменяет генератор идентификаторов обновлений
func WithIDGenerator(gen func() string) Option {
	return func(q *Queue) { q.newID = gen }
}

// New создает очередь
func New(logger *slog.Logger, opts ...Option) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		now:         time.Now,
		newID:       uuid.NewString,
		logger:      logger,
		pending:     make(map[string]*models.OptimisticUpdate),
		byObject:    make(map[string]string),
		idle:        make(map[string]chan struct{}),
		cancelled:   mapset.NewThreadUnsafeSet[string](),
		historySize: DefaultHistorySize,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue создает новое ожидающее обновление.
// Возвращает ErrObjectBusy, если у объекта уже есть ожидающее обновление.
func (q *Queue) Enqueue(req EnqueueRequest) (string, error) {
	if req.ObjectID == "" || !req.Type.Valid() {
		return "", fmt.Errorf("%w: object id %q, type %q", ErrInvalidRequest, req.ObjectID, req.Type)
	}
	if req.Type != models.UpdateDelete && req.Object == nil {
		return "", fmt.Errorf("%w: %s requires a candidate object", ErrInvalidRequest, req.Type)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if busy, ok := q.byObject[req.ObjectID]; ok {
		return "", fmt.Errorf("%w: object %s is held by update %s", ErrObjectBusy, req.ObjectID, busy)
	}

	maxRetries := req.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	u := &models.OptimisticUpdate{
		ID:             q.newID(),
		OperationID:    req.OperationID,
		CanvasID:       req.CanvasID,
		ObjectID:       req.ObjectID,
		Type:           req.Type,
		Object:         req.Object.Clone(),
		OriginalObject: req.OriginalObject.Clone(),
		Timestamp:      q.now(),
		Status:         models.StatusPending,
		MaxRetries:     maxRetries,
	}
	q.addPendingLocked(u)
	q.stats.TotalEnqueued++

	q.logger.Debug("update enqueued",
		"update_id", u.ID,
		"object_id", u.ObjectID,
		"type", u.Type,
	)
	return u.ID, nil
}

// EnqueueWait ставит обновление в очередь, дожидаясь освобождения объекта.
func (q *Queue) EnqueueWait(ctx context.Context, req EnqueueRequest) (string, error) {
	for {
		id, err := q.Enqueue(req)
		if err == nil || !isBusy(err) {
			return id, err
		}
		if err := q.WaitIdle(ctx, req.ObjectID); err != nil {
			return "", fmt.Errorf("failed to wait for object %s: %w", req.ObjectID, err)
		}
	}
}

// WaitIdle блокируется, пока у объекта есть ожидающее обновление.
func (q *Queue) WaitIdle(ctx context.Context, objectID string) error {
	for {
		q.mu.Lock()
		_, busy := q.byObject[objectID]
		ch := q.idle[objectID]
		q.mu.Unlock()

		if !busy || ch == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

// Confirm переводит обновление в confirmed с подтвержденным сервером состоянием.
// Допускается из pending и из conflicted (ручное разрешение).
func (q *Queue) Confirm(id string, server *models.CanvasObject) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	u, err := q.takeLocked(id, true)
	if err != nil {
		return err
	}
	u.Status = models.StatusConfirmed
	u.ServerObject = server.Clone()
	q.confirmed = q.pushHistory(q.confirmed, u)
	q.stats.TotalConfirmed++

	q.logger.Debug("update confirmed", "update_id", id, "object_id", u.ObjectID)
	return nil
}

// Fail переводит ожидающее обновление в failed
func (q *Queue) Fail(id, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	u, err := q.takeLocked(id, false)
	if err != nil {
		return err
	}
	u.Status = models.StatusFailed
	u.FailureReason = reason
	q.failed = q.pushHistory(q.failed, u)
	q.stats.TotalFailed++

	q.logger.Debug("update failed", "update_id", id, "object_id", u.ObjectID, "reason", reason)
	return nil
}

// MarkConflicted переводит ожидающее обновление в conflicted.
// resolved - состояние после разрешения конфликта (может быть nil).
func (q *Queue) MarkConflicted(id string, resolved *models.CanvasObject) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	u, err := q.takeLocked(id, false)
	if err != nil {
		return err
	}
	u.Status = models.StatusConflicted
	u.ServerObject = resolved.Clone()
	q.conflicted = q.pushHistory(q.conflicted, u)
	q.stats.TotalConflicts++

	q.logger.Debug("update conflicted", "update_id", id, "object_id", u.ObjectID)
	return nil
}

// Cancel удаляет ожидающее обновление. Результат, уже находящийся в полете,
// будет отброшен при получении (ErrNotPending).
func (q *Queue) Cancel(id string) (*models.OptimisticUpdate, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	u, err := q.takeLocked(id, false)
	if err != nil {
		return nil, err
	}
	q.stats.Cancelled++
	q.cancelled.Add(id)
	q.cancelledOrder = append(q.cancelledOrder, id)
	if over := len(q.cancelledOrder) - q.historySize; over > 0 {
		for _, old := range q.cancelledOrder[:over] {
			q.cancelled.Remove(old)
		}
		q.cancelledOrder = q.cancelledOrder[over:]
	}
	q.logger.Debug("update cancelled", "update_id", id, "object_id", u.ObjectID)
	return u.Clone(), nil
}

// IncrementRetry увеличивает счетчик повторов ожидающего обновления
func (q *Queue) IncrementRetry(id string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	u, ok := q.pending[id]
	if !ok {
		if q.findHistoryLocked(id) != nil {
			return 0, fmt.Errorf("%w: %s", ErrNotPending, id)
		}
		return 0, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	u.RetryCount++
	return u.RetryCount, nil
}

// RetryFailed заново ставит в очередь неудачные обновления, объекты которых
// свободны. Возвращает копии новых ожидающих обновлений.
func (q *Queue) RetryFailed() []*models.OptimisticUpdate {
	q.mu.Lock()
	defer q.mu.Unlock()

	var requeued []*models.OptimisticUpdate
	remaining := q.failed[:0]
	for _, f := range q.failed {
		if _, busy := q.byObject[f.ObjectID]; busy {
			remaining = append(remaining, f)
			continue
		}
		u := f.Clone()
		u.ID = q.newID()
		u.Status = models.StatusPending
		u.FailureReason = ""
		u.ServerObject = nil
		u.RetryCount = 0
		u.Timestamp = q.now()
		q.addPendingLocked(u)
		q.stats.TotalEnqueued++
		requeued = append(requeued, u.Clone())
	}
	clear(q.failed[len(remaining):])
	q.failed = remaining

	if len(requeued) > 0 {
		q.logger.Info("failed updates re-enqueued", "count", len(requeued))
	}
	return requeued
}

// Get возвращает копию обновления по id
func (q *Queue) Get(id string) (*models.OptimisticUpdate, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if u, ok := q.pending[id]; ok {
		return u.Clone(), nil
	}
	if u := q.findHistoryLocked(id); u != nil {
		return u.Clone(), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// GetByObjectID возвращает ожидающее обновление объекта, а при его
// отсутствии - последнее завершенное.
func (q *Queue) GetByObjectID(objectID string) (*models.OptimisticUpdate, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if id, ok := q.byObject[objectID]; ok {
		return q.pending[id].Clone(), nil
	}

	var latest *models.OptimisticUpdate
	for _, list := range [][]*models.OptimisticUpdate{q.confirmed, q.failed, q.conflicted} {
		for _, u := range list {
			if u.ObjectID == objectID && (latest == nil || u.Timestamp.After(latest.Timestamp)) {
				latest = u
			}
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("%w: object %s", ErrNotFound, objectID)
	}
	return latest.Clone(), nil
}

// HasPending сообщает, есть ли у объекта ожидающее обновление
func (q *Queue) HasPending(objectID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.byObject[objectID]
	return ok
}

// HasPendingDelete сообщает, ожидает ли объект удаления
func (q *Queue) HasPendingDelete(objectID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	id, ok := q.byObject[objectID]
	return ok && q.pending[id].Type == models.UpdateDelete
}

// Pending возвращает копии ожидающих обновлений, старые первыми
func (q *Queue) Pending() []*models.OptimisticUpdate {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*models.OptimisticUpdate, 0, len(q.pending))
	for _, u := range q.pending {
		out = append(out, u.Clone())
	}
	sortByTimestamp(out)
	return out
}

// History возвращает копии истории для статуса
func (q *Queue) History(status models.UpdateStatus) ([]*models.OptimisticUpdate, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	list, err := q.historyLocked(status)
	if err != nil {
		return nil, err
	}
	out := make([]*models.OptimisticUpdate, len(*list))
	for i, u := range *list {
		out[i] = u.Clone()
	}
	return out, nil
}

// ClearHistory очищает историю для статуса, не затрагивая ожидающие обновления
func (q *Queue) ClearHistory(status models.UpdateStatus) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	list, err := q.historyLocked(status)
	if err != nil {
		return err
	}
	*list = nil
	return nil
}

// Statistics возвращает снимок счетчиков
func (q *Queue) Statistics() Statistics {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := q.stats
	s.Pending = len(q.pending)
	s.Confirmed = len(q.confirmed)
	s.Failed = len(q.failed)
	s.Conflicted = len(q.conflicted)
	now := q.now()
	for _, u := range q.pending {
		if age := now.Sub(u.Timestamp); age > s.OldestPending {
			s.OldestPending = age
		}
	}
	return s
}

func (q *Queue) addPendingLocked(u *models.OptimisticUpdate) {
	q.pending[u.ID] = u
	q.byObject[u.ObjectID] = u.ID
	q.idle[u.ObjectID] = make(chan struct{})
}

// takeLocked извлекает обновление из pending (или из conflicted, если
// allowConflicted) и освобождает объект.
func (q *Queue) takeLocked(id string, allowConflicted bool) (*models.OptimisticUpdate, error) {
	if u, ok := q.pending[id]; ok {
		delete(q.pending, id)
		if q.byObject[u.ObjectID] == id {
			delete(q.byObject, u.ObjectID)
			if ch, ok := q.idle[u.ObjectID]; ok {
				close(ch)
				delete(q.idle, u.ObjectID)
			}
		}
		return u, nil
	}

	if allowConflicted {
		for i, u := range q.conflicted {
			if u.ID == id {
				q.conflicted = append(q.conflicted[:i], q.conflicted[i+1:]...)
				return u, nil
			}
		}
	}

	if q.findHistoryLocked(id) != nil || q.cancelled.Contains(id) {
		return nil, fmt.Errorf("%w: %s", ErrNotPending, id)
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (q *Queue) findHistoryLocked(id string) *models.OptimisticUpdate {
	for _, list := range [][]*models.OptimisticUpdate{q.confirmed, q.failed, q.conflicted} {
		for _, u := range list {
			if u.ID == id {
				return u
			}
		}
	}
	return nil
}

func (q *Queue) historyLocked(status models.UpdateStatus) (*[]*models.OptimisticUpdate, error) {
	switch status {
	case models.StatusConfirmed:
		return &q.confirmed, nil
	case models.StatusFailed:
		return &q.failed, nil
	case models.StatusConflicted:
		return &q.conflicted, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}
}

// pushHistory добавляет запись, вытесняя самые старые сверх емкости
func (q *Queue) pushHistory(list []*models.OptimisticUpdate, u *models.OptimisticUpdate) []*models.OptimisticUpdate {
	list = append(list, u)
	if over := len(list) - q.historySize; over > 0 {
		clear(list[:over])
		list = list[over:]
	}
	return list
}
