package queue

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/canvassync/internal/models"
)

type fakeClock struct {
	now time.Time
	mu  sync.Mutex
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func newTestQueue(t *testing.T, opts ...Option) *Queue {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return New(nil, opts...)
}

func rect(id string, x float64) *models.CanvasObject {
	return &models.CanvasObject{
		ID:         id,
		CanvasID:   "canvas-1",
		ObjectType: models.ObjectTypeRectangle,
		Properties: models.Properties{"x": x, "y": 0.0, "width": 10.0, "height": 10.0},
	}
}

func enqueueUpdate(t *testing.T, q *Queue, objectID string) string {
	t.Helper()
	id, err := q.Enqueue(EnqueueRequest{
		ObjectID: objectID,
		CanvasID: "canvas-1",
		Type:     models.UpdateUpdate,
		Object:   rect(objectID, 1),
	})
	require.NoError(t, err)
	return id
}

func TestQueue_EnqueueValidation(t *testing.T) {
	q := newTestQueue(t)

	_, err := q.Enqueue(EnqueueRequest{Type: models.UpdateCreate, Object: rect("", 0)})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = q.Enqueue(EnqueueRequest{ObjectID: "o", Type: "explode", Object: rect("o", 0)})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = q.Enqueue(EnqueueRequest{ObjectID: "o", Type: models.UpdateUpdate})
	assert.ErrorIs(t, err, ErrInvalidRequest, "non-delete needs candidate")

	_, err = q.Enqueue(EnqueueRequest{ObjectID: "o", Type: models.UpdateDelete})
	assert.NoError(t, err, "delete needs no candidate")
}

func TestQueue_OnePendingPerObject(t *testing.T) {
	q := newTestQueue(t)

	id := enqueueUpdate(t, q, "obj-1")
	_, err := q.Enqueue(EnqueueRequest{ObjectID: "obj-1", Type: models.UpdateMove, Object: rect("obj-1", 2)})
	require.ErrorIs(t, err, ErrObjectBusy)

	// другой объект не блокируется
	enqueueUpdate(t, q, "obj-2")

	require.NoError(t, q.Confirm(id, rect("obj-1", 1)))
	enqueueUpdate(t, q, "obj-1")
}

func TestQueue_Transitions(t *testing.T) {
	q := newTestQueue(t)

	id := enqueueUpdate(t, q, "obj-1")
	got, err := q.Get(id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Equal(t, DefaultMaxRetries, got.MaxRetries)

	server := rect("obj-1", 1)
	server.Version = 2
	require.NoError(t, q.Confirm(id, server))

	got, err = q.Get(id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, got.Status)
	assert.Equal(t, int64(2), got.ServerObject.Version)

	// Повторное завершение игнорируется
	assert.ErrorIs(t, q.Confirm(id, server), ErrNotPending)
	assert.ErrorIs(t, q.Fail(id, "late"), ErrNotPending)
	assert.ErrorIs(t, q.MarkConflicted(id, nil), ErrNotPending)
	_, err = q.IncrementRetry(id)
	assert.ErrorIs(t, err, ErrNotPending)

	assert.ErrorIs(t, q.Confirm("missing", nil), ErrNotFound)
}

func TestQueue_ConflictedCanBeConfirmedManually(t *testing.T) {
	q := newTestQueue(t)

	id := enqueueUpdate(t, q, "obj-1")
	require.NoError(t, q.MarkConflicted(id, rect("obj-1", 5)))
	assert.False(t, q.HasPending("obj-1"), "conflicted update releases the object")
	assert.ErrorIs(t, q.Fail(id, "x"), ErrNotPending)

	require.NoError(t, q.Confirm(id, rect("obj-1", 5)))
	stats := q.Statistics()
	assert.Equal(t, 0, stats.Conflicted)
	assert.Equal(t, 1, stats.Confirmed)
	assert.Equal(t, int64(1), stats.TotalConflicts)
}

func TestQueue_GettersReturnCopies(t *testing.T) {
	q := newTestQueue(t)
	id := enqueueUpdate(t, q, "obj-1")

	got, err := q.Get(id)
	require.NoError(t, err)
	got.Status = models.StatusFailed
	got.Object.Properties["x"] = 999.0

	again, err := q.Get(id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, again.Status)
	assert.InDelta(t, 1.0, again.Object.Properties["x"], 1e-9)

	pending := q.Pending()
	require.Len(t, pending, 1)
	pending[0].ObjectID = "hacked"
	byObj, err := q.GetByObjectID("obj-1")
	require.NoError(t, err)
	assert.Equal(t, id, byObj.ID)
}

func TestQueue_GetByObjectIDFallsBackToHistory(t *testing.T) {
	q := newTestQueue(t)
	first := enqueueUpdate(t, q, "obj-1")
	require.NoError(t, q.Fail(first, "network"))
	second := enqueueUpdate(t, q, "obj-1")
	require.NoError(t, q.Confirm(second, rect("obj-1", 1)))

	got, err := q.GetByObjectID("obj-1")
	require.NoError(t, err)
	assert.Equal(t, second, got.ID)

	_, err = q.GetByObjectID("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQueue_HistoryBounded(t *testing.T) {
	q := newTestQueue(t, WithHistorySize(3))

	var ids []string
	for i := range 5 {
		id := enqueueUpdate(t, q, fmt.Sprintf("obj-%d", i))
		require.NoError(t, q.Confirm(id, nil))
		ids = append(ids, id)
	}

	hist, err := q.History(models.StatusConfirmed)
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.Equal(t, ids[2], hist[0].ID, "oldest entries evicted first")
	assert.Equal(t, ids[4], hist[2].ID)

	_, err = q.Get(ids[0])
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int64(5), q.Statistics().TotalConfirmed)
}

func TestQueue_ClearHistory(t *testing.T) {
	q := newTestQueue(t)
	a := enqueueUpdate(t, q, "a")
	require.NoError(t, q.Fail(a, "x"))
	enqueueUpdate(t, q, "b")

	require.NoError(t, q.ClearHistory(models.StatusFailed))
	stats := q.Statistics()
	assert.Equal(t, 0, stats.Failed)
	assert.Equal(t, 1, stats.Pending, "pending is untouched")

	assert.ErrorIs(t, q.ClearHistory(models.StatusPending), ErrInvalidStatus)
}

func TestQueue_RetryFailed(t *testing.T) {
	q := newTestQueue(t)

	a := enqueueUpdate(t, q, "a")
	require.NoError(t, q.Fail(a, "network"))
	b := enqueueUpdate(t, q, "b")
	require.NoError(t, q.Fail(b, "network"))
	// объект b снова занят - его неудача остается в истории
	enqueueUpdate(t, q, "b")

	requeued := q.RetryFailed()
	require.Len(t, requeued, 1)
	assert.Equal(t, "a", requeued[0].ObjectID)
	assert.NotEqual(t, a, requeued[0].ID)
	assert.Equal(t, models.StatusPending, requeued[0].Status)
	assert.True(t, q.HasPending("a"))

	failed, err := q.History(models.StatusFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, b, failed[0].ID)
}

func TestQueue_CancelAndIncrementRetry(t *testing.T) {
	q := newTestQueue(t)
	id := enqueueUpdate(t, q, "obj")

	n, err := q.IncrementRetry(id)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	cancelled, err := q.Cancel(id)
	require.NoError(t, err)
	assert.Equal(t, 1, cancelled.RetryCount)
	assert.False(t, q.HasPending("obj"))

	// результат в полете отбрасывается
	assert.ErrorIs(t, q.Confirm(id, nil), ErrNotPending)
	_, err = q.Cancel(id)
	assert.ErrorIs(t, err, ErrNotPending)
	assert.Equal(t, int64(1), q.Statistics().Cancelled)
}

func TestQueue_HasPendingDelete(t *testing.T) {
	q := newTestQueue(t)
	enqueueUpdate(t, q, "a")
	_, err := q.Enqueue(EnqueueRequest{ObjectID: "b", Type: models.UpdateDelete})
	require.NoError(t, err)

	assert.False(t, q.HasPendingDelete("a"))
	assert.True(t, q.HasPendingDelete("b"))
	assert.False(t, q.HasPendingDelete("c"))
}

func TestQueue_WaitIdle(t *testing.T) {
	q := newTestQueue(t)
	id := enqueueUpdate(t, q, "obj")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.WaitIdle(ctx, "obj"), context.DeadlineExceeded)

	done := make(chan error, 1)
	go func() { done <- q.WaitIdle(context.Background(), "obj") }()
	require.NoError(t, q.Confirm(id, nil))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("WaitIdle did not return after confirm")
	}

	assert.NoError(t, q.WaitIdle(context.Background(), "unknown"))
}

// Для любого объекта в каждый момент существует не более одного
// ожидающего обновления, даже при конкурентных намерениях.
func TestQueue_SingleWriterUnderConcurrency(t *testing.T) {
	q := newTestQueue(t)

	var (
		active    atomic.Int32
		maxActive atomic.Int32
		wg        sync.WaitGroup
	)
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			id, err := q.EnqueueWait(ctx, EnqueueRequest{
				ObjectID: "shared",
				Type:     models.UpdateMove,
				Object:   rect("shared", float64(i)),
			})
			if !assert.NoError(t, err) {
				return
			}
			n := active.Add(1)
			for {
				m := maxActive.Load()
				if n <= m || maxActive.CompareAndSwap(m, n) {
					break
				}
			}
			assert.Len(t, q.Pending(), 1)
			active.Add(-1)
			assert.NoError(t, q.Confirm(id, nil))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive.Load())
	stats := q.Statistics()
	assert.Equal(t, 0, stats.Pending)
	assert.Equal(t, int64(50), stats.TotalConfirmed)
}
