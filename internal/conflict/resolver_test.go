package conflict

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/canvassync/internal/models"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type httpErr struct{ status int }

func (e *httpErr) Error() string   { return fmt.Sprintf("http %d", e.status) }
func (e *httpErr) HTTPStatus() int { return e.status }

func newTestResolver(cfg Config) *Resolver {
	r := NewResolver(cfg, nil)
	r.SetClock(func() time.Time { return t0 })
	return r
}

func object(version int64, updated time.Time, props models.Properties) *models.CanvasObject {
	return &models.CanvasObject{
		ID:         "obj-1",
		CanvasID:   "canvas-1",
		ObjectType: models.ObjectTypeRectangle,
		Properties: props,
		Version:    version,
		UpdatedAt:  updated,
	}
}

func pendingUpdate(local, original *models.CanvasObject) *models.OptimisticUpdate {
	return &models.OptimisticUpdate{
		ID:             "u-1",
		ObjectID:       "obj-1",
		CanvasID:       "canvas-1",
		Type:           models.UpdateUpdate,
		Object:         local,
		OriginalObject: original,
		Status:         models.StatusPending,
		MaxRetries:     3,
	}
}

// Scenario A: сервер вернул те же поля - конфликта нет.
func TestReconcile_IdenticalCreateConfirmed(t *testing.T) {
	r := newTestResolver(Config{})
	local := object(1, t0, models.Properties{"x": 100, "y": 100, "width": 50, "height": 50})
	server := object(1, t0.Add(300*time.Millisecond), models.Properties{"x": 100.0, "y": 100.0, "width": 50.0, "height": 50.0})
	u := pendingUpdate(local, nil)
	u.Type = models.UpdateCreate

	res := r.Reconcile(u, server, nil)

	assert.Equal(t, models.ResolutionNone, res.Strategy)
	assert.Nil(t, res.Conflict)
	assert.Equal(t, server, res.Object)
	assert.Empty(t, r.History())
}

// Scenario B: одновременная правка в пределах окна - локальный x выигрывает.
func TestReconcile_ConcurrentEditMergesLocalWins(t *testing.T) {
	r := newTestResolver(Config{})
	local := object(4, t0, models.Properties{"x": 100.0, "y": 10.0})
	server := object(4, t0.Add(2000*time.Millisecond), models.Properties{"x": 105.0, "y": 10.0, "fill": "#f00"})

	res := r.Reconcile(pendingUpdate(local, nil), server, nil)

	require.NotNil(t, res.Conflict)
	assert.Equal(t, models.ConflictConcurrentEdit, res.Conflict.Type)
	assert.Equal(t, models.SeverityMedium, res.Conflict.Severity)
	assert.Equal(t, models.ResolutionMerge, res.Strategy)
	assert.InDelta(t, 100.0, res.Object.Properties["x"], 1e-9)
	assert.Equal(t, "#f00", res.Object.Properties["fill"], "server-only fields kept")
	assert.Equal(t, int64(5), res.Object.Version)
	assert.Contains(t, res.Conflict.ChangedFields, "properties.x")
}

// Scenario C: дрейф за пределами допуска - сервер выигрывает без слияния.
func TestReconcile_StateDriftServerWins(t *testing.T) {
	r := newTestResolver(Config{})
	local := object(2, t0, models.Properties{"x": 0.0, "y": 0.0})
	server := object(2, t0.Add(10*time.Second), models.Properties{"x": 500.0, "y": 500.0})

	res := r.Reconcile(pendingUpdate(local, nil), server, nil)

	require.NotNil(t, res.Conflict)
	assert.Equal(t, models.ConflictStateDrift, res.Conflict.Type)
	assert.Equal(t, models.ResolutionServerWins, res.Strategy)
	assert.Equal(t, server, res.Object)
}

func TestDetect_Precedence(t *testing.T) {
	tests := []struct {
		local    *models.CanvasObject
		server   *models.CanvasObject
		expected *models.ConflictType
		name     string
	}{
		{
			name:     "version mismatch wins over everything",
			local:    object(2, t0, models.Properties{"x": 0.0}),
			server:   object(3, t0, models.Properties{"x": 500.0}),
			expected: ptr(models.ConflictVersionMismatch),
		},
		{
			name:     "window is exclusive at 5000ms",
			local:    object(2, t0, models.Properties{"x": 0.0}),
			server:   object(2, t0.Add(5000*time.Millisecond), models.Properties{"x": 1.0}),
			expected: nil,
		},
		{
			name:     "4999ms is concurrent",
			local:    object(2, t0, models.Properties{"x": 0.0}),
			server:   object(2, t0.Add(-4999*time.Millisecond), models.Properties{"x": 1.0}),
			expected: ptr(models.ConflictConcurrentEdit),
		},
		{
			name:     "distance exactly 100 is not drift",
			local:    object(2, t0, models.Properties{"x": 0.0, "y": 0.0}),
			server:   object(2, t0.Add(time.Minute), models.Properties{"x": 60.0, "y": 80.0}),
			expected: nil,
		},
		{
			name:     "size delta over 100 is drift",
			local:    object(2, t0, models.Properties{"width": 10.0, "height": 10.0}),
			server:   object(2, t0.Add(time.Minute), models.Properties{"width": 70.0, "height": 51.0}),
			expected: ptr(models.ConflictStateDrift),
		},
		{
			name:     "int and float are equal",
			local:    object(1, t0, models.Properties{"x": 5}),
			server:   object(9, t0, models.Properties{"x": 5.0}),
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestResolver(Config{})
			c := r.Detect(pendingUpdate(tt.local, nil), tt.server, nil)
			if tt.expected == nil {
				assert.Nil(t, c)
				return
			}
			require.NotNil(t, c)
			assert.Equal(t, *tt.expected, c.Type)
		})
	}
}

func TestResolve_VersionMismatch(t *testing.T) {
	r := newTestResolver(Config{})

	t.Run("newer server wins", func(t *testing.T) {
		local := object(3, t0, models.Properties{"x": 1.0})
		server := object(7, t0, models.Properties{"x": 2.0})
		res := r.Reconcile(pendingUpdate(local, nil), server, nil)
		assert.Equal(t, models.SeverityHigh, res.Conflict.Severity)
		assert.Equal(t, models.ResolutionServerWins, res.Strategy)
		assert.Equal(t, int64(7), res.Object.Version)
	})

	t.Run("older server merges with bumped version", func(t *testing.T) {
		local := object(5, t0, models.Properties{"x": 1.0})
		server := object(4, t0, models.Properties{"x": 2.0, "y": 3.0})
		res := r.Reconcile(pendingUpdate(local, nil), server, nil)
		assert.Equal(t, models.ResolutionMerge, res.Strategy)
		assert.Equal(t, int64(6), res.Object.Version)
		assert.InDelta(t, 1.0, res.Object.Properties["x"], 1e-9)
		assert.InDelta(t, 3.0, res.Object.Properties["y"], 1e-9)
	})

	t.Run("type change cannot merge", func(t *testing.T) {
		local := object(5, t0, models.Properties{"x": 1.0})
		server := object(4, t0, models.Properties{"x": 2.0})
		server.ObjectType = models.ObjectTypeCircle
		res := r.Reconcile(pendingUpdate(local, nil), server, nil)
		assert.Equal(t, models.ResolutionServerWins, res.Strategy)
		assert.Equal(t, models.ObjectTypeCircle, res.Object.ObjectType)
	})
}

func TestResolve_ServerRejection(t *testing.T) {
	r := newTestResolver(Config{})
	original := object(3, t0, models.Properties{"x": 0.0})
	local := object(4, t0, models.Properties{"x": 10.0})

	u := pendingUpdate(local, original)
	res := r.Reconcile(u, nil, &httpErr{status: http.StatusServiceUnavailable})
	require.NotNil(t, res.Conflict)
	assert.Equal(t, models.ConflictServerRejection, res.Conflict.Type)
	assert.Equal(t, models.SeverityHigh, res.Conflict.Severity)
	assert.Equal(t, models.ResolutionRetry, res.Strategy)

	u.RetryCount = 3
	res = r.Reconcile(u, nil, &httpErr{status: http.StatusUnprocessableEntity})
	assert.Equal(t, models.SeverityCritical, res.Conflict.Severity)
	assert.Equal(t, models.ResolutionRollback, res.Strategy)
	assert.Equal(t, original, res.Object)

	create := pendingUpdate(local, nil)
	create.Type = models.UpdateCreate
	create.RetryCount = 3
	res = r.Reconcile(create, nil, errors.New("rejected"))
	assert.Equal(t, models.ResolutionRollback, res.Strategy)
	assert.Nil(t, res.Object, "rolled back create leaves no object")
}

func TestResolve_ManualTypes(t *testing.T) {
	r := newTestResolver(Config{ManualTypes: []models.ConflictType{models.ConflictStateDrift}})
	local := object(2, t0, models.Properties{"x": 0.0})
	server := object(2, t0.Add(time.Hour), models.Properties{"x": 900.0})

	res := r.Reconcile(pendingUpdate(local, nil), server, nil)
	assert.Equal(t, models.ResolutionManual, res.Strategy)
	assert.Equal(t, server, res.Object)
}

func TestResolve_Deterministic(t *testing.T) {
	local := object(4, t0, models.Properties{"x": 100.0, "stroke": "#000"})
	server := object(4, t0.Add(time.Second), models.Properties{"x": 105.0, "fill": "#fff"})

	first := newTestResolver(Config{}).Reconcile(pendingUpdate(local, nil), server, nil)
	for range 20 {
		next := newTestResolver(Config{}).Reconcile(pendingUpdate(local, nil), server, nil)
		assert.Equal(t, first.Strategy, next.Strategy)
		assert.Equal(t, first.Object, next.Object)
		assert.Equal(t, first.Conflict.ChangedFields, next.Conflict.ChangedFields)
	}
}

func TestResolve_VersionMonotonic(t *testing.T) {
	r := newTestResolver(Config{})
	for lv := int64(1); lv <= 6; lv++ {
		for sv := int64(1); sv <= 6; sv++ {
			for _, gap := range []time.Duration{0, 3 * time.Second, 10 * time.Second} {
				local := object(lv, t0, models.Properties{"x": 0.0})
				server := object(sv, t0.Add(gap), models.Properties{"x": 300.0})
				res := r.Reconcile(pendingUpdate(local, nil), server, nil)
				require.NotNil(t, res.Object)
				assert.GreaterOrEqual(t, res.Object.Version, max(lv, sv),
					"local=%d server=%d gap=%s", lv, sv, gap)
			}
		}
	}
}

func TestResolver_HistoryBoundedAndCopied(t *testing.T) {
	r := newTestResolver(Config{HistorySize: 3})
	for i := range 5 {
		local := object(int64(i+1), t0, models.Properties{"x": 0.0})
		server := object(int64(i+10), t0, models.Properties{"x": 1.0})
		u := pendingUpdate(local, nil)
		u.ID = fmt.Sprintf("u-%d", i)
		r.Reconcile(u, server, nil)
	}

	hist := r.History()
	require.Len(t, hist, 3)
	assert.Equal(t, "u-2", hist[0].Update.ID)
	assert.Equal(t, models.ResolutionServerWins, hist[0].Resolution)

	hist[0].Message = "changed"
	assert.NotEqual(t, "changed", r.History()[0].Message)

	stats := r.Stats()
	assert.Equal(t, int64(5), stats.Total)
	assert.Equal(t, int64(5), stats.ByType[models.ConflictVersionMismatch])

	r.ClearHistory()
	assert.Empty(t, r.History())
	assert.Equal(t, int64(5), r.Stats().Total)
}

func TestChangedFields(t *testing.T) {
	local := object(1, t0, models.Properties{"x": 1, "fill": "#fff", "text": "a"})
	server := object(2, t0, models.Properties{"x": 1.0, "fill": "#000", "opacity": 0.5})

	assert.Equal(t,
		[]string{"properties.fill", "properties.opacity", "properties.text", "version"},
		ChangedFields(local, server))
}

func TestReflects(t *testing.T) {
	original := object(5, t0, models.Properties{"x": 100.0, "y": 100.0, "label": "a"})
	candidate := object(6, t0, models.Properties{"x": 300.0, "y": 100.0})

	tests := []struct {
		name   string
		server *models.CanvasObject
		want   bool
	}{
		{"untouched server", original, false},
		{"applied", object(6, t0, models.Properties{"x": 300, "y": 100.0}), true},
		{"applied with foreign fields", object(8, t0, models.Properties{"x": 300.0, "y": 7.0, "fill": "#000"}), true},
		{"version bumped by another edit", object(6, t0, models.Properties{"x": 100.0, "y": 100.0}), false},
		{"removed key still present", object(6, t0, models.Properties{"x": 300.0, "y": 100.0, "label": "a"}), false},
		{"no server object", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Reflects(original, candidate, tt.server))
		})
	}
}

func ptr[T any](v T) *T { return &v }
