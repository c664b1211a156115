package sync

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/canvassync/internal/client/socket"
	"github.com/iudanet/canvassync/internal/client/storage"
	"github.com/iudanet/canvassync/internal/client/storage/boltdb"
	"github.com/iudanet/canvassync/internal/models"
	"github.com/iudanet/canvassync/internal/pubsub"
	"github.com/iudanet/canvassync/internal/state"
	"github.com/iudanet/canvassync/pkg/api"
)

const canvasID = "board"

func newBolt(t *testing.T) *boltdb.Storage {
	t.Helper()
	st, err := boltdb.New(context.Background(), filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func apiObject(id string, version int64, x float64) api.Object {
	return api.Object{
		ID:         id,
		CanvasID:   canvasID,
		ObjectType: string(models.ObjectTypeRectangle),
		Properties: map[string]any{"x": x, "y": 0.0},
		Version:    version,
	}
}

func snapshot(objects ...api.Object) *SnapshotAPIMock {
	return &SnapshotAPIMock{
		GetCanvasObjectsFunc: func(ctx context.Context, canvas string) ([]api.Object, error) {
			return objects, nil
		},
	}
}

func TestService_PullLoadsAndPersists(t *testing.T) {
	ctx := context.Background()
	bolt := newBolt(t)
	store := state.NewStore()
	svc := NewService(snapshot(apiObject("a", 2, 10), apiObject("b", 1, 20)), bolt, bolt, store, nil)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	res, err := svc.Pull(ctx, canvasID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Objects)

	require.Len(t, store.List(canvasID), 2)
	assert.Equal(t, int64(2), store.Get("a").Version)

	saved, err := bolt.LoadObjects(ctx, canvasID)
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, "a", saved[0].ID)

	last, err := svc.LastSynced(ctx, canvasID)
	require.NoError(t, err)
	assert.True(t, fixed.Equal(last))
}

func TestService_PullKeepsPendingObjects(t *testing.T) {
	ctx := context.Background()
	bolt := newBolt(t)
	store := state.NewStore()

	local := models.ObjectFromAPI(apiObject("a", 0, 99))
	store.ApplyOptimistic("a", local)

	svc := NewService(snapshot(apiObject("a", 3, 10)), bolt, bolt, store, nil)
	_, err := svc.Pull(ctx, canvasID)
	require.NoError(t, err)

	// оптимистичное значение не перезаписано снимком
	assert.Equal(t, 99.0, store.Get("a").Properties["x"])
	assert.True(t, store.IsPending("a"))

	// а на диск попадает подтвержденное сервером состояние
	saved, err := bolt.GetObject(ctx, canvasID, "a")
	require.NoError(t, err)
	assert.Equal(t, 10.0, saved.Properties["x"])
}

func TestService_PullError(t *testing.T) {
	bolt := newBolt(t)
	store := state.NewStore()
	boom := errors.New("server down")
	failing := &SnapshotAPIMock{
		GetCanvasObjectsFunc: func(ctx context.Context, canvas string) ([]api.Object, error) {
			return nil, boom
		},
	}

	svc := NewService(failing, bolt, bolt, store, nil)
	_, err := svc.Pull(context.Background(), canvasID)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, store.List(canvasID))

	last, err := svc.LastSynced(context.Background(), canvasID)
	require.NoError(t, err)
	assert.True(t, last.IsZero())
}

func TestService_StorageFailures(t *testing.T) {
	ctx := context.Background()
	diskFull := errors.New("disk full")

	t.Run("snapshot write fails", func(t *testing.T) {
		objects := &storage.ObjectStorageMock{
			ReplaceObjectsFunc: func(ctx context.Context, canvas string, objs []*models.CanvasObject) error {
				return diskFull
			},
		}
		meta := &storage.MetadataStorageMock{}
		svc := NewService(snapshot(apiObject("a", 1, 0)), objects, meta, state.NewStore(), nil)

		_, err := svc.Pull(ctx, canvasID)
		assert.ErrorIs(t, err, diskFull)
		assert.Empty(t, meta.SaveLastSyncTimestampCalls(), "sync time is not advanced")
	})

	t.Run("sync time write only warns", func(t *testing.T) {
		objects := &storage.ObjectStorageMock{
			ReplaceObjectsFunc: func(ctx context.Context, canvas string, objs []*models.CanvasObject) error {
				return nil
			},
		}
		meta := &storage.MetadataStorageMock{
			SaveLastSyncTimestampFunc: func(ctx context.Context, canvas string, ts int64) error {
				return diskFull
			},
		}
		svc := NewService(snapshot(apiObject("a", 1, 0)), objects, meta, state.NewStore(), nil)

		res, err := svc.Pull(ctx, canvasID)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Objects)
		require.Len(t, meta.SaveLastSyncTimestampCalls(), 1)
		assert.Equal(t, canvasID, meta.SaveLastSyncTimestampCalls()[0].CanvasID)
	})

	t.Run("restore and last sync errors", func(t *testing.T) {
		objects := &storage.ObjectStorageMock{
			LoadObjectsFunc: func(ctx context.Context, canvas string) ([]*models.CanvasObject, error) {
				return nil, storage.ErrStorageClosed
			},
		}
		meta := &storage.MetadataStorageMock{
			GetLastSyncTimestampFunc: func(ctx context.Context, canvas string) (int64, error) {
				return 0, storage.ErrStorageClosed
			},
		}
		svc := NewService(snapshot(), objects, meta, state.NewStore(), nil)

		_, err := svc.Restore(ctx, canvasID)
		assert.ErrorIs(t, err, storage.ErrStorageClosed)
		_, err = svc.LastSynced(ctx, canvasID)
		assert.ErrorIs(t, err, storage.ErrStorageClosed)
	})
}

func TestService_Restore(t *testing.T) {
	ctx := context.Background()
	bolt := newBolt(t)
	require.NoError(t, bolt.ReplaceObjects(ctx, canvasID, []*models.CanvasObject{
		models.ObjectFromAPI(apiObject("a", 4, 1)),
	}))

	store := state.NewStore()
	svc := NewService(snapshot(), bolt, bolt, store, nil)

	n, err := svc.Restore(ctx, canvasID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int64(4), store.Get("a").Version)
}

func TestService_Persist(t *testing.T) {
	ctx := context.Background()
	bolt := newBolt(t)
	store := state.NewStore()
	svc := NewService(snapshot(), bolt, bolt, store, nil)

	unsubscribe := svc.Persist(ctx, canvasID)
	defer unsubscribe()

	// оптимистичное изменение не сохраняется
	store.ApplyOptimistic("a", models.ObjectFromAPI(apiObject("a", 0, 5)))
	_, err := bolt.GetObject(ctx, canvasID, "a")
	assert.Error(t, err)

	store.Settle("a", models.ObjectFromAPI(apiObject("a", 1, 5)))
	got, err := bolt.GetObject(ctx, canvasID, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)

	assert.True(t, store.ApplyRemote(models.ObjectFromAPI(apiObject("a", 2, 7))))
	got, err = bolt.GetObject(ctx, canvasID, "a")
	require.NoError(t, err)
	assert.Equal(t, 7.0, got.Properties["x"])

	assert.True(t, store.ApplyRemoteDelete("a", 3))
	_, err = bolt.GetObject(ctx, canvasID, "a")
	assert.Error(t, err)

	// объекты другого холста игнорируются
	other := models.ObjectFromAPI(apiObject("z", 1, 0))
	other.CanvasID = "other"
	store.ApplyRemote(other)
	_, err = bolt.GetObject(ctx, "other", "z")
	assert.Error(t, err)
}

type busSource struct {
	bus *pubsub.Bus[api.Event]
}

func (b busSource) Subscribe(eventType string, handler func(api.Event)) pubsub.Unsubscribe {
	return b.bus.Subscribe(eventType, func(_ string, ev api.Event) { handler(ev) })
}

func TestService_ResyncOnReconnect(t *testing.T) {
	bolt := newBolt(t)
	store := state.NewStore()
	mock := snapshot(apiObject("a", 1, 1))
	svc := NewService(mock, bolt, bolt, store, nil)

	src := busSource{bus: pubsub.New[api.Event]()}
	unsubscribe := svc.ResyncOnReconnect(context.Background(), src, canvasID)

	src.bus.Publish(socket.EventDisconnect, api.Event{Type: socket.EventDisconnect})
	assert.Empty(t, mock.GetCanvasObjectsCalls())

	src.bus.Publish(socket.EventReconnectSuccess, api.Event{Type: socket.EventReconnectSuccess})
	assert.Eventually(t, func() bool {
		return store.Get("a") != nil
	}, 2*time.Second, 10*time.Millisecond)

	unsubscribe()
	src.bus.Publish(socket.EventReconnectSuccess, api.Event{Type: socket.EventReconnectSuccess})
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, mock.GetCanvasObjectsCalls(), 1)
}
