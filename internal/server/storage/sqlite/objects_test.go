package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/canvassync/internal/models"
	"github.com/iudanet/canvassync/internal/server/storage"
)

var testNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func testRect(id string, x float64) *models.CanvasObject {
	return &models.CanvasObject{
		ID:         id,
		CanvasID:   "canvas-1",
		ObjectType: models.ObjectTypeRectangle,
		CreatedBy:  "user-1",
		CreatedAt:  testNow,
		Properties: models.Properties{
			models.PropX:     x,
			models.PropY:     20.0,
			models.PropWidth: 100.0,
			models.PropFill:  "#ff0000",
		},
	}
}

func TestObjectStorage_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	created, err := s.CreateObject(ctx, testRect("rect-1", 10), "op-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.Version)

	got, err := s.GetObject(ctx, "canvas-1", "rect-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, models.ObjectTypeRectangle, got.ObjectType)
	assert.Equal(t, "user-1", got.CreatedBy)
	assert.Equal(t, "#ff0000", got.Properties[models.PropFill])
	x, ok := got.Properties.Number(models.PropX)
	require.True(t, ok)
	assert.Equal(t, 10.0, x)
	assert.True(t, testNow.Equal(got.CreatedAt))
}

func TestObjectStorage_CreateDuplicate(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	_, err := s.CreateObject(ctx, testRect("rect-1", 10), "op-1")
	require.NoError(t, err)

	_, err = s.CreateObject(ctx, testRect("rect-1", 50), "op-2")
	assert.ErrorIs(t, err, storage.ErrObjectExists)

	// тот же id на другом холсте допустим
	other := testRect("rect-1", 10)
	other.CanvasID = "canvas-2"
	_, err = s.CreateObject(ctx, other, "op-3")
	assert.NoError(t, err)

	// неудачная вставка не оставляет записи в журнале
	_, err = s.GetOperation(ctx, "op-2")
	assert.ErrorIs(t, err, storage.ErrOperationNotFound)
}

func TestObjectStorage_UpdateIncrementsVersion(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	_, err := s.CreateObject(ctx, testRect("rect-1", 10), "op-1")
	require.NoError(t, err)

	props := models.Properties{models.PropX: 30.0, models.PropY: 20.0}
	updated, err := s.UpdateObject(ctx, "canvas-1", "rect-1", props, "op-2", testNow.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)
	assert.True(t, testNow.Add(time.Second).Equal(updated.UpdatedAt))

	updated, err = s.UpdateObject(ctx, "canvas-1", "rect-1", props, "op-3", testNow.Add(2*time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(3), updated.Version)

	got, err := s.GetObject(ctx, "canvas-1", "rect-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Version)
	assert.NotContains(t, got.Properties, models.PropFill)

	_, err = s.UpdateObject(ctx, "canvas-1", "missing", props, "op-4", testNow)
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
}

func TestObjectStorage_Delete(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	_, err := s.CreateObject(ctx, testRect("rect-1", 10), "op-1")
	require.NoError(t, err)
	_, err = s.UpdateObject(ctx, "canvas-1", "rect-1", models.Properties{models.PropX: 1.0}, "op-2", testNow)
	require.NoError(t, err)

	version, err := s.DeleteObject(ctx, "canvas-1", "rect-1", "op-3", testNow)
	require.NoError(t, err)
	assert.Equal(t, int64(3), version)

	_, err = s.GetObject(ctx, "canvas-1", "rect-1")
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)

	_, err = s.DeleteObject(ctx, "canvas-1", "rect-1", "op-4", testNow)
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)

	op, err := s.GetOperation(ctx, "op-3")
	require.NoError(t, err)
	assert.Equal(t, models.UpdateDelete, op.Type)
	assert.Equal(t, int64(3), op.Version)
	assert.Nil(t, op.Object)
}

func TestObjectStorage_ListObjects(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	second := testRect("rect-b", 0)
	second.CreatedAt = testNow.Add(time.Minute)
	_, err := s.CreateObject(ctx, second, "")
	require.NoError(t, err)
	_, err = s.CreateObject(ctx, testRect("rect-a", 0), "")
	require.NoError(t, err)
	other := testRect("rect-c", 0)
	other.CanvasID = "canvas-2"
	_, err = s.CreateObject(ctx, other, "")
	require.NoError(t, err)

	objects, err := s.ListObjects(ctx, "canvas-1")
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, "rect-a", objects[0].ID)
	assert.Equal(t, "rect-b", objects[1].ID)

	empty, err := s.ListObjects(ctx, "canvas-9")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestObjectStorage_GetOperation(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	_, err := s.CreateObject(ctx, testRect("rect-1", 10), "op-create")
	require.NoError(t, err)
	_, err = s.UpdateObject(ctx, "canvas-1", "rect-1", models.Properties{models.PropX: 42.0}, "op-update", testNow)
	require.NoError(t, err)

	op, err := s.GetOperation(ctx, "op-update")
	require.NoError(t, err)
	assert.Equal(t, "canvas-1", op.CanvasID)
	assert.Equal(t, "rect-1", op.ObjectID)
	assert.Equal(t, models.UpdateUpdate, op.Type)
	assert.Equal(t, int64(2), op.Version)
	require.NotNil(t, op.Object)
	assert.Equal(t, int64(2), op.Object.Version)
	x, _ := op.Object.Properties.Number(models.PropX)
	assert.Equal(t, 42.0, x)

	_, err = s.GetOperation(ctx, "op-unknown")
	assert.ErrorIs(t, err, storage.ErrOperationNotFound)
}

func TestObjectStorage_DeleteOperationsBefore(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	_, err := s.CreateObject(ctx, testRect("rect-1", 10), "op-old")
	require.NoError(t, err)
	_, err = s.UpdateObject(ctx, "canvas-1", "rect-1", nil, "op-new", testNow.Add(time.Hour))
	require.NoError(t, err)

	n, err := s.DeleteOperationsBefore(ctx, testNow.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.GetOperation(ctx, "op-old")
	assert.ErrorIs(t, err, storage.ErrOperationNotFound)
	_, err = s.GetOperation(ctx, "op-new")
	assert.NoError(t, err)
}
