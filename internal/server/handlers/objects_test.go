package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/canvassync/internal/server/service"
	"github.com/iudanet/canvassync/internal/server/storage/sqlite"
	"github.com/iudanet/canvassync/pkg/api"
)

func setupObjectsHandler(t *testing.T) *ObjectsHandler {
	t.Helper()
	store, err := sqlite.New(context.Background(), ":memory:", setupTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	svc := service.NewObjects(store, nil, setupTestLogger())
	return NewObjectsHandler(setupTestLogger(), svc)
}

func doObjects(t *testing.T, handler http.HandlerFunc, method, path string, vars map[string]string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req = req.WithContext(WithUser(req.Context(), "user-1", "alice"))
	req = mux.SetURLVars(req, vars)
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func TestObjectsHandler_CRUD(t *testing.T) {
	h := setupObjectsHandler(t)
	canvas := map[string]string{"canvasID": "canvas-1"}
	object := map[string]string{"canvasID": "canvas-1", "objectID": "rect-1"}

	w := doObjects(t, h.Create, http.MethodPost, "/api/v1/canvases/canvas-1/objects", canvas, api.CreateObjectRequest{
		ID:          "rect-1",
		ObjectType:  "rectangle",
		OperationID: "op-1",
		Properties:  map[string]any{"x": 10.0, "y": 20.0},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created api.Object
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	assert.Equal(t, int64(1), created.Version)
	assert.Equal(t, "user-1", created.CreatedBy)

	w = doObjects(t, h.Update, http.MethodPut, "/api/v1/canvases/canvas-1/objects/rect-1", object, api.UpdateObjectRequest{
		OperationID: "op-2",
		BaseVersion: 1,
		Properties:  map[string]any{"x": 30.0, "y": 20.0},
	})
	require.Equal(t, http.StatusOK, w.Code)
	var updated api.Object
	require.NoError(t, json.NewDecoder(w.Body).Decode(&updated))
	assert.Equal(t, int64(2), updated.Version)
	assert.Equal(t, 30.0, updated.Properties["x"])

	w = doObjects(t, h.Get, http.MethodGet, "/api/v1/canvases/canvas-1/objects/rect-1", object, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doObjects(t, h.List, http.MethodGet, "/api/v1/canvases/canvas-1/objects", canvas, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list api.ListObjectsResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
	require.Len(t, list.Objects, 1)
	assert.Equal(t, int64(2), list.Objects[0].Version)

	w = doObjects(t, h.Delete, http.MethodDelete, "/api/v1/canvases/canvas-1/objects/rect-1?operation_id=op-3", object, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	// повтор удаления с тем же operation_id идемпотентен
	w = doObjects(t, h.Delete, http.MethodDelete, "/api/v1/canvases/canvas-1/objects/rect-1?operation_id=op-3", object, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doObjects(t, h.Get, http.MethodGet, "/api/v1/canvases/canvas-1/objects/rect-1", object, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, service.CodeNotFound, decodeError(t, w).Error)
}

func TestObjectsHandler_Errors(t *testing.T) {
	h := setupObjectsHandler(t)
	canvas := map[string]string{"canvasID": "canvas-1"}

	t.Run("invalid body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("{"))
		req = mux.SetURLVars(req, canvas)
		w := httptest.NewRecorder()
		h.Create(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid properties", func(t *testing.T) {
		w := doObjects(t, h.Create, http.MethodPost, "/", canvas, api.CreateObjectRequest{
			ObjectType: "rectangle",
			Properties: map[string]any{"width": "wide"},
		})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		resp := decodeError(t, w)
		assert.Equal(t, service.CodeInvalidProperties, resp.Error)
		assert.Contains(t, resp.Message, "width")
	})

	t.Run("duplicate id", func(t *testing.T) {
		req := api.CreateObjectRequest{ID: "dup", ObjectType: "circle", Properties: map[string]any{}}
		require.Equal(t, http.StatusCreated, doObjects(t, h.Create, http.MethodPost, "/", canvas, req).Code)
		w := doObjects(t, h.Create, http.MethodPost, "/", canvas, req)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, service.CodeAlreadyExists, decodeError(t, w).Error)
	})

	t.Run("update missing", func(t *testing.T) {
		w := doObjects(t, h.Update, http.MethodPut, "/", map[string]string{"canvasID": "canvas-1", "objectID": "ghost"},
			api.UpdateObjectRequest{Properties: map[string]any{}})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("bad canvas id", func(t *testing.T) {
		w := doObjects(t, h.List, http.MethodGet, "/", map[string]string{"canvasID": "bad canvas"}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
