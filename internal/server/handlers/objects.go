package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/iudanet/canvassync/internal/models"
	"github.com/iudanet/canvassync/internal/server/service"
	"github.com/iudanet/canvassync/pkg/api"
)

// ObjectService операции над объектами холста
type ObjectService interface {
	Create(ctx context.Context, actor service.Actor, m api.ObjectMutation) (*models.CanvasObject, error)
	Update(ctx context.Context, actor service.Actor, m api.ObjectMutation) (*models.CanvasObject, error)
	Delete(ctx context.Context, actor service.Actor, m api.ObjectMutation) (int64, error)
	Get(ctx context.Context, canvasID, objectID string) (*models.CanvasObject, error)
	List(ctx context.Context, canvasID string) ([]*models.CanvasObject, error)
}

// ObjectsHandler REST API объектов холста
type ObjectsHandler struct {
	responder
	objects ObjectService
}

// NewObjectsHandler создает handler
func NewObjectsHandler(logger *slog.Logger, objects ObjectService) *ObjectsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ObjectsHandler{responder: responder{logger: logger}, objects: objects}
}

// List обрабатывает GET /api/v1/canvases/{canvasID}/objects
func (h *ObjectsHandler) List(w http.ResponseWriter, r *http.Request) {
	objects, err := h.objects.List(r.Context(), mux.Vars(r)["canvasID"])
	if err != nil {
		h.sendServiceError(w, err)
		return
	}

	resp := api.ListObjectsResponse{Objects: make([]api.Object, 0, len(objects))}
	for _, obj := range objects {
		resp.Objects = append(resp.Objects, obj.ToAPI())
	}
	h.sendJSON(w, resp, http.StatusOK)
}

// Get обрабатывает GET /api/v1/canvases/{canvasID}/objects/{objectID}
func (h *ObjectsHandler) Get(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	obj, err := h.objects.Get(r.Context(), vars["canvasID"], vars["objectID"])
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.sendJSON(w, obj.ToAPI(), http.StatusOK)
}

// Create обрабатывает POST /api/v1/canvases/{canvasID}/objects
func (h *ObjectsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req api.CreateObjectRequest
	if err := h.decode(r, &req); err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	obj, err := h.objects.Create(r.Context(), actorFrom(r), api.ObjectMutation{
		OperationID: req.OperationID,
		ObjectID:    req.ID,
		CanvasID:    mux.Vars(r)["canvasID"],
		ObjectType:  req.ObjectType,
		Properties:  req.Properties,
	})
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.sendJSON(w, obj.ToAPI(), http.StatusCreated)
}

// Update обрабатывает PUT /api/v1/canvases/{canvasID}/objects/{objectID}
func (h *ObjectsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req api.UpdateObjectRequest
	if err := h.decode(r, &req); err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	vars := mux.Vars(r)
	obj, err := h.objects.Update(r.Context(), actorFrom(r), api.ObjectMutation{
		OperationID: req.OperationID,
		ObjectID:    vars["objectID"],
		CanvasID:    vars["canvasID"],
		Properties:  req.Properties,
		BaseVersion: req.BaseVersion,
	})
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	h.sendJSON(w, obj.ToAPI(), http.StatusOK)
}

// Delete обрабатывает DELETE /api/v1/canvases/{canvasID}/objects/{objectID}?operation_id=
func (h *ObjectsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	_, err := h.objects.Delete(r.Context(), actorFrom(r), api.ObjectMutation{
		OperationID: r.URL.Query().Get("operation_id"),
		ObjectID:    vars["objectID"],
		CanvasID:    vars["canvasID"],
	})
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func actorFrom(r *http.Request) service.Actor {
	userID, _ := GetUserID(r.Context())
	username, _ := GetUsername(r.Context())
	return service.Actor{UserID: userID, Username: username}
}
