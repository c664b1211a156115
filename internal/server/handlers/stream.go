package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/iudanet/canvassync/internal/server/hub"
	"github.com/iudanet/canvassync/internal/server/service"
	"github.com/iudanet/canvassync/internal/validation"
	"github.com/iudanet/canvassync/pkg/api"
)

// StreamHandler поток событий холста поверх WebSocket.
// Мутации подтверждаются object:ack только отправителю,
// остальные участники получают object:changed / object:deleted.
type StreamHandler struct {
	responder
	objects    ObjectService
	hub        *hub.Hub
	upgrader   websocket.Upgrader
	sendBuffer int
}

// NewStreamHandler создает handler потока
func NewStreamHandler(logger *slog.Logger, objects ObjectService, h *hub.Hub, sendBuffer int) *StreamHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamHandler{
		responder: responder{logger: logger},
		objects:   objects,
		hub:       h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// клиенты не браузерные; доступ ограничен Bearer токеном
			CheckOrigin: func(*http.Request) bool { return true },
		},
		sendBuffer: sendBuffer,
	}
}

// Serve обрабатывает GET /api/v1/canvases/{canvasID}/ws
func (h *StreamHandler) Serve(w http.ResponseWriter, r *http.Request) {
	canvasID := mux.Vars(r)["canvasID"]
	if err := validation.ValidateID("canvas_id", canvasID); err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	userID, ok := GetUserID(r.Context())
	if !ok {
		h.sendError(w, "authentication required", http.StatusUnauthorized)
		return
	}
	username, _ := GetUsername(r.Context())

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту
		h.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	conn := hub.NewConn(ws, canvasID, userID, username, h.sendBuffer, h.logger)
	h.hub.Register(conn)
	defer h.hub.Unregister(conn)

	if err := conn.Serve(r.Context(), h.handle); err != nil {
		h.logger.Debug("stream closed", slog.String("conn_id", conn.ID), slog.Any("error", err))
	}
}

func (h *StreamHandler) handle(ctx context.Context, c *hub.Conn, ev api.Event) {
	switch ev.Type {
	case api.EventObjectCreate, api.EventObjectUpdate, api.EventObjectDelete:
		h.mutate(ctx, c, ev)
	case api.EventObjectVerify:
		h.verify(ctx, c, ev)
	default:
		h.logger.Debug("unsupported event ignored", slog.String("type", ev.Type), slog.String("conn_id", c.ID))
	}
}

func (h *StreamHandler) mutate(ctx context.Context, c *hub.Conn, ev api.Event) {
	var m api.ObjectMutation
	if err := ev.Decode(&m); err != nil {
		c.Reply(api.EventObjectAck, api.Ack{
			Error:      err.Error(),
			Code:       service.CodeInvalidRequest,
			StatusCode: http.StatusBadRequest,
		})
		return
	}

	ack := api.Ack{OperationID: m.OperationID, ObjectID: m.ObjectID}
	if m.CanvasID != "" && m.CanvasID != c.CanvasID {
		ack.Error = "mutation targets another canvas"
		ack.Code = service.CodeInvalidRequest
		ack.StatusCode = http.StatusBadRequest
		c.Reply(api.EventObjectAck, ack)
		return
	}
	m.CanvasID = c.CanvasID

	actor := service.Actor{UserID: c.UserID, Username: c.Username, ConnID: c.ID}
	var err error
	switch ev.Type {
	case api.EventObjectCreate:
		obj, cerr := h.objects.Create(ctx, actor, m)
		if cerr == nil {
			wire := obj.ToAPI()
			ack.Object = &wire
			ack.ObjectID = obj.ID
		}
		err = cerr
	case api.EventObjectUpdate:
		obj, uerr := h.objects.Update(ctx, actor, m)
		if uerr == nil {
			wire := obj.ToAPI()
			ack.Object = &wire
		}
		err = uerr
	case api.EventObjectDelete:
		_, err = h.objects.Delete(ctx, actor, m)
	}

	if err != nil {
		se := service.AsError(err)
		ack.Error = se.Message
		ack.Code = se.Code
		ack.StatusCode = se.Status
	} else {
		ack.Success = true
	}
	c.Reply(api.EventObjectAck, ack)
}

func (h *StreamHandler) verify(ctx context.Context, c *hub.Conn, ev api.Event) {
	var req api.VerifyRequest
	if err := ev.Decode(&req); err != nil {
		h.logger.Debug("bad verify request", slog.Any("error", err))
		return
	}

	state := api.ObjectState{RequestID: req.RequestID, ObjectID: req.ObjectID}
	obj, err := h.objects.Get(ctx, c.CanvasID, req.ObjectID)
	switch {
	case err == nil:
		wire := obj.ToAPI()
		state.Object = &wire
		state.Exists = true
	case service.AsError(err).Status == http.StatusNotFound:
	default:
		// без ответа клиент уйдет в другой способ проверки по таймауту
		h.logger.Error("verify lookup failed", slog.String("object_id", req.ObjectID), slog.Any("error", err))
		return
	}
	c.Reply(api.EventObjectState, state)
}
