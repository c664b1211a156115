// Package hub держит WebSocket-соединения участников, сгруппированные по
// холстам, и рассылает им события.
package hub

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/iudanet/canvassync/pkg/api"
)

// Presence статусы
const (
	PresenceJoined = "joined"
	PresenceLeft   = "left"
)

// StreamRecorder метрики соединений; *metrics.Server удовлетворяет интерфейсу
type StreamRecorder interface {
	StreamOpened()
	StreamClosed()
}

// Hub реестр соединений по холстам
type Hub struct {
	canvases map[string]map[string]*Conn
	logger   *slog.Logger
	recorder StreamRecorder
	mu       sync.RWMutex
}

// New создает hub. recorder может быть nil.
func New(logger *slog.Logger, recorder StreamRecorder) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		canvases: make(map[string]map[string]*Conn),
		logger:   logger,
		recorder: recorder,
	}
}

// Register добавляет соединение и сообщает остальным участникам о входе
func (h *Hub) Register(c *Conn) {
	h.mu.Lock()
	conns, ok := h.canvases[c.CanvasID]
	if !ok {
		conns = make(map[string]*Conn)
		h.canvases[c.CanvasID] = conns
	}
	conns[c.ID] = c
	total := len(conns)
	h.mu.Unlock()

	if h.recorder != nil {
		h.recorder.StreamOpened()
	}
	h.logger.Info("participant joined",
		slog.String("canvas_id", c.CanvasID),
		slog.String("conn_id", c.ID),
		slog.String("user_id", c.UserID),
		slog.Int("participants", total))
	h.presence(c, PresenceJoined)
}

// Unregister убирает соединение; повторный вызов ничего не делает
func (h *Hub) Unregister(c *Conn) {
	h.mu.Lock()
	conns, ok := h.canvases[c.CanvasID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := conns[c.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(conns, c.ID)
	if len(conns) == 0 {
		delete(h.canvases, c.CanvasID)
	}
	h.mu.Unlock()

	c.close()
	if h.recorder != nil {
		h.recorder.StreamClosed()
	}
	h.logger.Info("participant left",
		slog.String("canvas_id", c.CanvasID),
		slog.String("conn_id", c.ID),
		slog.String("user_id", c.UserID))
	h.presence(c, PresenceLeft)
}

// Broadcast отправляет событие всем соединениям холста, кроме exclude.
// Медленные получатели отключаются. Возвращает число получателей.
func (h *Hub) Broadcast(canvasID string, ev api.Event, exclude string) int {
	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.canvases[canvasID]))
	for id, c := range h.canvases[canvasID] {
		if id != exclude {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range targets {
		if c.Send(ev) {
			sent++
			continue
		}
		h.logger.Warn("slow participant dropped",
			slog.String("canvas_id", canvasID),
			slog.String("conn_id", c.ID))
		go h.Unregister(c)
	}
	return sent
}

// Count число участников холста
func (h *Hub) Count(canvasID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.canvases[canvasID])
}

// Close отключает всех участников (остановка сервера)
func (h *Hub) Close() {
	h.mu.RLock()
	var all []*Conn
	for _, conns := range h.canvases {
		for _, c := range conns {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range all {
		h.Unregister(c)
	}
}

func (h *Hub) presence(c *Conn, status string) {
	ev, err := api.NewEvent(uuid.NewString(), api.EventPresence, api.PriorityLow, api.Presence{
		UserID:   c.UserID,
		Username: c.Username,
		Status:   status,
	})
	if err != nil {
		return
	}
	h.Broadcast(c.CanvasID, ev, c.ID)
}
