package hub

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/iudanet/canvassync/pkg/api"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20

	// DefaultSendBuffer очередь исходящих событий одного соединения
	DefaultSendBuffer = 64
)

// Handler обрабатывает входящее событие соединения
type Handler func(ctx context.Context, c *Conn, ev api.Event)

// Conn одно WebSocket-соединение участника холста
type Conn struct {
	ws        *websocket.Conn
	send      chan api.Event
	done      chan struct{}
	logger    *slog.Logger
	ID        string
	CanvasID  string
	UserID    string
	Username  string
	closeOnce sync.Once
}

// NewConn оборачивает соединение. buffer <= 0 означает DefaultSendBuffer.
func NewConn(ws *websocket.Conn, canvasID, userID, username string, buffer int, logger *slog.Logger) *Conn {
	if buffer <= 0 {
		buffer = DefaultSendBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Conn{
		ws:       ws,
		send:     make(chan api.Event, buffer),
		done:     make(chan struct{}),
		logger:   logger,
		ID:       uuid.NewString(),
		CanvasID: canvasID,
		UserID:   userID,
		Username: username,
	}
}

// Send ставит событие в очередь без блокировки.
// false если соединение закрыто или очередь переполнена.
func (c *Conn) Send(ev api.Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

// Reply собирает событие и отправляет его только этому соединению
func (c *Conn) Reply(eventType string, payload any) bool {
	ev, err := api.NewEvent(uuid.NewString(), eventType, api.PriorityHigh, payload)
	if err != nil {
		c.logger.Error("failed to build reply", slog.String("type", eventType), slog.Any("error", err))
		return false
	}
	return c.Send(ev)
}

// Serve запускает запись в фоне и читает события до закрытия соединения.
// Каждое событие передается handler последовательно.
func (c *Conn) Serve(ctx context.Context, handle Handler) error {
	go c.writePump()
	defer c.close()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var ev api.Event
		if err := c.ws.ReadJSON(&ev); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
				errors.Is(err, websocket.ErrCloseSent) {
				return nil
			}
			select {
			case <-c.done:
				return nil
			default:
			}
			return err
		}
		if ev.Type == "" {
			continue
		}
		handle(ctx, c, ev)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case ev := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(ev); err != nil {
				c.logger.Debug("write failed", slog.String("conn_id", c.ID), slog.Any("error", err))
				c.close()
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.close()
				return
			}
		}
	}
}

func (c *Conn) close() {
	c.closeOnce.Do(func() { close(c.done) })
}
