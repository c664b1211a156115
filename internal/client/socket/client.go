// Package socket клиент постоянного потока событий (WebSocket) с
// жизненным циклом переподключения.
package socket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/iudanet/canvassync/internal/pubsub"
	"github.com/iudanet/canvassync/internal/retry"
	"github.com/iudanet/canvassync/pkg/api"
)

// События жизненного цикла соединения
const (
	EventConnect          = "connect"
	EventDisconnect       = "disconnect"
	EventReconnectAttempt = "reconnect_attempt"
	EventReconnectSuccess = "reconnect_success"
	EventReconnectFailed  = "reconnect_failed"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// CredentialSource выдает токен для рукопожатия
type CredentialSource interface {
	GetValidCredential(ctx context.Context) (string, error)
}

// Config параметры клиента
type Config struct {
	Reconnect  retry.Policy
	URL        string
	BufferSize int
	// AutoReconnect переподключаться после обрыва
	AutoReconnect bool
}

// Client клиент потока событий
type Client struct {
	dialer      *websocket.Dialer
	credentials CredentialSource
	logger      *slog.Logger
	bus         *pubsub.Bus[api.Event]
	buffer      *Buffer
	conn        *websocket.Conn
	done        chan struct{}
	cancel      context.CancelFunc
	cfg         Config
	writeMu     sync.Mutex
	mu          sync.Mutex
	connected   atomic.Bool
	closed      atomic.Bool
}

// NewClient создает клиент. credentials может быть nil.
func NewClient(cfg Config, credentials CredentialSource, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Reconnect.MaxAttempts <= 0 {
		cfg.Reconnect = retry.Policy{
			MaxAttempts: 5,
			BaseDelay:   time.Second,
			MaxDelay:    30 * time.Second,
			Jitter:      time.Second,
		}
	}
	return &Client{
		dialer:      &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		credentials: credentials,
		logger:      logger,
		bus:         pubsub.New[api.Event](),
		buffer:      NewBuffer(cfg.BufferSize),
		cfg:         cfg,
	}
}

// Connect устанавливает соединение и запускает цикл чтения.
// Контекст ограничивает жизнь соединения и переподключений.
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if err := c.dial(ctx); err != nil {
		cancel()
		return err
	}

	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	c.publishLifecycle(EventConnect, nil)
	c.flush()
	go c.supervise(runCtx)
	return nil
}

// IsConnected сообщает, подключен ли поток
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// Subscribe подписывает обработчик на тип события (включая события
// жизненного цикла). Возвращает функцию отписки.
func (c *Client) Subscribe(eventType string, handler func(api.Event)) pubsub.Unsubscribe {
	return c.bus.Subscribe(eventType, func(_ string, ev api.Event) { handler(ev) })
}

// Emit отправляет событие немедленно. Без соединения возвращает ErrNotConnected.
func (c *Client) Emit(eventType string, payload any) (string, error) {
	ev, err := api.NewEvent(uuid.NewString(), eventType, api.PriorityNormal, payload)
	if err != nil {
		return "", err
	}
	if err := c.write(ev); err != nil {
		return "", err
	}
	return ev.ID, nil
}

// EmitBuffered отправляет событие или буферизует его до переподключения.
// Мутации объектов через буфер не отправляются.
func (c *Client) EmitBuffered(eventType string, payload any, priority int) (string, error) {
	ev, err := api.NewEvent(uuid.NewString(), eventType, priority, payload)
	if err != nil {
		return "", err
	}
	if err := c.write(ev); err != nil {
		if !errors.Is(err, ErrNotConnected) {
			return "", err
		}
		if !c.buffer.Push(ev) {
			return "", fmt.Errorf("outbound buffer full: %w", err)
		}
		c.logger.Debug("event buffered", "type", eventType, "buffered", c.buffer.Len())
	}
	return ev.ID, nil
}

// Request подписывается на ответ replyType, отправляет событие и ждет
// первого ответа, для которого match возвращает true.
func (c *Client) Request(ctx context.Context, eventType string, payload any, replyType string, match func(api.Event) bool) (api.Event, error) {
	replies := make(chan api.Event, 1)
	unsubscribe := c.Subscribe(replyType, func(ev api.Event) {
		if match != nil && !match(ev) {
			return
		}
		select {
		case replies <- ev:
		default:
		}
	})
	defer unsubscribe()

	disconnected := make(chan struct{})
	var once sync.Once
	unsubDisconnect := c.Subscribe(EventDisconnect, func(api.Event) {
		once.Do(func() { close(disconnected) })
	})
	defer unsubDisconnect()

	if _, err := c.Emit(eventType, payload); err != nil {
		return api.Event{}, err
	}

	select {
	case ev := <-replies:
		return ev, nil
	case <-disconnected:
		return api.Event{}, ErrNotConnected
	case <-ctx.Done():
		return api.Event{}, ctx.Err()
	}
}

// Close закрывает соединение и останавливает переподключения
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	c.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	c.writeMu.Unlock()
	return conn.Close()
}

// Buffered число событий, ожидающих переподключения
func (c *Client) Buffered() int {
	return c.buffer.Len()
}

func (c *Client) dial(ctx context.Context) error {
	header := http.Header{}
	if c.credentials != nil {
		token, err := c.credentials.GetValidCredential(ctx)
		if err != nil {
			c.logger.Warn("credential unavailable, connecting unauthenticated", "error", err)
		}
		if token != "" {
			header.Set("Authorization", "Bearer "+token)
		}
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.cfg.URL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", c.cfg.URL, err)
	}

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	c.mu.Lock()
	c.conn = conn
	c.done = make(chan struct{})
	c.mu.Unlock()
	c.connected.Store(true)
	return nil
}

// supervise обслуживает соединение и переподключается после обрыва
func (c *Client) supervise(ctx context.Context) {
	for {
		c.mu.Lock()
		conn, done := c.conn, c.done
		c.mu.Unlock()

		go c.pingLoop(conn, done)
		err := c.readLoop(conn)
		close(done)
		c.connected.Store(false)
		_ = conn.Close()

		if c.closed.Load() || ctx.Err() != nil {
			c.publishLifecycle(EventDisconnect, map[string]string{"reason": "closed"})
			return
		}
		c.logger.Warn("event stream disconnected", "error", err)
		c.publishLifecycle(EventDisconnect, map[string]string{"reason": errString(err)})

		if !c.cfg.AutoReconnect {
			return
		}
		if err := c.reconnect(ctx); err != nil {
			c.logger.Error("event stream reconnect failed", "error", err)
			c.publishLifecycle(EventReconnectFailed, map[string]string{"reason": errString(err)})
			return
		}
		c.publishLifecycle(EventReconnectSuccess, nil)
		c.publishLifecycle(EventConnect, nil)
		c.flush()
	}
}

func (c *Client) reconnect(ctx context.Context) error {
	policy := c.cfg.Reconnect
	policy.Retryable = func(error) bool { return !c.closed.Load() }
	attempt := 0
	_, err := retry.Do(ctx, policy, func(ctx context.Context) (struct{}, error) {
		attempt++
		c.publishLifecycle(EventReconnectAttempt, map[string]int{"attempt": attempt})
		return struct{}{}, c.dial(ctx)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrReconnectExhausted, err)
	}
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		var ev api.Event
		if err := conn.ReadJSON(&ev); err != nil {
			return err
		}
		if ev.Type == "" {
			continue
		}
		c.bus.Publish(ev.Type, ev)
	}
}

func (c *Client) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *Client) write(ev api.Event) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(ev); err != nil {
		return fmt.Errorf("%w: %w", ErrNotConnected, err)
	}
	return nil
}

// flush отправляет буферизованные события после подключения
func (c *Client) flush() {
	events := c.buffer.Drain()
	for i, ev := range events {
		if err := c.write(ev); err != nil {
			for _, rest := range events[i:] {
				c.buffer.Push(rest)
			}
			c.logger.Warn("flush interrupted", "remaining", len(events)-i, "error", err)
			return
		}
	}
	if len(events) > 0 {
		c.logger.Debug("buffered events flushed", "count", len(events))
	}
}

func (c *Client) publishLifecycle(eventType string, payload any) {
	ev := api.Event{ID: uuid.NewString(), Type: eventType, Timestamp: time.Now().UTC()}
	if payload != nil {
		if e, err := api.NewEvent(ev.ID, eventType, api.PriorityHigh, payload); err == nil {
			ev = e
		}
	}
	c.bus.Publish(eventType, ev)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
