// Package transport доставляет мутации объектов по двум каналам:
// сначала через поток событий, при сбое через REST.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	clientapi "github.com/iudanet/canvassync/internal/client/api"
	"github.com/iudanet/canvassync/internal/client/socket"
	"github.com/iudanet/canvassync/internal/models"
	"github.com/iudanet/canvassync/internal/retry"
	"github.com/iudanet/canvassync/pkg/api"
)

//go:generate moq -out stream_mock.go . EventStream
//go:generate moq -out rest_mock.go . ObjectAPI
//go:generate moq -out refresher_mock.go . Refresher

// EventStream часть клиента потока событий, нужная транспорту
type EventStream interface {
	IsConnected() bool
	Request(ctx context.Context, eventType string, payload any, replyType string, match func(api.Event) bool) (api.Event, error)
}

// ObjectAPI часть REST клиента, нужная транспорту
type ObjectAPI interface {
	CreateObject(ctx context.Context, canvasID string, req api.CreateObjectRequest) (*api.Object, error)
	UpdateObject(ctx context.Context, canvasID, objectID string, req api.UpdateObjectRequest) (*api.Object, error)
	DeleteObject(ctx context.Context, canvasID, objectID, operationID string) error
}

// Refresher принудительно обновляет учетные данные после 401
type Refresher interface {
	ForceRefresh(ctx context.Context) error
}

// Observer получает телеметрию доставки
type Observer interface {
	ObserveDelivery(method Method, fellBack bool, elapsed time.Duration)
}

// Method канал, которым операция подтверждена
type Method string

const (
	MethodSocket Method = "socket"
	MethodREST   Method = "rest"
	MethodFailed Method = "failed"
)

// Operation мутация для доставки
type Operation struct {
	// Object кандидат; nil для delete
	Object      *models.CanvasObject
	OperationID string
	CanvasID    string
	ObjectID    string
	Type        models.UpdateType
	BaseVersion int64
}

// Confirmation ответ сервера на доставленную операцию
type Confirmation struct {
	// Object авторитетный снимок сервера; nil после удаления
	Object         *models.CanvasObject
	Method         Method
	SocketAttempts int
	RESTAttempts   int
	Elapsed        time.Duration
	FellBack       bool
	Deleted        bool
}

// Config параметры каналов
type Config struct {
	SocketRetry   retry.Policy  `yaml:"-"`
	RESTRetry     retry.Policy  `yaml:"-"`
	SocketTimeout time.Duration `yaml:"socket_timeout"`
	RESTTimeout   time.Duration `yaml:"rest_timeout"`
}

// DefaultConfig ожидание подтверждения 5s, REST попытка 10s
func DefaultConfig() Config {
	return Config{
		SocketTimeout: 5 * time.Second,
		RESTTimeout:   10 * time.Second,
		SocketRetry: retry.Policy{
			MaxAttempts: 2,
			BaseDelay:   250 * time.Millisecond,
			MaxDelay:    2 * time.Second,
			Jitter:      100 * time.Millisecond,
		},
		RESTRetry: retry.DefaultPolicy(),
	}
}

// Transport реализует доставку с резервным каналом
type Transport struct {
	stream    EventStream
	rest      ObjectAPI
	refresher Refresher
	observer  Observer
	logger    *slog.Logger
	cfg       Config
}

// Option настройка транспорта
type Option func(*Transport)

// WithRefresher включает повтор после обновления токена при 401
func WithRefresher(r Refresher) Option {
	return func(t *Transport) { t.refresher = r }
}

// WithObserver подключает телеметрию
func WithObserver(o Observer) Option {
	return func(t *Transport) { t.observer = o }
}

// New создает транспорт. stream может быть nil - тогда используется только REST.
func New(cfg Config, stream EventStream, rest ObjectAPI, logger *slog.Logger, opts ...Option) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SocketTimeout <= 0 {
		cfg.SocketTimeout = DefaultConfig().SocketTimeout
	}
	if cfg.RESTTimeout <= 0 {
		cfg.RESTTimeout = DefaultConfig().RESTTimeout
	}
	t := &Transport{
		stream: stream,
		rest:   rest,
		logger: logger,
		cfg:    cfg,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Send доставляет операцию. Сначала поток событий (если подключен),
// затем REST. Каждый канал повторяется по своей политике.
func (t *Transport) Send(ctx context.Context, op Operation) (*Confirmation, error) {
	if !op.Type.Valid() {
		return nil, fmt.Errorf("unknown operation type %q", op.Type)
	}
	start := time.Now()
	conf := &Confirmation{}
	var failures []*ChannelError

	if t.stream != nil && t.stream.IsConnected() {
		obj, attempts, chErr := t.sendSocket(ctx, op)
		conf.SocketAttempts = attempts
		if chErr == nil {
			conf.Method = MethodSocket
			conf.Object = obj
			conf.Deleted = op.Type == models.UpdateDelete
			conf.Elapsed = time.Since(start)
			t.observe(conf)
			return conf, nil
		}
		failures = append(failures, chErr)
		conf.FellBack = true
		t.logger.Warn("socket delivery failed, falling back to REST",
			"operation_id", op.OperationID,
			"object_id", op.ObjectID,
			"reason", chErr.Reason,
			"error", chErr)
	} else {
		failures = append(failures, &ChannelError{Channel: ChannelSocket, Reason: ReasonNotConnected, Err: socket.ErrNotConnected})
	}

	if ctx.Err() == nil {
		obj, attempts, chErr := t.sendREST(ctx, op)
		conf.RESTAttempts = attempts
		if chErr == nil {
			conf.Method = MethodREST
			conf.Object = obj
			conf.Deleted = op.Type == models.UpdateDelete
			conf.Elapsed = time.Since(start)
			t.observe(conf)
			return conf, nil
		}
		failures = append(failures, chErr)
	}

	conf.Method = MethodFailed
	conf.Elapsed = time.Since(start)
	t.observe(conf)

	terr := &TransportError{OperationID: op.OperationID, Failures: failures}
	if err := ctx.Err(); err != nil {
		return nil, errors.Join(terr, err)
	}
	return nil, terr
}

func (t *Transport) observe(conf *Confirmation) {
	if t.observer != nil {
		t.observer.ObserveDelivery(conf.Method, conf.FellBack, conf.Elapsed)
	}
}

func socketEvent(typ models.UpdateType) string {
	switch typ {
	case models.UpdateCreate:
		return api.EventObjectCreate
	case models.UpdateDelete:
		return api.EventObjectDelete
	default:
		return api.EventObjectUpdate
	}
}

func mutationPayload(op Operation) api.ObjectMutation {
	m := api.ObjectMutation{
		OperationID: op.OperationID,
		ObjectID:    op.ObjectID,
		CanvasID:    op.CanvasID,
		BaseVersion: op.BaseVersion,
	}
	if op.Object != nil {
		m.ObjectType = string(op.Object.ObjectType)
		m.Properties = op.Object.Properties.Clone()
	}
	return m
}

// sendSocket отправляет событие и ждет object:ack
func (t *Transport) sendSocket(ctx context.Context, op Operation) (*models.CanvasObject, int, *ChannelError) {
	policy := t.cfg.SocketRetry
	policy.AttemptTimeout = t.cfg.SocketTimeout

	payload := mutationPayload(op)
	match := func(ev api.Event) bool {
		var ack api.Ack
		if err := ev.Decode(&ack); err != nil {
			return false
		}
		if ack.ObjectID != op.ObjectID {
			return false
		}
		return op.OperationID == "" || ack.OperationID == "" || ack.OperationID == op.OperationID
	}

	out, err := retry.Do(ctx, policy, func(ctx context.Context) (*api.Ack, error) {
		ev, err := t.stream.Request(ctx, socketEvent(op.Type), payload, api.EventObjectAck, match)
		if err != nil {
			return nil, err
		}
		var ack api.Ack
		if err := ev.Decode(&ack); err != nil {
			return nil, err
		}
		if !ack.Success {
			return nil, &ackError{ack: ack}
		}
		return &ack, nil
	})
	if err != nil {
		return nil, out.Attempts, classifySocket(err, out.Attempts)
	}

	var obj *models.CanvasObject
	if out.Value.Object != nil {
		obj = models.ObjectFromAPI(*out.Value.Object)
	}
	return obj, out.Attempts, nil
}

// ackError отрицательное подтверждение; повторяется только при 429/5xx
type ackError struct {
	ack api.Ack
}

func (e *ackError) Error() string {
	return fmt.Sprintf("%v: %s", ErrNegativeAck, e.ack.Error)
}

func (e *ackError) Unwrap() error { return ErrNegativeAck }

func (e *ackError) HTTPStatus() int { return e.ack.StatusCode }

func classifySocket(err error, attempts int) *ChannelError {
	ce := &ChannelError{Channel: ChannelSocket, Err: err, Attempts: attempts}
	var nack *ackError
	switch {
	case errors.As(err, &nack):
		ce.Reason = ReasonRejected
		ce.StatusCode = nack.ack.StatusCode
		ce.Code = nack.ack.Code
		ce.Message = nack.ack.Error
	case errors.Is(err, socket.ErrNotConnected), errors.Is(err, socket.ErrClosed):
		ce.Reason = ReasonNotConnected
	case errors.Is(err, context.DeadlineExceeded):
		ce.Reason = ReasonTimeout
	default:
		ce.Reason = ReasonNetwork
	}
	return ce
}

// sendREST выполняет операцию через REST; после 401 один раз обновляет токен
func (t *Transport) sendREST(ctx context.Context, op Operation) (*models.CanvasObject, int, *ChannelError) {
	policy := t.cfg.RESTRetry
	policy.AttemptTimeout = t.cfg.RESTTimeout

	refreshed := false
	out, err := retry.Do(ctx, policy, func(ctx context.Context) (*api.Object, error) {
		obj, err := t.callREST(ctx, op)
		if err != nil && clientapi.IsUnauthorized(err) && !refreshed && t.refresher != nil {
			refreshed = true
			if rerr := t.refresher.ForceRefresh(ctx); rerr != nil {
				t.logger.Warn("credential refresh failed", "error", rerr)
				return nil, err
			}
			return t.callREST(ctx, op)
		}
		return obj, err
	})
	if err != nil {
		return nil, out.Attempts, classifyREST(err, out.Attempts)
	}

	if out.Value == nil {
		return nil, out.Attempts, nil
	}
	return models.ObjectFromAPI(*out.Value), out.Attempts, nil
}

func (t *Transport) callREST(ctx context.Context, op Operation) (*api.Object, error) {
	switch op.Type {
	case models.UpdateCreate:
		if op.Object == nil {
			return nil, fmt.Errorf("create without object")
		}
		return t.rest.CreateObject(ctx, op.CanvasID, api.CreateObjectRequest{
			ID:          op.ObjectID,
			ObjectType:  string(op.Object.ObjectType),
			Properties:  op.Object.Properties.Clone(),
			OperationID: op.OperationID,
		})
	case models.UpdateDelete:
		err := t.rest.DeleteObject(ctx, op.CanvasID, op.ObjectID, op.OperationID)
		if clientapi.IsNotFound(err) {
			// Объекта уже нет - цель удаления достигнута
			return nil, nil
		}
		return nil, err
	default:
		if op.Object == nil {
			return nil, fmt.Errorf("%s without object", op.Type)
		}
		return t.rest.UpdateObject(ctx, op.CanvasID, op.ObjectID, api.UpdateObjectRequest{
			Properties:  op.Object.Properties.Clone(),
			OperationID: op.OperationID,
			BaseVersion: op.BaseVersion,
		})
	}
}

func classifyREST(err error, attempts int) *ChannelError {
	ce := &ChannelError{Channel: ChannelREST, Err: err, Attempts: attempts}
	var apiErr *clientapi.APIError
	switch {
	case errors.As(err, &apiErr):
		ce.StatusCode = apiErr.StatusCode
		ce.Code = apiErr.Code
		ce.Message = apiErr.Message
		if retry.IsRetryableStatus(apiErr.StatusCode) {
			// сервер перегружен или недоступен
			ce.Reason = ReasonNetwork
		} else {
			ce.Reason = ReasonRejected
		}
	case errors.Is(err, context.DeadlineExceeded):
		ce.Reason = ReasonTimeout
	default:
		ce.Reason = ReasonNetwork
	}
	return ce
}
