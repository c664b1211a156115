package transport

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clientapi "github.com/iudanet/canvassync/internal/client/api"
	"github.com/iudanet/canvassync/internal/client/socket"
	"github.com/iudanet/canvassync/internal/models"
	"github.com/iudanet/canvassync/internal/retry"
	"github.com/iudanet/canvassync/pkg/api"
)

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func testConfig() Config {
	return Config{
		SocketTimeout: 30 * time.Millisecond,
		RESTTimeout:   time.Second,
		SocketRetry:   retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, Sleep: noSleep},
		RESTRetry:     retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Sleep: noSleep},
	}
}

func updateOp() Operation {
	return Operation{
		OperationID: "op-1",
		CanvasID:    "c1",
		ObjectID:    "o1",
		Type:        models.UpdateMove,
		BaseVersion: 1,
		Object: &models.CanvasObject{
			ID:         "o1",
			CanvasID:   "c1",
			ObjectType: models.ObjectTypeRectangle,
			Properties: models.Properties{"x": 50.0, "y": 60.0},
			Version:    2,
		},
	}
}

func serverObject(version int64) *api.Object {
	return &api.Object{
		ID:         "o1",
		CanvasID:   "c1",
		ObjectType: "rectangle",
		Properties: map[string]any{"x": 50.0, "y": 60.0},
		Version:    version,
	}
}

func ackEvent(t *testing.T, ack api.Ack) api.Event {
	t.Helper()
	ev, err := api.NewEvent("ev-1", api.EventObjectAck, api.PriorityNormal, ack)
	require.NoError(t, err)
	return ev
}

func connected(v bool) func() bool { return func() bool { return v } }

type recordingObserver struct {
	methods []Method
	mu      sync.Mutex
}

func (o *recordingObserver) ObserveDelivery(method Method, fellBack bool, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.methods = append(o.methods, method)
}

func TestSend_SocketAck(t *testing.T) {
	stream := &EventStreamMock{
		IsConnectedFunc: connected(true),
		RequestFunc: func(ctx context.Context, eventType string, payload any, replyType string, match func(api.Event) bool) (api.Event, error) {
			assert.Equal(t, api.EventObjectUpdate, eventType)
			assert.Equal(t, api.EventObjectAck, replyType)
			mutation, ok := payload.(api.ObjectMutation)
			require.True(t, ok)
			assert.Equal(t, "op-1", mutation.OperationID)
			assert.Equal(t, int64(1), mutation.BaseVersion)

			// Подтверждение чужого объекта не подходит
			assert.False(t, match(ackEvent(t, api.Ack{ObjectID: "other", OperationID: "op-1", Success: true})))
			assert.False(t, match(ackEvent(t, api.Ack{ObjectID: "o1", OperationID: "op-2", Success: true})))

			ev := ackEvent(t, api.Ack{ObjectID: "o1", OperationID: "op-1", Success: true, Object: serverObject(2)})
			assert.True(t, match(ev))
			return ev, nil
		},
	}
	rest := &ObjectAPIMock{}
	obs := &recordingObserver{}

	tr := New(testConfig(), stream, rest, nil, WithObserver(obs))
	conf, err := tr.Send(context.Background(), updateOp())
	require.NoError(t, err)

	assert.Equal(t, MethodSocket, conf.Method)
	assert.False(t, conf.FellBack)
	assert.Equal(t, 1, conf.SocketAttempts)
	require.NotNil(t, conf.Object)
	assert.Equal(t, int64(2), conf.Object.Version)
	assert.Equal(t, []Method{MethodSocket}, obs.methods)
}

func TestSend_SocketTimeoutFallsBackToREST(t *testing.T) {
	stream := &EventStreamMock{
		IsConnectedFunc: connected(true),
		RequestFunc: func(ctx context.Context, eventType string, payload any, replyType string, match func(api.Event) bool) (api.Event, error) {
			<-ctx.Done()
			return api.Event{}, ctx.Err()
		},
	}
	rest := &ObjectAPIMock{
		UpdateObjectFunc: func(ctx context.Context, canvasID, objectID string, req api.UpdateObjectRequest) (*api.Object, error) {
			assert.Equal(t, "op-1", req.OperationID)
			assert.Equal(t, 50.0, req.Properties["x"])
			return serverObject(2), nil
		},
	}

	tr := New(testConfig(), stream, rest, nil)
	conf, err := tr.Send(context.Background(), updateOp())
	require.NoError(t, err)

	assert.Equal(t, MethodREST, conf.Method)
	assert.True(t, conf.FellBack)
	assert.Equal(t, 2, conf.SocketAttempts)
	assert.Equal(t, 1, conf.RESTAttempts)
	assert.Len(t, stream.RequestCalls(), 2)
}

func TestSend_NotConnectedUsesREST(t *testing.T) {
	stream := &EventStreamMock{IsConnectedFunc: connected(false)}
	rest := &ObjectAPIMock{
		CreateObjectFunc: func(ctx context.Context, canvasID string, req api.CreateObjectRequest) (*api.Object, error) {
			assert.Equal(t, "o1", req.ID)
			assert.Equal(t, "rectangle", req.ObjectType)
			return serverObject(1), nil
		},
	}
	op := updateOp()
	op.Type = models.UpdateCreate

	tr := New(testConfig(), stream, rest, nil)
	conf, err := tr.Send(context.Background(), op)
	require.NoError(t, err)
	assert.Equal(t, MethodREST, conf.Method)
	assert.False(t, conf.FellBack)
	assert.Zero(t, conf.SocketAttempts)
	assert.Empty(t, stream.RequestCalls())
}

func TestSend_NilStreamUsesREST(t *testing.T) {
	rest := &ObjectAPIMock{
		UpdateObjectFunc: func(ctx context.Context, canvasID, objectID string, req api.UpdateObjectRequest) (*api.Object, error) {
			return serverObject(2), nil
		},
	}
	conf, err := New(testConfig(), nil, rest, nil).Send(context.Background(), updateOp())
	require.NoError(t, err)
	assert.Equal(t, MethodREST, conf.Method)
}

func TestSend_BothChannelsFail(t *testing.T) {
	stream := &EventStreamMock{
		IsConnectedFunc: connected(true),
		RequestFunc: func(ctx context.Context, eventType string, payload any, replyType string, match func(api.Event) bool) (api.Event, error) {
			return ackEvent(t, api.Ack{ObjectID: "o1", OperationID: "op-1", Success: false, StatusCode: http.StatusServiceUnavailable, Error: "busy"}), nil
		},
	}
	rest := &ObjectAPIMock{
		UpdateObjectFunc: func(ctx context.Context, canvasID, objectID string, req api.UpdateObjectRequest) (*api.Object, error) {
			return nil, &clientapi.APIError{StatusCode: http.StatusBadGateway, Message: "bad gateway"}
		},
	}
	obs := &recordingObserver{}

	conf, err := New(testConfig(), stream, rest, nil, WithObserver(obs)).Send(context.Background(), updateOp())
	require.Error(t, err)
	assert.Nil(t, conf)

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	require.Len(t, terr.Failures, 2)

	assert.Equal(t, ChannelSocket, terr.Failures[0].Channel)
	assert.Equal(t, ReasonRejected, terr.Failures[0].Reason)
	assert.Equal(t, 2, terr.Failures[0].Attempts, "5xx negative ack is retried")

	assert.Equal(t, ChannelREST, terr.Failures[1].Channel)
	assert.Equal(t, ReasonNetwork, terr.Failures[1].Reason)
	assert.Equal(t, 3, terr.Failures[1].Attempts)

	assert.Nil(t, terr.Rejection())
	assert.True(t, terr.Retryable())
	assert.True(t, retry.IsRetryable(err))
	assert.Equal(t, "transport_unavailable", terr.Code())
	assert.ErrorIs(t, err, retry.ErrExhausted)
	assert.Equal(t, []Method{MethodFailed}, obs.methods)
}

func TestSend_RESTRejectionIsTerminal(t *testing.T) {
	stream := &EventStreamMock{IsConnectedFunc: connected(false)}
	rest := &ObjectAPIMock{
		UpdateObjectFunc: func(ctx context.Context, canvasID, objectID string, req api.UpdateObjectRequest) (*api.Object, error) {
			return nil, &clientapi.APIError{StatusCode: http.StatusUnprocessableEntity, Code: "validation_failed", Message: "width must not be negative"}
		},
	}

	_, err := New(testConfig(), stream, rest, nil).Send(context.Background(), updateOp())
	var terr *TransportError
	require.ErrorAs(t, err, &terr)

	rej := terr.Rejection()
	require.NotNil(t, rej)
	assert.Equal(t, ChannelREST, rej.Channel)
	assert.Equal(t, http.StatusUnprocessableEntity, rej.StatusCode)
	assert.Equal(t, 1, rej.Attempts)
	assert.True(t, terr.Responded())
	assert.False(t, retry.IsRetryable(err))
	assert.Equal(t, "validation_failed", terr.Code())
	assert.Contains(t, terr.UserMessage(), "width must not be negative")

	var apiErr *clientapi.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "validation_failed", apiErr.Code)
}

func TestSend_UnauthorizedRefreshesOnce(t *testing.T) {
	stream := &EventStreamMock{IsConnectedFunc: connected(false)}
	calls := 0
	rest := &ObjectAPIMock{
		UpdateObjectFunc: func(ctx context.Context, canvasID, objectID string, req api.UpdateObjectRequest) (*api.Object, error) {
			calls++
			if calls == 1 {
				return nil, &clientapi.APIError{StatusCode: http.StatusUnauthorized, Message: "expired"}
			}
			return serverObject(2), nil
		},
	}
	refresher := &RefresherMock{ForceRefreshFunc: func(ctx context.Context) error { return nil }}

	conf, err := New(testConfig(), stream, rest, nil, WithRefresher(refresher)).Send(context.Background(), updateOp())
	require.NoError(t, err)
	assert.Equal(t, MethodREST, conf.Method)
	assert.Equal(t, 1, conf.RESTAttempts)
	assert.Len(t, refresher.ForceRefreshCalls(), 1)
	assert.Equal(t, 2, calls)
}

func TestSend_UnauthorizedAfterRefreshIsRejected(t *testing.T) {
	stream := &EventStreamMock{IsConnectedFunc: connected(false)}
	rest := &ObjectAPIMock{
		UpdateObjectFunc: func(ctx context.Context, canvasID, objectID string, req api.UpdateObjectRequest) (*api.Object, error) {
			return nil, &clientapi.APIError{StatusCode: http.StatusUnauthorized, Message: "expired"}
		},
	}
	refresher := &RefresherMock{ForceRefreshFunc: func(ctx context.Context) error { return nil }}

	_, err := New(testConfig(), stream, rest, nil, WithRefresher(refresher)).Send(context.Background(), updateOp())
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	require.NotNil(t, terr.Rejection())
	assert.Equal(t, http.StatusUnauthorized, terr.Rejection().StatusCode)
	assert.Len(t, refresher.ForceRefreshCalls(), 1)
	assert.Len(t, rest.UpdateObjectCalls(), 2)
}

func TestSend_DeleteOfMissingObjectSucceeds(t *testing.T) {
	stream := &EventStreamMock{IsConnectedFunc: connected(false)}
	rest := &ObjectAPIMock{
		DeleteObjectFunc: func(ctx context.Context, canvasID, objectID, operationID string) error {
			assert.Equal(t, "op-1", operationID)
			return &clientapi.APIError{StatusCode: http.StatusNotFound}
		},
	}
	op := updateOp()
	op.Type = models.UpdateDelete
	op.Object = nil

	conf, err := New(testConfig(), stream, rest, nil).Send(context.Background(), op)
	require.NoError(t, err)
	assert.True(t, conf.Deleted)
	assert.Nil(t, conf.Object)
}

func TestSend_SocketNotConnectedMidRequest(t *testing.T) {
	stream := &EventStreamMock{
		IsConnectedFunc: connected(true),
		RequestFunc: func(ctx context.Context, eventType string, payload any, replyType string, match func(api.Event) bool) (api.Event, error) {
			return api.Event{}, socket.ErrNotConnected
		},
	}
	rest := &ObjectAPIMock{
		UpdateObjectFunc: func(ctx context.Context, canvasID, objectID string, req api.UpdateObjectRequest) (*api.Object, error) {
			return serverObject(2), nil
		},
	}
	conf, err := New(testConfig(), stream, rest, nil).Send(context.Background(), updateOp())
	require.NoError(t, err)
	assert.Equal(t, MethodREST, conf.Method)
	// Обрыв соединения не повторяется по сокету
	assert.Equal(t, 1, conf.SocketAttempts)
}

func TestSend_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stream := &EventStreamMock{
		IsConnectedFunc: connected(true),
		RequestFunc: func(rctx context.Context, eventType string, payload any, replyType string, match func(api.Event) bool) (api.Event, error) {
			cancel()
			<-rctx.Done()
			return api.Event{}, rctx.Err()
		},
	}
	rest := &ObjectAPIMock{}

	_, err := New(testConfig(), stream, rest, nil).Send(ctx, updateOp())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, rest.UpdateObjectCalls())
}

func TestSend_InvalidType(t *testing.T) {
	op := updateOp()
	op.Type = "paint"
	_, err := New(testConfig(), nil, &ObjectAPIMock{}, nil).Send(context.Background(), op)
	assert.Error(t, err)
}
