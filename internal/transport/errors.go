package transport

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/iudanet/canvassync/internal/retry"
)

// Channel канал доставки
type Channel string

const (
	ChannelSocket Channel = "socket"
	ChannelREST   Channel = "rest"
)

// Reason причина отказа канала
type Reason string

const (
	ReasonNotConnected Reason = "not_connected"
	ReasonTimeout      Reason = "timeout"
	ReasonRejected     Reason = "rejected"
	ReasonNetwork      Reason = "network"
)

// ErrNegativeAck сервер ответил отрицательным подтверждением по сокету
var ErrNegativeAck = errors.New("negative acknowledgement")

// ChannelError отказ одного канала
type ChannelError struct {
	Err        error
	Channel    Channel
	Reason     Reason
	Code       string
	Message    string
	StatusCode int
	Attempts   int
}

func (e *ChannelError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Channel, e.Reason)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	} else if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ChannelError) Unwrap() error { return e.Err }

// Terminal сообщает, что сервер окончательно отклонил операцию
func (e *ChannelError) Terminal() bool {
	return e.Reason == ReasonRejected && !retry.IsRetryableStatus(e.StatusCode)
}

// TransportError оба канала не доставили операцию
type TransportError struct {
	OperationID string
	Failures    []*ChannelError
}

func (e *TransportError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.Error())
	}
	return fmt.Sprintf("operation %s not delivered: %s", e.OperationID, strings.Join(parts, "; "))
}

// Unwrap открывает причины для errors.Is / errors.As
func (e *TransportError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f)
	}
	return errs
}

// Rejection первая окончательная отбраковка сервером; nil, если сервер не ответил
func (e *TransportError) Rejection() *ChannelError {
	for _, f := range e.Failures {
		if f.Terminal() {
			return f
		}
	}
	return nil
}

// Responded сообщает, ответил ли сервер хоть по одному каналу
func (e *TransportError) Responded() bool {
	for _, f := range e.Failures {
		if f.Reason == ReasonRejected {
			return true
		}
	}
	return false
}

// Retryable реализует retry.Classifier: окончательный отказ сервера не повторяется
func (e *TransportError) Retryable() bool {
	return e.Rejection() == nil
}

// HTTPStatus статус окончательного отказа, 0 если его нет
func (e *TransportError) HTTPStatus() int {
	if r := e.Rejection(); r != nil {
		return r.StatusCode
	}
	return 0
}

// Code машинно-читаемый код
func (e *TransportError) Code() string {
	if r := e.Rejection(); r != nil {
		if r.Code != "" {
			return r.Code
		}
		return "rejected"
	}
	return "transport_unavailable"
}

// UserMessage сообщение для пользователя
func (e *TransportError) UserMessage() string {
	if r := e.Rejection(); r != nil {
		switch r.StatusCode {
		case http.StatusNotFound:
			return "The object no longer exists on the server."
		case http.StatusConflict:
			return "The object was changed by someone else. Reload and try again."
		case http.StatusForbidden:
			return "You do not have permission to change this canvas."
		}
		if r.Message != "" {
			return "The server rejected the change: " + r.Message
		}
		return "The server rejected the change."
	}
	return "Could not reach the server. Your change will be retried when the connection is back."
}
