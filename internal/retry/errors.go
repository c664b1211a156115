package retry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

// ErrExhausted все попытки исчерпаны
var ErrExhausted = errors.New("retry attempts exhausted")

// StatusCoder реализуют ошибки, несущие HTTP статус
type StatusCoder interface {
	HTTPStatus() int
}

// RetryAfterer реализуют ошибки, несущие подсказку Retry-After
type RetryAfterer interface {
	RetryAfter() time.Duration
}

// Classifier позволяет ошибке самой сообщить, можно ли ее повторять
type Classifier interface {
	Retryable() bool
}

// IsRetryable классификатор по умолчанию: повторяются сетевые ошибки,
// таймауты, 5xx и 429. Остальные 4xx и неизвестные ошибки терминальны.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var classifier Classifier
	if errors.As(err, &classifier) {
		return classifier.Retryable()
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		return IsRetryableStatus(sc.HTTPStatus())
	}

	// Таймаут отдельной попытки
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// IsRetryableStatus сообщает, стоит ли повторять ответ с данным статусом
func IsRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || (status >= 500 && status <= 599)
}

func retryAfterHint(err error) time.Duration {
	var ra RetryAfterer
	if errors.As(err, &ra) {
		return ra.RetryAfter()
	}
	return 0
}
