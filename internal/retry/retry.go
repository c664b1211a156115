// Package retry реализует повтор операций с экспоненциальной задержкой и джиттером.
// Пакет не знает ничего о холсте и используется любым компонентом,
// выполняющим сетевой ввод-вывод.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// Sleeper ожидает d или отмены контекста
type Sleeper func(ctx context.Context, d time.Duration) error

// Policy параметры повторов
type Policy struct {
	// Retryable решает, стоит ли повторять ошибку. nil означает IsRetryable.
	Retryable func(err error) bool
	// Sleep позволяет подменить ожидание в тестах. nil означает Wait.
	Sleep Sleeper
	// JitterFunc возвращает случайную добавку в [0, max). nil означает math/rand.
	JitterFunc func(max time.Duration) time.Duration
	// OnRetry вызывается перед каждым ожиданием
	OnRetry func(attempt int, delay time.Duration, err error)

	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      time.Duration // окно джиттера; 0 отключает
	// AttemptTimeout ограничивает каждую попытку отдельно; 0 без ограничения
	AttemptTimeout time.Duration
}

// DefaultPolicy политика по умолчанию: 3 попытки, 1s база, 30s потолок, 1s джиттер
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Jitter:      time.Second,
	}
}

// Outcome результат выполнения с телеметрией
type Outcome[T any] struct {
	Value    T
	Attempts int
	Elapsed  time.Duration
}

// Delay вычисляет задержку перед повтором после попытки с индексом attempt (с нуля):
// min(BaseDelay*2^attempt + rand(0, Jitter), MaxDelay).
func (p Policy) Delay(attempt int) time.Duration {
	delay := p.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.Jitter > 0 {
		jitter := p.JitterFunc
		if jitter == nil {
			jitter = randomJitter
		}
		delay += jitter(p.Jitter)
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Do выполняет fn, повторяя ее согласно политике.
// Отмена контекста прекращает повторы немедленно.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (Outcome[T], error) {
	var out Outcome[T]
	start := time.Now()

	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Wait
	}

	var lastErr error
	exhausted := false
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			out.Elapsed = time.Since(start)
			return out, errors.Join(lastErr, err)
		}

		out.Attempts++
		value, err := runAttempt(ctx, p.AttemptTimeout, fn)
		if err == nil {
			out.Value = value
			out.Elapsed = time.Since(start)
			return out, nil
		}
		lastErr = err

		// Контекст вызывающего отменен - повторять бессмысленно
		if ctx.Err() != nil || !retryable(err) {
			break
		}
		if attempt == maxAttempts-1 {
			exhausted = true
			break
		}

		delay := p.Delay(attempt)
		if hint := retryAfterHint(err); hint > 0 {
			delay = hint
			if p.MaxDelay > 0 && delay > p.MaxDelay {
				delay = p.MaxDelay
			}
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, delay, err)
		}
		if err := sleep(ctx, delay); err != nil {
			out.Elapsed = time.Since(start)
			return out, errors.Join(lastErr, err)
		}
	}

	out.Elapsed = time.Since(start)
	if exhausted && out.Attempts > 1 {
		return out, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, out.Attempts, lastErr)
	}
	return out, lastErr
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(attemptCtx)
}

// Wait ожидает d с учетом отмены контекста
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(max)))
}
