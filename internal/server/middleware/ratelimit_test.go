package middleware

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(10, time.Minute, nil)
	defer limiter.Stop()

	assert.Equal(t, 10, limiter.limit)
	assert.Equal(t, time.Minute, limiter.window)
	assert.Equal(t, rate.Every(6*time.Second), limiter.every)
	assert.NotNil(t, limiter.clients)
	assert.NotNil(t, limiter.logger)

	// Stop идемпотентен
	limiter.Stop()
}

func TestRateLimiter_Allow(t *testing.T) {
	t.Run("requests within limit are allowed", func(t *testing.T) {
		limiter := NewRateLimiter(5, time.Minute, discardLogger())
		defer limiter.Stop()

		for i := 0; i < 5; i++ {
			assert.True(t, limiter.Allow("192.168.1.1"), fmt.Sprintf("request %d should be allowed", i+1))
		}
		assert.False(t, limiter.Allow("192.168.1.1"), "request over limit should be denied")
	})

	t.Run("keys are tracked separately", func(t *testing.T) {
		limiter := NewRateLimiter(2, time.Minute, discardLogger())
		defer limiter.Stop()

		assert.True(t, limiter.Allow("a"))
		assert.True(t, limiter.Allow("a"))
		assert.False(t, limiter.Allow("a"))

		assert.True(t, limiter.Allow("b"))
		assert.True(t, limiter.Allow("b"))
	})

	t.Run("tokens refill within window", func(t *testing.T) {
		limiter := NewRateLimiter(1, 50*time.Millisecond, discardLogger())
		defer limiter.Stop()

		assert.True(t, limiter.Allow("a"))
		assert.False(t, limiter.Allow("a"))

		time.Sleep(70 * time.Millisecond)
		assert.True(t, limiter.Allow("a"))
	})

	t.Run("concurrent first requests share one bucket", func(t *testing.T) {
		limiter := NewRateLimiter(10, time.Minute, discardLogger())
		defer limiter.Stop()

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			allowed int
		)
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if limiter.Allow("same") {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 10, allowed)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	var buf bytes.Buffer
	limiter := NewRateLimiter(2, 90*time.Second, bufferLogger(&buf))
	defer limiter.Stop()

	handler := RateLimitMiddleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	call := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1:1111").Code)
	// другой порт того же адреса считается тем же клиентом
	assert.Equal(t, http.StatusOK, call("10.0.0.1:2222").Code)

	rec := call("10.0.0.1:3333")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "90", rec.Header().Get("Retry-After"))
	resp := decodeError(t, rec)
	assert.Equal(t, "rate_limited", resp.Error)

	assert.Contains(t, buf.String(), "Rate limit exceeded")
	assert.Contains(t, buf.String(), "ip=10.0.0.1")

	assert.Equal(t, http.StatusOK, call("10.0.0.2:1111").Code)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		expected   string
	}{
		{
			name:       "remote addr with port",
			remoteAddr: "192.168.1.100:54321",
			expected:   "192.168.1.100",
		},
		{
			name:       "remote addr without port",
			remoteAddr: "192.168.1.100",
			expected:   "192.168.1.100",
		},
		{
			name:       "X-Forwarded-For single",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.7"},
			remoteAddr: "10.0.0.1:1234",
			expected:   "203.0.113.7",
		},
		{
			name:       "X-Forwarded-For chain",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.7, 70.41.3.18, 150.172.238.178"},
			remoteAddr: "10.0.0.1:1234",
			expected:   "203.0.113.7",
		},
		{
			name:       "X-Real-IP",
			headers:    map[string]string{"X-Real-IP": "198.51.100.4"},
			remoteAddr: "10.0.0.1:1234",
			expected:   "198.51.100.4",
		},
		{
			name: "X-Forwarded-For wins over X-Real-IP",
			headers: map[string]string{
				"X-Forwarded-For": "203.0.113.7",
				"X-Real-IP":       "198.51.100.4",
			},
			remoteAddr: "10.0.0.1:1234",
			expected:   "203.0.113.7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.expected, clientIP(req))
		})
	}
}

func TestRateLimiter_Prune(t *testing.T) {
	limiter := NewRateLimiter(5, time.Minute, discardLogger())
	defer limiter.Stop()

	limiter.Allow("stale")
	limiter.Allow("fresh")

	limiter.mu.Lock()
	limiter.clients["stale"].lastSeen = time.Now().Add(-3 * time.Minute)
	limiter.mu.Unlock()

	limiter.prune(time.Now())

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	_, staleExists := limiter.clients["stale"]
	_, freshExists := limiter.clients["fresh"]
	assert.False(t, staleExists)
	assert.True(t, freshExists)
}
