package healthcheck

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthcheckNoChecks(t *testing.T) {
	h, err := New(Config{})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, DefaultPath, nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NoError(t, h.Stop())
}

func TestHealthcheckFailingCheck(t *testing.T) {
	h, err := New(Config{})
	require.NoError(t, err)

	h.Register("config", func(context.Context) error { return nil })
	h.Register("backend", func(context.Context) error { return errors.New("connection refused") })

	rec := httptest.NewRecorder()
	h.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, DefaultPath, nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"unavailable","checks":{"backend":"connection refused","config":"ok"}}`, rec.Body.String())
}

func TestHealthcheckTimeout(t *testing.T) {
	h, err := New(Config{Timeout: 20 * time.Millisecond})
	require.NoError(t, err)

	h.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	report := h.Check(context.Background())
	assert.Equal(t, "unavailable", report.Status)
	assert.Equal(t, context.DeadlineExceeded.Error(), report.Checks["slow"])
}

func TestHealthcheckServer(t *testing.T) {
	var wrapped atomic.Bool
	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped.Store(true)
			next.ServeHTTP(w, r)
		})
	}

	h, err := New(Config{Enabled: true, Port: 0}, mw)
	require.NoError(t, err)
	defer h.Stop()

	require.NotEmpty(t, h.Addr())

	port := h.listener.Addr().(*net.TCPAddr).Port
	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d%s", port, DefaultPath))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, wrapped.Load())
}
