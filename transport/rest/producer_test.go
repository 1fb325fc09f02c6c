package rest

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "defaults", cfg: GetDefaultConfig()},
		{name: "zero value", cfg: Config{}},
		{name: "negative timeout", cfg: Config{Timeout: -time.Second}, wantErr: true},
		{name: "negative idle conns", cfg: Config{MaxIdleConns: -1}, wantErr: true},
		{name: "negative idle timeout", cfg: Config{IdleConnTimeout: -time.Second}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			assert.Equal(t, tt.wantErr, err != nil, "Validate() = %v", err)
		})
	}
}

func TestNewProducerRejectsInvalidConfig(t *testing.T) {
	_, err := NewProducer(Config{Timeout: -1})
	assert.Error(t, err)
}

func TestProducerPublish(t *testing.T) {
	var received []byte
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/save-evaluation", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "evalforward-test", r.Header.Get("User-Agent"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		received = body

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer ts.Close()

	cfg := GetDefaultConfig()
	cfg.UserAgent = "evalforward-test"
	p, err := NewProducer(cfg)
	require.NoError(t, err)
	defer p.Close()

	resp, err := p.Publish(context.Background(), ts.URL+"/api/save-evaluation", []byte(`{"score":0.9}`))
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Body))
	assert.JSONEq(t, `{"score":0.9}`, string(received))
}

func TestProducerPublishConnectionRefused(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	p := NewProducerWithClient(&http.Client{}, "")
	resp, err := p.Publish(context.Background(), url, []byte(`{}`))

	assert.Nil(t, resp)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "send request")
}

func TestProducerPublishInvalidURL(t *testing.T) {
	p := NewProducerWithClient(&http.Client{}, "")
	_, err := p.Publish(context.Background(), "://bad", []byte(`{}`))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "create request")
}

func TestProducerPublishContextCanceled(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer ts.Close()
	defer close(release)

	p := NewProducerWithClient(ts.Client(), "")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.Publish(ctx, ts.URL, []byte(`{}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestProducerNoRetry(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	p := NewProducerWithClient(ts.Client(), "")
	resp, err := p.Publish(context.Background(), ts.URL, []byte(`{}`))

	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestProducerClose(t *testing.T) {
	p, err := NewProducer(GetDefaultConfig())
	require.NoError(t, err)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	_, err = p.Publish(context.Background(), "http://localhost", []byte(`{}`))
	assert.ErrorIs(t, err, ErrProducerClosed)
}

func TestProducerMetrics(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	reg := prometheus.NewRegistry()
	m := NewMetrics("evalforward_test", reg)

	p := NewProducerWithClient(ts.Client(), "")
	p.SetMetrics(m)

	_, err := p.Publish(context.Background(), ts.URL, []byte(`{}`))
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsSent.WithLabelValues(ts.URL, "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeProducers))
	assert.Equal(t, 1, testutil.CollectAndCount(m.publishTime))

	require.NoError(t, p.Close())
	assert.Equal(t, 0.0, testutil.ToFloat64(m.activeProducers))
}

func TestNewMetricsDefaultName(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("", reg)
	m.IncForwards("raw", "success")

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "evalforward_forwards_total")
}
