package rest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/zynerotech/evalforward/logger"
	"github.com/zynerotech/evalforward/transport"
)

// ErrProducerClosed is returned by Publish after Close.
var ErrProducerClosed = errors.New("producer is closed")

// Producer delivers JSON documents to an HTTP endpoint with a single POST.
// It never retries; every Publish call is exactly one request.
type Producer struct {
	client    *http.Client
	userAgent string
	metrics   transport.Metrics
	mu        sync.RWMutex
	closed    bool
}

var _ transport.Producer = (*Producer)(nil)

// NewProducer creates a Producer from the provided configuration.
func NewProducer(cfg Config) (*Producer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	httpTransport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.MaxIdleConns > 0 {
		httpTransport.MaxIdleConns = cfg.MaxIdleConns
	}
	if cfg.IdleConnTimeout > 0 {
		httpTransport.IdleConnTimeout = cfg.IdleConnTimeout
	}

	producer := &Producer{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: httpTransport,
		},
		userAgent: cfg.userAgent(),
		metrics:   &transport.NoOpMetrics{}, // no-op metrics by default
	}
	producer.metrics.SetActiveProducers(1)

	return producer, nil
}

// NewProducerWithClient wraps an existing client, e.g. one from httptest.Server.
func NewProducerWithClient(client *http.Client, userAgent string) *Producer {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Producer{
		client:    client,
		userAgent: userAgent,
		metrics:   &transport.NoOpMetrics{},
	}
}

// SetMetrics sets the metrics implementation.
func (p *Producer) SetMetrics(metrics transport.Metrics) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metrics = metrics
	p.metrics.SetActiveProducers(1)
}

// Publish POSTs body to endpoint with Content-Type application/json and
// returns the status code together with the fully read response body.
// Any non-nil error means no usable response was obtained.
func (p *Producer) Publish(ctx context.Context, endpoint string, body []byte) (*transport.Response, error) {
	start := time.Now()

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, ErrProducerClosed
	}
	metrics := p.metrics
	p.mu.RUnlock()

	defer func() {
		metrics.RecordPublishTime(endpoint, time.Since(start))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		metrics.IncRequestsSent(endpoint, "error")
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		metrics.IncRequestsSent(endpoint, "error")
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.IncRequestsSent(endpoint, "error")
		return nil, fmt.Errorf("read response body: %w", err)
	}

	metrics.IncRequestsSent(endpoint, strconv.Itoa(resp.StatusCode))
	logger.Component("rest").Debug().
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Int("request_bytes", len(body)).
		Int("response_bytes", len(respBody)).
		Dur("duration", time.Since(start)).
		Msg("Request delivered")

	return &transport.Response{
		StatusCode: resp.StatusCode,
		Body:       respBody,
	}, nil
}

// Close releases idle connections. Subsequent Publish calls fail.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.metrics.SetActiveProducers(0)
	p.client.CloseIdleConnections()
	p.closed = true

	logger.Component("rest").Info().Msg("Producer closed successfully")
	return nil
}
