// Package forwarder relays evaluation results produced by a workflow step to
// the visualization backend and normalises the outcome into an Envelope.
package forwarder

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/zynerotech/evalforward/logger"
	"github.com/zynerotech/evalforward/transport"
)

// outcomeSuccess is the metrics outcome label of a successful forward;
// failures use their Kind.
const outcomeSuccess = "success"

// Forwarder sends one payload per call through a transport.Producer.
// It is safe for concurrent use if the producer is.
type Forwarder struct {
	cfg      Config
	endpoint string
	producer transport.Producer
	metrics  transport.Metrics
	custom   *logger.Logger
}

// Option настраивает Forwarder
type Option func(*Forwarder)

// WithLogger задает логгер вместо компонентного логгера "forwarder"
func WithLogger(l *logger.Logger) Option {
	return func(f *Forwarder) {
		if l != nil {
			f.custom = l
		}
	}
}

// WithMetrics задает реализацию метрик
func WithMetrics(m transport.Metrics) Option {
	return func(f *Forwarder) {
		if m != nil {
			f.metrics = m
		}
	}
}

// New создает Forwarder. Конфигурация проверяется до первого запроса.
func New(cfg Config, producer transport.Producer, opts ...Option) (*Forwarder, error) {
	if producer == nil {
		return nil, fmt.Errorf("producer is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid forwarder config: %w", err)
	}

	f := &Forwarder{
		cfg:      cfg,
		endpoint: cfg.Endpoint(),
		producer: producer,
		metrics:  &transport.NoOpMetrics{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// log берется при каждом вызове, чтобы смена уровня на лету применялась
func (f *Forwarder) log() *logger.Logger {
	if f.custom != nil {
		return f.custom
	}
	return logger.Component("forwarder")
}

// Endpoint returns the full URL payloads are posted to.
func (f *Forwarder) Endpoint() string {
	return f.endpoint
}

// Config returns the configuration the forwarder was built with.
func (f *Forwarder) Config() Config {
	return f.cfg
}

// Send posts payload as a single JSON request and decodes a 200 response.
// Every failure is an *Error tagged with its Kind.
func (f *Forwarder) Send(ctx context.Context, payload any) (any, error) {
	body, err := encode(payload)
	if err != nil {
		return nil, &Error{Kind: KindEncode, Err: err}
	}

	resp, err := f.producer.Publish(ctx, f.endpoint, body)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Kind: KindStatus, StatusCode: resp.StatusCode, Body: resp.Body}
	}

	details, err := decode(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindDecode, StatusCode: resp.StatusCode, Body: resp.Body, Err: err}
	}
	return details, nil
}

// Forward unwraps input, sends it and reports the outcome. It never panics
// and never returns an error: every failure is described by the envelope.
func (f *Forwarder) Forward(ctx context.Context, input any) (env Envelope) {
	start := time.Now()
	format := FormatRaw

	defer func() {
		if r := recover(); r != nil {
			f.log().Error().Interface("panic", r).Msg("Forward recovered from panic")
			env = Failure(&Error{Kind: KindInternal, Err: fmt.Errorf("panic: %v", r)})
			f.metrics.IncForwards(string(format), string(KindInternal))
		}
	}()

	payload, format := Detect(input, f.cfg.UnwrapKey)

	ev := f.log().Info().Str("format", string(format)).Str("endpoint", f.endpoint)
	if format == FormatWrapped {
		ev = ev.Str("unwrap_key", f.cfg.UnwrapKey)
	}
	ev.Str("preview", Preview(payload, f.cfg.PreviewLimit)).Msg("Forwarding evaluation data")

	details, err := f.Send(ctx, payload)
	if err != nil {
		kind := KindOf(err)
		f.metrics.IncForwards(string(format), string(kind))
		f.log().Warn().
			Err(err).
			Str("kind", string(kind)).
			Dur("duration", time.Since(start)).
			Msg("Failed to forward evaluation data")
		return Failure(err)
	}

	f.metrics.IncForwards(string(format), outcomeSuccess)
	f.log().Info().
		Dur("duration", time.Since(start)).
		Msg("Evaluation data forwarded")
	return Success(details)
}
