package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zynerotech/evalforward/logger"
	"github.com/zynerotech/evalforward/transport"
	"github.com/zynerotech/evalforward/transport/rest"
)

// DefaultPath путь, по которому отдаются метрики
const DefaultPath = "/metrics"

// Config представляет конфигурацию метрик
type Config struct {
	Enabled     bool   `mapstructure:"enabled"`
	Path        string `mapstructure:"path"`
	Port        int    `mapstructure:"port"` // 0 - отдельный сервер не запускается, метрики монтируются в основной
	ServiceName string `mapstructure:"service_name"`
}

// Metrics представляет собой менеджер метрик
type Metrics struct {
	config   Config
	registry *prometheus.Registry
	server   *http.Server
	listener net.Listener

	transport *rest.Metrics

	// HTTP метрики
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight *prometheus.GaugeVec
}

// New создает менеджер метрик и, если задан порт, запускает отдельный HTTP-сервер
func New(cfg Config) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "evalforward"
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	m := &Metrics{
		config:    cfg,
		registry:  registry,
		transport: rest.NewMetrics(cfg.ServiceName, registry),
	}

	// Инициализация HTTP метрик
	m.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_http_requests_total", cfg.ServiceName),
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	m.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    fmt.Sprintf("%s_http_request_duration_seconds", cfg.ServiceName),
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	m.httpRequestsInFlight = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_http_requests_in_flight", cfg.ServiceName),
			Help: "Current number of HTTP requests being served",
		},
		[]string{"method", "path"},
	)

	if cfg.Port > 0 {
		if err := m.serve(); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// serve слушает порт синхронно, чтобы ошибка занятого порта вернулась из New
func (m *Metrics) serve() error {
	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", m.config.Port))
	if err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}
	m.listener = ln
	m.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Component("metrics").Info().Msgf("Starting metrics server on %s", ln.Addr())
		if err := m.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Component("metrics").Error().Err(err).Msg("Metrics server stopped")
		}
	}()
	return nil
}

// Enabled сообщает, включен ли сбор метрик
func (m *Metrics) Enabled() bool {
	return m.config.Enabled
}

// Path возвращает путь, по которому отдаются метрики
func (m *Metrics) Path() string {
	return m.config.Path
}

// Addr возвращает адрес отдельного сервера метрик или пустую строку
func (m *Metrics) Addr() string {
	if m.listener == nil {
		return ""
	}
	return m.listener.Addr().String()
}

// Registry возвращает реестр, в котором зарегистрированы все метрики сервиса
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler возвращает обработчик в формате Prometheus
func (m *Metrics) Handler() http.Handler {
	if !m.config.Enabled {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// FiberHandler монтирует Handler в приложение Fiber
func (m *Metrics) FiberHandler() fiber.Handler {
	return adaptor.HTTPHandler(m.Handler())
}

// Transport возвращает метрики транспорта; при выключенных метриках - заглушку
func (m *Metrics) Transport() transport.Metrics {
	if !m.config.Enabled {
		return &transport.NoOpMetrics{}
	}
	return m.transport
}

// Stop останавливает HTTP-сервер метрик
func (m *Metrics) Stop() error {
	if !m.config.Enabled || m.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.server.Shutdown(ctx)
}

// HTTPMiddleware возвращает middleware для сбора HTTP метрик
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	if !m.config.Enabled {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Увеличиваем счетчик текущих запросов
		m.httpRequestsInFlight.WithLabelValues(r.Method, r.URL.Path).Inc()
		defer m.httpRequestsInFlight.WithLabelValues(r.Method, r.URL.Path).Dec()

		// Создаем ResponseWriter для перехвата статуса
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		m.httpRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
		m.httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rw.status)).Inc()
	})
}

// FiberMiddleware возвращает middleware для Fiber.
// В метки попадает шаблон маршрута, а не фактический путь.
func (m *Metrics) FiberMiddleware() fiber.Handler {
	if !m.config.Enabled {
		return func(c *fiber.Ctx) error {
			return c.Next()
		}
	}

	return func(c *fiber.Ctx) error {
		start := time.Now()
		// строки fasthttp переиспользуются после запроса, метки копируем
		method := utils.CopyString(c.Method())
		rawPath := utils.CopyString(c.Path())

		m.httpRequestsInFlight.WithLabelValues(method, rawPath).Inc()
		defer m.httpRequestsInFlight.WithLabelValues(method, rawPath).Dec()

		err := c.Next()

		path := c.Route().Path
		status := c.Response().StatusCode()
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		duration := time.Since(start).Seconds()
		m.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		m.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()

		return err
	}
}

// responseWriter перехватывает статус ответа
type responseWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader перехватывает статус ответа
func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}
