package healthcheck

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"github.com/zynerotech/evalforward/logger"
)

const (
	DefaultPath    = "/health"
	defaultTimeout = 2 * time.Second
)

// Config представляет конфигурацию healthcheck
type Config struct {
	Enabled bool          `mapstructure:"enabled"`
	Path    string        `mapstructure:"path"`
	Port    int           `mapstructure:"port"`
	Timeout time.Duration `mapstructure:"timeout"` // общий лимит на выполнение всех проверок
}

// CheckFunc проверяет одну зависимость; nil означает, что все в порядке
type CheckFunc func(ctx context.Context) error

// Middleware оборачивает обработчик (например, метриками)
type Middleware func(http.Handler) http.Handler

// Report тело ответа health-check
type Report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Healthcheck представляет менеджер проверок здоровья
type Healthcheck struct {
	config   Config
	server   *http.Server
	listener net.Listener

	mu     sync.RWMutex
	checks map[string]CheckFunc
}

// New создает экземпляр health-check сервера
func New(cfg Config, middlewares ...Middleware) (*Healthcheck, error) {
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	h := &Healthcheck{
		config: cfg,
		checks: make(map[string]CheckFunc),
	}
	if !cfg.Enabled {
		return h, nil
	}

	var handler http.Handler = http.HandlerFunc(h.handleHealthcheck)
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Path, handler)

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("failed to start healthcheck server: %w", err)
	}
	h.listener = ln
	h.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Component("healthcheck").Info().Msgf("Starting healthcheck server on %s", ln.Addr())
		if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Component("healthcheck").Error().Err(err).Msg("Healthcheck server stopped")
		}
	}()

	return h, nil
}

// Register добавляет именованную проверку; повторная регистрация заменяет предыдущую
func (h *Healthcheck) Register(name string, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// Addr возвращает адрес сервера или пустую строку, если он не запущен
func (h *Healthcheck) Addr() string {
	if h.listener == nil {
		return ""
	}
	return h.listener.Addr().String()
}

// Check выполняет все проверки и возвращает отчет
func (h *Healthcheck) Check(ctx context.Context) Report {
	h.mu.RLock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	h.mu.RUnlock()
	sort.Strings(names)

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	report := Report{Status: "ok"}
	if len(names) == 0 {
		return report
	}

	report.Checks = make(map[string]string, len(names))
	for _, name := range names {
		h.mu.RLock()
		check := h.checks[name]
		h.mu.RUnlock()

		if err := check(ctx); err != nil {
			report.Status = "unavailable"
			report.Checks[name] = err.Error()
			continue
		}
		report.Checks[name] = "ok"
	}
	return report
}

// Handler возвращает обработчик health-check без отдельного сервера
func (h *Healthcheck) Handler() http.Handler {
	return http.HandlerFunc(h.handleHealthcheck)
}

// Stop останавливает HTTP-сервер проверок здоровья
func (h *Healthcheck) Stop() error {
	if !h.config.Enabled || h.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return h.server.Shutdown(ctx)
}

// handleHealthcheck обрабатывает запрос на проверку здоровья
func (h *Healthcheck) handleHealthcheck(w http.ResponseWriter, r *http.Request) {
	report := h.Check(r.Context())

	body, err := sonic.Marshal(report)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if report.Status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_, _ = w.Write(body)
}
