package server

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"github.com/zynerotech/evalforward/logger"
)

// Config представляет конфигурацию веб-сервера
type Config struct {
	Address         string        `mapstructure:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	BodyLimit       int           `mapstructure:"body_limit"` // байты; 0 - значение Fiber по умолчанию (4 МБ)
}

// Server представляет веб-сервер на основе Fiber
type Server struct {
	app    *fiber.App
	config Config
}

// New создает новый экземпляр веб-сервера.
// Дополнительные middleware подключаются после стандартных.
func New(cfg Config, middlewares ...fiber.Handler) (*Server, error) {
	// Создаем конфигурацию Fiber
	fiberConfig := fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		IdleTimeout:           cfg.IdleTimeout,
		BodyLimit:             cfg.BodyLimit,
		JSONEncoder: func(v any) ([]byte, error) {
			return sonic.Marshal(v)
		},
		JSONDecoder: func(data []byte, v any) error {
			return sonic.Unmarshal(data, v)
		},
	}

	// Создаем приложение Fiber
	app := fiber.New(fiberConfig)

	// Добавляем middleware
	app.Use(compress.New())
	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{
		Header:     RequestIDHeader,
		Generator:  uuid.NewString,
		ContextKey: requestIDKey,
	}))
	for _, mw := range middlewares {
		app.Use(mw)
	}

	return &Server{
		app:    app,
		config: cfg,
	}, nil
}

// Start запускает веб-сервер
func (s *Server) Start() error {
	logger.Component("server").Info().Msgf("Starting HTTP server on %s", s.config.Address)
	return s.app.Listen(s.config.Address)
}

// Stop останавливает веб-сервер
func (s *Server) Stop() error {
	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.app.ShutdownWithContext(ctx)
}

// App возвращает экземпляр приложения Fiber
func (s *Server) App() *fiber.App {
	return s.app
}
