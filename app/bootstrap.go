package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"

	"github.com/zynerotech/evalforward/config"
	"github.com/zynerotech/evalforward/forwarder"
	platformhealthcheck "github.com/zynerotech/evalforward/healthcheck"
	platformlogger "github.com/zynerotech/evalforward/logger"
	platformmetrics "github.com/zynerotech/evalforward/metrics"
	"github.com/zynerotech/evalforward/plugin"
	platformserver "github.com/zynerotech/evalforward/server"
	"github.com/zynerotech/evalforward/transport/rest"
)

// ConfigProvider describes configuration required to bootstrap the forwarder
// and its infrastructure. It should be implemented by the service
// configuration struct.
type ConfigProvider interface {
	Validate() error
	LoggerConfig() platformlogger.Config
	ForwarderConfig() forwarder.Config
	TransportConfig() rest.Config
}

// OptionalConfigProvider describes optional configuration methods. These
// methods should return nil if the component is not needed.
type OptionalConfigProvider interface {
	MetricsConfig() *platformmetrics.Config
	HealthcheckConfig() *platformhealthcheck.Config
	ServerConfig() *platformserver.Config
	PluginConfig() *plugin.Config
}

// ApplicationInfoProvider is implemented by configurations that describe the
// running application; the fields are attached to every log line.
type ApplicationInfoProvider interface {
	ApplicationInfo() platformlogger.ApplicationInfo
}

// App contains initialized components.
// Only Logger is guaranteed to be present, other components may be nil.
type App struct {
	Config       ConfigProvider
	Logger       *platformlogger.Logger
	Metrics      *platformmetrics.Metrics
	Healthcheck  *platformhealthcheck.Healthcheck
	Server       *platformserver.Server
	Producer     *rest.Producer
	Forwarder    *forwarder.Forwarder
	PluginServer *plugin.Server
}

// AppBuilder provides a fluent interface for building App instances
type AppBuilder struct {
	config       ConfigProvider
	logger       *platformlogger.Logger
	metrics      *platformmetrics.Metrics
	healthcheck  *platformhealthcheck.Healthcheck
	server       *platformserver.Server
	producer     *rest.Producer
	forwarder    *forwarder.Forwarder
	pluginServer *plugin.Server
	errors       []error
}

// NewBuilder creates a new AppBuilder with the given configuration
func NewBuilder(cfg ConfigProvider) *AppBuilder {
	return &AppBuilder{
		config: cfg,
		errors: make([]error, 0),
	}
}

// initOptionalComponent initializes optional component based on configuration
// provided by OptionalConfigProvider. It appends initialization errors to the
// builder and logs successful initialization.
func initOptionalComponent[T any, C any](b *AppBuilder, field *T, getCfg func(OptionalConfigProvider) *C, initFn func(C) (T, error), name, successMsg string) {
	optCfg, ok := b.config.(OptionalConfigProvider)
	if !ok {
		return
	}

	cfg := getCfg(optCfg)
	if cfg == nil {
		return
	}

	component, err := initFn(*cfg)
	if err != nil {
		b.errors = append(b.errors, fmt.Errorf("init %s: %w", name, err))
		return
	}

	*field = component
	platformlogger.Info().Msg(successMsg)
}

// WithLogger initializes the logger (required component)
func (b *AppBuilder) WithLogger() *AppBuilder {
	if b.logger != nil {
		return b
	}

	logger, err := platformlogger.New(b.config.LoggerConfig())
	if err != nil {
		b.errors = append(b.errors, fmt.Errorf("init logger: %w", err))
		return b
	}

	platformlogger.SetGlobal(logger)
	if err := platformlogger.SetComponentLevels(b.config.LoggerConfig().Components); err != nil {
		b.errors = append(b.errors, fmt.Errorf("init logger: %w", err))
		return b
	}
	if p, ok := b.config.(ApplicationInfoProvider); ok {
		info := p.ApplicationInfo()
		if info.Environment == "" {
			info.Environment = getEnvironment()
		}
		platformlogger.WithApplication(info)
	}

	b.logger = platformlogger.GetGlobal()
	platformlogger.Info().Msg("Logger initialized")
	return b
}

// WithMetrics initializes metrics if configuration is provided
func (b *AppBuilder) WithMetrics() *AppBuilder {
	if b.metrics != nil {
		return b
	}
	initOptionalComponent(b, &b.metrics, func(o OptionalConfigProvider) *platformmetrics.Config { return o.MetricsConfig() }, func(cfg platformmetrics.Config) (*platformmetrics.Metrics, error) {
		return platformmetrics.New(cfg)
	}, "metrics", "Metrics initialized")
	return b
}

// WithHealthcheck initializes healthcheck if configuration is provided.
// Requests are instrumented when metrics were initialized before.
func (b *AppBuilder) WithHealthcheck() *AppBuilder {
	if b.healthcheck != nil {
		return b
	}
	initOptionalComponent(b, &b.healthcheck, func(o OptionalConfigProvider) *platformhealthcheck.Config { return o.HealthcheckConfig() }, func(cfg platformhealthcheck.Config) (*platformhealthcheck.Healthcheck, error) {
		if b.metrics != nil {
			return platformhealthcheck.New(cfg, b.metrics.HTTPMiddleware)
		}
		return platformhealthcheck.New(cfg)
	}, "healthcheck", "Healthcheck initialized")
	return b
}

// WithServer initializes HTTP server if configuration is provided
func (b *AppBuilder) WithServer() *AppBuilder {
	if b.server != nil {
		return b
	}
	initOptionalComponent(b, &b.server, func(o OptionalConfigProvider) *platformserver.Config { return o.ServerConfig() }, func(cfg platformserver.Config) (*platformserver.Server, error) {
		if b.metrics != nil && b.metrics.Enabled() {
			return platformserver.New(cfg, b.metrics.FiberMiddleware())
		}
		return platformserver.New(cfg)
	}, "server", "HTTP server initialized")
	return b
}

// WithForwarder initializes the REST producer and the forwarder (required for
// every surface that forwards data).
func (b *AppBuilder) WithForwarder() *AppBuilder {
	if b.forwarder != nil {
		return b
	}

	producer, err := rest.NewProducer(b.config.TransportConfig())
	if err != nil {
		b.errors = append(b.errors, fmt.Errorf("init producer: %w", err))
		return b
	}

	opts := []forwarder.Option{}
	if b.metrics != nil {
		producer.SetMetrics(b.metrics.Transport())
		opts = append(opts, forwarder.WithMetrics(b.metrics.Transport()))
	}

	fwd, err := forwarder.New(b.config.ForwarderConfig(), producer, opts...)
	if err != nil {
		_ = producer.Close()
		b.errors = append(b.errors, fmt.Errorf("init forwarder: %w", err))
		return b
	}

	b.producer = producer
	b.forwarder = fwd
	platformlogger.Info().Str("endpoint", fwd.Endpoint()).Msg("Forwarder initialized")
	return b
}

// WithPlugin binds the RPC plugin listener if configuration is provided.
// The forwarder is initialized first when missing.
func (b *AppBuilder) WithPlugin() *AppBuilder {
	if b.pluginServer != nil {
		return b
	}
	if b.forwarder == nil {
		b.WithForwarder()
	}
	if b.forwarder == nil {
		return b
	}
	initOptionalComponent(b, &b.pluginServer, func(o OptionalConfigProvider) *plugin.Config { return o.PluginConfig() }, func(cfg plugin.Config) (*plugin.Server, error) {
		return plugin.Listen(cfg, plugin.New(b.forwarder, cfg.Timeout))
	}, "plugin", "Plugin listener initialized")
	return b
}

// WithAll initializes all available components based on configuration
func (b *AppBuilder) WithAll() *AppBuilder {
	return b.WithLogger().
		WithMetrics().
		WithHealthcheck().
		WithServer().
		WithForwarder().
		WithPlugin()
}

// Build creates the App instance and returns any errors that occurred during
// initialization. Components that depend on each other are wired here:
// forward routes and metrics endpoint on the server, backend check on the
// healthcheck.
func (b *AppBuilder) Build() (*App, error) {
	// Logger is required
	if b.logger == nil {
		b.WithLogger()
	}

	a := &App{
		Config:       b.config,
		Logger:       b.logger,
		Metrics:      b.metrics,
		Healthcheck:  b.healthcheck,
		Server:       b.server,
		Producer:     b.producer,
		Forwarder:    b.forwarder,
		PluginServer: b.pluginServer,
	}

	if len(b.errors) > 0 {
		// освобождаем то, что успели создать
		_ = a.Close()
		return nil, fmt.Errorf("failed to build app: %w", errors.Join(b.errors...))
	}

	if a.Server != nil && a.Forwarder != nil {
		platformserver.RegisterForwardRoutes(a.Server.App(), a.Forwarder)
	}
	if a.Server != nil && a.Metrics != nil && a.Metrics.Enabled() && a.Metrics.Addr() == "" {
		a.Server.App().Get(a.Metrics.Path(), a.Metrics.FiberHandler())
	}
	if a.Healthcheck != nil && a.Forwarder != nil {
		a.Healthcheck.Register("backend", backendCheck(a.Forwarder.Endpoint()))
	}

	platformlogger.Info().Msg("All requested application components initialized successfully")
	return a, nil
}

// New initializes all components based on the provided configuration
func New(cfg ConfigProvider) (*App, error) {
	return NewBuilder(cfg).WithAll().Build()
}

// NewWithLogger initializes only the logger (minimal setup)
func NewWithLogger(cfg ConfigProvider) (*App, error) {
	return NewBuilder(cfg).WithLogger().Build()
}

// NewForwarder initializes the logger and the forwarder, for one-shot commands
func NewForwarder(cfg ConfigProvider) (*App, error) {
	return NewBuilder(cfg).WithLogger().WithForwarder().Build()
}

// Close stops servers and releases the producer. All components are closed
// even if some of them fail; the errors are joined.
func (a *App) Close() error {
	if a == nil {
		return nil
	}

	platformlogger.Info().Msg("Shutting down application components")

	var errs []error

	if a.Server != nil {
		if err := a.Server.Stop(); err != nil {
			platformlogger.Error().Err(err).Msg("Failed to stop HTTP server")
			errs = append(errs, err)
		} else {
			platformlogger.Info().Msg("HTTP server stopped")
		}
	}

	if a.PluginServer != nil {
		if err := a.PluginServer.Close(); err != nil {
			platformlogger.Error().Err(err).Msg("Failed to stop plugin listener")
			errs = append(errs, err)
		} else {
			platformlogger.Info().Msg("Plugin listener stopped")
		}
	}

	if a.Producer != nil {
		if err := a.Producer.Close(); err != nil {
			platformlogger.Error().Err(err).Msg("Failed to close producer")
			errs = append(errs, err)
		} else {
			platformlogger.Info().Msg("Producer closed")
		}
	}

	if a.Metrics != nil {
		if err := a.Metrics.Stop(); err != nil {
			platformlogger.Error().Err(err).Msg("Failed to stop metrics")
			errs = append(errs, err)
		} else {
			platformlogger.Info().Msg("Metrics stopped")
		}
	}

	if a.Healthcheck != nil {
		if err := a.Healthcheck.Stop(); err != nil {
			platformlogger.Error().Err(err).Msg("Failed to stop healthcheck")
			errs = append(errs, err)
		} else {
			platformlogger.Info().Msg("Healthcheck stopped")
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	platformlogger.Info().Msg("Application shutdown completed")
	return nil
}

// backendCheck проверяет, что backend принимает TCP-соединения; данные не отправляются
func backendCheck(endpoint string) platformhealthcheck.CheckFunc {
	return func(ctx context.Context) error {
		u, err := url.Parse(endpoint)
		if err != nil {
			return err
		}
		host := u.Host
		if u.Port() == "" {
			port := "80"
			if u.Scheme == "https" {
				port = "443"
			}
			host = net.JoinHostPort(u.Hostname(), port)
		}

		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", host)
		if err != nil {
			return err
		}
		return conn.Close()
	}
}

// getEnvironment определяет окружение приложения
func getEnvironment() string {
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		return env
	}
	return config.GetEnv()
}
