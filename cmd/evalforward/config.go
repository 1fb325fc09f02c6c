package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/zynerotech/evalforward/config"
	"github.com/zynerotech/evalforward/forwarder"
	"github.com/zynerotech/evalforward/healthcheck"
	"github.com/zynerotech/evalforward/logger"
	"github.com/zynerotech/evalforward/metrics"
	"github.com/zynerotech/evalforward/plugin"
	"github.com/zynerotech/evalforward/server"
	"github.com/zynerotech/evalforward/transport/rest"
)

// LegacyBackendURLEnv is the variable older deployments use for the backend base URL.
const LegacyBackendURLEnv = "DIFY_BACKEND_URL"

// AppConfig конфигурация сервиса
type AppConfig struct {
	App         logger.ApplicationInfo `mapstructure:"app"`
	Logger      logger.Config          `mapstructure:"logger"`
	Forwarder   forwarder.Config       `mapstructure:"forwarder"`
	Transport   rest.Config            `mapstructure:"transport"`
	Metrics     metrics.Config         `mapstructure:"metrics"`
	Healthcheck healthcheck.Config     `mapstructure:"healthcheck"`
	Server      server.Config          `mapstructure:"server"`
	Plugin      plugin.Config          `mapstructure:"plugin"`

	// режимы запуска выставляются командами, а не файлом
	serveHTTP   bool
	servePlugin bool
}

// SetDefaults задает значения по умолчанию для всех ключей
func (c *AppConfig) SetDefaults(l *config.Loader) {
	l.SetDefault("app.name", "evalforward")
	l.SetDefault("app.version", version)
	l.SetDefault("app.environment", "")
	l.SetDefault("app.instance", "")

	l.SetDefault("logger.level", "info")
	l.SetDefault("logger.format", "json")
	// stdout занят результатом команды send
	l.SetDefault("logger.output", "stderr")
	l.SetDefault("logger.time_format", time.RFC3339)
	l.SetDefault("logger.caller_info", false)

	fwd := forwarder.DefaultConfig()
	l.SetDefault("forwarder.backend_url", fwd.BackendURL)
	l.SetDefault("forwarder.path", fwd.Path)
	l.SetDefault("forwarder.unwrap_key", fwd.UnwrapKey)
	l.SetDefault("forwarder.preview_limit", fwd.PreviewLimit)

	tr := rest.GetDefaultConfig()
	l.SetDefault("transport.timeout", tr.Timeout)
	l.SetDefault("transport.user_agent", "evalforward/"+version)
	l.SetDefault("transport.max_idle_conns", tr.MaxIdleConns)
	l.SetDefault("transport.idle_conn_timeout", tr.IdleConnTimeout)

	l.SetDefault("metrics.enabled", false)
	l.SetDefault("metrics.path", metrics.DefaultPath)
	l.SetDefault("metrics.port", 0)
	l.SetDefault("metrics.service_name", "evalforward")

	l.SetDefault("healthcheck.enabled", false)
	l.SetDefault("healthcheck.path", healthcheck.DefaultPath)
	l.SetDefault("healthcheck.port", 8081)
	l.SetDefault("healthcheck.timeout", 2*time.Second)

	l.SetDefault("server.address", ":8080")
	l.SetDefault("server.read_timeout", 30*time.Second)
	l.SetDefault("server.write_timeout", 30*time.Second)
	l.SetDefault("server.idle_timeout", 120*time.Second)
	l.SetDefault("server.shutdown_timeout", 10*time.Second)
	l.SetDefault("server.body_limit", 0)

	l.SetDefault("plugin.host", "127.0.0.1")
	l.SetDefault("plugin.port", 0)
	l.SetDefault("plugin.timeout", time.Duration(0))
}

// Validate проверяет конфигурацию
func (c *AppConfig) Validate() error {
	var errs []error
	if err := c.Forwarder.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("forwarder: %w", err))
	}
	if err := c.Transport.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("transport: %w", err))
	}
	if c.Plugin.Port < 0 || c.Plugin.Port > 65535 {
		errs = append(errs, fmt.Errorf("plugin: invalid port %d", c.Plugin.Port))
	}
	if c.Metrics.Enabled && c.Metrics.Port != 0 && c.Metrics.Port == c.Healthcheck.Port && c.Healthcheck.Enabled {
		errs = append(errs, errors.New("metrics and healthcheck must not share a port"))
	}
	return errors.Join(errs...)
}

func (c *AppConfig) LoggerConfig() logger.Config {
	return c.Logger
}

func (c *AppConfig) ApplicationInfo() logger.ApplicationInfo {
	return c.App
}

func (c *AppConfig) ForwarderConfig() forwarder.Config {
	return c.Forwarder
}

func (c *AppConfig) TransportConfig() rest.Config {
	return c.Transport
}

// MetricsConfig возвращает nil, если метрики выключены
func (c *AppConfig) MetricsConfig() *metrics.Config {
	if !c.Metrics.Enabled {
		return nil
	}
	return &c.Metrics
}

// HealthcheckConfig возвращает nil вне долгоживущих режимов
func (c *AppConfig) HealthcheckConfig() *healthcheck.Config {
	if !c.Healthcheck.Enabled || (!c.serveHTTP && !c.servePlugin) {
		return nil
	}
	return &c.Healthcheck
}

// ServerConfig возвращает конфигурацию только для команды serve
func (c *AppConfig) ServerConfig() *server.Config {
	if !c.serveHTTP {
		return nil
	}
	return &c.Server
}

// PluginConfig возвращает конфигурацию только для команды plugin
func (c *AppConfig) PluginConfig() *plugin.Config {
	if !c.servePlugin {
		return nil
	}
	return &c.Plugin
}

// loadOptions значения глобальных флагов, влияющие на загрузку конфигурации
type loadOptions struct {
	configPath string
	envFiles   []string
	backendURL string
	raw        bool
	logLevel   string
}

// loadConfig читает .env, файл конфигурации и переменные окружения.
// Явно указанный файл обязателен, файл по умолчанию - нет.
// Приоритет: флаги, APP_*, DIFY_BACKEND_URL, файл, значения по умолчанию.
func loadConfig(opts loadOptions) (*AppConfig, *config.Loader, error) {
	if err := config.LoadDotEnv(opts.envFiles...); err != nil {
		return nil, nil, err
	}

	loader := config.NewLoader(opts.configPath)
	if opts.configPath == "" {
		loader.Optional()
	}

	if err := loader.BindEnv("forwarder.backend_url", "APP_FORWARDER_BACKEND_URL", LegacyBackendURLEnv); err != nil {
		return nil, nil, err
	}
	if opts.backendURL != "" {
		loader.Set("forwarder.backend_url", opts.backendURL)
	}
	if opts.raw {
		loader.Set("forwarder.unwrap_key", "")
	}
	if opts.logLevel != "" {
		loader.Set("logger.level", opts.logLevel)
	}

	cfg := &AppConfig{}
	if err := loader.Load(cfg); err != nil {
		return nil, nil, err
	}
	return cfg, loader, nil
}
