package rest

import (
	"errors"
	"time"
)

// DefaultUserAgent is sent when Config.UserAgent is empty.
const DefaultUserAgent = "evalforward"

// Config contains parameters of the HTTP client used to reach the backend.
type Config struct {
	// Timeout bounds a whole request. Zero means no client-side timeout,
	// leaving the bound to the caller context and the transport defaults.
	Timeout         time.Duration `mapstructure:"timeout"`
	UserAgent       string        `mapstructure:"user_agent"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout"`
}

// Validate checks the configured limits.
func (c Config) Validate() error {
	if c.Timeout < 0 {
		return errors.New("rest: timeout must not be negative")
	}
	if c.MaxIdleConns < 0 {
		return errors.New("rest: max_idle_conns must not be negative")
	}
	if c.IdleConnTimeout < 0 {
		return errors.New("rest: idle_conn_timeout must not be negative")
	}
	return nil
}

// GetDefaultConfig returns default client settings.
func GetDefaultConfig() Config {
	return Config{
		Timeout:         0,
		UserAgent:       DefaultUserAgent,
		MaxIdleConns:    10,
		IdleConnTimeout: 90 * time.Second,
	}
}

func (c Config) userAgent() string {
	if c.UserAgent == "" {
		return DefaultUserAgent
	}
	return c.UserAgent
}
