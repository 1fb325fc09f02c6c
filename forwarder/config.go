package forwarder

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	DefaultBackendURL = "http://localhost:3000"
	DefaultPath       = "/api/save-evaluation"
)

// Config описывает куда и как пересылать данные оценки
type Config struct {
	BackendURL   string `mapstructure:"backend_url"`
	Path         string `mapstructure:"path"`
	UnwrapKey    string `mapstructure:"unwrap_key"`
	PreviewLimit int    `mapstructure:"preview_limit"`
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() Config {
	return Config{
		BackendURL:   DefaultBackendURL,
		Path:         DefaultPath,
		UnwrapKey:    DefaultUnwrapKey,
		PreviewLimit: DefaultPreviewLimit,
	}
}

// Validate проверяет конфигурацию
func (c Config) Validate() error {
	if c.BackendURL == "" {
		return fmt.Errorf("backend_url is required")
	}
	u, err := url.Parse(c.BackendURL)
	if err != nil {
		return fmt.Errorf("invalid backend_url %q: %w", c.BackendURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid backend_url %q: scheme must be http or https", c.BackendURL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid backend_url %q: host is required", c.BackendURL)
	}
	if !strings.HasPrefix(c.Path, "/") {
		return fmt.Errorf("invalid path %q: must start with /", c.Path)
	}
	if c.PreviewLimit < 0 {
		return fmt.Errorf("preview_limit must not be negative")
	}
	return nil
}

// Endpoint склеивает базовый URL и путь; завершающий слэш базового URL отбрасывается
func (c Config) Endpoint() string {
	return strings.TrimRight(c.BackendURL, "/") + c.Path
}
