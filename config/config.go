package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Custom error types for better error handling
var (
	ErrConfigNotFound   = errors.New("config file not found")
	ErrConfigInvalid    = errors.New("invalid config")
	ErrConfigValidation = errors.New("config validation failed")
	ErrConfigUnmarshal  = errors.New("failed to unmarshal config")
)

const (
	// DefaultEnv значение окружения по умолчанию
	DefaultEnv = "dev"
	// ConfigDir директория с конфигурационными файлами
	ConfigDir = "configs"
	// EnvPrefix префикс переменных окружения
	EnvPrefix = "APP"
)

// Configurable определяет интерфейс для любой конфигурации
type Configurable interface {
	Validate() error
}

// Defaulter реализуется конфигурациями, которые задают значения по умолчанию.
// Ключи, зарегистрированные через SetDefault, также становятся доступными
// для переопределения переменными окружения.
type Defaulter interface {
	SetDefaults(l *Loader)
}

// Loader предоставляет функциональность для загрузки конфигурации
type Loader struct {
	viper    *viper.Viper
	optional bool
}

// getEnv возвращает текущее окружение
func getEnv() string {
	if env := os.Getenv("APP_ENV"); env != "" {
		return env
	}
	return DefaultEnv
}

// getConfigPath возвращает путь к конфигурационному файлу
func getConfigPath() string {
	env := getEnv()
	return filepath.Join(ConfigDir, fmt.Sprintf("%s.yaml", env))
}

// NewLoader создает новый загрузчик конфигурации
func NewLoader(configPath string) *Loader {
	v := viper.New()

	// Если путь не указан, используем путь по умолчанию
	if configPath == "" {
		configPath = getConfigPath()
	}

	v.SetConfigFile(configPath)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{
		viper: v,
	}
}

// Optional разрешает отсутствие конфигурационного файла:
// тогда используются значения по умолчанию и переменные окружения.
func (l *Loader) Optional() *Loader {
	l.optional = true
	return l
}

func (l *Loader) readConfig() error {
	err := l.viper.ReadInConfig()
	if err == nil {
		return nil
	}

	var notFound viper.ConfigFileNotFoundError
	missing := errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
	if missing && l.optional {
		return nil
	}
	if missing {
		return fmt.Errorf("%w: failed to read config file: %v", ErrConfigNotFound, err)
	}
	return fmt.Errorf("%w: failed to read config file: %v", ErrConfigInvalid, err)
}

// BindEnv связывает ключ конфигурации с явными именами переменных окружения.
// Первая установленная переменная из списка имеет приоритет.
func (l *Loader) BindEnv(key string, envVars ...string) error {
	args := append([]string{key}, envVars...)
	if err := l.viper.BindEnv(args...); err != nil {
		return fmt.Errorf("bind env for %s: %w", key, err)
	}
	return nil
}

// Set принудительно устанавливает значение (приоритет выше файла и окружения)
func (l *Loader) Set(key string, value any) {
	l.viper.Set(key, value)
}

// GetConfigPath возвращает путь к файлу конфигурации
func (l *Loader) GetConfigPath() string {
	return l.viper.ConfigFileUsed()
}

// Load загружает конфигурацию из файла в переданную структуру
func Load(cfg Configurable, configPath string) error {
	loader := NewLoader(configPath)
	return loader.Load(cfg)
}

// LoadDotEnv читает .env файлы в переменные окружения процесса.
// Уже установленные переменные не перезаписываются, отсутствующие файлы пропускаются.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// WatchConfig запускает наблюдение за изменениями конфигурационного файла
func (l *Loader) WatchConfig() {
	l.viper.WatchConfig()
}

// OnConfigChange устанавливает callback для обработки изменений конфигурации
func (l *Loader) OnConfigChange(fn func()) {
	l.viper.OnConfigChange(func(e fsnotify.Event) {
		fn()
	})
}

// GetString возвращает строковое значение из конфигурации
func (l *Loader) GetString(key string) string {
	return l.viper.GetString(key)
}

// GetStringMapString возвращает вложенную секцию как map[string]string
func (l *Loader) GetStringMapString(key string) map[string]string {
	return l.viper.GetStringMapString(key)
}

// SetDefault устанавливает значение по умолчанию для ключа
func (l *Loader) SetDefault(key string, value interface{}) {
	l.viper.SetDefault(key, value)
}

// GetEnv возвращает текущее окружение
func GetEnv() string {
	return getEnv()
}
