package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	global     = defaultLogger()
	globalLock sync.RWMutex
)

// Config представляет конфигурацию логгера
type Config struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // json или console
	Output     string `mapstructure:"output"` // stdout, stderr или путь к файлу
	TimeFormat string `mapstructure:"time_format"`
	CallerInfo bool   `mapstructure:"caller_info"`
	// Components задает уровни отдельных компонентов, например {"forwarder": "debug"}
	Components map[string]string `mapstructure:"components"`
}

// Logger представляет собой обертку над zerolog.Logger
type Logger struct {
	logger zerolog.Logger
	cfg    Config
}

// New создает новый экземпляр логгера
func New(cfg Config) (*Logger, error) {
	cfg = sanitize(&cfg)

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = cfg.TimeFormat

	output, err := openOutput(cfg.Output)
	if err != nil {
		return nil, err
	}
	return newWithWriter(cfg, output, level), nil
}

// NewWithWriter создает логгер, пишущий в переданный writer (например, bytes.Buffer в тестах)
func NewWithWriter(cfg Config, output io.Writer) *Logger {
	cfg = sanitize(&cfg)
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return newWithWriter(cfg, output, level)
}

func newWithWriter(cfg Config, output io.Writer, level zerolog.Level) *Logger {
	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: cfg.TimeFormat,
		}
	}

	ctx := zerolog.New(output).Level(level).With().Timestamp()
	if cfg.CallerInfo {
		ctx = ctx.Caller()
	}

	return &Logger{
		logger: ctx.Logger(),
		cfg:    cfg,
	}
}

func openOutput(output string) (io.Writer, error) {
	switch output {
	case "stderr":
		return os.Stderr, nil
	case "stdout", "":
		return os.Stdout, nil
	default:
		file, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log output %s: %w", output, err)
		}
		return file, nil
	}
}

// Debug логирует сообщение с уровнем Debug
func (l *Logger) Debug() *zerolog.Event {
	return l.logger.Debug()
}

// Info логирует сообщение с уровнем Info
func (l *Logger) Info() *zerolog.Event {
	return l.logger.Info()
}

// Warn логирует сообщение с уровнем Warn
func (l *Logger) Warn() *zerolog.Event {
	return l.logger.Warn()
}

// Error логирует сообщение с уровнем Error
func (l *Logger) Error() *zerolog.Event {
	return l.logger.Error()
}

// Fatal логирует сообщение с уровнем Fatal и завершает программу
func (l *Logger) Fatal() *zerolog.Event {
	return l.logger.Fatal()
}

// With возвращает контекст для создания логгера с дополнительными полями
func (l *Logger) With() zerolog.Context {
	return l.logger.With()
}

// WithField возвращает новый логгер с одним дополнительным полем
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{logger: l.logger.With().Interface(key, value).Logger(), cfg: l.cfg}
}

// WithFields возвращает новый логгер с набором дополнительных полей
func (l *Logger) WithFields(fields map[string]any) *Logger {
	return &Logger{logger: l.logger.With().Fields(fields).Logger(), cfg: l.cfg}
}

// WithError возвращает новый логгер с полем ошибки
func (l *Logger) WithError(err error) *Logger {
	return &Logger{logger: l.logger.With().Err(err).Logger(), cfg: l.cfg}
}

// WithLevel возвращает копию логгера с другим уровнем
func (l *Logger) WithLevel(level zerolog.Level) *Logger {
	return &Logger{logger: l.logger.Level(level), cfg: l.cfg}
}

// Level возвращает текущий уровень логгера
func (l *Logger) Level() zerolog.Level {
	return l.logger.GetLevel()
}

// Log возвращает исходный zerolog.Logger
func (l *Logger) Log() zerolog.Logger {
	return l.logger
}

// Init создает логгер по конфигурации и делает его глобальным
func Init(cfg Config) error {
	l, err := New(cfg)
	if err != nil {
		return err
	}
	SetGlobal(l)
	return nil
}

// SetGlobal устанавливает глобальный логгер и сбрасывает кэш компонентов
func SetGlobal(l *Logger) {
	if l == nil {
		return
	}
	globalLock.Lock()
	global = l
	globalLock.Unlock()
	resetComponents()
}

// GetGlobal возвращает глобальный логгер
func GetGlobal() *Logger {
	globalLock.RLock()
	defer globalLock.RUnlock()
	return global
}

// SetLevel меняет уровень глобального логгера
func SetLevel(level string) error {
	if level == "" {
		return fmt.Errorf("empty log level")
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	SetGlobal(GetGlobal().WithLevel(lvl))
	return nil
}

// GetLevel возвращает уровень глобального логгера
func GetLevel() string {
	return GetGlobal().Level().String()
}

// Debug возвращает событие уровня Debug глобального логгера
func Debug() *zerolog.Event { return GetGlobal().Debug() }

// Info возвращает событие уровня Info глобального логгера
func Info() *zerolog.Event { return GetGlobal().Info() }

// Warn возвращает событие уровня Warn глобального логгера
func Warn() *zerolog.Event { return GetGlobal().Warn() }

// Error возвращает событие уровня Error глобального логгера
func Error() *zerolog.Event { return GetGlobal().Error() }

// WithField возвращает глобальный логгер с дополнительным полем
func WithField(key string, value any) *Logger { return GetGlobal().WithField(key, value) }

func defaultLogger() *Logger {
	cfg := sanitize(&Config{})
	return newWithWriter(cfg, os.Stdout, zerolog.InfoLevel)
}

// sanitize ensures the Config struct is populated with default values when fields are empty.
func sanitize(cfg *Config) Config {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "json"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339
	}
	return *cfg
}
