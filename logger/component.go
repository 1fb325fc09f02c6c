package logger

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// ApplicationInfo содержит информацию о приложении, добавляемую ко всем сообщениям
type ApplicationInfo struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"` // dev, staging, prod
	Instance    string `mapstructure:"instance"`    // instance ID или hostname
}

var (
	componentLevels     = map[string]zerolog.Level{}
	componentLevelsLock sync.RWMutex
	componentLoggers    sync.Map // map[string]*Logger
)

// WithApplication добавляет поля приложения к глобальному логгеру
func WithApplication(info ApplicationInfo) {
	base := GetGlobal()
	ctx := base.With()
	if info.Name != "" {
		ctx = ctx.Str("app_name", info.Name)
	}
	if info.Version != "" {
		ctx = ctx.Str("app_version", info.Version)
	}
	if info.Environment != "" {
		ctx = ctx.Str("environment", info.Environment)
	}
	if info.Instance != "" {
		ctx = ctx.Str("instance", info.Instance)
	}
	SetGlobal(&Logger{logger: ctx.Logger(), cfg: base.cfg})
}

// Component возвращает логгер для компонента с полем component.
// Логгеры кэшируются до следующей смены глобального логгера.
func Component(name string) *Logger {
	if cached, ok := componentLoggers.Load(name); ok {
		return cached.(*Logger)
	}

	l := GetGlobal().WithField("component", name)

	componentLevelsLock.RLock()
	level, ok := componentLevels[name]
	componentLevelsLock.RUnlock()
	if ok {
		l = l.WithLevel(level)
	}

	actual, _ := componentLoggers.LoadOrStore(name, l)
	return actual.(*Logger)
}

// SetComponentLevel устанавливает уровень логирования для компонента
func SetComponentLevel(name, level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return fmt.Errorf("invalid log level %q for component %s", level, name)
	}

	componentLevelsLock.Lock()
	componentLevels[name] = lvl
	componentLevelsLock.Unlock()

	// Удаляем из кэша, чтобы пересоздать с новым уровнем
	componentLoggers.Delete(name)
	return nil
}

// GetComponentLevel возвращает уровень логирования компонента или глобальный уровень
func GetComponentLevel(name string) string {
	componentLevelsLock.RLock()
	defer componentLevelsLock.RUnlock()

	if lvl, ok := componentLevels[name]; ok {
		return lvl.String()
	}
	return GetLevel()
}

// SetComponentLevels заменяет набор уровней компонентов: компоненты,
// отсутствующие в levels, возвращаются к глобальному уровню.
// Набор проверяется целиком до применения.
func SetComponentLevels(levels map[string]string) error {
	parsed := make(map[string]zerolog.Level, len(levels))
	for name, level := range levels {
		lvl, err := zerolog.ParseLevel(level)
		if err != nil || level == "" {
			return fmt.Errorf("invalid log level %q for component %s", level, name)
		}
		parsed[name] = lvl
	}

	componentLevelsLock.Lock()
	componentLevels = parsed
	componentLevelsLock.Unlock()

	resetComponents()
	return nil
}

func resetComponents() {
	componentLoggers.Range(func(key, _ any) bool {
		componentLoggers.Delete(key)
		return true
	})
}
