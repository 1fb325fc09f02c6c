package transport

import (
	"time"
)

// Metrics определяет интерфейс для сбора метрик транспорта
type Metrics interface {
	// Producer метрики
	IncRequestsSent(endpoint string, status string) // status: код HTTP или error
	RecordPublishTime(endpoint string, duration time.Duration)

	// Метрики пересылки
	IncForwards(format string, outcome string) // outcome: success, encode, transport, status, decode

	// Общие метрики
	SetActiveProducers(count int)
}

// NoOpMetrics реализация метрик, которая ничего не делает (для тестов/отключения)
type NoOpMetrics struct{}

func (m *NoOpMetrics) IncRequestsSent(endpoint string, status string)            {}
func (m *NoOpMetrics) RecordPublishTime(endpoint string, duration time.Duration) {}
func (m *NoOpMetrics) IncForwards(format string, outcome string)                 {}
func (m *NoOpMetrics) SetActiveProducers(count int)                              {}
