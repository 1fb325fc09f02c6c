package transport

import (
	"context"
	"io"
)

// Response содержит результат одной доставки: код статуса и тело ответа целиком
type Response struct {
	StatusCode int
	Body       []byte
}

// Producer определяет интерфейс для отправки сообщений в транспорт.
// Один вызов Publish соответствует ровно одной попытке доставки.
type Producer interface {
	Publish(ctx context.Context, endpoint string, body []byte) (*Response, error)
	io.Closer // Добавляем интерфейс для graceful shutdown
}
