package server

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"

	"github.com/zynerotech/evalforward/forwarder"
	"github.com/zynerotech/evalforward/logger"
)

const (
	// ForwardRoute принимает произвольный JSON и пересылает его в backend
	ForwardRoute = "/api/v1/forward"
	// RequestIDHeader заголовок с идентификатором запроса
	RequestIDHeader = fiber.HeaderXRequestID

	requestIDKey = "requestid"
)

// Forwarder то, что нужно обработчику от forwarder.Forwarder
type Forwarder interface {
	Forward(ctx context.Context, input any) forwarder.Envelope
}

// RegisterForwardRoutes регистрирует маршрут пересылки на router
func RegisterForwardRoutes(router fiber.Router, f Forwarder) {
	router.Post(ForwardRoute, forwardHandler(f))
}

// forwardHandler всегда отвечает конвертом; ошибки пересылки - это данные, а не HTTP-ошибки.
// Исключение - тело запроса, которое не является JSON: 400.
func forwardHandler(f Forwarder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID, _ := c.Locals(requestIDKey).(string)
		log := logger.Component("server").WithField("request_id", requestID)

		var input any
		// ConfigStd копирует строки: буфер тела переиспользуется после ответа
		if err := sonic.ConfigStd.Unmarshal(c.Body(), &input); err != nil {
			log.Warn().Err(err).Msg("Rejected request with invalid JSON body")
			env := forwarder.Failure(&forwarder.Error{
				Kind: forwarder.KindEncode,
				Err:  fmt.Errorf("invalid request body: %w", err),
			})
			return c.Status(fiber.StatusBadRequest).JSON(env)
		}

		env := f.Forward(c.UserContext(), input)
		log.Info().
			Bool("success", env.Result.Success).
			Str("kind", string(env.Result.Kind)).
			Msg("Forward request handled")

		return c.JSON(env)
	}
}
