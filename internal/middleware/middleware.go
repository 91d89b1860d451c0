package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type Middleware interface {
	NewRateLimiter(ctx *fiber.Ctx) error
	NewRequestIDMiddleware() fiber.Handler
	NewLoggingMiddleware() fiber.Handler
	GetRequestID(ctx *fiber.Ctx) string
}

type Config struct {
	RequestsPerSecond float64
	Burst             int
}

type middleware struct {
	rateLimitter        *rateLimiter
	requestIDMiddleware fiber.Handler
	log                 *logrus.Logger
}

func New(logger *logrus.Logger, cfg Config) Middleware {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}

	return &middleware{
		rateLimitter:        newRateLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		requestIDMiddleware: NewRequestIDMiddleware(),
		log:                 logger,
	}
}

func (m *middleware) GetRequestID(ctx *fiber.Ctx) string {
	requestID, ok := ctx.Locals(RequestIDKey).(string)
	if !ok || requestID == "" {
		return "unknown"
	}
	return requestID
}

func (m *middleware) NewRequestIDMiddleware() fiber.Handler {
	return m.requestIDMiddleware
}
