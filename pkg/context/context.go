package context

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

const RequestIDKey = "request_id"

type tokenKey struct{}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	requestID, ok := ctx.Value(RequestIDKey).(string)
	if !ok || requestID == "" {
		return "unknown"
	}
	return requestID
}

// WithToken tags a context with the sequence number of a streamed frame.
func WithToken(ctx context.Context, token uint64) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func GetToken(ctx context.Context) (uint64, bool) {
	token, ok := ctx.Value(tokenKey{}).(uint64)
	return token, ok
}

// FromFiberCtx derives from the request's user context so a client disconnect
// cancels downstream provider calls.
func FromFiberCtx(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()

	requestID, ok := c.Locals("X-Request-ID").(string)
	if !ok || requestID == "" {
		requestID = c.Get("X-Request-ID")

		if requestID == "" {
			requestID = "unknown"
		}
	}

	return WithRequestID(ctx, requestID)
}
