package middleware

import (
	"fmt"
	"strings"
	"time"

	"VisionAnalytica/pkg/log"
	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// NewLoggingMiddleware writes one access log line per request. Image payloads
// are never logged, only their size.
func (m *middleware) NewLoggingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		latency := time.Since(start)
		status := c.Response().StatusCode()

		fields := log.Fields{
			log.RequestIDKey: m.GetRequestID(c),
			"method":         c.Method(),
			"path":           c.Path(),
			"status":         status,
			"latency_ms":     latency.Milliseconds(),
			"ip":             c.IP(),
			"user_agent":     c.Get(fiber.HeaderUserAgent),
			"response_size":  len(c.Response().Body()),
		}

		if body := c.Request().Body(); len(body) > 0 {
			fields["request_body"] = sanitizeRequestBody(string(c.Request().Header.ContentType()), body)
		}

		entry := m.log.WithFields(fields)
		switch {
		case status >= fiber.StatusInternalServerError:
			entry.Error("Server error")
		case status >= fiber.StatusBadRequest:
			entry.Warn("Client error")
		default:
			entry.Info("Success")
		}

		return err
	}
}

func sanitizeRequestBody(contentType string, body []byte) string {
	if !strings.HasPrefix(contentType, fiber.MIMEApplicationJSON) {
		return fmt.Sprintf("[%s, %d bytes]", contentTypeOrUnknown(contentType), len(body))
	}

	var jsonBody map[string]interface{}
	if err := json.Unmarshal(body, &jsonBody); err != nil {
		return "[non-JSON body]"
	}

	for key, value := range jsonBody {
		if s, ok := value.(string); ok && strings.HasPrefix(key, "image") {
			jsonBody[key] = fmt.Sprintf("[IMAGE %d chars]", len(s))
		}
	}

	sanitized, err := json.Marshal(jsonBody)
	if err != nil {
		return "[sanitization-failed]"
	}

	return string(sanitized)
}

func contentTypeOrUnknown(contentType string) string {
	if contentType == "" {
		return "unknown"
	}
	if i := strings.Index(contentType, ";"); i >= 0 {
		return contentType[:i]
	}
	return contentType
}
