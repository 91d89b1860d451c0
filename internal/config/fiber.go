package config

import (
	"errors"

	"VisionAnalytica/pkg/response"
	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

func NewFiber(logger *logrus.Logger, bodyLimit int) *fiber.App {
	app := fiber.New(
		fiber.Config{
			AppName:           "VisionAnalytica",
			BodyLimit:         bodyLimit,
			DisableKeepalive:  false,
			StrictRouting:     true,
			CaseSensitive:     true,
			EnablePrintRoutes: true,
			JSONEncoder:       jsoniter.Marshal,
			JSONDecoder:       jsoniter.Unmarshal,
			ErrorHandler:      newErrorHandler(logger),
		})

	return app
}

// newErrorHandler renders errors that escape the handlers, such as unknown
// routes or oversized bodies, in the same shape as handler errors.
func newErrorHandler(logger *logrus.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "An unexpected error occurred"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			message = fe.Message
		}

		logger.WithFields(logrus.Fields{
			"path":  c.Path(),
			"code":  code,
			"error": err.Error(),
		}).Warn("Request failed before reaching a handler")

		return c.Status(code).JSON(response.Failure{Error: message})
	}
}
