package handlerUtil

import (
	"context"
	"errors"

	"VisionAnalytica/pkg/log"
	"VisionAnalytica/pkg/provider"
	"VisionAnalytica/pkg/response"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/sirupsen/logrus"
)

const (
	CodeNoProvider       = "NO_PROVIDER_AVAILABLE"
	CodeAllFailed        = "ALL_PROVIDERS_FAILED"
	CodeValidation       = "VALIDATION_ERROR"
	CodeTimeout          = "REQUEST_TIMEOUT"
	CodeInternal         = "INTERNAL_ERROR"
	unexpectedErrMessage = "An unexpected error occurred"
)

type ErrorHandler struct {
	logger *logrus.Logger
}

func New(logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

// Describe maps err to an HTTP status and the body shown to the client.
// Unclassified errors never leak their message.
func Describe(err error) (int, response.Failure) {
	var all *provider.AllProvidersFailedError
	var respErr *response.Error

	switch {
	case errors.Is(err, provider.ErrNoProviderAvailable):
		return fiber.StatusServiceUnavailable, response.Failure{Error: err.Error(), Code: CodeNoProvider}
	case errors.As(err, &all):
		return fiber.StatusBadGateway, response.Failure{Error: all.Error(), Code: CodeAllFailed, Attempts: all.Attempts}
	case errors.As(err, &respErr):
		return respErr.Code, response.Failure{Error: respErr.Error()}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fiber.StatusRequestTimeout, response.Failure{Error: utils.StatusMessage(fiber.StatusRequestTimeout), Code: CodeTimeout}
	}
	return fiber.StatusInternalServerError, response.Failure{Error: unexpectedErrMessage, Code: CodeInternal}
}

func (h *ErrorHandler) Handle(c *fiber.Ctx, requestID string, err error, path string, operation string) error {
	status, body := Describe(err)

	fields := log.Fields{
		log.RequestIDKey: requestID,
		"error":          err.Error(),
		"code":           status,
		"path":           path,
		"operation":      operation,
	}

	switch {
	case status >= fiber.StatusInternalServerError && body.Code == CodeInternal:
		body.TraceID = log.ErrorWithTraceID(h.logger, fields, "Unexpected error")
	case status >= fiber.StatusInternalServerError:
		h.logger.WithFields(fields).Error("Analysis unavailable")
	default:
		h.logger.WithFields(fields).Warn("Operation failed with error response")
	}

	return c.Status(status).JSON(body)
}

func (h *ErrorHandler) HandleValidationError(c *fiber.Ctx, requestID string, err error, path string) error {
	h.logger.WithFields(log.Fields{
		log.RequestIDKey: requestID,
		"error":          err.Error(),
		"path":           path,
	}).Warn("Validation failed")

	return c.Status(fiber.StatusBadRequest).JSON(response.Failure{
		Error: "Validation failed: " + err.Error(),
		Code:  CodeValidation,
	})
}

func (h *ErrorHandler) HandleRequestTimeout(c *fiber.Ctx) error {
	return c.Status(fiber.StatusRequestTimeout).JSON(response.Failure{
		Error: utils.StatusMessage(fiber.StatusRequestTimeout),
		Code:  CodeTimeout,
	})
}

func (h *ErrorHandler) HandleSuccess(c *fiber.Ctx, statusCode int, data interface{}) error {
	if data == nil {
		return c.SendStatus(statusCode)
	}
	return c.Status(statusCode).JSON(data)
}
