package analysisHandler

import (
	"errors"
	"strconv"
	"strings"

	"VisionAnalytica/internal/api/analysis"
	contextPkg "VisionAnalytica/pkg/context"
	"VisionAnalytica/pkg/handlerUtil"
	"VisionAnalytica/pkg/log"
	"VisionAnalytica/pkg/provider"
	"VisionAnalytica/pkg/response"
	"VisionAnalytica/pkg/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/net/context"
)

func (h *AnalysisHandler) Analyze(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), h.requestTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
	}).Debug("Processing analysis request")

	img, err := h.readImage(ctx)
	if err != nil {
		return h.handleInputError(ctx, errHandler, requestID, err)
	}

	result, err := h.analysisService.Analyze(c, img)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "analyze")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"path":       ctx.Path(),
			"provider":   result.Provider,
		}).Info("Analysis successful")
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, analysis.AnalysisResponse{Data: result})
	}
}

func (h *AnalysisHandler) Detect(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), h.requestTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	var query analysis.DisplayQuery
	if err := ctx.QueryParser(&query); err != nil {
		return errHandler.Handle(ctx, requestID, response.Wrap(analysis.ErrBadRequest, err), ctx.Path(), "parse_query")
	}
	if err := h.validator.Struct(query); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	img, err := h.readDecodableImage(ctx)
	if err != nil {
		return h.handleInputError(ctx, errHandler, requestID, err)
	}

	result, err := h.analysisService.Detect(c, img)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "detect")
	}

	resp := analysis.DetectionResponse{Data: result}
	if query.Requested() {
		resp.Overlay, err = h.analysisService.Overlay(result, query.Size())
		if err != nil {
			return errHandler.Handle(ctx, requestID, err, ctx.Path(), "overlay")
		}
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"path":       ctx.Path(),
			"provider":   result.Provider,
			"violations": len(result.Violations),
		}).Info("Detection successful")
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, resp)
	}
}

func (h *AnalysisHandler) Annotate(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), h.requestTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	var query analysis.AnnotateQuery
	if err := ctx.QueryParser(&query); err != nil {
		return errHandler.Handle(ctx, requestID, response.Wrap(analysis.ErrBadRequest, err), ctx.Path(), "parse_query")
	}
	if err := h.validator.Struct(query); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	img, err := h.readDecodableImage(ctx)
	if err != nil {
		return h.handleInputError(ctx, errHandler, requestID, err)
	}

	png, result, err := h.analysisService.Annotate(c, img, query.Width)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "annotate")
	}

	ctx.Set("X-Provider", result.Provider)
	ctx.Set("X-Violations", strconv.Itoa(len(result.Violations)))
	ctx.Type("png")
	return ctx.Status(fiber.StatusOK).Send(png)
}

func (h *AnalysisHandler) Providers(ctx *fiber.Ctx) error {
	return handlerUtil.New(h.log).HandleSuccess(ctx, fiber.StatusOK, response.Success{Data: h.analysisService.Providers()})
}

// readImage takes a multipart "image" field, or a JSON body with base64 data.
func (h *AnalysisHandler) readImage(ctx *fiber.Ctx) (provider.Image, error) {
	file, err := ctx.FormFile("image")
	if err == nil {
		h.log.WithFields(log.Fields{
			"request_id": h.middleware.GetRequestID(ctx),
			"file_name":  file.Filename,
			"file_size":  file.Size,
		}).Debug("Processing file upload")
		return h.utils.ReadImageFile(file)
	}

	if !strings.HasPrefix(string(ctx.Request().Header.ContentType()), fiber.MIMEApplicationJSON) {
		return provider.Image{}, utils.ErrNoFile
	}

	var req analysis.AnalysisRequest
	if err := ctx.BodyParser(&req); err != nil {
		return provider.Image{}, response.Wrap(analysis.ErrBadRequest, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return provider.Image{}, err
	}

	return h.utils.DecodeBase64Image(req.ImageBase64, req.MimeType)
}

// readDecodableImage also rejects uploads whose header cannot be decoded,
// since the overlay needs the pixels.
func (h *AnalysisHandler) readDecodableImage(ctx *fiber.Ctx) (provider.Image, error) {
	img, err := h.readImage(ctx)
	if err != nil {
		return provider.Image{}, err
	}

	size, err := h.utils.ImageSize(img.Data)
	if err != nil {
		return provider.Image{}, err
	}

	h.log.WithFields(log.Fields{
		"request_id": h.middleware.GetRequestID(ctx),
		"width":      size.Width,
		"height":     size.Height,
		"mime_type":  img.MIMEType,
	}).Debug("Image accepted")
	return img, nil
}

func (h *AnalysisHandler) handleInputError(ctx *fiber.Ctx, errHandler *handlerUtil.ErrorHandler, requestID string, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}
	return errHandler.Handle(ctx, requestID, err, ctx.Path(), "read_image")
}
