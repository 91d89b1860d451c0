package analysisHandler

import (
	"time"

	analysisService "VisionAnalytica/internal/api/analysis/service"
	"VisionAnalytica/internal/middleware"
	"VisionAnalytica/pkg/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

const defaultRequestTimeout = 3 * time.Minute

type AnalysisHandler struct {
	log             *logrus.Logger
	validator       *validator.Validate
	middleware      middleware.Middleware
	analysisService analysisService.IAnalysisService
	utils           utils.IUtils
	requestTimeout  time.Duration
	streamIdle      time.Duration
}

func New(
	log *logrus.Logger,
	validator *validator.Validate,
	middleware middleware.Middleware,
	as analysisService.IAnalysisService,
	utils utils.IUtils,
	requestTimeout time.Duration,
) *AnalysisHandler {
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	return &AnalysisHandler{
		analysisService: as,
		log:             log,
		validator:       validator,
		middleware:      middleware,
		utils:           utils,
		requestTimeout:  requestTimeout,
		streamIdle:      streamReadTimeout,
	}
}

func (h *AnalysisHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	srv.Post("/analysis", h.middleware.NewRateLimiter, h.Analyze)
	srv.Get("/analysis/providers", h.Providers)
	srv.Use("/analysis/ws", wsMiddleware)
	srv.Get("/analysis/ws", websocket.New(h.handleStream))

	srv.Post("/detection", h.middleware.NewRateLimiter, h.Detect)
	srv.Post("/detection/annotate", h.middleware.NewRateLimiter, h.Annotate)
}
