package config

import (
	"fmt"
	"time"

	analysisHandler "VisionAnalytica/internal/api/analysis/handler"
	analysisService "VisionAnalytica/internal/api/analysis/service"
	"VisionAnalytica/internal/middleware"
	"VisionAnalytica/pkg/metrics"
	"VisionAnalytica/pkg/provider"
	"VisionAnalytica/pkg/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

type ServerOption func(*Server) error

type Server struct {
	engine     *fiber.App
	log        *logrus.Logger
	config     *AppConfig
	middleware middleware.Middleware
	validator  *validator.Validate
	utils      utils.IUtils
	handlers   []handler
	registry   *prometheus.Registry
	metrics    *metrics.AnalysisMetrics
	providers  *ProviderSet
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if server.providers == nil {
		return nil, fmt.Errorf("providers are required")
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithConfig(cfg *AppConfig) ServerOption {
	return func(s *Server) error {
		s.config = cfg
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		if s.config == nil {
			return fmt.Errorf("config must be initialized before middleware")
		}
		s.middleware = middleware.New(s.log, middleware.Config{
			RequestsPerSecond: s.config.RateLimitRPS,
			Burst:             s.config.RateLimitBurst,
		})
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		if s.config == nil {
			return fmt.Errorf("config must be initialized before utils")
		}
		s.utils = utils.New(s.config.MaxUploadBytes)
		return nil
	}
}

func WithMetrics() ServerOption {
	return func(s *Server) error {
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		m, err := metrics.NewAnalysisMetrics(registry)
		if err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}

		s.registry = registry
		s.metrics = m
		return nil
	}
}

// WithProviders must come after WithMetrics for attempts to be recorded.
func WithProviders(ctx context.Context) ServerOption {
	return func(s *Server) error {
		if s.log == nil || s.config == nil {
			return fmt.Errorf("logger and config must be initialized before providers")
		}

		var recorder provider.Recorder
		if s.metrics != nil {
			recorder = s.metrics
		}

		set, err := NewProviderSet(ctx, s.log, s.config, recorder)
		if err != nil {
			s.log.Errorf("Failed to configure providers: %v", err)
			return err
		}
		s.providers = set
		return nil
	}
}

func (s *Server) RegisterHandler() {
	var recorder analysisService.RequestRecorder
	if s.metrics != nil {
		recorder = s.metrics
	}

	// Analysis
	analysisServices := analysisService.NewAnalysisService(s.log, s.providers.Summary, s.providers.Detection, recorder)
	analysisHandlers := analysisHandler.New(s.log, s.validator, s.middleware, analysisServices, s.utils, s.config.RequestTimeout)

	s.setupHealthCheck()
	s.setupMetrics()
	s.handlers = append(s.handlers, analysisHandlers)
}

// Mount installs global middleware and every registered handler under /api/v1.
func (s *Server) Mount() {
	s.engine.Use(recover.New())
	s.engine.Use(cors.New())
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(s.middleware.NewLoggingMiddleware())

	router := s.engine.Group("/api/v1")
	for _, h := range s.handlers {
		h.Start(router)
	}
}

func (s *Server) Run() error {
	s.Mount()

	return s.engine.Listen(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(timeout time.Duration) error {
	err := s.engine.ShutdownWithTimeout(timeout)
	if cerr := s.providers.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"message":   "Server is Healthy!",
			"providers": s.providers.Summary.Eligible(),
			"detection": s.providers.Detection.Eligible(),
		})
	})
}

func (s *Server) setupMetrics() {
	if s.registry == nil {
		return
	}
	s.engine.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
}
