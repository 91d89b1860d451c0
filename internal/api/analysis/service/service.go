package analysisService

import (
	"VisionAnalytica/internal/entity"
	"VisionAnalytica/pkg/geometry"
	"VisionAnalytica/pkg/provider"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

type IAnalysisService interface {
	Analyze(ctx context.Context, img provider.Image) (*entity.AnalysisResult, error)
	Detect(ctx context.Context, img provider.Image) (*entity.DetectionResult, error)
	Overlay(result *entity.DetectionResult, display geometry.Size) ([]geometry.Annotation, error)
	Annotate(ctx context.Context, img provider.Image, width int) ([]byte, *entity.DetectionResult, error)
	Providers() Providers
}

// Runner is satisfied by *provider.Orchestrator.
type Runner interface {
	Run(ctx context.Context, img provider.Image) (entity.Result, error)
	Eligible() []string
}

type RequestRecorder interface {
	RecordRequest(kind string, err error)
	RecordViolations(violations []entity.Violation)
}

type noopRecorder struct{}

func (noopRecorder) RecordRequest(string, error)         {}
func (noopRecorder) RecordViolations([]entity.Violation) {}

type Providers struct {
	Summary   []string `json:"summary"`
	Detection []string `json:"detection"`
}

type analysisService struct {
	log       *logrus.Logger
	summary   Runner
	detection Runner
	recorder  RequestRecorder
}

func NewAnalysisService(
	log *logrus.Logger,
	summary Runner,
	detection Runner,
	recorder RequestRecorder,
) IAnalysisService {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &analysisService{
		log:       log,
		summary:   summary,
		detection: detection,
		recorder:  recorder,
	}
}
