package analysisService

import (
	"errors"
	"fmt"

	"VisionAnalytica/internal/api/analysis"
	"VisionAnalytica/internal/entity"
	contextPkg "VisionAnalytica/pkg/context"
	"VisionAnalytica/pkg/geometry"
	"VisionAnalytica/pkg/log"
	"VisionAnalytica/pkg/overlay"
	"VisionAnalytica/pkg/provider"
	"VisionAnalytica/pkg/response"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

func (s *analysisService) Analyze(ctx context.Context, img provider.Image) (*entity.AnalysisResult, error) {
	result, err := s.run(ctx, analysis.KindSummary, s.summary, img)
	if err != nil {
		return nil, err
	}

	summary, ok := result.(*entity.AnalysisResult)
	if !ok {
		s.recorder.RecordRequest(analysis.KindSummary, analysis.ErrUnexpectedResult)
		return nil, analysis.ErrUnexpectedResult
	}

	s.recorder.RecordRequest(analysis.KindSummary, nil)
	s.entry(ctx).WithFields(log.Fields{
		"provider":     summary.Provider,
		"people_count": summary.PeopleCount,
		"helmet":       summary.HelmetPresence,
	}).Info("Scene summary produced")

	return summary, nil
}

func (s *analysisService) Detect(ctx context.Context, img provider.Image) (*entity.DetectionResult, error) {
	result, err := s.run(ctx, analysis.KindDetection, s.detection, img)
	if err != nil {
		return nil, err
	}

	detection, ok := result.(*entity.DetectionResult)
	if !ok {
		s.recorder.RecordRequest(analysis.KindDetection, analysis.ErrUnexpectedResult)
		return nil, analysis.ErrUnexpectedResult
	}

	s.recorder.RecordRequest(analysis.KindDetection, nil)
	s.recorder.RecordViolations(detection.Violations)
	s.entry(ctx).WithFields(log.Fields{
		"provider":    detection.Provider,
		"detections":  len(detection.Detections),
		"persons":     len(detection.Persons),
		"motorcycles": len(detection.Vehicles),
		"violations":  len(detection.Violations),
	}).Info("Detection correlated")

	return detection, nil
}

// Overlay is recomputed on every call; a new display size gives new boxes.
func (s *analysisService) Overlay(result *entity.DetectionResult, display geometry.Size) ([]geometry.Annotation, error) {
	annotations, err := geometry.Annotate(result, display)
	if err != nil {
		if errors.Is(err, geometry.ErrInvalidSize) {
			return nil, response.Wrap(analysis.ErrInvalidDisplaySize, err)
		}
		return nil, err
	}
	return annotations, nil
}

func (s *analysisService) Annotate(ctx context.Context, img provider.Image, width int) ([]byte, *entity.DetectionResult, error) {
	detection, err := s.Detect(ctx, img)
	if err != nil {
		return nil, nil, err
	}

	png, err := overlay.Render(img.Data, detection, width)
	if err != nil {
		if errors.Is(err, overlay.ErrDecode) || errors.Is(err, geometry.ErrInvalidSize) {
			return nil, nil, response.Wrap(analysis.ErrOverlayFailed, err)
		}
		return nil, nil, fmt.Errorf("render overlay: %w", err)
	}

	return png, detection, nil
}

func (s *analysisService) Providers() Providers {
	return Providers{
		Summary:   s.summary.Eligible(),
		Detection: s.detection.Eligible(),
	}
}

func (s *analysisService) run(ctx context.Context, kind string, runner Runner, img provider.Image) (entity.Result, error) {
	result, err := runner.Run(ctx, img)
	if err != nil {
		s.recorder.RecordRequest(kind, err)
		s.entry(ctx).WithFields(log.Fields{
			"kind":  kind,
			"error": err.Error(),
		}).Warn("Analysis failed")
		return nil, err
	}
	return result, nil
}

func (s *analysisService) entry(ctx context.Context) *logrus.Entry {
	return s.log.WithField(log.RequestIDKey, contextPkg.GetRequestID(ctx))
}
