package cli

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"VisionAnalytica/internal/api/analysis"
	analysisService "VisionAnalytica/internal/api/analysis/service"
	"VisionAnalytica/internal/config"
	"VisionAnalytica/internal/entity"
	"VisionAnalytica/pkg/geometry"
	"VisionAnalytica/pkg/provider"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/context"
)

type fakeService struct {
	analyzed []provider.Image
	display  geometry.Size
}

func (f *fakeService) Analyze(_ context.Context, img provider.Image) (*entity.AnalysisResult, error) {
	f.analyzed = append(f.analyzed, img)
	return &entity.AnalysisResult{Object: "motorcycle", PeopleCount: 1, HelmetPresence: entity.HelmetPresenceYes, Provider: "Ollama"}, nil
}

func (f *fakeService) Detect(context.Context, provider.Image) (*entity.DetectionResult, error) {
	return &entity.DetectionResult{
		Detections: []entity.Detection{{Box: entity.BoundingBox{2, 2, 10, 10}, Confidence: 0.9, Label: "person"}},
		ImageSize:  entity.ImageSize{Width: 20, Height: 20},
		Provider:   "Detector",
	}, nil
}

func (f *fakeService) Overlay(result *entity.DetectionResult, display geometry.Size) ([]geometry.Annotation, error) {
	f.display = display
	return geometry.Annotate(result, display)
}

func (f *fakeService) Annotate(context.Context, provider.Image, int) ([]byte, *entity.DetectionResult, error) {
	return nil, nil, nil
}

func (f *fakeService) Providers() analysisService.Providers {
	return analysisService.Providers{}
}

func writePNG(t *testing.T, dir string, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	img.Set(1, 1, color.NRGBA{G: 255, A: 255})

	path := filepath.Join(dir, "frame.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func run(t *testing.T, svc analysisService.IAnalysisService, args ...string) (string, error) {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	var out bytes.Buffer
	root := RootCommand(&Context{
		Log:     log,
		Out:     &out,
		Config:  &config.AppConfig{MaxUploadBytes: 1 << 20},
		Service: svc,
	})
	root.SetArgs(args)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)

	err := root.Execute()
	return out.String(), err
}

func TestAnalyzeCommand(t *testing.T) {
	svc := &fakeService{}
	path := writePNG(t, t.TempDir(), 4, 4)

	out, err := run(t, svc, "analyze", path)
	require.NoError(t, err)

	var resp analysis.AnalysisResponse
	require.NoError(t, jsoniter.UnmarshalFromString(out, &resp))
	assert.Equal(t, "motorcycle", resp.Data.Object)
	assert.Equal(t, "Ollama", resp.Data.Provider)

	require.Len(t, svc.analyzed, 1)
	assert.Equal(t, "frame.png", svc.analyzed[0].Filename)
	assert.Equal(t, "image/png", svc.analyzed[0].MIMEType)
}

func TestAnalyzeCommand_MissingFile(t *testing.T) {
	_, err := run(t, &fakeService{}, "analyze", filepath.Join(t.TempDir(), "missing.png"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.png")
}

func TestDetectCommand_OverlayAndAnnotate(t *testing.T) {
	svc := &fakeService{}
	dir := t.TempDir()
	path := writePNG(t, dir, 20, 20)
	outPath := filepath.Join(dir, "annotated.png")

	out, err := run(t, svc, "detect", path,
		"--display-width", "40", "--display-height", "40",
		"--annotate", outPath, "--annotate-width", "10")
	require.NoError(t, err)

	var resp analysis.DetectionResponse
	require.NoError(t, jsoniter.UnmarshalFromString(out, &resp))
	assert.Equal(t, geometry.Size{Width: 40, Height: 40}, svc.display)
	require.Len(t, resp.Overlay, 1)
	assert.Equal(t, entity.BoundingBox{4, 4, 20, 20}, resp.Overlay[0].Box)

	raw, err := os.ReadFile(outPath)
	require.NoError(t, err)
	cfg, err := png.DecodeConfig(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Width)
	assert.Equal(t, 10, cfg.Height)
}

func TestDetectCommand_HalfDisplaySize(t *testing.T) {
	path := writePNG(t, t.TempDir(), 4, 4)

	_, err := run(t, &fakeService{}, "detect", path, "--display-width", "40")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be given together")
}

func TestStreamCommand(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var token uint64
		for token < 2 {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			token++
		}
		_ = conn.WriteJSON(analysis.StreamReply{Token: 1, Error: "superseded"})
		_ = conn.WriteJSON(analysis.StreamReply{Token: 2, Data: &entity.AnalysisResult{Object: "bicycle", HelmetPresence: entity.HelmetPresenceNo, Provider: "Gemini"}})
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	path := writePNG(t, t.TempDir(), 4, 4)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	out, err := run(t, &fakeService{}, "stream", path, path, "--url", url)
	require.NoError(t, err)

	assert.NotContains(t, out, "superseded")
	assert.Contains(t, out, `"bicycle"`)
	assert.Contains(t, out, `"token": 2`)
}
