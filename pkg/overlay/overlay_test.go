package overlay

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"VisionAnalytica/internal/entity"
	"VisionAnalytica/pkg/geometry"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func whitePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(w, h, color.White), imaging.PNG))
	return buf.Bytes()
}

func TestRender_ScalesAndDrawsBoxes(t *testing.T) {
	result := &entity.DetectionResult{
		Detections: []entity.Detection{
			{Box: entity.BoundingBox{20, 40, 80, 90}, Confidence: 0.8, Label: "Without Helmet"},
		},
		ImageSize: entity.ImageSize{Width: 200, Height: 100},
	}

	out, err := Render(whitePNG(t, 200, 100), result, 100)
	require.NoError(t, err)

	img, err := imaging.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 100, 50), img.Bounds())

	red := ParseHexColor(geometry.ColorViolation)
	// box maps to [10,20,40,45]; sample its left edge below the label tab
	assert.Equal(t, red, color.NRGBAModel.Convert(img.At(10, 35)))
	assert.NotEqual(t, red, color.NRGBAModel.Convert(img.At(25, 35)), "box interior stays unpainted")
}

// rotatedJPEG returns a w x h JPEG tagged with EXIF orientation 6 (rotate 90 CW).
func rotatedJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(w, h, color.White), imaging.JPEG))
	raw := buf.Bytes()

	tiff := []byte{
		'M', 'M', 0x00, 0x2a, 0x00, 0x00, 0x00, 0x08,
		0x00, 0x01,
		0x01, 0x12, 0x00, 0x03, 0x00, 0x00, 0x00, 0x01, 0x00, 0x06, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
	}
	payload := append([]byte("Exif\x00\x00"), tiff...)
	segLen := len(payload) + 2
	app1 := append([]byte{0xff, 0xe1, byte(segLen >> 8), byte(segLen)}, payload...)

	out := append([]byte{}, raw[:2]...)
	out = append(out, app1...)
	return append(out, raw[2:]...)
}

func TestRender_KeepsRawOrientation(t *testing.T) {
	data := rotatedJPEG(t, 40, 20)

	rotated, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 20, 40), rotated.Bounds(), "fixture carries an orientation tag")

	result := &entity.DetectionResult{
		Detections: []entity.Detection{
			{Box: entity.BoundingBox{2, 2, 30, 18}, Confidence: 0.9, Label: "With Helmet"},
		},
		ImageSize: entity.ImageSize{Width: 40, Height: 20},
	}

	out, err := Render(data, result, 0)
	require.NoError(t, err)

	img, err := imaging.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 40, 20), img.Bounds())
}

func TestRender_InvalidImage(t *testing.T) {
	_, err := Render([]byte("not an image"), &entity.DetectionResult{ImageSize: entity.ImageSize{Width: 1, Height: 1}}, 0)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestRender_InvalidImageSize(t *testing.T) {
	_, err := Render(whitePNG(t, 10, 10), &entity.DetectionResult{}, 0)
	assert.ErrorIs(t, err, geometry.ErrInvalidSize)
}

func TestDraw_ClipsBoxesOutsideCanvas(t *testing.T) {
	canvas := imaging.New(20, 20, color.White)

	assert.NotPanics(t, func() {
		Draw(canvas, []geometry.Annotation{
			{Box: entity.BoundingBox{-5, -5, 15, 15}, Label: "person (90%)", Color: geometry.ColorCompliant},
		}, 0)
	})
	assert.Equal(t, ParseHexColor(geometry.ColorCompliant), canvas.NRGBAAt(14, 12))
}

func TestParseHexColor(t *testing.T) {
	assert.Equal(t, color.NRGBA{R: 0xef, G: 0x44, B: 0x44, A: 0xff}, ParseHexColor("#ef4444"))
	assert.Equal(t, color.NRGBA{R: 0x3b, G: 0x82, B: 0xf6, A: 0xff}, ParseHexColor("3b82f6"))
	assert.Equal(t, color.NRGBA{A: 0xff}, ParseHexColor("#zzz"))
}
