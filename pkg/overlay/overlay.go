// Package overlay draws detection annotations onto the source image.
package overlay

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strconv"
	"strings"

	"VisionAnalytica/internal/entity"
	"VisionAnalytica/pkg/geometry"
	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"
)

const (
	DefaultThickness = 2
	labelHeight      = 15
	labelPadding     = 3
)

var ErrDecode = errors.New("failed to decode image")

// Render decodes data, optionally resizes it to width (keeping the aspect
// ratio), draws the annotations of result and returns a PNG.
func Render(data []byte, result *entity.DetectionResult, width int) ([]byte, error) {
	// Raw pixel orientation; the detector reports boxes against the unrotated image.
	src, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	var canvas *image.NRGBA
	if width > 0 && width != src.Bounds().Dx() {
		canvas = imaging.Resize(src, width, 0, imaging.Lanczos)
	} else {
		canvas = imaging.Clone(src)
	}

	display := geometry.Size{
		Width:  float64(canvas.Bounds().Dx()),
		Height: float64(canvas.Bounds().Dy()),
	}
	annotations, err := geometry.Annotate(result, display)
	if err != nil {
		return nil, err
	}

	Draw(canvas, annotations, DefaultThickness)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, canvas, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode overlay: %w", err)
	}
	return buf.Bytes(), nil
}

// Draw paints each annotation as an outlined box with a filled label tab.
func Draw(dst *image.NRGBA, annotations []geometry.Annotation, thickness int) {
	if thickness < 1 {
		thickness = 1
	}

	for _, a := range annotations {
		c := ParseHexColor(a.Color)
		r := image.Rect(
			int(math.Round(a.Left())),
			int(math.Round(a.Top())),
			int(math.Round(a.Box.X2())),
			int(math.Round(a.Box.Y2())),
		)
		outline(dst, r, c, thickness)
		label(dst, r.Min, a.Label, c)
	}
}

func outline(dst *image.NRGBA, r image.Rectangle, c color.Color, t int) {
	src := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t),
		image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y),
		image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(dst.Bounds()), src, image.Point{}, draw.Src)
	}
}

// label sits above the box, or inside it when the box touches the top edge.
func label(dst *image.NRGBA, at image.Point, text string, bg color.Color) {
	if text == "" {
		return
	}
	face := basicfont.Face7x13
	w := font.MeasureString(face, text).Ceil() + 2*labelPadding

	top := at.Y - labelHeight
	if top < dst.Bounds().Min.Y {
		top = at.Y
	}
	tab := image.Rect(at.X, top, at.X+w, top+labelHeight).Intersect(dst.Bounds())
	draw.Draw(dst, tab, image.NewUniform(bg), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  fixed.P(at.X+labelPadding, top+labelHeight-labelPadding),
	}
	d.DrawString(text)
}

// ParseHexColor parses "#rrggbb". Anything else yields opaque black.
func ParseHexColor(s string) color.NRGBA {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return color.NRGBA{A: 0xff}
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.NRGBA{A: 0xff}
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}
