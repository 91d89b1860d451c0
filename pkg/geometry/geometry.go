// Package geometry projects pixel-space boxes into the coordinate space of a
// resized on-screen image.
//
// Scale factors are computed independently per axis. Aspect ratio is only
// preserved when the caller already constrained the display size to the
// image's native ratio. Nothing here is cached: a scale is derived from the
// sizes passed on every call, so a viewport resize simply means calling again.
package geometry

import (
	"errors"
	"fmt"

	"VisionAnalytica/internal/entity"
)

var ErrInvalidSize = errors.New("invalid size")

type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func FromImageSize(s entity.ImageSize) Size {
	return Size{Width: float64(s.Width), Height: float64(s.Height)}
}

type Scale struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func NewScale(image, display Size) (Scale, error) {
	if image.Width <= 0 || image.Height <= 0 {
		return Scale{}, fmt.Errorf("%w: image %.0fx%.0f", ErrInvalidSize, image.Width, image.Height)
	}
	if display.Width < 0 || display.Height < 0 {
		return Scale{}, fmt.Errorf("%w: display %.0fx%.0f", ErrInvalidSize, display.Width, display.Height)
	}

	return Scale{
		X: display.Width / image.Width,
		Y: display.Height / image.Height,
	}, nil
}

func (s Scale) Apply(box entity.BoundingBox) entity.BoundingBox {
	return entity.BoundingBox{
		box[0] * s.X,
		box[1] * s.Y,
		box[2] * s.X,
		box[3] * s.Y,
	}
}

func MapBox(box entity.BoundingBox, image, display Size) (entity.BoundingBox, error) {
	scale, err := NewScale(image, display)
	if err != nil {
		return entity.BoundingBox{}, err
	}
	return scale.Apply(box), nil
}
