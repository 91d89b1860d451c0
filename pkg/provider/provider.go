// Package provider defines the contract shared by every vision-inference
// backend and the fallback chain that walks them in priority order.
package provider

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"VisionAnalytica/internal/entity"
)

// Provider is one inference backend. One call is one attempt: implementations
// never retry.
type Provider interface {
	Name() string
	Analyze(ctx context.Context, img Image) (entity.Result, error)
}

// Descriptor binds a provider to its eligibility predicate. A provider whose
// predicate returns false is skipped without counting as a failure.
type Descriptor struct {
	Name     string
	Eligible func() bool
	Provider Provider
}

func (d Descriptor) eligible() bool {
	if d.Provider == nil {
		return false
	}
	if d.Eligible == nil {
		return true
	}
	return d.Eligible()
}

// HasKey is the usual eligibility predicate for API-key backends.
func HasKey(key string) func() bool {
	return func() bool {
		return strings.TrimSpace(key) != ""
	}
}

var (
	ErrEmptyImage       = errors.New("image is empty")
	ErrUnsupportedImage = errors.New("file is not an image")
)

type Image struct {
	Data     []byte
	MIMEType string
	Filename string
}

// NewImage sniffs the MIME type when mimeType is empty or generic.
func NewImage(data []byte, mimeType, filename string) (Image, error) {
	if len(data) == 0 {
		return Image{}, ErrEmptyImage
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return Image{}, ErrUnsupportedImage
	}
	if filename == "" {
		filename = "image." + strings.TrimPrefix(mimeType, "image/")
	}
	return Image{Data: data, MIMEType: mimeType, Filename: filename}, nil
}

func (i Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

func (i Image) DataURI() string {
	return "data:" + i.MIMEType + ";base64," + i.Base64()
}
