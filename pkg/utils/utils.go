package utils

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"VisionAnalytica/internal/entity"
	"VisionAnalytica/pkg/provider"
	"VisionAnalytica/pkg/response"
	"github.com/oklog/ulid/v2"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const DefaultMaxFileSize = 10 * 1024 * 1024

var (
	ErrNoFile          = response.NewError(http.StatusBadRequest, "no image uploaded")
	ErrFileTooLarge    = response.NewError(http.StatusRequestEntityTooLarge, "file size exceeds limit")
	ErrNotImage        = response.NewError(http.StatusUnsupportedMediaType, "uploaded file is not an image")
	ErrInvalidBase64   = response.NewError(http.StatusBadRequest, "invalid base64 image data")
	ErrUnreadableImage = response.NewError(http.StatusUnprocessableEntity, "image could not be decoded")
)

type IUtils interface {
	NewULIDFromTimestamp(t time.Time) (string, error)
	ValidateImageFile(file *multipart.FileHeader) error
	ReadImageFile(file *multipart.FileHeader) (provider.Image, error)
	DecodeBase64Image(data, mimeType string) (provider.Image, error)
	ImageFromBytes(data []byte, filename string) (provider.Image, error)
	ImageSize(data []byte) (entity.ImageSize, error)
}

type utils struct {
	maxFileSize int64
}

func New(maxFileSize int64) IUtils {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return &utils{
		maxFileSize: maxFileSize,
	}
}

func (u *utils) NewULIDFromTimestamp(t time.Time) (string, error) {
	ms := ulid.Timestamp(t)
	entropy := ulid.Monotonic(rand.Reader, 0)

	id, err := ulid.New(ms, entropy)
	if err != nil {
		return "", err
	}

	return id.String(), nil
}

func (u *utils) ValidateImageFile(file *multipart.FileHeader) error {
	if file == nil {
		return ErrNoFile
	}

	if file.Size > u.maxFileSize {
		return ErrFileTooLarge
	}

	contentType := file.Header.Get("Content-Type")
	if contentType != "" && contentType != "application/octet-stream" && !strings.HasPrefix(contentType, "image/") {
		return ErrNotImage
	}

	return nil
}

func (u *utils) ReadImageFile(file *multipart.FileHeader) (provider.Image, error) {
	if err := u.ValidateImageFile(file); err != nil {
		return provider.Image{}, err
	}

	f, err := file.Open()
	if err != nil {
		return provider.Image{}, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, u.maxFileSize+1))
	if err != nil {
		return provider.Image{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > u.maxFileSize {
		return provider.Image{}, ErrFileTooLarge
	}

	return u.newImage(data, file.Header.Get("Content-Type"), file.Filename)
}

// DecodeBase64Image accepts raw base64 or a data URI.
func (u *utils) DecodeBase64Image(data, mimeType string) (provider.Image, error) {
	if strings.HasPrefix(data, "data:") {
		header, payload, ok := strings.Cut(data, ",")
		if !ok {
			return provider.Image{}, ErrInvalidBase64
		}
		if mimeType == "" {
			mimeType = strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
		}
		data = payload
	}

	if int64(base64.StdEncoding.DecodedLen(len(data))) > u.maxFileSize+2 {
		return provider.Image{}, ErrFileTooLarge
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(data))
	if err != nil {
		return provider.Image{}, response.Wrap(ErrInvalidBase64, err)
	}
	if int64(len(raw)) > u.maxFileSize {
		return provider.Image{}, ErrFileTooLarge
	}

	return u.newImage(raw, mimeType, "")
}

func (u *utils) ImageFromBytes(data []byte, filename string) (provider.Image, error) {
	if int64(len(data)) > u.maxFileSize {
		return provider.Image{}, ErrFileTooLarge
	}
	return u.newImage(data, "", filename)
}

func (u *utils) newImage(data []byte, mimeType, filename string) (provider.Image, error) {
	img, err := provider.NewImage(data, mimeType, filename)
	switch {
	case errors.Is(err, provider.ErrEmptyImage):
		return provider.Image{}, ErrNoFile
	case errors.Is(err, provider.ErrUnsupportedImage):
		return provider.Image{}, ErrNotImage
	case err != nil:
		return provider.Image{}, err
	}
	return img, nil
}

// ImageSize reads only the image header.
func (u *utils) ImageSize(data []byte) (entity.ImageSize, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return entity.ImageSize{}, response.Wrap(ErrUnreadableImage, err)
	}
	return entity.ImageSize{Width: cfg.Width, Height: cfg.Height}, nil
}
