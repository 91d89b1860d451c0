package utils

import (
	"bytes"
	"encoding/base64"
	"image/color"
	"testing"
	"time"

	"VisionAnalytica/internal/entity"
	"github.com/disintegration/imaging"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(w, h, color.White), imaging.PNG))
	return buf.Bytes()
}

func TestNewULIDFromTimestamp(t *testing.T) {
	now := time.Now()

	id, err := New(0).NewULIDFromTimestamp(now)

	require.NoError(t, err)
	parsed, err := ulid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, ulid.Timestamp(now), parsed.Time())
}

func TestDecodeBase64Image(t *testing.T) {
	data := pngBytes(t, 4, 3)
	encoded := base64.StdEncoding.EncodeToString(data)

	tests := []struct {
		name    string
		input   string
		mime    string
		max     int64
		wantErr error
		want    string
	}{
		{name: "raw_sniffed", input: encoded, want: "image/png"},
		{name: "data_uri", input: "data:image/png;base64," + encoded, want: "image/png"},
		{name: "explicit_mime", input: encoded, mime: "image/x-custom", want: "image/x-custom"},
		{name: "not_base64", input: "%%%", wantErr: ErrInvalidBase64},
		{name: "not_image", input: base64.StdEncoding.EncodeToString([]byte("plain text here")), wantErr: ErrNotImage},
		{name: "empty", input: "", wantErr: ErrNoFile},
		{name: "too_large", input: encoded, max: 10, wantErr: ErrFileTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := New(tt.max).DecodeBase64Image(tt.input, tt.mime)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, img.MIMEType)
			assert.Equal(t, data, img.Data)
		})
	}
}

func TestImageSize(t *testing.T) {
	u := New(0)

	size, err := u.ImageSize(pngBytes(t, 64, 48))
	require.NoError(t, err)
	assert.Equal(t, entity.ImageSize{Width: 64, Height: 48}, size)

	_, err = u.ImageSize([]byte("\xff\xd8\xff\xe0 truncated"))
	assert.ErrorIs(t, err, ErrUnreadableImage)
}

func TestImageFromBytes(t *testing.T) {
	img, err := New(0).ImageFromBytes(pngBytes(t, 2, 2), "")

	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIMEType)
	assert.Equal(t, "image.png", img.Filename)
}
