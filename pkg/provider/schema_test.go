package provider

import (
	"testing"

	"VisionAnalytica/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSummaryText_FencedReply(t *testing.T) {
	text := "Sure! ```json\n{\"object\":\"car\",\"people_count\":0,\"helmet\":\"unknown\"}\n```"

	got, err := ParseSummaryText("openrouter", text)

	require.NoError(t, err)
	assert.Equal(t, &entity.AnalysisResult{
		Object:         "car",
		PeopleCount:    0,
		HelmetPresence: entity.HelmetPresenceUnknown,
		Provider:       "openrouter",
	}, got)
}

func TestDecodeSummary_InvalidPayload(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		message string
	}{
		{"missing_helmet", `{"object":"scene","people_count":2}`, `missing required field "helmet"`},
		{"missing_people_count", `{"object":"scene","helmet":"yes"}`, `missing required field "people_count"`},
		{"null_object", `{"object":null,"people_count":2,"helmet":"yes"}`, `missing required field "object"`},
		{"helmet_out_of_enum", `{"object":"scene","people_count":2,"helmet":"maybe"}`, `want one of [yes no unknown]`},
		{"negative_count", `{"object":"scene","people_count":-1,"helmet":"no"}`, `"people_count" failed gte`},
		{"count_not_integer", `{"object":"scene","people_count":"two","helmet":"no"}`, "malformed JSON"},
		{"not_json", `{object: scene}`, "malformed JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeSummary("gemini", tt.raw)

			require.Error(t, err)
			assert.Nil(t, got)
			assert.Equal(t, KindInvalidPayload, KindOf(err))
			assert.Contains(t, err.Error(), tt.message)
			assert.Contains(t, err.Error(), "gemini")
		})
	}
}

func TestParseSummaryText_NoObject(t *testing.T) {
	_, err := ParseSummaryText("openrouter", "I cannot help with that.")

	require.Error(t, err)
	assert.Equal(t, KindInvalidPayload, KindOf(err))
	assert.ErrorIs(t, err, ErrNoJSONObject)
}

func TestNewImage(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	img, err := NewImage(png, "", "")
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIMEType)
	assert.Equal(t, "image.png", img.Filename)
	assert.Contains(t, img.DataURI(), "data:image/png;base64,")

	_, err = NewImage(nil, "image/png", "")
	assert.ErrorIs(t, err, ErrEmptyImage)

	_, err = NewImage([]byte("plain text"), "text/plain; charset=utf-8", "")
	assert.ErrorIs(t, err, ErrUnsupportedImage)
}
