package analysis

import (
	"VisionAnalytica/internal/entity"
	"VisionAnalytica/pkg/geometry"
)

type AnalysisRequest struct {
	ImageBase64 string `json:"image_base64" validate:"required"`
	MimeType    string `json:"mime_type" validate:"omitempty,startswith=image/"`
}

type AnalysisResponse struct {
	Data *entity.AnalysisResult `json:"data"`
}

// DisplayQuery is the on-screen size the overlay is computed for. Both or
// neither must be given.
type DisplayQuery struct {
	Width  float64 `query:"display_width" validate:"gte=0,required_with=Height"`
	Height float64 `query:"display_height" validate:"gte=0,required_with=Width"`
}

func (q DisplayQuery) Requested() bool {
	return q.Width > 0 || q.Height > 0
}

func (q DisplayQuery) Size() geometry.Size {
	return geometry.Size{Width: q.Width, Height: q.Height}
}

type AnnotateQuery struct {
	Width int `query:"width" validate:"gte=0,lte=8192"`
}

type DetectionResponse struct {
	Data    *entity.DetectionResult `json:"data"`
	Overlay []geometry.Annotation   `json:"overlay,omitempty"`
}

// StreamReply answers one websocket frame. Token is the frame's sequence
// number on its connection, starting at 1.
type StreamReply struct {
	Token    uint64                 `json:"token"`
	Data     *entity.AnalysisResult `json:"data,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Code     string                 `json:"code,omitempty"`
	Attempts any                    `json:"attempts,omitempty"`
}

const (
	KindSummary   = "summary"
	KindDetection = "detection"
)
