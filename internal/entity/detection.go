package entity

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// BoundingBox is (x1, y1, x2, y2) in source-image pixels.
type BoundingBox [4]float64

func (b BoundingBox) X1() float64 { return b[0] }
func (b BoundingBox) Y1() float64 { return b[1] }
func (b BoundingBox) X2() float64 { return b[2] }
func (b BoundingBox) Y2() float64 { return b[3] }

func (b BoundingBox) Width() float64 {
	return b[2] - b[0]
}

func (b BoundingBox) Height() float64 {
	return b[3] - b[1]
}

func (b BoundingBox) Valid() bool {
	return b[0] < b[2] && b[1] < b[3]
}

func (b *BoundingBox) UnmarshalJSON(data []byte) error {
	var raw []float64
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 4 {
		return fmt.Errorf("bounding box needs 4 coordinates, got %d", len(raw))
	}
	copy(b[:], raw)
	return nil
}

type HelmetStatus string

const (
	HelmetStatusHelmet   HelmetStatus = "helmet"
	HelmetStatusNoHelmet HelmetStatus = "no_helmet"
	HelmetStatusUnknown  HelmetStatus = "unknown"
)

func (h HelmetStatus) Valid() bool {
	switch h {
	case HelmetStatusHelmet, HelmetStatusNoHelmet, HelmetStatusUnknown:
		return true
	}
	return false
}

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type ViolationType string

const (
	ViolationNoHelmet     ViolationType = "no_helmet"
	ViolationTripleRiding ViolationType = "triple_riding"
)

// Detection is one raw inference output.
// ID, PersonID and VehicleID are identities assigned by the backend and only
// meaningful inside the batch that produced them.
type Detection struct {
	Box          BoundingBox  `json:"box"`
	Confidence   float64      `json:"confidence"`
	Label        string       `json:"label"`
	ClassID      int          `json:"class_id"`
	ID           *int         `json:"id,omitempty"`
	PersonID     *int         `json:"person_id,omitempty"`
	VehicleID    *int         `json:"vehicle_id,omitempty"`
	HelmetStatus HelmetStatus `json:"helmet_status,omitempty"`
}

type PersonEntity struct {
	ID           int          `json:"id"`
	Box          BoundingBox  `json:"box"`
	Confidence   float64      `json:"confidence"`
	HelmetStatus HelmetStatus `json:"helmet_status"`
	OnVehicle    bool         `json:"on_motorcycle"`
	VehicleID    *int         `json:"motorcycle_id"`
}

type VehicleEntity struct {
	ID         int         `json:"id"`
	Box        BoundingBox `json:"box"`
	Confidence float64     `json:"confidence"`
	RiderCount int         `json:"rider_count"`
	RiderIDs   []int       `json:"rider_ids"`
}

// Violation is a tagged union on Type. no_helmet sets PersonID and PersonBox,
// triple_riding sets RiderIDs, RiderCount and PersonBoxes.
type Violation struct {
	Type        ViolationType `json:"type"`
	Severity    Severity      `json:"severity"`
	Description string        `json:"description"`
	VehicleID   int           `json:"motorcycle_id"`
	VehicleBox  BoundingBox   `json:"motorcycle_box"`
	PersonID    *int          `json:"person_id,omitempty"`
	PersonBox   *BoundingBox  `json:"person_box,omitempty"`
	RiderCount  int           `json:"rider_count,omitempty"`
	RiderIDs    []int         `json:"person_ids,omitempty"`
	PersonBoxes []BoundingBox `json:"person_boxes,omitempty"`
}

type ImageSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type DetectionResult struct {
	Detections []Detection     `json:"detections"`
	Persons    []PersonEntity  `json:"persons"`
	Vehicles   []VehicleEntity `json:"motorcycles"`
	Violations []Violation     `json:"violations"`
	ImageSize  ImageSize       `json:"image_size"`
	Provider   string          `json:"provider"`
}

func (r *DetectionResult) ProviderName() string {
	return r.Provider
}
