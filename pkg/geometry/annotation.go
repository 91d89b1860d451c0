package geometry

import (
	"fmt"
	"math"
	"strings"

	"VisionAnalytica/internal/entity"
)

const (
	ColorViolation = "#ef4444"
	ColorCompliant = "#10b981"
	ColorVehicle   = "#3b82f6"
)

type AnnotationKind string

const (
	KindDetection AnnotationKind = "detection"
	KindPerson    AnnotationKind = "person"
	KindVehicle   AnnotationKind = "motorcycle"
)

// Annotation is a renderable box in display space.
type Annotation struct {
	Kind    AnnotationKind     `json:"kind"`
	Box     entity.BoundingBox `json:"box"`
	Label   string             `json:"label"`
	Color   string             `json:"color"`
	Flagged bool               `json:"flagged"`
}

func (a Annotation) Left() float64   { return a.Box[0] }
func (a Annotation) Top() float64    { return a.Box[1] }
func (a Annotation) Width() float64  { return a.Box.Width() }
func (a Annotation) Height() float64 { return a.Box.Height() }

// Annotate maps every detection, person and vehicle of result into display
// space. Entities that take part in a violation are flagged.
func Annotate(result *entity.DetectionResult, display Size) ([]Annotation, error) {
	scale, err := NewScale(FromImageSize(result.ImageSize), display)
	if err != nil {
		return nil, err
	}

	flaggedPersons := map[int]bool{}
	flaggedVehicles := map[int]bool{}
	for _, v := range result.Violations {
		flaggedVehicles[v.VehicleID] = true
		if v.PersonID != nil {
			flaggedPersons[*v.PersonID] = true
		}
		for _, id := range v.RiderIDs {
			flaggedPersons[id] = true
		}
	}

	out := make([]Annotation, 0, len(result.Detections)+len(result.Persons)+len(result.Vehicles))
	for _, d := range result.Detections {
		flagged := isNegativeLabel(d.Label)
		out = append(out, Annotation{
			Kind:    KindDetection,
			Box:     scale.Apply(d.Box),
			Label:   labelText(d.Label, d.Confidence),
			Color:   colorFor(flagged, ColorCompliant),
			Flagged: flagged,
		})
	}

	for _, v := range result.Vehicles {
		flagged := flaggedVehicles[v.ID]
		out = append(out, Annotation{
			Kind:    KindVehicle,
			Box:     scale.Apply(v.Box),
			Label:   labelText(fmt.Sprintf("motorcycle #%d, %d rider(s)", v.ID, v.RiderCount), v.Confidence),
			Color:   colorFor(flagged, ColorVehicle),
			Flagged: flagged,
		})
	}

	for _, p := range result.Persons {
		flagged := flaggedPersons[p.ID]
		out = append(out, Annotation{
			Kind:    KindPerson,
			Box:     scale.Apply(p.Box),
			Label:   labelText(fmt.Sprintf("person #%d %s", p.ID, p.HelmetStatus), p.Confidence),
			Color:   colorFor(flagged, ColorCompliant),
			Flagged: flagged,
		})
	}

	return out, nil
}

func labelText(label string, confidence float64) string {
	return fmt.Sprintf("%s (%d%%)", label, int(math.Round(confidence*100)))
}

func isNegativeLabel(label string) bool {
	l := strings.ToLower(label)
	return strings.Contains(l, "without") || strings.Contains(l, "no_helmet") || strings.Contains(l, "no helmet")
}

func colorFor(flagged bool, otherwise string) string {
	if flagged {
		return ColorViolation
	}
	return otherwise
}
