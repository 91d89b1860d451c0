// Package detector is the client for the object-detection service. The
// service returns raw boxes and, optionally, its own person/motorcycle
// grouping; entities and violations are always recomputed locally.
package detector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"VisionAnalytica/internal/entity"
	"VisionAnalytica/pkg/correlator"
	"VisionAnalytica/pkg/provider"
	jsoniter "github.com/json-iterator/go"
)

const (
	Name = "Detector"

	// maxResponseBytes bounds how much of a response body is read.
	maxResponseBytes = 16 << 20
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type IDetector interface {
	Name() string
	Analyze(ctx context.Context, img provider.Image) (entity.Result, error)
	Detect(ctx context.Context, img provider.Image) (*entity.DetectionResult, error)
}

type Config struct {
	URL        string
	HTTPClient *http.Client
	Rules      correlator.Rules
	Policy     correlator.Policy
}

type detectorClient struct {
	url        string
	httpClient *http.Client
	correlator *correlator.Correlator
	rules      correlator.Rules
}

func New(cfg Config) IDetector {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &detectorClient{
		url:        strings.TrimSpace(cfg.URL),
		httpClient: cfg.HTTPClient,
		correlator: correlator.New(cfg.Rules, cfg.Policy),
		rules:      cfg.Rules,
	}
}

func (d *detectorClient) Name() string {
	return Name
}

func (d *detectorClient) Analyze(ctx context.Context, img provider.Image) (entity.Result, error) {
	res, err := d.Detect(ctx, img)
	if err != nil {
		return nil, err
	}
	return res, nil
}

type upstreamPerson struct {
	ID           int                 `json:"id"`
	Box          entity.BoundingBox  `json:"box"`
	Confidence   float64             `json:"confidence"`
	HelmetStatus entity.HelmetStatus `json:"helmet_status"`
	OnMotorcycle bool                `json:"on_motorcycle"`
	MotorcycleID *int                `json:"motorcycle_id"`
}

type upstreamMotorcycle struct {
	ID         int                `json:"id"`
	Box        entity.BoundingBox `json:"box"`
	Confidence float64            `json:"confidence"`
}

// detectResponse ignores upstream violations and rider counts.
type detectResponse struct {
	Detections  []entity.Detection   `json:"detections"`
	Persons     []upstreamPerson     `json:"persons"`
	Motorcycles []upstreamMotorcycle `json:"motorcycles"`
	ImageSize   *entity.ImageSize    `json:"image_size"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (d *detectorClient) Detect(ctx context.Context, img provider.Image) (*entity.DetectionResult, error) {
	if d.url == "" {
		return nil, provider.MissingCredentials(Name)
	}

	body, contentType, err := multipartBody(img)
	if err != nil {
		return nil, provider.Transport(Name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, body)
	if err != nil {
		return nil, provider.Transport(Name, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, provider.Transport(Name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, provider.Transport(Name, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, provider.Transport(Name, fmt.Errorf("detection failed: %d %s", resp.StatusCode, errorDetail(raw, resp.StatusCode)))
	}

	var payload detectResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, provider.InvalidPayload(Name, fmt.Errorf("malformed JSON: %w", err))
	}
	if err := payload.validate(); err != nil {
		return nil, provider.InvalidPayload(Name, err)
	}

	out := d.correlator.Correlate(d.correlationInput(payload))

	detections := payload.Detections
	if detections == nil {
		detections = []entity.Detection{}
	}

	return &entity.DetectionResult{
		Detections: detections,
		Persons:    out.Persons,
		Vehicles:   out.Vehicles,
		Violations: out.Violations,
		ImageSize:  *payload.ImageSize,
		Provider:   Name,
	}, nil
}

// correlationInput rebuilds detections from the upstream grouping when the
// service supplied one. Raw detections then only contribute helmet hints that
// name a person.
func (d *detectorClient) correlationInput(p detectResponse) []entity.Detection {
	if len(p.Persons) == 0 && len(p.Motorcycles) == 0 {
		return p.Detections
	}

	personClass, vehicleClass := firstOr(d.rules.PersonClassIDs, 0), firstOr(d.rules.VehicleClassIDs, 3)
	input := make([]entity.Detection, 0, len(p.Persons)+len(p.Motorcycles)+len(p.Detections))

	for _, m := range p.Motorcycles {
		id := m.ID
		input = append(input, entity.Detection{
			Box:        m.Box,
			Confidence: m.Confidence,
			Label:      "motorcycle",
			ClassID:    vehicleClass,
			ID:         &id,
		})
	}

	for _, person := range p.Persons {
		id := person.ID
		det := entity.Detection{
			Box:          person.Box,
			Confidence:   person.Confidence,
			Label:        "person",
			ClassID:      personClass,
			ID:           &id,
			HelmetStatus: person.HelmetStatus,
		}
		if person.OnMotorcycle && person.MotorcycleID != nil {
			vid := *person.MotorcycleID
			det.VehicleID = &vid
		}
		input = append(input, det)
	}

	for _, det := range p.Detections {
		if det.PersonID != nil {
			input = append(input, det)
		}
	}
	return input
}

func (p detectResponse) validate() error {
	if p.ImageSize == nil {
		return errors.New(`missing required field "image_size"`)
	}
	if p.ImageSize.Width <= 0 || p.ImageSize.Height <= 0 {
		return fmt.Errorf("invalid image_size %dx%d", p.ImageSize.Width, p.ImageSize.Height)
	}

	for i, det := range p.Detections {
		if err := checkBox("detections", i, det.Box, det.Confidence); err != nil {
			return err
		}
		if det.HelmetStatus != "" && !det.HelmetStatus.Valid() {
			return fmt.Errorf("detections[%d]: unknown helmet_status %q", i, det.HelmetStatus)
		}
	}
	for i, person := range p.Persons {
		if err := checkBox("persons", i, person.Box, person.Confidence); err != nil {
			return err
		}
		if person.HelmetStatus != "" && !person.HelmetStatus.Valid() {
			return fmt.Errorf("persons[%d]: unknown helmet_status %q", i, person.HelmetStatus)
		}
	}
	for i, m := range p.Motorcycles {
		if err := checkBox("motorcycles", i, m.Box, m.Confidence); err != nil {
			return err
		}
	}
	return nil
}

func checkBox(field string, i int, box entity.BoundingBox, confidence float64) error {
	if !box.Valid() {
		return fmt.Errorf("%s[%d]: invalid box %v", field, i, [4]float64(box))
	}
	if confidence < 0 || confidence > 1 {
		return fmt.Errorf("%s[%d]: confidence %v out of range", field, i, confidence)
	}
	return nil
}

func errorDetail(raw []byte, status int) string {
	var e errorResponse
	if err := json.Unmarshal(raw, &e); err == nil && e.Detail != "" {
		return e.Detail
	}
	return http.StatusText(status)
}

func multipartBody(img provider.Image) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, img.Filename))
	h.Set("Content-Type", img.MIMEType)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return body, w.FormDataContentType(), nil
}

func firstOr(ids []int, fallback int) int {
	if len(ids) > 0 {
		return ids[0]
	}
	return fallback
}
