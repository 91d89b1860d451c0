package provider

import (
	"errors"
	"fmt"
	"strings"

	"VisionAnalytica/internal/entity"
	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
)

const SummaryInstruction = `You are an expert image analysis system.
Analyze the provided image and extract ONLY the following fields:
- object: The main object or scene description (string).
- people_count: The number of people visible (integer).
- helmet: Whether people are wearing helmets. Return 'yes', 'no', or 'unknown'.`

// FreeTextInstruction is used with backends that cannot be given a schema.
const FreeTextInstruction = SummaryInstruction + `

Return ONLY valid JSON. Do not include markdown formatting or explanations.`

// SummarySchemaJSON is the output schema for backends that accept JSON Schema.
const SummarySchemaJSON = `{
  "type": "object",
  "properties": {
    "object": {"type": "string", "description": "The main object or subject of the image."},
    "people_count": {"type": "integer", "description": "Count of people in the image."},
    "helmet": {"type": "string", "enum": ["yes", "no", "unknown"], "description": "Indicates if helmets are worn."}
  },
  "required": ["object", "people_count", "helmet"]
}`

var (
	json     = jsoniter.ConfigCompatibleWithStandardLibrary
	validate = validator.New()
)

type summaryPayload struct {
	Object      *string `json:"object" validate:"required"`
	PeopleCount *int    `json:"people_count" validate:"required,gte=0"`
	Helmet      *string `json:"helmet" validate:"required,oneof=yes no unknown"`
}

// DecodeSummary parses and validates one scene summary object. A missing key
// or a value outside its declared set is an InvalidPayload error, never a
// default.
func DecodeSummary(provider, raw string) (*entity.AnalysisResult, error) {
	var p summaryPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, InvalidPayload(provider, fmt.Errorf("malformed JSON: %w", err))
	}

	if err := validate.Struct(p); err != nil {
		return nil, InvalidPayload(provider, describeValidation(err))
	}

	return &entity.AnalysisResult{
		Object:         *p.Object,
		PeopleCount:    *p.PeopleCount,
		HelmetPresence: entity.HelmetPresence(*p.Helmet),
		Provider:       provider,
	}, nil
}

// ParseSummaryText extracts the first JSON object of a free-text reply and
// validates it.
func ParseSummaryText(provider, text string) (*entity.AnalysisResult, error) {
	raw, err := ExtractJSONObject(text)
	if err != nil {
		return nil, InvalidPayload(provider, err)
	}
	return DecodeSummary(provider, raw)
}

func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		name := jsonName(fe.StructField())
		switch fe.Tag() {
		case "required":
			fields = append(fields, fmt.Sprintf("missing required field %q", name))
		case "oneof":
			fields = append(fields, fmt.Sprintf("field %q has value %v, want one of [%s]", name, fe.Value(), fe.Param()))
		default:
			fields = append(fields, fmt.Sprintf("field %q failed %s", name, fe.Tag()))
		}
	}
	return errors.New(strings.Join(fields, ", "))
}

func jsonName(field string) string {
	switch field {
	case "Object":
		return "object"
	case "PeopleCount":
		return "people_count"
	case "Helmet":
		return "helmet"
	}
	return field
}
