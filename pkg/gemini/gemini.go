package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"VisionAnalytica/internal/entity"
	"VisionAnalytica/pkg/provider"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	Name         = "Gemini"
	DefaultModel = "gemini-1.5-flash"
)

type IGemini interface {
	Name() string
	Analyze(ctx context.Context, img provider.Image) (entity.Result, error)
	Close() error
}

type Config struct {
	APIKey    string
	ModelName string
}

// contentGenerator is the slice of *genai.GenerativeModel the client uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type geminiClient struct {
	modelName string
	client    *genai.Client
	model     contentGenerator
}

// NewGeminiClient builds a client. Without an API key it still returns a
// client, which reports missing credentials on every call.
func NewGeminiClient(ctx context.Context, cfg Config) (IGemini, error) {
	if cfg.ModelName == "" {
		cfg.ModelName = DefaultModel
	}

	g := &geminiClient{modelName: cfg.ModelName}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return g, nil
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.ModelName)
	model.SetTemperature(0)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = summarySchema()

	g.client = client
	g.model = model
	return g, nil
}

func summarySchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"object": {
				Type:        genai.TypeString,
				Description: "The main object or subject of the image.",
			},
			"people_count": {
				Type:        genai.TypeInteger,
				Description: "Count of people in the image.",
			},
			"helmet": {
				Type:        genai.TypeString,
				Description: "Indicates if helmets are worn. Values: yes, no, unknown.",
				Enum:        []string{"yes", "no", "unknown"},
			},
		},
		Required: []string{"object", "people_count", "helmet"},
	}
}

func (g *geminiClient) Name() string {
	return Name
}

func (g *geminiClient) Analyze(ctx context.Context, img provider.Image) (entity.Result, error) {
	if g.model == nil {
		return nil, provider.MissingCredentials(Name)
	}

	res, err := g.model.GenerateContent(ctx,
		genai.Blob{MIMEType: img.MIMEType, Data: img.Data},
		genai.Text(provider.SummaryInstruction),
	)
	if err != nil {
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			return nil, provider.InvalidPayload(Name, err)
		}
		return nil, provider.Transport(Name, err)
	}

	text := responseText(res)
	if text == "" {
		return nil, provider.InvalidPayload(Name, errors.New("no response received from Gemini"))
	}

	result, err := provider.ParseSummaryText(Name, text)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func responseText(res *genai.GenerateContentResponse) string {
	if res == nil || len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range res.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return strings.TrimSpace(sb.String())
}

func (g *geminiClient) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
