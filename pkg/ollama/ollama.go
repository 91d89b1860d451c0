package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"VisionAnalytica/internal/entity"
	"VisionAnalytica/pkg/provider"
	"github.com/ollama/ollama/api"
)

const (
	Name         = "Ollama"
	DefaultModel = "llava"
)

type IOllama interface {
	Name() string
	Analyze(ctx context.Context, img provider.Image) (entity.Result, error)
}

type Config struct {
	Host  string
	Model string

	HTTPClient *http.Client
}

type ollamaClient struct {
	model  string
	client *api.Client
}

// New accepts a bare host or a full endpoint URL; any path is dropped.
func New(cfg Config) (IOllama, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}

	c := &ollamaClient{model: cfg.Model}
	if strings.TrimSpace(cfg.Host) == "" {
		return c, nil
	}

	host := cfg.Host
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	parsed, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host: %w", err)
	}

	base := &url.URL{Scheme: parsed.Scheme, Host: parsed.Host}
	c.client = api.NewClient(base, cfg.HTTPClient)
	return c, nil
}

func (c *ollamaClient) Name() string {
	return Name
}

func (c *ollamaClient) Analyze(ctx context.Context, img provider.Image) (entity.Result, error) {
	if c.client == nil {
		return nil, provider.MissingCredentials(Name)
	}

	streamFalse := false
	req := &api.ChatRequest{
		Model: c.model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: provider.SummaryInstruction,
				Images:  []api.ImageData{api.ImageData(img.Data)},
			},
		},
		Stream:  &streamFalse,
		Format:  json.RawMessage(provider.SummarySchemaJSON),
		Options: map[string]any{"temperature": 0},
	}

	var content strings.Builder
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		var statusErr api.StatusError
		if errors.As(err, &statusErr) {
			return nil, provider.Transport(Name, fmt.Errorf("ollama error: %d %s", statusErr.StatusCode, statusErr.ErrorMessage))
		}
		return nil, provider.Transport(Name, err)
	}

	if strings.TrimSpace(content.String()) == "" {
		return nil, provider.InvalidPayload(Name, errors.New("empty response from ollama"))
	}

	result, err := provider.ParseSummaryText(Name, content.String())
	if err != nil {
		return nil, err
	}
	return result, nil
}
