package openrouter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"VisionAnalytica/internal/entity"
	"VisionAnalytica/pkg/provider"
	"github.com/sashabaranov/go-openai"
)

const (
	Name           = "OpenRouter"
	DefaultModel   = "google/gemma-3-4b-it:free"
	DefaultBaseURL = "https://openrouter.ai/api/v1"
)

type IOpenRouter interface {
	Name() string
	Analyze(ctx context.Context, img provider.Image) (entity.Result, error)
}

type Config struct {
	APIKey   string
	Model    string
	BaseURL  string
	SiteURL  string
	SiteName string

	HTTPClient *http.Client
}

type openRouterClient struct {
	apiKey string
	model  string
	client *openai.Client
}

func New(cfg Config) IOpenRouter {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	clientConfig.HTTPClient = &attributionDoer{
		client:   cfg.HTTPClient,
		siteURL:  cfg.SiteURL,
		siteName: cfg.SiteName,
	}

	return &openRouterClient{
		apiKey: cfg.APIKey,
		model:  cfg.Model,
		client: openai.NewClientWithConfig(clientConfig),
	}
}

func (c *openRouterClient) Name() string {
	return Name
}

// Analyze sends the image as a data URI next to the instruction and scans the
// free-text reply for the summary object.
func (c *openRouterClient) Analyze(ctx context.Context, img provider.Image) (entity.Result, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return nil, provider.MissingCredentials(Name)
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: provider.FreeTextInstruction,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL: img.DataURI(),
						},
					},
				},
			},
		},
	})
	if err != nil {
		return nil, provider.Transport(Name, describeError(err))
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, provider.InvalidPayload(Name, errors.New("empty response from OpenRouter"))
	}

	result, err := provider.ParseSummaryText(Name, resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func describeError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("OpenRouter API error: %d %s", apiErr.HTTPStatusCode, apiErr.Message)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("OpenRouter API error: %d %s", reqErr.HTTPStatusCode, http.StatusText(reqErr.HTTPStatusCode))
	}

	return err
}

// attributionDoer adds the headers OpenRouter uses to attribute traffic to an app.
type attributionDoer struct {
	client   *http.Client
	siteURL  string
	siteName string
}

func (d *attributionDoer) Do(req *http.Request) (*http.Response, error) {
	if d.siteURL != "" {
		req.Header.Set("HTTP-Referer", d.siteURL)
	}
	if d.siteName != "" {
		req.Header.Set("X-Title", d.siteName)
	}
	return d.client.Do(req)
}
