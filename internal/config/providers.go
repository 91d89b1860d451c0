package config

import (
	"fmt"

	"VisionAnalytica/pkg/correlator"
	"VisionAnalytica/pkg/detector"
	"VisionAnalytica/pkg/gemini"
	"VisionAnalytica/pkg/ollama"
	"VisionAnalytica/pkg/openrouter"
	"VisionAnalytica/pkg/provider"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

// ProviderSet holds both fallback chains and the clients behind them.
type ProviderSet struct {
	Summary   *provider.Orchestrator
	Detection *provider.Orchestrator

	gemini gemini.IGemini
}

// NewProviderSet builds every client from cfg and orders the summary chain by
// cfg.ProviderOrder. Each descriptor is eligible only when its own credential
// is present in cfg.
func NewProviderSet(ctx context.Context, log *logrus.Logger, cfg *AppConfig, recorder provider.Recorder) (*ProviderSet, error) {
	openRouterClient := openrouter.New(openrouter.Config{
		APIKey:   cfg.OpenRouterAPIKey,
		Model:    cfg.OpenRouterModel,
		BaseURL:  cfg.OpenRouterBaseURL,
		SiteURL:  cfg.OpenRouterSiteURL,
		SiteName: cfg.OpenRouterSiteName,
	})

	geminiClient, err := gemini.NewGeminiClient(ctx, gemini.Config{
		APIKey:    cfg.GeminiAPIKey,
		ModelName: cfg.GeminiModelName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	ollamaClient, err := ollama.New(ollama.Config{
		Host:  cfg.OllamaHost,
		Model: cfg.OllamaModel,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Ollama client: %w", err)
	}

	detectorClient := detector.New(detector.Config{
		URL:    cfg.DetectorURL,
		Rules:  correlator.DefaultRules(),
		Policy: cfg.Policy,
	})

	available := map[string]provider.Descriptor{
		ProviderOpenRouter: {Name: openRouterClient.Name(), Eligible: provider.HasKey(cfg.OpenRouterAPIKey), Provider: openRouterClient},
		ProviderGemini:     {Name: geminiClient.Name(), Eligible: provider.HasKey(cfg.GeminiAPIKey), Provider: geminiClient},
		ProviderOllama:     {Name: ollamaClient.Name(), Eligible: provider.HasKey(cfg.OllamaHost), Provider: ollamaClient},
	}

	summary := make([]provider.Descriptor, 0, len(cfg.ProviderOrder))
	for _, name := range cfg.ProviderOrder {
		d, ok := available[name]
		if !ok {
			return nil, fmt.Errorf("unknown provider %q", name)
		}
		summary = append(summary, d)
	}

	detection := []provider.Descriptor{
		{Name: detectorClient.Name(), Eligible: provider.HasKey(cfg.DetectorURL), Provider: detectorClient},
	}

	opts := []provider.OrchestratorOption{
		provider.WithAttemptTimeout(cfg.ProviderTimeout),
		provider.WithRecorder(recorder),
	}

	set := &ProviderSet{
		Summary:   provider.NewOrchestrator(log, summary, opts...),
		Detection: provider.NewOrchestrator(log, detection, opts...),
		gemini:    geminiClient,
	}

	log.WithFields(logrus.Fields{
		"summary":   set.Summary.Eligible(),
		"detection": set.Detection.Eligible(),
	}).Info("Providers configured")

	if len(set.Summary.Eligible()) == 0 && len(set.Detection.Eligible()) == 0 {
		log.Warn("No provider has credentials configured; every analysis request will fail")
	}

	return set, nil
}

func (p *ProviderSet) Close() error {
	if p == nil || p.gemini == nil {
		return nil
	}
	return p.gemini.Close()
}
