package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"VisionAnalytica/pkg/correlator"
	"VisionAnalytica/pkg/gemini"
	"VisionAnalytica/pkg/ollama"
	"VisionAnalytica/pkg/openrouter"
	"VisionAnalytica/pkg/utils"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"
	ProviderOllama     = "ollama"

	defaultProviderOrder = "openrouter,gemini,ollama"
)

type AppConfig struct {
	Port string
	Env  string

	OpenRouterAPIKey   string
	OpenRouterModel    string
	OpenRouterBaseURL  string
	OpenRouterSiteURL  string
	OpenRouterSiteName string

	GeminiAPIKey    string
	GeminiModelName string

	OllamaHost  string
	OllamaModel string

	DetectorURL string

	ProviderOrder   []string
	ProviderTimeout time.Duration
	RequestTimeout  time.Duration

	Policy correlator.Policy

	MaxUploadBytes int64
	RateLimitRPS   float64
	RateLimitBurst int
}

// LoadEnv loads .env files into the process environment. A missing file is
// not fatal: the environment alone may carry the configuration.
func LoadEnv(logger *logrus.Logger, files ...string) {
	if err := godotenv.Load(files...); err != nil {
		logger.Warnf("No .env file loaded: %v", err)
	}
}

// NewAppConfig reads every setting once through getenv.
func NewAppConfig(getenv func(string) string) (*AppConfig, error) {
	env := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	cfg := &AppConfig{
		Port: env("APP_PORT", "3000"),
		Env:  env("APP_ENV", "development"),

		OpenRouterAPIKey:   env("OPENROUTER_API_KEY", ""),
		OpenRouterModel:    env("OPENROUTER_MODEL", openrouter.DefaultModel),
		OpenRouterBaseURL:  env("OPENROUTER_BASE_URL", openrouter.DefaultBaseURL),
		OpenRouterSiteURL:  env("OPENROUTER_SITE_URL", ""),
		OpenRouterSiteName: env("OPENROUTER_SITE_NAME", "VisionAnalytica"),

		GeminiAPIKey:    env("GEMINI_API_KEY", env("API_KEY", "")),
		GeminiModelName: env("GEMINI_MODEL_NAME", gemini.DefaultModel),

		OllamaHost:  env("OLLAMA_HOST", ""),
		OllamaModel: env("OLLAMA_MODEL", ollama.DefaultModel),

		DetectorURL: env("DETECTOR_URL", ""),
	}

	var err error
	if cfg.ProviderOrder, err = parseProviderOrder(env("ANALYSIS_PROVIDER_ORDER", defaultProviderOrder)); err != nil {
		return nil, err
	}
	if cfg.ProviderTimeout, err = parseDuration("PROVIDER_TIMEOUT", env("PROVIDER_TIMEOUT", "60s")); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = parseDuration("REQUEST_TIMEOUT", env("REQUEST_TIMEOUT", "3m")); err != nil {
		return nil, err
	}

	policy := correlator.DefaultPolicy()
	if policy.TripleRidingThreshold, err = parseThreshold("TRIPLE_RIDING_THRESHOLD", env("TRIPLE_RIDING_THRESHOLD", ""), policy.TripleRidingThreshold); err != nil {
		return nil, err
	}
	if policy.EscalationThreshold, err = parseThreshold("SEVERITY_ESCALATION_THRESHOLD", env("SEVERITY_ESCALATION_THRESHOLD", ""), policy.EscalationThreshold); err != nil {
		return nil, err
	}
	if policy.EscalationThreshold < policy.TripleRidingThreshold {
		return nil, fmt.Errorf("SEVERITY_ESCALATION_THRESHOLD (%d) must not be below TRIPLE_RIDING_THRESHOLD (%d)",
			policy.EscalationThreshold, policy.TripleRidingThreshold)
	}
	cfg.Policy = policy

	maxUpload, err := parseInt("MAX_UPLOAD_BYTES", env("MAX_UPLOAD_BYTES", ""), utils.DefaultMaxFileSize)
	if err != nil {
		return nil, err
	}
	cfg.MaxUploadBytes = int64(maxUpload)

	if cfg.RateLimitRPS, err = strconv.ParseFloat(env("RATE_LIMIT_RPS", "5"), 64); err != nil || cfg.RateLimitRPS <= 0 {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS %q", env("RATE_LIMIT_RPS", "5"))
	}
	if cfg.RateLimitBurst, err = parseInt("RATE_LIMIT_BURST", env("RATE_LIMIT_BURST", ""), 10); err != nil {
		return nil, err
	}

	return cfg, nil
}

// parseProviderOrder accepts a comma separated list of known provider names.
func parseProviderOrder(raw string) ([]string, error) {
	var order []string
	seen := map[string]bool{}

	for _, name := range strings.Split(raw, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}

		switch name {
		case ProviderOpenRouter, ProviderGemini, ProviderOllama:
		default:
			return nil, fmt.Errorf("unknown provider %q in ANALYSIS_PROVIDER_ORDER", name)
		}

		if seen[name] {
			return nil, fmt.Errorf("provider %q listed twice in ANALYSIS_PROVIDER_ORDER", name)
		}
		seen[name] = true
		order = append(order, name)
	}

	if len(order) == 0 {
		return nil, fmt.Errorf("ANALYSIS_PROVIDER_ORDER must name at least one provider")
	}
	return order, nil
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, raw)
	}
	return d, nil
}

// parseThreshold accepts zero, which flags any vehicle with a rider.
func parseThreshold(key, raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", key, raw)
	}
	return n, nil
}

func parseInt(key, raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, raw)
	}
	return n, nil
}
