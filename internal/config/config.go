// Package config loads and validates the router's YAML configuration,
// generalizing the teacher's flat ProvidersConfig/RouterConfig into the
// query-router's provider pool, classifier, RAG, and observability sections.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/skyconnectsl/travelcore-router/internal/middleware"
	"github.com/skyconnectsl/travelcore-router/internal/security"
	"github.com/skyconnectsl/travelcore-router/internal/server"
	"github.com/skyconnectsl/travelcore-router/internal/types"
)

// Config is the root configuration document, loaded from a single YAML file.
type Config struct {
	Server        ServerSectionConfig `yaml:"server"`
	Logging       LoggingConfig       `yaml:"logging"`
	LLM           LLMConfig           `yaml:"llm"`
	Classifier    ClassifierConfig    `yaml:"classifier"`
	Rag           RagConfig           `yaml:"rag"`
	Router        RouterConfig        `yaml:"router"`
	Observability ObservabilityConfig         `yaml:"observability"`
	Security      SecurityConfig              `yaml:"security"`
	OpenAPI       middleware.ValidationConfig `yaml:"openapi_validation"`
}

// LoggingConfig configures the application-wide logrus logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
	Output string `yaml:"output"` // "stdout", "stderr", or a file path
}

// ServerSectionConfig configures the HTTP listener.
type ServerSectionConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// ProviderConfig configures one entry in the ordered LLM fallback chain.
type ProviderConfig struct {
	ID         string            `yaml:"id"`
	Kind       string            `yaml:"kind"` // "openai" or "anthropic"
	BaseURL    string            `yaml:"base_url"`
	APIKey     string            `yaml:"api_key"`
	Model      string            `yaml:"model"`
	Models     []types.ModelInfo `yaml:"models"`
	TimeoutMs  int               `yaml:"timeout_ms"`
	MaxRetries int               `yaml:"max_retries"`
}

// LLMConfig holds the ordered provider fallback chain used by the Gateway.
type LLMConfig struct {
	Providers []ProviderConfig `yaml:"providers"`
}

// ClassifierConfig configures the two-stage intent classifier. EncoderURL is
// optional: when empty, the classifier runs in keyword-only mode and never
// falls back to embedding similarity (classifier.New accepts a nil Encoder
// for exactly this case). When set, it also backs the RAG Engine's fixture
// corpus embedder, since both are the same "call out to an embeddings
// endpoint" concern.
type ClassifierConfig struct {
	ConfidenceThreshold float64       `yaml:"confidence_threshold"`
	EncoderURL          string        `yaml:"encoder_url"`
	EncoderAPIKey       string        `yaml:"encoder_api_key"`
	EncoderModel        string        `yaml:"encoder_model"`
	EncoderTimeout      time.Duration `yaml:"encoder_timeout"`
}

// RagConfig configures the RAG Engine's retrieval gate and synthesis budget.
type RagConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	TopK                int     `yaml:"top_k"`
}

// RouterConfig configures the Router's timeout budget and concurrency cap.
type RouterConfig struct {
	TotalTimeoutMs int `yaml:"total_timeout_ms"`
	MaxInFlight    int `yaml:"max_in_flight"`
}

// ObservabilityConfig configures the bounded latency window.
type ObservabilityConfig struct {
	WindowSize int `yaml:"window_size"`
}

// SecurityConfig mirrors the teacher's security middleware configuration
// surface, reused unchanged for authentication, rate limiting, validation,
// and audit logging in front of the query endpoint.
type SecurityConfig struct {
	Auth       security.Config           `yaml:"auth"`
	RateLimit  security.RateLimitConfig  `yaml:"rate_limit"`
	Validation security.ValidationConfig `yaml:"validation"`
	Audit      security.AuditConfig      `yaml:"audit"`
}

// Load reads and validates a configuration document from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate %s: %w", path, err)
	}

	return cfg, nil
}

// Default returns a configuration populated with spec.md's documented
// defaults, to be overridden by whatever keys a loaded YAML file sets.
func Default() *Config {
	return &Config{
		Server: ServerSectionConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Classifier: ClassifierConfig{
			ConfidenceThreshold: 0.6,
		},
		Rag: RagConfig{
			SimilarityThreshold: 0.75,
			TopK:                5,
		},
		Router: RouterConfig{
			TotalTimeoutMs: 6000,
			MaxInFlight:    64,
		},
		Observability: ObservabilityConfig{
			WindowSize: 1024,
		},
		Security: SecurityConfig{
			Auth: security.Config{
				RequireAuth: false,
				JWTExpiry:   24 * time.Hour,
			},
			RateLimit: security.RateLimitConfig{
				Enabled:           false,
				RequestsPerMinute: 120,
				BurstSize:         20,
			},
			Validation: security.ValidationConfig{
				MaxRequestSize: 1 << 20,
				AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			},
			Audit: security.AuditConfig{
				Enabled:       true,
				BufferSize:    1024,
				FlushInterval: 5 * time.Second,
			},
		},
		OpenAPI: middleware.ValidationConfig{
			Enabled:    true,
			SpecPath:   "docs/openapi.yaml",
			StrictMode: false,
		},
	}
}

// Validate checks invariants that the router relies on at construction time.
func (c *Config) Validate() error {
	if len(c.LLM.Providers) == 0 {
		return fmt.Errorf("llm.providers: at least one provider is required")
	}
	seen := make(map[string]bool, len(c.LLM.Providers))
	for _, p := range c.LLM.Providers {
		if p.ID == "" {
			return fmt.Errorf("llm.providers: every provider needs an id")
		}
		if seen[p.ID] {
			return fmt.Errorf("llm.providers: duplicate provider id %q", p.ID)
		}
		seen[p.ID] = true
		if p.Kind != "openai" && p.Kind != "anthropic" {
			return fmt.Errorf("llm.providers[%s]: kind must be openai or anthropic, got %q", p.ID, p.Kind)
		}
	}

	if c.Classifier.ConfidenceThreshold <= 0 || c.Classifier.ConfidenceThreshold > 1 {
		return fmt.Errorf("classifier.confidence_threshold must be in (0, 1]")
	}
	if c.Rag.SimilarityThreshold <= 0 || c.Rag.SimilarityThreshold > 1 {
		return fmt.Errorf("rag.similarity_threshold must be in (0, 1]")
	}
	if c.Rag.TopK <= 0 {
		return fmt.Errorf("rag.top_k must be positive")
	}
	if c.Router.TotalTimeoutMs <= 0 {
		return fmt.Errorf("router.total_timeout_ms must be positive")
	}
	if c.Router.MaxInFlight <= 0 {
		return fmt.Errorf("router.max_in_flight must be positive")
	}
	if c.Observability.WindowSize <= 0 {
		return fmt.Errorf("observability.window_size must be positive")
	}

	return nil
}

// ToSecurityMiddlewareConfig adapts the loaded security section into the
// shape middleware.NewSecurityMiddleware expects.
func (c *Config) ToSecurityMiddlewareConfig() *middleware.SecurityMiddlewareConfig {
	return &middleware.SecurityMiddlewareConfig{
		Auth:       &c.Security.Auth,
		RateLimit:  &c.Security.RateLimit,
		Validation: &c.Security.Validation,
		Audit:      &c.Security.Audit,
	}
}

// RouterConfigTimeout converts the millisecond field into a time.Duration
// for corerouter.Config.
func (c *Config) RouterConfigTimeout() time.Duration {
	return time.Duration(c.Router.TotalTimeoutMs) * time.Millisecond
}

// ToServerConfig adapts the loaded configuration into the shape
// server.NewServer expects, wiring in the security and validation
// middleware sections already parsed onto this Config.
func (c *Config) ToServerConfig() *server.ServerConfig {
	openapiCfg := c.OpenAPI
	return &server.ServerConfig{
		Port:           strconv.Itoa(c.Server.Port),
		ReadTimeout:    c.Server.ReadTimeout,
		WriteTimeout:   c.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
		Security:       c.ToSecurityMiddlewareConfig(),
		Validation:     &openapiCfg,
	}
}
