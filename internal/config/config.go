// Package config handles application configuration from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	LLM           LLMConfig           `yaml:"llm"`
	Understanding UnderstandingConfig `yaml:"video_understanding"`
	Search        SearchConfig        `yaml:"search_sources"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	RateLimits    RateLimitConfig     `yaml:"rate_limits"`
	Logging       LoggingConfig       `yaml:"logging"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"` // sqlite file path
}

type LLMConfig struct {
	Provider  string `yaml:"provider"` // openai, anthropic, gemini, ollama
	Model     string `yaml:"model"`
	APIKey    string `yaml:"api_key"`
	OllamaURL string `yaml:"ollama_url"`
}

// UnderstandingConfig points at the external video understanding service.
type UnderstandingConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

type SearchConfig struct {
	DuckDuckGo bool `yaml:"duckduckgo"`
	Wikipedia  bool `yaml:"wikipedia"`
}

// PipelineConfig holds per-job deadlines and the verdict policy knobs.
type PipelineConfig struct {
	JobTimeoutSeconds    int `yaml:"job_timeout_seconds"`
	PhaseTimeoutSeconds  int `yaml:"phase_timeout_seconds"`
	FactCheckConcurrency int `yaml:"factcheck_concurrency"`
	MaxUploadMB          int `yaml:"max_upload_mb"`

	Thresholds ThresholdConfig `yaml:"thresholds"`
}

type ThresholdConfig struct {
	ModerateRisk        float64 `yaml:"moderate_risk"`
	HighRisk            float64 `yaml:"high_risk"`
	HighConfidenceFalse float64 `yaml:"high_confidence_false"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"default_requests_per_minute"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
		},
		Database: DatabaseConfig{
			Path: "./data/veriscope.db",
		},
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
		},
		Understanding: UnderstandingConfig{
			Model: "pegasus-1.2",
		},
		Search: SearchConfig{
			DuckDuckGo: true,
			Wikipedia:  false,
		},
		Pipeline: PipelineConfig{
			JobTimeoutSeconds:    600,
			PhaseTimeoutSeconds:  120,
			FactCheckConcurrency: 5,
			MaxUploadMB:          500,
			Thresholds: ThresholdConfig{
				ModerateRisk:        50,
				HighRisk:            70,
				HighConfidenceFalse: 80,
			},
		},
		RateLimits: RateLimitConfig{
			RequestsPerMinute: 60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s (run with --generate-config to create one)", path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Interpolate environment variables
	content := interpolateEnvVars(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// GenerateSample creates a sample configuration file.
func GenerateSample(path string) error {
	sample := `# Veriscope Configuration
# See documentation for all options

server:
  port: 8080

database:
  path: ./data/veriscope.db

llm:
  provider: openai  # openai, anthropic, gemini, ollama
  model: gpt-4o-mini
  api_key: ${OPENAI_API_KEY}

  # For Google Gemini:
  # provider: gemini
  # model: gemini-2.0-flash
  # api_key: ${GEMINI_API_KEY}

  # For Ollama (local):
  # provider: ollama
  # model: llama3
  # ollama_url: http://localhost:11434

video_understanding:
  base_url: https://api.twelvelabs.io/v1.3
  api_key: ${TL_API_KEY}
  model: pegasus-1.2

search_sources:
  duckduckgo: true
  wikipedia: false

pipeline:
  job_timeout_seconds: 600
  phase_timeout_seconds: 120
  factcheck_concurrency: 5
  max_upload_mb: 500
  thresholds:
    moderate_risk: 50
    high_risk: 70
    high_confidence_false: 80

rate_limits:
  default_requests_per_minute: 60

logging:
  level: info  # debug, info, warn, error
  format: json # json or text
`
	return os.WriteFile(path, []byte(sample), 0644)
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	validProviders := map[string]bool{"openai": true, "anthropic": true, "gemini": true, "ollama": true}
	if !validProviders[c.LLM.Provider] {
		return fmt.Errorf("unsupported LLM provider: %s", c.LLM.Provider)
	}

	switch c.LLM.Provider {
	case "openai", "anthropic", "gemini":
		if c.LLM.APIKey == "" {
			return fmt.Errorf("%s API key is required", c.LLM.Provider)
		}
	}

	if c.Understanding.BaseURL == "" {
		return fmt.Errorf("video understanding base_url is required")
	}

	if c.Pipeline.JobTimeoutSeconds <= 0 {
		return fmt.Errorf("job_timeout_seconds must be positive")
	}
	if c.Pipeline.PhaseTimeoutSeconds <= 0 {
		return fmt.Errorf("phase_timeout_seconds must be positive")
	}
	if c.Pipeline.FactCheckConcurrency < 1 {
		return fmt.Errorf("factcheck_concurrency must be at least 1")
	}

	return nil
}

// interpolateEnvVars replaces ${VAR_NAME} with environment variable values.
func interpolateEnvVars(content string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(content, func(match string) string {
		varName := strings.TrimPrefix(strings.TrimSuffix(match, "}"), "${")
		if value := os.Getenv(varName); value != "" {
			return value
		}
		return match // Keep original if not set
	})
}
