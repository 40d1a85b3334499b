// Package config provides unified configuration loading for the research engine.
// Supports YAML files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the research engine.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Workspace     WorkspaceConfig     `yaml:"workspace"`
	LLM           LLMConfig           `yaml:"llm"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	MaxUploadBytes   int64         `yaml:"max_upload_bytes"`
	AllowedOrigins   []string      `yaml:"allowed_origins"`
}

// WorkspaceConfig holds on-disk layout settings for processing sessions.
type WorkspaceConfig struct {
	ResultsDir   string `yaml:"results_dir"`
	UploadDir    string `yaml:"upload_dir"`
	TemplatePath string `yaml:"template_path"`
}

// LLMConfig holds generation API settings.
type LLMConfig struct {
	APIKey        string        `yaml:"api_key"` // normally from OPENROUTER_API_KEY
	Model         string        `yaml:"model"`
	MaxTokens     int           `yaml:"max_tokens"`
	Temperature   float64       `yaml:"temperature"`
	TruncateLimit int           `yaml:"truncate_limit"`
	MaxRetries    int           `yaml:"max_retries"`
	Timeout       time.Duration `yaml:"timeout"`
}

// PipelineConfig holds stage execution settings.
type PipelineConfig struct {
	ImageQuality int `yaml:"image_quality"`
	// StageTimeout bounds a single stage invocation; 0 disables the bound
	// and a hung external call blocks its phase.
	StageTimeout time.Duration `yaml:"stage_timeout"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	ServiceName string `yaml:"service_name"`
}

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8090,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     60 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 10 * time.Second,
			MaxUploadBytes:   100 << 20,
			AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Workspace: WorkspaceConfig{
			ResultsDir:   "results",
			UploadDir:    "data/raw_pdfs",
			TemplatePath: "templates/paper_comparison_template.xlsx",
		},
		LLM: LLMConfig{
			Model:         "openai/gpt-4o-mini",
			MaxTokens:     4096,
			Temperature:   0.2,
			TruncateLimit: 25000,
			MaxRetries:    3,
			Timeout:       120 * time.Second,
		},
		Pipeline: PipelineConfig{
			ImageQuality: 85,
			StageTimeout: 0,
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "console",
			ServiceName: "research-engine",
		},
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Workspace.ResultsDir == "" {
		return fmt.Errorf("workspace.results_dir must not be empty")
	}
	if c.Workspace.TemplatePath == "" {
		return fmt.Errorf("workspace.template_path must not be empty")
	}
	if c.Pipeline.ImageQuality < 1 || c.Pipeline.ImageQuality > 100 {
		return fmt.Errorf("pipeline.image_quality out of range: %d", c.Pipeline.ImageQuality)
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm.max_tokens must be positive")
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries must not be negative")
	}
	return nil
}

// applyEnvOverrides maps selected environment variables onto the config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("RE_RESULTS_DIR"); v != "" {
		cfg.Workspace.ResultsDir = v
	}
	if v := os.Getenv("RE_TEMPLATE_PATH"); v != "" {
		cfg.Workspace.TemplatePath = v
	}
	if v := os.Getenv("RE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("RE_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv("RE_LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}
