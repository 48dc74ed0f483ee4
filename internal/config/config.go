// Package config provides configuration loading for matchd.
package config

import "fmt"

// Config is the root matchd configuration.
type Config struct {
	Pipeline      PipelineConfig      `koanf:"pipeline"`
	Collaborators CollaboratorsConfig `koanf:"collaborators"`
	Logging       LoggingConfig       `koanf:"logging"`
	Telemetry     TelemetryConfig     `koanf:"telemetry"`
}

// PipelineConfig holds batch pipeline settings.
type PipelineConfig struct {
	MaxConcurrency int      `koanf:"max_concurrency"`
	MaxRetries     int      `koanf:"max_retries"`
	TaskTimeout    Duration `koanf:"task_timeout"`
	Profile        string   `koanf:"profile"`
}

// CollaboratorsConfig holds baseline stage parameters.
type CollaboratorsConfig struct {
	Extractor ExtractorConfig `koanf:"extractor"`
	Searcher  SearcherConfig  `koanf:"searcher"`
	Matcher   MatcherConfig   `koanf:"matcher"`
}

// ExtractorConfig holds extractor defaults.
type ExtractorConfig struct {
	DetailLevel string `koanf:"detail_level"`
}

// SearcherConfig holds searcher defaults.
type SearcherConfig struct {
	SimilarityThreshold float64 `koanf:"similarity_threshold"`
	MaxResults          int     `koanf:"max_results"`
}

// MatcherConfig holds matcher defaults.
type MatcherConfig struct {
	MinConfidence float64 `koanf:"min_confidence"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	Enabled        bool     `koanf:"enabled"`
	Endpoint       string   `koanf:"endpoint"`
	Protocol       string   `koanf:"protocol"`
	Insecure       bool     `koanf:"insecure"`
	ExportInterval Duration `koanf:"export_interval"`
}

// NewDefaultConfig returns production-ready defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			MaxConcurrency: 4,
			MaxRetries:     3,
			Profile:        "standard",
		},
		Collaborators: CollaboratorsConfig{
			Extractor: ExtractorConfig{DetailLevel: "standard"},
			Searcher:  SearcherConfig{SimilarityThreshold: 0.6, MaxResults: 10},
			Matcher:   MatcherConfig{MinConfidence: 0.6},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Enabled:  false,
			Endpoint: "localhost:4317",
			Protocol: "grpc",
			Insecure: true,
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Pipeline.MaxConcurrency <= 0 {
		return fmt.Errorf("pipeline.max_concurrency must be positive, got %d", c.Pipeline.MaxConcurrency)
	}
	if c.Pipeline.MaxRetries < 0 {
		return fmt.Errorf("pipeline.max_retries must not be negative, got %d", c.Pipeline.MaxRetries)
	}
	switch c.Pipeline.Profile {
	case "strict", "standard", "lenient", "permissive":
	default:
		return fmt.Errorf("pipeline.profile must be one of strict, standard, lenient, permissive; got %q", c.Pipeline.Profile)
	}
	if t := c.Collaborators.Searcher.SimilarityThreshold; t < 0 || t > 1 {
		return fmt.Errorf("collaborators.searcher.similarity_threshold must be in [0,1], got %f", t)
	}
	if c.Collaborators.Searcher.MaxResults <= 0 {
		return fmt.Errorf("collaborators.searcher.max_results must be positive, got %d", c.Collaborators.Searcher.MaxResults)
	}
	if t := c.Collaborators.Matcher.MinConfidence; t < 0 || t > 1 {
		return fmt.Errorf("collaborators.matcher.min_confidence must be in [0,1], got %f", t)
	}
	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry.endpoint is required when telemetry is enabled")
	}
	return nil
}
