// Package config provides the configuration schema, loader, and environment
// resolution for the ScreenScribe review engine.
package config

import "fmt"

// Config is the root configuration structure for ScreenScribe. It is
// typically loaded from a YAML file using [Load] or [LoadFromReader] and then
// layered with environment variable overrides via [ApplyEnv].
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Endpoint EndpointConfig `yaml:"endpoint"`
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// ServerConfig holds logging and interactive-UI settings.
type ServerConfig struct {
	// LogLevel controls verbosity. Valid values: "debug", "info", "warn", "error".
	LogLevel string `yaml:"log_level"`

	// Serve starts the read-only progress/report browser UI alongside a review run.
	Serve bool `yaml:"serve"`

	// Port is the TCP port the browser UI listens on when Serve is true.
	Port int `yaml:"port"`
}

// EndpointConfig resolves the API key and base URLs for the three external
// model roles the pipeline depends on: speech-to-text, language model
// (semantic pre-filter / summary), and vision-language model (unified
// analysis). Each role may be pointed at a distinct base URL and model, or
// left empty to derive from APIKey/BaseURL.
type EndpointConfig struct {
	// APIKey is the default bearer token used for all three roles unless a
	// role-specific key is set.
	APIKey string `yaml:"api_key"`

	// BaseURL is the default API root. Common suffixes
	// (/v1/responses, /v1/audio/transcriptions, /v1/chat/completions, /v1)
	// are stripped before role endpoints are derived from it.
	BaseURL string `yaml:"base_url"`

	STT    RoleEndpoint `yaml:"stt"`
	LLM    RoleEndpoint `yaml:"llm"`
	Vision RoleEndpoint `yaml:"vision"`
}

// RoleEndpoint overrides the API key, base URL, endpoint path, or model for a
// single pipeline role. Any empty field falls back to [EndpointConfig]'s
// defaults.
type RoleEndpoint struct {
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
}

// PipelineConfig holds the tunable constants the pipeline coordinator and its
// stages read at startup. Zero values mean "use the documented default" — see
// [Defaults].
type PipelineConfig struct {
	// Workers is the fixed worker-pool size for the unified VLM analyzer.
	Workers int `yaml:"workers"`

	// StaggerSeconds is the per-task submission delay (task i starts after
	// i*StaggerSeconds).
	StaggerSeconds float64 `yaml:"stagger_seconds"`

	// NoSpeechThreshold is the average no_speech_prob above which a
	// transcription is rejected as an Audio Quality error.
	NoSpeechThreshold float64 `yaml:"no_speech_threshold"`

	// MaxGapSeconds is the merge gap used by the Keyword Detector.
	MaxGapSeconds float64 `yaml:"max_gap_seconds"`

	// KeywordsFile overrides the embedded default category->pattern table.
	KeywordsFile string `yaml:"keywords_file"`
}

// Defaults returns the documented default pipeline constants. Any zero field
// in a loaded [PipelineConfig] is filled from this table by [normalizeDefaults].
func Defaults() PipelineConfig {
	return PipelineConfig{
		Workers:           5,
		StaggerSeconds:    0.5,
		NoSpeechThreshold: 0.6,
		MaxGapSeconds:     5,
	}
}

func (c ServerConfig) logLevelValid() bool {
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func validRoleName(role string) error {
	switch role {
	case "stt", "llm", "vision":
		return nil
	default:
		return fmt.Errorf("config: unknown role %q", role)
	}
}
