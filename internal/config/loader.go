package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// strippedBaseURLSuffixes lists the well-known endpoint suffixes that
// [normalizeBaseURL] removes before role endpoints are derived from a
// configured base URL.
var strippedBaseURLSuffixes = []string{
	"/v1/responses",
	"/v1/audio/transcriptions",
	"/v1/chat/completions",
	"/v1",
}

// Load reads the YAML configuration file at path, applies environment
// overrides, and returns a validated [Config]. A missing file is not an
// error: Load builds the Config from environment overrides and defaults
// alone, then validates it, so that environment variables alone can drive
// a run.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := &Config{}
			ApplyEnv(cfg, os.Environ())
			normalizeDefaults(cfg)
			return cfg, Validate(cfg)
		}
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, layers environment overrides,
// normalizes defaults, and validates the result. Useful in tests where
// configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyEnv(cfg, os.Environ())
	normalizeDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables onto cfg. LIBRAXIS_API_KEY sets the
// default API key; LIBRAXIS_STT_API_KEY / LIBRAXIS_LLM_API_KEY /
// LIBRAXIS_VISION_API_KEY set per-role keys, and the matching
// *_API_BASE / *_ENDPOINT / *_MODEL variables set per-role overrides. A
// config file value always wins over an environment value that is empty;
// either way a non-empty environment value overrides a file default only
// when the file left the field unset.
func ApplyEnv(cfg *Config, environ []string) {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			env[kv[:i]] = kv[i+1:]
		}
	}

	if cfg.Endpoint.APIKey == "" {
		cfg.Endpoint.APIKey = env["LIBRAXIS_API_KEY"]
	}
	if cfg.Endpoint.BaseURL == "" {
		cfg.Endpoint.BaseURL = normalizeBaseURL(env["LIBRAXIS_API_BASE"])
	}

	applyRoleEnv(&cfg.Endpoint.STT, env, "STT")
	applyRoleEnv(&cfg.Endpoint.LLM, env, "LLM")
	applyRoleEnv(&cfg.Endpoint.Vision, env, "VISION")
}

func applyRoleEnv(role *RoleEndpoint, env map[string]string, prefix string) {
	if role.APIKey == "" {
		role.APIKey = env["LIBRAXIS_"+prefix+"_API_KEY"]
	}
	if role.BaseURL == "" {
		role.BaseURL = normalizeBaseURL(env["LIBRAXIS_"+prefix+"_API_BASE"])
	}
	if role.Endpoint == "" {
		role.Endpoint = env["LIBRAXIS_"+prefix+"_ENDPOINT"]
	}
	if role.Model == "" {
		role.Model = env["LIBRAXIS_"+prefix+"_MODEL"]
	}
}

// normalizeBaseURL strips the well-known endpoint suffixes from raw so that a
// base URL pointing directly at a full endpoint still works as a base.
func normalizeBaseURL(raw string) string {
	url := strings.TrimRight(raw, "/")
	for _, suffix := range strippedBaseURLSuffixes {
		if strings.HasSuffix(url, suffix) {
			return strings.TrimSuffix(url, suffix)
		}
	}
	return url
}

// normalizeDefaults fills unset [PipelineConfig] fields from [Defaults] and
// normalizes any base URL set directly in the config file.
func normalizeDefaults(cfg *Config) {
	d := Defaults()
	if cfg.Pipeline.Workers <= 0 {
		cfg.Pipeline.Workers = d.Workers
	}
	if cfg.Pipeline.StaggerSeconds <= 0 {
		cfg.Pipeline.StaggerSeconds = d.StaggerSeconds
	}
	if cfg.Pipeline.NoSpeechThreshold <= 0 {
		cfg.Pipeline.NoSpeechThreshold = d.NoSpeechThreshold
	}
	if cfg.Pipeline.MaxGapSeconds <= 0 {
		cfg.Pipeline.MaxGapSeconds = d.MaxGapSeconds
	}
	cfg.Endpoint.BaseURL = normalizeBaseURL(cfg.Endpoint.BaseURL)
	cfg.Endpoint.STT.BaseURL = normalizeBaseURL(cfg.Endpoint.STT.BaseURL)
	cfg.Endpoint.LLM.BaseURL = normalizeBaseURL(cfg.Endpoint.LLM.BaseURL)
	cfg.Endpoint.Vision.BaseURL = normalizeBaseURL(cfg.Endpoint.Vision.BaseURL)
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing every validation failure found; soft issues are
// logged as warnings rather than treated as fatal.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.logLevelValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d is out of range", cfg.Server.Port))
	}

	if cfg.Endpoint.APIKey == "" && cfg.Endpoint.STT.APIKey == "" {
		slog.Warn("no API key configured for stt role; set LIBRAXIS_API_KEY or LIBRAXIS_STT_API_KEY")
	}
	if cfg.Endpoint.APIKey == "" && cfg.Endpoint.LLM.APIKey == "" {
		slog.Warn("no API key configured for llm role; set LIBRAXIS_API_KEY or LIBRAXIS_LLM_API_KEY")
	}

	if cfg.Pipeline.Workers < 0 {
		errs = append(errs, fmt.Errorf("pipeline.workers %d must be >= 0", cfg.Pipeline.Workers))
	}
	if cfg.Pipeline.NoSpeechThreshold < 0 || cfg.Pipeline.NoSpeechThreshold > 1 {
		errs = append(errs, fmt.Errorf("pipeline.no_speech_threshold %.2f must be in [0,1]", cfg.Pipeline.NoSpeechThreshold))
	}

	return errors.Join(errs...)
}

// ResolveRole computes the effective API key, base URL, endpoint path, and
// model for a single pipeline role, falling back to the shared defaults in
// [EndpointConfig] wherever the role override is empty.
func ResolveRole(cfg *Config, role string, defaultEndpoint string) (apiKey, baseURL, endpoint, model string, err error) {
	if err := validRoleName(role); err != nil {
		return "", "", "", "", err
	}
	var r RoleEndpoint
	switch role {
	case "stt":
		r = cfg.Endpoint.STT
	case "llm":
		r = cfg.Endpoint.LLM
	case "vision":
		r = cfg.Endpoint.Vision
	}

	apiKey = r.APIKey
	if apiKey == "" {
		apiKey = cfg.Endpoint.APIKey
	}
	baseURL = r.BaseURL
	if baseURL == "" {
		baseURL = cfg.Endpoint.BaseURL
	}
	endpoint = r.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	model = r.Model
	return apiKey, baseURL, endpoint, model, nil
}

// portString renders a port number as a decimal string.
func portString(port int) string {
	if port == 0 {
		return "(default)"
	}
	return strconv.Itoa(port)
}
