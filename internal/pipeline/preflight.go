package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/libraxis-labs/screenscribe/internal/config"
	"github.com/libraxis-labs/screenscribe/internal/transport"
)

// defaultEndpoints names the endpoint path used when a role has no override.
var defaultEndpoints = map[string]string{
	"stt":    "/v1/audio/transcriptions",
	"llm":    "/v1/responses",
	"vision": "/v1/responses",
}

// Preflight probes every endpoint a run will use before stage 1 executes.
// A fatal error (bad API key, unknown model) aborts the run; a transport-
// level failure (timeout, connection refused) is logged and treated as
// non-fatal, per §4.8, since the endpoint may simply be temporarily
// unreachable and the run should still be attempted.
func Preflight(ctx context.Context, client *transport.Client, cfg *config.Config, useSemantic, useVision bool) []error {
	var fatal []error

	probe := func(role string) {
		apiKey, baseURL, endpoint, model, err := config.ResolveRole(cfg, role, defaultEndpoints[role])
		if err != nil {
			fatal = append(fatal, err)
			return
		}
		roleClient := client
		if apiKey != cfg.Endpoint.APIKey {
			roleClient = transport.New(apiKey)
		}

		if role == "stt" {
			if err := roleClient.ProbeSTT(ctx, baseURL, endpoint); err != nil {
				if isFatalProbeError(err) {
					fatal = append(fatal, fmt.Errorf("preflight: stt: %w", err))
				} else {
					slog.Warn("preflight: probe failed, continuing", "role", role, "error", err)
				}
			}
			return
		}
		if err := roleClient.ProbeLLM(ctx, baseURL, endpoint, model); err != nil {
			if isFatalProbeError(err) {
				fatal = append(fatal, fmt.Errorf("preflight: %s: %w", role, err))
			} else {
				slog.Warn("preflight: probe failed, continuing", "role", role, "error", err)
			}
		}
	}

	probe("stt")
	if useSemantic {
		probe("llm")
	}
	if useVision {
		probe("vision")
	}

	return fatal
}

// isFatalProbeError reports whether err represents an authoritative
// rejection (bad API key, unknown model) rather than a transient transport
// failure. [transport.Client]'s Probe* methods wrap these distinctly.
func isFatalProbeError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "api-key error") || strings.Contains(msg, "model-name error")
}
