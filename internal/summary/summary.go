// Package summary generates the executive and visual summaries that close
// out a review run: two short LLM calls over the deduplicated findings.
// Failure is always non-fatal — the coordinator records the error and
// proceeds with an empty summary rather than aborting the run.
package summary

import (
	"context"
	"fmt"
	"strings"

	"github.com/libraxis-labs/screenscribe/internal/prompts"
	"github.com/libraxis-labs/screenscribe/internal/transport"
	"github.com/libraxis-labs/screenscribe/pkg/types"
)

// Generator produces executive and visual summaries from a finding list.
type Generator struct {
	client   *transport.Client
	baseURL  string
	endpoint string
	model    string
	language string
}

// Option configures a [Generator].
type Option func(*Generator)

// WithLanguage sets the prompt language.
func WithLanguage(language string) Option {
	return func(g *Generator) { g.language = language }
}

// New constructs a Generator calling endpoint on client.
func New(client *transport.Client, baseURL, endpoint, model string, opts ...Option) *Generator {
	g := &Generator{client: client, baseURL: baseURL, endpoint: endpoint, model: model, language: "en"}
	for _, o := range opts {
		o(g)
	}
	return g
}

// visualCategories are the categories summarized by GenerateVisual.
var visualCategories = map[types.Category]bool{
	types.CategoryUI:            true,
	types.CategoryAccessibility: true,
}

// GenerateExecutive summarizes every finding in 3-6 sentences.
func (g *Generator) GenerateExecutive(ctx context.Context, findings []types.UnifiedFinding) (string, error) {
	return g.generate(ctx, prompts.RoleExecutiveSummary, findings)
}

// GenerateVisual summarizes only UI/accessibility findings in 2-4 sentences.
// It returns "" without error if no finding in that category exists.
func (g *Generator) GenerateVisual(ctx context.Context, findings []types.UnifiedFinding) (string, error) {
	var visual []types.UnifiedFinding
	for _, f := range findings {
		if visualCategories[f.Category] {
			visual = append(visual, f)
		}
	}
	if len(visual) == 0 {
		return "", nil
	}
	return g.generate(ctx, prompts.RoleVisualSummary, visual)
}

func (g *Generator) generate(ctx context.Context, role prompts.Role, findings []types.UnifiedFinding) (string, error) {
	prompt, err := prompts.Get(role, g.language, false)
	if err != nil {
		return "", err
	}
	userText := strings.Replace(prompt, "{{.Findings}}", renderFindings(findings), 1)

	content, _, err := g.client.Stream(ctx, transport.StreamRequest{
		BaseURL:  g.baseURL,
		Endpoint: g.endpoint,
		Model:    g.model,
		UserText: userText,
	}, transport.StreamCallbacks{})
	if err != nil {
		return "", fmt.Errorf("summary: generate %s: %w", role, err)
	}
	return strings.TrimSpace(content), nil
}

func renderFindings(findings []types.UnifiedFinding) string {
	var sb strings.Builder
	for _, f := range findings {
		fmt.Fprintf(&sb, "- [%s/%s] %s\n", f.Category, f.Severity, f.Summary)
	}
	return sb.String()
}
