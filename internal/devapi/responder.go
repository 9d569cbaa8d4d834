package devapi

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sourpat/payresolve/internal/llm"
)

const (
	summaryTemperature = 0.3
	promptSnippetLimit = 800
	localSnippetLimit  = 400
	localSnippetCount  = 3
)

const systemPrompt = "You are a support assistant that writes crisp, step-by-step guidance."

// Responder writes the assistant summary. With no provider it produces a
// deterministic local summary, and any provider failure falls back to it.
type Responder struct {
	provider llm.Provider
	model    string
	logger   *zap.Logger
}

// NewResponder returns a responder. provider may be nil.
func NewResponder(provider llm.Provider, model string, logger *zap.Logger) *Responder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Responder{provider: provider, model: model, logger: logger}
}

// HasProvider reports whether summaries come from a model.
func (r *Responder) HasProvider() bool { return r.provider != nil }

// Summarize answers query using snippets.
func (r *Responder) Summarize(ctx context.Context, query string, snippets []string) string {
	if r.provider == nil {
		return LocalSummary(query, snippets)
	}

	resp, err := r.provider.Complete(ctx, llm.CompletionRequest{
		Model: r.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: buildPrompt(query, snippets)},
		},
		Temperature: summaryTemperature,
	})
	if err != nil {
		r.logger.Warn("summary completion failed, using local summary",
			zap.String("provider", r.provider.Name()), zap.Error(err))
		return LocalSummary(query, snippets)
	}
	r.logger.Debug("summary completion",
		zap.String("model", resp.Model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens))
	if content := strings.TrimSpace(resp.Content); content != "" {
		return content
	}
	return LocalSummary(query, snippets)
}

func buildPrompt(query string, snippets []string) string {
	var b strings.Builder
	b.WriteString("You are a precise support assistant. ")
	b.WriteString("Given an error/query and relevant support snippets, produce a concise, actionable response. ")
	b.WriteString("Use bullet points, avoid fluff, and call out concrete checks/fixes.\n\n")
	fmt.Fprintf(&b, "User query:\n%s\n\n", query)
	b.WriteString("Relevant support snippets:\n")
	for i, s := range snippets {
		fmt.Fprintf(&b, "%d. %s\n", i+1, clip(s, promptSnippetLimit))
	}
	b.WriteString("\nNow provide the best possible short, actionable response for the user. ")
	b.WriteString("If data is missing, say what to collect next.")
	return b.String()
}

// LocalSummary is the model-free summary of the first few snippets.
func LocalSummary(query string, snippets []string) string {
	if len(snippets) == 0 {
		return fmt.Sprintf("Summary for: %s\n\nNo snippets available. Please provide more context or logs.", query)
	}

	n := min(localSnippetCount, len(snippets))
	bullets := make([]string, 0, n)
	for _, s := range snippets[:n] {
		bullets = append(bullets, "- "+clip(s, localSnippetLimit))
	}

	return fmt.Sprintf("Summary for: %s\n\n", query) +
		"Key points from available support snippets:\n" + strings.Join(bullets, "\n") + "\n\n" +
		"Next steps:\n" +
		"- Verify relevant configuration and credentials for the failing component.\n" +
		"- Reproduce with the same inputs; collect logs/correlation IDs.\n" +
		"- If a gateway or upstream is involved, check recent changes and retry policy."
}

// clip trims s and cuts it to limit characters, marking the cut.
func clip(s string, limit int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return strings.TrimRight(string(r[:limit]), " \t\r\n") + " ..."
}
