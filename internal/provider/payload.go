package provider

import (
	"net/http"

	"github.com/osvaldoandrade/geoscope/pkg/domain"
)

const (
	defaultOpenAIModel    = "gpt-3.5-turbo"
	defaultAnthropicModel = "claude-3-sonnet-20240229"

	anthropicVersion = "2023-06-01"
	userAgent        = "geoscope/1.0"

	maxTokens   = 500
	temperature = 0.7
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// buildPayload constructs the provider-family request body for one prompt.
// The generic shape populates both chat- and completion-style fields since
// the remote contract is unknown.
func buildPayload(kind domain.ProviderKind, model, prompt string) map[string]any {
	messages := []chatMessage{{Role: "user", Content: prompt}}

	switch kind {
	case domain.ProviderOpenAI:
		if model == "" {
			model = defaultOpenAIModel
		}
		return map[string]any{
			"model":       model,
			"messages":    messages,
			"max_tokens":  maxTokens,
			"temperature": temperature,
		}
	case domain.ProviderAnthropic:
		if model == "" {
			model = defaultAnthropicModel
		}
		return map[string]any{
			"model":      model,
			"max_tokens": maxTokens,
			"messages":   messages,
		}
	case domain.ProviderXedu:
		if model == "" {
			model = defaultOpenAIModel
		}
		return map[string]any{
			"model":       model,
			"messages":    messages,
			"max_tokens":  maxTokens,
			"temperature": temperature,
			"stream":      false,
		}
	default:
		if model == "" {
			model = defaultOpenAIModel
		}
		return map[string]any{
			"model":      model,
			"messages":   messages,
			"max_tokens": maxTokens,
			"prompt":     prompt,
		}
	}
}

// setHeaders applies content-type, user-agent and the family's auth header.
// A missing API key simply means no auth header; whether that is an error is
// the caller's concern.
func setHeaders(h http.Header, kind domain.ProviderKind, apiKey string) {
	h.Set("Content-Type", "application/json")
	h.Set("User-Agent", userAgent)
	if apiKey == "" {
		return
	}
	if kind == domain.ProviderAnthropic {
		h.Set("x-api-key", apiKey)
		h.Set("anthropic-version", anthropicVersion)
		return
	}
	h.Set("Authorization", "Bearer "+apiKey)
}
