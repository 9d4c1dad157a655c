package provider

import (
	"encoding/json"
	"fmt"
)

// extractContent pulls a plain-text answer out of a parsed response body.
// Shapes are tried in priority order: OpenAI choices, Anthropic content,
// then the generic response/text/output fields. With strict unset, an
// unrecognized shape degrades to the stringified body, matching the legacy
// lenient behavior.
func extractContent(body map[string]any, strict bool) (string, error) {
	if content, ok := fromChoices(body); ok {
		return content, nil
	}
	if raw, ok := body["content"]; ok {
		return fromAnthropicContent(raw), nil
	}
	for _, field := range []string{"response", "text", "output"} {
		if v, ok := body[field]; ok {
			if s, ok := v.(string); ok {
				return s, nil
			}
			return stringify(v), nil
		}
	}
	if strict {
		return "", &DispatchError{Class: FailureExtract, Message: fmt.Sprintf("unable to parse provider response: %s", stringify(body))}
	}
	return stringify(body), nil
}

func fromChoices(body map[string]any) (string, bool) {
	raw, ok := body["choices"]
	if !ok {
		return "", false
	}
	choices, ok := raw.([]any)
	if !ok || len(choices) == 0 {
		return "", false
	}
	first, ok := choices[0].(map[string]any)
	if !ok {
		return "", false
	}
	if msg, ok := first["message"].(map[string]any); ok {
		if content, ok := msg["content"].(string); ok {
			return content, true
		}
	}
	if text, ok := first["text"].(string); ok {
		return text, true
	}
	return "", false
}

func fromAnthropicContent(raw any) string {
	if blocks, ok := raw.([]any); ok {
		if len(blocks) == 0 {
			return stringify(raw)
		}
		if block, ok := blocks[0].(map[string]any); ok {
			if text, ok := block["text"].(string); ok {
				return text
			}
		}
		return stringify(blocks[0])
	}
	if s, ok := raw.(string); ok {
		return s
	}
	return stringify(raw)
}

func stringify(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
