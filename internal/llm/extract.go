// ABOUTME: Tolerant extraction of completion text and usage from provider JSON
// ABOUTME: Handles OpenAI-style shapes plus string and content-part variants

package llm

// extractResult pulls the completion text, model name, and usage out of a
// decoded provider response. Providers disagree on shapes; every path here
// degrades to empty rather than failing.
func extractResult(raw map[string]any) *QueryResult {
	result := &QueryResult{}

	choice := firstChoice(raw)
	if choice != nil {
		if message, ok := choice["message"].(map[string]any); ok {
			result.Result = contentString(message["content"])
		}
		if result.Result == "" {
			result.Result = contentString(choice["text"])
		}
	}
	if result.Result == "" {
		if message, ok := raw["message"].(map[string]any); ok {
			result.Result = contentString(message["content"])
		}
	}

	result.Model = stringField(raw, "model")
	if result.Model == "" && choice != nil {
		result.Model = stringField(choice, "model")
	}

	result.Usage = extractUsage(raw)
	return result
}

func firstChoice(raw map[string]any) map[string]any {
	choices, ok := raw["choices"].([]any)
	if !ok || len(choices) == 0 {
		return nil
	}
	choice, _ := choices[0].(map[string]any)
	return choice
}

// contentString flattens a content value that may be a plain string, a list
// of content parts, or an object with a text/content field.
func contentString(v any) string {
	switch content := v.(type) {
	case string:
		return content
	case []any:
		var out string
		for _, part := range content {
			out += contentString(part)
		}
		return out
	case map[string]any:
		if text, ok := content["text"].(string); ok {
			return text
		}
		return contentString(content["content"])
	}
	return ""
}

// extractUsage normalizes token counts across snake_case and camelCase
// spellings; a missing total is derived from the parts.
func extractUsage(raw map[string]any) Usage {
	usage, _ := raw["usage"].(map[string]any)
	u := Usage{
		PromptTokens:     intField(usage, "prompt_tokens", "promptTokens"),
		CompletionTokens: intField(usage, "completion_tokens", "completionTokens"),
		TotalTokens:      intField(usage, "total_tokens", "totalTokens"),
	}
	if u.TotalTokens == 0 {
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
	}
	return u
}

func intField(m map[string]any, keys ...string) int {
	for _, key := range keys {
		if n, ok := m[key].(float64); ok && n != 0 {
			return int(n)
		}
	}
	return 0
}
