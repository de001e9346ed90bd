package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StripCodeFence removes a surrounding Markdown code fence. Some models add
// one even in JSON mode.
func StripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```")
	// drop the language tag, e.g. ```json
	if nl := strings.IndexByte(content, '\n'); nl >= 0 && !strings.ContainsAny(content[:nl], "{[") {
		content = content[nl+1:]
	} else {
		content = strings.TrimPrefix(content, "json")
	}
	content = strings.TrimSpace(content)
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

// ParseJSONObject decodes a model response into a JSON object.
func ParseJSONObject(content string) (map[string]any, error) {
	content = StripCodeFence(content)
	if content == "" {
		return nil, fmt.Errorf("%w: empty response", ErrInvalidJSON)
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(content), &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if obj == nil {
		return nil, fmt.Errorf("%w: got null", ErrInvalidJSON)
	}
	return obj, nil
}
