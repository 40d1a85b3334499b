package llm

import (
	"encoding/json"
	"strings"

	"github.com/rias-ai/research-engine/internal/domain"
)

// DecodeObject is a best-effort structured decode for model output. Models
// asked for JSON still wrap it in markdown fences or prefix it with "json"
// often enough that a strict json.Unmarshal would reject usable replies.
// The contract is strict: either v is populated from a single JSON object,
// or a typed decode error is returned. The heuristics never leak further
// than this function.
func DecodeObject(raw string, v any) error {
	cleaned := cleanRaw(raw)

	if err := json.Unmarshal([]byte(cleaned), v); err == nil {
		return nil
	}

	// Second pass: trim to the outermost object braces.
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(cleaned[start:end+1]), v); err == nil {
			return nil
		}
	}

	err := json.Unmarshal([]byte(cleaned), v)
	return domain.DecodeError("model output is not valid JSON", err)
}

// cleanRaw strips markdown fences and a leading "json" tag.
func cleanRaw(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		parts := strings.SplitN(raw, "```", 3)
		if len(parts) > 2 {
			raw = parts[1]
		} else if len(parts) > 1 {
			raw = parts[1]
		}
	}
	raw = strings.TrimSpace(raw)
	if len(raw) >= 4 && strings.EqualFold(raw[:4], "json") {
		raw = strings.TrimSpace(raw[4:])
	}
	return raw
}
