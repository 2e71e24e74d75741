package classify

import (
	"encoding/json"
	"strings"
)

// parsedResponse is the structured block expected inside the model's reply.
type parsedResponse struct {
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
}

// parseResponse locates the first well-formed JSON block in a free-form model
// reply. Models wrap JSON in prose or markdown fences, so everything outside
// the outermost braces is ignored. A false return means the reply is
// unusable and the caller must take the deterministic fallback.
func parseResponse(raw string) (parsedResponse, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return parsedResponse{}, false
	}

	var out parsedResponse
	if err := json.Unmarshal([]byte(raw[start:end+1]), &out); err != nil {
		return parsedResponse{}, false
	}
	if out.Category == "" {
		out.Category = CategoryOther
	}
	return out, true
}
