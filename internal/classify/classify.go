package classify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/schema"

	"filefolio-backend/internal/shared/telemetry"
)

const (
	// defaultTimeout bounds the inference call; expiry routes to the
	// deterministic fallback exactly like an unreachable service.
	defaultTimeout = 30 * time.Second

	// excerptLimit bounds how much document text is sent to the model.
	excerptLimit = 1000
)

// Classifier derives {tags, category} from document text via a local Ollama
// model, with a deterministic rule-based fallback. A nil *Classifier is valid
// and always uses the fallback.
type Classifier struct {
	model   llms.Model
	timeout time.Duration
}

// New connects to an Ollama server. The model is not contacted until the
// first Classify call.
func New(host, model string) (*Classifier, error) {
	llm, err := ollama.New(ollama.WithServerURL(host), ollama.WithModel(model))
	if err != nil {
		return nil, fmt.Errorf("ollama client: %w", err)
	}
	return &Classifier{model: llm, timeout: defaultTimeout}, nil
}

// Classify returns tags and a category for the given text. It never fails:
// any service error, timeout or unusable reply degrades to Fallback.
func (c *Classifier) Classify(ctx context.Context, text, filename string, existingTags []string) ([]string, string) {
	if c == nil || c.model == nil {
		return Fallback(text)
	}

	timeout := c.timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	prompt := buildPrompt(excerpt(text), filename, existingTags)
	content := []llms.MessageContent{
		{
			Role:  schema.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(prompt)},
		},
	}

	resp, err := c.model.GenerateContent(ctx, content, llms.WithTemperature(0.0))
	if err != nil {
		telemetry.Warn("classify.fallback", map[string]any{"reason": "service", "error": err.Error()})
		return Fallback(text)
	}
	if len(resp.Choices) == 0 {
		telemetry.Warn("classify.fallback", map[string]any{"reason": "empty response"})
		return Fallback(text)
	}

	parsed, ok := parseResponse(resp.Choices[0].Content)
	if !ok {
		telemetry.Warn("classify.fallback", map[string]any{"reason": "unparseable response"})
		return Fallback(text)
	}

	tags := filterTags(parsed.Tags, existingTags, parsed.Category)
	return tags, parsed.Category
}

func buildPrompt(text, filename string, existingTags []string) string {
	existing := "none yet"
	if len(existingTags) > 0 {
		existing = strings.Join(existingTags, ", ")
	}

	return fmt.Sprintf(`Analyze this document excerpt and provide metadata.

CRITICAL REQUIREMENT - TAGS MUST BE IN ENGLISH:
- Even if the document is in German, French, or any other language, tags MUST be in English
- TRANSLATE concepts to English tags (e.g., "Lohnabrechnung" -> "payroll" or "salary", "Brutto" -> "gross")
- Do NOT copy foreign words directly into tags
- Existing tags in the system: %s
- STRONGLY PREFER to reuse existing tags when they are relevant
- Only create new English tags if existing tags don't apply
- Keep tags lowercase and simple (e.g., "invoice", "payroll", "salary", "tax", "2024")

Provide:
1. A category (choose one: %s)
2. Relevant tags (3-5 English keywords that describe the document)

Document excerpt:
%s

Original filename: %s

Respond in JSON format:
{
  "category": "category name",
  "tags": ["english_tag1", "english_tag2", "english_tag3"]
}`, existing, strings.Join(categoryNames(), ", "), text, filename)
}

// filterTags drops tags with non-ASCII characters (the model leaking
// source-language words despite instruction) and lower-cases the rest. The
// result is never empty: existing corpus tags or the category fill the gap.
func filterTags(tags, existingTags []string, category string) []string {
	var filtered []string
	for _, tag := range tags {
		if !isASCII(tag) {
			continue
		}
		if trimmed := strings.TrimSpace(strings.ToLower(tag)); trimmed != "" {
			filtered = append(filtered, trimmed)
		}
	}
	if len(filtered) > 0 {
		return filtered
	}

	if len(existingTags) > 0 {
		n := len(existingTags)
		if n > 3 {
			n = 3
		}
		return append([]string{}, existingTags[:n]...)
	}
	return []string{strings.ToLower(category)}
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > 127 {
			return false
		}
	}
	return true
}

func excerpt(text string) string {
	runes := []rune(text)
	if len(runes) <= excerptLimit {
		return text
	}
	return string(runes[:excerptLimit])
}
