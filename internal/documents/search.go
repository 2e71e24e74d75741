package documents

import (
	"strings"
	"time"
	"unicode"
)

// SearchQuery is a parsed search request: optional free text plus structured
// filters. All active filters combine with AND; the tag list is OR within
// itself.
type SearchQuery struct {
	Text     string
	Category string
	Tags     []string
	From     time.Time // zero means unbounded
	To       time.Time // inclusive upper bound; zero means unbounded
}

// HasText reports whether the query carries free text that survives
// tokenization.
func (q SearchQuery) HasText() bool {
	return buildTSQuery(q.Text) != ""
}

// ParseTagList splits a comma-separated tag string into trimmed tags.
func ParseTagList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// buildTSQuery turns free text into a tsquery expression. Reserved characters
// are stripped by tokenizing on non-alphanumerics, terms are AND-joined, and
// the final term gets a prefix wildcard so "payro" matches "payroll".
func buildTSQuery(text string) string {
	terms := searchTerms(text)
	if len(terms) == 0 {
		return ""
	}
	terms[len(terms)-1] += ":*"
	return strings.Join(terms, " & ")
}

// searchTerms tokenizes text into lower-cased alphanumeric terms.
func searchTerms(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// indexText derives the search-index entry for a document. The index is a
// pure projection of exactly these five fields; every write path must go
// through this single derivation.
func indexText(d Document) string {
	return strings.Join([]string{
		d.OriginalName,
		d.DisplayName,
		strings.Join(d.Tags, " "),
		d.Category,
		d.TextPreview,
	}, " ")
}
