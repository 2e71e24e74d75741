package classify

import "strings"

// CategoryOther is the sentinel category assigned when nothing better applies.
const CategoryOther = "Other"

// Categories is the fixed vocabulary a document category is chosen from.
var Categories = []string{
	"Invoice",
	"Receipt",
	"Contract",
	"Letter",
	"Report",
	"Form",
	"Statement",
	"Legal",
	"Medical",
	"Tax",
	"Insurance",
	CategoryOther,
}

func categoryNames() []string {
	return Categories
}

// fallbackYears is the fixed set of year literals promoted to tags when found
// verbatim in the text.
var fallbackYears = []string{"2024", "2025"}

// Fallback derives {tags, category} from keyword rules alone. It is fully
// deterministic: identical input text yields identical output on every run,
// which is what keeps the system usable without the inference service.
func Fallback(text string) ([]string, string) {
	lower := strings.ToLower(text)

	var (
		category string
		tags     []string
	)
	switch {
	case strings.Contains(lower, "invoice") || strings.Contains(lower, "bill"):
		category = "Invoice"
		tags = []string{"invoice"}
	case strings.Contains(lower, "contract") || strings.Contains(lower, "agreement"):
		category = "Contract"
		tags = []string{"contract"}
	case strings.Contains(lower, "receipt"):
		category = "Receipt"
		tags = []string{"receipt"}
	default:
		category = CategoryOther
		tags = []string{"document"}
	}

	for _, year := range fallbackYears {
		if strings.Contains(text, year) {
			tags = append(tags, year)
		}
	}
	if strings.Contains(lower, "urgent") {
		tags = append(tags, "urgent")
	}
	return tags, category
}
