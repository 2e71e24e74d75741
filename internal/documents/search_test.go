package documents

import (
	"reflect"
	"strings"
	"testing"
)

func TestBuildTSQuery(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"empty", "", ""},
		{"whitespace only", "   \t ", ""},
		{"single term gets prefix", "payroll", "payroll:*"},
		{"partial word", "payro", "payro:*"},
		{"multiple terms AND-joined", "tax statement 2024", "tax & statement & 2024:*"},
		{"lowercased", "Invoice MARCH", "invoice & march:*"},
		{"reserved characters stripped", "a&b | c!('d')", "a & b & c & d:*"},
		{"punctuation split", "year-end_report", "year & end & report:*"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildTSQuery(tt.text); got != tt.want {
				t.Fatalf("buildTSQuery(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestParseTagList(t *testing.T) {
	if got := ParseTagList(""); got != nil {
		t.Fatalf("ParseTagList(\"\") = %v", got)
	}
	if got := ParseTagList(" , ,"); got != nil {
		t.Fatalf("ParseTagList blanks = %v", got)
	}
	want := []string{"tax", "payroll", "2024"}
	if got := ParseTagList(" tax, payroll ,2024 "); !reflect.DeepEqual(got, want) {
		t.Fatalf("ParseTagList = %v, want %v", got, want)
	}
}

func TestHasText(t *testing.T) {
	if (SearchQuery{Text: "!!! ..."}).HasText() {
		t.Fatal("punctuation-only query should have no text")
	}
	if !(SearchQuery{Text: "invoice"}).HasText() {
		t.Fatal("expected text")
	}
}

func TestIndexTextCoversMetadataAndPreview(t *testing.T) {
	doc := Document{
		OriginalName: "scan_001.pdf",
		DisplayName:  "Rental Contract",
		Tags:         []string{"contract", "housing"},
		Category:     "Contract",
		TextPreview:  "lease agreement between",
	}
	indexed := indexText(doc)
	for _, fragment := range []string{"scan_001.pdf", "Rental Contract", "contract housing", "lease agreement between"} {
		if !strings.Contains(indexed, fragment) {
			t.Fatalf("index %q missing %q", indexed, fragment)
		}
	}
}
