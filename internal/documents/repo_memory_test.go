package documents

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func seedDoc(t *testing.T, repo *MemoryRepo, doc Document) Document {
	t.Helper()
	if err := repo.Insert(context.Background(), &doc); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	return doc
}

func TestMemoryRepoSearchRanking(t *testing.T) {
	repo := NewMemoryRepo()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	// Mentions "payroll" once, newest.
	light := seedDoc(t, repo, Document{
		OriginalName: "payroll_note.pdf",
		TextPreview:  "short note",
		CreatedAt:    base.Add(48 * time.Hour),
	})
	// Mentions "payroll" three times, oldest.
	heavy := seedDoc(t, repo, Document{
		OriginalName: "payroll_statement.pdf",
		TextPreview:  "payroll summary with payroll totals",
		CreatedAt:    base,
	})

	hits, err := repo.Search(context.Background(), SearchQuery{Text: "payroll"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("hits = %d, want 2", len(hits))
	}
	if hits[0].ID != heavy.ID {
		t.Fatalf("first hit = %d, want higher-ranked %d despite being older", hits[0].ID, heavy.ID)
	}
	if hits[1].ID != light.ID {
		t.Fatalf("second hit = %d", hits[1].ID)
	}
}

func TestMemoryRepoSearchPrefixFuzzy(t *testing.T) {
	repo := NewMemoryRepo()
	doc := seedDoc(t, repo, Document{OriginalName: "statement.pdf", TextPreview: "monthly payroll figures"})

	hits, err := repo.Search(context.Background(), SearchQuery{Text: "payro"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != doc.ID {
		t.Fatalf("prefix search hits = %v", hits)
	}

	// Every term must match; one unmatched term drops the document.
	hits, err = repo.Search(context.Background(), SearchQuery{Text: "payroll unicorn"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("hits = %v, want none", hits)
	}
}

func TestMemoryRepoRecencyOrderWithoutText(t *testing.T) {
	repo := NewMemoryRepo()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	old := seedDoc(t, repo, Document{OriginalName: "a.pdf", CreatedAt: base})
	newer := seedDoc(t, repo, Document{OriginalName: "b.pdf", CreatedAt: base.Add(time.Hour)})

	hits, err := repo.Search(context.Background(), SearchQuery{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 || hits[0].ID != newer.ID || hits[1].ID != old.ID {
		t.Fatalf("order = %v", hits)
	}
}

// The tag filter matches substrings: filtering on "pay" also returns
// documents tagged "payroll". This mirrors the storage-level filter and is a
// known trade-off in exchange for a simple query.
func TestMemoryRepoTagFilterMatchesSubstrings(t *testing.T) {
	repo := NewMemoryRepo()
	payroll := seedDoc(t, repo, Document{OriginalName: "a.pdf", Tags: []string{"payroll"}})
	seedDoc(t, repo, Document{OriginalName: "b.pdf", Tags: []string{"tax"}})

	hits, err := repo.Search(context.Background(), SearchQuery{Tags: []string{"pay"}})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != payroll.ID {
		t.Fatalf("hits = %v", hits)
	}
}

func TestMemoryRepoCompoundFilters(t *testing.T) {
	repo := NewMemoryRepo()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	match := seedDoc(t, repo, Document{
		OriginalName: "june_invoice.pdf",
		Category:     "Invoice",
		Tags:         []string{"invoice", "2025"},
		TextPreview:  "invoice for services",
		CreatedAt:    base,
	})
	seedDoc(t, repo, Document{ // wrong category
		OriginalName: "june_receipt.pdf",
		Category:     "Receipt",
		Tags:         []string{"invoice"},
		TextPreview:  "invoice attached",
		CreatedAt:    base,
	})
	seedDoc(t, repo, Document{ // outside the date window
		OriginalName: "may_invoice.pdf",
		Category:     "Invoice",
		Tags:         []string{"invoice"},
		TextPreview:  "invoice for services",
		CreatedAt:    base.AddDate(0, -1, 0),
	})

	hits, err := repo.Search(context.Background(), SearchQuery{
		Text:     "invoice",
		Category: "Invoice",
		Tags:     []string{"invoice"},
		From:     base.AddDate(0, 0, -7),
		To:       base.AddDate(0, 0, 7),
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != match.ID {
		t.Fatalf("hits = %v", hits)
	}
}

func TestMemoryRepoDateBoundsInclusive(t *testing.T) {
	repo := NewMemoryRepo()
	at := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	doc := seedDoc(t, repo, Document{OriginalName: "edge.pdf", CreatedAt: at})

	hits, err := repo.Search(context.Background(), SearchQuery{From: at, To: at})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != doc.ID {
		t.Fatalf("boundary timestamps should be included, hits = %v", hits)
	}
}

func TestMemoryRepoFilters(t *testing.T) {
	repo := NewMemoryRepo()
	seedDoc(t, repo, Document{OriginalName: "a.pdf", Category: "Invoice", Tags: []string{"tax", "2024"}})
	seedDoc(t, repo, Document{OriginalName: "b.pdf", Category: "Invoice", Tags: []string{"tax", "payroll"}})
	seedDoc(t, repo, Document{OriginalName: "c.pdf", Category: "Other", Tags: nil})

	filters, err := repo.Filters(context.Background())
	if err != nil {
		t.Fatalf("Filters: %v", err)
	}
	if !reflect.DeepEqual(filters.Categories, []string{"Invoice", "Other"}) {
		t.Fatalf("categories = %v", filters.Categories)
	}
	if !reflect.DeepEqual(filters.Tags, []string{"2024", "payroll", "tax"}) {
		t.Fatalf("tags = %v", filters.Tags)
	}
}

func TestMemoryRepoFindByHashReturnsOldest(t *testing.T) {
	repo := NewMemoryRepo()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	oldest := seedDoc(t, repo, Document{OriginalName: "first.pdf", ContentHash: "h1", CreatedAt: base})
	seedDoc(t, repo, Document{OriginalName: "second.pdf", ContentHash: "h1", CreatedAt: base.Add(time.Hour)})

	found, err := repo.FindByHash(context.Background(), "h1")
	if err != nil {
		t.Fatalf("FindByHash: %v", err)
	}
	if found.ID != oldest.ID {
		t.Fatalf("found = %d, want oldest %d", found.ID, oldest.ID)
	}

	if _, err := repo.FindByHash(context.Background(), "absent"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryRepoGetByIDsSkipsUnknown(t *testing.T) {
	repo := NewMemoryRepo()
	doc := seedDoc(t, repo, Document{OriginalName: "a.pdf"})

	docs, err := repo.GetByIDs(context.Background(), []int64{doc.ID, 404})
	if err != nil {
		t.Fatalf("GetByIDs: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != doc.ID {
		t.Fatalf("docs = %v", docs)
	}
}

func TestMemoryRepoEnsureSearchIndex(t *testing.T) {
	repo := NewMemoryRepo()
	doc := seedDoc(t, repo, Document{OriginalName: "payroll.pdf", TextPreview: "payroll data"})

	// Intact index: nothing to do.
	n, err := repo.EnsureSearchIndex(context.Background())
	if err != nil {
		t.Fatalf("EnsureSearchIndex: %v", err)
	}
	if n != 0 {
		t.Fatalf("rebuilt = %d, want 0", n)
	}

	// Simulate rows without index entries, as after a schema upgrade.
	repo.index = map[int64]string{}
	n, err = repo.EnsureSearchIndex(context.Background())
	if err != nil {
		t.Fatalf("EnsureSearchIndex: %v", err)
	}
	if n != 1 {
		t.Fatalf("rebuilt = %d, want 1", n)
	}
	hits, err := repo.Search(context.Background(), SearchQuery{Text: "payroll"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != doc.ID {
		t.Fatalf("hits = %v", hits)
	}
}

func TestMemoryRepoReindexAppliesPreviews(t *testing.T) {
	repo := NewMemoryRepo()
	doc := seedDoc(t, repo, Document{OriginalName: "scan.pdf", TextPreview: "old words"})

	n, err := repo.Reindex(context.Background(), []PreviewUpdate{{ID: doc.ID, Preview: "freshly ocred text"}, {ID: 404, Preview: "ignored"}})
	if err != nil {
		t.Fatalf("Reindex: %v", err)
	}
	if n != 1 {
		t.Fatalf("indexed = %d, want 1", n)
	}

	hits, err := repo.Search(context.Background(), SearchQuery{Text: "ocred"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("hits = %v", hits)
	}
	if hits, _ := repo.Search(context.Background(), SearchQuery{Text: "old"}); len(hits) != 0 {
		t.Fatalf("stale index entry still matches: %v", hits)
	}
}
