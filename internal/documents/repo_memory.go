package documents

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryRepo is an in-memory DocumentsRepo used when no database is
// configured and in tests. It keeps an explicit index map beside the rows so
// the same write-pairing contract as the Postgres repo is exercised.
type MemoryRepo struct {
	mu     sync.Mutex
	nextID int64
	docs   map[int64]Document
	index  map[int64]string
}

// NewMemoryRepo constructs an empty in-memory repo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		nextID: 1,
		docs:   make(map[int64]Document),
		index:  make(map[int64]string),
	}
}

// Insert stores the document and its index entry, assigning doc.ID.
func (r *MemoryRepo) Insert(ctx context.Context, doc *Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	doc.ID = r.nextID
	r.nextID++
	if doc.Tags == nil {
		doc.Tags = []string{}
	}
	stored := cloneDocument(*doc)
	r.docs[doc.ID] = stored
	r.index[doc.ID] = indexText(stored)
	return nil
}

// GetByID returns a single document.
func (r *MemoryRepo) GetByID(ctx context.Context, id int64) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.docs[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return cloneDocument(doc), nil
}

// GetByIDs returns the documents that exist among ids; unknown IDs are skipped.
func (r *MemoryRepo) GetByIDs(ctx context.Context, ids []int64) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Document
	for _, id := range ids {
		if doc, ok := r.docs[id]; ok {
			out = append(out, cloneDocument(doc))
		}
	}
	sortByRecency(out)
	return out, nil
}

// FindByHash returns the oldest document with the given content hash.
func (r *MemoryRepo) FindByHash(ctx context.Context, hash string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		found bool
		best  Document
	)
	for _, doc := range r.docs {
		if doc.ContentHash != hash {
			continue
		}
		if !found || doc.CreatedAt.Before(best.CreatedAt) || (doc.CreatedAt.Equal(best.CreatedAt) && doc.ID < best.ID) {
			best = doc
			found = true
		}
	}
	if !found {
		return Document{}, ErrNotFound
	}
	return cloneDocument(best), nil
}

// Update applies a partial metadata update and replaces the index entry.
func (r *MemoryRepo) Update(ctx context.Context, id int64, upd Update) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	if upd.Empty() {
		return Document{}, ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.docs[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	if upd.DisplayName != nil {
		doc.DisplayName = *upd.DisplayName
	}
	if upd.Tags != nil {
		doc.Tags = append([]string{}, (*upd.Tags)...)
	}
	if upd.Category != nil {
		doc.Category = *upd.Category
	}
	r.docs[id] = doc
	r.index[id] = indexText(doc)
	return cloneDocument(doc), nil
}

// Delete removes the row and its index entry, returning the removed document.
func (r *MemoryRepo) Delete(ctx context.Context, id int64) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.docs[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	delete(r.docs, id)
	delete(r.index, id)
	return cloneDocument(doc), nil
}

// Search filters and ranks documents with the same observable semantics as
// the Postgres repo: prefix-fuzzy text match ranked by term frequency then
// recency, substring OR tag filter, exact category, inclusive date bounds.
func (r *MemoryRepo) Search(ctx context.Context, q SearchQuery) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	terms := searchTerms(q.Text)

	type ranked struct {
		doc  Document
		rank int
	}
	var matches []ranked

	for id, doc := range r.docs {
		if q.Category != "" && doc.Category != q.Category {
			continue
		}
		if len(q.Tags) > 0 && !tagsMatch(doc.Tags, q.Tags) {
			continue
		}
		if !q.From.IsZero() && doc.CreatedAt.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && doc.CreatedAt.After(q.To) {
			continue
		}

		rank := 0
		if len(terms) > 0 {
			rank = rankAgainst(r.index[id], terms)
			if rank == 0 {
				continue
			}
		}
		matches = append(matches, ranked{doc: cloneDocument(doc), rank: rank})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].rank != matches[j].rank {
			return matches[i].rank > matches[j].rank
		}
		if !matches[i].doc.CreatedAt.Equal(matches[j].doc.CreatedAt) {
			return matches[i].doc.CreatedAt.After(matches[j].doc.CreatedAt)
		}
		return matches[i].doc.ID > matches[j].doc.ID
	})

	out := make([]Document, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.doc)
	}
	return out, nil
}

// Filters returns the distinct categories and the union of tags in use.
func (r *MemoryRepo) Filters(ctx context.Context) (Filters, error) {
	if err := ctx.Err(); err != nil {
		return Filters{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	categories := make(map[string]struct{})
	tags := make(map[string]struct{})
	for _, doc := range r.docs {
		categories[doc.Category] = struct{}{}
		for _, t := range doc.Tags {
			tags[t] = struct{}{}
		}
	}

	out := Filters{Categories: []string{}, Tags: []string{}}
	for c := range categories {
		out.Categories = append(out.Categories, c)
	}
	for t := range tags {
		out.Tags = append(out.Tags, t)
	}
	sort.Strings(out.Categories)
	sort.Strings(out.Tags)
	return out, nil
}

// List returns all documents ordered by ID.
func (r *MemoryRepo) List(ctx context.Context) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Document, 0, len(r.docs))
	for _, doc := range r.docs {
		out = append(out, cloneDocument(doc))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Reindex applies preview updates and rebuilds the whole index.
func (r *MemoryRepo) Reindex(ctx context.Context, updates []PreviewUpdate) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range updates {
		doc, ok := r.docs[u.ID]
		if !ok {
			continue
		}
		doc.TextPreview = u.Preview
		r.docs[u.ID] = doc
	}

	r.index = make(map[int64]string, len(r.docs))
	for id, doc := range r.docs {
		r.index[id] = indexText(doc)
	}
	return len(r.docs), nil
}

// EnsureSearchIndex rebuilds the index when it is empty while rows exist.
func (r *MemoryRepo) EnsureSearchIndex(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.index) != 0 || len(r.docs) == 0 {
		return 0, nil
	}
	for id, doc := range r.docs {
		r.index[id] = indexText(doc)
	}
	return len(r.index), nil
}

// rankAgainst counts words in the indexed text having any query term as a
// prefix. Zero means the document does not match all terms.
func rankAgainst(indexed string, terms []string) int {
	words := searchTerms(indexed)
	total := 0
	for _, term := range terms {
		hits := 0
		for _, w := range words {
			if strings.HasPrefix(w, term) {
				hits++
			}
		}
		if hits == 0 {
			return 0
		}
		total += hits
	}
	return total
}

// tagsMatch mirrors the substring OR semantics of the SQL tag filter.
func tagsMatch(docTags, filter []string) bool {
	joined := strings.ToLower(strings.Join(docTags, ","))
	for _, f := range filter {
		if strings.Contains(joined, strings.ToLower(f)) {
			return true
		}
	}
	return false
}

func sortByRecency(docs []Document) {
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.After(docs[j].CreatedAt)
		}
		return docs[i].ID > docs[j].ID
	})
}

func cloneDocument(doc Document) Document {
	doc.Tags = append([]string{}, doc.Tags...)
	return doc
}
