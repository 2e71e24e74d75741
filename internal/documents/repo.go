package documents

import "context"

// Update is a partial metadata update; nil fields are left unchanged.
type Update struct {
	DisplayName *string
	Tags        *[]string
	Category    *string
}

// Empty reports whether the update carries no fields.
func (u Update) Empty() bool {
	return u.DisplayName == nil && u.Tags == nil && u.Category == nil
}

// PreviewUpdate carries a re-extracted preview for one document.
type PreviewUpdate struct {
	ID      int64
	Preview string
}

// Filters enumerates the categories and tags currently in use.
type Filters struct {
	Categories []string `json:"categories"`
	Tags       []string `json:"tags"`
}

// DocumentsRepo defines persistence for documents and their search index.
// Every mutation keeps the index entry in step with the row: Insert writes
// both, Update replaces both, Delete removes both. The index entry is derived
// solely from the row's name, display name, tags, category and preview.
type DocumentsRepo interface {
	// Insert stores the document and its index entry, assigning doc.ID.
	Insert(ctx context.Context, doc *Document) error
	GetByID(ctx context.Context, id int64) (Document, error)
	// GetByIDs returns the documents that exist among ids, skipping unknown IDs.
	GetByIDs(ctx context.Context, ids []int64) ([]Document, error)
	// FindByHash returns the oldest document with the given content hash, or
	// ErrNotFound.
	FindByHash(ctx context.Context, hash string) (Document, error)
	Update(ctx context.Context, id int64, upd Update) (Document, error)
	// Delete removes the row and index entry, returning the removed document
	// so callers can clean up file artifacts.
	Delete(ctx context.Context, id int64) (Document, error)
	Search(ctx context.Context, q SearchQuery) ([]Document, error)
	Filters(ctx context.Context) (Filters, error)
	List(ctx context.Context) ([]Document, error)
	// Reindex applies the preview updates and rebuilds the whole search index
	// in one unit; per-write index sync is irrelevant inside it since the
	// full rebuild supersedes it. Returns the number of indexed documents.
	Reindex(ctx context.Context, updates []PreviewUpdate) (int, error)
	// EnsureSearchIndex rebuilds the index from existing rows when it is
	// empty while rows exist (fresh deployment or schema upgrade). Returns
	// the number of rebuilt entries, zero when the index was already intact.
	EnsureSearchIndex(ctx context.Context) (int, error)
}
