package documents

import "time"

// Document represents one ingested PDF and its derived metadata.
type Document struct {
	ID           int64
	OriginalName string
	StoredName   string
	DisplayName  string
	ContentHash  string
	Tags         []string
	Category     string
	CreatedAt    time.Time
	TextPreview  string
	ThumbnailRef string
}

// PreviewLimit bounds the stored text preview; the search index is built from
// this truncated text, not the full document.
const PreviewLimit = 2000

// responsePreviewLimit bounds the preview returned by the HTTP layer.
const responsePreviewLimit = 200
