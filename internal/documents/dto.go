package documents

import "time"

// IngestResponse is returned after a successful upload.
type IngestResponse struct {
	ID           int64    `json:"id"`
	OriginalName string   `json:"originalName"`
	Tags         []string `json:"tags"`
	Category     string   `json:"category"`
	Preview      string   `json:"preview"`
}

// DocumentResponse is the outward-facing representation of a document.
type DocumentResponse struct {
	ID           int64     `json:"id"`
	OriginalName string    `json:"originalName"`
	StoredName   string    `json:"storedName"`
	DisplayName  string    `json:"displayName,omitempty"`
	Tags         []string  `json:"tags"`
	Category     string    `json:"category"`
	CreatedAt    time.Time `json:"createdAt"`
	Preview      string    `json:"preview"`
	Thumbnail    string    `json:"thumbnail,omitempty"`
}

func toIngestResponse(doc Document) IngestResponse {
	return IngestResponse{
		ID:           doc.ID,
		OriginalName: doc.OriginalName,
		Tags:         doc.Tags,
		Category:     doc.Category,
		Preview:      truncate(doc.TextPreview, responsePreviewLimit),
	}
}

func toResponse(doc Document) DocumentResponse {
	return DocumentResponse{
		ID:           doc.ID,
		OriginalName: doc.OriginalName,
		StoredName:   doc.StoredName,
		DisplayName:  doc.DisplayName,
		Tags:         doc.Tags,
		Category:     doc.Category,
		CreatedAt:    doc.CreatedAt,
		Preview:      truncate(doc.TextPreview, responsePreviewLimit),
		Thumbnail:    doc.ThumbnailRef,
	}
}

func toResponses(docs []Document) []DocumentResponse {
	out := make([]DocumentResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, toResponse(d))
	}
	return out
}

// updateRequest carries a partial metadata update; a nil field means "leave
// unchanged", never "clear".
type updateRequest struct {
	DisplayName *string   `json:"displayName"`
	Tags        *[]string `json:"tags"`
	Category    *string   `json:"category"`
}

// truncate bounds s to limit characters without splitting a rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
