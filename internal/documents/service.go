package documents

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"filefolio-backend/internal/shared/metrics"
	"filefolio-backend/internal/shared/storage/object"
	"filefolio-backend/internal/shared/telemetry"
	"filefolio-backend/internal/shared/util"
)

// TextExtractor pulls text out of PDF bytes.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

// MetadataClassifier derives tags and a category from document text. It never
// fails; degraded paths fall back to deterministic rules.
type MetadataClassifier interface {
	Classify(ctx context.Context, text, filename string, existingTags []string) ([]string, string)
}

// ThumbnailRenderer renders a preview image for PDF bytes.
type ThumbnailRenderer interface {
	Render(data []byte) ([]byte, error)
}

// Service implements the document ingestion and retrieval pipeline on top of
// a repository and an object store.
type Service struct {
	Repo       DocumentsRepo
	Store      object.ObjectStore
	Extractor  TextExtractor
	Classifier MetadataClassifier
	Thumbnails ThumbnailRenderer // nil disables thumbnail generation
	Now        func() time.Time
}

// NewService wires a Service with the given collaborators.
func NewService(repo DocumentsRepo, store object.ObjectStore, ex TextExtractor, cl MetadataClassifier, th ThumbnailRenderer) *Service {
	return &Service{
		Repo:       repo,
		Store:      store,
		Extractor:  ex,
		Classifier: cl,
		Thumbnails: th,
		Now:        time.Now,
	}
}

const pdfContentType = "application/pdf"

// Ingest runs the full pipeline for one uploaded PDF: store, fingerprint,
// dedup, extract, classify, persist. A duplicate upload leaves no file
// behind and returns a DuplicateError naming the prior upload.
func (s *Service) Ingest(ctx context.Context, originalName string, r io.Reader) (Document, error) {
	if !strings.EqualFold(path.Ext(originalName), ".pdf") {
		return Document{}, fmt.Errorf("%w: only PDF files are accepted", ErrInvalidInput)
	}
	sanitized, err := util.SanitizeFileName(originalName)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	storedName := s.now().Format("20060102_150405") + "_" + sanitized
	key := uploadKey(storedName)

	// Single pass over the upload: the stream is saved to storage while the
	// fingerprint and an in-memory copy for extraction accumulate.
	hasher := util.NewHasher()
	var buf bytes.Buffer
	tee := io.TeeReader(r, io.MultiWriter(hasher, &buf))
	if _, err := s.Store.SaveWithKey(ctx, key, pdfContentType, tee); err != nil {
		return Document{}, fmt.Errorf("save upload: %w", err)
	}
	contentHash := hasher.Sum()

	existing, err := s.Repo.FindByHash(ctx, contentHash)
	switch {
	case err == nil:
		metrics.IncDocumentsDuplicate()
		if rmErr := s.Store.Remove(ctx, key); rmErr != nil {
			telemetry.Warn("ingest.duplicate_cleanup_failed", map[string]any{
				"key": key, "error": rmErr.Error(),
			})
		}
		return Document{}, &DuplicateError{
			OriginalName: existing.OriginalName,
			UploadedAt:   existing.CreatedAt,
		}
	case errors.Is(err, ErrNotFound):
		// new content, proceed
	default:
		return Document{}, fmt.Errorf("dedup lookup: %w", err)
	}

	data := buf.Bytes()

	start := s.now()
	text, err := s.Extractor.Extract(ctx, data)
	metrics.ObserveExtractionDurationMs(float64(s.now().Sub(start).Milliseconds()))
	if err != nil {
		// The document is still ingested; the placeholder keeps the failure
		// visible in the preview instead of blocking the upload.
		telemetry.Warn("ingest.extract_failed", map[string]any{
			"file": originalName, "error": err.Error(),
		})
		text = "Error extracting text: " + err.Error()
	}

	thumbnailRef := s.renderThumbnail(ctx, storedName, data)

	existingTags := s.corpusTags(ctx)
	tags, category := s.Classifier.Classify(ctx, text, originalName, existingTags)

	doc := Document{
		OriginalName: originalName,
		StoredName:   storedName,
		ContentHash:  contentHash,
		Tags:         tags,
		Category:     category,
		CreatedAt:    s.now(),
		TextPreview:  truncate(text, PreviewLimit),
		ThumbnailRef: thumbnailRef,
	}
	if err := s.Repo.Insert(ctx, &doc); err != nil {
		return Document{}, fmt.Errorf("insert document: %w", err)
	}

	metrics.IncDocumentsIngested()
	telemetry.Info("ingest.complete", map[string]any{
		"document_id": doc.ID, "file": originalName, "category": category,
	})
	return doc, nil
}

// renderThumbnail is best effort: any failure logs and yields no thumbnail.
func (s *Service) renderThumbnail(ctx context.Context, storedName string, data []byte) string {
	if s.Thumbnails == nil {
		return ""
	}
	jpeg, err := s.Thumbnails.Render(data)
	if err != nil {
		telemetry.Warn("ingest.thumbnail_failed", map[string]any{
			"file": storedName, "error": err.Error(),
		})
		return ""
	}
	name := thumbnailName(storedName)
	if _, err := s.Store.SaveWithKey(ctx, thumbnailKey(name), "image/jpeg", bytes.NewReader(jpeg)); err != nil {
		telemetry.Warn("ingest.thumbnail_failed", map[string]any{
			"file": storedName, "error": err.Error(),
		})
		return ""
	}
	return name
}

// corpusTags returns the tags already in use, for classification vocabulary
// reuse. Failure to list them is not fatal to an ingest.
func (s *Service) corpusTags(ctx context.Context) []string {
	filters, err := s.Repo.Filters(ctx)
	if err != nil {
		telemetry.Warn("ingest.corpus_tags_failed", map[string]any{"error": err.Error()})
		return nil
	}
	return filters.Tags
}

// Get returns a single document by ID.
func (s *Service) Get(ctx context.Context, id int64) (Document, error) {
	return s.Repo.GetByID(ctx, id)
}

// Open returns the stored PDF for a document. A row whose backing file is
// gone yields ErrFileMissing rather than ErrNotFound.
func (s *Service) Open(ctx context.Context, id int64) (io.ReadCloser, Document, error) {
	doc, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, Document{}, err
	}
	rc, err := s.Store.Open(ctx, uploadKey(doc.StoredName))
	if errors.Is(err, object.ErrNotExist) {
		return nil, Document{}, fmt.Errorf("%w: %s", ErrFileMissing, doc.StoredName)
	}
	if err != nil {
		return nil, Document{}, err
	}
	return rc, doc, nil
}

// OpenThumbnail returns a stored thumbnail by name.
func (s *Service) OpenThumbnail(ctx context.Context, name string) (io.ReadCloser, error) {
	sanitized, err := util.SanitizeFileName(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	rc, err := s.Store.Open(ctx, thumbnailKey(sanitized))
	if errors.Is(err, object.ErrNotExist) {
		return nil, ErrNotFound
	}
	return rc, err
}

// Update applies a partial metadata update and returns the new state.
func (s *Service) Update(ctx context.Context, id int64, upd Update) (Document, error) {
	if upd.Empty() {
		return Document{}, fmt.Errorf("%w: no fields to update", ErrInvalidInput)
	}
	return s.Repo.Update(ctx, id, upd)
}

// Delete removes the document row, its index entry and its file artifacts.
// Artifact removal is best effort; the row deletion is what matters.
func (s *Service) Delete(ctx context.Context, id int64) error {
	doc, err := s.Repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Store.Remove(ctx, uploadKey(doc.StoredName)); err != nil {
		telemetry.Warn("delete.file_cleanup_failed", map[string]any{
			"document_id": id, "error": err.Error(),
		})
	}
	if doc.ThumbnailRef != "" {
		if err := s.Store.Remove(ctx, thumbnailKey(doc.ThumbnailRef)); err != nil {
			telemetry.Warn("delete.thumbnail_cleanup_failed", map[string]any{
				"document_id": id, "error": err.Error(),
			})
		}
	}
	return nil
}

// Search runs a ranked, filtered query.
func (s *Service) Search(ctx context.Context, q SearchQuery) ([]Document, error) {
	metrics.IncSearchQueries()
	return s.Repo.Search(ctx, q)
}

// Filters lists the categories and tags currently in use.
func (s *Service) Filters(ctx context.Context) (Filters, error) {
	return s.Repo.Filters(ctx)
}

// Archive streams a ZIP of the requested documents' PDFs to w. Documents
// whose row or file cannot be resolved are skipped, not fatal. Returns the
// number of files written.
func (s *Service) Archive(ctx context.Context, ids []int64, w io.Writer) (int, error) {
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: no document IDs given", ErrInvalidInput)
	}
	docs, err := s.Repo.GetByIDs(ctx, ids)
	if err != nil {
		return 0, err
	}

	zw := zip.NewWriter(w)
	added := 0
	for _, doc := range docs {
		rc, err := s.Store.Open(ctx, uploadKey(doc.StoredName))
		if err != nil {
			telemetry.Warn("archive.skip", map[string]any{
				"document_id": doc.ID, "error": err.Error(),
			})
			continue
		}
		fw, err := zw.Create(doc.OriginalName)
		if err != nil {
			rc.Close()
			return added, fmt.Errorf("archive entry: %w", err)
		}
		if _, err := io.Copy(fw, rc); err != nil {
			rc.Close()
			return added, fmt.Errorf("archive copy: %w", err)
		}
		rc.Close()
		added++
	}
	if err := zw.Close(); err != nil {
		return added, fmt.Errorf("finalize archive: %w", err)
	}
	return added, nil
}

// ReindexAll re-extracts text for every document whose file is still present
// and rebuilds the search index from scratch. Returns the number of indexed
// documents.
func (s *Service) ReindexAll(ctx context.Context) (int, error) {
	docs, err := s.Repo.List(ctx)
	if err != nil {
		return 0, err
	}

	var updates []PreviewUpdate
	for _, doc := range docs {
		rc, err := s.Store.Open(ctx, uploadKey(doc.StoredName))
		if err != nil {
			telemetry.Warn("reindex.skip", map[string]any{
				"document_id": doc.ID, "error": err.Error(),
			})
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			telemetry.Warn("reindex.skip", map[string]any{
				"document_id": doc.ID, "error": err.Error(),
			})
			continue
		}
		text, err := s.Extractor.Extract(ctx, data)
		if err != nil {
			telemetry.Warn("reindex.extract_failed", map[string]any{
				"document_id": doc.ID, "error": err.Error(),
			})
			continue
		}
		updates = append(updates, PreviewUpdate{ID: doc.ID, Preview: truncate(text, PreviewLimit)})
	}
	return s.Repo.Reindex(ctx, updates)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func uploadKey(storedName string) string {
	return "uploads/" + storedName
}

func thumbnailKey(name string) string {
	return "thumbnails/" + name
}

// thumbnailName maps a stored PDF name to its thumbnail file name.
func thumbnailName(storedName string) string {
	return strings.TrimSuffix(storedName, path.Ext(storedName)) + ".jpg"
}
