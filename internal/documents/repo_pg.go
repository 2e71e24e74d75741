package documents

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// PGRepo implements DocumentsRepo using Postgres. Row and index writes share
// one transaction so the search index never drifts from the row set, even
// across process restarts.
type PGRepo struct {
	DB *sql.DB
}

const documentColumns = `id, original_name, stored_name, display_name, content_hash, tags, category, created_at, text_preview, thumbnail_ref`

const upsertSearchQuery = `
INSERT INTO document_search (document_id, tsv)
VALUES ($1, to_tsvector('simple', $2))
ON CONFLICT (document_id) DO UPDATE SET tsv = EXCLUDED.tsv`

// Insert stores the document and its index entry, assigning doc.ID.
func (r *PGRepo) Insert(ctx context.Context, doc *Document) error {
	const query = `
INSERT INTO documents (original_name, stored_name, display_name, content_hash, tags, category, created_at, text_preview, thumbnail_ref)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id`

	tags, err := json.Marshal(normalizeTags(doc.Tags))
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, query,
		doc.OriginalName,
		doc.StoredName,
		nullString(doc.DisplayName),
		doc.ContentHash,
		tags,
		doc.Category,
		doc.CreatedAt,
		doc.TextPreview,
		nullString(doc.ThumbnailRef),
	).Scan(&doc.ID)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, upsertSearchQuery, doc.ID, indexText(*doc)); err != nil {
		return err
	}
	return tx.Commit()
}

// GetByID returns a single document.
func (r *PGRepo) GetByID(ctx context.Context, id int64) (Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	doc, err := scanDocument(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

// GetByIDs returns the documents that exist among ids; unknown IDs are skipped.
func (r *PGRepo) GetByIDs(ctx context.Context, ids []int64) ([]Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id IN (` +
		strings.Join(placeholders, ", ") + `) ORDER BY created_at DESC`

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocuments(rows)
}

// FindByHash returns the oldest document with the given content hash.
func (r *PGRepo) FindByHash(ctx context.Context, hash string) (Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE content_hash = $1 ORDER BY created_at ASC LIMIT 1`
	doc, err := scanDocument(r.DB.QueryRowContext(ctx, query, hash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

// Update applies a partial metadata update and replaces the index entry in
// the same transaction.
func (r *PGRepo) Update(ctx context.Context, id int64, upd Update) (Document, error) {
	if upd.Empty() {
		return Document{}, ErrInvalidInput
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return Document{}, err
	}
	defer tx.Rollback()

	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1 FOR UPDATE`
	doc, err := scanDocument(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}

	if upd.DisplayName != nil {
		doc.DisplayName = *upd.DisplayName
	}
	if upd.Tags != nil {
		doc.Tags = normalizeTags(*upd.Tags)
	}
	if upd.Category != nil {
		doc.Category = *upd.Category
	}

	tags, err := json.Marshal(normalizeTags(doc.Tags))
	if err != nil {
		return Document{}, fmt.Errorf("marshal tags: %w", err)
	}

	const updateQuery = `
UPDATE documents SET display_name = $1, tags = $2, category = $3 WHERE id = $4`
	if _, err := tx.ExecContext(ctx, updateQuery, nullString(doc.DisplayName), tags, doc.Category, id); err != nil {
		return Document{}, err
	}

	if _, err := tx.ExecContext(ctx, upsertSearchQuery, id, indexText(doc)); err != nil {
		return Document{}, err
	}

	if err := tx.Commit(); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Delete removes the row and its index entry, returning the removed document.
func (r *PGRepo) Delete(ctx context.Context, id int64) (Document, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return Document{}, err
	}
	defer tx.Rollback()

	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1 FOR UPDATE`
	doc, err := scanDocument(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_search WHERE document_id = $1`, id); err != nil {
		return Document{}, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id); err != nil {
		return Document{}, err
	}

	if err := tx.Commit(); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Search filters and ranks documents. With free text the index is consulted
// and results order by relevance then recency; otherwise recency alone.
func (r *PGRepo) Search(ctx context.Context, q SearchQuery) ([]Document, error) {
	var (
		sb   strings.Builder
		args []any
	)

	tsq := buildTSQuery(q.Text)
	if tsq != "" {
		args = append(args, tsq)
		sb.WriteString(`SELECT d.` + strings.ReplaceAll(documentColumns, ", ", ", d.") + `
FROM documents d
JOIN document_search s ON s.document_id = d.id
WHERE s.tsv @@ to_tsquery('simple', $1)`)
	} else {
		sb.WriteString(`SELECT ` + documentColumns + `
FROM documents
WHERE 1=1`)
	}

	col := func(name string) string {
		if tsq != "" {
			return "d." + name
		}
		return name
	}

	if q.Category != "" {
		args = append(args, q.Category)
		fmt.Fprintf(&sb, " AND %s = $%d", col("category"), len(args))
	}
	if len(q.Tags) > 0 {
		// Substring match against the stored tag text, OR across the list; a
		// filter for "pay" also matches a document tagged "payroll".
		var conds []string
		for _, tag := range q.Tags {
			args = append(args, "%"+strings.ToLower(tag)+"%")
			conds = append(conds, fmt.Sprintf("%s::text LIKE $%d", col("tags"), len(args)))
		}
		sb.WriteString(" AND (" + strings.Join(conds, " OR ") + ")")
	}
	if !q.From.IsZero() {
		args = append(args, q.From)
		fmt.Fprintf(&sb, " AND %s >= $%d", col("created_at"), len(args))
	}
	if !q.To.IsZero() {
		args = append(args, q.To)
		fmt.Fprintf(&sb, " AND %s <= $%d", col("created_at"), len(args))
	}

	if tsq != "" {
		sb.WriteString(" ORDER BY ts_rank(s.tsv, to_tsquery('simple', $1)) DESC, d.created_at DESC")
	} else {
		sb.WriteString(" ORDER BY created_at DESC")
	}

	rows, err := r.DB.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocuments(rows)
}

// Filters returns the distinct categories and the union of tags in use.
func (r *PGRepo) Filters(ctx context.Context) (Filters, error) {
	out := Filters{Categories: []string{}, Tags: []string{}}

	rows, err := r.DB.QueryContext(ctx, `SELECT DISTINCT category FROM documents ORDER BY category`)
	if err != nil {
		return Filters{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return Filters{}, err
		}
		out.Categories = append(out.Categories, c)
	}
	if err := rows.Err(); err != nil {
		return Filters{}, err
	}

	tagRows, err := r.DB.QueryContext(ctx, `SELECT tags FROM documents`)
	if err != nil {
		return Filters{}, err
	}
	defer tagRows.Close()

	seen := make(map[string]struct{})
	for tagRows.Next() {
		var raw []byte
		if err := tagRows.Scan(&raw); err != nil {
			return Filters{}, err
		}
		var tags []string
		if err := json.Unmarshal(raw, &tags); err != nil {
			continue
		}
		for _, t := range tags {
			seen[t] = struct{}{}
		}
	}
	if err := tagRows.Err(); err != nil {
		return Filters{}, err
	}
	for t := range seen {
		out.Tags = append(out.Tags, t)
	}
	sort.Strings(out.Tags)
	return out, nil
}

// List returns all documents ordered by ID.
func (r *PGRepo) List(ctx context.Context) ([]Document, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocuments(rows)
}

// Reindex applies preview updates and rebuilds the whole search index in one
// transaction. Per-write index sync is superseded by the full rebuild.
func (r *PGRepo) Reindex(ctx context.Context, updates []PreviewUpdate) (int, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	for _, u := range updates {
		if _, err := tx.ExecContext(ctx, `UPDATE documents SET text_preview = $1 WHERE id = $2`, u.Preview, u.ID); err != nil {
			return 0, err
		}
	}

	count, err := rebuildIndex(ctx, tx)
	if err != nil {
		return 0, err
	}
	return count, tx.Commit()
}

// EnsureSearchIndex rebuilds the index when it is empty while rows exist.
func (r *PGRepo) EnsureSearchIndex(ctx context.Context) (int, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var indexCount, docCount int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM document_search`).Scan(&indexCount); err != nil {
		return 0, err
	}
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&docCount); err != nil {
		return 0, err
	}
	if indexCount != 0 || docCount == 0 {
		return 0, tx.Rollback()
	}

	count, err := rebuildIndex(ctx, tx)
	if err != nil {
		return 0, err
	}
	return count, tx.Commit()
}

// rebuildIndex clears document_search and repopulates it from the current row
// set using the shared index derivation.
func rebuildIndex(ctx context.Context, tx *sql.Tx) (int, error) {
	if _, err := tx.ExecContext(ctx, `DELETE FROM document_search`); err != nil {
		return 0, err
	}

	rows, err := tx.QueryContext(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY id`)
	if err != nil {
		return 0, err
	}
	docs, err := scanDocuments(rows)
	rows.Close()
	if err != nil {
		return 0, err
	}

	for _, doc := range docs {
		if _, err := tx.ExecContext(ctx, upsertSearchQuery, doc.ID, indexText(doc)); err != nil {
			return 0, err
		}
	}
	return len(docs), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var (
		doc          Document
		displayName  sql.NullString
		thumbnailRef sql.NullString
		rawTags      []byte
	)
	err := row.Scan(
		&doc.ID,
		&doc.OriginalName,
		&doc.StoredName,
		&displayName,
		&doc.ContentHash,
		&rawTags,
		&doc.Category,
		&doc.CreatedAt,
		&doc.TextPreview,
		&thumbnailRef,
	)
	if err != nil {
		return Document{}, err
	}
	if displayName.Valid {
		doc.DisplayName = displayName.String
	}
	if thumbnailRef.Valid {
		doc.ThumbnailRef = thumbnailRef.String
	}
	doc.Tags = []string{}
	if len(rawTags) > 0 {
		if err := json.Unmarshal(rawTags, &doc.Tags); err != nil {
			return Document{}, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	return doc, nil
}

func scanDocuments(rows *sql.Rows) ([]Document, error) {
	var out []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func normalizeTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
