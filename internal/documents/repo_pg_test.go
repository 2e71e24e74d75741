package documents

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

var pgColumns = []string{
	"id", "original_name", "stored_name", "display_name", "content_hash",
	"tags", "category", "created_at", "text_preview", "thumbnail_ref",
}

func newPGRepo(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &PGRepo{DB: db}, mock
}

func pgRow(doc Document) *sqlmock.Rows {
	return sqlmock.NewRows(pgColumns).AddRow(
		doc.ID, doc.OriginalName, doc.StoredName, doc.DisplayName, doc.ContentHash,
		[]byte(`["invoice"]`), doc.Category, doc.CreatedAt, doc.TextPreview, doc.ThumbnailRef,
	)
}

func TestPGRepoInsertPairsRowAndIndexWrite(t *testing.T) {
	repo, mock := newPGRepo(t)

	doc := Document{
		OriginalName: "a.pdf",
		StoredName:   "20250310_120000_a.pdf",
		ContentHash:  "abc",
		Tags:         []string{"invoice"},
		Category:     "Invoice",
		CreatedAt:    time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
		TextPreview:  "invoice text",
	}

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO documents").
		WithArgs(doc.OriginalName, doc.StoredName, nil, doc.ContentHash,
			[]byte(`["invoice"]`), doc.Category, doc.CreatedAt, doc.TextPreview, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectExec("INSERT INTO document_search").
		WithArgs(int64(7), indexText(Document{
			ID: 7, OriginalName: doc.OriginalName, StoredName: doc.StoredName,
			ContentHash: doc.ContentHash, Tags: doc.Tags, Category: doc.Category,
			CreatedAt: doc.CreatedAt, TextPreview: doc.TextPreview,
		})).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.Insert(context.Background(), &doc); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if doc.ID != 7 {
		t.Fatalf("assigned ID = %d, want 7", doc.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGRepoInsertRollsBackOnIndexFailure(t *testing.T) {
	repo, mock := newPGRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO documents").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))
	mock.ExpectExec("INSERT INTO document_search").
		WillReturnError(errors.New("index write failed"))
	mock.ExpectRollback()

	doc := Document{OriginalName: "a.pdf"}
	if err := repo.Insert(context.Background(), &doc); err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGRepoUpdatePairsRowAndIndexWrite(t *testing.T) {
	repo, mock := newPGRepo(t)

	current := Document{
		ID: 5, OriginalName: "a.pdf", StoredName: "s_a.pdf",
		ContentHash: "abc", Category: "Other", TextPreview: "text",
		CreatedAt: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM documents WHERE id = (.+) FOR UPDATE").
		WithArgs(int64(5)).
		WillReturnRows(pgRow(current))
	mock.ExpectExec("UPDATE documents SET").
		WithArgs("New Name", []byte(`["invoice"]`), "Invoice", int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO document_search").
		WithArgs(int64(5), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	name, category := "New Name", "Invoice"
	got, err := repo.Update(context.Background(), 5, Update{DisplayName: &name, Category: &category})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.DisplayName != "New Name" || got.Category != "Invoice" {
		t.Fatalf("updated doc = %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGRepoDeleteRemovesIndexEntryThenRow(t *testing.T) {
	repo, mock := newPGRepo(t)

	current := Document{ID: 9, OriginalName: "gone.pdf", StoredName: "s_gone.pdf", Category: "Other"}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM documents WHERE id = (.+) FOR UPDATE").
		WithArgs(int64(9)).
		WillReturnRows(pgRow(current))
	mock.ExpectExec("DELETE FROM document_search WHERE document_id").
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM documents WHERE id").
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	doc, err := repo.Delete(context.Background(), 9)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if doc.StoredName != "s_gone.pdf" {
		t.Fatalf("returned doc = %+v", doc)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGRepoGetByIDNotFound(t *testing.T) {
	repo, mock := newPGRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM documents WHERE id").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows(pgColumns))

	if _, err := repo.GetByID(context.Background(), 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPGRepoSearchWithTextJoinsIndex(t *testing.T) {
	repo, mock := newPGRepo(t)

	mock.ExpectQuery("JOIN document_search s ON s.document_id = d.id").
		WithArgs("payro:*", "Invoice").
		WillReturnRows(pgRow(Document{ID: 1, OriginalName: "a.pdf", Category: "Invoice"}))

	docs, err := repo.Search(context.Background(), SearchQuery{Text: "payro", Category: "Invoice"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != 1 {
		t.Fatalf("docs = %v", docs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGRepoSearchWithoutTextSkipsIndex(t *testing.T) {
	repo, mock := newPGRepo(t)

	mock.ExpectQuery("WHERE 1=1 AND category").
		WithArgs("Invoice").
		WillReturnRows(sqlmock.NewRows(pgColumns))

	if _, err := repo.Search(context.Background(), SearchQuery{Category: "Invoice"}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGRepoEnsureSearchIndexNoopWhenPopulated(t *testing.T) {
	repo, mock := newPGRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM document_search").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM documents").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectRollback()

	n, err := repo.EnsureSearchIndex(context.Background())
	if err != nil {
		t.Fatalf("EnsureSearchIndex: %v", err)
	}
	if n != 0 {
		t.Fatalf("rebuilt = %d, want 0", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGRepoEnsureSearchIndexRebuilds(t *testing.T) {
	repo, mock := newPGRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM document_search").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM documents").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec("DELETE FROM document_search").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT (.+) FROM documents ORDER BY id").
		WillReturnRows(pgRow(Document{ID: 2, OriginalName: "a.pdf", Category: "Other"}))
	mock.ExpectExec("INSERT INTO document_search").
		WithArgs(int64(2), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := repo.EnsureSearchIndex(context.Background())
	if err != nil {
		t.Fatalf("EnsureSearchIndex: %v", err)
	}
	if n != 1 {
		t.Fatalf("rebuilt = %d, want 1", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
