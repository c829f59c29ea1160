package storage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"PostForge/internal/domain"
	"PostForge/internal/ports"
)

func TestPostgresSaveArticleReportsInsert(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	store := NewPostgresStore(db)
	article := domain.StoredArticle{
		ProjectID: "ops",
		RunID:     "run-1",
		Article: domain.Article{
			SourceURL:     "https://example.org/a?utm_source=x",
			NormalizedURL: "https://example.org/a",
			Title:         "Kubernetes and SRE",
		}.WithScore(12),
	}

	mock.ExpectExec(`INSERT INTO articles .* ON CONFLICT \(project_id, normalized_url\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO articles`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := store.SaveArticle(context.Background(), article)
	if err != nil {
		t.Fatalf("SaveArticle: %v", err)
	}
	if !inserted {
		t.Fatalf("expected first save to insert")
	}

	inserted, err = store.SaveArticle(context.Background(), article)
	if err != nil {
		t.Fatalf("SaveArticle: %v", err)
	}
	if inserted {
		t.Fatalf("expected conflicting save to report no insert")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresArticleExists(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	store := NewPostgresStore(db)

	mock.ExpectQuery(`SELECT 1 FROM articles WHERE .* LIMIT 1`).
		WithArgs("https://example.org/a", "ops").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery(`SELECT 1 FROM articles WHERE .*created_at >= \$3`).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	exists, err := store.ArticleExists(context.Background(), "ops", "https://example.org/a", time.Time{})
	if err != nil {
		t.Fatalf("ArticleExists: %v", err)
	}
	if !exists {
		t.Fatalf("expected article to exist")
	}

	exists, err = store.ArticleExists(context.Background(), "ops", "https://example.org/a", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("ArticleExists: %v", err)
	}
	if exists {
		t.Fatalf("expected no article inside the window")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresGetRunNotFound(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM pipeline_runs WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows(runColumns))

	_, err = NewPostgresStore(db).GetRun(context.Background(), "missing")
	if err != ports.ErrRunNotFound {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}
