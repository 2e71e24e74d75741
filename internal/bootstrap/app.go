package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"filefolio-backend/internal/classify"
	"filefolio-backend/internal/documents"
	"filefolio-backend/internal/extract"
	"filefolio-backend/internal/services/health"
	"filefolio-backend/internal/shared/config"
	"filefolio-backend/internal/shared/server"
	"filefolio-backend/internal/shared/storage/db"
	"filefolio-backend/internal/shared/storage/object"
	localstore "filefolio-backend/internal/shared/storage/object/local"
	s3store "filefolio-backend/internal/shared/storage/object/s3"
	"filefolio-backend/internal/shared/telemetry"
)

// App holds the wired application dependencies.
type App struct {
	Config           config.Config
	Router           *gin.Engine
	DB               *sql.DB
	Store            object.ObjectStore
	DocumentsRepo    documents.DocumentsRepo
	DocumentsService *documents.Service
	DocumentsHandler *documents.Handler
	Health           *health.Service
}

// Build prepares all dependencies and the router. Without a DATABASE_URL in
// dev the app runs on in-memory storage; production requires a database.
func Build(cfg config.Config) (*App, error) {
	ctx := context.Background()

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var repo documents.DocumentsRepo
	if sqlDB != nil {
		repo = &documents.PGRepo{DB: sqlDB}
		rebuilt, err := repo.EnsureSearchIndex(ctx)
		if err != nil {
			return nil, fmt.Errorf("ensure search index: %w", err)
		}
		if rebuilt > 0 {
			telemetry.Info("bootstrap.search_index_rebuilt", map[string]any{"documents": rebuilt})
		}
	} else {
		repo = documents.NewMemoryRepo()
	}

	var ocr extract.OCREngine
	if !cfg.OCRDisabled {
		ocr = extract.NewTesseractOCR(cfg.OCRLanguages)
	}
	extractor := extract.New(ocr)

	classifier, err := classify.New(cfg.OllamaHost, cfg.OllamaModel)
	if err != nil {
		// The pipeline degrades to the rule-based fallback without a model.
		telemetry.Warn("bootstrap.classifier_unavailable", map[string]any{"error": err.Error()})
		classifier = nil
	}

	svc := documents.NewService(repo, store, extractor, classifier, extract.ThumbnailRenderer{})
	handler := documents.NewHandler(svc)
	healthSvc := health.NewService(sqlDB)

	app := &App{
		Config:           cfg,
		DB:               sqlDB,
		Store:            store,
		DocumentsRepo:    repo,
		DocumentsService: svc,
		DocumentsHandler: handler,
		Health:           healthSvc,
	}
	app.Router = server.NewRouter(server.RouterDeps{
		Config:    cfg,
		Documents: handler,
		Health:    healthSvc,
	})
	return app, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.Env == "dev" {
			telemetry.Info("bootstrap.memory_storage", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required outside dev")
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}
