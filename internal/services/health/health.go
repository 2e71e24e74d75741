package health

import (
	"context"
	"database/sql"
	"time"
)

const pingTimeout = 2 * time.Second

// Service reports process and dependency health.
type Service struct {
	DB *sql.DB // nil when running on in-memory storage
}

// NewService constructs a health service.
func NewService(db *sql.DB) *Service {
	return &Service{DB: db}
}

// Status returns the health payload. The process is considered healthy even
// when the database ping fails; the payload carries the detail.
func (s *Service) Status(ctx context.Context) map[string]any {
	out := map[string]any{"ok": true, "storage": "memory"}
	if s.DB == nil {
		return out
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	out["storage"] = "postgres"
	if err := s.DB.PingContext(ctx); err != nil {
		out["ok"] = false
		out["database"] = err.Error()
	}
	return out
}
