package documents

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidInput marks a request rejected before any processing.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound means no row exists for the requested document ID.
	ErrNotFound = errors.New("document not found")

	// ErrFileMissing means the row exists but its backing file is gone from
	// storage. Distinct from ErrNotFound: the row itself is intact.
	ErrFileMissing = errors.New("document file missing from storage")
)

// DuplicateError is returned when an upload's content fingerprint matches an
// existing document. It carries enough context for the caller to act.
type DuplicateError struct {
	OriginalName string
	UploadedAt   time.Time
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate document: already uploaded as %q on %s",
		e.OriginalName, e.UploadedAt.Format("2006-01-02"))
}
