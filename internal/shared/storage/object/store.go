package object

import (
	"context"
	"errors"
	"io"
)

// ErrNotExist is returned by Open when no object lives at the given key.
var ErrNotExist = errors.New("object does not exist")

// ObjectStore defines the contract for saving and retrieving binary objects.
type ObjectStore interface {
	SaveWithKey(ctx context.Context, storageKey string, contentType string, r io.Reader) (int64, error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	Remove(ctx context.Context, storageKey string) error
}
