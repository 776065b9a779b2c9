// Package storage keeps the bytes of staged files.
package storage

import (
	"context"
	"errors"
	"io"

	"github.com/quick-analysis/backend/internal/models"
)

// ErrNotFound is returned for unknown file ids.
var ErrNotFound = errors.New("file not found")

// Store defines the interface for file storage.
type Store interface {
	Save(ctx context.Context, name, contentType string, r io.Reader) (*models.FileInfo, error)
	Get(id string) (*models.FileInfo, error)
	Open(ctx context.Context, id string) (io.ReadCloser, error)
	List(limit int) ([]*models.FileInfo, error)
	Delete(ctx context.Context, id string) error
}

// ReleaseFunc returns a callback that deletes staged files from store,
// reporting failures to onError. It fits flow.Options.Release.
func ReleaseFunc(store Store, onError func(id string, err error)) func([]models.StagedFile) {
	return func(files []models.StagedFile) {
		for _, f := range files {
			if f.FileID == "" {
				continue
			}
			if err := store.Delete(context.Background(), f.FileID); err != nil && !errors.Is(err, ErrNotFound) && onError != nil {
				onError(f.FileID, err)
			}
		}
	}
}
