package core

import (
	"context"
	"io"
)

// file kinds; also the first segment of every stored path
const (
	FileKindMaterial   = "material"
	FileKindAssignment = "assignment"
	FileKindSubmission = "submission"
)

type (
	// Upload is a file received from a client.
	Upload struct {
		Name    string
		Size    int64
		Content io.Reader
	}

	// FileStorage persists uploaded files and hands back opaque paths.
	// Paths are namespaced by kind and owner id.
	FileStorage interface {
		Store(ctx context.Context, kind, ownerID string, upload Upload) (path string, err error)
		// Retrieve returns a NotFoundError when the path does not exist.
		Retrieve(ctx context.Context, path string) (io.ReadCloser, error)
		Exists(ctx context.Context, path string) (bool, error)
		Delete(ctx context.Context, path string) error
	}
)

// RemoveFiles deletes each path, best-effort: failures are logged and skipped.
func RemoveFiles(ctx context.Context, storage FileStorage, logger Logger, paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := storage.Delete(ctx, p); err != nil && !IsNotFound(err) {
			logger.Warn("removing stored file "+p, err)
		}
	}
}
