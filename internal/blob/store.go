// Package blob abstracts the object store holding recordings, keyframes,
// and violation clips.
package blob

import (
	"context"
	"fmt"
	"io"

	"kpid/internal/config"
)

// PutOptions controls how an object is written.
type PutOptions struct {
	ContentType string
	// Public requests a world-readable object so frame and clip URLs can be
	// embedded in review tooling without signing.
	Public bool
}

// Store is the object store contract the pipeline stages depend on.
type Store interface {
	// Put writes the object and returns its externally visible URL.
	Put(ctx context.Context, object string, r io.Reader, opts PutOptions) (string, error)
	Open(ctx context.Context, object string) (io.ReadCloser, error)
	// Download copies the object to a local file path.
	Download(ctx context.Context, object, destPath string) error
	Delete(ctx context.Context, object string) error
	// URL returns the externally visible URL without touching the backend.
	URL(object string) string
}

// New constructs the store selected by the configuration.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Blob.Backend {
	case "gcs":
		return NewGCS(ctx, cfg.Blob.Bucket)
	case "local":
		return NewLocal(cfg.Blob.LocalDir)
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.Blob.Backend)
	}
}
