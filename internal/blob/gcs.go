package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cloud.google.com/go/storage"
)

// GCS stores objects in a Google Cloud Storage bucket.
type GCS struct {
	client *storage.Client
	bucket string
}

// NewGCS connects to Cloud Storage using ambient credentials.
func NewGCS(ctx context.Context, bucket string) (*GCS, error) {
	if bucket == "" {
		return nil, errors.New("gcs bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCS{client: client, bucket: bucket}, nil
}

// Close releases the underlying client.
func (g *GCS) Close() error {
	return g.client.Close()
}

// Put uploads the object and returns its public URL.
func (g *GCS) Put(ctx context.Context, object string, r io.Reader, opts PutOptions) (string, error) {
	w := g.client.Bucket(g.bucket).Object(object).NewWriter(ctx)
	if opts.ContentType != "" {
		w.ContentType = opts.ContentType
	}
	if opts.Public {
		w.PredefinedACL = "publicRead"
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("upload %s: %w", object, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize %s: %w", object, err)
	}
	return g.URL(object), nil
}

// Open returns a reader over the object's content.
func (g *GCS) Open(ctx context.Context, object string) (io.ReadCloser, error) {
	r, err := g.client.Bucket(g.bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", object, err)
	}
	return r, nil
}

// Download copies the object to a local file.
func (g *GCS) Download(ctx context.Context, object, destPath string) error {
	r, err := g.Open(ctx, object)
	if err != nil {
		return err
	}
	defer r.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("mkdir for %s: %w", destPath, err)
	}
	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", destPath, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("download %s: %w", object, err)
	}
	return nil
}

// Delete removes the object. A missing object is not an error.
func (g *GCS) Delete(ctx context.Context, object string) error {
	err := g.client.Bucket(g.bucket).Object(object).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete %s: %w", object, err)
	}
	return nil
}

// URL returns the object's public HTTPS URL.
func (g *GCS) URL(object string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", g.bucket, object)
}
