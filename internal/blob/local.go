package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Local stores objects under a root directory. It exists for tests and
// development setups without bucket access.
type Local struct {
	root string
}

// NewLocal creates the root directory if needed.
func NewLocal(root string) (*Local, error) {
	if root == "" {
		return nil, errors.New("local blob directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &Local{root: root}, nil
}

func (l *Local) objectPath(object string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(object))
	if cleaned == "." || strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("invalid object name %q", object)
	}
	return filepath.Join(l.root, cleaned), nil
}

// Put writes the object to disk and returns a file URL.
func (l *Local) Put(ctx context.Context, object string, r io.Reader, opts PutOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := l.objectPath(object)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("mkdir for %s: %w", object, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", object, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write %s: %w", object, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", object, err)
	}
	return l.URL(object), nil
}

// Open returns a reader over the stored object.
func (l *Local) Open(ctx context.Context, object string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := l.objectPath(object)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", object, err)
	}
	return f, nil
}

// Download copies the object to a local file path.
func (l *Local) Download(ctx context.Context, object, destPath string) error {
	r, err := l.Open(ctx, object)
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
func (l *Local) Delete(ctx context.Context, object string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := l.objectPath(object)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete %s: %w", object, err)
	}
	return nil
}

// URL returns a file URL for the stored object.
func (l *Local) URL(object string) string {
	return "file://" + filepath.ToSlash(filepath.Join(l.root, filepath.FromSlash(object)))
}
