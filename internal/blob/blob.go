// Package blob stores attachment bytes outside the database. The gateway
// hands decoded bytes in and keeps only the returned reference; it never
// serves file content itself.
package blob

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store is the collaborator interface the gateway consumes.
type Store interface {
	Store(data []byte, name, mimeType string) (ref string, err error)
	Delete(ref string) error
	URLOf(ref string) string
}

// DiskStore keeps blobs as flat files under a base directory. References
// are "<uuid><ext>" so the original name never reaches the filesystem.
type DiskStore struct {
	baseDir string
	baseURL string
}

func NewDiskStore(baseDir, baseURL string) (*DiskStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &DiskStore{baseDir: baseDir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

func (d *DiskStore) Store(data []byte, name, mimeType string) (string, error) {
	ref := uuid.New().String() + sanitizedExt(name)
	if err := os.WriteFile(filepath.Join(d.baseDir, ref), data, 0o644); err != nil {
		return "", fmt.Errorf("write blob %s: %w", ref, err)
	}
	return ref, nil
}

// Delete removes a stored blob. Only references this store issued are
// accepted; anything with a path separator is refused.
func (d *DiskStore) Delete(ref string) error {
	if ref == "" || strings.ContainsAny(ref, "/\\") {
		return fmt.Errorf("invalid blob ref %q", ref)
	}
	return os.Remove(filepath.Join(d.baseDir, ref))
}

// URLOf maps a reference to the public URL the file server exposes.
func (d *DiskStore) URLOf(ref string) string {
	return d.baseURL + "/" + ref
}

// sanitizedExt keeps a short, safe file extension from the original name.
func sanitizedExt(name string) string {
	ext := filepath.Ext(name)
	if len(ext) > 10 || strings.ContainsAny(ext, "/\\") {
		return ""
	}
	return ext
}
