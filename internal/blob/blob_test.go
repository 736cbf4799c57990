package blob_test

import (
	"os"
	"path/filepath"
	"testing"

	"tickethub/backend/internal/blob"

	"github.com/stretchr/testify/assert"
)

func TestDiskStore_StoreAndResolve(t *testing.T) {
	dir := t.TempDir()
	store, err := blob.NewDiskStore(dir, "http://localhost:8080/files/")
	assert.NoError(t, err)

	ref, err := store.Store([]byte("hello attachment"), "report.pdf", "application/pdf")
	assert.NoError(t, err)
	assert.NotEmpty(t, ref)

	data, err := os.ReadFile(filepath.Join(dir, ref))
	assert.NoError(t, err)
	assert.Equal(t, "hello attachment", string(data))

	assert.Equal(t, "http://localhost:8080/files/"+ref, store.URLOf(ref))
}

func TestDiskStore_RefKeepsExtensionOnly(t *testing.T) {
	store, err := blob.NewDiskStore(t.TempDir(), "http://localhost/files")
	assert.NoError(t, err)

	ref, err := store.Store([]byte("x"), "../../etc/passwd.png", "image/png")
	assert.NoError(t, err)
	assert.NotContains(t, ref, "/")
	assert.NotContains(t, ref, "..")
	assert.Equal(t, ".png", filepath.Ext(ref))
}

func TestDiskStore_Delete(t *testing.T) {
	dir := t.TempDir()
	store, err := blob.NewDiskStore(dir, "http://localhost/files")
	assert.NoError(t, err)

	ref, err := store.Store([]byte("bytes"), "a.txt", "text/plain")
	assert.NoError(t, err)

	assert.NoError(t, store.Delete(ref))
	_, err = os.Stat(filepath.Join(dir, ref))
	assert.True(t, os.IsNotExist(err))

	assert.Error(t, store.Delete("../escape.txt"))
	assert.Error(t, store.Delete(""))
}

func TestDiskStore_UniqueRefs(t *testing.T) {
	store, err := blob.NewDiskStore(t.TempDir(), "http://localhost/files")
	assert.NoError(t, err)

	a, err := store.Store([]byte("a"), "same.txt", "text/plain")
	assert.NoError(t, err)
	b, err := store.Store([]byte("b"), "same.txt", "text/plain")
	assert.NoError(t, err)
	assert.NotEqual(t, a, b)
}
