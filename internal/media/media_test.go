package media

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ctxpkg "github.com/stupiduntilnot/meditalk/internal/context"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLoadFile_ByExtension(t *testing.T) {
	path := writeFile(t, "label.JPG", []byte{0xff, 0xd8, 0xff, 0xe0})
	img, err := LoadFile(path, 1024)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", img.MediaType)
	assert.Len(t, img.Data, 4)
}

func TestLoadFile_SniffsUnknownExtension(t *testing.T) {
	path := writeFile(t, "scan.bin", pngHeader)
	img, err := LoadFile(path, 1024)
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MediaType)
}

func TestLoadFile_RejectsNonImage(t *testing.T) {
	path := writeFile(t, "notes.txt", []byte("just some text"))
	_, err := LoadFile(path, 1024)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestLoadFile_TooLarge(t *testing.T) {
	path := writeFile(t, "big.png", make([]byte, 2048))
	_, err := LoadFile(path, 1024)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestLoadFile_EmptyFile(t *testing.T) {
	path := writeFile(t, "empty.jpg", nil)
	img, err := LoadFile(path, 1024)
	require.NoError(t, err)
	assert.Empty(t, img.Data)

	turn := ctxpkg.EncodeTurn("hi", &img)
	assert.False(t, turn.HasImage())
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.jpg"), 1024)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestResolveType(t *testing.T) {
	assert.Equal(t, "image/webp", ResolveType(" image/webp ", nil))
	assert.Equal(t, "image/png", ResolveType("application/octet-stream", pngHeader))
	assert.Equal(t, "image/png", ResolveType("", pngHeader))
	assert.Equal(t, ctxpkg.DefaultMediaType, ResolveType("", []byte("plain")))
	assert.Equal(t, ctxpkg.DefaultMediaType, ResolveType("", nil))
}
