package filetype

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestDetectPDF(t *testing.T) {
	path := writeTemp(t, "scan.pdf", []byte("%PDF-1.7\n1 0 obj\n<<>>\nendobj\n"))
	kind, mime, err := Detect(path)
	require.NoError(t, err)
	assert.Equal(t, KindPDF, kind)
	assert.Equal(t, "application/pdf", mime)
}

func TestDetectPlainTextIsConvertible(t *testing.T) {
	path := writeTemp(t, "notes.txt", []byte("meeting notes from Tuesday\n"))
	kind, mime, err := Detect(path)
	require.NoError(t, err)
	assert.Equal(t, KindConvertible, kind)
	assert.Equal(t, "text/plain", mime)
}

func TestDetectUnsupported(t *testing.T) {
	// PNG magic bytes.
	path := writeTemp(t, "photo.png", []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0})
	kind, mime, err := Detect(path)
	require.NoError(t, err)
	assert.Equal(t, KindUnknown, kind)
	assert.Equal(t, "image/png", mime)
}

func TestDetectMissingFile(t *testing.T) {
	_, _, err := Detect(filepath.Join(t.TempDir(), "absent.pdf"))
	assert.Error(t, err)
}
