package filetype

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	dir := t.TempDir()
	pdf := filepath.Join(dir, "doc.bin")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n"), 0o644))
	txt := filepath.Join(dir, "notes.pdf")
	require.NoError(t, os.WriteFile(txt, []byte("just some text, not a pdf\n"), 0o644))

	d := New()

	info, err := d.Detect(pdf)
	require.NoError(t, err)
	assert.True(t, info.IsPDF)
	assert.Equal(t, PDFMIME, info.MIMEType)
	assert.Equal(t, ".pdf", info.Extension)

	ok, mime, err := d.IsPDF(txt)
	require.NoError(t, err)
	assert.False(t, ok, "extension must not matter")
	assert.Contains(t, mime, "text/plain")

	_, err = d.Detect(filepath.Join(dir, "missing.pdf"))
	require.Error(t, err)
}

func TestDetectBytes(t *testing.T) {
	d := New()
	assert.True(t, d.DetectBytes([]byte("%PDF-1.7\n")).IsPDF)
	assert.False(t, d.DetectBytes([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}).IsPDF)
}
