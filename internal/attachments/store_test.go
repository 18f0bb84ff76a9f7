package attachments

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var png = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestSave(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root, 1<<10)

	name, size, err := s.Save(".PNG", bytes.NewReader(png))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(name, ".png"))
	assert.Equal(t, int64(len(png)), size)

	got, err := os.ReadFile(filepath.Join(root, DirName, name))
	require.NoError(t, err)
	assert.Equal(t, png, got)

	require.NoError(t, s.Remove(name))
	require.NoError(t, s.Remove(name))
}

func TestSaveRejects(t *testing.T) {
	s := NewStore(t.TempDir(), 16)

	_, _, err := s.Save(".exe", bytes.NewReader(png))
	assert.ErrorIs(t, err, ErrUnsupported)

	_, _, err = s.Save(".gif", bytes.NewReader(png))
	assert.ErrorIs(t, err, ErrUnsupported)

	_, _, err = s.Save(".svg", strings.NewReader("<html></html>"))
	assert.ErrorIs(t, err, ErrUnsupported)

	_, _, err = s.Save(".png", bytes.NewReader(append(png, make([]byte, 32)...)))
	assert.ErrorContains(t, err, "too large")
}

func TestSaveSVG(t *testing.T) {
	s := NewStore(t.TempDir(), 1<<10)
	_, _, err := s.Save(".svg", strings.NewReader(`<?xml version="1.0"?><svg xmlns="http://www.w3.org/2000/svg"/>`))
	assert.NoError(t, err)
}

func TestPath(t *testing.T) {
	s := NewStore("/ws", 1)
	p, err := s.Path("a.png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/ws", DirName, "a.png"), p)

	for _, bad := range []string{"", "../a.png", "x/a.png", ".hidden"} {
		_, err := s.Path(bad)
		assert.Error(t, err, bad)
	}
}

func TestExtForMIME(t *testing.T) {
	assert.Equal(t, ".jpg", ExtForMIME("image/jpeg; charset=binary"))
	assert.Equal(t, "", ExtForMIME("application/pdf"))
}
