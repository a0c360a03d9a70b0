package storage

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func newTestStore() *Store {
	return NewStore(afero.NewMemMapFs())
}

func TestSaveAndOpen(t *testing.T) {
	s := newTestStore()
	body := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, 5000)...)

	f, err := s.Save(context.Background(), "photos", bytes.NewReader(body), Policy{MaxSize: 1 << 20, Allowed: PhotoTypes})
	require.NoError(t, err)

	assert.Equal(t, "image/png", f.MimeType)
	assert.Equal(t, int64(len(body)), f.Size)
	assert.True(t, strings.HasPrefix(f.Key, "photos/"))
	assert.True(t, strings.HasSuffix(f.Key, ".png"))

	r, err := s.Open(f.Key)
	require.NoError(t, err)
	defer r.Close()
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestSaveRejectsUnsupportedType(t *testing.T) {
	s := newTestStore()
	_, err := s.Save(context.Background(), "diplomas", bytes.NewReader(pngHeader), Policy{MaxSize: 1 << 20, Allowed: DiplomaTypes})
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestSaveRejectsOversizedFile(t *testing.T) {
	s := newTestStore()
	body := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("a"), 200)...)

	_, err := s.Save(context.Background(), "diplomas", bytes.NewReader(body), Policy{MaxSize: 100, Allowed: DiplomaTypes})
	assert.ErrorIs(t, err, ErrFileTooLarge)

	entries, err := afero.ReadDir(s.fs, "diplomas")
	require.NoError(t, err)
	assert.Empty(t, entries, "partial file must be removed")
}

func TestSaveAcceptsPlainText(t *testing.T) {
	s := newTestStore()
	f, err := s.Save(context.Background(), "materials", strings.NewReader("resumo da aula 3"), Policy{MaxSize: 1024, Allowed: MaterialTypes})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(f.MimeType, "text/plain"))
	assert.True(t, strings.HasSuffix(f.Key, ".txt"))
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := newTestStore()
	f, err := s.Save(context.Background(), "materials", strings.NewReader("notes"), Policy{Allowed: MaterialTypes})
	require.NoError(t, err)
	require.True(t, s.Exists(f.Key))

	require.NoError(t, s.Delete(f.Key))
	assert.False(t, s.Exists(f.Key))
	assert.NoError(t, s.Delete(f.Key))

	_, err = s.Open(f.Key)
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestKeysCannotEscape(t *testing.T) {
	s := newTestStore()
	for _, key := range []string{"", "/etc/passwd", "../secret", "photos/../../x"} {
		_, err := s.Open(key)
		assert.ErrorIs(t, err, ErrInvalidKey, key)
		assert.ErrorIs(t, s.Delete(key), ErrInvalidKey, key)
	}
}
