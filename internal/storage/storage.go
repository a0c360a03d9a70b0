package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/spf13/afero"
)

const sniffLen = 3072

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrFileTooLarge    = errors.New("file too large")
	ErrInvalidKey      = errors.New("invalid storage key")
	ErrFileNotFound    = errors.New("stored file not found")
)

// Policy restricts what an upload may contain.
type Policy struct {
	MaxSize int64
	Allowed []string
}

var (
	PhotoTypes = []string{"image/jpeg", "image/png", "image/webp"}

	DiplomaTypes = []string{"application/pdf"}

	MaterialTypes = []string{
		"application/pdf",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.ms-excel",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/vnd.ms-powerpoint",
		"application/vnd.openxmlformats-officedocument.presentationml.presentation",
		"application/vnd.oasis.opendocument.text",
		"application/vnd.oasis.opendocument.spreadsheet",
		"application/vnd.oasis.opendocument.presentation",
		"text/plain",
		"text/csv",
		"image/jpeg",
		"image/png",
		"image/webp",
		"image/gif",
		"application/zip",
	}

	SpreadsheetTypes = []string{"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"}
)

// StoredFile describes a file written by Store.
type StoredFile struct {
	Key      string
	MimeType string
	Size     int64
}

// Store keeps uploads under a base directory, addressed by relative keys
// such as "photos/<uuid>.png".
type Store struct {
	fs afero.Fs
}

// NewLocalStore stores files on disk below dir.
func NewLocalStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload dir: %w", err)
	}
	return NewStore(afero.NewBasePathFs(afero.NewOsFs(), dir)), nil
}

func NewStore(fs afero.Fs) *Store {
	return &Store{fs: fs}
}

// Detect sniffs the content type of the first bytes of r and checks it
// against allowed. The returned reader replays the sniffed bytes.
func Detect(r io.Reader, allowed []string) (*mimetype.MIME, io.Reader, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("reading upload: %w", err)
	}
	head = head[:n]

	mt := mimetype.Detect(head)
	if !allowedType(mt, allowed) {
		return mt, nil, fmt.Errorf("%w: %s", ErrUnsupportedType, mt.String())
	}
	return mt, io.MultiReader(bytes.NewReader(head), r), nil
}

// allowedType accepts mt when it or one of its parents is listed.
func allowedType(mt *mimetype.MIME, allowed []string) bool {
	for m := mt; m != nil; m = m.Parent() {
		for _, a := range allowed {
			if m.Is(a) {
				return true
			}
		}
		// Every binary type descends from octet-stream; stop before it.
		if m.Parent() != nil && m.Parent().Is("application/octet-stream") {
			return false
		}
	}
	return false
}

// Save sniffs, size-checks and writes src under category.
func (s *Store) Save(ctx context.Context, category string, src io.Reader, policy Policy) (*StoredFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mt, body, err := Detect(src, policy.Allowed)
	if err != nil {
		return nil, err
	}

	if err := s.fs.MkdirAll(category, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s dir: %w", category, err)
	}
	key := path.Join(category, uuid.NewString()+mt.Extension())

	f, err := s.fs.Create(key)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}

	limit := policy.MaxSize
	if limit <= 0 {
		limit = 1 << 62
	}
	written, copyErr := io.Copy(f, io.LimitReader(body, limit+1))
	closeErr := f.Close()

	switch {
	case copyErr != nil:
		_ = s.fs.Remove(key)
		return nil, fmt.Errorf("writing file: %w", copyErr)
	case closeErr != nil:
		_ = s.fs.Remove(key)
		return nil, fmt.Errorf("closing file: %w", closeErr)
	case written > limit:
		_ = s.fs.Remove(key)
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, policy.MaxSize)
	}

	return &StoredFile{Key: key, MimeType: mt.String(), Size: written}, nil
}

// Open returns the stored file for reading.
func (s *Store) Open(key string) (afero.File, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	f, err := s.fs.Open(clean)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("opening file: %w", err)
	}
	return f, nil
}

// Delete removes a stored file; missing files are not an error.
func (s *Store) Delete(key string) error {
	clean, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(clean); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}

func (s *Store) Exists(key string) bool {
	clean, err := cleanKey(key)
	if err != nil {
		return false
	}
	ok, _ := afero.Exists(s.fs, clean)
	return ok
}

func cleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") {
		return "", ErrInvalidKey
	}
	clean := path.Clean(key)
	if clean == "." || strings.HasPrefix(clean, "..") {
		return "", ErrInvalidKey
	}
	return clean, nil
}
