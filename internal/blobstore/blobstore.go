// Package blobstore stores uploaded binary objects (requirement images,
// agreement documents) outside the database. Rows keep only the storage key.
package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no object exists under a key.
	ErrNotFound = errors.New("blob not found")
	// ErrUnsupportedType is returned when the sniffed type is not allowed.
	ErrUnsupportedType = errors.New("unsupported content type")
	// ErrInvalidKey is returned for keys that escape the store root.
	ErrInvalidKey = errors.New("invalid storage key")
)

// ImageTypes are the content types accepted for gallery images.
var ImageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// sniffLen matches the mimetype default read limit.
const sniffLen = 3072

// Object describes a stored blob.
type Object struct {
	Key         string
	ContentType string
	Size        int64
}

// Store is the blob storage used by the services.
type Store interface {
	// Save writes r under a new key below prefix. When allowed is non-empty the
	// sniffed content type must match one of its entries.
	Save(ctx context.Context, prefix string, r io.Reader, allowed ...string) (Object, error)
	// Open returns the content and its sniffed content type.
	Open(ctx context.Context, key string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, key string) error
}

// Local keeps blobs on the local filesystem below a root directory.
type Local struct {
	root string
}

// NewLocal creates root if needed.
func NewLocal(root string) (*Local, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}
	return &Local{root: root}, nil
}

func (s *Local) Save(ctx context.Context, prefix string, r io.Reader, allowed ...string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return Object{}, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]

	mtype := mimetype.Detect(head)
	if len(allowed) > 0 && !mimetype.EqualsAny(mtype.String(), allowed...) {
		return Object{}, fmt.Errorf("%w: %s", ErrUnsupportedType, mtype.String())
	}

	key := filepath.ToSlash(filepath.Join(prefix, uuid.NewString()+mtype.Extension()))
	path, err := s.safeJoin(key)
	if err != nil {
		return Object{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Object{}, fmt.Errorf("create blob directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return Object{}, fmt.Errorf("create file: %w", err)
	}
	size, err := io.Copy(f, io.MultiReader(bytes.NewReader(head), r))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return Object{}, fmt.Errorf("write file: %w", err)
	}
	return Object{Key: key, ContentType: mtype.String(), Size: size}, nil
}

func (s *Local) Open(ctx context.Context, key string) (io.ReadCloser, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	path, err := s.safeJoin(key)
	if err != nil {
		return nil, "", err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("open file: %w", err)
	}
	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		f.Close()
		return nil, "", fmt.Errorf("detect content type: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, "", fmt.Errorf("rewind file: %w", err)
	}
	return f, mtype.String(), nil
}

func (s *Local) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.safeJoin(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// safeJoin resolves key relative to root and rejects directory traversal.
func (s *Local) safeJoin(key string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}
	absRoot, err := filepath.Abs(s.root)
	if err != nil {
		return "", fmt.Errorf("invalid root: %w", err)
	}
	absPath, err := filepath.Abs(filepath.Join(s.root, filepath.FromSlash(key)))
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}
	if !strings.HasPrefix(absPath, absRoot+string(filepath.Separator)) {
		return "", ErrInvalidKey
	}
	return absPath, nil
}
