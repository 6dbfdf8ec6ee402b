package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/marcmoiagese/SpartaClaims/cnf"
)

// Storage desa els fitxers dels documents sota una clau relativa ({categoria}/{uuid}.{ext}).
type Storage interface {
	Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// ErrStorageKey indica una clau que surt de l'arrel d'emmagatzematge.
var ErrStorageKey = errors.New("invalid storage key")

// NewStorage tria el backend segons STORAGE_BACKEND.
func NewStorage(ctx context.Context, ac cnf.AppConfig) (Storage, error) {
	switch ac.StorageBackend {
	case "s3":
		return NewS3Storage(ctx, ac.S3Bucket, ac.S3Region)
	case "", "local":
		return NewLocalStorage(ac.UploadsRoot)
	default:
		return nil, fmt.Errorf("backend d'emmagatzematge desconegut: %s", ac.StorageBackend)
	}
}

// LocalStorage desa els fitxers al disc sota Root.
type LocalStorage struct {
	Root string
}

func NewLocalStorage(root string) (*LocalStorage, error) {
	if root == "" {
		root = "./uploads"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("no s'ha pogut crear %s: %w", root, err)
	}
	return &LocalStorage{Root: root}, nil
}

func (s *LocalStorage) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("%w: %s", ErrStorageKey, key)
	}
	return filepath.Join(s.Root, clean), nil
}

func (s *LocalStorage) Save(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), p)
}

func (s *LocalStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, notFoundf("file %s", key)
	}
	return f, err
}

func (s *LocalStorage) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
