package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// LocalStorage stores objects under a directory that the HTTP server exposes
// at publicBase.
type LocalStorage struct {
	baseDir    string
	publicBase string
}

func NewLocalStorage(baseDir, publicBase string) (*LocalStorage, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	if publicBase == "" {
		publicBase = "/media"
	}
	return &LocalStorage{baseDir: baseDir, publicBase: publicBase}, nil
}

// Upload writes r to baseDir/key. The file appears atomically.
func (s *LocalStorage) Upload(_ context.Context, key, _ string, r io.Reader) (string, error) {
	key, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	fullPath := filepath.Join(s.baseDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("create dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("rename file: %w", err)
	}
	return joinURL(s.publicBase, key), nil
}

// Open returns a reader for a stored object.
func (s *LocalStorage) Open(key string) (io.ReadCloser, error) {
	key, err := CleanKey(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.baseDir, filepath.FromSlash(key)))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return f, err
}

// Handler serves stored objects; mount it at the public base path.
func (s *LocalStorage) Handler() http.Handler {
	return http.StripPrefix(s.publicBase, http.FileServer(http.Dir(s.baseDir)))
}

// PublicBase returns the URL prefix objects are served under.
func (s *LocalStorage) PublicBase() string { return s.publicBase }
