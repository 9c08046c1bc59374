package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var ErrInvalidPath = errors.New("invalid object path")

// LocalStore keeps objects as files under a root directory. Writes go to a
// temp file in the destination directory and are renamed into place.
type LocalStore struct {
	root      string
	publicURL string
}

func NewLocalStore(root, publicURL string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}

	return &LocalStore{
		root:      root,
		publicURL: publicURL,
	}, nil
}

func (s *LocalStore) Put(ctx context.Context, path string, body io.ReadSeeker, _ string) error {
	filePath, err := s.filePath(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(filePath), ".upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := body.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return err
	}
	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), filePath)
}

func (s *LocalStore) Get(_ context.Context, path string) (io.ReadCloser, error) {
	filePath, err := s.filePath(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotExist
		}
		return nil, err
	}
	return f, nil
}

func (s *LocalStore) Delete(_ context.Context, path string) error {
	filePath, err := s.filePath(path)
	if err != nil {
		return err
	}

	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *LocalStore) StatImage(ctx context.Context, path string) (ImageInfo, error) {
	return statImage(ctx, s, path)
}

func (s *LocalStore) URL(path string) string {
	return joinURL(s.publicURL, path)
}

func (s *LocalStore) PathOf(url string) (string, bool) {
	return trimURL(s.publicURL, url)
}

func (s *LocalStore) filePath(path string) (string, error) {
	switch {
	case path == "",
		filepath.IsAbs(path),
		strings.HasPrefix(path, "/"),
		strings.Contains(path, ".."),
		strings.Contains(path, "\x00"):
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}

	return filepath.Join(s.root, filepath.FromSlash(path)), nil
}
