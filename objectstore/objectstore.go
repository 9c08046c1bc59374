// Package objectstore stores the bytes of pictures behind a small interface
// with an S3 implementation for deployments and a local disk implementation
// for development.
package objectstore

import (
	"context"
	"errors"
	"image"
	"io"
	"strings"

	// decoders for the formats accepted by the ingestion allow-list
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// ErrNotExist is returned by Get and StatImage when no object is stored at the path.
var ErrNotExist = errors.New("object does not exist")

// ImageInfo is the image metadata read back from a stored object.
type ImageInfo struct {
	Width  int
	Height int
	Format string
}

type ObjectStore interface {
	// Put stores body at path, replacing any previous object.
	Put(ctx context.Context, path string, body io.ReadSeeker, contentType string) error
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	// Delete removes the object at path. Deleting a missing object succeeds.
	Delete(ctx context.Context, path string) error
	StatImage(ctx context.Context, path string) (ImageInfo, error)

	// URL returns the public URL of path.
	URL(path string) string
	// PathOf returns the path of a URL produced by URL. It returns false for
	// URLs the store does not own.
	PathOf(url string) (string, bool)
}

// DecodeImageInfo reads the image header from r.
func DecodeImageInfo(r io.Reader) (ImageInfo, error) {
	config, format, err := image.DecodeConfig(r)
	if err != nil {
		return ImageInfo{}, err
	}

	return ImageInfo{
		Width:  config.Width,
		Height: config.Height,
		Format: format,
	}, nil
}

func statImage(ctx context.Context, store ObjectStore, path string) (ImageInfo, error) {
	r, err := store.Get(ctx, path)
	if err != nil {
		return ImageInfo{}, err
	}
	defer r.Close()

	return DecodeImageInfo(r)
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

func trimURL(base, url string) (string, bool) {
	prefix := strings.TrimRight(base, "/") + "/"
	if base == "" || !strings.HasPrefix(url, prefix) {
		return "", false
	}

	path := strings.TrimPrefix(url, prefix)
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	return path, path != ""
}
