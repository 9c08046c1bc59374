package ingest

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/picture-gallery/customErrors"
	"github.com/bitmark-inc/picture-gallery/objectstore"
)

func pngBytes(t *testing.T, w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(1, 1, color.RGBA{G: 255, A: 255})

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestPipeline(t *testing.T) (*Pipeline, *objectstore.LocalStore, string) {
	store, err := objectstore.NewLocalStore(t.TempDir(), "http://cdn.test")
	require.NoError(t, err)

	p := NewPipeline(store, nil, nil)
	p.TempDir = t.TempDir()
	p.now = func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC) }
	return p, store, p.TempDir
}

func assertEmptyDir(t *testing.T, dir string) {
	entries, err := os.ReadDir(dir)
	assert.NoError(t, err)
	assert.Empty(t, entries, "transient files must be removed")
}

func TestIngestLocalSource(t *testing.T) {
	p, store, tmp := newTestPipeline(t)

	result, err := p.Ingest(context.Background(), NewBytesSource("sunset.PNG", pngBytes(t, 300, 200)), "space/9")
	require.NoError(t, err)

	assert.Equal(t, "sunset", result.Name)
	assert.True(t, strings.HasPrefix(result.Path, "space/9/2024-05-06_"), result.Path)
	assert.True(t, strings.HasSuffix(result.Path, ".png"), result.Path)
	assert.Equal(t, "http://cdn.test/"+result.Path, result.PrimaryURL)
	assert.Equal(t, 300, result.Width)
	assert.Equal(t, 200, result.Height)
	assert.Equal(t, 1.5, result.Scale)
	assert.Equal(t, "png", result.Format)
	assert.Greater(t, result.Size, int64(0))
	assert.Empty(t, result.ThumbnailURL)

	r, err := store.Get(context.Background(), result.Path)
	require.NoError(t, err)
	r.Close()

	assertEmptyDir(t, tmp)
}

func TestIngestURLSourceMatchesLocalSource(t *testing.T) {
	data := pngBytes(t, 64, 48)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	}))
	defer server.Close()

	p, _, tmp := newTestPipeline(t)

	fromURL, err := p.Ingest(context.Background(), NewURLSource(server.URL+"/photos/kitten.png?w=64", nil), "public/3")
	require.NoError(t, err)
	fromFile, err := p.Ingest(context.Background(), NewBytesSource("kitten.png", data), "public/3")
	require.NoError(t, err)

	assert.Equal(t, "kitten", fromURL.Name)
	assert.Equal(t, fromFile.Width, fromURL.Width)
	assert.Equal(t, fromFile.Height, fromURL.Height)
	assert.Equal(t, fromFile.Format, fromURL.Format)
	assert.NotEqual(t, fromFile.Path, fromURL.Path)
	assertEmptyDir(t, tmp)
}

func TestIngestURLWithoutExtension(t *testing.T) {
	data := pngBytes(t, 10, 10)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(data)
	}))
	defer server.Close()

	p, _, _ := newTestPipeline(t)
	result, err := p.Ingest(context.Background(), NewURLSource(server.URL+"/th/id/OIP-C.abc", nil), "public/1")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(result.Path, ".png"), result.Path)
}

func TestIngestValidation(t *testing.T) {
	p, _, tmp := newTestPipeline(t)
	ctx := context.Background()

	_, err := p.Ingest(ctx, NewBytesSource("empty.png", nil), "public/1")
	assert.True(t, customErrors.Validation.Has(err))

	_, err = p.Ingest(ctx, NewLocalSource("huge.png", MaxFileSize+1, bytes.NewReader([]byte{1})), "public/1")
	assert.True(t, customErrors.Validation.Has(err))

	_, err = p.Ingest(ctx, NewBytesSource("doc.pdf", []byte("%PDF-1.4")), "public/1")
	assert.True(t, customErrors.Validation.Has(err))

	// extension is allowed but the content is not an image
	_, err = p.Ingest(ctx, NewBytesSource("fake.png", []byte("just some text")), "public/1")
	assert.True(t, customErrors.Validation.Has(err))

	_, err = p.Ingest(ctx, NewURLSource("", nil), "public/1")
	assert.True(t, customErrors.Validation.Has(err))

	_, err = p.Ingest(ctx, NewURLSource("ftp://example.com/a.png", nil), "public/1")
	assert.True(t, customErrors.Validation.Has(err))

	assertEmptyDir(t, tmp)
}

func TestIngestURLHeadCheckRejectsContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html></html>"))
	}))
	defer server.Close()

	p, _, _ := newTestPipeline(t)
	_, err := p.Ingest(context.Background(), NewURLSource(server.URL+"/a.png", nil), "public/1")
	assert.True(t, customErrors.Validation.Has(err))
}

func TestIngestURLFetchFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	p, _, tmp := newTestPipeline(t)
	_, err := p.Ingest(context.Background(), NewURLSource(server.URL+"/a.png", nil), "public/1")
	assert.True(t, customErrors.System.Has(err))
	assert.Contains(t, err.Error(), "ingestion failed")
	assert.NotContains(t, err.Error(), "502")
	assertEmptyDir(t, tmp)
}

type failingStore struct {
	*objectstore.LocalStore
}

func (failingStore) Put(context.Context, string, io.ReadSeeker, string) error {
	return errors.New("bucket unavailable")
}

func TestIngestStoreFailureIsSystemError(t *testing.T) {
	local, err := objectstore.NewLocalStore(t.TempDir(), "http://cdn.test")
	require.NoError(t, err)

	p := NewPipeline(failingStore{local}, nil, nil)
	p.TempDir = t.TempDir()

	_, err = p.Ingest(context.Background(), NewBytesSource("a.png", pngBytes(t, 2, 2)), "public/1")
	assert.True(t, customErrors.System.Has(err))
	assert.NotContains(t, err.Error(), "bucket unavailable")
	assertEmptyDir(t, p.TempDir)
}

type stubThumbnailer struct {
	url string
	err error
}

func (s stubThumbnailer) Publish(_ context.Context, _ string, r io.Reader) (string, error) {
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	return s.url, s.err
}

func TestIngestThumbnail(t *testing.T) {
	local, err := objectstore.NewLocalStore(t.TempDir(), "http://cdn.test")
	require.NoError(t, err)

	p := NewPipeline(local, stubThumbnailer{url: "https://thumbs.test/1"}, nil)
	result, err := p.Ingest(context.Background(), NewBytesSource("a.png", pngBytes(t, 2, 2)), "public/1")
	require.NoError(t, err)
	assert.Equal(t, "https://thumbs.test/1", result.ThumbnailURL)

	// a failing thumbnail does not fail the ingestion
	p = NewPipeline(local, stubThumbnailer{err: errors.New("quota")}, nil)
	result, err = p.Ingest(context.Background(), NewBytesSource("a.png", pngBytes(t, 2, 2)), "public/1")
	require.NoError(t, err)
	assert.Empty(t, result.ThumbnailURL)
}
