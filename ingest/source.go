package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/bitmark-inc/picture-gallery/customErrors"
	"github.com/bitmark-inc/picture-gallery/log"
)

// Source is one kind of input the pipeline can ingest.
type Source interface {
	// Validate rejects payloads the pipeline must not store.
	Validate(ctx context.Context) error
	// OriginalName is the name the display name is derived from.
	OriginalName() string
	// Extension is the extension of the storage path. It may be empty when the
	// source does not know it yet.
	Extension() string
	// Materialize writes the payload into w and returns the number of bytes written.
	Materialize(ctx context.Context, w io.Writer) (int64, error)
}

// LocalSource is a byte stream uploaded with its original file name.
type LocalSource struct {
	filename string
	size     int64
	reader   io.Reader
}

// NewLocalSource returns a source reading size bytes from r.
func NewLocalSource(filename string, size int64, r io.Reader) *LocalSource {
	return &LocalSource{
		filename: filename,
		size:     size,
		reader:   r,
	}
}

func NewBytesSource(filename string, data []byte) *LocalSource {
	return NewLocalSource(filename, int64(len(data)), bytes.NewReader(data))
}

func (s *LocalSource) Validate(_ context.Context) error {
	if s.reader == nil || s.size <= 0 {
		return customErrors.Validation.New("file is empty")
	}
	if s.size > MaxFileSize {
		return customErrors.Validation.New("file size exceeds %d MB", MaxFileSize/1024/1024)
	}
	if !IsAllowedExtension(path.Ext(s.filename)) {
		return customErrors.Validation.New("file type is not allowed")
	}
	return nil
}

func (s *LocalSource) OriginalName() string {
	return s.filename
}

func (s *LocalSource) Extension() string {
	return normalizeExtension(path.Ext(s.filename))
}

func (s *LocalSource) Materialize(_ context.Context, w io.Writer) (int64, error) {
	return copyLimited(w, s.reader)
}

// URLSource is a remote file fetched over http(s).
type URLSource struct {
	rawURL string
	client *http.Client

	parsed      *url.URL
	contentType string
}

const defaultFetchTimeout = 30 * time.Second

// NewURLSource returns a source for rawURL. The client bounds the remote
// fetch; a client with a 30s timeout is used when nil.
func NewURLSource(rawURL string, client *http.Client) *URLSource {
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}

	return &URLSource{
		rawURL: rawURL,
		client: client,
	}
}

// Validate checks the url and, when the server answers a HEAD request, the
// advertised content type and length.
func (s *URLSource) Validate(ctx context.Context) error {
	if s.rawURL == "" {
		return customErrors.Validation.New("file url is empty")
	}

	u, err := url.Parse(s.rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return customErrors.Validation.New("file url is invalid")
	}
	s.parsed = u

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.rawURL, nil)
	if err != nil {
		return customErrors.Validation.New("file url is invalid")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		// some hosts refuse HEAD, the download reports real failures
		log.Debug("skip head check", log.SourceIngest, zap.String("url", s.rawURL), zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	if contentType := resp.Header.Get("Content-Type"); contentType != "" {
		if !IsAllowedContentType(contentType) {
			return customErrors.Validation.New("file type is not allowed")
		}
		s.contentType = baseContentType(contentType)
	}

	if length := resp.Header.Get("Content-Length"); length != "" {
		size, err := strconv.ParseInt(length, 10, 64)
		if err != nil {
			return customErrors.Validation.New("file size is invalid")
		}
		if size > MaxFileSize {
			return customErrors.Validation.New("file size exceeds %d MB", MaxFileSize/1024/1024)
		}
	}

	return nil
}

// OriginalName is the last path segment of the url.
func (s *URLSource) OriginalName() string {
	u := s.parsed
	if u == nil {
		var err error
		if u, err = url.Parse(s.rawURL); err != nil {
			return ""
		}
	}

	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return ""
	}
	return name
}

func (s *URLSource) Extension() string {
	if ext := normalizeExtension(path.Ext(s.OriginalName())); IsAllowedExtension(ext) {
		return ext
	}
	return allowedContentTypes[s.contentType]
}

func (s *URLSource) Materialize(ctx context.Context, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.rawURL, nil)
	if err != nil {
		return 0, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("fetch %s: unexpected status %d", s.rawURL, resp.StatusCode)
	}

	return copyLimited(w, resp.Body)
}

func copyLimited(w io.Writer, r io.Reader) (int64, error) {
	n, err := io.Copy(w, io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		return n, err
	}
	if n > MaxFileSize {
		return n, customErrors.Validation.New("file size exceeds %d MB", MaxFileSize/1024/1024)
	}
	return n, nil
}
