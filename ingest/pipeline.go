// Package ingest turns an uploaded file or a remote url into a stored object
// with its image metadata.
package ingest

import (
	"context"
	"io"
	"os"
	"path"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/uber-go/tally"
	"go.uber.org/zap"

	"github.com/bitmark-inc/picture-gallery/customErrors"
	"github.com/bitmark-inc/picture-gallery/log"
	"github.com/bitmark-inc/picture-gallery/objectstore"
)

// Thumbnailer publishes a resized variant of an image and returns its url.
type Thumbnailer interface {
	Publish(ctx context.Context, name string, r io.Reader) (string, error)
}

// Result describes a stored object.
type Result struct {
	Path         string
	PrimaryURL   string
	ThumbnailURL string
	DownloadURL  string

	Name   string
	Size   int64
	Width  int
	Height int
	Scale  float64
	Format string
}

type Pipeline struct {
	store       objectstore.ObjectStore
	thumbnailer Thumbnailer
	scope       tally.Scope

	// TempDir holds the transient copies of sources. Empty means os.TempDir.
	TempDir string
	now     func() time.Time
}

// NewPipeline returns a pipeline pushing into store. thumbnailer and scope are optional.
func NewPipeline(store objectstore.ObjectStore, thumbnailer Thumbnailer, scope tally.Scope) *Pipeline {
	if scope == nil {
		scope = tally.NoopScope
	}

	return &Pipeline{
		store:       store,
		thumbnailer: thumbnailer,
		scope:       scope.SubScope("ingest"),
		now:         time.Now,
	}
}

// Ingest validates src and stores it under prefix. Validation errors are
// returned as they are; any other failure is logged and reported as a system
// error without its cause.
func (p *Pipeline) Ingest(ctx context.Context, src Source, prefix string) (Result, error) {
	start := time.Now()

	result, err := p.ingest(ctx, src, prefix)
	if err != nil {
		if customErrors.IsClassified(err) && !customErrors.System.Has(err) {
			p.scope.Counter("rejected").Inc(1)
			return Result{}, err
		}

		log.Error("ingestion failed", log.SourceIngest,
			zap.String("prefix", prefix),
			zap.String("name", src.OriginalName()),
			zap.Error(err))
		p.scope.Counter("failed").Inc(1)
		return Result{}, customErrors.System.New("ingestion failed")
	}

	p.scope.Timer("latency").Record(time.Since(start))
	return result, nil
}

func (p *Pipeline) ingest(ctx context.Context, src Source, prefix string) (Result, error) {
	if err := src.Validate(ctx); err != nil {
		return Result{}, err
	}

	name := DisplayName(src.OriginalName())
	storagePath := StoragePath(prefix, src.Extension(), p.now())

	tmp, err := os.CreateTemp(p.TempDir, "ingest-*")
	if err != nil {
		return Result{}, err
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	size, err := src.Materialize(ctx, tmp)
	if err != nil {
		return Result{}, err
	}
	if size == 0 {
		return Result{}, customErrors.Validation.New("file is empty")
	}

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return Result{}, err
	}
	mime, err := mimetype.DetectReader(tmp)
	if err != nil {
		return Result{}, err
	}
	contentType := baseContentType(mime.String())
	if !IsAllowedContentType(contentType) {
		return Result{}, customErrors.Validation.New("file type is not allowed")
	}
	if path.Ext(storagePath) == "" {
		storagePath += allowedContentTypes[contentType]
	}

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return Result{}, err
	}
	if err := p.store.Put(ctx, storagePath, tmp, contentType); err != nil {
		return Result{}, err
	}
	log.Debug("object stored", log.SourceIngest,
		zap.String("path", storagePath),
		zap.Int64("size", size))

	info, err := p.store.StatImage(ctx, storagePath)
	if err != nil {
		if derr := p.store.Delete(ctx, storagePath); derr != nil {
			log.Warn("fail to remove unreadable object", log.SourceIngest,
				zap.String("path", storagePath), zap.Error(derr))
		}
		return Result{}, err
	}

	return Result{
		Path:         storagePath,
		PrimaryURL:   p.store.URL(storagePath),
		ThumbnailURL: p.publishThumbnail(ctx, storagePath, tmp),
		Name:         name,
		Size:         size,
		Width:        info.Width,
		Height:       info.Height,
		Scale:        AspectRatio(info.Width, info.Height),
		Format:       info.Format,
	}, nil
}

// publishThumbnail returns an empty url when no thumbnailer is configured or
// publishing fails.
func (p *Pipeline) publishThumbnail(ctx context.Context, storagePath string, f *os.File) string {
	if p.thumbnailer == nil {
		return ""
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		log.Warn("fail to rewind file for thumbnail", log.SourceIngest, zap.Error(err))
		return ""
	}

	url, err := p.thumbnailer.Publish(ctx, storagePath, f)
	if err != nil {
		log.Warn("fail to publish thumbnail", log.SourceIngest,
			zap.String("path", storagePath), zap.Error(err))
		return ""
	}
	return url
}
