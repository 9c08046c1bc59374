package gallery

import (
	"context"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/bitmark-inc/picture-gallery/log"
	"github.com/bitmark-inc/picture-gallery/objectstore"
)

const (
	DefaultCleanupWorkers   = 4
	DefaultCleanupQueueSize = 1024

	cleanupTimeout = time.Minute
)

// ThumbnailRemover deletes thumbnails published outside the object store.
type ThumbnailRemover interface {
	Owns(url string) bool
	Remove(ctx context.Context, url string) error
}

type urlCounter interface {
	CountAssetsByURL(ctx context.Context, url string) (int64, error)
}

// Cleaner deletes the stored files of removed assets in the background.
// Failures are logged and never retried.
type Cleaner struct {
	assets     urlCounter
	objects    objectstore.ObjectStore
	thumbnails ThumbnailRemover

	jobs chan Asset
	pool *pool.Pool
}

// NewCleaner starts workers goroutines draining a queue of queueSize jobs.
// thumbnails may be nil.
func NewCleaner(assets urlCounter, objects objectstore.ObjectStore, thumbnails ThumbnailRemover, workers, queueSize int) *Cleaner {
	if workers <= 0 {
		workers = DefaultCleanupWorkers
	}
	if queueSize <= 0 {
		queueSize = DefaultCleanupQueueSize
	}

	c := &Cleaner{
		assets:     assets,
		objects:    objects,
		thumbnails: thumbnails,
		jobs:       make(chan Asset, queueSize),
		pool:       pool.New().WithMaxGoroutines(workers),
	}

	for i := 0; i < workers; i++ {
		c.pool.Go(func() {
			for asset := range c.jobs {
				c.run(asset)
			}
		})
	}

	return c
}

// Schedule queues the files of asset for deletion without blocking. A job is
// dropped when the queue is full.
func (c *Cleaner) Schedule(asset Asset) {
	select {
	case c.jobs <- asset:
	default:
		log.Warn("cleanup queue is full, drop job", log.SourceCleanup,
			zap.Int64("pictureID", asset.ID),
			zap.String("url", asset.URL))
	}
}

// Close waits for queued jobs to finish. Schedule must not be called afterwards.
func (c *Cleaner) Close() {
	close(c.jobs)
	c.pool.Wait()
}

func (c *Cleaner) run(asset Asset) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	if err := c.Clean(ctx, asset); err != nil {
		log.Error("fail to clean picture files", log.SourceCleanup,
			zap.Int64("pictureID", asset.ID),
			zap.String("url", asset.URL),
			zap.Error(err))
	}
}

// Clean deletes the files of asset unless another asset still references its url.
func (c *Cleaner) Clean(ctx context.Context, asset Asset) error {
	if asset.URL == "" {
		return nil
	}

	count, err := c.assets.CountAssetsByURL(ctx, asset.URL)
	if err != nil {
		return err
	}
	if count > 0 {
		log.Debug("picture file is still referenced", log.SourceCleanup,
			zap.String("url", asset.URL), zap.Int64("references", count))
		return nil
	}

	if err := c.deleteObject(ctx, asset.URL); err != nil {
		return err
	}
	if asset.DownloadURL != "" && asset.DownloadURL != asset.URL {
		if err := c.deleteObject(ctx, asset.DownloadURL); err != nil {
			return err
		}
	}

	if asset.ThumbnailURL != "" {
		if c.thumbnails != nil && c.thumbnails.Owns(asset.ThumbnailURL) {
			return c.thumbnails.Remove(ctx, asset.ThumbnailURL)
		}
		return c.deleteObject(ctx, asset.ThumbnailURL)
	}
	return nil
}

func (c *Cleaner) deleteObject(ctx context.Context, url string) error {
	path, ok := c.objects.PathOf(url)
	if !ok {
		log.Warn("skip file outside the object store", log.SourceCleanup, zap.String("url", url))
		return nil
	}
	return c.objects.Delete(ctx, path)
}
