package gallery

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/uber-go/tally"
	"go.uber.org/zap"

	"github.com/bitmark-inc/picture-gallery/customErrors"
	"github.com/bitmark-inc/picture-gallery/ingest"
	"github.com/bitmark-inc/picture-gallery/log"
)

const MaxBatchCount = 30

// Discoverer finds candidate image urls for a search term.
type Discoverer interface {
	Discover(ctx context.Context, term string, offset, count int) ([]string, error)
}

// BatchAcquisition uploads pictures found by a discovery provider.
type BatchAcquisition struct {
	pictures   *PictureService
	discoverer Discoverer
	client     *http.Client
	scope      tally.Scope
}

// NewBatchAcquisition returns a batch uploader. client bounds every remote
// fetch; scope may be nil.
func NewBatchAcquisition(pictures *PictureService, discoverer Discoverer, client *http.Client, scope tally.Scope) *BatchAcquisition {
	if scope == nil {
		scope = tally.NoopScope
	}

	return &BatchAcquisition{
		pictures:   pictures,
		discoverer: discoverer,
		client:     client,
		scope:      scope.SubScope("batch"),
	}
}

// AcquireBatch uploads up to req.Count discovered pictures into the public
// pool and returns how many were stored. A failing candidate is logged and
// skipped.
func (b *BatchAcquisition) AcquireBatch(ctx context.Context, user User, req BatchRequest) (int, error) {
	if err := requireAdmin(user); err != nil {
		return 0, err
	}

	term := strings.TrimSpace(req.SearchText)
	if term == "" {
		return 0, customErrors.Validation.New("search text is required")
	}
	if req.Count <= 0 || req.Count > MaxBatchCount {
		return 0, customErrors.Validation.New("count must be between 1 and %d", MaxBatchCount)
	}
	if req.Offset < 0 {
		return 0, customErrors.Validation.New("offset cannot be negative")
	}

	namePrefix := strings.TrimSpace(req.NamePrefix)
	if namePrefix == "" {
		namePrefix = term
	}

	candidates, err := b.discoverer.Discover(ctx, term, req.Offset, req.Count)
	if err != nil {
		return 0, err
	}

	uploaded := 0
	for _, candidate := range candidates {
		if uploaded >= req.Count {
			break
		}

		fileURL := candidate
		if i := strings.Index(fileURL, "?"); i >= 0 {
			fileURL = fileURL[:i]
		}
		fileURL = strings.TrimSpace(fileURL)
		if fileURL == "" {
			continue
		}

		upload := UploadRequest{
			Name:     fmt.Sprintf("%s%d", namePrefix, uploaded+1),
			Category: req.Category,
			Tags:     req.Tags,
			FileURL:  fileURL,
		}

		asset, err := b.pictures.UploadPicture(ctx, user, ingest.NewURLSource(fileURL, b.client), upload)
		if err != nil {
			b.scope.Counter("failed").Inc(1)
			log.Warn("fail to upload discovered picture", log.SourceBatch,
				zap.String("url", fileURL), zap.Error(err))
			continue
		}

		uploaded++
		b.scope.Counter("uploaded").Inc(1)
		log.Debug("discovered picture uploaded", log.SourceBatch,
			zap.Int64("pictureID", asset.ID), zap.String("url", fileURL))
	}

	return uploaded, nil
}
