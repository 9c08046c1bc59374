package gallery

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/meirf/gopart"
	"go.uber.org/zap"

	"github.com/bitmark-inc/picture-gallery/cache"
	"github.com/bitmark-inc/picture-gallery/customErrors"
	"github.com/bitmark-inc/picture-gallery/ingest"
	"github.com/bitmark-inc/picture-gallery/log"
)

// ListingNamespace prefixes the cache keys of picture listings.
const ListingNamespace = "picture:listPictureVOByPage"

const (
	MaxNameRunes         = 128
	MaxIntroductionRunes = 800

	spacePurgeBatchSize = 50
)

// Ingester stores a source under a path prefix.
type Ingester interface {
	Ingest(ctx context.Context, src ingest.Source, prefix string) (ingest.Result, error)
}

type PictureService struct {
	store    Store
	ledger   *QuotaLedger
	ingester Ingester
	listings *cache.ReadThrough
	cleaner  *Cleaner

	now func() time.Time
}

// NewPictureService wires the picture operations. listings may be nil to
// serve listings straight from the store.
func NewPictureService(store Store, ledger *QuotaLedger, ingester Ingester, listings *cache.ReadThrough, cleaner *Cleaner) *PictureService {
	return &PictureService{
		store:    store,
		ledger:   ledger,
		ingester: ingester,
		listings: listings,
		cleaner:  cleaner,
		now:      time.Now,
	}
}

func requireLogin(user User) error {
	if user.ID == 0 {
		return customErrors.Permission.New("login required")
	}
	return nil
}

func requireAdmin(user User) error {
	if !user.IsAdmin() {
		return customErrors.Permission.New("admin required")
	}
	return nil
}

// CheckPictureAuth allows the owner or an admin on public pictures and only
// the owner on pictures in a private space.
func CheckPictureAuth(user User, asset Asset) error {
	if asset.UserID == user.ID {
		return nil
	}
	if !asset.InSpace() && user.IsAdmin() {
		return nil
	}
	return customErrors.Permission.New("no permission on picture %d", asset.ID)
}

// UploadPicture ingests src and commits it as a new picture, or as a
// replacement of req.ID when set.
func (s *PictureService) UploadPicture(ctx context.Context, user User, src ingest.Source, req UploadRequest) (Asset, error) {
	if err := requireLogin(user); err != nil {
		return Asset{}, err
	}

	spaceID := req.SpaceID

	var old *Asset
	if req.ID > 0 {
		existing, err := s.store.GetAsset(ctx, req.ID)
		if err != nil {
			return Asset{}, err
		}
		if existing.UserID != user.ID && !user.IsAdmin() {
			return Asset{}, customErrors.Permission.New("no permission on picture %d", req.ID)
		}

		switch {
		case spaceID == 0 && existing.InSpace():
			spaceID = *existing.SpaceID
		case spaceID != 0 && (!existing.InSpace() || *existing.SpaceID != spaceID):
			return Asset{}, customErrors.Validation.New("space id does not match the picture")
		}
		old = &existing
	}

	prefix := fmt.Sprintf("public/%d", user.ID)
	if spaceID > 0 {
		space, err := s.store.GetSpace(ctx, spaceID)
		if err != nil {
			return Asset{}, err
		}
		if space.UserID != user.ID {
			return Asset{}, customErrors.Permission.New("no permission on space %d", spaceID)
		}
		if old == nil {
			// every stored file has at least one byte
			if err := CheckAdmission(space, 1); err != nil {
				return Asset{}, err
			}
		}
		prefix = fmt.Sprintf("space/%d", spaceID)
	}

	result, err := s.ingester.Ingest(ctx, src, prefix)
	if err != nil {
		return Asset{}, err
	}

	asset := Asset{
		URL:          result.PrimaryURL,
		ThumbnailURL: result.ThumbnailURL,
		DownloadURL:  result.DownloadURL,
		Name:         result.Name,
		Category:     req.Category,
		Tags:         req.Tags,
		PicSize:      result.Size,
		PicWidth:     result.Width,
		PicHeight:    result.Height,
		PicScale:     result.Scale,
		PicFormat:    result.Format,
		UserID:       user.ID,
		EditTime:     s.now(),
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		asset.Name = name
	}
	if spaceID > 0 {
		asset.SpaceID = &spaceID
	}
	if old != nil {
		asset.UserID = old.UserID
		asset.Introduction = old.Introduction
	}
	s.fillReviewParams(&asset, user)

	var replaced Asset
	if old != nil {
		replaced, err = s.ledger.CommitReplace(ctx, &asset, old.ID)
	} else {
		err = s.ledger.CommitCreate(ctx, &asset)
	}
	if err != nil {
		// the pushed file is not referenced by any row
		s.scheduleCleanup(Asset{URL: result.PrimaryURL, ThumbnailURL: result.ThumbnailURL, DownloadURL: result.DownloadURL})
		return Asset{}, err
	}

	if old != nil && replaced.URL != asset.URL {
		s.scheduleCleanup(replaced)
	}
	s.invalidateListings(ctx)

	log.Info("picture stored", log.SourceLedger,
		zap.Int64("pictureID", asset.ID),
		zap.Int64("userID", user.ID),
		zap.Int64("spaceID", spaceID),
		zap.Bool("replaced", old != nil))
	return asset, nil
}

// fillReviewParams approves pictures of admins and of private spaces and
// queues everything else for review.
func (s *PictureService) fillReviewParams(asset *Asset, user User) {
	now := s.now()

	switch {
	case user.IsAdmin():
		reviewer := user.ID
		asset.ReviewStatus = ReviewPass
		asset.ReviewerID = &reviewer
		asset.ReviewMessage = "auto approved for admin"
		asset.ReviewTime = &now
	case asset.InSpace():
		asset.ReviewStatus = ReviewPass
		asset.ReviewerID = nil
		asset.ReviewMessage = "auto approved in private space"
		asset.ReviewTime = &now
	default:
		asset.ReviewStatus = ReviewPending
		asset.ReviewerID = nil
		asset.ReviewMessage = ""
		asset.ReviewTime = nil
	}
}

func (s *PictureService) DeletePicture(ctx context.Context, user User, id int64) error {
	if err := requireLogin(user); err != nil {
		return err
	}

	asset, err := s.store.GetAsset(ctx, id)
	if err != nil {
		return err
	}
	if err := CheckPictureAuth(user, asset); err != nil {
		return err
	}

	deleted, err := s.ledger.CommitDelete(ctx, asset.ID)
	if err != nil {
		return err
	}

	s.scheduleCleanup(deleted)
	s.invalidateListings(ctx)
	return nil
}

// EditPicture lets the owner change the descriptive fields of a picture.
// Public pictures edited by a non admin go back to review.
func (s *PictureService) EditPicture(ctx context.Context, user User, req EditRequest) (Asset, error) {
	if err := requireLogin(user); err != nil {
		return Asset{}, err
	}
	return s.edit(ctx, user, req)
}

// UpdatePicture is the admin variant of EditPicture.
func (s *PictureService) UpdatePicture(ctx context.Context, user User, req EditRequest) (Asset, error) {
	if err := requireAdmin(user); err != nil {
		return Asset{}, err
	}
	return s.edit(ctx, user, req)
}

func (s *PictureService) edit(ctx context.Context, user User, req EditRequest) (Asset, error) {
	if req.ID <= 0 {
		return Asset{}, customErrors.Validation.New("picture id is required")
	}
	if utf8.RuneCountInString(req.Name) > MaxNameRunes {
		return Asset{}, customErrors.Validation.New("picture name is too long")
	}
	if utf8.RuneCountInString(req.Introduction) > MaxIntroductionRunes {
		return Asset{}, customErrors.Validation.New("picture introduction is too long")
	}

	asset, err := s.store.GetAsset(ctx, req.ID)
	if err != nil {
		return Asset{}, err
	}
	if err := CheckPictureAuth(user, asset); err != nil {
		return Asset{}, err
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		asset.Name = name
	}
	asset.Introduction = req.Introduction
	asset.Category = req.Category
	asset.Tags = req.Tags
	asset.EditTime = s.now()
	s.fillReviewParams(&asset, user)

	if err := s.store.UpdateAsset(ctx, asset,
		"name", "introduction", "category", "tags", "edit_time",
		"review_status", "reviewer_id", "review_message", "review_time"); err != nil {
		return Asset{}, err
	}

	s.invalidateListings(ctx)
	return asset, nil
}

// ReviewPicture records an admin decision on a picture.
func (s *PictureService) ReviewPicture(ctx context.Context, user User, req ReviewRequest) (Asset, error) {
	if err := requireAdmin(user); err != nil {
		return Asset{}, err
	}
	if req.ID <= 0 || !req.ReviewStatus.Valid() || req.ReviewStatus == ReviewPending {
		return Asset{}, customErrors.Validation.New("invalid review request")
	}

	asset, err := s.store.GetAsset(ctx, req.ID)
	if err != nil {
		return Asset{}, err
	}
	if asset.ReviewStatus == req.ReviewStatus {
		return Asset{}, customErrors.Conflict.New("picture %d is already %s", req.ID, req.ReviewStatus)
	}

	now := s.now()
	reviewer := user.ID
	asset.ReviewStatus = req.ReviewStatus
	asset.ReviewMessage = req.ReviewMessage
	asset.ReviewerID = &reviewer
	asset.ReviewTime = &now

	if err := s.store.UpdateAsset(ctx, asset, "review_status", "review_message", "reviewer_id", "review_time"); err != nil {
		return Asset{}, err
	}

	s.invalidateListings(ctx)
	return asset, nil
}

func (s *PictureService) GetPicture(ctx context.Context, user User, id int64) (Asset, error) {
	asset, err := s.store.GetAsset(ctx, id)
	if err != nil {
		return Asset{}, err
	}
	if asset.InSpace() {
		if err := CheckPictureAuth(user, asset); err != nil {
			return Asset{}, err
		}
	}
	return asset, nil
}

// ListPictures returns a JSON encoded Page through the listing cache. The
// public pool only shows approved pictures; a space is only listed for its
// owner.
func (s *PictureService) ListPictures(ctx context.Context, user User, q AssetQuery) (json.RawMessage, error) {
	if q.PageSize > MaxPageSize {
		return nil, customErrors.Validation.New("page size cannot exceed %d", MaxPageSize)
	}
	if err := ValidateQuery(&q); err != nil {
		return nil, err
	}

	if q.SpaceID == 0 {
		approved := ReviewPass
		q.ReviewStatus = &approved
		q.NullSpaceID = true
	} else {
		space, err := s.store.GetSpace(ctx, q.SpaceID)
		if err != nil {
			return nil, err
		}
		if space.UserID != user.ID {
			return nil, customErrors.Permission.New("no permission on space %d", q.SpaceID)
		}
		q.NullSpaceID = false
	}

	load := func(ctx context.Context) ([]byte, error) {
		page, err := s.store.ListAssets(ctx, q)
		if err != nil {
			return nil, err
		}
		return json.Marshal(page)
	}

	if s.listings == nil {
		return load(ctx)
	}
	return s.listings.Get(ctx, q, load)
}

// ListAllPictures lists every picture for admins without caching.
func (s *PictureService) ListAllPictures(ctx context.Context, user User, q AssetQuery) (Page, error) {
	if err := requireAdmin(user); err != nil {
		return Page{}, err
	}
	return s.store.ListAssets(ctx, q)
}

// DeleteSpace removes every picture of a space and then the space itself.
func (s *PictureService) DeleteSpace(ctx context.Context, user User, spaceID int64) error {
	if err := requireLogin(user); err != nil {
		return err
	}

	space, err := s.store.GetSpace(ctx, spaceID)
	if err != nil {
		return err
	}
	if space.UserID != user.ID && !user.IsAdmin() {
		return customErrors.Permission.New("no permission on space %d", spaceID)
	}

	if err := s.DeletePicturesBySpace(ctx, spaceID); err != nil {
		return err
	}
	if err := s.store.DeleteSpace(ctx, spaceID); err != nil {
		return err
	}

	log.Info("space deleted", log.SourceSpace, zap.Int64("spaceID", spaceID))
	return nil
}

// DeletePicturesBySpace deletes the pictures of a space in batches, releasing
// their quota and scheduling the cleanup of their files.
func (s *PictureService) DeletePicturesBySpace(ctx context.Context, spaceID int64) error {
	ids, err := s.store.ListAssetIDsBySpace(ctx, spaceID)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	for idxRange := range gopart.Partition(len(ids), spacePurgeBatchSize) {
		assets, err := s.store.GetAssets(ctx, ids[idxRange.Low:idxRange.High])
		if err != nil {
			return err
		}

		for _, asset := range assets {
			deleted, err := s.ledger.CommitDelete(ctx, asset.ID)
			if err != nil {
				if customErrors.NotFound.Has(err) {
					continue
				}
				return err
			}
			s.scheduleCleanup(deleted)
		}
	}

	s.invalidateListings(ctx)
	return nil
}

// InvalidateCache drops every cached listing.
func (s *PictureService) InvalidateCache(ctx context.Context, user User) error {
	if err := requireAdmin(user); err != nil {
		return err
	}
	if s.listings == nil {
		return nil
	}
	return s.listings.InvalidateAll(ctx)
}

func (s *PictureService) invalidateListings(ctx context.Context) {
	if s.listings == nil {
		return
	}
	if err := s.listings.InvalidateAll(ctx); err != nil {
		log.Error("fail to invalidate listing cache", log.SourceCache, zap.Error(err))
	}
}

func (s *PictureService) scheduleCleanup(asset Asset) {
	if s.cleaner != nil {
		s.cleaner.Schedule(asset)
	}
}
