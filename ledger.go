package gallery

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bitmark-inc/picture-gallery/customErrors"
	"github.com/bitmark-inc/picture-gallery/log"
)

// QuotaLedger commits asset rows together with the usage counters of their
// space. Counters are adjusted in place by the database so concurrent commits
// on one space never lose updates.
type QuotaLedger struct {
	db *gorm.DB
}

func NewQuotaLedger(db *gorm.DB) *QuotaLedger {
	return &QuotaLedger{db: db}
}

// CheckAdmission fails when one more asset of size bytes would not fit.
// It reads a snapshot; CommitCreate repeats the check atomically.
func CheckAdmission(space Space, size int64) error {
	if space.TotalCount+1 > space.MaxCount {
		return customErrors.QuotaExceeded.New("space picture count limit reached")
	}
	if space.TotalSize+size > space.MaxSize {
		return customErrors.QuotaExceeded.New("space size limit reached")
	}
	return nil
}

// CommitCreate inserts asset and charges its space +1 count and +size. The
// charge only applies when both maxima still hold afterwards, otherwise
// nothing is written and a quota error is returned.
func (l *QuotaLedger) CommitCreate(ctx context.Context, asset *Asset) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if asset.InSpace() {
			if err := adjustSpaceUsage(tx, *asset.SpaceID, 1, asset.PicSize, true); err != nil {
				return err
			}
		}

		return tx.Create(asset).Error
	})
}

// CommitReplace overwrites picture id with asset and charges the size
// difference against the row as stored at commit time. It returns the row
// that was replaced. Replacing is not admission checked, so a larger file may
// leave the space above its size maximum.
func (l *QuotaLedger) CommitReplace(ctx context.Context, asset *Asset, id int64) (Asset, error) {
	var previous Asset

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		previous, err = lockAsset(tx, id)
		if err != nil {
			return err
		}

		if err := tx.Model(&Asset{}).
			Where("id = ?", id).
			Select("*").Omit("id", "created_at").
			Updates(asset).Error; err != nil {
			return err
		}

		if sameSpace(previous.SpaceID, asset.SpaceID) {
			if !asset.InSpace() {
				return nil
			}
			delta := asset.PicSize - previous.PicSize
			if delta > 0 {
				log.Debug("space grows on replace", log.SourceLedger,
					zap.Int64("spaceID", *asset.SpaceID),
					zap.Int64("delta", delta))
			}
			return adjustSpaceUsage(tx, *asset.SpaceID, 0, delta, false)
		}

		if previous.InSpace() {
			if err := adjustSpaceUsage(tx, *previous.SpaceID, -1, -previous.PicSize, false); err != nil {
				return err
			}
		}
		if asset.InSpace() {
			return adjustSpaceUsage(tx, *asset.SpaceID, 1, asset.PicSize, false)
		}
		return nil
	})
	if err != nil {
		return Asset{}, err
	}

	asset.ID = previous.ID
	asset.CreatedAt = previous.CreatedAt
	return previous, nil
}

// CommitDelete removes picture id and releases -1 count and -size from the
// space it belongs to at commit time. It returns the deleted row.
func (l *QuotaLedger) CommitDelete(ctx context.Context, id int64) (Asset, error) {
	var deleted Asset

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		deleted, err = lockAsset(tx, id)
		if err != nil {
			return err
		}

		if err := tx.Delete(&Asset{}, "id = ?", id).Error; err != nil {
			return err
		}

		if deleted.InSpace() {
			return adjustSpaceUsage(tx, *deleted.SpaceID, -1, -deleted.PicSize, false)
		}
		return nil
	})
	if err != nil {
		return Asset{}, err
	}
	return deleted, nil
}

// lockAsset reads the current row of picture id and holds it until the
// transaction ends.
func lockAsset(tx *gorm.DB, id int64) (Asset, error) {
	var asset Asset
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&asset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Asset{}, customErrors.NotFound.New("picture %d does not exist", id)
	}
	return asset, err
}

func sameSpace(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// adjustSpaceUsage applies the deltas with a single UPDATE. With admit the
// row is only updated when the new totals stay within the maxima.
func adjustSpaceUsage(tx *gorm.DB, spaceID, countDelta, sizeDelta int64, admit bool) error {
	q := tx.Model(&Space{}).Where("id = ?", spaceID)
	if admit {
		q = q.Where("total_count + ? <= max_count AND total_size + ? <= max_size", countDelta, sizeDelta)
	}

	result := q.Updates(map[string]interface{}{
		"total_count": gorm.Expr("total_count + ?", countDelta),
		"total_size":  gorm.Expr("total_size + ?", sizeDelta),
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 1 {
		return nil
	}

	var exists int64
	if err := tx.Model(&Space{}).Where("id = ?", spaceID).Count(&exists).Error; err != nil {
		return err
	}
	if exists == 0 {
		return customErrors.NotFound.New("space %d does not exist", spaceID)
	}
	return customErrors.QuotaExceeded.New("space quota exceeded")
}
