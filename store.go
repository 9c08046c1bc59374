package gallery

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bitmark-inc/picture-gallery/customErrors"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 20

	// limits of any listing, including the uncached admin one
	MaxQueryPageSize = 500
	MaxPageNumber    = 100000
)

// Store reads and writes assets and spaces outside of ledger transactions.
type Store interface {
	GetAsset(ctx context.Context, id int64) (Asset, error)
	GetAssets(ctx context.Context, ids []int64) ([]Asset, error)
	UpdateAsset(ctx context.Context, asset Asset, columns ...string) error
	CountAssetsByURL(ctx context.Context, url string) (int64, error)
	ListAssets(ctx context.Context, query AssetQuery) (Page, error)
	ListAssetIDsBySpace(ctx context.Context, spaceID int64) ([]int64, error)

	GetSpace(ctx context.Context, id int64) (Space, error)
	GetSpaceByOwner(ctx context.Context, userID int64) (Space, error)
	ListSpaceIDs(ctx context.Context) ([]int64, error)
	DeleteSpace(ctx context.Context, id int64) error
	RecalculateSpaceUsage(ctx context.Context, id int64) (before Space, after Space, err error)
}

// OpenDatabase connects to postgres with the pool settings used by every
// gallery service.
func OpenDatabase(dsn string, logLevel int) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.LogLevel(logLevel)),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqldb, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqldb.SetMaxOpenConns(50)
	// SetConnMaxLifetime sets the maximum amount of time a connection may be reused.
	sqldb.SetConnMaxLifetime(time.Hour)

	return db, nil
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Space{}, &Asset{})
}

type PostgresStore struct {
	db *gorm.DB
}

func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return customErrors.NotFound.New(format, args...)
	}
	return err
}

func (s *PostgresStore) GetAsset(ctx context.Context, id int64) (Asset, error) {
	var asset Asset
	err := s.db.WithContext(ctx).First(&asset, "id = ?", id).Error
	return asset, notFound(err, "picture %d does not exist", id)
}

func (s *PostgresStore) GetAssets(ctx context.Context, ids []int64) ([]Asset, error) {
	var assets []Asset
	if len(ids) == 0 {
		return assets, nil
	}
	err := s.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&assets).Error
	return assets, err
}

// UpdateAsset writes the given columns of asset. Every column is written when
// none is named.
func (s *PostgresStore) UpdateAsset(ctx context.Context, asset Asset, columns ...string) error {
	tx := s.db.WithContext(ctx).Model(&Asset{}).Where("id = ?", asset.ID)
	if len(columns) == 0 {
		tx = tx.Select("*").Omit("id", "created_at")
	} else {
		tx = tx.Select(columns)
	}

	result := tx.Updates(&asset)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return customErrors.NotFound.New("picture %d does not exist", asset.ID)
	}
	return nil
}

func (s *PostgresStore) CountAssetsByURL(ctx context.Context, url string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Asset{}).Where("url = ?", url).Count(&count).Error
	return count, err
}

var sortColumns = map[string]string{
	"id":           "id",
	"name":         "name",
	"category":     "category",
	"picSize":      "pic_size",
	"picWidth":     "pic_width",
	"picHeight":    "pic_height",
	"picScale":     "pic_scale",
	"reviewStatus": "review_status",
	"editTime":     "edit_time",
	"createTime":   "created_at",
	"updateTime":   "updated_at",
}

// ValidateQuery normalizes paging and rejects unknown sort fields.
func ValidateQuery(q *AssetQuery) error {
	if q.Current <= 0 {
		q.Current = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	if q.Current > MaxPageNumber {
		return customErrors.Validation.New("page number cannot exceed %d", MaxPageNumber)
	}
	if q.PageSize > MaxQueryPageSize {
		return customErrors.Validation.New("page size cannot exceed %d", MaxQueryPageSize)
	}
	if q.SortField != "" {
		if _, ok := sortColumns[q.SortField]; !ok {
			return customErrors.Validation.New("unknown sort field %q", q.SortField)
		}
	}
	switch q.SortOrder {
	case "", "ascend", "descend":
	default:
		return customErrors.Validation.New("unknown sort order %q", q.SortOrder)
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern matches v literally anywhere in a column with ESCAPE '\'.
func containsPattern(v string) string {
	return "%" + likeEscaper.Replace(v) + "%"
}

func (s *PostgresStore) filteredAssets(ctx context.Context, q AssetQuery) *gorm.DB {
	tx := s.db.WithContext(ctx).Model(&Asset{})

	if q.ID > 0 {
		tx = tx.Where("id = ?", q.ID)
	}
	if q.UserID > 0 {
		tx = tx.Where("user_id = ?", q.UserID)
	}
	if q.SpaceID > 0 {
		tx = tx.Where("space_id = ?", q.SpaceID)
	}
	if q.NullSpaceID {
		tx = tx.Where("space_id IS NULL")
	}
	if q.SearchText != "" {
		like := containsPattern(q.SearchText)
		tx = tx.Where(`(name LIKE ? ESCAPE '\' OR introduction LIKE ? ESCAPE '\')`, like, like)
	}
	if q.Name != "" {
		tx = tx.Where(`name LIKE ? ESCAPE '\'`, containsPattern(q.Name))
	}
	if q.Introduction != "" {
		tx = tx.Where(`introduction LIKE ? ESCAPE '\'`, containsPattern(q.Introduction))
	}
	if q.Category != "" {
		tx = tx.Where("category = ?", q.Category)
	}
	for _, tag := range q.Tags {
		encoded, _ := json.Marshal(tag)
		tx = tx.Where(`tags LIKE ? ESCAPE '\'`, containsPattern(string(encoded)))
	}
	if q.PicFormat != "" {
		tx = tx.Where(`pic_format LIKE ? ESCAPE '\'`, containsPattern(q.PicFormat))
	}
	if q.PicSize > 0 {
		tx = tx.Where("pic_size = ?", q.PicSize)
	}
	if q.PicWidth > 0 {
		tx = tx.Where("pic_width = ?", q.PicWidth)
	}
	if q.PicHeight > 0 {
		tx = tx.Where("pic_height = ?", q.PicHeight)
	}
	if q.PicScale > 0 {
		tx = tx.Where("pic_scale = ?", q.PicScale)
	}
	if q.ReviewStatus != nil {
		tx = tx.Where("review_status = ?", *q.ReviewStatus)
	}
	if q.ReviewMessage != "" {
		tx = tx.Where("review_message LIKE ?", "%"+q.ReviewMessage+"%")
	}
	if q.ReviewerID > 0 {
		tx = tx.Where("reviewer_id = ?", q.ReviewerID)
	}
	if q.StartEditTime != nil {
		tx = tx.Where("edit_time >= ?", *q.StartEditTime)
	}
	if q.EndEditTime != nil {
		tx = tx.Where("edit_time < ?", *q.EndEditTime)
	}

	return tx
}

func (s *PostgresStore) ListAssets(ctx context.Context, q AssetQuery) (Page, error) {
	if err := ValidateQuery(&q); err != nil {
		return Page{}, err
	}

	page := Page{
		Current:  q.Current,
		PageSize: q.PageSize,
		Records:  []Asset{},
	}

	if err := s.filteredAssets(ctx, q).Count(&page.Total).Error; err != nil {
		return Page{}, err
	}
	if page.Total == 0 {
		return page, nil
	}

	order := "id DESC"
	if q.SortField != "" {
		direction := "DESC"
		if q.SortOrder == "ascend" {
			direction = "ASC"
		}
		order = strings.Join([]string{sortColumns[q.SortField] + " " + direction, "id DESC"}, ", ")
	}

	err := s.filteredAssets(ctx, q).
		Order(order).
		Offset((q.Current - 1) * q.PageSize).
		Limit(q.PageSize).
		Find(&page.Records).Error
	if err != nil {
		return Page{}, err
	}

	return page, nil
}

func (s *PostgresStore) ListAssetIDsBySpace(ctx context.Context, spaceID int64) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&Asset{}).
		Where("space_id = ?", spaceID).
		Order("id").
		Pluck("id", &ids).Error
	return ids, err
}

func (s *PostgresStore) GetSpace(ctx context.Context, id int64) (Space, error) {
	var space Space
	err := s.db.WithContext(ctx).First(&space, "id = ?", id).Error
	return space, notFound(err, "space %d does not exist", id)
}

func (s *PostgresStore) GetSpaceByOwner(ctx context.Context, userID int64) (Space, error) {
	var space Space
	err := s.db.WithContext(ctx).First(&space, "user_id = ?", userID).Error
	return space, notFound(err, "user %d has no space", userID)
}

func (s *PostgresStore) ListSpaceIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&Space{}).Order("id").Pluck("id", &ids).Error
	return ids, err
}

// DeleteSpace removes an empty space.
func (s *PostgresStore) DeleteSpace(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var remaining int64
		if err := tx.Model(&Asset{}).Where("space_id = ?", id).Count(&remaining).Error; err != nil {
			return err
		}
		if remaining > 0 {
			return customErrors.Conflict.New("space %d still has %d pictures", id, remaining)
		}

		result := tx.Delete(&Space{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return customErrors.NotFound.New("space %d does not exist", id)
		}
		return nil
	})
}

// RecalculateSpaceUsage rewrites the counters of a space from its asset rows.
func (s *PostgresStore) RecalculateSpaceUsage(ctx context.Context, id int64) (Space, Space, error) {
	var before, after Space

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&before, "id = ?", id).Error; err != nil {
			return notFound(err, "space %d does not exist", id)
		}

		var usage struct {
			Count int64
			Size  int64
		}
		if err := tx.Model(&Asset{}).
			Select("COUNT(*) AS count, COALESCE(SUM(pic_size), 0) AS size").
			Where("space_id = ?", id).
			Scan(&usage).Error; err != nil {
			return err
		}

		if err := tx.Model(&Space{}).Where("id = ?", id).Updates(map[string]interface{}{
			"total_count": usage.Count,
			"total_size":  usage.Size,
		}).Error; err != nil {
			return err
		}

		after = before
		after.TotalCount = usage.Count
		after.TotalSize = usage.Size
		return nil
	})

	return before, after, err
}
