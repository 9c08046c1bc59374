package gallery

import (
	"context"
	"errors"
	"hash/fnv"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bitmark-inc/picture-gallery/customErrors"
	"github.com/bitmark-inc/picture-gallery/log"
)

const (
	DefaultSpaceName  = "default space"
	MaxSpaceNameRunes = 30

	spaceLockStripes = 64
)

// SpaceGate creates the single private space of a user. Calls for one user
// are serialized by a fixed table of lock stripes; the existence check inside
// the transaction and the unique owner index are what enforce one space per
// user across processes.
type SpaceGate struct {
	db    *gorm.DB
	locks [spaceLockStripes]sync.Mutex
}

func NewSpaceGate(db *gorm.DB) *SpaceGate {
	return &SpaceGate{db: db}
}

func (g *SpaceGate) lockFor(userID int64) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(strconv.FormatInt(userID, 10)))
	return &g.locks[h.Sum32()%spaceLockStripes]
}

// NewSpace validates req and fills the defaults of a space for userID.
func NewSpace(userID int64, req SpaceAddRequest) (Space, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = DefaultSpaceName
	}
	if utf8.RuneCountInString(name) > MaxSpaceNameRunes {
		return Space{}, customErrors.Validation.New("space name is too long")
	}
	if !req.Level.Valid() {
		return Space{}, customErrors.Validation.New("space level is invalid")
	}

	quota := req.Level.Quota()
	return Space{
		Name:     name,
		Level:    req.Level,
		MaxCount: quota.MaxCount,
		MaxSize:  quota.MaxSize,
		UserID:   userID,
		EditTime: time.Now(),
	}, nil
}

// CreateSpace creates the space of user and returns its id. Only admins may
// create spaces above the common level.
func (g *SpaceGate) CreateSpace(ctx context.Context, user User, req SpaceAddRequest) (int64, error) {
	if user.ID == 0 {
		return 0, customErrors.Permission.New("login required")
	}

	space, err := NewSpace(user.ID, req)
	if err != nil {
		return 0, err
	}
	if space.Level != SpaceLevelCommon && !user.IsAdmin() {
		return 0, customErrors.Permission.New("no permission to create a %s space", space.Level.Quota().Name)
	}

	mu := g.lockFor(user.ID)
	mu.Lock()
	defer mu.Unlock()

	err = g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&Space{}).Where("user_id = ?", user.ID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return customErrors.Conflict.New("each user can only have one space")
		}

		if err := tx.Create(&space).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return customErrors.Conflict.New("each user can only have one space")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	log.Info("space created", log.SourceSpace,
		zap.Int64("userID", user.ID),
		zap.Int64("spaceID", space.ID),
		zap.String("level", space.Level.Quota().Name))
	return space.ID, nil
}

// ResizeSpace changes the level, maxima or name of a space. Maxima never go
// below the current usage.
func (g *SpaceGate) ResizeSpace(ctx context.Context, user User, req SpaceResizeRequest) (Space, error) {
	if !user.IsAdmin() {
		return Space{}, customErrors.Permission.New("only admins can resize spaces")
	}

	var space Space
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&space, "id = ?", req.ID).Error; err != nil {
			return notFound(err, "space %d does not exist", req.ID)
		}

		if req.Level != nil {
			if !req.Level.Valid() {
				return customErrors.Validation.New("space level is invalid")
			}
			quota := req.Level.Quota()
			space.Level = *req.Level
			space.MaxCount = quota.MaxCount
			space.MaxSize = quota.MaxSize
		}
		if req.MaxCount > 0 {
			space.MaxCount = req.MaxCount
		}
		if req.MaxSize > 0 {
			space.MaxSize = req.MaxSize
		}
		if name := strings.TrimSpace(req.Name); name != "" {
			if utf8.RuneCountInString(name) > MaxSpaceNameRunes {
				return customErrors.Validation.New("space name is too long")
			}
			space.Name = name
		}
		space.EditTime = time.Now()

		// the usage guard is evaluated against the row, not the snapshot
		result := tx.Model(&Space{}).
			Where("id = ? AND total_count <= ? AND total_size <= ?", space.ID, space.MaxCount, space.MaxSize).
			Updates(map[string]interface{}{
				"name":      space.Name,
				"level":     space.Level,
				"max_count": space.MaxCount,
				"max_size":  space.MaxSize,
				"edit_time": space.EditTime,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return customErrors.Validation.New("space maxima cannot go below current usage")
		}

		return tx.First(&space, "id = ?", space.ID).Error
	})

	return space, err
}
