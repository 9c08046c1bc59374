package gallery

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bitmark-inc/picture-gallery/cache"
	"github.com/bitmark-inc/picture-gallery/ingest"
	"github.com/bitmark-inc/picture-gallery/objectstore"
)

var (
	alice = User{ID: 1, Role: RoleUser}
	bob   = User{ID: 2, Role: RoleUser}
	admin = User{ID: 99, Role: RoleAdmin}
)

// newTestDB opens a sqlite database with a single connection so concurrent
// transactions queue instead of failing with SQLITE_BUSY.
func newTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "gallery.db")), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqldb, err := db.DB()
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	t.Cleanup(func() { sqldb.Close() })

	require.NoError(t, AutoMigrate(db))
	return db
}

func pngBytes(t *testing.T, w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{B: 255, A: 255})

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func createSpace(t *testing.T, db *gorm.DB, space Space) Space {
	if space.Name == "" {
		space.Name = DefaultSpaceName
	}
	require.NoError(t, db.Create(&space).Error)
	return space
}

func reloadSpace(t *testing.T, db *gorm.DB, id int64) Space {
	var space Space
	require.NoError(t, db.First(&space, "id = ?", id).Error)
	return space
}

type testEnv struct {
	db       *gorm.DB
	store    *PostgresStore
	ledger   *QuotaLedger
	gate     *SpaceGate
	objects  *objectstore.LocalStore
	cleaner  *Cleaner
	listings *cache.ReadThrough
	service  *PictureService

	closeCleaner sync.Once
}

func newTestEnv(t *testing.T) *testEnv {
	db := newTestDB(t)

	objects, err := objectstore.NewLocalStore(t.TempDir(), "http://cdn.test/files")
	require.NoError(t, err)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	shared, err := cache.NewRedisStore(mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { shared.Close() })

	env := &testEnv{
		db:      db,
		store:   NewPostgresStore(db),
		ledger:  NewQuotaLedger(db),
		gate:    NewSpaceGate(db),
		objects: objects,
	}
	env.cleaner = NewCleaner(env.store, objects, nil, 2, 16)
	env.listings = cache.NewReadThrough(ListingNamespace, cache.NewLocalCache(100, time.Minute), shared, cache.Options{})

	pipeline := ingest.NewPipeline(objects, nil, nil)
	pipeline.TempDir = t.TempDir()
	env.service = NewPictureService(env.store, env.ledger, pipeline, env.listings, env.cleaner)

	t.Cleanup(env.drainCleanup)
	return env
}

// drainCleanup waits for every scheduled cleanup job.
func (e *testEnv) drainCleanup() {
	e.closeCleaner.Do(e.cleaner.Close)
}

func (e *testEnv) objectExists(t *testing.T, url string) bool {
	path, ok := e.objects.PathOf(url)
	require.True(t, ok, url)

	r, err := e.objects.Get(context.Background(), path)
	if err != nil {
		require.ErrorIs(t, err, objectstore.ErrNotExist)
		return false
	}
	r.Close()
	return true
}

func (e *testEnv) upload(t *testing.T, user User, req UploadRequest, w, h int) Asset {
	asset, err := e.service.UploadPicture(context.Background(), user, ingest.NewBytesSource("photo.png", pngBytes(t, w, h)), req)
	require.NoError(t, err)
	return asset
}
