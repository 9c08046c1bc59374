package gallery

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/picture-gallery/customErrors"
)

func seedAssets(t *testing.T, ledger *QuotaLedger) []*Asset {
	space := createSpace(t, ledger.db, Space{UserID: 1, MaxCount: 100, MaxSize: 100000})
	spaceID := space.ID

	assets := []*Asset{
		newAsset(1, nil, "http://cdn/cat.png", 100),
		newAsset(1, nil, "http://cdn/dog.png", 300),
		newAsset(2, nil, "http://cdn/bird.gif", 200),
		newAsset(1, &spaceID, "http://cdn/private.jpg", 50),
	}
	assets[0].Name, assets[0].Category, assets[0].Tags = "lazy cat", "animal", []string{"cute", "pet"}
	assets[1].Name, assets[1].Category, assets[1].Tags = "good dog", "animal", []string{"pet"}
	assets[2].Name, assets[2].Category, assets[2].PicFormat = "blue bird", "nature", "gif"
	assets[2].Introduction = "a small cat chaser"
	assets[3].Name = "secret"

	for i, a := range assets {
		if i != 1 {
			a.ReviewStatus = ReviewPass
		}
		a.EditTime = time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC)
		require.NoError(t, ledger.CommitCreate(context.Background(), a))
	}
	return assets
}

func listNames(t *testing.T, store *PostgresStore, q AssetQuery) ([]string, int64) {
	page, err := store.ListAssets(context.Background(), q)
	require.NoError(t, err)

	names := make([]string, 0, len(page.Records))
	for _, r := range page.Records {
		names = append(names, r.Name)
	}
	return names, page.Total
}

func TestListAssetsFilters(t *testing.T) {
	db := newTestDB(t)
	ledger := NewQuotaLedger(db)
	store := NewPostgresStore(db)
	assets := seedAssets(t, ledger)
	pass := ReviewPass

	names, total := listNames(t, store, AssetQuery{})
	assert.Equal(t, int64(4), total)
	assert.Equal(t, []string{"secret", "blue bird", "good dog", "lazy cat"}, names)

	names, _ = listNames(t, store, AssetQuery{NullSpaceID: true, ReviewStatus: &pass})
	assert.Equal(t, []string{"blue bird", "lazy cat"}, names)

	names, _ = listNames(t, store, AssetQuery{SpaceID: *assets[3].SpaceID})
	assert.Equal(t, []string{"secret"}, names)

	names, _ = listNames(t, store, AssetQuery{Tags: []string{"pet"}, SortField: "picSize", SortOrder: "ascend"})
	assert.Equal(t, []string{"lazy cat", "good dog"}, names)

	names, _ = listNames(t, store, AssetQuery{Tags: []string{"pet", "cute"}})
	assert.Equal(t, []string{"lazy cat"}, names)

	names, _ = listNames(t, store, AssetQuery{SearchText: "cat"})
	assert.Equal(t, []string{"blue bird", "lazy cat"}, names)

	names, _ = listNames(t, store, AssetQuery{Category: "animal", UserID: 1})
	assert.Equal(t, []string{"good dog", "lazy cat"}, names)

	names, _ = listNames(t, store, AssetQuery{PicFormat: "gif"})
	assert.Equal(t, []string{"blue bird"}, names)

	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)
	names, _ = listNames(t, store, AssetQuery{StartEditTime: &start, EndEditTime: &end})
	assert.Equal(t, []string{"blue bird", "good dog"}, names)
}

func TestListAssetsPaging(t *testing.T) {
	db := newTestDB(t)
	store := NewPostgresStore(db)
	seedAssets(t, NewQuotaLedger(db))

	page, err := store.ListAssets(context.Background(), AssetQuery{Current: 2, PageSize: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(4), page.Total)
	assert.Equal(t, 2, page.Current)
	assert.Equal(t, 3, page.PageSize)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "lazy cat", page.Records[0].Name)

	empty, err := store.ListAssets(context.Background(), AssetQuery{Category: "nothing"})
	require.NoError(t, err)
	assert.NotNil(t, empty.Records)
	assert.Empty(t, empty.Records)
}

func TestValidateQuery(t *testing.T) {
	q := AssetQuery{}
	require.NoError(t, ValidateQuery(&q))
	assert.Equal(t, 1, q.Current)
	assert.Equal(t, DefaultPageSize, q.PageSize)

	assert.True(t, customErrors.Validation.Has(ValidateQuery(&AssetQuery{SortField: "id; DROP TABLE pictures"})))
	assert.True(t, customErrors.Validation.Has(ValidateQuery(&AssetQuery{SortOrder: "sideways"})))
	assert.NoError(t, ValidateQuery(&AssetQuery{SortField: "editTime", SortOrder: "descend"}))

	assert.True(t, customErrors.Validation.Has(ValidateQuery(&AssetQuery{Current: math.MaxInt})))
	assert.True(t, customErrors.Validation.Has(ValidateQuery(&AssetQuery{Current: MaxPageNumber + 1})))
	assert.True(t, customErrors.Validation.Has(ValidateQuery(&AssetQuery{PageSize: math.MaxInt})))
	assert.NoError(t, ValidateQuery(&AssetQuery{Current: MaxPageNumber, PageSize: MaxQueryPageSize}))
}

func TestListAssetsRejectsHugePage(t *testing.T) {
	db := newTestDB(t)
	store := NewPostgresStore(db)
	seedAssets(t, NewQuotaLedger(db))

	_, err := store.ListAssets(context.Background(), AssetQuery{Current: math.MaxInt, PageSize: MaxPageSize})
	assert.True(t, customErrors.Validation.Has(err))
}

func TestListAssetsMatchesWildcardsLiterally(t *testing.T) {
	db := newTestDB(t)
	ledger := NewQuotaLedger(db)
	store := NewPostgresStore(db)

	assets := []*Asset{
		newAsset(1, nil, "http://cdn/a.png", 1),
		newAsset(1, nil, "http://cdn/b.png", 1),
		newAsset(1, nil, "http://cdn/c.png", 1),
	}
	assets[0].Name, assets[0].Tags = "half_price", []string{"50%"}
	assets[1].Name, assets[1].Tags = "halfxprice", []string{"500", "axb"}
	assets[2].Name, assets[2].Tags = `back\slash`, []string{"a_b"}
	for _, a := range assets {
		require.NoError(t, ledger.CommitCreate(context.Background(), a))
	}

	names, _ := listNames(t, store, AssetQuery{Tags: []string{"50%"}})
	assert.Equal(t, []string{"half_price"}, names)

	names, _ = listNames(t, store, AssetQuery{Tags: []string{"%"}})
	assert.Empty(t, names)

	names, _ = listNames(t, store, AssetQuery{Tags: []string{"a_b"}})
	assert.Equal(t, []string{`back\slash`}, names)

	names, _ = listNames(t, store, AssetQuery{SearchText: "f_p"})
	assert.Equal(t, []string{"half_price"}, names)

	names, _ = listNames(t, store, AssetQuery{Name: "_"})
	assert.Equal(t, []string{"half_price"}, names)

	names, _ = listNames(t, store, AssetQuery{SearchText: `k\s`})
	assert.Equal(t, []string{`back\slash`}, names)
}

func TestGetAssetNotFound(t *testing.T) {
	store := NewPostgresStore(newTestDB(t))

	_, err := store.GetAsset(context.Background(), 1)
	assert.True(t, customErrors.NotFound.Has(err))

	_, err = store.GetSpace(context.Background(), 1)
	assert.True(t, customErrors.NotFound.Has(err))
}

func TestCountAssetsByURL(t *testing.T) {
	db := newTestDB(t)
	ledger := NewQuotaLedger(db)
	store := NewPostgresStore(db)

	require.NoError(t, ledger.CommitCreate(context.Background(), newAsset(1, nil, "http://cdn/a.png", 1)))
	require.NoError(t, ledger.CommitCreate(context.Background(), newAsset(2, nil, "http://cdn/a.png", 1)))

	n, err := store.CountAssetsByURL(context.Background(), "http://cdn/a.png")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = store.CountAssetsByURL(context.Background(), "http://cdn/b.png")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDeleteSpaceRequiresEmptySpace(t *testing.T) {
	db := newTestDB(t)
	ledger := NewQuotaLedger(db)
	store := NewPostgresStore(db)
	space := createSpace(t, db, Space{UserID: 1, MaxCount: 10, MaxSize: 1000})

	asset := newAsset(1, &space.ID, "http://cdn/a.png", 10)
	require.NoError(t, ledger.CommitCreate(context.Background(), asset))

	err := store.DeleteSpace(context.Background(), space.ID)
	assert.True(t, customErrors.Conflict.Has(err))

	_, err = ledger.CommitDelete(context.Background(), asset.ID)
	require.NoError(t, err)
	require.NoError(t, store.DeleteSpace(context.Background(), space.ID))

	err = store.DeleteSpace(context.Background(), space.ID)
	assert.True(t, customErrors.NotFound.Has(err))
}

func TestRecalculateSpaceUsage(t *testing.T) {
	db := newTestDB(t)
	ledger := NewQuotaLedger(db)
	store := NewPostgresStore(db)
	space := createSpace(t, db, Space{UserID: 1, MaxCount: 10, MaxSize: 1000})

	require.NoError(t, ledger.CommitCreate(context.Background(), newAsset(1, &space.ID, "http://cdn/a.png", 10)))
	require.NoError(t, ledger.CommitCreate(context.Background(), newAsset(1, &space.ID, "http://cdn/b.png", 32)))

	// simulate drift left behind by an external writer
	require.NoError(t, db.Model(&Space{}).Where("id = ?", space.ID).
		Updates(map[string]interface{}{"total_count": 7, "total_size": 5}).Error)

	before, after, err := store.RecalculateSpaceUsage(context.Background(), space.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), before.TotalCount)
	assert.Equal(t, int64(2), after.TotalCount)
	assert.Equal(t, int64(42), after.TotalSize)

	reloaded := reloadSpace(t, db, space.ID)
	assert.Equal(t, int64(2), reloaded.TotalCount)
	assert.Equal(t, int64(42), reloaded.TotalSize)

	_, _, err = store.RecalculateSpaceUsage(context.Background(), 404)
	assert.True(t, customErrors.NotFound.Has(err))
}

func TestListSpaceAndAssetIDs(t *testing.T) {
	db := newTestDB(t)
	ledger := NewQuotaLedger(db)
	store := NewPostgresStore(db)
	first := createSpace(t, db, Space{UserID: 1, MaxCount: 10, MaxSize: 1000})
	second := createSpace(t, db, Space{UserID: 2, MaxCount: 10, MaxSize: 1000})

	a := newAsset(1, &first.ID, "http://cdn/a.png", 1)
	require.NoError(t, ledger.CommitCreate(context.Background(), a))

	ids, err := store.ListSpaceIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{first.ID, second.ID}, ids)

	assetIDs, err := store.ListAssetIDsBySpace(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{a.ID}, assetIDs)

	byOwner, err := store.GetSpaceByOwner(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, second.ID, byOwner.ID)
}
