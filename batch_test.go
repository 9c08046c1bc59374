package gallery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/picture-gallery/customErrors"
)

type stubDiscoverer struct {
	urls []string
	err  error

	term          string
	offset, count int
}

func (d *stubDiscoverer) Discover(_ context.Context, term string, offset, count int) ([]string, error) {
	d.term, d.offset, d.count = term, offset, count
	return d.urls, d.err
}

// newImageServer serves a png under /ok/ and fails everything else.
func newImageServer(t *testing.T) *httptest.Server {
	data := pngBytes(t, 8, 8)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/ok/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestAcquireBatchSkipsFailures(t *testing.T) {
	env := newTestEnv(t)
	server := newImageServer(t)

	discoverer := &stubDiscoverer{}
	for i := 1; i <= 7; i++ {
		status := "ok"
		if i == 2 || i == 4 {
			status = "gone"
		}
		discoverer.urls = append(discoverer.urls, fmt.Sprintf("%s/%s/%d.png?w=300&h=200", server.URL, status, i))
	}

	batch := NewBatchAcquisition(env.service, discoverer, server.Client(), nil)
	uploaded, err := batch.AcquireBatch(context.Background(), admin, BatchRequest{
		SearchText: "sunset",
		Count:      5,
		Category:   "scenery",
	})
	require.NoError(t, err)
	assert.Equal(t, 5, uploaded)
	assert.Equal(t, "sunset", discoverer.term)
	assert.Equal(t, 5, discoverer.count)

	page, err := env.service.ListAllPictures(context.Background(), admin, AssetQuery{SortField: "id", SortOrder: "ascend"})
	require.NoError(t, err)
	require.Len(t, page.Records, 5)
	for i, record := range page.Records {
		assert.Equal(t, fmt.Sprintf("sunset%d", i+1), record.Name)
		assert.Equal(t, "scenery", record.Category)
		assert.Equal(t, ReviewPass, record.ReviewStatus)
	}
}

func TestAcquireBatchStopsWhenCandidatesRunOut(t *testing.T) {
	env := newTestEnv(t)
	server := newImageServer(t)

	discoverer := &stubDiscoverer{urls: []string{
		server.URL + "/ok/1.png",
		"   ",
		server.URL + "/gone/2.png",
		server.URL + "/ok/3.png",
	}}

	batch := NewBatchAcquisition(env.service, discoverer, server.Client(), nil)
	uploaded, err := batch.AcquireBatch(context.Background(), admin, BatchRequest{
		SearchText: "forest",
		NamePrefix: "tree-",
		Offset:     10,
		Count:      10,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, uploaded)
	assert.Equal(t, 10, discoverer.offset)

	page, err := env.service.ListAllPictures(context.Background(), admin, AssetQuery{SortField: "id", SortOrder: "ascend"})
	require.NoError(t, err)
	require.Len(t, page.Records, 2)
	assert.Equal(t, "tree-1", page.Records[0].Name)
	assert.Equal(t, "tree-2", page.Records[1].Name)
}

func TestAcquireBatchValidation(t *testing.T) {
	env := newTestEnv(t)
	batch := NewBatchAcquisition(env.service, &stubDiscoverer{}, nil, nil)
	ctx := context.Background()

	_, err := batch.AcquireBatch(ctx, alice, BatchRequest{SearchText: "x", Count: 1})
	assert.True(t, customErrors.Permission.Has(err))

	_, err = batch.AcquireBatch(ctx, admin, BatchRequest{SearchText: " ", Count: 1})
	assert.True(t, customErrors.Validation.Has(err))

	_, err = batch.AcquireBatch(ctx, admin, BatchRequest{SearchText: "x", Count: MaxBatchCount + 1})
	assert.True(t, customErrors.Validation.Has(err))

	_, err = batch.AcquireBatch(ctx, admin, BatchRequest{SearchText: "x"})
	assert.True(t, customErrors.Validation.Has(err))
}

func TestAcquireBatchDiscoveryFailure(t *testing.T) {
	env := newTestEnv(t)
	failure := customErrors.System.New("provider unavailable")
	batch := NewBatchAcquisition(env.service, &stubDiscoverer{err: failure}, nil, nil)

	uploaded, err := batch.AcquireBatch(context.Background(), admin, BatchRequest{SearchText: "x", Count: 3})
	assert.Zero(t, uploaded)
	assert.True(t, errors.Is(err, failure))
}
