package cloudflare

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/cloudflare/cloudflare-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeImageAPI struct {
	uploaded []string
	deleted  []string
	account  string
	err      error
}

func (f *fakeImageAPI) UploadImage(_ context.Context, rc *cloudflare.ResourceContainer, params cloudflare.UploadImageParams) (cloudflare.Image, error) {
	if f.err != nil {
		return cloudflare.Image{}, f.err
	}
	data, err := io.ReadAll(params.File)
	if err != nil {
		return cloudflare.Image{}, err
	}
	f.account = rc.Identifier
	f.uploaded = append(f.uploaded, params.Name+":"+string(data))
	return cloudflare.Image{ID: "img-1"}, nil
}

func (f *fakeImageAPI) DeleteImage(_ context.Context, _ *cloudflare.ResourceContainer, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func TestPublish(t *testing.T) {
	api := &fakeImageAPI{}
	thumbs := newThumbnails(api, "acc", "hash", "")

	url, err := thumbs.Publish(context.Background(), "public/1/a.png", strings.NewReader("bytes"))
	require.NoError(t, err)
	assert.Equal(t, "https://imagedelivery.net/hash/img-1/thumbnail", url)
	assert.Equal(t, []string{"public/1/a.png:bytes"}, api.uploaded)
	assert.Equal(t, "acc", api.account)

	api.err = errors.New("rate limited")
	_, err = thumbs.Publish(context.Background(), "public/1/b.png", strings.NewReader("bytes"))
	assert.Error(t, err)
}

func TestOwnsAndRemove(t *testing.T) {
	api := &fakeImageAPI{}
	thumbs := newThumbnails(api, "acc", "hash", "small")

	assert.True(t, thumbs.Owns("https://imagedelivery.net/hash/img-9/small"))
	assert.False(t, thumbs.Owns("https://imagedelivery.net/other/img-9/small"))
	assert.False(t, thumbs.Owns("https://cdn.test/hash/img-9/small"))
	assert.False(t, thumbs.Owns("https://imagedelivery.net/hash/img-9"))
	assert.False(t, thumbs.Owns("://bad"))

	require.NoError(t, thumbs.Remove(context.Background(), "https://imagedelivery.net/hash/img-9/small"))
	assert.Equal(t, []string{"img-9"}, api.deleted)

	assert.Error(t, thumbs.Remove(context.Background(), "https://cdn.test/x.png"))
}
