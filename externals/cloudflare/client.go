package cloudflare

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/cloudflare/cloudflare-go"
	"go.uber.org/zap"

	"github.com/bitmark-inc/picture-gallery/log"
)

const (
	DeliveryHost   = "imagedelivery.net"
	DefaultVariant = "thumbnail"
)

// imageAPI is the subset of the cloudflare client used for thumbnails.
type imageAPI interface {
	UploadImage(ctx context.Context, rc *cloudflare.ResourceContainer, params cloudflare.UploadImageParams) (cloudflare.Image, error)
	DeleteImage(ctx context.Context, rc *cloudflare.ResourceContainer, id string) error
}

// Thumbnails publishes picture thumbnails to Cloudflare Images and removes
// them again when the picture is cleaned.
type Thumbnails struct {
	api         imageAPI
	account     *cloudflare.ResourceContainer
	accountHash string
	variant     string
}

func New(accountID, accountHash, apiToken, variant string, debug bool) (*Thumbnails, error) {
	api, err := cloudflare.NewWithAPIToken(apiToken,
		cloudflare.Debug(debug), cloudflare.UsingLogger(log.CloudflareLogger()))
	if err != nil {
		return nil, err
	}

	return newThumbnails(api, accountID, accountHash, variant), nil
}

func newThumbnails(api imageAPI, accountID, accountHash, variant string) *Thumbnails {
	if variant == "" {
		variant = DefaultVariant
	}

	return &Thumbnails{
		api:         api,
		account:     cloudflare.AccountIdentifier(accountID),
		accountHash: accountHash,
		variant:     variant,
	}
}

// DeliveryURL returns the public url of an image variant.
func (t *Thumbnails) DeliveryURL(imageID string) string {
	return fmt.Sprintf("https://%s/%s/%s/%s", DeliveryHost, t.accountHash, imageID, t.variant)
}

// Publish uploads r under name and returns the delivery url of the
// configured variant.
func (t *Thumbnails) Publish(ctx context.Context, name string, r io.Reader) (string, error) {
	image, err := t.api.UploadImage(ctx, t.account, cloudflare.UploadImageParams{
		File: io.NopCloser(r),
		Name: name,
		Metadata: map[string]interface{}{
			"path": name,
		},
	})
	if err != nil {
		return "", err
	}

	log.Debug("thumbnail published", log.SourceThumbnail,
		zap.String("name", name), zap.String("imageID", image.ID))
	return t.DeliveryURL(image.ID), nil
}

// Owns reports whether rawURL is a delivery url of this account.
func (t *Thumbnails) Owns(rawURL string) bool {
	_, ok := t.imageID(rawURL)
	return ok
}

// Remove deletes the image behind a delivery url.
func (t *Thumbnails) Remove(ctx context.Context, rawURL string) error {
	id, ok := t.imageID(rawURL)
	if !ok {
		return fmt.Errorf("not a thumbnail of this account: %s", rawURL)
	}
	return t.api.DeleteImage(ctx, t.account, id)
}

// imageID extracts the image id of https://imagedelivery.net/<hash>/<id>/<variant>.
func (t *Thumbnails) imageID(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host != DeliveryHost {
		return "", false
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 3 || parts[0] != t.accountHash || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
