// Package imageattach downloads a candidate hero image, validates it, and
// persists it to blob storage. Every failure here degrades to a recipe
// without an image; it never aborts the import.
package imageattach

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"

	snaphttp "github.com/snapdish/snapdish/internal/http"
	"github.com/snapdish/snapdish/internal/objectstore"
)

const (
	maxImageBytes   = 10 << 20
	magicNumberSeek = 512
)

var ErrNoUsableImage = errors.New("imageattach: no usable candidate image")

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

var mimeTypeSuffix = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

type Attacher struct {
	http          *snaphttp.HTTP
	store         objectstore.Store
	bucket        string
	publicBaseURL string
	log           *slog.Logger
}

func New(client *snaphttp.HTTP, store objectstore.Store, bucket, publicBaseURL string, log *slog.Logger) *Attacher {
	return &Attacher{
		http:          client,
		store:         store,
		bucket:        bucket,
		publicBaseURL: publicBaseURL,
		log:           log,
	}
}

// Attach tries each candidate URL in order, uploading the first valid image
// under a recipe-scoped path and returning its public URL.
func (a *Attacher) Attach(ctx context.Context, recipeID int64, candidates []string) (string, error) {
	for _, candidate := range candidates {
		url, err := a.attachOne(ctx, recipeID, candidate)
		if err != nil {
			a.log.DebugContext(ctx, "imageattach: candidate rejected",
				slog.String("url", candidate), slog.Any("error", err))
			continue
		}
		return url, nil
	}
	return "", ErrNoUsableImage
}

func (a *Attacher) attachOne(ctx context.Context, recipeID int64, candidate string) (string, error) {
	data, mimeType, err := a.download(ctx, candidate)
	if err != nil {
		return "", err
	}

	key := objectstore.RecipeImagePath(recipeID, mimeTypeSuffix[mimeType])
	if err := a.store.Put(ctx, a.bucket, key, data, mimeType); err != nil {
		return "", fmt.Errorf("uploading image: %w", err)
	}

	return objectstore.PublicURL(a.publicBaseURL, key), nil
}

func (a *Attacher) download(ctx context.Context, url string) ([]byte, string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("building request: %w", err)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetching image: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if err := snaphttp.ExpectStatus2xx(resp); err != nil {
		return nil, "", err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("reading image: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, "", fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}

	mimeType := http.DetectContentType(data[:min(len(data), magicNumberSeek)])
	if !allowedImageTypes[mimeType] {
		return nil, "", fmt.Errorf("mime type %q not allowed", mimeType)
	}

	return data, mimeType, nil
}
