// Package video fetches platform metadata for a classified video source.
package video

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/hashicorp/go-retryablehttp"

	snaphttp "github.com/snapdish/snapdish/internal/http"
	snapjson "github.com/snapdish/snapdish/internal/json"
	"github.com/snapdish/snapdish/internal/source"
)

// Metadata is the platform-declared information about a video.
type Metadata struct {
	Title        string
	Author       string
	Description  string
	ThumbnailURL string
}

// MetadataProvider fetches video metadata. One method so failure injection
// stays trivial in tests.
type MetadataProvider interface {
	Metadata(ctx context.Context, src source.Source) (*Metadata, error)
}

// youtubeThumbnails is the documented resolution fallback chain: only
// maxresdefault is guaranteed absent for older uploads, so each candidate is
// tried in order during media attachment.
var youtubeThumbnails = []string{
	"maxresdefault",
	"sddefault",
	"hqdefault",
	"mqdefault",
	"default",
}

// ThumbnailCandidates returns candidate image URLs for a video source,
// highest resolution first. For YouTube the list is built from the video id;
// other platforms only expose the single oEmbed thumbnail.
func ThumbnailCandidates(src source.Source, meta *Metadata) []string {
	if src.Platform == source.PlatformYouTube {
		urls := make([]string, 0, len(youtubeThumbnails)+1)
		for _, res := range youtubeThumbnails {
			urls = append(urls, fmt.Sprintf("https://i.ytimg.com/vi/%s/%s.jpg", src.VideoID, res))
		}
		if meta != nil && meta.ThumbnailURL != "" {
			urls = append(urls, meta.ThumbnailURL)
		}
		return urls
	}
	if meta != nil && meta.ThumbnailURL != "" {
		return []string{meta.ThumbnailURL}
	}
	return nil
}

// OEmbedProvider implements MetadataProvider over each platform's public
// oEmbed endpoint.
type OEmbedProvider struct {
	http *snaphttp.HTTP
}

var _ MetadataProvider = (*OEmbedProvider)(nil)

func NewOEmbedProvider(client *snaphttp.HTTP) *OEmbedProvider {
	return &OEmbedProvider{http: client}
}

var oembedEndpoints = map[source.Platform]string{
	source.PlatformYouTube:   "https://www.youtube.com/oembed",
	source.PlatformTikTok:    "https://www.tiktok.com/oembed",
	source.PlatformInstagram: "https://www.instagram.com/api/v1/oembed/",
}

type oembedResponse struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	ThumbnailURL string `json:"thumbnail_url"`
}

func (p *OEmbedProvider) Metadata(ctx context.Context, src source.Source) (*Metadata, error) {
	endpoint, ok := oembedEndpoints[src.Platform]
	if !ok {
		return nil, fmt.Errorf("video: no metadata endpoint for platform %q", src.Platform)
	}

	reqURL := fmt.Sprintf("%s?url=%s&format=json", endpoint, url.QueryEscape(src.URL))
	req, err := retryablehttp.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("video: building metadata request: %w", err)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("video: fetching metadata: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if err := snaphttp.ExpectStatus2xx(resp); err != nil {
		return nil, fmt.Errorf("video: fetching metadata: %w", err)
	}

	var payload oembedResponse
	if err := snapjson.DecodeJSON(&payload, json.NewDecoder(resp.Body)); err != nil {
		return nil, fmt.Errorf("video: decoding metadata: %w", err)
	}

	return &Metadata{
		Title:        payload.Title,
		Author:       payload.AuthorName,
		ThumbnailURL: payload.ThumbnailURL,
	}, nil
}
