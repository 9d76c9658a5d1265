// Package source classifies an import URL into an acquisition route. The
// classification is pure string analysis; no network access happens here.
package source

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Kind is the coarse source category, which also determines the token cost
// of the import.
type Kind string

const (
	KindWebsite Kind = "website"
	KindVideo   Kind = "video"
	KindImage   Kind = "image"
	KindPDF     Kind = "pdf"
)

// Platform names a supported video platform.
type Platform string

const (
	PlatformYouTube   Platform = "youtube"
	PlatformTikTok    Platform = "tiktok"
	PlatformInstagram Platform = "instagram"
)

// Source is the result of classifying a URL.
type Source struct {
	Kind     Kind
	URL      string
	Platform Platform
	VideoID  string
}

var (
	ErrInvalidURL = errors.New("source: invalid url")
	// ErrNoVideoID is returned when a URL belongs to a known video platform
	// but carries no extractable video identifier. This is a hard failure,
	// not a fallback to webpage handling.
	ErrNoVideoID = errors.New("source: could not extract video identifier")
)

var youtubePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^/watch$`),
	regexp.MustCompile(`^/shorts/([A-Za-z0-9_-]{6,})`),
	regexp.MustCompile(`^/embed/([A-Za-z0-9_-]{6,})`),
	regexp.MustCompile(`^/live/([A-Za-z0-9_-]{6,})`),
}

var (
	youtubeShortPattern = regexp.MustCompile(`^/([A-Za-z0-9_-]{6,})`)
	tiktokPattern       = regexp.MustCompile(`^/@[^/]+/video/(\d+)`)
	tiktokShortPattern  = regexp.MustCompile(`^/([A-Za-z0-9]{5,})`)
	instagramPattern    = regexp.MustCompile(`^/(?:reel|reels|p|tv)/([A-Za-z0-9_-]{5,})`)
)

// Classify inspects a URL and decides the acquisition route. URLs on a known
// video platform yield KindVideo with the platform identifier; everything
// else is treated as a generic webpage.
func Classify(rawURL string) (Source, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Source{}, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return Source{}, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")

	switch {
	case host == "youtube.com" || host == "m.youtube.com" || host == "youtu.be":
		id, err := youtubeVideoID(host, u)
		if err != nil {
			return Source{}, err
		}
		return Source{Kind: KindVideo, URL: rawURL, Platform: PlatformYouTube, VideoID: id}, nil
	case host == "tiktok.com" || host == "vm.tiktok.com":
		id, err := tiktokVideoID(host, u)
		if err != nil {
			return Source{}, err
		}
		return Source{Kind: KindVideo, URL: rawURL, Platform: PlatformTikTok, VideoID: id}, nil
	case host == "instagram.com":
		m := instagramPattern.FindStringSubmatch(u.Path)
		if m == nil {
			return Source{}, fmt.Errorf("%w: %q", ErrNoVideoID, rawURL)
		}
		return Source{Kind: KindVideo, URL: rawURL, Platform: PlatformInstagram, VideoID: m[1]}, nil
	}

	return Source{Kind: KindWebsite, URL: rawURL}, nil
}

func youtubeVideoID(host string, u *url.URL) (string, error) {
	if host == "youtu.be" {
		if m := youtubeShortPattern.FindStringSubmatch(u.Path); m != nil {
			return m[1], nil
		}
		return "", fmt.Errorf("%w: %q", ErrNoVideoID, u.String())
	}

	for _, p := range youtubePatterns {
		m := p.FindStringSubmatch(u.Path)
		if m == nil {
			continue
		}
		if len(m) > 1 {
			return m[1], nil
		}
		// /watch carries the id in the query string.
		if id := u.Query().Get("v"); id != "" {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrNoVideoID, u.String())
}

func tiktokVideoID(host string, u *url.URL) (string, error) {
	if host == "vm.tiktok.com" {
		if m := tiktokShortPattern.FindStringSubmatch(u.Path); m != nil {
			return m[1], nil
		}
		return "", fmt.Errorf("%w: %q", ErrNoVideoID, u.String())
	}
	if m := tiktokPattern.FindStringSubmatch(u.Path); m != nil {
		return m[1], nil
	}
	return "", fmt.Errorf("%w: %q", ErrNoVideoID, u.String())
}
