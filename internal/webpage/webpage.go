// Package webpage fetches a source page's HTML and pre-extracts an embedded
// schema.org/Recipe block when one is present.
package webpage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/go-retryablehttp"

	snaphttp "github.com/snapdish/snapdish/internal/http"
)

const (
	userAgent = "SnapDishBot/1.0 (+https://snapdish.app/bot; recipe import)"
	maxHTML   = 4 << 20 // 4 MB of HTML is plenty for extraction
)

// Page is the acquired webpage content. RecipeJSON is the raw JSON-LD recipe
// block when the page declares one; it is an optimization for the extractor,
// which must also work from HTML alone.
type Page struct {
	HTML       string
	RecipeJSON string
	// ImageURL is the page-declared candidate image, from the JSON-LD block
	// or the og:image meta tag.
	ImageURL string
}

type Fetcher struct {
	http *snaphttp.HTTP
}

func NewFetcher(client *snaphttp.HTTP) *Fetcher {
	return &Fetcher{http: client}
}

// Fetch retrieves the URL's HTML. Non-success status or timeout is a network
// error; the caller does not retry.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("webpage: building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webpage: fetching %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if err := snaphttp.ExpectStatus2xx(resp); err != nil {
		return nil, fmt.Errorf("webpage: fetching %s: %w", url, err)
	}

	html, err := io.ReadAll(io.LimitReader(resp.Body, maxHTML))
	if err != nil {
		return nil, fmt.Errorf("webpage: reading body: %w", err)
	}

	page := &Page{HTML: string(html)}
	// Pre-extraction failures are fine; the extractor works from HTML alone.
	_ = parseStructuredData(page)
	return page, nil
}

func parseStructuredData(page *Page) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return fmt.Errorf("webpage: parsing html: %w", err)
	}

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if block := findRecipeBlock(s.Text()); block != "" {
			page.RecipeJSON = block
			page.ImageURL = recipeImageURL(block)
			return false
		}
		return true
	})

	if page.ImageURL == "" {
		if v, ok := doc.Find(`meta[property="og:image"]`).Attr("content"); ok {
			page.ImageURL = v
		}
	}
	return nil
}

// findRecipeBlock locates a schema.org Recipe object inside a JSON-LD
// script, including @graph containers and top-level arrays, and returns it
// re-marshalled on its own.
func findRecipeBlock(text string) string {
	var root any
	if err := json.Unmarshal([]byte(text), &root); err != nil {
		return ""
	}

	var nodes []any
	switch v := root.(type) {
	case []any:
		nodes = v
	case map[string]any:
		if graph, ok := v["@graph"].([]any); ok {
			nodes = graph
		} else {
			nodes = []any{v}
		}
	default:
		return ""
	}

	for _, n := range nodes {
		obj, ok := n.(map[string]any)
		if !ok || !isRecipeType(obj["@type"]) {
			continue
		}
		out, err := json.Marshal(obj)
		if err != nil {
			continue
		}
		return string(out)
	}
	return ""
}

func isRecipeType(v any) bool {
	switch t := v.(type) {
	case string:
		return t == "Recipe"
	case []any:
		for _, e := range t {
			if s, ok := e.(string); ok && s == "Recipe" {
				return true
			}
		}
	}
	return false
}

// recipeImageURL pulls the image URL out of a Recipe JSON-LD block, which
// publishers encode as a string, a list, or an ImageObject.
func recipeImageURL(block string) string {
	var obj map[string]any
	if err := json.Unmarshal([]byte(block), &obj); err != nil {
		return ""
	}
	return imageURLValue(obj["image"])
}

func imageURLValue(v any) string {
	switch img := v.(type) {
	case string:
		return img
	case []any:
		if len(img) > 0 {
			return imageURLValue(img[0])
		}
	case map[string]any:
		if u, ok := img["url"].(string); ok {
			return u
		}
	}
	return ""
}
