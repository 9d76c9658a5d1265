// Package transcript retrieves the spoken-word transcript for a video.
// Providers are replaceable strategies: the primary caption provider can be
// chained with a speech-to-text fallback for videos without captions.
package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	snaphttp "github.com/snapdish/snapdish/internal/http"
	snapjson "github.com/snapdish/snapdish/internal/json"
	"github.com/snapdish/snapdish/internal/source"
)

// ErrNoTranscript reports that the provider has no transcript for the video.
// This is a foreseeable content-availability condition, surfaced to the
// caller as a recognized outcome rather than a system error.
var ErrNoTranscript = errors.New("transcript: no transcript available")

// Window bounds the requested portion of the video. Unset bounds cover the
// whole video.
type Window struct {
	Start    time.Duration
	End      time.Duration
	HasStart bool
	HasEnd   bool
}

// Provider fetches the transcript text for a video within a window.
type Provider interface {
	Transcript(ctx context.Context, src source.Source, w Window) (string, error)
}

// Chain tries each provider in order, moving on only when the previous one
// reports ErrNoTranscript. Any other error stops the chain.
type Chain struct {
	providers []Provider
}

var _ Provider = (*Chain)(nil)

func NewChain(providers ...Provider) *Chain {
	return &Chain{providers: providers}
}

func (c *Chain) Transcript(ctx context.Context, src source.Source, w Window) (string, error) {
	for _, p := range c.providers {
		text, err := p.Transcript(ctx, src, w)
		if errors.Is(err, ErrNoTranscript) {
			continue
		}
		if err != nil {
			return "", err
		}
		return text, nil
	}
	return "", ErrNoTranscript
}

// CaptionProvider fetches platform captions through the caption service.
type CaptionProvider struct {
	http    *snaphttp.HTTP
	baseURL string
}

var _ Provider = (*CaptionProvider)(nil)

func NewCaptionProvider(client *snaphttp.HTTP, baseURL string) *CaptionProvider {
	return &CaptionProvider{
		http:    client,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

type segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type captionResponse struct {
	Available bool      `json:"available"`
	Segments  []segment `json:"segments"`
}

func (p *CaptionProvider) Transcript(ctx context.Context, src source.Source, w Window) (string, error) {
	reqURL := fmt.Sprintf("%s/v1/transcripts/%s/%s%s",
		p.baseURL, src.Platform, url.PathEscape(src.VideoID), windowQuery(w))

	req, err := retryablehttp.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("transcript: building request: %w", err)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcript: fetching: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == 404 {
		return "", ErrNoTranscript
	}
	if err := snaphttp.ExpectStatus2xx(resp); err != nil {
		return "", fmt.Errorf("transcript: fetching: %w", err)
	}

	var payload captionResponse
	if err := snapjson.DecodeJSON(&payload, json.NewDecoder(resp.Body)); err != nil {
		return "", fmt.Errorf("transcript: decoding response: %w", err)
	}
	if !payload.Available || len(payload.Segments) == 0 {
		return "", ErrNoTranscript
	}

	return joinSegments(payload.Segments, w), nil
}

// joinSegments concatenates segment text, filtering to the window in case
// the provider returned the full track.
func joinSegments(segments []segment, w Window) string {
	var b strings.Builder
	for _, s := range segments {
		start := time.Duration(s.Start * float64(time.Second))
		if w.HasStart && start < w.Start {
			continue
		}
		if w.HasEnd && start > w.End {
			break
		}
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(text)
	}
	return b.String()
}

func windowQuery(w Window) string {
	q := url.Values{}
	if w.HasStart {
		q.Set("start_ms", fmt.Sprintf("%d", w.Start.Milliseconds()))
	}
	if w.HasEnd {
		q.Set("end_ms", fmt.Sprintf("%d", w.End.Milliseconds()))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// SpeechToTextProvider derives a transcript from the video's audio through a
// Whisper-style transcription service. It is the documented fallback for
// videos without captions.
type SpeechToTextProvider struct {
	http    *snaphttp.HTTP
	baseURL string
}

var _ Provider = (*SpeechToTextProvider)(nil)

func NewSpeechToTextProvider(client *snaphttp.HTTP, baseURL string) *SpeechToTextProvider {
	return &SpeechToTextProvider{
		http:    client,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

type sttRequest struct {
	Platform string `json:"platform"`
	VideoID  string `json:"videoId"`
	StartMS  *int64 `json:"startMs,omitempty"`
	EndMS    *int64 `json:"endMs,omitempty"`
}

type sttResponse struct {
	Text string `json:"text"`
}

func (p *SpeechToTextProvider) Transcript(ctx context.Context, src source.Source, w Window) (string, error) {
	body := sttRequest{Platform: string(src.Platform), VideoID: src.VideoID}
	if w.HasStart {
		ms := w.Start.Milliseconds()
		body.StartMS = &ms
	}
	if w.HasEnd {
		ms := w.End.Milliseconds()
		body.EndMS = &ms
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("transcript: marshal stt request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, "POST", p.baseURL+"/v1/transcribe", payload)
	if err != nil {
		return "", fmt.Errorf("transcript: building stt request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcript: stt call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if err := snaphttp.ExpectStatus2xx(resp); err != nil {
		return "", fmt.Errorf("transcript: stt call: %w", err)
	}

	var out sttResponse
	if err := snapjson.DecodeJSON(&out, json.NewDecoder(resp.Body)); err != nil {
		return "", fmt.Errorf("transcript: decoding stt response: %w", err)
	}
	if strings.TrimSpace(out.Text) == "" {
		return "", ErrNoTranscript
	}
	return out.Text, nil
}
