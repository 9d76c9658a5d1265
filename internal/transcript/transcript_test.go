package transcript

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	snaphttp "github.com/snapdish/snapdish/internal/http"
	"github.com/snapdish/snapdish/internal/source"
)

type fakeProvider struct {
	text  string
	err   error
	calls int
}

func (f *fakeProvider) Transcript(_ context.Context, _ source.Source, _ Window) (string, error) {
	f.calls++
	return f.text, f.err
}

func testSource() source.Source {
	return source.Source{
		Kind:     source.KindVideo,
		URL:      "https://www.youtube.com/watch?v=abc123def45",
		Platform: source.PlatformYouTube,
		VideoID:  "abc123def45",
	}
}

func TestChain(t *testing.T) {
	tests := []struct {
		name         string
		primary      *fakeProvider
		fallback     *fakeProvider
		want         string
		wantError    error
		wantFallback int
	}{
		{
			name:         "primary succeeds",
			primary:      &fakeProvider{text: "mix the flour"},
			fallback:     &fakeProvider{text: "unused"},
			want:         "mix the flour",
			wantFallback: 0,
		},
		{
			name:         "no transcript falls through",
			primary:      &fakeProvider{err: ErrNoTranscript},
			fallback:     &fakeProvider{text: "from speech to text"},
			want:         "from speech to text",
			wantFallback: 1,
		},
		{
			name:         "system error stops the chain",
			primary:      &fakeProvider{err: errors.New("connection refused")},
			fallback:     &fakeProvider{text: "unused"},
			wantError:    errors.New("connection refused"),
			wantFallback: 0,
		},
		{
			name:         "all providers exhausted",
			primary:      &fakeProvider{err: ErrNoTranscript},
			fallback:     &fakeProvider{err: ErrNoTranscript},
			wantError:    ErrNoTranscript,
			wantFallback: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := NewChain(tt.primary, tt.fallback)

			got, err := chain.Transcript(context.Background(), testSource(), Window{})

			if tt.wantError != nil {
				if err == nil || err.Error() != tt.wantError.Error() {
					t.Fatalf("Transcript() error = %v, want %v", err, tt.wantError)
				}
			} else {
				if err != nil {
					t.Fatalf("Transcript() unexpected error: %v", err)
				}
				if got != tt.want {
					t.Errorf("Transcript() = %q, want %q", got, tt.want)
				}
			}
			if tt.fallback.calls != tt.wantFallback {
				t.Errorf("fallback called %d times, want %d", tt.fallback.calls, tt.wantFallback)
			}
		})
	}
}

func TestCaptionProvider(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		window    Window
		want      string
		wantError error
	}{
		{
			name:   "full transcript",
			status: http.StatusOK,
			body:   `{"available": true, "segments": [{"text": "mix the flour", "start": 0, "end": 4}, {"text": "add the eggs", "start": 4, "end": 8}]}`,
			want:   "mix the flour add the eggs",
		},
		{
			name:   "window filters segments",
			status: http.StatusOK,
			body:   `{"available": true, "segments": [{"text": "intro", "start": 0, "end": 5}, {"text": "mix the flour", "start": 30, "end": 35}, {"text": "outro", "start": 500, "end": 505}]}`,
			window: Window{Start: 10 * time.Second, HasStart: true, End: 60 * time.Second, HasEnd: true},
			want:   "mix the flour",
		},
		{
			name:      "video not found",
			status:    http.StatusNotFound,
			body:      `{}`,
			wantError: ErrNoTranscript,
		},
		{
			name:      "captions disabled",
			status:    http.StatusOK,
			body:      `{"available": false, "segments": []}`,
			wantError: ErrNoTranscript,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				wantPath := "/v1/transcripts/youtube/abc123def45"
				if r.URL.Path != wantPath {
					t.Errorf("request path = %q, want %q", r.URL.Path, wantPath)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			p := NewCaptionProvider(snaphttp.New(snaphttp.PipelineConfig(5*time.Second)), server.URL)

			got, err := p.Transcript(context.Background(), testSource(), tt.window)

			if tt.wantError != nil {
				if !errors.Is(err, tt.wantError) {
					t.Fatalf("Transcript() error = %v, want %v", err, tt.wantError)
				}
				return
			}
			if err != nil {
				t.Fatalf("Transcript() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Transcript() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCaptionProviderWindowQuery(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"available": true, "segments": [{"text": "hi", "start": 95, "end": 96}]}`))
	}))
	defer server.Close()

	p := NewCaptionProvider(snaphttp.New(snaphttp.PipelineConfig(5*time.Second)), server.URL)

	w := Window{Start: 90 * time.Second, HasStart: true, End: 3 * time.Minute, HasEnd: true}
	if _, err := p.Transcript(context.Background(), testSource(), w); err != nil {
		t.Fatalf("Transcript() unexpected error: %v", err)
	}
	if gotQuery != "end_ms=180000&start_ms=90000" {
		t.Errorf("query = %q, want end_ms=180000&start_ms=90000", gotQuery)
	}
}

func TestSpeechToTextProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/transcribe" {
			t.Errorf("request path = %q, want /v1/transcribe", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("request method = %q, want POST", r.Method)
		}
		_, _ = w.Write([]byte(`{"text": "preheat the oven to 180 degrees"}`))
	}))
	defer server.Close()

	p := NewSpeechToTextProvider(snaphttp.New(snaphttp.PipelineConfig(5*time.Second)), server.URL)

	got, err := p.Transcript(context.Background(), testSource(), Window{})
	if err != nil {
		t.Fatalf("Transcript() unexpected error: %v", err)
	}
	if got != "preheat the oven to 180 degrees" {
		t.Errorf("Transcript() = %q", got)
	}
}

func TestSpeechToTextProviderEmptyResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"text": "  "}`))
	}))
	defer server.Close()

	p := NewSpeechToTextProvider(snaphttp.New(snaphttp.PipelineConfig(5*time.Second)), server.URL)

	if _, err := p.Transcript(context.Background(), testSource(), Window{}); !errors.Is(err, ErrNoTranscript) {
		t.Errorf("Transcript() error = %v, want ErrNoTranscript", err)
	}
}
