// Package http provides a wrapper around the retryablehttp.Client
// for making HTTP requests.
package http

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

type HTTPDoer interface {
	Do(*retryablehttp.Request) (*http.Response, error)
}

type HTTP struct {
	*retryablehttp.Client
}

var _ HTTPDoer = (*retryablehttp.Client)(nil)

func DefaultConfig() *retryablehttp.Client {
	return retryablehttp.NewClient()
}

// PipelineConfig returns a client for import pipeline fetches. The pipeline
// never retries external calls, so retries are disabled and the overall
// timeout bounds the single attempt.
func PipelineConfig(timeout time.Duration) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.RetryMax = 0
	client.Logger = nil
	client.HTTPClient.Timeout = timeout
	return client
}

func New(client *retryablehttp.Client) *HTTP {
	return &HTTP{
		Client: client,
	}
}

func ExpectStatus2xx(resp *http.Response) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
