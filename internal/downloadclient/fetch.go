package downloadclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const maxPayloadBytes = 16 << 20

// fetchResult is either a downloaded payload or a magnet link an indexer redirected to
type fetchResult struct {
	Body   []byte
	Magnet string
}

// newFetchClient builds the HTTP client used to download .torrent and .nzb payloads.
// Redirects to magnet links are surfaced instead of followed.
func newFetchClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if req.URL.Scheme == "magnet" {
				return http.ErrUseLastResponse
			}
			if len(via) >= 10 {
				return fmt.Errorf("stopped after %d redirects", len(via))
			}
			return nil
		},
	}
}

// fetchPayload downloads a release payload from an indexer link
func fetchPayload(ctx context.Context, client *http.Client, url string) (*fetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch release: %w", err)
	}
	defer resp.Body.Close()

	if loc := resp.Header.Get("Location"); resp.StatusCode >= 300 && resp.StatusCode < 400 && isMagnet(loc) {
		return &fetchResult{Magnet: loc}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("failed to fetch release: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read release: %w", err)
	}
	if len(body) > maxPayloadBytes {
		return nil, fmt.Errorf("release payload exceeds %d bytes", maxPayloadBytes)
	}
	return &fetchResult{Body: body}, nil
}
