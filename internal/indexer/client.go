package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const maxResponseBytes int64 = 8 << 20

// Querier runs one query against one indexer
type Querier interface {
	Query(ctx context.Context, q Query) ([]Release, error)
	Caps(ctx context.Context) error
}

// Client speaks the Torznab/Newznab HTTP API of a single indexer
type Client struct {
	indexer    Indexer
	httpClient *http.Client
}

// NewClient creates a client for idx with the given request timeout
func NewClient(idx Indexer, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	idx.BaseURL = strings.TrimRight(idx.BaseURL, "/")
	return &Client{
		indexer:    idx,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Query performs a search, movie or tvsearch request
func (c *Client) Query(ctx context.Context, q Query) ([]Release, error) {
	if q.Limit == 0 {
		q.Limit = 100
	}

	params := url.Values{}
	params.Set("t", string(q.Mode))
	params.Set("limit", strconv.Itoa(q.Limit))
	params.Set("extended", "1")
	if q.Q != "" {
		params.Set("q", q.Q)
	}

	categories := q.Categories
	if len(categories) == 0 {
		categories = c.indexer.Categories
	}
	if len(categories) > 0 {
		parts := make([]string, len(categories))
		for i, cat := range categories {
			parts[i] = strconv.Itoa(cat)
		}
		params.Set("cat", strings.Join(parts, ","))
	}

	if q.Mode == ModeTVSearch {
		if q.Season > 0 {
			params.Set("season", strconv.Itoa(q.Season))
		}
		if q.Episode > 0 {
			params.Set("ep", strconv.Itoa(q.Episode))
		}
	}

	body, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}

	releases, err := ParseResponse(body, c.indexer)
	if err != nil {
		return nil, fmt.Errorf("indexer %s: %w", c.indexer.Name, err)
	}
	return releases, nil
}

// Caps checks the indexer answers its capabilities endpoint
func (c *Client) Caps(ctx context.Context) error {
	params := url.Values{}
	params.Set("t", "caps")
	_, err := c.get(ctx, params)
	return err
}

func (c *Client) get(ctx context.Context, params url.Values) ([]byte, error) {
	if c.indexer.APIKey != "" {
		params.Set("apikey", c.indexer.APIKey)
	}

	endpoint := c.indexer.BaseURL
	if !strings.HasSuffix(endpoint, "/api") {
		endpoint += "/api"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for indexer %s: %w", c.indexer.Name, err)
	}
	req.Header.Set("Accept", "application/rss+xml, application/xml, application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to indexer %s failed: %w", c.indexer.Name, redact(err, c.indexer.APIKey))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, &HTTPError{StatusCode: resp.StatusCode, Indexer: c.indexer.Name}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response from indexer %s: %w", c.indexer.Name, err)
	}
	return body, nil
}

// redact strips the api key from url errors
func redact(err error, apiKey string) error {
	if apiKey == "" {
		return err
	}
	msg := strings.ReplaceAll(err.Error(), apiKey, "REDACTED")
	if msg == err.Error() {
		return err
	}
	return errors.New(msg)
}
