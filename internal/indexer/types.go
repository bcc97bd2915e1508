package indexer

import (
	"errors"
	"fmt"
	"time"

	"github.com/blakestevenson/nimbus-acquire/internal/media"
)

// Protocol is the transfer protocol a release is downloaded with
type Protocol string

const (
	ProtocolTorrent Protocol = "torrent"
	ProtocolUsenet  Protocol = "usenet"
	ProtocolUnknown Protocol = ""
)

// Type is the API dialect an indexer speaks
type Type string

const (
	TypeTorznab Type = "torznab"
	TypeNewznab Type = "newznab"
)

// SearchType selects which indexers take part in a search
type SearchType string

const (
	// SearchTypeAutomatic is used by scheduled and failure-triggered searches
	SearchTypeAutomatic   SearchType = "automatic"
	// SearchTypeInteractive is used by user-triggered searches
	SearchTypeInteractive SearchType = "interactive"
)

var (
	// ErrNoIndexers is returned when no indexer is enabled for the search type
	ErrNoIndexers        = errors.New("no indexers enabled for search type")
	// ErrAllIndexersFailed is returned when every participating indexer errored
	ErrAllIndexersFailed = errors.New("all indexers failed")
	// ErrInvalidRequest is returned for searches without a title
	ErrInvalidRequest    = errors.New("invalid search request")
)

// Indexer is a configured Torznab/Newznab endpoint
type Indexer struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	Type              Type      `json:"type"`
	BaseURL           string    `json:"base_url"`
	APIKey            string    `json:"-"`
	Categories        []int     `json:"categories"`
	Priority          int       `json:"priority"`
	EnableAutomatic   bool      `json:"enable_automatic"`
	EnableInteractive bool      `json:"enable_interactive"`
	Enabled           bool      `json:"enabled"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// EnabledFor reports whether the indexer takes part in searches of the given type
func (i Indexer) EnabledFor(searchType SearchType) bool {
	if !i.Enabled {
		return false
	}
	switch searchType {
	case SearchTypeInteractive:
		return i.EnableInteractive
	default:
		return i.EnableAutomatic
	}
}

// Release is a normalized search hit
type Release struct {
	GUID        string    `json:"guid"`
	Title       string    `json:"title"`
	Size        int64     `json:"size"`
	Seeders     int       `json:"seeders"`
	Leechers    int       `json:"leechers"`
	DownloadURL string    `json:"download_url"`
	InfoURL     string    `json:"info_url,omitempty"`
	IndexerID   int64     `json:"indexer_id"`
	IndexerName string    `json:"indexer"`
	Protocol    Protocol  `json:"protocol"`
	PublishDate time.Time `json:"publish_date"`
	Categories  []int     `json:"categories,omitempty"`
}

// SearchRequest describes what to look for
type SearchRequest struct {
	Title      string          `json:"title"`
	Year       int             `json:"year,omitempty"`
	Season     int             `json:"season,omitempty"`
	Episode    int             `json:"episode,omitempty"`
	MediaType  media.MediaType `json:"media_type"`
	SearchType SearchType      `json:"search_type"`
}

// Validate checks the request carries a title and a known search type
func (r SearchRequest) Validate() error {
	if r.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidRequest)
	}
	switch r.SearchType {
	case SearchTypeAutomatic, SearchTypeInteractive:
	default:
		return fmt.Errorf("%w: unknown search type %q", ErrInvalidRequest, r.SearchType)
	}
	return nil
}

// Mode is the newznab function a query uses
type Mode string

const (
	ModeSearch   Mode = "search"
	ModeMovie    Mode = "movie"
	ModeTVSearch Mode = "tvsearch"
)

// Query is one request against one indexer
type Query struct {
	Mode       Mode
	Q          string
	Season     int
	Episode    int
	Categories []int
	Limit      int
}

// HTTPError is returned when an indexer answers with a non-2xx status
type HTTPError struct {
	StatusCode int
	Indexer    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("indexer %s returned status %d", e.Indexer, e.StatusCode)
}

func (e *HTTPError) Is(target error) bool {
	_, ok := target.(*HTTPError)
	return ok
}
