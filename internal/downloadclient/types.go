package downloadclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/blakestevenson/nimbus-acquire/internal/indexer"
	"github.com/blakestevenson/nimbus-acquire/internal/media"
)

// Type is the download back-end a client profile talks to
type Type string

const (
	TypeQBittorrent Type = "qbittorrent"
	TypeSABnzbd     Type = "sabnzbd"
)

var (
	// ErrInvalidConfig is returned for unusable client settings
	ErrInvalidConfig = errors.New("invalid download client configuration")
	// ErrNotFound is returned for unknown client ids
	ErrNotFound = errors.New("download client not found")
	// ErrNoClientAvailable is returned when no enabled client handles a protocol
	ErrNoClientAvailable = errors.New("no enabled download client for protocol")
	// ErrAddRejected is returned when a back-end refuses a submission
	ErrAddRejected = errors.New("download client rejected the release")
)

// JobState is the normalized state of an external job
type JobState string

const (
	JobStateQueued         JobState = "queued"
	JobStateDownloading    JobState = "downloading"
	JobStatePaused         JobState = "paused"
	JobStatePostProcessing JobState = "postprocessing"
	JobStateCompleted      JobState = "completed"
	JobStateFailed         JobState = "failed"
	JobStateUnknown        JobState = "unknown"
)

// ExternalJob is a back-end's live view of a torrent or NZB. It is never persisted.
type ExternalJob struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Progress    float64  `json:"progress"` // 0-100
	State       JobState `json:"state"`
	RawState    string   `json:"raw_state"`
	ContentPath string   `json:"content_path"`
	SavePath    string   `json:"save_path"`
	Category    string   `json:"category"`
	Size        int64    `json:"size"`
	Error       string   `json:"error,omitempty"`
	ClientID    int64    `json:"client_id"`
	ClientType  Type     `json:"client_type"`
}

// ClientConfig is a stored connection profile
type ClientConfig struct {
	ID                         int64     `json:"id"`
	Name                       string    `json:"name"`
	Type                       Type      `json:"type"`
	Host                       string    `json:"host"`
	Port                       int       `json:"port"`
	UseTLS                     bool      `json:"use_tls"`
	URLBase                    string    `json:"url_base"`
	Username                   string    `json:"username"`
	Password                   string    `json:"password,omitempty"`
	APIKey                     string    `json:"api_key,omitempty"`
	Category                   string    `json:"category"`
	MovieCategory              string    `json:"movie_category"`
	TVCategory                 string    `json:"tv_category"`
	RemoveOnFailure            bool      `json:"remove_on_failure"`
	RemoveOnFailureDeleteFiles bool      `json:"remove_on_failure_delete_files"`
	Priority                   int       `json:"priority"`
	Enabled                    bool      `json:"enabled"`
	CreatedAt                  time.Time `json:"created_at"`
	UpdatedAt                  time.Time `json:"updated_at"`
}

// Validate checks the settings a back-end needs
func (c ClientConfig) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.Host) == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}

	switch c.Type {
	case TypeQBittorrent:
		if c.Username == "" || c.Password == "" {
			return fmt.Errorf("%w: qbittorrent requires username and password", ErrInvalidConfig)
		}
	case TypeSABnzbd:
		if c.APIKey == "" {
			return fmt.Errorf("%w: sabnzbd requires an api key", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown client type %q", ErrInvalidConfig, c.Type)
	}
	return nil
}

// BaseURL builds the client's root URL without a trailing slash
func (c ClientConfig) BaseURL() string {
	scheme := "http"
	if c.UseTLS {
		scheme = "https"
	}
	host := strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(c.Host, "http://"), "https://"), "/")
	base := scheme + "://" + net.JoinHostPort(host, strconv.Itoa(c.Port))
	if urlBase := strings.Trim(c.URLBase, "/"); urlBase != "" {
		base += "/" + urlBase
	}
	return base
}

// Protocol returns the release protocol this back-end downloads
func (c ClientConfig) Protocol() indexer.Protocol {
	switch c.Type {
	case TypeQBittorrent:
		return indexer.ProtocolTorrent
	case TypeSABnzbd:
		return indexer.ProtocolUsenet
	default:
		return indexer.ProtocolUnknown
	}
}

// ResolveCategory maps a requested category to this client's per-media-type
// override, else its default category, else the requested one. An empty result
// leaves the back-end's own default in place.
func (c ClientConfig) ResolveCategory(mediaType media.MediaType, requested string) string {
	switch mediaType {
	case media.MediaTypeMovie:
		if c.MovieCategory != "" {
			return c.MovieCategory
		}
	case media.MediaTypeEpisode:
		if c.TVCategory != "" {
			return c.TVCategory
		}
	}
	if c.Category != "" {
		return c.Category
	}
	return requested
}

// AddRequest submits one release
type AddRequest struct {
	URL      string
	Title    string
	Category string
	SavePath string
}

// AddResult reports a submission. ExternalID may be empty when the back-end
// does not reveal it; identity matching fills it in later.
type AddResult struct {
	Success    bool   `json:"success"`
	ExternalID string `json:"external_id,omitempty"`
}

// TestResult reports a connection test
type TestResult struct {
	Success bool   `json:"success"`
	Version string `json:"version,omitempty"`
	Message string `json:"message,omitempty"`
}

// Client is the uniform surface every back-end implements
type Client interface {
	Add(ctx context.Context, req AddRequest) (*AddResult, error)
	ListJobs(ctx context.Context, category string) ([]ExternalJob, error)
	Remove(ctx context.Context, externalID string, deleteFiles bool) (bool, error)
	Test(ctx context.Context) (*TestResult, error)
}
