package downloader

import (
	"errors"
	"time"

	"github.com/blakestevenson/nimbus-acquire/internal/indexer"
	"github.com/blakestevenson/nimbus-acquire/internal/media"
)

// Status is the lifecycle state of a Download
type Status string

const (
	StatusQueued      Status = "queued"
	StatusDownloading Status = "downloading"
	StatusImporting   Status = "importing"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// ActiveStatuses are the non-terminal states. At most one Download per target may be in them.
var ActiveStatuses = []Status{StatusQueued, StatusDownloading, StatusImporting}

// Terminal reports whether no further transition happens from s
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusDownloading, StatusImporting, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

var (
	// ErrNotFound is returned when a Download does not exist
	ErrNotFound             = errors.New("download not found")
	// ErrActiveDownloadExists is returned when the target already has a non-terminal Download
	ErrActiveDownloadExists = errors.New("an active download already exists for this target")
	// ErrInvalidRequest is returned for malformed grab requests
	ErrInvalidRequest       = errors.New("invalid grab request")
)

// Download is one attempt at acquiring a release for a target
type Download struct {
	ID           string           `json:"id"`
	Target       media.Target     `json:"target"`
	Title        string           `json:"title"`
	Status       Status           `json:"status"`
	Progress     int              `json:"progress"`
	DownloadURL  string           `json:"download_url"`
	ExternalID   string           `json:"external_id,omitempty"`
	ClientID     *int64           `json:"client_id,omitempty"`
	Protocol     indexer.Protocol `json:"protocol"`
	Size         int64            `json:"size"`
	Indexer      string           `json:"indexer,omitempty"`
	Quality      string           `json:"quality,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty"`
}

// GrabRequest submits a release for a target. ClientID pins the download client.
type GrabRequest struct {
	Target   media.Target    `json:"target"`
	Release  indexer.Release `json:"release"`
	ClientID *int64          `json:"client_id,omitempty"`
}

// CancelRequest removes a Download, optionally along with its external job
type CancelRequest struct {
	RemoveFromClient bool `json:"remove_from_client"`
	DeleteFiles      bool `json:"delete_files"`
}

// Activity event names
const (
	EventGrabbed     = "grabbed"
	EventMatched     = "matched"
	EventDownloading = "downloading"
	EventImporting   = "importing"
	EventCompleted   = "completed"
	EventFailed      = "failed"
	EventCancelled   = "cancelled"
	EventRedownload  = "redownload"
)
