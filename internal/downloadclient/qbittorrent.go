package downloadclient

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	qbt "github.com/autobrr/go-qbittorrent"
	"go.uber.org/zap"
)

// minQBittorrentAPI is the oldest Web API generation the adapter speaks
var minQBittorrentAPI = semver.MustParse("2.0.0")

// torrentAPI is the slice of the qBittorrent Web API the adapter uses
type torrentAPI interface {
	LoginCtx(ctx context.Context) error
	GetWebAPIVersionCtx(ctx context.Context) (string, error)
	GetTorrentsCtx(ctx context.Context, o qbt.TorrentFilterOptions) ([]qbt.Torrent, error)
	AddTorrentFromUrlCtx(ctx context.Context, url string, options map[string]string) error
	AddTorrentFromMemoryCtx(ctx context.Context, buf []byte, options map[string]string) error
	DeleteTorrentsCtx(ctx context.Context, hashes []string, deleteFiles bool) error
}

// newTorrentAPI builds an unauthenticated Web API client for a profile
func newTorrentAPI(cfg ClientConfig, timeout time.Duration) torrentAPI {
	return qbt.NewClient(qbt.Config{
		Host:     cfg.BaseURL(),
		Username: cfg.Username,
		Password: cfg.Password,
		Timeout:  int(timeout.Seconds()),
	})
}

// QBittorrent adapts a qBittorrent instance to the Client surface
type QBittorrent struct {
	cfg      ClientConfig
	sessions *SessionStore[torrentAPI]
	newAPI   func(ClientConfig) torrentAPI
	fetcher  *http.Client
	logger   *zap.Logger
}

// NewQBittorrent creates an adapter sharing the given session cache
func NewQBittorrent(cfg ClientConfig, sessions *SessionStore[torrentAPI], timeout time.Duration, logger *zap.Logger) *QBittorrent {
	return &QBittorrent{
		cfg:      cfg,
		sessions: sessions,
		newAPI: func(c ClientConfig) torrentAPI {
			return newTorrentAPI(c, timeout)
		},
		fetcher: newFetchClient(timeout),
		logger: logger.With(
			zap.String("component", "qbittorrent"),
			zap.Int64("client_id", cfg.ID)),
	}
}

func (q *QBittorrent) login(ctx context.Context) (torrentAPI, error) {
	api := q.newAPI(q.cfg)
	if err := api.LoginCtx(ctx); err != nil {
		return nil, fmt.Errorf("qbittorrent login failed: %w", err)
	}
	q.logger.Debug("qbittorrent session established")
	return api, nil
}

func (q *QBittorrent) do(ctx context.Context, fn func(torrentAPI) error) error {
	return withSession(ctx, q.sessions, q.cfg.ID, q.login, fn)
}

// Add submits a torrent. Magnet links are passed through; .torrent links are
// downloaded so the info-hash is known up front. When the payload cannot be
// fetched the link is handed to qBittorrent directly and the id stays unknown.
func (q *QBittorrent) Add(ctx context.Context, req AddRequest) (*AddResult, error) {
	options := map[string]string{}
	if req.Category != "" {
		options["category"] = req.Category
	}
	if req.SavePath != "" {
		options["savepath"] = req.SavePath
	}

	link := req.URL
	var payload []byte
	if !isMagnet(link) {
		fetched, err := fetchPayload(ctx, q.fetcher, link)
		switch {
		case err != nil:
			q.logger.Warn("failed to fetch torrent, passing link to client",
				zap.String("title", req.Title),
				zap.Error(err))
		case fetched.Magnet != "":
			link = fetched.Magnet
		default:
			payload = fetched.Body
		}
	}

	var hash string
	switch {
	case payload != nil:
		h, err := torrentInfoHash(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAddRejected, err)
		}
		hash = h
	case isMagnet(link):
		if h, err := magnetInfoHash(link); err == nil {
			hash = h
		}
	}

	err := q.do(ctx, func(api torrentAPI) error {
		if payload != nil {
			return api.AddTorrentFromMemoryCtx(ctx, payload, options)
		}
		return api.AddTorrentFromUrlCtx(ctx, link, options)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add torrent: %w", err)
	}

	q.logger.Info("torrent added",
		zap.String("title", req.Title),
		zap.String("hash", hash),
		zap.String("category", req.Category))

	return &AddResult{Success: true, ExternalID: hash}, nil
}

// ListJobs returns the torrents in a category, or every torrent when category is empty
func (q *QBittorrent) ListJobs(ctx context.Context, category string) ([]ExternalJob, error) {
	var torrents []qbt.Torrent
	err := q.do(ctx, func(api torrentAPI) error {
		var err error
		torrents, err = api.GetTorrentsCtx(ctx, qbt.TorrentFilterOptions{Category: category})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list torrents: %w", err)
	}

	jobs := make([]ExternalJob, 0, len(torrents))
	for _, t := range torrents {
		jobs = append(jobs, q.toJob(t))
	}
	return jobs, nil
}

func (q *QBittorrent) toJob(t qbt.Torrent) ExternalJob {
	contentPath := t.ContentPath
	if contentPath == "" && t.SavePath != "" {
		contentPath = filepath.Join(t.SavePath, t.Name)
	}

	return ExternalJob{
		ID:          strings.ToLower(t.Hash),
		Name:        t.Name,
		Progress:    t.Progress * 100,
		State:       torrentJobState(t.State),
		RawState:    string(t.State),
		ContentPath: contentPath,
		SavePath:    t.SavePath,
		Category:    t.Category,
		Size:        t.Size,
		ClientID:    q.cfg.ID,
		ClientType:  TypeQBittorrent,
	}
}

// torrentJobState folds qBittorrent's torrent states into JobState.
// Seeding and stopped-after-complete states count as completed.
func torrentJobState(state qbt.TorrentState) JobState {
	switch state {
	case qbt.TorrentStateError, qbt.TorrentStateMissingFiles:
		return JobStateFailed
	case qbt.TorrentStateUploading, qbt.TorrentStateStalledUp, qbt.TorrentStatePausedUp,
		qbt.TorrentStateStoppedUp, qbt.TorrentStateQueuedUp, qbt.TorrentStateForcedUp,
		qbt.TorrentStateCheckingUp:
		return JobStateCompleted
	case qbt.TorrentStateQueuedDl:
		return JobStateQueued
	case qbt.TorrentStatePausedDl, qbt.TorrentStateStoppedDl:
		return JobStatePaused
	case qbt.TorrentStateDownloading, qbt.TorrentStateStalledDl, qbt.TorrentStateForcedDl,
		qbt.TorrentStateMetaDl, qbt.TorrentStateCheckingDl, qbt.TorrentStateAllocating,
		qbt.TorrentStateMoving, qbt.TorrentStateCheckingResumeData:
		return JobStateDownloading
	default:
		return JobStateUnknown
	}
}

// Remove deletes a torrent by info-hash
func (q *QBittorrent) Remove(ctx context.Context, externalID string, deleteFiles bool) (bool, error) {
	if externalID == "" {
		return false, nil
	}
	hash := strings.ToLower(externalID)
	err := q.do(ctx, func(api torrentAPI) error {
		return api.DeleteTorrentsCtx(ctx, []string{hash}, deleteFiles)
	})
	if err != nil {
		return false, fmt.Errorf("failed to remove torrent %s: %w", hash, err)
	}
	q.logger.Info("torrent removed", zap.String("hash", hash), zap.Bool("delete_files", deleteFiles))
	return true, nil
}

// Test logs in with a fresh session and checks the Web API version
func (q *QBittorrent) Test(ctx context.Context) (*TestResult, error) {
	api, err := q.login(ctx)
	if err != nil {
		return &TestResult{Success: false, Message: err.Error()}, nil
	}

	raw, err := api.GetWebAPIVersionCtx(ctx)
	if err != nil {
		return &TestResult{Success: false, Message: fmt.Sprintf("failed to read api version: %v", err)}, nil
	}

	version, err := semver.NewVersion(strings.TrimSpace(raw))
	if err != nil {
		return &TestResult{Success: false, Version: raw, Message: "unrecognised api version"}, nil
	}
	if version.LessThan(minQBittorrentAPI) {
		return &TestResult{
			Success: false,
			Version: version.String(),
			Message: fmt.Sprintf("web api %s is older than %s", version, minQBittorrentAPI),
		}, nil
	}

	return &TestResult{Success: true, Version: version.String()}, nil
}
