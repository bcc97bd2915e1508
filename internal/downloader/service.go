package downloader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/blakestevenson/nimbus-acquire/internal/activity"
	"github.com/blakestevenson/nimbus-acquire/internal/blacklist"
	"github.com/blakestevenson/nimbus-acquire/internal/configstore"
	"github.com/blakestevenson/nimbus-acquire/internal/downloadclient"
	"github.com/blakestevenson/nimbus-acquire/internal/importer"
	"github.com/blakestevenson/nimbus-acquire/internal/indexer"
	"github.com/blakestevenson/nimbus-acquire/internal/matching"
	"github.com/blakestevenson/nimbus-acquire/internal/media"
	"github.com/blakestevenson/nimbus-acquire/internal/metrics"
	"github.com/blakestevenson/nimbus-acquire/internal/quality"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Clients is the download-client surface the orchestrator drives
type Clients interface {
	Select(ctx context.Context, protocol indexer.Protocol, clientID *int64) (*downloadclient.ClientConfig, error)
	Add(ctx context.Context, cfg downloadclient.ClientConfig, mediaType media.MediaType, req downloadclient.AddRequest) (*downloadclient.AddResult, error)
	Enabled(ctx context.Context) ([]downloadclient.ClientConfig, error)
	Adapter(cfg downloadclient.ClientConfig) (downloadclient.Client, error)
	Remove(ctx context.Context, clientID int64, externalID string, deleteFiles bool) (bool, error)
}

// Searcher runs indexer searches
type Searcher interface {
	Search(ctx context.Context, req indexer.SearchRequest) ([]indexer.Release, error)
}

// Matcher keeps the plausible releases for a wanted item, best first
type Matcher interface {
	Filter(releases []indexer.Release, req matching.Request) []indexer.Release
}

// Blacklist records and filters rejected releases
type Blacklist interface {
	Add(ctx context.Context, target media.Target, releaseTitle, indexerName, reason string) (*blacklist.Entry, error)
	Filter(ctx context.Context, target media.Target, releases []indexer.Release) ([]indexer.Release, error)
}

// Importer places a finished download into the library
type Importer interface {
	Import(ctx context.Context, req importer.Request) (*importer.Result, error)
}

// Targets resolves library metadata for a target
type Targets interface {
	ResolveTarget(ctx context.Context, target media.Target) (*media.TargetInfo, error)
}

// Recorder receives one event per transition
type Recorder interface {
	Record(ctx context.Context, event activity.Event)
}

// Deps are the collaborators of the orchestrator
type Deps struct {
	Store     Store
	Clients   Clients
	Searcher  Searcher
	Matcher   Matcher
	Blacklist Blacklist
	Importer  Importer
	Targets   Targets
	Activity  Recorder
	Config    *configstore.Store
	Metrics   *metrics.Metrics
}

// Service owns the Download state machine
type Service struct {
	store     Store
	clients   Clients
	searcher  Searcher
	matcher   Matcher
	blacklist Blacklist
	importer  Importer
	targets   Targets
	activity  Recorder
	config    *configstore.Store
	metrics   *metrics.Metrics
	detector  *quality.Detector
	logger    *zap.Logger

	grabMu sync.Mutex
	now    func() time.Time
	newID  func() string

	// identityTimeout fails a Download whose job never showed up in its client
	identityTimeout time.Duration
	// appearanceGrace is how long a fresh Download may be missing from its client
	appearanceGrace time.Duration
}

// NewService creates the orchestrator
func NewService(deps Deps, logger *zap.Logger) *Service {
	return &Service{
		store:           deps.Store,
		clients:         deps.Clients,
		searcher:        deps.Searcher,
		matcher:         deps.Matcher,
		blacklist:       deps.Blacklist,
		importer:        deps.Importer,
		targets:         deps.Targets,
		activity:        deps.Activity,
		config:          deps.Config,
		metrics:         deps.Metrics,
		detector:        quality.NewDetector(),
		logger:          logger.With(zap.String("component", "downloader")),
		now:             time.Now,
		newID:           uuid.NewString,
		identityTimeout: 30 * time.Minute,
		appearanceGrace: 2 * time.Minute,
	}
}

// Grab submits a release for a target and records it as a new queued Download.
// A target never has more than one non-terminal Download.
func (s *Service) Grab(ctx context.Context, req GrabRequest) (*Download, error) {
	if err := req.Target.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if req.Release.Title == "" || req.Release.DownloadURL == "" {
		return nil, fmt.Errorf("%w: release title and download url are required", ErrInvalidRequest)
	}

	s.grabMu.Lock()
	defer s.grabMu.Unlock()

	existing, err := s.store.ActiveForTarget(ctx, req.Target.Key())
	if err == nil {
		return nil, fmt.Errorf("%w: %s (%s)", ErrActiveDownloadExists, existing.ID, existing.Status)
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	cfg, err := s.clients.Select(ctx, req.Release.Protocol, req.ClientID)
	if err != nil {
		return nil, err
	}

	clientID := cfg.ID
	d := &Download{
		ID:          s.newID(),
		Target:      req.Target,
		Title:       req.Release.Title,
		Status:      StatusQueued,
		DownloadURL: req.Release.DownloadURL,
		ClientID:    &clientID,
		Protocol:    cfg.Protocol(),
		Size:        req.Release.Size,
		Indexer:     req.Release.IndexerName,
		Quality:     s.detector.DetectQuality(req.Release.Title).QualityName,
	}
	if err := s.store.Create(ctx, d); err != nil {
		return nil, err
	}

	result, err := s.clients.Add(ctx, *cfg, req.Target.MediaType, downloadclient.AddRequest{
		URL:   req.Release.DownloadURL,
		Title: req.Release.Title,
	})
	if err != nil {
		if delErr := s.store.Delete(ctx, d.ID); delErr != nil {
			s.logger.Error("failed to remove rejected download", zap.String("download_id", d.ID), zap.Error(delErr))
		}
		return nil, fmt.Errorf("failed to submit release to %s: %w", cfg.Name, err)
	}

	if result.ExternalID != "" {
		d.ExternalID = result.ExternalID
		if err := s.store.Update(ctx, d); err != nil {
			return nil, err
		}
	}

	s.logger.Info("release grabbed",
		zap.String("download_id", d.ID),
		zap.String("target", d.Target.Key()),
		zap.String("release", d.Title),
		zap.String("client", cfg.Name),
		zap.String("external_id", d.ExternalID))

	s.metrics.Transition(string(StatusQueued))
	s.record(ctx, d, EventGrabbed, fmt.Sprintf("sent to %s", cfg.Name))

	return d, nil
}

// Get returns one Download
func (s *Service) Get(ctx context.Context, id string) (*Download, error) {
	return s.store.Get(ctx, id)
}

// List returns Downloads in the given statuses, all when none are given
func (s *Service) List(ctx context.Context, statuses ...Status) ([]Download, error) {
	return s.store.List(ctx, statuses...)
}

// Cancel removes a Download. The external job is removed too when asked;
// a client failure there is logged and does not keep the record.
func (s *Service) Cancel(ctx context.Context, id string, req CancelRequest) error {
	d, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}

	if req.RemoveFromClient && d.ExternalID != "" && d.ClientID != nil && !d.Status.Terminal() {
		if _, err := s.clients.Remove(ctx, *d.ClientID, d.ExternalID, req.DeleteFiles); err != nil {
			s.logger.Warn("failed to remove job from client",
				zap.String("download_id", d.ID),
				zap.Int64("client_id", *d.ClientID),
				zap.Error(err))
		}
	}

	if err := s.store.Delete(ctx, d.ID); err != nil {
		return err
	}

	s.logger.Info("download cancelled", zap.String("download_id", d.ID), zap.String("release", d.Title))
	s.record(ctx, d, EventCancelled, "")
	return nil
}

// Clear removes every completed or failed Download
func (s *Service) Clear(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteTerminal(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Info("cleared finished downloads", zap.Int64("count", n))
	return n, nil
}

// setStatus moves d to status and persists it
func (s *Service) setStatus(ctx context.Context, d *Download, status Status, message string) error {
	d.Status = status
	if status.Terminal() {
		now := s.now().UTC()
		d.CompletedAt = &now
	}
	if status == StatusCompleted {
		d.Progress = 100
		d.ErrorMessage = ""
	}
	if err := s.store.Update(ctx, d); err != nil {
		return err
	}

	s.metrics.Transition(string(status))
	s.record(ctx, d, string(status), message)
	return nil
}

func (s *Service) record(ctx context.Context, d *Download, event, message string) {
	if s.activity == nil {
		return
	}
	s.activity.Record(ctx, activity.Event{
		DownloadID: d.ID,
		TargetKey:  d.Target.Key(),
		Event:      event,
		Message:    message,
	})
}
