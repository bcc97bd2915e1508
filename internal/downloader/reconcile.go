package downloader

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/blakestevenson/nimbus-acquire/internal/configstore"
	"github.com/blakestevenson/nimbus-acquire/internal/downloadclient"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

const maxConcurrentListings = 4

// reasonClientUnavailable fails Downloads whose client is disabled or deleted
const reasonClientUnavailable = "download client unavailable"

// clientJobs is one client's job list for a cycle
type clientJobs struct {
	cfg  downloadclient.ClientConfig
	jobs []downloadclient.ExternalJob
	err  error
}

// snapshot is what every enabled client reported in one cycle
type snapshot struct {
	clients map[int64]*clientJobs
	byID    map[string]downloadclient.ExternalJob
}

// client returns the listing of a client, nil when it was not listed
func (s *snapshot) client(id *int64) *clientJobs {
	if id == nil {
		return nil
	}
	return s.clients[*id]
}

// find looks an external id up across every successfully listed client
func (s *snapshot) find(externalID string) (downloadclient.ExternalJob, bool) {
	job, ok := s.byID[strings.ToLower(externalID)]
	return job, ok
}

// takeSnapshot lists every enabled client once, concurrently
func (s *Service) takeSnapshot(ctx context.Context) (*snapshot, error) {
	enabled, err := s.clients.Enabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list download clients: %w", err)
	}

	p := pool.NewWithResults[*clientJobs]().WithMaxGoroutines(maxConcurrentListings)
	for _, cfg := range enabled {
		p.Go(func() *clientJobs {
			listing := &clientJobs{cfg: cfg}
			adapter, err := s.clients.Adapter(cfg)
			if err != nil {
				listing.err = err
				return listing
			}
			listing.jobs, listing.err = adapter.ListJobs(ctx, "")
			return listing
		})
	}

	snap := &snapshot{
		clients: make(map[int64]*clientJobs),
		byID:    make(map[string]downloadclient.ExternalJob),
	}
	for _, listing := range p.Wait() {
		snap.clients[listing.cfg.ID] = listing
		if listing.err != nil {
			s.logger.Warn("failed to list client jobs",
				zap.Int64("client_id", listing.cfg.ID),
				zap.String("client", listing.cfg.Name),
				zap.Error(listing.err))
			continue
		}
		for _, job := range listing.jobs {
			snap.byID[strings.ToLower(job.ID)] = job
		}
	}
	return snap, nil
}

// Poll runs one reconciliation cycle over every non-terminal Download
func (s *Service) Poll(ctx context.Context) error {
	active, err := s.store.List(ctx, ActiveStatuses...)
	if err != nil {
		return err
	}
	if len(active) == 0 {
		return nil
	}

	snap, err := s.takeSnapshot(ctx)
	if err != nil {
		return err
	}

	// older grabs claim their jobs first
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})

	claimed := make(map[string]struct{}, len(active))
	for _, d := range active {
		if d.ExternalID != "" {
			claimed[strings.ToLower(d.ExternalID)] = struct{}{}
		}
	}

	for i := range active {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.reconcile(ctx, &active[i], snap, claimed)
	}
	return nil
}

func (s *Service) reconcile(ctx context.Context, d *Download, snap *snapshot, claimed map[string]struct{}) {
	logger := s.logger.With(zap.String("download_id", d.ID), zap.String("release", d.Title))
	listing := snap.client(d.ClientID)

	if d.ExternalID == "" {
		if listing == nil {
			if s.now().Sub(d.CreatedAt) > s.identityTimeout {
				s.fail(ctx, d, reasonClientUnavailable, nil)
			}
			return
		}
		if listing.err != nil {
			return
		}
		job := matchIdentity(d.Title, listing.jobs, claimed)
		if job == nil {
			if s.now().Sub(d.CreatedAt) > s.identityTimeout {
				s.fail(ctx, d, "release never appeared in the download client", listing)
			}
			return
		}

		d.ExternalID = job.ID
		clientID := listing.cfg.ID
		d.ClientID = &clientID
		claimed[strings.ToLower(job.ID)] = struct{}{}
		if err := s.store.Update(ctx, d); err != nil {
			logger.Error("failed to store matched job", zap.Error(err))
			return
		}
		logger.Info("matched download to client job", zap.String("external_id", job.ID), zap.String("job", job.Name))
		s.record(ctx, d, EventMatched, job.Name)
	}

	job, ok := snap.find(d.ExternalID)
	if !ok {
		// a client that could not be listed cannot prove the job is gone
		if listing == nil {
			if s.now().Sub(lastSeen(d)) > s.appearanceGrace {
				s.fail(ctx, d, reasonClientUnavailable, nil)
			}
			return
		}
		if listing.err != nil {
			return
		}
		if d.Status == StatusQueued && s.now().Sub(d.CreatedAt) < s.appearanceGrace {
			return
		}
		s.fail(ctx, d, "download disappeared from the download client", listing)
		return
	}

	switch {
	case job.State == downloadclient.JobStateFailed:
		reason := job.Error
		if reason == "" {
			reason = fmt.Sprintf("download failed in client (%s)", job.RawState)
		}
		s.fail(ctx, d, reason, listing)
	case d.Status == StatusImporting || jobComplete(job):
		s.complete(ctx, d, job, listing)
	default:
		s.updateProgress(ctx, d, job)
	}
}

// lastSeen is when the Download last changed, falling back to its creation
func lastSeen(d *Download) time.Time {
	if d.UpdatedAt.IsZero() {
		return d.CreatedAt
	}
	return d.UpdatedAt
}

func jobComplete(job downloadclient.ExternalJob) bool {
	if job.State == downloadclient.JobStateCompleted {
		return true
	}
	return job.Progress >= 100 && job.State != downloadclient.JobStatePostProcessing
}

func clampProgress(p float64) int {
	switch {
	case p <= 0:
		return 0
	case p >= 100:
		return 100
	default:
		return int(p)
	}
}

func (s *Service) updateProgress(ctx context.Context, d *Download, job downloadclient.ExternalJob) {
	progress := clampProgress(job.Progress)
	changed := progress != d.Progress
	d.Progress = progress
	if d.Size == 0 && job.Size > 0 {
		d.Size = job.Size
		changed = true
	}

	if d.Status == StatusQueued && progress > 0 {
		if err := s.setStatus(ctx, d, StatusDownloading, ""); err != nil {
			s.logger.Error("failed to mark download as downloading", zap.String("download_id", d.ID), zap.Error(err))
		}
		return
	}
	if changed {
		if err := s.store.Update(ctx, d); err != nil {
			s.logger.Error("failed to update progress", zap.String("download_id", d.ID), zap.Error(err))
		}
	}
}

// complete finishes a Download whose job is done, importing it unless auto-import is off
func (s *Service) complete(ctx context.Context, d *Download, job downloadclient.ExternalJob, listing *clientJobs) {
	if !s.flag(ctx, configstore.KeyAutoImport, true) {
		if err := s.setStatus(ctx, d, StatusCompleted, "auto-import disabled"); err != nil {
			s.logger.Error("failed to complete download", zap.String("download_id", d.ID), zap.Error(err))
		}
		return
	}

	if d.Status != StatusImporting {
		d.Progress = 100
		if err := s.setStatus(ctx, d, StatusImporting, job.ContentPath); err != nil {
			s.logger.Error("failed to mark download as importing", zap.String("download_id", d.ID), zap.Error(err))
			return
		}
	}

	s.importDownload(ctx, d, job, listing)
}

func (s *Service) flag(ctx context.Context, key string, def bool) bool {
	if s.config == nil {
		return def
	}
	return s.config.GetBoolOrDefault(ctx, key, def)
}
