package downloader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blakestevenson/nimbus-acquire/internal/configstore"
	"github.com/blakestevenson/nimbus-acquire/internal/downloadclient"
	"github.com/blakestevenson/nimbus-acquire/internal/importer"
	"github.com/blakestevenson/nimbus-acquire/internal/indexer"
	"go.uber.org/zap"
)

// importDownload runs the import pipeline for a Download in importing
func (s *Service) importDownload(ctx context.Context, d *Download, job downloadclient.ExternalJob, listing *clientJobs) {
	started := s.now()

	info, err := s.targets.ResolveTarget(ctx, d.Target)
	if err != nil {
		s.fail(ctx, d, fmt.Sprintf("import failed: %v", err), listing)
		return
	}

	result, err := s.importer.Import(ctx, importer.Request{
		DownloadID:  d.ID,
		ReleaseName: d.Title,
		Target:      info,
		Job: importer.PathJob{
			ContentPath: job.ContentPath,
			SavePath:    job.SavePath,
			Name:        job.Name,
			Category:    job.Category,
		},
	})
	s.metrics.ObserveImport(time.Since(started).Seconds())
	if err != nil {
		s.fail(ctx, d, fmt.Sprintf("import failed: %v", err), listing)
		return
	}

	if result.Quality != "" {
		d.Quality = result.Quality
	}
	if err := s.setStatus(ctx, d, StatusCompleted, "imported to "+result.Path); err != nil {
		s.logger.Error("failed to complete download", zap.String("download_id", d.ID), zap.Error(err))
		return
	}

	s.logger.Info("download imported",
		zap.String("download_id", d.ID),
		zap.String("path", result.Path),
		zap.String("method", result.Method),
		zap.String("quality", result.Quality),
		zap.Bool("unmonitored", result.Unmonitored))
}

// fail blacklists the release, applies the client's removal policy, finalizes the
// Download and, when enabled, grabs a replacement as a new Download
func (s *Service) fail(ctx context.Context, d *Download, reason string, listing *clientJobs) {
	logger := s.logger.With(zap.String("download_id", d.ID), zap.String("release", d.Title))
	logger.Warn("download failed", zap.String("reason", reason))

	if _, err := s.blacklist.Add(ctx, d.Target, d.Title, d.Indexer, reason); err != nil {
		logger.Error("failed to blacklist release", zap.Error(err))
	}

	if listing != nil && listing.cfg.RemoveOnFailure && d.ExternalID != "" {
		removed, err := s.clients.Remove(ctx, listing.cfg.ID, d.ExternalID, listing.cfg.RemoveOnFailureDeleteFiles)
		if err != nil {
			logger.Warn("failed to remove failed job from client", zap.Error(err))
		} else if removed {
			logger.Info("removed failed job from client",
				zap.String("external_id", d.ExternalID),
				zap.Bool("delete_files", listing.cfg.RemoveOnFailureDeleteFiles))
		}
	}

	d.ErrorMessage = reason
	if err := s.setStatus(ctx, d, StatusFailed, reason); err != nil {
		logger.Error("failed to mark download as failed", zap.Error(err))
		return
	}

	if s.flag(ctx, configstore.KeyRedownloadOnFailure, true) {
		s.redownload(ctx, d)
	}
}

// redownload searches again for the failed Download's target and grabs the best
// release that is not blacklisted
func (s *Service) redownload(ctx context.Context, failed *Download) {
	logger := s.logger.With(zap.String("failed_download_id", failed.ID), zap.String("target", failed.Target.Key()))

	result, err := s.FindReleases(ctx, failed.Target, indexer.SearchTypeAutomatic)
	if err != nil {
		logger.Warn("redownload search failed", zap.Error(err))
		return
	}

	for _, release := range result.Releases {
		d, err := s.Grab(ctx, GrabRequest{Target: failed.Target, Release: release})
		switch {
		case err == nil:
			logger.Info("grabbed replacement release",
				zap.String("download_id", d.ID),
				zap.String("release", d.Title))
			s.record(ctx, d, EventRedownload, "replaces "+failed.ID)
			return
		case errors.Is(err, ErrActiveDownloadExists):
			return
		default:
			logger.Warn("replacement grab failed", zap.String("release", release.Title), zap.Error(err))
		}
	}

	logger.Info("no replacement release found", zap.Int("results", result.Found))
}
