package importer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/blakestevenson/nimbus-acquire/internal/configstore"
	"github.com/blakestevenson/nimbus-acquire/internal/media"
	"github.com/blakestevenson/nimbus-acquire/internal/mediainfo"
	"github.com/blakestevenson/nimbus-acquire/internal/naming"
	"github.com/blakestevenson/nimbus-acquire/internal/quality"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// ErrNoVideo is returned when the resolved download holds no video file
var ErrNoVideo = errors.New("no video files found")

// Namer renders library file and folder names
type Namer interface {
	Formats(ctx context.Context) naming.Formats
	GenerateMovieFilename(ctx context.Context, m naming.MovieMetadata) string
	GenerateEpisodeFilename(ctx context.Context, e naming.EpisodeMetadata) string
}

// QualityService resolves quality definitions and profile cutoffs
type QualityService interface {
	ListQualityDefinitions(ctx context.Context) ([]quality.QualityDefinition, error)
	IsCutoffMet(ctx context.Context, profileID int, qualityName string) (bool, error)
}

// Library tracks the files that belong to a library item
type Library interface {
	ListFiles(ctx context.Context, itemID int64) ([]media.MediaFile, error)
	DeleteFile(ctx context.Context, fileID int64) error
	AddFile(ctx context.Context, file media.MediaFile) (*media.MediaFile, error)
	SetMonitored(ctx context.Context, itemID int64, monitored bool) error
}

// Prober reads container metadata from a file
type Prober interface {
	GetMediaInfo(ctx context.Context, path string) (*mediainfo.Info, error)
}

// Service imports finished downloads into the library
type Service struct {
	fs          afero.Fs
	exists      func(path string) bool
	link        func(oldname, newname string) error
	configStore *configstore.Store
	namer       Namer
	detector    *quality.Detector
	quality     QualityService
	library     Library
	prober      Prober
	logger      *zap.Logger
}

// Option customizes a Service
type Option func(*Service)

// WithFs replaces the filesystem. Hardlinks are disabled since they only work on the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(s *Service) {
		s.fs = fs
		s.link = nil
	}
}

// WithExists replaces the existence check used for path candidates
func WithExists(exists func(path string) bool) Option {
	return func(s *Service) { s.exists = exists }
}

// WithLink replaces the hardlink function
func WithLink(link func(oldname, newname string) error) Option {
	return func(s *Service) { s.link = link }
}

// WithProber enables container probing
func WithProber(p Prober) Option {
	return func(s *Service) { s.prober = p }
}

// NewService creates a new importer service
func NewService(configStore *configstore.Store, namer Namer, qualitySvc QualityService, library Library, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		fs:          afero.NewOsFs(),
		link:        os.Link,
		configStore: configStore,
		namer:       namer,
		detector:    quality.NewDetector(),
		quality:     qualitySvc,
		library:     library,
		logger:      logger.With(zap.String("component", "importer")),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.exists == nil {
		s.exists = func(path string) bool {
			_, err := s.fs.Stat(path)
			return err == nil
		}
	}
	return s
}

// Request describes one finished download to import
type Request struct {
	DownloadID  string
	ReleaseName string
	Target      *media.TargetInfo
	Job         PathJob
}

// Result describes what an import did
type Result struct {
	Path         string   `json:"path"`
	ResolvedFrom string   `json:"resolved_from"`
	Quality      string   `json:"quality"`
	Method       string   `json:"method"`
	Replaced     []string `json:"replaced,omitempty"`
	Extras       []string `json:"extras,omitempty"`
	Unmonitored  bool     `json:"unmonitored"`
	CleanedUp    bool     `json:"cleaned_up"`
}

// Import resolves the download on disk, places its main video in the library and
// records it against the target
func (s *Service) Import(ctx context.Context, req Request) (*Result, error) {
	if req.Target == nil {
		return nil, fmt.Errorf("import requires a resolved target")
	}

	logger := s.logger.With(
		zap.String("download_id", req.DownloadID),
		zap.String("target", req.Target.Target.Key()),
		zap.String("release", req.ReleaseName))

	cfg := s.loadConfig(ctx)

	candidates := Candidates(req.Job, cfg)
	src, err := ResolvePath(candidates, s.exists)
	if err != nil {
		logger.Warn("download path not found", zap.Strings("tried", candidates))
		return nil, err
	}

	videos, err := findVideoFiles(s.fs, src)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", src, err)
	}
	if len(videos) == 0 {
		return nil, fmt.Errorf("%w in %q", ErrNoVideo, src)
	}
	video := videos[0].Path

	detected := s.detectQuality(ctx, req.ReleaseName, video)
	qualityName := detected.QualityName
	if detected.Quality != nil {
		qualityName = detected.Quality.Name
	}

	destDir, baseName := s.destination(ctx, cfg, req.Target, qualityName, detected.ReleaseGroup)
	if baseName == "" {
		baseName = strings.TrimSuffix(filepath.Base(video), filepath.Ext(video))
	}
	dst := filepath.Join(destDir, baseName+strings.ToLower(filepath.Ext(video)))

	if err := s.fs.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", destDir, err)
	}

	result := &Result{
		Path:         dst,
		ResolvedFrom: src,
		Quality:      qualityName,
	}

	existing, err := s.library.ListFiles(ctx, req.Target.ItemID)
	if err != nil {
		return nil, err
	}

	if filepath.Clean(video) != filepath.Clean(dst) {
		if _, err := s.fs.Stat(dst); err == nil {
			if err := s.fs.Remove(dst); err != nil {
				return nil, fmt.Errorf("failed to replace %s: %w", dst, err)
			}
		}
	}

	method, err := s.placeFile(video, dst, cfg.UseHardlinks, cfg.libraryRoots())
	if err != nil {
		return nil, err
	}
	result.Method = method

	logger.Info("placed video",
		zap.String("source", video),
		zap.String("destination", dst),
		zap.String("method", method),
		zap.String("quality", qualityName))

	if cfg.ImportExtraFiles {
		result.Extras = s.importExtras(video, dst, cfg, logger)
	}

	var size int64
	if info, err := s.fs.Stat(dst); err == nil {
		size = info.Size()
	}

	// Upgrade: anything tracked under another path is the previous release
	for _, f := range existing {
		if filepath.Clean(f.Path) == filepath.Clean(dst) {
			continue
		}
		if err := s.fs.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("failed to delete replaced file", zap.String("path", f.Path), zap.Error(err))
		}
		if err := s.library.DeleteFile(ctx, f.ID); err != nil {
			logger.Warn("failed to untrack replaced file", zap.Int64("file_id", f.ID), zap.Error(err))
			continue
		}
		result.Replaced = append(result.Replaced, f.Path)
	}

	if _, err := s.library.AddFile(ctx, media.MediaFile{
		MediaItemID: req.Target.ItemID,
		Path:        dst,
		Size:        size,
		Quality:     qualityName,
		ReleaseName: req.ReleaseName,
	}); err != nil {
		return nil, err
	}

	if req.Target.QualityProfileID != nil && req.Target.Monitored {
		met, err := s.quality.IsCutoffMet(ctx, *req.Target.QualityProfileID, qualityName)
		if err != nil {
			logger.Warn("failed to evaluate cutoff", zap.Error(err))
		} else if met {
			if err := s.library.SetMonitored(ctx, req.Target.ItemID, false); err != nil {
				logger.Warn("failed to unmonitor item", zap.Error(err))
			} else {
				result.Unmonitored = true
				logger.Info("cutoff met, item unmonitored", zap.String("quality", qualityName))
			}
		}
	}

	result.CleanedUp = s.cleanup(src, destDir, cfg, logger)

	return result, nil
}

// detectQuality trusts the release name first and lets the container fill gaps
func (s *Service) detectQuality(ctx context.Context, releaseName, video string) *quality.DetectedQualityInfo {
	info := s.detector.DetectQuality(releaseName)
	if info.QualityName == "Unknown" {
		if fromFile := s.detector.DetectQuality(filepath.Base(video)); fromFile.QualityName != "Unknown" {
			info = fromFile
		}
	}

	if s.prober != nil {
		probed, err := s.prober.GetMediaInfo(ctx, video)
		if err != nil {
			s.logger.Debug("media probe failed", zap.String("path", video), zap.Error(err))
		} else {
			s.detector.MergeContainerInfo(info, probed.Container())
		}
	}

	definitions, err := s.quality.ListQualityDefinitions(ctx)
	if err != nil {
		s.logger.Warn("failed to load quality definitions", zap.Error(err))
		return info
	}
	info.Quality = s.detector.MatchQualityDefinition(info, definitions)
	return info
}

// destination returns the target folder and the rendered base name ("" keeps the source name)
func (s *Service) destination(ctx context.Context, cfg *ImportConfig, target *media.TargetInfo, qualityName, group string) (string, string) {
	formats := s.namer.Formats(ctx)

	switch target.Target.MediaType {
	case media.MediaTypeEpisode:
		meta := naming.EpisodeMetadata{
			SeriesTitle:  target.Title,
			Year:         target.Year,
			Season:       target.Target.Season,
			Episode:      target.Target.Episode,
			EpisodeTitle: target.EpisodeTitle,
			Quality:      qualityName,
			ReleaseGroup: group,
		}
		dir := filepath.Join(cfg.tvRoot(), formats.SeriesFolderName(meta))
		if season := formats.SeasonFolderName(meta); season != "" {
			dir = filepath.Join(dir, season)
		}
		return dir, s.namer.GenerateEpisodeFilename(ctx, meta)
	default:
		meta := naming.MovieMetadata{
			Title:        target.Title,
			Year:         target.Year,
			Quality:      qualityName,
			ReleaseGroup: group,
		}
		dir := filepath.Join(cfg.movieRoot(), formats.MovieFolderName(meta))
		return dir, s.namer.GenerateMovieFilename(ctx, meta)
	}
}

func (s *Service) importExtras(video, dst string, cfg *ImportConfig, logger *zap.Logger) []string {
	newBase := strings.TrimSuffix(filepath.Base(dst), filepath.Ext(dst))
	var imported []string
	for _, extra := range findExtraFiles(s.fs, video, cfg.extraExtensions()) {
		target := filepath.Join(filepath.Dir(dst), extraFileName(newBase, video, extra))
		if _, err := s.placeFile(extra, target, cfg.UseHardlinks, cfg.libraryRoots()); err != nil {
			logger.Warn("failed to import extra file", zap.String("path", extra), zap.Error(err))
			continue
		}
		imported = append(imported, target)
	}
	return imported
}

// cleanup removes a leftover release folder that sits inside a library tree
func (s *Service) cleanup(src, destDir string, cfg *ImportConfig, logger *zap.Logger) bool {
	releaseDir := src
	if info, err := s.fs.Stat(src); err != nil || !info.IsDir() {
		releaseDir = filepath.Dir(src)
	}
	releaseDir = filepath.Clean(releaseDir)

	if releaseDir == filepath.Clean(destDir) || within(destDir, releaseDir) {
		return false
	}

	inLibrary := false
	for _, root := range cfg.libraryRoots() {
		if within(releaseDir, root) {
			inLibrary = true
			break
		}
	}
	if !inLibrary {
		return false
	}

	removed, err := cleanupReleaseDir(s.fs, releaseDir, int64(cfg.LeftoverMaxMB)*1024*1024)
	if err != nil {
		logger.Warn("failed to clean up release folder", zap.String("path", releaseDir), zap.Error(err))
		return false
	}
	if removed {
		logger.Info("removed release folder", zap.String("path", releaseDir))
	}
	return removed
}
