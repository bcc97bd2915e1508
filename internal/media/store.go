package media

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Store reads library items and maintains their tracked files
type Store struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewStore creates a new library store
func NewStore(db *pgxpool.Pool, logger *zap.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With(zap.String("component", "media-store")),
	}
}

// ResolveTarget loads the title, year and profile a target refers to
func (s *Store) ResolveTarget(ctx context.Context, target Target) (*TargetInfo, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}

	info := &TargetInfo{Target: target}
	var year *int
	var episodeTitle *string

	var err error
	switch target.MediaType {
	case MediaTypeMovie:
		err = s.db.QueryRow(ctx, `
			SELECT id, title, year, monitored, quality_profile_id
			FROM media_items
			WHERE id = $1 AND kind = 'movie'
		`, target.MovieID).Scan(&info.ItemID, &info.Title, &year, &info.Monitored, &info.QualityProfileID)
	case MediaTypeEpisode:
		err = s.db.QueryRow(ctx, `
			SELECT e.id, s.title, s.year, e.episode_title, e.monitored,
			       COALESCE(e.quality_profile_id, s.quality_profile_id)
			FROM media_items e
			JOIN media_items s ON s.id = e.parent_id AND s.kind = 'tv_series'
			WHERE e.kind = 'tv_episode'
			  AND e.parent_id = $1
			  AND e.season_number = $2
			  AND e.episode_number = $3
		`, target.SeriesID, target.Season, target.Episode).Scan(
			&info.ItemID, &info.Title, &year, &episodeTitle, &info.Monitored, &info.QualityProfileID,
		)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, target.Key())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve target %s: %w", target.Key(), err)
	}

	if year != nil {
		info.Year = *year
	}
	if episodeTitle != nil {
		info.EpisodeTitle = *episodeTitle
	}

	return info, nil
}

// ListFiles returns the files currently tracked for a library item
func (s *Store) ListFiles(ctx context.Context, itemID int64) ([]MediaFile, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, media_item_id, path, size, quality, release_name, created_at
		FROM media_files
		WHERE media_item_id = $1
		ORDER BY created_at ASC
	`, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query media files: %w", err)
	}
	defer rows.Close()

	var files []MediaFile
	for rows.Next() {
		var f MediaFile
		if err := rows.Scan(&f.ID, &f.MediaItemID, &f.Path, &f.Size, &f.Quality, &f.ReleaseName, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan media file: %w", err)
		}
		files = append(files, f)
	}

	return files, rows.Err()
}

// DeleteFile removes a tracked file row
func (s *Store) DeleteFile(ctx context.Context, fileID int64) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM media_files WHERE id = $1`, fileID); err != nil {
		return fmt.Errorf("failed to delete media file %d: %w", fileID, err)
	}
	return nil
}

// AddFile records an imported file, replacing any row already pointing at the same path
func (s *Store) AddFile(ctx context.Context, file MediaFile) (*MediaFile, error) {
	err := s.db.QueryRow(ctx, `
		INSERT INTO media_files (media_item_id, path, size, quality, release_name)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (path) DO UPDATE
		SET media_item_id = EXCLUDED.media_item_id,
		    size = EXCLUDED.size,
		    quality = EXCLUDED.quality,
		    release_name = EXCLUDED.release_name
		RETURNING id, created_at
	`, file.MediaItemID, file.Path, file.Size, file.Quality, file.ReleaseName).Scan(&file.ID, &file.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to record media file: %w", err)
	}

	s.logger.Info("recorded media file",
		zap.Int64("media_item_id", file.MediaItemID),
		zap.String("path", file.Path),
		zap.String("quality", file.Quality))

	return &file, nil
}

// SetMonitored flips the monitored flag of a library item
func (s *Store) SetMonitored(ctx context.Context, itemID int64, monitored bool) error {
	_, err := s.db.Exec(ctx, `
		UPDATE media_items
		SET monitored = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`, itemID, monitored)
	if err != nil {
		return fmt.Errorf("failed to update monitored flag: %w", err)
	}
	return nil
}
