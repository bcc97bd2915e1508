package media

import (
	"fmt"
	"time"
)

// MediaKind represents the type of a library row
type MediaKind string

const (
	MediaKindMovie     MediaKind = "movie"
	MediaKindTVSeries  MediaKind = "tv_series"
	MediaKindTVEpisode MediaKind = "tv_episode"
)

// MediaType distinguishes the two kinds of acquisition target
type MediaType string

const (
	MediaTypeMovie   MediaType = "movie"
	MediaTypeEpisode MediaType = "episode"
)

// Target identifies what a Download is acquiring: a movie, or one episode of a series
type Target struct {
	MediaType MediaType `json:"media_type"`
	MovieID   int64     `json:"movie_id,omitempty"`
	SeriesID  int64     `json:"series_id,omitempty"`
	Season    int       `json:"season,omitempty"`
	Episode   int       `json:"episode,omitempty"`
}

// MovieTarget builds a movie target
func MovieTarget(movieID int64) Target {
	return Target{MediaType: MediaTypeMovie, MovieID: movieID}
}

// EpisodeTarget builds an episode target
func EpisodeTarget(seriesID int64, season, episode int) Target {
	return Target{MediaType: MediaTypeEpisode, SeriesID: seriesID, Season: season, Episode: episode}
}

// Key returns the canonical identity used for the one-active-download rule and blacklist lookups
func (t Target) Key() string {
	switch t.MediaType {
	case MediaTypeMovie:
		return fmt.Sprintf("movie:%d", t.MovieID)
	case MediaTypeEpisode:
		return fmt.Sprintf("episode:%d:%d:%d", t.SeriesID, t.Season, t.Episode)
	default:
		return "unknown"
	}
}

// Validate checks that the target carries the identifiers its type needs
func (t Target) Validate() error {
	switch t.MediaType {
	case MediaTypeMovie:
		if t.MovieID <= 0 {
			return fmt.Errorf("%w: movie_id is required", ErrInvalidTarget)
		}
	case MediaTypeEpisode:
		if t.SeriesID <= 0 {
			return fmt.Errorf("%w: series_id is required", ErrInvalidTarget)
		}
		if t.Season < 0 || t.Episode <= 0 {
			return fmt.Errorf("%w: season and episode are required", ErrInvalidTarget)
		}
	default:
		return fmt.Errorf("%w: unknown media type %q", ErrInvalidTarget, t.MediaType)
	}
	return nil
}

func (t Target) String() string {
	return t.Key()
}

// TargetInfo is the library metadata a target resolves to
type TargetInfo struct {
	Target           Target `json:"target"`
	ItemID           int64  `json:"item_id"` // movie row or episode row
	Title            string `json:"title"`   // movie title or series title
	Year             int    `json:"year,omitempty"`
	EpisodeTitle     string `json:"episode_title,omitempty"`
	Monitored        bool   `json:"monitored"`
	QualityProfileID *int   `json:"quality_profile_id,omitempty"`
}

// MediaFile is a file tracked for a library item
type MediaFile struct {
	ID          int64     `json:"id"`
	MediaItemID int64     `json:"media_item_id"`
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
	Quality     string    `json:"quality"`
	ReleaseName string    `json:"release_name"`
	CreatedAt   time.Time `json:"created_at"`
}
