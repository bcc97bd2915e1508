package naming

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/blakestevenson/nimbus-acquire/internal/configstore"
	"go.uber.org/zap"
)

// Formats holds the naming templates and sanitizing rules
type Formats struct {
	MovieFile      string
	MovieFolder    string
	EpisodeFile    string
	SeriesFolder   string
	SeasonFolder   string
	RenameMovies   bool
	RenameEpisodes bool

	ReplaceIllegalCharacters bool
	ColonReplacement         string // "delete", "dash", "space", "spacedash"
}

// DefaultFormats returns the built-in templates
func DefaultFormats() Formats {
	return Formats{
		MovieFile:                "{Movie Title} ({Release Year}) {Quality}",
		MovieFolder:              "{Movie Title} ({Release Year})",
		EpisodeFile:              "{Series Title} - S{season:00}E{episode:00} - {Episode Title} {Quality}",
		SeriesFolder:             "{Series Title}",
		SeasonFolder:             "Season {season:00}",
		RenameMovies:             true,
		RenameEpisodes:           true,
		ReplaceIllegalCharacters: true,
		ColonReplacement:         "dash",
	}
}

// Validate checks the templates are usable
func (f Formats) Validate() error {
	if f.MovieFolder == "" {
		return fmt.Errorf("movie folder format cannot be empty")
	}
	if f.SeriesFolder == "" {
		return fmt.Errorf("series folder format cannot be empty")
	}
	switch f.ColonReplacement {
	case "delete", "dash", "space", "spacedash":
		return nil
	default:
		return fmt.Errorf("invalid colon replacement: %s", f.ColonReplacement)
	}
}

// MovieMetadata feeds the movie templates
type MovieMetadata struct {
	Title        string
	Year         int
	Quality      string
	ReleaseGroup string
}

// EpisodeMetadata feeds the episode templates
type EpisodeMetadata struct {
	SeriesTitle  string
	Year         int
	Season       int
	Episode      int
	EpisodeTitle string
	Quality      string
	ReleaseGroup string
}

var (
	seasonPad  = regexp.MustCompile(`\{season:(0+)\}`)
	episodePad = regexp.MustCompile(`\{episode:(0+)\}`)
	spaces     = regexp.MustCompile(`\s+`)
	emptySq    = regexp.MustCompile(`\[\s*\]`)
	emptyParen = regexp.MustCompile(`\(\s*\)`)
	danglingHy = regexp.MustCompile(`(\s-)+\s*$`)
)

func padded(re *regexp.Regexp, s string, n int) string {
	return re.ReplaceAllStringFunc(s, func(m string) string {
		width := len(re.FindStringSubmatch(m)[1])
		return fmt.Sprintf("%0*d", width, n)
	})
}

func yearString(y int) string {
	if y <= 0 {
		return ""
	}
	return strconv.Itoa(y)
}

// cleanup collapses whitespace and drops brackets left empty by missing tokens
func cleanup(s string) string {
	s = emptySq.ReplaceAllString(s, "")
	s = emptyParen.ReplaceAllString(s, "")
	s = spaces.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, " - -", " -")
	s = danglingHy.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// Sanitize strips characters most filesystems reject
func (f Formats) Sanitize(name string) string {
	if f.ReplaceIllegalCharacters {
		switch f.ColonReplacement {
		case "delete":
			name = strings.ReplaceAll(name, ":", "")
		case "space":
			name = strings.ReplaceAll(name, ":", " ")
		case "spacedash":
			name = strings.ReplaceAll(name, ":", " - ")
		default:
			name = strings.ReplaceAll(name, ":", "-")
		}
		for _, char := range []string{"/", "\\", "*", "?", "\"", "<", ">", "|"} {
			name = strings.ReplaceAll(name, char, "")
		}
	}
	name = spaces.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)
	return strings.Trim(name, ".")
}

func (f Formats) movie(template string, m MovieMetadata) string {
	r := strings.NewReplacer(
		"{Movie Title}", m.Title,
		"{Release Year}", yearString(m.Year),
		"{Quality}", m.Quality,
		"{Release Group}", m.ReleaseGroup,
	)
	return f.Sanitize(cleanup(r.Replace(template)))
}

func (f Formats) episode(template string, e EpisodeMetadata) string {
	s := padded(seasonPad, template, e.Season)
	s = padded(episodePad, s, e.Episode)
	r := strings.NewReplacer(
		"{Series Title}", e.SeriesTitle,
		"{Year}", yearString(e.Year),
		"{Season}", strconv.Itoa(e.Season),
		"{Episode}", strconv.Itoa(e.Episode),
		"{Episode Title}", e.EpisodeTitle,
		"{Quality}", e.Quality,
		"{Release Group}", e.ReleaseGroup,
	)
	return f.Sanitize(cleanup(r.Replace(s)))
}

// MovieFilename renders the movie file name without extension. Empty means keep the source name.
func (f Formats) MovieFilename(m MovieMetadata) string {
	if !f.RenameMovies || f.MovieFile == "" {
		return ""
	}
	return f.movie(f.MovieFile, m)
}

// MovieFolderName renders the movie folder
func (f Formats) MovieFolderName(m MovieMetadata) string {
	return f.movie(f.MovieFolder, m)
}

// EpisodeFilename renders the episode file name without extension. Empty means keep the source name.
func (f Formats) EpisodeFilename(e EpisodeMetadata) string {
	if !f.RenameEpisodes || f.EpisodeFile == "" {
		return ""
	}
	return f.episode(f.EpisodeFile, e)
}

// SeriesFolderName renders the series folder
func (f Formats) SeriesFolderName(e EpisodeMetadata) string {
	return f.episode(f.SeriesFolder, e)
}

// SeasonFolderName renders the season folder; an empty template disables season folders
func (f Formats) SeasonFolderName(e EpisodeMetadata) string {
	if f.SeasonFolder == "" {
		return ""
	}
	return f.episode(f.SeasonFolder, e)
}

// Config keys for the naming settings
const (
	KeyMovieFormat       = "downloads.movie_naming_format"
	KeyMovieFolderFormat = "downloads.movie_folder_format"
	KeyTVFormat          = "downloads.tv_naming_format"
	KeyTVFolderFormat    = "downloads.tv_folder_format"
	KeySeasonFormat      = "downloads.tv_season_folder_format"
	KeyRenameMovies      = "downloads.rename_movies"
	KeyRenameEpisodes    = "downloads.rename_episodes"
	KeyReplaceIllegal    = "downloads.replace_illegal_characters"
	KeyColonReplacement  = "downloads.colon_replacement"
)

// Service renders names using the templates stored in the config table
type Service struct {
	config *configstore.Store
	logger *zap.Logger
}

// NewService creates a naming service
func NewService(config *configstore.Store, logger *zap.Logger) *Service {
	return &Service{
		config: config,
		logger: logger.With(zap.String("component", "naming")),
	}
}

// Formats loads the current templates, falling back to defaults for unset or invalid values
func (s *Service) Formats(ctx context.Context) Formats {
	f := DefaultFormats()
	f.MovieFile = s.config.GetOrDefault(ctx, KeyMovieFormat, f.MovieFile)
	f.MovieFolder = s.config.GetOrDefault(ctx, KeyMovieFolderFormat, f.MovieFolder)
	f.EpisodeFile = s.config.GetOrDefault(ctx, KeyTVFormat, f.EpisodeFile)
	f.SeriesFolder = s.config.GetOrDefault(ctx, KeyTVFolderFormat, f.SeriesFolder)
	f.SeasonFolder = s.config.GetOrDefault(ctx, KeySeasonFormat, f.SeasonFolder)
	f.RenameMovies = s.config.GetBoolOrDefault(ctx, KeyRenameMovies, f.RenameMovies)
	f.RenameEpisodes = s.config.GetBoolOrDefault(ctx, KeyRenameEpisodes, f.RenameEpisodes)
	f.ReplaceIllegalCharacters = s.config.GetBoolOrDefault(ctx, KeyReplaceIllegal, f.ReplaceIllegalCharacters)
	f.ColonReplacement = s.config.GetOrDefault(ctx, KeyColonReplacement, f.ColonReplacement)

	if err := f.Validate(); err != nil {
		s.logger.Warn("invalid naming settings, using defaults", zap.Error(err))
		return DefaultFormats()
	}
	return f
}

// GenerateMovieFilename renders a movie file name, or "" to keep the source name
func (s *Service) GenerateMovieFilename(ctx context.Context, m MovieMetadata) string {
	return s.Formats(ctx).MovieFilename(m)
}

// GenerateEpisodeFilename renders an episode file name, or "" to keep the source name
func (s *Service) GenerateEpisodeFilename(ctx context.Context, e EpisodeMetadata) string {
	return s.Formats(ctx).EpisodeFilename(e)
}
