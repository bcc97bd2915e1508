package importer

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/blakestevenson/nimbus-acquire/internal/configstore"
	"go.uber.org/zap"
)

// ImportConfig holds the settings an import reads from the config table
type ImportConfig struct {
	// Libraries
	MovieLibraryPath string
	TVLibraryPath    string
	RootLibraryPath  string

	// Path resolution
	PathOverride string

	// Placement
	UseHardlinks        bool
	ImportExtraFiles    bool
	ExtraFileExtensions string

	// Cleanup
	LeftoverMaxMB int
}

// loadConfig loads the import configuration from the config store
func (s *Service) loadConfig(ctx context.Context) *ImportConfig {
	config := &ImportConfig{
		// Defaults
		RootLibraryPath:     "/media",
		UseHardlinks:        true,
		ImportExtraFiles:    true,
		ExtraFileExtensions: "srt,sub,ass,nfo",
		LeftoverMaxMB:       50,
	}

	configMap := map[string]interface{}{
		configstore.KeyMovieLibraryPath:   &config.MovieLibraryPath,
		configstore.KeyTVLibraryPath:      &config.TVLibraryPath,
		configstore.KeyRootLibraryPath:    &config.RootLibraryPath,
		configstore.KeyPathOverride:       &config.PathOverride,
		"downloads.use_hardlinks":         &config.UseHardlinks,
		"downloads.import_extra_files":    &config.ImportExtraFiles,
		"downloads.extra_file_extensions": &config.ExtraFileExtensions,
		"downloads.leftover_max_mb":       &config.LeftoverMaxMB,
	}

	for key, target := range configMap {
		value, err := s.configStore.Get(ctx, key)
		if err != nil {
			// Key doesn't exist, use default
			continue
		}

		switch v := target.(type) {
		case *string:
			var str string
			if err := json.Unmarshal(value, &str); err == nil {
				*v = cleanConfigString(str)
			}
		case *bool:
			var b bool
			if err := json.Unmarshal(value, &b); err == nil {
				*v = b
			}
		case *int:
			var f float64
			if err := json.Unmarshal(value, &f); err == nil {
				*v = int(f)
			}
		}
	}

	s.logger.Debug("loaded import configuration",
		zap.String("movie_library", config.movieRoot()),
		zap.String("tv_library", config.tvRoot()),
		zap.Bool("use_hardlinks", config.UseHardlinks))

	return config
}

// cleanConfigString removes surrounding quotes from JSON string values
func cleanConfigString(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

func (c *ImportConfig) movieRoot() string {
	if c.MovieLibraryPath != "" {
		return filepath.Clean(c.MovieLibraryPath)
	}
	return filepath.Join(c.RootLibraryPath, "Movies")
}

func (c *ImportConfig) tvRoot() string {
	if c.TVLibraryPath != "" {
		return filepath.Clean(c.TVLibraryPath)
	}
	return filepath.Join(c.RootLibraryPath, "TV")
}

// libraryRoots lists every library tree; files inside them belong to the library
func (c *ImportConfig) libraryRoots() []string {
	return []string{c.movieRoot(), c.tvRoot()}
}

func (c *ImportConfig) extraExtensions() map[string]struct{} {
	exts := make(map[string]struct{})
	for _, ext := range strings.Split(c.ExtraFileExtensions, ",") {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts[ext] = struct{}{}
	}
	return exts
}
