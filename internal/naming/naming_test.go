package naming

import (
	"context"
	"testing"

	"github.com/blakestevenson/nimbus-acquire/internal/configstore"
	"go.uber.org/zap"
)

func TestMovieFilename(t *testing.T) {
	f := DefaultFormats()

	tests := []struct {
		name string
		meta MovieMetadata
		want string
	}{
		{name: "full", meta: MovieMetadata{Title: "The Movie", Year: 2024, Quality: "WEBDL-1080p"}, want: "The Movie (2024) WEBDL-1080p"},
		{name: "no year", meta: MovieMetadata{Title: "The Movie", Quality: "HDTV-720p"}, want: "The Movie HDTV-720p"},
		{name: "colon", meta: MovieMetadata{Title: "Mission: Impossible", Year: 1996}, want: "Mission- Impossible (1996)"},
		{name: "illegal chars", meta: MovieMetadata{Title: "What/If?", Year: 2020}, want: "WhatIf (2020)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.MovieFilename(tt.meta); got != tt.want {
				t.Errorf("MovieFilename() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEpisodeNames(t *testing.T) {
	f := DefaultFormats()
	meta := EpisodeMetadata{SeriesTitle: "The Show", Season: 1, Episode: 3, EpisodeTitle: "Pilot", Quality: "HDTV-720p"}

	if got, want := f.EpisodeFilename(meta), "The Show - S01E03 - Pilot HDTV-720p"; got != want {
		t.Errorf("EpisodeFilename() = %q, want %q", got, want)
	}
	if got, want := f.SeasonFolderName(meta), "Season 01"; got != want {
		t.Errorf("SeasonFolderName() = %q, want %q", got, want)
	}
	if got, want := f.SeriesFolderName(meta), "The Show"; got != want {
		t.Errorf("SeriesFolderName() = %q, want %q", got, want)
	}

	meta.EpisodeTitle = ""
	meta.Quality = ""
	if got, want := f.EpisodeFilename(meta), "The Show - S01E03"; got != want {
		t.Errorf("EpisodeFilename() without title = %q, want %q", got, want)
	}

	f.EpisodeFile = "{Series Title} {Season}x{episode:000}"
	if got, want := f.EpisodeFilename(meta), "The Show 1x003"; got != want {
		t.Errorf("EpisodeFilename() custom = %q, want %q", got, want)
	}
}

func TestRenameDisabledKeepsSourceName(t *testing.T) {
	f := DefaultFormats()
	f.RenameMovies = false
	if got := f.MovieFilename(MovieMetadata{Title: "X", Year: 2000}); got != "" {
		t.Errorf("MovieFilename() = %q, want empty", got)
	}
	f.RenameEpisodes = true
	f.EpisodeFile = ""
	if got := f.EpisodeFilename(EpisodeMetadata{SeriesTitle: "X"}); got != "" {
		t.Errorf("EpisodeFilename() = %q, want empty", got)
	}
}

func TestServiceReadsStoredFormats(t *testing.T) {
	store := configstore.NewMemory(map[string]any{
		KeyMovieFormat:      "{Movie Title}.{Release Year}",
		KeyColonReplacement: "delete",
	})
	svc := NewService(store, zap.NewNop())

	if got, want := svc.GenerateMovieFilename(context.Background(), MovieMetadata{Title: "Alien: Romulus", Year: 2024}), "Alien Romulus.2024"; got != want {
		t.Errorf("GenerateMovieFilename() = %q, want %q", got, want)
	}
}

func TestServiceFallsBackOnInvalidSettings(t *testing.T) {
	store := configstore.NewMemory(map[string]any{
		KeyMovieFormat:      "{Movie Title}",
		KeyColonReplacement: "explode",
	})
	svc := NewService(store, zap.NewNop())

	if got := svc.Formats(context.Background()); got != DefaultFormats() {
		t.Errorf("Formats() = %+v, want defaults", got)
	}
}
