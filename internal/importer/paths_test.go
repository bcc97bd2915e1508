package importer

import (
	"errors"
	"strconv"
	"strings"
	"testing"
)

func TestResolvePathUsesFirstExisting(t *testing.T) {
	candidates := []string{
		"/downloads/incomplete/Movie.2024",
		"/data/complete/Movie.2024",
		"/mnt/downloads/Movie.2024",
	}
	exists := func(p string) bool { return p == candidates[1] }

	got, err := ResolvePath(candidates, exists)
	if err != nil {
		t.Fatalf("ResolvePath() error = %v", err)
	}
	if got != candidates[1] {
		t.Errorf("ResolvePath() = %q, want %q", got, candidates[1])
	}
}

func TestResolvePathErrorQuotesEveryCandidate(t *testing.T) {
	candidates := []string{
		"/downloads/incomplete/Movie.2024",
		"/data/complete/Movie.2024",
		"/mnt/downloads/Movie.2024",
	}

	_, err := ResolvePath(candidates, func(string) bool { return false })
	if err == nil {
		t.Fatal("ResolvePath() expected error")
	}

	var pathErr *PathResolutionError
	if !errors.As(err, &pathErr) {
		t.Fatalf("ResolvePath() error = %T, want *PathResolutionError", err)
	}
	if len(pathErr.Tried) != 3 {
		t.Errorf("Tried = %v, want 3 entries", pathErr.Tried)
	}
	for _, c := range candidates {
		if !strings.Contains(err.Error(), strconv.Quote(c)) {
			t.Errorf("error %q does not quote %q", err.Error(), c)
		}
	}
}

func TestCandidatesOrder(t *testing.T) {
	job := PathJob{
		ContentPath: "/downloads/incomplete/Movie.2024.1080p-GRP",
		SavePath:    "/downloads/incomplete",
		Name:        "Movie.2024.1080p-GRP",
		Category:    "movies",
	}
	cfg := &ImportConfig{PathOverride: "/mnt/dl"}

	got := Candidates(job, cfg)

	want := []string{
		"/downloads/incomplete/Movie.2024.1080p-GRP",
		"/downloads/complete/Movie.2024.1080p-GRP",
		"/downloads/completed/Movie.2024.1080p-GRP",
		"/downloads/movies/Movie.2024.1080p-GRP",
		"/downloads/complete/movies/Movie.2024.1080p-GRP",
		"/downloads/incomplete/movies/Movie.2024.1080p-GRP",
		"/downloads/incomplete/MOVIES/Movie.2024.1080p-GRP",
		"/downloads/incomplete/Movies/Movie.2024.1080p-GRP",
		"/mnt/dl/Movie.2024.1080p-GRP",
		"/mnt/dl/movies/Movie.2024.1080p-GRP",
	}
	if len(got) != len(want) {
		t.Fatalf("Candidates() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Candidates()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCandidatesWithoutContentPath(t *testing.T) {
	job := PathJob{SavePath: "/downloads/tv", Name: "Show.S01E02", Category: "tv"}

	got := Candidates(job, nil)
	if len(got) == 0 || got[0] != "/downloads/tv/Show.S01E02" {
		t.Fatalf("Candidates()[0] = %v, want save path joined with name", got)
	}
	for _, p := range got[1:] {
		if p == got[0] {
			t.Errorf("Candidates() repeats %q", p)
		}
	}
}
