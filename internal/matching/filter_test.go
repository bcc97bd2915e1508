package matching

import (
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/blakestevenson/nimbus-acquire/internal/indexer"
	"github.com/blakestevenson/nimbus-acquire/internal/media"
)

func newTestMatcher(year int) *Matcher {
	m := NewMatcher(zap.NewNop())
	m.now = func() time.Time { return time.Date(year, 6, 1, 0, 0, 0, 0, time.UTC) }
	return m
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "The.Movie.2024", want: "the movie 2024"},
		{in: "Law & Order: SVU", want: "law and order svu"},
		{in: "Amélie", want: "amelie"},
		{in: "  He-Man   and the  Masters ", want: "he man and the masters"},
		{in: "Schindler's List", want: "schindlers list"},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestContentWords(t *testing.T) {
	got := ContentWords(Words("The Lord of the Rings"))
	want := []string{"lord", "rings"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ContentWords = %q, want %q", got, want)
	}
}

func TestCheckMovie(t *testing.T) {
	m := newTestMatcher(2026)

	tests := []struct {
		name    string
		release string
		title   string
		year    int
		cats    []int
		want    string
	}{
		{name: "exact", release: "The.Movie.2024.1080p.WEB-DL.x264-GROUP", title: "The Movie", year: 2024, want: ReasonOK},
		{name: "other movie", release: "The.Other.Movie.2024.1080p.WEB-DL.x264-GROUP", title: "The Movie", year: 2024, want: ReasonWordMismatch},
		{name: "suffix match", release: "He-Man.and.the.Masters.of.the.Universe.1987.1080p.BluRay", title: "Masters of the Universe", year: 1987, want: ReasonFirstWord},
		{name: "superset", release: "Pacific.Rim.Uprising.2018.1080p.BluRay", title: "Rising", year: 2018, want: ReasonFirstWord},
		{name: "year within one", release: "Heat.1996.1080p.BluRay", title: "Heat", year: 1995, want: ReasonOK},
		{name: "year too far", release: "Heat.1993.1080p.BluRay", title: "Heat", year: 1995, want: ReasonYear},
		{name: "old movie without year", release: "Heat.1080p.BluRay", title: "Heat", year: 1995, want: ReasonOK},
		{name: "recent movie without year", release: "Heat.1080p.BluRay", title: "Heat", year: 2026, want: ReasonMissingYear},
		{name: "tv marker", release: "The.Movie.S01E01.720p.HDTV", title: "The Movie", want: ReasonTVMarker},
		{name: "complete series", release: "The.Movie.Complete.Series.720p", title: "The Movie", want: ReasonTVMarker},
		{name: "tv category", release: "The.Movie.2024.720p", title: "The Movie", year: 2024, cats: []int{5030}, want: ReasonCategory},
		{name: "mixed category", release: "The.Movie.2024.720p", title: "The Movie", year: 2024, cats: []int{2000, 5030}, want: ReasonOK},
		{name: "number title", release: "Blade.Runner.2049.2017.2160p.UHD.BluRay", title: "Blade Runner 2049", year: 2017, want: ReasonOK},
		{name: "ampersand", release: "Fast.and.Furious.2009.1080p", title: "Fast & Furious", year: 2009, want: ReasonOK},
		{name: "leading article missing", release: "Office.Space.1999.1080p", title: "The Office Space", year: 1999, want: ReasonOK},
		{name: "trailing subtitle", release: "Dune.Part.One.2021.2160p.WEB-DL", title: "Dune", year: 2021, want: ReasonOK},
		{name: "too many trailing words", release: "Dune.The.Making.Of.Part.One.2021.1080p", title: "Dune", year: 2021, want: ReasonExtraWords},
		{name: "inserted word", release: "Star.Trek.Wars.2015.1080p", title: "Star Wars", year: 2015, want: ReasonWordMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := indexer.Release{Title: tt.release, Categories: tt.cats}
			got := m.Check(r, Request{Title: tt.title, MediaType: media.MediaTypeMovie, Year: tt.year})
			if got != tt.want {
				t.Errorf("Check(%q) = %q, want %q", tt.release, got, tt.want)
			}
		})
	}
}

func TestCheckEpisode(t *testing.T) {
	m := newTestMatcher(2026)

	tests := []struct {
		name    string
		release string
		season  int
		episode int
		cats    []int
		want    string
	}{
		{name: "exact episode", release: "The.Office.S02E03.720p.HDTV.x264-LOL", season: 2, episode: 3, want: ReasonOK},
		{name: "wrong episode", release: "The.Office.S02E04.720p.HDTV.x264-LOL", season: 2, episode: 3, want: ReasonEpisodeMarker},
		{name: "multi episode", release: "The.Office.S02E03E04.720p.HDTV", season: 2, episode: 4, want: ReasonOK},
		{name: "cross format", release: "The.Office.2x03.720p.HDTV", season: 2, episode: 3, want: ReasonOK},
		{name: "season pack for episode", release: "The.Office.S02.720p.BluRay", season: 2, episode: 3, want: ReasonEpisodeMarker},
		{name: "season pack", release: "The.Office.S02.720p.BluRay", season: 2, want: ReasonOK},
		{name: "movie category", release: "The.Office.S02E03.720p", season: 2, episode: 3, cats: []int{2040}, want: ReasonCategory},
		{name: "different show", release: "The.Late.Office.S02E03.720p", season: 2, episode: 3, want: ReasonWordMismatch},
		{name: "spin-off suffix", release: "The.Office.Party.S02E03.720p", season: 2, episode: 3, want: ReasonOK},
		{name: "long spin-off suffix", release: "The.Office.Christmas.Party.Special.S02E03.720p", season: 2, episode: 3, want: ReasonExtraWords},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := indexer.Release{Title: tt.release, Categories: tt.cats}
			got := m.Check(r, Request{Title: "The Office", MediaType: media.MediaTypeEpisode, Season: tt.season, Episode: tt.episode})
			if got != tt.want {
				t.Errorf("Check(%q) = %q, want %q", tt.release, got, tt.want)
			}
		})
	}
}

func TestFirstContentWordPositionThreeAlwaysRejected(t *testing.T) {
	m := newTestMatcher(2026)

	// every content word is present but the first sits at index 3
	releases := []string{
		"One.Two.Three.Star.Wars.2015.1080p",
		"A.B.C.Star.Wars.2015.1080p",
		"Big.Bad.Old.Star.Wars.Star.Wars.2015.1080p",
	}
	for _, name := range releases {
		got := m.Check(indexer.Release{Title: name}, Request{Title: "Star Wars", MediaType: media.MediaTypeMovie, Year: 2015})
		if got != ReasonFirstWord {
			t.Errorf("Check(%q) = %q, want %q", name, got, ReasonFirstWord)
		}
	}
}

func TestFilterOrdersBySeedersStable(t *testing.T) {
	m := newTestMatcher(2026)

	releases := []indexer.Release{
		{GUID: "a", Title: "The.Movie.2024.720p.WEB-DL", Seeders: 10},
		{GUID: "b", Title: "The.Other.Movie.2024.1080p", Seeders: 500},
		{GUID: "c", Title: "The.Movie.2024.1080p.BluRay", Seeders: 50},
		{GUID: "d", Title: "The.Movie.2024.2160p.WEB-DL", Seeders: 10},
		{GUID: "e", Title: "The.Movie.2024.1080p.WEB-DL", Seeders: 50},
	}
	req := Request{Title: "The Movie", MediaType: media.MediaTypeMovie, Year: 2024}

	first := m.Filter(releases, req)
	var got []string
	for _, r := range first {
		got = append(got, r.GUID)
	}
	want := []string{"c", "e", "a", "d"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Filter order = %v, want %v", got, want)
	}

	for i := 0; i < 20; i++ {
		again := m.Filter(releases, req)
		if !reflect.DeepEqual(again, first) {
			t.Fatalf("Filter is not deterministic on run %d", i)
		}
	}
}
