package indexer

import (
	"reflect"
	"testing"
)

func TestQueryVariants(t *testing.T) {
	tests := []struct {
		title string
		want  []string
	}{
		{
			title: "The Dark Knight",
			want:  []string{"The Dark Knight", "The.Dark.Knight", "Dark Knight", "Dark.Knight"},
		},
		{
			title: "Inception",
			want:  []string{"Inception"},
		},
		{
			title: "Pacific  Rim",
			want:  []string{"Pacific Rim", "Pacific.Rim"},
		},
		{
			title: "An American Werewolf in London",
			want: []string{
				"An American Werewolf in London",
				"An.American.Werewolf.in.London",
				"American Werewolf in London",
				"American.Werewolf.in.London",
			},
		},
		{
			title: "",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			got := QueryVariants(tt.title)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("QueryVariants(%q) = %q, want %q", tt.title, got, tt.want)
			}
		})
	}
}

func TestEpisodeSuffix(t *testing.T) {
	tests := []struct {
		season, episode int
		want            string
	}{
		{1, 2, "S01E02"},
		{3, 0, "S03"},
		{0, 0, ""},
	}
	for _, tt := range tests {
		if got := episodeSuffix(tt.season, tt.episode); got != tt.want {
			t.Errorf("episodeSuffix(%d, %d) = %q, want %q", tt.season, tt.episode, got, tt.want)
		}
	}
}
