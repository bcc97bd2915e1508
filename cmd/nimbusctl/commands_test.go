package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/blakestevenson/nimbus-acquire/internal/app"
)

func TestHumanSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{1536, "1.5 KiB"},
		{4 << 30, "4.0 GiB"},
	}
	for _, tt := range tests {
		if got := humanSize(tt.in); got != tt.want {
			t.Errorf("humanSize(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSearchRejectsAmbiguousTarget(t *testing.T) {
	errOpened := errors.New("opened")
	open := func(context.Context) (*app.App, error) { return nil, errOpened }

	tests := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{name: "no target", args: nil},
		{name: "both targets", args: []string{"--movie", "1", "--series", "2"}},
		{name: "movie opens the app", args: []string{"--movie", "1"}, wantErr: errOpened},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := RunSearchCommand(open)
			cmd.SetArgs(tt.args)
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})

			err := cmd.ExecuteContext(context.Background())
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && errors.Is(err, errOpened) {
				t.Errorf("app opened for invalid flags")
			}
		})
	}
}
