package downloader

import (
	"context"
	"fmt"

	"github.com/blakestevenson/nimbus-acquire/internal/indexer"
	"github.com/blakestevenson/nimbus-acquire/internal/matching"
	"github.com/blakestevenson/nimbus-acquire/internal/media"
)

// SearchResult is the outcome of a release search for a target
type SearchResult struct {
	Target   media.TargetInfo  `json:"target"`
	Releases []indexer.Release `json:"releases"`
	// Found counts releases returned by the indexers before matching and blacklisting
	Found int `json:"found"`
}

// FindReleases searches the indexers for a target and keeps the releases that match
// it and are not blacklisted for it, best first
func (s *Service) FindReleases(ctx context.Context, target media.Target, searchType indexer.SearchType) (*SearchResult, error) {
	if err := target.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	info, err := s.targets.ResolveTarget(ctx, target)
	if err != nil {
		return nil, err
	}

	releases, err := s.searcher.Search(ctx, indexer.SearchRequest{
		Title:      info.Title,
		Year:       info.Year,
		Season:     target.Season,
		Episode:    target.Episode,
		MediaType:  target.MediaType,
		SearchType: searchType,
	})
	if err != nil {
		return nil, err
	}

	candidates := s.matcher.Filter(releases, matching.Request{
		Title:     info.Title,
		MediaType: target.MediaType,
		Year:      info.Year,
		Season:    target.Season,
		Episode:   target.Episode,
	})
	candidates, err = s.blacklist.Filter(ctx, target, candidates)
	if err != nil {
		return nil, fmt.Errorf("failed to apply blacklist: %w", err)
	}
	if candidates == nil {
		candidates = []indexer.Release{}
	}

	return &SearchResult{Target: *info, Releases: candidates, Found: len(releases)}, nil
}
