package indexer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/blakestevenson/nimbus-acquire/internal/media"
	"github.com/blakestevenson/nimbus-acquire/internal/metrics"
)

// Store lists configured indexers
type Store interface {
	ListIndexers(ctx context.Context) ([]Indexer, error)
}

// Options tunes pacing and timeouts
type Options struct {
	GlobalInterval     time.Duration
	PerIndexerInterval time.Duration
	SearchInterval     time.Duration
	FailureBackoff     time.Duration
	Timeout            time.Duration
}

// Service aggregates searches across indexers behind layered pacing gates
type Service struct {
	store   Store
	logger  *zap.Logger
	metrics *metrics.Metrics
	opts    Options

	searchGate *Gate
	globalGate *Gate
	perIndexer *KeyedGate

	newQuerier func(Indexer) Querier

	mu        sync.Mutex
	cooldowns map[int64]time.Time
	now       func() time.Time
}

// NewService creates a new indexer service
func NewService(store Store, opts Options, m *metrics.Metrics, logger *zap.Logger) *Service {
	s := &Service{
		store:      store,
		logger:     logger.With(zap.String("component", "indexer-service")),
		metrics:    m,
		opts:       opts,
		searchGate: NewGate(opts.SearchInterval),
		globalGate: NewGate(opts.GlobalInterval),
		perIndexer: NewKeyedGate(opts.PerIndexerInterval),
		cooldowns:  make(map[int64]time.Time),
		now:        time.Now,
	}
	s.newQuerier = func(idx Indexer) Querier {
		return NewClient(idx, opts.Timeout)
	}
	return s
}

// Search runs a whole search across every indexer enabled for req.SearchType,
// in priority order. Failing indexers are logged and skipped.
func (s *Service) Search(ctx context.Context, req SearchRequest) ([]Release, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var releases []Release
	err := s.searchGate.Do(ctx, func() error {
		started := time.Now()
		defer func() { s.metrics.ObserveSearch(time.Since(started).Seconds()) }()

		var err error
		releases, err = s.search(ctx, req)
		return err
	})
	return releases, err
}

func (s *Service) search(ctx context.Context, req SearchRequest) ([]Release, error) {
	all, err := s.store.ListIndexers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexers: %w", err)
	}

	indexers := s.participants(all, req.SearchType)
	if len(indexers) == 0 {
		return nil, ErrNoIndexers
	}

	s.logger.Info("Searching indexers",
		zap.Int("indexer_count", len(indexers)),
		zap.String("title", req.Title),
		zap.Int("year", req.Year),
		zap.Int("season", req.Season),
		zap.Int("episode", req.Episode),
		zap.String("search_type", string(req.SearchType)))

	var results []Release
	seen := make(map[string]struct{})
	failures := 0

	for _, idx := range indexers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		found, err := s.searchIndexer(ctx, idx, req)
		if err != nil {
			failures++
			s.recordFailure(idx)
			s.logger.Warn("Search failed for indexer",
				zap.Int64("indexer_id", idx.ID),
				zap.String("indexer", idx.Name),
				zap.Error(err))
			continue
		}
		s.recordSuccess(idx)

		for _, r := range found {
			key := r.GUID
			if key == "" {
				key = r.DownloadURL
			}
			if key != "" {
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
			}
			results = append(results, r)
		}
	}

	if len(results) == 0 && failures == len(indexers) {
		return nil, ErrAllIndexersFailed
	}

	s.logger.Info("Search complete",
		zap.String("title", req.Title),
		zap.Int("results", len(results)),
		zap.Int("failed_indexers", failures))

	return results, nil
}

// participants filters by search type and cooldown, lowest priority value first
func (s *Service) participants(all []Indexer, searchType SearchType) []Indexer {
	now := s.now()
	var out []Indexer

	s.mu.Lock()
	for _, idx := range all {
		if !idx.EnabledFor(searchType) {
			continue
		}
		if until, ok := s.cooldowns[idx.ID]; ok && now.Before(until) {
			s.logger.Debug("Skipping indexer in backoff",
				zap.String("indexer", idx.Name),
				zap.Time("until", until))
			continue
		}
		out = append(out, idx)
	}
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority < out[j].Priority
	})
	return out
}

// searchIndexer tries each query variant, specialized mode then generic,
// and returns the first non-empty result set
func (s *Service) searchIndexer(ctx context.Context, idx Indexer, req SearchRequest) ([]Release, error) {
	querier := s.newQuerier(idx)

	for _, variant := range QueryVariants(req.Title) {
		for _, q := range s.queriesFor(variant, req) {
			releases, err := s.query(ctx, idx, querier, q)
			if err != nil {
				return nil, err
			}
			if len(releases) > 0 {
				s.logger.Debug("Indexer returned results",
					zap.String("indexer", idx.Name),
					zap.String("mode", string(q.Mode)),
					zap.String("query", q.Q),
					zap.Int("count", len(releases)))
				return releases, nil
			}
		}
	}

	return nil, nil
}

func (s *Service) queriesFor(variant string, req SearchRequest) []Query {
	switch req.MediaType {
	case media.MediaTypeEpisode:
		generic := variant
		if suffix := episodeSuffix(req.Season, req.Episode); suffix != "" {
			generic = variant + " " + suffix
		}
		return []Query{
			{Mode: ModeTVSearch, Q: variant, Season: req.Season, Episode: req.Episode},
			{Mode: ModeSearch, Q: generic},
		}
	case media.MediaTypeMovie:
		return []Query{
			{Mode: ModeMovie, Q: variant},
			{Mode: ModeSearch, Q: variant},
		}
	default:
		return []Query{{Mode: ModeSearch, Q: variant}}
	}
}

// query passes the global and per-indexer gates before firing the request
func (s *Service) query(ctx context.Context, idx Indexer, querier Querier, q Query) ([]Release, error) {
	var releases []Release

	err := s.globalGate.Do(ctx, func() error {
		return s.perIndexer.Get(idx.ID).Do(ctx, func() error {
			var err error
			releases, err = querier.Query(ctx, q)
			return err
		})
	})

	switch {
	case err == nil:
		s.metrics.IndexerRequest(idx.Name, "ok")
	case errors.Is(err, context.Canceled):
		s.metrics.IndexerRequest(idx.Name, "cancelled")
	default:
		s.metrics.IndexerRequest(idx.Name, "error")
	}

	return releases, err
}

func (s *Service) recordFailure(idx Indexer) {
	if s.opts.FailureBackoff <= 0 {
		return
	}
	s.mu.Lock()
	s.cooldowns[idx.ID] = s.now().Add(s.opts.FailureBackoff)
	s.mu.Unlock()
}

func (s *Service) recordSuccess(idx Indexer) {
	s.mu.Lock()
	delete(s.cooldowns, idx.ID)
	s.mu.Unlock()
}

// TestIndexer checks an indexer answers its caps endpoint. It is paced like a query.
func (s *Service) TestIndexer(ctx context.Context, idx Indexer) error {
	return s.globalGate.Do(ctx, func() error {
		return s.perIndexer.Get(idx.ID).Do(ctx, func() error {
			return s.newQuerier(idx).Caps(ctx)
		})
	})
}
