package matching

import (
	"regexp"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/blakestevenson/nimbus-acquire/internal/indexer"
	"github.com/blakestevenson/nimbus-acquire/internal/media"
)

const (
	firstWordWindow = 3
	minMatchRatio   = 0.8
	yearTolerance   = 1
)

// Reject reasons
const (
	ReasonOK            = ""
	ReasonEmptyTitle    = "empty title"
	ReasonFirstWord     = "first content word missing from title start"
	ReasonWordMismatch  = "content-word mismatch"
	ReasonExtraWords    = "too many extra words"
	ReasonTVMarker      = "tv release for movie search"
	ReasonCategory      = "category mismatch"
	ReasonYear          = "year out of range"
	ReasonMissingYear   = "missing year for recent movie"
	ReasonEpisodeMarker = "season or episode mismatch"
)

var (
	yearToken     = regexp.MustCompile(`^(19|20)\d{2}$`)
	episodeToken  = regexp.MustCompile(`^s\d{1,2}(e\d{1,3})*$|^\d{1,2}x\d{2,3}$|^e\d{1,3}$`)
	episodeMarker = regexp.MustCompile(`(?i)\bs(\d{1,2})[ ._-]?e(\d{1,3})(?:-?e(\d{1,3}))?\b`)
	crossMarker   = regexp.MustCompile(`(?i)\b(\d{1,2})x(\d{2,3})\b`)
	seasonMarker  = regexp.MustCompile(`(?i)\bs(\d{1,2})\b|\bseason[ ._-]?(\d{1,2})\b`)
	tvMarker      = regexp.MustCompile(`(?i)\bs\d{1,2}[ ._-]?e\d{1,3}\b|\bs\d{2}\b|\b\d{1,2}x\d{2,3}\b|\bseason[ ._-]?\d+\b|\bcomplete[ ._-]series\b`)
)

// stopWords end the title portion of a release name
var stopWords = map[string]struct{}{
	"480p": {}, "576p": {}, "720p": {}, "1080p": {}, "1080i": {}, "2160p": {}, "4k": {}, "uhd": {},
	"bluray": {}, "blu": {}, "bdrip": {}, "brrip": {}, "remux": {}, "web": {}, "webdl": {}, "webrip": {},
	"hdtv": {}, "sdtv": {}, "pdtv": {}, "dvdrip": {}, "dvd": {}, "dvdscr": {}, "hdcam": {}, "cam": {},
	"camrip": {}, "telesync": {}, "hdts": {}, "telecine": {}, "workprint": {}, "r5": {},
	"x264": {}, "x265": {}, "h264": {}, "h265": {}, "hevc": {}, "avc": {}, "xvid": {}, "divx": {}, "av1": {},
	"aac": {}, "ac3": {}, "dts": {}, "ddp": {}, "dd5": {}, "ddp5": {}, "eac3": {}, "truehd": {}, "atmos": {},
	"flac": {}, "mp3": {}, "hdr": {}, "hdr10": {}, "dv": {},
	"extended": {}, "unrated": {}, "directors": {}, "theatrical": {}, "remastered": {}, "imax": {},
	"uncut": {}, "limited": {}, "internal": {}, "proper": {}, "repack": {}, "multi": {}, "dubbed": {},
	"subbed": {}, "hybrid": {}, "season": {}, "complete": {},
}

// Request describes the wanted item
type Request struct {
	Title     string
	MediaType media.MediaType
	Year      int
	Season    int
	Episode   int
}

// Matcher decides which releases plausibly are the wanted item
type Matcher struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewMatcher creates a matcher
func NewMatcher(logger *zap.Logger) *Matcher {
	return &Matcher{
		logger: logger.With(zap.String("component", "matcher")),
		now:    time.Now,
	}
}

// Filter keeps the plausible releases, ordered by seeders descending.
// Ties keep input order.
func (m *Matcher) Filter(releases []indexer.Release, req Request) []indexer.Release {
	var kept []indexer.Release
	for _, r := range releases {
		if reason := m.Check(r, req); reason != ReasonOK {
			m.logger.Debug("Rejected release",
				zap.String("release", r.Title),
				zap.String("reason", reason))
			continue
		}
		kept = append(kept, r)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Seeders > kept[j].Seeders
	})
	return kept
}

// Check returns ReasonOK when the release matches, otherwise the rejection reason
func (m *Matcher) Check(r indexer.Release, req Request) string {
	searchWords := Words(req.Title)
	if len(searchWords) == 0 || r.Title == "" {
		return ReasonEmptyTitle
	}

	releaseWords := Words(r.Title)
	titleWords, rest := extractTitle(releaseWords, searchWords)

	if reason := checkTitle(titleWords, searchWords); reason != ReasonOK {
		return reason
	}

	switch req.MediaType {
	case media.MediaTypeMovie:
		if tvMarker.MatchString(r.Title) {
			return ReasonTVMarker
		}
		if onlyCategories(r.Categories, 5000, 5999) {
			return ReasonCategory
		}
	case media.MediaTypeEpisode:
		if onlyCategories(r.Categories, 2000, 2999) {
			return ReasonCategory
		}
		if req.Season > 0 && !matchesEpisode(r.Title, req.Season, req.Episode) {
			return ReasonEpisodeMarker
		}
	}

	if req.Year > 0 {
		year := findYear(rest)
		if year == 0 {
			if req.MediaType == media.MediaTypeMovie && req.Year >= m.now().Year() {
				return ReasonMissingYear
			}
		} else if abs(year-req.Year) > yearTolerance {
			return ReasonYear
		}
	}

	return ReasonOK
}

// extractTitle splits release words at the first year, quality or episode token.
// Year-like words that are part of the wanted title do not end the title.
func extractTitle(releaseWords, searchWords []string) (title, rest []string) {
	inSearch := make(map[string]struct{}, len(searchWords))
	for _, w := range searchWords {
		inSearch[w] = struct{}{}
	}

	for i, w := range releaseWords {
		if _, ok := stopWords[w]; ok {
			return releaseWords[:i], releaseWords[i:]
		}
		if episodeToken.MatchString(w) {
			return releaseWords[:i], releaseWords[i:]
		}
		if yearToken.MatchString(w) {
			if _, ok := inSearch[w]; ok && i < len(searchWords) {
				continue
			}
			if i == 0 {
				continue
			}
			return releaseWords[:i], releaseWords[i:]
		}
	}
	return releaseWords, nil
}

func checkTitle(titleWords, searchWords []string) string {
	content := ContentWords(searchWords)

	first := -1
	for i, w := range titleWords {
		if w == content[0] {
			first = i
			break
		}
	}
	if first < 0 || first >= firstWordWindow {
		return ReasonFirstWord
	}

	wanted := make(map[string]struct{}, len(searchWords))
	for _, w := range searchWords {
		wanted[w] = struct{}{}
	}
	required := make(map[string]struct{}, len(content))
	for _, w := range content {
		required[w] = struct{}{}
	}
	present := make(map[string]struct{}, len(titleWords))
	last := first
	for i, w := range titleWords {
		present[w] = struct{}{}
		if _, ok := required[w]; ok {
			last = i
		}
	}

	matched := 0
	for _, w := range content {
		if _, ok := present[w]; ok {
			matched++
		}
	}

	// Unwanted words inside the matched span change the title and count
	// against the ratio. Trailing ones only count toward the extra-word cap.
	var inserted, extra int
	for i, w := range titleWords {
		if IsArticle(w) {
			continue
		}
		if _, ok := wanted[w]; ok {
			continue
		}
		extra++
		if i < last {
			inserted++
		}
	}

	if float64(matched)/float64(len(content)+inserted) < minMatchRatio {
		return ReasonWordMismatch
	}
	if extra > max(2, len(content)) {
		return ReasonExtraWords
	}
	return ReasonOK
}

// matchesEpisode checks the release carries the wanted episode, or is a pack of
// the wanted season when no episode is requested
func matchesEpisode(title string, season, episode int) bool {
	if m := episodeMarker.FindStringSubmatch(title); m != nil {
		s, _ := strconv.Atoi(m[1])
		from, _ := strconv.Atoi(m[2])
		to := from
		if m[3] != "" {
			to, _ = strconv.Atoi(m[3])
		}
		if s != season || episode == 0 {
			return false
		}
		return episode >= from && episode <= to
	}

	if m := crossMarker.FindStringSubmatch(title); m != nil {
		s, _ := strconv.Atoi(m[1])
		e, _ := strconv.Atoi(m[2])
		return episode > 0 && s == season && e == episode
	}

	if m := seasonMarker.FindStringSubmatch(title); m != nil {
		n := m[1]
		if n == "" {
			n = m[2]
		}
		s, _ := strconv.Atoi(n)
		return s == season && episode == 0
	}

	return false
}

func findYear(words []string) int {
	for _, w := range words {
		if yearToken.MatchString(w) {
			y, _ := strconv.Atoi(w)
			return y
		}
	}
	return 0
}

// onlyCategories reports whether categories is non-empty and entirely within [lo, hi]
func onlyCategories(categories []int, lo, hi int) bool {
	if len(categories) == 0 {
		return false
	}
	for _, c := range categories {
		if c < lo || c > hi {
			return false
		}
	}
	return true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
