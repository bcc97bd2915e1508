package downloader

import (
	"math"
	"strings"

	"github.com/blakestevenson/nimbus-acquire/internal/downloadclient"
	"github.com/blakestevenson/nimbus-acquire/internal/matching"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

const (
	identityMatchRatio  = 0.6
	identityMaxRequired = 3
)

// significantWords are the words of a release title that identify it
func significantWords(title string) []string {
	return matching.ContentWords(matching.Words(title))
}

// requiredMatches is how many significant words a job name must contain
func requiredMatches(n int) int {
	required := int(math.Ceil(float64(n) * identityMatchRatio))
	if required > identityMaxRequired {
		required = identityMaxRequired
	}
	if required < 1 {
		required = 1
	}
	return required
}

// matchIdentity finds the job a Download without an external id most likely became.
// Jobs whose id is in claimed belong to other Downloads and are skipped. The job
// containing the most title words wins; ties go to the closest fuzzy match, then
// to list order.
func matchIdentity(title string, jobs []downloadclient.ExternalJob, claimed map[string]struct{}) *downloadclient.ExternalJob {
	words := significantWords(title)
	if len(words) == 0 {
		return nil
	}
	required := requiredMatches(len(words))
	normalizedTitle := matching.Normalize(title)

	var best *downloadclient.ExternalJob
	bestHits, bestRank := 0, math.MaxInt
	for i := range jobs {
		job := &jobs[i]
		if _, taken := claimed[strings.ToLower(job.ID)]; taken {
			continue
		}

		name := matching.Normalize(job.Name)
		hits := 0
		for _, w := range words {
			if strings.Contains(name, w) {
				hits++
			}
		}
		if hits < required {
			continue
		}

		rank := fuzzy.RankMatchNormalizedFold(normalizedTitle, name)
		if rank < 0 {
			rank = math.MaxInt - 1
		}
		if hits > bestHits || (hits == bestHits && rank < bestRank) {
			best, bestHits, bestRank = job, hits, rank
		}
	}
	return best
}
