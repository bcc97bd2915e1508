package importer

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// PathJob is what a download client reported about a finished job
type PathJob struct {
	ContentPath string
	SavePath    string
	Name        string
	Category    string
}

// PathResolutionError lists every path tried when none exists
type PathResolutionError struct {
	Tried []string
}

func (e *PathResolutionError) Error() string {
	quoted := make([]string, len(e.Tried))
	for i, p := range e.Tried {
		quoted[i] = strconv.Quote(p)
	}
	return fmt.Sprintf("no accessible path for download, tried: %s", strings.Join(quoted, ", "))
}

// candidateGenerator proposes paths where a job's content may be visible to this process
type candidateGenerator func(job PathJob, cfg *ImportConfig) []string

// candidateGenerators run in order; earlier proposals win
var candidateGenerators = []candidateGenerator{
	reportedPath,
	completedPath,
	categoryPath,
	overridePath,
}

// Candidates builds the ordered, de-duplicated list of paths to test
func Candidates(job PathJob, cfg *ImportConfig) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, gen := range candidateGenerators {
		for _, p := range gen(job, cfg) {
			if p == "" {
				continue
			}
			p = filepath.Clean(p)
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

// ResolvePath returns the first candidate that exists
func ResolvePath(candidates []string, exists func(string) bool) (string, error) {
	for _, p := range candidates {
		if exists(p) {
			return p, nil
		}
	}
	return "", &PathResolutionError{Tried: candidates}
}

func reported(job PathJob) string {
	if job.ContentPath != "" {
		return job.ContentPath
	}
	if job.SavePath != "" && job.Name != "" {
		return filepath.Join(job.SavePath, job.Name)
	}
	return ""
}

// reportedPath is the path exactly as the client reported it
func reportedPath(job PathJob, _ *ImportConfig) []string {
	return []string{reported(job)}
}

var incompleteSegments = map[string]struct{}{
	"incomplete":  {},
	"temp":        {},
	"tmp":         {},
	"downloading": {},
}

// completedPath swaps a temp or incomplete directory for its completed counterpart
func completedPath(job PathJob, _ *ImportConfig) []string {
	p := reported(job)
	if p == "" {
		return nil
	}

	parts := strings.Split(filepath.ToSlash(p), "/")
	var out []string
	for i, part := range parts {
		if _, ok := incompleteSegments[strings.ToLower(part)]; !ok {
			continue
		}
		replacements := []string{"complete", "completed"}
		if job.Category != "" {
			replacements = append(replacements, job.Category, "complete/"+job.Category)
		}
		for _, r := range replacements {
			swapped := append(append(append([]string{}, parts[:i]...), r), parts[i+1:]...)
			out = append(out, filepath.FromSlash(strings.Join(swapped, "/")))
		}
	}
	return out
}

// categoryPath tries the category folder under the save path with common spellings
func categoryPath(job PathJob, _ *ImportConfig) []string {
	if job.Category == "" || job.Name == "" {
		return nil
	}
	base := job.SavePath
	if base == "" {
		if p := reported(job); p != "" {
			base = filepath.Dir(p)
		}
	}
	if base == "" {
		return nil
	}

	// the client may already report the category folder as save path
	if strings.EqualFold(filepath.Base(base), job.Category) {
		base = filepath.Dir(base)
	}

	var out []string
	for _, variant := range categoryVariants(job.Category) {
		out = append(out, filepath.Join(base, variant, job.Name))
	}
	return out
}

func categoryVariants(category string) []string {
	lower := strings.ToLower(category)
	variants := []string{category, lower, strings.ToUpper(lower)}
	if lower != "" {
		variants = append(variants, strings.ToUpper(lower[:1])+lower[1:])
	}
	return variants
}

// overridePath maps the job into the configured download root
func overridePath(job PathJob, cfg *ImportConfig) []string {
	if cfg == nil || cfg.PathOverride == "" || job.Name == "" {
		return nil
	}
	out := []string{filepath.Join(cfg.PathOverride, job.Name)}
	if job.Category != "" {
		out = append(out, filepath.Join(cfg.PathOverride, job.Category, job.Name))
	}
	return out
}
