package downloadclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/javi11/nzbparser"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const maxSABResponseBytes = 4 << 20

// historyLimit bounds how many finished jobs are read per listing
const historyLimit = 200

// SABnzbd adapts a SABnzbd instance to the Client surface
type SABnzbd struct {
	cfg     ClientConfig
	http    *http.Client
	fetcher *http.Client
	logger  *zap.Logger
}

// NewSABnzbd creates a SABnzbd adapter. The api key rides on every request.
func NewSABnzbd(cfg ClientConfig, timeout time.Duration, logger *zap.Logger) *SABnzbd {
	return &SABnzbd{
		cfg:     cfg,
		http:    &http.Client{Timeout: timeout},
		fetcher: newFetchClient(timeout),
		logger: logger.With(
			zap.String("component", "sabnzbd"),
			zap.Int64("client_id", cfg.ID)),
	}
}

// flexFloat decodes numbers SABnzbd sends either as JSON numbers or as strings
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %q: %w", s, err)
	}
	*f = flexFloat(v)
	return nil
}

type sabStatus struct {
	Status *bool    `json:"status"`
	Error  string   `json:"error"`
	NzoIDs []string `json:"nzo_ids"`
}

type sabQueue struct {
	Queue struct {
		Slots []sabQueueSlot `json:"slots"`
	} `json:"queue"`
}

type sabQueueSlot struct {
	NzoID    string    `json:"nzo_id"`
	Filename string    `json:"filename"`
	Status   string    `json:"status"`
	Category string    `json:"cat"`
	MB       flexFloat `json:"mb"`
	MBLeft   flexFloat `json:"mbleft"`
}

type sabHistory struct {
	History struct {
		Slots []sabHistorySlot `json:"slots"`
	} `json:"history"`
}

type sabHistorySlot struct {
	NzoID       string    `json:"nzo_id"`
	Name        string    `json:"name"`
	Status      string    `json:"status"`
	Category    string    `json:"category"`
	Storage     string    `json:"storage"`
	Bytes       flexFloat `json:"bytes"`
	FailMessage string    `json:"fail_message"`
}

func (s *SABnzbd) apiURL(params url.Values) string {
	params.Set("apikey", s.cfg.APIKey)
	params.Set("output", "json")
	return s.cfg.BaseURL() + "/api?" + params.Encode()
}

func (s *SABnzbd) call(ctx context.Context, req *http.Request, out any) error {
	resp, err := s.http.Do(req.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("sabnzbd request failed: %w", redactKey(err, s.cfg.APIKey))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSABResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read sabnzbd response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: sabnzbd returned %d", ErrAuth, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("sabnzbd returned status %d", resp.StatusCode)
	}

	// SABnzbd reports api key problems as a 200 with an error field
	var status sabStatus
	if err := json.Unmarshal(body, &status); err == nil && status.Error != "" {
		if strings.Contains(strings.ToLower(status.Error), "api key") {
			return fmt.Errorf("%w: %s", ErrAuth, status.Error)
		}
		return fmt.Errorf("sabnzbd error: %s", status.Error)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode sabnzbd response: %w", err)
	}
	return nil
}

func (s *SABnzbd) get(ctx context.Context, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiURL(params), nil)
	if err != nil {
		return fmt.Errorf("failed to build sabnzbd request: %w", err)
	}
	return s.call(ctx, req, out)
}

// Add validates and uploads the NZB itself when it can be fetched, otherwise
// asks SABnzbd to fetch the link.
func (s *SABnzbd) Add(ctx context.Context, req AddRequest) (*AddResult, error) {
	fetched, err := fetchPayload(ctx, s.fetcher, req.URL)
	if err == nil && len(fetched.Body) > 0 {
		verr := validateNZB(fetched.Body)
		if verr == nil {
			return s.addFile(ctx, req, fetched.Body)
		}
		s.logger.Debug("fetched payload is not a usable nzb, passing link to sabnzbd",
			zap.String("title", req.Title),
			zap.Error(verr))
	}
	if err != nil {
		s.logger.Warn("failed to fetch nzb, passing link to sabnzbd",
			zap.String("title", req.Title),
			zap.Error(err))
	}
	return s.addURL(ctx, req)
}

func validateNZB(data []byte) error {
	nzb, err := nzbparser.Parse(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("invalid nzb: %w", err)
	}
	if len(nzb.Files) == 0 {
		return errors.New("nzb lists no files")
	}
	return nil
}

func (s *SABnzbd) addFile(ctx context.Context, req AddRequest, nzb []byte) (*AddResult, error) {
	params := url.Values{"mode": {"addfile"}}
	if req.Category != "" {
		params.Set("cat", req.Category)
	}
	if req.Title != "" {
		params.Set("nzbname", req.Title)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("name", nzbFilename(req.Title))
	if err != nil {
		return nil, fmt.Errorf("failed to build nzb upload: %w", err)
	}
	if _, err := part.Write(nzb); err != nil {
		return nil, fmt.Errorf("failed to build nzb upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to build nzb upload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL(params), &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to build sabnzbd request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	var status sabStatus
	if err := s.call(ctx, httpReq, &status); err != nil {
		return nil, fmt.Errorf("failed to upload nzb: %w", err)
	}
	return s.addResult(req, status)
}

func (s *SABnzbd) addURL(ctx context.Context, req AddRequest) (*AddResult, error) {
	params := url.Values{"mode": {"addurl"}, "name": {req.URL}}
	if req.Category != "" {
		params.Set("cat", req.Category)
	}
	if req.Title != "" {
		params.Set("nzbname", req.Title)
	}

	var status sabStatus
	if err := s.get(ctx, params, &status); err != nil {
		return nil, fmt.Errorf("failed to add nzb url: %w", err)
	}
	return s.addResult(req, status)
}

func (s *SABnzbd) addResult(req AddRequest, status sabStatus) (*AddResult, error) {
	if status.Status != nil && !*status.Status {
		return nil, ErrAddRejected
	}
	result := &AddResult{Success: true}
	if len(status.NzoIDs) > 0 {
		result.ExternalID = status.NzoIDs[0]
	}
	s.logger.Info("nzb added",
		zap.String("title", req.Title),
		zap.String("nzo_id", result.ExternalID),
		zap.String("category", req.Category))
	return result, nil
}

func nzbFilename(title string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, strings.TrimSpace(title))
	if name == "" {
		name = "release"
	}
	return name + ".nzb"
}

// ListJobs merges the live queue with recent history, queue entries first
func (s *SABnzbd) ListJobs(ctx context.Context, category string) ([]ExternalJob, error) {
	var queue sabQueue
	var history sabHistory

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		params := url.Values{"mode": {"queue"}}
		if category != "" {
			params.Set("cat", category)
		}
		return s.get(gctx, params, &queue)
	})
	g.Go(func() error {
		params := url.Values{"mode": {"history"}, "limit": {strconv.Itoa(historyLimit)}}
		if category != "" {
			params.Set("category", category)
		}
		return s.get(gctx, params, &history)
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to list sabnzbd jobs: %w", err)
	}

	seen := make(map[string]struct{})
	jobs := make([]ExternalJob, 0, len(queue.Queue.Slots)+len(history.History.Slots))
	for _, slot := range queue.Queue.Slots {
		if category != "" && !strings.EqualFold(slot.Category, category) {
			continue
		}
		seen[slot.NzoID] = struct{}{}
		jobs = append(jobs, s.queueJob(slot))
	}
	for _, slot := range history.History.Slots {
		if category != "" && !strings.EqualFold(slot.Category, category) {
			continue
		}
		if _, ok := seen[slot.NzoID]; ok {
			continue
		}
		jobs = append(jobs, s.historyJob(slot))
	}
	return jobs, nil
}

func (s *SABnzbd) queueJob(slot sabQueueSlot) ExternalJob {
	return ExternalJob{
		ID:         slot.NzoID,
		Name:       slot.Filename,
		Progress:   queueProgress(float64(slot.MB), float64(slot.MBLeft)),
		State:      queueJobState(slot.Status),
		RawState:   slot.Status,
		Category:   slot.Category,
		Size:       int64(float64(slot.MB) * 1024 * 1024),
		ClientID:   s.cfg.ID,
		ClientType: TypeSABnzbd,
	}
}

func (s *SABnzbd) historyJob(slot sabHistorySlot) ExternalJob {
	state := historyJobState(slot.Status)
	job := ExternalJob{
		ID:          slot.NzoID,
		Name:        slot.Name,
		Progress:    100,
		State:       state,
		RawState:    slot.Status,
		ContentPath: slot.Storage,
		Category:    slot.Category,
		Size:        int64(slot.Bytes),
		Error:       slot.FailMessage,
		ClientID:    s.cfg.ID,
		ClientType:  TypeSABnzbd,
	}
	if slot.Storage != "" {
		job.SavePath = filepath.Dir(slot.Storage)
	}
	if state == JobStateFailed {
		job.Progress = 0
	}
	return job
}

// queueProgress derives a 0-100 percentage from total and remaining megabytes
func queueProgress(mb, mbLeft float64) float64 {
	if mb <= 0 {
		return 0
	}
	done := (mb - mbLeft) / mb * 100
	return math.Max(0, math.Min(100, math.Round(done*100)/100))
}

func queueJobState(status string) JobState {
	switch strings.ToLower(status) {
	case "downloading", "fetching", "grabbing", "propagating":
		return JobStateDownloading
	case "queued":
		return JobStateQueued
	case "paused":
		return JobStatePaused
	case "failed":
		return JobStateFailed
	default:
		return JobStateUnknown
	}
}

func historyJobState(status string) JobState {
	switch strings.ToLower(status) {
	case "completed":
		return JobStateCompleted
	case "failed":
		return JobStateFailed
	case "queued", "extracting", "verifying", "repairing", "moving", "running", "quickcheck", "fetching":
		return JobStatePostProcessing
	default:
		return JobStateUnknown
	}
}

// Remove deletes a job from both the queue and history
func (s *SABnzbd) Remove(ctx context.Context, externalID string, deleteFiles bool) (bool, error) {
	if externalID == "" {
		return false, nil
	}

	delFiles := "0"
	if deleteFiles {
		delFiles = "1"
	}

	removed := false
	var errs []error
	for _, mode := range []string{"queue", "history"} {
		params := url.Values{
			"mode":      {mode},
			"name":      {"delete"},
			"value":     {externalID},
			"del_files": {delFiles},
		}
		var status sabStatus
		if err := s.get(ctx, params, &status); err != nil {
			errs = append(errs, err)
			continue
		}
		if status.Status != nil && *status.Status {
			removed = true
		}
	}

	if !removed && len(errs) > 0 {
		return false, fmt.Errorf("failed to remove sabnzbd job %s: %w", externalID, errors.Join(errs...))
	}
	if removed {
		s.logger.Info("sabnzbd job removed", zap.String("nzo_id", externalID), zap.Bool("delete_files", deleteFiles))
	}
	return removed, nil
}

// Test checks connectivity and api key validity
func (s *SABnzbd) Test(ctx context.Context) (*TestResult, error) {
	var version struct {
		Version string `json:"version"`
	}
	if err := s.get(ctx, url.Values{"mode": {"version"}}, &version); err != nil {
		return &TestResult{Success: false, Message: err.Error()}, nil
	}

	// the version call does not require a key, so make an authenticated one too
	var queue sabQueue
	if err := s.get(ctx, url.Values{"mode": {"queue"}, "limit": {"1"}}, &queue); err != nil {
		return &TestResult{Success: false, Version: version.Version, Message: err.Error()}, nil
	}

	v, err := semver.NewVersion(version.Version)
	if err != nil {
		return &TestResult{Success: true, Version: version.Version}, nil
	}
	return &TestResult{Success: true, Version: v.String()}, nil
}

func redactKey(err error, key string) error {
	if key == "" {
		return err
	}
	msg := err.Error()
	if !strings.Contains(msg, key) {
		return err
	}
	return errors.New(strings.ReplaceAll(msg, key, "REDACTED"))
}
