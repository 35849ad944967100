package models

import (
	"sync/atomic"
)

// FetchStatus classifies the outcome of one article fetch. Exactly one
// status is recorded per attempted article.
type FetchStatus int

const (
	FetchSuccess FetchStatus = iota
	FetchNotFound
	FetchBlocked
	FetchSkipped
	FetchFailed
)

// String returns the status name for logging.
func (s FetchStatus) String() string {
	switch s {
	case FetchSuccess:
		return "success"
	case FetchNotFound:
		return "not_found"
	case FetchBlocked:
		return "blocked"
	case FetchSkipped:
		return "skipped"
	case FetchFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// CrawlStats accumulates fetch counters across concurrent workers.
// All increments are atomic; Snapshot gives a consistent read.
type CrawlStats struct {
	total    atomic.Int64
	success  atomic.Int64
	failed   atomic.Int64
	skipped  atomic.Int64
	notFound atomic.Int64
	blocked  atomic.Int64
}

// Record counts one fetch outcome.
func (s *CrawlStats) Record(status FetchStatus) {
	s.total.Add(1)
	switch status {
	case FetchSuccess:
		s.success.Add(1)
	case FetchFailed:
		s.failed.Add(1)
	case FetchSkipped:
		s.skipped.Add(1)
	case FetchNotFound:
		s.notFound.Add(1)
	case FetchBlocked:
		s.blocked.Add(1)
	}
}

// CrawlStatsSnapshot is a point-in-time copy of the counters.
type CrawlStatsSnapshot struct {
	Total       int64   `json:"total"`
	Success     int64   `json:"success"`
	Failed      int64   `json:"failed"`
	Skipped     int64   `json:"skipped"`
	NotFound    int64   `json:"not_found"`
	Blocked     int64   `json:"blocked"`
	SuccessRate float64 `json:"success_rate"`
}

// Snapshot returns current counter values with the derived success rate.
func (s *CrawlStats) Snapshot() CrawlStatsSnapshot {
	snap := CrawlStatsSnapshot{
		Total:    s.total.Load(),
		Success:  s.success.Load(),
		Failed:   s.failed.Load(),
		Skipped:  s.skipped.Load(),
		NotFound: s.notFound.Load(),
		Blocked:  s.blocked.Load(),
	}
	if snap.Total > 0 {
		snap.SuccessRate = float64(snap.Success) / float64(snap.Total)
	}
	return snap
}

// Since returns the delta between this snapshot and an earlier one, with
// the success rate recomputed over the delta.
func (s CrawlStatsSnapshot) Since(start CrawlStatsSnapshot) CrawlStatsSnapshot {
	diff := CrawlStatsSnapshot{
		Total:    s.Total - start.Total,
		Success:  s.Success - start.Success,
		Failed:   s.Failed - start.Failed,
		Skipped:  s.Skipped - start.Skipped,
		NotFound: s.NotFound - start.NotFound,
		Blocked:  s.Blocked - start.Blocked,
	}
	if diff.Total > 0 {
		diff.SuccessRate = float64(diff.Success) / float64(diff.Total)
	}
	return diff
}

// PipelineStats accumulates counters for one TSV indexing run.
type PipelineStats struct {
	Success     int `json:"success"`
	Failed      int `json:"failed"`
	Buffered    int `json:"buffered"`
	Skipped     int `json:"skipped"`
	TotalChunks int `json:"total_chunks"`
}

// Add merges another stats record into this one.
func (p *PipelineStats) Add(other PipelineStats) {
	p.Success += other.Success
	p.Failed += other.Failed
	p.Buffered += other.Buffered
	p.Skipped += other.Skipped
	p.TotalChunks += other.TotalChunks
}
