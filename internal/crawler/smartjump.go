package crawler

import (
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/gazette/internal/models"
	"github.com/ternarybob/gazette/internal/parsers"
)

// jumpState enumerates the smart-jump state machine.
type jumpState int

const (
	jumpNormal jumpState = iota
	jumpSuspect
	jumpReady
)

// SmartJumper leaps across long exhausted ID runs on sources whose IDs
// embed a calendar date. A consecutive-failure counter drives
// Normal -> Suspect -> Jump; any success resets to Normal. Kept as an
// explicit state machine, separate from per-request retry.
type SmartJumper struct {
	layout    parsers.IDLayout
	threshold int
	state     jumpState
	failures  int
	logger    arbor.ILogger
}

// NewSmartJumper creates the state machine. Returns nil (disabled) when
// the source is not date-encoded or the threshold is unset.
func NewSmartJumper(layout parsers.IDLayout, threshold int, logger arbor.ILogger) *SmartJumper {
	if !layout.DateEncoded || threshold <= 0 {
		return nil
	}
	return &SmartJumper{layout: layout, threshold: threshold, logger: logger}
}

// Observe feeds one fetch outcome into the counter.
func (j *SmartJumper) Observe(status models.FetchStatus) {
	switch status {
	case models.FetchSuccess:
		j.failures = 0
		j.state = jumpNormal
	case models.FetchNotFound, models.FetchBlocked:
		j.failures++
		switch {
		case j.failures >= j.threshold:
			j.state = jumpReady
		case j.failures >= j.threshold/2:
			j.state = jumpSuspect
		}
	}
}

// Failures returns the consecutive-failure count.
func (j *SmartJumper) Failures() int { return j.failures }

// Target computes the jump target from the current ID: the first ID of the
// next calendar day at the source's width. ok is false when the machine is
// not ready, the date cannot be parsed from the ID, or the target would
// leave [currentID, endID] — in those cases the sweep continues unjumped.
func (j *SmartJumper) Target(currentID, endID int64) (int64, bool) {
	if j.state != jumpReady {
		return 0, false
	}

	date, ok := parsers.DateFromEncodedID(currentID, j.layout)
	if !ok {
		j.logger.Warn().
			Int64("current_id", currentID).
			Msg("Smart jump aborted: no parseable date in ID")
		j.reset()
		return 0, false
	}

	target, ok := parsers.EncodeDateID(date.AddDate(0, 0, 1), j.layout, false)
	if !ok {
		j.reset()
		return 0, false
	}

	if target <= currentID || target > endID {
		j.logger.Warn().
			Int64("current_id", currentID).
			Int64("target", target).
			Int64("end_id", endID).
			Msg("Smart jump aborted: target outside range")
		j.reset()
		return 0, false
	}

	j.logger.Info().
		Int64("from", currentID).
		Int64("to", target).
		Str("day", date.AddDate(0, 0, 1).Format("2006-01-02")).
		Int("consecutive_failures", j.failures).
		Msg("Smart jump: advancing to next calendar day")

	j.reset()
	return target, true
}

func (j *SmartJumper) reset() {
	j.failures = 0
	j.state = jumpNormal
}

// dayOf truncates a time to its calendar day. Used by tests.
func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
