package audit

import (
	"encoding/json"
	"fmt"
	"time"
)

// ReplayFilter holds filtering criteria for an incident timeline.
type ReplayFilter struct {
	Incident string
	Service  string    // empty = any service
	From     time.Time // zero value = no lower bound
	To       time.Time // zero value = no upper bound
}

// ReplaySummary holds outcome counts for a replayed incident.
type ReplaySummary struct {
	Total          int    `json:"total"`
	AllowedCount   int    `json:"allowed_count"`
	DeniedCount    int    `json:"denied_count"`
	RecordedCount  int    `json:"recorded_count"`
	ErrorCount     int    `json:"error_count"`
	WarningCount   int    `json:"warning_count"`
	FirstTimestamp string `json:"first_timestamp"`
	LastTimestamp  string `json:"last_timestamp"`
}

// ReplayResult holds filtered entries and summary for an incident.
type ReplayResult struct {
	Incident string        `json:"incident"`
	Entries  []Entry       `json:"entries"`
	Summary  ReplaySummary `json:"summary"`
}

// Replay returns the entries of one incident that pass filter, in log
// order, with outcome counts. Lines that do not parse are skipped.
func Replay(path string, filter ReplayFilter) (*ReplayResult, error) {
	result := &ReplayResult{Incident: filter.Incident}
	err := eachLine(path, func(_ int, line []byte) error {
		var entry Entry
		if json.Unmarshal(line, &entry) != nil || !filter.match(entry) {
			return nil
		}
		result.Entries = append(result.Entries, entry)
		updateSummary(&result.Summary, entry)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}
	return result, nil
}

func (f ReplayFilter) match(e Entry) bool {
	if e.Subject.Incident != f.Incident {
		return false
	}
	if f.Service != "" && e.Subject.Service != f.Service {
		return false
	}
	if f.From.IsZero() && f.To.IsZero() {
		return true
	}
	ts, err := time.Parse(TimestampFormat, e.Timestamp)
	if err != nil {
		return false
	}
	return (f.From.IsZero() || !ts.Before(f.From)) && (f.To.IsZero() || !ts.After(f.To))
}

func updateSummary(s *ReplaySummary, entry Entry) {
	s.Total++

	switch entry.Outcome {
	case OutcomeAllowed:
		s.AllowedCount++
	case OutcomeDenied:
		s.DeniedCount++
	case OutcomeRecorded:
		s.RecordedCount++
	case OutcomeError:
		s.ErrorCount++
	}
	s.WarningCount += len(entry.Warnings)

	if s.FirstTimestamp == "" {
		s.FirstTimestamp = entry.Timestamp
	}
	s.LastTimestamp = entry.Timestamp
}

// Tail returns the last n lines of the log.
func Tail(path string, n int) ([]string, error) {
	var lines []string
	err := eachLine(path, func(_ int, line []byte) error {
		lines = append(lines, string(line))
		if len(lines) > n {
			lines = lines[1:]
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}
	return lines, nil
}
