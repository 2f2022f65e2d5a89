package audit

import (
	"encoding/json"
	"errors"
	"fmt"
)

// VerifyResult is the outcome of walking a log's hash chain.
type VerifyResult struct {
	Valid     bool   `json:"valid"`
	Lines     int    `json:"lines"`
	Error     string `json:"error,omitempty"`
	ErrorLine int    `json:"error_line,omitempty"`
}

// chainError marks the line at which a walk stopped.
type chainError struct {
	line int
	msg  string
}

func (e *chainError) Error() string { return e.msg }

var knownOutcomes = map[string]bool{
	OutcomeAllowed:  true,
	OutcomeDenied:   true,
	OutcomeRecorded: true,
	OutcomeError:    true,
}

// Verify checks that every entry of the log at path parses, carries a known
// outcome, and links to the hash of the line before it. An empty log is
// valid. The first broken line is reported.
func Verify(path string) VerifyResult {
	want := GenesisHash
	lines := 0
	err := eachLine(path, func(n int, line []byte) error {
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return &chainError{n, fmt.Sprintf("parse error: %v", err)}
		}
		if e.PrevHash != want {
			if n == 1 {
				return &chainError{n, fmt.Sprintf("first entry prev_hash is %q, expected genesis hash", e.PrevHash)}
			}
			return &chainError{n, fmt.Sprintf("hash mismatch: expected %s, got %s", want, e.PrevHash)}
		}
		if !knownOutcomes[e.Outcome] {
			return &chainError{n, fmt.Sprintf("unknown outcome %q", e.Outcome)}
		}
		want = HashLine(line)
		lines = n
		return nil
	})

	var ce *chainError
	switch {
	case err == nil:
		return VerifyResult{Valid: true, Lines: lines}
	case errors.As(err, &ce):
		return VerifyResult{Lines: lines, Error: ce.msg, ErrorLine: ce.line}
	default:
		return VerifyResult{Lines: lines, Error: fmt.Sprintf("read: %v", err)}
	}
}
