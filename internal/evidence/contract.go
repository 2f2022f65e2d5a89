package evidence

import (
	"io"
	"log/slog"
	"sort"
)

// Completeness grades how much of an incident the evidence covers.
const (
	CompletenessComplete  = "COMPLETE"
	CompletenessPartial   = "PARTIAL"
	CompletenessLowSignal = "LOW_SIGNAL"
)

// Signal is a group of events sharing type, severity and component.
// LastSeen is set only when Count > 1.
type Signal struct {
	Event     string   `json:"event"`
	Severity  Severity `json:"severity"`
	Component string   `json:"component"`
	Count     int      `json:"count"`
	FirstSeen string   `json:"first_seen"`
	LastSeen  string   `json:"last_seen,omitempty"`
}

// Quality summarizes gaps in the evidence and the confidence they cost.
type Quality struct {
	Completeness      string   `json:"completeness"`
	ConfidencePenalty int      `json:"confidence_penalty"`
	Notes             []string `json:"notes"`
}

// Contract is the adapter output written to stdout.
type Contract struct {
	Source  string   `json:"source"`
	Quality Quality  `json:"quality"`
	Signals []Signal `json:"signals"`
}

type signalKey struct {
	event     string
	severity  Severity
	component string
}

// Aggregate groups events into signals ordered by first occurrence.
func Aggregate(events []Event) []Signal {
	index := make(map[signalKey]int)
	var signals []Signal
	for _, e := range events {
		k := signalKey{e.EventType, e.Severity, e.Component}
		i, ok := index[k]
		if !ok {
			index[k] = len(signals)
			signals = append(signals, Signal{
				Event:     e.EventType,
				Severity:  e.Severity,
				Component: e.Component,
				FirstSeen: e.Timestamp,
				LastSeen:  e.Timestamp,
			})
			i = len(signals) - 1
		}
		s := &signals[i]
		s.Count++
		if e.Timestamp < s.FirstSeen {
			s.FirstSeen = e.Timestamp
		}
		if e.Timestamp > s.LastSeen {
			s.LastSeen = e.Timestamp
		}
	}
	for i := range signals {
		if signals[i].Count == 1 {
			signals[i].LastSeen = ""
		}
	}
	sort.SliceStable(signals, func(i, j int) bool {
		return signals[i].FirstSeen < signals[j].FirstSeen
	})
	return signals
}

// Assess grades signal completeness. Missing lifecycle events make the
// evidence PARTIAL; no WARN or ERROR at all makes it LOW_SIGNAL.
func Assess(signals []Signal) Quality {
	var hasErrors, hasWarnings, hasStartup, hasShutdown, hasCrash bool
	for _, s := range signals {
		switch s.Severity {
		case SeverityError:
			hasErrors = true
		case SeverityWarn:
			hasWarnings = true
		}
		switch s.Event {
		case "startup":
			hasStartup = true
		case "shutdown":
			hasShutdown = true
		case "process_crash":
			hasCrash = true
		}
	}

	q := Quality{Completeness: CompletenessComplete}
	if !hasStartup && !hasShutdown {
		q.Completeness = CompletenessPartial
		q.Notes = append(q.Notes, "No lifecycle events detected")
		q.ConfidencePenalty += 10
	}
	if hasCrash && !hasShutdown {
		q.Notes = append(q.Notes, "Crash detected without clean shutdown")
		q.ConfidencePenalty += 5
	}
	if !hasErrors && !hasWarnings {
		q.Completeness = CompletenessLowSignal
		q.Notes = append(q.Notes, "No ERROR or WARN events detected")
		q.ConfidencePenalty += 20
	}
	if len(q.Notes) == 0 {
		q.Notes = []string{"Evidence appears complete"}
	}
	return q
}

// Hadoop runs the full adapter over r. It returns the contract together with
// the number of events that fed it.
func Hadoop(r io.Reader, logger *slog.Logger) (*Contract, int, error) {
	events, err := ParseHadoop(r, logger)
	if err != nil {
		return nil, 0, err
	}
	if len(events) == 0 {
		return nil, 0, ErrNoEvents
	}
	signals := Aggregate(events)
	return &Contract{
		Source:  SourceHadoop,
		Quality: Assess(signals),
		Signals: signals,
	}, len(events), nil
}
