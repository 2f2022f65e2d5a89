// Package watch re-evaluates an incident's governance gates whenever its
// records change on disk and reports every change of outcome. It never
// writes records.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ppiankov/sherlock/internal/coordination"
	"github.com/ppiankov/sherlock/internal/ctxlog"
	"github.com/ppiankov/sherlock/internal/lifecycle"
	"github.com/ppiankov/sherlock/internal/metrics"
	"github.com/ppiankov/sherlock/internal/model"
	"github.com/ppiankov/sherlock/internal/record"
)

// debounceDefault is the default debounce interval for file events.
const debounceDefault = 200 * time.Millisecond

// Snapshot maps a check name (a phase, or "close") to its outcome.
type Snapshot map[string]string

// Change is one check whose outcome differs between two snapshots.
type Change struct {
	Check  string `json:"check"`
	Before string `json:"before"`
	After  string `json:"after"`
}

// Diff returns the checks whose outcome changed, sorted by name.
func Diff(before, after Snapshot) []Change {
	var out []Change
	for check, now := range after {
		if before[check] != now {
			out = append(out, Change{Check: check, Before: before[check], After: now})
		}
	}
	for check, was := range before {
		if _, ok := after[check]; !ok {
			out = append(out, Change{Check: check, Before: was})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Check < out[j].Check })
	return out
}

// CheckClose is the snapshot key for the primary finalization check.
const CheckClose = "close"

// Evaluator evaluates every gate of one incident.
type Evaluator struct {
	Lifecycle    *lifecycle.Machine
	Coordination *coordination.Validator
}

// Evaluate runs every phase gate and the primary finalization check.
func (e *Evaluator) Evaluate(incidentID string) Snapshot {
	snap := make(Snapshot, len(lifecycle.Phases)+1)
	for _, p := range lifecycle.Phases {
		_, err := e.Lifecycle.CheckPhaseGate(incidentID, p)
		metrics.ObserveGate("lifecycle", "check_phase_gate", err)
		snap[string(p)] = outcome(err)
	}

	coord, _, err := e.Coordination.Load(incidentID)
	if err == nil {
		_, err = e.Coordination.CheckPrimaryFinalization(coord)
	}
	metrics.ObserveGate("coordination", "check_primary", err)
	snap[CheckClose] = outcome(err)
	return snap
}

func outcome(err error) string {
	if err == nil {
		return metrics.OutcomeAllowed
	}
	if kind := model.KindOf(err); kind != "" {
		return fmt.Sprintf("%s (%s)", metrics.OutcomeDenied, kind)
	}
	return metrics.OutcomeError
}

// Watcher watches the incidents and reports directories of a store for
// changes to one incident's records.
type Watcher struct {
	store      *record.Store
	incidentID string
	eval       func() Snapshot
	onChange   func([]Change)
	debounce   time.Duration
}

// NewWatcher creates a watcher for incidentID. onChange receives every
// non-empty diff, including the initial evaluation against an empty
// snapshot.
func NewWatcher(store *record.Store, incidentID string, eval func() Snapshot, onChange func([]Change)) *Watcher {
	return &Watcher{
		store:      store,
		incidentID: incidentID,
		eval:       eval,
		onChange:   onChange,
		debounce:   debounceDefault,
	}
}

// SetDebounce overrides the debounce interval.
func (w *Watcher) SetDebounce(d time.Duration) {
	if d > 0 {
		w.debounce = d
	}
}

// Relevant reports whether a file name belongs to the watched incident.
func (w *Watcher) Relevant(path string) bool {
	name := filepath.Base(path)
	switch {
	case strings.Contains(name, ".tmp"), strings.HasSuffix(name, ".lock"):
		return false
	case name == filepath.Base(record.StatusPath(w.incidentID)):
		return true
	case name == filepath.Base(record.CoordinationPath(w.incidentID)):
		return true
	default:
		return strings.HasPrefix(name, "review-record-"+w.incidentID+"-")
	}
}

// Run evaluates once, then re-evaluates after relevant file events. Blocks
// until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	for _, dir := range []string{w.store.IncidentsDir(), w.store.ReportsDir()} {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	current := Snapshot{}
	evaluate := func() {
		next := w.eval()
		if changes := Diff(current, next); len(changes) > 0 {
			w.onChange(changes)
		}
		current = next
	}
	evaluate()

	// Single debounce timer, reset on each event. Initialized as stopped;
	// first event starts it.
	debounceTimer := time.NewTimer(w.debounce)
	debounceTimer.Stop()
	defer debounceTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-debounceTimer.C:
			evaluate()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !w.Relevant(event.Name) {
				continue
			}
			logger.Debug("record changed", "path", event.Name, "op", event.Op.String())

			if !debounceTimer.Stop() {
				select {
				case <-debounceTimer.C:
				default:
				}
			}
			debounceTimer.Reset(w.debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "error", err)
		}
	}
}

// LogChanges returns an onChange callback that logs every change.
func LogChanges(logger *slog.Logger, incidentID string) func([]Change) {
	return func(changes []Change) {
		for _, c := range changes {
			before := c.Before
			if before == "" {
				before = "-"
			}
			logger.Info("gate outcome changed", "incident", incidentID, "check", c.Check, "before", before, "after", c.After)
		}
	}
}
