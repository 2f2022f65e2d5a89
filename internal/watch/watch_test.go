package watch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/sherlock/internal/coordination"
	"github.com/ppiankov/sherlock/internal/lifecycle"
	"github.com/ppiankov/sherlock/internal/model"
	"github.com/ppiankov/sherlock/internal/record"
)

func TestDiff(t *testing.T) {
	before := Snapshot{"finalize": "denied (PhaseGateViolation)", "memory": "denied (PhaseGateViolation)", "old": "allowed"}
	after := Snapshot{"finalize": "allowed", "memory": "denied (PhaseGateViolation)", "close": "allowed"}

	changes := Diff(before, after)
	assert.Equal(t, []Change{
		{Check: "close", After: "allowed"},
		{Check: "finalize", Before: "denied (PhaseGateViolation)", After: "allowed"},
		{Check: "old", Before: "allowed"},
	}, changes)
	assert.Empty(t, Diff(after, after))
}

func TestRelevant(t *testing.T) {
	w := NewWatcher(record.NewStore(t.TempDir()), "INC-3", nil, nil)
	assert.True(t, w.Relevant("/x/incidents/INC-3.status.yaml"))
	assert.True(t, w.Relevant("/x/incidents/INC-3.coordination.yaml"))
	assert.True(t, w.Relevant("/x/reports/review-record-INC-3-billing-api.yaml"))
	assert.False(t, w.Relevant("/x/incidents/INC-30.status.yaml"))
	assert.False(t, w.Relevant("/x/incidents/INC-3.status.yaml.lock"))
	assert.False(t, w.Relevant("/x/incidents/INC-3.status.yaml.tmp-123"))
	assert.False(t, w.Relevant("/x/reports/review-record-INC-4-billing-api.yaml"))
}

func newEvaluator(t *testing.T) (*Evaluator, *record.Store) {
	t.Helper()
	store := record.NewStore(t.TempDir())
	require.NoError(t, store.Init())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &Evaluator{
		Lifecycle:    lifecycle.NewMachine(store, lifecycle.WithLogger(logger)),
		Coordination: coordination.NewValidator(store, logger),
	}, store
}

func TestEvaluate(t *testing.T) {
	e, _ := newEvaluator(t)

	snap := e.Evaluate("INC-1")
	assert.Equal(t, "denied (RecordNotFound)", snap["finalize"])
	assert.Equal(t, "allowed", snap[CheckClose])

	commander := model.Actor{Name: "Dana", Role: lifecycle.RoleIncidentCommander}
	_, err := e.Lifecycle.SetState("INC-1", lifecycle.Open, commander, "")
	require.NoError(t, err)
	_, err = e.Lifecycle.SetState("INC-1", lifecycle.Resolved, commander, "")
	require.NoError(t, err)

	snap = e.Evaluate("INC-1")
	assert.Equal(t, "allowed", snap["finalize"])
	assert.Equal(t, "denied (PhaseGateViolation)", snap["investigate"])
	assert.Len(t, snap, len(lifecycle.Phases)+1)
}

func TestWatcherReportsMarkerChange(t *testing.T) {
	e, store := newEvaluator(t)
	coord := `incident_id: INC-3
declared_by: {name: Dana, role: Incident Commander}
services:
  - name: billing-api
    role: primary_candidate
`
	require.NoError(t, os.WriteFile(filepath.Join(store.Root(), record.CoordinationPath("INC-3")), []byte(coord), 0o644))

	var mu sync.Mutex
	var batches [][]Change
	w := NewWatcher(store, "INC-3", func() Snapshot { return e.Evaluate("INC-3") }, func(c []Change) {
		mu.Lock()
		batches = append(batches, c)
		mu.Unlock()
	})
	w.SetDebounce(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give watcher time to start.
	time.Sleep(100 * time.Millisecond)

	marker := filepath.Join(store.Root(), record.ReviewMarkerPath("INC-3", "billing-api"))
	require.NoError(t, os.WriteFile(marker, []byte("status: FINALIZED\n"), 0o644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(batches) >= 2
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "denied (FinalizationBlocked)", findChange(batches[0], CheckClose).After)
	last := findChange(batches[1], CheckClose)
	assert.Equal(t, "denied (FinalizationBlocked)", last.Before)
	assert.Equal(t, "allowed", last.After)
}

func findChange(changes []Change, check string) Change {
	for _, c := range changes {
		if c.Check == check {
			return c
		}
	}
	return Change{}
}
