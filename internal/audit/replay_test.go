package audit

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestLog creates a temp audit log with known entries for testing.
func writeTestLog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test-audit.jsonl")
	log, err := Open(path)
	require.NoError(t, err)
	defer log.Close()

	base := time.Date(2026, 10, 19, 14, 0, 0, 0, time.UTC)
	at := func(sec int) string { return base.Add(time.Duration(sec) * time.Second).Format(TimestampFormat) }

	entries := []Entry{
		{Timestamp: at(0), Component: "lifecycle", Operation: "set_state", Subject: Subject{Incident: "INC-2", To: "OPEN"}, Actor: Actor{Name: "Dana", Role: "Incident Commander"}, Outcome: OutcomeRecorded},
		{Timestamp: at(2), Component: "lifecycle", Operation: "check_phase_gate", Subject: Subject{Incident: "INC-2", Phase: "finalize"}, Outcome: OutcomeDenied, Kind: "PhaseGateViolation"},
		{Timestamp: at(4), Component: "lifecycle", Operation: "check_phase_gate", Subject: Subject{Incident: "INC-9", Phase: "investigate"}, Outcome: OutcomeAllowed},
		{Timestamp: at(6), Component: "coordination", Operation: "validate", Subject: Subject{Incident: "INC-2", Service: "billing-api"}, Outcome: OutcomeAllowed, Warnings: []string{"duplicate_service"}},
		{Timestamp: at(8), Component: "lifecycle", Operation: "set_state", Subject: Subject{Incident: "INC-2", From: "OPEN", To: "MITIGATING"}, Actor: Actor{Name: "Sam", Role: "SRE"}, Outcome: OutcomeRecorded},
	}
	for _, e := range entries {
		require.NoError(t, log.Record(e))
	}
	return path
}

func TestReplayFiltersByIncident(t *testing.T) {
	result, err := Replay(writeTestLog(t), ReplayFilter{Incident: "INC-2"})
	require.NoError(t, err)

	assert.Len(t, result.Entries, 4)
	assert.Equal(t, 4, result.Summary.Total)
	assert.Equal(t, 2, result.Summary.RecordedCount)
	assert.Equal(t, 1, result.Summary.DeniedCount)
	assert.Equal(t, 1, result.Summary.AllowedCount)
	assert.Equal(t, 1, result.Summary.WarningCount)
}

func TestReplayFiltersByService(t *testing.T) {
	result, err := Replay(writeTestLog(t), ReplayFilter{Incident: "INC-2", Service: "billing-api"})
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, "validate", result.Entries[0].Operation)
}

func TestReplayTimeRange(t *testing.T) {
	base := time.Date(2026, 10, 19, 14, 0, 0, 0, time.UTC)
	result, err := Replay(writeTestLog(t), ReplayFilter{
		Incident: "INC-2",
		From:     base.Add(time.Second),
		To:       base.Add(7 * time.Second),
	})
	require.NoError(t, err)
	assert.Len(t, result.Entries, 2)
}

func TestReplayMissingFile(t *testing.T) {
	_, err := Replay(filepath.Join(t.TempDir(), "absent.jsonl"), ReplayFilter{Incident: "INC-2"})
	assert.Error(t, err)
}

func TestFormatTimeline(t *testing.T) {
	result, err := Replay(writeTestLog(t), ReplayFilter{Incident: "INC-2"})
	require.NoError(t, err)

	out := FormatTimeline(result)
	assert.Contains(t, out, "Incident: INC-2 | 2026-10-19 14:00:00")
	assert.Contains(t, out, "NEW->OPEN")
	assert.Contains(t, out, "OPEN->MITIGATING")
	assert.Contains(t, out, "PhaseGateViolation")
	assert.Contains(t, out, "lifecycle.set_state")
	assert.Contains(t, out, "to 14:00:08 UTC")
	assert.Contains(t, out, "Summary: 1 allowed, 1 denied, 2 recorded | Warnings: 1")

	empty := FormatTimeline(&ReplayResult{Incident: "INC-0"})
	assert.Equal(t, "Incident: INC-0 | No entries found.\n", empty)
}

func TestFormatJSON(t *testing.T) {
	out, err := FormatJSON(&ReplayResult{Incident: "INC-2"})
	require.NoError(t, err)
	assert.Contains(t, out, `"incident": "INC-2"`)
}
