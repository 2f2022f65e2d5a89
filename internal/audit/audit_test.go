package audit

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/sherlock/internal/model"
)

func newTestLog(t *testing.T) (*Log, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test-audit.jsonl")
	l, err := Open(path)
	require.NoError(t, err)
	return l, path
}

func testEntry(outcome string) Entry {
	return Entry{
		Component: "lifecycle",
		Operation: "check_phase_gate",
		Subject:   Subject{Incident: "INC-1", Phase: "finalize"},
		Outcome:   outcome,
		Reason:    "test reason",
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func writeLines(t *testing.T, path string, lines []string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600))
}

func TestSequentialWritesProduceValidChain(t *testing.T) {
	l, path := newTestLog(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Record(testEntry(OutcomeAllowed)))
	}
	require.NoError(t, l.Close())

	result := Verify(path)
	require.True(t, result.Valid, "error at line %d: %s", result.ErrorLine, result.Error)
	assert.Equal(t, 5, result.Lines)
}

func TestRecordFillsTraceAndTimestamp(t *testing.T) {
	l, path := newTestLog(t)
	require.NoError(t, l.Record(testEntry(OutcomeDenied)))
	require.NoError(t, l.Close())

	var entry Entry
	require.NoError(t, json.Unmarshal([]byte(readLines(t, path)[0]), &entry))
	assert.NotEmpty(t, entry.TraceID)
	assert.NotEmpty(t, entry.Timestamp)
	assert.Equal(t, GenesisHash, entry.PrevHash)
}

func TestVerifyDetectsTamperedEntry(t *testing.T) {
	l, path := newTestLog(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Record(testEntry(OutcomeDenied)))
	}
	require.NoError(t, l.Close())

	lines := readLines(t, path)
	lines[1] = strings.Replace(lines[1], `"denied"`, `"allowed"`, 1)
	writeLines(t, path, lines)

	result := Verify(path)
	assert.False(t, result.Valid)
	assert.Equal(t, 3, result.ErrorLine)
}

func TestVerifyDetectsDeletedEntry(t *testing.T) {
	l, path := newTestLog(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Record(testEntry(OutcomeAllowed)))
	}
	require.NoError(t, l.Close())

	lines := readLines(t, path)
	writeLines(t, path, []string{lines[0], lines[2]})

	result := Verify(path)
	assert.False(t, result.Valid)
	assert.Equal(t, 2, result.ErrorLine)
}

func TestVerifyDetectsInsertedEntry(t *testing.T) {
	l, path := newTestLog(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Record(testEntry(OutcomeAllowed)))
	}
	require.NoError(t, l.Close())

	lines := readLines(t, path)
	fake := testEntry(OutcomeAllowed)
	fake.PrevHash = "sha256:fake"
	fakeJSON, err := json.Marshal(fake)
	require.NoError(t, err)
	writeLines(t, path, []string{lines[0], string(fakeJSON), lines[1], lines[2]})

	assert.False(t, Verify(path).Valid)
}

func TestEmptyLogPassesVerification(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.jsonl")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	result := Verify(path)
	assert.True(t, result.Valid)
	assert.Equal(t, 0, result.Lines)
}

func TestConcurrentWritesSerializeCorrectly(t *testing.T) {
	l, path := newTestLog(t)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Record(testEntry(OutcomeAllowed))
		}()
	}
	wg.Wait()
	require.NoError(t, l.Close())

	result := Verify(path)
	require.True(t, result.Valid, "error at line %d: %s", result.ErrorLine, result.Error)
	assert.Equal(t, 100, result.Lines)
}

func TestHashLineIsDeterministic(t *testing.T) {
	line := []byte(`{"ts":"2026-10-19T10:30:00.000Z","trace_id":"t-abc","component":"policy","operation":"check","subject":{"service":"payments"},"outcome":"denied","prev_hash":"sha256:def"}`)
	h1 := HashLine(line)
	assert.Equal(t, h1, HashLine(line))
	assert.True(t, strings.HasPrefix(h1, "sha256:"))
	assert.Len(t, h1, 7+64)
	assert.NotEqual(t, h1, HashLine([]byte("other")))
}

func TestOpenExistingLogContinuesChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.jsonl")

	l1, err := Open(path)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, l1.Record(testEntry(OutcomeAllowed)))
	}
	require.NoError(t, l1.Close())

	l2, err := Open(path)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		require.NoError(t, l2.Record(testEntry(OutcomeDenied)))
	}
	require.NoError(t, l2.Close())

	result := Verify(path)
	require.True(t, result.Valid, "error at line %d: %s", result.ErrorLine, result.Error)
	assert.Equal(t, 5, result.Lines)
}

func TestTail(t *testing.T) {
	l, path := newTestLog(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Record(testEntry(OutcomeAllowed)))
	}
	require.NoError(t, l.Close())

	lines, err := Tail(path, 2)
	require.NoError(t, err)
	all := readLines(t, path)
	assert.Equal(t, all[3:], lines)

	lines, err = Tail(path, 10)
	require.NoError(t, err)
	assert.Len(t, lines, 5)
}

func TestEvaluated(t *testing.T) {
	subject := Subject{Incident: "INC-1", Phase: "finalize"}

	ok := Evaluated("lifecycle", "check_phase_gate", subject, nil, []model.Warning{{Code: model.WarnUnknownPhase}})
	assert.Equal(t, OutcomeAllowed, ok.Outcome)
	assert.Equal(t, []string{model.WarnUnknownPhase}, ok.Warnings)

	denied := Evaluated("lifecycle", "check_phase_gate", subject, &model.Violation{Kind: model.KindPhaseGate, Title: "no"}, nil)
	assert.Equal(t, OutcomeDenied, denied.Outcome)
	assert.Equal(t, "PhaseGateViolation", denied.Kind)
	assert.NotEmpty(t, denied.Reason)

	failed := Evaluated("lifecycle", "check_phase_gate", subject, errors.New("disk"), nil)
	assert.Equal(t, OutcomeError, failed.Outcome)
	assert.Empty(t, failed.Kind)
}

func TestVerifyRejectsUnknownOutcome(t *testing.T) {
	l, path := newTestLog(t)
	require.NoError(t, l.Record(testEntry(OutcomeAllowed)))
	require.NoError(t, l.Record(testEntry("maybe")))
	require.NoError(t, l.Close())

	result := Verify(path)
	assert.False(t, result.Valid)
	assert.Equal(t, 2, result.ErrorLine)
	assert.Equal(t, 1, result.Lines)
	assert.Contains(t, result.Error, "unknown outcome")
}

func TestVerifyMissingFile(t *testing.T) {
	result := Verify(filepath.Join(t.TempDir(), "absent.jsonl"))
	assert.False(t, result.Valid)
	assert.Contains(t, result.Error, "read:")
}
