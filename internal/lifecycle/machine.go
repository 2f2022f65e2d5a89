package lifecycle

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/sherlock/internal/model"
	"github.com/ppiankov/sherlock/internal/record"
)

// Option configures a Machine.
type Option func(*Machine)

// WithStrictPhases makes unknown phase names deny instead of pass with a
// warning.
func WithStrictPhases(strict bool) Option {
	return func(m *Machine) { m.strict = strict }
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) { m.logger = l }
}

// WithClock overrides the time source used to stamp transitions.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// Machine validates and records lifecycle transitions for incidents backed
// by a record store. It keeps no state between calls.
type Machine struct {
	store  *record.Store
	strict bool
	logger *slog.Logger
	now    func() time.Time
}

// NewMachine creates a Machine over store.
func NewMachine(store *record.Store, opts ...Option) *Machine {
	m := &Machine{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetState returns the current state of an incident. An incident without a
// status record yields a RecordNotFound violation.
func (m *Machine) GetState(incidentID string) (State, error) {
	rec, err := m.load(incidentID)
	if err != nil {
		return "", err
	}
	return State(rec.Status), nil
}

// GateResult is the outcome of a phase gate check that did not deny.
type GateResult struct {
	IncidentID string          `json:"incident_id"`
	Phase      Phase           `json:"phase"`
	State      State           `json:"state"`
	Allowed    bool            `json:"allowed"`
	Warnings   []model.Warning `json:"warnings,omitempty"`
}

// CheckPhaseGate decides whether phase may run given the persisted state of
// the incident. It never writes. The gate fails closed when no status record
// exists.
func (m *Machine) CheckPhaseGate(incidentID string, phase Phase) (*GateResult, error) {
	rec, err := m.load(incidentID)
	if err != nil {
		return nil, err
	}
	state := State(rec.Status)
	res := &GateResult{IncidentID: incidentID, Phase: phase, State: state}

	required, known := RequiredStates(phase)
	if !known {
		if m.strict {
			return nil, &model.Violation{
				Kind:     model.KindUnknownPhase,
				Title:    "unknown pipeline phase",
				Subject:  incidentID,
				Expected: phaseNames(),
				Found:    string(phase),
				Remedy:   "use one of the known phase names, or disable strict phase checking",
			}
		}
		m.logger.Warn("unknown phase allowed", "incident", incidentID, "phase", phase)
		res.Allowed = true
		res.Warnings = append(res.Warnings, model.Warning{
			Code:    model.WarnUnknownPhase,
			Message: fmt.Sprintf("unknown phase %q: allowed without a lifecycle gate", phase),
		})
		return res, nil
	}

	if !Permits(phase, state) {
		return nil, &model.Violation{
			Kind:     model.KindPhaseGate,
			Title:    fmt.Sprintf("cannot execute %s at current incident state", phase),
			Subject:  incidentID,
			Expected: joinStates(required, " or "),
			Found:    string(state),
			Remedy:   phaseGuidance(incidentID, phase),
		}
	}

	m.logger.Debug("phase gate passed", "incident", incidentID, "phase", phase, "state", state)
	res.Allowed = true
	return res, nil
}

// Transition describes a committed state change.
type Transition struct {
	IncidentID string               `json:"incident_id"`
	From       State                `json:"from,omitempty"`
	To         State                `json:"to"`
	Entry      record.HistoryEntry  `json:"entry"`
	Record     *record.StatusRecord `json:"record"`
}

// Initial reports whether the transition created the status record.
func (t *Transition) Initial() bool {
	return t.From == ""
}

// SetState validates and records an operator-requested transition. The
// checks run in a fixed order, each with its own failure kind: the target
// must be a valid state, the edge must exist in the graph, and the actor's
// role must be permitted for the edge. The first transition of an incident
// initializes tracking and is not checked against the graph.
//
// The write happens under the record's advisory lock and is refused if the
// record changed after it was read.
func (m *Machine) SetState(incidentID string, to State, actor model.Actor, notes string) (*Transition, error) {
	if !to.Valid() {
		return nil, &model.Violation{
			Kind:     model.KindInvalidState,
			Title:    "invalid state",
			Subject:  incidentID,
			Expected: joinStates(States, ", "),
			Found:    string(to),
			Remedy:   "use one of the five lifecycle states",
		}
	}
	if strings.TrimSpace(actor.Name) == "" || strings.TrimSpace(actor.Role) == "" {
		return nil, &model.Violation{
			Kind:     model.KindAuthority,
			Title:    "actor identity is incomplete",
			Subject:  incidentID,
			Expected: "name and role",
			Found:    fmt.Sprintf("name=%q role=%q", actor.Name, actor.Role),
			Remedy:   "state changes must name the human making them and their role",
		}
	}

	release, err := m.store.LockStatus(incidentID)
	if err != nil {
		return nil, err
	}
	defer release()

	current, err := m.store.LoadStatus(incidentID)
	baseRevision := -1
	var from State
	switch {
	case errors.Is(err, record.ErrNotFound):
		current = nil
	case err != nil:
		return nil, err
	default:
		from = State(current.Status)
		baseRevision = current.Revision
	}

	if current != nil {
		if err := checkTransition(incidentID, from, to, actor.Role); err != nil {
			return nil, err
		}
	}

	stamp := m.now().UTC().Format(record.TimeLayout)
	entry := record.HistoryEntry{
		ID:         uuid.NewString(),
		State:      string(to),
		SetBy:      actor.Name,
		Role:       actor.Role,
		Identifier: actor.Identifier,
		Timestamp:  stamp,
		Notes:      notes,
	}

	next := &record.StatusRecord{
		IncidentID: incidentID,
		Status:     string(to),
		SetBy:      actor,
		UpdatedAt:  stamp,
	}
	if current != nil {
		next.History = make([]record.HistoryEntry, 0, len(current.History)+1)
		next.History = append(next.History, current.History...)
		next.Notes = current.Notes
	}
	next.History = append(next.History, entry)
	if notes != "" {
		next.Notes = []string{notes}
	}

	if err := m.store.SaveStatus(next, baseRevision); err != nil {
		return nil, err
	}

	m.logger.Info("incident state updated",
		"incident", incidentID,
		"from", displayFrom(from),
		"to", to,
		"actor", actor.Name,
		"role", actor.Role,
		"revision", next.Revision,
	)
	return &Transition{IncidentID: incidentID, From: from, To: to, Entry: entry, Record: next}, nil
}

// checkTransition applies the topology check and then the authority check.
func checkTransition(incidentID string, from, to State, role string) error {
	if !Allowed(from, to) {
		expected := "none (terminal state)"
		if next := Next(from); len(next) > 0 {
			expected = joinStates(next, " | ")
		}
		return &model.Violation{
			Kind:     model.KindStateTopology,
			Title:    fmt.Sprintf("invalid state transition from %s", from),
			Subject:  incidentID,
			Expected: expected,
			Found:    string(to),
			Remedy:   "choose one of the allowed next states",
		}
	}
	if !Authorized(from, to, role) {
		roles, _ := RolesFor(from, to)
		return &model.Violation{
			Kind:     model.KindAuthority,
			Title:    fmt.Sprintf("role cannot transition %s -> %s", from, to),
			Subject:  incidentID,
			Expected: strings.Join(roles, ", "),
			Found:    role,
			Remedy:   "ask a holder of one of the allowed roles to perform this transition",
		}
	}
	return nil
}

// CanTransition runs the same topology and authority checks as SetState
// without writing anything.
func (m *Machine) CanTransition(incidentID string, to State, role string) error {
	if !to.Valid() {
		return &model.Violation{
			Kind:     model.KindInvalidState,
			Title:    "invalid state",
			Subject:  incidentID,
			Expected: joinStates(States, ", "),
			Found:    string(to),
		}
	}
	rec, err := m.load(incidentID)
	if err != nil {
		return err
	}
	return checkTransition(incidentID, State(rec.Status), to, role)
}

// load reads the status record and maps absence to a RecordNotFound
// violation with initialization guidance.
func (m *Machine) load(incidentID string) (*record.StatusRecord, error) {
	rec, err := m.store.LoadStatus(incidentID)
	if err != nil {
		if errors.Is(err, record.ErrNotFound) {
			return nil, notInitialized(incidentID)
		}
		return nil, err
	}
	return rec, nil
}

func notInitialized(incidentID string) *model.Violation {
	return &model.Violation{
		Kind:     model.KindRecordNotFound,
		Title:    "incident lifecycle tracking not initialized",
		Subject:  incidentID,
		Expected: record.StatusPath(incidentID),
		Found:    "no status file",
		Remedy:   fmt.Sprintf("initialize lifecycle tracking before any phase runs: sherlock status %s set OPEN <name> <role> <id>", incidentID),
	}
}

func phaseNames() string {
	parts := make([]string, len(Phases))
	for i, p := range Phases {
		parts[i] = string(p)
	}
	return strings.Join(parts, ", ")
}

func displayFrom(s State) string {
	if s == "" {
		return "NEW"
	}
	return string(s)
}
