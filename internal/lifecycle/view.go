package lifecycle

import (
	"errors"

	"github.com/ppiankov/sherlock/internal/model"
	"github.com/ppiankov/sherlock/internal/record"
)

// PhasePermission says whether one phase may run at the current state.
type PhasePermission struct {
	Phase    Phase   `json:"phase"`
	Label    string  `json:"label"`
	Allowed  bool    `json:"allowed"`
	Requires []State `json:"requires"`
}

// StatusView is a read-only projection of an incident's lifecycle.
type StatusView struct {
	IncidentID         string                `json:"incident_id"`
	Initialized        bool                  `json:"initialized"`
	Path               string                `json:"path"`
	State              State                 `json:"state,omitempty"`
	UpdatedAt          string                `json:"updated_at,omitempty"`
	SetBy              model.Actor           `json:"set_by"`
	Revision           int                   `json:"revision"`
	Notes              []string              `json:"notes,omitempty"`
	Phases             []PhasePermission     `json:"phases,omitempty"`
	AllowedTransitions []State               `json:"allowed_transitions,omitempty"`
	Terminal           bool                  `json:"terminal"`
	History            []record.HistoryEntry `json:"history,omitempty"`
}

// Display returns the status view of an incident. A missing status record is
// not an error here: the view reports Initialized=false.
func (m *Machine) Display(incidentID string) (*StatusView, error) {
	view := &StatusView{IncidentID: incidentID, Path: record.StatusPath(incidentID)}

	rec, err := m.store.LoadStatus(incidentID)
	if err != nil {
		if errors.Is(err, record.ErrNotFound) {
			return view, nil
		}
		return nil, err
	}

	state := State(rec.Status)
	view.Initialized = true
	view.State = state
	view.UpdatedAt = rec.UpdatedAt
	view.SetBy = rec.SetBy
	view.Revision = rec.Revision
	view.Notes = rec.Notes
	view.History = rec.History
	view.AllowedTransitions = Next(state)
	view.Terminal = Terminal(state)
	for _, p := range Phases {
		req, _ := RequiredStates(p)
		view.Phases = append(view.Phases, PhasePermission{
			Phase:    p,
			Label:    p.Label(),
			Allowed:  Permits(p, state),
			Requires: req,
		})
	}
	return view, nil
}
