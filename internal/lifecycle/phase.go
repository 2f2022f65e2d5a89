package lifecycle

import "fmt"

// Phase is a stage of the incident pipeline gated by lifecycle state.
type Phase string

const (
	PhaseInvestigate Phase = "investigate"
	PhaseFinalize    Phase = "finalize"
	PhaseMemory      Phase = "memory"
	PhaseActions     Phase = "actions"
	PhaseTrust       Phase = "trust"
)

// Phases lists the known phases in pipeline order.
var Phases = []Phase{PhaseInvestigate, PhaseFinalize, PhaseMemory, PhaseActions, PhaseTrust}

var phaseRequirements = map[Phase][]State{
	PhaseInvestigate: {Open, Mitigating},
	PhaseFinalize:    {Resolved},
	PhaseMemory:      {PostmortemComplete},
	PhaseActions:     {Mitigating},
	PhaseTrust:       {PostmortemComplete},
}

var phaseLabels = map[Phase]string{
	PhaseInvestigate: "Investigation (phases 1-3)",
	PhaseFinalize:    "RCA finalization (phase 4)",
	PhaseMemory:      "Memory write (phase 5)",
	PhaseActions:     "Action execution (phase 6)",
	PhaseTrust:       "Trust artifacts (phase 7)",
}

// Label returns a human description of the phase.
func (p Phase) Label() string {
	if l, ok := phaseLabels[p]; ok {
		return l
	}
	return string(p)
}

// RequiredStates returns the states in which p may run. ok is false for an
// unknown phase.
func RequiredStates(p Phase) (states []State, ok bool) {
	states, ok = phaseRequirements[p]
	return states, ok
}

// Permits reports whether phase p may run in state s. Unknown phases are not
// permitted here; the fail-open policy lives in Machine.CheckPhaseGate.
func Permits(p Phase, s State) bool {
	for _, req := range phaseRequirements[p] {
		if req == s {
			return true
		}
	}
	return false
}

// phaseGuidance explains how to reach a state that admits the phase.
func phaseGuidance(incidentID string, p Phase) string {
	switch p {
	case PhaseFinalize:
		return fmt.Sprintf("RCA finalization requires the incident to be RESOLVED. If it is still ongoing, continue investigating. Once resolved run: sherlock status %s set RESOLVED <name> <role> <id>", incidentID)
	case PhaseMemory:
		return fmt.Sprintf("Institutional memory write requires POSTMORTEM_COMPLETE. Finalize the RCA first, then run: sherlock status %s set POSTMORTEM_COMPLETE <name> <role> <id>", incidentID)
	case PhaseActions:
		return fmt.Sprintf("Action execution requires the incident to be MITIGATING. Run: sherlock status %s set MITIGATING <name> <role> <id>", incidentID)
	case PhaseTrust:
		return fmt.Sprintf("Trust artifacts require POSTMORTEM_COMPLETE. Run: sherlock status %s set POSTMORTEM_COMPLETE <name> <role> <id>", incidentID)
	case PhaseInvestigate:
		return fmt.Sprintf("Investigation runs only while the incident is OPEN or MITIGATING. If the issue returned, regress it with: sherlock status %s set MITIGATING <name> <role> <id>", incidentID)
	default:
		return ""
	}
}
