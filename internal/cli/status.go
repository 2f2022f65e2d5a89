package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/sherlock/internal/audit"
	"github.com/ppiankov/sherlock/internal/lifecycle"
	"github.com/ppiankov/sherlock/internal/model"
)

var statusFormat string

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVarP(&statusFormat, "format", "f", "text", "Output format (text|json)")
}

var statusCmd = &cobra.Command{
	Use:   "status <incident_id> [display | check <phase> | set <state> <name> <role> <id> [notes]]",
	Short: "Show, gate on, or change an incident's lifecycle state",
	Long: `Lifecycle state machine for one incident.

  display                               show state, phase permissions and history (default)
  check <phase>                         exit 0 if the phase may run, 1 otherwise
  set <state> <name> <role> <id> [notes] transition the incident (initial set creates the record)

States: OPEN, MITIGATING, MONITORING, RESOLVED, POSTMORTEM_COMPLETE
Phases: investigate, finalize, memory, actions, trust`,
	Args: cobra.MinimumNArgs(1),
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	incidentID := args[0]
	action := "display"
	if len(args) > 1 {
		action = args[1]
	}

	machine := newMachine(newStore())
	switch action {
	case "display":
		if len(args) > 2 {
			return fmt.Errorf("display takes no arguments")
		}
		return statusDisplay(cmd, machine, incidentID)
	case "check":
		if len(args) != 3 {
			return fmt.Errorf("usage: sherlock status <incident_id> check <phase>")
		}
		return statusCheck(cmd, machine, incidentID, lifecycle.Phase(args[2]))
	case "set":
		if len(args) < 6 {
			return fmt.Errorf("usage: sherlock status <incident_id> set <state> <name> <role> <id> [notes]")
		}
		actor := model.Actor{Name: args[3], Role: args[4], Identifier: args[5]}
		notes := strings.Join(args[6:], " ")
		return statusSet(cmd, machine, incidentID, lifecycle.State(args[2]), actor, notes)
	default:
		return fmt.Errorf("unknown action %q (want display, check or set)", action)
	}
}

func statusDisplay(cmd *cobra.Command, machine *lifecycle.Machine, incidentID string) error {
	view, err := machine.Display(incidentID)
	if err != nil {
		return err
	}
	if statusFormat == "json" {
		return printJSON(cmd.OutOrStdout(), view)
	}
	renderStatus(cmd.ErrOrStderr(), view)
	return nil
}

func statusCheck(cmd *cobra.Command, machine *lifecycle.Machine, incidentID string, phase lifecycle.Phase) error {
	res, err := machine.CheckPhaseGate(incidentID, phase)
	var warnings []model.Warning
	if res != nil {
		warnings = res.Warnings
	}
	observe(audit.Evaluated("lifecycle", "check_phase_gate",
		audit.Subject{Incident: incidentID, Phase: string(phase)}, err, warnings), err)
	if err != nil {
		return err
	}

	w := cmd.ErrOrStderr()
	renderWarnings(w, res.Warnings)
	if statusFormat == "json" {
		return printJSON(cmd.OutOrStdout(), res)
	}
	fmt.Fprintf(w, "✓ %s allowed: %s is %s\n", phase.Label(), incidentID, res.State)
	return nil
}

func statusSet(cmd *cobra.Command, machine *lifecycle.Machine, incidentID string, to lifecycle.State, actor model.Actor, notes string) error {
	tr, err := machine.SetState(incidentID, to, actor, notes)

	entry := audit.Evaluated("lifecycle", "set_state",
		audit.Subject{Incident: incidentID, To: string(to)}, err, nil)
	entry.Actor = audit.Actor{Name: actor.Name, Role: actor.Role, Identifier: actor.Identifier}
	if tr != nil {
		entry.Subject.From = string(tr.From)
	}
	if err == nil {
		entry.Outcome = audit.OutcomeRecorded
	}
	observe(entry, err)
	if err != nil {
		return err
	}

	if statusFormat == "json" {
		return printJSON(cmd.OutOrStdout(), tr.Record)
	}
	w := cmd.ErrOrStderr()
	if tr.Initial() {
		fmt.Fprintf(w, "✓ %s initialized at %s by %s\n", incidentID, tr.To, actor)
	} else {
		fmt.Fprintf(w, "✓ %s: %s → %s by %s\n", incidentID, tr.From, tr.To, actor)
	}
	if next := lifecycle.Next(tr.To); len(next) > 0 {
		fmt.Fprintf(w, "  Next allowed: %s\n", joinStates(next))
	} else {
		fmt.Fprintln(w, "  Terminal state: no further transitions")
	}
	return nil
}

func renderStatus(w io.Writer, v *lifecycle.StatusView) {
	if !v.Initialized {
		fmt.Fprintf(w, "Incident %s has no lifecycle record (%s)\n", v.IncidentID, v.Path)
		fmt.Fprintf(w, "Initialize it with: sherlock status %s set OPEN <name> <role> <id>\n", v.IncidentID)
		return
	}
	fmt.Fprintf(w, "Incident:   %s\n", v.IncidentID)
	fmt.Fprintf(w, "State:      %s\n", v.State)
	fmt.Fprintf(w, "Updated:    %s by %s\n", v.UpdatedAt, v.SetBy)
	fmt.Fprintf(w, "Revision:   %d\n", v.Revision)
	for _, n := range v.Notes {
		fmt.Fprintf(w, "Note:       %s\n", n)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Phases:")
	for _, p := range v.Phases {
		mark := "✓"
		if !p.Allowed {
			mark = "✗"
		}
		fmt.Fprintf(w, "  %s %-30s requires %s\n", mark, p.Label, joinStates(p.Requires))
	}

	fmt.Fprintln(w)
	if v.Terminal {
		fmt.Fprintln(w, "Transitions: none (terminal state)")
	} else {
		fmt.Fprintf(w, "Transitions: %s\n", joinStates(v.AllowedTransitions))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "History:")
	for _, h := range v.History {
		by := h.SetBy
		if h.Role != "" {
			by = fmt.Sprintf("%s (%s)", h.SetBy, h.Role)
		}
		fmt.Fprintf(w, "  %s  %-20s %s\n", h.Timestamp, h.State, by)
	}
}

func joinStates(states []lifecycle.State) string {
	parts := make([]string, len(states))
	for i, s := range states {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}

func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
