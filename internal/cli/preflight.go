package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ppiankov/sherlock/internal/audit"
	"github.com/ppiankov/sherlock/internal/preflight"
)

var preflightFormat string

func init() {
	rootCmd.AddCommand(preflightCmd)
	preflightCmd.AddCommand(preflightReviewCmd)
	preflightCmd.AddCommand(preflightCloseCmd)
	preflightCmd.PersistentFlags().StringVarP(&preflightFormat, "format", "f", "text", "Output format (text|json)")
}

var preflightCmd = &cobra.Command{
	Use:   "preflight",
	Short: "Run the composed gates the pipeline needs before a step",
}

var preflightReviewCmd = &cobra.Command{
	Use:   "review <incident_id> <service> <reviewer_role> <decision_data_file>",
	Short: "Gate review finalization: lifecycle, coordination scope and service policy",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		rep, err := newRunner().Review(args[0], args[1], args[2], args[3])
		entry := audit.Evaluated("preflight", "review",
			audit.Subject{Incident: args[0], Service: args[1], Phase: "finalize"}, err, rep.Warnings)
		entry.Actor = audit.Actor{Role: args[2]}
		observe(entry, err)
		return finishPreflight(cmd, rep, err)
	},
}

var preflightCloseCmd = &cobra.Command{
	Use:   "close <incident_id>",
	Short: "Gate incident closure: primary finalization and lifecycle topology",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rep, err := newRunner().Close(args[0])
		observe(audit.Evaluated("preflight", "close",
			audit.Subject{Incident: args[0], To: "POSTMORTEM_COMPLETE"}, err, rep.Warnings), err)
		return finishPreflight(cmd, rep, err)
	},
}

func newRunner() *preflight.Runner {
	store := newStore()
	return &preflight.Runner{
		Lifecycle:    newMachine(store),
		Coordination: newValidator(store),
		Policy:       newEnforcer(store),
	}
}

func finishPreflight(cmd *cobra.Command, rep *preflight.Report, err error) error {
	w := cmd.ErrOrStderr()
	renderSteps(w, rep)
	if err != nil {
		return err
	}
	renderWarnings(w, rep.Warnings)
	if preflightFormat == "json" {
		return printJSON(cmd.OutOrStdout(), rep)
	}
	fmt.Fprintln(w, "✓ Preflight passed")
	return nil
}

func renderSteps(w io.Writer, rep *preflight.Report) {
	for _, s := range rep.Steps {
		mark := "✓"
		if !s.Passed {
			mark = "✗"
		}
		fmt.Fprintf(w, "  %s %s\n", mark, s.Name)
	}
}
