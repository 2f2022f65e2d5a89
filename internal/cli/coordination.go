package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ppiankov/sherlock/internal/audit"
	"github.com/ppiankov/sherlock/internal/coordination"
	"github.com/ppiankov/sherlock/internal/model"
)

var coordinationFormat string

func init() {
	rootCmd.AddCommand(coordinationCmd)
	coordinationCmd.Flags().StringVarP(&coordinationFormat, "format", "f", "text", "Output format (text|json)")
}

var coordinationCmd = &cobra.Command{
	Use:   "coordination <incident_id> [service] [display|validate|check-primary]",
	Short: "Check a service against an incident's coordination scope",
	Long: `Multi-service coordination for one incident.

  <service> display    show the coordination context for a service (default)
  <service> validate   exit 1 if the service is not declared in scope
  check-primary        exit 1 until every primary candidate review is finalized

Without incidents/<incident_id>.coordination.yaml the incident is
single-service and every check passes.`,
	Args: cobra.RangeArgs(1, 3),
	RunE: runCoordination,
}

func runCoordination(cmd *cobra.Command, args []string) error {
	incidentID := args[0]
	var service string
	action := "display"
	if len(args) >= 2 && args[1] == "check-primary" {
		if len(args) > 2 {
			return fmt.Errorf("check-primary takes no service")
		}
		action = "check-primary"
	} else {
		if len(args) >= 2 {
			service = args[1]
		}
		if len(args) == 3 {
			action = args[2]
		}
	}

	v := newValidator(newStore())
	coord, warnings, err := v.Load(incidentID)
	if err != nil {
		return err
	}
	w := cmd.ErrOrStderr()
	renderWarnings(w, warnings)

	switch action {
	case "display":
		if service == "" {
			return fmt.Errorf("display requires a service name")
		}
		ctx := coordination.DisplayContext(incidentID, coord, service)
		if coordinationFormat == "json" {
			return printJSON(cmd.OutOrStdout(), ctx)
		}
		renderContext(w, ctx)
		return nil

	case "validate":
		if service == "" {
			return fmt.Errorf("validate requires a service name")
		}
		err := coordination.ValidateServiceInScope(coord, service)
		observe(audit.Evaluated("coordination", "validate",
			audit.Subject{Incident: incidentID, Service: service}, err, warnings), err)
		if err != nil {
			return err
		}
		if coordinationFormat == "json" {
			return printJSON(cmd.OutOrStdout(), coordination.DisplayContext(incidentID, coord, service))
		}
		fmt.Fprintf(w, "✓ Service '%s' is in incident scope\n", service)
		return nil

	case "check-primary":
		more, err := v.CheckPrimaryFinalization(coord)
		warnings = append(warnings, more...)
		observe(audit.Evaluated("coordination", "check_primary",
			audit.Subject{Incident: incidentID}, err, warnings), err)
		if err != nil {
			return err
		}
		renderWarnings(w, more)
		if coordinationFormat == "json" {
			return printJSON(cmd.OutOrStdout(), struct {
				IncidentID string          `json:"incident_id"`
				Allowed    bool            `json:"allowed"`
				Warnings   []model.Warning `json:"warnings,omitempty"`
			}{incidentID, true, warnings})
		}
		fmt.Fprintln(w, "✓ Primary candidate finalization satisfied")
		return nil

	default:
		return fmt.Errorf("unknown action %q (want display, validate or check-primary)", action)
	}
}

func renderContext(w io.Writer, c *coordination.Context) {
	if !c.MultiService {
		fmt.Fprintf(w, "Incident %s: single-service (no coordination record)\n", c.IncidentID)
		return
	}
	fmt.Fprintf(w, "Incident:   %s\n", c.IncidentID)
	if c.Title != "" {
		fmt.Fprintf(w, "Title:      %s\n", c.Title)
	}
	if c.Severity != "" {
		fmt.Fprintf(w, "Severity:   %s\n", c.Severity)
	}
	if c.DeclaredBy.Name != "" {
		fmt.Fprintf(w, "Declared:   %s\n", c.DeclaredBy)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Services in scope:")
	for _, s := range c.Services {
		marker := " "
		if s.Current {
			marker = "→"
		}
		fmt.Fprintf(w, "  %s %-24s %s\n", marker, s.Name, s.Label)
		keys := make([]string, 0, len(s.Properties))
		for k := range s.Properties {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "      %s: %s\n", k, s.Properties[k])
		}
	}
	for _, n := range c.Notes {
		fmt.Fprintf(w, "Note: %s\n", n)
	}

	fmt.Fprintln(w)
	if !c.InScope {
		fmt.Fprintf(w, "Service '%s' is NOT in scope for this incident\n", c.Service)
		return
	}
	fmt.Fprintf(w, "Your service: %s (%s)\n", c.Service, c.RoleLabel)
	if c.Guidance != "" {
		fmt.Fprintf(w, "  %s\n", c.Guidance)
	}
}
