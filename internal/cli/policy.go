package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/sherlock/internal/audit"
	"github.com/ppiankov/sherlock/internal/model"
	"github.com/ppiankov/sherlock/internal/policy"
)

var policyFormat string

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.Flags().StringVarP(&policyFormat, "format", "f", "text", "Output format (text|json)")
}

var policyCmd = &cobra.Command{
	Use:   "policy <service> <reviewer_role> <decision_data_file>",
	Short: "Enforce a service's review policy on a reviewer and decision",
	Long: `Loads services/<service>.yaml and checks, in order:

  1. the reviewer role is not forbidden and is allowed
  2. the review decision satisfies every decision constraint

A missing policy file is fatal. A missing decision file skips the
constraint checks with a warning.`,
	Args: cobra.ExactArgs(3),
	RunE: runPolicy,
}

func runPolicy(cmd *cobra.Command, args []string) error {
	service, role, decisionPath := args[0], args[1], args[2]

	res, err := newEnforcer(newStore()).Check(service, role, decisionPath)
	w := cmd.ErrOrStderr()
	var warnings []model.Warning
	if res != nil {
		warnings = res.Warnings
		if policyFormat != "json" {
			renderOwnership(w, res.Ownership)
		}
	}
	entry := audit.Evaluated("policy", "check", audit.Subject{Service: service}, err, warnings)
	entry.Actor = audit.Actor{Role: role}
	observe(entry, err)
	renderWarnings(w, warnings)
	if err != nil {
		return err
	}

	if policyFormat == "json" {
		return printJSON(cmd.OutOrStdout(), res)
	}
	fmt.Fprintf(w, "✓ Reviewer role '%s' authorized for %s\n", role, service)
	if res.Constraints {
		fmt.Fprintf(w, "✓ Decision %s satisfies %s constraints\n", res.Decision, service)
	}
	return nil
}

func renderOwnership(w io.Writer, o *policy.OwnershipView) {
	if o == nil {
		return
	}
	fmt.Fprintf(w, "Service:    %s\n", o.Service)
	fmt.Fprintf(w, "Owner:      %s\n", o.Team)
	if o.Contact != "" {
		fmt.Fprintf(w, "Contact:    %s\n", o.Contact)
	}
	if o.Slack != "" {
		fmt.Fprintf(w, "Slack:      %s\n", o.Slack)
	}
	if o.Pager != "" {
		fmt.Fprintf(w, "Pager:      %s\n", o.Pager)
	}
	if len(o.AllowedRoles) > 0 {
		fmt.Fprintf(w, "Reviewers:  %s\n", strings.Join(o.AllowedRoles, ", "))
	}
	fmt.Fprintln(w)
}
