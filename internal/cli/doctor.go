package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/sherlock/internal/audit"
	"github.com/ppiankov/sherlock/internal/record"
)

func init() {
	rootCmd.AddCommand(doctorCmd)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Parse every record in the workspace and report problems",
	Args:  cobra.NoArgs,
	RunE:  runDoctor,
}

type checkResult struct {
	label  string
	ok     bool
	detail string
	fix    string
}

func runDoctor(cmd *cobra.Command, args []string) error {
	store := newStore()
	var checks []checkResult

	// 1. Workspace directories.
	for _, dir := range []string{store.IncidentsDir(), filepath.Join(store.Root(), "services"), store.ReportsDir()} {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			checks = append(checks, checkResult{label: "directory", ok: true, detail: dir})
		} else {
			checks = append(checks, checkResult{label: "directory", ok: false, detail: dir + " missing", fix: "sherlock init"})
		}
	}

	// 2. Incident records.
	incidents, err := store.ListIncidents()
	if err != nil {
		return err
	}
	for _, id := range incidents {
		checks = append(checks, loadCheck(id+" status", func() error {
			_, err := store.LoadStatus(id)
			return err
		}))
		checks = append(checks, loadCheck(id+" coordination", func() error {
			_, err := store.LoadCoordination(id)
			return err
		}))
	}

	// 3. Service policies.
	services, err := store.ListServices()
	if err != nil {
		return err
	}
	if len(services) == 0 {
		checks = append(checks, checkResult{label: "service policies", ok: false, detail: "none found", fix: "sherlock init"})
	}
	for _, svc := range services {
		checks = append(checks, loadCheck(svc+" policy", func() error {
			_, err := store.LoadServicePolicy(svc)
			return err
		}))
	}

	// 4. Audit chain.
	if path := cfg.AuditPath(); path != "" {
		if _, statErr := os.Stat(path); statErr == nil {
			res := audit.Verify(path)
			c := checkResult{label: "audit log", ok: res.Valid, detail: fmt.Sprintf("%d entries", res.Lines)}
			if !res.Valid {
				c.detail = fmt.Sprintf("broken at line %d: %s", res.ErrorLine, res.Error)
			}
			checks = append(checks, c)
		} else {
			checks = append(checks, checkResult{label: "audit log", ok: true, detail: "not written yet"})
		}
	}

	// Print results.
	w := cmd.ErrOrStderr()
	hasFailures := false
	for _, c := range checks {
		mark := "✓"
		if !c.ok {
			mark = "✗"
			hasFailures = true
		}
		line := fmt.Sprintf("%s %-28s %s", mark, c.label+":", c.detail)
		if !c.ok && c.fix != "" {
			line += fmt.Sprintf("  ->  %s", c.fix)
		}
		fmt.Fprintln(w, line)
	}

	if hasFailures {
		fmt.Fprintln(w)
		return fmt.Errorf("doctor found issues")
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "All checks passed.")
	return nil
}

// loadCheck turns a record load into a check. An absent optional record
// passes.
func loadCheck(label string, load func() error) checkResult {
	err := load()
	switch {
	case err == nil:
		return checkResult{label: label, ok: true, detail: "ok"}
	case errors.Is(err, record.ErrNotFound):
		return checkResult{label: label, ok: true, detail: "absent"}
	default:
		return checkResult{label: label, ok: false, detail: err.Error()}
	}
}
