package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/sherlock/internal/config"
	"github.com/ppiankov/sherlock/internal/lifecycle"
	"github.com/ppiankov/sherlock/internal/model"
	"github.com/ppiankov/sherlock/internal/record"
)

// Names used by the example records written by init.
const (
	ExampleService  = "example-service"
	ExampleIncident = "INC-EXAMPLE"
)

var initForce bool

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing config and example files")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Bootstrap a sherlock workspace",
	Long: `Creates incidents/, services/ and reports/ under the workspace root,
a sherlock.yaml with the default settings, an example service policy and
an example coordination record.
Existing files are kept unless --force is given.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	store := newStore()
	if err := store.Init(); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}

	var created []string

	configPath := filepath.Join(store.Root(), config.DefaultFile)
	configContent, err := defaultConfigYAML()
	if err != nil {
		return fmt.Errorf("generate default config: %w", err)
	}
	if wrote, err := writeIfMissing(configPath, configContent); err != nil {
		return err
	} else if wrote {
		created = append(created, configPath)
	}

	examples := []struct {
		rel  string
		save func() error
	}{
		{record.ServicePolicyPath(ExampleService), func() error { return store.SaveServicePolicy(examplePolicy()) }},
		{record.CoordinationPath(ExampleIncident), func() error { return store.SaveCoordination(exampleCoordination()) }},
	}
	for _, ex := range examples {
		path := filepath.Join(store.Root(), ex.rel)
		if _, statErr := os.Stat(path); !initForce && statErr == nil {
			continue
		}
		if err := ex.save(); err != nil {
			return err
		}
		created = append(created, path)
	}

	printInitSummary(cmd.ErrOrStderr(), store.Root(), created)
	return nil
}

func printInitSummary(w io.Writer, root string, created []string) {
	fmt.Fprintf(w, "sherlock workspace ready at %s\n\n", root)
	if len(created) > 0 {
		fmt.Fprintln(w, "Created:")
		for _, path := range created {
			fmt.Fprintf(w, "  %s\n", path)
		}
	} else {
		fmt.Fprintln(w, "All files already exist (use --force to overwrite).")
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Start tracking an incident:")
	fmt.Fprintln(w, "  sherlock status INC-1 set OPEN <name> \"Incident Commander\" <id>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Verify:")
	fmt.Fprintln(w, "  sherlock doctor")
}

// writeIfMissing writes content to path if it doesn't exist or --force is set.
// Returns true if the file was written.
func writeIfMissing(path, content string) (bool, error) {
	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("create directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}

// defaultConfigYAML renders the built-in defaults as a commented config file.
func defaultConfigYAML() (string, error) {
	data, err := yaml.Marshal(config.DefaultConfig())
	if err != nil {
		return "", err
	}
	header := "# sherlock configuration.\n" +
		"# Environment variables override this file: SHERLOCK_LOG_LEVEL, SHERLOCK_AUDIT_PATH, ...\n" +
		"# Command-line flags override both.\n\n"
	return header + string(data), nil
}

func examplePolicy() *record.ServicePolicy {
	ceiling := 70
	return &record.ServicePolicy{
		Service: ExampleService,
		Owners: record.Owners{
			Primary: record.Owner{
				Team:    "example-team",
				Contact: "example-team@company.com",
				Escalation: record.Escalation{
					Slack: "#example-oncall",
				},
			},
		},
		ReviewPolicy: record.ReviewPolicy{
			AllowedRoles:   []string{"Incident Commander", "SRE Lead", "SRE"},
			ForbiddenRoles: []string{"Contractor"},
		},
		DecisionConstraints: record.DecisionConstraints{
			RejectIfEvidenceQuality:         "LOW",
			MaxConfidenceWithoutExplanation: &ceiling,
			RequireRemediationForModified:   true,
		},
	}
}

func exampleCoordination() *record.CoordinationRecord {
	return &record.CoordinationRecord{
		IncidentID:       ExampleIncident,
		IncidentTitle:    "Example multi-service incident",
		IncidentSeverity: "SEV2",
		DeclaredBy:       model.Actor{Name: "Example Commander", Role: lifecycle.RoleIncidentCommander},
		Services: []record.ServiceEntry{
			{Name: ExampleService, Role: record.RolePrimaryCandidate},
			{
				Name:       "example-frontend",
				Role:       record.RoleSymptomOnly,
				Properties: map[string]any{"reason": "error rate alert fired first"},
			},
		},
		CoordinationNotes: []string{"Edit or delete this file; it only shows the format."},
	}
}
