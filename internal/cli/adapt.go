package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/sherlock/internal/evidence"
)

func init() {
	rootCmd.AddCommand(adaptCmd)
	adaptCmd.AddCommand(adaptHadoopCmd)
}

var adaptCmd = &cobra.Command{
	Use:   "adapt",
	Short: "Convert raw logs into the evidence contract",
}

var adaptHadoopCmd = &cobra.Command{
	Use:   "hadoop <log_file>",
	Short: "Convert a Hadoop log into evidence contract JSON",
	Long: "Parses INFO/WARN/ERROR lines, classifies them into generic event types,\n" +
		"aggregates repeats into counted signals and grades evidence quality.\n" +
		"The contract is written to stdout; diagnostics go to stderr.",
	Args: cobra.ExactArgs(1),
	RunE: runAdaptHadoop,
}

func runAdaptHadoop(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	contract, events, err := evidence.Hadoop(f, logger)
	if err != nil {
		return err
	}
	if err := printJSON(cmd.OutOrStdout(), contract); err != nil {
		return err
	}

	w := cmd.ErrOrStderr()
	fmt.Fprintf(w, "✓ Processed %d events → %d aggregated signals\n", events, len(contract.Signals))
	fmt.Fprintf(w, "  Quality: %s\n", contract.Quality.Completeness)
	if contract.Quality.ConfidencePenalty > 0 {
		fmt.Fprintf(w, "  Confidence penalty: %d%%\n", contract.Quality.ConfidencePenalty)
	}
	return nil
}
