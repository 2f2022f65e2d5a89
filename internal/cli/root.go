package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/sherlock/internal/audit"
	"github.com/ppiankov/sherlock/internal/config"
	"github.com/ppiankov/sherlock/internal/coordination"
	"github.com/ppiankov/sherlock/internal/lifecycle"
	"github.com/ppiankov/sherlock/internal/metrics"
	"github.com/ppiankov/sherlock/internal/model"
	"github.com/ppiankov/sherlock/internal/policy"
	"github.com/ppiankov/sherlock/internal/record"
)

var (
	flagRoot         string
	flagConfig       string
	flagStrictPhases bool
	flagLogLevel     string
	flagLogFormat    string
	flagAuditLog     string
)

// Settings resolved once per invocation by the root pre-run hook.
var (
	cfg    *config.Config
	logger *slog.Logger
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagRoot, "root", "", "Workspace directory holding incidents/, services/ and reports/")
	pf.StringVar(&flagConfig, "config", "", "Path to config file (default ./sherlock.yaml if present)")
	pf.BoolVar(&flagStrictPhases, "strict-phases", false, "Deny unknown pipeline phases instead of warning")
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level (debug|info|warn|error)")
	pf.StringVar(&flagLogFormat, "log-format", "", "Log format (text|json)")
	pf.StringVar(&flagAuditLog, "audit-log", "", "Append every gate decision to this hash-chained JSONL log")
}

var rootCmd = &cobra.Command{
	Use:   "sherlock",
	Short: "Governance gates for incident investigations",
	Long: "Enforces the incident lifecycle, multi-service coordination scope and\n" +
		"per-service review policy before an investigation pipeline may proceed.\n" +
		"Every violation exits 1 with the expected value, the found value and the next step.",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute runs the root command. Any error is rendered on stderr and the
// process exits 1.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		renderError(os.Stderr, err)
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	c, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	if flagRoot != "" {
		c.Root = flagRoot
	}
	if flagStrictPhases {
		c.StrictPhases = true
	}
	if flagLogLevel != "" {
		c.Log.Level = flagLogLevel
	}
	if flagLogFormat != "" {
		c.Log.Format = flagLogFormat
	}
	if flagAuditLog != "" {
		c.Audit.Path = flagAuditLog
	}
	if err := c.Validate(); err != nil {
		return err
	}
	cfg = c
	logger = newLogger(cmd.ErrOrStderr(), c.Log)
	slog.SetDefault(logger)
	return nil
}

func newLogger(w io.Writer, lc config.LogConfig) *slog.Logger {
	var level slog.Level
	switch lc.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func newStore() *record.Store {
	return record.NewStore(cfg.Root,
		record.WithLogger(logger),
		record.WithLoadObserver(metrics.ObserveLoad),
	)
}

func newMachine(store *record.Store) *lifecycle.Machine {
	return lifecycle.NewMachine(store,
		lifecycle.WithLogger(logger),
		lifecycle.WithStrictPhases(cfg.StrictPhases),
	)
}

func newEnforcer(store *record.Store) *policy.Enforcer {
	return policy.NewEnforcer(store,
		policy.WithLogger(logger),
		policy.WithPlatformContact(cfg.PlatformContact),
	)
}

func newValidator(store *record.Store) *coordination.Validator {
	return coordination.NewValidator(store, logger)
}

// observe counts the evaluation and appends it to the audit log when one is
// configured. Audit write failures are logged, not fatal.
func observe(entry audit.Entry, err error) {
	metrics.ObserveGate(entry.Component, entry.Operation, err)
	path := cfg.AuditPath()
	if path == "" {
		return
	}
	l, openErr := audit.Open(path)
	if openErr != nil {
		logger.Error("audit log unavailable", "path", path, "error", openErr)
		return
	}
	defer l.Close()
	if recErr := l.Record(entry); recErr != nil {
		logger.Error("audit write failed", "path", path, "error", recErr)
	}
}

// renderError prints an operator report for err.
func renderError(w io.Writer, err error) {
	v, ok := asViolation(err)
	if !ok {
		fmt.Fprintf(w, "ERROR: %v\n", err)
		return
	}
	fmt.Fprintf(w, "❌ %s: %s\n", v.Kind, v.Title)
	if v.Subject != "" {
		fmt.Fprintf(w, "   Subject:   %s\n", v.Subject)
	}
	if v.Expected != "" {
		fmt.Fprintf(w, "   Expected:  %s\n", v.Expected)
	}
	if v.Found != "" {
		fmt.Fprintf(w, "   Found:     %s\n", v.Found)
	}
	for _, d := range v.Details {
		fmt.Fprintf(w, "   - %s\n", d)
	}
	if v.Err != nil {
		fmt.Fprintf(w, "   Cause:     %v\n", v.Err)
	}
	if v.Remedy != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "   Next step:")
		for _, line := range strings.Split(v.Remedy, "\n") {
			fmt.Fprintf(w, "     %s\n", line)
		}
	}
}

func asViolation(err error) (*model.Violation, bool) {
	var v *model.Violation
	ok := errors.As(err, &v)
	return v, ok
}

func renderWarnings(w io.Writer, warnings []model.Warning) {
	for _, wn := range warnings {
		fmt.Fprintf(w, "⚠️  %s\n", wn.Message)
	}
}
