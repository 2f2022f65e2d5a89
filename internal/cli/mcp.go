package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	sherlockmcp "github.com/ppiankov/sherlock/internal/mcp"
	"github.com/ppiankov/sherlock/internal/metrics"
)

var mcpMetricsAddr string

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().StringVar(&mcpMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP tool server for agent integration",
	Long: "Runs sherlock as an MCP (Model Context Protocol) server over stdio.\n" +
		"Exposes read-only governance tools: sherlock_status, sherlock_phase_gate,\n" +
		"sherlock_scope, sherlock_check_primary, sherlock_review_policy.\n" +
		"No tool changes lifecycle state.",
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	srv, err := sherlockmcp.New(sherlockmcp.Config{
		Root:            cfg.Root,
		StrictPhases:    cfg.StrictPhases,
		PlatformContact: cfg.PlatformContact,
		AuditLogPath:    cfg.AuditPath(),
		Version:         version,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer srv.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := cfg.Metrics.Addr
	if mcpMetricsAddr != "" {
		addr = mcpMetricsAddr
	}
	go func() {
		if err := metrics.Serve(ctx, addr, logger); err != nil {
			logger.Error("metrics listener failed", "error", err)
		}
	}()

	w := cmd.ErrOrStderr()
	fmt.Fprintf(w, "sherlock MCP server running on stdio (root %s)\n", cfg.Root)
	err = srv.Run(ctx)
	fmt.Fprintln(w, "MCP server stopped")
	return err
}
