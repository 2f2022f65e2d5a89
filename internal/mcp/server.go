package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/sherlock/internal/audit"
	"github.com/ppiankov/sherlock/internal/coordination"
	"github.com/ppiankov/sherlock/internal/lifecycle"
	"github.com/ppiankov/sherlock/internal/metrics"
	"github.com/ppiankov/sherlock/internal/model"
	"github.com/ppiankov/sherlock/internal/policy"
	"github.com/ppiankov/sherlock/internal/record"
)

// Config holds MCP server configuration.
type Config struct {
	Root            string
	StrictPhases    bool
	PlatformContact string
	AuditLogPath    string
	Version         string
	Logger          *slog.Logger
}

// Server exposes the governance checks to agents as read-only MCP tools.
// No tool changes lifecycle state; transitions stay with human operators.
type Server struct {
	mcpServer *mcpsdk.Server
	store     *record.Store
	machine   *lifecycle.Machine
	coord     *coordination.Validator
	enforcer  *policy.Enforcer
	auditLog  *audit.Log
	logger    *slog.Logger
	mu        sync.Mutex
}

// New creates an MCP server over the record store at cfg.Root.
func New(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	store := record.NewStore(cfg.Root,
		record.WithLogger(logger),
		record.WithLoadObserver(metrics.ObserveLoad),
	)

	var auditLog *audit.Log
	if cfg.AuditLogPath != "" {
		var err error
		auditLog, err = audit.Open(cfg.AuditLogPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
	}

	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	s := &Server{
		machine: lifecycle.NewMachine(store,
			lifecycle.WithLogger(logger),
			lifecycle.WithStrictPhases(cfg.StrictPhases),
		),
		coord: coordination.NewValidator(store, logger),
		enforcer: policy.NewEnforcer(store,
			policy.WithLogger(logger),
			policy.WithPlatformContact(cfg.PlatformContact),
		),
		auditLog: auditLog,
		logger:   logger,
		store:    store,
	}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "sherlock",
			Version: version,
		},
		nil,
	)

	s.registerTools()
	return s, nil
}

// Run starts the MCP server on stdio transport. Blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// Close closes the audit log if configured.
func (s *Server) Close() error {
	if s.auditLog != nil {
		return s.auditLog.Close()
	}
	return nil
}

// observe counts and audits one tool evaluation.
func (s *Server) observe(component, operation string, subject audit.Subject, err error, warnings []model.Warning) {
	metrics.ObserveGate(component, operation, err)
	if s.auditLog == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := audit.Evaluated(component, operation, subject, err, warnings)
	entry.Actor = audit.Actor{Name: "mcp"}
	if aerr := s.auditLog.Record(entry); aerr != nil {
		s.logger.Warn("audit record failed", "error", aerr)
	}
}

// registerTools adds all sherlock tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "sherlock_status",
		Description: "Show an incident's lifecycle state, history, allowed transitions and which pipeline phases may run. Read-only.",
	}, s.handleStatus)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "sherlock_phase_gate",
		Description: "Check whether a pipeline phase (investigate, finalize, memory, actions, trust) may run at the incident's current state. Denials include the remedy.",
	}, s.handlePhaseGate)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "sherlock_scope",
		Description: "Check that a service is in the incident's coordination scope and show its role. Single-service incidents always pass.",
	}, s.handleScope)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "sherlock_check_primary",
		Description: "Check that every primary cause candidate of a multi-service incident has a finalized review before closure.",
	}, s.handleCheckPrimary)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "sherlock_review_policy",
		Description: "Check that a reviewer role may finalize a decision for a service and that the decision satisfies the service's constraints.",
	}, s.handleReviewPolicy)
}
