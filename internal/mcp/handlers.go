package mcp

import (
	"context"
	"errors"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/sherlock/internal/audit"
	"github.com/ppiankov/sherlock/internal/coordination"
	"github.com/ppiankov/sherlock/internal/lifecycle"
	"github.com/ppiankov/sherlock/internal/model"
	"github.com/ppiankov/sherlock/internal/policy"
)

// --- Input/Output types ---

// Denial describes a failed check.
type Denial struct {
	Kind     string   `json:"kind"`
	Title    string   `json:"title"`
	Expected string   `json:"expected,omitempty"`
	Found    string   `json:"found,omitempty"`
	Remedy   string   `json:"remedy,omitempty"`
	Details  []string `json:"details,omitempty"`
}

// IncidentInput names an incident.
type IncidentInput struct {
	IncidentID string `json:"incident_id" jsonschema:"incident identifier, e.g. INC-1"`
}

// StatusOutput wraps the lifecycle view.
type StatusOutput struct {
	Status *lifecycle.StatusView `json:"status"`
}

// PhaseGateInput defines parameters for the sherlock_phase_gate tool.
type PhaseGateInput struct {
	IncidentID string `json:"incident_id" jsonschema:"incident identifier"`
	Phase      string `json:"phase" jsonschema:"pipeline phase: investigate, finalize, memory, actions or trust"`
}

// GateOutput is the result of a gate check.
type GateOutput struct {
	Allowed  bool            `json:"allowed"`
	State    string          `json:"state,omitempty"`
	Denial   *Denial         `json:"denial,omitempty"`
	Warnings []model.Warning `json:"warnings,omitempty"`
}

// ScopeInput defines parameters for the sherlock_scope tool.
type ScopeInput struct {
	IncidentID string `json:"incident_id" jsonschema:"incident identifier"`
	Service    string `json:"service" jsonschema:"service name"`
}

// ScopeOutput is the result of a scope check.
type ScopeOutput struct {
	Allowed  bool                  `json:"allowed"`
	Context  *coordination.Context `json:"context,omitempty"`
	Denial   *Denial               `json:"denial,omitempty"`
	Warnings []model.Warning       `json:"warnings,omitempty"`
}

// ReviewPolicyInput defines parameters for the sherlock_review_policy tool.
type ReviewPolicyInput struct {
	Service      string `json:"service" jsonschema:"service name"`
	ReviewerRole string `json:"reviewer_role" jsonschema:"role of the reviewer finalizing the decision"`
	DecisionFile string `json:"decision_file,omitempty" jsonschema:"review decision YAML, relative to the workspace reports/ directory; constraints are skipped when absent"`
}

// ReviewPolicyOutput is the result of a review policy check.
type ReviewPolicyOutput struct {
	Allowed   bool                  `json:"allowed"`
	Ownership *policy.OwnershipView `json:"ownership,omitempty"`
	Denial    *Denial               `json:"denial,omitempty"`
	Warnings  []model.Warning       `json:"warnings,omitempty"`
}

// --- Handlers ---

func (s *Server) handleStatus(ctx context.Context, req *mcpsdk.CallToolRequest, input IncidentInput) (*mcpsdk.CallToolResult, StatusOutput, error) {
	view, err := s.machine.Display(input.IncidentID)
	if err != nil {
		return nil, StatusOutput{}, err
	}
	return nil, StatusOutput{Status: view}, nil
}

func (s *Server) handlePhaseGate(ctx context.Context, req *mcpsdk.CallToolRequest, input PhaseGateInput) (*mcpsdk.CallToolResult, GateOutput, error) {
	res, err := s.machine.CheckPhaseGate(input.IncidentID, lifecycle.Phase(input.Phase))
	subject := audit.Subject{Incident: input.IncidentID, Phase: input.Phase}
	if err != nil {
		s.observe("lifecycle", "check_phase_gate", subject, err, nil)
		return deny(err, GateOutput{})
	}
	s.observe("lifecycle", "check_phase_gate", subject, nil, res.Warnings)
	return nil, GateOutput{Allowed: true, State: string(res.State), Warnings: res.Warnings}, nil
}

func (s *Server) handleScope(ctx context.Context, req *mcpsdk.CallToolRequest, input ScopeInput) (*mcpsdk.CallToolResult, ScopeOutput, error) {
	subject := audit.Subject{Incident: input.IncidentID, Service: input.Service}
	coord, warnings, err := s.coord.Load(input.IncidentID)
	if err != nil {
		s.observe("coordination", "validate", subject, err, nil)
		return deny(err, ScopeOutput{})
	}
	out := ScopeOutput{
		Context:  coordination.DisplayContext(input.IncidentID, coord, input.Service),
		Warnings: warnings,
	}
	err = coordination.ValidateServiceInScope(coord, input.Service)
	s.observe("coordination", "validate", subject, err, warnings)
	if err != nil {
		return deny(err, out)
	}
	out.Allowed = true
	return nil, out, nil
}

func (s *Server) handleCheckPrimary(ctx context.Context, req *mcpsdk.CallToolRequest, input IncidentInput) (*mcpsdk.CallToolResult, GateOutput, error) {
	subject := audit.Subject{Incident: input.IncidentID}
	coord, warnings, err := s.coord.Load(input.IncidentID)
	if err == nil {
		var more []model.Warning
		more, err = s.coord.CheckPrimaryFinalization(coord)
		warnings = append(warnings, more...)
	}
	s.observe("coordination", "check_primary", subject, err, warnings)
	if err != nil {
		return deny(err, GateOutput{Warnings: warnings})
	}
	return nil, GateOutput{Allowed: true, Warnings: warnings}, nil
}

func (s *Server) handleReviewPolicy(ctx context.Context, req *mcpsdk.CallToolRequest, input ReviewPolicyInput) (*mcpsdk.CallToolResult, ReviewPolicyOutput, error) {
	subject := audit.Subject{Service: input.Service}
	var decisionPath string
	if input.DecisionFile != "" {
		var err error
		if decisionPath, err = s.store.ReportFile(input.DecisionFile); err != nil {
			s.observe("policy", "check", subject, err, nil)
			return nil, ReviewPolicyOutput{}, err
		}
	}
	res, err := s.enforcer.Check(input.Service, input.ReviewerRole, decisionPath)
	out := ReviewPolicyOutput{}
	if res != nil {
		out.Ownership = res.Ownership
		out.Warnings = res.Warnings
	}
	s.observe("policy", "check", subject, err, out.Warnings)
	if err != nil {
		return deny(err, out)
	}
	out.Allowed = true
	return nil, out, nil
}

// denyTarget is any output that can carry a Denial.
type denyTarget interface {
	GateOutput | ScopeOutput | ReviewPolicyOutput
}

// deny turns a Violation into an error result carrying structured details.
// Other errors propagate to the SDK as tool errors.
func deny[T denyTarget](err error, out T) (*mcpsdk.CallToolResult, T, error) {
	var v *model.Violation
	if !errors.As(err, &v) {
		var zero T
		return nil, zero, err
	}
	d := &Denial{
		Kind:     string(v.Kind),
		Title:    v.Title,
		Expected: v.Expected,
		Found:    v.Found,
		Remedy:   v.Remedy,
		Details:  v.Details,
	}
	switch o := any(&out).(type) {
	case *GateOutput:
		o.Denial = d
	case *ScopeOutput:
		o.Denial = d
	case *ReviewPolicyOutput:
		o.Denial = d
	}
	return &mcpsdk.CallToolResult{IsError: true}, out, nil
}
