// Package preflight composes the lifecycle, coordination and policy gates
// into the checks the pipeline runs before finalizing a review and before
// closing an incident. Each validator loads its own records; nothing is
// shared between them.
package preflight

import (
	"github.com/ppiankov/sherlock/internal/coordination"
	"github.com/ppiankov/sherlock/internal/lifecycle"
	"github.com/ppiankov/sherlock/internal/model"
	"github.com/ppiankov/sherlock/internal/policy"
)

// Step is one validator that ran during a preflight.
type Step struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
}

// Report is the outcome of a preflight. On failure it lists the steps that
// ran up to and including the failing one.
type Report struct {
	IncidentID string          `json:"incident_id"`
	Service    string          `json:"service,omitempty"`
	Steps      []Step          `json:"steps"`
	Warnings   []model.Warning `json:"warnings,omitempty"`
}

func (r *Report) step(name string, err error, warnings ...model.Warning) error {
	r.Steps = append(r.Steps, Step{Name: name, Passed: err == nil})
	r.Warnings = append(r.Warnings, warnings...)
	return err
}

// Runner holds the three validators.
type Runner struct {
	Lifecycle    *lifecycle.Machine
	Coordination *coordination.Validator
	Policy       *policy.Enforcer
}

// Review checks that a reviewer may finalize a decision for service within
// an incident.
//
// Evaluation order (stops at the first failure):
//  1. Lifecycle gate for the finalize phase
//  2. Service in coordination scope
//  3. Reviewer authority and decision constraints
func (r *Runner) Review(incidentID, service, reviewerRole, decisionPath string) (*Report, error) {
	rep := &Report{IncidentID: incidentID, Service: service}

	gate, err := r.Lifecycle.CheckPhaseGate(incidentID, lifecycle.PhaseFinalize)
	if err != nil {
		return rep, rep.step("lifecycle_gate", err)
	}
	rep.step("lifecycle_gate", nil, gate.Warnings...)

	coord, warnings, err := r.Coordination.Load(incidentID)
	if err != nil {
		return rep, rep.step("coordination_scope", err)
	}
	if err := rep.step("coordination_scope", coordination.ValidateServiceInScope(coord, service), warnings...); err != nil {
		return rep, err
	}

	res, err := r.Policy.Check(service, reviewerRole, decisionPath)
	if res != nil {
		rep.Warnings = append(rep.Warnings, res.Warnings...)
	}
	if err := rep.step("service_policy", err); err != nil {
		return rep, err
	}
	return rep, nil
}

// Close checks that an incident may move to POSTMORTEM_COMPLETE: every
// primary candidate is finalized and the lifecycle graph allows the
// transition from the current state. It does not check the caller's role.
func (r *Runner) Close(incidentID string) (*Report, error) {
	rep := &Report{IncidentID: incidentID}

	coord, warnings, err := r.Coordination.Load(incidentID)
	if err != nil {
		return rep, rep.step("primary_finalization", err)
	}
	rep.Warnings = append(rep.Warnings, warnings...)
	finWarnings, err := r.Coordination.CheckPrimaryFinalization(coord)
	if err := rep.step("primary_finalization", err, finWarnings...); err != nil {
		return rep, err
	}

	err = r.Lifecycle.CanTransition(incidentID, lifecycle.PostmortemComplete, lifecycle.RoleIncidentCommander)
	if err := rep.step("lifecycle_transition", err); err != nil {
		return rep, err
	}
	return rep, nil
}
