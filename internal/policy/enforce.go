// Package policy enforces per-service ownership and review authority: who
// may finalize a review decision for a service, and what that decision may
// claim.
package policy

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/ppiankov/sherlock/internal/model"
	"github.com/ppiankov/sherlock/internal/record"
)

// DefaultPlatformContact is named in the remedy when a service has no policy.
const DefaultPlatformContact = "platform-team@company.com"

// Option configures an Enforcer.
type Option func(*Enforcer)

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(e *Enforcer) { e.logger = l }
}

// WithPlatformContact sets who to contact when a service has no declared
// ownership.
func WithPlatformContact(contact string) Option {
	return func(e *Enforcer) {
		if contact != "" {
			e.platformContact = contact
		}
	}
}

// Enforcer evaluates service policies loaded from a record store.
type Enforcer struct {
	store           *record.Store
	logger          *slog.Logger
	platformContact string
}

// NewEnforcer creates an Enforcer over store.
func NewEnforcer(store *record.Store, opts ...Option) *Enforcer {
	e := &Enforcer{
		store:           store,
		logger:          slog.Default(),
		platformContact: DefaultPlatformContact,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// LoadPolicy reads the policy of a service. Unlike the other records, a
// missing policy is fatal: no incident work proceeds on a service without
// declared ownership.
func (e *Enforcer) LoadPolicy(service string) (*record.ServicePolicy, error) {
	pol, err := e.store.LoadServicePolicy(service)
	if err != nil {
		if errors.Is(err, record.ErrNotFound) {
			return nil, &model.Violation{
				Kind:     model.KindRecordNotFound,
				Title:    "service has no ownership record",
				Subject:  service,
				Expected: record.ServicePolicyPath(service),
				Found:    "no policy file",
				Remedy:   fmt.Sprintf("incidents cannot proceed without declared ownership; contact %s", e.platformContact),
			}
		}
		return nil, err
	}
	e.logger.Debug("service policy loaded", "service", service, "team", pol.Owners.Primary.Team)
	return pol, nil
}

// Result is the outcome of a full policy check that did not deny.
type Result struct {
	Service     string          `json:"service"`
	Role        string          `json:"reviewer_role"`
	Ownership   *OwnershipView  `json:"ownership"`
	Decision    string          `json:"decision,omitempty"`
	Constraints bool            `json:"constraints_checked"`
	Warnings    []model.Warning `json:"warnings,omitempty"`
}

// Check runs the complete review gate for a service.
//
// Evaluation order (must not be changed):
//  1. Policy must exist and parse
//  2. Reviewer authority, forbidden roles before allowed roles
//  3. Decision constraints, skipped with a warning when decisionPath does
//     not exist
func (e *Enforcer) Check(service, reviewerRole, decisionPath string) (*Result, error) {
	pol, err := e.LoadPolicy(service)
	if err != nil {
		return nil, err
	}
	res := &Result{Service: service, Role: reviewerRole, Ownership: Ownership(pol)}

	if err := ValidateReviewerAuthority(pol, reviewerRole); err != nil {
		return res, err
	}

	if decisionPath == "" {
		res.Warnings = append(res.Warnings, model.Warning{
			Code:    model.WarnNoDecisionData,
			Message: "no decision data supplied: constraints not checked",
		})
		return res, nil
	}
	decision, err := record.LoadDecision(decisionPath)
	if err != nil {
		if errors.Is(err, record.ErrNotFound) {
			res.Warnings = append(res.Warnings, model.Warning{
				Code:    model.WarnNoDecisionData,
				Message: fmt.Sprintf("decision data %s not found: constraints not checked", decisionPath),
			})
			return res, nil
		}
		return res, err
	}

	res.Decision = decision.Decision
	res.Constraints = true
	warnings, err := ValidateDecisionConstraints(pol, decision)
	res.Warnings = append(res.Warnings, warnings...)
	if err != nil {
		return res, err
	}
	return res, nil
}
