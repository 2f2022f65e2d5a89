package record

import (
	"fmt"
)

// Escalation lists the channels used to escalate to a service's owners.
type Escalation struct {
	Slack string `yaml:"slack,omitempty" json:"slack,omitempty"`
	Pager string `yaml:"pager,omitempty" json:"pager,omitempty"`
}

// Owner is a team accountable for a service.
type Owner struct {
	Team       string     `yaml:"team" json:"team" validate:"required"`
	Contact    string     `yaml:"contact,omitempty" json:"contact,omitempty"`
	Escalation Escalation `yaml:"escalation,omitempty" json:"escalation,omitempty"`
}

// Owners groups the accountable teams of a service.
type Owners struct {
	Primary Owner `yaml:"primary" json:"primary"`
}

// ReviewPolicy lists which reviewer roles may finalize decisions.
type ReviewPolicy struct {
	AllowedRoles   []string `yaml:"allowed_roles" json:"allowed_roles"`
	ForbiddenRoles []string `yaml:"forbidden_roles,omitempty" json:"forbidden_roles,omitempty"`
}

// DecisionConstraints bound what a review decision may claim.
type DecisionConstraints struct {
	RejectIfEvidenceQuality         string `yaml:"reject_if_evidence_quality,omitempty" json:"reject_if_evidence_quality,omitempty"`
	MaxConfidenceWithoutOverride    *int   `yaml:"max_confidence_without_override,omitempty" json:"max_confidence_without_override,omitempty" validate:"omitempty,gte=0,lte=100"`
	MaxConfidenceWithoutExplanation *int   `yaml:"max_confidence_without_evidence_explanation,omitempty" json:"max_confidence_without_evidence_explanation,omitempty" validate:"omitempty,gte=0,lte=100"`
	RequireRemediationForModified   bool   `yaml:"require_remediation_for_modified,omitempty" json:"require_remediation_for_modified,omitempty"`
}

// ServicePolicy is the ownership and review authority record of a service.
type ServicePolicy struct {
	Service             string              `yaml:"service" json:"service" validate:"required"`
	Owners              Owners              `yaml:"owners" json:"owners"`
	ReviewPolicy        ReviewPolicy        `yaml:"review_policy" json:"review_policy"`
	DecisionConstraints DecisionConstraints `yaml:"decision_constraints,omitempty" json:"decision_constraints,omitempty"`
}

// LoadServicePolicy reads the policy record of a service. A missing record
// yields an error wrapping ErrNotFound. Policies are authored outside this
// tool and may carry extra documentation keys, so unknown keys are allowed.
func (s *Store) LoadServicePolicy(service string) (*ServicePolicy, error) {
	if err := ValidateKey(service); err != nil {
		return nil, fmt.Errorf("invalid service name: %w", err)
	}
	rel := ServicePolicyPath(service)
	data, err := s.read("service_policy", rel)
	if err != nil {
		return nil, err
	}
	var pol ServicePolicy
	if err := decode(rel, data, &pol, false); err != nil {
		return nil, err
	}
	if pol.Service != service {
		return nil, parseViolation(rel, fmt.Errorf("service %q does not match file key %q", pol.Service, service))
	}
	return &pol, nil
}

// SaveServicePolicy writes a service policy record.
func (s *Store) SaveServicePolicy(pol *ServicePolicy) error {
	if err := ValidateKey(pol.Service); err != nil {
		return fmt.Errorf("invalid service name: %w", err)
	}
	if err := schema().Struct(pol); err != nil {
		return fmt.Errorf("refusing to write invalid service policy: %w", schemaError(err))
	}
	data, err := encode("Service Ownership and Review Policy", pol)
	if err != nil {
		return err
	}
	return s.writeAtomic(ServicePolicyPath(pol.Service), data)
}
