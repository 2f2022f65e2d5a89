package record

import (
	"fmt"

	"github.com/ppiankov/sherlock/internal/model"
)

// ServiceRole is the part a service plays in a multi-service incident.
type ServiceRole string

const (
	RolePrimaryCandidate ServiceRole = "primary_candidate"
	RoleDownstreamImpact ServiceRole = "downstream_impact"
	RoleSymptomOnly      ServiceRole = "symptom_only"
	RoleUnknown          ServiceRole = "unknown"
)

// ServiceEntry is one participant in a coordination record. Keys other than
// name and role are kept in Properties.
type ServiceEntry struct {
	Name       string         `yaml:"name" json:"name" validate:"required"`
	Role       ServiceRole    `yaml:"role,omitempty" json:"role,omitempty" validate:"omitempty,oneof=primary_candidate downstream_impact symptom_only unknown"`
	Properties map[string]any `yaml:",inline" json:"properties,omitempty"`
}

// EffectiveRole returns the declared role, or RoleUnknown when none is set.
func (e ServiceEntry) EffectiveRole() ServiceRole {
	if e.Role == "" {
		return RoleUnknown
	}
	return e.Role
}

// CoordinationRecord declares that an incident spans several services.
type CoordinationRecord struct {
	IncidentID        string         `yaml:"incident_id" json:"incident_id" validate:"required"`
	IncidentTitle     string         `yaml:"incident_title,omitempty" json:"incident_title,omitempty"`
	IncidentSeverity  string         `yaml:"incident_severity,omitempty" json:"incident_severity,omitempty"`
	DeclaredBy        model.Actor    `yaml:"declared_by,omitempty" json:"declared_by" validate:"-"`
	Services          []ServiceEntry `yaml:"services" json:"services" validate:"dive"`
	CoordinationNotes []string       `yaml:"coordination_notes,omitempty" json:"coordination_notes,omitempty"`
}

// ServiceNames returns the declared service names in record order.
func (c *CoordinationRecord) ServiceNames() []string {
	names := make([]string, 0, len(c.Services))
	for _, svc := range c.Services {
		names = append(names, svc.Name)
	}
	return names
}

// LoadCoordination reads the coordination record of an incident. A missing
// record yields an error wrapping ErrNotFound. Coordination records are
// written by hand during an incident, so unknown keys are allowed and
// declared_by is optional; names, roles and the incident id are still
// checked.
func (s *Store) LoadCoordination(incidentID string) (*CoordinationRecord, error) {
	if err := ValidateKey(incidentID); err != nil {
		return nil, fmt.Errorf("invalid incident id: %w", err)
	}
	rel := CoordinationPath(incidentID)
	data, err := s.read("coordination", rel)
	if err != nil {
		return nil, err
	}
	var rec CoordinationRecord
	if err := decode(rel, data, &rec, false); err != nil {
		return nil, err
	}
	if rec.IncidentID != incidentID {
		return nil, parseViolation(rel, fmt.Errorf("incident_id %q does not match file key %q", rec.IncidentID, incidentID))
	}
	for _, svc := range rec.Services {
		if err := ValidateKey(svc.Name); err != nil {
			return nil, parseViolation(rel, fmt.Errorf("service name: %w", err))
		}
	}
	return &rec, nil
}

// SaveCoordination writes a coordination record.
func (s *Store) SaveCoordination(rec *CoordinationRecord) error {
	if err := ValidateKey(rec.IncidentID); err != nil {
		return fmt.Errorf("invalid incident id: %w", err)
	}
	if err := schema().Struct(rec); err != nil {
		return fmt.Errorf("refusing to write invalid coordination record: %w", schemaError(err))
	}
	data, err := encode("Multi-Service Incident Coordination", rec)
	if err != nil {
		return err
	}
	return s.writeAtomic(CoordinationPath(rec.IncidentID), data)
}
