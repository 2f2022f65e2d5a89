// Package coordination checks multi-service incident scope: which services
// an incident spans, the role each plays, and whether the primary cause
// candidates have finalized reviews before the incident may close.
//
// A nil *record.CoordinationRecord means the incident has no coordination
// record and runs in single-service mode. Every check passes in that mode.
package coordination

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ppiankov/sherlock/internal/model"
	"github.com/ppiankov/sherlock/internal/record"
)

// RoleSingleService is reported for any service when no coordination record
// exists.
const RoleSingleService record.ServiceRole = "single_service"

// Validator loads coordination records and checks finalization markers.
type Validator struct {
	store  *record.Store
	logger *slog.Logger
}

// NewValidator creates a Validator over store.
func NewValidator(store *record.Store, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{store: store, logger: logger}
}

// Load returns the coordination record of an incident, or nil when there is
// none. Duplicate service names are reported as warnings; lookups use the
// first entry.
func (v *Validator) Load(incidentID string) (*record.CoordinationRecord, []model.Warning, error) {
	rec, err := v.store.LoadCoordination(incidentID)
	if err != nil {
		if errors.Is(err, record.ErrNotFound) {
			v.logger.Debug("no coordination record, single-service mode", "incident", incidentID)
			return nil, nil, nil
		}
		return nil, nil, err
	}

	var warnings []model.Warning
	seen := make(map[string]bool, len(rec.Services))
	for _, svc := range rec.Services {
		if seen[svc.Name] {
			warnings = append(warnings, model.Warning{
				Code:    model.WarnDuplicateService,
				Message: fmt.Sprintf("service %s is listed more than once; the first entry is used", svc.Name),
			})
			continue
		}
		seen[svc.Name] = true
	}
	return rec, warnings, nil
}

// ValidateServiceInScope fails with a ScopeViolation when service is not
// declared in the coordination record.
func ValidateServiceInScope(c *record.CoordinationRecord, service string) error {
	if c == nil {
		return nil
	}
	if _, ok := find(c, service); ok {
		return nil
	}
	names := c.ServiceNames()
	return &model.Violation{
		Kind:     model.KindScope,
		Title:    "service not in incident scope",
		Subject:  c.IncidentID,
		Expected: strings.Join(names, ", "),
		Found:    service,
		Details:  []string{fmt.Sprintf("in-scope services: %s", strings.Join(names, ", "))},
		Remedy:   fmt.Sprintf("add %s to %s if it is part of this incident, or review a service already in scope", service, record.CoordinationPath(c.IncidentID)),
	}
}

// ServiceRole returns the declared role of service. It never fails: without a
// record it returns RoleSingleService, and an undeclared service is
// RoleUnknown.
func ServiceRole(c *record.CoordinationRecord, service string) record.ServiceRole {
	if c == nil {
		return RoleSingleService
	}
	if entry, ok := find(c, service); ok {
		return entry.EffectiveRole()
	}
	return record.RoleUnknown
}

func find(c *record.CoordinationRecord, service string) (record.ServiceEntry, bool) {
	for _, svc := range c.Services {
		if svc.Name == service {
			return svc, true
		}
	}
	return record.ServiceEntry{}, false
}
