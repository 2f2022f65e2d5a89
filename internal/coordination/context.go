package coordination

import (
	"fmt"
	"strings"

	"github.com/ppiankov/sherlock/internal/model"
	"github.com/ppiankov/sherlock/internal/record"
)

// RoleLabel renders a role name for humans: primary_candidate becomes
// "Primary Candidate".
func RoleLabel(role record.ServiceRole) string {
	words := strings.Split(string(role), "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

// RoleGuidance explains what a role means for the service's analysis.
func RoleGuidance(role record.ServiceRole) string {
	switch role {
	case record.RolePrimaryCandidate:
		return "Primary cause candidate: this service requires a finalized analysis before the incident can close."
	case record.RoleDownstreamImpact:
		return "Downstream impact: affected by the primary cause but may have contributing factors."
	case record.RoleSymptomOnly:
		return "Symptom only: surfaced an alert but no fault is expected. No remediation required unless issues are found."
	case RoleSingleService:
		return "No coordination record: standard single-service analysis."
	default:
		return ""
	}
}

// UnknownDeclarer names the declaring actor when the record has none.
const UnknownDeclarer = "Unknown"

// ServiceView is one service as shown in a coordination context.
type ServiceView struct {
	Name       string             `json:"name"`
	Role       record.ServiceRole `json:"role"`
	Label      string             `json:"label"`
	Current    bool               `json:"current"`
	Properties map[string]string  `json:"properties,omitempty"`
}

// Context is a read-only projection of a coordination record as seen from
// one service.
type Context struct {
	IncidentID        string             `json:"incident_id"`
	MultiService      bool               `json:"multi_service"`
	Service           string             `json:"service,omitempty"`
	Role              record.ServiceRole `json:"role,omitempty"`
	RoleLabel         string             `json:"role_label,omitempty"`
	Guidance          string             `json:"guidance,omitempty"`
	Title             string             `json:"title,omitempty"`
	Severity          string             `json:"severity,omitempty"`
	DeclaredBy        model.Actor        `json:"declared_by"`
	Services          []ServiceView      `json:"services,omitempty"`
	Notes             []string           `json:"notes,omitempty"`
	InScope           bool               `json:"in_scope"`
	PrimaryCandidates []string           `json:"primary_candidates,omitempty"`
}

// DisplayContext projects c for service without validating anything. Service
// order is preserved. service may be empty.
func DisplayContext(incidentID string, c *record.CoordinationRecord, service string) *Context {
	ctx := &Context{IncidentID: incidentID, Service: service}
	if service != "" {
		ctx.Role = ServiceRole(c, service)
		ctx.RoleLabel = RoleLabel(ctx.Role)
		ctx.Guidance = RoleGuidance(ctx.Role)
	}
	if c == nil {
		ctx.InScope = true
		return ctx
	}

	ctx.MultiService = true
	ctx.Title = c.IncidentTitle
	ctx.Severity = c.IncidentSeverity
	ctx.DeclaredBy = c.DeclaredBy
	if ctx.DeclaredBy.Name == "" {
		ctx.DeclaredBy.Name = UnknownDeclarer
	}
	ctx.Notes = c.CoordinationNotes
	for _, svc := range c.Services {
		role := svc.EffectiveRole()
		ctx.Services = append(ctx.Services, ServiceView{
			Name:       svc.Name,
			Role:       role,
			Label:      RoleLabel(role),
			Current:    svc.Name == service,
			Properties: properties(svc.Properties),
		})
		if svc.Name == service {
			ctx.InScope = true
		}
		if role == record.RolePrimaryCandidate {
			ctx.PrimaryCandidates = append(ctx.PrimaryCandidates, svc.Name)
		}
	}
	return ctx
}

func properties(in map[string]any) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = fmt.Sprint(v)
	}
	return out
}
