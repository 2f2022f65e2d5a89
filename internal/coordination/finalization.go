package coordination

import (
	"fmt"
	"strings"

	"github.com/ppiankov/sherlock/internal/model"
	"github.com/ppiankov/sherlock/internal/record"
)

// PendingReview is a primary candidate whose review blocks closure.
type PendingReview struct {
	Service string             `json:"service"`
	Marker  record.MarkerState `json:"-"`
	State   string             `json:"state"`
	Path    string             `json:"path"`
	Err     string             `json:"error,omitempty"`
}

// CheckPrimaryFinalization verifies every primary candidate has a review
// record marked FINALIZED. Without a coordination record there is nothing to
// finalize. A record with no primary candidate yields a warning only. Any
// doubt about a marker, including a read error, blocks.
//
// The returned violation lists every blocking service; the first in record
// order comes first.
func (v *Validator) CheckPrimaryFinalization(c *record.CoordinationRecord) ([]model.Warning, error) {
	if c == nil {
		return nil, nil
	}

	var primaries []string
	for _, svc := range c.Services {
		if svc.EffectiveRole() == record.RolePrimaryCandidate {
			primaries = append(primaries, svc.Name)
		}
	}
	if len(primaries) == 0 {
		return []model.Warning{{
			Code:    model.WarnNoPrimaryCandidate,
			Message: "no primary candidate declared: multi-service incidents should name at least one",
		}}, nil
	}

	pending := v.Pending(c.IncidentID, primaries)
	if len(pending) == 0 {
		v.logger.Debug("primary candidates finalized", "incident", c.IncidentID, "services", primaries)
		return nil, nil
	}

	details := make([]string, 0, len(pending))
	names := make([]string, 0, len(pending))
	for _, p := range pending {
		names = append(names, p.Service)
		line := fmt.Sprintf("%s: review %s (%s)", p.Service, p.State, p.Path)
		if p.Err != "" {
			line += ": " + p.Err
		}
		details = append(details, line)
	}
	first := pending[0]
	return nil, &model.Violation{
		Kind:     model.KindFinalizationBlocked,
		Title:    "primary candidate review not finalized",
		Subject:  c.IncidentID,
		Expected: "status: FINALIZED in " + first.Path,
		Found:    fmt.Sprintf("%s review %s", first.Service, first.State),
		Details:  details,
		Remedy:   fmt.Sprintf("the incident cannot close until the review of %s is finalized", strings.Join(names, ", ")),
	}
}

// Pending returns the services among names whose review record is not
// finalized, in the given order.
func (v *Validator) Pending(incidentID string, names []string) []PendingReview {
	var out []PendingReview
	for _, name := range names {
		state, err := v.store.ReviewMarker(incidentID, name)
		if state == record.MarkerFinalized {
			continue
		}
		p := PendingReview{
			Service: name,
			Marker:  state,
			State:   state.String(),
			Path:    record.ReviewMarkerPath(incidentID, name),
		}
		if err != nil {
			p.Err = err.Error()
			v.logger.Warn("review record unreadable", "incident", incidentID, "service", name, "error", err)
		}
		out = append(out, p)
	}
	return out
}
