package policy

import (
	"fmt"
	"strings"

	"github.com/ppiankov/sherlock/internal/model"
	"github.com/ppiankov/sherlock/internal/record"
)

// ValidateReviewerAuthority checks that role may finalize reviews for the
// service. Forbidden roles are checked first: a role listed as both
// forbidden and allowed is denied.
func ValidateReviewerAuthority(pol *record.ServicePolicy, role string) error {
	rp := pol.ReviewPolicy

	if contains(rp.ForbiddenRoles, role) {
		return &model.Violation{
			Kind:     model.KindAuthority,
			Title:    "reviewer role is explicitly forbidden",
			Subject:  pol.Service,
			Expected: "a role not in " + strings.Join(rp.ForbiddenRoles, ", "),
			Found:    role,
			Remedy:   "this review cannot be finalized; an authorized reviewer must perform it",
		}
	}

	if !contains(rp.AllowedRoles, role) {
		allowed := strings.Join(rp.AllowedRoles, ", ")
		if allowed == "" {
			allowed = "(none declared)"
		}
		return &model.Violation{
			Kind:     model.KindAuthority,
			Title:    "reviewer role not authorized for this service",
			Subject:  pol.Service,
			Expected: allowed,
			Found:    role,
			Remedy:   fmt.Sprintf("this review cannot be finalized; contact service owners: %s", ownerContact(pol)),
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func ownerContact(pol *record.ServicePolicy) string {
	primary := pol.Owners.Primary
	switch {
	case primary.Contact != "":
		return primary.Contact
	case primary.Team != "":
		return primary.Team
	default:
		return "unknown"
	}
}
