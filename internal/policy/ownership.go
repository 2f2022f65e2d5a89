package policy

import "github.com/ppiankov/sherlock/internal/record"

// OwnershipView is the ownership summary shown before authority checks.
type OwnershipView struct {
	Service      string   `json:"service"`
	Team         string   `json:"team"`
	Contact      string   `json:"contact,omitempty"`
	Slack        string   `json:"slack,omitempty"`
	Pager        string   `json:"pager,omitempty"`
	AllowedRoles []string `json:"allowed_roles"`
}

// Ownership projects a policy into its ownership summary.
func Ownership(pol *record.ServicePolicy) *OwnershipView {
	p := pol.Owners.Primary
	return &OwnershipView{
		Service:      pol.Service,
		Team:         p.Team,
		Contact:      p.Contact,
		Slack:        p.Escalation.Slack,
		Pager:        p.Escalation.Pager,
		AllowedRoles: pol.ReviewPolicy.AllowedRoles,
	}
}
