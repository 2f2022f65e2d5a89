// Package lifecycle owns the incident status model: the five states, which
// transitions are reachable, which roles may perform them, and which pipeline
// phases each state admits.
//
// Topology and authority are kept apart on purpose. The graph says what is
// reachable; the role map narrows who may take an edge. A transition missing
// from the role map is open to any role once the graph allows it.
package lifecycle

import "strings"

// State is an incident lifecycle status.
type State string

const (
	Open               State = "OPEN"
	Mitigating         State = "MITIGATING"
	Monitoring         State = "MONITORING"
	Resolved           State = "RESOLVED"
	PostmortemComplete State = "POSTMORTEM_COMPLETE"
)

// States lists every valid state in lifecycle order.
var States = []State{Open, Mitigating, Monitoring, Resolved, PostmortemComplete}

// Valid reports whether s is one of the five states.
func (s State) Valid() bool {
	for _, v := range States {
		if v == s {
			return true
		}
	}
	return false
}

// Edge is a directed transition between two states.
type Edge struct {
	From State
	To   State
}

func (e Edge) String() string {
	return string(e.From) + "->" + string(e.To)
}

// edges is the full transition graph. MONITORING->MITIGATING and
// RESOLVED->MITIGATING are regressions for when an issue returns.
var edges = map[Edge]bool{
	{Open, Mitigating}:             true,
	{Open, Resolved}:               true,
	{Mitigating, Monitoring}:       true,
	{Mitigating, Resolved}:         true,
	{Monitoring, Mitigating}:       true,
	{Monitoring, Resolved}:         true,
	{Resolved, PostmortemComplete}: true,
	{Resolved, Mitigating}:         true,
}

// Role names used by the default authorization map.
const (
	RoleIncidentCommander = "Incident Commander"
	RoleSRE               = "SRE"
	RoleSRELead           = "SRE Lead"
)

// authorizedRoles narrows who may take specific edges.
var authorizedRoles = map[Edge][]string{
	{Open, Mitigating}:             {RoleIncidentCommander, RoleSRE, RoleSRELead},
	{Mitigating, Monitoring}:       {RoleIncidentCommander, RoleSRELead},
	{Monitoring, Resolved}:         {RoleIncidentCommander},
	{Resolved, PostmortemComplete}: {RoleIncidentCommander, RoleSRE, RoleSRELead},
	{Monitoring, Mitigating}:       {RoleIncidentCommander, RoleSRELead},
	{Resolved, Mitigating}:         {RoleIncidentCommander},
}

// Allowed reports whether the graph contains the edge from -> to.
func Allowed(from, to State) bool {
	return edges[Edge{from, to}]
}

// Next returns the states reachable from s in lifecycle order. A terminal
// state returns nil.
func Next(s State) []State {
	var out []State
	for _, to := range States {
		if edges[Edge{s, to}] {
			out = append(out, to)
		}
	}
	return out
}

// Terminal reports whether s has no outgoing transitions.
func Terminal(s State) bool {
	return len(Next(s)) == 0
}

// RolesFor returns the roles permitted to take the edge. ok is false when
// the edge carries no role restriction.
func RolesFor(from, to State) (roles []string, ok bool) {
	roles, ok = authorizedRoles[Edge{from, to}]
	return roles, ok
}

// Authorized reports whether role may take the edge from -> to. It does not
// check the graph.
func Authorized(from, to State, role string) bool {
	roles, restricted := RolesFor(from, to)
	if !restricted {
		return true
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func joinStates(states []State, sep string) string {
	parts := make([]string, len(states))
	for i, s := range states {
		parts[i] = string(s)
	}
	return strings.Join(parts, sep)
}
