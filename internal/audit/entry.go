package audit

import "github.com/ppiankov/sherlock/internal/model"

// Outcomes recorded for governance operations.
const (
	OutcomeAllowed  = "allowed"
	OutcomeDenied   = "denied"
	OutcomeRecorded = "recorded"
	OutcomeError    = "error"
)

// Subject identifies what a governance operation was about.
type Subject struct {
	Incident string `json:"incident,omitempty"`
	Service  string `json:"service,omitempty"`
	Phase    string `json:"phase,omitempty"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
}

// Actor is the human named by the operation, if any.
type Actor struct {
	Name       string `json:"name,omitempty"`
	Role       string `json:"role,omitempty"`
	Identifier string `json:"identifier,omitempty"`
}

// Entry is one line in the hash-chained JSONL audit log.
// All fields are structs or slices of strings (no map[string]any) to
// guarantee deterministic json.Marshal field order for reproducible hashing.
type Entry struct {
	Timestamp string   `json:"ts"`
	TraceID   string   `json:"trace_id"`
	Component string   `json:"component"`
	Operation string   `json:"operation"`
	Subject   Subject  `json:"subject"`
	Actor     Actor    `json:"actor,omitempty"`
	Outcome   string   `json:"outcome"`
	Kind      string   `json:"kind,omitempty"`
	Reason    string   `json:"reason,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
	PrevHash  string   `json:"prev_hash"`
}

// Evaluated builds the entry for one governance check. A nil err is
// allowed, a Violation is denied with its kind, anything else is an error.
func Evaluated(component, operation string, subject Subject, err error, warnings []model.Warning) Entry {
	e := Entry{
		Component: component,
		Operation: operation,
		Subject:   subject,
		Outcome:   OutcomeAllowed,
	}
	if err != nil {
		e.Outcome = OutcomeError
		e.Reason = err.Error()
		if kind := model.KindOf(err); kind != "" {
			e.Outcome = OutcomeDenied
			e.Kind = string(kind)
		}
	}
	for _, w := range warnings {
		e.Warnings = append(e.Warnings, w.Code)
	}
	return e
}
