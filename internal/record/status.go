package record

import (
	"errors"
	"fmt"

	"github.com/ppiankov/sherlock/internal/model"
)

// TimeLayout is the timestamp format used in every record.
const TimeLayout = "2006-01-02T15:04:05Z"

// HistoryEntry is one past transition. Entries are never modified once written.
type HistoryEntry struct {
	ID         string `yaml:"id,omitempty" json:"id,omitempty"`
	State      string `yaml:"state" json:"state" validate:"required,oneof=OPEN MITIGATING MONITORING RESOLVED POSTMORTEM_COMPLETE"`
	SetBy      string `yaml:"set_by" json:"set_by" validate:"required"`
	Role       string `yaml:"role,omitempty" json:"role,omitempty"`
	Identifier string `yaml:"identifier,omitempty" json:"identifier,omitempty"`
	Timestamp  string `yaml:"timestamp" json:"timestamp" validate:"required,datetime=2006-01-02T15:04:05Z"`
	Notes      string `yaml:"notes,omitempty" json:"notes,omitempty"`
}

// StatusRecord is the persisted lifecycle state of one incident.
type StatusRecord struct {
	IncidentID string         `yaml:"incident_id" json:"incident_id" validate:"required"`
	Status     string         `yaml:"status" json:"status" validate:"required,oneof=OPEN MITIGATING MONITORING RESOLVED POSTMORTEM_COMPLETE"`
	SetBy      model.Actor    `yaml:"set_by" json:"set_by"`
	UpdatedAt  string         `yaml:"updated_at" json:"updated_at" validate:"required,datetime=2006-01-02T15:04:05Z"`
	Revision   int            `yaml:"revision" json:"revision" validate:"gte=0"`
	History    []HistoryEntry `yaml:"history" json:"history" validate:"required,min=1,dive"`
	Notes      []string       `yaml:"notes,omitempty" json:"notes,omitempty"`
}

const statusHeader = `Incident Lifecycle State
Purpose: gate pipeline behavior based on real-world incident progression
Rule: human sets state, system enforces, nothing automated changes state
Allowed values: OPEN | MITIGATING | MONITORING | RESOLVED | POSTMORTEM_COMPLETE`

// check enforces the cross-field invariants the schema tags cannot express.
func (r *StatusRecord) check(incidentID string) error {
	if r.IncidentID != incidentID {
		return fmt.Errorf("incident_id %q does not match file key %q", r.IncidentID, incidentID)
	}
	last := r.History[len(r.History)-1]
	if last.State != r.Status {
		return fmt.Errorf("status %s does not match last history state %s", r.Status, last.State)
	}
	return nil
}

// LoadStatus reads the status record of an incident. A missing record yields
// an error wrapping ErrNotFound.
func (s *Store) LoadStatus(incidentID string) (*StatusRecord, error) {
	if err := ValidateKey(incidentID); err != nil {
		return nil, fmt.Errorf("invalid incident id: %w", err)
	}
	rel := StatusPath(incidentID)
	data, err := s.read("status", rel)
	if err != nil {
		return nil, err
	}
	var rec StatusRecord
	if err := decode(rel, data, &rec, true); err != nil {
		return nil, err
	}
	if err := rec.check(incidentID); err != nil {
		return nil, parseViolation(rel, err)
	}
	return &rec, nil
}

// SaveStatus persists rec, which must have been derived from the record at
// baseRevision (-1 when no record existed). The on-disk revision is re-read
// and compared before the write; a mismatch means another actor committed in
// between and the write is refused. Callers should hold LockStatus.
func (s *Store) SaveStatus(rec *StatusRecord, baseRevision int) error {
	if err := ValidateKey(rec.IncidentID); err != nil {
		return fmt.Errorf("invalid incident id: %w", err)
	}
	rel := StatusPath(rec.IncidentID)

	current, err := s.LoadStatus(rec.IncidentID)
	switch {
	case errors.Is(err, ErrNotFound):
		if baseRevision >= 0 {
			return concurrentViolation(rel, baseRevision, -1)
		}
	case err != nil:
		return err
	case current.Revision != baseRevision:
		return concurrentViolation(rel, baseRevision, current.Revision)
	}

	rec.Revision = baseRevision + 1
	if err := schema().Struct(rec); err != nil {
		return fmt.Errorf("refusing to write invalid status record: %w", schemaError(err))
	}
	if err := rec.check(rec.IncidentID); err != nil {
		return fmt.Errorf("refusing to write inconsistent status record: %w", err)
	}

	data, err := encode(statusHeader, rec)
	if err != nil {
		return fmt.Errorf("encode %s: %w", rel, err)
	}
	return s.writeAtomic(rel, data)
}

// LockStatus takes the advisory write lock for an incident's status record.
// The returned release func must be called once the write is done. The lock
// file <id>.status.yaml.lock stays in incidents/ after release; only the
// flock on it is dropped.
func (s *Store) LockStatus(incidentID string) (func(), error) {
	if err := ValidateKey(incidentID); err != nil {
		return nil, fmt.Errorf("invalid incident id: %w", err)
	}
	rel := StatusPath(incidentID) + ".lock"
	l, err := acquireLock(s.abs(rel))
	if err != nil {
		if errors.Is(err, errLocked) {
			return nil, &model.Violation{
				Kind:    model.KindConcurrentModification,
				Title:   "status record is being updated by another actor",
				Subject: incidentID,
				Found:   "lock held on " + rel,
				Remedy:  "wait for the other transition to finish, review the new state, then retry",
			}
		}
		return nil, err
	}
	return l.release, nil
}

func concurrentViolation(rel string, base, found int) *model.Violation {
	return &model.Violation{
		Kind:     model.KindConcurrentModification,
		Title:    "status record changed since it was read",
		Subject:  rel,
		Expected: fmt.Sprintf("revision %d", base),
		Found:    fmt.Sprintf("revision %d", found),
		Remedy:   "display the incident status again and re-issue the transition if it is still wanted",
	}
}
