package record

import (
	"errors"
	"regexp"
)

// MarkerState describes the review finalization artifact of one service.
type MarkerState int

const (
	MarkerMissing MarkerState = iota
	MarkerUnreadable
	MarkerPending
	MarkerFinalized
)

func (m MarkerState) String() string {
	switch m {
	case MarkerMissing:
		return "missing"
	case MarkerUnreadable:
		return "unreadable"
	case MarkerPending:
		return "not finalized"
	case MarkerFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// finalizedLine matches a top-level or nested "status: FINALIZED" line,
// optionally quoted. The rest of the review record schema is not inspected.
var finalizedLine = regexp.MustCompile(`(?m)^\s*status:\s*["']?FINALIZED["']?\s*(#.*)?$`)

// ReviewMarker reports the finalization state of a service's review record.
// Read errors other than absence yield MarkerUnreadable together with the
// error.
func (s *Store) ReviewMarker(incidentID, service string) (MarkerState, error) {
	if err := ValidateKey(incidentID); err != nil {
		return MarkerUnreadable, err
	}
	if err := ValidateKey(service); err != nil {
		return MarkerUnreadable, err
	}
	data, err := s.read("review_marker", ReviewMarkerPath(incidentID, service))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return MarkerMissing, nil
		}
		return MarkerUnreadable, err
	}
	if finalizedLine.Match(data) {
		return MarkerFinalized, nil
	}
	return MarkerPending, nil
}
