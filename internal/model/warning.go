package model

// Warning is a soft finding. It is reported to the operator but never halts
// the pipeline.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	WarnUnknownPhase             = "unknown_phase"
	WarnSingleService            = "single_service"
	WarnNoPrimaryCandidate       = "no_primary_candidate"
	WarnDuplicateService         = "duplicate_service"
	WarnConfidenceNoExplanation  = "confidence_without_explanation"
	WarnEvidenceQualityRejection = "evidence_quality_rejection"
	WarnNoDecisionData           = "no_decision_data"
)
