package policy

import (
	"fmt"

	"github.com/ppiankov/sherlock/internal/model"
	"github.com/ppiankov/sherlock/internal/record"
)

// defaultMaxConfidence applies when a policy sets no ceiling.
const defaultMaxConfidence = 100

// qualityUnknown stands in for a decision that does not state its evidence
// quality.
const qualityUnknown = "UNKNOWN"

// ValidateDecisionConstraints checks a review decision against the policy's
// decision constraints. Every check runs regardless of earlier failures; all
// hard failures are returned together as one ConstraintViolation. A high
// confidence without an evidence explanation is a warning only.
func ValidateDecisionConstraints(pol *record.ServicePolicy, d *record.ReviewDecision) ([]model.Warning, error) {
	c := pol.DecisionConstraints
	var (
		problems []string
		warnings []model.Warning
	)

	quality := d.EvidenceQuality
	if quality == "" {
		quality = qualityUnknown
	}
	if c.RejectIfEvidenceQuality != "" && quality == c.RejectIfEvidenceQuality {
		if d.Decision != record.DecisionRejected {
			problems = append(problems, fmt.Sprintf(
				"evidence quality is %s: policy requires decision REJECTED, got %s", quality, d.Decision))
		} else {
			warnings = append(warnings, model.Warning{
				Code:    model.WarnEvidenceQualityRejection,
				Message: fmt.Sprintf("evidence quality %s: decision correctly REJECTED", quality),
			})
		}
	}

	maxOverride := ceiling(c.MaxConfidenceWithoutOverride)
	if d.FinalConfidence > maxOverride && !d.HasOverride {
		problems = append(problems, fmt.Sprintf(
			"final confidence %d%% exceeds %d%% without override: lower confidence or document the override rationale",
			d.FinalConfidence, maxOverride))
	}

	maxExplanation := ceiling(c.MaxConfidenceWithoutExplanation)
	if d.FinalConfidence > maxExplanation && !d.HasEvidenceExplanation {
		warnings = append(warnings, model.Warning{
			Code: model.WarnConfidenceNoExplanation,
			Message: fmt.Sprintf("final confidence %d%% exceeds %d%% without an evidence explanation",
				d.FinalConfidence, maxExplanation),
		})
	}

	if c.RequireRemediationForModified && d.Decision == record.DecisionModified && len(d.RemediationPromises) == 0 {
		problems = append(problems, "MODIFIED decisions must include remediation promises")
	}

	if len(problems) > 0 {
		return warnings, &model.Violation{
			Kind:    model.KindConstraint,
			Title:   fmt.Sprintf("decision violates %d policy constraint(s)", len(problems)),
			Subject: pol.Service,
			Found:   d.Decision,
			Details: problems,
			Remedy:  "revise the review decision so it satisfies the service's decision constraints",
		}
	}
	return warnings, nil
}

func ceiling(v *int) int {
	if v == nil {
		return defaultMaxConfidence
	}
	return *v
}
