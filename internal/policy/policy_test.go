package policy

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/sherlock/internal/model"
	"github.com/ppiankov/sherlock/internal/record"
)

const paymentsPolicy = `service: payments
owners:
  primary:
    team: payments-core
    contact: payments-oncall@example.com
    escalation:
      slack: "#payments-incidents"
      pager: payments-primary
review_policy:
  allowed_roles: [SRE Lead, Incident Commander, Contractor]
  forbidden_roles: [Contractor]
decision_constraints:
  reject_if_evidence_quality: WEAK
  max_confidence_without_override: 80
  max_confidence_without_evidence_explanation: 70
  require_remediation_for_modified: true
`

func newTestEnforcer(t *testing.T) (*Enforcer, *record.Store) {
	t.Helper()
	store := record.NewStore(t.TempDir())
	require.NoError(t, store.Init())
	e := NewEnforcer(store, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	return e, store
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func loadPayments(t *testing.T) (*Enforcer, *record.Store, *record.ServicePolicy) {
	t.Helper()
	e, store := newTestEnforcer(t)
	writeFile(t, filepath.Join(store.Root(), record.ServicePolicyPath("payments")), paymentsPolicy)
	pol, err := e.LoadPolicy("payments")
	require.NoError(t, err)
	return e, store, pol
}

func intp(v int) *int { return &v }

func TestLoadPolicyMissingIsFatal(t *testing.T) {
	e, _ := newTestEnforcer(t)
	_, err := e.LoadPolicy("payments")

	var v *model.Violation
	require.ErrorAs(t, err, &v)
	assert.Equal(t, model.KindRecordNotFound, v.Kind)
	assert.Contains(t, v.Remedy, DefaultPlatformContact)
	assert.Equal(t, record.ServicePolicyPath("payments"), v.Expected)
}

func TestLoadPolicyCustomContact(t *testing.T) {
	store := record.NewStore(t.TempDir())
	e := NewEnforcer(store, WithPlatformContact("#platform"))
	_, err := e.LoadPolicy("search")
	var v *model.Violation
	require.ErrorAs(t, err, &v)
	assert.Contains(t, v.Remedy, "#platform")
}

func TestLoadPolicyMalformed(t *testing.T) {
	e, store := newTestEnforcer(t)
	writeFile(t, filepath.Join(store.Root(), record.ServicePolicyPath("payments")), "service: [payments\n")
	_, err := e.LoadPolicy("payments")
	assert.True(t, model.IsKind(err, model.KindRecordParse))
}

func TestReviewerAuthority(t *testing.T) {
	_, _, pol := loadPayments(t)

	assert.NoError(t, ValidateReviewerAuthority(pol, "SRE Lead"))
	assert.NoError(t, ValidateReviewerAuthority(pol, "Incident Commander"))

	err := ValidateReviewerAuthority(pol, "Intern")
	var v *model.Violation
	require.ErrorAs(t, err, &v)
	assert.Equal(t, model.KindAuthority, v.Kind)
	assert.Contains(t, v.Remedy, "payments-oncall@example.com")
}

func TestReviewerAuthorityNoAllowedRoles(t *testing.T) {
	pol := &record.ServicePolicy{Service: "search", Owners: record.Owners{Primary: record.Owner{Team: "search"}}}
	err := ValidateReviewerAuthority(pol, "SRE")
	var v *model.Violation
	require.ErrorAs(t, err, &v)
	assert.Equal(t, "(none declared)", v.Expected)
	assert.Contains(t, v.Remedy, "search")
}

// Scenario: a role listed as both forbidden and allowed is denied.
func TestScenarioForbiddenWins(t *testing.T) {
	_, _, pol := loadPayments(t)
	require.Contains(t, pol.ReviewPolicy.AllowedRoles, "Contractor")

	err := ValidateReviewerAuthority(pol, "Contractor")
	var v *model.Violation
	require.ErrorAs(t, err, &v)
	assert.Equal(t, model.KindAuthority, v.Kind)
	assert.Equal(t, "reviewer role is explicitly forbidden", v.Title)
}

func TestEvidenceQualityRequiresRejection(t *testing.T) {
	_, _, pol := loadPayments(t)

	for _, decision := range []string{record.DecisionAccepted, record.DecisionModified, record.DecisionUnknown, "DEFERRED"} {
		d := &record.ReviewDecision{
			Decision:            decision,
			FinalConfidence:     10,
			EvidenceQuality:     "WEAK",
			RemediationPromises: []record.Promise{{Action: "add alert"}},
		}
		_, err := ValidateDecisionConstraints(pol, d)
		assert.True(t, model.IsKind(err, model.KindConstraint), decision)
	}

	warnings, err := ValidateDecisionConstraints(pol, &record.ReviewDecision{
		Decision:        record.DecisionRejected,
		FinalConfidence: 10,
		EvidenceQuality: "WEAK",
	})
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, model.WarnEvidenceQualityRejection, warnings[0].Code)
}

func TestMissingQualityComparesAsUnknown(t *testing.T) {
	pol := &record.ServicePolicy{
		Service:             "search",
		DecisionConstraints: record.DecisionConstraints{RejectIfEvidenceQuality: "UNKNOWN"},
	}
	_, err := ValidateDecisionConstraints(pol, &record.ReviewDecision{Decision: record.DecisionAccepted})
	assert.True(t, model.IsKind(err, model.KindConstraint))
}

func TestConfidenceCeilings(t *testing.T) {
	_, _, pol := loadPayments(t)

	tests := []struct {
		name        string
		decision    record.ReviewDecision
		wantErr     bool
		wantWarning string
	}{
		{"at ceiling", record.ReviewDecision{Decision: "ACCEPTED", FinalConfidence: 70}, false, ""},
		{"needs explanation", record.ReviewDecision{Decision: "ACCEPTED", FinalConfidence: 75}, false, model.WarnConfidenceNoExplanation},
		{"explained", record.ReviewDecision{Decision: "ACCEPTED", FinalConfidence: 75, HasEvidenceExplanation: true}, false, ""},
		{"needs override", record.ReviewDecision{Decision: "ACCEPTED", FinalConfidence: 90, HasEvidenceExplanation: true}, true, ""},
		{"overridden", record.ReviewDecision{Decision: "ACCEPTED", FinalConfidence: 90, HasOverride: true, HasEvidenceExplanation: true}, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			warnings, err := ValidateDecisionConstraints(pol, &tt.decision)
			if tt.wantErr {
				assert.True(t, model.IsKind(err, model.KindConstraint))
			} else {
				assert.NoError(t, err)
			}
			if tt.wantWarning == "" {
				assert.Empty(t, warnings)
			} else {
				require.Len(t, warnings, 1)
				assert.Equal(t, tt.wantWarning, warnings[0].Code)
			}
		})
	}
}

func TestDefaultCeilingIsHundred(t *testing.T) {
	pol := &record.ServicePolicy{Service: "search"}
	warnings, err := ValidateDecisionConstraints(pol, &record.ReviewDecision{Decision: "ACCEPTED", FinalConfidence: 100})
	assert.NoError(t, err)
	assert.Empty(t, warnings)

	pol.DecisionConstraints.MaxConfidenceWithoutOverride = intp(0)
	_, err = ValidateDecisionConstraints(pol, &record.ReviewDecision{Decision: "ACCEPTED", FinalConfidence: 1})
	assert.True(t, model.IsKind(err, model.KindConstraint))
}

func TestRemediationRequiredForModified(t *testing.T) {
	_, _, pol := loadPayments(t)

	_, err := ValidateDecisionConstraints(pol, &record.ReviewDecision{Decision: record.DecisionModified, FinalConfidence: 50})
	assert.True(t, model.IsKind(err, model.KindConstraint))

	_, err = ValidateDecisionConstraints(pol, &record.ReviewDecision{
		Decision:            record.DecisionModified,
		FinalConfidence:     50,
		RemediationPromises: []record.Promise{{Action: "add retry budget"}},
	})
	assert.NoError(t, err)
}

func TestConstraintViolationsCollected(t *testing.T) {
	_, _, pol := loadPayments(t)

	warnings, err := ValidateDecisionConstraints(pol, &record.ReviewDecision{
		Decision:        record.DecisionModified,
		FinalConfidence: 95,
		EvidenceQuality: "WEAK",
	})
	var v *model.Violation
	require.ErrorAs(t, err, &v)
	assert.Len(t, v.Details, 3)
	require.Len(t, warnings, 1)
	assert.Equal(t, model.WarnConfidenceNoExplanation, warnings[0].Code)
}

func TestCheck(t *testing.T) {
	e, store, _ := loadPayments(t)
	decisionPath := filepath.Join(store.Root(), "decision.yaml")

	res, err := e.Check("payments", "SRE Lead", decisionPath)
	require.NoError(t, err)
	assert.False(t, res.Constraints)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, model.WarnNoDecisionData, res.Warnings[0].Code)
	assert.Equal(t, "payments-core", res.Ownership.Team)

	writeFile(t, decisionPath, "decision: ACCEPTED\nfinal_confidence: 60\nevidence_quality: STRONG\n")
	res, err = e.Check("payments", "SRE Lead", decisionPath)
	require.NoError(t, err)
	assert.True(t, res.Constraints)
	assert.Equal(t, "ACCEPTED", res.Decision)
	assert.Empty(t, res.Warnings)

	writeFile(t, decisionPath, "decision: MODIFIED\nfinal_confidence: 60\n")
	_, err = e.Check("payments", "SRE Lead", decisionPath)
	assert.True(t, model.IsKind(err, model.KindConstraint))

	_, err = e.Check("payments", "Contractor", decisionPath)
	assert.True(t, model.IsKind(err, model.KindAuthority))
}

func TestOwnership(t *testing.T) {
	_, _, pol := loadPayments(t)
	view := Ownership(pol)
	assert.Equal(t, "payments", view.Service)
	assert.Equal(t, "payments-oncall@example.com", view.Contact)
	assert.Equal(t, "#payments-incidents", view.Slack)
	assert.Equal(t, "payments-primary", view.Pager)
	assert.Equal(t, []string{"SRE Lead", "Incident Commander", "Contractor"}, view.AllowedRoles)
}
