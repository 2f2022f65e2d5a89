package record

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// Decision values a reviewer may record.
const (
	DecisionAccepted = "ACCEPTED"
	DecisionModified = "MODIFIED"
	DecisionRejected = "REJECTED"
	DecisionUnknown  = "UNKNOWN"
)

// Promise is one remediation commitment attached to a review decision. It
// may be written as a bare string or as a mapping.
type Promise struct {
	Action string `yaml:"action" json:"action"`
	Owner  string `yaml:"owner,omitempty" json:"owner,omitempty"`
	Due    string `yaml:"due,omitempty" json:"due,omitempty"`
}

// UnmarshalYAML accepts both scalar and mapping forms.
func (p *Promise) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		p.Action = node.Value
		return nil
	}
	type plain Promise
	var v plain
	if err := node.Decode(&v); err != nil {
		return err
	}
	*p = Promise(v)
	return nil
}

// ReviewDecision is the reviewer's input for a service within an incident.
// It is read from a file supplied by the caller and never persisted here.
type ReviewDecision struct {
	Decision               string    `yaml:"decision" json:"decision"`
	FinalConfidence        int       `yaml:"final_confidence" json:"final_confidence" validate:"gte=0,lte=100"`
	EvidenceQuality        string    `yaml:"evidence_quality,omitempty" json:"evidence_quality,omitempty"`
	HasOverride            bool      `yaml:"has_override" json:"has_override"`
	HasEvidenceExplanation bool      `yaml:"has_evidence_explanation" json:"has_evidence_explanation"`
	RemediationPromises    []Promise `yaml:"remediation_promises,omitempty" json:"remediation_promises,omitempty"`
}

// LoadDecision reads a review decision from an arbitrary path. A missing file
// yields an error wrapping ErrNotFound. An absent decision value reads as
// UNKNOWN.
func LoadDecision(path string) (*ReviewDecision, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var d ReviewDecision
	if err := decode(path, data, &d, false); err != nil {
		return nil, err
	}
	if d.Decision == "" {
		d.Decision = DecisionUnknown
	}
	return &d, nil
}
