package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestViolationErrorIncludesContext(t *testing.T) {
	v := &Violation{
		Kind:     KindStateTopology,
		Title:    "invalid state transition",
		Subject:  "INC-2",
		Expected: "MONITORING | RESOLVED",
		Found:    "POSTMORTEM_COMPLETE",
	}
	msg := v.Error()
	assert.Contains(t, msg, "StateTopologyViolation")
	assert.Contains(t, msg, "[INC-2]")
	assert.Contains(t, msg, "found POSTMORTEM_COMPLETE")
	assert.Contains(t, msg, "expected MONITORING | RESOLVED")
}

func TestKindOfThroughWrapping(t *testing.T) {
	base := &Violation{Kind: KindAuthority}
	wrapped := fmt.Errorf("set state: %w", base)

	assert.Equal(t, KindAuthority, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindAuthority))
	assert.False(t, IsKind(wrapped, KindScope))
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("disk full")))
	assert.False(t, IsKind(nil, KindAuthority))
}

func TestViolationUnwrap(t *testing.T) {
	cause := errors.New("permission denied")
	v := &Violation{Kind: KindRecordParse, Err: cause}
	assert.ErrorIs(t, v, cause)
}

func TestActorString(t *testing.T) {
	assert.Equal(t, "Dana (SRE)", Actor{Name: "Dana", Role: "SRE"}.String())
	assert.Equal(t, "Dana", Actor{Name: "Dana"}.String())
}
