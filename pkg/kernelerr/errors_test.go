package kernelerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	e := New(KindJurisdiction, "actor not allowed")
	assert.Contains(t, e.Error(), "JURISDICTION")
	assert.Contains(t, e.Error(), "actor not allowed")
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("boom")
	e := Wrap(KindAudit, "append failed", cause)
	assert.ErrorIs(t, e, cause)
	assert.Contains(t, e.Error(), "boom")
}

func TestIs(t *testing.T) {
	var err error = New(KindTool, "dispatch failed")
	assert.True(t, Is(err, KindTool))
	assert.False(t, Is(err, KindState))
	assert.False(t, Is(errors.New("plain"), KindTool))
}
