package faults

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFault_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		fault    *Fault
		expected string
	}{
		{
			name:     "without cause",
			fault:    Configuration("missing key %q", "projects"),
			expected: `configuration fault: missing key "projects"`,
		},
		{
			name:     "with cause",
			fault:    Wrap(KindRegistry, errors.New("connection reset"), "export failed"),
			expected: "registry fault: export failed: connection reset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, tt.fault.Error())
		})
	}
}

func TestFault_Unwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("timeout")
	f := Wrap(KindRegistry, cause, "import failed")

	require.ErrorIs(t, f, cause)
}

func TestKindOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected Kind
	}{
		{
			name:     "direct fault",
			err:      LockConflict("build lock held"),
			expected: KindLockConflict,
		},
		{
			name:     "wrapped fault",
			err:      fmt.Errorf("cycle aborted: %w", Configuration("no attrs")),
			expected: KindConfiguration,
		},
		{
			name:     "plain error classifies as stage",
			err:      errors.New("exit status 1"),
			expected: KindStage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, KindOf(tt.err))
		})
	}
}

func TestIsKind(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("wrapped: %w", Registry("disconnect"))

	assert.True(t, IsKind(err, KindRegistry))
	assert.False(t, IsKind(err, KindConfiguration))
	assert.False(t, IsKind(errors.New("plain"), KindRegistry))
}
