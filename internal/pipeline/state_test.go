package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransition(t *testing.T) {
	t.Parallel()
	tests := []struct {
		from, to State
		ok       bool
	}{
		{Idle, Acquiring, true},
		{Acquiring, Provisioning, true},
		{Provisioning, Writing, true},
		{Provisioning, Completed, true},
		{Writing, Completed, true},
		{Acquiring, Failed, true},
		{Provisioning, Failed, true},
		{Writing, Failed, true},

		{Idle, Writing, false},
		{Idle, Failed, false},
		{Acquiring, Writing, false},
		{Writing, Provisioning, false},
		{Completed, Failed, false},
		{Failed, Acquiring, false},
		{Completed, Idle, false},
	}
	for _, tt := range tests {
		err := transition(tt.from, tt.to)
		if tt.ok {
			assert.NoError(t, err, "%s -> %s", tt.from, tt.to)
		} else {
			assert.Error(t, err, "%s -> %s", tt.from, tt.to)
		}
	}
}

func TestStateTerminal(t *testing.T) {
	t.Parallel()
	for _, s := range []State{Idle, Acquiring, Provisioning, Writing} {
		assert.False(t, s.Terminal(), s.String())
	}
	assert.True(t, Completed.Terminal())
	assert.True(t, Failed.Terminal())
	assert.Equal(t, "unknown", State(42).String())
}
