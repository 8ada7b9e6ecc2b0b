package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to string }{
		{StatePending, StateDebitConfirmed},
		{StatePending, StateFailed},
		{StateDebitConfirmed, StateCreditConfirmed},
		{StateDebitConfirmed, StateCompleted},
		{StateDebitConfirmed, StateCompensatingDebit},
		{StateDebitConfirmed, StateFailed},
		{StateCreditConfirmed, StateCompleted},
		{StateCreditConfirmed, StateFailed},
		{StateCompensatingDebit, StateFailed},
	}
	for _, tc := range allowed {
		assert.True(t, CanTransition(tc.from, tc.to), "%s -> %s should be allowed", tc.from, tc.to)
	}

	forbidden := []struct{ from, to string }{
		{StatePending, StateCompleted},
		{StatePending, StateCreditConfirmed},
		{StatePending, StateCompensatingDebit},
		{StateCompleted, StateFailed},
		{StateCompleted, StatePending},
		{StateFailed, StatePending},
		{StateFailed, StateCompleted},
		{StateCreditConfirmed, StateCompensatingDebit},
		{StateCompensatingDebit, StateCompleted},
		{StateDebitConfirmed, StatePending},
	}
	for _, tc := range forbidden {
		assert.False(t, CanTransition(tc.from, tc.to), "%s -> %s should be forbidden", tc.from, tc.to)
	}
}

func TestIsTerminalState(t *testing.T) {
	assert.True(t, IsTerminalState(StateCompleted))
	assert.True(t, IsTerminalState(StateFailed))
	assert.False(t, IsTerminalState(StatePending))
	assert.False(t, IsTerminalState(StateDebitConfirmed))
	assert.False(t, IsTerminalState(StateCreditConfirmed))
	assert.False(t, IsTerminalState(StateCompensatingDebit))
}
