package domain

import "strings"

// Transfer states. A record's state only moves forward through this lattice,
// never backward, except into FAILED from any non-terminal state.
const (
	StatePending           = "PENDING"
	StateDebitConfirmed    = "DEBIT_CONFIRMED"
	StateCreditConfirmed   = "CREDIT_CONFIRMED"
	StateCompleted         = "COMPLETED"
	StateCompensatingDebit = "COMPENSATING_DEBIT"
	StateFailed            = "FAILED"
)

// Saga step names recorded in the ledger.
const (
	StepValidate   = "validate"
	StepDebit      = "debit"
	StepCredit     = "credit"
	StepCompensate = "compensate"
	StepCancel     = "cancel"
)

// Step outcomes.
const (
	StepStatusStarted   = "STARTED"
	StepStatusConfirmed = "CONFIRMED"
	StepStatusRejected  = "REJECTED"
	StepStatusTimedOut  = "TIMED_OUT"
)

var transferTransitions = map[string]map[string]struct{}{
	StatePending: {
		StateDebitConfirmed: {},
		StateFailed:         {},
	},
	StateDebitConfirmed: {
		StateCreditConfirmed:   {},
		StateCompleted:         {},
		StateCompensatingDebit: {},
		StateFailed:            {},
	},
	StateCreditConfirmed: {
		StateCompleted: {},
		StateFailed:    {},
	},
	StateCompensatingDebit: {
		StateFailed: {},
	},
	StateCompleted: {},
	StateFailed:    {},
}

func normalizeState(state string) string {
	return strings.ToUpper(strings.TrimSpace(state))
}

// CanTransition reports whether a transfer may move from current to next.
func CanTransition(current, next string) bool {
	current = normalizeState(current)
	next = normalizeState(next)
	nextStates, ok := transferTransitions[current]
	if !ok {
		return false
	}
	_, ok = nextStates[next]
	return ok
}

// IsTerminalState reports whether no further transitions are possible.
func IsTerminalState(state string) bool {
	return len(transferTransitions[normalizeState(state)]) == 0
}
