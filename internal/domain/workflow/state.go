package workflow

// State represents a lifecycle state of an emission case
type State string

const (
	StateDraft               State = "DRAFT"
	StateUnderOCRReview      State = "UNDER_OCR_REVIEW"
	StateMissingItems        State = "MISSING_ITEMS"
	StateViable              State = "VIABLE"
	StateEscalatedOperations State = "ESCALATED_OPERATIONS"
	StateEscalatedMedical    State = "ESCALATED_MEDICAL"
	StateReadyForPortal      State = "READY_FOR_PORTAL"
	StateClosed              State = "CLOSED"
)

// InitialState is the state every case is created in
const InitialState = StateDraft

var allStates = [...]State{
	StateDraft,
	StateUnderOCRReview,
	StateMissingItems,
	StateViable,
	StateEscalatedOperations,
	StateEscalatedMedical,
	StateReadyForPortal,
	StateClosed,
}

// AllStates returns every lifecycle state in declaration order
func AllStates() []State {
	return append([]State(nil), allStates[:]...)
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	return s == StateClosed
}

// IsEscalation reports whether the state routes the case to a specialized reviewer
func (s State) IsEscalation() bool {
	return s == StateEscalatedOperations || s == StateEscalatedMedical
}

// EscalationTarget returns the reviewer group implied by the state, or
// EscalationNone for non-escalation states.
func (s State) EscalationTarget() EscalationTarget {
	switch s {
	case StateEscalatedOperations:
		return EscalationOperations
	case StateEscalatedMedical:
		return EscalationMedical
	default:
		return EscalationNone
	}
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid lifecycle state
func (s State) IsValid() bool {
	for _, known := range allStates {
		if s == known {
			return true
		}
	}
	return false
}

// ParseState converts a stored value into a State
func ParseState(raw string) (State, error) {
	s := State(raw)
	if !s.IsValid() {
		return "", &InvalidStateError{Value: raw}
	}
	return s, nil
}
