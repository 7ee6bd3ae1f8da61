package workflow

import "time"

// Request asks the machine to move a case to a new state
type Request struct {
	To    State
	Actor Actor

	// ResponsibleID optionally assigns the actor accountable for the case
	// after the transition.
	ResponsibleID string

	Reason string
}

// Outcome is the result of an accepted transition. It carries everything the
// case aggregate needs to update itself.
type Outcome struct {
	From             State
	To               State
	Rule             Rule
	Actor            Actor
	EscalationTarget EscalationTarget
	ResponsibleID    string
	Reason           string
	At               time.Time
}

// Machine tracks the current state of one case and validates transitions
// against the static table.
type Machine struct {
	current State
}

// New creates a machine positioned at the given state
func New(current State) (*Machine, error) {
	if !current.IsValid() {
		return nil, &InvalidStateError{Value: string(current)}
	}
	return &Machine{current: current}, nil
}

// State returns the current state
func (m *Machine) State() State {
	return m.current
}

// Check validates a transition without applying it
func (m *Machine) Check(to State, role Role) (Rule, error) {
	rule, ok := Lookup(m.current, to)
	if !ok {
		return Rule{}, &TransitionError{From: m.current, To: to, Role: role, Err: ErrInvalidTransition}
	}
	if !rule.Permits(role) {
		return Rule{}, &TransitionError{From: m.current, To: to, Role: role, Required: rule.Role, Err: ErrRoleNotPermitted}
	}
	return rule, nil
}

// CanTransition returns true if the role may move the case to the target state
func (m *Machine) CanTransition(to State, role Role) bool {
	_, err := m.Check(to, role)
	return err == nil
}

// Transition validates and applies the request. On rejection the machine's
// state is left unchanged.
func (m *Machine) Transition(req Request, now time.Time) (Outcome, error) {
	rule, err := m.Check(req.To, req.Actor.Role)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{
		From:             m.current,
		To:               req.To,
		Rule:             rule,
		Actor:            req.Actor,
		EscalationTarget: req.To.EscalationTarget(),
		ResponsibleID:    req.ResponsibleID,
		Reason:           req.Reason,
		At:               now,
	}
	m.current = req.To
	return out, nil
}

// Permitted returns the states the role can move the case to from its current state
func (m *Machine) Permitted(role Role) []State {
	var targets []State
	for _, r := range Outgoing(m.current) {
		if r.Permits(role) {
			targets = append(targets, r.To)
		}
	}
	return targets
}
