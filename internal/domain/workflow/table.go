package workflow

// Rule is one row of the lifecycle transition table: the role required to
// move a case from one state to another. Business guards (such as "no open
// missing items") are not encoded here; callers check them before asking the
// machine.
type Rule struct {
	From State
	To   State
	Role Role
}

// rules is the complete transition table. Any (from, to) pair not listed is
// unreachable. CLOSED has no outgoing rows.
var rules = [...]Rule{
	{From: StateDraft, To: StateUnderOCRReview, Role: RoleAdvisor},
	{From: StateUnderOCRReview, To: StateMissingItems, Role: RoleAdvisor},
	{From: StateUnderOCRReview, To: StateViable, Role: RoleAdvisor},
	{From: StateMissingItems, To: StateUnderOCRReview, Role: RoleAdvisor},
	{From: StateViable, To: StateEscalatedOperations, Role: RoleOperations},
	{From: StateViable, To: StateEscalatedMedical, Role: RoleOperations},
	{From: StateViable, To: StateReadyForPortal, Role: RoleOperations},
	{From: StateEscalatedOperations, To: StateEscalatedMedical, Role: RoleOperations},
	{From: StateEscalatedOperations, To: StateReadyForPortal, Role: RoleOperations},
	{From: StateEscalatedMedical, To: StateReadyForPortal, Role: RoleMedical},
	{From: StateReadyForPortal, To: StateClosed, Role: RoleOperations},
}

// Rules returns a copy of the transition table
func Rules() []Rule {
	return append([]Rule(nil), rules[:]...)
}

// Lookup returns the rule for moving from one state to another
func Lookup(from, to State) (Rule, bool) {
	for _, r := range rules {
		if r.From == from && r.To == to {
			return r, true
		}
	}
	return Rule{}, false
}

// Outgoing returns every rule leaving the given state
func Outgoing(from State) []Rule {
	var out []Rule
	for _, r := range rules {
		if r.From == from {
			out = append(out, r)
		}
	}
	return out
}

// Permits reports whether the role may initiate the rule. Admin overrides the
// role requirement but never reachability.
func (r Rule) Permits(role Role) bool {
	return role == RoleAdmin || role == r.Role
}
