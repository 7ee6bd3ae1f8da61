package workflow

import "fmt"

// Role is the opaque role supplied by the identity provider
type Role string

const (
	RoleAdvisor    Role = "advisor"
	RoleOperations Role = "operations"
	RoleMedical    Role = "medical"
	RoleAdmin      Role = "admin"
)

var allRoles = [...]Role{RoleAdvisor, RoleOperations, RoleMedical, RoleAdmin}

// AllRoles returns every known role
func AllRoles() []Role {
	return append([]Role(nil), allRoles[:]...)
}

// IsValid returns true if the role is one of the known roles
func (r Role) IsValid() bool {
	for _, known := range allRoles {
		if r == known {
			return true
		}
	}
	return false
}

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}

// EscalationTarget identifies the specialized reviewer group of an escalated case
type EscalationTarget string

const (
	EscalationNone       EscalationTarget = ""
	EscalationOperations EscalationTarget = "operations"
	EscalationMedical    EscalationTarget = "medical"
)

// IsValid returns true for the empty target and the two reviewer groups
func (t EscalationTarget) IsValid() bool {
	switch t {
	case EscalationNone, EscalationOperations, EscalationMedical:
		return true
	default:
		return false
	}
}

// Actor is the user (or the engine itself) requesting a transition
type Actor struct {
	ID   string
	Role Role
}

// SystemActorID identifies transitions driven by the engine itself
const SystemActorID = "system"

// SystemActor is used for automatic transitions (reconciliation, SLA sweep).
// It carries the administrative role so it is bound only by reachability.
func SystemActor() Actor {
	return Actor{ID: SystemActorID, Role: RoleAdmin}
}

// IsSystem reports whether the actor is the engine itself
func (a Actor) IsSystem() bool {
	return a.ID == SystemActorID
}

// Validate checks the actor carries an identity and a known role
func (a Actor) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("actor id is required")
	}
	if !a.Role.IsValid() {
		return fmt.Errorf("unknown actor role: %q", a.Role)
	}
	return nil
}
