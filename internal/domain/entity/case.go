package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/garyjia/emission-workflow/internal/domain/workflow"
)

// Case is an emission: one insurance application under processing. It is the
// aggregate root for documents and missing items.
type Case struct {
	ID    uuid.UUID `json:"id"`
	Folio string    `json:"folio"`

	EmissionType    EmissionType     `json:"emission_type"`
	PersonType      PersonType       `json:"person_type"`
	RequiresInvoice bool             `json:"requires_invoice"`
	Amount          *decimal.Decimal `json:"amount,omitempty"`
	Currency        string           `json:"currency"`

	RiskActivities    []string `json:"risk_activities"`
	RiskFlag          bool     `json:"risk_flag"`
	MedicalConditions string   `json:"medical_conditions"`

	Metadata Metadata `json:"metadata,omitempty"`

	// Waivers are document kinds an operator resolved by hand. A waiver holds
	// only while its kind stays required.
	Waivers []DocumentKind `json:"waivers,omitempty"`

	State            workflow.State            `json:"state"`
	EscalationTarget workflow.EscalationTarget `json:"escalation_target,omitempty"`
	ResponsibleID    string                    `json:"responsible_id,omitempty"`

	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	StateChangedAt time.Time `json:"state_changed_at"`
}

// FolioFor formats the human-readable folio for a year-scoped sequence number
func FolioFor(year int, seq int64) string {
	return fmt.Sprintf("EM-%04d-%06d", year, seq)
}

// Touch advances UpdatedAt. The stamp never moves backwards even if the
// clock does.
func (c *Case) Touch(now time.Time) {
	if !now.After(c.UpdatedAt) {
		now = c.UpdatedAt.Add(time.Microsecond)
	}
	c.UpdatedAt = now
}

// ApplyTransition copies an accepted state machine outcome onto the case
func (c *Case) ApplyTransition(out workflow.Outcome) {
	c.State = out.To
	c.EscalationTarget = out.EscalationTarget
	if out.ResponsibleID != "" {
		c.ResponsibleID = out.ResponsibleID
	}
	c.Touch(out.At)
	c.StateChangedAt = c.UpdatedAt
}

// Validate checks the aggregate invariants that can be verified without the
// owned collections.
func (c *Case) Validate() error {
	if c.ID == uuid.Nil {
		return fmt.Errorf("case id is required")
	}
	if !c.State.IsValid() {
		return &workflow.InvalidStateError{Value: string(c.State)}
	}
	if !c.EscalationTarget.IsValid() {
		return fmt.Errorf("invalid escalation target %q", c.EscalationTarget)
	}
	if c.State.IsEscalation() != (c.EscalationTarget != workflow.EscalationNone) {
		return fmt.Errorf("escalation target %q inconsistent with state %s", c.EscalationTarget, c.State)
	}
	if c.State.IsEscalation() && c.State.EscalationTarget() != c.EscalationTarget {
		return fmt.Errorf("escalation target %q does not match state %s", c.EscalationTarget, c.State)
	}
	return nil
}

// Waive records an operator override for a document kind
func (c *Case) Waive(kind DocumentKind) {
	if c.IsWaived(kind) {
		return
	}
	waivers := make([]DocumentKind, 0, len(c.Waivers)+1)
	waivers = append(waivers, c.Waivers...)
	c.Waivers = append(waivers, kind)
}

// IsWaived reports whether kind is currently waived
func (c *Case) IsWaived(kind DocumentKind) bool {
	for _, k := range c.Waivers {
		if k == kind {
			return true
		}
	}
	return false
}

// RetainWaivers drops the waivers whose kind is no longer required and
// reports whether any was dropped.
func (c *Case) RetainWaivers(required func(DocumentKind) bool) bool {
	var kept []DocumentKind
	for _, k := range c.Waivers {
		if required(k) {
			kept = append(kept, k)
		}
	}
	if len(kept) == len(c.Waivers) {
		return false
	}
	c.Waivers = kept
	return true
}

// HasMedicalConditions reports whether medical conditions were declared.
// The literal "none" (or its Spanish form) counts as no declaration.
func (c *Case) HasMedicalConditions() bool {
	v := strings.ToLower(strings.TrimSpace(c.MedicalConditions))
	switch v {
	case "", "none", "ninguna", "ninguno", "n/a":
		return false
	default:
		return true
	}
}

// DeclaredRiskActivities returns the non-blank declared activities
func (c *Case) DeclaredRiskActivities() []string {
	var out []string
	for _, a := range c.RiskActivities {
		if strings.TrimSpace(a) != "" {
			out = append(out, a)
		}
	}
	return out
}
