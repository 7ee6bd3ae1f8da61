// Package sla grades how long a case has been sitting in its current state.
package sla

import (
	"time"

	"github.com/garyjia/emission-workflow/internal/domain/entity"
	"github.com/garyjia/emission-workflow/internal/domain/workflow"
)

// Severity grades elapsed time against a state's budget
type Severity string

const (
	SeverityOK       Severity = "OK"
	SeverityWarning  Severity = "WARNING"
	SeverityBreached Severity = "BREACHED"
	SeverityHigh     Severity = "HIGH"
)

// IsBreach reports whether the budget has been exceeded
func (s Severity) IsBreach() bool {
	return s == SeverityBreached || s == SeverityHigh
}

// Policy holds per-state processing budgets
type Policy struct {
	Budgets map[workflow.State]time.Duration

	// WarningRatio of the budget marks a case as at risk.
	WarningRatio float64

	// HighRatio of the budget marks a breach as high severity, which is
	// what triggers corrective escalation.
	HighRatio float64
}

// DefaultPolicy returns the production budgets
func DefaultPolicy() Policy {
	return Policy{
		Budgets: map[workflow.State]time.Duration{
			workflow.StateDraft:               24 * time.Hour,
			workflow.StateUnderOCRReview:      4 * time.Hour,
			workflow.StateMissingItems:        72 * time.Hour,
			workflow.StateViable:              24 * time.Hour,
			workflow.StateEscalatedOperations: 48 * time.Hour,
			workflow.StateEscalatedMedical:    72 * time.Hour,
		},
		WarningRatio: 0.8,
		HighRatio:    2.0,
	}
}

// Assessment is the SLA status of one case
type Assessment struct {
	State    workflow.State `json:"state"`
	Elapsed  time.Duration  `json:"elapsed"`
	Budget   time.Duration  `json:"budget"`
	Severity Severity       `json:"severity"`
	Exempt   bool           `json:"exempt"`
}

// ElapsedHours is the elapsed time in hours
func (a Assessment) ElapsedHours() float64 {
	return a.Elapsed.Hours()
}

// Exempt reports whether the state is outside SLA tracking
func Exempt(s workflow.State) bool {
	return s.IsTerminal() || s == workflow.StateReadyForPortal
}

// Assess measures the time since the case's last state change against the
// state's budget. States without a budget are exempt.
func (p Policy) Assess(c *entity.Case, now time.Time) Assessment {
	a := Assessment{State: c.State, Severity: SeverityOK}

	since := c.StateChangedAt
	if since.IsZero() {
		since = c.CreatedAt
	}
	if now.After(since) {
		a.Elapsed = now.Sub(since)
	}

	budget, ok := p.Budgets[c.State]
	if Exempt(c.State) || !ok || budget <= 0 {
		a.Exempt = true
		return a
	}
	a.Budget = budget

	ratio := float64(a.Elapsed) / float64(budget)
	switch {
	case p.HighRatio > 0 && ratio >= p.HighRatio:
		a.Severity = SeverityHigh
	case ratio > 1:
		a.Severity = SeverityBreached
	case p.WarningRatio > 0 && ratio >= p.WarningRatio:
		a.Severity = SeverityWarning
	}
	return a
}

// RequiresForcedEscalation reports whether the sweep must escalate the case
// as a corrective action. Only viable cases are escalated automatically.
func RequiresForcedEscalation(a Assessment) bool {
	return a.State == workflow.StateViable && a.Severity == SeverityHigh
}
