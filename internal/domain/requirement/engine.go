// Package requirement computes which documents an emission must carry and
// which data problems it has. Every function is pure.
package requirement

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/emission-workflow/internal/domain/entity"
)

// RuleSet holds the tunable values of the rule engine
type RuleSet struct {
	// OfficialIDThreshold is the amount, in entity.DefaultCurrency, above
	// which an individual must present an official ID.
	OfficialIDThreshold decimal.Decimal

	// CurrencyThresholds overrides the threshold per ISO currency code.
	// Amounts in a currency with no threshold always require the ID.
	CurrencyThresholds map[string]decimal.Decimal

	// SeniorityGapDays is how long a prior coverage may have ended before
	// seniority continuity is considered lost.
	SeniorityGapDays int
}

// DefaultRuleSet returns the production rule values
func DefaultRuleSet() RuleSet {
	return RuleSet{
		OfficialIDThreshold: decimal.NewFromInt(500000),
		SeniorityGapDays:    30,
	}
}

// ThresholdFor returns the official ID threshold that applies to amounts
// in currency. An empty currency means the default one.
func (r RuleSet) ThresholdFor(currency string) (decimal.Decimal, bool) {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" {
		code = entity.DefaultCurrency
	}
	if t, ok := r.CurrencyThresholds[code]; ok {
		return t, true
	}
	if code == entity.DefaultCurrency {
		return r.OfficialIDThreshold, true
	}
	return decimal.Decimal{}, false
}

// Evaluation bundles the output of one rule engine run
type Evaluation struct {
	Required Set
	Findings []Finding
}

// Engine evaluates requirement rules for a case
type Engine struct {
	rules RuleSet
}

// NewEngine creates a rule engine with the given values
func NewEngine(rules RuleSet) *Engine {
	return &Engine{rules: rules}
}

// Rules returns the values the engine was built with
func (e *Engine) Rules() RuleSet {
	return e.rules
}

// Evaluate runs both the document rules and the findings
func (e *Engine) Evaluate(c *entity.Case, now time.Time) Evaluation {
	return Evaluation{
		Required: e.RequiredDocuments(c),
		Findings: e.Findings(c, now),
	}
}

// RequiredDocuments returns the set of document kinds the case must satisfy
func (e *Engine) RequiredDocuments(c *entity.Case) Set {
	req := NewSet(entity.KindPrimaryApplication)

	if c.RequiresInvoice {
		req.Add(entity.KindFiscalStandingProof)
	}

	switch c.PersonType {
	case entity.PersonIndividual:
		if e.amountNeedsOfficialID(c) {
			req.Add(entity.KindOfficialID)
		}
	case entity.PersonLegalEntity:
		req.Add(
			entity.KindClientRegistrationForm,
			entity.KindIncorporationDeed,
			entity.KindFiscalStandingProof,
			entity.KindOfficialID,
		)
	}

	e.addTypeSpecific(req, c)

	if len(c.DeclaredRiskActivities()) > 0 {
		req.Add(entity.KindRiskActivityQuestionnaire)
	}
	if c.HasMedicalConditions() {
		req.Add(entity.KindMedicalExpansionForm)
	}
	if c.RiskFlag {
		req.Add(entity.KindSelectiveRiskQuestionnaire)
	}

	return req
}

func (e *Engine) amountNeedsOfficialID(c *entity.Case) bool {
	if c.Amount == nil {
		return false
	}
	threshold, ok := e.rules.ThresholdFor(c.Currency)
	if !ok {
		return true
	}
	return c.Amount.GreaterThan(threshold)
}

// addTypeSpecific applies the emission-type rules. Only metadata matching the
// emission type contributes; a mismatch is reported by Findings instead.
func (e *Engine) addTypeSpecific(req Set, c *entity.Case) {
	switch c.EmissionType {
	case entity.EmissionPeriodElimination:
		md, ok := c.Metadata.(entity.PeriodEliminationMetadata)
		if !ok {
			return
		}
		switch md.Origin {
		case entity.OriginIndividual:
			req.Add(entity.KindPriorPolicyCoverPage, entity.KindPaymentProof)
		case entity.OriginGroup:
			req.Add(entity.KindPriorPolicyCertificate, entity.KindSeniorityLetter)
		}
	case entity.EmissionIndividualConversion:
		req.Add(entity.KindPriorPolicyCertificate, entity.KindEmploymentTerminationLetter)
	case entity.EmissionCarrierConnection:
		req.Add(entity.KindEmploymentTerminationLetter, entity.KindPriorPolicyCertificate)
	case entity.EmissionNewBusiness, entity.EmissionWorldwideLink:
	}
}

// Findings returns the non-document validation results for the case
func (e *Engine) Findings(c *entity.Case, now time.Time) []Finding {
	var findings []Finding

	switch {
	case c.EmissionType == "":
		findings = append(findings, Finding{
			Code:     FindingEmissionTypeMissing,
			Field:    "emission_type",
			Message:  "El tipo de emisión no ha sido capturado",
			Severity: SeverityBlocking,
		})
	case !c.EmissionType.IsValid():
		findings = append(findings, Finding{
			Code:     FindingEmissionTypeInvalid,
			Field:    "emission_type",
			Message:  fmt.Sprintf("Tipo de emisión desconocido: %q", c.EmissionType),
			Severity: SeverityBlocking,
		})
	case c.Metadata != nil && c.Metadata.EmissionType() != c.EmissionType:
		findings = append(findings, Finding{
			Code:     FindingMetadataMismatch,
			Field:    "metadata",
			Message:  fmt.Sprintf("Los datos adicionales corresponden a %s, no a %s", c.Metadata.EmissionType(), c.EmissionType),
			Severity: SeverityBlocking,
		})
	}

	switch {
	case c.PersonType == "":
		findings = append(findings, Finding{
			Code:     FindingPersonTypeMissing,
			Field:    "person_type",
			Message:  "El tipo de persona no ha sido capturado",
			Severity: SeverityBlocking,
		})
	case !c.PersonType.IsValid():
		findings = append(findings, Finding{
			Code:     FindingPersonTypeInvalid,
			Field:    "person_type",
			Message:  fmt.Sprintf("Tipo de persona desconocido: %q", c.PersonType),
			Severity: SeverityBlocking,
		})
	}

	if c.PersonType == entity.PersonIndividual && c.Amount != nil {
		if _, ok := e.rules.ThresholdFor(c.Currency); !ok {
			findings = append(findings, Finding{
				Code:     FindingCurrencyUnrated,
				Field:    "currency",
				Message:  fmt.Sprintf("No hay umbral de identificación para la moneda %s; se solicita identificación oficial", c.Currency),
				Severity: SeverityAdvisory,
			})
		}
	}

	if f, ok := e.seniorityGap(c, now); ok {
		findings = append(findings, f)
	}

	return findings
}

func (e *Engine) seniorityGap(c *entity.Case, now time.Time) (Finding, bool) {
	if c.EmissionType != entity.EmissionPeriodElimination {
		return Finding{}, false
	}
	md, ok := c.Metadata.(entity.PeriodEliminationMetadata)
	if !ok || md.PriorCoverageEnd == nil {
		return Finding{}, false
	}

	limit := time.Duration(e.rules.SeniorityGapDays) * 24 * time.Hour
	gap := now.Sub(*md.PriorCoverageEnd)
	if gap <= limit {
		return Finding{}, false
	}

	return Finding{
		Code:  FindingSeniorityGap,
		Field: "metadata.prior_coverage_end",
		Message: fmt.Sprintf("La cobertura anterior terminó hace %d días (más de %d); se pierde la continuidad de antigüedad",
			int(gap.Hours()/24), e.rules.SeniorityGapDays),
		Severity: SeverityAdvisory,
	}, true
}
