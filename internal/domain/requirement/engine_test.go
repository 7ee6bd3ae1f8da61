package requirement

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/emission-workflow/internal/domain/entity"
	"github.com/garyjia/emission-workflow/internal/domain/workflow"
)

var now = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func newCase(et entity.EmissionType, pt entity.PersonType) *entity.Case {
	return &entity.Case{
		ID:           uuid.New(),
		EmissionType: et,
		PersonType:   pt,
		Metadata:     entity.EmptyMetadata(et),
		State:        workflow.StateDraft,
	}
}

func amount(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func daysAgo(n int) *time.Time {
	t := now.Add(-time.Duration(n) * 24 * time.Hour)
	return &t
}

func TestRequiredDocuments(t *testing.T) {
	engine := NewEngine(DefaultRuleSet())

	tests := []struct {
		name  string
		build func() *entity.Case
		want  Set
	}{
		{
			name:  "base individual",
			build: func() *entity.Case { return newCase(entity.EmissionNewBusiness, entity.PersonIndividual) },
			want:  NewSet(entity.KindPrimaryApplication),
		},
		{
			name: "invoicing adds fiscal proof",
			build: func() *entity.Case {
				c := newCase(entity.EmissionNewBusiness, entity.PersonIndividual)
				c.RequiresInvoice = true
				return c
			},
			want: NewSet(entity.KindPrimaryApplication, entity.KindFiscalStandingProof),
		},
		{
			name: "individual above threshold needs official id",
			build: func() *entity.Case {
				c := newCase(entity.EmissionNewBusiness, entity.PersonIndividual)
				c.Amount = amount(500001)
				return c
			},
			want: NewSet(entity.KindPrimaryApplication, entity.KindOfficialID),
		},
		{
			name: "individual at threshold does not",
			build: func() *entity.Case {
				c := newCase(entity.EmissionNewBusiness, entity.PersonIndividual)
				c.Amount = amount(500000)
				return c
			},
			want: NewSet(entity.KindPrimaryApplication),
		},
		{
			name: "absent amount never fires the threshold rule",
			build: func() *entity.Case {
				return newCase(entity.EmissionWorldwideLink, entity.PersonIndividual)
			},
			want: NewSet(entity.KindPrimaryApplication),
		},
		{
			name: "legal entity with invoicing",
			build: func() *entity.Case {
				c := newCase(entity.EmissionNewBusiness, entity.PersonLegalEntity)
				c.RequiresInvoice = true
				return c
			},
			want: NewSet(
				entity.KindPrimaryApplication,
				entity.KindClientRegistrationForm,
				entity.KindIncorporationDeed,
				entity.KindFiscalStandingProof,
				entity.KindOfficialID,
			),
		},
		{
			name: "period elimination from individual policy",
			build: func() *entity.Case {
				c := newCase(entity.EmissionPeriodElimination, entity.PersonIndividual)
				c.Metadata = entity.PeriodEliminationMetadata{Origin: entity.OriginIndividual}
				return c
			},
			want: NewSet(entity.KindPrimaryApplication, entity.KindPriorPolicyCoverPage, entity.KindPaymentProof),
		},
		{
			name: "period elimination from group policy",
			build: func() *entity.Case {
				c := newCase(entity.EmissionPeriodElimination, entity.PersonIndividual)
				c.Metadata = entity.PeriodEliminationMetadata{Origin: entity.OriginGroup}
				return c
			},
			want: NewSet(entity.KindPrimaryApplication, entity.KindPriorPolicyCertificate, entity.KindSeniorityLetter),
		},
		{
			name: "period elimination with undetermined origin contributes nothing",
			build: func() *entity.Case {
				return newCase(entity.EmissionPeriodElimination, entity.PersonIndividual)
			},
			want: NewSet(entity.KindPrimaryApplication),
		},
		{
			name: "individual conversion",
			build: func() *entity.Case {
				return newCase(entity.EmissionIndividualConversion, entity.PersonIndividual)
			},
			want: NewSet(entity.KindPrimaryApplication, entity.KindPriorPolicyCertificate, entity.KindEmploymentTerminationLetter),
		},
		{
			name: "carrier connection",
			build: func() *entity.Case {
				return newCase(entity.EmissionCarrierConnection, entity.PersonIndividual)
			},
			want: NewSet(entity.KindPrimaryApplication, entity.KindEmploymentTerminationLetter, entity.KindPriorPolicyCertificate),
		},
		{
			name: "declarations",
			build: func() *entity.Case {
				c := newCase(entity.EmissionNewBusiness, entity.PersonIndividual)
				c.RiskActivities = []string{"buceo"}
				c.MedicalConditions = "diabetes tipo 2"
				c.RiskFlag = true
				return c
			},
			want: NewSet(
				entity.KindPrimaryApplication,
				entity.KindRiskActivityQuestionnaire,
				entity.KindMedicalExpansionForm,
				entity.KindSelectiveRiskQuestionnaire,
			),
		},
		{
			name: "literal none and blank activities are not declarations",
			build: func() *entity.Case {
				c := newCase(entity.EmissionNewBusiness, entity.PersonIndividual)
				c.RiskActivities = []string{"", "  "}
				c.MedicalConditions = "none"
				return c
			},
			want: NewSet(entity.KindPrimaryApplication),
		},
		{
			name: "mismatched metadata contributes nothing",
			build: func() *entity.Case {
				c := newCase(entity.EmissionPeriodElimination, entity.PersonIndividual)
				c.Metadata = entity.WorldwideLinkMetadata{Destination: "Lima"}
				return c
			},
			want: NewSet(entity.KindPrimaryApplication),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engine.RequiredDocuments(tt.build())
			assert.Equal(t, tt.want.Sorted(), got.Sorted())
		})
	}
}

func TestRequiredDocuments_DeterministicAndOrderIndependent(t *testing.T) {
	engine := NewEngine(DefaultRuleSet())

	c := newCase(entity.EmissionCarrierConnection, entity.PersonLegalEntity)
	c.RequiresInvoice = true
	c.RiskActivities = []string{"motociclismo", "alpinismo"}
	c.RiskFlag = true

	first := engine.RequiredDocuments(c)
	second := engine.RequiredDocuments(c)
	assert.True(t, first.Equal(second))

	c.RiskActivities = []string{"alpinismo", "motociclismo"}
	assert.True(t, first.Equal(engine.RequiredDocuments(c)))
}

func TestFindings(t *testing.T) {
	engine := NewEngine(DefaultRuleSet())

	t.Run("missing classification", func(t *testing.T) {
		c := &entity.Case{ID: uuid.New()}
		codes := findingCodes(engine.Findings(c, now))
		assert.ElementsMatch(t, []string{FindingEmissionTypeMissing, FindingPersonTypeMissing}, codes)
	})

	t.Run("emission type outside the closed set", func(t *testing.T) {
		c := &entity.Case{ID: uuid.New(), EmissionType: "reinsurance", PersonType: entity.PersonIndividual}
		findings := engine.Findings(c, now)
		require.Len(t, findings, 1)
		assert.Equal(t, FindingEmissionTypeInvalid, findings[0].Code)
		assert.True(t, findings[0].Blocking())
	})

	t.Run("invalid person type", func(t *testing.T) {
		c := newCase(entity.EmissionNewBusiness, "cooperative")
		assert.Equal(t, []string{FindingPersonTypeInvalid}, findingCodes(engine.Findings(c, now)))
	})

	t.Run("metadata mismatch", func(t *testing.T) {
		c := newCase(entity.EmissionCarrierConnection, entity.PersonIndividual)
		c.Metadata = entity.NewBusinessMetadata{}
		assert.Equal(t, []string{FindingMetadataMismatch}, findingCodes(engine.Findings(c, now)))
	})

	t.Run("seniority gap of 45 days is advisory", func(t *testing.T) {
		c := newCase(entity.EmissionPeriodElimination, entity.PersonIndividual)
		c.Metadata = entity.PeriodEliminationMetadata{Origin: entity.OriginGroup, PriorCoverageEnd: daysAgo(45)}

		findings := engine.Findings(c, now)
		require.Len(t, findings, 1)
		assert.Equal(t, FindingSeniorityGap, findings[0].Code)
		assert.Equal(t, SeverityAdvisory, findings[0].Severity)
		assert.False(t, findings[0].Blocking())
	})

	t.Run("gap within 30 days is fine", func(t *testing.T) {
		c := newCase(entity.EmissionPeriodElimination, entity.PersonIndividual)
		c.Metadata = entity.PeriodEliminationMetadata{Origin: entity.OriginGroup, PriorCoverageEnd: daysAgo(30)}
		assert.Empty(t, engine.Findings(c, now))
	})

	t.Run("clean case", func(t *testing.T) {
		assert.Empty(t, engine.Findings(newCase(entity.EmissionWorldwideLink, entity.PersonLegalEntity), now))
	})
}

func TestEngine_CustomRuleSet(t *testing.T) {
	engine := NewEngine(RuleSet{OfficialIDThreshold: decimal.NewFromInt(1000), SeniorityGapDays: 10})

	c := newCase(entity.EmissionPeriodElimination, entity.PersonIndividual)
	c.Amount = amount(1500)
	c.Metadata = entity.PeriodEliminationMetadata{Origin: entity.OriginIndividual, PriorCoverageEnd: daysAgo(11)}

	eval := engine.Evaluate(c, now)
	assert.True(t, eval.Required.Has(entity.KindOfficialID))
	assert.Equal(t, []string{FindingSeniorityGap}, findingCodes(eval.Findings))
}

func TestEngine_ThresholdFollowsCaseCurrency(t *testing.T) {
	engine := NewEngine(RuleSet{
		OfficialIDThreshold: decimal.NewFromInt(500000),
		CurrencyThresholds:  map[string]decimal.Decimal{"USD": decimal.NewFromInt(25000)},
		SeniorityGapDays:    30,
	})

	tests := []struct {
		name     string
		currency string
		amount   int64
		wantID   bool
		findings []string
	}{
		{"default currency below", "", 400000, false, nil},
		{"explicit default above", "MXN", 600000, true, nil},
		{"usd below its own threshold", "USD", 20000, false, nil},
		{"usd above its threshold but below the peso one", "usd", 30000, true, nil},
		{"currency without threshold", "EUR", 10, true, []string{FindingCurrencyUnrated}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCase(entity.EmissionNewBusiness, entity.PersonIndividual)
			c.Currency = tt.currency
			c.Amount = amount(tt.amount)

			eval := engine.Evaluate(c, now)
			assert.Equal(t, tt.wantID, eval.Required.Has(entity.KindOfficialID))
			if tt.findings == nil {
				assert.NotContains(t, findingCodes(eval.Findings), FindingCurrencyUnrated)
			} else {
				assert.Subset(t, findingCodes(eval.Findings), tt.findings)
			}
		})
	}
}

func TestRuleSet_ThresholdFor(t *testing.T) {
	rules := DefaultRuleSet()

	mxn, ok := rules.ThresholdFor("")
	require.True(t, ok)
	assert.True(t, mxn.Equal(decimal.NewFromInt(500000)))

	_, ok = rules.ThresholdFor("JPY")
	assert.False(t, ok)

	rules.CurrencyThresholds = map[string]decimal.Decimal{"MXN": decimal.NewFromInt(1)}
	mxn, ok = rules.ThresholdFor("mxn")
	require.True(t, ok)
	assert.True(t, mxn.Equal(decimal.NewFromInt(1)))
}

func findingCodes(findings []Finding) []string {
	codes := make([]string, 0, len(findings))
	for _, f := range findings {
		codes = append(codes, f.Code)
	}
	return codes
}
