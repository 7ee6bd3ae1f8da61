package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/emission-workflow/internal/domain/entity"
	"github.com/garyjia/emission-workflow/internal/domain/event"
	"github.com/garyjia/emission-workflow/internal/domain/sla"
	domainwf "github.com/garyjia/emission-workflow/internal/domain/workflow"
)

func agedCase(state domainwf.State, age time.Duration) *entity.Case {
	c := newBusinessCase(state)
	c.StateChangedAt = testNow.Add(-age)
	if state.IsEscalation() {
		c.EscalationTarget = state.EscalationTarget()
	}
	return c
}

func TestSweepSLA_IsolatesCorruptCases(t *testing.T) {
	h := newHarness(t, WithSweepConcurrency(2))
	healthyA := h.store.addCase(agedCase(domainwf.StateDraft, time.Hour))
	healthyB := h.store.addCase(agedCase(domainwf.StateMissingItems, 10*time.Hour))
	corrupt := h.store.addCase(agedCase(domainwf.StateDraft, time.Hour))
	h.store.getErr[corrupt.ID] = errors.New("malformed metadata column")

	report, err := h.orch.SweepSLA(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Results, 2)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, corrupt.ID, report.Failures[0].CaseID)

	ids := []string{report.Results[0].CaseID.String(), report.Results[1].CaseID.String()}
	assert.ElementsMatch(t, []string{healthyA.ID.String(), healthyB.ID.String()}, ids)
}

func TestSweepSLA_InvalidStoredStateIsAnItemError(t *testing.T) {
	h := newHarness(t)
	h.store.addCase(agedCase(domainwf.StateDraft, time.Hour))
	bad := agedCase(domainwf.StateDraft, time.Hour)
	bad.State = domainwf.State("ARCHIVED")
	h.store.addCase(bad)

	report, err := h.orch.SweepSLA(context.Background())
	require.NoError(t, err)

	assert.Len(t, report.Results, 1)
	require.Len(t, report.Failures, 1)
	assert.ErrorIs(t, report.Failures[0], domainwf.ErrInvalidState)
}

func TestSweepSLA_GradesAndEscalates(t *testing.T) {
	h := newHarness(t)
	warning := h.store.addCase(agedCase(domainwf.StateUnderOCRReview, 3*time.Hour+30*time.Minute))
	breached := h.store.addCase(agedCase(domainwf.StateEscalatedMedical, 100*time.Hour))
	stale := h.store.addCase(agedCase(domainwf.StateViable, 50*time.Hour))
	onTime := h.store.addCase(agedCase(domainwf.StateViable, 2*time.Hour))
	h.store.addCase(agedCase(domainwf.StateReadyForPortal, 500*time.Hour))

	report, err := h.orch.SweepSLA(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Results, 4, "ready-for-portal cases are not swept")
	assert.Empty(t, report.Failures)

	byID := make(map[string]SweepResult)
	for _, r := range report.Results {
		byID[r.CaseID.String()] = r
	}

	assert.Equal(t, sla.SeverityWarning, byID[warning.ID.String()].Assessment.Severity)
	assert.Equal(t, sla.SeverityBreached, byID[breached.ID.String()].Assessment.Severity)
	assert.False(t, byID[breached.ID.String()].Escalated, "only viable cases are escalated")
	assert.Equal(t, sla.SeverityOK, byID[onTime.ID.String()].Assessment.Severity)

	staleRes := byID[stale.ID.String()]
	assert.Equal(t, sla.SeverityHigh, staleRes.Assessment.Severity)
	assert.True(t, staleRes.Escalated)
	assert.Equal(t, 1, report.Escalations())
	assert.Len(t, report.Breaches(), 2)

	stored := h.store.caseByID(stale.ID)
	assert.Equal(t, domainwf.StateEscalatedOperations, stored.State)
	assert.Equal(t, domainwf.EscalationOperations, stored.EscalationTarget)

	hist := h.store.historyFor(stale.ID)
	require.Len(t, hist, 1)
	assert.True(t, hist[0].Automatic)
	assert.Equal(t, domainwf.SystemActorID, hist[0].ActorID)

	assert.Len(t, h.disp.ofType(event.TypeSLABreached), 2)
	assert.Len(t, h.disp.ofType(event.TypeCaseEscalated), 1)
	assert.Empty(t, h.disp.ofType(event.TypeCaseProcessed))
}

func TestSweepSLA_NeverDeescalates(t *testing.T) {
	h := newHarness(t)
	c := h.store.addCase(agedCase(domainwf.StateEscalatedOperations, time.Minute))

	report, err := h.orch.SweepSLA(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	assert.False(t, report.Results[0].Escalated)
	assert.Equal(t, domainwf.StateEscalatedOperations, h.store.caseByID(c.ID).State)
}

func TestSweepSLA_CustomPolicy(t *testing.T) {
	policy := sla.DefaultPolicy()
	policy.Budgets[domainwf.StateDraft] = time.Hour
	h := newHarness(t, WithSLAPolicy(policy))
	h.store.addCase(agedCase(domainwf.StateDraft, 90*time.Minute))

	report, err := h.orch.SweepSLA(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	assert.Equal(t, sla.SeverityBreached, report.Results[0].Assessment.Severity)
	assert.False(t, report.Results[0].Escalated)
}
