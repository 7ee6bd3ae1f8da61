package sla

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/garyjia/emission-workflow/internal/domain/entity"
	"github.com/garyjia/emission-workflow/internal/domain/workflow"
)

func TestPolicy_Assess(t *testing.T) {
	now := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	policy := DefaultPolicy()

	tests := []struct {
		name     string
		state    workflow.State
		elapsed  time.Duration
		want     Severity
		exempt   bool
		escalate bool
	}{
		{"fresh viable", workflow.StateViable, time.Hour, SeverityOK, false, false},
		{"viable at risk", workflow.StateViable, 20 * time.Hour, SeverityWarning, false, false},
		{"viable breached", workflow.StateViable, 30 * time.Hour, SeverityBreached, false, false},
		{"viable high", workflow.StateViable, 48 * time.Hour, SeverityHigh, false, true},
		{"ocr review high is not escalated", workflow.StateUnderOCRReview, 10 * time.Hour, SeverityHigh, false, false},
		{"ready for portal exempt", workflow.StateReadyForPortal, 1000 * time.Hour, SeverityOK, true, false},
		{"closed exempt", workflow.StateClosed, 1000 * time.Hour, SeverityOK, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &entity.Case{State: tt.state, StateChangedAt: now.Add(-tt.elapsed)}
			a := policy.Assess(c, now)

			assert.Equal(t, tt.want, a.Severity)
			assert.Equal(t, tt.exempt, a.Exempt)
			assert.Equal(t, tt.elapsed, a.Elapsed)
			assert.Equal(t, tt.escalate, RequiresForcedEscalation(a))
		})
	}
}

func TestPolicy_AssessFallsBackToCreatedAt(t *testing.T) {
	now := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	c := &entity.Case{State: workflow.StateDraft, CreatedAt: now.Add(-30 * time.Hour)}

	a := DefaultPolicy().Assess(c, now)
	assert.Equal(t, SeverityBreached, a.Severity)
	assert.True(t, a.Severity.IsBreach())
}

func TestPolicy_FutureTimestampCountsAsZero(t *testing.T) {
	now := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	c := &entity.Case{State: workflow.StateViable, StateChangedAt: now.Add(time.Hour)}

	a := DefaultPolicy().Assess(c, now)
	assert.Equal(t, time.Duration(0), a.Elapsed)
	assert.Equal(t, SeverityOK, a.Severity)
}
