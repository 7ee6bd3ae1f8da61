package workflow

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/garyjia/emission-workflow/internal/domain/event"
	"github.com/garyjia/emission-workflow/internal/domain/sla"
	domainwf "github.com/garyjia/emission-workflow/internal/domain/workflow"
)

// SweepSLA assesses every active case. A failure on one case is recorded in
// the report and never stops the others; only failing to list cases aborts.
func (o *orchestrator) SweepSLA(ctx context.Context) (*SweepReport, error) {
	start := time.Now()
	report := &SweepReport{StartedAt: o.now()}

	ids, err := o.cases.ListActiveIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active cases: %w", err)
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(o.sweepConcurrency)

	for _, id := range ids {
		id := id
		g.Go(func() error {
			res, run, err := o.sweepCase(ctx, id)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failures = append(report.Failures, &SweepItemError{CaseID: id, Err: err})
				return nil
			}
			report.Results = append(report.Results, res)
			if run != nil {
				o.publish(ctx, run)
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(report.Results, func(i, j int) bool { return report.Results[i].Folio < report.Results[j].Folio })
	sort.Slice(report.Failures, func(i, j int) bool {
		return report.Failures[i].CaseID.String() < report.Failures[j].CaseID.String()
	})
	report.FinishedAt = o.now()

	for _, res := range report.Results {
		o.metrics.IncSLAAssessment(res.Assessment.Severity)
	}
	o.metrics.ObserveSweep(len(report.Results), len(report.Failures), time.Since(start))

	for _, f := range report.Failures {
		o.logger.Error("SLA sweep item failed", zap.String("case_id", f.CaseID.String()), zap.Error(f.Err))
	}
	o.logger.Info("SLA sweep completed",
		zap.Int("evaluated", len(report.Results)),
		zap.Int("breached", len(report.Breaches())),
		zap.Int("escalated", report.Escalations()),
		zap.Int("failed", len(report.Failures)),
	)

	return report, nil
}

// sweepCase assesses one case under its lock and applies the corrective
// escalation when required. The returned run carries events to publish.
func (o *orchestrator) sweepCase(ctx context.Context, id uuid.UUID) (SweepResult, *caseRun, error) {
	unlock := o.locks.Lock(id)
	defer unlock()

	var (
		res SweepResult
		run *caseRun
	)
	err := o.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		c, err := o.cases.GetByID(txCtx, id)
		if err != nil {
			return fmt.Errorf("failed to load case: %w", err)
		}
		if c == nil {
			return ErrUnknownCase
		}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("corrupt case %s: %w", c.Folio, err)
		}

		run = &caseRun{c: c, now: o.now()}
		a := o.policy.Assess(c, run.now)
		res = SweepResult{CaseID: c.ID, Folio: c.Folio, Assessment: a}

		if a.Severity.IsBreach() {
			run.events = append(run.events, event.NewEvent(event.TypeSLABreached, c.ID, map[string]interface{}{
				event.KeyFolio:        c.Folio,
				event.KeyNewStatus:    c.State.String(),
				event.KeySeverity:     string(a.Severity),
				event.KeyElapsedHours: a.ElapsedHours(),
				event.KeyBudgetHours:  a.Budget.Hours(),
			}))
		}

		if !sla.RequiresForcedEscalation(a) {
			return nil
		}

		err = o.applyTransition(txCtx, run, domainwf.Request{
			To:     domainwf.StateEscalatedOperations,
			Actor:  domainwf.SystemActor(),
			Reason: fmt.Sprintf("SLA: %.1fh in %s exceeds %.0fh budget", a.ElapsedHours(), a.State, a.Budget.Hours()),
		}, true)
		if err != nil {
			return err
		}
		res.Escalated = true
		return nil
	})
	if err != nil {
		return SweepResult{}, nil, err
	}
	return res, run, nil
}
