package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/emission-workflow/internal/application/dispatcher"
	"github.com/garyjia/emission-workflow/internal/application/port"
	"github.com/garyjia/emission-workflow/internal/domain/entity"
	"github.com/garyjia/emission-workflow/internal/domain/event"
	"github.com/garyjia/emission-workflow/internal/domain/faltantes"
	"github.com/garyjia/emission-workflow/internal/domain/requirement"
	"github.com/garyjia/emission-workflow/internal/domain/sla"
	domainwf "github.com/garyjia/emission-workflow/internal/domain/workflow"
)

// Repositories groups the persistence ports the orchestrator needs
type Repositories struct {
	Cases        port.CaseRepository
	Documents    port.DocumentRepository
	MissingItems port.MissingItemRepository
	History      port.HistoryRepository
	TxManager    port.TransactionManager
}

// orchestrator is the concrete implementation of Orchestrator
type orchestrator struct {
	cases     port.CaseRepository
	documents port.DocumentRepository
	missing   port.MissingItemRepository
	history   port.HistoryRepository
	txManager port.TransactionManager

	engine *requirement.Engine
	policy sla.Policy

	dispatcher       dispatcher.Dispatcher
	metrics          Metrics
	logger           *zap.Logger
	clock            func() time.Time
	sweepConcurrency int

	locks *caseLocks
}

// Option configures the orchestrator
type Option func(*orchestrator)

// WithDispatcher sets the event dispatcher for emitting events
func WithDispatcher(d dispatcher.Dispatcher) Option {
	return func(o *orchestrator) {
		o.dispatcher = d
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m Metrics) Option {
	return func(o *orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithClock overrides the time source
func WithClock(clock func() time.Time) Option {
	return func(o *orchestrator) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithSLAPolicy sets the per-state budgets used by SweepSLA
func WithSLAPolicy(p sla.Policy) Option {
	return func(o *orchestrator) {
		o.policy = p
	}
}

// WithSweepConcurrency bounds how many cases the sweep evaluates at once
func WithSweepConcurrency(n int) Option {
	return func(o *orchestrator) {
		if n > 0 {
			o.sweepConcurrency = n
		}
	}
}

// NewOrchestrator creates a new workflow orchestrator
func NewOrchestrator(repos Repositories, engine *requirement.Engine, opts ...Option) Orchestrator {
	o := &orchestrator{
		cases:            repos.Cases,
		documents:        repos.Documents,
		missing:          repos.MissingItems,
		history:          repos.History,
		txManager:        repos.TxManager,
		engine:           engine,
		policy:           sla.DefaultPolicy(),
		metrics:          nopMetrics{},
		logger:           zap.NewNop(),
		clock:            time.Now,
		sweepConcurrency: 4,
		locks:            newCaseLocks(),
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// caseRun carries the state of one operation on one case inside its transaction
type caseRun struct {
	c     *entity.Case
	docs  []*entity.Document
	items []*entity.MissingItem
	now   time.Time

	eval      requirement.Evaluation
	evaluated bool
	plan      faltantes.Plan

	outcomes []domainwf.Outcome
	events   []*event.Event
}

func (o *orchestrator) now() time.Time {
	return o.clock().UTC()
}

// ProcessCase re-evaluates a case after any mutation that can affect its requirements
func (o *orchestrator) ProcessCase(ctx context.Context, caseID uuid.UUID) (*Snapshot, error) {
	return o.run(ctx, "process", caseID, func(txCtx context.Context, run *caseRun) error {
		if err := o.reconcile(txCtx, run); err != nil {
			return err
		}
		return o.autoTransition(txCtx, run)
	})
}

// Intake creates a case and processes it atomically. The new case is not
// locked; no other caller can see it before the commit.
func (o *orchestrator) Intake(ctx context.Context, create Creation) (*Snapshot, error) {
	if create == nil {
		return nil, fmt.Errorf("intake requires a creation step")
	}

	start := time.Now()
	var run *caseRun
	err := o.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		caseID, err := create(txCtx)
		if err != nil {
			return err
		}
		run, err = o.load(txCtx, caseID, o.now())
		if err != nil {
			return err
		}
		if err := o.reconcile(txCtx, run); err != nil {
			return err
		}
		return o.autoTransition(txCtx, run)
	})
	return o.finish(ctx, "intake", uuid.Nil, start, run, err)
}

// Apply mutates the case and processes it atomically
func (o *orchestrator) Apply(ctx context.Context, caseID uuid.UUID, mutate Mutation) (*Snapshot, error) {
	if mutate == nil {
		return o.ProcessCase(ctx, caseID)
	}

	return o.run(ctx, "apply", caseID, func(txCtx context.Context, run *caseRun) error {
		if err := mutate(txCtx, run.c); err != nil {
			return err
		}

		run.c.Touch(run.now)
		if err := o.cases.Update(txCtx, run.c); err != nil {
			return fmt.Errorf("failed to update case: %w", err)
		}

		docs, err := o.documents.GetByCaseID(txCtx, caseID)
		if err != nil {
			return fmt.Errorf("failed to reload documents: %w", err)
		}
		run.docs = docs

		if err := o.reconcile(txCtx, run); err != nil {
			return err
		}
		return o.autoTransition(txCtx, run)
	})
}

// Transition applies a manual transition and refreshes the missing items view
func (o *orchestrator) Transition(ctx context.Context, req TransitionRequest) (*Snapshot, error) {
	if err := req.Actor.Validate(); err != nil {
		return nil, fmt.Errorf("invalid actor: %w", err)
	}

	return o.run(ctx, "transition", req.CaseID, func(txCtx context.Context, run *caseRun) error {
		if req.To == domainwf.StateViable {
			if open := entity.OpenItems(run.items); len(open) > 0 {
				return fmt.Errorf("%w: %d open", ErrOpenMissingItems, len(open))
			}
		}

		err := o.applyTransition(txCtx, run, domainwf.Request{
			To:            req.To,
			Actor:         req.Actor,
			ResponsibleID: req.ResponsibleID,
			Reason:        req.Reason,
		}, false)
		if err != nil {
			return err
		}

		return o.reconcile(txCtx, run)
	})
}

// ResolveMissingItem closes an open item regardless of requirement status.
// The resolution is recorded as manual and the kind stays waived until a
// reconciliation finds it no longer required.
func (o *orchestrator) ResolveMissingItem(ctx context.Context, caseID uuid.UUID, code entity.MissingItemCode, actor domainwf.Actor) (*Snapshot, error) {
	if err := actor.Validate(); err != nil {
		return nil, fmt.Errorf("invalid actor: %w", err)
	}

	return o.run(ctx, "resolve", caseID, func(txCtx context.Context, run *caseRun) error {
		var target *entity.MissingItem
		for _, it := range run.items {
			if it.Open() && it.Code == code {
				target = it
				break
			}
		}
		if target == nil {
			return fmt.Errorf("%w: %s", ErrUnknownMissingItem, code)
		}

		if err := o.missing.Resolve(txCtx, target.ID, entity.ResolutionManual, actor.ID, run.now); err != nil {
			return fmt.Errorf("failed to resolve missing item %d: %w", target.ID, err)
		}
		markResolved(target, entity.ResolutionManual, actor.ID, run.now)

		run.c.Waive(target.Kind)
		run.c.Touch(run.now)
		if err := o.cases.Update(txCtx, run.c); err != nil {
			return fmt.Errorf("failed to update case: %w", err)
		}

		o.logger.Info("Missing item resolved manually",
			zap.String("folio", run.c.Folio),
			zap.String("code", string(code)),
			zap.String("actor_id", actor.ID),
		)
		run.events = append(run.events, event.NewEvent(event.TypeMissingResolved, run.c.ID, map[string]interface{}{
			event.KeyFolio:     run.c.Folio,
			event.KeyCode:      string(code),
			event.KeyActorID:   actor.ID,
			event.KeyActorRole: string(actor.Role),
		}))

		if err := o.reconcile(txCtx, run); err != nil {
			return err
		}
		return o.autoTransition(txCtx, run)
	})
}

// Revalidate reconciles missing items without moving the case
func (o *orchestrator) Revalidate(ctx context.Context, caseID uuid.UUID) (*Snapshot, error) {
	return o.run(ctx, "revalidate", caseID, o.reconcile)
}

// Snapshot evaluates the case read-only
func (o *orchestrator) Snapshot(ctx context.Context, caseID uuid.UUID) (*Snapshot, error) {
	run, err := o.load(ctx, caseID, o.now())
	if err != nil {
		return nil, err
	}
	run.eval = o.engine.Evaluate(run.c, run.now)
	run.evaluated = true
	return run.snapshot(), nil
}

// run executes op under the case lock in a single transaction. Events are
// dispatched only after the commit succeeds.
func (o *orchestrator) run(ctx context.Context, op string, caseID uuid.UUID, fn func(context.Context, *caseRun) error) (*Snapshot, error) {
	start := time.Now()

	unlock := o.locks.Lock(caseID)
	defer unlock()

	var run *caseRun
	err := o.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		run, err = o.load(txCtx, caseID, o.now())
		if err != nil {
			return err
		}
		return fn(txCtx, run)
	})
	return o.finish(ctx, op, caseID, start, run, err)
}

// finish records the operation and publishes its events once committed
func (o *orchestrator) finish(ctx context.Context, op string, caseID uuid.UUID, start time.Time, run *caseRun, err error) (*Snapshot, error) {
	o.metrics.ObserveOperation(op, time.Since(start), err)
	if err != nil {
		o.logger.Debug("Case operation failed",
			zap.String("op", op),
			zap.String("case_id", caseID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	o.publish(ctx, run)
	return run.snapshot(), nil
}

// load reads the case and its owned collections
func (o *orchestrator) load(ctx context.Context, caseID uuid.UUID, now time.Time) (*caseRun, error) {
	c, err := o.cases.GetByID(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load case %s: %w", caseID, err)
	}
	if c == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCase, caseID)
	}

	docs, err := o.documents.GetByCaseID(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}

	items, err := o.missing.GetByCaseID(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load missing items: %w", err)
	}

	return &caseRun{c: c, docs: docs, items: items, now: now}, nil
}

// reconcile evaluates requirements and persists the missing item diff
func (o *orchestrator) reconcile(ctx context.Context, run *caseRun) error {
	run.eval = o.engine.Evaluate(run.c, run.now)
	run.evaluated = true

	// a waiver ends with the requirement it overrode
	lapsed := run.c.RetainWaivers(run.eval.Required.Has)

	satisfied := entity.SatisfiedKinds(run.docs)
	for _, kind := range run.c.Waivers {
		satisfied[kind] = true
	}

	plan := faltantes.Reconcile(faltantes.Input{
		CaseID:     run.c.ID,
		PersonType: run.c.PersonType,
		Required:   run.eval.Required,
		Satisfied:  satisfied,
		Existing:   run.items,
	})

	for _, conflict := range plan.Conflicts {
		o.logger.Warn("Duplicate open missing items collapsed",
			zap.String("folio", run.c.Folio),
			zap.String("code", string(conflict.Code)),
			zap.Int64("kept_id", conflict.KeptID),
			zap.Int64s("dropped_ids", conflict.Dropped),
		)
	}

	byID := make(map[int64]*entity.MissingItem, len(run.items))
	for _, it := range run.items {
		byID[it.ID] = it
	}

	for _, closure := range plan.ToClose {
		if err := o.missing.Resolve(ctx, closure.ItemID, closure.Resolution(), domainwf.SystemActorID, run.now); err != nil {
			return fmt.Errorf("failed to close missing item %d: %w", closure.ItemID, err)
		}
		if it, ok := byID[closure.ItemID]; ok {
			markResolved(it, closure.Resolution(), domainwf.SystemActorID, run.now)
		}
	}

	for i := range plan.ToOpen {
		item := plan.ToOpen[i]
		item.CreatedAt = run.now
		if err := o.missing.Create(ctx, &item); err != nil {
			return fmt.Errorf("failed to open missing item %s: %w", item.Code, err)
		}
		plan.ToOpen[i] = item
		run.items = append(run.items, &item)
	}

	if lapsed || !plan.Empty() {
		run.c.Touch(run.now)
		if err := o.cases.Update(ctx, run.c); err != nil {
			return fmt.Errorf("failed to update case: %w", err)
		}
	}

	run.plan.ToOpen = append(run.plan.ToOpen, plan.ToOpen...)
	run.plan.ToClose = append(run.plan.ToClose, plan.ToClose...)
	run.plan.Conflicts = append(run.plan.Conflicts, plan.Conflicts...)

	if !plan.Empty() {
		o.logger.Info("Missing items reconciled",
			zap.String("folio", run.c.Folio),
			zap.Int("opened", len(plan.ToOpen)),
			zap.Int("closed", len(plan.ToClose)),
		)
	}
	return nil
}

// autoTransition moves the case along the path its open item set allows
func (o *orchestrator) autoTransition(ctx context.Context, run *caseRun) error {
	open := len(entity.OpenItems(run.items))

	var path []domainwf.State
	switch run.c.State {
	case domainwf.StateUnderOCRReview:
		if open == 0 {
			path = []domainwf.State{domainwf.StateViable}
		} else {
			path = []domainwf.State{domainwf.StateMissingItems}
		}
	case domainwf.StateMissingItems:
		if open == 0 {
			path = []domainwf.State{domainwf.StateUnderOCRReview, domainwf.StateViable}
		}
	case domainwf.StateViable:
		if open > 0 {
			o.logger.Warn("Viable case has open missing items again",
				zap.String("folio", run.c.Folio),
				zap.Int("open_items", open),
			)
		}
	}

	for _, to := range path {
		err := o.applyTransition(ctx, run, domainwf.Request{
			To:     to,
			Actor:  domainwf.SystemActor(),
			Reason: fmt.Sprintf("automatic: %d open missing items", open),
		}, true)
		if err != nil {
			return err
		}
	}
	return nil
}

// applyTransition validates the request against the table, persists the
// new state and writes the audit record
func (o *orchestrator) applyTransition(ctx context.Context, run *caseRun, req domainwf.Request, automatic bool) error {
	machine, err := domainwf.New(run.c.State)
	if err != nil {
		return fmt.Errorf("case %s: %w", run.c.Folio, err)
	}

	out, err := machine.Transition(req, run.now)
	if err != nil {
		return err
	}

	run.c.ApplyTransition(out)
	if err := o.cases.Update(ctx, run.c); err != nil {
		return fmt.Errorf("failed to update case state: %w", err)
	}

	record := &entity.TransitionRecord{
		CaseID:    run.c.ID,
		ActorID:   out.Actor.ID,
		ActorRole: string(out.Actor.Role),
		FromState: out.From.String(),
		ToState:   out.To.String(),
		Reason:    out.Reason,
		Automatic: automatic,
		Timestamp: run.c.UpdatedAt,
	}
	if err := o.history.Create(ctx, record); err != nil {
		return fmt.Errorf("failed to create history record: %w", err)
	}

	o.logger.Info("Case transitioned",
		zap.String("folio", run.c.Folio),
		zap.String("from", out.From.String()),
		zap.String("to", out.To.String()),
		zap.String("actor_id", out.Actor.ID),
		zap.Bool("automatic", automatic),
	)

	run.outcomes = append(run.outcomes, out)
	run.events = append(run.events, event.NewEvent(event.TypeStatusChanged, run.c.ID, map[string]interface{}{
		event.KeyFolio:          run.c.Folio,
		event.KeyPreviousStatus: out.From.String(),
		event.KeyNewStatus:      out.To.String(),
		event.KeyActorID:        out.Actor.ID,
		event.KeyActorRole:      string(out.Actor.Role),
		event.KeyAutomatic:      automatic,
		event.KeyReason:         out.Reason,
	}))
	if out.To.IsEscalation() {
		run.events = append(run.events, event.NewEvent(event.TypeCaseEscalated, run.c.ID, map[string]interface{}{
			event.KeyFolio:            run.c.Folio,
			event.KeyEscalationTarget: string(out.EscalationTarget),
			event.KeyActorID:          out.Actor.ID,
			event.KeyReason:           out.Reason,
		}))
	}
	return nil
}

// publish records metrics and dispatches the run's events after commit
func (o *orchestrator) publish(ctx context.Context, run *caseRun) {
	for _, out := range run.outcomes {
		o.metrics.IncTransition(out.From, out.To, out.Actor.IsSystem())
	}
	o.metrics.AddMissingItems(len(run.plan.ToOpen), len(run.plan.ToClose), len(run.plan.Conflicts))

	if o.dispatcher == nil {
		return
	}

	if run.evaluated {
		run.events = append(run.events, event.NewEvent(event.TypeCaseProcessed, run.c.ID, map[string]interface{}{
			event.KeyFolio:     run.c.Folio,
			event.KeyOpened:    len(run.plan.ToOpen),
			event.KeyClosed:    len(run.plan.ToClose),
			event.KeyOpenItems: len(entity.OpenItems(run.items)),
			event.KeyNewStatus: run.c.State.String(),
		}))
	}

	for _, evt := range run.events {
		o.dispatcher.DispatchAsync(ctx, evt)
	}
}

func (run *caseRun) snapshot() *Snapshot {
	snap := &Snapshot{
		Case:      run.c,
		Documents: run.docs,
		Findings:  run.eval.Findings,
		Opened:    len(run.plan.ToOpen),
		Closed:    len(run.plan.ToClose),
	}
	if run.eval.Required != nil {
		snap.Required = run.eval.Required.Sorted()
	}
	for _, it := range run.items {
		if it.Open() {
			snap.OpenItems = append(snap.OpenItems, it)
		} else {
			snap.ResolvedItems = append(snap.ResolvedItems, it)
		}
	}
	for _, out := range run.outcomes {
		snap.Transitions = append(snap.Transitions, TransitionSummary{
			From:      out.From,
			To:        out.To,
			ActorID:   out.Actor.ID,
			Automatic: out.Actor.IsSystem(),
		})
	}
	return snap
}

func markResolved(it *entity.MissingItem, resolution, by string, at time.Time) {
	it.Resolved = true
	it.Resolution = resolution
	it.ResolvedBy = by
	resolvedAt := at
	it.ResolvedAt = &resolvedAt
}
