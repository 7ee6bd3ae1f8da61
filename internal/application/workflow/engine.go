package workflow

import (
	"context"

	"github.com/google/uuid"

	"github.com/garyjia/emission-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/emission-workflow/internal/domain/workflow"
)

// Orchestrator drives a case through requirement evaluation, missing item
// reconciliation and lifecycle transitions. All operations on one case are
// serialized; different cases proceed in parallel.
type Orchestrator interface {
	// ProcessCase re-evaluates requirements, reconciles missing items and
	// applies the automatic transitions the new open set allows
	ProcessCase(ctx context.Context, caseID uuid.UUID) (*Snapshot, error)

	// Intake runs create and the first processing pass in one transaction,
	// so a new case is never visible without its initial missing items
	Intake(ctx context.Context, create Creation) (*Snapshot, error)

	// Apply runs mutate and then ProcessCase in one transaction under the
	// case lock. A mutation error aborts the whole operation.
	Apply(ctx context.Context, caseID uuid.UUID, mutate Mutation) (*Snapshot, error)

	// Transition applies a manual, role-gated transition followed by a
	// reconciliation-only pass
	Transition(ctx context.Context, req TransitionRequest) (*Snapshot, error)

	// ResolveMissingItem closes an open item by operator override
	ResolveMissingItem(ctx context.Context, caseID uuid.UUID, code entity.MissingItemCode, actor domainwf.Actor) (*Snapshot, error)

	// Revalidate runs a reconciliation-only pass without automatic transitions
	Revalidate(ctx context.Context, caseID uuid.UUID) (*Snapshot, error)

	// Snapshot returns the current view of a case without mutating it
	Snapshot(ctx context.Context, caseID uuid.UUID) (*Snapshot, error)

	// SweepSLA grades every active case against its state budget
	SweepSLA(ctx context.Context) (*SweepReport, error)
}

// Mutation changes a case or its documents. It receives the loaded case and
// may modify it in place; the orchestrator persists the case afterwards.
type Mutation func(ctx context.Context, c *entity.Case) error

// Creation stores a new case and returns its id
type Creation func(ctx context.Context) (uuid.UUID, error)

// TransitionRequest is a manual transition issued by a user
type TransitionRequest struct {
	CaseID        uuid.UUID
	To            domainwf.State
	Actor         domainwf.Actor
	ResponsibleID string
	Reason        string
}
