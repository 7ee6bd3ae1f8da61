package port

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/emission-workflow/internal/domain/entity"
)

// CaseRepository defines persistence operations for Case.
// Lookups return (nil, nil) when the case does not exist.
type CaseRepository interface {
	// Create stores a new case and assigns the next folio of the creation year
	Create(ctx context.Context, c *entity.Case) error

	GetByID(ctx context.Context, id uuid.UUID) (*entity.Case, error)
	GetByFolio(ctx context.Context, folio string) (*entity.Case, error)

	// Update persists every mutable column. Folio and creation time are never written.
	Update(ctx context.Context, c *entity.Case) error

	// ListActiveIDs returns ids of cases whose state is subject to SLA tracking
	ListActiveIDs(ctx context.Context) ([]uuid.UUID, error)
}

// DocumentRepository defines persistence operations for Document
type DocumentRepository interface {
	Create(ctx context.Context, doc *entity.Document) error
	GetByID(ctx context.Context, id int64) (*entity.Document, error)
	GetByCaseID(ctx context.Context, caseID uuid.UUID) ([]*entity.Document, error)
	UpdateReview(ctx context.Context, id int64, status, reviewedBy string, reviewedAt time.Time) error
	UpdateOCRStatus(ctx context.Context, id int64, status string) error
	Delete(ctx context.Context, id int64) error
}

// MissingItemRepository defines persistence operations for MissingItem.
// Items are never deleted; resolution is the only update.
type MissingItemRepository interface {
	Create(ctx context.Context, item *entity.MissingItem) error
	GetByCaseID(ctx context.Context, caseID uuid.UUID) ([]*entity.MissingItem, error)
	Resolve(ctx context.Context, id int64, resolution, resolvedBy string, at time.Time) error
}

// HistoryRepository defines persistence operations for the transition audit trail
type HistoryRepository interface {
	Create(ctx context.Context, record *entity.TransitionRecord) error
	GetByCaseID(ctx context.Context, caseID uuid.UUID) ([]*entity.TransitionRecord, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
