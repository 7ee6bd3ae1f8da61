package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/emission-workflow/internal/application/port"
	"github.com/garyjia/emission-workflow/internal/domain/entity"
	"github.com/garyjia/emission-workflow/internal/infrastructure/persistence/sqlite"
)

// MissingItemRepository implements port.MissingItemRepository
type MissingItemRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewMissingItemRepository creates a new missing item repository
func NewMissingItemRepository(db *sqlite.DB, logger *zap.Logger) port.MissingItemRepository {
	return &MissingItemRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new missing item
func (r *MissingItemRepository) Create(ctx context.Context, item *entity.MissingItem) error {
	query := `
		INSERT INTO missing_items (
			case_id, code, kind, message, resolved, resolved_at, resolution, resolved_by, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		item.CaseID.String(),
		string(item.Code),
		string(item.Kind),
		item.Message,
		item.Resolved,
		item.ResolvedAt,
		item.Resolution,
		item.ResolvedBy,
		item.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create missing item",
			zap.String("case_id", item.CaseID.String()),
			zap.String("code", string(item.Code)),
			zap.Error(err))
		return fmt.Errorf("failed to create missing item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	item.ID = id
	return nil
}

// GetByCaseID retrieves every missing item of a case, open and resolved
func (r *MissingItemRepository) GetByCaseID(ctx context.Context, caseID uuid.UUID) ([]*entity.MissingItem, error) {
	query := `
		SELECT id, case_id, code, kind, message, resolved, resolved_at, resolution, resolved_by, created_at
		FROM missing_items
		WHERE case_id = ?
		ORDER BY id ASC
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, caseID.String())
	if err != nil {
		r.logger.Error("Failed to get missing items", zap.String("case_id", caseID.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to get missing items: %w", err)
	}
	defer rows.Close()

	var items []*entity.MissingItem
	for rows.Next() {
		var item entity.MissingItem
		var id, code, kind string
		var resolvedAt sql.NullTime

		err := rows.Scan(
			&item.ID,
			&id,
			&code,
			&kind,
			&item.Message,
			&item.Resolved,
			&resolvedAt,
			&item.Resolution,
			&item.ResolvedBy,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan missing item: %w", err)
		}

		if item.CaseID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid case id %q: %w", id, err)
		}
		item.Code = entity.MissingItemCode(code)
		item.Kind = entity.DocumentKind(kind)
		if resolvedAt.Valid {
			item.ResolvedAt = &resolvedAt.Time
		}
		items = append(items, &item)
	}

	return items, rows.Err()
}

// Resolve closes an open item. Resolved items are never reopened.
func (r *MissingItemRepository) Resolve(ctx context.Context, id int64, resolution, resolvedBy string, at time.Time) error {
	query := `
		UPDATE missing_items
		SET resolved = 1, resolved_at = ?, resolution = ?, resolved_by = ?
		WHERE id = ? AND resolved = 0
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query, at, resolution, resolvedBy, id)
	if err != nil {
		r.logger.Error("Failed to resolve missing item", zap.Int64("item_id", id), zap.Error(err))
		return fmt.Errorf("failed to resolve missing item: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("missing item %d not found or already resolved", id)
	}
	return nil
}

// Verify interface compliance
var _ port.MissingItemRepository = (*MissingItemRepository)(nil)
