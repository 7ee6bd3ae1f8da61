package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/emission-workflow/internal/application/port"
	"github.com/garyjia/emission-workflow/internal/domain/entity"
	"github.com/garyjia/emission-workflow/internal/infrastructure/persistence/sqlite"
)

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sqlite.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new history record
func (r *HistoryRepository) Create(ctx context.Context, record *entity.TransitionRecord) error {
	query := `
		INSERT INTO transition_history (
			case_id, actor_id, actor_role, from_state, to_state,
			reason, automatic, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		record.CaseID.String(),
		record.ActorID,
		record.ActorRole,
		record.FromState,
		record.ToState,
		record.Reason,
		record.Automatic,
		record.Timestamp,
	)
	if err != nil {
		r.logger.Error("Failed to create history record", zap.Error(err))
		return fmt.Errorf("failed to create history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	record.ID = id
	return nil
}

// GetByCaseID retrieves all history records for a case in insertion order
func (r *HistoryRepository) GetByCaseID(ctx context.Context, caseID uuid.UUID) ([]*entity.TransitionRecord, error) {
	query := `
		SELECT id, case_id, actor_id, actor_role, from_state, to_state,
			reason, automatic, timestamp
		FROM transition_history
		WHERE case_id = ?
		ORDER BY id ASC
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, caseID.String())
	if err != nil {
		r.logger.Error("Failed to get history by case ID", zap.String("case_id", caseID.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	var records []*entity.TransitionRecord
	for rows.Next() {
		var record entity.TransitionRecord
		var id string
		err := rows.Scan(
			&record.ID,
			&id,
			&record.ActorID,
			&record.ActorRole,
			&record.FromState,
			&record.ToState,
			&record.Reason,
			&record.Automatic,
			&record.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		if record.CaseID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid case id %q: %w", id, err)
		}
		records = append(records, &record)
	}

	return records, rows.Err()
}

// Verify interface compliance
var _ port.HistoryRepository = (*HistoryRepository)(nil)
