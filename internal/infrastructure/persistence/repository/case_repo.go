package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/emission-workflow/internal/application/port"
	"github.com/garyjia/emission-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/emission-workflow/internal/domain/workflow"
	"github.com/garyjia/emission-workflow/internal/infrastructure/persistence/sqlite"
)

// CaseRepository implements port.CaseRepository
type CaseRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewCaseRepository creates a new case repository
func NewCaseRepository(db *sqlite.DB, logger *zap.Logger) port.CaseRepository {
	return &CaseRepository{
		db:     db,
		logger: logger,
	}
}

const caseColumns = `
	id, folio, emission_type, person_type, requires_invoice, amount, currency,
	risk_activities, risk_flag, medical_conditions, metadata, waivers,
	state, escalation_target, responsible_id,
	created_at, updated_at, state_changed_at`

// Create stores a new case. The folio is drawn from the year-scoped
// sequence in the same transaction as the insert.
func (r *CaseRepository) Create(ctx context.Context, c *entity.Case) error {
	metadata, err := entity.EncodeMetadata(c.Metadata)
	if err != nil {
		return err
	}
	activities, err := encodeActivities(c.RiskActivities)
	if err != nil {
		return err
	}
	waivers, err := encodeWaivers(c.Waivers)
	if err != nil {
		return err
	}

	return r.db.WithTransaction(ctx, func(txCtx context.Context) error {
		exec := r.db.Executor(txCtx)

		year := c.CreatedAt.Year()
		var seq int64
		err := exec.QueryRowContext(txCtx, `
			INSERT INTO folio_sequences (year, last_value) VALUES (?, 1)
			ON CONFLICT(year) DO UPDATE SET last_value = last_value + 1
			RETURNING last_value
		`, year).Scan(&seq)
		if err != nil {
			r.logger.Error("Failed to allocate folio", zap.Int("year", year), zap.Error(err))
			return fmt.Errorf("failed to allocate folio: %w", err)
		}
		folio := entity.FolioFor(year, seq)

		_, err = exec.ExecContext(txCtx, `INSERT INTO cases (`+caseColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID.String(),
			folio,
			string(c.EmissionType),
			string(c.PersonType),
			c.RequiresInvoice,
			amountValue(c.Amount),
			c.Currency,
			activities,
			c.RiskFlag,
			c.MedicalConditions,
			metadata,
			waivers,
			c.State.String(),
			string(c.EscalationTarget),
			c.ResponsibleID,
			c.CreatedAt,
			c.UpdatedAt,
			c.StateChangedAt,
		)
		if err != nil {
			r.logger.Error("Failed to create case", zap.String("case_id", c.ID.String()), zap.Error(err))
			return fmt.Errorf("failed to create case: %w", err)
		}

		c.Folio = folio
		return nil
	})
}

// GetByID retrieves a case by ID
func (r *CaseRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Case, error) {
	row := r.db.Executor(ctx).QueryRowContext(ctx,
		`SELECT `+caseColumns+` FROM cases WHERE id = ?`, id.String())

	c, err := scanCase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get case", zap.String("case_id", id.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to get case: %w", err)
	}
	return c, nil
}

// GetByFolio retrieves a case by its human-readable folio
func (r *CaseRepository) GetByFolio(ctx context.Context, folio string) (*entity.Case, error) {
	row := r.db.Executor(ctx).QueryRowContext(ctx,
		`SELECT `+caseColumns+` FROM cases WHERE folio = ?`, folio)

	c, err := scanCase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get case by folio: %w", err)
	}
	return c, nil
}

// Update persists the mutable columns of a case
func (r *CaseRepository) Update(ctx context.Context, c *entity.Case) error {
	metadata, err := entity.EncodeMetadata(c.Metadata)
	if err != nil {
		return err
	}
	activities, err := encodeActivities(c.RiskActivities)
	if err != nil {
		return err
	}
	waivers, err := encodeWaivers(c.Waivers)
	if err != nil {
		return err
	}

	result, err := r.db.Executor(ctx).ExecContext(ctx, `
		UPDATE cases SET
			emission_type = ?, person_type = ?, requires_invoice = ?, amount = ?, currency = ?,
			risk_activities = ?, risk_flag = ?, medical_conditions = ?, metadata = ?, waivers = ?,
			state = ?, escalation_target = ?, responsible_id = ?,
			updated_at = ?, state_changed_at = ?
		WHERE id = ?
	`,
		string(c.EmissionType),
		string(c.PersonType),
		c.RequiresInvoice,
		amountValue(c.Amount),
		c.Currency,
		activities,
		c.RiskFlag,
		c.MedicalConditions,
		metadata,
		waivers,
		c.State.String(),
		string(c.EscalationTarget),
		c.ResponsibleID,
		c.UpdatedAt,
		c.StateChangedAt,
		c.ID.String(),
	)
	if err != nil {
		r.logger.Error("Failed to update case", zap.String("case_id", c.ID.String()), zap.Error(err))
		return fmt.Errorf("failed to update case: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("case not found: %s", c.ID)
	}
	return nil
}

// ListActiveIDs returns the ids of cases still subject to SLA tracking
func (r *CaseRepository) ListActiveIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, `
		SELECT id FROM cases
		WHERE state NOT IN (?, ?)
		ORDER BY created_at ASC
	`, domainwf.StateReadyForPortal.String(), domainwf.StateClosed.String())
	if err != nil {
		r.logger.Error("Failed to list active cases", zap.Error(err))
		return nil, fmt.Errorf("failed to list active cases: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan case id: %w", err)
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid case id %q: %w", raw, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanCase maps a row onto a Case. The stored state is kept verbatim so the
// aggregate's own validation reports corrupt values.
func scanCase(row rowScanner) (*entity.Case, error) {
	var c entity.Case
	var id, emissionType, person, activities, metadata, waivers, state, escalation string
	var amount decimal.NullDecimal

	err := row.Scan(
		&id,
		&c.Folio,
		&emissionType,
		&person,
		&c.RequiresInvoice,
		&amount,
		&c.Currency,
		&activities,
		&c.RiskFlag,
		&c.MedicalConditions,
		&metadata,
		&waivers,
		&state,
		&escalation,
		&c.ResponsibleID,
		&c.CreatedAt,
		&c.UpdatedAt,
		&c.StateChangedAt,
	)
	if err != nil {
		return nil, err
	}

	if c.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid case id %q: %w", id, err)
	}
	c.EmissionType = entity.EmissionType(emissionType)
	c.PersonType = entity.PersonType(person)
	c.State = domainwf.State(state)
	c.EscalationTarget = domainwf.EscalationTarget(escalation)

	if amount.Valid {
		v := amount.Decimal
		c.Amount = &v
	}
	if activities != "" {
		if err := json.Unmarshal([]byte(activities), &c.RiskActivities); err != nil {
			return nil, fmt.Errorf("failed to decode risk activities: %w", err)
		}
	}

	if waivers != "" {
		if err := json.Unmarshal([]byte(waivers), &c.Waivers); err != nil {
			return nil, fmt.Errorf("failed to decode waivers: %w", err)
		}
	}

	// Unknown emission types carry no metadata; the rule engine reports them.
	if c.EmissionType.IsValid() {
		if c.Metadata, err = entity.DecodeMetadata(c.EmissionType, metadata); err != nil {
			return nil, err
		}
	}

	return &c, nil
}

func amountValue(amount *decimal.Decimal) interface{} {
	if amount == nil {
		return nil
	}
	return amount.String()
}

func encodeActivities(activities []string) (string, error) {
	if activities == nil {
		activities = []string{}
	}
	raw, err := json.Marshal(activities)
	if err != nil {
		return "", fmt.Errorf("failed to encode risk activities: %w", err)
	}
	return string(raw), nil
}

func encodeWaivers(kinds []entity.DocumentKind) (string, error) {
	if kinds == nil {
		kinds = []entity.DocumentKind{}
	}
	raw, err := json.Marshal(kinds)
	if err != nil {
		return "", fmt.Errorf("failed to encode waivers: %w", err)
	}
	return string(raw), nil
}

// Verify interface compliance
var _ port.CaseRepository = (*CaseRepository)(nil)
