package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/emission-workflow/internal/application/port"
	"github.com/garyjia/emission-workflow/internal/domain/entity"
	"github.com/garyjia/emission-workflow/internal/infrastructure/persistence/sqlite"
)

// DocumentRepository implements port.DocumentRepository
type DocumentRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *sqlite.DB, logger *zap.Logger) port.DocumentRepository {
	return &DocumentRepository{
		db:     db,
		logger: logger,
	}
}

const documentColumns = `id, case_id, kind, status, ocr_status, file_name, uploaded_at, reviewed_by, reviewed_at`

// Create creates a new document
func (r *DocumentRepository) Create(ctx context.Context, doc *entity.Document) error {
	query := `
		INSERT INTO documents (
			case_id, kind, status, ocr_status, file_name, uploaded_at, reviewed_by, reviewed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		doc.CaseID.String(),
		string(doc.Kind),
		doc.Status,
		doc.OCRStatus,
		doc.FileName,
		doc.UploadedAt,
		doc.ReviewedBy,
		doc.ReviewedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create document", zap.String("case_id", doc.CaseID.String()), zap.Error(err))
		return fmt.Errorf("failed to create document: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	doc.ID = id
	return nil
}

// GetByID retrieves a document by ID
func (r *DocumentRepository) GetByID(ctx context.Context, id int64) (*entity.Document, error) {
	row := r.db.Executor(ctx).QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get document", zap.Int64("document_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

// GetByCaseID retrieves all documents attached to a case, oldest first
func (r *DocumentRepository) GetByCaseID(ctx context.Context, caseID uuid.UUID) ([]*entity.Document, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE case_id = ? ORDER BY id ASC`, caseID.String())
	if err != nil {
		r.logger.Error("Failed to get documents by case ID", zap.String("case_id", caseID.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to get documents: %w", err)
	}
	defer rows.Close()

	var docs []*entity.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// UpdateReview records the review decision of a document
func (r *DocumentRepository) UpdateReview(ctx context.Context, id int64, status, reviewedBy string, reviewedAt time.Time) error {
	query := `UPDATE documents SET status = ?, reviewed_by = ?, reviewed_at = ? WHERE id = ?`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query, status, reviewedBy, reviewedAt, id)
	if err != nil {
		r.logger.Error("Failed to update document review", zap.Int64("document_id", id), zap.Error(err))
		return fmt.Errorf("failed to update document review: %w", err)
	}
	return expectOneRow(result, "document", id)
}

// UpdateOCRStatus records extraction progress
func (r *DocumentRepository) UpdateOCRStatus(ctx context.Context, id int64, status string) error {
	result, err := r.db.Executor(ctx).ExecContext(ctx,
		`UPDATE documents SET ocr_status = ? WHERE id = ?`, status, id)
	if err != nil {
		r.logger.Error("Failed to update OCR status", zap.Int64("document_id", id), zap.Error(err))
		return fmt.Errorf("failed to update ocr status: %w", err)
	}
	return expectOneRow(result, "document", id)
}

// Delete removes a document
func (r *DocumentRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.Executor(ctx).ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete document", zap.Int64("document_id", id), zap.Error(err))
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return expectOneRow(result, "document", id)
}

func scanDocument(row rowScanner) (*entity.Document, error) {
	var doc entity.Document
	var caseID, kind string
	var reviewedAt sql.NullTime

	err := row.Scan(
		&doc.ID,
		&caseID,
		&kind,
		&doc.Status,
		&doc.OCRStatus,
		&doc.FileName,
		&doc.UploadedAt,
		&doc.ReviewedBy,
		&reviewedAt,
	)
	if err != nil {
		return nil, err
	}

	if doc.CaseID, err = uuid.Parse(caseID); err != nil {
		return nil, fmt.Errorf("invalid case id %q: %w", caseID, err)
	}
	doc.Kind = entity.DocumentKind(kind)
	if reviewedAt.Valid {
		doc.ReviewedAt = &reviewedAt.Time
	}
	return &doc, nil
}

func expectOneRow(result sql.Result, what string, id int64) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s not found: %d", what, id)
	}
	return nil
}

// Verify interface compliance
var _ port.DocumentRepository = (*DocumentRepository)(nil)
