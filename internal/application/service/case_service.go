package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/garyjia/emission-workflow/internal/application/port"
	"github.com/garyjia/emission-workflow/internal/application/workflow"
	"github.com/garyjia/emission-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/emission-workflow/internal/domain/workflow"
	"github.com/garyjia/emission-workflow/pkg/utils"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

var (
	// ErrInvalidInput is returned when a request fails validation
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownDocument is returned when a document does not exist or belongs to another case
	ErrUnknownDocument = errors.New("unknown document")
)

// OpenCaseRequest carries the intake attributes of a new case
type OpenCaseRequest struct {
	EmissionType      entity.EmissionType
	PersonType        entity.PersonType
	RequiresInvoice   bool
	Amount            *decimal.Decimal
	Currency          string
	RiskActivities    []string
	RiskFlag          bool
	MedicalConditions string

	// MetadataJSON is the type-specific metadata encoded as JSON
	MetadataJSON string

	Actor domainwf.Actor
}

// DeclarationsUpdate changes case attributes. Nil fields are left untouched.
type DeclarationsUpdate struct {
	EmissionType      *entity.EmissionType
	PersonType        *entity.PersonType
	RequiresInvoice   *bool
	Amount            *decimal.Decimal
	Currency          *string
	RiskActivities    *[]string
	RiskFlag          *bool
	MedicalConditions *string
	MetadataJSON      *string
}

// AttachDocumentRequest registers a document uploaded to the document store
type AttachDocumentRequest struct {
	Kind     entity.DocumentKind
	FileName string
	Status   string
}

// CaseService is the intake and document store entry point. Every mutation
// that can change a case's requirements is processed by the orchestrator in
// the same transaction.
type CaseService interface {
	Open(ctx context.Context, req OpenCaseRequest) (*workflow.Snapshot, error)
	Get(ctx context.Context, id uuid.UUID) (*workflow.Snapshot, error)
	UpdateDeclarations(ctx context.Context, id uuid.UUID, upd DeclarationsUpdate) (*workflow.Snapshot, error)
	AttachDocument(ctx context.Context, id uuid.UUID, req AttachDocumentRequest) (*workflow.Snapshot, error)
	RemoveDocument(ctx context.Context, id uuid.UUID, docID int64) (*workflow.Snapshot, error)
	ReviewDocument(ctx context.Context, id uuid.UUID, docID int64, status string, reviewer domainwf.Actor) (*workflow.Snapshot, error)
	UpdateOCRStatus(ctx context.Context, id uuid.UUID, docID int64, status string) error
	History(ctx context.Context, id uuid.UUID) ([]*entity.TransitionRecord, error)
}

type caseServiceImpl struct {
	caseRepo     port.CaseRepository
	documentRepo port.DocumentRepository
	historyRepo  port.HistoryRepository
	orchestrator workflow.Orchestrator
	logger       Logger
	clock        func() time.Time
}

// NewCaseService creates a new CaseService
func NewCaseService(
	caseRepo port.CaseRepository,
	documentRepo port.DocumentRepository,
	historyRepo port.HistoryRepository,
	orchestrator workflow.Orchestrator,
	logger Logger,
) CaseService {
	return &caseServiceImpl{
		caseRepo:     caseRepo,
		documentRepo: documentRepo,
		historyRepo:  historyRepo,
		orchestrator: orchestrator,
		logger:       logger,
		clock:        time.Now,
	}
}

// Open creates a case in DRAFT, assigns its folio and opens its initial
// missing items in a single transaction
func (s *caseServiceImpl) Open(ctx context.Context, req OpenCaseRequest) (*workflow.Snapshot, error) {
	if err := req.Actor.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	now := s.clock().UTC()
	c := &entity.Case{
		ID:                uuid.New(),
		EmissionType:      req.EmissionType,
		PersonType:        req.PersonType,
		RequiresInvoice:   req.RequiresInvoice,
		Amount:            req.Amount,
		Currency:          req.Currency,
		RiskActivities:    sanitizeAll(req.RiskActivities),
		RiskFlag:          req.RiskFlag,
		MedicalConditions: utils.SanitizeString(req.MedicalConditions),
		State:             domainwf.InitialState,
		ResponsibleID:     req.Actor.ID,
		CreatedAt:         now,
		UpdatedAt:         now,
		StateChangedAt:    now,
	}
	if c.Currency == "" {
		c.Currency = entity.DefaultCurrency
	}
	if err := validateMoney(c.Amount, c.Currency); err != nil {
		return nil, err
	}

	md, err := decodeMetadata(c.EmissionType, req.MetadataJSON)
	if err != nil {
		return nil, err
	}
	c.Metadata = md

	snap, err := s.orchestrator.Intake(ctx, func(txCtx context.Context) (uuid.UUID, error) {
		if err := s.caseRepo.Create(txCtx, c); err != nil {
			return uuid.Nil, fmt.Errorf("create case: %w", err)
		}

		record := &entity.TransitionRecord{
			CaseID:    c.ID,
			ActorID:   req.Actor.ID,
			ActorRole: string(req.Actor.Role),
			ToState:   c.State.String(),
			Reason:    "case opened",
			Timestamp: now,
		}
		if err := s.historyRepo.Create(txCtx, record); err != nil {
			return uuid.Nil, fmt.Errorf("create history: %w", err)
		}
		return c.ID, nil
	})
	if err != nil {
		s.logger.Error("Failed to open case", "error", err)
		return nil, fmt.Errorf("failed to open case: %w", err)
	}

	s.logger.Info("Case opened", "case_id", c.ID.String(), "folio", c.Folio, "emission_type", c.EmissionType)
	return snap, nil
}

// Get returns the current snapshot of a case
func (s *caseServiceImpl) Get(ctx context.Context, id uuid.UUID) (*workflow.Snapshot, error) {
	return s.orchestrator.Snapshot(ctx, id)
}

// UpdateDeclarations applies attribute changes and re-processes the case
func (s *caseServiceImpl) UpdateDeclarations(ctx context.Context, id uuid.UUID, upd DeclarationsUpdate) (*workflow.Snapshot, error) {
	return s.orchestrator.Apply(ctx, id, func(txCtx context.Context, c *entity.Case) error {
		if upd.EmissionType != nil {
			c.EmissionType = *upd.EmissionType
			if upd.MetadataJSON == nil {
				c.Metadata = entity.EmptyMetadata(c.EmissionType)
			}
		}
		if upd.PersonType != nil {
			c.PersonType = *upd.PersonType
		}
		if upd.RequiresInvoice != nil {
			c.RequiresInvoice = *upd.RequiresInvoice
		}
		if upd.Amount != nil {
			amount := *upd.Amount
			c.Amount = &amount
		}
		if upd.Currency != nil {
			c.Currency = *upd.Currency
		}
		if upd.RiskActivities != nil {
			c.RiskActivities = sanitizeAll(*upd.RiskActivities)
		}
		if upd.RiskFlag != nil {
			c.RiskFlag = *upd.RiskFlag
		}
		if upd.MedicalConditions != nil {
			c.MedicalConditions = utils.SanitizeString(*upd.MedicalConditions)
		}
		if upd.MetadataJSON != nil {
			md, err := decodeMetadata(c.EmissionType, *upd.MetadataJSON)
			if err != nil {
				return err
			}
			c.Metadata = md
		}

		if err := validateMoney(c.Amount, c.Currency); err != nil {
			return err
		}

		s.logger.Info("Case declarations updated", "case_id", c.ID.String(), "folio", c.Folio)
		return nil
	})
}

// AttachDocument records an uploaded document and re-processes the case
func (s *caseServiceImpl) AttachDocument(ctx context.Context, id uuid.UUID, req AttachDocumentRequest) (*workflow.Snapshot, error) {
	if !req.Kind.IsValid() {
		return nil, fmt.Errorf("%w: unknown document kind %q", ErrInvalidInput, req.Kind)
	}
	status := req.Status
	if status == "" {
		status = entity.DocumentStatusPending
	}
	if err := entity.ValidateDocumentStatus(status); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	return s.orchestrator.Apply(ctx, id, func(txCtx context.Context, c *entity.Case) error {
		doc := &entity.Document{
			CaseID:     c.ID,
			Kind:       req.Kind,
			Status:     status,
			OCRStatus:  entity.OCRStatusPending,
			FileName:   utils.SanitizeString(req.FileName),
			UploadedAt: s.clock().UTC(),
		}
		if err := s.documentRepo.Create(txCtx, doc); err != nil {
			return fmt.Errorf("create document: %w", err)
		}

		s.logger.Info("Document attached", "folio", c.Folio, "document_id", doc.ID, "kind", doc.Kind)
		return nil
	})
}

// RemoveDocument detaches a document and re-processes the case
func (s *caseServiceImpl) RemoveDocument(ctx context.Context, id uuid.UUID, docID int64) (*workflow.Snapshot, error) {
	return s.orchestrator.Apply(ctx, id, func(txCtx context.Context, c *entity.Case) error {
		if _, err := s.ownedDocument(txCtx, c.ID, docID); err != nil {
			return err
		}
		if err := s.documentRepo.Delete(txCtx, docID); err != nil {
			return fmt.Errorf("delete document: %w", err)
		}

		s.logger.Info("Document removed", "folio", c.Folio, "document_id", docID)
		return nil
	})
}

// ReviewDocument accepts or rejects a document and re-processes the case
func (s *caseServiceImpl) ReviewDocument(ctx context.Context, id uuid.UUID, docID int64, status string, reviewer domainwf.Actor) (*workflow.Snapshot, error) {
	if err := entity.ValidateDocumentStatus(status); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := reviewer.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	return s.orchestrator.Apply(ctx, id, func(txCtx context.Context, c *entity.Case) error {
		if _, err := s.ownedDocument(txCtx, c.ID, docID); err != nil {
			return err
		}
		if err := s.documentRepo.UpdateReview(txCtx, docID, status, reviewer.ID, s.clock().UTC()); err != nil {
			return fmt.Errorf("update document review: %w", err)
		}

		s.logger.Info("Document reviewed", "folio", c.Folio, "document_id", docID, "status", status, "reviewer", reviewer.ID)
		return nil
	})
}

// UpdateOCRStatus records extraction progress. OCR status is informational
// and does not re-process the case.
func (s *caseServiceImpl) UpdateOCRStatus(ctx context.Context, id uuid.UUID, docID int64, status string) error {
	if err := entity.ValidateOCRStatus(status); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if _, err := s.ownedDocument(ctx, id, docID); err != nil {
		return err
	}
	if err := s.documentRepo.UpdateOCRStatus(ctx, docID, status); err != nil {
		s.logger.Error("Failed to update OCR status", "error", err, "document_id", docID)
		return fmt.Errorf("update ocr status: %w", err)
	}
	return nil
}

// History returns the transition audit trail of a case
func (s *caseServiceImpl) History(ctx context.Context, id uuid.UUID) ([]*entity.TransitionRecord, error) {
	c, err := s.caseRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get case: %w", err)
	}
	if c == nil {
		return nil, fmt.Errorf("%w: %s", workflow.ErrUnknownCase, id)
	}

	records, err := s.historyRepo.GetByCaseID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	return records, nil
}

func (s *caseServiceImpl) ownedDocument(ctx context.Context, caseID uuid.UUID, docID int64) (*entity.Document, error) {
	doc, err := s.documentRepo.GetByID(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	if doc == nil || doc.CaseID != caseID {
		return nil, fmt.Errorf("%w: %d", ErrUnknownDocument, docID)
	}
	return doc, nil
}

func validateMoney(amount *decimal.Decimal, currency string) error {
	if err := utils.ValidateCurrency(currency); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if amount != nil {
		if err := utils.ValidateAmount(*amount); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}
	return nil
}

func decodeMetadata(t entity.EmissionType, raw string) (entity.Metadata, error) {
	if strings.TrimSpace(raw) == "" {
		return entity.EmptyMetadata(t), nil
	}
	md, err := entity.DecodeMetadata(t, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return md, nil
}

func sanitizeAll(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, utils.SanitizeString(s))
	}
	return out
}
