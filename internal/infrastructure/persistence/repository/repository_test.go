package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/emission-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/emission-workflow/internal/domain/workflow"
	"github.com/garyjia/emission-workflow/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/emission-workflow/migrations"
	"github.com/garyjia/emission-workflow/pkg/database"
)

var baseTime = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

type stores struct {
	db      *sqlite.DB
	cases   *CaseRepository
	docs    *DocumentRepository
	items   *MissingItemRepository
	history *HistoryRepository
}

func newStores(t *testing.T) *stores {
	t.Helper()
	logger := zap.NewNop()

	raw, err := database.New(database.DefaultConfig(filepath.Join(t.TempDir(), "emissions.db")), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })
	require.NoError(t, database.NewMigrator(raw, logger).RunMigrationsFS(migrations.FS))

	db := sqlite.NewDB(raw.DB, logger)
	return &stores{
		db:      db,
		cases:   NewCaseRepository(db, logger).(*CaseRepository),
		docs:    NewDocumentRepository(db, logger).(*DocumentRepository),
		items:   NewMissingItemRepository(db, logger).(*MissingItemRepository),
		history: NewHistoryRepository(db, logger).(*HistoryRepository),
	}
}

func sampleCase(created time.Time) *entity.Case {
	amount := decimal.RequireFromString("1250000.50")
	end := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	return &entity.Case{
		ID:                uuid.New(),
		EmissionType:      entity.EmissionPeriodElimination,
		PersonType:        entity.PersonIndividual,
		RequiresInvoice:   true,
		Amount:            &amount,
		Currency:          "MXN",
		RiskActivities:    []string{"buceo", "paracaidismo"},
		MedicalConditions: "hipertensión",
		Metadata: entity.PeriodEliminationMetadata{
			Origin:           entity.OriginGroup,
			PriorCoverageEnd: &end,
			PriorCarrier:     "GNP",
		},
		State:          domainwf.StateDraft,
		ResponsibleID:  "adv-1",
		CreatedAt:      created,
		UpdatedAt:      created,
		StateChangedAt: created,
	}
}

func TestCaseRepository_FolioSequencePerYear(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()

	first := sampleCase(baseTime)
	second := sampleCase(baseTime.Add(time.Hour))
	nextYear := sampleCase(time.Date(2027, 1, 2, 0, 0, 0, 0, time.UTC))

	require.NoError(t, s.cases.Create(ctx, first))
	require.NoError(t, s.cases.Create(ctx, second))
	require.NoError(t, s.cases.Create(ctx, nextYear))

	assert.Equal(t, "EM-2026-000001", first.Folio)
	assert.Equal(t, "EM-2026-000002", second.Folio)
	assert.Equal(t, "EM-2027-000001", nextYear.Folio)
}

func TestCaseRepository_RoundTrip(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	c := sampleCase(baseTime)
	require.NoError(t, s.cases.Create(ctx, c))

	got, err := s.cases.GetByID(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, c.Folio, got.Folio)
	assert.Equal(t, c.EmissionType, got.EmissionType)
	assert.True(t, got.RequiresInvoice)
	require.NotNil(t, got.Amount)
	assert.True(t, c.Amount.Equal(*got.Amount))
	assert.Equal(t, []string{"buceo", "paracaidismo"}, got.RiskActivities)
	assert.Equal(t, domainwf.StateDraft, got.State)
	assert.True(t, baseTime.Equal(got.CreatedAt))

	md, ok := got.Metadata.(entity.PeriodEliminationMetadata)
	require.True(t, ok, "metadata type %T", got.Metadata)
	assert.Equal(t, entity.OriginGroup, md.Origin)
	assert.Equal(t, "GNP", md.PriorCarrier)
	require.NotNil(t, md.PriorCoverageEnd)

	byFolio, err := s.cases.GetByFolio(ctx, c.Folio)
	require.NoError(t, err)
	require.NotNil(t, byFolio)
	assert.Equal(t, c.ID, byFolio.ID)
}

func TestCaseRepository_NotFound(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()

	got, err := s.cases.GetByID(ctx, uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, got)

	got, err = s.cases.GetByFolio(ctx, "EM-2026-999999")
	assert.NoError(t, err)
	assert.Nil(t, got)

	assert.Error(t, s.cases.Update(ctx, sampleCase(baseTime)))
}

func TestCaseRepository_UpdateAndListActive(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()

	active := sampleCase(baseTime)
	done := sampleCase(baseTime.Add(time.Minute))
	require.NoError(t, s.cases.Create(ctx, active))
	require.NoError(t, s.cases.Create(ctx, done))

	done.State = domainwf.StateReadyForPortal
	done.Amount = nil
	done.UpdatedAt = baseTime.Add(time.Hour)
	require.NoError(t, s.cases.Update(ctx, done))

	reloaded, err := s.cases.GetByID(ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, domainwf.StateReadyForPortal, reloaded.State)
	assert.Nil(t, reloaded.Amount)
	assert.Empty(t, reloaded.Waivers)

	active.Waive(entity.KindSeniorityLetter)
	require.NoError(t, s.cases.Update(ctx, active))
	reloaded, err = s.cases.GetByID(ctx, active.ID)
	require.NoError(t, err)
	assert.Equal(t, []entity.DocumentKind{entity.KindSeniorityLetter}, reloaded.Waivers)

	ids, err := s.cases.ListActiveIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{active.ID}, ids)
}

func TestCaseRepository_UnknownTypeAndCorruptStateAreLoaded(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()

	c := sampleCase(baseTime)
	c.EmissionType = "reinstatement"
	c.Metadata = nil
	require.NoError(t, s.cases.Create(ctx, c))

	_, err := s.db.ExecContext(ctx, `UPDATE cases SET state = 'ARCHIVED' WHERE id = ?`, c.ID.String())
	require.NoError(t, err)

	got, err := s.cases.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Metadata)

	var invalid *domainwf.InvalidStateError
	assert.ErrorAs(t, got.Validate(), &invalid)
}

func TestCaseRepository_CreateRollsBackWithEnclosingTransaction(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	boom := errors.New("history write failed")

	c := sampleCase(baseTime)
	err := s.db.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.cases.Create(txCtx, c); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.cases.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	// the folio counter rolled back with the insert
	next := sampleCase(baseTime)
	require.NoError(t, s.cases.Create(ctx, next))
	assert.Equal(t, "EM-2026-000001", next.Folio)
}

func TestDocumentRepository_Lifecycle(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	c := sampleCase(baseTime)
	require.NoError(t, s.cases.Create(ctx, c))

	doc := &entity.Document{
		CaseID:     c.ID,
		Kind:       entity.KindPrimaryApplication,
		Status:     entity.DocumentStatusPending,
		OCRStatus:  entity.OCRStatusPending,
		FileName:   "solicitud.pdf",
		UploadedAt: baseTime,
	}
	require.NoError(t, s.docs.Create(ctx, doc))
	require.NotZero(t, doc.ID)

	require.NoError(t, s.docs.UpdateReview(ctx, doc.ID, entity.DocumentStatusAccepted, "ops-1", baseTime.Add(time.Hour)))
	require.NoError(t, s.docs.UpdateOCRStatus(ctx, doc.ID, entity.OCRStatusProcessed))

	got, err := s.docs.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Accepted())
	assert.Equal(t, "ops-1", got.ReviewedBy)
	require.NotNil(t, got.ReviewedAt)
	assert.Equal(t, entity.OCRStatusProcessed, got.OCRStatus)

	list, err := s.docs.GetByCaseID(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.docs.Delete(ctx, doc.ID))
	assert.Error(t, s.docs.Delete(ctx, doc.ID))

	missing, err := s.docs.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMissingItemRepository_ResolveOnce(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	c := sampleCase(baseTime)
	require.NoError(t, s.cases.Create(ctx, c))

	item := &entity.MissingItem{
		CaseID:    c.ID,
		Code:      entity.CodeSinSolicitud,
		Kind:      entity.KindPrimaryApplication,
		Message:   "Falta la solicitud de emisión firmada",
		CreatedAt: baseTime,
	}
	require.NoError(t, s.items.Create(ctx, item))

	require.NoError(t, s.items.Resolve(ctx, item.ID, entity.ResolutionAuto, domainwf.SystemActorID, baseTime.Add(time.Hour)))
	assert.Error(t, s.items.Resolve(ctx, item.ID, entity.ResolutionManual, "ops-1", baseTime.Add(2*time.Hour)))

	items, err := s.items.GetByCaseID(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].Resolved)
	assert.Equal(t, entity.ResolutionAuto, items[0].Resolution)
	assert.Equal(t, domainwf.SystemActorID, items[0].ResolvedBy)
	require.NotNil(t, items[0].ResolvedAt)
}

func TestHistoryRepository_InsertionOrder(t *testing.T) {
	s := newStores(t)
	ctx := context.Background()
	c := sampleCase(baseTime)
	require.NoError(t, s.cases.Create(ctx, c))

	steps := []struct{ from, to string }{
		{"", "DRAFT"},
		{"DRAFT", "UNDER_OCR_REVIEW"},
		{"UNDER_OCR_REVIEW", "MISSING_ITEMS"},
	}
	for _, step := range steps {
		require.NoError(t, s.history.Create(ctx, &entity.TransitionRecord{
			CaseID:    c.ID,
			ActorID:   "adv-1",
			ActorRole: "advisor",
			FromState: step.from,
			ToState:   step.to,
			Timestamp: baseTime,
		}))
	}

	records, err := s.history.GetByCaseID(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i, step := range steps {
		assert.Equal(t, step.to, records[i].ToState)
	}
}
