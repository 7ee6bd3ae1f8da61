package faltantes

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/emission-workflow/internal/domain/entity"
	"github.com/garyjia/emission-workflow/internal/domain/requirement"
)

// apply mimics what the orchestrator persists for a plan
func apply(items []*entity.MissingItem, plan Plan, nextID *int64) []*entity.MissingItem {
	now := time.Now()
	byID := make(map[int64]*entity.MissingItem, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	for _, c := range plan.ToClose {
		it := byID[c.ItemID]
		it.Resolved = true
		it.ResolvedAt = &now
		it.Resolution = c.Resolution()
	}
	for _, o := range plan.ToOpen {
		*nextID++
		item := o
		item.ID = *nextID
		items = append(items, &item)
	}
	return items
}

func TestReconcile_OpensOnePerUnmetRequirement(t *testing.T) {
	caseID := uuid.New()
	plan := Reconcile(Input{
		CaseID:     caseID,
		PersonType: entity.PersonLegalEntity,
		Required:   requirement.NewSet(entity.KindPrimaryApplication, entity.KindOfficialID, entity.KindIncorporationDeed),
		Satisfied:  map[entity.DocumentKind]bool{entity.KindPrimaryApplication: true},
	})

	require.Len(t, plan.ToOpen, 2)
	assert.Empty(t, plan.ToClose)

	codes := []entity.MissingItemCode{plan.ToOpen[0].Code, plan.ToOpen[1].Code}
	assert.ElementsMatch(t, []entity.MissingItemCode{entity.CodeSinIdentificacion, entity.CodeSinActaConstitutiva}, codes)
	for _, it := range plan.ToOpen {
		assert.Equal(t, caseID, it.CaseID)
		if it.Kind == entity.KindOfficialID {
			assert.Contains(t, it.Message, "representante legal")
		}
	}
}

func TestReconcile_IsIdempotent(t *testing.T) {
	in := Input{
		CaseID:    uuid.New(),
		Required:  requirement.NewSet(entity.KindPrimaryApplication, entity.KindPaymentProof, entity.KindPriorPolicyCoverPage),
		Satisfied: map[entity.DocumentKind]bool{entity.KindPaymentProof: true},
		Existing: []*entity.MissingItem{
			{ID: 1, Code: entity.CodeSinComprobantePago, Kind: entity.KindPaymentProof},
			{ID: 2, Code: entity.CodeSinCartaBaja, Kind: entity.KindEmploymentTerminationLetter},
		},
	}

	first := Reconcile(in)
	assert.False(t, first.Empty())

	var nextID int64 = 2
	in.Existing = apply(in.Existing, first, &nextID)

	second := Reconcile(in)
	assert.True(t, second.Empty(), "second reconciliation must be a no-op, got %+v", second)

	assert.Len(t, entity.OpenItems(in.Existing), len(Outstanding(in.Required, in.Satisfied)))
}

func TestReconcile_LeavesExistingItemUntouched(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	existing := &entity.MissingItem{ID: 7, Code: entity.CodeSinSolicitud, Kind: entity.KindPrimaryApplication, CreatedAt: created}

	plan := Reconcile(Input{
		Required: requirement.NewSet(entity.KindPrimaryApplication),
		Existing: []*entity.MissingItem{existing},
	})

	assert.True(t, plan.Empty())
	assert.Equal(t, created, existing.CreatedAt)
}

func TestReconcile_ClosesRetiredRequirements(t *testing.T) {
	plan := Reconcile(Input{
		Required:  requirement.NewSet(entity.KindPrimaryApplication, entity.KindOfficialID),
		Satisfied: map[entity.DocumentKind]bool{entity.KindOfficialID: true},
		Existing: []*entity.MissingItem{
			{ID: 1, Code: entity.CodeSinSolicitud, Kind: entity.KindPrimaryApplication},
			{ID: 2, Code: entity.CodeSinIdentificacion, Kind: entity.KindOfficialID},
			{ID: 3, Code: entity.CodeSinCuestionarioSelectivo, Kind: entity.KindSelectiveRiskQuestionnaire},
			{ID: 4, Code: "F_LEGACY", Kind: "legacy"},
		},
	})

	assert.Empty(t, plan.ToOpen)
	reasons := make(map[int64]CloseReason)
	for _, c := range plan.ToClose {
		reasons[c.ItemID] = c.Reason
	}
	assert.Equal(t, map[int64]CloseReason{
		2: ReasonSatisfied,
		3: ReasonNotRequired,
		4: ReasonUnknownCode,
	}, reasons)
}

func TestReconcile_CollapsesDuplicates(t *testing.T) {
	plan := Reconcile(Input{
		Required: requirement.NewSet(entity.KindPrimaryApplication),
		Existing: []*entity.MissingItem{
			{ID: 9, Code: entity.CodeSinSolicitud, Kind: entity.KindPrimaryApplication},
			{ID: 4, Code: entity.CodeSinSolicitud, Kind: entity.KindPrimaryApplication},
			{ID: 12, Code: entity.CodeSinSolicitud, Kind: entity.KindPrimaryApplication},
		},
	})

	require.Len(t, plan.Conflicts, 1)
	assert.Equal(t, int64(4), plan.Conflicts[0].KeptID)
	assert.ElementsMatch(t, []int64{9, 12}, plan.Conflicts[0].Dropped)
	assert.Empty(t, plan.ToOpen)
	require.Len(t, plan.ToClose, 2)
	for _, c := range plan.ToClose {
		assert.Equal(t, ReasonDuplicate, c.Reason)
		assert.Equal(t, entity.ResolutionDuplicate, c.Resolution())
	}
}

func TestReconcile_IgnoresResolvedHistory(t *testing.T) {
	resolvedAt := time.Now()
	plan := Reconcile(Input{
		Required: requirement.NewSet(entity.KindPrimaryApplication),
		Existing: []*entity.MissingItem{
			{ID: 1, Code: entity.CodeSinSolicitud, Kind: entity.KindPrimaryApplication, Resolved: true, ResolvedAt: &resolvedAt, Resolution: entity.ResolutionAuto},
		},
	})

	require.Len(t, plan.ToOpen, 1, "a requirement that applies again gets a fresh item")
	assert.Empty(t, plan.ToClose)
}

func TestReconcile_WaivedKindCountsAsSatisfied(t *testing.T) {
	resolvedAt := time.Now()
	existing := []*entity.MissingItem{
		{ID: 1, Code: entity.CodeSinCartaAntiguedad, Kind: entity.KindSeniorityLetter, Resolved: true, ResolvedAt: &resolvedAt, Resolution: entity.ResolutionManual},
	}

	plan := Reconcile(Input{
		Required:  requirement.NewSet(entity.KindSeniorityLetter),
		Satisfied: map[entity.DocumentKind]bool{entity.KindSeniorityLetter: true},
		Existing:  existing,
	})
	assert.True(t, plan.Empty())
}
