// Package faltantes diffs the documents a case requires against what it has
// and plans which missing items to open and which to close.
package faltantes

import (
	"sort"

	"github.com/google/uuid"

	"github.com/garyjia/emission-workflow/internal/domain/entity"
	"github.com/garyjia/emission-workflow/internal/domain/requirement"
)

// CloseReason explains why an open item is being closed
type CloseReason string

const (
	ReasonSatisfied   CloseReason = "SATISFIED"
	ReasonNotRequired CloseReason = "NOT_REQUIRED"
	ReasonUnknownCode CloseReason = "UNKNOWN_CODE"
	ReasonDuplicate   CloseReason = "DUPLICATE"
)

// Closure is one open item to mark resolved
type Closure struct {
	ItemID int64
	Code   entity.MissingItemCode
	Reason CloseReason
}

// Resolution returns the resolution tag stored on the item
func (c Closure) Resolution() string {
	if c.Reason == ReasonDuplicate {
		return entity.ResolutionDuplicate
	}
	return entity.ResolutionAuto
}

// Conflict records more than one open item found for the same code
type Conflict struct {
	Code    entity.MissingItemCode
	KeptID  int64
	Dropped []int64
}

// Plan is the result of a reconciliation
type Plan struct {
	ToOpen    []entity.MissingItem
	ToClose   []Closure
	Conflicts []Conflict
}

// Empty reports whether applying the plan would change nothing
func (p Plan) Empty() bool {
	return len(p.ToOpen) == 0 && len(p.ToClose) == 0
}

// Input is everything reconciliation needs about one case
type Input struct {
	CaseID     uuid.UUID
	PersonType entity.PersonType
	Required   requirement.Set

	// Satisfied holds kinds backed by accepted documents or waived by an operator.
	Satisfied map[entity.DocumentKind]bool

	// Existing is the case's missing item collection; resolved items are ignored.
	Existing []*entity.MissingItem
}

// Reconcile computes the missing item changes for a case. It never looks at
// or modifies case attributes, and running it again on the applied result
// yields an empty plan.
func Reconcile(in Input) Plan {
	var plan Plan

	openByCode := make(map[entity.MissingItemCode][]*entity.MissingItem)
	for _, it := range in.Existing {
		if it.Open() {
			openByCode[it.Code] = append(openByCode[it.Code], it)
		}
	}

	codes := make([]entity.MissingItemCode, 0, len(openByCode))
	for code := range openByCode {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })

	// Collapse duplicates first; the oldest item survives.
	kept := make(map[entity.MissingItemCode]*entity.MissingItem, len(codes))
	for _, code := range codes {
		items := openByCode[code]
		sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
		kept[code] = items[0]

		if len(items) > 1 {
			conflict := Conflict{Code: code, KeptID: items[0].ID}
			for _, dup := range items[1:] {
				conflict.Dropped = append(conflict.Dropped, dup.ID)
				plan.ToClose = append(plan.ToClose, Closure{ItemID: dup.ID, Code: code, Reason: ReasonDuplicate})
			}
			plan.Conflicts = append(plan.Conflicts, conflict)
		}
	}

	// Retire open items whose requirement no longer applies or is satisfied.
	for _, code := range codes {
		it := kept[code]
		kind, ok := entity.KindForCode(code)
		switch {
		case !ok:
			plan.ToClose = append(plan.ToClose, Closure{ItemID: it.ID, Code: code, Reason: ReasonUnknownCode})
		case !in.Required.Has(kind):
			plan.ToClose = append(plan.ToClose, Closure{ItemID: it.ID, Code: code, Reason: ReasonNotRequired})
		case in.Satisfied[kind]:
			plan.ToClose = append(plan.ToClose, Closure{ItemID: it.ID, Code: code, Reason: ReasonSatisfied})
		}
	}

	// Open one item per unmet requirement that has none.
	for _, kind := range in.Required.Sorted() {
		if in.Satisfied[kind] {
			continue
		}
		code, ok := entity.CodeFor(kind)
		if !ok {
			continue
		}
		if _, exists := kept[code]; exists {
			continue
		}
		plan.ToOpen = append(plan.ToOpen, entity.MissingItem{
			CaseID:  in.CaseID,
			Code:    code,
			Kind:    kind,
			Message: entity.MessageFor(kind, in.PersonType),
		})
	}

	return plan
}

// Outstanding returns the required kinds not covered by the satisfied set,
// which is exactly the set of codes that must be open after reconciliation.
func Outstanding(required requirement.Set, satisfied map[entity.DocumentKind]bool) []entity.DocumentKind {
	var out []entity.DocumentKind
	for _, kind := range required.Sorted() {
		if !satisfied[kind] {
			out = append(out, kind)
		}
	}
	return out
}
