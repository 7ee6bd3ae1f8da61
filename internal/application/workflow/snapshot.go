package workflow

import (
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/emission-workflow/internal/domain/entity"
	"github.com/garyjia/emission-workflow/internal/domain/requirement"
	"github.com/garyjia/emission-workflow/internal/domain/sla"
	domainwf "github.com/garyjia/emission-workflow/internal/domain/workflow"
)

// Snapshot is the refreshed view of a case returned by every orchestrator call
type Snapshot struct {
	Case          *entity.Case          `json:"case"`
	Documents     []*entity.Document    `json:"documents"`
	OpenItems     []*entity.MissingItem `json:"open_items"`
	ResolvedItems []*entity.MissingItem `json:"resolved_items"`
	Required      []entity.DocumentKind `json:"required_documents"`
	Findings      []requirement.Finding `json:"findings"`

	// Opened and Closed count the missing items changed by this call.
	Opened int `json:"opened"`
	Closed int `json:"closed"`

	Transitions []TransitionSummary `json:"transitions,omitempty"`
}

// TransitionSummary describes one transition applied during a call
type TransitionSummary struct {
	From      domainwf.State `json:"from"`
	To        domainwf.State `json:"to"`
	ActorID   string         `json:"actor_id"`
	Automatic bool           `json:"automatic"`
}

// SweepResult is the successful SLA evaluation of one case
type SweepResult struct {
	CaseID     uuid.UUID      `json:"case_id"`
	Folio      string         `json:"folio"`
	Assessment sla.Assessment `json:"assessment"`
	Escalated  bool           `json:"escalated"`
}

// SweepReport collects per-case results and isolated failures of one sweep
type SweepReport struct {
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Results    []SweepResult     `json:"results"`
	Failures   []*SweepItemError `json:"failures"`
}

// Breaches returns the results whose budget was exceeded
func (r *SweepReport) Breaches() []SweepResult {
	var out []SweepResult
	for _, res := range r.Results {
		if res.Assessment.Severity.IsBreach() {
			out = append(out, res)
		}
	}
	return out
}

// Escalations counts the cases the sweep escalated
func (r *SweepReport) Escalations() int {
	n := 0
	for _, res := range r.Results {
		if res.Escalated {
			n++
		}
	}
	return n
}
