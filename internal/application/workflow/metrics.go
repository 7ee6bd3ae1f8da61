package workflow

import (
	"time"

	"github.com/garyjia/emission-workflow/internal/domain/sla"
	domainwf "github.com/garyjia/emission-workflow/internal/domain/workflow"
)

// Metrics receives orchestrator measurements. Implementations must be safe
// for concurrent use.
type Metrics interface {
	ObserveOperation(op string, elapsed time.Duration, err error)
	IncTransition(from, to domainwf.State, automatic bool)
	AddMissingItems(opened, closed, conflicts int)
	IncSLAAssessment(severity sla.Severity)
	ObserveSweep(evaluated, failed int, elapsed time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) ObserveOperation(string, time.Duration, error)       {}
func (nopMetrics) IncTransition(domainwf.State, domainwf.State, bool) {}
func (nopMetrics) AddMissingItems(int, int, int)                       {}
func (nopMetrics) IncSLAAssessment(sla.Severity)                       {}
func (nopMetrics) ObserveSweep(int, int, time.Duration)                {}
