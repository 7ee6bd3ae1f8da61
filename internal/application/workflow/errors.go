package workflow

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrUnknownCase is returned when the case id does not exist
	ErrUnknownCase = errors.New("unknown case")

	// ErrUnknownMissingItem is returned when no open item carries the requested code
	ErrUnknownMissingItem = errors.New("no open missing item with that code")

	// ErrOpenMissingItems is returned when a case with open items is moved to VIABLE
	ErrOpenMissingItems = errors.New("case still has open missing items")
)

// SweepItemError is the failure to evaluate one case during an SLA sweep
type SweepItemError struct {
	CaseID uuid.UUID `json:"case_id"`
	Err    error     `json:"-"`
}

func (e *SweepItemError) Error() string {
	return fmt.Sprintf("sla sweep failed for case %s: %v", e.CaseID, e.Err)
}

func (e *SweepItemError) Unwrap() error {
	return e.Err
}

// MarshalText renders the failure for JSON reports
func (e *SweepItemError) MarshalText() ([]byte, error) {
	return []byte(e.Error()), nil
}
