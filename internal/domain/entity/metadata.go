package entity

import (
	"encoding/json"
	"fmt"
	"time"
)

// Metadata is the type-specific part of a case. Exactly one concrete type
// exists per emission type; the rule engine switches on the concrete type.
type Metadata interface {
	EmissionType() EmissionType
	sealed()
}

// NewBusinessMetadata carries no additional fields
type NewBusinessMetadata struct{}

// PeriodEliminationMetadata describes the prior coverage whose waiting
// periods are being eliminated
type PeriodEliminationMetadata struct {
	Origin           PriorPolicyOrigin `json:"origin,omitempty"`
	PriorCoverageEnd *time.Time        `json:"prior_coverage_end,omitempty"`
	PriorCarrier     string            `json:"prior_carrier,omitempty"`
}

// IndividualConversionMetadata describes the group policy being converted
type IndividualConversionMetadata struct {
	PriorPolicyNumber    string     `json:"prior_policy_number,omitempty"`
	GroupTerminationDate *time.Time `json:"group_termination_date,omitempty"`
}

// CarrierConnectionMetadata describes the carrier the insured comes from
type CarrierConnectionMetadata struct {
	PriorCarrier      string `json:"prior_carrier,omitempty"`
	PriorPolicyNumber string `json:"prior_policy_number,omitempty"`
}

// WorldwideLinkMetadata describes the stay abroad covered by the link
type WorldwideLinkMetadata struct {
	TravelPurpose  string `json:"travel_purpose,omitempty"`
	Destination    string `json:"destination,omitempty"`
	DurationMonths int    `json:"duration_months,omitempty"`
	Institution    string `json:"institution,omitempty"`
}

func (NewBusinessMetadata) EmissionType() EmissionType          { return EmissionNewBusiness }
func (PeriodEliminationMetadata) EmissionType() EmissionType    { return EmissionPeriodElimination }
func (IndividualConversionMetadata) EmissionType() EmissionType { return EmissionIndividualConversion }
func (CarrierConnectionMetadata) EmissionType() EmissionType    { return EmissionCarrierConnection }
func (WorldwideLinkMetadata) EmissionType() EmissionType        { return EmissionWorldwideLink }

func (NewBusinessMetadata) sealed()          {}
func (PeriodEliminationMetadata) sealed()    {}
func (IndividualConversionMetadata) sealed() {}
func (CarrierConnectionMetadata) sealed()    {}
func (WorldwideLinkMetadata) sealed()        {}

// EmptyMetadata returns the zero metadata for an emission type, or nil for
// an unknown type
func EmptyMetadata(t EmissionType) Metadata {
	switch t {
	case EmissionNewBusiness:
		return NewBusinessMetadata{}
	case EmissionPeriodElimination:
		return PeriodEliminationMetadata{}
	case EmissionIndividualConversion:
		return IndividualConversionMetadata{}
	case EmissionCarrierConnection:
		return CarrierConnectionMetadata{}
	case EmissionWorldwideLink:
		return WorldwideLinkMetadata{}
	default:
		return nil
	}
}

// EncodeMetadata serializes metadata for storage. The emission type column
// acts as the discriminator, so only the variant body is written.
func EncodeMetadata(m Metadata) (string, error) {
	if m == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}
	return string(raw), nil
}

// DecodeMetadata rebuilds the metadata variant for an emission type. An empty
// emission type yields nil metadata (not yet classified).
func DecodeMetadata(t EmissionType, raw string) (Metadata, error) {
	if t == "" {
		return nil, nil
	}
	if raw == "" {
		raw = "{}"
	}

	switch t {
	case EmissionNewBusiness:
		return NewBusinessMetadata{}, nil
	case EmissionPeriodElimination:
		var m PeriodEliminationMetadata
		if err := unmarshalMetadata(raw, &m); err != nil {
			return nil, err
		}
		return m, nil
	case EmissionIndividualConversion:
		var m IndividualConversionMetadata
		if err := unmarshalMetadata(raw, &m); err != nil {
			return nil, err
		}
		return m, nil
	case EmissionCarrierConnection:
		var m CarrierConnectionMetadata
		if err := unmarshalMetadata(raw, &m); err != nil {
			return nil, err
		}
		return m, nil
	case EmissionWorldwideLink:
		var m WorldwideLinkMetadata
		if err := unmarshalMetadata(raw, &m); err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown emission type %q", t)
	}
}

func unmarshalMetadata(raw string, dst interface{}) error {
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("failed to decode %T: %w", dst, err)
	}
	return nil
}
