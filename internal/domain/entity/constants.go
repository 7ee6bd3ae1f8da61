package entity

// EmissionType is the closed set of emission (application) types
type EmissionType string

const (
	EmissionNewBusiness          EmissionType = "new_business"          // nuevo negocio
	EmissionPeriodElimination    EmissionType = "period_elimination"    // eliminación de periodos
	EmissionIndividualConversion EmissionType = "individual_conversion" // conversión individual
	EmissionCarrierConnection    EmissionType = "carrier_connection"    // conexión de aseguradora
	EmissionWorldwideLink        EmissionType = "worldwide_link"        // vínculo mundial
)

// IsValid returns true if the emission type belongs to the closed set
func (t EmissionType) IsValid() bool {
	switch t {
	case EmissionNewBusiness,
		EmissionPeriodElimination,
		EmissionIndividualConversion,
		EmissionCarrierConnection,
		EmissionWorldwideLink:
		return true
	default:
		return false
	}
}

// PersonType distinguishes individuals from legal entities
type PersonType string

const (
	PersonIndividual  PersonType = "individual"   // persona física
	PersonLegalEntity PersonType = "legal_entity" // persona moral
)

// IsValid returns true for a known person type
func (p PersonType) IsValid() bool {
	return p == PersonIndividual || p == PersonLegalEntity
}

// PriorPolicyOrigin tells whether a period-elimination case comes from an
// individual or a group policy
type PriorPolicyOrigin string

const (
	OriginUndetermined PriorPolicyOrigin = ""
	OriginIndividual   PriorPolicyOrigin = "individual"
	OriginGroup        PriorPolicyOrigin = "group"
)

// DefaultCurrency is used when a case amount carries no currency
const DefaultCurrency = "MXN"

// Document review status constants
const (
	DocumentStatusPending  = "PENDING"
	DocumentStatusAccepted = "ACCEPTED"
	DocumentStatusRejected = "REJECTED"
)

// OCR status constants (informational only)
const (
	OCRStatusPending    = "PENDING"
	OCRStatusProcessing = "PROCESSING"
	OCRStatusProcessed  = "PROCESSED"
	OCRStatusFailed     = "FAILED"
)

// Missing item resolution constants
const (
	ResolutionAuto      = "AUTO"
	ResolutionManual    = "MANUAL"
	ResolutionDuplicate = "DUPLICATE"
)
