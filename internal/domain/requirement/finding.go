package requirement

// Severity grades a finding. Neither severity blocks a transition; only open
// missing items do.
type Severity string

const (
	SeverityBlocking Severity = "BLOCKING"
	SeverityAdvisory Severity = "ADVISORY"
)

// Finding codes
const (
	FindingEmissionTypeMissing = "EMISSION_TYPE_MISSING"
	FindingEmissionTypeInvalid = "EMISSION_TYPE_INVALID"
	FindingPersonTypeMissing   = "PERSON_TYPE_MISSING"
	FindingPersonTypeInvalid   = "PERSON_TYPE_INVALID"
	FindingMetadataMismatch    = "METADATA_MISMATCH"
	FindingSeniorityGap        = "SENIORITY_GAP"
	FindingCurrencyUnrated     = "CURRENCY_WITHOUT_THRESHOLD"
)

// Finding is a non-document validation result
type Finding struct {
	Code     string   `json:"code"`
	Field    string   `json:"field"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Blocking reports whether the finding marks missing or malformed data
func (f Finding) Blocking() bool {
	return f.Severity == SeverityBlocking
}
