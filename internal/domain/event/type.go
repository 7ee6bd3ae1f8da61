package event

// Type identifies the type of domain event
type Type string

const (
	TypeCaseOpened       Type = "case.opened"
	TypeCaseProcessed    Type = "case.processed"
	TypeStatusChanged    Type = "case.status_changed"
	TypeCaseEscalated    Type = "case.escalated"
	TypeMissingResolved  Type = "missing_item.resolved"
	TypeSLABreached      Type = "sla.breached"
	TypeDocumentAttached Type = "document.attached"
	TypeDocumentRemoved  Type = "document.removed"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeCaseOpened,
		TypeCaseProcessed,
		TypeStatusChanged,
		TypeCaseEscalated,
		TypeMissingResolved,
		TypeSLABreached,
		TypeDocumentAttached,
		TypeDocumentRemoved:
		return true
	default:
		return false
	}
}
