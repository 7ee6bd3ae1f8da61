package entity

import (
	"time"

	"github.com/google/uuid"
)

// MissingItemCode is the stable identifier of a "faltante"
type MissingItemCode string

const (
	CodeSinSolicitud             MissingItemCode = "F_SIN_SOLICITUD"
	CodeSinConstancia            MissingItemCode = "F_SIN_CONSTANCIA"
	CodeSinIdentificacion        MissingItemCode = "F_SIN_IDENTIFICACION"
	CodeSinFormatoAlta           MissingItemCode = "F_SIN_FORMATO_ALTA"
	CodeSinActaConstitutiva      MissingItemCode = "F_SIN_ACTA_CONSTITUTIVA"
	CodeSinCaratula              MissingItemCode = "F_SIN_CARATULA"
	CodeSinComprobantePago       MissingItemCode = "F_SIN_COMPROBANTE_PAGO"
	CodeSinCertificado           MissingItemCode = "F_SIN_CERTIFICADO"
	CodeSinCartaAntiguedad       MissingItemCode = "F_SIN_CARTA_ANTIGUEDAD"
	CodeSinCartaBaja             MissingItemCode = "F_SIN_CARTA_BAJA"
	CodeSinCuestionarioActividad MissingItemCode = "F_SIN_CUESTIONARIO_ACTIVIDAD"
	CodeSinAmpliacionMedica      MissingItemCode = "F_SIN_AMPLIACION_MEDICA"
	CodeSinCuestionarioSelectivo MissingItemCode = "F_SIN_CUESTIONARIO_SELECTIVO"
)

// requirementCatalog is the bijection between document kinds and missing
// item codes, together with the default message of each item.
var requirementCatalog = []struct {
	kind    DocumentKind
	code    MissingItemCode
	message string
}{
	{KindPrimaryApplication, CodeSinSolicitud, "Falta la solicitud de emisión firmada"},
	{KindFiscalStandingProof, CodeSinConstancia, "Falta la constancia de situación fiscal"},
	{KindOfficialID, CodeSinIdentificacion, "Falta la identificación oficial del contratante"},
	{KindClientRegistrationForm, CodeSinFormatoAlta, "Falta el formato de alta de cliente"},
	{KindIncorporationDeed, CodeSinActaConstitutiva, "Falta el acta constitutiva"},
	{KindPriorPolicyCoverPage, CodeSinCaratula, "Falta la carátula de la póliza anterior"},
	{KindPaymentProof, CodeSinComprobantePago, "Falta el comprobante de pago de la póliza anterior"},
	{KindPriorPolicyCertificate, CodeSinCertificado, "Falta el certificado de la póliza anterior"},
	{KindSeniorityLetter, CodeSinCartaAntiguedad, "Falta la carta de antigüedad"},
	{KindEmploymentTerminationLetter, CodeSinCartaBaja, "Falta la carta de baja laboral"},
	{KindRiskActivityQuestionnaire, CodeSinCuestionarioActividad, "Falta el cuestionario de actividades de riesgo"},
	{KindMedicalExpansionForm, CodeSinAmpliacionMedica, "Falta el formato de ampliación de información médica"},
	{KindSelectiveRiskQuestionnaire, CodeSinCuestionarioSelectivo, "Falta el cuestionario de riesgo selectivo"},
}

var (
	codeByKind    = make(map[DocumentKind]MissingItemCode, len(requirementCatalog))
	kindByCode    = make(map[MissingItemCode]DocumentKind, len(requirementCatalog))
	messageByKind = make(map[DocumentKind]string, len(requirementCatalog))
)

func init() {
	for _, r := range requirementCatalog {
		codeByKind[r.kind] = r.code
		kindByCode[r.code] = r.kind
		messageByKind[r.kind] = r.message
	}
}

// AllDocumentKinds returns every document kind known to the engine
func AllDocumentKinds() []DocumentKind {
	kinds := make([]DocumentKind, 0, len(requirementCatalog))
	for _, r := range requirementCatalog {
		kinds = append(kinds, r.kind)
	}
	return kinds
}

// IsValid returns true if the kind is part of the catalog
func (k DocumentKind) IsValid() bool {
	_, ok := codeByKind[k]
	return ok
}

// CodeFor returns the missing item code for a document kind
func CodeFor(kind DocumentKind) (MissingItemCode, bool) {
	code, ok := codeByKind[kind]
	return code, ok
}

// KindForCode returns the document kind behind a missing item code
func KindForCode(code MissingItemCode) (DocumentKind, bool) {
	kind, ok := kindByCode[code]
	return kind, ok
}

// MessageFor returns the operator-facing message for a missing document.
// Legal entities present the official ID of their legal representative.
func MessageFor(kind DocumentKind, person PersonType) string {
	if kind == KindOfficialID && person == PersonLegalEntity {
		return "Falta la identificación oficial del representante legal"
	}
	return messageByKind[kind]
}

// MissingItem ("faltante") is an open or resolved requirement of a case.
// Resolved items are never deleted.
type MissingItem struct {
	ID         int64           `json:"id"`
	CaseID     uuid.UUID       `json:"case_id"`
	Code       MissingItemCode `json:"code"`
	Kind       DocumentKind    `json:"kind"`
	Message    string          `json:"message"`
	Resolved   bool            `json:"resolved"`
	ResolvedAt *time.Time      `json:"resolved_at,omitempty"`
	Resolution string          `json:"resolution,omitempty"`
	ResolvedBy string          `json:"resolved_by,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Open reports whether the item still blocks the case
func (m *MissingItem) Open() bool {
	return !m.Resolved
}

// OpenItems filters the unresolved items
func OpenItems(items []*MissingItem) []*MissingItem {
	var open []*MissingItem
	for _, it := range items {
		if it.Open() {
			open = append(open, it)
		}
	}
	return open
}
