package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DocumentKind tags an uploaded document with the requirement it satisfies
type DocumentKind string

const (
	KindPrimaryApplication          DocumentKind = "primary_application"
	KindFiscalStandingProof         DocumentKind = "fiscal_standing_proof"
	KindOfficialID                  DocumentKind = "official_id"
	KindClientRegistrationForm      DocumentKind = "client_registration_form"
	KindIncorporationDeed           DocumentKind = "incorporation_deed"
	KindPriorPolicyCoverPage        DocumentKind = "prior_policy_cover_page"
	KindPaymentProof                DocumentKind = "payment_proof"
	KindPriorPolicyCertificate      DocumentKind = "prior_policy_certificate"
	KindSeniorityLetter             DocumentKind = "seniority_letter"
	KindEmploymentTerminationLetter DocumentKind = "employment_termination_letter"
	KindRiskActivityQuestionnaire   DocumentKind = "risk_activity_questionnaire"
	KindMedicalExpansionForm        DocumentKind = "medical_information_expansion_form"
	KindSelectiveRiskQuestionnaire  DocumentKind = "selective_risk_questionnaire"
)

// Document is a file attached to a case through the document store
type Document struct {
	ID         int64        `json:"id"`
	CaseID     uuid.UUID    `json:"case_id"`
	Kind       DocumentKind `json:"kind"`
	Status     string       `json:"status"`
	OCRStatus  string       `json:"ocr_status"`
	FileName   string       `json:"file_name"`
	UploadedAt time.Time    `json:"uploaded_at"`
	ReviewedBy string       `json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time   `json:"reviewed_at,omitempty"`
}

// Accepted reports whether the document satisfies its requirement
func (d *Document) Accepted() bool {
	return d.Status == DocumentStatusAccepted
}

// SatisfiedKinds returns the set of document kinds backed by an accepted document
func SatisfiedKinds(docs []*Document) map[DocumentKind]bool {
	satisfied := make(map[DocumentKind]bool, len(docs))
	for _, d := range docs {
		if d.Accepted() {
			satisfied[d.Kind] = true
		}
	}
	return satisfied
}

// ValidateDocumentStatus checks a review status value
func ValidateDocumentStatus(status string) error {
	switch status {
	case DocumentStatusPending, DocumentStatusAccepted, DocumentStatusRejected:
		return nil
	default:
		return fmt.Errorf("invalid document status: %q", status)
	}
}

// ValidateOCRStatus checks an OCR status value
func ValidateOCRStatus(status string) error {
	switch status {
	case OCRStatusPending, OCRStatusProcessing, OCRStatusProcessed, OCRStatusFailed:
		return nil
	default:
		return fmt.Errorf("invalid OCR status: %q", status)
	}
}
