package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/garyjia/emission-workflow/internal/application/service"
	"github.com/garyjia/emission-workflow/internal/application/workflow"
	"github.com/garyjia/emission-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/emission-workflow/internal/domain/workflow"
)

const (
	// HeaderActorID and HeaderActorRole carry the caller identity set by the gateway
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	deps   Dependencies
	logger Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(deps Dependencies, logger Logger) *Handlers {
	return &Handlers{deps: deps, logger: logger}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// OpenCaseBody is the payload of POST /api/cases
type OpenCaseBody struct {
	EmissionType      string           `json:"emission_type" binding:"required"`
	PersonType        string           `json:"person_type" binding:"required"`
	RequiresInvoice   bool             `json:"requires_invoice"`
	Amount            *decimal.Decimal `json:"amount"`
	Currency          string           `json:"currency"`
	RiskActivities    []string         `json:"risk_activities"`
	RiskFlag          bool             `json:"risk_flag"`
	MedicalConditions string           `json:"medical_conditions"`
	Metadata          json.RawMessage  `json:"metadata"`
}

// DeclarationsBody is the payload of PUT /api/cases/:id/declarations
type DeclarationsBody struct {
	EmissionType      *string          `json:"emission_type"`
	PersonType        *string          `json:"person_type"`
	RequiresInvoice   *bool            `json:"requires_invoice"`
	Amount            *decimal.Decimal `json:"amount"`
	Currency          *string          `json:"currency"`
	RiskActivities    *[]string        `json:"risk_activities"`
	RiskFlag          *bool            `json:"risk_flag"`
	MedicalConditions *string          `json:"medical_conditions"`
	Metadata          json.RawMessage  `json:"metadata"`
}

// AttachDocumentBody is the payload of POST /api/cases/:id/documents
type AttachDocumentBody struct {
	Kind     string `json:"kind" binding:"required"`
	FileName string `json:"file_name" binding:"required"`
	Status   string `json:"status"`
}

// StatusBody carries a document review or OCR status
type StatusBody struct {
	Status string `json:"status" binding:"required"`
}

// TransitionBody is the payload of POST /api/cases/:id/transitions
type TransitionBody struct {
	To            string `json:"to" binding:"required"`
	ResponsibleID string `json:"responsible_id"`
	Reason        string `json:"reason"`
}

// SweepResponse summarizes an on-demand SLA sweep
type SweepResponse struct {
	Report    *workflow.SweepReport `json:"report"`
	Breached  int                   `json:"breached"`
	Escalated int                   `json:"escalated"`
	Archived  string                `json:"archived,omitempty"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// OpenCase handles POST /api/cases
func (h *Handlers) OpenCase(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var body OpenCaseBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	snap, err := h.deps.Cases.Open(c.Request.Context(), service.OpenCaseRequest{
		EmissionType:      entity.EmissionType(body.EmissionType),
		PersonType:        entity.PersonType(body.PersonType),
		RequiresInvoice:   body.RequiresInvoice,
		Amount:            body.Amount,
		Currency:          body.Currency,
		RiskActivities:    body.RiskActivities,
		RiskFlag:          body.RiskFlag,
		MedicalConditions: body.MedicalConditions,
		MetadataJSON:      rawMetadata(body.Metadata),
		Actor:             actor,
	})
	if err != nil {
		h.fail(c, "open case", err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: snap})
}

// GetCase handles GET /api/cases/:id
func (h *Handlers) GetCase(c *gin.Context) {
	id, ok := h.caseID(c)
	if !ok {
		return
	}

	snap, err := h.deps.Cases.Get(c.Request.Context(), id)
	h.respond(c, "get case", snap, err)
}

// ProcessCase handles POST /api/cases/:id/process
func (h *Handlers) ProcessCase(c *gin.Context) {
	id, ok := h.caseID(c)
	if !ok {
		return
	}

	snap, err := h.deps.Orchestrator.ProcessCase(c.Request.Context(), id)
	h.respond(c, "process case", snap, err)
}

// UpdateDeclarations handles PUT /api/cases/:id/declarations
func (h *Handlers) UpdateDeclarations(c *gin.Context) {
	id, ok := h.caseID(c)
	if !ok {
		return
	}

	var body DeclarationsBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	upd := service.DeclarationsUpdate{
		RequiresInvoice:   body.RequiresInvoice,
		Amount:            body.Amount,
		Currency:          body.Currency,
		RiskActivities:    body.RiskActivities,
		RiskFlag:          body.RiskFlag,
		MedicalConditions: body.MedicalConditions,
	}
	if body.EmissionType != nil {
		t := entity.EmissionType(*body.EmissionType)
		upd.EmissionType = &t
	}
	if body.PersonType != nil {
		p := entity.PersonType(*body.PersonType)
		upd.PersonType = &p
	}
	if raw := rawMetadata(body.Metadata); raw != "" {
		upd.MetadataJSON = &raw
	}

	snap, err := h.deps.Cases.UpdateDeclarations(c.Request.Context(), id, upd)
	h.respond(c, "update declarations", snap, err)
}

// History handles GET /api/cases/:id/history
func (h *Handlers) History(c *gin.Context) {
	id, ok := h.caseID(c)
	if !ok {
		return
	}

	records, err := h.deps.Cases.History(c.Request.Context(), id)
	h.respond(c, "get history", records, err)
}

// AttachDocument handles POST /api/cases/:id/documents
func (h *Handlers) AttachDocument(c *gin.Context) {
	id, ok := h.caseID(c)
	if !ok {
		return
	}

	var body AttachDocumentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	snap, err := h.deps.Cases.AttachDocument(c.Request.Context(), id, service.AttachDocumentRequest{
		Kind:     entity.DocumentKind(body.Kind),
		FileName: body.FileName,
		Status:   body.Status,
	})
	if err != nil {
		h.fail(c, "attach document", err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: snap})
}

// RemoveDocument handles DELETE /api/cases/:id/documents/:docID
func (h *Handlers) RemoveDocument(c *gin.Context) {
	id, docID, ok := h.documentID(c)
	if !ok {
		return
	}

	snap, err := h.deps.Cases.RemoveDocument(c.Request.Context(), id, docID)
	h.respond(c, "remove document", snap, err)
}

// ReviewDocument handles POST /api/cases/:id/documents/:docID/review
func (h *Handlers) ReviewDocument(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, docID, ok := h.documentID(c)
	if !ok {
		return
	}

	var body StatusBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	snap, err := h.deps.Cases.ReviewDocument(c.Request.Context(), id, docID, body.Status, actor)
	h.respond(c, "review document", snap, err)
}

// UpdateOCRStatus handles PUT /api/cases/:id/documents/:docID/ocr
func (h *Handlers) UpdateOCRStatus(c *gin.Context) {
	id, docID, ok := h.documentID(c)
	if !ok {
		return
	}

	var body StatusBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	if err := h.deps.Cases.UpdateOCRStatus(c.Request.Context(), id, docID, body.Status); err != nil {
		h.fail(c, "update ocr status", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// Transition handles POST /api/cases/:id/transitions
func (h *Handlers) Transition(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.caseID(c)
	if !ok {
		return
	}

	var body TransitionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	to, err := domainwf.ParseState(strings.ToUpper(body.To))
	if err != nil {
		h.badRequest(c, "unknown target state", err)
		return
	}

	snap, err := h.deps.Orchestrator.Transition(c.Request.Context(), workflow.TransitionRequest{
		CaseID:        id,
		To:            to,
		Actor:         actor,
		ResponsibleID: body.ResponsibleID,
		Reason:        body.Reason,
	})
	h.respond(c, "transition", snap, err)
}

// ResolveMissingItem handles POST /api/cases/:id/missing-items/:code/resolve
func (h *Handlers) ResolveMissingItem(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.caseID(c)
	if !ok {
		return
	}

	code := entity.MissingItemCode(strings.ToUpper(c.Param("code")))
	snap, err := h.deps.Orchestrator.ResolveMissingItem(c.Request.Context(), id, code, actor)
	h.respond(c, "resolve missing item", snap, err)
}

// Revalidate handles POST /api/cases/:id/missing-items/revalidate
func (h *Handlers) Revalidate(c *gin.Context) {
	id, ok := h.caseID(c)
	if !ok {
		return
	}

	snap, err := h.deps.Orchestrator.Revalidate(c.Request.Context(), id)
	h.respond(c, "revalidate", snap, err)
}

// Sweep handles POST /api/sla/sweep
func (h *Handlers) Sweep(c *gin.Context) {
	var (
		report   *workflow.SweepReport
		archived string
		err      error
	)
	if h.deps.Sweeper != nil {
		report, archived, err = h.deps.Sweeper.RunOnce(c.Request.Context())
	} else {
		report, err = h.deps.Orchestrator.SweepSLA(c.Request.Context())
	}
	if err != nil {
		h.fail(c, "sla sweep", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: SweepResponse{
			Report:    report,
			Breached:  len(report.Breaches()),
			Escalated: report.Escalations(),
			Archived:  archived,
		},
	})
}

// LatestReport handles GET /api/sla/report.xlsx
func (h *Handlers) LatestReport(c *gin.Context) {
	if h.deps.Sweeper == nil || h.deps.Renderer == nil {
		c.JSON(http.StatusNotImplemented, Response{Success: false, Error: "sla reports are disabled"})
		return
	}

	report := h.deps.Sweeper.LastReport()
	if report == nil {
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "no sla sweep has run yet"})
		return
	}

	content, err := h.deps.Renderer.Render(report)
	if err != nil {
		h.fail(c, "render sla report", err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="sla-report.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, content)
}

// ListReports handles GET /api/sla/reports
func (h *Handlers) ListReports(c *gin.Context) {
	if h.deps.Reports == nil {
		c.JSON(http.StatusNotImplemented, Response{Success: false, Error: "sla report archive is disabled"})
		return
	}

	files, err := h.deps.Reports.List(c.Request.Context(), "")
	if err != nil {
		h.fail(c, "list sla reports", err)
		return
	}
	if files == nil {
		files = []string{}
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: files})
}

// DownloadReport handles GET /api/sla/reports/*path
func (h *Handlers) DownloadReport(c *gin.Context) {
	if h.deps.Reports == nil {
		c.JSON(http.StatusNotImplemented, Response{Success: false, Error: "sla report archive is disabled"})
		return
	}

	p := strings.TrimPrefix(path.Clean(c.Param("path")), "/")
	if p == "" || p == "." || strings.HasPrefix(p, "..") || path.Ext(p) != ".xlsx" {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid report path"})
		return
	}

	ctx := c.Request.Context()
	if !h.deps.Reports.Exists(ctx, p) {
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "report not found"})
		return
	}

	content, err := h.deps.Reports.Read(ctx, p)
	if err != nil {
		h.fail(c, "read sla report", err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+path.Base(p)+`"`)
	c.Data(http.StatusOK, xlsxContentType, content)
}

// actor reads the caller identity headers; it writes a 401 and returns false
// when they are missing or carry an unknown role
func (h *Handlers) actor(c *gin.Context) (domainwf.Actor, bool) {
	actor := domainwf.Actor{
		ID:   strings.TrimSpace(c.GetHeader(HeaderActorID)),
		Role: domainwf.Role(strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderActorRole)))),
	}
	if err := actor.Validate(); err != nil {
		c.JSON(http.StatusUnauthorized, Response{Success: false, Error: err.Error()})
		return domainwf.Actor{}, false
	}
	if actor.IsSystem() {
		c.JSON(http.StatusUnauthorized, Response{Success: false, Error: "reserved actor id"})
		return domainwf.Actor{}, false
	}
	return actor, true
}

func (h *Handlers) caseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.badRequest(c, "invalid case ID", err)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handlers) documentID(c *gin.Context) (uuid.UUID, int64, bool) {
	id, ok := h.caseID(c)
	if !ok {
		return uuid.Nil, 0, false
	}
	docID, err := strconv.ParseInt(c.Param("docID"), 10, 64)
	if err != nil || docID <= 0 {
		h.badRequest(c, "invalid document ID", err)
		return uuid.Nil, 0, false
	}
	return id, docID, true
}

func (h *Handlers) respond(c *gin.Context, op string, data interface{}, err error) {
	if err != nil {
		h.fail(c, op, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func (h *Handlers) badRequest(c *gin.Context, msg string, err error) {
	h.logger.Error(msg, "path", c.Request.URL.Path, "error", err)
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg})
}

// fail maps application errors to status codes. Unexpected errors are
// logged and reported without their details.
func (h *Handlers) fail(c *gin.Context, op string, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = op + " failed"
	}

	h.logger.Error("Request failed", "operation", op, "status", status, "error", err)
	c.JSON(status, Response{Success: false, Error: msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, workflow.ErrUnknownCase),
		errors.Is(err, service.ErrUnknownDocument),
		errors.Is(err, workflow.ErrUnknownMissingItem):
		return http.StatusNotFound
	case errors.Is(err, domainwf.ErrRoleNotPermitted):
		return http.StatusForbidden
	case errors.Is(err, domainwf.ErrInvalidTransition),
		errors.Is(err, workflow.ErrOpenMissingItems):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func rawMetadata(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	return s
}
