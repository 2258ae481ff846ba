package handler

import (
	"time"

	financeapp "github.com/finflow/backend/internal/application/finance"
	"github.com/finflow/backend/internal/domain/finance"
	"github.com/finflow/backend/internal/domain/shared/valueobject"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DocumentHandler handles document and payment API endpoints
type DocumentHandler struct {
	BaseHandler
	documents   *financeapp.DocumentService
	coordinator *financeapp.PaymentCoordinator
}

// NewDocumentHandler creates a new DocumentHandler
func NewDocumentHandler(documents *financeapp.DocumentService, coordinator *financeapp.PaymentCoordinator) *DocumentHandler {
	return &DocumentHandler{
		documents:   documents,
		coordinator: coordinator,
	}
}

// RegisterRoutes registers document and payment routes on the API group
func (h *DocumentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	documents := rg.Group("/documents")
	{
		documents.GET("", h.ListDocuments)
		documents.POST("", h.CreateDocument)
		documents.GET("/:id", h.GetDocumentByID)
		documents.POST("/:id/payments", h.AddPayment)
		documents.POST("/:id/payments/:paymentId/void", h.VoidPayment)
	}
	rg.GET("/payment-methods", h.GetPaymentMethods)
}

// ===================== Request/Response DTOs =====================

// CreateDocumentRequest represents the request body for posting a document
type CreateDocumentRequest struct {
	Kind           string  `json:"kind" binding:"required,documentkind"`
	DocumentNumber string  `json:"document_number" binding:"required"`
	PartyID        string  `json:"party_id" binding:"required,uuid"`
	PartyName      string  `json:"party_name" binding:"required"`
	TotalAmount    float64 `json:"total_amount" binding:"min=0"`
	Currency       string  `json:"currency,omitempty"`
	DueDate        string  `json:"due_date,omitempty"`
	Notes          string  `json:"notes,omitempty"`
}

// VoidPaymentRequest represents the request body for voiding a payment
type VoidPaymentRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// PaymentResponse represents a payment in API responses
type PaymentResponse struct {
	ID                 string     `json:"id"`
	Amount             float64    `json:"amount"`
	Currency           string     `json:"currency"`
	ExchangeRate       float64    `json:"exchange_rate"`
	AmountInReporting  float64    `json:"amount_in_aed"`
	PaymentMethod      string     `json:"payment_method"`
	ReferenceNumber    string     `json:"reference_number,omitempty"`
	PaymentDate        string     `json:"payment_date"`
	Notes              string     `json:"notes,omitempty"`
	ReceiptNumber      string     `json:"receipt_number,omitempty"`
	ReceiptProvisional bool       `json:"receipt_provisional,omitempty"`
	CompositeReference string     `json:"composite_reference,omitempty"`
	State              string     `json:"state"`
	Voided             bool       `json:"voided"`
	VoidReason         string     `json:"void_reason,omitempty"`
	VoidedBy           string     `json:"voided_by,omitempty"`
	VoidedAt           *time.Time `json:"voided_at,omitempty"`
}

// DocumentResponse represents a document in API responses
type DocumentResponse struct {
	ID                string            `json:"id"`
	DocumentNumber    string            `json:"document_number"`
	Kind              string            `json:"kind"`
	PartyID           string            `json:"party_id"`
	PartyName         string            `json:"party_name"`
	Currency          string            `json:"currency"`
	TotalAmount       float64           `json:"total_amount"`
	PaidAmount        float64           `json:"paid_amount"`
	OutstandingAmount float64           `json:"outstanding_amount"`
	Status            string            `json:"status"`
	DisplayStatus     string            `json:"display_status"`
	DueDate           *time.Time        `json:"due_date,omitempty"`
	Payments          []PaymentResponse `json:"payments,omitempty"`
	Notes             string            `json:"notes,omitempty"`
	PaidAt            *time.Time        `json:"paid_at,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
	Version           int               `json:"version"`
}

// MutationResponse represents the result of a payment mutation
type MutationResponse struct {
	Document  DocumentResponse `json:"document"`
	Payment   *PaymentResponse `json:"payment,omitempty"`
	Refreshed bool             `json:"refreshed,omitempty"`
	Notice    string           `json:"notice,omitempty"`
	Warnings  []string         `json:"warnings,omitempty"`
}

func toPaymentResponse(p *finance.Payment) PaymentResponse {
	return PaymentResponse{
		ID:                 p.ID.String(),
		Amount:             p.Amount.InexactFloat64(),
		Currency:           string(p.Currency),
		ExchangeRate:       p.ExchangeRate.InexactFloat64(),
		AmountInReporting:  p.AmountInReporting.InexactFloat64(),
		PaymentMethod:      string(p.Method),
		ReferenceNumber:    p.ReferenceNumber,
		PaymentDate:        p.PaymentDate.Format("2006-01-02"),
		Notes:              p.Notes,
		ReceiptNumber:      p.ReceiptNumber,
		ReceiptProvisional: p.ReceiptProvisional,
		CompositeReference: finance.CompositeReference(p, ""),
		State:              string(p.State()),
		Voided:             p.Voided,
		VoidReason:         p.VoidReason,
		VoidedBy:           p.VoidedBy,
		VoidedAt:           p.VoidedAt,
	}
}

func toDocumentResponse(d *finance.Document) DocumentResponse {
	payments := make([]PaymentResponse, 0, len(d.Payments))
	for i := range d.Payments {
		payments = append(payments, toPaymentResponse(&d.Payments[i]))
	}
	return DocumentResponse{
		ID:                d.ID.String(),
		DocumentNumber:    d.DocumentNumber,
		Kind:              string(d.Kind),
		PartyID:           d.PartyID.String(),
		PartyName:         d.PartyName,
		Currency:          string(d.Currency),
		TotalAmount:       d.TotalAmount.InexactFloat64(),
		PaidAmount:        d.PaidAmount.InexactFloat64(),
		OutstandingAmount: d.OutstandingAmount.InexactFloat64(),
		Status:            string(d.Status),
		DisplayStatus:     string(d.DisplayStatus(time.Now())),
		DueDate:           d.DueDate,
		Payments:          payments,
		Notes:             d.Notes,
		PaidAt:            d.PaidAt,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
		Version:           d.Version,
	}
}

func toDocumentResponses(documents []finance.Document) []DocumentResponse {
	responses := make([]DocumentResponse, len(documents))
	for i := range documents {
		responses[i] = toDocumentResponse(&documents[i])
	}
	return responses
}

func toMutationResponse(result *financeapp.MutationResult) MutationResponse {
	response := MutationResponse{
		Document:  toDocumentResponse(result.Document),
		Refreshed: result.Refreshed,
		Notice:    result.Notice,
		Warnings:  result.Warnings,
	}
	if result.Payment != nil {
		payment := toPaymentResponse(result.Payment)
		response.Payment = &payment
	}
	return response
}

// ===================== Endpoints =====================

// ListDocuments returns a filtered, paginated document list
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	kind := finance.DocumentKind(c.Query("kind"))
	if kind == "" {
		kind = finance.DocumentKindInvoice
	}
	if !kind.IsValid() {
		h.BadRequest(c, "Document kind must be INVOICE or BILL")
		return
	}

	var filter financeapp.DocumentListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	list, err := h.documents.ListDocuments(c.Request.Context(), kind, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, toDocumentResponses(list.Documents), list.Total, filter.Page, filter.PageSize)
}

// GetDocumentByID returns a single document with its payment sequence
func (h *DocumentHandler) GetDocumentByID(c *gin.Context) {
	documentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid document ID format")
		return
	}

	document, err := h.documents.GetDocument(c.Request.Context(), documentID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, toDocumentResponse(document))
}

// CreateDocument posts a new invoice or bill
func (h *DocumentHandler) CreateDocument(c *gin.Context) {
	var req CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	partyID, err := uuid.Parse(req.PartyID)
	if err != nil {
		h.BadRequest(c, "Invalid party ID format")
		return
	}

	var dueDate *time.Time
	if req.DueDate != "" {
		parsed, err := time.Parse("2006-01-02", req.DueDate)
		if err != nil {
			h.BadRequest(c, "Invalid due date format, expected YYYY-MM-DD")
			return
		}
		dueDate = &parsed
	}

	document, err := h.documents.CreateDocument(c.Request.Context(), financeapp.CreateDocumentRequest{
		Kind:           finance.DocumentKind(req.Kind),
		DocumentNumber: req.DocumentNumber,
		PartyID:        partyID,
		PartyName:      req.PartyName,
		TotalAmount:    decimal.NewFromFloat(req.TotalAmount),
		Currency:       valueobject.Currency(req.Currency),
		DueDate:        dueDate,
		Notes:          req.Notes,
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, toDocumentResponse(document))
}

// AddPayment applies a payment to a document. The body is accepted in the
// external payload shape: field aliases like paymentMethod/payment_method
// and amountInAed/amount_in_aed are normalized before validation.
func (h *DocumentHandler) AddPayment(c *gin.Context) {
	documentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid document ID format")
		return
	}

	actorID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var raw map[string]any
	if err := c.ShouldBindJSON(&raw); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	candidate := finance.ParsePayment(raw)
	if candidate.ID == uuid.Nil {
		candidate.ID = uuid.New()
	}
	candidate.DocumentID = documentID

	document, err := h.documents.GetDocument(c.Request.Context(), documentID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	result, err := h.coordinator.AddPayment(c.Request.Context(), document, candidate, actorID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, toMutationResponse(result))
}

// VoidPayment voids a payment on a document, keeping it for audit
func (h *DocumentHandler) VoidPayment(c *gin.Context) {
	documentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid document ID format")
		return
	}
	paymentID, err := uuid.Parse(c.Param("paymentId"))
	if err != nil {
		h.BadRequest(c, "Invalid payment ID format")
		return
	}

	actorID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var req VoidPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	document, err := h.documents.GetDocument(c.Request.Context(), documentID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	result, err := h.coordinator.VoidPayment(c.Request.Context(), document, paymentID, req.Reason, actorID.String(), actorID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, toMutationResponse(result))
}

// GetPaymentMethods returns the selectable payment methods and which of
// them require a reference number
func (h *DocumentHandler) GetPaymentMethods(c *gin.Context) {
	type methodResponse struct {
		Value             string `json:"value"`
		Label             string `json:"label"`
		RequiresReference bool   `json:"requires_reference"`
		ReferenceLabel    string `json:"reference_label,omitempty"`
	}

	options := h.documents.PaymentMethods()
	methods := make([]methodResponse, 0, len(options))
	for _, opt := range options {
		cfg := opt.Value.Config()
		methods = append(methods, methodResponse{
			Value:             string(opt.Value),
			Label:             opt.Label,
			RequiresReference: cfg.RequiresReference,
			ReferenceLabel:    cfg.ReferenceLabel,
		})
	}

	h.Success(c, methods)
}
