package finance

import (
	"github.com/finflow/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types for the Document aggregate
const (
	EventTypeDocumentCreated = "finance.document.created"
	EventTypeDocumentSettled = "finance.document.settled"
	EventTypePaymentApplied  = "finance.document.payment_applied"
	EventTypePaymentVoided   = "finance.document.payment_voided"
)

const documentAggregateType = "Document"

// DocumentCreatedEvent is raised when a document is posted
type DocumentCreatedEvent struct {
	shared.BaseDomainEvent
	DocumentNumber string          `json:"document_number"`
	Kind           DocumentKind    `json:"kind"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
}

// NewDocumentCreatedEvent creates a new DocumentCreatedEvent
func NewDocumentCreatedEvent(d *Document) *DocumentCreatedEvent {
	return &DocumentCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDocumentCreated, documentAggregateType, d.ID),
		DocumentNumber:  d.DocumentNumber,
		Kind:            d.Kind,
		TotalAmount:     d.TotalAmount,
	}
}

// DocumentSettledEvent is raised when a document becomes fully paid
type DocumentSettledEvent struct {
	shared.BaseDomainEvent
	DocumentNumber string          `json:"document_number"`
	Kind           DocumentKind    `json:"kind"`
	PaidAmount     decimal.Decimal `json:"paid_amount"`
}

// NewDocumentSettledEvent creates a new DocumentSettledEvent
func NewDocumentSettledEvent(d *Document) *DocumentSettledEvent {
	return &DocumentSettledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDocumentSettled, documentAggregateType, d.ID),
		DocumentNumber:  d.DocumentNumber,
		Kind:            d.Kind,
		PaidAmount:      d.PaidAmount,
	}
}

// PaymentAppliedEvent is raised when a payment is applied to a document
type PaymentAppliedEvent struct {
	shared.BaseDomainEvent
	DocumentNumber string          `json:"document_number"`
	Kind           DocumentKind    `json:"kind"`
	PaymentID      uuid.UUID       `json:"payment_id"`
	Amount         decimal.Decimal `json:"amount"`
	Outstanding    decimal.Decimal `json:"outstanding"`
	Status         DocumentStatus  `json:"status"`
}

// NewPaymentAppliedEvent creates a new PaymentAppliedEvent
func NewPaymentAppliedEvent(d *Document, p *Payment) *PaymentAppliedEvent {
	return &PaymentAppliedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentApplied, documentAggregateType, d.ID),
		DocumentNumber:  d.DocumentNumber,
		Kind:            d.Kind,
		PaymentID:       p.ID,
		Amount:          p.Amount,
		Outstanding:     d.OutstandingAmount,
		Status:          d.Status,
	}
}

// PaymentVoidedEvent is raised when a payment is voided on a document
type PaymentVoidedEvent struct {
	shared.BaseDomainEvent
	DocumentNumber string          `json:"document_number"`
	Kind           DocumentKind    `json:"kind"`
	PaymentID      uuid.UUID       `json:"payment_id"`
	Amount         decimal.Decimal `json:"amount"`
	VoidReason     string          `json:"void_reason"`
	Outstanding    decimal.Decimal `json:"outstanding"`
	Status         DocumentStatus  `json:"status"`
}

// NewPaymentVoidedEvent creates a new PaymentVoidedEvent
func NewPaymentVoidedEvent(d *Document, p *Payment) *PaymentVoidedEvent {
	return &PaymentVoidedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentVoided, documentAggregateType, d.ID),
		DocumentNumber:  d.DocumentNumber,
		Kind:            d.Kind,
		PaymentID:       p.ID,
		Amount:          p.Amount,
		VoidReason:      p.VoidReason,
		Outstanding:     d.OutstandingAmount,
		Status:          d.Status,
	}
}
