package finance

import (
	"fmt"
	"time"

	"github.com/finflow/backend/internal/domain/shared"
	"github.com/finflow/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DocumentKind distinguishes receivable invoices from payable bills.
// Both kinds share one aggregate and one reconciliation path.
type DocumentKind string

const (
	DocumentKindInvoice DocumentKind = "INVOICE" // receivable
	DocumentKindBill    DocumentKind = "BILL"    // payable
)

// IsValid checks if the kind is a valid DocumentKind
func (k DocumentKind) IsValid() bool {
	return k == DocumentKindInvoice || k == DocumentKindBill
}

// Document is the aggregate root for an outstanding financial document
// (a customer invoice or a supplier bill) and the payments applied to it.
//
// The document exclusively owns its payment sequence: no payment outlives its
// document, and voiding, not deletion, is the only removal mechanism.
// PaidAmount, OutstandingAmount, and Status are always derived via Reconcile
// and never stored as independently editable truth.
type Document struct {
	shared.BaseAggregateRoot
	DocumentNumber    string               `json:"document_number"`
	Kind              DocumentKind         `json:"kind"`
	PartyID           uuid.UUID            `json:"party_id"`
	PartyName         string               `json:"party_name"`
	Currency          valueobject.Currency `json:"currency"`
	TotalAmount       decimal.Decimal      `json:"total_amount"`
	PaidAmount        decimal.Decimal      `json:"paid_amount"`
	OutstandingAmount decimal.Decimal      `json:"outstanding_amount"`
	Status            DocumentStatus       `json:"status"`
	DueDate           *time.Time           `json:"due_date"`
	Payments          Payments             `json:"payments"`
	Notes             string               `json:"notes,omitempty"`
	PaidAt            *time.Time           `json:"paid_at,omitempty"`
}

// NewDocument creates a new posted document
func NewDocument(
	kind DocumentKind,
	documentNumber string,
	partyID uuid.UUID,
	partyName string,
	totalAmount valueobject.Money,
	dueDate *time.Time,
) (*Document, error) {
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_KIND", "Document kind must be INVOICE or BILL")
	}
	if documentNumber == "" {
		return nil, shared.NewDomainError("INVALID_DOCUMENT_NUMBER", "Document number cannot be empty")
	}
	if partyID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PARTY", "Party ID cannot be empty")
	}
	if partyName == "" {
		return nil, shared.NewDomainError("INVALID_PARTY_NAME", "Party name cannot be empty")
	}
	if totalAmount.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Total amount cannot be negative")
	}

	d := &Document{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		DocumentNumber:    documentNumber,
		Kind:              kind,
		PartyID:           partyID,
		PartyName:         partyName,
		Currency:          totalAmount.Currency(),
		TotalAmount:       totalAmount.Amount(),
		DueDate:           dueDate,
		Payments:          Payments{},
	}
	d.Reconcile()

	d.AddDomainEvent(NewDocumentCreatedEvent(d))

	return d, nil
}

// Reconcile recomputes the derived balance fields from the document total and
// its payment sequence. Any previously stored status is discarded: this is the
// single source of truth, and it runs after every payment add or void.
func (d *Document) Reconcile() Balance {
	balance := Reconcile(d.TotalAmount, d.Payments)
	d.PaidAmount = balance.PaidAmount
	d.OutstandingAmount = balance.OutstandingAmount
	d.Status = balance.Status
	return balance
}

// DisplayStatus returns the status for display purposes, layering overdue on
// top of the stored ladder when the document is past due with a balance open
func (d *Document) DisplayStatus(now time.Time) DocumentStatus {
	return DisplayStatus(Balance{
		PaidAmount:        d.PaidAmount,
		OutstandingAmount: d.OutstandingAmount,
		Status:            d.Status,
	}, d.DueDate, now)
}

// ApplyPayment appends a payment to the document and re-derives the balance.
// An already-applied payment ID is a success no-op: the client-generated ID
// doubles as an idempotency key, so a retry never produces a duplicate.
func (d *Document) ApplyPayment(p *Payment) error {
	if p == nil {
		return shared.NewDomainError("INVALID_PAYMENT", "Payment cannot be nil")
	}
	if p.ID == uuid.Nil {
		return shared.NewDomainError("INVALID_PAYMENT", "Payment ID cannot be empty")
	}
	if !p.Amount.IsPositive() {
		return shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be positive")
	}
	if existing := d.Payments.Find(p.ID); existing != nil {
		return nil
	}

	payment := *p
	payment.DocumentID = d.ID
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now()
	}
	d.Payments = append(d.Payments, payment)

	balance := d.Reconcile()
	d.Touch()
	d.IncrementVersion()

	d.AddDomainEvent(NewPaymentAppliedEvent(d, &payment))
	if balance.Status == DocumentStatusPaid {
		now := time.Now()
		d.PaidAt = &now
		d.AddDomainEvent(NewDocumentSettledEvent(d))
	}

	return nil
}

// VoidPayment marks a payment as voided and re-derives the balance. The
// payment stays in the sequence for audit. Voiding an already-voided payment
// is a no-op; the returned bool reports whether anything changed.
func (d *Document) VoidPayment(paymentID uuid.UUID, reason, voidedBy string) (bool, error) {
	payment := d.Payments.Find(paymentID)
	if payment == nil {
		return false, shared.NewDomainError("PAYMENT_NOT_FOUND", fmt.Sprintf("Payment %s not found on document %s", paymentID, d.DocumentNumber))
	}
	if payment.Voided {
		return false, nil
	}

	if err := payment.MarkVoided(reason, voidedBy); err != nil {
		return false, err
	}

	d.Reconcile()
	if d.Status != DocumentStatusPaid {
		d.PaidAt = nil
	}
	d.Touch()
	d.IncrementVersion()

	d.AddDomainEvent(NewPaymentVoidedEvent(d, payment))

	return true, nil
}

// FindPayment returns the payment with the given ID, or nil
func (d *Document) FindPayment(paymentID uuid.UUID) *Payment {
	return d.Payments.Find(paymentID)
}

// Clone returns a deep copy of the document with no pending domain events.
// The coordinator uses clones for its two-slot authoritative/tentative state
// so rollback is a pure discard.
func (d *Document) Clone() *Document {
	clone := *d
	clone.ClearDomainEvents()
	clone.Payments = make(Payments, len(d.Payments))
	copy(clone.Payments, d.Payments)
	if d.DueDate != nil {
		due := *d.DueDate
		clone.DueDate = &due
	}
	if d.PaidAt != nil {
		paid := *d.PaidAt
		clone.PaidAt = &paid
	}
	return &clone
}

// TotalAmountMoney returns the document total as Money
func (d *Document) TotalAmountMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(d.TotalAmount, d.Currency)
	return m
}

// IsOverdue returns true if the document is past due with a balance open
func (d *Document) IsOverdue() bool {
	return d.DisplayStatus(time.Now()) == DocumentStatusOverdue
}

// CanApplyPayment returns true if the document can still accept payments
func (d *Document) CanApplyPayment() bool {
	// always recomputed, never read from a cached status field
	balance := Reconcile(d.TotalAmount, d.Payments)
	return balance.Status != DocumentStatusPaid
}
