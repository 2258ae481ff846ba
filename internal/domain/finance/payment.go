package finance

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/finflow/backend/internal/domain/shared"
	"github.com/finflow/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentState represents where a payment is in its lifecycle
type PaymentState string

const (
	// PaymentStatePending is a client-proposed payment that has not yet been
	// acknowledged by persistence (its receipt number, if any, is provisional)
	PaymentStatePending PaymentState = "pending"
	// PaymentStateConfirmed is a payment with a server-issued receipt number
	PaymentStateConfirmed PaymentState = "confirmed"
	// PaymentStateVoided is terminal; the payment is retained for audit but
	// excluded from balances
	PaymentStateVoided PaymentState = "voided"
)

// Payment is a monetary payment applied to a Document.
// It is a value object within the Document aggregate, stored as JSONB.
// The ID is client-generated and stable across retries; persistence honors
// it as an idempotency key.
type Payment struct {
	ID                 uuid.UUID            `json:"id"`
	DocumentID         uuid.UUID            `json:"document_id"`
	Amount             decimal.Decimal      `json:"amount"`
	Currency           valueobject.Currency `json:"currency"`
	ExchangeRate       decimal.Decimal      `json:"exchange_rate"`
	AmountInReporting  decimal.Decimal      `json:"amount_in_aed"`
	Method             PaymentMethod        `json:"payment_method"`
	ReferenceNumber    string               `json:"reference_number,omitempty"`
	PaymentDate        time.Time            `json:"payment_date"`
	Notes              string               `json:"notes,omitempty"`
	ReceiptNumber      string               `json:"receipt_number,omitempty"`
	ReceiptProvisional bool                 `json:"receipt_provisional,omitempty"`
	CompositeReference string               `json:"composite_reference,omitempty"`
	Voided             bool                 `json:"voided"`
	VoidReason         string               `json:"void_reason,omitempty"`
	VoidedBy           string               `json:"voided_by,omitempty"`
	VoidedAt           *time.Time           `json:"voided_at,omitempty"`
	CreatedAt          time.Time            `json:"created_at"`
}

// NewPayment creates a new client-side payment proposal with a generated
// idempotency ID
func NewPayment(documentID uuid.UUID, amount decimal.Decimal, method PaymentMethod, paymentDate time.Time) *Payment {
	return &Payment{
		ID:           uuid.New(),
		DocumentID:   documentID,
		Amount:       amount,
		Method:       method,
		PaymentDate:  paymentDate,
		Currency:     valueobject.ReportingCurrency,
		ExchangeRate: decimal.NewFromInt(1),
		CreatedAt:    time.Now(),
	}
}

// State derives the lifecycle state of the payment
func (p *Payment) State() PaymentState {
	switch {
	case p.Voided:
		return PaymentStateVoided
	case p.ReceiptNumber != "" && !p.ReceiptProvisional:
		return PaymentStateConfirmed
	default:
		return PaymentStatePending
	}
}

// IsActive returns true if the payment still counts toward balances
func (p *Payment) IsActive() bool {
	return !p.Voided
}

// IsConfirmed returns true if the payment carries a server-issued receipt number
func (p *Payment) IsConfirmed() bool {
	return p.State() == PaymentStateConfirmed
}

// MarkVoided marks the payment as voided. Voiding is monotonic: an already
// voided payment is left untouched. A payment must be confirmed before it can
// be voided, since voiding requires a server-side audit record.
func (p *Payment) MarkVoided(reason, voidedBy string) error {
	if p.Voided {
		return nil
	}
	if !p.IsConfirmed() {
		return shared.NewDomainError("PAYMENT_NOT_CONFIRMED", "Only confirmed payments can be voided")
	}
	if reason == "" {
		return shared.NewDomainError("INVALID_REASON", "Void reason is required")
	}
	now := time.Now()
	p.Voided = true
	p.VoidReason = reason
	p.VoidedBy = voidedBy
	p.VoidedAt = &now
	return nil
}

// ConfirmReceipt records the authoritative, server-issued receipt number,
// replacing any provisional value
func (p *Payment) ConfirmReceipt(receiptNumber string) {
	p.ReceiptNumber = receiptNumber
	p.ReceiptProvisional = false
}

// AmountMoney returns the payment amount as Money in the payment currency
func (p *Payment) AmountMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(p.Amount, p.Currency)
	return m
}

// Payments is an insertion-ordered payment sequence that implements
// GORM Scanner/Valuer for JSONB storage
type Payments []Payment

// Value implements driver.Valuer for GORM to store as JSONB
func (p Payments) Value() (driver.Value, error) {
	if p == nil {
		return "[]", nil
	}
	return json.Marshal(p)
}

// Scan implements sql.Scanner for GORM to read from JSONB
func (p *Payments) Scan(value interface{}) error {
	if value == nil {
		*p = Payments{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan Payments: unsupported type")
	}

	if len(bytes) == 0 {
		*p = Payments{}
		return nil
	}

	return json.Unmarshal(bytes, p)
}

// Active returns the non-voided payments in insertion order
func (p Payments) Active() Payments {
	active := make(Payments, 0, len(p))
	for _, payment := range p {
		if payment.IsActive() {
			active = append(active, payment)
		}
	}
	return active
}

// ByDate returns a copy sorted by payment date ascending for display purposes.
// Insertion order remains the chronological application order.
func (p Payments) ByDate() Payments {
	sorted := make(Payments, len(p))
	copy(sorted, p)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].PaymentDate.Before(sorted[j-1].PaymentDate); j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	return sorted
}

// Find returns the payment with the given ID, or nil
func (p Payments) Find(id uuid.UUID) *Payment {
	for i := range p {
		if p[i].ID == id {
			return &p[i]
		}
	}
	return nil
}
