package finance

import (
	"time"

	"github.com/shopspring/decimal"
)

// DocumentStatus represents the payment status of a document
type DocumentStatus string

const (
	DocumentStatusUnpaid        DocumentStatus = "unpaid"
	DocumentStatusPartiallyPaid DocumentStatus = "partially_paid"
	DocumentStatusPaid          DocumentStatus = "paid"
	// DocumentStatusOverdue is a display-priority view on top of
	// unpaid/partially_paid, not a stored state
	DocumentStatusOverdue DocumentStatus = "overdue"
)

// IsValid checks if the status is a valid DocumentStatus
func (s DocumentStatus) IsValid() bool {
	switch s {
	case DocumentStatusUnpaid, DocumentStatusPartiallyPaid, DocumentStatusPaid, DocumentStatusOverdue:
		return true
	}
	return false
}

// String returns the string representation of DocumentStatus
func (s DocumentStatus) String() string {
	return string(s)
}

// Balance is the derived monetary state of a document
type Balance struct {
	PaidAmount        decimal.Decimal `json:"paid_amount"`
	OutstandingAmount decimal.Decimal `json:"outstanding_amount"`
	Status            DocumentStatus  `json:"status"`
}

// Reconcile derives paid-to-date, outstanding, and payment status from a
// document total and its payment sequence. Voided payments are excluded.
//
// This is the single source of truth for document balances: it is pure,
// total for any non-negative input, and must be re-run after every payment
// add or void. Persisted status fields are display hints only and are never
// trusted over recomputation.
//
// Amounts are rounded to 2 decimal places here, at the point paid and
// outstanding are computed, so float error does not compound across repeated
// reconciliations.
func Reconcile(totalAmount decimal.Decimal, payments Payments) Balance {
	paid := decimal.Zero
	for _, p := range payments {
		if p.IsActive() {
			paid = paid.Add(p.Amount)
		}
	}
	paid = paid.Round(2)

	outstanding := totalAmount.Sub(paid).Round(2)
	if outstanding.IsNegative() {
		outstanding = decimal.Zero
	}

	var status DocumentStatus
	switch {
	case totalAmount.IsZero():
		// a zero-value document is never "paid"; explicit acknowledgement
		// is forced elsewhere
		status = DocumentStatusUnpaid
	case paid.IsZero():
		status = DocumentStatusUnpaid
	case paid.GreaterThanOrEqual(totalAmount):
		status = DocumentStatusPaid
	default:
		status = DocumentStatusPartiallyPaid
	}

	return Balance{
		PaidAmount:        paid,
		OutstandingAmount: outstanding,
		Status:            status,
	}
}

// DisplayStatus resolves the single total order used for display: overdue
// takes highest priority when there is an outstanding balance past its due
// date, otherwise the unpaid/partially_paid/paid ladder applies.
func DisplayStatus(balance Balance, dueDate *time.Time, now time.Time) DocumentStatus {
	if balance.OutstandingAmount.IsPositive() && dueDate != nil && now.After(*dueDate) {
		return DocumentStatusOverdue
	}
	return balance.Status
}
