package finance

import (
	"fmt"
	"strings"

	"github.com/finflow/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// ValidationResult carries every rule violation found in a candidate payment.
// Rules are independent and all collected, never short-circuited, so a caller
// sees every violation at once. Warnings are advisory and do not block.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings,omitempty"`
}

// ValidationError is returned when a payment payload fails validation.
// It never reaches persistence and is surfaced synchronously to the caller
// with the full ordered list of violations.
type ValidationError struct {
	Violations []string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return "payment validation failed: " + strings.Join(e.Violations, "; ")
}

// AsError converts a failed result into a *ValidationError, or nil if valid
func (r ValidationResult) AsError() error {
	if r.Valid {
		return nil
	}
	return &ValidationError{Violations: r.Errors}
}

// ValidatePayment checks a candidate payment against structural and business
// rules before it is allowed to mutate a document.
//
// Overpayment (amount exceeding the document's outstanding balance) is
// recorded as a warning rather than a hard error; whether to block it is a
// caller-level policy decision, since some flows intentionally capture
// overpayments for later refund.
//
// Deterministic and side-effect free; safe to call on every keystroke for
// live validation feedback.
func ValidatePayment(p *Payment, documentOutstanding decimal.Decimal) ValidationResult {
	result := ValidationResult{Valid: true, Errors: []string{}}

	if p == nil {
		result.Valid = false
		result.Errors = append(result.Errors, "Payment is required")
		return result
	}

	if !p.Amount.IsPositive() {
		result.Errors = append(result.Errors, "Amount must be greater than 0")
	}

	if p.Method == "" {
		result.Errors = append(result.Errors, "Payment method is required")
	}

	if p.PaymentDate.IsZero() {
		result.Errors = append(result.Errors, "Payment date is required")
	}

	if p.Method != "" {
		cfg := p.Method.Config()
		if cfg.RequiresReference && strings.TrimSpace(p.ReferenceNumber) == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("Reference is required for %s", cfg.Label))
		}
	}

	if p.Currency != "" && p.Currency != valueobject.ReportingCurrency && !p.ExchangeRate.IsPositive() {
		result.Errors = append(result.Errors, fmt.Sprintf("Exchange rate is required for %s payments", p.Currency))
	}

	if p.Amount.IsPositive() && p.Amount.GreaterThan(documentOutstanding) {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"Payment amount %s exceeds outstanding balance %s",
			p.Amount.StringFixed(2), documentOutstanding.StringFixed(2),
		))
	}

	result.Valid = len(result.Errors) == 0
	return result
}
