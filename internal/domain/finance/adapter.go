package finance

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/finflow/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ParsePayment maps a payment record with heterogeneous, historically grown
// field names into the canonical Payment shape. For each logical field the
// first non-empty alias wins, in listed priority order. Nil input returns nil.
func ParsePayment(raw map[string]any) *Payment {
	if raw == nil {
		return nil
	}

	p := &Payment{
		ID:                 parseUUID(firstValue(raw, "id", "paymentId", "payment_id")),
		DocumentID:         parseUUID(firstValue(raw, "documentId", "document_id", "invoiceId", "invoice_id")),
		Amount:             parseDecimal(firstValue(raw, "amount"), decimal.Zero),
		Method:             PaymentMethod(parseString(firstValue(raw, "paymentMethod", "payment_method", "method", "paymentMode"))),
		ReferenceNumber:    parseString(firstValue(raw, "referenceNumber", "reference_number", "referenceNo")),
		PaymentDate:        parseTime(firstValue(raw, "paymentDate", "payment_date", "date")),
		Notes:              parseString(firstValue(raw, "notes", "remarks")),
		ReceiptNumber:      parseString(firstValue(raw, "receiptNumber", "receipt_number")),
		CompositeReference: parseString(firstValue(raw, "compositeReference", "composite_reference")),
		Voided:             parseBool(firstValue(raw, "voided")),
		VoidReason:         parseString(firstValue(raw, "voidReason", "void_reason")),
		VoidedBy:           parseString(firstValue(raw, "voidedBy", "voided_by")),
		CreatedAt:          parseTime(firstValue(raw, "createdAt", "created_at")),
	}

	if p.Method == "" {
		p.Method = PaymentMethodOther
	}

	p.Currency = valueobject.Currency(parseString(firstValue(raw, "currency")))
	if p.Currency == "" {
		p.Currency = valueobject.ReportingCurrency
	}
	p.ExchangeRate = parseDecimal(firstValue(raw, "exchangeRate", "exchange_rate"), decimal.NewFromInt(1))
	p.AmountInReporting = parseDecimal(firstValue(raw, "amountInAed", "amount_in_aed", "amountInReportingCurrency"), decimal.Zero)
	if p.AmountInReporting.IsZero() {
		p.AmountInReporting = p.Amount.Mul(p.ExchangeRate)
	}

	if voidedAt := parseTime(firstValue(raw, "voidedAt", "voided_at")); !voidedAt.IsZero() {
		p.VoidedAt = &voidedAt
	}

	return p
}

// ExportPayment emits a payment in the canonical outbound shape. Aliases are
// never emitted. Nil input returns nil.
func ExportPayment(p *Payment) map[string]any {
	if p == nil {
		return nil
	}

	out := map[string]any{
		"id":            p.ID.String(),
		"documentId":    p.DocumentID.String(),
		"amount":        p.Amount.InexactFloat64(),
		"currency":      string(p.Currency),
		"exchangeRate":  p.ExchangeRate.InexactFloat64(),
		"amountInAed":   p.AmountInReporting.InexactFloat64(),
		"paymentMethod": string(p.Method),
		"paymentDate":   formatDate(p.PaymentDate),
		"voided":        p.Voided,
	}

	if p.ReferenceNumber != "" {
		out["referenceNumber"] = p.ReferenceNumber
	}
	if p.Notes != "" {
		out["notes"] = p.Notes
	}
	if p.ReceiptNumber != "" {
		out["receiptNumber"] = p.ReceiptNumber
	}
	if p.CompositeReference != "" {
		out["compositeReference"] = p.CompositeReference
	}
	if p.Voided {
		out["voidReason"] = p.VoidReason
		out["voidedBy"] = p.VoidedBy
		if p.VoidedAt != nil {
			out["voidedAt"] = p.VoidedAt.Format(time.RFC3339)
		}
	}

	return out
}

// firstValue returns the first present, non-nil value among the aliases
func firstValue(raw map[string]any, keys ...string) any {
	for _, key := range keys {
		if v, ok := raw[key]; ok && v != nil {
			if s, isString := v.(string); isString && s == "" {
				continue
			}
			return v
		}
	}
	return nil
}

func parseString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func parseUUID(v any) uuid.UUID {
	if s, ok := v.(string); ok {
		if id, err := uuid.Parse(s); err == nil {
			return id
		}
	}
	return uuid.Nil
}

func parseDecimal(v any, fallback decimal.Decimal) decimal.Decimal {
	switch value := v.(type) {
	case float64:
		return decimal.NewFromFloat(value)
	case int:
		return decimal.NewFromInt(int64(value))
	case int64:
		return decimal.NewFromInt(value)
	case json.Number:
		if d, err := decimal.NewFromString(value.String()); err == nil {
			return d
		}
	case string:
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	case decimal.Decimal:
		return value
	}
	return fallback
}

func parseBool(v any) bool {
	switch value := v.(type) {
	case bool:
		return value
	case string:
		b, _ := strconv.ParseBool(value)
		return b
	}
	return false
}

// parseTime accepts RFC3339 timestamps and bare dates
func parseTime(v any) time.Time {
	switch value := v.(type) {
	case time.Time:
		return value
	case string:
		if t, err := time.Parse(time.RFC3339, value); err == nil {
			return t
		}
		if t, err := time.Parse("2006-01-02", value); err == nil {
			return t
		}
	}
	return time.Time{}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
