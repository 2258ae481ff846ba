package finance

import (
	"fmt"
	"regexp"
	"time"
)

// receiptNumberPattern matches a receipt number token, either bare or embedded
// in a composite reference. Sequences past 9999 simply grow in width.
var receiptNumberPattern = regexp.MustCompile(`RCP-\d{4}-\d{4,}`)

// ProvisionalReceiptNumber produces a provisional receipt number of the form
// RCP-{year}-{sequence}, sequence zero-padded to 4 digits.
//
// Provisional numbers exist only so there is something stable to show before
// the authoritative round-trip completes; they are never persisted as final.
// The persistence layer issues the real number and ConfirmReceipt overwrites
// the provisional value when that response arrives.
func ProvisionalReceiptNumber(year, sequence int) string {
	return fmt.Sprintf("RCP-%d-%04d", year, sequence)
}

// AssignReceiptNumber assigns a receipt number to a payment. Assignment is
// idempotent: a payment that already carries a receipt number (from a prior
// authoritative round-trip) keeps it unchanged. Otherwise the payment gets a
// provisional number based on its position in the document's payment sequence.
func AssignReceiptNumber(p *Payment, positionInSequence int) string {
	if p == nil {
		return ""
	}
	if p.ReceiptNumber != "" {
		return p.ReceiptNumber
	}
	p.ReceiptNumber = ProvisionalReceiptNumber(time.Now().Year(), positionInSequence)
	p.ReceiptProvisional = true
	return p.ReceiptNumber
}

// FormatReceiptNumber extracts the RCP-YYYY-NNNN token from a bare receipt
// number or a composite reference. Returns the empty string when the input
// carries no receipt number token; never panics on empty input.
func FormatReceiptNumber(input string) string {
	if input == "" {
		return ""
	}
	return receiptNumberPattern.FindString(input)
}

// CompositeReference returns the audit-trail key linking a payment's receipt
// to its parent document. A stored composite reference always takes precedence;
// construction from {documentNumber}-{receiptNumber} is a fallback, not an
// override. Returns the empty string when neither is available.
func CompositeReference(p *Payment, documentNumber string) string {
	if p == nil {
		return ""
	}
	if p.CompositeReference != "" {
		return p.CompositeReference
	}
	if documentNumber != "" && p.ReceiptNumber != "" {
		return fmt.Sprintf("%s-%s", documentNumber, p.ReceiptNumber)
	}
	return ""
}
