package models

import (
	"testing"
	"time"

	"github.com/finflow/backend/internal/domain/finance"
	"github.com/finflow/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

// =====================================
// ToDomain
// =====================================

func TestDocumentModel_ToDomain(t *testing.T) {
	t.Run("recomputes balance instead of trusting stored columns", func(t *testing.T) {
		// row with a stale balance: marked paid, but no active payments
		m := &DocumentModel{
			AggregateModel: AggregateModel{
				BaseModel: BaseModel{ID: uuid.New(), CreatedAt: time.Now(), UpdatedAt: time.Now()},
				Version:   3,
			},
			DocumentNumber:    "INV-2026-0042",
			Kind:              finance.DocumentKindInvoice,
			PartyID:           uuid.New(),
			PartyName:         "Acme Trading LLC",
			Currency:          valueobject.AED,
			TotalAmount:       decimal.NewFromInt(1000),
			PaidAmount:        decimal.NewFromInt(1000),
			OutstandingAmount: decimal.Zero,
			Status:            finance.DocumentStatusPaid,
			Payments:          finance.Payments{},
		}

		d := m.ToDomain()

		assert.Equal(t, finance.DocumentStatusUnpaid, d.Status)
		assert.True(t, d.PaidAmount.IsZero())
		assert.True(t, d.OutstandingAmount.Equal(decimal.NewFromInt(1000)))
	})

	t.Run("active payments drive the derived balance", func(t *testing.T) {
		payment := finance.NewPayment(uuid.New(), decimal.NewFromInt(400), finance.PaymentMethodCash, time.Now())

		m := &DocumentModel{
			AggregateModel: AggregateModel{
				BaseModel: BaseModel{ID: uuid.New()},
				Version:   1,
			},
			DocumentNumber: "BILL-2026-0007",
			Kind:           finance.DocumentKindBill,
			Currency:       valueobject.AED,
			TotalAmount:    decimal.NewFromInt(1000),
			// stored columns deliberately out of sync with the payments
			PaidAmount:        decimal.Zero,
			OutstandingAmount: decimal.NewFromInt(1000),
			Status:            finance.DocumentStatusUnpaid,
			Payments:          finance.Payments{*payment},
		}

		d := m.ToDomain()

		assert.Equal(t, finance.DocumentStatusPartiallyPaid, d.Status)
		assert.True(t, d.PaidAmount.Equal(decimal.NewFromInt(400)))
		assert.True(t, d.OutstandingAmount.Equal(decimal.NewFromInt(600)))
	})
}
