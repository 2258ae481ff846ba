package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/finflow/backend/internal/domain/finance"
	"github.com/finflow/backend/internal/domain/shared"
	"github.com/finflow/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newMockDocumentRepository creates a GormDocumentRepository with a mocked SQL connection
func newMockDocumentRepository(t *testing.T) (*GormDocumentRepository, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewGormDocumentRepository(gormDB), mock, mockDB
}

func documentColumns() []string {
	return []string{
		"id", "created_at", "updated_at", "version",
		"document_number", "kind", "party_id", "party_name", "currency",
		"total_amount", "paid_amount", "outstanding_amount", "status",
		"due_date", "payments", "notes", "paid_at",
	}
}

func addDocumentRow(t *testing.T, rows *sqlmock.Rows, id uuid.UUID, number string, total string, payments finance.Payments) {
	t.Helper()
	paymentsJSON, err := json.Marshal(payments)
	require.NoError(t, err)

	totalAmount, err := decimal.NewFromString(total)
	require.NoError(t, err)
	paid := decimal.Zero
	for i := range payments {
		if payments[i].IsActive() {
			paid = paid.Add(payments[i].AmountInReporting)
		}
	}

	rows.AddRow(
		id, time.Now(), time.Now(), 1,
		number, finance.DocumentKindInvoice, uuid.New(), "Acme Trading LLC", valueobject.AED,
		totalAmount, paid, totalAmount.Sub(paid), finance.DocumentStatusUnpaid,
		nil, string(paymentsJSON), "", nil,
	)
}

func confirmedPayment(documentID uuid.UUID, amount string, receiptNumber string) finance.Payment {
	p := finance.NewPayment(documentID, decimal.RequireFromString(amount), finance.PaymentMethodCash, time.Now())
	p.AmountInReporting = p.Amount
	p.ConfirmReceipt(receiptNumber)
	return *p
}

func TestGormDocumentRepository_FindByID(t *testing.T) {
	t.Run("finds existing document", func(t *testing.T) {
		repo, mock, mockDB := newMockDocumentRepository(t)
		defer mockDB.Close()

		documentID := uuid.New()
		rows := sqlmock.NewRows(documentColumns())
		addDocumentRow(t, rows, documentID, "INV-2026-0042", "10000", nil)

		mock.ExpectQuery(`SELECT \* FROM "documents" WHERE id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(documentID, 1).
			WillReturnRows(rows)

		document, err := repo.FindByID(context.Background(), documentID)

		assert.NoError(t, err)
		require.NotNil(t, document)
		assert.Equal(t, documentID, document.ID)
		assert.Equal(t, "INV-2026-0042", document.DocumentNumber)
		assert.Equal(t, "10000", document.TotalAmount.String())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns ErrNotFound for missing document", func(t *testing.T) {
		repo, mock, mockDB := newMockDocumentRepository(t)
		defer mockDB.Close()

		documentID := uuid.New()
		mock.ExpectQuery(`SELECT \* FROM "documents" WHERE id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(documentID, 1).
			WillReturnError(gorm.ErrRecordNotFound)

		document, err := repo.FindByID(context.Background(), documentID)

		assert.Error(t, err)
		assert.Nil(t, document)
		assert.Equal(t, shared.ErrNotFound, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("restores payments from jsonb column", func(t *testing.T) {
		repo, mock, mockDB := newMockDocumentRepository(t)
		defer mockDB.Close()

		documentID := uuid.New()
		payments := finance.Payments{
			confirmedPayment(documentID, "4000", "RCP-2026-0001"),
			confirmedPayment(documentID, "2500", "RCP-2026-0002"),
		}
		rows := sqlmock.NewRows(documentColumns())
		addDocumentRow(t, rows, documentID, "INV-2026-0042", "10000", payments)

		mock.ExpectQuery(`SELECT \* FROM "documents" WHERE id = \$1`).
			WithArgs(documentID, 1).
			WillReturnRows(rows)

		document, err := repo.FindByID(context.Background(), documentID)

		require.NoError(t, err)
		require.Len(t, document.Payments, 2)
		assert.Equal(t, "RCP-2026-0001", document.Payments[0].ReceiptNumber)
		assert.Equal(t, "4000", document.Payments[0].Amount.String())
		assert.True(t, document.Payments[1].IsConfirmed())
	})
}

func TestGormDocumentRepository_FindByNumber(t *testing.T) {
	t.Run("finds by document number", func(t *testing.T) {
		repo, mock, mockDB := newMockDocumentRepository(t)
		defer mockDB.Close()

		documentID := uuid.New()
		rows := sqlmock.NewRows(documentColumns())
		addDocumentRow(t, rows, documentID, "BILL-2026-0007", "5000", nil)

		mock.ExpectQuery(`SELECT \* FROM "documents" WHERE document_number = \$1`).
			WithArgs("BILL-2026-0007", 1).
			WillReturnRows(rows)

		document, err := repo.FindByNumber(context.Background(), "BILL-2026-0007")

		assert.NoError(t, err)
		require.NotNil(t, document)
		assert.Equal(t, "BILL-2026-0007", document.DocumentNumber)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns ErrNotFound for unknown number", func(t *testing.T) {
		repo, mock, mockDB := newMockDocumentRepository(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT \* FROM "documents" WHERE document_number = \$1`).
			WithArgs("MISSING", 1).
			WillReturnError(gorm.ErrRecordNotFound)

		document, err := repo.FindByNumber(context.Background(), "MISSING")

		assert.Nil(t, document)
		assert.Equal(t, shared.ErrNotFound, err)
	})
}

func TestGormDocumentRepository_SaveWithLock(t *testing.T) {
	t.Run("saves when version matches", func(t *testing.T) {
		repo, mock, mockDB := newMockDocumentRepository(t)
		defer mockDB.Close()

		document := newTestDocument(t)
		document.Version = 2

		mock.ExpectExec(`UPDATE "documents" SET .* WHERE \(id = .* AND version = .*\)`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.SaveWithLock(context.Background(), document)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns lock error when version is stale", func(t *testing.T) {
		repo, mock, mockDB := newMockDocumentRepository(t)
		defer mockDB.Close()

		document := newTestDocument(t)
		document.Version = 2

		mock.ExpectExec(`UPDATE "documents" SET .* WHERE \(id = .* AND version = .*\)`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.SaveWithLock(context.Background(), document)

		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "OPTIMISTIC_LOCK_ERROR", domainErr.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormDocumentRepository_CreatePayment(t *testing.T) {
	year := time.Now().Year()

	t.Run("issues first receipt number of the year", func(t *testing.T) {
		repo, mock, mockDB := newMockDocumentRepository(t)
		defer mockDB.Close()

		documentID := uuid.New()
		rows := sqlmock.NewRows(documentColumns())
		addDocumentRow(t, rows, documentID, "INV-2026-0042", "10000", nil)

		mock.ExpectQuery(`SELECT \* FROM "documents" WHERE id = \$1`).
			WithArgs(documentID, 1).
			WillReturnRows(rows)
		mock.ExpectExec(`UPDATE "documents" SET .* WHERE \(id = .* AND version = .*\)`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		candidate := finance.NewPayment(documentID, decimal.NewFromInt(4000), finance.PaymentMethodCash, time.Now())
		candidate.AmountInReporting = candidate.Amount

		applied, err := repo.CreatePayment(context.Background(), documentID, candidate)

		require.NoError(t, err)
		require.NotNil(t, applied)
		assert.Equal(t, fmt.Sprintf("RCP-%d-0001", year), applied.ReceiptNumber)
		assert.False(t, applied.ReceiptProvisional)
		assert.Equal(t, fmt.Sprintf("INV-2026-0042-RCP-%d-0001", year), applied.CompositeReference)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("continues the sequence after existing receipts", func(t *testing.T) {
		repo, mock, mockDB := newMockDocumentRepository(t)
		defer mockDB.Close()

		documentID := uuid.New()
		payments := finance.Payments{
			confirmedPayment(documentID, "1000", fmt.Sprintf("RCP-%d-0001", year)),
			confirmedPayment(documentID, "2000", fmt.Sprintf("RCP-%d-0007", year)),
		}
		rows := sqlmock.NewRows(documentColumns())
		addDocumentRow(t, rows, documentID, "INV-2026-0042", "10000", payments)

		mock.ExpectQuery(`SELECT \* FROM "documents" WHERE id = \$1`).
			WithArgs(documentID, 1).
			WillReturnRows(rows)
		mock.ExpectExec(`UPDATE "documents" SET .* WHERE \(id = .* AND version = .*\)`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		candidate := finance.NewPayment(documentID, decimal.NewFromInt(500), finance.PaymentMethodCash, time.Now())
		candidate.AmountInReporting = candidate.Amount

		applied, err := repo.CreatePayment(context.Background(), documentID, candidate)

		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("RCP-%d-0008", year), applied.ReceiptNumber)
	})

	t.Run("replaying an applied payment is a no-op", func(t *testing.T) {
		repo, mock, mockDB := newMockDocumentRepository(t)
		defer mockDB.Close()

		documentID := uuid.New()
		existing := confirmedPayment(documentID, "4000", fmt.Sprintf("RCP-%d-0003", year))
		rows := sqlmock.NewRows(documentColumns())
		addDocumentRow(t, rows, documentID, "INV-2026-0042", "10000", finance.Payments{existing})

		mock.ExpectQuery(`SELECT \* FROM "documents" WHERE id = \$1`).
			WithArgs(documentID, 1).
			WillReturnRows(rows)

		replay := existing
		applied, err := repo.CreatePayment(context.Background(), documentID, &replay)

		require.NoError(t, err)
		assert.Equal(t, existing.ID, applied.ID)
		assert.Equal(t, existing.ReceiptNumber, applied.ReceiptNumber)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("propagates lock conflicts", func(t *testing.T) {
		repo, mock, mockDB := newMockDocumentRepository(t)
		defer mockDB.Close()

		documentID := uuid.New()
		rows := sqlmock.NewRows(documentColumns())
		addDocumentRow(t, rows, documentID, "INV-2026-0042", "10000", nil)

		mock.ExpectQuery(`SELECT \* FROM "documents" WHERE id = \$1`).
			WithArgs(documentID, 1).
			WillReturnRows(rows)
		mock.ExpectExec(`UPDATE "documents" SET .* WHERE \(id = .* AND version = .*\)`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		candidate := finance.NewPayment(documentID, decimal.NewFromInt(4000), finance.PaymentMethodCash, time.Now())
		candidate.AmountInReporting = candidate.Amount

		applied, err := repo.CreatePayment(context.Background(), documentID, candidate)

		assert.Nil(t, applied)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "OPTIMISTIC_LOCK_ERROR", domainErr.Code)
	})

	t.Run("rejects nil payment", func(t *testing.T) {
		repo, _, mockDB := newMockDocumentRepository(t)
		defer mockDB.Close()

		applied, err := repo.CreatePayment(context.Background(), uuid.New(), nil)

		assert.Nil(t, applied)
		assert.Error(t, err)
	})
}

func TestGormDocumentRepository_VoidPayment(t *testing.T) {
	year := time.Now().Year()

	t.Run("voids a confirmed payment", func(t *testing.T) {
		repo, mock, mockDB := newMockDocumentRepository(t)
		defer mockDB.Close()

		documentID := uuid.New()
		payment := confirmedPayment(documentID, "4000", fmt.Sprintf("RCP-%d-0001", year))
		rows := sqlmock.NewRows(documentColumns())
		addDocumentRow(t, rows, documentID, "INV-2026-0042", "10000", finance.Payments{payment})

		mock.ExpectQuery(`SELECT \* FROM "documents" WHERE id = \$1`).
			WithArgs(documentID, 1).
			WillReturnRows(rows)
		mock.ExpectExec(`UPDATE "documents" SET .* WHERE \(id = .* AND version = .*\)`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.VoidPayment(context.Background(), documentID, payment.ID, "duplicate entry", "user-1")

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("clears paid_at when voiding drops the document below paid", func(t *testing.T) {
		repo, mock, mockDB := newMockDocumentRepository(t)
		defer mockDB.Close()

		documentID := uuid.New()
		payment := confirmedPayment(documentID, "4000", fmt.Sprintf("RCP-%d-0001", year))
		paymentsJSON, err := json.Marshal(finance.Payments{payment})
		require.NoError(t, err)
		paidAt := time.Now()

		rows := sqlmock.NewRows(documentColumns()).AddRow(
			documentID, time.Now(), time.Now(), 2,
			"INV-2026-0042", finance.DocumentKindInvoice, uuid.New(), "Acme Trading LLC", valueobject.AED,
			decimal.NewFromInt(4000), decimal.NewFromInt(4000), decimal.Zero, finance.DocumentStatusPaid,
			nil, string(paymentsJSON), "", paidAt,
		)

		mock.ExpectQuery(`SELECT \* FROM "documents" WHERE id = \$1`).
			WithArgs(documentID, 1).
			WillReturnRows(rows)
		// SET columns are ordered alphabetically; paid_at is the fifth and must be NULL
		mock.ExpectExec(`UPDATE "documents" SET .* WHERE \(id = .* AND version = .*\)`).
			WithArgs(
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
				nil,
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
				sqlmock.AnyArg(), sqlmock.AnyArg(),
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err = repo.VoidPayment(context.Background(), documentID, payment.ID, "posted twice", "user-1")

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("voiding an already voided payment skips the write", func(t *testing.T) {
		repo, mock, mockDB := newMockDocumentRepository(t)
		defer mockDB.Close()

		documentID := uuid.New()
		payment := confirmedPayment(documentID, "4000", fmt.Sprintf("RCP-%d-0001", year))
		require.NoError(t, payment.MarkVoided("duplicate entry", "user-1"))
		rows := sqlmock.NewRows(documentColumns())
		addDocumentRow(t, rows, documentID, "INV-2026-0042", "10000", finance.Payments{payment})

		mock.ExpectQuery(`SELECT \* FROM "documents" WHERE id = \$1`).
			WithArgs(documentID, 1).
			WillReturnRows(rows)

		err := repo.VoidPayment(context.Background(), documentID, payment.ID, "again", "user-1")

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns error for unknown payment", func(t *testing.T) {
		repo, mock, mockDB := newMockDocumentRepository(t)
		defer mockDB.Close()

		documentID := uuid.New()
		rows := sqlmock.NewRows(documentColumns())
		addDocumentRow(t, rows, documentID, "INV-2026-0042", "10000", nil)

		mock.ExpectQuery(`SELECT \* FROM "documents" WHERE id = \$1`).
			WithArgs(documentID, 1).
			WillReturnRows(rows)

		err := repo.VoidPayment(context.Background(), documentID, uuid.New(), "oops", "user-1")

		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "PAYMENT_NOT_FOUND", domainErr.Code)
	})
}

func TestNextReceiptNumber(t *testing.T) {
	documentID := uuid.New()

	t.Run("starts at one for an empty document", func(t *testing.T) {
		assert.Equal(t, "RCP-2026-0001", nextReceiptNumber(nil, 2026))
	})

	t.Run("sequences are scoped per year", func(t *testing.T) {
		payments := finance.Payments{
			confirmedPayment(documentID, "100", "RCP-2025-0042"),
			confirmedPayment(documentID, "100", "RCP-2026-0002"),
		}
		assert.Equal(t, "RCP-2026-0003", nextReceiptNumber(payments, 2026))
		assert.Equal(t, "RCP-2025-0043", nextReceiptNumber(payments, 2025))
	})

	t.Run("ignores provisional receipt numbers", func(t *testing.T) {
		provisional := *finance.NewPayment(documentID, decimal.NewFromInt(100), finance.PaymentMethodCash, time.Now())
		finance.AssignReceiptNumber(&provisional, 9)
		assert.Equal(t, "RCP-2026-0001", nextReceiptNumber(finance.Payments{provisional}, 2026))
	})

	t.Run("grows past four digits", func(t *testing.T) {
		payments := finance.Payments{
			confirmedPayment(documentID, "100", "RCP-2026-10000"),
		}
		assert.Equal(t, "RCP-2026-10001", nextReceiptNumber(payments, 2026))
	})

	t.Run("reads the token out of a composite reference", func(t *testing.T) {
		p := confirmedPayment(documentID, "100", "INV-2026-0042-RCP-2026-0005")
		assert.Equal(t, "RCP-2026-0006", nextReceiptNumber(finance.Payments{p}, 2026))
	})
}

func newTestDocument(t *testing.T) *finance.Document {
	t.Helper()
	total := valueobject.NewMoneyAED(decimal.NewFromInt(10000))
	document, err := finance.NewDocument(finance.DocumentKindInvoice, "INV-2026-0042", uuid.New(), "Acme Trading LLC", total, nil)
	require.NoError(t, err)
	return document
}
