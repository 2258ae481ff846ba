package persistence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/finflow/backend/internal/domain/finance"
	"github.com/finflow/backend/internal/domain/shared"
	"github.com/finflow/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormDocumentRepository implements DocumentRepository and PaymentStore using GORM
type GormDocumentRepository struct {
	db *gorm.DB
}

// NewGormDocumentRepository creates a new GormDocumentRepository
func NewGormDocumentRepository(db *gorm.DB) *GormDocumentRepository {
	return &GormDocumentRepository{db: db}
}

// FindByID finds a document by its ID
func (r *GormDocumentRepository) FindByID(ctx context.Context, id uuid.UUID) (*finance.Document, error) {
	var model models.DocumentModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByNumber finds a document by its document number
func (r *GormDocumentRepository) FindByNumber(ctx context.Context, documentNumber string) (*finance.Document, error) {
	var model models.DocumentModel
	if err := r.db.WithContext(ctx).
		Where("document_number = ?", documentNumber).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll finds documents matching the filter
func (r *GormDocumentRepository) FindAll(ctx context.Context, filter finance.DocumentFilter) ([]finance.Document, error) {
	var documentModels []models.DocumentModel
	query := r.db.WithContext(ctx).Model(&models.DocumentModel{})
	query = r.applyDocumentFilter(query, filter)

	if err := query.Find(&documentModels).Error; err != nil {
		return nil, err
	}
	documents := make([]finance.Document, len(documentModels))
	for i, model := range documentModels {
		documents[i] = *model.ToDomain()
	}
	return documents, nil
}

// Count counts documents matching the filter, ignoring pagination
func (r *GormDocumentRepository) Count(ctx context.Context, filter finance.DocumentFilter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.DocumentModel{})
	query = r.applyDocumentFilterWithoutPagination(query, filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save creates or updates a document
func (r *GormDocumentRepository) Save(ctx context.Context, document *finance.Document) error {
	model := models.DocumentModelFromDomain(document)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock saves with optimistic locking. Columns are listed explicitly
// so zero values, a cleared paid_at in particular, are written through.
func (r *GormDocumentRepository) SaveWithLock(ctx context.Context, document *finance.Document) error {
	model := models.DocumentModelFromDomain(document)
	result := r.db.WithContext(ctx).
		Model(model).
		Where("id = ? AND version = ?", document.ID, document.Version-1).
		Updates(map[string]interface{}{
			"party_name":         model.PartyName,
			"total_amount":       model.TotalAmount,
			"paid_amount":        model.PaidAmount,
			"outstanding_amount": model.OutstandingAmount,
			"status":             model.Status,
			"due_date":           model.DueDate,
			"payments":           model.Payments,
			"notes":              model.Notes,
			"paid_at":            model.PaidAt,
			"version":            model.Version,
			"updated_at":         model.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError("OPTIMISTIC_LOCK_ERROR", "The record has been modified by another transaction")
	}
	return nil
}

// GetDocument returns the authoritative document state
func (r *GormDocumentRepository) GetDocument(ctx context.Context, documentID uuid.UUID) (*finance.Document, error) {
	return r.FindByID(ctx, documentID)
}

// CreatePayment applies a payment to a document under optimistic locking and
// issues the authoritative receipt number. The client-generated payment ID is
// an idempotency key: replaying an already-applied payment returns the stored
// payment without touching the document.
func (r *GormDocumentRepository) CreatePayment(ctx context.Context, documentID uuid.UUID, payment *finance.Payment) (*finance.Payment, error) {
	if payment == nil {
		return nil, shared.NewDomainError("INVALID_PAYMENT", "Payment cannot be nil")
	}

	document, err := r.FindByID(ctx, documentID)
	if err != nil {
		return nil, err
	}

	if existing := document.Payments.Find(payment.ID); existing != nil {
		applied := *existing
		return &applied, nil
	}

	applied := *payment
	year := time.Now().Year()
	applied.ConfirmReceipt(nextReceiptNumber(document.Payments, year))
	applied.CompositeReference = finance.CompositeReference(&applied, document.DocumentNumber)

	if err := document.ApplyPayment(&applied); err != nil {
		return nil, err
	}
	if err := r.SaveWithLock(ctx, document); err != nil {
		return nil, err
	}

	stored := document.Payments.Find(applied.ID)
	if stored == nil {
		return &applied, nil
	}
	result := *stored
	return &result, nil
}

// VoidPayment marks a payment as voided, retaining it for audit
func (r *GormDocumentRepository) VoidPayment(ctx context.Context, documentID, paymentID uuid.UUID, reason, voidedBy string) error {
	document, err := r.FindByID(ctx, documentID)
	if err != nil {
		return err
	}

	changed, err := document.VoidPayment(paymentID, reason, voidedBy)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	return r.SaveWithLock(ctx, document)
}

// nextReceiptNumber derives the next receipt sequence for the given year from
// the receipt numbers already issued on the document. Sequences are scoped per
// year and restart at 1 each January.
func nextReceiptNumber(payments finance.Payments, year int) string {
	yearPrefix := "RCP-" + strconv.Itoa(year) + "-"
	maxSeq := 0
	for i := range payments {
		token := finance.FormatReceiptNumber(payments[i].ReceiptNumber)
		if token == "" || payments[i].ReceiptProvisional {
			continue
		}
		if !strings.HasPrefix(token, yearPrefix) {
			continue
		}
		seq, err := strconv.Atoi(token[len(yearPrefix):])
		if err != nil {
			continue
		}
		if seq > maxSeq {
			maxSeq = seq
		}
	}
	return fmt.Sprintf("RCP-%d-%04d", year, maxSeq+1)
}

func (r *GormDocumentRepository) applyDocumentFilter(query *gorm.DB, filter finance.DocumentFilter) *gorm.DB {
	query = r.applyDocumentFilterWithoutPagination(query, filter)

	// Apply pagination
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	return query.Order("created_at DESC")
}

func (r *GormDocumentRepository) applyDocumentFilterWithoutPagination(query *gorm.DB, filter finance.DocumentFilter) *gorm.DB {
	// Apply search
	if filter.Search != "" {
		searchPattern := "%" + filter.Search + "%"
		query = query.Where("document_number ILIKE ? OR party_name ILIKE ?",
			searchPattern, searchPattern)
	}

	// Apply specific filters
	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.PartyID != nil {
		query = query.Where("party_id = ?", *filter.PartyID)
	}
	if filter.DateFrom != nil {
		query = query.Where("created_at >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("created_at <= ?", *filter.DateTo)
	}
	if filter.OverdueAt != nil {
		query = query.Where("due_date < ? AND status IN ?", *filter.OverdueAt,
			[]finance.DocumentStatus{finance.DocumentStatusUnpaid, finance.DocumentStatusPartiallyPaid})
	}

	return query
}
