package models

import (
	"time"

	"github.com/finflow/backend/internal/domain/finance"
	"github.com/finflow/backend/internal/domain/shared"
	"github.com/finflow/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DocumentModel is the persistence model for the Document aggregate root.
// Payments are stored as a JSONB column: a payment is a value object of its
// document and is always read and written with it.
type DocumentModel struct {
	AggregateModel
	DocumentNumber    string                 `gorm:"type:varchar(50);not null;uniqueIndex"`
	Kind              finance.DocumentKind   `gorm:"type:varchar(10);not null;index"`
	PartyID           uuid.UUID              `gorm:"type:uuid;not null;index"`
	PartyName         string                 `gorm:"type:varchar(200);not null"`
	Currency          valueobject.Currency   `gorm:"type:varchar(3);not null"`
	TotalAmount       decimal.Decimal        `gorm:"type:decimal(18,4);not null"`
	PaidAmount        decimal.Decimal        `gorm:"type:decimal(18,4);not null"`
	OutstandingAmount decimal.Decimal        `gorm:"type:decimal(18,4);not null;index"`
	Status            finance.DocumentStatus `gorm:"type:varchar(20);not null;default:'unpaid';index"`
	DueDate           *time.Time             `gorm:"index"`
	Payments          finance.Payments       `gorm:"type:jsonb;default:'[]'"`
	Notes             string                 `gorm:"type:text"`
	PaidAt            *time.Time
}

// TableName returns the table name for GORM
func (DocumentModel) TableName() string {
	return "documents"
}

// ToDomain converts the persistence model to a domain Document aggregate.
// Stored balance columns are display hints only: the balance is recomputed
// from the payment sequence on every read.
func (m *DocumentModel) ToDomain() *finance.Document {
	d := &finance.Document{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			},
			Version: m.Version,
		},
		DocumentNumber:    m.DocumentNumber,
		Kind:              m.Kind,
		PartyID:           m.PartyID,
		PartyName:         m.PartyName,
		Currency:          m.Currency,
		TotalAmount:       m.TotalAmount,
		PaidAmount:        m.PaidAmount,
		OutstandingAmount: m.OutstandingAmount,
		Status:            m.Status,
		DueDate:           m.DueDate,
		Payments:          m.Payments,
		Notes:             m.Notes,
		PaidAt:            m.PaidAt,
	}
	d.Reconcile()
	return d
}

// FromDomain populates the persistence model from a domain Document aggregate
func (m *DocumentModel) FromDomain(d *finance.Document) {
	m.FromDomainAggregateRoot(d.BaseAggregateRoot)
	m.DocumentNumber = d.DocumentNumber
	m.Kind = d.Kind
	m.PartyID = d.PartyID
	m.PartyName = d.PartyName
	m.Currency = d.Currency
	m.TotalAmount = d.TotalAmount
	m.PaidAmount = d.PaidAmount
	m.OutstandingAmount = d.OutstandingAmount
	m.Status = d.Status
	m.DueDate = d.DueDate
	m.Payments = d.Payments
	m.Notes = d.Notes
	m.PaidAt = d.PaidAt
}

// DocumentModelFromDomain creates a new persistence model from a domain Document
func DocumentModelFromDomain(d *finance.Document) *DocumentModel {
	m := &DocumentModel{}
	m.FromDomain(d)
	return m
}
