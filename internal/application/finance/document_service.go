package finance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/finflow/backend/internal/domain/finance"
	"github.com/finflow/backend/internal/domain/shared"
	"github.com/finflow/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DocumentListFilter carries list query parameters from the API layer
type DocumentListFilter struct {
	Search   string `form:"search"`
	Status   string `form:"status"`
	PartyID  string `form:"party_id" binding:"omitempty,uuid"`
	FromDate string `form:"from_date"`
	ToDate   string `form:"to_date"`
	Overdue  bool   `form:"overdue"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size" binding:"omitempty,max=100"`
}

// CreateDocumentRequest carries the fields needed to post a new document
type CreateDocumentRequest struct {
	Kind           finance.DocumentKind
	DocumentNumber string
	PartyID        uuid.UUID
	PartyName      string
	TotalAmount    decimal.Decimal
	Currency       valueobject.Currency
	DueDate        *time.Time
	Notes          string
}

// DocumentList is a list page together with its total row count. Stale marks
// results served from an expired cache entry while a refresh runs behind it.
type DocumentList struct {
	Documents []finance.Document
	Total     int64
	Stale     bool
}

// DocumentService handles document reads and document creation. Payment
// mutations go through the PaymentCoordinator instead.
type DocumentService struct {
	repo   finance.DocumentRepository
	cache  finance.DocumentListCache
	events shared.EventPublisher
	logger *zap.Logger
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(
	repo finance.DocumentRepository,
	cache finance.DocumentListCache,
	events shared.EventPublisher,
	logger *zap.Logger,
) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{
		repo:   repo,
		cache:  cache,
		events: events,
		logger: logger,
	}
}

// GetDocument returns a document by ID
func (s *DocumentService) GetDocument(ctx context.Context, id uuid.UUID) (*finance.Document, error) {
	return s.repo.FindByID(ctx, id)
}

// GetDocumentByNumber returns a document by its document number
func (s *DocumentService) GetDocumentByNumber(ctx context.Context, documentNumber string) (*finance.Document, error) {
	return s.repo.FindByNumber(ctx, documentNumber)
}

// ListDocuments returns a filtered document page. Cached pages are served
// immediately; a stale entry is returned as-is and refreshed in the
// background so the caller never waits on the revalidation.
func (s *DocumentService) ListDocuments(ctx context.Context, kind finance.DocumentKind, filter DocumentListFilter) (*DocumentList, error) {
	domainFilter, err := s.toDomainFilter(kind, filter)
	if err != nil {
		return nil, err
	}

	total, err := s.repo.Count(ctx, domainFilter)
	if err != nil {
		return nil, err
	}

	key := finance.ListCacheKey(kind, serializeFilter(filter))
	if cached, err := s.cache.Get(ctx, key); err == nil && cached != nil {
		if cached.Stale {
			go s.refreshList(key, domainFilter)
		}
		return &DocumentList{Documents: cached.Documents, Total: total, Stale: cached.Stale}, nil
	}

	documents, err := s.repo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, documents); err != nil {
		s.logger.Warn("failed to cache document list", zap.String("key", key), zap.Error(err))
	}

	return &DocumentList{Documents: documents, Total: total}, nil
}

// CreateDocument posts a new document and publishes its creation event
func (s *DocumentService) CreateDocument(ctx context.Context, req CreateDocumentRequest) (*finance.Document, error) {
	currency := req.Currency
	if currency == "" {
		currency = valueobject.ReportingCurrency
	}
	total, err := valueobject.NewMoney(req.TotalAmount, currency)
	if err != nil {
		return nil, err
	}

	document, err := finance.NewDocument(req.Kind, req.DocumentNumber, req.PartyID, req.PartyName, total, req.DueDate)
	if err != nil {
		return nil, err
	}
	document.Notes = req.Notes

	if existing, err := s.repo.FindByNumber(ctx, req.DocumentNumber); err == nil && existing != nil {
		return nil, shared.NewDomainError("ALREADY_EXISTS", fmt.Sprintf("Document %s already exists", req.DocumentNumber))
	}

	if err := s.repo.Save(ctx, document); err != nil {
		return nil, err
	}

	if err := s.cache.Invalidate(ctx, finance.ListCacheKeyPrefix(document.Kind)); err != nil {
		s.logger.Warn("failed to invalidate document list cache", zap.Error(err))
	}
	if err := s.events.Publish(ctx, document.GetDomainEvents()...); err != nil {
		s.logger.Warn("failed to publish document events", zap.Error(err))
	}
	document.ClearDomainEvents()

	return document, nil
}

// PaymentMethods returns the selectable payment methods with their
// reference field requirements
func (s *DocumentService) PaymentMethods() []finance.MethodOption {
	return finance.MethodOptions()
}

func (s *DocumentService) refreshList(key string, filter finance.DocumentFilter) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	documents, err := s.repo.FindAll(ctx, filter)
	if err != nil {
		s.logger.Warn("background list refresh failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, key, documents); err != nil {
		s.logger.Warn("failed to refresh document list cache", zap.String("key", key), zap.Error(err))
	}
}

func (s *DocumentService) toDomainFilter(kind finance.DocumentKind, filter DocumentListFilter) (finance.DocumentFilter, error) {
	domainFilter := finance.DocumentFilter{
		Kind:   kind,
		Search: filter.Search,
	}

	if filter.Status != "" {
		status := finance.DocumentStatus(filter.Status)
		if !status.IsValid() {
			return finance.DocumentFilter{}, shared.NewDomainError("VALIDATION_ERROR", fmt.Sprintf("Unknown status %q", filter.Status))
		}
		if status == finance.DocumentStatusOverdue {
			// Overdue is a display overlay, not a stored status
			now := time.Now()
			domainFilter.OverdueAt = &now
		} else {
			domainFilter.Status = status
		}
	}
	if filter.Overdue {
		now := time.Now()
		domainFilter.OverdueAt = &now
	}
	if filter.PartyID != "" {
		partyID, err := uuid.Parse(filter.PartyID)
		if err != nil {
			return finance.DocumentFilter{}, shared.NewDomainError("VALIDATION_ERROR", "Invalid party ID format")
		}
		domainFilter.PartyID = &partyID
	}
	if filter.FromDate != "" {
		from, err := time.Parse("2006-01-02", filter.FromDate)
		if err != nil {
			return finance.DocumentFilter{}, shared.NewDomainError("VALIDATION_ERROR", "Invalid from_date format, expected YYYY-MM-DD")
		}
		domainFilter.DateFrom = &from
	}
	if filter.ToDate != "" {
		to, err := time.Parse("2006-01-02", filter.ToDate)
		if err != nil {
			return finance.DocumentFilter{}, shared.NewDomainError("VALIDATION_ERROR", "Invalid to_date format, expected YYYY-MM-DD")
		}
		domainFilter.DateTo = &to
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	domainFilter.Limit = pageSize
	domainFilter.Offset = (page - 1) * pageSize

	return domainFilter, nil
}

func serializeFilter(filter DocumentListFilter) string {
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	parts := []string{
		"search=" + filter.Search,
		"status=" + filter.Status,
		"party=" + filter.PartyID,
		"from=" + filter.FromDate,
		"to=" + filter.ToDate,
		fmt.Sprintf("overdue=%t", filter.Overdue),
		fmt.Sprintf("page=%d", page),
		fmt.Sprintf("size=%d", pageSize),
	}
	return strings.Join(parts, "&")
}
