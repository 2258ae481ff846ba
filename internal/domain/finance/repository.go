package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DocumentFilter defines filtering options for document queries
type DocumentFilter struct {
	Kind      DocumentKind
	Status    DocumentStatus
	PartyID   *uuid.UUID
	Search    string
	DateFrom  *time.Time
	DateTo    *time.Time
	OverdueAt *time.Time
	Limit     int
	Offset    int
}

// DocumentRepository defines the persistence interface for documents
type DocumentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Document, error)
	FindByNumber(ctx context.Context, documentNumber string) (*Document, error)
	FindAll(ctx context.Context, filter DocumentFilter) ([]Document, error)
	Count(ctx context.Context, filter DocumentFilter) (int64, error)
	Save(ctx context.Context, document *Document) error
	// SaveWithLock saves using optimistic locking on the aggregate version
	SaveWithLock(ctx context.Context, document *Document) error
}

// PaymentStore is the persistence collaborator consumed by the mutation
// coordinator. All three operations may fail with a transport error, which
// the coordinator treats as "mutation failed, attempt resync".
type PaymentStore interface {
	// CreatePayment applies a currency-normalized payment to a document and
	// returns the authoritative payment, carrying the server-issued receipt
	// number. The client-generated payment ID is honored as an idempotency
	// key: a replay returns the already-applied payment as a success no-op.
	CreatePayment(ctx context.Context, documentID uuid.UUID, payment *Payment) (*Payment, error)
	// VoidPayment flags a payment as voided, retaining it for audit
	VoidPayment(ctx context.Context, documentID, paymentID uuid.UUID, reason, voidedBy string) error
	// GetDocument returns the authoritative document state
	GetDocument(ctx context.Context, documentID uuid.UUID) (*Document, error)
}

// CachedDocumentList is a cached list read. Stale entries are still returned
// so callers can render immediately and refresh in the background.
type CachedDocumentList struct {
	Documents []Document
	StoredAt  time.Time
	Stale     bool
}

// DocumentListCache is the list cache collaborator. Entries follow a
// stale-while-revalidate policy; every successful mutation must invalidate
// the affected document set so the next list read is forced fresh.
type DocumentListCache interface {
	Get(ctx context.Context, key string) (*CachedDocumentList, error)
	Set(ctx context.Context, key string, documents []Document) error
	// Invalidate removes every entry whose key starts with the given prefix
	Invalidate(ctx context.Context, keyPrefix string) error
}

// PaymentAuthorizer answers whether an actor may mutate payments on a
// document. It is consumed once, before any mutation is attempted; the
// engine performs no further authorization logic itself.
type PaymentAuthorizer interface {
	CanMutatePayments(ctx context.Context, actorID, documentID uuid.UUID) (bool, error)
}

// ListCacheKeyPrefix returns the cache key prefix covering every cached list
// for a document kind
func ListCacheKeyPrefix(kind DocumentKind) string {
	return fmt.Sprintf("documents:%s:", kind)
}

// ListCacheKey builds a cache key from a document kind and serialized filter
// parameters
func ListCacheKey(kind DocumentKind, serializedFilter string) string {
	return ListCacheKeyPrefix(kind) + serializedFilter
}
