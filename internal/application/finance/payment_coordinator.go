package finance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/finflow/backend/internal/domain/finance"
	"github.com/finflow/backend/internal/domain/shared"
	"github.com/finflow/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrSaveInProgress is returned when a second mutation targets a document
// that already has a mutation in flight. Mutations against the same document
// are rejected rather than queued; different documents proceed concurrently.
var ErrSaveInProgress = shared.NewDomainError("SAVE_IN_PROGRESS", "A change to this document is still being saved")

// MutationFailure is returned when the persistence collaborator rejected a
// write. Exactly one resynchronizing read is attempted; Resynced reports
// whether it succeeded (view refreshed from authoritative state) and
// RolledBack whether the pre-mutation state was restored instead.
type MutationFailure struct {
	Op         string
	Cause      error
	Resynced   bool
	RolledBack bool
}

// Error implements the error interface, surfacing the collaborator's message
// verbatim where available
func (e *MutationFailure) Error() string {
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return fmt.Sprintf("failed to save %s", e.Op)
}

// Unwrap returns the underlying cause
func (e *MutationFailure) Unwrap() error {
	return e.Cause
}

// DocumentState is the two-slot UI-facing state of a document: the last
// confirmed authoritative state plus, while a mutation is in flight, the
// tentatively proposed state. Rollback is a pure "discard tentative".
type DocumentState struct {
	Authoritative *finance.Document
	Tentative     *finance.Document
}

// Current returns the state the UI should render
func (s DocumentState) Current() *finance.Document {
	if s.Tentative != nil {
		return s.Tentative
	}
	return s.Authoritative
}

// StateObserver receives document state publications
type StateObserver func(state DocumentState)

// MutationResult is the outcome of a successfully committed mutation
type MutationResult struct {
	Document *finance.Document `json:"document"`
	Payment  *finance.Payment  `json:"payment,omitempty"`
	// Refreshed is set when the authoritative state disagreed with the
	// tentative state and the view was refreshed from the authoritative read
	Refreshed bool     `json:"refreshed,omitempty"`
	Notice    string   `json:"notice,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
}

type observerEntry struct {
	id uint64
	fn StateObserver
}

// PaymentCoordinator orchestrates add-payment and void-payment operations
// with an optimistic mutation discipline: propose, publish tentative state to
// observers immediately, submit the authoritative mutation, then either
// accept fresh authoritative state or roll back on failure. The UI-facing
// state is never left permanently diverged from what a fresh read would show.
type PaymentCoordinator struct {
	store  finance.PaymentStore
	cache  finance.DocumentListCache
	authz  finance.PaymentAuthorizer
	events shared.EventPublisher
	logger *zap.Logger

	mu         sync.Mutex
	inFlight   map[uuid.UUID]bool
	observers  map[uuid.UUID][]observerEntry
	observerID uint64
}

// NewPaymentCoordinator creates a new PaymentCoordinator
func NewPaymentCoordinator(
	store finance.PaymentStore,
	cache finance.DocumentListCache,
	authz finance.PaymentAuthorizer,
	events shared.EventPublisher,
	logger *zap.Logger,
) *PaymentCoordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentCoordinator{
		store:     store,
		cache:     cache,
		authz:     authz,
		events:    events,
		logger:    logger,
		inFlight:  make(map[uuid.UUID]bool),
		observers: make(map[uuid.UUID][]observerEntry),
	}
}

// Observe registers an observer for a document's state publications and
// returns a cancel function. A cancelled (detached) observer simply stops
// receiving publications; in-flight mutations complete silently.
func (c *PaymentCoordinator) Observe(documentID uuid.UUID, fn StateObserver) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observerID++
	id := c.observerID
	c.observers[documentID] = append(c.observers[documentID], observerEntry{id: id, fn: fn})
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		entries := c.observers[documentID]
		for i, e := range entries {
			if e.id == id {
				c.observers[documentID] = append(entries[:i], entries[i+1:]...)
				break
			}
		}
		if len(c.observers[documentID]) == 0 {
			delete(c.observers, documentID)
		}
	}
}

// AddPayment applies a candidate payment to a document.
//
// The tentative document state is published to observers before the
// persistence round-trip, so an observing UI reflects the payment
// immediately. On persistence failure one resynchronizing read is attempted;
// if that also fails the pre-mutation state is restored exactly.
func (c *PaymentCoordinator) AddPayment(ctx context.Context, document *finance.Document, candidate *finance.Payment, actorID uuid.UUID) (*MutationResult, error) {
	if document == nil {
		return nil, shared.NewDomainError("INVALID_DOCUMENT", "Document cannot be nil")
	}

	if err := c.authorize(ctx, actorID, document.ID); err != nil {
		return nil, err
	}

	if !c.begin(document.ID) {
		return nil, ErrSaveInProgress
	}
	defer c.end(document.ID)

	// reject before any state mutation if invalid
	validation := finance.ValidatePayment(candidate, document.OutstandingAmount)
	if err := validation.AsError(); err != nil {
		return nil, err
	}

	var override *decimal.Decimal
	if !candidate.AmountInReporting.IsZero() {
		v := candidate.AmountInReporting
		override = &v
	}
	normalization, err := finance.NormalizeCurrency(
		candidate.Amount, candidate.Currency, candidate.ExchangeRate, override, valueobject.ReportingCurrency,
	)
	if err != nil {
		return nil, err
	}

	normalized := *candidate
	normalization.ApplyTo(&normalized)

	prior := document.Clone()
	tentative := document.Clone()

	proposed := normalized
	finance.AssignReceiptNumber(&proposed, len(tentative.Payments)+1)
	if err := tentative.ApplyPayment(&proposed); err != nil {
		return nil, err
	}

	// suspension point: observers see the optimistic result before the
	// network round-trip completes
	c.publish(document.ID, DocumentState{Authoritative: prior, Tentative: tentative})

	authoritative, err := c.store.CreatePayment(ctx, document.ID, &normalized)
	if err != nil {
		return nil, c.failAndResync(ctx, "payment", document.ID, prior, err)
	}

	final, confirmed := c.acceptAuthoritative(ctx, document.ID, tentative, authoritative)

	result := &MutationResult{
		Document: final,
		Payment:  confirmed,
		Warnings: validation.Warnings,
	}
	if c.diverged(tentative, final) {
		result.Refreshed = true
		result.Notice = "The document was refreshed with the latest saved state"
	}

	c.commit(ctx, final, confirmed, nil)

	return result, nil
}

// VoidPayment voids a payment on a document, following the same optimistic
// discipline as AddPayment. Voiding an already-voided payment is a no-op.
// A concurrent void on the same document is rejected, not queued.
func (c *PaymentCoordinator) VoidPayment(ctx context.Context, document *finance.Document, paymentID uuid.UUID, reason, voidedBy string, actorID uuid.UUID) (*MutationResult, error) {
	if document == nil {
		return nil, shared.NewDomainError("INVALID_DOCUMENT", "Document cannot be nil")
	}

	if err := c.authorize(ctx, actorID, document.ID); err != nil {
		return nil, err
	}

	if !c.begin(document.ID) {
		return nil, ErrSaveInProgress
	}
	defer c.end(document.ID)

	target := document.FindPayment(paymentID)
	if target == nil {
		return nil, shared.NewDomainError("PAYMENT_NOT_FOUND", fmt.Sprintf("Payment %s not found", paymentID))
	}
	if target.Voided {
		return &MutationResult{Document: document, Payment: target}, nil
	}

	prior := document.Clone()
	tentative := document.Clone()

	changed, err := tentative.VoidPayment(paymentID, reason, voidedBy)
	if err != nil {
		return nil, err
	}
	if !changed {
		return &MutationResult{Document: document, Payment: target}, nil
	}

	c.publish(document.ID, DocumentState{Authoritative: prior, Tentative: tentative})

	if err := c.store.VoidPayment(ctx, document.ID, paymentID, reason, voidedBy); err != nil {
		return nil, c.failAndResync(ctx, "void", document.ID, prior, err)
	}

	final, _ := c.acceptAuthoritative(ctx, document.ID, tentative, nil)
	voided := final.FindPayment(paymentID)

	result := &MutationResult{Document: final, Payment: voided}
	if c.diverged(tentative, final) {
		result.Refreshed = true
		result.Notice = "The document was refreshed with the latest saved state"
	}

	c.commit(ctx, final, nil, voided)

	return result, nil
}

// authorize consults the authorization collaborator once, before any mutation
func (c *PaymentCoordinator) authorize(ctx context.Context, actorID, documentID uuid.UUID) error {
	if c.authz == nil {
		return nil
	}
	allowed, err := c.authz.CanMutatePayments(ctx, actorID, documentID)
	if err != nil {
		return fmt.Errorf("authorization check failed: %w", err)
	}
	if !allowed {
		return shared.ErrForbidden
	}
	return nil
}

// begin acquires the per-document in-flight guard
func (c *PaymentCoordinator) begin(documentID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight[documentID] {
		return false
	}
	c.inFlight[documentID] = true
	return true
}

// end releases the per-document in-flight guard
func (c *PaymentCoordinator) end(documentID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inFlight, documentID)
}

// publish delivers a state to all observers of a document. A panicking
// observer (e.g. one bound to a torn-down view) is logged and skipped; it
// never crashes the coordinator.
func (c *PaymentCoordinator) publish(documentID uuid.UUID, state DocumentState) {
	c.mu.Lock()
	entries := make([]observerEntry, len(c.observers[documentID]))
	copy(entries, c.observers[documentID])
	c.mu.Unlock()

	for _, e := range entries {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Error("document state observer panicked",
						zap.String("document_id", documentID.String()),
						zap.Any("panic", r),
					)
				}
			}()
			e.fn(state)
		}()
	}
}

// acceptAuthoritative re-fetches the authoritative document after a
// successful write and publishes it as final state. If the re-fetch fails,
// the tentative state is promoted with the authoritative payment merged in,
// which is what the next successful read will converge to anyway.
func (c *PaymentCoordinator) acceptAuthoritative(ctx context.Context, documentID uuid.UUID, tentative *finance.Document, authoritativePayment *finance.Payment) (*finance.Document, *finance.Payment) {
	final, err := c.store.GetDocument(ctx, documentID)
	if err != nil {
		c.logger.Warn("authoritative re-fetch failed after successful write; promoting tentative state",
			zap.String("document_id", documentID.String()),
			zap.Error(err),
		)
		final = tentative.Clone()
		if authoritativePayment != nil {
			if p := final.FindPayment(authoritativePayment.ID); p != nil {
				p.ConfirmReceipt(authoritativePayment.ReceiptNumber)
				p.CompositeReference = authoritativePayment.CompositeReference
			}
		}
	}

	// never trust a stored status field
	final.Reconcile()

	c.publish(documentID, DocumentState{Authoritative: final})

	var confirmed *finance.Payment
	if authoritativePayment != nil {
		confirmed = final.FindPayment(authoritativePayment.ID)
		if confirmed == nil {
			confirmed = authoritativePayment
		}
	}
	return final, confirmed
}

// failAndResync handles a rejected write: one resynchronizing read, then
// rollback to the pre-mutation state if that read also fails
func (c *PaymentCoordinator) failAndResync(ctx context.Context, op string, documentID uuid.UUID, prior *finance.Document, cause error) error {
	resynced, rerr := c.store.GetDocument(ctx, documentID)
	if rerr == nil {
		resynced.Reconcile()
		c.publish(documentID, DocumentState{Authoritative: resynced})
		c.logger.Warn("mutation failed; view resynchronized from authoritative state",
			zap.String("op", op),
			zap.String("document_id", documentID.String()),
			zap.Error(cause),
		)
		return &MutationFailure{Op: op, Cause: cause, Resynced: true}
	}

	c.publish(documentID, DocumentState{Authoritative: prior})
	c.logger.Error("mutation and resync both failed; rolled back to pre-mutation state",
		zap.String("op", op),
		zap.String("document_id", documentID.String()),
		zap.Error(cause),
		zap.NamedError("resync_error", rerr),
	)
	return &MutationFailure{Op: op, Cause: cause, RolledBack: true}
}

// diverged reports whether the authoritative state disagrees with the
// tentative state in a way the user should be told about
func (c *PaymentCoordinator) diverged(tentative, final *finance.Document) bool {
	if tentative == nil || final == nil {
		return false
	}
	return !tentative.TotalAmount.Equal(final.TotalAmount) ||
		len(tentative.Payments) != len(final.Payments) ||
		!tentative.PaidAmount.Equal(final.PaidAmount)
}

// commit emits post-success signals: list cache invalidation and domain events
func (c *PaymentCoordinator) commit(ctx context.Context, document *finance.Document, applied *finance.Payment, voided *finance.Payment) {
	if c.cache != nil {
		if err := c.cache.Invalidate(ctx, finance.ListCacheKeyPrefix(document.Kind)); err != nil {
			c.logger.Warn("list cache invalidation failed",
				zap.String("document_id", document.ID.String()),
				zap.Error(err),
			)
		}
	}

	if c.events == nil {
		return
	}
	var events []shared.DomainEvent
	if applied != nil {
		events = append(events, finance.NewPaymentAppliedEvent(document, applied))
		if document.Status == finance.DocumentStatusPaid {
			events = append(events, finance.NewDocumentSettledEvent(document))
		}
	}
	if voided != nil {
		events = append(events, finance.NewPaymentVoidedEvent(document, voided))
	}
	if len(events) == 0 {
		return
	}
	if err := c.events.Publish(ctx, events...); err != nil {
		c.logger.Warn("event publication failed", zap.Error(err))
	}
}

// ResolveState builds a fresh DocumentState from an authoritative read. It is
// what a page reload would show, and what every failure path converges to.
func (c *PaymentCoordinator) ResolveState(ctx context.Context, documentID uuid.UUID) (DocumentState, error) {
	doc, err := c.store.GetDocument(ctx, documentID)
	if err != nil {
		return DocumentState{}, fmt.Errorf("failed to load document: %w", err)
	}
	doc.Reconcile()
	return DocumentState{Authoritative: doc}, nil
}

// WaitSettled is a test hook that returns once no mutation is in flight for
// the document, polling at the given interval
func (c *PaymentCoordinator) WaitSettled(documentID uuid.UUID, interval time.Duration, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		busy := c.inFlight[documentID]
		c.mu.Unlock()
		if !busy {
			return true
		}
		time.Sleep(interval)
	}
	return false
}
