package finance

import (
	"context"

	"github.com/finflow/backend/internal/domain/finance"
	"github.com/google/uuid"
)

// AuthenticatedActorAuthorizer permits payment mutations for any
// authenticated actor. Deployments with finer-grained policies supply their
// own PaymentAuthorizer to the coordinator.
type AuthenticatedActorAuthorizer struct{}

var _ finance.PaymentAuthorizer = AuthenticatedActorAuthorizer{}

// CanMutatePayments reports whether the actor may mutate payments
func (AuthenticatedActorAuthorizer) CanMutatePayments(ctx context.Context, actorID, documentID uuid.UUID) (bool, error) {
	return actorID != uuid.Nil, nil
}
