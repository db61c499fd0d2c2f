package withdrawal

import (
	"context"

	"github.com/google/uuid"
	"github.com/peertrade/backend/internal/domain/shared"
)

// Repository defines the interface for withdrawal request persistence
type Repository interface {
	// FindByID finds a request by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Request, error)

	// FindPendingByTuple finds a pending request for the same
	// (user, currency, address) tuple. Returns nil when none exists.
	FindPendingByTuple(ctx context.Context, userID uuid.UUID, currency, address string) (*Request, error)

	// FindByUserID finds requests for a user, newest first
	FindByUserID(ctx context.Context, userID uuid.UUID, filter shared.Filter) ([]Request, error)

	// FindByStatus finds requests in the given status
	FindByStatus(ctx context.Context, status Status, filter shared.Filter) ([]Request, error)

	// Create inserts a new request
	Create(ctx context.Context, req *Request) error

	// SaveWithLock saves a request with optimistic locking (version check)
	// Returns error if the version has changed (concurrent modification)
	SaveWithLock(ctx context.Context, req *Request) error
}
