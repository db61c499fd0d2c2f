package escrow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/peertrade/backend/internal/domain/shared"
)

// OrderRepository defines the interface for escrow order persistence
type OrderRepository interface {
	// FindByID finds an order by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// FindByReference finds an order by its human-facing reference
	FindByReference(ctx context.Context, reference string) (*Order, error)

	// FindByParticipant finds orders where the user is buyer or seller
	FindByParticipant(ctx context.Context, userID uuid.UUID, filter shared.Filter) ([]Order, error)

	// CountActiveBySeller counts orders in an active status for a seller
	CountActiveBySeller(ctx context.Context, sellerUserID uuid.UUID) (int64, error)

	// FindExpired finds orders in CREATED status whose expiry passed before now
	FindExpired(ctx context.Context, now time.Time, limit int) ([]Order, error)

	// Create inserts a new order
	Create(ctx context.Context, order *Order) error

	// SaveWithLock saves an order with optimistic locking (version check)
	// Returns error if the version has changed (concurrent modification)
	SaveWithLock(ctx context.Context, order *Order) error
}

// AdRepository defines the interface for liquidity ad persistence
type AdRepository interface {
	// FindByID finds an ad by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Ad, error)

	// FindByCreatedBy finds all ads owned by a user
	FindByCreatedBy(ctx context.Context, userID uuid.UUID) ([]Ad, error)

	// FindActive finds active ads matching the filter
	FindActive(ctx context.Context, filter shared.Filter) ([]Ad, error)

	// Create inserts a new ad
	Create(ctx context.Context, ad *Ad) error

	// Save creates or updates an ad
	Save(ctx context.Context, ad *Ad) error

	// SaveWithLock saves an ad with optimistic locking (version check)
	// Returns error if the version has changed (concurrent modification)
	SaveWithLock(ctx context.Context, ad *Ad) error
}
