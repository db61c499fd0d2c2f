package merchant

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for merchant profile persistence
type Repository interface {
	// FindByID finds a profile by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Profile, error)

	// FindByUserID finds the profile for a user
	// Returns nil (not an error) when the user has no profile
	FindByUserID(ctx context.Context, userID uuid.UUID) (*Profile, error)

	// Create inserts a new profile
	Create(ctx context.Context, profile *Profile) error

	// Save creates or updates a profile
	Save(ctx context.Context, profile *Profile) error
}
