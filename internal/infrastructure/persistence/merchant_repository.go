package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/peertrade/backend/internal/domain/merchant"
	"github.com/peertrade/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormMerchantRepository implements merchant.Repository using GORM
type GormMerchantRepository struct {
	db *gorm.DB
}

// NewGormMerchantRepository creates a new GormMerchantRepository
func NewGormMerchantRepository(db *gorm.DB) *GormMerchantRepository {
	return &GormMerchantRepository{db: db}
}

// FindByID finds a profile by its ID
func (r *GormMerchantRepository) FindByID(ctx context.Context, id uuid.UUID) (*merchant.Profile, error) {
	var profile merchant.Profile
	if err := r.db.WithContext(ctx).First(&profile, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &profile, nil
}

// FindByUserID finds the profile for a user.
// Returns nil (not an error) when the user has no profile.
func (r *GormMerchantRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*merchant.Profile, error) {
	var profile merchant.Profile
	if err := r.db.WithContext(ctx).First(&profile, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

// Create inserts a new profile
func (r *GormMerchantRepository) Create(ctx context.Context, profile *merchant.Profile) error {
	if err := r.db.WithContext(ctx).Create(profile).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Save creates or updates a profile
func (r *GormMerchantRepository) Save(ctx context.Context, profile *merchant.Profile) error {
	return r.db.WithContext(ctx).Save(profile).Error
}

// Ensure GormMerchantRepository implements merchant.Repository
var _ merchant.Repository = (*GormMerchantRepository)(nil)
