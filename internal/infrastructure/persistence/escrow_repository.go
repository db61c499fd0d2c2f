package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/peertrade/backend/internal/domain/escrow"
	"github.com/peertrade/backend/internal/domain/shared"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOrderRepository implements escrow.OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// FindByID finds an order by its ID
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*escrow.Order, error) {
	var order escrow.Order
	if err := r.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

// FindByReference finds an order by its human-facing reference
func (r *GormOrderRepository) FindByReference(ctx context.Context, reference string) (*escrow.Order, error) {
	var order escrow.Order
	if err := r.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		First(&order, "reference = ?", reference).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

// FindByParticipant finds orders where the user is buyer or seller
func (r *GormOrderRepository) FindByParticipant(ctx context.Context, userID uuid.UUID, filter shared.Filter) ([]escrow.Order, error) {
	var orders []escrow.Order
	query := r.db.WithContext(ctx).
		Model(&escrow.Order{}).
		Where("buyer_user_id = ? OR seller_user_id = ?", userID, userID)

	query = applyListFilter(query, filter, OrderSortFields, "created_at")

	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// CountActiveBySeller counts orders in an active status for a seller
func (r *GormOrderRepository) CountActiveBySeller(ctx context.Context, sellerUserID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&escrow.Order{}).
		Where("seller_user_id = ? AND status IN ?", sellerUserID, activeOrderStatuses()).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// FindExpired finds orders in CREATED status whose expiry passed before now
func (r *GormOrderRepository) FindExpired(ctx context.Context, now time.Time, limit int) ([]escrow.Order, error) {
	var orders []escrow.Order
	query := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", escrow.OrderStatusCreated, now).
		Order("expires_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// Create inserts a new order
func (r *GormOrderRepository) Create(ctx context.Context, order *escrow.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// SaveWithLock saves an order with optimistic locking (version check)
// Returns error if the version has changed (concurrent modification)
func (r *GormOrderRepository) SaveWithLock(ctx context.Context, order *escrow.Order) error {
	result := r.db.WithContext(ctx).
		Model(order).
		Where("id = ? AND version = ?", order.ID, order.Version-1).
		Updates(map[string]interface{}{
			"status":     order.Status,
			"version":    order.Version,
			"updated_at": order.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError("OPTIMISTIC_LOCK_ERROR", "The order record has been modified by another transaction")
	}

	// Messages are append-only rows keyed by their own IDs; inserting with
	// DoNothing keeps re-saves of the same aggregate idempotent.
	if len(order.Messages) > 0 {
		if err := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&order.Messages).Error; err != nil {
			return err
		}
	}
	return nil
}

// activeOrderStatuses returns statuses in which an order still holds funds
func activeOrderStatuses() []escrow.OrderStatus {
	return []escrow.OrderStatus{
		escrow.OrderStatusCreated,
		escrow.OrderStatusPaymentSent,
		escrow.OrderStatusDisputed,
	}
}

// Ensure GormOrderRepository implements escrow.OrderRepository
var _ escrow.OrderRepository = (*GormOrderRepository)(nil)

// GormAdRepository implements escrow.AdRepository using GORM
type GormAdRepository struct {
	db *gorm.DB
}

// NewGormAdRepository creates a new GormAdRepository
func NewGormAdRepository(db *gorm.DB) *GormAdRepository {
	return &GormAdRepository{db: db}
}

// FindByID finds an ad by its ID
func (r *GormAdRepository) FindByID(ctx context.Context, id uuid.UUID) (*escrow.Ad, error) {
	var ad escrow.Ad
	if err := r.db.WithContext(ctx).First(&ad, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &ad, nil
}

// FindByCreatedBy finds all ads owned by a user
func (r *GormAdRepository) FindByCreatedBy(ctx context.Context, userID uuid.UUID) ([]escrow.Ad, error) {
	var ads []escrow.Ad
	if err := r.db.WithContext(ctx).
		Where("created_by_user_id = ?", userID).
		Order("created_at DESC").
		Find(&ads).Error; err != nil {
		return nil, err
	}
	return ads, nil
}

// FindActive finds active ads matching the filter
func (r *GormAdRepository) FindActive(ctx context.Context, filter shared.Filter) ([]escrow.Ad, error) {
	var ads []escrow.Ad
	query := r.db.WithContext(ctx).
		Model(&escrow.Ad{}).
		Where("status = ?", escrow.AdStatusActive)

	if asset, ok := filter.Filters["asset"]; ok {
		query = query.Where("asset = ?", asset)
	}

	query = applyListFilter(query, filter, AdSortFields, "created_at")

	if err := query.Find(&ads).Error; err != nil {
		return nil, err
	}
	return ads, nil
}

// Create inserts a new ad
func (r *GormAdRepository) Create(ctx context.Context, ad *escrow.Ad) error {
	return r.db.WithContext(ctx).Create(ad).Error
}

// Save creates or updates an ad
func (r *GormAdRepository) Save(ctx context.Context, ad *escrow.Ad) error {
	return r.db.WithContext(ctx).Save(ad).Error
}

// SaveWithLock saves an ad with optimistic locking (version check)
// Returns error if the version has changed (concurrent modification)
func (r *GormAdRepository) SaveWithLock(ctx context.Context, ad *escrow.Ad) error {
	result := r.db.WithContext(ctx).
		Model(ad).
		Where("id = ? AND version = ?", ad.ID, ad.Version-1).
		Updates(map[string]interface{}{
			"available_amount": ad.AvailableAmount,
			"locked_amount":    ad.LockedAmount,
			"status":           ad.Status,
			"version":          ad.Version,
			"updated_at":       ad.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError("OPTIMISTIC_LOCK_ERROR", "The ad record has been modified by another transaction")
	}
	return nil
}

// Ensure GormAdRepository implements escrow.AdRepository
var _ escrow.AdRepository = (*GormAdRepository)(nil)
