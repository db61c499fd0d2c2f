package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/peertrade/backend/internal/domain/shared"
	"github.com/peertrade/backend/internal/domain/withdrawal"
	"gorm.io/gorm"
)

// GormWithdrawalRepository implements withdrawal.Repository using GORM
type GormWithdrawalRepository struct {
	db *gorm.DB
}

// NewGormWithdrawalRepository creates a new GormWithdrawalRepository
func NewGormWithdrawalRepository(db *gorm.DB) *GormWithdrawalRepository {
	return &GormWithdrawalRepository{db: db}
}

// FindByID finds a request by its ID
func (r *GormWithdrawalRepository) FindByID(ctx context.Context, id uuid.UUID) (*withdrawal.Request, error) {
	var req withdrawal.Request
	if err := r.db.WithContext(ctx).First(&req, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &req, nil
}

// FindPendingByTuple finds a pending request for the same
// (user, currency, address) tuple. Returns nil when none exists.
func (r *GormWithdrawalRepository) FindPendingByTuple(ctx context.Context, userID uuid.UUID, currency, address string) (*withdrawal.Request, error) {
	var req withdrawal.Request
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND currency = ? AND address = ? AND status = ?",
			userID, currency, address, withdrawal.StatusPending).
		First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}

// FindByUserID finds requests for a user, newest first
func (r *GormWithdrawalRepository) FindByUserID(ctx context.Context, userID uuid.UUID, filter shared.Filter) ([]withdrawal.Request, error) {
	var requests []withdrawal.Request
	query := r.db.WithContext(ctx).
		Model(&withdrawal.Request{}).
		Where("user_id = ?", userID)

	query = applyListFilter(query, filter, WithdrawalSortFields, "created_at")

	if err := query.Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

// FindByStatus finds requests in the given status
func (r *GormWithdrawalRepository) FindByStatus(ctx context.Context, status withdrawal.Status, filter shared.Filter) ([]withdrawal.Request, error) {
	var requests []withdrawal.Request
	query := r.db.WithContext(ctx).
		Model(&withdrawal.Request{}).
		Where("status = ?", status)

	query = applyListFilter(query, filter, WithdrawalSortFields, "created_at")

	if err := query.Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

// Create inserts a new request
func (r *GormWithdrawalRepository) Create(ctx context.Context, req *withdrawal.Request) error {
	return r.db.WithContext(ctx).Create(req).Error
}

// SaveWithLock saves a request with optimistic locking (version check)
// Returns error if the version has changed (concurrent modification)
func (r *GormWithdrawalRepository) SaveWithLock(ctx context.Context, req *withdrawal.Request) error {
	result := r.db.WithContext(ctx).
		Model(req).
		Where("id = ? AND version = ?", req.ID, req.Version-1).
		Updates(map[string]interface{}{
			"status":       req.Status,
			"processed_at": req.ProcessedAt,
			"version":      req.Version,
			"updated_at":   req.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError("OPTIMISTIC_LOCK_ERROR", "The withdrawal record has been modified by another transaction")
	}
	return nil
}

// Ensure GormWithdrawalRepository implements withdrawal.Repository
var _ withdrawal.Repository = (*GormWithdrawalRepository)(nil)
