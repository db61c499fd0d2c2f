package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/peertrade/backend/internal/domain/shared"
	"github.com/peertrade/backend/internal/domain/wallet"
	"gorm.io/gorm"
)

// GormWalletRepository implements wallet.Repository using GORM
type GormWalletRepository struct {
	db *gorm.DB
}

// NewGormWalletRepository creates a new GormWalletRepository
func NewGormWalletRepository(db *gorm.DB) *GormWalletRepository {
	return &GormWalletRepository{db: db}
}

// FindByID finds a wallet by its ID
func (r *GormWalletRepository) FindByID(ctx context.Context, id uuid.UUID) (*wallet.Wallet, error) {
	var w wallet.Wallet
	if err := r.db.WithContext(ctx).First(&w, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &w, nil
}

// FindByUserID finds a wallet by the owning user's ID.
// Returns nil (not an error) when no wallet exists yet, so callers can
// lazily create one.
func (r *GormWalletRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*wallet.Wallet, error) {
	var w wallet.Wallet
	if err := r.db.WithContext(ctx).First(&w, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &w, nil
}

// Create inserts a new wallet
func (r *GormWalletRepository) Create(ctx context.Context, w *wallet.Wallet) error {
	if err := r.db.WithContext(ctx).Create(w).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Save creates or updates a wallet
func (r *GormWalletRepository) Save(ctx context.Context, w *wallet.Wallet) error {
	return r.db.WithContext(ctx).Save(w).Error
}

// SaveWithLock saves a wallet with optimistic locking (version check)
// Returns error if the version has changed (concurrent modification)
func (r *GormWalletRepository) SaveWithLock(ctx context.Context, w *wallet.Wallet) error {
	result := r.db.WithContext(ctx).
		Model(w).
		Where("id = ? AND version = ?", w.ID, w.Version-1).
		Updates(map[string]interface{}{
			"available_balance": w.AvailableBalance,
			"locked_balance":    w.LockedBalance,
			"username":          w.Username,
			"version":           w.Version,
			"updated_at":        w.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError("OPTIMISTIC_LOCK_ERROR", "The wallet record has been modified by another transaction")
	}
	return nil
}

// isUniqueViolation reports whether the error is a unique constraint
// violation. The pgx driver surfaces these as SQLSTATE 23505.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}

// Ensure GormWalletRepository implements wallet.Repository
var _ wallet.Repository = (*GormWalletRepository)(nil)

// GormLedgerEntryRepository implements wallet.LedgerEntryRepository using GORM.
// Ledger entries are append-only; the repository exposes no update or delete.
type GormLedgerEntryRepository struct {
	db *gorm.DB
}

// NewGormLedgerEntryRepository creates a new GormLedgerEntryRepository
func NewGormLedgerEntryRepository(db *gorm.DB) *GormLedgerEntryRepository {
	return &GormLedgerEntryRepository{db: db}
}

// Create appends a new ledger entry
func (r *GormLedgerEntryRepository) Create(ctx context.Context, entry *wallet.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// FindByID finds a ledger entry by its ID
func (r *GormLedgerEntryRepository) FindByID(ctx context.Context, id uuid.UUID) (*wallet.LedgerEntry, error) {
	var entry wallet.LedgerEntry
	if err := r.db.WithContext(ctx).First(&entry, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// FindByUserID finds entries for a user, newest first
func (r *GormLedgerEntryRepository) FindByUserID(ctx context.Context, userID uuid.UUID, filter shared.Filter) ([]wallet.LedgerEntry, error) {
	var entries []wallet.LedgerEntry
	query := r.db.WithContext(ctx).
		Model(&wallet.LedgerEntry{}).
		Where("user_id = ?", userID)

	query = applyListFilter(query, filter, LedgerEntrySortFields, "created_at")

	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// FindByReferenceID finds all entries sharing a reference ID
// (both sides of a transfer, a trade and its fee)
func (r *GormLedgerEntryRepository) FindByReferenceID(ctx context.Context, referenceID string) ([]wallet.LedgerEntry, error) {
	var entries []wallet.LedgerEntry
	if err := r.db.WithContext(ctx).
		Where("reference_id = ?", referenceID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// CountByUserID counts entries for a user
func (r *GormLedgerEntryRepository) CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&wallet.LedgerEntry{}).
		Where("user_id = ?", userID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Ensure GormLedgerEntryRepository implements wallet.LedgerEntryRepository
var _ wallet.LedgerEntryRepository = (*GormLedgerEntryRepository)(nil)
