package wallet

import (
	"context"

	"github.com/google/uuid"
	"github.com/peertrade/backend/internal/domain/shared"
)

// Repository defines the interface for wallet persistence
type Repository interface {
	// FindByID finds a wallet by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Wallet, error)

	// FindByUserID finds a wallet by the owning user's ID
	// Returns nil (not an error) when no wallet exists yet
	FindByUserID(ctx context.Context, userID uuid.UUID) (*Wallet, error)

	// Create inserts a new wallet
	Create(ctx context.Context, w *Wallet) error

	// Save creates or updates a wallet
	Save(ctx context.Context, w *Wallet) error

	// SaveWithLock saves a wallet with optimistic locking (version check)
	// Returns error if the version has changed (concurrent modification)
	SaveWithLock(ctx context.Context, w *Wallet) error
}

// LedgerEntryRepository defines the interface for ledger entry persistence.
// Entries are append-only; there are no update or delete operations.
type LedgerEntryRepository interface {
	// Create appends a new ledger entry
	Create(ctx context.Context, entry *LedgerEntry) error

	// FindByID finds a ledger entry by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*LedgerEntry, error)

	// FindByUserID finds entries for a user, newest first
	FindByUserID(ctx context.Context, userID uuid.UUID, filter shared.Filter) ([]LedgerEntry, error)

	// FindByReferenceID finds all entries sharing a reference ID
	// (both sides of a transfer, a trade and its fee)
	FindByReferenceID(ctx context.Context, referenceID string) ([]LedgerEntry, error)

	// CountByUserID counts entries for a user
	CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error)
}
