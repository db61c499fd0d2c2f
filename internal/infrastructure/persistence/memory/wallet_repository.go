package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/peertrade/backend/internal/domain/shared"
	"github.com/peertrade/backend/internal/domain/wallet"
)

type walletRepository struct {
	store *Store
}

func (r *walletRepository) FindByID(ctx context.Context, id uuid.UUID) (*wallet.Wallet, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	w, ok := r.store.wallets[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &w, nil
}

func (r *walletRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*wallet.Wallet, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	id, ok := r.store.walletsByUser[userID]
	if !ok {
		return nil, nil
	}
	w := r.store.wallets[id]
	return &w, nil
}

func (r *walletRepository) Create(ctx context.Context, w *wallet.Wallet) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, exists := r.store.walletsByUser[w.UserID]; exists {
		return shared.ErrAlreadyExists
	}
	r.store.wallets[w.ID] = *w
	r.store.walletsByUser[w.UserID] = w.ID
	return nil
}

func (r *walletRepository) Save(ctx context.Context, w *wallet.Wallet) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	w.UpdatedAt = time.Now()
	r.store.wallets[w.ID] = *w
	r.store.walletsByUser[w.UserID] = w.ID
	return nil
}

// SaveWithLock applies the same conditional-update contract as the SQL
// repository: the write succeeds only when the stored version matches the
// version the caller read.
func (r *walletRepository) SaveWithLock(ctx context.Context, w *wallet.Wallet) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	existing, ok := r.store.wallets[w.ID]
	if !ok || existing.Version != w.Version-1 {
		return shared.NewDomainError("OPTIMISTIC_LOCK_ERROR",
			"The wallet record has been modified by another transaction")
	}
	w.UpdatedAt = time.Now()
	r.store.wallets[w.ID] = *w
	return nil
}

var _ wallet.Repository = (*walletRepository)(nil)

type ledgerEntryRepository struct {
	store *Store
}

func (r *ledgerEntryRepository) Create(ctx context.Context, entry *wallet.LedgerEntry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.entries = append(r.store.entries, *entry)
	return nil
}

func (r *ledgerEntryRepository) FindByID(ctx context.Context, id uuid.UUID) (*wallet.LedgerEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for i := range r.store.entries {
		if r.store.entries[i].ID == id {
			entry := r.store.entries[i]
			return &entry, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *ledgerEntryRepository) FindByUserID(ctx context.Context, userID uuid.UUID, filter shared.Filter) ([]wallet.LedgerEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var result []wallet.LedgerEntry
	for i := range r.store.entries {
		if r.store.entries[i].UserID == userID {
			result = append(result, r.store.entries[i])
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (r *ledgerEntryRepository) FindByReferenceID(ctx context.Context, referenceID string) ([]wallet.LedgerEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var result []wallet.LedgerEntry
	for i := range r.store.entries {
		if r.store.entries[i].ReferenceID == referenceID {
			result = append(result, r.store.entries[i])
		}
	}
	return result, nil
}

func (r *ledgerEntryRepository) CountByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var count int64
	for i := range r.store.entries {
		if r.store.entries[i].UserID == userID {
			count++
		}
	}
	return count, nil
}

var _ wallet.LedgerEntryRepository = (*ledgerEntryRepository)(nil)
