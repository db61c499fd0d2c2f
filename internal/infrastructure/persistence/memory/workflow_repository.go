package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/peertrade/backend/internal/domain/merchant"
	"github.com/peertrade/backend/internal/domain/reconciliation"
	"github.com/peertrade/backend/internal/domain/shared"
	"github.com/peertrade/backend/internal/domain/withdrawal"
)

type withdrawalRepository struct {
	store *Store
}

func (r *withdrawalRepository) FindByID(ctx context.Context, id uuid.UUID) (*withdrawal.Request, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	req, ok := r.store.withdrawals[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &req, nil
}

func (r *withdrawalRepository) FindPendingByTuple(ctx context.Context, userID uuid.UUID, currency, address string) (*withdrawal.Request, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, req := range r.store.withdrawals {
		if req.UserID == userID && req.Currency == currency && req.Address == address && req.IsPending() {
			found := req
			return &found, nil
		}
	}
	return nil, nil
}

func (r *withdrawalRepository) FindByUserID(ctx context.Context, userID uuid.UUID, filter shared.Filter) ([]withdrawal.Request, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var result []withdrawal.Request
	for _, req := range r.store.withdrawals {
		if req.UserID == userID {
			result = append(result, req)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (r *withdrawalRepository) FindByStatus(ctx context.Context, status withdrawal.Status, filter shared.Filter) ([]withdrawal.Request, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var result []withdrawal.Request
	for _, req := range r.store.withdrawals {
		if req.Status == status {
			result = append(result, req)
		}
	}
	return result, nil
}

func (r *withdrawalRepository) Create(ctx context.Context, req *withdrawal.Request) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, exists := r.store.withdrawals[req.ID]; exists {
		return shared.ErrAlreadyExists
	}
	r.store.withdrawals[req.ID] = *req
	return nil
}

func (r *withdrawalRepository) SaveWithLock(ctx context.Context, req *withdrawal.Request) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	existing, ok := r.store.withdrawals[req.ID]
	if !ok || existing.Version != req.Version-1 {
		return shared.NewDomainError("OPTIMISTIC_LOCK_ERROR",
			"The withdrawal record has been modified by another transaction")
	}
	req.UpdatedAt = time.Now()
	r.store.withdrawals[req.ID] = *req
	return nil
}

var _ withdrawal.Repository = (*withdrawalRepository)(nil)

type merchantRepository struct {
	store *Store
}

func (r *merchantRepository) FindByID(ctx context.Context, id uuid.UUID) (*merchant.Profile, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	profile, ok := r.store.merchants[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &profile, nil
}

func (r *merchantRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*merchant.Profile, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, profile := range r.store.merchants {
		if profile.UserID == userID {
			p := profile
			return &p, nil
		}
	}
	return nil, nil
}

func (r *merchantRepository) Create(ctx context.Context, profile *merchant.Profile) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, existing := range r.store.merchants {
		if existing.UserID == profile.UserID {
			return shared.ErrAlreadyExists
		}
	}
	r.store.merchants[profile.ID] = *profile
	return nil
}

func (r *merchantRepository) Save(ctx context.Context, profile *merchant.Profile) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	profile.UpdatedAt = time.Now()
	r.store.merchants[profile.ID] = *profile
	return nil
}

var _ merchant.Repository = (*merchantRepository)(nil)

type failureRepository struct {
	store *Store
}

func (r *failureRepository) Create(ctx context.Context, record *reconciliation.FailureRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.failures = append(r.store.failures, *record)
	return nil
}

func (r *failureRepository) FindRecent(ctx context.Context, filter shared.Filter) ([]reconciliation.FailureRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	result := make([]reconciliation.FailureRecord, len(r.store.failures))
	copy(result, r.store.failures)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

var _ reconciliation.Repository = (*failureRepository)(nil)
