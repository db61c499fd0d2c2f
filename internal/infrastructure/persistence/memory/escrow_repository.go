package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/peertrade/backend/internal/domain/escrow"
	"github.com/peertrade/backend/internal/domain/shared"
)

type orderRepository struct {
	store *Store
}

func (r *orderRepository) FindByID(ctx context.Context, id uuid.UUID) (*escrow.Order, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	order, ok := r.store.orders[id]
	if !ok {
		return nil, shared.NewDomainError("ORDER_NOT_FOUND", "Escrow order not found")
	}
	return &order, nil
}

func (r *orderRepository) FindByReference(ctx context.Context, reference string) (*escrow.Order, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, order := range r.store.orders {
		if order.Reference == reference {
			o := order
			return &o, nil
		}
	}
	return nil, shared.NewDomainError("ORDER_NOT_FOUND", "Escrow order not found")
}

func (r *orderRepository) FindByParticipant(ctx context.Context, userID uuid.UUID, filter shared.Filter) ([]escrow.Order, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var result []escrow.Order
	for _, order := range r.store.orders {
		if order.BuyerUserID == userID || order.SellerUserID == userID {
			result = append(result, order)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (r *orderRepository) CountActiveBySeller(ctx context.Context, sellerUserID uuid.UUID) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var count int64
	for _, order := range r.store.orders {
		if order.SellerUserID == sellerUserID && order.Status.IsActive() {
			count++
		}
	}
	return count, nil
}

func (r *orderRepository) FindExpired(ctx context.Context, now time.Time, limit int) ([]escrow.Order, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var result []escrow.Order
	for _, order := range r.store.orders {
		if order.Status == escrow.OrderStatusCreated && now.After(order.ExpiresAt) {
			result = append(result, order)
			if limit > 0 && len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

func (r *orderRepository) Create(ctx context.Context, order *escrow.Order) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, exists := r.store.orders[order.ID]; exists {
		return shared.ErrAlreadyExists
	}
	r.store.orders[order.ID] = *order
	return nil
}

func (r *orderRepository) SaveWithLock(ctx context.Context, order *escrow.Order) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	existing, ok := r.store.orders[order.ID]
	if !ok || existing.Version != order.Version-1 {
		return shared.NewDomainError("OPTIMISTIC_LOCK_ERROR",
			"The order record has been modified by another transaction")
	}
	order.UpdatedAt = time.Now()
	r.store.orders[order.ID] = *order
	return nil
}

var _ escrow.OrderRepository = (*orderRepository)(nil)

type adRepository struct {
	store *Store
}

func (r *adRepository) FindByID(ctx context.Context, id uuid.UUID) (*escrow.Ad, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	ad, ok := r.store.ads[id]
	if !ok {
		return nil, shared.NewDomainError("AD_NOT_AVAILABLE", "Ad not found")
	}
	return &ad, nil
}

func (r *adRepository) FindByCreatedBy(ctx context.Context, userID uuid.UUID) ([]escrow.Ad, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var result []escrow.Ad
	for _, ad := range r.store.ads {
		if ad.CreatedByUserID == userID {
			result = append(result, ad)
		}
	}
	return result, nil
}

func (r *adRepository) FindActive(ctx context.Context, filter shared.Filter) ([]escrow.Ad, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var result []escrow.Ad
	for _, ad := range r.store.ads {
		if ad.IsActive() {
			result = append(result, ad)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (r *adRepository) Create(ctx context.Context, ad *escrow.Ad) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, exists := r.store.ads[ad.ID]; exists {
		return shared.ErrAlreadyExists
	}
	r.store.ads[ad.ID] = *ad
	return nil
}

func (r *adRepository) Save(ctx context.Context, ad *escrow.Ad) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	ad.UpdatedAt = time.Now()
	r.store.ads[ad.ID] = *ad
	return nil
}

func (r *adRepository) SaveWithLock(ctx context.Context, ad *escrow.Ad) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	existing, ok := r.store.ads[ad.ID]
	if !ok || existing.Version != ad.Version-1 {
		return shared.NewDomainError("OPTIMISTIC_LOCK_ERROR",
			"The ad record has been modified by another transaction")
	}
	ad.UpdatedAt = time.Now()
	r.store.ads[ad.ID] = *ad
	return nil
}

var _ escrow.AdRepository = (*adRepository)(nil)
