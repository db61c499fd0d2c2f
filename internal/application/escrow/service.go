// Package escrow implements the escrow order engine on top of the wallet
// ledger. Every order operation that moves funds composes ledger primitives
// inside one transaction scope, so the wallet, ledger entry, ad, and order
// records change together or not at all.
package escrow

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/peertrade/backend/internal/application/ledger"
	"github.com/peertrade/backend/internal/domain/escrow"
	"github.com/peertrade/backend/internal/domain/shared"
	"github.com/peertrade/backend/internal/domain/wallet"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Config controls escrow order behavior
type Config struct {
	// OrderExpiration is how long a CREATED order waits for payment
	OrderExpiration time.Duration
	// FeePercent is the platform fee taken from the buyer at release.
	// Zero disables fee collection.
	FeePercent decimal.Decimal
	// PlatformUserID receives collected fees
	PlatformUserID uuid.UUID
}

// DefaultConfig returns the default escrow configuration
func DefaultConfig() Config {
	return Config{
		OrderExpiration: 30 * time.Minute,
	}
}

// Service drives the escrow order state machine. Order and ad records use
// the same version-guarded saves as wallets; a lost race retries the whole
// transaction so every attempt works from freshly-read state.
type Service struct {
	ledger   *ledger.Service
	eventBus shared.EventPublisher
	logger   *zap.Logger
	cfg      Config
}

// NewService creates a new escrow Service
func NewService(ledgerSvc *ledger.Service, eventBus shared.EventPublisher, logger *zap.Logger, cfg Config) *Service {
	if cfg.OrderExpiration <= 0 {
		cfg.OrderExpiration = DefaultConfig().OrderExpiration
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		ledger:   ledgerSvc,
		eventBus: eventBus,
		logger:   logger,
		cfg:      cfg,
	}
}

// GetOrder returns an order by ID
func (s *Service) GetOrder(ctx context.Context, orderID uuid.UUID) (*escrow.Order, error) {
	var result *escrow.Order
	err := s.ledger.Scope().Execute(ctx, func(repos ledger.TransactionalRepositories) error {
		order, err := repos.OrderRepo().FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListOrders returns orders where the user is buyer or seller, newest first
func (s *Service) ListOrders(ctx context.Context, userID uuid.UUID, filter shared.Filter) ([]escrow.Order, error) {
	var result []escrow.Order
	err := s.ledger.Scope().Execute(ctx, func(repos ledger.TransactionalRepositories) error {
		orders, err := repos.OrderRepo().FindByParticipant(ctx, userID, filter)
		if err != nil {
			return err
		}
		result = orders
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CreateOrder opens an escrow order against an active ad. The seller's
// wallet lock already covers the ad's liquidity from ad creation, so order
// creation only earmarks the ad amount; no wallet balance moves here.
func (s *Service) CreateOrder(ctx context.Context, adID, buyerUserID uuid.UUID, amount decimal.Decimal) (*escrow.Order, error) {
	if buyerUserID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_USER_ID", "Buyer ID cannot be empty")
	}

	var result *escrow.Order
	err := s.withRetry(ctx, "create_order", func(repos ledger.TransactionalRepositories) error {
		ad, err := repos.AdRepo().FindByID(ctx, adID)
		if err != nil {
			return err
		}
		if err := ad.ValidateOrderAmount(amount); err != nil {
			return err
		}

		// The seller constraint is checked before any state changes so a
		// rejected order never touches ad liquidity
		active, err := repos.OrderRepo().CountActiveBySeller(ctx, ad.CreatedByUserID)
		if err != nil {
			return err
		}
		if active > 0 {
			return shared.NewDomainError("SELLER_ALREADY_HAS_ACTIVE_ORDER",
				"Seller already has an active escrow order")
		}

		order, err := escrow.NewOrder(ad, buyerUserID, amount, time.Now().Add(s.cfg.OrderExpiration))
		if err != nil {
			return err
		}
		if err := ad.ReserveLiquidity(amount); err != nil {
			return err
		}

		ad.IncrementVersion()
		if err := repos.AdRepo().SaveWithLock(ctx, ad); err != nil {
			return err
		}
		if err := repos.OrderRepo().Create(ctx, order); err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Escrow order created",
		zap.String("order_id", result.ID.String()),
		zap.String("reference", result.Reference),
		zap.String("amount", result.EscrowAmount.String()),
	)
	s.publishEvents(ctx, result)
	return result, nil
}

// MarkPaid records the buyer's payment confirmation. An order past its
// expiry deadline is expired instead and the call fails with ORDER_EXPIRED.
func (s *Service) MarkPaid(ctx context.Context, orderID, actor uuid.UUID) (*escrow.Order, error) {
	var expired bool
	var result *escrow.Order
	err := s.withRetry(ctx, "mark_paid", func(repos ledger.TransactionalRepositories) error {
		expired = false
		order, err := repos.OrderRepo().FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status == escrow.OrderStatusCreated && order.IsExpired(time.Now()) {
			// Expiry is applied outside this transaction so the rejection
			// does not roll it back
			expired = true
			return nil
		}
		if err := order.MarkPaid(actor); err != nil {
			return err
		}
		order.IncrementVersion()
		if err := repos.OrderRepo().SaveWithLock(ctx, order); err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	if expired {
		if _, cancelErr := s.Cancel(ctx, orderID, uuid.Nil, escrow.OrderStatusExpired); cancelErr != nil &&
			!shared.IsDomainError(cancelErr, "INVALID_ORDER_STATUS") {
			s.logger.Warn("Failed to expire order on payment attempt",
				zap.String("order_id", orderID.String()),
				zap.Error(cancelErr),
			)
		}
		return nil, shared.NewDomainError("ORDER_EXPIRED", "Order expired before payment was confirmed")
	}

	s.publishEvents(ctx, result)
	return result, nil
}

// Release settles the order: the escrowed amount moves from the seller's
// locked balance to the buyer's available balance, the configured platform
// fee is collected from the buyer, and the ad's backing lock shrinks by the
// settled amount. All of it commits in one transaction.
func (s *Service) Release(ctx context.Context, orderID, actor uuid.UUID) (*escrow.Order, error) {
	var result *escrow.Order
	err := s.withRetry(ctx, "release_order", func(repos ledger.TransactionalRepositories) error {
		order, err := repos.OrderRepo().FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if err := order.Release(actor); err != nil {
			return err
		}

		ref := wallet.NewReference("escrow:"+order.Reference, order.Asset)
		if _, err := s.ledger.TransferLockedToAvailableTx(ctx, repos,
			order.SellerUserID, order.BuyerUserID, order.EscrowAmount, ref); err != nil {
			return err
		}

		if err := s.collectFeeTx(ctx, repos, order, ref); err != nil {
			return err
		}

		ad, err := repos.AdRepo().FindByID(ctx, order.AdID)
		if err != nil {
			return err
		}
		if err := ad.ConsumeLock(order.EscrowAmount); err != nil {
			return err
		}
		ad.IncrementVersion()
		if err := repos.AdRepo().SaveWithLock(ctx, ad); err != nil {
			return err
		}

		order.IncrementVersion()
		if err := repos.OrderRepo().SaveWithLock(ctx, order); err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Escrow order released",
		zap.String("order_id", result.ID.String()),
		zap.String("reference", result.Reference),
	)
	s.publishEvents(ctx, result)
	return result, nil
}

// Cancel moves an active order to CANCELLED or EXPIRED and returns the
// earmarked amount to the ad's liquidity. The sweep passes uuid.Nil as the
// actor; user-initiated cancellation requires a participant.
func (s *Service) Cancel(ctx context.Context, orderID, actor uuid.UUID, target escrow.OrderStatus) (*escrow.Order, error) {
	var result *escrow.Order
	err := s.withRetry(ctx, "cancel_order", func(repos ledger.TransactionalRepositories) error {
		order, err := repos.OrderRepo().FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if actor != uuid.Nil && !order.IsParticipant(actor) {
			return shared.NewDomainError("FORBIDDEN", "Only participants may cancel the order")
		}
		if err := order.Cancel(target); err != nil {
			return err
		}

		ad, err := repos.AdRepo().FindByID(ctx, order.AdID)
		if err != nil {
			return err
		}
		if ad.IsActive() {
			// The seller's wallet lock keeps backing the ad; the earmarked
			// amount simply becomes sellable again
			if err := ad.RestoreLiquidity(order.EscrowAmount); err != nil {
				return err
			}
		} else {
			// The ad was taken off the market while the order was in
			// flight, so the backing lock unwinds to the seller's wallet
			ref := wallet.NewReference("escrow:"+order.Reference, order.Asset).WithSuffix(":refund")
			if _, err := s.ledger.UnlockFundsTx(ctx, repos,
				order.SellerUserID, order.EscrowAmount, wallet.EntryTypeRefund, ref); err != nil {
				return err
			}
			if err := ad.ConsumeLock(order.EscrowAmount); err != nil {
				return err
			}
		}

		ad.IncrementVersion()
		if err := repos.AdRepo().SaveWithLock(ctx, ad); err != nil {
			return err
		}
		order.IncrementVersion()
		if err := repos.OrderRepo().SaveWithLock(ctx, order); err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Escrow order closed",
		zap.String("order_id", result.ID.String()),
		zap.String("status", result.Status.String()),
	)
	s.publishEvents(ctx, result)
	return result, nil
}

// Dispute freezes an active order for manual resolution. No funds move;
// administrative resolution reuses Release or Cancel.
func (s *Service) Dispute(ctx context.Context, orderID, actor uuid.UUID) (*escrow.Order, error) {
	var result *escrow.Order
	err := s.withRetry(ctx, "dispute_order", func(repos ledger.TransactionalRepositories) error {
		order, err := repos.OrderRepo().FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if err := order.Dispute(actor); err != nil {
			return err
		}
		order.IncrementVersion()
		if err := repos.OrderRepo().SaveWithLock(ctx, order); err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishEvents(ctx, result)
	return result, nil
}

// PostMessage appends a participant message to the order's conversation log
func (s *Service) PostMessage(ctx context.Context, orderID, sender uuid.UUID, body string) (*escrow.Order, error) {
	var result *escrow.Order
	err := s.withRetry(ctx, "post_message", func(repos ledger.TransactionalRepositories) error {
		order, err := repos.OrderRepo().FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if err := order.AppendMessage(sender, body); err != nil {
			return err
		}
		order.IncrementVersion()
		if err := repos.OrderRepo().SaveWithLock(ctx, order); err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) collectFeeTx(ctx context.Context, repos ledger.TransactionalRepositories, order *escrow.Order, ref wallet.Reference) error {
	if !s.cfg.FeePercent.IsPositive() || s.cfg.PlatformUserID == uuid.Nil {
		return nil
	}
	fee := order.EscrowAmount.Mul(s.cfg.FeePercent).Round(8)
	if !fee.IsPositive() {
		return nil
	}

	feeRef := ref.WithSuffix(":fee")
	if _, err := s.ledger.DebitAvailableTx(ctx, repos,
		order.BuyerUserID, fee, wallet.EntryTypeFee, feeRef); err != nil {
		return err
	}
	if _, err := s.ledger.CreditAvailableTx(ctx, repos,
		s.cfg.PlatformUserID, fee, wallet.EntryTypeFee, feeRef); err != nil {
		return err
	}
	return nil
}

// withRetry runs fn in a transaction, retrying on version conflicts so that
// every attempt re-reads the order and ad rows. Exhausting the bound fails
// with ORDER_STATE_RACE; the caller may retry the whole operation once.
func (s *Service) withRetry(ctx context.Context, operation string, fn func(repos ledger.TransactionalRepositories) error) error {
	cfg := s.ledger.Config()
	for attempt := 0; attempt < cfg.MaxRetries; attempt++ {
		err := s.ledger.Scope().Execute(ctx, fn)
		if err == nil {
			return nil
		}
		if !shared.IsDomainError(err, "OPTIMISTIC_LOCK_ERROR") {
			return err
		}

		s.logger.Debug("Order version conflict, retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt+1),
		)
		backoff := cfg.RetryBackoff * (1 << attempt)
		delay := backoff + time.Duration(rand.Int63n(int64(backoff)+1))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return shared.NewDomainError("ORDER_STATE_RACE",
		fmt.Sprintf("Order mutation lost %d consecutive races, try again", cfg.MaxRetries))
}

func (s *Service) publishEvents(ctx context.Context, order *escrow.Order) {
	if s.eventBus == nil {
		return
	}
	events := order.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	if err := s.eventBus.Publish(ctx, events...); err != nil {
		s.logger.Warn("Failed to publish order events",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
	}
	order.ClearDomainEvents()
}
