// Package merchant implements merchant activation and liquidity ad funding.
// Both operations reserve wallet funds: activation locks a standing deposit,
// ad creation locks the ad's full amount so order creation never needs to
// touch the seller's wallet again.
package merchant

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/peertrade/backend/internal/application/ledger"
	"github.com/peertrade/backend/internal/domain/escrow"
	"github.com/peertrade/backend/internal/domain/merchant"
	"github.com/peertrade/backend/internal/domain/shared"
	"github.com/peertrade/backend/internal/domain/wallet"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateAdInput carries the payload for publishing a liquidity ad
type CreateAdInput struct {
	Asset    string
	Price    decimal.Decimal
	Amount   decimal.Decimal
	MinLimit decimal.Decimal
	MaxLimit decimal.Decimal
}

// Service owns merchant profiles and the ads they publish
type Service struct {
	ledger *ledger.Service
	logger *zap.Logger
}

// NewService creates a new merchant Service
func NewService(ledgerSvc *ledger.Service, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		ledger: ledgerSvc,
		logger: logger,
	}
}

// GetProfile returns the merchant profile for a user, or nil when the user
// never activated
func (s *Service) GetProfile(ctx context.Context, userID uuid.UUID) (*merchant.Profile, error) {
	var result *merchant.Profile
	err := s.ledger.Scope().Execute(ctx, func(repos ledger.TransactionalRepositories) error {
		profile, err := repos.MerchantRepo().FindByUserID(ctx, userID)
		if err != nil {
			return err
		}
		result = profile
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListAds returns active ads matching the filter
func (s *Service) ListAds(ctx context.Context, filter shared.Filter) ([]escrow.Ad, error) {
	var result []escrow.Ad
	err := s.ledger.Scope().Execute(ctx, func(repos ledger.TransactionalRepositories) error {
		ads, err := repos.AdRepo().FindActive(ctx, filter)
		if err != nil {
			return err
		}
		result = ads
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ActivateMerchant locks a standing deposit on the actor's wallet and
// creates (or reactivates) the merchant profile. Activating twice fails
// with MERCHANT_ALREADY_ACTIVE and locks nothing.
func (s *Service) ActivateMerchant(ctx context.Context, actor uuid.UUID, depositAmount decimal.Decimal) (*merchant.Profile, error) {
	if actor == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_USER_ID", "User ID cannot be empty")
	}
	if depositAmount.IsNegative() || depositAmount.IsZero() {
		return nil, shared.NewDomainError("MERCHANT_DEPOSIT_REQUIRED",
			"Merchant activation requires a positive deposit")
	}

	var result *merchant.Profile
	err := s.withRetry(ctx, "activate_merchant", func(repos ledger.TransactionalRepositories) error {
		existing, err := repos.MerchantRepo().FindByUserID(ctx, actor)
		if err != nil {
			return err
		}
		if existing != nil && existing.IsActive() {
			return shared.NewDomainError("MERCHANT_ALREADY_ACTIVE", "Merchant profile is already active")
		}

		ref := wallet.NewReference("merchant:activate:"+actor.String(), "")
		if _, err := s.ledger.LockFundsTx(ctx, repos, actor, depositAmount,
			wallet.EntryTypeDeposit, ref); err != nil {
			return err
		}

		if existing != nil {
			if err := existing.Reactivate(depositAmount); err != nil {
				return err
			}
			if err := repos.MerchantRepo().Save(ctx, existing); err != nil {
				return err
			}
			result = existing
			return nil
		}

		profile, err := merchant.NewProfile(actor, depositAmount)
		if err != nil {
			return err
		}
		if err := repos.MerchantRepo().Create(ctx, profile); err != nil {
			return err
		}
		result = profile
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Merchant activated",
		zap.String("user_id", actor.String()),
		zap.String("deposit", depositAmount.String()),
	)
	return result, nil
}

// DeactivateMerchant retires the profile and unlocks the standing deposit
func (s *Service) DeactivateMerchant(ctx context.Context, actor uuid.UUID) (*merchant.Profile, error) {
	if actor == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_USER_ID", "User ID cannot be empty")
	}

	var result *merchant.Profile
	err := s.withRetry(ctx, "deactivate_merchant", func(repos ledger.TransactionalRepositories) error {
		profile, err := repos.MerchantRepo().FindByUserID(ctx, actor)
		if err != nil {
			return err
		}
		if profile == nil || !profile.IsActive() {
			return shared.NewDomainError("MERCHANT_REQUIRED", "No active merchant profile to deactivate")
		}
		if err := profile.Deactivate(); err != nil {
			return err
		}

		ref := wallet.NewReference("merchant:deactivate:"+actor.String(), "")
		if _, err := s.ledger.UnlockFundsTx(ctx, repos, actor, profile.DepositAmount,
			wallet.EntryTypeRefund, ref); err != nil {
			return err
		}
		if err := repos.MerchantRepo().Save(ctx, profile); err != nil {
			return err
		}
		result = profile
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Merchant deactivated", zap.String("user_id", actor.String()))
	return result, nil
}

// CreateEscrowAd publishes a liquidity ad backed by the actor's wallet.
// The full ad amount moves from available to locked in the same transaction
// that inserts the ad, so the ad's liquidity is a reservation and never a
// second independent balance.
func (s *Service) CreateEscrowAd(ctx context.Context, actor uuid.UUID, input CreateAdInput) (*escrow.Ad, error) {
	if actor == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_USER_ID", "User ID cannot be empty")
	}

	var result *escrow.Ad
	err := s.withRetry(ctx, "create_escrow_ad", func(repos ledger.TransactionalRepositories) error {
		profile, err := repos.MerchantRepo().FindByUserID(ctx, actor)
		if err != nil {
			return err
		}
		if profile == nil || !profile.IsActive() {
			return shared.NewDomainError("MERCHANT_REQUIRED",
				"Publishing ads requires an active merchant deposit")
		}

		ad, err := escrow.NewAd(actor, input.Asset, input.Price, input.Amount,
			input.MinLimit, input.MaxLimit)
		if err != nil {
			return err
		}

		ref := wallet.NewReference("ad:fund:"+ad.ID.String(), ad.Asset)
		if _, err := s.ledger.LockFundsTx(ctx, repos, actor, input.Amount,
			wallet.EntryTypeTradeSell, ref); err != nil {
			return err
		}
		if err := repos.AdRepo().Create(ctx, ad); err != nil {
			return err
		}
		result = ad
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Escrow ad published",
		zap.String("ad_id", result.ID.String()),
		zap.String("owner", actor.String()),
		zap.String("amount", result.AvailableAmount.String()),
	)
	return result, nil
}

// DisableAd takes an ad off the market and unwinds the liquidity that no
// order has claimed. Liquidity earmarked by in-flight orders stays locked
// until those orders settle or cancel.
func (s *Service) DisableAd(ctx context.Context, actor, adID uuid.UUID) (*escrow.Ad, error) {
	var result *escrow.Ad
	err := s.withRetry(ctx, "disable_ad", func(repos ledger.TransactionalRepositories) error {
		ad, err := repos.AdRepo().FindByID(ctx, adID)
		if err != nil {
			return err
		}
		if !ad.IsOwnedBy(actor) {
			return shared.NewDomainError("FORBIDDEN", "Only the ad owner may disable the ad")
		}
		if !ad.IsActive() {
			return shared.NewDomainError("AD_NOT_AVAILABLE", "Ad is already disabled")
		}

		unclaimed := ad.AvailableAmount
		if unclaimed.IsPositive() {
			ref := wallet.NewReference("ad:disable:"+ad.ID.String(), ad.Asset)
			if _, err := s.ledger.UnlockFundsTx(ctx, repos, ad.CreatedByUserID, unclaimed,
				wallet.EntryTypeRefund, ref); err != nil {
				return err
			}
			if err := ad.ConsumeLock(unclaimed); err != nil {
				return err
			}
			ad.AvailableAmount = decimal.Zero
		}
		ad.Disable()

		ad.IncrementVersion()
		if err := repos.AdRepo().SaveWithLock(ctx, ad); err != nil {
			return err
		}
		result = ad
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Escrow ad disabled", zap.String("ad_id", adID.String()))
	return result, nil
}

// CleanupStats summarizes one demo-ad cleanup run
type CleanupStats struct {
	Scanned  int `json:"scanned"`
	Cleaned  int `json:"cleaned"`
	Failed   int `json:"failed"`
	Unlocked int `json:"unlocked"`
}

// CleanupDemoAds disables active ads whose owner has no active merchant
// deposit backing them (demo or legacy data) and returns any residual
// locked funds to the owner. The unlock is clamped to what the owner's
// wallet actually holds locked, so a drifted demo wallet can never be
// driven negative.
func (s *Service) CleanupDemoAds(ctx context.Context) (*CleanupStats, error) {
	stats := &CleanupStats{}

	var candidates []escrow.Ad
	err := s.ledger.Scope().Execute(ctx, func(repos ledger.TransactionalRepositories) error {
		ads, err := repos.AdRepo().FindActive(ctx, shared.DefaultFilter())
		if err != nil {
			return err
		}
		for _, ad := range ads {
			profile, err := repos.MerchantRepo().FindByUserID(ctx, ad.CreatedByUserID)
			if err != nil {
				return err
			}
			if profile == nil || !profile.IsActive() {
				candidates = append(candidates, ad)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	stats.Scanned = len(candidates)
	for _, candidate := range candidates {
		if err := s.cleanupAd(ctx, candidate.ID, stats); err != nil {
			s.logger.Warn("Failed to clean up demo ad",
				zap.String("ad_id", candidate.ID.String()),
				zap.Error(err),
			)
			stats.Failed++
			continue
		}
		stats.Cleaned++
	}

	if stats.Scanned > 0 {
		s.logger.Info("Demo ad cleanup completed",
			zap.Int("scanned", stats.Scanned),
			zap.Int("cleaned", stats.Cleaned),
			zap.Int("failed", stats.Failed),
		)
	}
	return stats, nil
}

func (s *Service) cleanupAd(ctx context.Context, adID uuid.UUID, stats *CleanupStats) error {
	var unlocked bool
	err := s.withRetry(ctx, "cleanup_demo_ad", func(repos ledger.TransactionalRepositories) error {
		unlocked = false
		ad, err := repos.AdRepo().FindByID(ctx, adID)
		if err != nil {
			return err
		}
		if !ad.IsActive() {
			return nil
		}

		residual := ad.LockedAmount
		if residual.IsPositive() {
			// Demo data may not have a real wallet lock behind the ad
			w, err := repos.WalletRepo().FindByUserID(ctx, ad.CreatedByUserID)
			if err != nil {
				return err
			}
			if w != nil && residual.GreaterThan(w.LockedBalance) {
				residual = w.LockedBalance
			}
			if residual.IsPositive() {
				ref := wallet.NewReference("ad:cleanup:"+ad.ID.String(), ad.Asset)
				if _, err := s.ledger.UnlockFundsTx(ctx, repos, ad.CreatedByUserID, residual,
					wallet.EntryTypeRefund, ref); err != nil {
					return err
				}
				unlocked = true
			}
		}

		ad.AvailableAmount = decimal.Zero
		ad.LockedAmount = decimal.Zero
		ad.Disable()

		ad.IncrementVersion()
		return repos.AdRepo().SaveWithLock(ctx, ad)
	})
	if err != nil {
		return err
	}
	if unlocked {
		stats.Unlocked++
	}
	return nil
}

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

		s.logger.Debug("Version conflict, retrying",
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
	return shared.NewDomainError("WALLET_CONFLICT",
		fmt.Sprintf("Operation lost %d consecutive races, try again later", cfg.MaxRetries))
}
