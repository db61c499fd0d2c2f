package escrow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/peertrade/backend/internal/application/ledger"
	"github.com/peertrade/backend/internal/domain/escrow"
	"github.com/peertrade/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Default batch size per sweep pass
const defaultSweepBatchSize = 100

// ExpirationService drives time-based order expiry. It reuses the regular
// cancellation path, so expiry and user-initiated cancellation can never
// diverge in how they return funds.
type ExpirationService struct {
	service   *Service
	logger    *zap.Logger
	batchSize int
}

// NewExpirationService creates a new ExpirationService
func NewExpirationService(service *Service, logger *zap.Logger) *ExpirationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExpirationService{
		service:   service,
		logger:    logger,
		batchSize: defaultSweepBatchSize,
	}
}

// ExpiredOrderStats contains statistics about one sweep pass
type ExpiredOrderStats struct {
	TotalExpired   int       `json:"total_expired"`
	SuccessExpired int       `json:"success_expired"`
	FailedExpiries int       `json:"failed_expiries"`
	ProcessedAt    time.Time `json:"processed_at"`
}

// SweepExpired finds orders in CREATED status past their expiry deadline
// and drives each through the cancellation path with the EXPIRED target
func (e *ExpirationService) SweepExpired(ctx context.Context) (*ExpiredOrderStats, error) {
	stats := &ExpiredOrderStats{
		ProcessedAt: time.Now(),
	}

	var candidates []escrow.Order
	err := e.service.ledger.Scope().Execute(ctx, func(repos ledger.TransactionalRepositories) error {
		found, err := repos.OrderRepo().FindExpired(ctx, time.Now(), e.batchSize)
		if err != nil {
			return err
		}
		candidates = found
		return nil
	})
	if err != nil {
		e.logger.Error("Failed to find expired orders", zap.Error(err))
		return nil, err
	}

	stats.TotalExpired = len(candidates)
	if stats.TotalExpired == 0 {
		e.logger.Debug("No expired escrow orders found")
		return stats, nil
	}

	e.logger.Info("Found expired escrow orders",
		zap.Int("count", stats.TotalExpired),
	)

	for _, order := range candidates {
		if _, err := e.service.Cancel(ctx, order.ID, uuid.Nil, escrow.OrderStatusExpired); err != nil {
			// Another transition won the race between the scan and the
			// cancellation; the order no longer needs expiring
			if shared.IsDomainError(err, "INVALID_ORDER_STATUS") {
				continue
			}
			e.logger.Error("Failed to expire order",
				zap.String("order_id", order.ID.String()),
				zap.String("reference", order.Reference),
				zap.Error(err),
			)
			stats.FailedExpiries++
			continue
		}
		stats.SuccessExpired++
	}

	e.logger.Info("Completed expiry sweep",
		zap.Int("total", stats.TotalExpired),
		zap.Int("expired", stats.SuccessExpired),
		zap.Int("failed", stats.FailedExpiries),
	)

	return stats, nil
}

// GetExpiredOrderCount returns the count of orders currently past expiry
// but not yet swept
func (e *ExpirationService) GetExpiredOrderCount(ctx context.Context) (int, error) {
	var count int
	err := e.service.ledger.Scope().Execute(ctx, func(repos ledger.TransactionalRepositories) error {
		found, err := repos.OrderRepo().FindExpired(ctx, time.Now(), 0)
		if err != nil {
			return err
		}
		count = len(found)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
