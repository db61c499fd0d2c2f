// Package withdrawal implements the withdrawal request workflow. A request
// locks its amount on creation and the lock is resolved exactly once: a
// rejection unlocks it, a send debits it permanently.
package withdrawal

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/peertrade/backend/internal/application/ledger"
	"github.com/peertrade/backend/internal/domain/shared"
	"github.com/peertrade/backend/internal/domain/wallet"
	"github.com/peertrade/backend/internal/domain/withdrawal"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Service owns the withdrawal request lifecycle. Authorization of the
// processing actor happens upstream; the service only validates that the
// requested transition is legal.
type Service struct {
	ledger    *ledger.Service
	logger    *zap.Logger
	minAmount decimal.Decimal
}

// NewService creates a new withdrawal Service
func NewService(ledgerSvc *ledger.Service, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		ledger: ledgerSvc,
		logger: logger,
	}
}

// SetMinAmount sets the smallest accepted withdrawal. Zero disables the floor.
func (s *Service) SetMinAmount(min decimal.Decimal) {
	s.minAmount = min
}

// GetRequest returns a withdrawal request by ID
func (s *Service) GetRequest(ctx context.Context, requestID uuid.UUID) (*withdrawal.Request, error) {
	var result *withdrawal.Request
	err := s.ledger.Scope().Execute(ctx, func(repos ledger.TransactionalRepositories) error {
		req, err := repos.WithdrawalRepo().FindByID(ctx, requestID)
		if err != nil {
			return err
		}
		result = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListRequests returns a user's withdrawal requests, newest first
func (s *Service) ListRequests(ctx context.Context, userID uuid.UUID, filter shared.Filter) ([]withdrawal.Request, error) {
	var result []withdrawal.Request
	err := s.ledger.Scope().Execute(ctx, func(repos ledger.TransactionalRepositories) error {
		requests, err := repos.WithdrawalRepo().FindByUserID(ctx, userID, filter)
		if err != nil {
			return err
		}
		result = requests
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Create opens a pending withdrawal request and locks its amount on the
// user's wallet. Only one pending request may exist per (user, currency,
// address) tuple.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, currency, address string) (*withdrawal.Request, error) {
	if s.minAmount.IsPositive() && amount.LessThan(s.minAmount) {
		return nil, shared.NewDomainError("INVALID_AMOUNT",
			fmt.Sprintf("Withdrawal amount is below the minimum of %s", s.minAmount.String()))
	}

	req, err := withdrawal.NewRequest(userID, amount, currency, address)
	if err != nil {
		return nil, err
	}

	err = s.withRetry(ctx, "create_withdrawal", func(repos ledger.TransactionalRepositories) error {
		pending, err := repos.WithdrawalRepo().FindPendingByTuple(ctx, userID, req.Currency, req.Address)
		if err != nil {
			return err
		}
		if pending != nil {
			return shared.NewDomainError("DUPLICATE_WITHDRAWAL_REQUEST",
				"A pending withdrawal already exists for this address")
		}

		ref := wallet.NewReference("withdrawal:"+req.ID.String(), req.Currency)
		if _, err := s.ledger.LockFundsTx(ctx, repos, userID, amount,
			wallet.EntryTypeWithdrawal, ref); err != nil {
			return err
		}
		return repos.WithdrawalRepo().Create(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Withdrawal request created",
		zap.String("request_id", req.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("amount", amount.String()),
		zap.String("currency", req.Currency),
	)
	return req, nil
}

// Process drives a request to the target status. A request already in the
// target status is returned unchanged. Rejection unlocks the reserved
// amount; sending debits it from the locked balance permanently. Approval
// is a gate and moves no funds.
func (s *Service) Process(ctx context.Context, requestID uuid.UUID, target withdrawal.Status, actor uuid.UUID) (*withdrawal.Request, error) {
	if !target.IsValid() || target == withdrawal.StatusPending {
		return nil, shared.NewDomainError("INVALID_WITHDRAWAL_STATE",
			fmt.Sprintf("%s is not a processable target status", target))
	}

	var result *withdrawal.Request
	err := s.withRetry(ctx, "process_withdrawal", func(repos ledger.TransactionalRepositories) error {
		req, err := repos.WithdrawalRepo().FindByID(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status == target {
			result = req
			return nil
		}

		switch target {
		case withdrawal.StatusApproved:
			if err := req.Approve(); err != nil {
				return err
			}
		case withdrawal.StatusRejected:
			if err := req.Reject(); err != nil {
				return err
			}
			ref := wallet.NewReference("withdrawal:"+req.ID.String()+":reject", req.Currency)
			if _, err := s.ledger.UnlockFundsTx(ctx, repos, req.UserID, req.Amount,
				wallet.EntryTypeRefund, ref); err != nil {
				return err
			}
		case withdrawal.StatusSent:
			if err := req.MarkSent(); err != nil {
				return err
			}
			ref := wallet.NewReference("withdrawal:"+req.ID.String()+":sent", req.Currency)
			if _, err := s.ledger.DebitLockedTx(ctx, repos, req.UserID, req.Amount,
				wallet.EntryTypeWithdrawal, ref); err != nil {
				return err
			}
		}

		req.IncrementVersion()
		if err := repos.WithdrawalRepo().SaveWithLock(ctx, req); err != nil {
			return err
		}
		result = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Withdrawal request processed",
		zap.String("request_id", requestID.String()),
		zap.String("status", result.Status.String()),
		zap.String("actor", actor.String()),
	)
	return result, nil
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
