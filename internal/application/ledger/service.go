package ledger

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/peertrade/backend/internal/domain/reconciliation"
	"github.com/peertrade/backend/internal/domain/shared"
	"github.com/peertrade/backend/internal/domain/wallet"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Config controls the ledger engine's retry and wallet defaults
type Config struct {
	// MaxRetries bounds the optimistic-concurrency retry loop per operation
	MaxRetries int
	// RetryBackoff is the base delay between retries; each retry waits the
	// base plus a random jitter of up to the same amount
	RetryBackoff time.Duration
	// DefaultInitialBalance seeds wallets created lazily on first reference
	DefaultInitialBalance decimal.Decimal
	// DefaultCurrency is applied to references that carry no currency
	DefaultCurrency string
}

// DefaultConfig returns the default engine configuration
func DefaultConfig() Config {
	return Config{
		MaxRetries:            5,
		RetryBackoff:          20 * time.Millisecond,
		DefaultInitialBalance: decimal.Zero,
		DefaultCurrency:       "USDT",
	}
}

// Service owns all wallet balance mutation. Every change is applied through
// an optimistic-concurrency loop and produces exactly one immutable ledger
// entry inside the same transaction as the wallet update.
type Service struct {
	scope     TransactionScope
	sink      reconciliation.Sink
	observers observerList
	logger    *zap.Logger
	cfg       Config
}

// NewService creates a new ledger Service
func NewService(scope TransactionScope, sink reconciliation.Sink, logger *zap.Logger, cfg Config) *Service {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultConfig().MaxRetries
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultConfig().RetryBackoff
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = DefaultConfig().DefaultCurrency
	}
	if sink == nil {
		sink = reconciliation.NoOpSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		scope:  scope,
		sink:   sink,
		logger: logger,
		cfg:    cfg,
	}
}

// RegisterObserver appends an observer to the ordered notification list
func (s *Service) RegisterObserver(o Observer) {
	s.observers = append(s.observers, o)
}

// Scope exposes the transaction scope for engines composed on top of the
// ledger (escrow, merchant, withdrawal)
func (s *Service) Scope() TransactionScope {
	return s.scope
}

// Config returns the engine configuration
func (s *Service) Config() Config {
	return s.cfg
}

// EnsureWallet idempotently creates a wallet for the user, seeding the
// available balance from the configured default. Running it on an existing
// wallet only refreshes the username and never resets balances.
func (s *Service) EnsureWallet(ctx context.Context, userID uuid.UUID, username string) (*wallet.Wallet, error) {
	return s.EnsureWalletWithBalance(ctx, userID, username, s.cfg.DefaultInitialBalance)
}

// EnsureWalletWithBalance is EnsureWallet with an explicit seed balance
func (s *Service) EnsureWalletWithBalance(ctx context.Context, userID uuid.UUID, username string, initialBalance decimal.Decimal) (*wallet.Wallet, error) {
	if userID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_USER_ID", "User ID cannot be empty")
	}

	var result *wallet.Wallet
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		w, err := s.ensureWalletTx(ctx, repos, userID, username, initialBalance)
		if err != nil {
			return err
		}
		result = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetWallet returns the wallet snapshot for a user
func (s *Service) GetWallet(ctx context.Context, userID uuid.UUID) (*wallet.Wallet, error) {
	if userID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_USER_ID", "User ID cannot be empty")
	}
	var result *wallet.Wallet
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		w, err := repos.WalletRepo().FindByUserID(ctx, userID)
		if err != nil {
			return err
		}
		if w == nil {
			return shared.NewDomainError("WALLET_NOT_FOUND", "Wallet not found")
		}
		result = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetHistory returns a user's ledger entries, newest first
func (s *Service) GetHistory(ctx context.Context, userID uuid.UUID, filter shared.Filter) ([]wallet.LedgerEntry, error) {
	var entries []wallet.LedgerEntry
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		found, err := repos.EntryRepo().FindByUserID(ctx, userID, filter)
		if err != nil {
			return err
		}
		entries = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// CreditAvailable adds amount to the user's available balance
func (s *Service) CreditAvailable(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, entryType wallet.EntryType, ref wallet.Reference) (*wallet.Wallet, error) {
	return s.mutateWallet(ctx, mutation{
		operation: "credit_available",
		userID:    userID,
		amount:    amount,
		entryType: entryType,
		ref:       ref,
		apply: func(w *wallet.Wallet) error {
			return w.CreditAvailable(amount)
		},
	})
}

// DebitAvailable subtracts amount from the user's available balance
func (s *Service) DebitAvailable(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, entryType wallet.EntryType, ref wallet.Reference) (*wallet.Wallet, error) {
	return s.mutateWallet(ctx, mutation{
		operation: "debit_available",
		userID:    userID,
		amount:    amount,
		entryType: entryType,
		ref:       ref,
		apply: func(w *wallet.Wallet) error {
			return w.DebitAvailable(amount)
		},
	})
}

// LockFunds moves amount from the user's available balance to locked
func (s *Service) LockFunds(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, entryType wallet.EntryType, ref wallet.Reference) (*wallet.Wallet, error) {
	return s.mutateWallet(ctx, mutation{
		operation: "lock_funds",
		userID:    userID,
		amount:    amount,
		entryType: entryType,
		ref:       ref,
		apply: func(w *wallet.Wallet) error {
			return w.LockFunds(amount)
		},
	})
}

// UnlockFunds moves amount from the user's locked balance back to available
func (s *Service) UnlockFunds(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, entryType wallet.EntryType, ref wallet.Reference) (*wallet.Wallet, error) {
	return s.mutateWallet(ctx, mutation{
		operation: "unlock_funds",
		userID:    userID,
		amount:    amount,
		entryType: entryType,
		ref:       ref,
		apply: func(w *wallet.Wallet) error {
			return w.UnlockFunds(amount)
		},
	})
}

// TransferResult captures both sides of a settled transfer
type TransferResult struct {
	From *wallet.Wallet
	To   *wallet.Wallet
}

// TransferLockedToAvailable atomically moves amount from the sender's locked
// balance to the recipient's available balance. Both ledger entries share
// the same reference ID so they can be correlated. This is the settlement
// primitive for escrow release.
func (s *Service) TransferLockedToAvailable(ctx context.Context, fromUserID, toUserID uuid.UUID, amount decimal.Decimal, ref wallet.Reference) (*TransferResult, error) {
	op := OperationView{Operation: "transfer_locked_to_available", UserID: fromUserID, Amount: amount, ReferenceID: ref.ID}
	s.observers.notifyBefore(ctx, op)

	result, err := s.runTransfer(ctx, fromUserID, toUserID, amount, ref)
	if err != nil {
		s.observers.notifyError(ctx, op, err)
		s.recordFailure(ctx, "transfer_locked_to_available", fromUserID, amount, ref.ID, err)
		return nil, err
	}

	s.observers.notifyAfter(ctx, op)
	return result, nil
}

// AdminAdjustBalance is a privileged credit or debit of the available
// balance. The sign of the amount determines the direction.
func (s *Service) AdminAdjustBalance(ctx context.Context, userID uuid.UUID, signedAmount decimal.Decimal, reason string, ref wallet.Reference) (*wallet.Wallet, error) {
	if signedAmount.IsZero() {
		err := shared.NewDomainError("INVALID_AMOUNT", "Adjustment amount cannot be zero")
		s.recordFailure(ctx, "admin_adjust_balance", userID, signedAmount, ref.ID, err)
		return nil, err
	}

	magnitude := signedAmount.Abs()
	apply := func(w *wallet.Wallet) error {
		if signedAmount.IsPositive() {
			return w.CreditAvailable(magnitude)
		}
		return w.DebitAvailable(magnitude)
	}

	if reason != "" {
		ref = ref.WithMetadata("reason", reason)
	}

	return s.mutateWallet(ctx, mutation{
		operation: "admin_adjust_balance",
		userID:    userID,
		amount:    magnitude,
		entryType: wallet.EntryTypeAdminAdjustment,
		ref:       ref,
		apply:     apply,
	})
}

// mutation describes one single-wallet balance change
type mutation struct {
	operation string
	userID    uuid.UUID
	amount    decimal.Decimal
	entryType wallet.EntryType
	ref       wallet.Reference
	apply     func(w *wallet.Wallet) error
}

func (s *Service) mutateWallet(ctx context.Context, m mutation) (*wallet.Wallet, error) {
	op := OperationView{Operation: m.operation, UserID: m.userID, Amount: m.amount, ReferenceID: m.ref.ID}
	s.observers.notifyBefore(ctx, op)

	result, err := s.runMutation(ctx, m)
	if err != nil {
		s.observers.notifyError(ctx, op, err)
		s.recordFailure(ctx, m.operation, m.userID, m.amount, m.ref.ID, err)
		return nil, err
	}

	s.observers.notifyAfter(ctx, op)
	return result, nil
}

// runMutation applies one single-wallet change under the optimistic
// concurrency loop: read, mutate, conditionally write, append the ledger
// entry, and retry from the top when another writer won the race.
func (s *Service) runMutation(ctx context.Context, m mutation) (*wallet.Wallet, error) {
	var result *wallet.Wallet
	for attempt := 0; attempt < s.cfg.MaxRetries; attempt++ {
		err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			w, err := s.applyMutationTx(ctx, repos, m)
			if err != nil {
				return err
			}
			result = w
			return nil
		})
		if err == nil {
			return result, nil
		}
		if !isLockConflict(err) {
			return nil, err
		}

		s.logger.Debug("Wallet version conflict, retrying",
			zap.String("operation", m.operation),
			zap.String("user_id", m.userID.String()),
			zap.Int("attempt", attempt+1),
		)
		if err := s.waitBeforeRetry(ctx, attempt); err != nil {
			return nil, err
		}
	}

	return nil, shared.NewDomainError("WALLET_CONFLICT",
		fmt.Sprintf("Wallet mutation lost %d consecutive races, try again later", s.cfg.MaxRetries))
}

func (s *Service) runTransfer(ctx context.Context, fromUserID, toUserID uuid.UUID, amount decimal.Decimal, ref wallet.Reference) (*TransferResult, error) {
	if fromUserID == uuid.Nil || toUserID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_USER_ID", "User ID cannot be empty")
	}
	if fromUserID == toUserID {
		return nil, shared.NewDomainError("INVALID_USER_ID", "Cannot transfer to the same wallet")
	}
	if amount.IsNegative() || amount.IsZero() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Amount must be positive")
	}
	ref = s.normalizeReference(ref)
	if err := ref.Validate(); err != nil {
		return nil, err
	}

	var result *TransferResult
	for attempt := 0; attempt < s.cfg.MaxRetries; attempt++ {
		err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			r, err := s.TransferLockedToAvailableTx(ctx, repos, fromUserID, toUserID, amount, ref)
			if err != nil {
				return err
			}
			result = r
			return nil
		})
		if err == nil {
			return result, nil
		}
		if !isLockConflict(err) {
			return nil, err
		}

		s.logger.Debug("Transfer version conflict, retrying",
			zap.String("from", fromUserID.String()),
			zap.String("to", toUserID.String()),
			zap.Int("attempt", attempt+1),
		)
		if err := s.waitBeforeRetry(ctx, attempt); err != nil {
			return nil, err
		}
	}

	return nil, shared.NewDomainError("WALLET_CONFLICT",
		fmt.Sprintf("Transfer lost %d consecutive races, try again later", s.cfg.MaxRetries))
}

// CreditAvailableTx is CreditAvailable executed within the caller's
// transaction. No retry happens here; engines composing multi-record
// operations retry the whole transaction on lock conflicts.
func (s *Service) CreditAvailableTx(ctx context.Context, repos TransactionalRepositories, userID uuid.UUID, amount decimal.Decimal, entryType wallet.EntryType, ref wallet.Reference) (*wallet.Wallet, error) {
	return s.applyMutationTx(ctx, repos, mutation{
		operation: "credit_available",
		userID:    userID,
		amount:    amount,
		entryType: entryType,
		ref:       ref,
		apply: func(w *wallet.Wallet) error {
			return w.CreditAvailable(amount)
		},
	})
}

// DebitAvailableTx is DebitAvailable executed within the caller's transaction
func (s *Service) DebitAvailableTx(ctx context.Context, repos TransactionalRepositories, userID uuid.UUID, amount decimal.Decimal, entryType wallet.EntryType, ref wallet.Reference) (*wallet.Wallet, error) {
	return s.applyMutationTx(ctx, repos, mutation{
		operation: "debit_available",
		userID:    userID,
		amount:    amount,
		entryType: entryType,
		ref:       ref,
		apply: func(w *wallet.Wallet) error {
			return w.DebitAvailable(amount)
		},
	})
}

// LockFundsTx is LockFunds executed within the caller's transaction
func (s *Service) LockFundsTx(ctx context.Context, repos TransactionalRepositories, userID uuid.UUID, amount decimal.Decimal, entryType wallet.EntryType, ref wallet.Reference) (*wallet.Wallet, error) {
	return s.applyMutationTx(ctx, repos, mutation{
		operation: "lock_funds",
		userID:    userID,
		amount:    amount,
		entryType: entryType,
		ref:       ref,
		apply: func(w *wallet.Wallet) error {
			return w.LockFunds(amount)
		},
	})
}

// UnlockFundsTx is UnlockFunds executed within the caller's transaction
func (s *Service) UnlockFundsTx(ctx context.Context, repos TransactionalRepositories, userID uuid.UUID, amount decimal.Decimal, entryType wallet.EntryType, ref wallet.Reference) (*wallet.Wallet, error) {
	return s.applyMutationTx(ctx, repos, mutation{
		operation: "unlock_funds",
		userID:    userID,
		amount:    amount,
		entryType: entryType,
		ref:       ref,
		apply: func(w *wallet.Wallet) error {
			return w.UnlockFunds(amount)
		},
	})
}

// DebitLockedTx removes amount from the user's locked balance within the
// caller's transaction. Used when locked funds leave the system entirely
// (withdrawal sent).
func (s *Service) DebitLockedTx(ctx context.Context, repos TransactionalRepositories, userID uuid.UUID, amount decimal.Decimal, entryType wallet.EntryType, ref wallet.Reference) (*wallet.Wallet, error) {
	return s.applyMutationTx(ctx, repos, mutation{
		operation: "debit_locked",
		userID:    userID,
		amount:    amount,
		entryType: entryType,
		ref:       ref,
		apply: func(w *wallet.Wallet) error {
			return w.DebitLocked(amount)
		},
	})
}

// TransferLockedToAvailableTx is TransferLockedToAvailable executed within
// the caller's transaction
func (s *Service) TransferLockedToAvailableTx(ctx context.Context, repos TransactionalRepositories, fromUserID, toUserID uuid.UUID, amount decimal.Decimal, ref wallet.Reference) (*TransferResult, error) {
	if fromUserID == uuid.Nil || toUserID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_USER_ID", "User ID cannot be empty")
	}
	if fromUserID == toUserID {
		return nil, shared.NewDomainError("INVALID_USER_ID", "Cannot transfer to the same wallet")
	}
	if amount.IsNegative() || amount.IsZero() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Amount must be positive")
	}
	ref = s.normalizeReference(ref)
	if err := ref.Validate(); err != nil {
		return nil, err
	}

	from, err := repos.WalletRepo().FindByUserID(ctx, fromUserID)
	if err != nil {
		return nil, err
	}
	if from == nil {
		return nil, shared.NewDomainError("WALLET_NOT_FOUND", "Sender wallet not found")
	}
	to, err := s.ensureWalletTx(ctx, repos, toUserID, "", s.cfg.DefaultInitialBalance)
	if err != nil {
		return nil, err
	}

	beforeFrom := wallet.SnapshotOf(from)
	beforeTo := wallet.SnapshotOf(to)

	if err := from.DebitLocked(amount); err != nil {
		return nil, err
	}
	if err := to.CreditAvailable(amount); err != nil {
		return nil, err
	}

	fromEntry, err := wallet.NewLedgerEntry(fromUserID, wallet.EntryTypeTradeSell, amount, beforeFrom, wallet.SnapshotOf(from), ref)
	if err != nil {
		return nil, err
	}
	toEntry, err := wallet.NewLedgerEntry(toUserID, wallet.EntryTypeTradeBuy, amount, beforeTo, wallet.SnapshotOf(to), ref)
	if err != nil {
		return nil, err
	}

	// Save in a deterministic order so concurrent transfers touching the
	// same pair cannot deadlock
	first, second := from, to
	if toUserID.String() < fromUserID.String() {
		first, second = to, from
	}
	first.IncrementVersion()
	if err := repos.WalletRepo().SaveWithLock(ctx, first); err != nil {
		return nil, err
	}
	second.IncrementVersion()
	if err := repos.WalletRepo().SaveWithLock(ctx, second); err != nil {
		return nil, err
	}

	if err := repos.EntryRepo().Create(ctx, fromEntry); err != nil {
		return nil, err
	}
	if err := repos.EntryRepo().Create(ctx, toEntry); err != nil {
		return nil, err
	}

	return &TransferResult{From: from, To: to}, nil
}

// applyMutationTx validates and applies one single-wallet change within the
// caller's transaction: read, mutate, append the ledger entry, and save
// guarded by the version read.
func (s *Service) applyMutationTx(ctx context.Context, repos TransactionalRepositories, m mutation) (*wallet.Wallet, error) {
	if m.userID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_USER_ID", "User ID cannot be empty")
	}
	if m.amount.IsNegative() || m.amount.IsZero() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Amount must be positive")
	}
	ref := s.normalizeReference(m.ref)
	if err := ref.Validate(); err != nil {
		return nil, err
	}

	w, err := s.ensureWalletTx(ctx, repos, m.userID, "", s.cfg.DefaultInitialBalance)
	if err != nil {
		return nil, err
	}

	before := wallet.SnapshotOf(w)
	if err := m.apply(w); err != nil {
		return nil, err
	}

	entry, err := wallet.NewLedgerEntry(m.userID, m.entryType, m.amount, before, wallet.SnapshotOf(w), ref)
	if err != nil {
		return nil, err
	}

	w.IncrementVersion()
	if err := repos.WalletRepo().SaveWithLock(ctx, w); err != nil {
		return nil, err
	}
	if err := repos.EntryRepo().Create(ctx, entry); err != nil {
		return nil, err
	}

	return w, nil
}

// ensureWalletTx loads the user's wallet inside the current transaction,
// creating it lazily when absent. A lost creation race falls back to
// re-reading the winner's row.
func (s *Service) ensureWalletTx(ctx context.Context, repos TransactionalRepositories, userID uuid.UUID, username string, initialBalance decimal.Decimal) (*wallet.Wallet, error) {
	repo := repos.WalletRepo()
	w, err := repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if w != nil {
		if username != "" && w.Username != username {
			w.UpdateUsername(username)
			if err := repo.Save(ctx, w); err != nil {
				return nil, err
			}
		}
		return w, nil
	}

	created, err := wallet.NewWallet(userID, username, initialBalance)
	if err != nil {
		return nil, err
	}
	if err := repo.Create(ctx, created); err != nil {
		// Another request created the wallet first
		existing, findErr := repo.FindByUserID(ctx, userID)
		if findErr == nil && existing != nil {
			return existing, nil
		}
		return nil, err
	}

	if initialBalance.IsPositive() {
		seedRef := wallet.NewReference("wallet:init:"+userID.String(), s.cfg.DefaultCurrency)
		entry, err := wallet.NewLedgerEntry(userID, wallet.EntryTypeDeposit, initialBalance,
			wallet.BalanceSnapshot{Available: decimal.Zero, Locked: decimal.Zero},
			wallet.SnapshotOf(created), seedRef)
		if err != nil {
			return nil, err
		}
		if err := repos.EntryRepo().Create(ctx, entry); err != nil {
			return nil, err
		}
	}

	s.logger.Info("Wallet created",
		zap.String("user_id", userID.String()),
		zap.String("initial_balance", initialBalance.String()),
	)
	return created, nil
}

func (s *Service) normalizeReference(ref wallet.Reference) wallet.Reference {
	if ref.Currency == "" {
		ref.Currency = s.cfg.DefaultCurrency
	}
	return ref
}

// waitBeforeRetry sleeps for the configured backoff plus random jitter,
// respecting context cancellation
func (s *Service) waitBeforeRetry(ctx context.Context, attempt int) error {
	backoff := s.cfg.RetryBackoff * (1 << attempt)
	delay := backoff + time.Duration(rand.Int63n(int64(backoff)+1))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

func (s *Service) recordFailure(ctx context.Context, operation string, userID uuid.UUID, amount decimal.Decimal, referenceID string, err error) {
	s.sink.Record(ctx, reconciliation.NewFailureRecord(operation, userID, amount, referenceID, err))
}

func isLockConflict(err error) bool {
	return shared.IsDomainError(err, "OPTIMISTIC_LOCK_ERROR")
}
