package ledger

import (
	"context"

	"github.com/peertrade/backend/internal/domain/escrow"
	"github.com/peertrade/backend/internal/domain/merchant"
	"github.com/peertrade/backend/internal/domain/wallet"
	"github.com/peertrade/backend/internal/domain/withdrawal"
)

// TransactionScope provides transactional access to the ledger repositories.
// When a function is executed within a transaction scope, all repository
// operations are part of the same database transaction and are committed or
// rolled back atomically. A crash mid-operation therefore leaves either the
// pre-state or the post-state, never a hybrid.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to all repositories within a
// transaction. All repositories returned share the same underlying database
// transaction.
type TransactionalRepositories interface {
	// WalletRepo returns the wallet repository scoped to the current transaction
	WalletRepo() wallet.Repository
	// EntryRepo returns the ledger entry repository scoped to the current transaction
	EntryRepo() wallet.LedgerEntryRepository
	// OrderRepo returns the escrow order repository scoped to the current transaction
	OrderRepo() escrow.OrderRepository
	// AdRepo returns the liquidity ad repository scoped to the current transaction
	AdRepo() escrow.AdRepository
	// WithdrawalRepo returns the withdrawal request repository scoped to the current transaction
	WithdrawalRepo() withdrawal.Repository
	// MerchantRepo returns the merchant profile repository scoped to the current transaction
	MerchantRepo() merchant.Repository
}

// NoOpTransactionScope is a transaction scope that doesn't actually use
// transactions. This is useful for testing or when transaction support is
// not required.
type NoOpTransactionScope struct {
	walletRepo     wallet.Repository
	entryRepo      wallet.LedgerEntryRepository
	orderRepo      escrow.OrderRepository
	adRepo         escrow.AdRepository
	withdrawalRepo withdrawal.Repository
	merchantRepo   merchant.Repository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	walletRepo wallet.Repository,
	entryRepo wallet.LedgerEntryRepository,
	orderRepo escrow.OrderRepository,
	adRepo escrow.AdRepository,
	withdrawalRepo withdrawal.Repository,
	merchantRepo merchant.Repository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		walletRepo:     walletRepo,
		entryRepo:      entryRepo,
		orderRepo:      orderRepo,
		adRepo:         adRepo,
		withdrawalRepo: withdrawalRepo,
		merchantRepo:   merchantRepo,
	}
}

// Execute runs the function without a real transaction (for testing/compatibility).
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// WalletRepo returns the wallet repository.
func (s *NoOpTransactionScope) WalletRepo() wallet.Repository {
	return s.walletRepo
}

// EntryRepo returns the ledger entry repository.
func (s *NoOpTransactionScope) EntryRepo() wallet.LedgerEntryRepository {
	return s.entryRepo
}

// OrderRepo returns the escrow order repository.
func (s *NoOpTransactionScope) OrderRepo() escrow.OrderRepository {
	return s.orderRepo
}

// AdRepo returns the liquidity ad repository.
func (s *NoOpTransactionScope) AdRepo() escrow.AdRepository {
	return s.adRepo
}

// WithdrawalRepo returns the withdrawal request repository.
func (s *NoOpTransactionScope) WithdrawalRepo() withdrawal.Repository {
	return s.withdrawalRepo
}

// MerchantRepo returns the merchant profile repository.
func (s *NoOpTransactionScope) MerchantRepo() merchant.Repository {
	return s.merchantRepo
}

// Ensure NoOpTransactionScope implements both interfaces
var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
