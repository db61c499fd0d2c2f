package persistence

import (
	"context"

	appledger "github.com/peertrade/backend/internal/application/ledger"
	"github.com/peertrade/backend/internal/domain/escrow"
	"github.com/peertrade/backend/internal/domain/merchant"
	"github.com/peertrade/backend/internal/domain/wallet"
	"github.com/peertrade/backend/internal/domain/withdrawal"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// It provides atomic execution of multiple repository operations.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appledger.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := &gormTransactionalRepositories{tx: tx}
		return fn(repos)
	})
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// WalletRepo returns the wallet repository scoped to the current transaction.
func (r *gormTransactionalRepositories) WalletRepo() wallet.Repository {
	return NewGormWalletRepository(r.tx)
}

// EntryRepo returns the ledger entry repository scoped to the current transaction.
func (r *gormTransactionalRepositories) EntryRepo() wallet.LedgerEntryRepository {
	return NewGormLedgerEntryRepository(r.tx)
}

// OrderRepo returns the escrow order repository scoped to the current transaction.
func (r *gormTransactionalRepositories) OrderRepo() escrow.OrderRepository {
	return NewGormOrderRepository(r.tx)
}

// AdRepo returns the liquidity ad repository scoped to the current transaction.
func (r *gormTransactionalRepositories) AdRepo() escrow.AdRepository {
	return NewGormAdRepository(r.tx)
}

// WithdrawalRepo returns the withdrawal request repository scoped to the current transaction.
func (r *gormTransactionalRepositories) WithdrawalRepo() withdrawal.Repository {
	return NewGormWithdrawalRepository(r.tx)
}

// MerchantRepo returns the merchant profile repository scoped to the current transaction.
func (r *gormTransactionalRepositories) MerchantRepo() merchant.Repository {
	return NewGormMerchantRepository(r.tx)
}

// Ensure GormTransactionScope implements TransactionScope
var _ appledger.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ appledger.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
