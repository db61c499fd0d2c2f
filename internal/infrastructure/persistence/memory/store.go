// Package memory provides an in-memory implementation of the ledger
// repositories and transaction scope. It honors the same optimistic-locking
// contract as the GORM repositories and backs service tests, including
// concurrency tests, without a database.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/peertrade/backend/internal/application/ledger"
	"github.com/peertrade/backend/internal/domain/escrow"
	"github.com/peertrade/backend/internal/domain/merchant"
	"github.com/peertrade/backend/internal/domain/reconciliation"
	"github.com/peertrade/backend/internal/domain/wallet"
	"github.com/peertrade/backend/internal/domain/withdrawal"
)

// Store holds all in-memory state behind a single mutex. Writes are
// serialized, so version-guarded saves behave exactly like the conditional
// updates of the SQL repositories.
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex // serializes transactions, held for the whole Execute

	wallets       map[uuid.UUID]wallet.Wallet // keyed by wallet ID
	walletsByUser map[uuid.UUID]uuid.UUID     // user ID -> wallet ID
	entries       []wallet.LedgerEntry
	orders        map[uuid.UUID]escrow.Order
	ads           map[uuid.UUID]escrow.Ad
	withdrawals   map[uuid.UUID]withdrawal.Request
	merchants     map[uuid.UUID]merchant.Profile // keyed by profile ID
	failures      []reconciliation.FailureRecord
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		wallets:       make(map[uuid.UUID]wallet.Wallet),
		walletsByUser: make(map[uuid.UUID]uuid.UUID),
		orders:        make(map[uuid.UUID]escrow.Order),
		ads:           make(map[uuid.UUID]escrow.Ad),
		withdrawals:   make(map[uuid.UUID]withdrawal.Request),
		merchants:     make(map[uuid.UUID]merchant.Profile),
	}
}

// WalletRepo returns the in-memory wallet repository
func (s *Store) WalletRepo() wallet.Repository { return &walletRepository{store: s} }

// EntryRepo returns the in-memory ledger entry repository
func (s *Store) EntryRepo() wallet.LedgerEntryRepository { return &ledgerEntryRepository{store: s} }

// OrderRepo returns the in-memory escrow order repository
func (s *Store) OrderRepo() escrow.OrderRepository { return &orderRepository{store: s} }

// AdRepo returns the in-memory liquidity ad repository
func (s *Store) AdRepo() escrow.AdRepository { return &adRepository{store: s} }

// WithdrawalRepo returns the in-memory withdrawal repository
func (s *Store) WithdrawalRepo() withdrawal.Repository { return &withdrawalRepository{store: s} }

// MerchantRepo returns the in-memory merchant profile repository
func (s *Store) MerchantRepo() merchant.Repository { return &merchantRepository{store: s} }

// FailureRepo returns the in-memory failure record repository
func (s *Store) FailureRepo() reconciliation.Repository { return &failureRepository{store: s} }

// Scope returns a transaction scope over this store. Transactions are
// serialized, and a failed transaction restores the state captured at entry,
// so a partial write never survives into the caller's retry.
func (s *Store) Scope() ledger.TransactionScope {
	return &scope{store: s}
}

// state is a point-in-time copy of the store. Values are held by value, so
// copying the containers is enough to make the copy independent.
type state struct {
	wallets       map[uuid.UUID]wallet.Wallet
	walletsByUser map[uuid.UUID]uuid.UUID
	entries       []wallet.LedgerEntry
	orders        map[uuid.UUID]escrow.Order
	ads           map[uuid.UUID]escrow.Ad
	withdrawals   map[uuid.UUID]withdrawal.Request
	merchants     map[uuid.UUID]merchant.Profile
	failures      []reconciliation.FailureRecord
}

func (s *Store) snapshot() *state {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := &state{
		wallets:       make(map[uuid.UUID]wallet.Wallet, len(s.wallets)),
		walletsByUser: make(map[uuid.UUID]uuid.UUID, len(s.walletsByUser)),
		entries:       append([]wallet.LedgerEntry(nil), s.entries...),
		orders:        make(map[uuid.UUID]escrow.Order, len(s.orders)),
		ads:           make(map[uuid.UUID]escrow.Ad, len(s.ads)),
		withdrawals:   make(map[uuid.UUID]withdrawal.Request, len(s.withdrawals)),
		merchants:     make(map[uuid.UUID]merchant.Profile, len(s.merchants)),
		failures:      append([]reconciliation.FailureRecord(nil), s.failures...),
	}
	for k, v := range s.wallets {
		st.wallets[k] = v
	}
	for k, v := range s.walletsByUser {
		st.walletsByUser[k] = v
	}
	for k, v := range s.orders {
		st.orders[k] = v
	}
	for k, v := range s.ads {
		st.ads[k] = v
	}
	for k, v := range s.withdrawals {
		st.withdrawals[k] = v
	}
	for k, v := range s.merchants {
		st.merchants[k] = v
	}
	return st
}

func (s *Store) restore(st *state) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallets = st.wallets
	s.walletsByUser = st.walletsByUser
	s.entries = st.entries
	s.orders = st.orders
	s.ads = st.ads
	s.withdrawals = st.withdrawals
	s.merchants = st.merchants
	s.failures = st.failures
}

type scope struct {
	store *Store
}

// Execute runs fn as one transaction. On error every write fn made is rolled
// back, matching the all-or-nothing contract of the SQL scope.
func (s *scope) Execute(_ context.Context, fn func(repos ledger.TransactionalRepositories) error) error {
	s.store.txMu.Lock()
	defer s.store.txMu.Unlock()

	before := s.store.snapshot()
	if err := fn(s); err != nil {
		s.store.restore(before)
		return err
	}
	return nil
}

func (s *scope) WalletRepo() wallet.Repository           { return s.store.WalletRepo() }
func (s *scope) EntryRepo() wallet.LedgerEntryRepository { return s.store.EntryRepo() }
func (s *scope) OrderRepo() escrow.OrderRepository       { return s.store.OrderRepo() }
func (s *scope) AdRepo() escrow.AdRepository             { return s.store.AdRepo() }
func (s *scope) WithdrawalRepo() withdrawal.Repository   { return s.store.WithdrawalRepo() }
func (s *scope) MerchantRepo() merchant.Repository       { return s.store.MerchantRepo() }

var _ ledger.TransactionScope = (*scope)(nil)
var _ ledger.TransactionalRepositories = (*scope)(nil)
