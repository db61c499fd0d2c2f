package ledger_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/peertrade/backend/internal/application/ledger"
	"github.com/peertrade/backend/internal/domain/reconciliation"
	"github.com/peertrade/backend/internal/domain/shared"
	"github.com/peertrade/backend/internal/domain/wallet"
	"github.com/peertrade/backend/internal/infrastructure/persistence/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ============================================================
// Test helpers
// ============================================================

type captureSink struct {
	mu      sync.Mutex
	records []*reconciliation.FailureRecord
}

func (s *captureSink) Record(_ context.Context, record *reconciliation.FailureRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

type captureObserver struct {
	mu     sync.Mutex
	before []ledger.OperationView
	after  []ledger.OperationView
	errors []error
}

func (o *captureObserver) BeforeOperation(_ context.Context, op ledger.OperationView) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.before = append(o.before, op)
}

func (o *captureObserver) AfterOperation(_ context.Context, op ledger.OperationView) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.after = append(o.after, op)
}

func (o *captureObserver) OnError(_ context.Context, _ ledger.OperationView, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errors = append(o.errors, err)
}

type panickyObserver struct{}

func (panickyObserver) BeforeOperation(context.Context, ledger.OperationView) { panic("before") }
func (panickyObserver) AfterOperation(context.Context, ledger.OperationView)  { panic("after") }
func (panickyObserver) OnError(context.Context, ledger.OperationView, error)  { panic("error") }

// conflictScope always reports an optimistic lock conflict
type conflictScope struct{}

func (conflictScope) Execute(context.Context, func(ledger.TransactionalRepositories) error) error {
	return shared.NewDomainError("OPTIMISTIC_LOCK_ERROR", "conflict")
}

// saveConflictScope delegates to a real scope but fails the failAt-th wallet
// save with a lock conflict, once, as if a concurrent writer had won the race
// mid-transaction. failAt counts from 1; zero disables the injection.
type saveConflictScope struct {
	inner  ledger.TransactionScope
	failAt int
	saves  int
	fired  bool
}

func (s *saveConflictScope) Execute(ctx context.Context, fn func(ledger.TransactionalRepositories) error) error {
	return s.inner.Execute(ctx, func(repos ledger.TransactionalRepositories) error {
		return fn(&saveConflictRepos{TransactionalRepositories: repos, scope: s})
	})
}

type saveConflictRepos struct {
	ledger.TransactionalRepositories
	scope *saveConflictScope
}

func (r *saveConflictRepos) WalletRepo() wallet.Repository {
	return &saveConflictWalletRepo{
		Repository: r.TransactionalRepositories.WalletRepo(),
		scope:      r.scope,
	}
}

type saveConflictWalletRepo struct {
	wallet.Repository
	scope *saveConflictScope
}

func (r *saveConflictWalletRepo) SaveWithLock(ctx context.Context, w *wallet.Wallet) error {
	r.scope.saves++
	if !r.scope.fired && r.scope.failAt > 0 && r.scope.saves == r.scope.failAt {
		r.scope.fired = true
		return shared.NewDomainError("OPTIMISTIC_LOCK_ERROR", "concurrent writer")
	}
	return r.Repository.SaveWithLock(ctx, w)
}

func newTestService(t *testing.T) (*ledger.Service, *memory.Store, *captureSink) {
	t.Helper()
	store := memory.NewStore()
	sink := &captureSink{}
	cfg := ledger.DefaultConfig()
	cfg.RetryBackoff = time.Millisecond
	svc := ledger.NewService(store.Scope(), sink, zap.NewNop(), cfg)
	return svc, store, sink
}

func fundedWallet(t *testing.T, svc *ledger.Service, amount int64) uuid.UUID {
	t.Helper()
	userID := uuid.New()
	_, err := svc.EnsureWalletWithBalance(context.Background(), userID, "tester", decimal.NewFromInt(amount))
	require.NoError(t, err)
	return userID
}

func testRef(id string) wallet.Reference {
	return wallet.NewReference(id, "USDT")
}

// ============================================================
// EnsureWallet
// ============================================================

func TestService_EnsureWallet(t *testing.T) {
	t.Run("creates wallet lazily with seed entry", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		userID := uuid.New()

		w, err := svc.EnsureWalletWithBalance(context.Background(), userID, "alice", decimal.NewFromInt(1000))

		require.NoError(t, err)
		assert.True(t, w.AvailableBalance.Equal(decimal.NewFromInt(1000)))

		entries, err := store.EntryRepo().FindByUserID(context.Background(), userID, shared.DefaultFilter())
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, wallet.EntryTypeDeposit, entries[0].Type)
	})

	t.Run("is idempotent and never resets balances", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		userID := fundedWallet(t, svc, 1000)

		w, err := svc.EnsureWalletWithBalance(context.Background(), userID, "renamed", decimal.NewFromInt(5))

		require.NoError(t, err)
		assert.True(t, w.AvailableBalance.Equal(decimal.NewFromInt(1000)))
		assert.Equal(t, "renamed", w.Username)
	})

	t.Run("rejects nil user ID", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		_, err := svc.EnsureWallet(context.Background(), uuid.Nil, "x")
		require.Error(t, err)
	})
}

// ============================================================
// Single-wallet mutations
// ============================================================

func TestService_CreditAndDebit(t *testing.T) {
	t.Run("credit then debit round-trips", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		userID := fundedWallet(t, svc, 100)

		_, err := svc.CreditAvailable(context.Background(), userID, decimal.NewFromInt(50),
			wallet.EntryTypeDeposit, testRef("dep:1"))
		require.NoError(t, err)

		w, err := svc.DebitAvailable(context.Background(), userID, decimal.NewFromInt(30),
			wallet.EntryTypeWithdrawal, testRef("wd:1"))
		require.NoError(t, err)
		assert.True(t, w.AvailableBalance.Equal(decimal.NewFromInt(120)))

		count, err := store.EntryRepo().CountByUserID(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), count) // seed + credit + debit
	})

	t.Run("debit fails with insufficient balance", func(t *testing.T) {
		svc, _, sink := newTestService(t)
		userID := fundedWallet(t, svc, 10)

		_, err := svc.DebitAvailable(context.Background(), userID, decimal.NewFromInt(11),
			wallet.EntryTypeWithdrawal, testRef("wd:2"))

		require.Error(t, err)
		assert.True(t, shared.IsDomainError(err, "INSUFFICIENT_BALANCE"))
		assert.Equal(t, 1, sink.count())
	})

	t.Run("rejects zero amount before touching storage", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		_, err := svc.CreditAvailable(context.Background(), uuid.New(), decimal.Zero,
			wallet.EntryTypeDeposit, testRef("dep:3"))

		require.Error(t, err)
		assert.True(t, shared.IsDomainError(err, "INVALID_AMOUNT"))
	})

	t.Run("applies the default currency to bare references", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		userID := fundedWallet(t, svc, 10)

		_, err := svc.CreditAvailable(context.Background(), userID, decimal.NewFromInt(1),
			wallet.EntryTypeDeposit, wallet.Reference{ID: "dep:4"})
		require.NoError(t, err)

		entries, err := store.EntryRepo().FindByReferenceID(context.Background(), "dep:4")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "USDT", entries[0].Currency)
	})
}

func TestService_LockAndUnlock(t *testing.T) {
	t.Run("lock moves funds and writes a conserving entry", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		userID := fundedWallet(t, svc, 1000)

		w, err := svc.LockFunds(context.Background(), userID, decimal.NewFromInt(100),
			wallet.EntryTypeTradeSell, testRef("order:1"))

		require.NoError(t, err)
		assert.True(t, w.AvailableBalance.Equal(decimal.NewFromInt(900)))
		assert.True(t, w.LockedBalance.Equal(decimal.NewFromInt(100)))

		entries, err := store.EntryRepo().FindByReferenceID(context.Background(), "order:1")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.True(t, entries[0].IsConserving())
	})

	t.Run("unlock reverses a lock", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		userID := fundedWallet(t, svc, 1000)
		_, err := svc.LockFunds(context.Background(), userID, decimal.NewFromInt(100),
			wallet.EntryTypeTradeSell, testRef("order:2"))
		require.NoError(t, err)

		w, err := svc.UnlockFunds(context.Background(), userID, decimal.NewFromInt(100),
			wallet.EntryTypeRefund, testRef("order:2"))

		require.NoError(t, err)
		assert.True(t, w.AvailableBalance.Equal(decimal.NewFromInt(1000)))
		assert.True(t, w.LockedBalance.IsZero())
	})

	t.Run("unlock fails when locked balance too low", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		userID := fundedWallet(t, svc, 1000)

		_, err := svc.UnlockFunds(context.Background(), userID, decimal.NewFromInt(1),
			wallet.EntryTypeRefund, testRef("order:3"))

		require.Error(t, err)
		assert.True(t, shared.IsDomainError(err, "INSUFFICIENT_LOCKED_BALANCE"))
	})
}

// ============================================================
// Transfer settlement
// ============================================================

func TestService_TransferLockedToAvailable(t *testing.T) {
	t.Run("settles locked funds to the recipient", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		seller := fundedWallet(t, svc, 1000)
		buyer := fundedWallet(t, svc, 0)
		_, err := svc.LockFunds(context.Background(), seller, decimal.NewFromInt(100),
			wallet.EntryTypeTradeSell, testRef("order:10"))
		require.NoError(t, err)

		result, err := svc.TransferLockedToAvailable(context.Background(), seller, buyer,
			decimal.NewFromInt(100), testRef("order:10"))

		require.NoError(t, err)
		assert.True(t, result.From.AvailableBalance.Equal(decimal.NewFromInt(900)))
		assert.True(t, result.From.LockedBalance.IsZero())
		assert.True(t, result.To.AvailableBalance.Equal(decimal.NewFromInt(100)))

		entries, err := store.EntryRepo().FindByReferenceID(context.Background(), "order:10")
		require.NoError(t, err)
		assert.Len(t, entries, 3) // lock + both settlement sides
	})

	t.Run("creates the recipient wallet lazily", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		seller := fundedWallet(t, svc, 100)
		_, err := svc.LockFunds(context.Background(), seller, decimal.NewFromInt(40),
			wallet.EntryTypeTradeSell, testRef("order:11"))
		require.NoError(t, err)

		result, err := svc.TransferLockedToAvailable(context.Background(), seller, uuid.New(),
			decimal.NewFromInt(40), testRef("order:11"))

		require.NoError(t, err)
		assert.True(t, result.To.AvailableBalance.Equal(decimal.NewFromInt(40)))
	})

	t.Run("fails when sender has no locked funds", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		seller := fundedWallet(t, svc, 100)

		_, err := svc.TransferLockedToAvailable(context.Background(), seller, uuid.New(),
			decimal.NewFromInt(40), testRef("order:12"))

		require.Error(t, err)
		assert.True(t, shared.IsDomainError(err, "INSUFFICIENT_LOCKED_BALANCE"))
	})

	t.Run("rejects self-transfer", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		seller := fundedWallet(t, svc, 100)

		_, err := svc.TransferLockedToAvailable(context.Background(), seller, seller,
			decimal.NewFromInt(40), testRef("order:13"))
		require.Error(t, err)
	})

	t.Run("fails when sender wallet missing", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		_, err := svc.TransferLockedToAvailable(context.Background(), uuid.New(), uuid.New(),
			decimal.NewFromInt(40), testRef("order:14"))

		require.Error(t, err)
		assert.True(t, shared.IsDomainError(err, "WALLET_NOT_FOUND"))
	})
}

// ============================================================
// Admin adjustment
// ============================================================

func TestService_AdminAdjustBalance(t *testing.T) {
	t.Run("positive amount credits", func(t *testing.T) {
		svc, store, _ := newTestService(t)
		userID := fundedWallet(t, svc, 100)

		w, err := svc.AdminAdjustBalance(context.Background(), userID, decimal.NewFromInt(25),
			"promo credit", testRef("adj:1"))

		require.NoError(t, err)
		assert.True(t, w.AvailableBalance.Equal(decimal.NewFromInt(125)))

		entries, err := store.EntryRepo().FindByReferenceID(context.Background(), "adj:1")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, wallet.EntryTypeAdminAdjustment, entries[0].Type)
		assert.Contains(t, entries[0].Metadata, "promo credit")
	})

	t.Run("negative amount debits", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		userID := fundedWallet(t, svc, 100)

		w, err := svc.AdminAdjustBalance(context.Background(), userID, decimal.NewFromInt(-40),
			"chargeback", testRef("adj:2"))

		require.NoError(t, err)
		assert.True(t, w.AvailableBalance.Equal(decimal.NewFromInt(60)))
	})

	t.Run("rejects zero amount", func(t *testing.T) {
		svc, _, sink := newTestService(t)

		_, err := svc.AdminAdjustBalance(context.Background(), uuid.New(), decimal.Zero,
			"noop", testRef("adj:3"))

		require.Error(t, err)
		assert.Equal(t, 1, sink.count())
	})

	t.Run("debit below zero fails", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		userID := fundedWallet(t, svc, 10)

		_, err := svc.AdminAdjustBalance(context.Background(), userID, decimal.NewFromInt(-11),
			"too much", testRef("adj:4"))

		require.Error(t, err)
		assert.True(t, shared.IsDomainError(err, "INSUFFICIENT_BALANCE"))
	})
}

// ============================================================
// Retry and conflict behavior
// ============================================================

func TestService_WalletConflict(t *testing.T) {
	t.Run("exhausted retries surface WALLET_CONFLICT", func(t *testing.T) {
		cfg := ledger.DefaultConfig()
		cfg.MaxRetries = 3
		cfg.RetryBackoff = time.Microsecond
		svc := ledger.NewService(conflictScope{}, nil, zap.NewNop(), cfg)

		_, err := svc.LockFunds(context.Background(), uuid.New(), decimal.NewFromInt(1),
			wallet.EntryTypeTradeSell, testRef("order:20"))

		require.Error(t, err)
		assert.True(t, shared.IsDomainError(err, "WALLET_CONFLICT"))
	})

	t.Run("cancelled context stops the retry loop", func(t *testing.T) {
		cfg := ledger.DefaultConfig()
		cfg.RetryBackoff = 50 * time.Millisecond
		svc := ledger.NewService(conflictScope{}, nil, zap.NewNop(), cfg)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
		defer cancel()

		_, err := svc.LockFunds(ctx, uuid.New(), decimal.NewFromInt(1),
			wallet.EntryTypeTradeSell, testRef("order:21"))

		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestService_TransferRetriesAfterMidTransactionConflict(t *testing.T) {
	// A conflict on the second wallet save must discard the first save too;
	// the retry then applies the whole transfer exactly once.
	store := memory.NewStore()
	cfg := ledger.DefaultConfig()
	cfg.RetryBackoff = time.Millisecond
	scope := &saveConflictScope{inner: store.Scope()}
	svc := ledger.NewService(scope, nil, zap.NewNop(), cfg)

	seller := fundedWallet(t, svc, 100)
	buyer := fundedWallet(t, svc, 0)
	_, err := svc.LockFunds(context.Background(), seller, decimal.NewFromInt(100),
		wallet.EntryTypeTradeSell, testRef("order:50"))
	require.NoError(t, err)

	scope.saves = 0
	scope.failAt = 2

	_, err = svc.TransferLockedToAvailable(context.Background(), seller, buyer,
		decimal.NewFromInt(100), testRef("order:51"))
	require.NoError(t, err)
	assert.True(t, scope.fired, "the injected conflict was never reached")

	sw, err := store.WalletRepo().FindByUserID(context.Background(), seller)
	require.NoError(t, err)
	bw, err := store.WalletRepo().FindByUserID(context.Background(), buyer)
	require.NoError(t, err)

	assert.True(t, sw.AvailableBalance.IsZero())
	assert.True(t, sw.LockedBalance.IsZero())
	assert.True(t, bw.AvailableBalance.Equal(decimal.NewFromInt(100)))
	total := sw.TotalBalance().Add(bw.TotalBalance())
	assert.True(t, total.Equal(decimal.NewFromInt(100)), "transfer must conserve the total balance")

	// One debit-locked and one credit entry, not one pair per attempt
	entries, err := store.EntryRepo().FindByReferenceID(context.Background(), "order:51")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestService_ConcurrentLocks(t *testing.T) {
	// With balance for exactly one lock, N racing lockers must produce
	// exactly one success; the rest fail with a typed rejection.
	svc, store, _ := newTestService(t)
	userID := fundedWallet(t, svc, 100)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = svc.LockFunds(context.Background(), userID, decimal.NewFromInt(100),
				wallet.EntryTypeTradeSell, testRef("order:race"))
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		ok := shared.IsDomainError(err, "INSUFFICIENT_BALANCE") ||
			shared.IsDomainError(err, "WALLET_CONFLICT")
		assert.True(t, ok, "unexpected error: %v", err)
	}
	assert.Equal(t, 1, successes)

	w, err := store.WalletRepo().FindByUserID(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, w.AvailableBalance.IsZero())
	assert.True(t, w.LockedBalance.Equal(decimal.NewFromInt(100)))
}

// ============================================================
// Observers
// ============================================================

func TestService_Observers(t *testing.T) {
	t.Run("notified around successful operations", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		obs := &captureObserver{}
		svc.RegisterObserver(obs)
		userID := fundedWallet(t, svc, 100)

		_, err := svc.LockFunds(context.Background(), userID, decimal.NewFromInt(10),
			wallet.EntryTypeTradeSell, testRef("order:30"))
		require.NoError(t, err)

		require.Len(t, obs.before, 1)
		require.Len(t, obs.after, 1)
		assert.Empty(t, obs.errors)
		assert.Equal(t, "lock_funds", obs.before[0].Operation)
		assert.Equal(t, userID, obs.before[0].UserID)
	})

	t.Run("notified on failure", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		obs := &captureObserver{}
		svc.RegisterObserver(obs)
		userID := fundedWallet(t, svc, 5)

		_, err := svc.DebitAvailable(context.Background(), userID, decimal.NewFromInt(10),
			wallet.EntryTypeWithdrawal, testRef("wd:30"))
		require.Error(t, err)

		require.Len(t, obs.errors, 1)
		assert.Empty(t, obs.after)
	})

	t.Run("a panicking observer cannot break the operation", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		svc.RegisterObserver(panickyObserver{})
		userID := fundedWallet(t, svc, 100)

		w, err := svc.LockFunds(context.Background(), userID, decimal.NewFromInt(10),
			wallet.EntryTypeTradeSell, testRef("order:31"))

		require.NoError(t, err)
		assert.True(t, w.LockedBalance.Equal(decimal.NewFromInt(10)))
	})
}
