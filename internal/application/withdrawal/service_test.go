package withdrawal_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/peertrade/backend/internal/application/ledger"
	appwithdrawal "github.com/peertrade/backend/internal/application/withdrawal"
	"github.com/peertrade/backend/internal/domain/shared"
	"github.com/peertrade/backend/internal/domain/withdrawal"
	"github.com/peertrade/backend/internal/infrastructure/persistence/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testAddress = "addr1qxy8epsilon42"

// ============================================================
// Test helpers
// ============================================================

func newTestServices(t *testing.T) (*appwithdrawal.Service, *ledger.Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	cfg := ledger.DefaultConfig()
	cfg.RetryBackoff = time.Millisecond
	ledgerSvc := ledger.NewService(store.Scope(), nil, zap.NewNop(), cfg)
	return appwithdrawal.NewService(ledgerSvc, zap.NewNop()), ledgerSvc, store
}

func fundedUser(t *testing.T, svc *ledger.Service, amount int64) uuid.UUID {
	t.Helper()
	userID := uuid.New()
	_, err := svc.EnsureWalletWithBalance(context.Background(), userID, "withdrawer", decimal.NewFromInt(amount))
	require.NoError(t, err)
	return userID
}

func balancesOf(t *testing.T, store *memory.Store, userID uuid.UUID) (decimal.Decimal, decimal.Decimal) {
	t.Helper()
	w, err := store.WalletRepo().FindByUserID(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, w)
	return w.AvailableBalance, w.LockedBalance
}

// ============================================================
// Request creation
// ============================================================

func TestService_Create(t *testing.T) {
	t.Run("locks the requested amount", func(t *testing.T) {
		svc, ledgerSvc, store := newTestServices(t)
		userID := fundedUser(t, ledgerSvc, 100)

		req, err := svc.Create(context.Background(), userID, decimal.NewFromInt(50), "usdt", testAddress)

		require.NoError(t, err)
		assert.Equal(t, withdrawal.StatusPending, req.Status)
		assert.Equal(t, "USDT", req.Currency)

		available, locked := balancesOf(t, store, userID)
		assert.True(t, available.Equal(decimal.NewFromInt(50)))
		assert.True(t, locked.Equal(decimal.NewFromInt(50)))
	})

	t.Run("rejects a duplicate pending tuple", func(t *testing.T) {
		svc, ledgerSvc, store := newTestServices(t)
		userID := fundedUser(t, ledgerSvc, 100)
		_, err := svc.Create(context.Background(), userID, decimal.NewFromInt(50), "USDT", testAddress)
		require.NoError(t, err)

		_, err = svc.Create(context.Background(), userID, decimal.NewFromInt(10), "USDT", testAddress)

		require.Error(t, err)
		assert.True(t, shared.IsDomainError(err, "DUPLICATE_WITHDRAWAL_REQUEST"))
		_, locked := balancesOf(t, store, userID)
		assert.True(t, locked.Equal(decimal.NewFromInt(50)))
	})

	t.Run("allows a second request to a different address", func(t *testing.T) {
		svc, ledgerSvc, _ := newTestServices(t)
		userID := fundedUser(t, ledgerSvc, 100)
		_, err := svc.Create(context.Background(), userID, decimal.NewFromInt(50), "USDT", testAddress)
		require.NoError(t, err)

		_, err = svc.Create(context.Background(), userID, decimal.NewFromInt(10), "USDT", "otherAddress99")

		require.NoError(t, err)
	})

	t.Run("rejects an amount below the configured minimum", func(t *testing.T) {
		svc, ledgerSvc, store := newTestServices(t)
		svc.SetMinAmount(decimal.NewFromInt(25))
		userID := fundedUser(t, ledgerSvc, 100)

		_, err := svc.Create(context.Background(), userID, decimal.NewFromInt(10), "USDT", testAddress)

		require.Error(t, err)
		assert.True(t, shared.IsDomainError(err, "INVALID_AMOUNT"))
		_, locked := balancesOf(t, store, userID)
		assert.True(t, locked.IsZero())
	})

	t.Run("rejects a malformed address", func(t *testing.T) {
		svc, ledgerSvc, _ := newTestServices(t)
		userID := fundedUser(t, ledgerSvc, 100)

		_, err := svc.Create(context.Background(), userID, decimal.NewFromInt(10), "USDT", "bad addr!")

		require.Error(t, err)
		assert.True(t, shared.IsDomainError(err, "INVALID_WITHDRAWAL_ADDRESS"))
	})

	t.Run("fails without locking when the balance is short", func(t *testing.T) {
		svc, ledgerSvc, store := newTestServices(t)
		userID := fundedUser(t, ledgerSvc, 10)

		_, err := svc.Create(context.Background(), userID, decimal.NewFromInt(50), "USDT", testAddress)

		require.Error(t, err)
		assert.True(t, shared.IsDomainError(err, "INSUFFICIENT_BALANCE"))
		_, locked := balancesOf(t, store, userID)
		assert.True(t, locked.IsZero())

		requests, err := store.WithdrawalRepo().FindByUserID(context.Background(), userID, shared.DefaultFilter())
		require.NoError(t, err)
		assert.Empty(t, requests)
	})
}

// ============================================================
// Request processing
// ============================================================

func TestService_Process(t *testing.T) {
	t.Run("approval is a gate with no balance change", func(t *testing.T) {
		svc, ledgerSvc, store := newTestServices(t)
		userID := fundedUser(t, ledgerSvc, 100)
		req, err := svc.Create(context.Background(), userID, decimal.NewFromInt(50), "USDT", testAddress)
		require.NoError(t, err)

		processed, err := svc.Process(context.Background(), req.ID, withdrawal.StatusApproved, uuid.New())

		require.NoError(t, err)
		assert.Equal(t, withdrawal.StatusApproved, processed.Status)
		require.NotNil(t, processed.ProcessedAt)

		available, locked := balancesOf(t, store, userID)
		assert.True(t, available.Equal(decimal.NewFromInt(50)))
		assert.True(t, locked.Equal(decimal.NewFromInt(50)))
	})

	t.Run("rejection unlocks the reserved amount", func(t *testing.T) {
		svc, ledgerSvc, store := newTestServices(t)
		userID := fundedUser(t, ledgerSvc, 100)
		req, err := svc.Create(context.Background(), userID, decimal.NewFromInt(50), "USDT", testAddress)
		require.NoError(t, err)
		_, err = svc.Process(context.Background(), req.ID, withdrawal.StatusApproved, uuid.New())
		require.NoError(t, err)

		processed, err := svc.Process(context.Background(), req.ID, withdrawal.StatusRejected, uuid.New())

		require.NoError(t, err)
		assert.Equal(t, withdrawal.StatusRejected, processed.Status)

		available, locked := balancesOf(t, store, userID)
		assert.True(t, available.Equal(decimal.NewFromInt(100)))
		assert.True(t, locked.IsZero())
	})

	t.Run("sending debits the locked amount permanently", func(t *testing.T) {
		svc, ledgerSvc, store := newTestServices(t)
		userID := fundedUser(t, ledgerSvc, 100)
		req, err := svc.Create(context.Background(), userID, decimal.NewFromInt(50), "USDT", testAddress)
		require.NoError(t, err)

		processed, err := svc.Process(context.Background(), req.ID, withdrawal.StatusSent, uuid.New())

		require.NoError(t, err)
		assert.Equal(t, withdrawal.StatusSent, processed.Status)

		available, locked := balancesOf(t, store, userID)
		assert.True(t, available.Equal(decimal.NewFromInt(50)))
		assert.True(t, locked.IsZero())
	})

	t.Run("processing to the current status is idempotent", func(t *testing.T) {
		svc, ledgerSvc, store := newTestServices(t)
		userID := fundedUser(t, ledgerSvc, 100)
		req, err := svc.Create(context.Background(), userID, decimal.NewFromInt(50), "USDT", testAddress)
		require.NoError(t, err)
		_, err = svc.Process(context.Background(), req.ID, withdrawal.StatusSent, uuid.New())
		require.NoError(t, err)

		processed, err := svc.Process(context.Background(), req.ID, withdrawal.StatusSent, uuid.New())

		require.NoError(t, err)
		assert.Equal(t, withdrawal.StatusSent, processed.Status)

		// No second debit happened
		available, locked := balancesOf(t, store, userID)
		assert.True(t, available.Equal(decimal.NewFromInt(50)))
		assert.True(t, locked.IsZero())
	})

	t.Run("rejects transitions out of a terminal status", func(t *testing.T) {
		svc, ledgerSvc, _ := newTestServices(t)
		userID := fundedUser(t, ledgerSvc, 100)
		req, err := svc.Create(context.Background(), userID, decimal.NewFromInt(50), "USDT", testAddress)
		require.NoError(t, err)
		_, err = svc.Process(context.Background(), req.ID, withdrawal.StatusSent, uuid.New())
		require.NoError(t, err)

		_, err = svc.Process(context.Background(), req.ID, withdrawal.StatusRejected, uuid.New())

		require.Error(t, err)
		assert.True(t, shared.IsDomainError(err, "INVALID_WITHDRAWAL_STATE"))
	})

	t.Run("rejects pending as a target", func(t *testing.T) {
		svc, _, _ := newTestServices(t)

		_, err := svc.Process(context.Background(), uuid.New(), withdrawal.StatusPending, uuid.New())

		require.Error(t, err)
		assert.True(t, shared.IsDomainError(err, "INVALID_WITHDRAWAL_STATE"))
	})

	t.Run("a rejected request frees the tuple for a new one", func(t *testing.T) {
		svc, ledgerSvc, _ := newTestServices(t)
		userID := fundedUser(t, ledgerSvc, 100)
		req, err := svc.Create(context.Background(), userID, decimal.NewFromInt(50), "USDT", testAddress)
		require.NoError(t, err)
		_, err = svc.Process(context.Background(), req.ID, withdrawal.StatusRejected, uuid.New())
		require.NoError(t, err)

		_, err = svc.Create(context.Background(), userID, decimal.NewFromInt(25), "USDT", testAddress)

		require.NoError(t, err)
	})
}
