package escrow

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAd(t *testing.T) {
	t.Run("creates active ad with full backing lock", func(t *testing.T) {
		owner := uuid.New()

		ad, err := NewAd(owner, "usdt", decimal.NewFromInt(1), decimal.NewFromInt(50),
			decimal.NewFromInt(5), decimal.NewFromInt(100))

		require.NoError(t, err)
		assert.Equal(t, owner, ad.CreatedByUserID)
		assert.Equal(t, "USDT", ad.Asset)
		assert.True(t, ad.AvailableAmount.Equal(decimal.NewFromInt(50)))
		assert.True(t, ad.LockedAmount.Equal(decimal.NewFromInt(50)))
		assert.True(t, ad.IsActive())
	})

	t.Run("rejects empty asset", func(t *testing.T) {
		_, err := NewAd(uuid.New(), " ", decimal.NewFromInt(1), decimal.NewFromInt(50),
			decimal.Zero, decimal.Zero)
		require.Error(t, err)
	})

	t.Run("rejects zero amount", func(t *testing.T) {
		_, err := NewAd(uuid.New(), "USDT", decimal.NewFromInt(1), decimal.Zero,
			decimal.Zero, decimal.Zero)
		require.Error(t, err)
	})

	t.Run("rejects max limit below min limit", func(t *testing.T) {
		_, err := NewAd(uuid.New(), "USDT", decimal.NewFromInt(1), decimal.NewFromInt(50),
			decimal.NewFromInt(100), decimal.NewFromInt(10))
		require.Error(t, err)
	})
}

func TestAd_ValidateOrderAmount(t *testing.T) {
	t.Run("accepts amount within limits and liquidity", func(t *testing.T) {
		ad := newTestAd(t)
		assert.NoError(t, ad.ValidateOrderAmount(decimal.NewFromInt(30)))
	})

	t.Run("rejects amount above liquidity", func(t *testing.T) {
		ad := newTestAd(t)

		err := ad.ValidateOrderAmount(decimal.NewFromInt(51))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "liquidity")
	})

	t.Run("rejects amount below minimum limit", func(t *testing.T) {
		ad := newTestAd(t)
		err := ad.ValidateOrderAmount(decimal.NewFromInt(1))
		require.Error(t, err)
	})

	t.Run("rejects disabled ad", func(t *testing.T) {
		ad := newTestAd(t)
		ad.Disable()

		err := ad.ValidateOrderAmount(decimal.NewFromInt(30))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "not active")
	})
}

func TestAd_ReserveLiquidity(t *testing.T) {
	t.Run("earmarks liquidity without touching the backing lock", func(t *testing.T) {
		ad := newTestAd(t)

		err := ad.ReserveLiquidity(decimal.NewFromInt(30))

		require.NoError(t, err)
		assert.True(t, ad.AvailableAmount.Equal(decimal.NewFromInt(20)))
		assert.True(t, ad.LockedAmount.Equal(decimal.NewFromInt(50)))
	})

	t.Run("fails beyond remaining liquidity", func(t *testing.T) {
		ad := newTestAd(t)
		require.NoError(t, ad.ReserveLiquidity(decimal.NewFromInt(30)))

		err := ad.ReserveLiquidity(decimal.NewFromInt(21))
		require.Error(t, err)
	})
}

func TestAd_RestoreLiquidity(t *testing.T) {
	t.Run("returns liquidity after a cancelled order", func(t *testing.T) {
		ad := newTestAd(t)
		require.NoError(t, ad.ReserveLiquidity(decimal.NewFromInt(30)))

		err := ad.RestoreLiquidity(decimal.NewFromInt(30))

		require.NoError(t, err)
		assert.True(t, ad.AvailableAmount.Equal(decimal.NewFromInt(50)))
	})

	t.Run("cannot exceed the backing lock", func(t *testing.T) {
		ad := newTestAd(t)

		err := ad.RestoreLiquidity(decimal.NewFromInt(1))

		require.Error(t, err)
		assert.True(t, ad.AvailableAmount.Equal(decimal.NewFromInt(50)))
	})
}

func TestAd_ConsumeLock(t *testing.T) {
	t.Run("reduces the backing lock after settlement", func(t *testing.T) {
		ad := newTestAd(t)
		require.NoError(t, ad.ReserveLiquidity(decimal.NewFromInt(30)))

		err := ad.ConsumeLock(decimal.NewFromInt(30))

		require.NoError(t, err)
		assert.True(t, ad.LockedAmount.Equal(decimal.NewFromInt(20)))
		assert.True(t, ad.AvailableAmount.Equal(decimal.NewFromInt(20)))
	})

	t.Run("cannot consume more than the lock holds", func(t *testing.T) {
		ad := newTestAd(t)
		err := ad.ConsumeLock(decimal.NewFromInt(51))
		require.Error(t, err)
	})
}

func newTestAd(t *testing.T) *Ad {
	t.Helper()
	ad, err := NewAd(uuid.New(), "USDT", decimal.NewFromInt(1), decimal.NewFromInt(50),
		decimal.NewFromInt(5), decimal.NewFromInt(100))
	require.NoError(t, err)
	return ad
}
