package withdrawal

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus(t *testing.T) {
	t.Run("CanTransitionTo follows the workflow", func(t *testing.T) {
		assert.True(t, StatusPending.CanTransitionTo(StatusApproved))
		assert.True(t, StatusPending.CanTransitionTo(StatusRejected))
		assert.True(t, StatusPending.CanTransitionTo(StatusSent))
		assert.True(t, StatusApproved.CanTransitionTo(StatusRejected))
		assert.True(t, StatusApproved.CanTransitionTo(StatusSent))
	})

	t.Run("terminal states allow no transitions", func(t *testing.T) {
		for _, from := range []Status{StatusRejected, StatusSent} {
			assert.True(t, from.IsTerminal())
			for _, to := range []Status{StatusPending, StatusApproved, StatusRejected, StatusSent} {
				assert.False(t, from.CanTransitionTo(to))
			}
		}
	})

	t.Run("approved cannot return to pending", func(t *testing.T) {
		assert.False(t, StatusApproved.CanTransitionTo(StatusPending))
	})
}

func TestNewRequest(t *testing.T) {
	t.Run("creates pending request", func(t *testing.T) {
		userID := uuid.New()

		req, err := NewRequest(userID, decimal.NewFromInt(50), "usdt", "TXk3abc99def12345")

		require.NoError(t, err)
		assert.Equal(t, userID, req.UserID)
		assert.Equal(t, "USDT", req.Currency)
		assert.Equal(t, StatusPending, req.Status)
		assert.True(t, req.IsPending())
		assert.Nil(t, req.ProcessedAt)
	})

	t.Run("rejects zero amount", func(t *testing.T) {
		_, err := NewRequest(uuid.New(), decimal.Zero, "USDT", "TXk3abc99def12345")
		require.Error(t, err)
	})

	t.Run("rejects short address", func(t *testing.T) {
		_, err := NewRequest(uuid.New(), decimal.NewFromInt(50), "USDT", "abc")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "address")
	})

	t.Run("rejects address with invalid characters", func(t *testing.T) {
		_, err := NewRequest(uuid.New(), decimal.NewFromInt(50), "USDT", "TXk3abc99def!2345")
		require.Error(t, err)
	})

	t.Run("rejects empty currency", func(t *testing.T) {
		_, err := NewRequest(uuid.New(), decimal.NewFromInt(50), " ", "TXk3abc99def12345")
		require.Error(t, err)
	})
}

func TestRequest_Transitions(t *testing.T) {
	t.Run("pending to approved to sent", func(t *testing.T) {
		req := newTestRequest(t)

		require.NoError(t, req.Approve())
		assert.Equal(t, StatusApproved, req.Status)
		require.NotNil(t, req.ProcessedAt)

		require.NoError(t, req.MarkSent())
		assert.Equal(t, StatusSent, req.Status)
	})

	t.Run("approved can still be rejected", func(t *testing.T) {
		req := newTestRequest(t)
		require.NoError(t, req.Approve())

		require.NoError(t, req.Reject())
		assert.Equal(t, StatusRejected, req.Status)
	})

	t.Run("pending can be sent directly", func(t *testing.T) {
		req := newTestRequest(t)
		require.NoError(t, req.MarkSent())
	})

	t.Run("sent request cannot be rejected", func(t *testing.T) {
		req := newTestRequest(t)
		require.NoError(t, req.MarkSent())

		err := req.Reject()

		require.Error(t, err)
		assert.Contains(t, err.Error(), "Cannot move withdrawal")
	})

	t.Run("rejected request cannot be approved", func(t *testing.T) {
		req := newTestRequest(t)
		require.NoError(t, req.Reject())

		err := req.Approve()
		require.Error(t, err)
	})
}

func newTestRequest(t *testing.T) *Request {
	t.Helper()
	req, err := NewRequest(uuid.New(), decimal.NewFromInt(50), "USDT", "TXk3abc99def12345")
	require.NoError(t, err)
	return req
}
