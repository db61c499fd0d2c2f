package wallet

import (
	"strings"

	"github.com/google/uuid"
	"github.com/peertrade/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Wallet represents a user's funds split into an available and a locked
// sub-balance. It is the aggregate root for all balance mutations; both
// sub-balances are non-negative at all times.
type Wallet struct {
	shared.BaseAggregateRoot
	UserID           uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex"`
	Username         string          `gorm:"type:varchar(100)"`
	AvailableBalance decimal.Decimal `gorm:"type:decimal(18,8);not null;default:0"`
	LockedBalance    decimal.Decimal `gorm:"type:decimal(18,8);not null;default:0"`
}

// TableName returns the table name for GORM
func (Wallet) TableName() string {
	return "wallets"
}

// NewWallet creates a new wallet seeded with an initial available balance
func NewWallet(userID uuid.UUID, username string, initialBalance decimal.Decimal) (*Wallet, error) {
	if userID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_USER_ID", "User ID cannot be empty")
	}
	if initialBalance.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Initial balance cannot be negative")
	}

	return &Wallet{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		UserID:            userID,
		Username:          strings.TrimSpace(username),
		AvailableBalance:  initialBalance,
		LockedBalance:     decimal.Zero,
	}, nil
}

// UpdateUsername refreshes the display name. Balances are never touched here.
func (w *Wallet) UpdateUsername(username string) {
	username = strings.TrimSpace(username)
	if username != "" {
		w.Username = username
	}
}

// CreditAvailable adds amount to the available balance
func (w *Wallet) CreditAvailable(amount decimal.Decimal) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	w.AvailableBalance = w.AvailableBalance.Add(amount)
	return nil
}

// DebitAvailable subtracts amount from the available balance
func (w *Wallet) DebitAvailable(amount decimal.Decimal) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	if w.AvailableBalance.LessThan(amount) {
		return shared.NewDomainError("INSUFFICIENT_BALANCE", "Insufficient available balance")
	}
	w.AvailableBalance = w.AvailableBalance.Sub(amount)
	return nil
}

// LockFunds moves amount from available to locked
func (w *Wallet) LockFunds(amount decimal.Decimal) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	if w.AvailableBalance.LessThan(amount) {
		return shared.NewDomainError("INSUFFICIENT_BALANCE", "Insufficient available balance to lock")
	}
	w.AvailableBalance = w.AvailableBalance.Sub(amount)
	w.LockedBalance = w.LockedBalance.Add(amount)
	return nil
}

// UnlockFunds moves amount from locked back to available
func (w *Wallet) UnlockFunds(amount decimal.Decimal) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	if w.LockedBalance.LessThan(amount) {
		return shared.NewDomainError("INSUFFICIENT_LOCKED_BALANCE", "Insufficient locked balance to unlock")
	}
	w.LockedBalance = w.LockedBalance.Sub(amount)
	w.AvailableBalance = w.AvailableBalance.Add(amount)
	return nil
}

// DebitLocked removes amount from the locked balance without crediting
// available. Used when locked funds leave the wallet entirely (settlement
// of a trade release, withdrawal sent).
func (w *Wallet) DebitLocked(amount decimal.Decimal) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	if w.LockedBalance.LessThan(amount) {
		return shared.NewDomainError("INSUFFICIENT_LOCKED_BALANCE", "Insufficient locked balance")
	}
	w.LockedBalance = w.LockedBalance.Sub(amount)
	return nil
}

// TotalBalance returns available + locked
func (w *Wallet) TotalBalance() decimal.Decimal {
	return w.AvailableBalance.Add(w.LockedBalance)
}

// HasAvailable returns true if the available balance covers amount
func (w *Wallet) HasAvailable(amount decimal.Decimal) bool {
	return w.AvailableBalance.GreaterThanOrEqual(amount)
}

// HasLocked returns true if the locked balance covers amount
func (w *Wallet) HasLocked(amount decimal.Decimal) bool {
	return w.LockedBalance.GreaterThanOrEqual(amount)
}

func validateAmount(amount decimal.Decimal) error {
	if amount.IsNegative() || amount.IsZero() {
		return shared.NewDomainError("INVALID_AMOUNT", "Amount must be positive")
	}
	return nil
}
