package wallet

import (
	"github.com/google/uuid"
	"github.com/peertrade/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// EntryType represents the type of a ledger entry
type EntryType string

const (
	// EntryTypeDeposit represents external funds entering a wallet
	EntryTypeDeposit EntryType = "deposit"
	// EntryTypeWithdrawal represents funds leaving the system
	EntryTypeWithdrawal EntryType = "withdrawal"
	// EntryTypeTradeBuy represents the buyer side of an escrow settlement
	EntryTypeTradeBuy EntryType = "trade_buy"
	// EntryTypeTradeSell represents the seller side of an escrow trade
	EntryTypeTradeSell EntryType = "trade_sell"
	// EntryTypeFee represents a platform fee charge
	EntryTypeFee EntryType = "fee"
	// EntryTypeRefund represents funds returned after a cancelled operation
	EntryTypeRefund EntryType = "refund"
	// EntryTypeAdminAdjustment represents a privileged manual correction
	EntryTypeAdminAdjustment EntryType = "admin_adjustment"
)

// String returns the string representation of EntryType
func (t EntryType) String() string {
	return string(t)
}

// IsValid returns true if the entry type is valid
func (t EntryType) IsValid() bool {
	switch t {
	case EntryTypeDeposit,
		EntryTypeWithdrawal,
		EntryTypeTradeBuy,
		EntryTypeTradeSell,
		EntryTypeFee,
		EntryTypeRefund,
		EntryTypeAdminAdjustment:
		return true
	}
	return false
}

// LedgerEntry represents an immutable record of one wallet balance mutation.
// Once created, entries cannot be modified. Replaying a user's entries in
// creation order reconstructs the full balance history.
type LedgerEntry struct {
	shared.BaseEntity
	UserID          uuid.UUID       `gorm:"type:uuid;not null;index"`
	Type            EntryType       `gorm:"type:varchar(30);not null"`
	Amount          decimal.Decimal `gorm:"type:decimal(18,8);not null"` // Always positive, direction determined by type
	Currency        string          `gorm:"type:varchar(10);not null"`
	BeforeAvailable decimal.Decimal `gorm:"type:decimal(18,8);not null"`
	AfterAvailable  decimal.Decimal `gorm:"type:decimal(18,8);not null"`
	BeforeLocked    decimal.Decimal `gorm:"type:decimal(18,8);not null"`
	AfterLocked     decimal.Decimal `gorm:"type:decimal(18,8);not null"`
	ReferenceID     string          `gorm:"type:varchar(100);not null;index"` // Correlates paired entries of one logical transfer
	Metadata        string          `gorm:"type:jsonb"`
}

// TableName returns the table name for GORM
func (LedgerEntry) TableName() string {
	return "ledger_entries"
}

// NewLedgerEntry creates a new ledger entry capturing the before and after
// balance snapshots of a single wallet mutation
func NewLedgerEntry(
	userID uuid.UUID,
	entryType EntryType,
	amount decimal.Decimal,
	before BalanceSnapshot,
	after BalanceSnapshot,
	ref Reference,
) (*LedgerEntry, error) {
	if userID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_USER_ID", "User ID cannot be empty")
	}
	if !entryType.IsValid() {
		return nil, shared.NewDomainError("INVALID_REFERENCE", "Invalid ledger entry type")
	}
	if amount.IsNegative() || amount.IsZero() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Amount must be positive")
	}
	if before.Available.IsNegative() || before.Locked.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Balance before cannot be negative")
	}
	if after.Available.IsNegative() || after.Locked.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Balance after cannot be negative")
	}
	if err := ref.Validate(); err != nil {
		return nil, err
	}

	return &LedgerEntry{
		BaseEntity:      shared.NewBaseEntity(),
		UserID:          userID,
		Type:            entryType,
		Amount:          amount,
		Currency:        ref.Currency,
		BeforeAvailable: before.Available,
		AfterAvailable:  after.Available,
		BeforeLocked:    before.Locked,
		AfterLocked:     after.Locked,
		ReferenceID:     ref.ID,
		Metadata:        ref.MetadataJSON(),
	}, nil
}

// SnapshotOf captures a wallet's current balances
func SnapshotOf(w *Wallet) BalanceSnapshot {
	return BalanceSnapshot{
		Available: w.AvailableBalance,
		Locked:    w.LockedBalance,
	}
}

// BalanceSnapshot is a point-in-time view of a wallet's sub-balances
type BalanceSnapshot struct {
	Available decimal.Decimal
	Locked    decimal.Decimal
}

// AvailableChange returns the net change to the available balance
func (e *LedgerEntry) AvailableChange() decimal.Decimal {
	return e.AfterAvailable.Sub(e.BeforeAvailable)
}

// LockedChange returns the net change to the locked balance
func (e *LedgerEntry) LockedChange() decimal.Decimal {
	return e.AfterLocked.Sub(e.BeforeLocked)
}

// TotalChange returns the net change to available + locked. Zero for pure
// lock/unlock moves, non-zero when funds enter or leave the wallet.
func (e *LedgerEntry) TotalChange() decimal.Decimal {
	return e.AvailableChange().Add(e.LockedChange())
}

// IsConserving returns true if the entry only moved funds between the
// available and locked sub-balances of the same wallet
func (e *LedgerEntry) IsConserving() bool {
	return e.TotalChange().IsZero()
}
