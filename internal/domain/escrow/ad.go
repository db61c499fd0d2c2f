package escrow

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/peertrade/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// AdStatus represents the status of a liquidity ad
type AdStatus string

const (
	AdStatusActive   AdStatus = "active"
	AdStatusDisabled AdStatus = "disabled"
)

// String returns the string representation of AdStatus
func (s AdStatus) String() string {
	return string(s)
}

// Ad is a liquidity offer published by a merchant. Its AvailableAmount is a
// reservation carved out of the owner's locked wallet balance, not a second
// independent balance: it never exceeds what the ad-creation lock holds.
type Ad struct {
	shared.BaseAggregateRoot
	CreatedByUserID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Asset           string          `gorm:"type:varchar(20);not null"`
	Price           decimal.Decimal `gorm:"type:decimal(18,8);not null"`
	AvailableAmount decimal.Decimal `gorm:"type:decimal(18,8);not null"`
	LockedAmount    decimal.Decimal `gorm:"type:decimal(18,8);not null"` // Total locked on the owner's wallet for this ad
	MinLimit        decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	MaxLimit        decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Status          AdStatus        `gorm:"type:varchar(20);not null;index"`
}

// TableName returns the table name for GORM
func (Ad) TableName() string {
	return "escrow_ads"
}

// NewAd creates a new active ad backing amount with the owner's locked funds
func NewAd(
	createdBy uuid.UUID,
	asset string,
	price, amount, minLimit, maxLimit decimal.Decimal,
) (*Ad, error) {
	if createdBy == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_USER_ID", "Ad owner ID cannot be empty")
	}
	asset = strings.ToUpper(strings.TrimSpace(asset))
	if asset == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Asset cannot be empty")
	}
	if price.IsNegative() || price.IsZero() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Price must be positive")
	}
	if amount.IsNegative() || amount.IsZero() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Ad amount must be positive")
	}
	if minLimit.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Minimum limit cannot be negative")
	}
	if maxLimit.IsPositive() && maxLimit.LessThan(minLimit) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Maximum limit cannot be below minimum limit")
	}

	return &Ad{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		CreatedByUserID:   createdBy,
		Asset:             asset,
		Price:             price,
		AvailableAmount:   amount,
		LockedAmount:      amount,
		MinLimit:          minLimit,
		MaxLimit:          maxLimit,
		Status:            AdStatusActive,
	}, nil
}

// ValidateOrderAmount checks an escrow order amount against the ad's limits
// and remaining liquidity
func (a *Ad) ValidateOrderAmount(amount decimal.Decimal) error {
	if !a.IsActive() {
		return shared.NewDomainError("AD_NOT_AVAILABLE", "Ad is not active")
	}
	if amount.IsNegative() || amount.IsZero() {
		return shared.NewDomainError("INVALID_AMOUNT", "Order amount must be positive")
	}
	fiat := amount.Mul(a.Price)
	if fiat.LessThan(a.MinLimit) {
		return shared.NewDomainError("INVALID_AMOUNT",
			fmt.Sprintf("Order is below the ad minimum limit of %s", a.MinLimit))
	}
	if a.MaxLimit.IsPositive() && fiat.GreaterThan(a.MaxLimit) {
		return shared.NewDomainError("INVALID_AMOUNT",
			fmt.Sprintf("Order exceeds the ad maximum limit of %s", a.MaxLimit))
	}
	if a.AvailableAmount.LessThan(amount) {
		return shared.NewDomainError("INSUFFICIENT_AD_LIQUIDITY",
			"Order amount exceeds the ad's available liquidity")
	}
	return nil
}

// ReserveLiquidity earmarks amount of the ad's liquidity for a new order.
// The owner's wallet lock already covers it from ad creation, so no wallet
// interaction happens here.
func (a *Ad) ReserveLiquidity(amount decimal.Decimal) error {
	if err := a.ValidateOrderAmount(amount); err != nil {
		return err
	}
	a.AvailableAmount = a.AvailableAmount.Sub(amount)
	return nil
}

// RestoreLiquidity returns amount to the ad's available liquidity after a
// cancelled or expired order
func (a *Ad) RestoreLiquidity(amount decimal.Decimal) error {
	if amount.IsNegative() || amount.IsZero() {
		return shared.NewDomainError("INVALID_AMOUNT", "Amount must be positive")
	}
	restored := a.AvailableAmount.Add(amount)
	if restored.GreaterThan(a.LockedAmount) {
		return shared.NewDomainError("INVALID_STATE",
			"Restored liquidity would exceed the ad's backing lock")
	}
	a.AvailableAmount = restored
	return nil
}

// ConsumeLock reduces the ad's backing lock after a released order settled
// part of the escrowed funds to the buyer
func (a *Ad) ConsumeLock(amount decimal.Decimal) error {
	if amount.IsNegative() || amount.IsZero() {
		return shared.NewDomainError("INVALID_AMOUNT", "Amount must be positive")
	}
	if a.LockedAmount.LessThan(amount) {
		return shared.NewDomainError("INVALID_STATE",
			"Settled amount exceeds the ad's backing lock")
	}
	a.LockedAmount = a.LockedAmount.Sub(amount)
	return nil
}

// Disable takes the ad off the market. Remaining liquidity stays backed by
// the owner's lock until explicitly unwound.
func (a *Ad) Disable() {
	a.Status = AdStatusDisabled
}

// IsActive returns true if the ad can accept new orders
func (a *Ad) IsActive() bool {
	return a.Status == AdStatusActive
}

// IsOwnedBy returns true if the user created this ad
func (a *Ad) IsOwnedBy(userID uuid.UUID) bool {
	return a.CreatedByUserID == userID
}
