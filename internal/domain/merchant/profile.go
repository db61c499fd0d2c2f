package merchant

import (
	"time"

	"github.com/google/uuid"
	"github.com/peertrade/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ProfileStatus represents the status of a merchant profile
type ProfileStatus string

const (
	ProfileStatusActive   ProfileStatus = "active"
	ProfileStatusInactive ProfileStatus = "inactive"
)

// String returns the string representation of ProfileStatus
func (s ProfileStatus) String() string {
	return string(s)
}

// Profile represents a user's merchant standing. Activation locks a standing
// deposit on the user's wallet; the deposit stays locked while the profile
// is active.
type Profile struct {
	shared.BaseAggregateRoot
	UserID        uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex"`
	DepositAmount decimal.Decimal `gorm:"type:decimal(18,8);not null"`
	Status        ProfileStatus   `gorm:"type:varchar(20);not null"`
	ActivatedAt   time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (Profile) TableName() string {
	return "merchant_profiles"
}

// NewProfile creates an active merchant profile backed by a deposit
func NewProfile(userID uuid.UUID, depositAmount decimal.Decimal) (*Profile, error) {
	if userID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_USER_ID", "User ID cannot be empty")
	}
	if depositAmount.IsNegative() || depositAmount.IsZero() {
		return nil, shared.NewDomainError("MERCHANT_DEPOSIT_REQUIRED",
			"Merchant activation requires a positive deposit")
	}

	return &Profile{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		UserID:            userID,
		DepositAmount:     depositAmount,
		Status:            ProfileStatusActive,
		ActivatedAt:       time.Now(),
	}, nil
}

// Deactivate retires the merchant profile. The caller unlocks the deposit.
func (p *Profile) Deactivate() error {
	if p.Status != ProfileStatusActive {
		return shared.NewDomainError("INVALID_STATE", "Merchant profile is not active")
	}
	p.Status = ProfileStatusInactive
	p.UpdatedAt = time.Now()
	return nil
}

// Reactivate restores a retired profile with a fresh deposit. The caller
// locks the new deposit.
func (p *Profile) Reactivate(depositAmount decimal.Decimal) error {
	if p.Status == ProfileStatusActive {
		return shared.NewDomainError("MERCHANT_ALREADY_ACTIVE", "Merchant profile is already active")
	}
	if depositAmount.IsNegative() || depositAmount.IsZero() {
		return shared.NewDomainError("MERCHANT_DEPOSIT_REQUIRED",
			"Merchant activation requires a positive deposit")
	}
	p.DepositAmount = depositAmount
	p.Status = ProfileStatusActive
	p.ActivatedAt = time.Now()
	p.UpdatedAt = time.Now()
	return nil
}

// IsActive returns true if the merchant may publish ads
func (p *Profile) IsActive() bool {
	return p.Status == ProfileStatusActive
}
