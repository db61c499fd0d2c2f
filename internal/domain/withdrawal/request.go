package withdrawal

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/peertrade/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Status represents the status of a withdrawal request
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusSent     Status = "sent"
)

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsValid returns true if the status is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusSent:
		return true
	}
	return false
}

// CanTransitionTo checks if the status can transition to the target status
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusPending:
		return target == StatusApproved || target == StatusRejected || target == StatusSent
	case StatusApproved:
		return target == StatusRejected || target == StatusSent
	case StatusRejected, StatusSent:
		return false // Terminal states
	}
	return false
}

// IsTerminal returns true if no further transitions are possible
func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusSent
}

// Request represents a withdrawal of funds to an external address. The
// requested amount stays locked on the user's wallet until the request is
// rejected (unlock) or sent (funds leave the system).
type Request struct {
	shared.BaseAggregateRoot
	UserID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	Amount      decimal.Decimal `gorm:"type:decimal(18,8);not null"`
	Currency    string          `gorm:"type:varchar(10);not null"`
	Address     string          `gorm:"type:varchar(128);not null"`
	Status      Status          `gorm:"type:varchar(20);not null;index"`
	ProcessedAt *time.Time
	Metadata    string `gorm:"type:jsonb"`
}

// TableName returns the table name for GORM
func (Request) TableName() string {
	return "withdrawal_requests"
}

// NewRequest creates a new pending withdrawal request
func NewRequest(userID uuid.UUID, amount decimal.Decimal, currency, address string) (*Request, error) {
	if userID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_USER_ID", "User ID cannot be empty")
	}
	if amount.IsNegative() || amount.IsZero() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Withdrawal amount must be positive")
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return nil, shared.NewDomainError("INVALID_REFERENCE", "Currency cannot be empty")
	}
	if err := validateAddress(address); err != nil {
		return nil, err
	}

	return &Request{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		UserID:            userID,
		Amount:            amount,
		Currency:          currency,
		Address:           strings.TrimSpace(address),
		Status:            StatusPending,
		Metadata:          "{}",
	}, nil
}

// Approve gates the request for sending. No balance change happens here.
func (r *Request) Approve() error {
	return r.transition(StatusApproved)
}

// Reject declines the request. The caller unlocks the reserved amount.
func (r *Request) Reject() error {
	return r.transition(StatusRejected)
}

// MarkSent records that the funds left the system. The caller removes the
// reserved amount from the locked balance permanently.
func (r *Request) MarkSent() error {
	return r.transition(StatusSent)
}

func (r *Request) transition(target Status) error {
	if !r.Status.CanTransitionTo(target) {
		return shared.NewDomainError("INVALID_WITHDRAWAL_STATE",
			fmt.Sprintf("Cannot move withdrawal from %s to %s", r.Status, target))
	}
	now := time.Now()
	r.Status = target
	r.ProcessedAt = &now
	r.UpdatedAt = now
	return nil
}

// IsPending returns true if the request awaits processing
func (r *Request) IsPending() bool {
	return r.Status == StatusPending
}

func validateAddress(address string) error {
	address = strings.TrimSpace(address)
	if len(address) < 8 || len(address) > 128 {
		return shared.NewDomainError("INVALID_WITHDRAWAL_ADDRESS",
			"Withdrawal address must be between 8 and 128 characters")
	}
	for _, c := range address {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')) {
			return shared.NewDomainError("INVALID_WITHDRAWAL_ADDRESS",
				"Withdrawal address contains invalid characters")
		}
	}
	return nil
}
