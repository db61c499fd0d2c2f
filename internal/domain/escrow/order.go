package escrow

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/peertrade/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// OrderStatus represents the status of an escrow order
type OrderStatus string

const (
	OrderStatusCreated     OrderStatus = "CREATED"
	OrderStatusPaymentSent OrderStatus = "PAYMENT_SENT"
	OrderStatusReleased    OrderStatus = "RELEASED"
	OrderStatusCancelled   OrderStatus = "CANCELLED"
	OrderStatusExpired     OrderStatus = "EXPIRED"
	OrderStatusDisputed    OrderStatus = "DISPUTED"
)

// String returns the string representation of OrderStatus
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is valid
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusCreated,
		OrderStatusPaymentSent,
		OrderStatusReleased,
		OrderStatusCancelled,
		OrderStatusExpired,
		OrderStatusDisputed:
		return true
	}
	return false
}

// CanTransitionTo checks if the status can transition to the target status
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	switch s {
	case OrderStatusCreated:
		return target == OrderStatusPaymentSent ||
			target == OrderStatusReleased ||
			target == OrderStatusCancelled ||
			target == OrderStatusExpired ||
			target == OrderStatusDisputed
	case OrderStatusPaymentSent:
		return target == OrderStatusReleased ||
			target == OrderStatusCancelled ||
			target == OrderStatusDisputed
	case OrderStatusDisputed:
		return target == OrderStatusReleased || target == OrderStatusCancelled
	case OrderStatusReleased, OrderStatusCancelled, OrderStatusExpired:
		return false // Terminal states
	}
	return false
}

// IsActive returns true if the order still holds escrowed funds
func (s OrderStatus) IsActive() bool {
	switch s {
	case OrderStatusCreated, OrderStatusPaymentSent, OrderStatusDisputed:
		return true
	}
	return false
}

// IsTerminal returns true if no further transitions are possible
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusReleased, OrderStatusCancelled, OrderStatusExpired:
		return true
	}
	return false
}

// OrderMessage is one entry in an order's append-only conversation log
type OrderMessage struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	OrderID   uuid.UUID `gorm:"type:uuid;not null;index"`
	SenderID  uuid.UUID `gorm:"type:uuid"` // Nil for system messages
	Body      string    `gorm:"type:text;not null"`
	System    bool      `gorm:"not null;default:false"`
	CreatedAt time.Time
}

// TableName returns the table name for GORM
func (OrderMessage) TableName() string {
	return "escrow_order_messages"
}

// Order represents one peer-to-peer escrow trade. It holds the seller's
// asset locked until the buyer confirms payment and the seller releases.
type Order struct {
	shared.BaseAggregateRoot
	Reference    string          `gorm:"type:varchar(50);not null;uniqueIndex"`
	AdID         uuid.UUID       `gorm:"type:uuid;not null;index"`
	SellerUserID uuid.UUID       `gorm:"type:uuid;not null;index"`
	BuyerUserID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	Asset        string          `gorm:"type:varchar(20);not null"`
	Price        decimal.Decimal `gorm:"type:decimal(18,8);not null"`
	EscrowAmount decimal.Decimal `gorm:"type:decimal(18,8);not null"`
	FiatAmount   decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Status       OrderStatus     `gorm:"type:varchar(20);not null;index"`
	ExpiresAt    time.Time       `gorm:"not null;index"`
	Messages     []OrderMessage  `gorm:"foreignKey:OrderID"`
}

// TableName returns the table name for GORM
func (Order) TableName() string {
	return "escrow_orders"
}

// NewOrder creates a new escrow order in CREATED status
func NewOrder(
	ad *Ad,
	buyerUserID uuid.UUID,
	escrowAmount decimal.Decimal,
	expiresAt time.Time,
) (*Order, error) {
	if ad == nil {
		return nil, shared.NewDomainError("AD_NOT_AVAILABLE", "Ad cannot be nil")
	}
	if buyerUserID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_USER_ID", "Buyer ID cannot be empty")
	}
	if buyerUserID == ad.CreatedByUserID {
		return nil, shared.NewDomainError("FORBIDDEN", "Buyer cannot trade against their own ad")
	}
	if escrowAmount.IsNegative() || escrowAmount.IsZero() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Escrow amount must be positive")
	}
	if expiresAt.IsZero() {
		return nil, shared.NewDomainError("INVALID_REFERENCE", "Expiry time must be set")
	}

	order := &Order{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		AdID:              ad.ID,
		SellerUserID:      ad.CreatedByUserID,
		BuyerUserID:       buyerUserID,
		Asset:             ad.Asset,
		Price:             ad.Price,
		EscrowAmount:      escrowAmount,
		FiatAmount:        escrowAmount.Mul(ad.Price).Round(2),
		Status:            OrderStatusCreated,
	}
	order.Reference = generateOrderReference(order.ID)
	order.ExpiresAt = expiresAt

	order.AddDomainEvent(NewOrderCreatedEvent(order))

	return order, nil
}

// MarkPaid records the buyer's payment confirmation
func (o *Order) MarkPaid(actor uuid.UUID) error {
	if actor != o.BuyerUserID {
		return shared.NewDomainError("FORBIDDEN", "Only the buyer may mark the order paid")
	}
	if o.Status != OrderStatusCreated {
		return shared.NewDomainError("INVALID_ORDER_STATUS",
			fmt.Sprintf("Cannot mark order paid in %s status", o.Status))
	}

	o.Status = OrderStatusPaymentSent
	o.UpdatedAt = time.Now()
	o.AppendSystemMessage("Buyer marked payment as sent")

	o.AddDomainEvent(NewOrderPaymentSentEvent(o))

	return nil
}

// Release settles the order. A CREATED order is treated as already paid
// for degraded flows where the payment confirmation never arrived.
func (o *Order) Release(actor uuid.UUID) error {
	if actor != o.SellerUserID {
		return shared.NewDomainError("FORBIDDEN", "Only the seller may release the order")
	}
	if !o.Status.CanTransitionTo(OrderStatusReleased) {
		return shared.NewDomainError("INVALID_ORDER_STATUS",
			fmt.Sprintf("Cannot release order in %s status", o.Status))
	}

	o.Status = OrderStatusReleased
	o.UpdatedAt = time.Now()
	o.AppendSystemMessage("Seller released escrowed funds")

	o.AddDomainEvent(NewOrderReleasedEvent(o))

	return nil
}

// Cancel moves the order to CANCELLED or EXPIRED. EXPIRED is reserved for
// the time-driven sweep; user-initiated cancellation uses CANCELLED.
func (o *Order) Cancel(target OrderStatus) error {
	if target != OrderStatusCancelled && target != OrderStatusExpired {
		return shared.NewDomainError("INVALID_ORDER_STATUS",
			fmt.Sprintf("%s is not a cancellation status", target))
	}
	if !o.Status.CanTransitionTo(target) {
		return shared.NewDomainError("INVALID_ORDER_STATUS",
			fmt.Sprintf("Cannot cancel order in %s status", o.Status))
	}

	o.Status = target
	o.UpdatedAt = time.Now()
	if target == OrderStatusExpired {
		o.AppendSystemMessage("Order expired without payment")
	} else {
		o.AppendSystemMessage("Order cancelled")
	}

	o.AddDomainEvent(NewOrderCancelledEvent(o))

	return nil
}

// Dispute freezes the order for manual resolution. Either participant may
// raise a dispute; no funds move.
func (o *Order) Dispute(actor uuid.UUID) error {
	if !o.IsParticipant(actor) {
		return shared.NewDomainError("FORBIDDEN", "Only the buyer or seller may dispute the order")
	}
	if !o.Status.CanTransitionTo(OrderStatusDisputed) {
		return shared.NewDomainError("INVALID_ORDER_STATUS",
			fmt.Sprintf("Cannot dispute order in %s status", o.Status))
	}

	o.Status = OrderStatusDisputed
	o.UpdatedAt = time.Now()
	o.AppendSystemMessage("Order flagged for dispute resolution")

	o.AddDomainEvent(NewOrderDisputedEvent(o, actor))

	return nil
}

// AppendMessage appends a participant message to the conversation log
func (o *Order) AppendMessage(sender uuid.UUID, body string) error {
	if !o.IsParticipant(sender) {
		return shared.NewDomainError("FORBIDDEN", "Only participants may post messages")
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return shared.NewDomainError("INVALID_INPUT", "Message body cannot be empty")
	}
	o.Messages = append(o.Messages, OrderMessage{
		ID:        uuid.New(),
		OrderID:   o.ID,
		SenderID:  sender,
		Body:      body,
		CreatedAt: time.Now(),
	})
	return nil
}

// AppendSystemMessage appends a system-generated message
func (o *Order) AppendSystemMessage(body string) {
	o.Messages = append(o.Messages, OrderMessage{
		ID:        uuid.New(),
		OrderID:   o.ID,
		Body:      body,
		System:    true,
		CreatedAt: time.Now(),
	})
}

// IsParticipant returns true if the user is the buyer or the seller
func (o *Order) IsParticipant(userID uuid.UUID) bool {
	return userID == o.BuyerUserID || userID == o.SellerUserID
}

// IsExpired returns true if the expiry deadline has passed
func (o *Order) IsExpired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

// IsActive returns true if the order still holds escrowed funds
func (o *Order) IsActive() bool {
	return o.Status.IsActive()
}

// IsTerminal returns true if the order reached a terminal status
func (o *Order) IsTerminal() bool {
	return o.Status.IsTerminal()
}

func generateOrderReference(id uuid.UUID) string {
	return "ESC-" + strings.ToUpper(id.String()[:8])
}
