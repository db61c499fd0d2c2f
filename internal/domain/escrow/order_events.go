package escrow

import (
	"time"

	"github.com/google/uuid"
	"github.com/peertrade/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Aggregate type constant
const AggregateTypeOrder = "EscrowOrder"

// Event type constants
const (
	EventTypeOrderCreated     = "EscrowOrderCreated"
	EventTypeOrderPaymentSent = "EscrowOrderPaymentSent"
	EventTypeOrderReleased    = "EscrowOrderReleased"
	EventTypeOrderCancelled   = "EscrowOrderCancelled"
	EventTypeOrderDisputed    = "EscrowOrderDisputed"
)

// OrderCreatedEvent is published when a buyer accepts an ad
type OrderCreatedEvent struct {
	shared.BaseDomainEvent
	OrderID      uuid.UUID       `json:"order_id"`
	Reference    string          `json:"reference"`
	AdID         uuid.UUID       `json:"ad_id"`
	SellerUserID uuid.UUID       `json:"seller_user_id"`
	BuyerUserID  uuid.UUID       `json:"buyer_user_id"`
	EscrowAmount decimal.Decimal `json:"escrow_amount"`
	ExpiresAt    time.Time       `json:"expires_at"`
}

// NewOrderCreatedEvent creates a new OrderCreatedEvent
func NewOrderCreatedEvent(order *Order) *OrderCreatedEvent {
	return &OrderCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderCreated, AggregateTypeOrder, order.ID),
		OrderID:         order.ID,
		Reference:       order.Reference,
		AdID:            order.AdID,
		SellerUserID:    order.SellerUserID,
		BuyerUserID:     order.BuyerUserID,
		EscrowAmount:    order.EscrowAmount,
		ExpiresAt:       order.ExpiresAt,
	}
}

// OrderPaymentSentEvent is published when the buyer confirms payment
type OrderPaymentSentEvent struct {
	shared.BaseDomainEvent
	OrderID   uuid.UUID `json:"order_id"`
	Reference string    `json:"reference"`
}

// NewOrderPaymentSentEvent creates a new OrderPaymentSentEvent
func NewOrderPaymentSentEvent(order *Order) *OrderPaymentSentEvent {
	return &OrderPaymentSentEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderPaymentSent, AggregateTypeOrder, order.ID),
		OrderID:         order.ID,
		Reference:       order.Reference,
	}
}

// OrderReleasedEvent is published when escrowed funds settle to the buyer
type OrderReleasedEvent struct {
	shared.BaseDomainEvent
	OrderID      uuid.UUID       `json:"order_id"`
	Reference    string          `json:"reference"`
	SellerUserID uuid.UUID       `json:"seller_user_id"`
	BuyerUserID  uuid.UUID       `json:"buyer_user_id"`
	EscrowAmount decimal.Decimal `json:"escrow_amount"`
}

// NewOrderReleasedEvent creates a new OrderReleasedEvent
func NewOrderReleasedEvent(order *Order) *OrderReleasedEvent {
	return &OrderReleasedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderReleased, AggregateTypeOrder, order.ID),
		OrderID:         order.ID,
		Reference:       order.Reference,
		SellerUserID:    order.SellerUserID,
		BuyerUserID:     order.BuyerUserID,
		EscrowAmount:    order.EscrowAmount,
	}
}

// OrderCancelledEvent is published when an order is cancelled or expires
type OrderCancelledEvent struct {
	shared.BaseDomainEvent
	OrderID   uuid.UUID   `json:"order_id"`
	Reference string      `json:"reference"`
	Status    OrderStatus `json:"status"`
}

// NewOrderCancelledEvent creates a new OrderCancelledEvent
func NewOrderCancelledEvent(order *Order) *OrderCancelledEvent {
	return &OrderCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderCancelled, AggregateTypeOrder, order.ID),
		OrderID:         order.ID,
		Reference:       order.Reference,
		Status:          order.Status,
	}
}

// OrderDisputedEvent is published when a participant raises a dispute
type OrderDisputedEvent struct {
	shared.BaseDomainEvent
	OrderID   uuid.UUID `json:"order_id"`
	Reference string    `json:"reference"`
	RaisedBy  uuid.UUID `json:"raised_by"`
}

// NewOrderDisputedEvent creates a new OrderDisputedEvent
func NewOrderDisputedEvent(order *Order, raisedBy uuid.UUID) *OrderDisputedEvent {
	return &OrderDisputedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderDisputed, AggregateTypeOrder, order.ID),
		OrderID:         order.ID,
		Reference:       order.Reference,
		RaisedBy:        raisedBy,
	}
}
