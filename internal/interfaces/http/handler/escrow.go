package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appescrow "github.com/peertrade/backend/internal/application/escrow"
	"github.com/peertrade/backend/internal/domain/escrow"
	"github.com/peertrade/backend/internal/interfaces/http/dto"
)

// EscrowHandler handles escrow order lifecycle requests
type EscrowHandler struct {
	BaseHandler
	service *appescrow.Service
}

// NewEscrowHandler creates a new EscrowHandler
func NewEscrowHandler(service *appescrow.Service) *EscrowHandler {
	return &EscrowHandler{service: service}
}

// OrderMessageResponse is the wire form of one conversation entry
type OrderMessageResponse struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"sender_id,omitempty"`
	Body      string    `json:"body"`
	System    bool      `json:"system"`
	CreatedAt time.Time `json:"created_at"`
}

// OrderResponse is the wire form of an escrow order
type OrderResponse struct {
	ID           string                 `json:"id"`
	Reference    string                 `json:"reference"`
	AdID         string                 `json:"ad_id"`
	SellerUserID string                 `json:"seller_user_id"`
	BuyerUserID  string                 `json:"buyer_user_id"`
	Asset        string                 `json:"asset"`
	Price        string                 `json:"price"`
	EscrowAmount string                 `json:"escrow_amount"`
	FiatAmount   string                 `json:"fiat_amount"`
	Status       string                 `json:"status"`
	ExpiresAt    time.Time              `json:"expires_at"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
	Messages     []OrderMessageResponse `json:"messages,omitempty"`
}

func toOrderResponse(o *escrow.Order) OrderResponse {
	resp := OrderResponse{
		ID:           o.ID.String(),
		Reference:    o.Reference,
		AdID:         o.AdID.String(),
		SellerUserID: o.SellerUserID.String(),
		BuyerUserID:  o.BuyerUserID.String(),
		Asset:        o.Asset,
		Price:        o.Price.String(),
		EscrowAmount: o.EscrowAmount.String(),
		FiatAmount:   o.FiatAmount.String(),
		Status:       string(o.Status),
		ExpiresAt:    o.ExpiresAt,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
	for _, m := range o.Messages {
		msg := OrderMessageResponse{
			ID:        m.ID.String(),
			Body:      m.Body,
			System:    m.System,
			CreatedAt: m.CreatedAt,
		}
		if m.SenderID != uuid.Nil {
			msg.SenderID = m.SenderID.String()
		}
		resp.Messages = append(resp.Messages, msg)
	}
	return resp
}

func toOrderResponses(orders []escrow.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, toOrderResponse(&orders[i]))
	}
	return out
}

// CreateOrderRequest is the body for opening an escrow trade against an ad
type CreateOrderRequest struct {
	AdID   string `json:"ad_id" binding:"required,uuid"`
	Amount string `json:"amount" binding:"required"`
}

// Create opens a new escrow order; the caller is the buyer
func (h *EscrowHandler) Create(c *gin.Context) {
	buyerID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	adID, err := uuid.Parse(req.AdID)
	if err != nil {
		h.BadRequest(c, "Invalid ad ID")
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		h.BadRequest(c, "Invalid amount")
		return
	}

	order, err := h.service.CreateOrder(c.Request.Context(), adID, buyerID, amount)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, toOrderResponse(order))
}

// GetByID returns one order with its conversation log
func (h *EscrowHandler) GetByID(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order ID")
		return
	}

	order, err := h.service.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toOrderResponse(order))
}

// List returns orders where the caller is buyer or seller
func (h *EscrowHandler) List(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	req := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, "Invalid query parameters")
		return
	}

	orders, err := h.service.ListOrders(c.Request.Context(), userID, toFilter(req))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toOrderResponses(orders))
}

// MarkPaid records the buyer's fiat payment confirmation
func (h *EscrowHandler) MarkPaid(c *gin.Context) {
	h.transition(c, h.service.MarkPaid)
}

// Release moves the escrowed funds to the buyer
func (h *EscrowHandler) Release(c *gin.Context) {
	h.transition(c, h.service.Release)
}

// Dispute freezes the order for manual resolution
func (h *EscrowHandler) Dispute(c *gin.Context) {
	h.transition(c, h.service.Dispute)
}

// Cancel returns the escrowed funds to the seller's ad
func (h *EscrowHandler) Cancel(c *gin.Context) {
	actor, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order ID")
		return
	}

	order, err := h.service.Cancel(c.Request.Context(), orderID, actor, escrow.OrderStatusCancelled)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toOrderResponse(order))
}

// PostMessageRequest is the body for appending to the order conversation
type PostMessageRequest struct {
	Body string `json:"body" binding:"required,max=2000"`
}

// PostMessage appends a chat message to the order
func (h *EscrowHandler) PostMessage(c *gin.Context) {
	sender, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order ID")
		return
	}

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	order, err := h.service.PostMessage(c.Request.Context(), orderID, sender, req.Body)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toOrderResponse(order))
}

// transition runs one actor-driven status transition
func (h *EscrowHandler) transition(c *gin.Context, fn func(ctx context.Context, orderID, actor uuid.UUID) (*escrow.Order, error)) {
	actor, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order ID")
		return
	}

	order, err := fn(c.Request.Context(), orderID, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toOrderResponse(order))
}
