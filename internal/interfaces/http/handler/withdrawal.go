package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appwithdrawal "github.com/peertrade/backend/internal/application/withdrawal"
	"github.com/peertrade/backend/internal/domain/withdrawal"
	"github.com/peertrade/backend/internal/interfaces/http/dto"
)

// WithdrawalHandler handles withdrawal request lifecycle requests
type WithdrawalHandler struct {
	BaseHandler
	service *appwithdrawal.Service
}

// NewWithdrawalHandler creates a new WithdrawalHandler
func NewWithdrawalHandler(service *appwithdrawal.Service) *WithdrawalHandler {
	return &WithdrawalHandler{service: service}
}

// WithdrawalResponse is the wire form of a withdrawal request
type WithdrawalResponse struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Amount      string     `json:"amount"`
	Currency    string     `json:"currency"`
	Address     string     `json:"address"`
	Status      string     `json:"status"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toWithdrawalResponse(r *withdrawal.Request) WithdrawalResponse {
	return WithdrawalResponse{
		ID:          r.ID.String(),
		UserID:      r.UserID.String(),
		Amount:      r.Amount.String(),
		Currency:    r.Currency,
		Address:     r.Address,
		Status:      string(r.Status),
		ProcessedAt: r.ProcessedAt,
		CreatedAt:   r.CreatedAt,
	}
}

func toWithdrawalResponses(requests []withdrawal.Request) []WithdrawalResponse {
	out := make([]WithdrawalResponse, 0, len(requests))
	for i := range requests {
		out = append(out, toWithdrawalResponse(&requests[i]))
	}
	return out
}

// CreateWithdrawalRequest is the body for requesting a withdrawal
type CreateWithdrawalRequest struct {
	Amount   string `json:"amount" binding:"required"`
	Currency string `json:"currency" binding:"required"`
	Address  string `json:"address" binding:"required"`
}

// Create locks the caller's funds behind a new pending withdrawal
func (h *WithdrawalHandler) Create(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var req CreateWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		h.BadRequest(c, "Invalid amount")
		return
	}

	request, err := h.service.Create(c.Request.Context(), userID, amount, req.Currency, req.Address)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, toWithdrawalResponse(request))
}

// GetByID returns one withdrawal request
func (h *WithdrawalHandler) GetByID(c *gin.Context) {
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid request ID")
		return
	}

	request, err := h.service.GetRequest(c.Request.Context(), requestID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toWithdrawalResponse(request))
}

// List returns the caller's withdrawal requests, newest first
func (h *WithdrawalHandler) List(c *gin.Context) {
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

	requests, err := h.service.ListRequests(c.Request.Context(), userID, toFilter(req))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toWithdrawalResponses(requests))
}

// ProcessWithdrawalRequest is the body for an operator decision
type ProcessWithdrawalRequest struct {
	Status string `json:"status" binding:"required,oneof=approved rejected sent"`
}

// Process drives a request to an operator-chosen status. Re-submitting
// the same decision returns the unchanged request, so retries are safe.
func (h *WithdrawalHandler) Process(c *gin.Context) {
	actor, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid request ID")
		return
	}

	var req ProcessWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	request, err := h.service.Process(c.Request.Context(), requestID, withdrawal.Status(req.Status), actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toWithdrawalResponse(request))
}
