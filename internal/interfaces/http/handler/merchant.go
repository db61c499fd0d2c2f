package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appmerchant "github.com/peertrade/backend/internal/application/merchant"
	"github.com/peertrade/backend/internal/domain/escrow"
	"github.com/peertrade/backend/internal/domain/merchant"
	"github.com/peertrade/backend/internal/interfaces/http/dto"
	"github.com/shopspring/decimal"
)

// MerchantHandler handles merchant profile and liquidity ad requests
type MerchantHandler struct {
	BaseHandler
	service *appmerchant.Service
}

// NewMerchantHandler creates a new MerchantHandler
func NewMerchantHandler(service *appmerchant.Service) *MerchantHandler {
	return &MerchantHandler{service: service}
}

// ProfileResponse is the wire form of a merchant profile
type ProfileResponse struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	DepositAmount string    `json:"deposit_amount"`
	Status        string    `json:"status"`
	ActivatedAt   time.Time `json:"activated_at"`
}

func toProfileResponse(p *merchant.Profile) ProfileResponse {
	return ProfileResponse{
		ID:            p.ID.String(),
		UserID:        p.UserID.String(),
		DepositAmount: p.DepositAmount.String(),
		Status:        string(p.Status),
		ActivatedAt:   p.ActivatedAt,
	}
}

// AdResponse is the wire form of a liquidity ad
type AdResponse struct {
	ID              string    `json:"id"`
	CreatedByUserID string    `json:"created_by_user_id"`
	Asset           string    `json:"asset"`
	Price           string    `json:"price"`
	AvailableAmount string    `json:"available_amount"`
	LockedAmount    string    `json:"locked_amount"`
	MinLimit        string    `json:"min_limit"`
	MaxLimit        string    `json:"max_limit"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

func toAdResponse(a *escrow.Ad) AdResponse {
	return AdResponse{
		ID:              a.ID.String(),
		CreatedByUserID: a.CreatedByUserID.String(),
		Asset:           a.Asset,
		Price:           a.Price.String(),
		AvailableAmount: a.AvailableAmount.String(),
		LockedAmount:    a.LockedAmount.String(),
		MinLimit:        a.MinLimit.String(),
		MaxLimit:        a.MaxLimit.String(),
		Status:          string(a.Status),
		CreatedAt:       a.CreatedAt,
	}
}

func toAdResponses(ads []escrow.Ad) []AdResponse {
	out := make([]AdResponse, 0, len(ads))
	for i := range ads {
		out = append(out, toAdResponse(&ads[i]))
	}
	return out
}

// GetProfile returns the caller's merchant profile
func (h *MerchantHandler) GetProfile(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	profile, err := h.service.GetProfile(c.Request.Context(), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if profile == nil {
		h.NotFound(c, "Merchant profile not found")
		return
	}

	h.Success(c, toProfileResponse(profile))
}

// ActivateRequest is the body for becoming a merchant
type ActivateRequest struct {
	DepositAmount string `json:"deposit_amount" binding:"required"`
}

// Activate locks the caller's deposit and activates their merchant profile
func (h *MerchantHandler) Activate(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var req ActivateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	deposit, err := parseAmount(req.DepositAmount)
	if err != nil {
		h.BadRequest(c, "Invalid deposit amount")
		return
	}

	profile, err := h.service.ActivateMerchant(c.Request.Context(), userID, deposit)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, toProfileResponse(profile))
}

// Deactivate releases the caller's deposit and deactivates their profile
func (h *MerchantHandler) Deactivate(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	profile, err := h.service.DeactivateMerchant(c.Request.Context(), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toProfileResponse(profile))
}

// CreateAdRequest is the body for publishing a liquidity ad
type CreateAdRequest struct {
	Asset    string `json:"asset" binding:"required"`
	Price    string `json:"price" binding:"required"`
	Amount   string `json:"amount" binding:"required"`
	MinLimit string `json:"min_limit" binding:"required"`
	MaxLimit string `json:"max_limit" binding:"required"`
}

// CreateAd locks the caller's funds behind a new liquidity ad
func (h *MerchantHandler) CreateAd(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var req CreateAdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	input := appmerchant.CreateAdInput{Asset: req.Asset}
	fields := []struct {
		name  string
		raw   string
		field *decimal.Decimal
	}{
		{"price", req.Price, &input.Price},
		{"amount", req.Amount, &input.Amount},
		{"min_limit", req.MinLimit, &input.MinLimit},
		{"max_limit", req.MaxLimit, &input.MaxLimit},
	}
	for _, f := range fields {
		v, err := parseAmount(f.raw)
		if err != nil {
			h.ValidationError(c, []dto.ValidationDetail{{Field: f.name, Message: "must be a decimal string"}})
			return
		}
		*f.field = v
	}

	ad, err := h.service.CreateEscrowAd(c.Request.Context(), userID, input)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, toAdResponse(ad))
}

// DisableAd takes the caller's ad off the book and refunds its remaining lock
func (h *MerchantHandler) DisableAd(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	adID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid ad ID")
		return
	}

	ad, err := h.service.DisableAd(c.Request.Context(), userID, adID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toAdResponse(ad))
}

// ListAds returns active ads, optionally filtered by asset
func (h *MerchantHandler) ListAds(c *gin.Context) {
	req := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, "Invalid query parameters")
		return
	}

	filter := toFilter(req)
	if asset := c.Query("asset"); asset != "" {
		filter.Filters = map[string]interface{}{"asset": asset}
	}

	ads, err := h.service.ListAds(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toAdResponses(ads))
}

// CleanupDemoAds disables unbacked ads and returns their residual locks
func (h *MerchantHandler) CleanupDemoAds(c *gin.Context) {
	stats, err := h.service.CleanupDemoAds(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, stats)
}
