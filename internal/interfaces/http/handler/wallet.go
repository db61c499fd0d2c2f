package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appledger "github.com/peertrade/backend/internal/application/ledger"
	"github.com/peertrade/backend/internal/domain/wallet"
	"github.com/peertrade/backend/internal/interfaces/http/dto"
)

// WalletHandler handles wallet balance and ledger history requests
type WalletHandler struct {
	BaseHandler
	service *appledger.Service
}

// NewWalletHandler creates a new WalletHandler
func NewWalletHandler(service *appledger.Service) *WalletHandler {
	return &WalletHandler{service: service}
}

// WalletResponse is the wire form of a wallet
type WalletResponse struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	Username         string    `json:"username,omitempty"`
	AvailableBalance string    `json:"available_balance"`
	LockedBalance    string    `json:"locked_balance"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toWalletResponse(w *wallet.Wallet) WalletResponse {
	return WalletResponse{
		ID:               w.ID.String(),
		UserID:           w.UserID.String(),
		Username:         w.Username,
		AvailableBalance: w.AvailableBalance.String(),
		LockedBalance:    w.LockedBalance.String(),
		UpdatedAt:        w.UpdatedAt,
	}
}

// LedgerEntryResponse is the wire form of one immutable ledger entry
type LedgerEntryResponse struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Type            string    `json:"type"`
	Amount          string    `json:"amount"`
	Currency        string    `json:"currency"`
	BeforeAvailable string    `json:"before_available"`
	AfterAvailable  string    `json:"after_available"`
	BeforeLocked    string    `json:"before_locked"`
	AfterLocked     string    `json:"after_locked"`
	ReferenceID     string    `json:"reference_id"`
	CreatedAt       time.Time `json:"created_at"`
}

func toLedgerEntryResponses(entries []wallet.LedgerEntry) []LedgerEntryResponse {
	out := make([]LedgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, LedgerEntryResponse{
			ID:              e.ID.String(),
			UserID:          e.UserID.String(),
			Type:            string(e.Type),
			Amount:          e.Amount.String(),
			Currency:        e.Currency,
			BeforeAvailable: e.BeforeAvailable.String(),
			AfterAvailable:  e.AfterAvailable.String(),
			BeforeLocked:    e.BeforeLocked.String(),
			AfterLocked:     e.AfterLocked.String(),
			ReferenceID:     e.ReferenceID,
			CreatedAt:       e.CreatedAt,
		})
	}
	return out
}

// GetWallet returns the caller's wallet snapshot
func (h *WalletHandler) GetWallet(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	w, err := h.service.GetWallet(c.Request.Context(), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toWalletResponse(w))
}

// GetHistory returns the caller's ledger entries, newest first
func (h *WalletHandler) GetHistory(c *gin.Context) {
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

	entries, err := h.service.GetHistory(c.Request.Context(), userID, toFilter(req))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toLedgerEntryResponses(entries))
}

// DepositRequest is the body for crediting a wallet from an external source
type DepositRequest struct {
	Amount      string `json:"amount" binding:"required"`
	Currency    string `json:"currency"`
	ReferenceID string `json:"reference_id" binding:"required"`
}

// Deposit credits the caller's available balance
func (h *WalletHandler) Deposit(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		h.BadRequest(c, "Invalid amount")
		return
	}

	ref := wallet.NewReference(req.ReferenceID, req.Currency)
	w, err := h.service.CreditAvailable(c.Request.Context(), userID, amount, wallet.EntryTypeDeposit, ref)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toWalletResponse(w))
}

// AdjustBalanceRequest is the body for an administrative balance correction
type AdjustBalanceRequest struct {
	Amount      string `json:"amount" binding:"required"` // Signed, negative debits
	Reason      string `json:"reason" binding:"required"`
	Currency    string `json:"currency"`
	ReferenceID string `json:"reference_id" binding:"required"`
}

// AdminAdjust applies a signed administrative balance correction
func (h *WalletHandler) AdminAdjust(c *gin.Context) {
	targetID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		h.BadRequest(c, "Invalid user ID")
		return
	}

	var req AdjustBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		h.BadRequest(c, "Invalid amount")
		return
	}

	ref := wallet.NewReference(req.ReferenceID, req.Currency)
	w, err := h.service.AdminAdjustBalance(c.Request.Context(), targetID, amount, req.Reason, ref)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toWalletResponse(w))
}
