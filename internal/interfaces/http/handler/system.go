package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/peertrade/backend/internal/infrastructure/scheduler"
	"github.com/peertrade/backend/internal/interfaces/http/dto"
)

// SystemHandler handles system-related API endpoints
type SystemHandler struct {
	BaseHandler
	startTime time.Time
	sweeper   *scheduler.SweepScheduler
}

// NewSystemHandler creates a new SystemHandler. The sweeper may be nil
// when the expiry sweep is disabled.
func NewSystemHandler(sweeper *scheduler.SweepScheduler) *SystemHandler {
	return &SystemHandler{
		startTime: time.Now(),
		sweeper:   sweeper,
	}
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// GetSystemInfo returns basic system information including version and uptime
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	info := SystemInfoResponse{
		Name:      "PeerTrade Backend API",
		Version:   "1.0.0",
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(info))
}

// PingResponse represents the ping response
type PingResponse struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Ping checks if the API is responsive
func (h *SystemHandler) Ping(c *gin.Context) {
	response := PingResponse{
		Message:   "pong",
		Timestamp: time.Now().Format(time.RFC3339),
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(response))
}

// GetSweepStatus reports the expiry sweeper's last run and counters
func (h *SystemHandler) GetSweepStatus(c *gin.Context) {
	if h.sweeper == nil {
		h.Success(c, gin.H{"enabled": false})
		return
	}

	h.Success(c, h.sweeper.GetStatus())
}

// TriggerSweep kicks off an out-of-cycle expiry sweep
func (h *SystemHandler) TriggerSweep(c *gin.Context) {
	if h.sweeper == nil {
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeInternal, "Expiry sweep is disabled")
		return
	}

	if err := h.sweeper.TriggerManualRun(c.Request.Context()); err != nil {
		h.Error(c, http.StatusConflict, dto.ErrCodeConflict, err.Error())
		return
	}

	h.Success(c, gin.H{"triggered": true})
}
