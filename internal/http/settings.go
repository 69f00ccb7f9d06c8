package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/taxsync/internal/config"
	"github.com/mrlokans/taxsync/internal/settingsstore"
)

// AutoSyncSettingsController manages the auto-sync flag and interval.
type AutoSyncSettingsController struct {
	settings AutoSyncSettings
	timer    AutoSyncTimer
	audit    AuditLog
	logger   *zap.SugaredLogger
}

func NewAutoSyncSettingsController(settings AutoSyncSettings, timer AutoSyncTimer, audit AuditLog, logger *zap.SugaredLogger) *AutoSyncSettingsController {
	return &AutoSyncSettingsController{
		settings: settings,
		timer:    timer,
		audit:    audit,
		logger:   logger,
	}
}

// AutoSyncSettingsResponse is returned by the auto-sync settings endpoints.
type AutoSyncSettingsResponse struct {
	settingsstore.AutoSyncConfigInfo
	SchedulerRunning bool       `json:"scheduler_running"`
	NextRunAt        *time.Time `json:"next_run_at,omitempty"`
}

func (sc *AutoSyncSettingsController) response() AutoSyncSettingsResponse {
	resp := AutoSyncSettingsResponse{AutoSyncConfigInfo: sc.settings.GetAutoSyncConfigInfo()}
	if sc.timer != nil {
		resp.SchedulerRunning = sc.timer.IsRunning()
		resp.NextRunAt = sc.timer.NextRunTime()
	}
	return resp
}

// GetSettings handles GET /api/settings/auto-sync
func (sc *AutoSyncSettingsController) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, sc.response())
}

// UpdateSettings handles PUT /api/settings/auto-sync
// Body: {"enabled": bool, "interval_minutes": 5..120}. Out-of-range intervals are
// rejected so the caller learns the bounds.
func (sc *AutoSyncSettingsController) UpdateSettings(c *gin.Context) {
	var req settingsstore.AutoSyncUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	if req.Enabled == nil && req.IntervalMinutes == nil {
		respondBadRequest(c, "nothing to update: provide enabled and/or interval_minutes")
		return
	}
	if req.IntervalMinutes != nil {
		m := *req.IntervalMinutes
		if m < config.MinAutoSyncInterval || m > config.MaxAutoSyncInterval {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: fmt.Sprintf("interval_minutes must be between %d and %d", config.MinAutoSyncInterval, config.MaxAutoSyncInterval),
				Code:  "invalid_interval",
				Details: gin.H{
					"min": config.MinAutoSyncInterval,
					"max": config.MaxAutoSyncInterval,
				},
			})
			return
		}
	}

	cfg, err := sc.settings.UpdateAutoSync(req)
	if err != nil {
		respondInternalError(c, sc.logger, err, "update auto-sync settings")
		return
	}
	if !sc.reschedule(c) {
		return
	}

	if sc.audit != nil {
		sc.audit.LogSettings(actorFrom(c), "auto_sync_update", describeAutoSync(cfg))
	}
	c.JSON(http.StatusOK, sc.response())
}

// ResetSettings handles DELETE /api/settings/auto-sync, reverting to env/default.
func (sc *AutoSyncSettingsController) ResetSettings(c *gin.Context) {
	if err := sc.settings.ClearAutoSyncSettings(); err != nil {
		respondInternalError(c, sc.logger, err, "reset auto-sync settings")
		return
	}
	if !sc.reschedule(c) {
		return
	}
	if sc.audit != nil {
		sc.audit.LogSettings(actorFrom(c), "auto_sync_reset", "Auto-sync settings reset to defaults")
	}
	c.JSON(http.StatusOK, sc.response())
}

func (sc *AutoSyncSettingsController) reschedule(c *gin.Context) bool {
	if sc.timer == nil {
		return true
	}
	// The timer outlives the request.
	if err := sc.timer.Reschedule(context.Background()); err != nil {
		respondInternalError(c, sc.logger, err, "reschedule auto-sync")
		return false
	}
	return true
}

func describeAutoSync(cfg settingsstore.AutoSyncConfig) string {
	if !cfg.Enabled {
		return "Auto-sync disabled"
	}
	return fmt.Sprintf("Auto-sync enabled every %d minutes", cfg.IntervalMinutes)
}
