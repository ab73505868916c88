package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/executor"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/repository"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/service"
)

type SettingsHandler struct {
	Repo        repository.Repository
	Settings    *service.SettingsService
	LiveDefault bool
}

func (h *SettingsHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/settings")
	g.GET("", h.list)
	g.GET("/trading-mode", h.getTradingMode)
	g.PUT("/trading-mode", h.putTradingMode)
	g.GET("/pause", h.getPause)
	g.PUT("/pause", h.putPause)
}

func (h *SettingsHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	items, err := h.Repo.ListSystemSettings(c.Request.Context())
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}

func (h *SettingsHandler) getTradingMode(c *gin.Context) {
	if h.Settings == nil {
		Error(c, http.StatusInternalServerError, "settings service unavailable", nil)
		return
	}
	live := h.Settings.IsEnabled(c.Request.Context(), executor.SettingLiveEnabled, h.LiveDefault)
	Ok(c, map[string]any{
		"key":  executor.SettingLiveEnabled,
		"live": live,
	}, nil)
}

type putTradingModeRequest struct {
	Live bool `json:"live"`
}

// @Summary Switch between live and dry-run execution
// @Tags settings
// @Param body body putTradingModeRequest true "trading mode"
// @Success 200 {object} apiResponse
// @Router /api/v1/settings/trading-mode [put]
func (h *SettingsHandler) putTradingMode(c *gin.Context) {
	if h.Settings == nil {
		Error(c, http.StatusInternalServerError, "settings service unavailable", nil)
		return
	}
	var req putTradingModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	if err := h.Settings.SetEnabled(c.Request.Context(), executor.SettingLiveEnabled, req.Live); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, map[string]any{
		"key":  executor.SettingLiveEnabled,
		"live": req.Live,
	}, nil)
}

func (h *SettingsHandler) getPause(c *gin.Context) {
	if h.Settings == nil {
		Error(c, http.StatusInternalServerError, "settings service unavailable", nil)
		return
	}
	paused := h.Settings.IsEnabled(c.Request.Context(), service.SettingEnginePaused, false)
	Ok(c, map[string]any{
		"key":    service.SettingEnginePaused,
		"paused": paused,
	}, nil)
}

type putPauseRequest struct {
	Paused bool `json:"paused"`
}

// @Summary Pause or resume all decision passes
// @Tags settings
// @Param body body putPauseRequest true "pause flag"
// @Success 200 {object} apiResponse
// @Router /api/v1/settings/pause [put]
func (h *SettingsHandler) putPause(c *gin.Context) {
	if h.Settings == nil {
		Error(c, http.StatusInternalServerError, "settings service unavailable", nil)
		return
	}
	var req putPauseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	if err := h.Settings.SetEnabled(c.Request.Context(), service.SettingEnginePaused, req.Paused); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, map[string]any{
		"key":    service.SettingEnginePaused,
		"paused": req.Paused,
	}, nil)
}
