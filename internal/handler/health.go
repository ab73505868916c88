package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/service"
)

type HealthHandler struct {
	DB       *gorm.DB
	Settings *service.SettingsService
}

func (h *HealthHandler) Register(r *gin.Engine) {
	r.GET("/healthz", h.health)
	r.GET("/readyz", h.ready)
}

// @Summary Liveness check
// @Tags health
// @Success 200 {object} map[string]string
// @Router /healthz [get]
func (h *HealthHandler) health(c *gin.Context) {
	// Liveness must not depend on the database.
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary Readiness check
// @Tags health
// @Success 200 {object} map[string]any
// @Router /readyz [get]
func (h *HealthHandler) ready(c *gin.Context) {
	checks := gin.H{"database": "ok"}
	status := http.StatusOK

	switch {
	case h.DB == nil:
		checks["database"] = "missing"
		status = http.StatusServiceUnavailable
	default:
		sqlDB, err := h.DB.DB()
		if err != nil {
			checks["database"] = "error"
			status = http.StatusServiceUnavailable
		} else if err := sqlDB.Ping(); err != nil {
			checks["database"] = "unreachable"
			status = http.StatusServiceUnavailable
		}
	}

	body := gin.H{"checks": checks}
	if status == http.StatusOK {
		body["status"] = "ready"
		// Paused is not a readiness failure, but operators checking
		// readiness usually want to know.
		body["engine_paused"] = h.Settings.IsEnabled(c.Request.Context(), service.SettingEnginePaused, false)
	} else {
		body["status"] = "unavailable"
	}
	c.JSON(status, body)
}
