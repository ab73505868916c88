package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/models"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/repository"
	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/service"
)

type PositionHandler struct {
	Repo       repository.Repository
	Allocation *service.AllocationService
	Logger     *zap.Logger
}

func (h *PositionHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/positions")
	g.GET("", h.list)
	g.GET("/summary", h.summary)
	g.GET("/:id", h.get)
	g.PUT("/:id/status", h.putStatus)

	r.POST("/api/v1/approvals", h.approve)
}

func (h *PositionHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	orderBy := parseOrder(strings.TrimSpace(c.Query("order_by")), map[string]string{
		"created_at": "created_at",
		"updated_at": "updated_at",
		"status":     "status",
		"instrument": "instrument",
	})
	if orderBy == "" {
		orderBy = "created_at"
	}
	order := strings.ToLower(strings.TrimSpace(c.Query("order")))
	asc := false
	if order == "asc" {
		asc = true
	}

	params := repository.ListPositionsParams{
		Limit:      limit,
		Offset:     offset,
		Status:     strQueryPtr(c, "status"),
		Timeframe:  strQueryPtr(c, "timeframe"),
		Instrument: strQueryPtr(c, "instrument"),
		Venue:      strQueryPtr(c, "venue"),
		OrderBy:    orderBy,
		Asc:        boolPtr(asc),
	}
	items, err := h.Repo.ListPositions(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountPositions(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}

func (h *PositionHandler) get(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	item, err := h.Repo.GetPositionByID(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "position not found", nil)
		return
	}
	Ok(c, item, nil)
}

func (h *PositionHandler) summary(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	out, err := h.Repo.PositionsSummary(c.Request.Context())
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, out, nil)
}

type putStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// @Summary Operator status transition
// @Tags positions
// @Param id path int true "position id"
// @Param body body putStatusRequest true "target status and reason"
// @Success 200 {object} apiResponse
// @Router /api/v1/positions/{id}/status [put]
func (h *PositionHandler) putStatus(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	var req putStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	target := strings.TrimSpace(strings.ToLower(req.Status))
	if target == "" {
		Error(c, http.StatusBadRequest, "invalid status", nil)
		return
	}

	item, err := h.Repo.GetPositionByID(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "position not found", nil)
		return
	}
	if !models.CanTransitionStatus(item.Status, target) {
		Error(c, http.StatusConflict, "transition not allowed", map[string]any{
			"from": item.Status,
			"to":   target,
		})
		return
	}

	now := time.Now().UTC()
	ok, err := h.Repo.UpdatePositionStatus(c.Request.Context(), id, item.Status, target, now)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if !ok {
		Error(c, http.StatusConflict, "status changed concurrently", nil)
		return
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "operator request"
	}
	rec := &models.DecisionRecord{
		Kind:       models.RecordKindTransition,
		PositionID: item.ID,
		Instrument: item.Instrument,
		Venue:      item.Venue,
		Timeframe:  item.Timeframe,
		Reason:     reason,
		Outcome:    models.OutcomeNone,
		FromStatus: item.Status,
		ToStatus:   target,
	}
	if err := h.Repo.InsertDecisionRecord(c.Request.Context(), rec); err != nil && h.Logger != nil {
		h.Logger.Warn("transition record insert failed", zap.Error(err))
	}

	next, _ := h.Repo.GetPositionByID(c.Request.Context(), id)
	Ok(c, next, nil)
}

// @Summary Approve an instrument for management
// @Tags positions
// @Param body body service.ApprovalInput true "approval"
// @Success 200 {object} apiResponse
// @Router /api/v1/approvals [post]
func (h *PositionHandler) approve(c *gin.Context) {
	if h.Allocation == nil {
		Error(c, http.StatusInternalServerError, "allocation service unavailable", nil)
		return
	}
	var in service.ApprovalInput
	if err := c.ShouldBindJSON(&in); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	items, err := h.Allocation.Approve(c.Request.Context(), in)
	if err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	Ok(c, items, map[string]any{"positions": len(items)})
}
