package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Recursive-Llama/Lotus-Trader-sub014/internal/repository"
)

type DecisionHandler struct {
	Repo repository.Repository
}

func (h *DecisionHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/decisions")
	g.GET("", h.list)
}

func (h *DecisionHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 100)
	offset := intQuery(c, "offset", 0)
	order := strings.ToLower(strings.TrimSpace(c.Query("order")))
	asc := false
	if order == "asc" {
		asc = true
	}

	var positionID *uint64
	if raw := strings.TrimSpace(c.Query("position_id")); raw != "" {
		if id := parseUint(raw); id > 0 {
			positionID = &id
		}
	}

	params := repository.ListDecisionRecordsParams{
		Limit:        limit,
		Offset:       offset,
		PositionID:   positionID,
		Instrument:   strQueryPtr(c, "instrument"),
		Timeframe:    strQueryPtr(c, "timeframe"),
		DecisionType: strQueryPtr(c, "decision_type"),
		Outcome:      strQueryPtr(c, "outcome"),
		Kind:         strQueryPtr(c, "kind"),
		Since:        timeQueryPtr(c, "since"),
		OrderBy:      "created_at",
		Asc:          boolPtr(asc),
	}
	items, err := h.Repo.ListDecisionRecords(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountDecisionRecords(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(limit, offset, total))
}
