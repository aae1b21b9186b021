package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/gofrolist/calorie-track-ai-bot/internal/services"
	"github.com/gofrolist/calorie-track-ai-bot/internal/utils"
)

type StatsHandler struct {
	svc services.StatsService
}

func NewStatsHandler(svc services.StatsService) *StatsHandler {
	return &StatsHandler{svc: svc}
}

func (h *StatsHandler) Daily(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	day, okD := dateQuery(c, "date")
	if !okD {
		writeError(c, utils.E(utils.CodeInvalidArgument, "StatsHandler.Daily", "date must be YYYY-MM-DD", nil))
		return
	}

	stats, err := h.svc.Daily(c.Request.Context(), userID, day)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Summary returns per-day totals for the ?days= days ending on ?date=
// (defaults: 7 days ending today).
func (h *StatsHandler) Summary(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	end, okD := dateQuery(c, "date")
	if !okD {
		writeError(c, utils.E(utils.CodeInvalidArgument, "StatsHandler.Summary", "date must be YYYY-MM-DD", nil))
		return
	}
	days := 0
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(c, utils.E(utils.CodeInvalidArgument, "StatsHandler.Summary", "days must be an integer", err))
			return
		}
		days = n
	}

	stats, err := h.svc.Summary(c.Request.Context(), userID, end, days)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
