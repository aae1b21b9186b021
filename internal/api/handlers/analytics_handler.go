package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gofrolist/calorie-track-ai-bot/internal/services"
	"github.com/gofrolist/calorie-track-ai-bot/internal/utils"
)

type AnalyticsHandler struct {
	svc services.AnalyticsService
}

func NewAnalyticsHandler(svc services.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc}
}

// InlineSummary returns the per-day inline rollups for
// ?from=&to=&chat_type=, with the delivery SLA targets attached.
func (h *AnalyticsHandler) InlineSummary(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	var from, to time.Time
	if c.Query("from") != "" {
		f, ok := dateQuery(c, "from")
		if !ok {
			writeError(c, utils.E(utils.CodeInvalidArgument, "AnalyticsHandler.InlineSummary", "from must be YYYY-MM-DD", nil))
			return
		}
		from = f
	}
	if c.Query("to") != "" {
		t, ok := dateQuery(c, "to")
		if !ok {
			writeError(c, utils.E(utils.CodeInvalidArgument, "AnalyticsHandler.InlineSummary", "to must be YYYY-MM-DD", nil))
			return
		}
		to = t
	}

	summary, err := h.svc.Summary(c.Request.Context(), from, to, c.Query("chat_type"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
