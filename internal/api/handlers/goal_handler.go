package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gofrolist/calorie-track-ai-bot/internal/services"
	"github.com/gofrolist/calorie-track-ai-bot/internal/utils"
)

type GoalHandler struct {
	svc services.GoalService
}

func NewGoalHandler(svc services.GoalService) *GoalHandler {
	return &GoalHandler{svc: svc}
}

func (h *GoalHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	goal, err := h.svc.Get(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, goal)
}

type SetGoalRequest struct {
	DailyKcal float64 `json:"daily_kcal" binding:"required"`
}

func (h *GoalHandler) Set(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req SetGoalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "GoalHandler.Set", "invalid request body", err))
		return
	}

	goal, err := h.svc.Set(c.Request.Context(), userID, req.DailyKcal)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, goal)
}
