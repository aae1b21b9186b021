package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gofrolist/calorie-track-ai-bot/internal/models"
	"github.com/gofrolist/calorie-track-ai-bot/internal/services"
	"github.com/gofrolist/calorie-track-ai-bot/internal/utils"
)

type MealHandler struct {
	svc services.MealService
}

func NewMealHandler(svc services.MealService) *MealHandler {
	return &MealHandler{svc: svc}
}

type CreateMealRequest struct {
	// EstimateID derives the meal from a finished estimate; when set,
	// the manual fields below are ignored.
	EstimateID  string  `json:"estimate_id"`
	MealDate    string  `json:"meal_date"` // YYYY-MM-DD
	MealType    string  `json:"meal_type"`
	Kcal        float64 `json:"kcal"`
	Protein     float64 `json:"protein"`
	Carbs       float64 `json:"carbs"`
	Fats        float64 `json:"fats"`
	Description string  `json:"description"`
}

func (h *MealHandler) Create(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req CreateMealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "MealHandler.Create", "invalid request body", err))
		return
	}

	if req.EstimateID != "" {
		meal, err := h.svc.CreateFromEstimate(c.Request.Context(), req.EstimateID, userID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, meal)
		return
	}

	meal := &models.Meal{
		UserID:      userID,
		MealType:    req.MealType,
		Kcal:        req.Kcal,
		Protein:     req.Protein,
		Carbs:       req.Carbs,
		Fats:        req.Fats,
		Description: req.Description,
	}
	if meal.MealType == "" {
		meal.MealType = models.MealTypeSnack
	}
	if req.MealDate != "" {
		d, err := time.Parse("2006-01-02", req.MealDate)
		if err != nil {
			writeError(c, utils.E(utils.CodeInvalidArgument, "MealHandler.Create", "meal_date must be YYYY-MM-DD", err))
			return
		}
		meal.MealDate = d
	}
	if err := h.svc.Create(c.Request.Context(), meal); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, meal)
}

func (h *MealHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	meal, err := h.svc.Get(c.Request.Context(), userID, c.Param("meal_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, meal)
}

// List returns the user's meals for ?date= (one day, default today) or
// an explicit ?from=&to= range.
func (h *MealHandler) List(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var from, to time.Time
	if c.Query("from") != "" || c.Query("to") != "" {
		f, okF := dateQuery(c, "from")
		t, okT := dateQuery(c, "to")
		if !okF || !okT {
			writeError(c, utils.E(utils.CodeInvalidArgument, "MealHandler.List", "dates must be YYYY-MM-DD", nil))
			return
		}
		from, to = f, t
	} else {
		d, okD := dateQuery(c, "date")
		if !okD {
			writeError(c, utils.E(utils.CodeInvalidArgument, "MealHandler.List", "date must be YYYY-MM-DD", nil))
			return
		}
		from, to = d, d
	}

	meals, err := h.svc.List(c.Request.Context(), userID, from, to)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"meals": meals})
}

type UpdateMealRequest struct {
	MealDate    *string  `json:"meal_date"`
	MealType    *string  `json:"meal_type"`
	Kcal        *float64 `json:"kcal"`
	Protein     *float64 `json:"protein"`
	Carbs       *float64 `json:"carbs"`
	Fats        *float64 `json:"fats"`
	Description *string  `json:"description"`
}

func (h *MealHandler) Update(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req UpdateMealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "MealHandler.Update", "invalid request body", err))
		return
	}

	upd := services.MealUpdate{
		MealType:    req.MealType,
		Kcal:        req.Kcal,
		Protein:     req.Protein,
		Carbs:       req.Carbs,
		Fats:        req.Fats,
		Description: req.Description,
	}
	if req.MealDate != nil {
		d, err := time.Parse("2006-01-02", *req.MealDate)
		if err != nil {
			writeError(c, utils.E(utils.CodeInvalidArgument, "MealHandler.Update", "meal_date must be YYYY-MM-DD", err))
			return
		}
		upd.MealDate = &d
	}

	meal, err := h.svc.Update(c.Request.Context(), userID, c.Param("meal_id"), upd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, meal)
}

func (h *MealHandler) Delete(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), userID, c.Param("meal_id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
