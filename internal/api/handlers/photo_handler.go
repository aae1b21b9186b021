package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gofrolist/calorie-track-ai-bot/internal/models"
	"github.com/gofrolist/calorie-track-ai-bot/internal/services"
	"github.com/gofrolist/calorie-track-ai-bot/internal/utils"
)

// PhotoHandler covers the mini-app photo flow: presigned upload,
// manual estimate dispatch, and estimate retrieval.
type PhotoHandler struct {
	photos    services.PhotoService
	estimates services.EstimateService
}

func NewPhotoHandler(photos services.PhotoService, estimates services.EstimateService) *PhotoHandler {
	return &PhotoHandler{photos: photos, estimates: estimates}
}

type CreatePhotoRequest struct {
	ContentType string `json:"content_type" binding:"required"`
}

func (h *PhotoHandler) Create(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req CreatePhotoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "PhotoHandler.Create", "invalid request body", err))
		return
	}

	presigned, err := h.photos.CreatePresigned(c.Request.Context(), userID, req.ContentType)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, presigned)
}

type DispatchEstimateRequest struct {
	Description string `json:"description"`
}

type DispatchEstimateResponse struct {
	Status string `json:"status"`
	JobID  string `json:"job_id"`
}

// DispatchEstimate enqueues an estimation job for an already-uploaded
// photo, the mini-app counterpart of the bot's photo flow.
func (h *PhotoHandler) DispatchEstimate(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	photo, err := h.ownedPhoto(c, userID, "PhotoHandler.DispatchEstimate")
	if err != nil {
		writeError(c, err)
		return
	}

	var req DispatchEstimateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, utils.E(utils.CodeInvalidArgument, "PhotoHandler.DispatchEstimate", "invalid request body", err))
			return
		}
	}

	jobID, err := h.estimates.Dispatch(c.Request.Context(), []string{photo.ID}, req.Description)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, DispatchEstimateResponse{Status: "queued", JobID: jobID})
}

func (h *PhotoHandler) GetEstimateByPhoto(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	photo, err := h.ownedPhoto(c, userID, "PhotoHandler.GetEstimateByPhoto")
	if err != nil {
		writeError(c, err)
		return
	}

	est, err := h.estimates.GetByPhotoID(c.Request.Context(), photo.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, est)
}

func (h *PhotoHandler) GetEstimate(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	est, err := h.estimates.GetByID(c.Request.Context(), c.Param("estimate_id"))
	if err != nil {
		writeError(c, err)
		return
	}

	photo, err := h.photos.Get(c.Request.Context(), est.PhotoID)
	if err != nil {
		writeError(c, err)
		return
	}
	if photo.UserID != userID {
		writeError(c, utils.E(utils.CodeForbidden, "PhotoHandler.GetEstimate", "forbidden", nil))
		return
	}
	c.JSON(http.StatusOK, est)
}

func (h *PhotoHandler) ownedPhoto(c *gin.Context, userID, op string) (*models.Photo, error) {
	p, err := h.photos.Get(c.Request.Context(), c.Param("photo_id"))
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, utils.E(utils.CodeForbidden, op, "forbidden", nil)
	}
	return p, nil
}
