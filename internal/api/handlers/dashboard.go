package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/vamojunto/nfce-api/internal/api/middleware"
	"github.com/vamojunto/nfce-api/internal/models"
	"github.com/vamojunto/nfce-api/internal/services"
)

// DashboardHandler serves aggregated spending statistics
type DashboardHandler struct {
	noteService services.NoteServiceInterface
	logger      *logrus.Logger
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(noteService services.NoteServiceInterface, logger *logrus.Logger) *DashboardHandler {
	return &DashboardHandler{
		noteService: noteService,
		logger:      logger,
	}
}

// GetStats returns the user's spending statistics
// @Summary Dashboard statistics
// @Description Total spent, note and product counts, and spending grouped by category
// @Tags Dashboard
// @Produce json
// @Param X-User-ID header int true "Authenticated user ID"
// @Success 200 {object} models.DashboardStats
// @Failure 500 {object} models.ErrorResponse
// @Router /dashboard/stats [get]
func (h *DashboardHandler) GetStats(c *gin.Context) {
	userID := middleware.GetUserID(c)

	stats, err := h.noteService.GetStats(c.Request.Context(), userID)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"user_id":    userID,
			"error":      err.Error(),
		}).Error("Failed to compute dashboard stats")

		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:     "Internal server error",
			Message:   "Failed to compute statistics",
			Code:      "STATS_FAILED",
			Timestamp: time.Now(),
			Path:      c.Request.URL.Path,
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}
