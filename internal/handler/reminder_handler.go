package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/docflow-api/internal/models"
	"github.com/noah-isme/docflow-api/pkg/response"
)

type reminderSuggester interface {
	SuggestReminder(due time.Time) (*models.ReminderSuggestion, error)
}

// SuggestReminderRequest carries the due date to plan around.
type SuggestReminderRequest struct {
	DueDate time.Time `json:"dueDate" binding:"required"`
}

// ReminderHandler exposes reminder planning.
type ReminderHandler struct {
	service reminderSuggester
}

// NewReminderHandler constructs the handler.
func NewReminderHandler(svc reminderSuggester) *ReminderHandler {
	return &ReminderHandler{service: svc}
}

// Suggest godoc
// @Summary Suggest a reminder time
// @Description Scales the reminder lead to how far away the due date is.
// @Tags Reminders
// @Accept json
// @Produce json
// @Param payload body SuggestReminderRequest true "Due date"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /reminders/suggest [post]
func (h *ReminderHandler) Suggest(c *gin.Context) {
	var req SuggestReminderRequest
	if !bindJSON(c, &req) {
		return
	}

	suggestion, err := h.service.SuggestReminder(req.DueDate)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, suggestion, nil)
}
