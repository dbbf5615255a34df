package handlers

import (
	"net/http"

	"github.com/arnavshah/route-planner-api/pkg/models"
	"github.com/gin-gonic/gin"
)

// ListAssignments returns the date to slot map
func (h *Handler) ListAssignments(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"assignments": h.Scheduler.Assignments(),
		"dates":       h.Scheduler.Dates(),
	})
}

// AssignDate materializes a slot onto :date, replacing that day's jobs
func (h *Handler) AssignDate(c *gin.Context) {
	day, err := models.ParseDate(c.Param("date"), h.Scheduler.Location())
	if err != nil {
		respondError(c, err)
		return
	}
	var req struct {
		TemplateSlot int `json:"template_slot"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.Scheduler.Assign(c.Request.Context(), day, req.TemplateSlot)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// UnassignDate clears :date. Clearing an unassigned date succeeds.
func (h *Handler) UnassignDate(c *gin.Context) {
	day, err := models.ParseDate(c.Param("date"), h.Scheduler.Location())
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.Scheduler.Unassign(c.Request.Context(), day); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": models.FormatDate(day), "message": "Date unassigned"})
}
