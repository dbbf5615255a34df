package handlers

import (
	"net/http"
	"time"

	"github.com/arnavshah/route-planner-api/pkg/models"
	"github.com/gin-gonic/gin"
)

// ValidateTemplate reports what assigning the slot to ?date= would produce
// without writing anything
func (h *Handler) ValidateTemplate(c *gin.Context) {
	slot, ok := slotParam(c)
	if !ok {
		return
	}
	loc := h.Scheduler.Location()
	day := time.Now().In(loc)
	if raw := c.Query("date"); raw != "" {
		d, err := models.ParseDate(raw, loc)
		if err != nil {
			respondError(c, err)
			return
		}
		day = d
	}

	plan, err := h.Scheduler.Plan(c.Request.Context(), day, slot)
	if err != nil {
		if models.IsValidation(err) {
			c.JSON(http.StatusOK, gin.H{"valid": false, "error": err.Error()})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":   true,
		"date":    models.FormatDate(plan.Date),
		"slot":    plan.Slot,
		"jobs":    len(plan.Valid),
		"dropped": plan.Dropped,
		"stats": gin.H{
			"stop_count":    len(plan.Valid) + len(plan.Dropped),
			"dropped_count": len(plan.Dropped),
		},
	})
}
