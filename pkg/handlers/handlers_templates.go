package handlers

import (
	"net/http"

	"github.com/arnavshah/route-planner-api/pkg/models"
	"github.com/arnavshah/route-planner-api/pkg/routes"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ListTemplates returns every slot. ?refresh=1 rereads the store first so
// writes from other instances show up.
func (h *Handler) ListTemplates(c *gin.Context) {
	if c.Query("refresh") == "1" || c.Query("refresh") == "true" {
		slots, err := h.Editor.Reload(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"templates": slots})
		return
	}
	c.JSON(http.StatusOK, gin.H{"templates": h.Catalog.Slots()})
}

func (h *Handler) GetTemplate(c *gin.Context) {
	slot, ok := slotParam(c)
	if !ok {
		return
	}
	tpl, err := h.Catalog.Slot(slot)
	if err != nil {
		respondError(c, err)
		return
	}
	pending, err := h.Editor.Pending(slot)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"template":     tpl,
		"pending":      pending,
		"working_time": h.Editor.WorkingTime(slot),
	})
}

func (h *Handler) ListPending(c *gin.Context) {
	slot, ok := slotParam(c)
	if !ok {
		return
	}
	pending, err := h.Editor.Pending(slot)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pending": pending, "working_time": h.Editor.WorkingTime(slot)})
}

// StagePending adds one stop per selected branch to the slot's pending list
func (h *Handler) StagePending(c *gin.Context) {
	slot, ok := slotParam(c)
	if !ok {
		return
	}
	var req struct {
		EmployeeID uuid.UUID   `json:"employee_id"`
		ClientID   uuid.UUID   `json:"client_id"`
		BranchIDs  []uuid.UUID `json:"branch_ids"`
		Time       string      `json:"time"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.Editor.Stage(c.Request.Context(), routes.StageRequest{
		Slot:       slot,
		EmployeeID: req.EmployeeID,
		ClientID:   req.ClientID,
		BranchIDs:  req.BranchIDs,
		Time:       req.Time,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ClearPending(c *gin.Context) {
	slot, ok := slotParam(c)
	if !ok {
		return
	}
	if err := h.Editor.ClearPending(slot); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pending": []models.Stop{}})
}

func (h *Handler) CommitPending(c *gin.Context) {
	slot, ok := slotParam(c)
	if !ok {
		return
	}
	tpl, err := h.Editor.Commit(c.Request.Context(), slot)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"template": tpl})
}

// RemoveStop deletes the stop named by ?key=
func (h *Handler) RemoveStop(c *gin.Context) {
	slot, ok := slotParam(c)
	if !ok {
		return
	}
	key := c.Query("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key is required"})
		return
	}
	tpl, err := h.Editor.Remove(c.Request.Context(), slot, models.StopKey(key))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"template": tpl})
}

// EditStop replaces one stop. Omitted fields keep their value.
func (h *Handler) EditStop(c *gin.Context) {
	slot, ok := slotParam(c)
	if !ok {
		return
	}
	var req struct {
		Key        models.StopKey `json:"key"`
		EmployeeID uuid.UUID      `json:"employee_id"`
		ClientID   uuid.UUID      `json:"client_id"`
		BranchID   uuid.UUID      `json:"branch_id"`
		Time       string         `json:"time"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key is required"})
		return
	}

	tpl, err := h.Editor.Edit(c.Request.Context(), slot, req.Key, routes.StopChange{
		EmployeeID: req.EmployeeID,
		ClientID:   req.ClientID,
		BranchID:   req.BranchID,
		Time:       req.Time,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"template": tpl})
}

func (h *Handler) BulkReassign(c *gin.Context) {
	slot, ok := slotParam(c)
	if !ok {
		return
	}
	var req struct {
		Keys       []models.StopKey `json:"keys"`
		EmployeeID uuid.UUID        `json:"employee_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tpl, err := h.Editor.BulkReassign(c.Request.Context(), slot, req.Keys, req.EmployeeID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"template": tpl})
}

func (h *Handler) MoveStops(c *gin.Context) {
	slot, ok := slotParam(c)
	if !ok {
		return
	}
	var req struct {
		Target int              `json:"target"`
		Keys   []models.StopKey `json:"keys"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.Editor.Move(c.Request.Context(), slot, req.Target, req.Keys)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
