package handlers

import (
	"net/http"
	"strings"

	"github.com/arnavshah/route-planner-api/pkg/auth"
	"github.com/arnavshah/route-planner-api/pkg/models"
	"github.com/gin-gonic/gin"
)

// ListEmployees returns employees, only active ones with ?active=true
func (h *Handler) ListEmployees(c *gin.Context) {
	activeOnly := c.Query("active") == "true" || c.Query("active") == "1"
	list, err := h.Directory.ListEmployees(c.Request.Context(), activeOnly)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"employees": list})
}

func (h *Handler) CreateEmployee(c *gin.Context) {
	var req struct {
		Name   string `json:"name"`
		Active *bool  `json:"active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	emp := &models.Employee{Name: req.Name, Active: req.Active == nil || *req.Active}
	if err := h.Directory.CreateEmployee(c.Request.Context(), emp); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, emp)
}

// UpdateEmployee toggles whether an employee can be given stops
func (h *Handler) UpdateEmployee(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req struct {
		Active *bool `json:"active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Active == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "active is required"})
		return
	}

	ctx := c.Request.Context()
	if err := h.Directory.SetEmployeeActive(ctx, id, *req.Active); err != nil {
		respondError(c, err)
		return
	}
	emp, err := h.Directory.GetEmployee(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, emp)
}

// GenerateDeviceKey issues the key a field device uses for this employee
func (h *Handler) GenerateDeviceKey(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	emp, err := h.Directory.GetEmployee(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"employee_id": emp.ID,
		"name":        emp.Name,
		"key":         auth.GenerateDeviceKey(emp.ID),
	})
}

func (h *Handler) ListClients(c *gin.Context) {
	list, err := h.Directory.ListClients(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"clients": list})
}

func (h *Handler) CreateClient(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	client := &models.Client{Name: req.Name}
	if err := h.Directory.CreateClient(c.Request.Context(), client); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, client)
}

func (h *Handler) CreateBranch(c *gin.Context) {
	clientID, ok := idParam(c)
	if !ok {
		return
	}
	var req struct {
		Name    string `json:"name"`
		Address string `json:"address"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	branch := &models.Branch{ClientID: clientID, Name: req.Name, Address: strings.TrimSpace(req.Address)}
	if err := h.Directory.CreateBranch(c.Request.Context(), branch); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, branch)
}

// DeleteBranch removes a branch. Stops that still reference it are dropped
// when their template is next assigned.
func (h *Handler) DeleteBranch(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.Directory.DeleteBranch(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Branch deleted"})
}
