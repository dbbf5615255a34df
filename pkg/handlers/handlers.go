package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/arnavshah/route-planner-api/pkg/auth"
	"github.com/arnavshah/route-planner-api/pkg/config"
	"github.com/arnavshah/route-planner-api/pkg/database"
	"github.com/arnavshah/route-planner-api/pkg/imaging"
	"github.com/arnavshah/route-planner-api/pkg/jobs"
	"github.com/arnavshah/route-planner-api/pkg/models"
	"github.com/arnavshah/route-planner-api/pkg/notify"
	"github.com/arnavshah/route-planner-api/pkg/routes"
	"github.com/arnavshah/route-planner-api/pkg/scheduler"
	"github.com/arnavshah/route-planner-api/pkg/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Handler contains dependencies for the route handlers
type Handler struct {
	DB         *gorm.DB
	Directory  database.DirectoryRepository
	Jobs       database.JobRepository
	Catalog    *routes.Catalog
	Editor     *routes.Editor
	Scheduler  *scheduler.Materializer
	Lifecycle  *jobs.Lifecycle
	Broker     *notify.Broker
	ReceiptDir string
	ReceiptURL string
}

// NewHandler wires the repositories and services on db and loads the
// template catalog and assignment map
func NewHandler(ctx context.Context, db *gorm.DB, cfg *config.Config) (*Handler, error) {
	broker := notify.NewBroker()
	if err := database.RegisterNotifications(db, broker); err != nil {
		return nil, err
	}

	dir := database.NewGormDirectoryRepository(db)
	jobRepo := database.NewGormJobRepository(db)

	catalog := routes.NewCatalog(database.NewGormTemplateRepository(db), cfg.TemplateSlots)
	if _, err := catalog.Load(ctx); err != nil {
		return nil, err
	}

	sched := scheduler.NewMaterializer(catalog, dir, jobRepo, database.NewGormAssignmentRepository(db),
		scheduler.WithLogger(log.Default()),
		scheduler.WithLocation(cfg.Location),
	)
	if err := sched.Load(ctx); err != nil {
		return nil, err
	}

	lifecycle := jobs.NewLifecycle(jobRepo,
		storage.NewLocalStore(cfg.ReceiptDir, cfg.ReceiptBaseURL),
		imaging.New(cfg.ReceiptMaxEdge),
		jobs.WithLogger(log.Default()),
		jobs.WithLocation(cfg.Location),
	)

	return &Handler{
		DB:         db,
		Directory:  dir,
		Jobs:       jobRepo,
		Catalog:    catalog,
		Editor:     routes.NewEditor(catalog, dir),
		Scheduler:  sched,
		Lifecycle:  lifecycle,
		Broker:     broker,
		ReceiptDir: cfg.ReceiptDir,
		ReceiptURL: cfg.ReceiptBaseURL,
	}, nil
}

// Register mounts every route on r
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Route Planner API",
			"version": "1.0.0",
		})
	})
	r.GET("/health", h.Health)
	r.POST("/admin/login", h.Login)
	if strings.HasPrefix(h.ReceiptURL, "/") {
		r.Static(h.ReceiptURL, h.ReceiptDir)
	}

	// Office endpoints
	api := r.Group("/api")
	api.Use(h.AuthMiddleware())
	{
		api.GET("/employees", h.ListEmployees)
		api.POST("/employees", h.CreateEmployee)
		api.PATCH("/employees/:id", h.UpdateEmployee)
		api.POST("/employees/:id/device-key", h.GenerateDeviceKey)
		api.GET("/clients", h.ListClients)
		api.POST("/clients", h.CreateClient)
		api.POST("/clients/:id/branches", h.CreateBranch)
		api.DELETE("/branches/:id", h.DeleteBranch)

		api.GET("/templates", h.ListTemplates)
		api.GET("/templates/:slot", h.GetTemplate)
		api.GET("/templates/:slot/validate", h.ValidateTemplate)
		api.GET("/templates/:slot/pending", h.ListPending)
		api.POST("/templates/:slot/pending", h.StagePending)
		api.DELETE("/templates/:slot/pending", h.ClearPending)
		api.POST("/templates/:slot/commit", h.CommitPending)
		api.PUT("/templates/:slot/stops", h.EditStop)
		api.DELETE("/templates/:slot/stops", h.RemoveStop)
		api.POST("/templates/:slot/reassign", h.BulkReassign)
		api.POST("/templates/:slot/move", h.MoveStops)

		api.GET("/assignments", h.ListAssignments)
		api.PUT("/assignments/:date", h.AssignDate)
		api.DELETE("/assignments/:date", h.UnassignDate)

		api.GET("/jobs", h.ListJobs)
		api.DELETE("/jobs/:id", h.DeleteJob)

		api.GET("/events", h.Events)
	}

	// Field device endpoints
	field := r.Group("/field")
	field.Use(h.DeviceKeyMiddleware())
	{
		field.GET("/jobs", h.MyJobs)
		field.POST("/jobs/:id/complete", h.CompleteJob)
	}
}

func bearer(c *gin.Context) string {
	token := c.GetHeader("Authorization")
	if len(token) > 7 && token[:7] == "Bearer " {
		token = token[7:]
	}
	return token
}

// AuthMiddleware verifies the JWT token for office routes
func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearer(c)
		if token == "" {
			// EventSource cannot set headers
			token = c.Query("access_token")
		}
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		claims, err := auth.VerifyToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		c.Set("username", claims.Username)
		c.Next()
	}
}

// DeviceKeyMiddleware verifies the HMAC key of a field device and records
// which employee it acts for
func (h *Handler) DeviceKeyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := bearer(c)
		if key == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Device key required"})
			c.Abort()
			return
		}

		employeeID, err := auth.VerifyDeviceKey(key)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid device key signature"})
			c.Abort()
			return
		}

		emp, err := h.Directory.GetEmployee(c.Request.Context(), employeeID)
		if err != nil || !emp.Active {
			c.JSON(http.StatusForbidden, gin.H{"error": "Employee is not active"})
			c.Abort()
			return
		}

		c.Set("employee", emp)
		c.Next()
	}
}

func currentEmployee(c *gin.Context) *models.Employee {
	v, _ := c.Get("employee")
	emp, _ := v.(*models.Employee)
	return emp
}

// Health reports whether the database answers
func (h *Handler) Health(c *gin.Context) {
	sqlDB, err := h.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Login handles admin login
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := auth.Login(h.DB, req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
}

// respondError maps domain errors onto status codes
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrDuplicateStop), errors.Is(err, models.ErrJobCompleted):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case models.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Printf("Error: %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not complete request", "details": err.Error()})
	}
}

func slotParam(c *gin.Context) (int, bool) {
	slot, err := strconv.Atoi(c.Param("slot"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid template slot %q", c.Param("slot"))})
		return 0, false
	}
	return slot, true
}

func idParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid id %q", c.Param("id"))})
		return uuid.Nil, false
	}
	return id, true
}
