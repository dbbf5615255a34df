package main

import (
	"context"
	"log"

	"github.com/arnavshah/route-planner-api/pkg/auth"
	"github.com/arnavshah/route-planner-api/pkg/config"
	"github.com/arnavshah/route-planner-api/pkg/database"
	"github.com/arnavshah/route-planner-api/pkg/handlers"
	"github.com/gin-gonic/gin"
)

func main() {
	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	if cfg.GinMode == "" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(cfg.GinMode)
	}

	db := database.InitDB(cfg)
	if err := auth.EnsureAdminExists(db); err != nil {
		log.Printf("Warning: could not create admin user: %v", err)
	}

	h, err := handlers.NewHandler(context.Background(), db, cfg)
	if err != nil {
		log.Fatalf("could not load state: %v", err)
	}

	r := gin.Default()
	h.Register(r)

	log.Printf("Server starting on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("could not run server: %v", err)
	}
}
