package handler

import (
	"context"
	"log"
	"net/http"

	"github.com/arnavshah/route-planner-api/pkg/auth"
	"github.com/arnavshah/route-planner-api/pkg/config"
	"github.com/arnavshah/route-planner-api/pkg/database"
	"github.com/arnavshah/route-planner-api/pkg/handlers"
	"github.com/gin-gonic/gin"
)

var engine *gin.Engine

func init() {
	// .env is only present under vercel dev
	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	db := database.InitDB(cfg)
	_ = auth.EnsureAdminExists(db)
	h, err := handlers.NewHandler(context.Background(), db, cfg)
	if err != nil {
		log.Fatalf("could not load state: %v", err)
	}

	gin.SetMode(gin.ReleaseMode)
	engine = gin.New()
	engine.Use(gin.Logger(), gin.Recovery())
	h.Register(engine)
}

// Handler is the entry point for Vercel Go Runtime
func Handler(w http.ResponseWriter, req *http.Request) {
	engine.ServeHTTP(w, req)
}
