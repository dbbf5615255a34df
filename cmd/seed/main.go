package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/arnavshah/route-planner-api/pkg/config"
	"github.com/arnavshah/route-planner-api/pkg/database"
	"github.com/arnavshah/route-planner-api/pkg/seed"
)

func main() {
	config.LoadDotEnv()

	if len(os.Args) < 2 {
		fmt.Println("Usage: seed <file.yaml>")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	f, err := seed.LoadFile(os.Args[1])
	if err != nil {
		log.Fatalf("%v", err)
	}

	db := database.InitDB(cfg)
	sum, err := seed.Apply(context.Background(), database.NewGormDirectoryRepository(db), f)
	if err != nil {
		log.Fatalf("%v", err)
	}
	fmt.Printf("Created %d employees, %d clients, %d branches\n", sum.Employees, sum.Clients, sum.Branches)
}
