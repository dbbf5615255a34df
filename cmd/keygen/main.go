package main

import (
	"fmt"
	"os"

	"github.com/arnavshah/route-planner-api/pkg/auth"
	"github.com/arnavshah/route-planner-api/pkg/config"
	"github.com/google/uuid"
)

func main() {
	config.LoadDotEnv()

	if len(os.Args) < 2 {
		fmt.Println("Usage: keygen <employeeID>")
		os.Exit(1)
	}

	employeeID, err := uuid.Parse(os.Args[1])
	if err != nil {
		fmt.Printf("Error: %q is not an employee id\n", os.Args[1])
		os.Exit(1)
	}
	if os.Getenv("API_MASTER_SECRET") == "" {
		fmt.Println("Error: API_MASTER_SECRET not found in .env")
		os.Exit(1)
	}

	fmt.Printf("Device key for %s:\n%s\n", employeeID, auth.GenerateDeviceKey(employeeID))
}
