package main

import (
	"fmt"
	"log"

	"github.com/akidev/akibot/internal/app"
)

// set via -ldflags at build time
var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	fmt.Printf("akibot %s (built %s)\n", version, buildTime)

	application, err := app.New()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	if err := application.Start(); err != nil {
		application.Logger.WithError(err).Fatal("Application failed")
	}

	application.WaitForShutdown()
}
