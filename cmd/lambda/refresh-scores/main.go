// Score Refresh Lambda entry point
package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"

	"nil-match-engine/internal/app"
	"nil-match-engine/internal/config"
	"nil-match-engine/internal/handlers"
	"nil-match-engine/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	_ = utils.InitLogger(cfg.LogLevel)
	defer utils.Sync()

	a, err := app.New(context.Background(), cfg, utils.GetLogger())
	if err != nil {
		panic("Failed to initialize services: " + err.Error())
	}
	defer a.Close()

	// Create handler
	handler := handlers.NewRefreshTriggerHandler(a.Refresh, utils.GetLogger())

	// Start Lambda
	lambda.Start(handler.Handle)
}
