// Roster Upload URL Lambda entry point
package main

import (
	"context"
	"log"
	"time"

	"github.com/aws/aws-lambda-go/lambda"

	"nil-match-engine/internal/config"
	"nil-match-engine/internal/handlers"
	s3service "nil-match-engine/internal/services/s3"
	"nil-match-engine/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.RosterBucket == "" {
		log.Fatal("ROSTER_BUCKET is required")
	}

	// Initialize logger
	_ = utils.InitLogger(cfg.LogLevel)
	defer utils.Sync()

	uploads, err := s3service.NewService(context.Background(), cfg.AWSRegion, cfg.RosterBucket)
	if err != nil {
		panic("Failed to create S3 service: " + err.Error())
	}

	// Create handler
	handler := handlers.NewRosterUploadHandler(uploads, 15*time.Minute, utils.GetLogger())

	// Start Lambda
	lambda.Start(handler.Handle)
}
