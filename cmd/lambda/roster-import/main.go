// Roster Import Lambda entry point, triggered by S3 uploads under rosters/
package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"

	"nil-match-engine/internal/app"
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

	// Initialize logger
	_ = utils.InitLogger(cfg.LogLevel)
	defer utils.Sync()

	ctx := context.Background()
	a, err := app.New(ctx, cfg, utils.GetLogger())
	if err != nil {
		panic("Failed to initialize services: " + err.Error())
	}
	defer a.Close()

	// Downloads use the bucket named in each event record.
	objects := a.Rosters
	if objects == nil {
		if objects, err = s3service.NewService(ctx, cfg.AWSRegion, ""); err != nil {
			panic("Failed to create S3 client: " + err.Error())
		}
	}

	// Create handler
	handler := handlers.NewRosterImportHandler(objects, a.Repo, utils.GetLogger())

	// Start Lambda
	lambda.Start(handler.Handle)
}
