// Health Check Lambda entry point
package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"nil-match-engine/internal/app"
	"nil-match-engine/internal/config"
	"nil-match-engine/internal/handlers"
	"nil-match-engine/internal/utils"
)

// initError reports a failed startup as a disconnected store.
type initError struct{ err error }

func (e initError) Ping(context.Context) error { return e.err }

func main() {
	// Initialize logger
	_ = utils.InitLogger("info")
	defer utils.Sync()
	logger := utils.GetLogger()

	var checker *handlers.HealthChecker
	cfg, err := config.Load()
	if err == nil {
		var a *app.App
		if a, err = app.New(context.Background(), cfg, logger); err == nil {
			defer a.Close()
			checker = handlers.NewHealthChecker(a.Store)
		}
	}
	if err != nil {
		logger.Warn("Health check running without a store", zap.Error(err))
		checker = handlers.NewHealthChecker(initError{err: err})
	}

	// Start Lambda
	lambda.Start(checker.Handle)
}
