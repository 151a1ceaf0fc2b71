package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"echoe-api/internal/app"
	"echoe-api/internal/config"
	"echoe-api/internal/logging"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg := config.Load(os.Getenv)

	logger, err := logging.New(cfg.LogLevel, zap.String("service", "echoe-api"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// ---- Clients ----
	params, err := app.ParamStore(ctx, cfg.ParamPrefix)
	if err != nil {
		logger.Fatal("failed to create parameter store", zap.Error(err))
	}

	// ---- Handler ----
	h, err := app.NewHandler(cfg, os.Getenv, params, logger)
	if err != nil {
		logger.Fatal("failed to create handler", zap.Error(err))
	}

	lambda.Start(h.Handle)
}
