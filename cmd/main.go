package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"bread-widget/internal/app"
	"bread-widget/internal/config"
)

// Pages are held in process memory. Deploy with reserved concurrency 1 so
// every request for a page reaches the instance that created it; requests
// that land elsewhere get the "reload" notice.
func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	h, err := app.NewHandler(ctx, cfg)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}
