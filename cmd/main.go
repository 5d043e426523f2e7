package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"coach-agent/internal/app"
	"coach-agent/internal/config"
	"coach-agent/internal/observability"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}
	observability.Setup(os.Stdout, cfg.LogLevel)
	if cfg.StateBackend == config.BackendMemory {
		slog.Warn("memory state backend does not survive cold starts; set STATE_TABLE")
	}

	// ---- Clients, store, service, handler ----
	a, err := app.Build(ctx, cfg, app.Deps{})
	if err != nil {
		slog.Error("failed to build app", "err", err)
		os.Exit(1)
	}

	lambda.Start(a.Handler.Handle)
}
