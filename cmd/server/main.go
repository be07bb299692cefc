package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/JorgeSaicoski/timesheet-tracker/internal/config"
	"github.com/JorgeSaicoski/timesheet-tracker/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	log := server.NewLogger(cfg.Log)

	if err := server.Run(context.Background(), cfg, log); err != nil {
		log.Error("server failed", "err", err)
		os.Exit(1)
	}
}
