package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/moonkev/urlmapedit/internal/common/telemetry"
	"github.com/moonkev/urlmapedit/internal/editor"
)

func main() {

	opts := newOptions()
	opts.register(flag.CommandLine)
	flag.Parse()

	// Configure structured logging
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: opts.logLevel.Level()}))
	slog.SetDefault(logger)

	// Validate flags
	req, err := opts.request()
	if err != nil {
		slog.Error("invalid flags", "error", err)
		os.Exit(1)
	}

	st, err := opts.store()
	if err != nil {
		slog.Error("failed to set up url map store", "error", err)
		os.Exit(1)
	}

	// Initialize metrics
	telemetry.InitMetrics()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	res, err := editor.Run(ctx, st, req)
	if err != nil {
		slog.Error("failed to edit url map", "store", st.String(), "error", err)
		writeMetrics(opts.metricsFile)
		os.Exit(1)
	}

	if opts.envoyOut != "" {
		if err := os.WriteFile(opts.envoyOut, append(res.EnvoyConfig, '\n'), 0o644); err != nil {
			slog.Error("failed to write envoy route configuration", "path", opts.envoyOut, "error", err)
			os.Exit(1)
		}
		slog.Info("Wrote envoy route configuration", "path", opts.envoyOut)
	}
	writeMetrics(opts.metricsFile)

	if !opts.dryRun {
		fmt.Println("URL map has been written, exiting.")
	}
}

func writeMetrics(path string) {
	if path == "" {
		return
	}
	if err := telemetry.WriteTextfile(path); err != nil {
		slog.Warn("failed to write metrics file", "path", path, "error", err)
	}
}
