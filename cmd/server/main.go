package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/CunningBard/minase/internal"
	"github.com/CunningBard/minase/server/minasewire"
)

func main() {
	var (
		cfgPath = flag.String("config", "", "yaml config file")
		addr    = flag.String("addr", "", "listen address (overrides config)")
	)
	flag.Parse()

	cfg, err := internal.LoadConfig(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	lvl, _ := cfg.SlogLevel()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))

	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = minasewire.Run(ctx, minasewire.ServerConfig{
		Addr:         cfg.Server.Addr,
		MaxFrameSize: cfg.Wire.MaxFrameSize,
		SeedRows:     cfg.Server.SeedRows,
	})
	if err != nil {
		slog.Error("server stopped", "err", err)
		os.Exit(1)
	}
	slog.Info("shutting down")
}
