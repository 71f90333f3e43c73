package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/dapcore/internal/config"
	"github.com/danmuck/dapcore/internal/logging"
	"github.com/danmuck/dapcore/internal/receiver"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "path to receiver TOML config")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	cfg := config.DefaultReceiverConfig()
	if *configPath != "" {
		loaded, err := config.LoadReceiverConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "dapreceiver: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *debug {
		logging.Configure(logging.ProfileDebug)
	} else {
		logging.ConfigureRuntime()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lines := make(chan string, 64)
	scanner := receiver.NewScanner(cfg.RICBlacklist)
	// stdin reads cannot be interrupted; the scanner is abandoned on shutdown
	go func() {
		if err := scanner.Run(ctx, os.Stdin, lines); err != nil {
			log.Error().Err(err).Msg("dapreceiver stdin failed")
		}
	}()

	fwd := receiver.NewForwarder(receiver.ForwarderConfig{
		SocketPath: cfg.SocketPath,
		RetryDelay: cfg.RetryDelay,
		AckTimeout: cfg.AckTimeout,
	})
	log.Info().Str("socket", cfg.SocketPath).Int("blacklisted", len(cfg.RICBlacklist)).Msg("dapreceiver started")
	if err := fwd.Run(ctx, lines); err != nil {
		log.Error().Err(err).Msg("dapreceiver stopped")
		os.Exit(1)
	}
	log.Info().Msg("dapreceiver shutdown")
}
