package main

import (
	"flag"
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/danmuck/dapcore/internal/core"
	"github.com/danmuck/dapcore/internal/logging"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "path to dapcore TOML config")
	silent := flag.Bool("silent", false, "log warnings and errors only")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	run := runConfig{Service: core.DefaultServiceConfig()}
	if *configPath != "" {
		loaded, err := loadServiceConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "dapcore: %v\n", err)
			os.Exit(1)
		}
		run = loaded
	}
	if *silent {
		run.Silent = true
	}
	if *debug {
		run.Debug = true
	}

	logging.Configure(logProfile(run))
	if *configPath != "" {
		log.Info().Str("path", *configPath).Msg("dapcore loaded config")
	}

	svc := core.NewServiceWithConfig(run.Service)
	if err := svc.Run(); err != nil {
		log.Error().Err(err).Msg("dapcore stopped")
		os.Exit(1)
	}
}

// logProfile picks the console profile; debug wins over silent.
func logProfile(run runConfig) logging.Profile {
	switch {
	case run.Debug:
		return logging.ProfileDebug
	case run.Silent:
		return logging.ProfileSilent
	default:
		return logging.ProfileRuntime
	}
}
