package main

import (
	"fmt"
	"os"

	"go.uber.org/fx"

	"hscsupdater/internal/app"
	"hscsupdater/internal/config"
	"hscsupdater/internal/logging"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "hscsupdater: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hscsupdater: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	fx.New(app.Options(cfg, log)).Run()
}
