package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/biohotR/asynch-server/internal/obslog"
	"github.com/biohotR/asynch-server/internal/reactor"
	"github.com/biohotR/asynch-server/internal/serverconfig"
)

var defaultConfigPath = "awsd.ini"

func main() {
	log.SetLevel(log.InfoLevel)

	configPath := flag.String("c", defaultConfigPath, "path to an awsd.ini configuration file")
	listenAddr := flag.String("l", "", "listen address, overrides the config file's listen_addr")
	flag.Parse()

	cfg := serverconfig.Default()
	if _, err := os.Stat(*configPath); err == nil {
		loaded, err := serverconfig.LoadFile(*configPath)
		if err != nil {
			log.Fatalf("failed to load %s: %v", *configPath, err)
		}
		cfg = loaded
	} else {
		log.Infof("no config file at %s, using defaults", *configPath)
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := obslog.NewTextLogger(slog.LevelInfo)
	loop := reactor.NewLoop(cfg, logger)

	log.Infof("starting asynch-server on %s (static=%s dynamic=%s)", cfg.ListenAddr, cfg.StaticRoot, cfg.DynamicRoot)
	if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("server exited: %v", err)
	}
	log.Info("server stopped")
}
