package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/p-arndt/werkbank/internal/api"
	"github.com/p-arndt/werkbank/internal/config"
	"github.com/p-arndt/werkbank/internal/docker"
	"github.com/p-arndt/werkbank/internal/images"
	"github.com/p-arndt/werkbank/internal/janitor"
	"github.com/p-arndt/werkbank/internal/session"
	"github.com/p-arndt/werkbank/internal/settings"
	"github.com/p-arndt/werkbank/internal/source"
)

func main() {
	cfgPath := flag.String("config", "", "path to werkbank.yaml")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	st, err := settings.New(cfg.SettingsDBPath)
	if err != nil {
		logger.Error("open settings store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	dc, err := docker.New(cfg.Sandbox)
	if err != nil {
		logger.Error("docker client", "error", err)
		os.Exit(1)
	}
	defer dc.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := dc.Ping(ctx); err != nil {
		logger.Error("docker ping failed — is Docker running?", "error", err)
		os.Exit(1)
	}
	logger.Info("docker connection OK")

	if cfg.PrepullImages {
		go images.New(dc, logger).PrepullAll(ctx, cfg)
	}

	table := session.NewTable()
	mgr := session.NewManager(cfg, table, dc, source.NewClient(cfg.SourceBaseURL), logger)

	jan := janitor.New(dc, table, time.Duration(cfg.JanitorInterval)*time.Second, logger)
	go jan.Run(ctx)

	srv := api.NewServer(cfg, mgr, dc, st, logger)

	httpServer := &http.Server{
		Addr:        cfg.Listen,
		Handler:     srv.Handler(),
		ReadTimeout: 30 * time.Second,
		// Websocket connections stay open for the life of a session; no
		// write timeout.
		IdleTimeout: 60 * time.Second,
	}

	// Graceful shutdown: stop accepting, then tear down every live sandbox.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		<-sigCh
		logger.Info("shutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", "addr", cfg.Listen)
	fmt.Fprintf(os.Stderr, "\n  werkbank daemon ready at http://%s\n\n", cfg.Listen)

	err = httpServer.ListenAndServe()

	sweepCtx, sweepCancel := context.WithTimeout(context.Background(), time.Minute)
	mgr.Sweep(sweepCtx)
	sweepCancel()

	if err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
