package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campaignsim/internal/orchestrator"
	"campaignsim/internal/platform/config"
	"campaignsim/internal/platform/otel"
	"campaignsim/internal/server"
)

// serverConfig holds the HTTP host settings.
type serverConfig struct {
	Addr     string `env:"CAMPAIGNSIM_ADDR" envDefault:":8080"`
	LogLevel string `env:"CAMPAIGNSIM_LOG_LEVEL" envDefault:"info"`
}

func parseConfig(fs *flag.FlagSet, args []string) (serverConfig, error) {
	var cfg serverConfig
	if err := config.ParseEnv(&cfg); err != nil {
		return serverConfig{}, err
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		return serverConfig{}, err
	}
	return cfg, nil
}

func main() {
	log.SetPrefix("[campaignsim] ")

	if err := config.LoadDotEnv(".env"); err != nil {
		log.Fatalf("dotenv: %v", err)
	}
	cfg, err := parseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	simCfg, err := config.SimulationDefaults()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		log.Fatalf("log level: %v", err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Setup(ctx, "campaignsim-server")
	if err != nil {
		log.Fatalf("otel: %v", err)
	}

	engine, err := orchestrator.NewEngine(simCfg, orchestrator.WithLogger(logger))
	if err != nil {
		log.Fatalf("engine: %v", err)
	}
	srv := server.NewServer(engine, logger)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
		// Shutdown leaves hijacked websocket connections open.
		srv.Close()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Printf("otel shutdown: %v", err)
		}
	}()

	log.Printf("listening on %s (iterations=%d batches=%d)", cfg.Addr, simCfg.Iterations, simCfg.ParallelBatches)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}
