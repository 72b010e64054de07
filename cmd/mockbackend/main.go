// Package main runs an in-memory DeliHood backend for manual runs of the
// terminal client. It serves the REST contract and the realtime websocket,
// and walks placed orders through their lifecycle on a timer.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/delihood/client/internal/logging"
)

// Config holds the mock backend flags
type Config struct {
	Addr     string
	Step     time.Duration
	TokenTTL time.Duration
	Secret   string
	Verbose  bool
}

func parseFlags() *Config {
	cfg := &Config{}
	flag.StringVar(&cfg.Addr, "addr", ":8080", "HTTP listen address")
	flag.DurationVar(&cfg.Step, "step", 5*time.Second, "Time between order lifecycle steps")
	flag.DurationVar(&cfg.TokenTTL, "token-ttl", 5*time.Minute, "Access token lifetime")
	flag.StringVar(&cfg.Secret, "secret", "delihood-dev-secret", "HS256 signing secret")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "Enable request logging")
	flag.Parse()
	return cfg
}

func main() {
	cfg := parseFlags()

	logConfig := logging.Config{Level: logging.InfoLevel, Format: "text", Component: "mockbackend"}
	if cfg.Verbose {
		logConfig.Level = logging.DebugLevel
	}
	logger := logging.New(os.Stdout, logConfig)

	backend := NewBackend([]byte(cfg.Secret), cfg.TokenTTL, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go backend.Simulate(ctx, cfg.Step)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           backend.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	fmt.Printf("DeliHood mock backend listening on %s\n", cfg.Addr)
	fmt.Println("Demo account: demo@delihood.dev / delihood")
	fmt.Printf("Orders advance one lifecycle step every %s\n", cfg.Step)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Mock backend stopped")
}
