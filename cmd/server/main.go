package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"cryptoscout/internal/api"
	"cryptoscout/internal/config"
	"cryptoscout/internal/logging"
	"cryptoscout/pkg/cryptoscout"
)

func main() {
	host := flag.String("host", "127.0.0.1", "listen host")
	port := flag.Int("port", 8080, "listen port")
	webDir := flag.String("web-dir", "", "optional directory with the dashboard static files")
	logDir := flag.String("log-dir", "logs", "directory for log files")
	flag.Parse()

	if err := run(*host, *port, *webDir, *logDir); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run(host string, port int, webDir, logDir string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, logWriter, err := logging.NewLogger(logDir)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logWriter.Close()

	var provider cryptoscout.DataProvider
	switch cfg.Provider {
	case config.ProviderCoinGecko:
		provider = cryptoscout.NewCoinGecko(cryptoscout.CoinGeckoOptions{
			APIKey: cfg.CoinGeckoAPIKey,
			Logger: logger,
		})
	case config.ProviderCoinCap:
		provider = cryptoscout.NewCoinCap(cryptoscout.CoinCapOptions{
			APIKey: cfg.CoinCapAPIKey,
			Logger: logger,
		})
	default:
		return fmt.Errorf("%w: %q", cryptoscout.ErrUnknownProvider, cfg.Provider)
	}

	core, err := cryptoscout.New(cryptoscout.Options{
		Provider: provider,
		AI: cryptoscout.AIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
		},
		Logger:   logger,
		Currency: cfg.Currency,
	})
	if err != nil {
		return err
	}

	var handler http.Handler = api.NewRouter(core, logger)
	if webDir != "" {
		handler = api.WithStatic(handler, webDir)
	}
	handler = middleware.Compress(5)(handler)

	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			"addr", addr,
			"provider", core.ProviderName(),
			"currency", cfg.Currency,
			"model", cfg.OpenAIModel,
			"web_dir", webDir,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
