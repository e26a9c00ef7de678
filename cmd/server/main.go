package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/avdeev/micbridge/internal/adapters/http"
	"github.com/avdeev/micbridge/internal/adapters/stream"
	"github.com/avdeev/micbridge/internal/adapters/udp"
	"github.com/avdeev/micbridge/internal/app"
	"github.com/avdeev/micbridge/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
	}

	mode, err := app.ParseAuthMode(cfg.AuthMode)
	if err != nil {
		log.Error().Err(err).Msg("bad auth_mode, falling back to subnet")
	}

	serverIP := ""
	if mode == app.AuthSubnet {
		serverIP, err = app.DetectServerIP()
		if err != nil {
			// Fail closed: with no server address every non-loopback
			// client will be denied until this is fixed.
			log.Error().Err(err).Msg("server address detection failed; denying all non-loopback clients")
		}
	}
	auth := app.Authorizer{Mode: mode, ServerIP: serverIP}

	store := app.NewSessionStore(cfg.SessionTTL)
	go store.RunSweeper(ctx, time.Hour)

	sink, err := udp.Dial(cfg.TargetHost, cfg.TargetPort)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot open receiver socket")
	}
	defer sink.Close()

	streams := app.NewStreamRegistry()
	ctl := &stream.Controller{
		Store:       store,
		Streams:     streams,
		Sink:        sink,
		ReadLimit:   cfg.ReadLimit,
		IdleTimeout: cfg.IdleTimeout,
	}

	r := router.SetupRouter(ctx, cfg, auth, store, ctl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Str("url", router.CanonicalURL(cfg, serverIP)).Msg("micbridge server started")
		var err error
		if cfg.TLSEnabled() {
			err = srv.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	streams.CancelAll()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
