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

	router "github.com/dkeye/TableRelay/internal/adapters/http"
	"github.com/dkeye/TableRelay/internal/app"
	"github.com/dkeye/TableRelay/internal/app/moderation"
	"github.com/dkeye/TableRelay/internal/app/orch"
	"github.com/dkeye/TableRelay/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Mode == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	var filter moderation.ContentFilter = moderation.NopFilter{}
	if cfg.Chat.Filter {
		filter = moderation.NewProfanityFilter()
	}

	o := &orch.Orchestrator{
		Registry: app.NewRegistry(),
		Rooms:    app.NewRoomManager(cfg.Rooms.MaxRollback),
		Policy:   app.PolicyByName(cfg.Rooms.Backpressure),
		Resume:   app.NewResumeStore(cfg.Session.ResumeTTL),
		Limiter:  moderation.NewRateLimiter(cfg.Chat.MaxMsgs, cfg.Chat.Window),
		Chat:     moderation.ChatPipeline{Filter: filter, MaxLen: cfg.Chat.MaxLen},
		Settings: orch.Settings{
			AutoCreate:  cfg.Rooms.AutoCreate,
			ValidateSDP: cfg.Signal.ValidateSDP,
			IdleTTL:     cfg.Rooms.IdleTTL,
		},
	}
	go o.RunJanitor(ctx, cfg.Rooms.SweepInterval)

	r := router.SetupRouter(ctx, cfg, o)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Bool("auto_create", cfg.Rooms.AutoCreate).Msg("table relay started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
