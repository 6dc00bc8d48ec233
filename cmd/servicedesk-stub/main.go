package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/freedom_case_2/servicedesk/internal/ai"
	"github.com/freedom_case_2/servicedesk/internal/config"
	"github.com/freedom_case_2/servicedesk/internal/db"
	httpapi "github.com/freedom_case_2/servicedesk/internal/http"
	"github.com/freedom_case_2/servicedesk/internal/service"
)

func main() {
	fs := pflag.NewFlagSet("servicedesk-stub", pflag.ExitOnError)
	fs.String("port", "8000", "listen port")
	fs.String("log-level", "info", "log level")
	fs.String("cors-allowed-origins", "*", "allowed CORS origin")
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load(fs)
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "servicedesk-stub").Logger()

	ctx := context.Background()
	store := db.New()
	if err := store.Seed(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to seed store")
	}

	svc := &service.TicketService{
		Store:       store,
		Recommender: ai.OverlapRecommender{},
		Logger:      logger,
	}
	router := httpapi.Router(cfg, svc, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("stub server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("stub server stopped")
}
