package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"shortform/internal/app"
	"shortform/internal/control"
	"shortform/internal/http/handlers"
	httpapi "shortform/internal/http/httpapi"
	"shortform/internal/infra"
	"shortform/internal/runner"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: wiring failed")
	}
	defer components.Close()

	svc := control.NewService(components.Jobs, components.Store, components.Variants, nil, logger)
	pool := runner.NewPool(svc, cfg.WorkerCount, cfg.QueueSize, logger)
	svc.SetDispatcher(pool)
	pool.Start(ctx)
	defer pool.Stop()

	router := httpapi.NewRouter(handlers.NewApp(svc, logger), httpapi.RouterOptions{
		Logger:          logger,
		RateLimitPerMin: cfg.RateLimitPerMin,
		DefaultLocale:   "ko",
	})
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
