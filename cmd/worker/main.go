// The worker claims pending job actions from the database and executes them.
// It scales out horizontally: the claim query uses FOR UPDATE SKIP LOCKED, so
// any number of workers can poll the same table without double-claiming.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"shortform/internal/app"
	"shortform/internal/control"
	"shortform/internal/domain"
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

	if cfg.DatabaseURL == "" {
		logger.Fatal().Msg("worker: DATABASE_URL is required, the in-memory store cannot be shared with the API")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: wiring failed")
	}
	defer components.Close()

	svc := control.NewService(components.Jobs, components.Store, components.Variants, nil, logger)

	w := &actionWorker{
		jobs:         components.Jobs,
		svc:          svc,
		logger:       logger,
		pollInterval: cfg.PollInterval,
	}
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}

type actionWorker struct {
	jobs         domain.JobRepository
	svc          *control.Service
	logger       zerolog.Logger
	pollInterval time.Duration
}

func (w *actionWorker) Run(ctx context.Context) error {
	w.logger.Info().Dur("poll_interval", w.pollInterval).Msg("worker: started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		job, err := w.jobs.ClaimNextAction(ctx)
		if err != nil {
			if !errors.Is(err, domain.ErrNoActionAvailable) {
				w.logger.Error().Err(err).Msg("worker: claim failed")
			}
			w.sleep(ctx)
			continue
		}
		w.handle(ctx, job)
	}
}

func (w *actionWorker) handle(ctx context.Context, job *domain.Job) {
	w.logger.Info().Str("job_id", job.ID).Str("action", string(job.PendingAction)).Msg("worker: picked action")
	task := runner.Task{JobID: job.ID, Action: job.PendingAction, Stage: job.ReworkStage}
	if err := w.svc.ExecuteAction(ctx, task); err != nil {
		w.logger.Error().Err(err).Str("job_id", job.ID).Msg("worker: action failed")
	}
}

func (w *actionWorker) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.pollInterval):
	}
}
