// Package app assembles the object graph shared by the API server and the
// polling worker: repository, artifact store, generation providers, and the
// per-variant pipeline sets.
package app

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"shortform/internal/adapter/repo"
	"shortform/internal/control"
	"shortform/internal/domain"
	"shortform/internal/generation"
	"shortform/internal/infra"
	"shortform/internal/infra/credentials"
	"shortform/internal/media"
	"shortform/internal/pipeline"
	"shortform/internal/providers/genai"
	"shortform/internal/providers/image"
	"shortform/internal/providers/script"
	"shortform/internal/providers/video"
	"shortform/internal/sanitize"
	"shortform/internal/storage"
)

// Components is everything a binary needs to serve or execute jobs.
type Components struct {
	Jobs     domain.JobRepository
	Store    *storage.FileStore
	Variants map[domain.Variant]control.VariantSet

	pool *pgxpool.Pool
}

// Build wires the shared object graph. Without DATABASE_URL it runs on the
// in-memory repository; without GEMINI_API_KEY providers run in synthetic
// mode. Both fallbacks are logged loudly.
func Build(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) (*Components, error) {
	c := &Components{}

	var sqlRunner *infra.SQLRunner
	if cfg.DatabaseURL != "" {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		if err := infra.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		c.pool = pool
		sqlRunner = infra.NewSQLRunner(pool, logger)
		c.Jobs = repo.NewJobRepository(sqlRunner)
	} else {
		logger.Warn().Msg("app: DATABASE_URL not set, using in-memory job store")
		c.Jobs = repo.NewJobRepositoryMemory()
	}

	storagePath := cfg.StoragePath
	if !filepath.IsAbs(storagePath) {
		if abs, err := filepath.Abs(storagePath); err == nil {
			storagePath = abs
		}
	}
	store, err := storage.NewFileStore(storagePath)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("configure storage: %w", err)
	}
	c.Store = store

	apiKey := strings.TrimSpace(cfg.GeminiAPIKey)
	if apiKey == "" && sqlRunner != nil {
		key, err := credentials.NewStore(sqlRunner).GeminiAPIKey(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("app: failed to load gemini api key from store")
		} else {
			apiKey = key
		}
	}

	client, err := genai.NewClient(genai.Options{
		APIKey:     apiKey,
		BaseURL:    cfg.GeminiBaseURL,
		Model:      cfg.GeminiModel,
		HTTPClient: &http.Client{Timeout: 120 * time.Second},
		Logger:     &logger,
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("configure gemini client: %w", err)
	}
	if client.Synthetic() {
		logger.Warn().Str("model", client.Model()).Msg("app: gemini api key missing, using synthetic asset generation")
	}

	sanitizer := sanitize.New(client, logger)
	moderation := pipeline.NewModerationPolicy(sanitizer, logger)
	if cfg.MaxModerationAttempts > 0 {
		moderation.MaxAttempts = cfg.MaxModerationAttempts
	}

	tk := &pipeline.Toolkit{
		Gen: generation.Service{
			Planner: script.NewPlanner(client, logger),
			Images:  image.NewSynthesizer(client, logger),
			Videos:  video.NewSynthesizer(client, logger),
			Merger:  media.NewMerger(logger),
		},
		Moderation:     moderation,
		Frames:         media.NewFrameGrabber(logger),
		MaxConcurrency: cfg.MaxConcurrency,
	}

	productReg, err := pipeline.NewProductRegistry(tk)
	if err != nil {
		c.Close()
		return nil, err
	}
	characterReg, err := pipeline.NewCharacterRegistry(tk, logger)
	if err != nil {
		c.Close()
		return nil, err
	}

	c.Variants = map[domain.Variant]control.VariantSet{}
	for _, reg := range []*pipeline.Registry{productReg, characterReg} {
		c.Variants[reg.Variant()] = control.VariantSet{
			Registry: reg,
			Executor: pipeline.NewExecutor(reg, store, c.Jobs, logger),
			Reworker: pipeline.NewReworkCoordinator(reg, store, c.Jobs, logger),
		}
	}
	return c, nil
}

// Close releases held resources.
func (c *Components) Close() {
	if c.pool != nil {
		c.pool.Close()
	}
}
