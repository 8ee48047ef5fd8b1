// geminikey stores or rotates the Gemini API key in the database so running
// services pick it up without a redeploy.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"shortform/internal/infra"
	"shortform/internal/infra/credentials"
)

func main() {
	_ = godotenv.Load()

	var key string
	flag.StringVar(&key, "key", "", "Gemini API key to store (defaults to GEMINI_API_KEY)")
	flag.Parse()
	if key == "" {
		key = os.Getenv("GEMINI_API_KEY")
	}
	if key == "" {
		fmt.Fprintln(os.Stderr, "geminikey: provide -key or set GEMINI_API_KEY")
		os.Exit(2)
	}

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)
	if cfg.DatabaseURL == "" {
		logger.Fatal().Msg("geminikey: DATABASE_URL is required")
	}

	ctx := context.Background()
	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("geminikey: db connection failed")
	}
	defer pool.Close()
	if err := infra.EnsureSchema(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("geminikey: schema check failed")
	}

	store := credentials.NewStore(infra.NewSQLRunner(pool, logger))
	if err := store.SetGeminiAPIKey(ctx, key); err != nil {
		logger.Fatal().Err(err).Msg("geminikey: store failed")
	}
	logger.Info().Msg("geminikey: key stored")
}
