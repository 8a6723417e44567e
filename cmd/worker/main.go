// The worker periodically rolls generation records up into daily statistics
// rows. Rollups are recomputed from the records table, so re-running a day is
// always safe.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"server/internal/adapter/repo"
	"server/internal/domain"
	"server/internal/infra"
)

type rollupWorker struct {
	stats    domain.StatisticsRepository
	logger   infra.Logger
	interval time.Duration
}

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := infra.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to run migrations")
	}

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)
	worker := &rollupWorker{
		stats:    repo.NewStatisticsRepository(runner),
		logger:   logger,
		interval: cfg.RollupInterval,
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}

// Run recomputes today's and yesterday's rollups on every tick. Yesterday is
// included so records finishing around midnight land in the right day.
func (w *rollupWorker) Run(ctx context.Context) error {
	w.logger.Info().Dur("interval", w.interval).Msg("worker: started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.rollup(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.rollup(ctx)
		}
	}
}

func (w *rollupWorker) rollup(ctx context.Context) {
	now := time.Now().UTC()
	for _, day := range []time.Time{now, now.AddDate(0, 0, -1)} {
		if err := w.rollupDay(ctx, day); err != nil {
			w.logger.Error().Err(err).Time("day", day).Msg("worker: rollup failed")
		}
	}
}

func (w *rollupWorker) rollupDay(ctx context.Context, day time.Time) error {
	stats, err := w.stats.AggregateDay(ctx, day)
	if err != nil {
		return err
	}
	if stats.TotalGenerations == 0 {
		return nil
	}
	if err := w.stats.UpsertDaily(ctx, stats); err != nil {
		return err
	}
	w.logger.Debug().
		Time("day", stats.Day).
		Int("total", stats.TotalGenerations).
		Int("successful", stats.SuccessfulGenerations).
		Msg("worker: rollup written")
	return nil
}
