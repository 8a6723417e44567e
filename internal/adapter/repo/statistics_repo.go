package repo

import (
	"context"
	"time"

	"server/internal/domain"
	"server/internal/infra"
)

// StatisticsRepositoryPG implements domain.StatisticsRepository using PostgreSQL.
type StatisticsRepositoryPG struct {
	db infra.SQLExecutor
}

// NewStatisticsRepository constructs the repository.
func NewStatisticsRepository(db infra.SQLExecutor) *StatisticsRepositoryPG {
	return &StatisticsRepositoryPG{db: db}
}

// AggregateDay derives the rollup for one day straight from the records table.
func (r *StatisticsRepositoryPG) AggregateDay(ctx context.Context, day time.Time) (*domain.DailyStatistics, error) {
	query := `
SELECT
    COUNT(*),
    COUNT(*) FILTER (WHERE status = 'completed'),
    COUNT(*) FILTER (WHERE status = 'failed'),
    COALESCE((AVG(EXTRACT(EPOCH FROM (completed_at - started_at)) * 1000)
        FILTER (WHERE status = 'completed' AND started_at IS NOT NULL))::bigint, 0),
    COALESCE(SUM(generated_size) FILTER (WHERE status = 'completed'), 0)
FROM generation_records
WHERE created_at >= $1 AND created_at < $1 + INTERVAL '1 day';
`
	dayStart := day.UTC().Truncate(24 * time.Hour)
	row := r.db.QueryRow(ctx, query, dayStart)
	stats := domain.DailyStatistics{Day: dayStart}
	if err := row.Scan(
		&stats.TotalGenerations,
		&stats.SuccessfulGenerations,
		&stats.FailedGenerations,
		&stats.AverageDurationMs,
		&stats.TotalBytesStored,
	); err != nil {
		return nil, err
	}
	return &stats, nil
}

// UpsertDaily writes one rollup row per day, replacing previous values: the
// rollup is recomputed from source records, not incremented.
func (r *StatisticsRepositoryPG) UpsertDaily(ctx context.Context, stats *domain.DailyStatistics) error {
	query := `
INSERT INTO generation_statistics (
    day, total_generations, successful_generations, failed_generations, average_duration_ms, total_bytes_stored
) VALUES (
    $1, $2, $3, $4, $5, $6
) ON CONFLICT (day) DO UPDATE SET
    total_generations = EXCLUDED.total_generations,
    successful_generations = EXCLUDED.successful_generations,
    failed_generations = EXCLUDED.failed_generations,
    average_duration_ms = EXCLUDED.average_duration_ms,
    total_bytes_stored = EXCLUDED.total_bytes_stored,
    updated_at = NOW();
`
	_, err := r.db.Exec(ctx, query,
		stats.Day,
		stats.TotalGenerations,
		stats.SuccessfulGenerations,
		stats.FailedGenerations,
		stats.AverageDurationMs,
		stats.TotalBytesStored,
	)
	return err
}

// ListDaily returns the most recent rollups.
func (r *StatisticsRepositoryPG) ListDaily(ctx context.Context, limit int) ([]domain.DailyStatistics, error) {
	if limit <= 0 {
		limit = 7
	}
	query := `
SELECT day, total_generations, successful_generations, failed_generations, average_duration_ms, total_bytes_stored, created_at, updated_at
FROM generation_statistics
ORDER BY day DESC
LIMIT $1;
`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.DailyStatistics
	for rows.Next() {
		var s domain.DailyStatistics
		if err := rows.Scan(
			&s.Day,
			&s.TotalGenerations,
			&s.SuccessfulGenerations,
			&s.FailedGenerations,
			&s.AverageDurationMs,
			&s.TotalBytesStored,
			&s.CreatedAt,
			&s.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

var _ domain.StatisticsRepository = (*StatisticsRepositoryPG)(nil)
