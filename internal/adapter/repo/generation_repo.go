package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"server/internal/domain"
	"server/internal/infra"
)

// GenerationRepositoryPG implements domain.GenerationRepository on PostgreSQL.
// Every status transition is a guarded UPDATE so that terminal records stay
// immutable even under concurrent or replayed writers.
type GenerationRepositoryPG struct {
	db infra.SQLExecutor
}

// NewGenerationRepository creates a record repository backed by PostgreSQL.
func NewGenerationRepository(db infra.SQLExecutor) *GenerationRepositoryPG {
	return &GenerationRepositoryPG{db: db}
}

const generationColumns = `id, original_filename, original_url, original_size, original_format,
generated_url, generated_size, prompt_used, description, logo_applied,
error_message, status, created_at, started_at, completed_at`

// Create inserts a fresh pending record.
func (r *GenerationRepositoryPG) Create(ctx context.Context, rec *domain.GenerationRecord) error {
	query := `
INSERT INTO generation_records (id, original_filename, original_url, original_size, original_format, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7);
`
	_, err := r.db.Exec(ctx, query,
		rec.ID,
		rec.OriginalFilename,
		rec.OriginalURL,
		rec.OriginalSize,
		rec.OriginalFormat,
		rec.Status,
		rec.CreatedAt,
	)
	if err != nil {
		return &domain.PersistenceError{Op: "create", Err: err}
	}
	return nil
}

// MarkProcessing moves a pending record to processing.
func (r *GenerationRepositoryPG) MarkProcessing(ctx context.Context, rec *domain.GenerationRecord) error {
	query := `
UPDATE generation_records
SET status = $2, started_at = $3, original_url = $4
WHERE id = $1 AND status = 'pending';
`
	tag, err := r.db.Exec(ctx, query, rec.ID, domain.GenerationStatusProcessing, rec.StartedAt, rec.OriginalURL)
	if err != nil {
		return &domain.PersistenceError{Op: "mark_processing", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: record %s is not pending", domain.ErrInvalidTransition, rec.ID)
	}
	return nil
}

// Complete finalizes a processing record with its output facts.
func (r *GenerationRepositoryPG) Complete(ctx context.Context, rec *domain.GenerationRecord) error {
	query := `
UPDATE generation_records
SET status = $2,
    completed_at = $3,
    generated_url = $4,
    generated_size = $5,
    prompt_used = $6,
    description = $7,
    logo_applied = $8,
    error_message = $9
WHERE id = $1 AND status = 'processing';
`
	tag, err := r.db.Exec(ctx, query,
		rec.ID,
		domain.GenerationStatusCompleted,
		rec.CompletedAt,
		rec.GeneratedURL,
		rec.GeneratedSize,
		rec.PromptUsed,
		rec.Description,
		rec.LogoApplied,
		rec.ErrorMessage,
	)
	if err != nil {
		return &domain.PersistenceError{Op: "complete", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: record %s is not processing", domain.ErrInvalidTransition, rec.ID)
	}
	return nil
}

// Fail finalizes a non-terminal record with an error message.
func (r *GenerationRepositoryPG) Fail(ctx context.Context, rec *domain.GenerationRecord) error {
	query := `
UPDATE generation_records
SET status = $2, completed_at = $3, error_message = $4
WHERE id = $1 AND status IN ('pending', 'processing');
`
	tag, err := r.db.Exec(ctx, query, rec.ID, domain.GenerationStatusFailed, rec.CompletedAt, rec.ErrorMessage)
	if err != nil {
		return &domain.PersistenceError{Op: "fail", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: record %s is already terminal", domain.ErrInvalidTransition, rec.ID)
	}
	return nil
}

// GetByID fetches a record by its identifier.
func (r *GenerationRepositoryPG) GetByID(ctx context.Context, id string) (*domain.GenerationRecord, error) {
	query := `SELECT ` + generationColumns + ` FROM generation_records WHERE id = $1;`
	row := r.db.QueryRow(ctx, query, id)
	rec, err := scanGeneration(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// List returns records newest first, optionally filtered by status.
func (r *GenerationRepositoryPG) List(ctx context.Context, status *domain.GenerationStatus, limit, offset int) ([]domain.GenerationRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var (
		rows pgx.Rows
		err  error
	)
	if status != nil {
		query := `SELECT ` + generationColumns + `
FROM generation_records
WHERE status = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3;`
		rows, err = r.db.Query(ctx, query, *status, limit, offset)
	} else {
		query := `SELECT ` + generationColumns + `
FROM generation_records
ORDER BY created_at DESC
LIMIT $1 OFFSET $2;`
		rows, err = r.db.Query(ctx, query, limit, offset)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.GenerationRecord
	for rows.Next() {
		rec, err := scanGeneration(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *rec)
	}
	return items, rows.Err()
}

// LiveStatistics aggregates counts and average duration over all records.
func (r *GenerationRepositoryPG) LiveStatistics(ctx context.Context) (*domain.LiveStatistics, error) {
	query := `
SELECT
    COUNT(*),
    COUNT(*) FILTER (WHERE status = 'pending'),
    COUNT(*) FILTER (WHERE status = 'processing'),
    COUNT(*) FILTER (WHERE status = 'completed'),
    COUNT(*) FILTER (WHERE status = 'failed'),
    COALESCE((AVG(EXTRACT(EPOCH FROM (completed_at - started_at)) * 1000)
        FILTER (WHERE status = 'completed' AND started_at IS NOT NULL))::bigint, 0)
FROM generation_records;
`
	row := r.db.QueryRow(ctx, query)
	stats := domain.LiveStatistics{StatusBreakdown: make(map[domain.GenerationStatus]int, 4)}
	var pending, processing, completed, failed int
	if err := row.Scan(&stats.TotalGenerations, &pending, &processing, &completed, &failed, &stats.AverageDurationMs); err != nil {
		return nil, err
	}
	stats.StatusBreakdown[domain.GenerationStatusPending] = pending
	stats.StatusBreakdown[domain.GenerationStatusProcessing] = processing
	stats.StatusBreakdown[domain.GenerationStatusCompleted] = completed
	stats.StatusBreakdown[domain.GenerationStatusFailed] = failed
	return &stats, nil
}

func scanGeneration(row pgx.Row) (*domain.GenerationRecord, error) {
	var rec domain.GenerationRecord
	if err := row.Scan(
		&rec.ID,
		&rec.OriginalFilename,
		&rec.OriginalURL,
		&rec.OriginalSize,
		&rec.OriginalFormat,
		&rec.GeneratedURL,
		&rec.GeneratedSize,
		&rec.PromptUsed,
		&rec.Description,
		&rec.LogoApplied,
		&rec.ErrorMessage,
		&rec.Status,
		&rec.CreatedAt,
		&rec.StartedAt,
		&rec.CompletedAt,
	); err != nil {
		return nil, err
	}
	return &rec, nil
}

var _ domain.GenerationRepository = (*GenerationRepositoryPG)(nil)
