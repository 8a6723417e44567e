package infra

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// SQLExecutor defines the contract repositories need for executing SQL.
// *pgxpool.Pool satisfies it directly; tests substitute stubs.
type SQLExecutor interface {
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
}

// SQLRunner wraps a pool with per-statement debug logging.
type SQLRunner struct {
	Pool   *pgxpool.Pool
	Logger zerolog.Logger
}

func NewSQLRunner(pool *pgxpool.Pool, logger zerolog.Logger) *SQLRunner {
	return &SQLRunner{Pool: pool, Logger: logger}
}

func (r *SQLRunner) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	start := time.Now()
	tag, err := r.Pool.Exec(ctx, query, args...)
	r.log("exec", query, start, err)
	return tag, err
}

func (r *SQLRunner) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	r.log("query_row", query, time.Now(), nil)
	return r.Pool.QueryRow(ctx, query, args...)
}

func (r *SQLRunner) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	start := time.Now()
	rows, err := r.Pool.Query(ctx, query, args...)
	r.log("query", query, start, err)
	return rows, err
}

func (r *SQLRunner) log(op, query string, start time.Time, err error) {
	event := r.Logger.Debug()
	if err != nil {
		event = r.Logger.Error().Err(err)
	}
	event.Str("op", op).Str("stmt", firstWords(query, 4)).Dur("elapsed", time.Since(start)).Msg("sql")
}

func firstWords(query string, n int) string {
	fields := strings.Fields(query)
	if len(fields) > n {
		fields = fields[:n]
	}
	return strings.Join(fields, " ")
}

var _ SQLExecutor = (*SQLRunner)(nil)
