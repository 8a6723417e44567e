package repo

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"server/internal/domain"
)

type stubExecutor struct {
	execTag  pgconn.CommandTag
	execErr  error
	lastStmt string
	lastArgs []any
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.lastStmt = query
	s.lastArgs = args
	return s.execTag, s.execErr
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	s.lastStmt = query
	return stubRow{err: pgx.ErrNoRows}
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

type stubRow struct {
	err error
}

func (r stubRow) Scan(dest ...any) error { return r.err }

func affected(n int64) pgconn.CommandTag {
	if n > 0 {
		return pgconn.NewCommandTag("UPDATE 1")
	}
	return pgconn.NewCommandTag("UPDATE 0")
}

func TestCreateWrapsPersistenceError(t *testing.T) {
	exec := &stubExecutor{execErr: errors.New("connection refused")}
	r := NewGenerationRepository(exec)

	rec := domain.NewGenerationRecord("a.png", 1, "png")
	err := r.Create(context.Background(), rec)
	var perr *domain.PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	if !strings.Contains(exec.lastStmt, "INSERT INTO generation_records") {
		t.Fatalf("unexpected statement %q", exec.lastStmt)
	}
}

func TestGuardedTransitionsRejectTerminalRows(t *testing.T) {
	rec := domain.NewGenerationRecord("a.png", 1, "png")
	_ = rec.StartProcessing()

	tests := []struct {
		name string
		call func(r *GenerationRepositoryPG) error
		stmt string
	}{
		{
			name: "mark processing",
			call: func(r *GenerationRepositoryPG) error { return r.MarkProcessing(context.Background(), rec) },
			stmt: "status = 'pending'",
		},
		{
			name: "complete",
			call: func(r *GenerationRepositoryPG) error { return r.Complete(context.Background(), rec) },
			stmt: "status = 'processing'",
		},
		{
			name: "fail",
			call: func(r *GenerationRepositoryPG) error { return r.Fail(context.Background(), rec) },
			stmt: "status IN ('pending', 'processing')",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			exec := &stubExecutor{execTag: affected(0)}
			r := NewGenerationRepository(exec)
			if err := tc.call(r); !errors.Is(err, domain.ErrInvalidTransition) {
				t.Fatalf("expected ErrInvalidTransition on zero rows, got %v", err)
			}
			if !strings.Contains(exec.lastStmt, tc.stmt) {
				t.Fatalf("expected guard %q in statement %q", tc.stmt, exec.lastStmt)
			}
		})
	}
}

func TestGuardedTransitionSucceeds(t *testing.T) {
	exec := &stubExecutor{execTag: affected(1)}
	r := NewGenerationRepository(exec)

	rec := domain.NewGenerationRecord("a.png", 1, "png")
	_ = rec.StartProcessing()
	if err := r.MarkProcessing(context.Background(), rec); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	r := NewGenerationRepository(&stubExecutor{})
	if _, err := r.GetByID(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
