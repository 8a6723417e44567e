package mirror

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"server/internal/domain"
)

const (
	recordKeyPrefix = "generation:"
	statusKeyPrefix = "generations:status:"
)

// RedisRecorder mirrors generation records into Redis as one hash per record
// plus a per-status index set.
type RedisRecorder struct {
	client *redis.Client
}

// NewRedisRecorder wraps an initialized go-redis client.
func NewRedisRecorder(client *redis.Client) *RedisRecorder {
	return &RedisRecorder{client: client}
}

// Record writes the record hash and indexes it by status.
func (r *RedisRecorder) Record(ctx context.Context, rec *domain.GenerationRecord) error {
	if r == nil || r.client == nil {
		return fmt.Errorf("mirror: redis client not configured")
	}

	fields := map[string]any{
		"id":                rec.ID,
		"original_filename": rec.OriginalFilename,
		"original_url":      rec.OriginalURL,
		"original_size":     strconv.FormatInt(rec.OriginalSize, 10),
		"original_format":   rec.OriginalFormat,
		"generated_url":     rec.GeneratedURL,
		"generated_size":    strconv.FormatInt(rec.GeneratedSize, 10),
		"prompt_used":       rec.PromptUsed,
		"description":       rec.Description,
		"logo_applied":      strconv.FormatBool(rec.LogoApplied),
		"error_message":     rec.ErrorMessage,
		"status":            string(rec.Status),
		"created_at":        rec.CreatedAt.Format(time.RFC3339Nano),
	}
	if rec.StartedAt != nil {
		fields["started_at"] = rec.StartedAt.Format(time.RFC3339Nano)
	}
	if rec.CompletedAt != nil {
		fields["completed_at"] = rec.CompletedAt.Format(time.RFC3339Nano)
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, recordKeyPrefix+rec.ID, fields)
	pipe.SAdd(ctx, statusKeyPrefix+string(rec.Status), rec.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("mirror: redis write: %w", err)
	}
	return nil
}

// Ping reports secondary store reachability for health checks.
func (r *RedisRecorder) Ping(ctx context.Context) error {
	if r == nil || r.client == nil {
		return fmt.Errorf("mirror: redis client not configured")
	}
	return r.client.Ping(ctx).Err()
}

var _ Recorder = (*RedisRecorder)(nil)
