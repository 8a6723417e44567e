package domain

import (
	"context"
	"time"
)

// GenerationRepository defines persistence for generation records. Status
// transitions are guarded updates: writing a transition the state machine
// does not allow must return ErrInvalidTransition.
type GenerationRepository interface {
	Create(ctx context.Context, rec *GenerationRecord) error
	MarkProcessing(ctx context.Context, rec *GenerationRecord) error
	Complete(ctx context.Context, rec *GenerationRecord) error
	Fail(ctx context.Context, rec *GenerationRecord) error
	GetByID(ctx context.Context, id string) (*GenerationRecord, error)
	List(ctx context.Context, status *GenerationStatus, limit, offset int) ([]GenerationRecord, error)
	LiveStatistics(ctx context.Context) (*LiveStatistics, error)
}

// StatisticsRepository persists the derived daily rollups.
type StatisticsRepository interface {
	UpsertDaily(ctx context.Context, stats *DailyStatistics) error
	ListDaily(ctx context.Context, limit int) ([]DailyStatistics, error)
	AggregateDay(ctx context.Context, day time.Time) (*DailyStatistics, error)
}
