package domain

import "time"

// DailyStatistics stores aggregated generation metrics for a specific day.
// Rows are produced by the rollup worker reading generation records; the
// request path never writes them.
type DailyStatistics struct {
	Day                   time.Time
	TotalGenerations      int
	SuccessfulGenerations int
	FailedGenerations     int
	AverageDurationMs     int64
	TotalBytesStored      int64
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// LiveStatistics aggregates counts and timings over the whole record history.
type LiveStatistics struct {
	TotalGenerations  int
	StatusBreakdown   map[GenerationStatus]int
	AverageDurationMs int64
}

// SuccessRate returns the completed share in percent.
func (s DailyStatistics) SuccessRate() float64 {
	if s.TotalGenerations == 0 {
		return 0
	}
	return float64(s.SuccessfulGenerations) / float64(s.TotalGenerations) * 100
}
