package handlers

import (
	"net/http"
	"time"

	"server/internal/domain"
)

type dailyItem struct {
	Day                   string  `json:"day"`
	TotalGenerations      int     `json:"total_generations"`
	SuccessfulGenerations int     `json:"successful_generations"`
	FailedGenerations     int     `json:"failed_generations"`
	SuccessRate           float64 `json:"success_rate"`
	AverageDurationMs     int64   `json:"average_duration_ms"`
	TotalBytesStored      int64   `json:"total_bytes_stored"`
}

// Stats handles GET /v1/statistics: live aggregates over the whole history
// plus the most recent daily rollups.
func (a *App) Stats(w http.ResponseWriter, r *http.Request) {
	live, err := a.Generations.LiveStatistics(r.Context())
	if err != nil {
		a.Logger.Error().Err(err).Msg("stats: live aggregate failed")
		a.error(w, r, http.StatusInternalServerError, "internal", "failed to load statistics")
		return
	}

	days := queryInt(r, "days", 7)
	if days <= 0 || days > 90 {
		days = 7
	}
	daily, err := a.Statistics.ListDaily(r.Context(), days)
	if err != nil {
		a.Logger.Error().Err(err).Msg("stats: daily rollups failed")
		a.error(w, r, http.StatusInternalServerError, "internal", "failed to load statistics")
		return
	}

	breakdown := make(map[string]int, len(live.StatusBreakdown))
	for status, n := range live.StatusBreakdown {
		breakdown[string(status)] = n
	}
	items := make([]dailyItem, 0, len(daily))
	for _, d := range daily {
		items = append(items, toDailyItem(d))
	}

	a.json(w, http.StatusOK, map[string]any{
		"total_generations":   live.TotalGenerations,
		"status_breakdown":    breakdown,
		"average_duration_ms": live.AverageDurationMs,
		"daily":               items,
	})
}

func toDailyItem(d domain.DailyStatistics) dailyItem {
	return dailyItem{
		Day:                   d.Day.Format(time.DateOnly),
		TotalGenerations:      d.TotalGenerations,
		SuccessfulGenerations: d.SuccessfulGenerations,
		FailedGenerations:     d.FailedGenerations,
		SuccessRate:           d.SuccessRate(),
		AverageDurationMs:     d.AverageDurationMs,
		TotalBytesStored:      d.TotalBytesStored,
	}
}
