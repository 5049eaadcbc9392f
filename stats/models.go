package stats

import "time"

// Activity levels derived from a block's active seva-request count. Thresholds
// and colors are fixed, not configurable.
const (
	ActivityNone   = "none"
	ActivityLow    = "low"
	ActivityMedium = "medium"
	ActivityHigh   = "high"

	ColorNone   = "#9ca3af"
	ColorLow    = "#f97316"
	ColorMedium = "#f59e0b"
	ColorHigh   = "#10b981"
)

// ClassifyActivity maps an active-request count to its discrete level and
// display color.
func ClassifyActivity(activeRequests int) (level, color string) {
	switch {
	case activeRequests >= 10:
		return ActivityHigh, ColorHigh
	case activeRequests >= 5:
		return ActivityMedium, ColorMedium
	case activeRequests >= 1:
		return ActivityLow, ColorLow
	default:
		return ActivityNone, ColorNone
	}
}

// BlockStatistics mirrors the block_statistics table: one derived row per
// block, fully overwritten on every refresh.
type BlockStatistics struct {
	BlockName             string
	BlockCode             string
	TotalVillages         int
	Population            int64
	ActiveSevaRequests    int
	TotalSevaRequests     int
	FulfilledSevaRequests int
	VolunteerCount        int
	ActivityLevel         string
	ActivityColor         string
	SevaDensity           float64
	ComputedAt            time.Time
}

// BlockFacts are the raw per-block counts scanned from the underlying tables.
type BlockFacts struct {
	TotalVillages         int
	Population            int64
	ActiveSevaRequests    int
	TotalSevaRequests     int
	FulfilledSevaRequests int
	VolunteerCount        int
}
