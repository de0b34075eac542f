// Package stats computes summary statistics over activity logs for the
// dashboard's info panels and timeline.
package stats

import (
	"github.com/apconsolide/tale-mosaic/internal/activitylog"
)

// Summary aggregates counts over a set of activity logs.
type Summary struct {
	Total          int            `json:"total"`
	WithCoordinates int           `json:"withCoordinates"`
	Locations      int            `json:"locations"`
	ByStatus       map[string]int `json:"byStatus"`
	ByCategory     map[string]int `json:"byCategory"`
}

// Summarize computes a Summary in a single pass over logs. Category counts
// key on the raw activityCategory string; logs with an empty category are
// counted under "uncategorized".
func Summarize(logs []activitylog.ActivityLog) Summary {
	s := Summary{
		Total:      len(logs),
		ByStatus:   make(map[string]int),
		ByCategory: make(map[string]int),
	}
	locations := make(map[string]struct{})

	for _, log := range logs {
		s.ByStatus[log.Status]++

		category := log.ActivityCategory
		if category == "" {
			category = "uncategorized"
		}
		s.ByCategory[category]++

		if log.Coordinates != nil {
			s.WithCoordinates++
		}
		locations[log.Location] = struct{}{}
	}

	s.Locations = len(locations)
	return s
}

// StatusCounts returns the per-status counts for logs.
func StatusCounts(logs []activitylog.ActivityLog) map[string]int {
	return Summarize(logs).ByStatus
}

// CategoryCounts returns the per-category counts for logs.
func CategoryCounts(logs []activitylog.ActivityLog) map[string]int {
	return Summarize(logs).ByCategory
}
