// Package geo provides location grouping and map scene-graph computation for
// activity logs.
package geo

import (
	"github.com/apconsolide/tale-mosaic/internal/activitylog"
)

// LocationGroup is a derived grouping of activity logs that share a location
// name. It is computed on demand and never persisted.
type LocationGroup struct {
	Location    string                    `json:"location"`
	Coordinates *activitylog.Coordinates  `json:"coordinates,omitempty"`
	Logs        []activitylog.ActivityLog `json:"logs"`
}

// GroupByLocation partitions logs into groups keyed by exact location string
// in a single pass. Groups appear in order of first occurrence and keep their
// logs in input order. A group's coordinates are seeded from its first log
// and overwritten by each later log that carries coordinates, so the last
// coordinates in input order win.
func GroupByLocation(logs []activitylog.ActivityLog) []LocationGroup {
	groups := make([]LocationGroup, 0)
	index := make(map[string]int)

	for _, log := range logs {
		i, ok := index[log.Location]
		if !ok {
			i = len(groups)
			index[log.Location] = i
			groups = append(groups, LocationGroup{
				Location:    log.Location,
				Coordinates: copyCoordinates(log.Coordinates),
			})
		} else if log.Coordinates != nil {
			groups[i].Coordinates = copyCoordinates(log.Coordinates)
		}
		groups[i].Logs = append(groups[i].Logs, log)
	}

	return groups
}

func copyCoordinates(c *activitylog.Coordinates) *activitylog.Coordinates {
	if c == nil {
		return nil
	}
	dup := *c
	return &dup
}
