package geo

import (
	"github.com/apconsolide/tale-mosaic/internal/activitylog"
)

// Marker pixel sizes by log count. Groups with more logs render larger.
const (
	MarkerSizeSmall  = 30
	MarkerSizeMedium = 40
	MarkerSizeLarge  = 50
)

// Marker is a declarative descriptor for a single map marker. The map layer
// renders markers from these descriptors; no imperative drawing happens here.
type Marker struct {
	Location    string                  `json:"location"`
	Coordinates activitylog.Coordinates `json:"coordinates"`
	Count       int                     `json:"count"`
	SizePx      int                     `json:"sizePx"`
	Selected    bool                    `json:"selected"`
	Geohash     string                  `json:"geohash"`
}

// HeatPoint is a weighted point for heatmap rendering.
type HeatPoint struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	Weight    int     `json:"weight"`
}

// Bounds is a bounding box over marker coordinates.
type Bounds struct {
	MinLongitude float64 `json:"minLongitude"`
	MinLatitude  float64 `json:"minLatitude"`
	MaxLongitude float64 `json:"maxLongitude"`
	MaxLatitude  float64 `json:"maxLatitude"`
}

// MarkerSize returns the pixel size for a group with the given log count.
func MarkerSize(count int) int {
	switch {
	case count > 10:
		return MarkerSizeLarge
	case count > 5:
		return MarkerSizeMedium
	default:
		return MarkerSizeSmall
	}
}

// BuildMarkers computes marker descriptors for the given groups. Groups
// without coordinates produce no marker. selectedLocation marks at most one
// marker as selected, matched by exact location string.
func BuildMarkers(groups []LocationGroup, selectedLocation string) []Marker {
	markers := make([]Marker, 0, len(groups))
	for _, g := range groups {
		if g.Coordinates == nil {
			continue
		}
		markers = append(markers, Marker{
			Location:    g.Location,
			Coordinates: *g.Coordinates,
			Count:       len(g.Logs),
			SizePx:      MarkerSize(len(g.Logs)),
			Selected:    selectedLocation != "" && g.Location == selectedLocation,
			Geohash:     Encode(g.Coordinates.Latitude, g.Coordinates.Longitude, DefaultPrecision),
		})
	}
	return markers
}

// BuildHeatPoints computes weighted heatmap points for groups with
// coordinates. The weight is the group's log count.
func BuildHeatPoints(groups []LocationGroup) []HeatPoint {
	points := make([]HeatPoint, 0, len(groups))
	for _, g := range groups {
		if g.Coordinates == nil {
			continue
		}
		points = append(points, HeatPoint{
			Longitude: g.Coordinates.Longitude,
			Latitude:  g.Coordinates.Latitude,
			Weight:    len(g.Logs),
		})
	}
	return points
}

// BoundsOf computes the bounding box over all groups with coordinates.
// The second return value is false when no group has coordinates.
func BoundsOf(groups []LocationGroup) (Bounds, bool) {
	var b Bounds
	found := false
	for _, g := range groups {
		if g.Coordinates == nil {
			continue
		}
		lng, lat := g.Coordinates.Longitude, g.Coordinates.Latitude
		if !found {
			b = Bounds{MinLongitude: lng, MinLatitude: lat, MaxLongitude: lng, MaxLatitude: lat}
			found = true
			continue
		}
		if lng < b.MinLongitude {
			b.MinLongitude = lng
		}
		if lng > b.MaxLongitude {
			b.MaxLongitude = lng
		}
		if lat < b.MinLatitude {
			b.MinLatitude = lat
		}
		if lat > b.MaxLatitude {
			b.MaxLatitude = lat
		}
	}
	return b, found
}
