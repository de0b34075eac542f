// Package activitylog provides models and repositories for site activity logs
// extracted from free-text transcriptions or entered manually.
package activitylog

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// Common errors for activity log operations.
var (
	ErrLogNotFound = errors.New("activity log not found")
)

// Valid status values for an activity log.
const (
	StatusCompleted  = "completed"
	StatusInProgress = "in-progress"
	StatusPlanned    = "planned"
	StatusDelayed    = "delayed"
	StatusCancelled  = "cancelled"
)

// ValidStatus reports whether s is one of the recognized status values.
func ValidStatus(s string) bool {
	switch s {
	case StatusCompleted, StatusInProgress, StatusPlanned, StatusDelayed, StatusCancelled:
		return true
	}
	return false
}

// Coordinates is a geographic point serialized as a [longitude, latitude]
// JSON array to match the wire contract of the dashboard client.
type Coordinates struct {
	Longitude float64
	Latitude  float64
}

// Valid reports whether the coordinates are finite and within range.
func (c Coordinates) Valid() bool {
	if math.IsNaN(c.Longitude) || math.IsInf(c.Longitude, 0) {
		return false
	}
	if math.IsNaN(c.Latitude) || math.IsInf(c.Latitude, 0) {
		return false
	}
	return c.Longitude >= -180 && c.Longitude <= 180 && c.Latitude >= -90 && c.Latitude <= 90
}

// MarshalJSON encodes the coordinates as a two-element array.
func (c Coordinates) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{c.Longitude, c.Latitude})
}

// UnmarshalJSON decodes a two-element [longitude, latitude] array.
func (c *Coordinates) UnmarshalJSON(data []byte) error {
	var arr [2]float64
	if err := json.Unmarshal(data, &arr); err != nil {
		return fmt.Errorf("coordinates must be a [longitude, latitude] array: %w", err)
	}
	c.Longitude = arr[0]
	c.Latitude = arr[1]
	return nil
}

// ActivityLog represents a single unit of recorded site activity.
// JSON field names follow the dashboard client contract (camelCase).
type ActivityLog struct {
	ID               string       `json:"id"`
	Timestamp        time.Time    `json:"timestamp"`
	Location         string       `json:"location"`
	ActivityCategory string       `json:"activityCategory"`
	ActivityType     string       `json:"activityType"`
	Equipment        string       `json:"equipment"`
	Personnel        string       `json:"personnel"`
	Material         string       `json:"material"`
	Measurement      string       `json:"measurement"`
	Status           string       `json:"status"`
	Notes            string       `json:"notes"`
	Media            *string      `json:"media,omitempty"`
	ReferenceID      string       `json:"referenceId"`
	Coordinates      *Coordinates `json:"coordinates,omitempty"`
	TranscriptionID  *string      `json:"transcriptionId,omitempty"`
}

// RawCoordinates is an extractor-supplied coordinate pair. Extractors
// occasionally put strings or other junk in this slot; decoding is lenient
// and discards anything that is not an array of numbers, leaving Normalize
// to apply the arity and range checks. It never returns an error so one bad
// pair cannot sink a whole batch of records.
type RawCoordinates []float64

// UnmarshalJSON decodes an array of numbers, or nothing at all.
func (rc *RawCoordinates) UnmarshalJSON(data []byte) error {
	*rc = nil
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil
	}
	coords := make([]float64, 0, len(elems))
	for _, elem := range elems {
		var v float64
		if err := json.Unmarshal(elem, &v); err != nil {
			return nil
		}
		coords = append(coords, v)
	}
	*rc = coords
	return nil
}

// RawTimestamp is an extractor-supplied timestamp. Non-string values are
// discarded rather than failing the record; Normalize falls back to the
// submission time for an empty value.
type RawTimestamp string

// UnmarshalJSON decodes a JSON string, or nothing at all.
func (rt *RawTimestamp) UnmarshalJSON(data []byte) error {
	*rt = ""
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	*rt = RawTimestamp(s)
	return nil
}

// RawLog is a loosely typed activity record as produced by an extractor or
// submitted by a client. Fields may be missing or malformed; Normalize turns
// a RawLog into a valid ActivityLog without ever failing.
type RawLog struct {
	ID               string         `json:"id,omitempty"`
	Timestamp        RawTimestamp   `json:"timestamp,omitempty"`
	Location         string         `json:"location"`
	ActivityCategory string         `json:"activityCategory,omitempty"`
	ActivityType     string         `json:"activityType,omitempty"`
	Equipment        string         `json:"equipment,omitempty"`
	Personnel        string         `json:"personnel,omitempty"`
	Material         string         `json:"material,omitempty"`
	Measurement      string         `json:"measurement,omitempty"`
	Status           string         `json:"status,omitempty"`
	Notes            string         `json:"notes,omitempty"`
	Media            *string        `json:"media,omitempty"`
	ReferenceID      string         `json:"referenceId,omitempty"`
	Coordinates      RawCoordinates `json:"coordinates,omitempty"`
}
