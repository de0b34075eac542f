package activitylog

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Normalize converts a RawLog into a valid ActivityLog. It is total: missing
// or malformed fields are coerced to defaults, never rejected.
//
// Defaults:
//   - ID: new UUID when absent
//   - Timestamp: now when absent or unparseable
//   - Status: "completed" unless the value is recognized
//   - ReferenceID: generated "REF-<n>" when absent
//   - Coordinates: dropped entirely when not a valid [longitude, latitude]
//     pair, never coerced to an origin point
func Normalize(raw RawLog, now time.Time) ActivityLog {
	log := ActivityLog{
		ID:               strings.TrimSpace(raw.ID),
		Location:         strings.TrimSpace(raw.Location),
		ActivityCategory: strings.TrimSpace(raw.ActivityCategory),
		ActivityType:     strings.TrimSpace(raw.ActivityType),
		Equipment:        strings.TrimSpace(raw.Equipment),
		Personnel:        strings.TrimSpace(raw.Personnel),
		Material:         strings.TrimSpace(raw.Material),
		Measurement:      strings.TrimSpace(raw.Measurement),
		Notes:            strings.TrimSpace(raw.Notes),
		Media:            raw.Media,
		ReferenceID:      strings.TrimSpace(raw.ReferenceID),
	}

	if log.ID == "" {
		log.ID = uuid.New().String()
	}

	log.Timestamp = parseTimestamp(string(raw.Timestamp), now)

	status := strings.ToLower(strings.TrimSpace(raw.Status))
	if !ValidStatus(status) {
		status = StatusCompleted
	}
	log.Status = status

	if log.ReferenceID == "" {
		log.ReferenceID = GenerateReferenceID()
	}

	if len(raw.Coordinates) == 2 {
		coords := Coordinates{Longitude: raw.Coordinates[0], Latitude: raw.Coordinates[1]}
		if coords.Valid() {
			log.Coordinates = &coords
		}
	}

	return log
}

// NormalizeBatch normalizes a slice of raw logs, stamping every log that is
// missing a timestamp with the same submission time.
func NormalizeBatch(raws []RawLog, now time.Time) []ActivityLog {
	logs := make([]ActivityLog, 0, len(raws))
	for _, raw := range raws {
		logs = append(logs, Normalize(raw, now))
	}
	return logs
}

// GenerateReferenceID produces a display reference like "REF-4821".
func GenerateReferenceID() string {
	return fmt.Sprintf("REF-%d", rand.Intn(10000))
}

// parseTimestamp interprets a timestamp string, falling back to now.
// RFC 3339 is the canonical format; a date-only form is accepted because
// extractors occasionally emit one.
func parseTimestamp(s string, now time.Time) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return now
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t
	}
	return now
}
