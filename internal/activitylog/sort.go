package activitylog

import (
	"sort"
	"strings"
)

// Direction is a sort direction for table views.
type Direction string

// Sort directions.
const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// Sortable field keys accepted by Sort. Keys mirror the JSON field names used
// by the table view.
const (
	SortKeyTimestamp   = "timestamp"
	SortKeyLocation    = "location"
	SortKeyCategory    = "activityCategory"
	SortKeyType        = "activityType"
	SortKeyEquipment   = "equipment"
	SortKeyPersonnel   = "personnel"
	SortKeyMaterial    = "material"
	SortKeyMeasurement = "measurement"
	SortKeyStatus      = "status"
	SortKeyReferenceID = "referenceId"
)

// SortState tracks the active sort column and direction for a table view.
// The zero value means no sort is applied.
type SortState struct {
	Key       string    `json:"key"`
	Direction Direction `json:"direction"`
}

// Request applies a user request to sort by the given key. Requesting the
// current key toggles the direction; requesting a new key resets to ascending.
func (s *SortState) Request(key string) {
	if s.Key == key {
		if s.Direction == Ascending {
			s.Direction = Descending
		} else {
			s.Direction = Ascending
		}
		return
	}
	s.Key = key
	s.Direction = Ascending
}

// Sort orders logs by the given field key and direction. The sort is stable,
// so logs with equal keys keep their relative input order. An unknown key
// leaves the slice untouched.
func Sort(logs []ActivityLog, key string, dir Direction) {
	less := lessFunc(key)
	if less == nil {
		return
	}
	if dir == Descending {
		asc := less
		less = func(a, b ActivityLog) bool { return asc(b, a) }
	}
	sort.SliceStable(logs, func(i, j int) bool {
		return less(logs[i], logs[j])
	})
}

// lessFunc returns the ascending comparison for a field key, or nil when the
// key is not sortable.
func lessFunc(key string) func(a, b ActivityLog) bool {
	switch key {
	case SortKeyTimestamp:
		return func(a, b ActivityLog) bool { return a.Timestamp.Before(b.Timestamp) }
	case SortKeyLocation:
		return stringLess(func(l ActivityLog) string { return l.Location })
	case SortKeyCategory:
		return stringLess(func(l ActivityLog) string { return l.ActivityCategory })
	case SortKeyType:
		return stringLess(func(l ActivityLog) string { return l.ActivityType })
	case SortKeyEquipment:
		return stringLess(func(l ActivityLog) string { return l.Equipment })
	case SortKeyPersonnel:
		return stringLess(func(l ActivityLog) string { return l.Personnel })
	case SortKeyMaterial:
		return stringLess(func(l ActivityLog) string { return l.Material })
	case SortKeyMeasurement:
		return stringLess(func(l ActivityLog) string { return l.Measurement })
	case SortKeyStatus:
		return stringLess(func(l ActivityLog) string { return l.Status })
	case SortKeyReferenceID:
		return stringLess(func(l ActivityLog) string { return l.ReferenceID })
	default:
		return nil
	}
}

func stringLess(field func(ActivityLog) string) func(a, b ActivityLog) bool {
	return func(a, b ActivityLog) bool {
		av := strings.ToLower(field(a))
		bv := strings.ToLower(field(b))
		return av < bv
	}
}
