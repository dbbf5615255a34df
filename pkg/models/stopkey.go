package models

import (
	"sort"

	"github.com/google/uuid"
)

// StopKey identifies a stop by branch, time of day and employee
type StopKey string

const keySeparator = "|"

// KeyOf builds the identity key for a (branch, time, employee) triple.
// Neither a UUID nor an HH:MM clock can contain the separator.
func KeyOf(branchID uuid.UUID, clock string, employeeID uuid.UUID) StopKey {
	return StopKey(branchID.String() + keySeparator + clock + keySeparator + employeeID.String())
}

// KeySet collects the keys of stops
func KeySet(stops []Stop) map[StopKey]struct{} {
	set := make(map[StopKey]struct{}, len(stops))
	for _, s := range stops {
		set[s.Key()] = struct{}{}
	}
	return set
}

// HasDuplicateKeys reports whether two stops share a key, and returns the first one found
func HasDuplicateKeys(stops []Stop) (StopKey, bool) {
	seen := make(map[StopKey]struct{}, len(stops))
	for _, s := range stops {
		k := s.Key()
		if _, ok := seen[k]; ok {
			return k, true
		}
		seen[k] = struct{}{}
	}
	return "", false
}

// SortStops returns a copy of stops ordered by time of day. Equal times keep their order.
func SortStops(stops []Stop) []Stop {
	out := CloneStops(stops)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Time < out[j].Time
	})
	return out
}

// CloneStops copies a stop list so callers never share backing arrays
func CloneStops(stops []Stop) []Stop {
	out := make([]Stop, len(stops))
	copy(out, stops)
	return out
}

// EqualStops compares two stop lists element by element
func EqualStops(a, b []Stop) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
