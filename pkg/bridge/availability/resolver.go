// Package availability computes candidate appointment slots from busy
// intervals and scheduling constraints. Everything here is pure: no
// clocks, no I/O.
package availability

import "time"

const (
	scanStep        = 15 * time.Minute
	defaultMaxSlots = 2
)

// Interval is a half-open busy time range reported by the calendar.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Slot is a candidate appointment time. Slots are derived values and are
// never persisted.
type Slot struct {
	Start time.Time
	End   time.Time
}

type Preference int

const (
	PreferenceNone Preference = iota
	PreferenceMorning
	PreferenceAfternoon
	PreferenceExact
)

type Query struct {
	WindowStart time.Time
	WindowEnd   time.Time
	Duration    time.Duration
	Buffer      time.Duration
	Busy        []Interval
	Location    *time.Location

	BusinessStartHour int
	BusinessEndHour   int

	Preference  Preference
	ExactHour   int
	ExactMinute int

	// MaxSlots caps the result; the system offers at most two options.
	MaxSlots int
}

// Resolve returns candidate start/end pairs in ascending order. With an
// exact time-of-day preference it tests only that time each day and
// returns on the first free occurrence; otherwise it scans each day on a
// 15-minute grid and stops as soon as MaxSlots slots are found.
func Resolve(q Query) []Slot {
	if q.Duration <= 0 || !q.WindowEnd.After(q.WindowStart) {
		return nil
	}
	loc := q.Location
	if loc == nil {
		loc = q.WindowStart.Location()
	}
	startHour := q.BusinessStartHour
	endHour := q.BusinessEndHour
	if startHour == 0 && endHour == 0 {
		startHour, endHour = 9, 17
	}
	if endHour <= startHour {
		return nil
	}
	maxSlots := q.MaxSlots
	if maxSlots <= 0 {
		maxSlots = defaultMaxSlots
	}

	var slots []Slot
	day := time.Date(q.WindowStart.In(loc).Year(), q.WindowStart.In(loc).Month(), q.WindowStart.In(loc).Day(), 0, 0, 0, 0, loc)
	for !day.After(q.WindowEnd.In(loc)) {
		dayStart := day.Add(time.Duration(startHour) * time.Hour)
		dayEnd := day.Add(time.Duration(endHour) * time.Hour)
		noon := day.Add(12 * time.Hour)

		switch q.Preference {
		case PreferenceMorning:
			if dayEnd.After(noon) {
				dayEnd = noon
			}
		case PreferenceAfternoon:
			if dayStart.Before(noon) {
				dayStart = noon
			}
		}

		// Clip boundary days to the overall window.
		if dayStart.Before(q.WindowStart) {
			dayStart = q.WindowStart.In(loc)
		}
		if dayEnd.After(q.WindowEnd) {
			dayEnd = q.WindowEnd.In(loc)
		}

		if dayEnd.Sub(dayStart) < q.Duration {
			day = day.AddDate(0, 0, 1)
			continue
		}

		if q.Preference == PreferenceExact {
			candidate := day.Add(time.Duration(q.ExactHour)*time.Hour + time.Duration(q.ExactMinute)*time.Minute)
			if !candidate.Before(dayStart) && !candidate.Add(q.Duration).After(dayEnd) && isFree(candidate, q.Duration, q.Buffer, q.Busy) {
				return []Slot{{Start: candidate, End: candidate.Add(q.Duration)}}
			}
			day = day.AddDate(0, 0, 1)
			continue
		}

		// Collected slots advance the scan past their own end so the
		// options offered to the caller never overlap.
		for candidate := dayStart; !candidate.Add(q.Duration).After(dayEnd); {
			if !isFree(candidate, q.Duration, q.Buffer, q.Busy) {
				candidate = candidate.Add(scanStep)
				continue
			}
			slots = append(slots, Slot{Start: candidate, End: candidate.Add(q.Duration)})
			if len(slots) >= maxSlots {
				return slots
			}
			candidate = candidate.Add(q.Duration)
		}

		day = day.AddDate(0, 0, 1)
	}
	return slots
}

// isFree reports whether the candidate slot clears every busy interval
// expanded by the buffer on both sides.
func isFree(start time.Time, duration, buffer time.Duration, busy []Interval) bool {
	end := start.Add(duration)
	for _, b := range busy {
		if start.Before(b.End.Add(buffer)) && end.After(b.Start.Add(-buffer)) {
			return false
		}
	}
	return true
}
