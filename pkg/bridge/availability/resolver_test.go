package availability

import (
	"testing"
	"time"
)

func day(t *testing.T, hour, min int) time.Time {
	t.Helper()
	return time.Date(2026, time.March, 2, hour, min, 0, 0, time.UTC)
}

func TestResolve_BufferExpandsBusyIntervals(t *testing.T) {
	// One meeting 10:00-10:30 with a 10 minute buffer. A 9:50 slot would
	// end inside the buffered interval and must not be offered; 9:00 and
	// 10:40 are the first two clean options.
	q := Query{
		WindowStart:       day(t, 9, 0),
		WindowEnd:         day(t, 17, 0),
		Duration:          30 * time.Minute,
		Buffer:            10 * time.Minute,
		Busy:              []Interval{{Start: day(t, 10, 0), End: day(t, 10, 30)}},
		BusinessStartHour: 9,
		BusinessEndHour:   17,
	}
	slots := Resolve(q)
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d: %+v", len(slots), slots)
	}
	if !slots[0].Start.Equal(day(t, 9, 0)) {
		t.Fatalf("first slot should be 9:00, got %v", slots[0].Start)
	}
	for _, s := range slots {
		if s.Start.Equal(day(t, 9, 50)) {
			t.Fatalf("9:50 slot violates the buffer: %+v", slots)
		}
	}
	if !slots[1].Start.Equal(day(t, 10, 45)) {
		t.Fatalf("second slot should be 10:45 on the 15-minute grid, got %v", slots[1].Start)
	}
}

func TestResolve_StopsAtTwoSlots(t *testing.T) {
	q := Query{
		WindowStart:       day(t, 9, 0),
		WindowEnd:         day(t, 17, 0),
		Duration:          30 * time.Minute,
		BusinessStartHour: 9,
		BusinessEndHour:   17,
	}
	slots := Resolve(q)
	if len(slots) != 2 {
		t.Fatalf("expected cap of 2 slots, got %d", len(slots))
	}
	if !slots[0].Start.Equal(day(t, 9, 0)) || !slots[1].Start.Equal(day(t, 9, 30)) {
		t.Fatalf("offered slots must not overlap: %+v", slots)
	}
}

func TestResolve_MorningClipsAtNoon(t *testing.T) {
	q := Query{
		WindowStart:       day(t, 9, 0),
		WindowEnd:         day(t, 17, 0),
		Duration:          time.Hour,
		Busy:              []Interval{{Start: day(t, 9, 0), End: day(t, 11, 0)}},
		BusinessStartHour: 9,
		BusinessEndHour:   17,
		Preference:        PreferenceMorning,
	}
	slots := Resolve(q)
	if len(slots) != 1 {
		t.Fatalf("expected a single morning slot, got %+v", slots)
	}
	if !slots[0].Start.Equal(day(t, 11, 0)) || !slots[0].End.Equal(day(t, 12, 0)) {
		t.Fatalf("slot must end by noon: %+v", slots[0])
	}
}

func TestResolve_AfternoonStartsAtNoon(t *testing.T) {
	q := Query{
		WindowStart:       day(t, 9, 0),
		WindowEnd:         day(t, 17, 0),
		Duration:          30 * time.Minute,
		BusinessStartHour: 9,
		BusinessEndHour:   17,
		Preference:        PreferenceAfternoon,
	}
	slots := Resolve(q)
	if len(slots) == 0 || !slots[0].Start.Equal(day(t, 12, 0)) {
		t.Fatalf("afternoon search must start at noon, got %+v", slots)
	}
}

func TestResolve_ExactTimeReturnsFirstFreeDay(t *testing.T) {
	q := Query{
		WindowStart:       day(t, 9, 0),
		WindowEnd:         day(t, 9, 0).AddDate(0, 0, 3),
		Duration:          30 * time.Minute,
		Busy:              []Interval{{Start: day(t, 14, 0), End: day(t, 15, 0)}},
		BusinessStartHour: 9,
		BusinessEndHour:   17,
		Preference:        PreferenceExact,
		ExactHour:         14,
		ExactMinute:       30,
	}
	slots := Resolve(q)
	if len(slots) != 1 {
		t.Fatalf("exact preference returns at most one slot, got %+v", slots)
	}
	want := day(t, 14, 30).AddDate(0, 0, 1)
	if !slots[0].Start.Equal(want) {
		t.Fatalf("expected next-day 14:30, got %v", slots[0].Start)
	}
}

func TestResolve_SpansDaysWhenFirstDayIsFull(t *testing.T) {
	q := Query{
		WindowStart:       day(t, 9, 0),
		WindowEnd:         day(t, 17, 0).AddDate(0, 0, 1),
		Duration:          30 * time.Minute,
		Busy:              []Interval{{Start: day(t, 9, 0), End: day(t, 17, 0)}},
		BusinessStartHour: 9,
		BusinessEndHour:   17,
	}
	slots := Resolve(q)
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots on the next day, got %+v", slots)
	}
	if !slots[0].Start.Equal(day(t, 9, 0).AddDate(0, 0, 1)) {
		t.Fatalf("unexpected first slot: %v", slots[0].Start)
	}
}

func TestResolve_EmptyWhenWindowInverted(t *testing.T) {
	q := Query{
		WindowStart: day(t, 17, 0),
		WindowEnd:   day(t, 9, 0),
		Duration:    30 * time.Minute,
	}
	if slots := Resolve(q); slots != nil {
		t.Fatalf("expected no slots, got %+v", slots)
	}
}
