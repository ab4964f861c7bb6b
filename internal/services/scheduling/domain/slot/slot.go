// Package slot defines the canonical 30-minute scheduling time unit.
//
// A slot is one fixed-width interval on one calendar date, restricted to the
// 08:00-21:00 working window. Its only persisted and transmitted form is the
// canonical string YYYY-MM-DD_HH:MM.
package slot

import (
	"sort"
	"time"

	apperrors "github.com/huddlehq/huddle/internal/platform/errors"
)

const (
	// Width is the fixed slot duration.
	Width = 30 * time.Minute
	// WindowStartHour is the first hour a slot may start on.
	WindowStartHour = 8
	// WindowEndHour is the first hour a slot may no longer start on.
	WindowEndHour = 21

	// Layout is the canonical textual form of a slot.
	Layout = "2006-01-02_15:04"
)

// Slot is one 30-minute interval inside the working window.
// The zero value is not a valid slot.
type Slot struct {
	start time.Time
}

// Parse converts the canonical textual form into a Slot.
// It rejects malformed text, starts that are not aligned to the hour or half
// hour, and starts outside the working window.
func Parse(value string) (Slot, error) {
	start, err := time.ParseInLocation(Layout, value, time.UTC)
	if err != nil {
		return Slot{}, apperrors.WithMetadata(
			apperrors.CodeSlotMalformed,
			"slot is not in canonical form",
			map[string]string{"Slot": value},
		)
	}
	return New(start)
}

// New builds a Slot from an aligned start time inside the working window.
// The location of start is discarded; slots carry wall-clock time local to
// the plan.
func New(start time.Time) (Slot, error) {
	start = asWallClock(start)
	if minute := start.Minute(); minute != 0 && minute != 30 {
		return Slot{}, apperrors.New(apperrors.CodeSlotUnaligned, "slot start must align to the hour or half hour")
	}
	if start.Second() != 0 || start.Nanosecond() != 0 {
		return Slot{}, apperrors.New(apperrors.CodeSlotUnaligned, "slot start must align to the hour or half hour")
	}
	if hour := start.Hour(); hour < WindowStartHour || hour >= WindowEndHour {
		return Slot{}, apperrors.New(apperrors.CodeSlotOutsideWindow, "slot start is outside the working window")
	}
	return Slot{start: start}, nil
}

// String returns the canonical textual form.
func (s Slot) String() string {
	return s.start.Format(Layout)
}

// Start returns the wall-clock start of the slot.
func (s Slot) Start() time.Time {
	return s.start
}

// End returns the wall-clock end of the slot.
func (s Slot) End() time.Time {
	return s.start.Add(Width)
}

// IsZero reports whether the slot is the invalid zero value.
func (s Slot) IsZero() bool {
	return s.start.IsZero()
}

// Before reports whether s starts before other.
func (s Slot) Before(other Slot) bool {
	return s.start.Before(other.start)
}

// OnDate reports whether the slot falls on the given calendar date.
func (s Slot) OnDate(date time.Time) bool {
	date = asWallClock(date)
	y1, m1, d1 := s.start.Date()
	y2, m2, d2 := date.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// Quantize splits [rangeStart, rangeEnd) into slots aligned to the hour and
// half hour, dropping any slot that starts outside the working window. The
// drop is policy, not an error: no meeting is ever scheduled outside
// 08:00-21:00. A non-positive range yields no slots. Pure function.
func Quantize(rangeStart, rangeEnd time.Time) []Slot {
	rangeStart = asWallClock(rangeStart)
	rangeEnd = asWallClock(rangeEnd)
	if !rangeEnd.After(rangeStart) {
		return nil
	}

	var slots []Slot
	for cursor := alignUp(rangeStart); !cursor.Add(Width).After(rangeEnd); cursor = cursor.Add(Width) {
		if hour := cursor.Hour(); hour < WindowStartHour || hour >= WindowEndHour {
			continue
		}
		slots = append(slots, Slot{start: cursor})
	}
	return slots
}

// Sort orders slots chronologically in place.
func Sort(slots []Slot) {
	sort.Slice(slots, func(i, j int) bool {
		return slots[i].Before(slots[j])
	})
}

// ParseAll parses a list of canonical slot strings, preserving order.
func ParseAll(values []string) ([]Slot, error) {
	slots := make([]Slot, 0, len(values))
	for _, value := range values {
		parsed, err := Parse(value)
		if err != nil {
			return nil, err
		}
		slots = append(slots, parsed)
	}
	return slots, nil
}

// Strings renders slots to their canonical forms, preserving order.
func Strings(slots []Slot) []string {
	values := make([]string, 0, len(slots))
	for _, s := range slots {
		values = append(values, s.String())
	}
	return values
}

// alignUp rounds t up to the next hour or half-hour boundary.
func alignUp(t time.Time) time.Time {
	aligned := t.Truncate(Width)
	if aligned.Before(t) {
		aligned = aligned.Add(Width)
	}
	return aligned
}

// asWallClock strips the location so all slot math happens on wall-clock
// values and equality by == holds across parsed and computed slots.
func asWallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}
