// Package availability models provenance-tagged per-participant free slots.
package availability

import (
	"strings"
	"time"

	apperrors "github.com/huddlehq/huddle/internal/platform/errors"
	"github.com/huddlehq/huddle/internal/services/scheduling/domain/slot"
)

// Provenance records where a slot's availability mark came from.
// A slot may carry both flags when calendar import and manual toggling agree.
type Provenance uint8

const (
	// ProvenanceCalendar marks a slot derived from a calendar free-time import.
	ProvenanceCalendar Provenance = 1 << iota
	// ProvenanceManual marks a slot the participant toggled by hand.
	ProvenanceManual
)

// Calendar reports whether the calendar flag is set.
func (p Provenance) Calendar() bool { return p&ProvenanceCalendar != 0 }

// Manual reports whether the manual flag is set.
func (p Provenance) Manual() bool { return p&ProvenanceManual != 0 }

// Source labels a whole submission; provenance is still recorded per slot.
type Source string

const (
	SourceCalendar Source = "calendar"
	SourceManual   Source = "manual"
	SourceMixed    Source = "mixed"
)

// ParseSource validates a submission source label.
func ParseSource(value string) (Source, error) {
	switch Source(strings.TrimSpace(strings.ToLower(value))) {
	case SourceCalendar:
		return SourceCalendar, nil
	case SourceManual:
		return SourceManual, nil
	case SourceMixed:
		return SourceMixed, nil
	default:
		return "", apperrors.New(apperrors.CodeAvailabilityInvalidSource, "availability source must be calendar, manual, or mixed")
	}
}

// Mark is one declared-free slot with its provenance flags.
type Mark struct {
	Slot       slot.Slot
	Provenance Provenance
}

// Set holds one participant's declared-free slots for one plan.
// A new submission fully replaces the previous set (last-write-wins).
type Set struct {
	ParticipantID string
	Slots         map[slot.Slot]Provenance
	UpdatedAt     time.Time
}

// NewSet builds a participant availability set from submission marks.
// Duplicate slots merge their provenance flags. Every slot must carry at
// least one flag. An empty mark list is a valid, explicit "never free"
// submission.
func NewSet(participantID string, marks []Mark, updatedAt time.Time) (Set, error) {
	participantID = strings.TrimSpace(participantID)
	if participantID == "" {
		return Set{}, apperrors.New(apperrors.CodeAvailabilityEmptyParticipantID, "participant id is required")
	}

	slots := make(map[slot.Slot]Provenance, len(marks))
	for _, mark := range marks {
		if mark.Slot.IsZero() {
			return Set{}, apperrors.New(apperrors.CodeSlotMalformed, "slot is required for each availability mark")
		}
		if mark.Provenance == 0 {
			return Set{}, apperrors.WithMetadata(
				apperrors.CodeAvailabilityNoProvenance,
				"availability mark carries no provenance flag",
				map[string]string{"Slot": mark.Slot.String()},
			)
		}
		slots[mark.Slot] |= mark.Provenance
	}

	return Set{
		ParticipantID: participantID,
		Slots:         slots,
		UpdatedAt:     updatedAt.UTC(),
	}, nil
}

// MarksFromSource expands a plain slot list into marks for a uniform source.
// Mixed submissions must supply explicit per-slot flags instead.
func MarksFromSource(slots []slot.Slot, source Source) ([]Mark, error) {
	var provenance Provenance
	switch source {
	case SourceCalendar:
		provenance = ProvenanceCalendar
	case SourceManual:
		provenance = ProvenanceManual
	default:
		return nil, apperrors.New(apperrors.CodeAvailabilityInvalidSource, "mixed submissions need per-slot provenance marks")
	}

	marks := make([]Mark, 0, len(slots))
	for _, s := range slots {
		marks = append(marks, Mark{Slot: s, Provenance: provenance})
	}
	return marks, nil
}

// Contains reports whether the participant declared the slot free.
func (s Set) Contains(target slot.Slot) bool {
	_, ok := s.Slots[target]
	return ok
}

// SortedSlots returns the declared slots in chronological order.
func (s Set) SortedSlots() []slot.Slot {
	sorted := make([]slot.Slot, 0, len(s.Slots))
	for declared := range s.Slots {
		sorted = append(sorted, declared)
	}
	slot.Sort(sorted)
	return sorted
}

// Len returns the number of declared slots.
func (s Set) Len() int {
	return len(s.Slots)
}
