// Package plan holds the meeting plan aggregate and its lifecycle rules.
package plan

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/huddlehq/huddle/internal/platform/errors"
	"github.com/huddlehq/huddle/internal/platform/id"
	"github.com/huddlehq/huddle/internal/services/scheduling/domain/slot"
)

const (
	// MaxDateRangeDays caps the proposal window.
	MaxDateRangeDays = 14
	// DefaultRetention is how long terminal plans wait before auto-archive.
	DefaultRetention = 7 * 24 * time.Hour
)

// AttendanceType weights an invitee's presence.
type AttendanceType string

const (
	AttendanceMustAttend AttendanceType = "must_attend"
	AttendanceNiceToHave AttendanceType = "nice_to_have"
)

// ParseAttendanceType validates an attendance label.
func ParseAttendanceType(value string) (AttendanceType, error) {
	switch AttendanceType(strings.TrimSpace(strings.ToLower(value))) {
	case AttendanceMustAttend:
		return AttendanceMustAttend, nil
	case AttendanceNiceToHave:
		return AttendanceNiceToHave, nil
	default:
		return "", apperrors.New(apperrors.CodeInviteeInvalidAttendanceType, "attendance type must be must_attend or nice_to_have")
	}
}

// Invitee is one invited participant of a plan.
type Invitee struct {
	ID           string
	ContactRef   string
	Attendance   AttendanceType
	HasResponded bool
}

// Plan is the scheduling aggregate. Once the status is terminal the plan is
// immutable except for the orthogonal archive flag.
type Plan struct {
	ID              string
	ActivityType    string
	DurationMinutes int
	DateRangeStart  time.Time // midnight, wall clock
	DateRangeEnd    time.Time // midnight, inclusive date
	Location        string
	Invitees        []Invitee
	Status          Status
	FinalizedTime   slot.Slot // zero until scheduled
	TerminalAt      *time.Time
	ArchivedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CreateInput describes the metadata needed to create a plan.
type CreateInput struct {
	ActivityType    string
	DurationMinutes int
	DateRangeStart  time.Time
	DateRangeEnd    time.Time
	Location        string
	Invitees        []InviteeInput
}

// InviteeInput describes one invitee at plan creation.
type InviteeInput struct {
	ContactRef string
	Attendance AttendanceType
}

// Create validates input and builds a new plan. Plans with invitees start
// collecting availability immediately; initiator-only plans start as drafts.
func Create(input CreateInput, now func() time.Time, idGenerator func() (string, error)) (Plan, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := normalizeCreateInput(input)
	if err != nil {
		return Plan{}, err
	}

	planID, err := idGenerator()
	if err != nil {
		return Plan{}, fmt.Errorf("generate plan id: %w", err)
	}

	invitees := make([]Invitee, 0, len(normalized.Invitees))
	for _, in := range normalized.Invitees {
		inviteeID, err := idGenerator()
		if err != nil {
			return Plan{}, fmt.Errorf("generate invitee id: %w", err)
		}
		invitees = append(invitees, Invitee{
			ID:         inviteeID,
			ContactRef: in.ContactRef,
			Attendance: in.Attendance,
		})
	}

	status := StatusDraft
	if len(invitees) > 0 {
		status = StatusCollectingAvailability
	}

	createdAt := now().UTC()
	return Plan{
		ID:              planID,
		ActivityType:    normalized.ActivityType,
		DurationMinutes: normalized.DurationMinutes,
		DateRangeStart:  normalized.DateRangeStart,
		DateRangeEnd:    normalized.DateRangeEnd,
		Location:        normalized.Location,
		Invitees:        invitees,
		Status:          status,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}, nil
}

// normalizeCreateInput trims and validates plan creation metadata.
func normalizeCreateInput(input CreateInput) (CreateInput, error) {
	input.ActivityType = strings.TrimSpace(input.ActivityType)
	if input.ActivityType == "" {
		return CreateInput{}, apperrors.New(apperrors.CodePlanEmptyActivityType, "activity type is required")
	}
	if input.DurationMinutes <= 0 {
		return CreateInput{}, apperrors.New(apperrors.CodePlanInvalidDuration, "duration must be a positive number of minutes")
	}
	input.Location = strings.TrimSpace(input.Location)

	input.DateRangeStart = midnight(input.DateRangeStart)
	input.DateRangeEnd = midnight(input.DateRangeEnd)
	if input.DateRangeEnd.Before(input.DateRangeStart) {
		return CreateInput{}, apperrors.New(apperrors.CodePlanDateRangeInverted, "date range end is before start")
	}
	if input.DateRangeEnd.Sub(input.DateRangeStart) > MaxDateRangeDays*24*time.Hour {
		return CreateInput{}, apperrors.WithMetadata(
			apperrors.CodePlanDateRangeTooLong,
			"date range exceeds the maximum",
			map[string]string{"MaxDays": strconv.Itoa(MaxDateRangeDays)},
		)
	}

	for i := range input.Invitees {
		input.Invitees[i].ContactRef = strings.TrimSpace(input.Invitees[i].ContactRef)
		if input.Invitees[i].ContactRef == "" {
			return CreateInput{}, apperrors.New(apperrors.CodeInviteeEmptyContactRef, "invitee contact reference is required")
		}
		if input.Invitees[i].Attendance == "" {
			input.Invitees[i].Attendance = AttendanceMustAttend
			continue
		}
		attendance, err := ParseAttendanceType(string(input.Invitees[i].Attendance))
		if err != nil {
			return CreateInput{}, err
		}
		input.Invitees[i].Attendance = attendance
	}

	return input, nil
}

// TransitionError builds the structured illegal-transition error carrying
// the current and requested states.
func TransitionError(from, to Status) error {
	return apperrors.WithMetadata(
		apperrors.CodePlanInvalidStatusTransition,
		fmt.Sprintf("cannot transition plan from %s to %s", from, to),
		map[string]string{"From": string(from), "To": string(to)},
	)
}

// GuardTransition validates a lifecycle edge against the transition table.
func GuardTransition(from, to Status) error {
	if !IsTransitionAllowed(from, to) {
		return TransitionError(from, to)
	}
	return nil
}

// CanAcceptAvailability reports whether availability submissions are open.
// Submissions close the moment a plan is finalized or reaches a terminal
// state.
func (p Plan) CanAcceptAvailability() error {
	switch p.Status {
	case StatusDraft, StatusCollectingAvailability:
		return nil
	default:
		return apperrors.WithMetadata(
			apperrors.CodePlanStatusDisallowsOp,
			fmt.Sprintf("a %s plan no longer accepts availability", p.Status),
			map[string]string{"Status": string(p.Status)},
		)
	}
}

// ValidateFinalizeTime checks a chosen slot against the plan's date range,
// duration, and working window. Overlap is advisory; the chosen slot need
// not be one anybody declared free.
func (p Plan) ValidateFinalizeTime(chosen slot.Slot) error {
	meetingEnd := chosen.Start().Add(time.Duration(p.DurationMinutes) * time.Minute)
	rangeEnd := p.DateRangeEnd.Add(24 * time.Hour)
	if chosen.Start().Before(p.DateRangeStart) || meetingEnd.After(rangeEnd) {
		return apperrors.WithMetadata(
			apperrors.CodeSlotOutsideRange,
			"chosen time does not fit inside the plan date range",
			map[string]string{"Slot": chosen.String()},
		)
	}
	endOfWindow := midnight(meetingEnd.Add(-time.Nanosecond)).Add(slot.WindowEndHour * time.Hour)
	if meetingEnd.After(endOfWindow) {
		return apperrors.New(apperrors.CodeSlotOutsideWindow, "meeting would run past the working window")
	}
	return nil
}

// Archivable reports whether the plan may be archived.
func (p Plan) Archivable() error {
	if !p.Status.IsTerminal() {
		return apperrors.WithMetadata(
			apperrors.CodePlanNotArchivable,
			"only completed or cancelled plans can be archived",
			map[string]string{"Status": string(p.Status)},
		)
	}
	return nil
}

// DueForAutoArchive reports whether a terminal plan has aged past the
// retention window.
func (p Plan) DueForAutoArchive(retention time.Duration, now time.Time) bool {
	if !p.Status.IsTerminal() || p.ArchivedAt != nil || p.TerminalAt == nil {
		return false
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return now.UTC().Sub(p.TerminalAt.UTC()) >= retention
}

// InviteeByID finds an invitee on the plan.
func (p Plan) InviteeByID(inviteeID string) (Invitee, bool) {
	for _, invitee := range p.Invitees {
		if invitee.ID == inviteeID {
			return invitee, true
		}
	}
	return Invitee{}, false
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
