package i18n

// Error codes must match the codes defined in internal/platform/errors/codes.go.
// These are duplicated as strings to avoid an import cycle.
const (
	CodeInvalidRequest                 = "INVALID_REQUEST"
	CodePlanDateRangeInverted          = "PLAN_DATE_RANGE_INVERTED"
	CodePlanDateRangeTooLong           = "PLAN_DATE_RANGE_TOO_LONG"
	CodePlanInvalidDuration            = "PLAN_INVALID_DURATION"
	CodePlanEmptyActivityType          = "PLAN_EMPTY_ACTIVITY_TYPE"
	CodePlanInvalidStatusTransition    = "PLAN_INVALID_STATUS_TRANSITION"
	CodePlanStatusDisallowsOp          = "PLAN_STATUS_DISALLOWS_OPERATION"
	CodePlanNotArchivable              = "PLAN_NOT_ARCHIVABLE"
	CodeInviteeEmptyContactRef         = "INVITEE_EMPTY_CONTACT_REF"
	CodeInviteeInvalidAttendance       = "INVITEE_INVALID_ATTENDANCE_TYPE"
	CodeSlotMalformed                  = "SLOT_MALFORMED"
	CodeSlotOutsideWindow              = "SLOT_OUTSIDE_WINDOW"
	CodeSlotUnaligned                  = "SLOT_UNALIGNED"
	CodeSlotOutsideRange               = "SLOT_OUTSIDE_RANGE"
	CodeAvailabilityEmptyParticipantID = "AVAILABILITY_EMPTY_PARTICIPANT_ID"
	CodeAvailabilityInvalidSource      = "AVAILABILITY_INVALID_SOURCE"
	CodeAvailabilityNoProvenance       = "AVAILABILITY_NO_PROVENANCE"
	CodeGrantInvalid                   = "GRANT_INVALID"
	CodeGrantExpired                   = "GRANT_EXPIRED"
	CodeGrantMismatch                  = "GRANT_MISMATCH"
	CodeGrantRevoked                   = "GRANT_REVOKED"
	CodeNotFound                       = "NOT_FOUND"
	CodeTransientStorage               = "TRANSIENT_STORAGE"
	CodeCancellationPartial            = "CANCELLATION_PARTIAL"
	CodeGatewayUnavailable             = "GATEWAY_UNAVAILABLE"
)

var messagesEnUS = map[Code]string{
	CodeInvalidRequest:                 "The request body could not be read.",
	CodePlanDateRangeInverted:          "The end date must not be before the start date.",
	CodePlanDateRangeTooLong:           "The date range is limited to {{.MaxDays}} days.",
	CodePlanInvalidDuration:            "The meeting duration must be a positive number of minutes.",
	CodePlanEmptyActivityType:          "An activity type is required.",
	CodePlanInvalidStatusTransition:    "A {{.From}} plan cannot move to {{.To}}.",
	CodePlanStatusDisallowsOp:          "The plan status does not allow this operation.",
	CodePlanNotArchivable:              "Only completed or cancelled plans can be archived.",
	CodeInviteeEmptyContactRef:         "Each invitee needs a contact reference.",
	CodeInviteeInvalidAttendance:       "Attendance type must be must_attend or nice_to_have.",
	CodeSlotMalformed:                  "The time slot {{.Slot}} is not in YYYY-MM-DD_HH:MM form.",
	CodeSlotOutsideWindow:              "Meetings are only scheduled between 08:00 and 21:00.",
	CodeSlotUnaligned:                  "Time slots start on the hour or half hour.",
	CodeSlotOutsideRange:               "The chosen time is outside the plan date range.",
	CodeAvailabilityEmptyParticipantID: "A participant is required.",
	CodeAvailabilityInvalidSource:      "Availability source must be calendar, manual, or mixed.",
	CodeAvailabilityNoProvenance:       "Each slot needs at least one provenance mark.",
	CodeGrantInvalid:                   "The invite link is not valid.",
	CodeGrantExpired:                   "The invite link has expired.",
	CodeGrantMismatch:                  "The invite link does not match this plan.",
	CodeGrantRevoked:                   "The invite link is no longer active.",
	CodeNotFound:                       "Not found.",
	CodeTransientStorage:               "A temporary storage problem occurred. Please retry.",
	CodeCancellationPartial:            "The plan was cancelled, but invite cleanup is still pending.",
	CodeGatewayUnavailable:             "The notification service is unavailable. Please retry.",
}
