// Package errors provides structured error handling with i18n support.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// CodeInvalidRequest covers requests that cannot be decoded at all,
	// before any domain validation runs.
	CodeInvalidRequest Code = "INVALID_REQUEST"

	// Plan errors
	CodePlanDateRangeInverted       Code = "PLAN_DATE_RANGE_INVERTED"
	CodePlanDateRangeTooLong        Code = "PLAN_DATE_RANGE_TOO_LONG"
	CodePlanInvalidDuration         Code = "PLAN_INVALID_DURATION"
	CodePlanEmptyActivityType       Code = "PLAN_EMPTY_ACTIVITY_TYPE"
	CodePlanInvalidStatusTransition Code = "PLAN_INVALID_STATUS_TRANSITION"
	CodePlanStatusDisallowsOp       Code = "PLAN_STATUS_DISALLOWS_OPERATION"
	CodePlanNotArchivable           Code = "PLAN_NOT_ARCHIVABLE"

	// Invitee errors
	CodeInviteeEmptyContactRef       Code = "INVITEE_EMPTY_CONTACT_REF"
	CodeInviteeInvalidAttendanceType Code = "INVITEE_INVALID_ATTENDANCE_TYPE"

	// Slot errors
	CodeSlotMalformed     Code = "SLOT_MALFORMED"
	CodeSlotOutsideWindow Code = "SLOT_OUTSIDE_WINDOW"
	CodeSlotUnaligned     Code = "SLOT_UNALIGNED"
	CodeSlotOutsideRange  Code = "SLOT_OUTSIDE_RANGE"

	// Availability errors
	CodeAvailabilityEmptyParticipantID Code = "AVAILABILITY_EMPTY_PARTICIPANT_ID"
	CodeAvailabilityInvalidSource      Code = "AVAILABILITY_INVALID_SOURCE"
	CodeAvailabilityNoProvenance       Code = "AVAILABILITY_NO_PROVENANCE"

	// Access grant errors
	CodeGrantInvalid  Code = "GRANT_INVALID"
	CodeGrantExpired  Code = "GRANT_EXPIRED"
	CodeGrantMismatch Code = "GRANT_MISMATCH"
	CodeGrantRevoked  Code = "GRANT_REVOKED"

	// Storage errors
	CodeNotFound         Code = "NOT_FOUND"
	CodeTransientStorage Code = "TRANSIENT_STORAGE"

	// Gateway errors
	CodeCancellationPartial Code = "CANCELLATION_PARTIAL"
	CodeGatewayUnavailable  Code = "GATEWAY_UNAVAILABLE"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// Bad request - validation failures, bad input
	case CodeInvalidRequest,
		CodePlanDateRangeInverted,
		CodePlanDateRangeTooLong,
		CodePlanInvalidDuration,
		CodePlanEmptyActivityType,
		CodeInviteeEmptyContactRef,
		CodeInviteeInvalidAttendanceType,
		CodeSlotMalformed,
		CodeSlotOutsideWindow,
		CodeSlotUnaligned,
		CodeSlotOutsideRange,
		CodeAvailabilityEmptyParticipantID,
		CodeAvailabilityInvalidSource,
		CodeAvailabilityNoProvenance:
		return http.StatusBadRequest

	// Conflict - current state does not allow the operation
	case CodePlanInvalidStatusTransition,
		CodePlanStatusDisallowsOp,
		CodePlanNotArchivable:
		return http.StatusConflict

	// Unauthorized - grant validation failures
	case CodeGrantInvalid,
		CodeGrantExpired,
		CodeGrantMismatch:
		return http.StatusUnauthorized

	// Not found - resource doesn't exist or grant was revoked
	case CodeNotFound,
		CodeGrantRevoked:
		return http.StatusNotFound

	// Service unavailable - retryable infrastructure failure
	case CodeTransientStorage,
		CodeGatewayUnavailable:
		return http.StatusServiceUnavailable

	// Bad gateway - the cancel succeeded but the side effect is pending
	case CodeCancellationPartial:
		return http.StatusBadGateway

	default:
		return http.StatusInternalServerError
	}
}

// IsRetryable reports whether callers may retry the failed operation.
// Only infrastructure failures qualify; client-caused errors never do.
func (c Code) IsRetryable() bool {
	switch c {
	case CodeTransientStorage, CodeGatewayUnavailable, CodeCancellationPartial:
		return true
	default:
		return false
	}
}
