// Package storage defines the persistence contracts for the scheduling
// service. Implementations live in subpackages.
package storage

import (
	"context"
	"time"

	"github.com/huddlehq/huddle/internal/platform/errors"
	"github.com/huddlehq/huddle/internal/services/scheduling/domain/availability"
	"github.com/huddlehq/huddle/internal/services/scheduling/domain/plan"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New(errors.CodeNotFound, "record not found")

// ErrStatusConflict indicates a guarded plan update lost a race: the plan's
// status no longer matches the status the caller observed.
var ErrStatusConflict = errors.New(errors.CodePlanInvalidStatusTransition, "plan status changed concurrently")

// PlanStore persists plan aggregates. Mutations that depend on the plan's
// status take the expected status and fail with ErrStatusConflict when the
// stored status differs, so concurrent transitions have exactly one winner.
type PlanStore interface {
	CreatePlan(ctx context.Context, p plan.Plan) error
	GetPlan(ctx context.Context, planID string) (plan.Plan, error)
	// UpdatePlan replaces the plan row if its stored status still equals
	// expectedStatus.
	UpdatePlan(ctx context.Context, p plan.Plan, expectedStatus plan.Status) error
	SetPlanArchived(ctx context.Context, planID string, archivedAt *time.Time, updatedAt time.Time) error
	// ListPlansDueForAutoArchive returns unarchived terminal plans whose
	// terminal timestamp is at or before cutoff.
	ListPlansDueForAutoArchive(ctx context.Context, cutoff time.Time) ([]plan.Plan, error)
}

// AvailabilityStore persists per-participant availability sets. A submission
// replaces the participant's previous set wholesale and flips the matching
// invitee's responded flag in the same transaction.
type AvailabilityStore interface {
	ReplaceAvailability(ctx context.Context, planID string, set availability.Set) error
	GetAvailability(ctx context.Context, planID, participantID string) (availability.Set, error)
	ListAvailability(ctx context.Context, planID string) ([]availability.Set, error)
}

// Grant records an issued invitee access grant so a cancellation can revoke
// the whole batch.
type Grant struct {
	ID        string
	PlanID    string
	InviteeID string
	IssuedAt  time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// GrantStore persists issued grants and their revocation state.
type GrantStore interface {
	PutGrants(ctx context.Context, grants []Grant) error
	GetGrant(ctx context.Context, grantID string) (Grant, error)
	ListGrantsByPlan(ctx context.Context, planID string) ([]Grant, error)
	RevokeGrantsByPlan(ctx context.Context, planID string, revokedAt time.Time) error
}

// Store is the full persistence surface the scheduling service composes over.
type Store interface {
	PlanStore
	AvailabilityStore
	GrantStore
}
