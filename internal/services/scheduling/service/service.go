// Package service implements the plan lifecycle controller: it orchestrates
// the domain rules, persistence, access grants, and the invite gateway.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/huddlehq/huddle/internal/platform/errors"
	"github.com/huddlehq/huddle/internal/platform/id"
	"github.com/huddlehq/huddle/internal/services/scheduling/domain/availability"
	"github.com/huddlehq/huddle/internal/services/scheduling/domain/overlap"
	"github.com/huddlehq/huddle/internal/services/scheduling/domain/plan"
	"github.com/huddlehq/huddle/internal/services/scheduling/domain/slot"
	"github.com/huddlehq/huddle/internal/services/scheduling/gateway"
	"github.com/huddlehq/huddle/internal/services/scheduling/storage"
	"github.com/huddlehq/huddle/internal/services/scheduling/token"
)

// InitiatorParticipantID is the reserved participant identifier the plan's
// initiator submits availability under. Invitee identifiers are generated
// and cannot collide with it.
const InitiatorParticipantID = "initiator"

// grantExpirySlack keeps grants usable a little past the last plannable day
// so invitees can still read a finalized plan.
const grantExpirySlack = 24 * time.Hour

// Config assembles the service's collaborators.
type Config struct {
	Store     storage.Store
	Gateway   gateway.Gateway
	Grants    token.Config
	Policy    overlap.Policy
	Retention time.Duration
	Now       func() time.Time
	NewID     func() (string, error)
	Logger    *log.Logger
}

// Service is the scheduling plan lifecycle controller.
type Service struct {
	store     storage.Store
	gateway   gateway.Gateway
	grants    token.Config
	policy    overlap.Policy
	retention time.Duration
	now       func() time.Time
	newID     func() (string, error)
	logger    *log.Logger
	tracer    trace.Tracer
}

// New wires a scheduling service from its collaborators.
func New(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Gateway == nil {
		cfg.Gateway = gateway.NewLogGateway(cfg.Logger)
	}
	if cfg.Policy == (overlap.Policy{}) {
		cfg.Policy = overlap.DefaultPolicy()
	}
	if cfg.Retention <= 0 {
		cfg.Retention = plan.DefaultRetention
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = id.NewID
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Service{
		store:     cfg.Store,
		gateway:   cfg.Gateway,
		grants:    cfg.Grants,
		policy:    cfg.Policy,
		retention: cfg.Retention,
		now:       cfg.Now,
		newID:     cfg.NewID,
		logger:    cfg.Logger,
		tracer:    otel.Tracer("huddle/scheduling"),
	}, nil
}

func (s *Service) startSpan(ctx context.Context, name, planID string) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, name)
	if planID != "" {
		span.SetAttributes(attribute.String("plan.id", planID))
	}
	return ctx, span
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// CreatePlan validates and persists a new plan, issues one access grant per
// invitee, and hands the invites to the gateway. Delivery is best-effort:
// a gateway failure is logged, not surfaced, since grants can be re-sent.
func (s *Service) CreatePlan(ctx context.Context, input plan.CreateInput) (p plan.Plan, err error) {
	ctx, span := s.startSpan(ctx, "scheduling.CreatePlan", "")
	defer func() { endSpan(span, err) }()

	p, err = plan.Create(input, s.now, s.newID)
	if err != nil {
		return plan.Plan{}, err
	}
	if err = s.store.CreatePlan(ctx, p); err != nil {
		return plan.Plan{}, fmt.Errorf("create plan: %w", err)
	}
	span.SetAttributes(attribute.String("plan.id", p.ID))

	if len(p.Invitees) == 0 {
		return p, nil
	}

	expiresAt := p.DateRangeEnd.Add(24 * time.Hour).Add(grantExpirySlack)
	issuedAt := s.now().UTC()
	invites := make([]gateway.Invite, 0, len(p.Invitees))
	grants := make([]storage.Grant, 0, len(p.Invitees))
	for _, invitee := range p.Invitees {
		signed, jti, issueErr := token.Issue(p.ID, invitee.ID, expiresAt, s.grants)
		if issueErr != nil {
			err = fmt.Errorf("issue grant for invitee %s: %w", invitee.ID, issueErr)
			return plan.Plan{}, err
		}
		grants = append(grants, storage.Grant{
			ID:        jti,
			PlanID:    p.ID,
			InviteeID: invitee.ID,
			IssuedAt:  issuedAt,
			ExpiresAt: expiresAt,
		})
		invites = append(invites, gateway.Invite{
			InviteeID:  invitee.ID,
			ContactRef: invitee.ContactRef,
			Grant:      signed,
		})
	}
	if err = s.store.PutGrants(ctx, grants); err != nil {
		return plan.Plan{}, fmt.Errorf("store grants: %w", err)
	}

	if sendErr := s.gateway.SendInvites(ctx, p.ID, invites); sendErr != nil {
		s.logger.Printf("plan %s: send invites: %v", p.ID, sendErr)
	}
	return p, nil
}

// GetPlan loads a plan by id.
func (s *Service) GetPlan(ctx context.Context, planID string) (plan.Plan, error) {
	return s.store.GetPlan(ctx, planID)
}

// ResolveGrant validates an invitee access grant against a plan and the
// revocation ledger. Revoked and unknown grants both surface as not-found
// so a cancelled plan becomes invisible to its invitees.
func (s *Service) ResolveGrant(ctx context.Context, planID, grant string) (string, error) {
	claims, err := token.Validate(grant, planID, s.grants)
	if err != nil {
		return "", err
	}
	stored, err := s.store.GetGrant(ctx, claims.JWTID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", apperrors.New(apperrors.CodeNotFound, "plan not found")
		}
		return "", fmt.Errorf("load grant: %w", err)
	}
	if stored.RevokedAt != nil || stored.PlanID != planID || stored.InviteeID != claims.InviteeID {
		return "", apperrors.New(apperrors.CodeNotFound, "plan not found")
	}
	return claims.InviteeID, nil
}

// SubmitAvailability replaces a participant's availability set wholesale.
// The participant is either the initiator or one of the plan's invitees;
// the first submission flips the invitee's responded flag.
func (s *Service) SubmitAvailability(ctx context.Context, planID, participantID string, marks []availability.Mark) (set availability.Set, err error) {
	ctx, span := s.startSpan(ctx, "scheduling.SubmitAvailability", planID)
	defer func() { endSpan(span, err) }()

	p, err := s.store.GetPlan(ctx, planID)
	if err != nil {
		return availability.Set{}, err
	}
	if err = p.CanAcceptAvailability(); err != nil {
		return availability.Set{}, err
	}
	if participantID != InitiatorParticipantID {
		if _, ok := p.InviteeByID(participantID); !ok {
			err = apperrors.New(apperrors.CodeNotFound, "participant is not on the plan")
			return availability.Set{}, err
		}
	}
	for _, mark := range marks {
		if mark.Slot.Start().Before(p.DateRangeStart) || mark.Slot.End().After(p.DateRangeEnd.Add(24*time.Hour)) {
			err = apperrors.WithMetadata(
				apperrors.CodeSlotOutsideRange,
				"slot falls outside the plan date range",
				map[string]string{"Slot": mark.Slot.String()},
			)
			return availability.Set{}, err
		}
	}

	set, err = availability.NewSet(participantID, marks, s.now().UTC())
	if err != nil {
		return availability.Set{}, err
	}
	if err = s.store.ReplaceAvailability(ctx, planID, set); err != nil {
		return availability.Set{}, fmt.Errorf("replace availability: %w", err)
	}
	return set, nil
}

// GetAvailability returns one participant's current set.
func (s *Service) GetAvailability(ctx context.Context, planID, participantID string) (availability.Set, error) {
	if _, err := s.store.GetPlan(ctx, planID); err != nil {
		return availability.Set{}, err
	}
	return s.store.GetAvailability(ctx, planID, participantID)
}

// ListAvailability returns every submitted set for a plan.
func (s *Service) ListAvailability(ctx context.Context, planID string) ([]availability.Set, error) {
	if _, err := s.store.GetPlan(ctx, planID); err != nil {
		return nil, err
	}
	return s.store.ListAvailability(ctx, planID)
}

// Overlap recomputes the overlap report from the latest stored sets.
func (s *Service) Overlap(ctx context.Context, planID string) (report overlap.Report, err error) {
	ctx, span := s.startSpan(ctx, "scheduling.Overlap", planID)
	defer func() { endSpan(span, err) }()

	if _, err = s.store.GetPlan(ctx, planID); err != nil {
		return overlap.Report{}, err
	}
	sets, err := s.store.ListAvailability(ctx, planID)
	if err != nil {
		return overlap.Report{}, fmt.Errorf("list availability: %w", err)
	}
	return overlap.Aggregate(sets, s.policy), nil
}

// Finalize picks the meeting time. Overlap is advisory, so any slot that
// fits the range and window is accepted regardless of who declared it free.
// The status swap is guarded: of two racing finalizes (or a finalize racing
// a cancel) exactly one wins.
func (s *Service) Finalize(ctx context.Context, planID string, chosen slot.Slot) (p plan.Plan, err error) {
	ctx, span := s.startSpan(ctx, "scheduling.Finalize", planID)
	defer func() { endSpan(span, err) }()

	p, err = s.store.GetPlan(ctx, planID)
	if err != nil {
		return plan.Plan{}, err
	}
	if err = plan.GuardTransition(p.Status, plan.StatusScheduled); err != nil {
		return plan.Plan{}, err
	}
	if err = p.ValidateFinalizeTime(chosen); err != nil {
		return plan.Plan{}, err
	}

	from := p.Status
	p.Status = plan.StatusScheduled
	p.FinalizedTime = chosen
	p.UpdatedAt = s.now().UTC()
	if err = s.updateGuarded(ctx, p, from, plan.StatusScheduled); err != nil {
		return plan.Plan{}, err
	}

	notice := gateway.FinalizedNotice{
		PlanID:       p.ID,
		ActivityType: p.ActivityType,
		Location:     p.Location,
		StartsAt:     chosen.String(),
		EndsAt:       chosen.Start().Add(time.Duration(p.DurationMinutes) * time.Minute).UTC().Format("2006-01-02_15:04"),
	}
	if notifyErr := s.gateway.NotifyFinalized(ctx, notice); notifyErr != nil {
		s.logger.Printf("plan %s: notify finalized: %v", p.ID, notifyErr)
	}
	return p, nil
}

// Cancel moves the plan to cancelled and revokes every invitee grant. When
// the status flips but the gateway cannot be reached the cancellation stands
// and the caller gets a partial-cancellation error instead of a rollback.
func (s *Service) Cancel(ctx context.Context, planID string) (p plan.Plan, err error) {
	ctx, span := s.startSpan(ctx, "scheduling.Cancel", planID)
	defer func() { endSpan(span, err) }()

	p, err = s.store.GetPlan(ctx, planID)
	if err != nil {
		return plan.Plan{}, err
	}
	if err = plan.GuardTransition(p.Status, plan.StatusCancelled); err != nil {
		return plan.Plan{}, err
	}

	from := p.Status
	now := s.now().UTC()
	p.Status = plan.StatusCancelled
	p.TerminalAt = &now
	p.UpdatedAt = now
	if err = s.updateGuarded(ctx, p, from, plan.StatusCancelled); err != nil {
		return plan.Plan{}, err
	}

	if err = s.invalidateGrants(ctx, p.ID, now); err != nil {
		return p, err
	}
	return p, nil
}

// invalidateGrants revokes stored grants and pushes the revocation to the
// gateway. Failures surface as a partial cancellation.
func (s *Service) invalidateGrants(ctx context.Context, planID string, revokedAt time.Time) error {
	grants, err := s.store.ListGrantsByPlan(ctx, planID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeCancellationPartial, "plan cancelled, grant lookup failed", err)
	}
	if err := s.store.RevokeGrantsByPlan(ctx, planID, revokedAt); err != nil {
		return apperrors.Wrap(apperrors.CodeCancellationPartial, "plan cancelled, grant revocation failed", err)
	}
	if len(grants) == 0 {
		return nil
	}

	grantIDs := make([]string, 0, len(grants))
	for _, grant := range grants {
		grantIDs = append(grantIDs, grant.ID)
	}
	if err := s.gateway.InvalidateGrants(ctx, planID, grantIDs); err != nil {
		return apperrors.Wrap(apperrors.CodeCancellationPartial, "plan cancelled, gateway invalidation failed", err)
	}
	return nil
}

// Complete moves a scheduled plan to completed once its meeting time has
// arrived.
func (s *Service) Complete(ctx context.Context, planID string) (p plan.Plan, err error) {
	ctx, span := s.startSpan(ctx, "scheduling.Complete", planID)
	defer func() { endSpan(span, err) }()

	p, err = s.store.GetPlan(ctx, planID)
	if err != nil {
		return plan.Plan{}, err
	}
	if err = plan.GuardTransition(p.Status, plan.StatusCompleted); err != nil {
		return plan.Plan{}, err
	}
	now := s.now().UTC()
	if p.FinalizedTime.IsZero() || now.Before(p.FinalizedTime.Start()) {
		err = apperrors.New(apperrors.CodePlanStatusDisallowsOp, "plan cannot complete before its meeting time")
		return plan.Plan{}, err
	}

	from := p.Status
	p.Status = plan.StatusCompleted
	p.TerminalAt = &now
	p.UpdatedAt = now
	if err = s.updateGuarded(ctx, p, from, plan.StatusCompleted); err != nil {
		return plan.Plan{}, err
	}
	return p, nil
}

// Archive flags a terminal plan as archived.
func (s *Service) Archive(ctx context.Context, planID string) error {
	p, err := s.store.GetPlan(ctx, planID)
	if err != nil {
		return err
	}
	if err := p.Archivable(); err != nil {
		return err
	}
	now := s.now().UTC()
	return s.store.SetPlanArchived(ctx, planID, &now, now)
}

// Unarchive clears the archive flag. The status machine is untouched.
func (s *Service) Unarchive(ctx context.Context, planID string) error {
	if _, err := s.store.GetPlan(ctx, planID); err != nil {
		return err
	}
	return s.store.SetPlanArchived(ctx, planID, nil, s.now().UTC())
}

// AutoArchive sweeps terminal plans older than the retention window into the
// archive. The sweep is idempotent; it returns how many plans it archived.
func (s *Service) AutoArchive(ctx context.Context) (archived int, err error) {
	ctx, span := s.startSpan(ctx, "scheduling.AutoArchive", "")
	defer func() { endSpan(span, err) }()

	now := s.now().UTC()
	cutoff := now.Add(-s.retention)
	due, err := s.store.ListPlansDueForAutoArchive(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list plans due for auto archive: %w", err)
	}
	for _, p := range due {
		if !p.DueForAutoArchive(s.retention, now) {
			continue
		}
		if err = s.store.SetPlanArchived(ctx, p.ID, &now, now); err != nil {
			return archived, fmt.Errorf("archive plan %s: %w", p.ID, err)
		}
		archived++
	}
	span.SetAttributes(attribute.Int("plans.archived", archived))
	return archived, nil
}

// updateGuarded persists a guarded status change and turns a lost race into
// the illegal-transition error the loser would have gotten had it read the
// winning status first.
func (s *Service) updateGuarded(ctx context.Context, p plan.Plan, from, to plan.Status) error {
	err := s.store.UpdatePlan(ctx, p, from)
	if err == nil {
		return nil
	}
	if errors.Is(err, storage.ErrStatusConflict) {
		current, getErr := s.store.GetPlan(ctx, p.ID)
		if getErr != nil {
			return fmt.Errorf("reload plan after conflict: %w", getErr)
		}
		return plan.TransitionError(current.Status, to)
	}
	return fmt.Errorf("update plan: %w", err)
}
