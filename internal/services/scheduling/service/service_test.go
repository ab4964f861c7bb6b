package service

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	apperrors "github.com/huddlehq/huddle/internal/platform/errors"
	"github.com/huddlehq/huddle/internal/services/scheduling/domain/availability"
	"github.com/huddlehq/huddle/internal/services/scheduling/domain/plan"
	"github.com/huddlehq/huddle/internal/services/scheduling/domain/slot"
	"github.com/huddlehq/huddle/internal/services/scheduling/gateway"
	"github.com/huddlehq/huddle/internal/services/scheduling/storage"
	"github.com/huddlehq/huddle/internal/services/scheduling/token"
)

// memoryStore is an in-memory storage.Store with the same status-guard
// semantics as the SQLite implementation.
type memoryStore struct {
	mu           sync.Mutex
	plans        map[string]plan.Plan
	availability map[string]map[string]availability.Set
	grants       map[string]storage.Grant
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		plans:        make(map[string]plan.Plan),
		availability: make(map[string]map[string]availability.Set),
		grants:       make(map[string]storage.Grant),
	}
}

func (m *memoryStore) CreatePlan(_ context.Context, p plan.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[p.ID] = p
	return nil
}

func (m *memoryStore) GetPlan(_ context.Context, planID string) (plan.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[planID]
	if !ok {
		return plan.Plan{}, storage.ErrNotFound
	}
	return p, nil
}

func (m *memoryStore) UpdatePlan(_ context.Context, p plan.Plan, expectedStatus plan.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.plans[p.ID]
	if !ok {
		return storage.ErrNotFound
	}
	if current.Status != expectedStatus {
		return storage.ErrStatusConflict
	}
	m.plans[p.ID] = p
	return nil
}

func (m *memoryStore) SetPlanArchived(_ context.Context, planID string, archivedAt *time.Time, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[planID]
	if !ok {
		return storage.ErrNotFound
	}
	p.ArchivedAt = archivedAt
	p.UpdatedAt = updatedAt
	m.plans[planID] = p
	return nil
}

func (m *memoryStore) ListPlansDueForAutoArchive(_ context.Context, cutoff time.Time) ([]plan.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []plan.Plan
	for _, p := range m.plans {
		if p.TerminalAt != nil && p.ArchivedAt == nil && !p.TerminalAt.After(cutoff) {
			due = append(due, p)
		}
	}
	return due, nil
}

func (m *memoryStore) ReplaceAvailability(_ context.Context, planID string, set availability.Set) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.availability[planID] == nil {
		m.availability[planID] = make(map[string]availability.Set)
	}
	m.availability[planID][set.ParticipantID] = set
	if p, ok := m.plans[planID]; ok {
		for i := range p.Invitees {
			if p.Invitees[i].ID == set.ParticipantID {
				p.Invitees[i].HasResponded = true
			}
		}
		m.plans[planID] = p
	}
	return nil
}

func (m *memoryStore) GetAvailability(_ context.Context, planID, participantID string) (availability.Set, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.availability[planID][participantID]
	if !ok {
		return availability.Set{}, storage.ErrNotFound
	}
	return set, nil
}

func (m *memoryStore) ListAvailability(_ context.Context, planID string) ([]availability.Set, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sets []availability.Set
	for _, set := range m.availability[planID] {
		sets = append(sets, set)
	}
	return sets, nil
}

func (m *memoryStore) PutGrants(_ context.Context, grants []storage.Grant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, grant := range grants {
		m.grants[grant.ID] = grant
	}
	return nil
}

func (m *memoryStore) GetGrant(_ context.Context, grantID string) (storage.Grant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	grant, ok := m.grants[grantID]
	if !ok {
		return storage.Grant{}, storage.ErrNotFound
	}
	return grant, nil
}

func (m *memoryStore) ListGrantsByPlan(_ context.Context, planID string) ([]storage.Grant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var grants []storage.Grant
	for _, grant := range m.grants {
		if grant.PlanID == planID {
			grants = append(grants, grant)
		}
	}
	return grants, nil
}

func (m *memoryStore) RevokeGrantsByPlan(_ context.Context, planID string, revokedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, grant := range m.grants {
		if grant.PlanID == planID && grant.RevokedAt == nil {
			grant.RevokedAt = &revokedAt
			m.grants[id] = grant
		}
	}
	return nil
}

// recordingGateway captures calls and can fail grant invalidation.
type recordingGateway struct {
	mu              sync.Mutex
	invites         []gateway.Invite
	finalized       []gateway.FinalizedNotice
	invalidated     [][]string
	invalidationErr error
}

func (g *recordingGateway) SendInvites(_ context.Context, _ string, invites []gateway.Invite) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.invites = append(g.invites, invites...)
	return nil
}

func (g *recordingGateway) NotifyFinalized(_ context.Context, notice gateway.FinalizedNotice) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.finalized = append(g.finalized, notice)
	return nil
}

func (g *recordingGateway) InvalidateGrants(_ context.Context, _ string, grantIDs []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.invalidationErr != nil {
		return g.invalidationErr
	}
	g.invalidated = append(g.invalidated, grantIDs)
	return nil
}

func testService(t *testing.T, store storage.Store, gw gateway.Gateway, now time.Time) *Service {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	svc, err := New(Config{
		Store:   store,
		Gateway: gw,
		Grants: token.Config{
			Issuer:   "huddle-scheduling",
			Audience: "huddle-invitees",
			Key:      priv,
			Now:      func() time.Time { return now },
		},
		Now: func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return svc
}

func createInput() plan.CreateInput {
	return plan.CreateInput{
		ActivityType:    "team dinner",
		DurationMinutes: 60,
		DateRangeStart:  time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		DateRangeEnd:    time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC),
		Invitees: []plan.InviteeInput{
			{ContactRef: "a@example.com"},
			{ContactRef: "b@example.com"},
		},
	}
}

func TestCreatePlanIssuesGrantsAndInvites(t *testing.T) {
	store := newMemoryStore()
	gw := &recordingGateway{}
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := testService(t, store, gw, now)

	p, err := svc.CreatePlan(context.Background(), createInput())
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if p.Status != plan.StatusCollectingAvailability {
		t.Errorf("status = %q", p.Status)
	}
	if len(gw.invites) != 2 {
		t.Fatalf("invites = %d, want 2", len(gw.invites))
	}
	grants, err := store.ListGrantsByPlan(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("ListGrantsByPlan: %v", err)
	}
	if len(grants) != 2 {
		t.Fatalf("grants = %d, want 2", len(grants))
	}

	// The delivered grant resolves back to its invitee.
	inviteeID, err := svc.ResolveGrant(context.Background(), p.ID, gw.invites[0].Grant)
	if err != nil {
		t.Fatalf("ResolveGrant: %v", err)
	}
	if inviteeID != gw.invites[0].InviteeID {
		t.Errorf("invitee = %q, want %q", inviteeID, gw.invites[0].InviteeID)
	}
}

func TestCreatePlanWithoutInviteesStaysDraft(t *testing.T) {
	store := newMemoryStore()
	gw := &recordingGateway{}
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := testService(t, store, gw, now)

	input := createInput()
	input.Invitees = nil
	p, err := svc.CreatePlan(context.Background(), input)
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if p.Status != plan.StatusDraft {
		t.Errorf("status = %q, want draft", p.Status)
	}
	if len(gw.invites) != 0 {
		t.Errorf("invites = %d, want 0", len(gw.invites))
	}
}

func TestSubmitAvailabilityMarksResponded(t *testing.T) {
	store := newMemoryStore()
	gw := &recordingGateway{}
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := testService(t, store, gw, now)
	ctx := context.Background()

	p, err := svc.CreatePlan(ctx, createInput())
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}

	slots, err := slot.ParseAll([]string{"2026-03-03_09:00", "2026-03-03_09:30"})
	if err != nil {
		t.Fatalf("parse slots: %v", err)
	}
	marks, err := availability.MarksFromSource(slots, availability.SourceCalendar)
	if err != nil {
		t.Fatalf("marks: %v", err)
	}
	inviteeID := p.Invitees[0].ID
	if _, err := svc.SubmitAvailability(ctx, p.ID, inviteeID, marks); err != nil {
		t.Fatalf("SubmitAvailability: %v", err)
	}

	got, err := svc.GetPlan(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPlan: %v", err)
	}
	if !got.Invitees[0].HasResponded {
		t.Error("invitee should be marked responded")
	}
	if got.Invitees[1].HasResponded {
		t.Error("other invitee should not be marked responded")
	}
}

func TestSubmitAvailabilityRejectsSlotOutsideRange(t *testing.T) {
	store := newMemoryStore()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := testService(t, store, &recordingGateway{}, now)
	ctx := context.Background()

	p, err := svc.CreatePlan(ctx, createInput())
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}

	outside, err := slot.Parse("2026-03-20_09:00")
	if err != nil {
		t.Fatalf("parse slot: %v", err)
	}
	marks, err := availability.MarksFromSource([]slot.Slot{outside}, availability.SourceManual)
	if err != nil {
		t.Fatalf("marks: %v", err)
	}
	_, err = svc.SubmitAvailability(ctx, p.ID, p.Invitees[0].ID, marks)
	if apperrors.CodeOf(err) != apperrors.CodeSlotOutsideRange {
		t.Fatalf("code = %q, want %q", apperrors.CodeOf(err), apperrors.CodeSlotOutsideRange)
	}
}

func TestSubmitAvailabilityRejectsUnknownParticipant(t *testing.T) {
	store := newMemoryStore()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := testService(t, store, &recordingGateway{}, now)
	ctx := context.Background()

	p, err := svc.CreatePlan(ctx, createInput())
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	_, err = svc.SubmitAvailability(ctx, p.ID, "stranger", nil)
	if apperrors.CodeOf(err) != apperrors.CodeNotFound {
		t.Fatalf("code = %q, want %q", apperrors.CodeOf(err), apperrors.CodeNotFound)
	}
}

func TestSubmitAvailabilityRejectedAfterFinalize(t *testing.T) {
	store := newMemoryStore()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := testService(t, store, &recordingGateway{}, now)
	ctx := context.Background()

	p, err := svc.CreatePlan(ctx, createInput())
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	chosen, err := slot.Parse("2026-03-04_18:00")
	if err != nil {
		t.Fatalf("parse slot: %v", err)
	}
	if _, err := svc.Finalize(ctx, p.ID, chosen); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	_, err = svc.SubmitAvailability(ctx, p.ID, InitiatorParticipantID, nil)
	if apperrors.CodeOf(err) != apperrors.CodePlanStatusDisallowsOp {
		t.Fatalf("code = %q, want %q", apperrors.CodeOf(err), apperrors.CodePlanStatusDisallowsOp)
	}
}

func TestOverlapSpecScenario(t *testing.T) {
	store := newMemoryStore()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := testService(t, store, &recordingGateway{}, now)
	ctx := context.Background()

	input := createInput()
	input.Invitees = input.Invitees[:1]
	p, err := svc.CreatePlan(ctx, input)
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}

	both, err := slot.ParseAll([]string{"2026-03-03_09:00", "2026-03-03_09:30"})
	if err != nil {
		t.Fatalf("parse slots: %v", err)
	}
	initiatorMarks, err := availability.MarksFromSource(both, availability.SourceManual)
	if err != nil {
		t.Fatalf("marks: %v", err)
	}
	if _, err := svc.SubmitAvailability(ctx, p.ID, InitiatorParticipantID, initiatorMarks); err != nil {
		t.Fatalf("SubmitAvailability initiator: %v", err)
	}
	inviteeMarks, err := availability.MarksFromSource(both[:1], availability.SourceCalendar)
	if err != nil {
		t.Fatalf("marks: %v", err)
	}
	if _, err := svc.SubmitAvailability(ctx, p.ID, p.Invitees[0].ID, inviteeMarks); err != nil {
		t.Fatalf("SubmitAvailability invitee: %v", err)
	}

	report, err := svc.Overlap(ctx, p.ID)
	if err != nil {
		t.Fatalf("Overlap: %v", err)
	}
	if report.TotalParticipants != 2 {
		t.Errorf("participants = %d, want 2", report.TotalParticipants)
	}
	if report.PerfectCount != 1 {
		t.Errorf("perfect = %d, want 1", report.PerfectCount)
	}
	if len(report.BestSlots) == 0 || report.BestSlots[0].Slot != both[0] || report.BestSlots[0].Count != 2 {
		t.Errorf("best slots = %+v", report.BestSlots)
	}
}

func TestOverlapEmptyPlan(t *testing.T) {
	store := newMemoryStore()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := testService(t, store, &recordingGateway{}, now)
	ctx := context.Background()

	p, err := svc.CreatePlan(ctx, createInput())
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	report, err := svc.Overlap(ctx, p.ID)
	if err != nil {
		t.Fatalf("Overlap: %v", err)
	}
	if report.TotalParticipants != 0 || len(report.BestSlots) != 0 {
		t.Errorf("report = %+v, want empty", report)
	}
}

func TestFinalizeNotifiesGateway(t *testing.T) {
	store := newMemoryStore()
	gw := &recordingGateway{}
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := testService(t, store, gw, now)
	ctx := context.Background()

	p, err := svc.CreatePlan(ctx, createInput())
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	chosen, err := slot.Parse("2026-03-04_18:00")
	if err != nil {
		t.Fatalf("parse slot: %v", err)
	}
	got, err := svc.Finalize(ctx, p.ID, chosen)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if got.Status != plan.StatusScheduled || got.FinalizedTime != chosen {
		t.Errorf("plan = %+v", got)
	}
	if len(gw.finalized) != 1 || gw.finalized[0].StartsAt != "2026-03-04_18:00" {
		t.Errorf("finalized notices = %+v", gw.finalized)
	}
	if gw.finalized[0].EndsAt != "2026-03-04_19:00" {
		t.Errorf("ends at = %q", gw.finalized[0].EndsAt)
	}
}

func TestConcurrentFinalizeHasOneWinner(t *testing.T) {
	store := newMemoryStore()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := testService(t, store, &recordingGateway{}, now)
	ctx := context.Background()

	p, err := svc.CreatePlan(ctx, createInput())
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	chosen, err := slot.Parse("2026-03-04_18:00")
	if err != nil {
		t.Fatalf("parse slot: %v", err)
	}

	const attempts = 8
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Finalize(ctx, p.ID, chosen)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var wins, losses int
	for err := range errs {
		switch {
		case err == nil:
			wins++
		case apperrors.CodeOf(err) == apperrors.CodePlanInvalidStatusTransition:
			losses++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("wins = %d, want exactly 1", wins)
	}
	if losses != attempts-1 {
		t.Errorf("losses = %d, want %d", losses, attempts-1)
	}
}

func TestCancelRevokesGrants(t *testing.T) {
	store := newMemoryStore()
	gw := &recordingGateway{}
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := testService(t, store, gw, now)
	ctx := context.Background()

	p, err := svc.CreatePlan(ctx, createInput())
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	grant := gw.invites[0].Grant

	cancelled, err := svc.Cancel(ctx, p.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Status != plan.StatusCancelled || cancelled.TerminalAt == nil {
		t.Errorf("plan = %+v", cancelled)
	}
	if len(gw.invalidated) != 1 || len(gw.invalidated[0]) != 2 {
		t.Errorf("invalidated = %+v", gw.invalidated)
	}

	// A revoked grant makes the plan invisible to its invitee.
	_, err = svc.ResolveGrant(ctx, p.ID, grant)
	if apperrors.CodeOf(err) != apperrors.CodeNotFound {
		t.Fatalf("code = %q, want %q", apperrors.CodeOf(err), apperrors.CodeNotFound)
	}
}

func TestCancelGatewayFailureIsPartial(t *testing.T) {
	store := newMemoryStore()
	gw := &recordingGateway{invalidationErr: fmt.Errorf("gateway down")}
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := testService(t, store, gw, now)
	ctx := context.Background()

	p, err := svc.CreatePlan(ctx, createInput())
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}

	_, err = svc.Cancel(ctx, p.ID)
	if apperrors.CodeOf(err) != apperrors.CodeCancellationPartial {
		t.Fatalf("code = %q, want %q", apperrors.CodeOf(err), apperrors.CodeCancellationPartial)
	}

	// The cancellation stands despite the gateway failure.
	got, err := svc.GetPlan(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPlan: %v", err)
	}
	if got.Status != plan.StatusCancelled {
		t.Errorf("status = %q, want cancelled", got.Status)
	}
}

func TestCancelTerminalPlanRejected(t *testing.T) {
	store := newMemoryStore()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := testService(t, store, &recordingGateway{}, now)
	ctx := context.Background()

	p, err := svc.CreatePlan(ctx, createInput())
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if _, err := svc.Cancel(ctx, p.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	_, err = svc.Cancel(ctx, p.ID)
	if apperrors.CodeOf(err) != apperrors.CodePlanInvalidStatusTransition {
		t.Fatalf("code = %q, want %q", apperrors.CodeOf(err), apperrors.CodePlanInvalidStatusTransition)
	}
}

func TestCompleteRequiresMeetingTimePassed(t *testing.T) {
	store := newMemoryStore()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := testService(t, store, &recordingGateway{}, now)
	ctx := context.Background()

	p, err := svc.CreatePlan(ctx, createInput())
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	chosen, err := slot.Parse("2026-03-04_18:00")
	if err != nil {
		t.Fatalf("parse slot: %v", err)
	}
	if _, err := svc.Finalize(ctx, p.ID, chosen); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	_, err = svc.Complete(ctx, p.ID)
	if apperrors.CodeOf(err) != apperrors.CodePlanStatusDisallowsOp {
		t.Fatalf("code = %q, want %q", apperrors.CodeOf(err), apperrors.CodePlanStatusDisallowsOp)
	}
}

func TestCompleteAfterMeeting(t *testing.T) {
	store := newMemoryStore()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := testService(t, store, &recordingGateway{}, now)
	ctx := context.Background()

	p, err := svc.CreatePlan(ctx, createInput())
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	chosen, err := slot.Parse("2026-03-04_18:00")
	if err != nil {
		t.Fatalf("parse slot: %v", err)
	}
	if _, err := svc.Finalize(ctx, p.ID, chosen); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	later := testService(t, store, &recordingGateway{}, time.Date(2026, 3, 4, 19, 30, 0, 0, time.UTC))
	got, err := later.Complete(ctx, p.ID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got.Status != plan.StatusCompleted || got.TerminalAt == nil {
		t.Errorf("plan = %+v", got)
	}
}

func TestArchiveOnlyTerminalPlans(t *testing.T) {
	store := newMemoryStore()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := testService(t, store, &recordingGateway{}, now)
	ctx := context.Background()

	p, err := svc.CreatePlan(ctx, createInput())
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}

	err = svc.Archive(ctx, p.ID)
	if apperrors.CodeOf(err) != apperrors.CodePlanNotArchivable {
		t.Fatalf("code = %q, want %q", apperrors.CodeOf(err), apperrors.CodePlanNotArchivable)
	}

	if _, err := svc.Cancel(ctx, p.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if err := svc.Archive(ctx, p.ID); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	got, err := svc.GetPlan(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPlan: %v", err)
	}
	if got.ArchivedAt == nil {
		t.Fatal("archived at should be set")
	}
	if got.Status != plan.StatusCancelled {
		t.Errorf("status = %q, archive must not touch status", got.Status)
	}

	if err := svc.Unarchive(ctx, p.ID); err != nil {
		t.Fatalf("Unarchive: %v", err)
	}
	got, err = svc.GetPlan(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPlan: %v", err)
	}
	if got.ArchivedAt != nil {
		t.Error("archived at should be cleared")
	}
}

func TestAutoArchiveSweep(t *testing.T) {
	store := newMemoryStore()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := testService(t, store, &recordingGateway{}, now)
	ctx := context.Background()

	p, err := svc.CreatePlan(ctx, createInput())
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	if _, err := svc.Cancel(ctx, p.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	// Within the retention window nothing archives.
	archived, err := svc.AutoArchive(ctx)
	if err != nil {
		t.Fatalf("AutoArchive: %v", err)
	}
	if archived != 0 {
		t.Errorf("archived = %d, want 0", archived)
	}

	later := testService(t, store, &recordingGateway{}, now.Add(8*24*time.Hour))
	archived, err = later.AutoArchive(ctx)
	if err != nil {
		t.Fatalf("AutoArchive later: %v", err)
	}
	if archived != 1 {
		t.Errorf("archived = %d, want 1", archived)
	}

	// Idempotent on a second run.
	archived, err = later.AutoArchive(ctx)
	if err != nil {
		t.Fatalf("AutoArchive again: %v", err)
	}
	if archived != 0 {
		t.Errorf("archived = %d, want 0", archived)
	}
}

func TestGetPlanNotFound(t *testing.T) {
	store := newMemoryStore()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := testService(t, store, &recordingGateway{}, now)

	_, err := svc.GetPlan(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
