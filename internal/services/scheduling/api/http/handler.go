// Package http exposes the scheduling service as a JSON API.
package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/huddlehq/huddle/internal/platform/errors"
	"github.com/huddlehq/huddle/internal/platform/httpx"
	"github.com/huddlehq/huddle/internal/services/scheduling/domain/availability"
	"github.com/huddlehq/huddle/internal/services/scheduling/domain/overlap"
	"github.com/huddlehq/huddle/internal/services/scheduling/domain/plan"
	"github.com/huddlehq/huddle/internal/services/scheduling/domain/slot"
	"github.com/huddlehq/huddle/internal/services/scheduling/service"
)

const dateLayout = "2006-01-02"

// Handler serves the scheduling JSON routes.
type Handler struct {
	svc *service.Service
}

// NewHandler wraps a scheduling service.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register binds all scheduling routes onto the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc(http.MethodPost+" /v1/plans", h.handleCreatePlan)
	mux.HandleFunc(http.MethodGet+" /v1/plans/{id}", h.handleGetPlan)
	mux.HandleFunc(http.MethodDelete+" /v1/plans/{id}", h.handleCancelPlan)
	mux.HandleFunc(http.MethodPost+" /v1/plans/{id}/availability", h.handleSubmitAvailability)
	mux.HandleFunc(http.MethodGet+" /v1/plans/{id}/availability", h.handleGetAvailability)
	mux.HandleFunc(http.MethodGet+" /v1/plans/{id}/overlap", h.handleOverlap)
	mux.HandleFunc(http.MethodPost+" /v1/plans/{id}/finalize", h.handleFinalize)
	mux.HandleFunc(http.MethodPost+" /v1/plans/{id}/complete", h.handleComplete)
	mux.HandleFunc(http.MethodPost+" /v1/plans/{id}/archive", h.handleArchive)
	mux.HandleFunc(http.MethodPost+" /v1/plans/{id}/unarchive", h.handleUnarchive)
	mux.HandleFunc(http.MethodPost+" /v1/maintenance/auto-archive", h.handleAutoArchive)
}

type inviteePayload struct {
	ID           string `json:"id,omitempty"`
	ContactRef   string `json:"contact_ref"`
	Attendance   string `json:"attendance,omitempty"`
	HasResponded bool   `json:"has_responded"`
}

type planPayload struct {
	ID              string           `json:"id"`
	ActivityType    string           `json:"activity_type"`
	DurationMinutes int              `json:"duration_minutes"`
	DateRangeStart  string           `json:"date_range_start"`
	DateRangeEnd    string           `json:"date_range_end"`
	Location        string           `json:"location,omitempty"`
	Status          string           `json:"status"`
	FinalizedTime   string           `json:"finalized_time,omitempty"`
	ArchivedAt      *time.Time       `json:"archived_at,omitempty"`
	Invitees        []inviteePayload `json:"invitees"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

func planToPayload(p plan.Plan) planPayload {
	payload := planPayload{
		ID:              p.ID,
		ActivityType:    p.ActivityType,
		DurationMinutes: p.DurationMinutes,
		DateRangeStart:  p.DateRangeStart.Format(dateLayout),
		DateRangeEnd:    p.DateRangeEnd.Format(dateLayout),
		Location:        p.Location,
		Status:          string(p.Status),
		ArchivedAt:      p.ArchivedAt,
		Invitees:        make([]inviteePayload, 0, len(p.Invitees)),
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
	if !p.FinalizedTime.IsZero() {
		payload.FinalizedTime = p.FinalizedTime.String()
	}
	for _, invitee := range p.Invitees {
		payload.Invitees = append(payload.Invitees, inviteePayload{
			ID:           invitee.ID,
			ContactRef:   invitee.ContactRef,
			Attendance:   string(invitee.Attendance),
			HasResponded: invitee.HasResponded,
		})
	}
	return payload
}

type createPlanRequest struct {
	ActivityType    string           `json:"activity_type"`
	DurationMinutes int              `json:"duration_minutes"`
	DateRangeStart  string           `json:"date_range_start"`
	DateRangeEnd    string           `json:"date_range_end"`
	Location        string           `json:"location"`
	Invitees        []inviteePayload `json:"invitees"`
}

func (h *Handler) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var req createPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, r, apperrors.New(apperrors.CodeInvalidRequest, "request body is not valid JSON"))
		return
	}
	rangeStart, err := time.Parse(dateLayout, req.DateRangeStart)
	if err != nil {
		httpx.WriteError(w, r, apperrors.New(apperrors.CodePlanDateRangeInverted, "date_range_start must be YYYY-MM-DD"))
		return
	}
	rangeEnd, err := time.Parse(dateLayout, req.DateRangeEnd)
	if err != nil {
		httpx.WriteError(w, r, apperrors.New(apperrors.CodePlanDateRangeInverted, "date_range_end must be YYYY-MM-DD"))
		return
	}

	input := plan.CreateInput{
		ActivityType:    req.ActivityType,
		DurationMinutes: req.DurationMinutes,
		DateRangeStart:  rangeStart,
		DateRangeEnd:    rangeEnd,
		Location:        req.Location,
	}
	for _, invitee := range req.Invitees {
		input.Invitees = append(input.Invitees, plan.InviteeInput{
			ContactRef: invitee.ContactRef,
			Attendance: plan.AttendanceType(invitee.Attendance),
		})
	}

	p, err := h.svc.CreatePlan(httpx.RequestContext(r), input)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusCreated, planToPayload(p))
}

// authorize resolves the acting participant on a plan-scoped route. A bearer
// grant identifies an invitee; without one the caller acts as the initiator.
func (h *Handler) authorize(r *http.Request, planID string) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return service.InitiatorParticipantID, nil
	}
	grant := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if grant == "" || grant == header {
		return "", apperrors.New(apperrors.CodeGrantInvalid, "authorization header must carry a bearer grant")
	}
	return h.svc.ResolveGrant(httpx.RequestContext(r), planID, grant)
}

func (h *Handler) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	planID := r.PathValue("id")
	if _, err := h.authorize(r, planID); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	p, err := h.svc.GetPlan(httpx.RequestContext(r), planID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, planToPayload(p))
}

type markPayload struct {
	Slot     string `json:"slot"`
	Calendar bool   `json:"calendar"`
	Manual   bool   `json:"manual"`
}

type submitAvailabilityRequest struct {
	Source string        `json:"source"`
	Slots  []string      `json:"slots"`
	Marks  []markPayload `json:"marks"`
}

type availabilitySetPayload struct {
	ParticipantID string        `json:"participant_id"`
	Slots         []markPayload `json:"slots"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func setToPayload(set availability.Set) availabilitySetPayload {
	payload := availabilitySetPayload{
		ParticipantID: set.ParticipantID,
		Slots:         make([]markPayload, 0, set.Len()),
		UpdatedAt:     set.UpdatedAt,
	}
	for _, sl := range set.SortedSlots() {
		provenance := set.Slots[sl]
		payload.Slots = append(payload.Slots, markPayload{
			Slot:     sl.String(),
			Calendar: provenance.Calendar(),
			Manual:   provenance.Manual(),
		})
	}
	return payload
}

func (req submitAvailabilityRequest) marks() ([]availability.Mark, error) {
	source, err := availability.ParseSource(req.Source)
	if err != nil {
		return nil, err
	}
	if source != availability.SourceMixed {
		slots, err := slot.ParseAll(req.Slots)
		if err != nil {
			return nil, err
		}
		return availability.MarksFromSource(slots, source)
	}

	marks := make([]availability.Mark, 0, len(req.Marks))
	for _, m := range req.Marks {
		parsed, err := slot.Parse(m.Slot)
		if err != nil {
			return nil, err
		}
		var provenance availability.Provenance
		if m.Calendar {
			provenance |= availability.ProvenanceCalendar
		}
		if m.Manual {
			provenance |= availability.ProvenanceManual
		}
		marks = append(marks, availability.Mark{Slot: parsed, Provenance: provenance})
	}
	return marks, nil
}

func (h *Handler) handleSubmitAvailability(w http.ResponseWriter, r *http.Request) {
	planID := r.PathValue("id")
	participantID, err := h.authorize(r, planID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	var req submitAvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, r, apperrors.New(apperrors.CodeInvalidRequest, "request body is not valid JSON"))
		return
	}
	marks, err := req.marks()
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	set, err := h.svc.SubmitAvailability(httpx.RequestContext(r), planID, participantID, marks)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, setToPayload(set))
}

type availabilityResponse struct {
	Participants []availabilitySetPayload `json:"participants"`
}

func (h *Handler) handleGetAvailability(w http.ResponseWriter, r *http.Request) {
	planID := r.PathValue("id")
	participantID, err := h.authorize(r, planID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	ctx := httpx.RequestContext(r)

	// Invitees see only their own set; the initiator sees everyone's.
	if participantID != service.InitiatorParticipantID {
		set, err := h.svc.GetAvailability(ctx, planID, participantID)
		if err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		_ = httpx.WriteJSON(w, http.StatusOK, availabilityResponse{
			Participants: []availabilitySetPayload{setToPayload(set)},
		})
		return
	}

	sets, err := h.svc.ListAvailability(ctx, planID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	response := availabilityResponse{Participants: make([]availabilitySetPayload, 0, len(sets))}
	for _, set := range sets {
		response.Participants = append(response.Participants, setToPayload(set))
	}
	_ = httpx.WriteJSON(w, http.StatusOK, response)
}

type slotCountPayload struct {
	Slot  string `json:"slot"`
	Count int    `json:"count"`
}

type overlapResponse struct {
	PerfectCount       int                `json:"perfect_count"`
	NearCount          int                `json:"near_count"`
	TotalDistinctSlots int                `json:"total_distinct_slots"`
	TotalParticipants  int                `json:"total_participants"`
	Waiting            bool               `json:"waiting"`
	BestSlots          []slotCountPayload `json:"best_slots"`
}

func reportToPayload(report overlap.Report) overlapResponse {
	response := overlapResponse{
		PerfectCount:       report.PerfectCount,
		NearCount:          report.NearCount,
		TotalDistinctSlots: report.TotalDistinctSlots,
		TotalParticipants:  report.TotalParticipants,
		Waiting:            report.Waiting(),
		BestSlots:          make([]slotCountPayload, 0, len(report.BestSlots)),
	}
	for _, best := range report.BestSlots {
		response.BestSlots = append(response.BestSlots, slotCountPayload{
			Slot:  best.Slot.String(),
			Count: best.Count,
		})
	}
	return response
}

func (h *Handler) handleOverlap(w http.ResponseWriter, r *http.Request) {
	planID := r.PathValue("id")
	if _, err := h.authorize(r, planID); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	report, err := h.svc.Overlap(httpx.RequestContext(r), planID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, reportToPayload(report))
}

type finalizeRequest struct {
	Time string `json:"time"`
}

func (h *Handler) handleFinalize(w http.ResponseWriter, r *http.Request) {
	planID := r.PathValue("id")
	var req finalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, r, apperrors.New(apperrors.CodeInvalidRequest, "request body is not valid JSON"))
		return
	}
	chosen, err := slot.Parse(req.Time)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	p, err := h.svc.Finalize(httpx.RequestContext(r), planID, chosen)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, planToPayload(p))
}

func (h *Handler) handleCancelPlan(w http.ResponseWriter, r *http.Request) {
	planID := r.PathValue("id")
	p, err := h.svc.Cancel(httpx.RequestContext(r), planID)
	if err != nil {
		// A partial cancellation also goes through here: the status flipped
		// but the caller learns invalidation is still pending.
		httpx.WriteError(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, planToPayload(p))
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Complete(httpx.RequestContext(r), r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, planToPayload(p))
}

func (h *Handler) handleArchive(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Archive(httpx.RequestContext(r), r.PathValue("id")); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleUnarchive(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Unarchive(httpx.RequestContext(r), r.PathValue("id")); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type autoArchiveResponse struct {
	Archived int `json:"archived"`
}

func (h *Handler) handleAutoArchive(w http.ResponseWriter, r *http.Request) {
	archived, err := h.svc.AutoArchive(httpx.RequestContext(r))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, autoArchiveResponse{Archived: archived})
}
