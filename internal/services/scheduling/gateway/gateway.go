// Package gateway is the boundary to the invite delivery system. The
// scheduling service never sends email or chat messages itself; it hands
// invitee notifications and grant invalidation to a remote gateway.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cenkalti/backoff/v5"

	apperrors "github.com/huddlehq/huddle/internal/platform/errors"
)

// Invite describes one invitee notification with its access grant.
type Invite struct {
	InviteeID  string `json:"invitee_id"`
	ContactRef string `json:"contact_ref"`
	Grant      string `json:"grant"`
}

// FinalizedNotice announces a scheduled meeting time to all invitees.
type FinalizedNotice struct {
	PlanID       string `json:"plan_id"`
	ActivityType string `json:"activity_type"`
	Location     string `json:"location,omitempty"`
	StartsAt     string `json:"starts_at"`
	EndsAt       string `json:"ends_at"`
}

// Gateway delivers invites and revokes them. InvalidateGrants must be
// treated as best-effort by callers: a cancellation that cannot reach the
// gateway still cancels the plan, but reports the failure.
type Gateway interface {
	SendInvites(ctx context.Context, planID string, invites []Invite) error
	NotifyFinalized(ctx context.Context, notice FinalizedNotice) error
	InvalidateGrants(ctx context.Context, planID string, grantIDs []string) error
}

type gatewayEnv struct {
	BaseURL string        `env:"HUDDLE_GATEWAY_BASE_URL"`
	Secret  string        `env:"HUDDLE_GATEWAY_SECRET"`
	Timeout time.Duration `env:"HUDDLE_GATEWAY_TIMEOUT" envDefault:"10s"`
}

// FromEnv builds a gateway from HUDDLE_GATEWAY_* variables. Without a base
// URL the log gateway is used, which only records deliveries.
func FromEnv(logger *log.Logger) (Gateway, error) {
	var raw gatewayEnv
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("parse gateway env: %w", err)
	}
	baseURL := strings.TrimRight(strings.TrimSpace(raw.BaseURL), "/")
	if baseURL == "" {
		return NewLogGateway(logger), nil
	}
	return NewHTTPGateway(baseURL, raw.Secret, &http.Client{Timeout: raw.Timeout}), nil
}

// HTTPGateway calls a remote invite gateway over HTTP.
type HTTPGateway struct {
	baseURL string
	secret  string
	client  *http.Client

	// retry caps for grant invalidation
	maxTries    uint
	maxInterval time.Duration
}

// NewHTTPGateway creates a gateway client for the given base URL.
func NewHTTPGateway(baseURL, secret string, client *http.Client) *HTTPGateway {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPGateway{
		baseURL:     strings.TrimRight(baseURL, "/"),
		secret:      secret,
		client:      client,
		maxTries:    4,
		maxInterval: 5 * time.Second,
	}
}

// SendInvites delivers access grants to every invitee of a plan.
func (g *HTTPGateway) SendInvites(ctx context.Context, planID string, invites []Invite) error {
	payload := struct {
		PlanID  string   `json:"plan_id"`
		Invites []Invite `json:"invites"`
	}{PlanID: planID, Invites: invites}
	return g.post(ctx, "/v1/invites", payload)
}

// NotifyFinalized announces the chosen meeting time.
func (g *HTTPGateway) NotifyFinalized(ctx context.Context, notice FinalizedNotice) error {
	return g.post(ctx, "/v1/notifications/finalized", notice)
}

// InvalidateGrants revokes delivered grants at the gateway. Transient
// failures are retried with exponential backoff before giving up.
func (g *HTTPGateway) InvalidateGrants(ctx context.Context, planID string, grantIDs []string) error {
	payload := struct {
		PlanID   string   `json:"plan_id"`
		GrantIDs []string `json:"grant_ids"`
	}{PlanID: planID, GrantIDs: grantIDs}

	operation := func() (struct{}, error) {
		if err := g.post(ctx, "/v1/invites/invalidate", payload); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxInterval = g.maxInterval

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(g.maxTries),
	)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeGatewayUnavailable, "invalidate grants", err)
	}
	return nil
}

func (g *HTTPGateway) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("encode gateway payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("build gateway request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if g.secret != "" {
		req.Header.Set("X-Gateway-Secret", g.secret)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("gateway returned %s", resp.Status)
	default:
		return backoff.Permanent(fmt.Errorf("gateway returned %s", resp.Status))
	}
}

// LogGateway records deliveries without sending anything. It stands in for
// the real gateway in development and in tests.
type LogGateway struct {
	logger *log.Logger
}

// NewLogGateway creates a gateway that only logs.
func NewLogGateway(logger *log.Logger) *LogGateway {
	if logger == nil {
		logger = log.Default()
	}
	return &LogGateway{logger: logger}
}

func (g *LogGateway) SendInvites(_ context.Context, planID string, invites []Invite) error {
	g.logger.Printf("gateway: send %d invites for plan %s", len(invites), planID)
	return nil
}

func (g *LogGateway) NotifyFinalized(_ context.Context, notice FinalizedNotice) error {
	g.logger.Printf("gateway: plan %s finalized at %s", notice.PlanID, notice.StartsAt)
	return nil
}

func (g *LogGateway) InvalidateGrants(_ context.Context, planID string, grantIDs []string) error {
	g.logger.Printf("gateway: invalidate %d grants for plan %s", len(grantIDs), planID)
	return nil
}
