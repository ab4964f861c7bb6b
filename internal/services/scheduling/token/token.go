// Package token issues and verifies plan-scoped invitee access grants.
//
// A grant is an ed25519-signed JWT bound to one plan and one invitee. The
// jti is persisted so the whole batch can be revoked when a plan is
// cancelled; revocation state itself lives in storage, not in the token.
package token

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/huddlehq/huddle/internal/platform/errors"
	"github.com/huddlehq/huddle/internal/platform/id"
)

type grantEnv struct {
	Issuer     string `env:"HUDDLE_GRANT_ISSUER" envDefault:"huddle-scheduling"`
	Audience   string `env:"HUDDLE_GRANT_AUDIENCE" envDefault:"huddle-invitees"`
	SigningKey string `env:"HUDDLE_GRANT_SIGNING_KEY"`
}

// Config defines how invitee grants are issued and verified.
type Config struct {
	Issuer   string
	Audience string
	Key      ed25519.PrivateKey
	Now      func() time.Time
}

// Claims captures a validated invitee grant.
type Claims struct {
	Issuer    string
	Audience  []string
	ExpiresAt time.Time
	IssuedAt  time.Time
	JWTID     string
	PlanID    string
	InviteeID string
}

// grantClaims is the internal claims type used for JWT signing and parsing.
type grantClaims struct {
	jwt.RegisteredClaims
	PlanID    string `json:"plan_id"`
	InviteeID string `json:"invitee_id"`
}

// LoadConfigFromEnv reads grant configuration. When no signing key is
// configured an ephemeral key is generated; grants then survive only the
// current process, which is acceptable for development setups.
func LoadConfigFromEnv(now func() time.Time) (Config, error) {
	var raw grantEnv
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("parse grant env: %w", err)
	}
	if now == nil {
		now = time.Now
	}

	cfg := Config{
		Issuer:   strings.TrimSpace(raw.Issuer),
		Audience: strings.TrimSpace(raw.Audience),
		Now:      now,
	}

	signingKey := strings.TrimSpace(raw.SigningKey)
	if signingKey == "" {
		_, priv, err := ed25519.GenerateKey(nil)
		if err != nil {
			return Config{}, fmt.Errorf("generate ephemeral grant key: %w", err)
		}
		cfg.Key = priv
		return cfg, nil
	}

	keyBytes, err := decodeBase64(signingKey)
	if err != nil {
		return Config{}, fmt.Errorf("decode grant signing key: %w", err)
	}
	switch len(keyBytes) {
	case ed25519.SeedSize:
		cfg.Key = ed25519.NewKeyFromSeed(keyBytes)
	case ed25519.PrivateKeySize:
		cfg.Key = ed25519.PrivateKey(keyBytes)
	default:
		return Config{}, fmt.Errorf("grant signing key must be %d or %d bytes", ed25519.SeedSize, ed25519.PrivateKeySize)
	}
	return cfg, nil
}

// Issue signs a grant for one invitee of one plan. The returned jti is
// persisted by the caller so cancellation can revoke the batch.
func Issue(planID, inviteeID string, expiresAt time.Time, cfg Config) (grant string, jti string, err error) {
	planID = strings.TrimSpace(planID)
	inviteeID = strings.TrimSpace(inviteeID)
	if planID == "" || inviteeID == "" {
		return "", "", errors.New("plan id and invitee id are required")
	}
	if len(cfg.Key) != ed25519.PrivateKeySize {
		return "", "", errors.New("grant signer is not configured")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	jti, err = id.NewID()
	if err != nil {
		return "", "", fmt.Errorf("generate grant id: %w", err)
	}

	now := cfg.Now().UTC()
	claims := grantClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(expiresAt.UTC()),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        jti,
		},
		PlanID:    planID,
		InviteeID: inviteeID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(cfg.Key)
	if err != nil {
		return "", "", fmt.Errorf("sign grant: %w", err)
	}
	return signed, jti, nil
}

// Validate verifies a grant token and checks it targets the expected plan.
func Validate(grant string, expectedPlanID string, cfg Config) (Claims, error) {
	grant = strings.TrimSpace(grant)
	if grant == "" {
		return Claims{}, apperrors.New(apperrors.CodeGrantInvalid, "access grant is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if len(cfg.Key) != ed25519.PrivateKeySize {
		return Claims{}, errors.New("grant verifier is not configured")
	}

	var parsed grantClaims
	_, err := jwt.ParseWithClaims(grant, &parsed, func(token *jwt.Token) (any, error) {
		return cfg.Key.Public(), nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Claims{}, mapJWTError(err)
	}

	if parsed.Issuer == "" || parsed.Issuer != cfg.Issuer {
		return Claims{}, apperrors.WithMetadata(
			apperrors.CodeGrantMismatch,
			"grant issuer mismatch",
			map[string]string{"Field": "issuer"},
		)
	}
	if !audienceContains(parsed.Audience, cfg.Audience) {
		return Claims{}, apperrors.WithMetadata(
			apperrors.CodeGrantMismatch,
			"grant audience mismatch",
			map[string]string{"Field": "audience"},
		)
	}
	if parsed.ID == "" {
		return Claims{}, apperrors.New(apperrors.CodeGrantInvalid, "grant jti is required")
	}
	if parsed.ExpiresAt == nil {
		return Claims{}, apperrors.New(apperrors.CodeGrantInvalid, "grant exp is required")
	}

	now := cfg.Now().UTC()
	exp := parsed.ExpiresAt.Time.UTC()
	if !exp.After(now) {
		return Claims{}, apperrors.New(apperrors.CodeGrantExpired, "grant is expired")
	}
	if parsed.NotBefore != nil && now.Before(parsed.NotBefore.Time.UTC()) {
		return Claims{}, apperrors.New(apperrors.CodeGrantInvalid, "grant not active yet")
	}

	if strings.TrimSpace(parsed.PlanID) == "" || parsed.PlanID != expectedPlanID {
		return Claims{}, apperrors.WithMetadata(
			apperrors.CodeGrantMismatch,
			"grant plan mismatch",
			map[string]string{"Field": "plan_id"},
		)
	}
	if strings.TrimSpace(parsed.InviteeID) == "" {
		return Claims{}, apperrors.New(apperrors.CodeGrantInvalid, "grant invitee is required")
	}

	claims := Claims{
		Issuer:    parsed.Issuer,
		Audience:  []string(parsed.Audience),
		ExpiresAt: exp,
		JWTID:     parsed.ID,
		PlanID:    parsed.PlanID,
		InviteeID: parsed.InviteeID,
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return claims, nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrEd25519Verification) {
		return apperrors.New(apperrors.CodeGrantInvalid, "grant signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.New(apperrors.CodeGrantInvalid, "grant alg is invalid")
	}
	return apperrors.New(apperrors.CodeGrantInvalid, "grant is invalid")
}

// audienceContains reports whether the audience list contains the given value.
func audienceContains(aud jwt.ClaimStrings, value string) bool {
	for _, item := range aud {
		if item == value {
			return true
		}
	}
	return false
}

func decodeBase64(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("empty base64 value")
	}
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}
