package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sidgs/performance-management-sub001/pkg/logger"
)

// Claims is the derived view of a credential's payload.
//
// Claims are never authoritative: this layer decodes the payload but does not
// verify the signature. The backend re-validates the credential on every call
// and remains the source of truth.
type Claims struct {
	// UserID is the stable user identifier, extracted with the fallback
	// chain sub > user_id > username > email.
	UserID string
	// Email is the email claim when present.
	Email string
	// DisplayName is extracted with the fallback chain name > username.
	DisplayName string
	// Roles is the roles claim when it is an array; empty otherwise.
	Roles []string
	// ExpiresAt is the exp claim; zero when absent.
	ExpiresAt time.Time
}

// claimsParser decodes without validating: expiry and signature checks are the
// backend's job. Padding is allowed because portal-minted tokens pad their
// base64url segments.
var claimsParser = jwt.NewParser(jwt.WithoutClaimsValidation(), jwt.WithPaddingAllowed())

// DecodeClaims splits and decodes a bearer credential's payload segment.
//
// Returns nil for anything that is not a well-formed three-segment token with
// a JSON payload. Decode failures are logged, never propagated: a malformed
// credential is treated the same as an absent one.
func DecodeClaims(token string) *Claims {
	if token == "" {
		return nil
	}

	payload := jwt.MapClaims{}
	if _, _, err := claimsParser.ParseUnverified(token, payload); err != nil {
		logger.Debugf("credential decode failed: %v", err)
		return nil
	}

	claims := &Claims{
		UserID:      firstString(payload, "sub", "user_id", "username", "email"),
		Email:       stringClaim(payload, "email"),
		DisplayName: firstString(payload, "name", "username"),
		Roles:       rolesClaim(payload),
	}
	if exp, err := payload.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	return claims
}

// HasRole reports whether the claims carry the given role, case-insensitively
// the way the portal checks its admin roles.
func (c *Claims) HasRole(role string) bool {
	if c == nil {
		return false
	}
	for _, r := range c.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

func firstString(m jwt.MapClaims, keys ...string) string {
	for _, key := range keys {
		if v := stringClaim(m, key); v != "" {
			return v
		}
	}
	return ""
}

func stringClaim(m jwt.MapClaims, key string) string {
	v, _ := m[key].(string)
	return v
}

func rolesClaim(m jwt.MapClaims) []string {
	raw, ok := m["roles"].([]any)
	if !ok {
		return nil
	}
	roles := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			roles = append(roles, s)
		}
	}
	return roles
}
