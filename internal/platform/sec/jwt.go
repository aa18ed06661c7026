// Copyright (c) 2026 Midora. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionTokenTTL is the fixed lifetime of a session token.
//
// Expiry is always issuance + 1 hour; there is no sliding window because
// tokens are stateless and cannot be extended after signing.
const SessionTokenTTL = 1 * time.Hour

// VerifyConfig toggles the four independent verification checks.
//
// # Production Rule
//
// All four checks MUST be enabled in production configuration. The toggles
// exist so that tests can isolate a single check; [DefaultVerifyConfig]
// returns the everything-on posture.
type VerifyConfig struct {
	Signature bool
	Issuer    bool
	Audience  bool
	Expiry    bool
}

// DefaultVerifyConfig returns the production posture: every check enabled.
func DefaultVerifyConfig() VerifyConfig {
	return VerifyConfig{Signature: true, Issuer: true, Audience: true, Expiry: true}
}

// TokenService mints and verifies HMAC-SHA256 signed session tokens.
type TokenService struct {
	signingKey []byte
	issuer     string
	audience   string
	verify     VerifyConfig
	// now is swappable for deterministic expiry tests.
	now func() time.Time
}

// NewTokenService creates a new TokenService with a symmetric signing key.
//
// An empty signing key is a fatal configuration error: the caller must
// refuse to start the process rather than degrade to unsigned tokens.
func NewTokenService(signingKey, issuer, audience string, verify VerifyConfig) (*TokenService, error) {
	if signingKey == "" {
		return nil, fmt.Errorf("sec: signing key is not configured")
	}
	return &TokenService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		verify:     verify,
		now:        time.Now,
	}, nil
}

// # Issuance

// TokenInput carries the identity facts a session token is minted from.
//
// The resulting claim set is a pure function of this input plus the
// issuance instant and a fresh token ID.
type TokenInput struct {
	Subject string   // Unique account identifier (normalized email).
	Email   string   // Account email address.
	Name    string   // Display name; empty string when absent.
	Picture string   // Optional avatar URL; omitted from claims when empty.
	Roles   []string // One role claim entry per role held.
}

/*
IssueToken creates a signed session token for the given identity.

Description: Builds the deterministic claim set (subject, email, name,
fresh token ID, issued-at, roles, optional picture) and signs it with
HMAC-SHA256. Expiry is fixed at issuance + [SessionTokenTTL].

Parameters:
  - input: TokenInput

Returns:
  - string: The compact serialized JWT
  - error: Signing failures
*/
func (service *TokenService) IssueToken(input TokenInput) (string, error) {
	issuedAt := service.now()

	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   input.Subject,
			Issuer:    service.issuer,
			Audience:  jwt.ClaimStrings{service.audience},
			ID:        uuid.NewString(), // Fresh per call, never reused.
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(SessionTokenTTL)),
		},
		Email: input.Email,
		Name:  input.Name,
		Roles: input.Roles,
	}

	// The picture claim only appears when the provider supplied one.
	if input.Picture != "" {
		claims.Picture = input.Picture
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(service.signingKey)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign token: %w", err)
	}

	return signedToken, nil
}

// # Verification

/*
VerifyToken checks a compact JWT string against the configured checks.

Description: Signature, issuer, audience, and expiry are validated
independently according to [VerifyConfig]; a disabled check is skipped
entirely. Claims validation is performed explicitly here rather than by
the parser so each toggle maps to exactly one check.

Parameters:
  - tokenString: string

Returns:
  - *SessionClaims: Decoded claims on success
  - error: The first failed check
*/
func (service *TokenService) VerifyToken(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		// Registered-claim checks run explicitly below, gated per toggle.
		jwt.WithoutClaimsValidation(),
	)

	if service.verify.Signature {
		token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			return service.signingKey, nil
		})
		if err != nil {
			return nil, fmt.Errorf("sec: invalid token signature: %w", err)
		}
		claims, _ = token.Claims.(*SessionClaims)
	} else {
		if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
			return nil, fmt.Errorf("sec: malformed token: %w", err)
		}
	}

	if claims == nil {
		return nil, fmt.Errorf("sec: invalid token claims")
	}

	if service.verify.Issuer && claims.Issuer != service.issuer {
		return nil, fmt.Errorf("sec: token issuer mismatch")
	}

	if service.verify.Audience && !containsAudience(claims.Audience, service.audience) {
		return nil, fmt.Errorf("sec: token audience mismatch")
	}

	if service.verify.Expiry {
		if claims.ExpiresAt == nil || !service.now().Before(claims.ExpiresAt.Time) {
			return nil, fmt.Errorf("sec: token is expired")
		}
	}

	return claims, nil
}

// containsAudience reports whether the aud claim includes the expected value.
func containsAudience(audience jwt.ClaimStrings, expected string) bool {
	for _, entry := range audience {
		if entry == expected {
			return true
		}
	}
	return false
}
