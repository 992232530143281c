package server

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ReconnectIssuer mints and validates signed reconnect tokens, the
// supplemented feature that lets a client resume its identity after a
// transport drop within a grace window (see SPEC_FULL.md). Modeled on
// the teacher auth service's HS256 jwt.MapClaims pattern.
type ReconnectIssuer struct {
	secret []byte
	grace  time.Duration
	issuer string
}

// NewReconnectIssuer constructs an issuer signing with secret and
// granting tokens valid for grace past issuance.
func NewReconnectIssuer(secret string, grace time.Duration) *ReconnectIssuer {
	return &ReconnectIssuer{secret: []byte(secret), grace: grace, issuer: "lockstep-server"}
}

// Issue mints a signed reconnect token binding clientID and the
// session epoch (the session's current generation counter, so a token
// from a prior cohort can't resurrect a stale identity in a new one).
func (r *ReconnectIssuer) Issue(clientID string, epoch int64) (string, error) {
	claims := jwt.MapClaims{
		"client_id": clientID,
		"epoch":     epoch,
		"iss":       r.issuer,
		"exp":       time.Now().Add(r.grace).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(r.secret)
	if err != nil {
		return "", fmt.Errorf("reconnect: signing token: %w", err)
	}
	return signed, nil
}

// Validate parses tok and, if it is signed correctly, unexpired, and
// matches currentEpoch, returns the client id it was issued for.
func (r *ReconnectIssuer) Validate(tok string, currentEpoch int64) (string, error) {
	parsed, err := jwt.Parse(tok, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return r.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("%w: %v", ErrReconnectTokenInvalid, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrReconnectTokenInvalid
	}

	epoch, ok := claims["epoch"].(float64)
	if !ok || int64(epoch) != currentEpoch {
		return "", fmt.Errorf("%w: stale session epoch", ErrReconnectTokenInvalid)
	}

	clientID, ok := claims["client_id"].(string)
	if !ok || clientID == "" {
		return "", ErrReconnectTokenInvalid
	}

	return clientID, nil
}
