// Package token issues and verifies HS256-signed tokens: purpose-bound
// account tokens (confirm, reset, change_email) whose age is checked by the
// verifier, and expiring API access tokens.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Purpose names what an account token authorizes. The purpose is the claim
// key that carries the user id.
type Purpose string

const (
	PurposeConfirm     Purpose = "confirm"
	PurposeReset       Purpose = "reset"
	PurposeChangeEmail Purpose = "change_email"
)

var purposes = []Purpose{PurposeConfirm, PurposeReset, PurposeChangeEmail}

// DefaultMaxAge is the verification window used when callers pass none.
const DefaultMaxAge = time.Hour

var (
	ErrInvalid   = errors.New("invalid token")
	ErrMalformed = fmt.Errorf("%w: malformed", ErrInvalid)
	ErrSignature = fmt.Errorf("%w: bad signature", ErrInvalid)
	ErrExpired   = fmt.Errorf("%w: expired", ErrInvalid)
)

// Claim is the payload of an account token.
type Claim struct {
	Purpose  Purpose
	UserID   uint64
	NewEmail string
	IssuedAt time.Time
}

// Issuer signs and verifies tokens with one secret.
type Issuer struct {
	secret []byte
	now    func() time.Time
}

func NewIssuer(secret string) *Issuer {
	return &Issuer{secret: []byte(secret), now: time.Now}
}

// WithClock returns a copy of the issuer that reads time from now.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	return &Issuer{secret: i.secret, now: now}
}

// Issue signs c. The token has no expiry of its own; Verify enforces age.
func (i *Issuer) Issue(c Claim) (string, error) {
	claims := jwt.MapClaims{
		string(c.Purpose): c.UserID,
		"iat":             i.now().UTC().Unix(),
	}
	if c.NewEmail != "" {
		claims["new_email"] = c.NewEmail
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// Verify checks the signature and rejects tokens older than maxAge (second
// granularity). A non-positive maxAge only accepts tokens issued in the
// current second.
func (i *Issuer) Verify(raw string, maxAge time.Duration) (Claim, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	).ParseWithClaims(raw, claims, i.keyFunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return Claim{}, ErrSignature
		}
		return Claim{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var c Claim
	for _, p := range purposes {
		if v, ok := claims[string(p)]; ok {
			id, ok := v.(float64)
			if !ok || id < 1 {
				return Claim{}, ErrMalformed
			}
			c.Purpose, c.UserID = p, uint64(id)
			break
		}
	}
	if c.Purpose == "" {
		return Claim{}, ErrMalformed
	}
	iat, ok := claims["iat"].(float64)
	if !ok {
		return Claim{}, ErrMalformed
	}
	c.IssuedAt = time.Unix(int64(iat), 0).UTC()
	if email, ok := claims["new_email"].(string); ok {
		c.NewEmail = email
	}

	maxSec := int64(maxAge / time.Second)
	if maxSec < 0 {
		maxSec = 0
	}
	if i.now().Unix()-int64(iat) > maxSec {
		return Claim{}, ErrExpired
	}
	return c, nil
}

// VerifyFor is Verify plus a purpose check.
func (i *Issuer) VerifyFor(raw string, p Purpose, maxAge time.Duration) (Claim, error) {
	c, err := i.Verify(raw, maxAge)
	if err != nil {
		return Claim{}, err
	}
	if c.Purpose != p {
		return Claim{}, ErrMalformed
	}
	return c, nil
}

func (i *Issuer) keyFunc(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, ErrMalformed
	}
	return i.secret, nil
}
