package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessToken is a signed API bearer token along with its expiry.
type AccessToken struct {
	Token string
	Exp   time.Time
}

const accessType = "access"

// NewAccessToken builds and signs an HS256 JWT for userID carrying the
// standard sub, exp and iat claims.
func (i *Issuer) NewAccessToken(userID uint64, ttl time.Duration) (AccessToken, error) {
	now := i.now().UTC()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub": userID,
		"typ": accessType,
		"exp": exp.Unix(),
		"iat": now.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken validates signature and expiry and returns the user id.
func (i *Issuer) ParseAccessToken(raw string) (uint64, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	).ParseWithClaims(raw, claims, i.keyFunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrExpired
		}
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return 0, ErrSignature
		}
		return 0, ErrMalformed
	}
	if typ, _ := claims["typ"].(string); typ != accessType {
		return 0, ErrMalformed
	}
	sub, ok := claims["sub"].(float64)
	if !ok || sub < 1 {
		return 0, ErrMalformed
	}
	return uint64(sub), nil
}
