// Package tokens issues and verifies the signed, single-purpose links used
// for email confirmation and password reset.
package tokens

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "cogi/internal/errors"
)

// Purpose tags a token so it cannot be replayed in another flow.
type Purpose string

const (
	PurposeConfirm Purpose = "confirm"
	PurposeReset   Purpose = "reset"
)

const issuer = "cogi"

// Claims carries the target email and purpose of a token.
type Claims struct {
	Email   string  `json:"email"`
	Purpose Purpose `json:"purpose"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 tokens with a fixed maximum age.
type Issuer struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

// NewIssuer creates an Issuer. maxAge bounds the age of a token at
// verification time.
func NewIssuer(secret string, maxAge time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), maxAge: maxAge, now: time.Now}
}

// WithClock returns a copy of the Issuer that reads time from now.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	cp := *i
	cp.now = now
	return &cp
}

// Issue returns a signed token for email and purpose.
func (i *Issuer) Issue(email string, purpose Purpose) (string, error) {
	issuedAt := i.now()
	claims := &Claims{
		Email:   strings.ToLower(strings.TrimSpace(email)),
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   string(purpose),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(i.maxAge)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", purpose, err)
	}
	return signed, nil
}

// Verify checks signature, purpose and age and returns the token's email.
// Age equal to the maximum is still accepted; the comparison is in whole
// seconds because token timestamps are.
func (i *Issuer) Verify(tokenString string, purpose Purpose) (string, error) {
	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(time.Second),
		jwt.WithTimeFunc(i.now),
	)

	_, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", apperrors.Wrap(apperrors.ErrTokenExpired, err)
		}
		return "", apperrors.Wrap(apperrors.ErrTokenInvalid, err)
	}

	if claims.Purpose != purpose {
		return "", apperrors.Wrap(apperrors.ErrTokenInvalid,
			fmt.Errorf("token purpose %q, want %q", claims.Purpose, purpose))
	}
	if claims.Email == "" {
		return "", apperrors.Wrap(apperrors.ErrTokenInvalid, errors.New("token has no email"))
	}
	return claims.Email, nil
}
