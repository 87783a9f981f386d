// Package authn holds password hashing and bearer-token issuance. The rest of
// the system only ever sees an opaque credential and a resolved user id.
package authn

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredential covers bad passwords and bad/expired tokens alike so
// callers cannot distinguish which part failed.
var ErrInvalidCredential = errors.New("invalid credentials")

const tokenTTL = 7 * 24 * time.Hour

// Service signs and verifies tokens with a shared HS256 secret.
type Service struct {
	Secret string
	Now    func() time.Time
}

func (s Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(password, hash string) error {
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return ErrInvalidCredential
	}
	return nil
}

// IssueToken returns a signed bearer token with the user id as subject.
func (s Service) IssueToken(userID string) (string, error) {
	if s.Secret == "" {
		return "", errors.New("jwt secret not configured")
	}
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.Secret))
}

// VerifyToken resolves a bearer token back to a user id.
func (s Service) VerifyToken(token string) (string, error) {
	if s.Secret == "" {
		return "", errors.New("jwt secret not configured")
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &jwt.RegisteredClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(s.Secret), nil
	})
	if err != nil || !parsed.Valid {
		return "", ErrInvalidCredential
	}
	if claims.Subject == "" {
		return "", ErrInvalidCredential
	}
	return claims.Subject, nil
}
