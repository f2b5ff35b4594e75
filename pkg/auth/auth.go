// Package auth issues and verifies the single operator bearer token that
// gates the HTTP control surface. The browser this process drives can
// navigate anywhere and read anything on the page, so even a single-user
// deployment warrants a real token rather than an open control plane.
//
// The call convention (InitJWT at boot, GenerateToken/ParseToken per
// request) follows the teacher's pkg/auth usage in
// internal/api/handlers/auth.go; the package itself was not present in the
// retrieved pack, so the implementation below is reconstructed from that
// call site using golang-jwt/jwt/v5, the library the teacher's go.mod
// already requires for it.
package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotInitialized = errors.New("auth: InitJWT was not called")
	ErrInvalidToken   = errors.New("auth: invalid or expired token")
)

var (
	mu         sync.RWMutex
	secret     []byte
	expireTime time.Duration
)

// InitJWT records the signing secret and default token lifetime. Called
// once at boot from the server's startup sequence.
func InitJWT(jwtSecret string, defaultExpire time.Duration) {
	mu.Lock()
	defer mu.Unlock()
	secret = []byte(jwtSecret)
	expireTime = defaultExpire
}

// Claims is the token payload. Subject is the operator name passed to
// GenerateToken rather than a database user ID, since this system has no
// user model (spec's Page Registry and perception state are
// process-lifetime, not relational); each token also carries a random UUID
// as its registered token ID.
type Claims struct {
	Subject string `json:"sub"`
	Issued  int64  `json:"iat"`
	jwt.RegisteredClaims
}

// GenerateToken signs a bearer token for the named operator, valid for ttl
// (or the default configured via InitJWT if ttl is zero).
func GenerateToken(operator string, ttl time.Duration) (string, error) {
	mu.RLock()
	s, defaultTTL := secret, expireTime
	mu.RUnlock()
	if s == nil {
		return "", ErrNotInitialized
	}
	if ttl == 0 {
		ttl = defaultTTL
	}

	now := time.Now()
	claims := Claims{
		Subject: operator,
		Issued:  now.Unix(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   operator,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies a bearer token's signature and expiry, returning its
// claims.
func ParseToken(tokenString string) (*Claims, error) {
	mu.RLock()
	s := secret
	mu.RUnlock()
	if s == nil {
		return nil, ErrNotInitialized
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// HashAPIKey hashes a static operator API key for storage in config, the
// companion credential InitJWT's token rides alongside.
func HashAPIKey(key string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash api key: %w", err)
	}
	return string(hashed), nil
}

// CheckAPIKey compares a presented key against its stored bcrypt hash in
// constant time.
func CheckAPIKey(presented, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(presented)) == nil
}
