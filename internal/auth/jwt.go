// Package auth issues and checks the bearer tokens agents present to the collector.
package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrEmptyToken    = errors.New("auth: empty token")
	ErrEmptySecret   = errors.New("auth: empty secret")
	ErrMissingDevice = errors.New("auth: missing device_id")
)

// Claims identify the uploading device.
type Claims struct {
	DeviceID string `json:"device_id"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for deviceID valid for ttl.
func IssueToken(secret []byte, deviceID string, ttl time.Duration, now time.Time) (string, error) {
	if len(secret) == 0 {
		return "", ErrEmptySecret
	}
	if deviceID == "" {
		return "", ErrMissingDevice
	}
	claims := Claims{
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   deviceID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return token, nil
}

// ParseToken validates signature, algorithm and expiry.
func ParseToken(tokenString string, secret []byte) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrEmptyToken
	}
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("auth: invalid token")
	}
	if claims.DeviceID == "" {
		return nil, ErrMissingDevice
	}
	return claims, nil
}

// TokenSource hands out a cached token and re-signs it when less than a fifth of its lifetime is left.
type TokenSource struct {
	secret   []byte
	deviceID string
	ttl      time.Duration
	now      func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

func NewTokenSource(secret, deviceID string, ttl time.Duration) *TokenSource {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenSource{secret: []byte(secret), deviceID: deviceID, ttl: ttl, now: time.Now}
}

func (s *TokenSource) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.token != "" && s.expires.Sub(now) > s.ttl/5 {
		return s.token, nil
	}
	token, err := IssueToken(s.secret, s.deviceID, s.ttl, now)
	if err != nil {
		return "", err
	}
	s.token, s.expires = token, now.Add(s.ttl)
	return token, nil
}
