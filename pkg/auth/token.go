package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultTokenValidity matches the lifetime of a login session
	DefaultTokenValidity = 24 * time.Hour
	// DefaultIssuer is written to the iss claim when no issuer is configured
	DefaultIssuer = "festival"
	// MinSecretLength is the shortest HMAC secret accepted (256 bits)
	MinSecretLength = 32
)

// TokenConfig is the immutable configuration of a TokenService
type TokenConfig struct {
	Secret   []byte
	Validity time.Duration
	Issuer   string
}

// TokenService issues and verifies signed bearer tokens
type TokenService struct {
	secret   []byte
	validity time.Duration
	issuer   string
	now      func() time.Time
}

// NewTokenService creates a token service from cfg. The secret is copied so
// later changes to the caller's slice have no effect.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, fmt.Errorf("token secret must be at least %d bytes", MinSecretLength)
	}
	if cfg.Validity <= 0 {
		cfg.Validity = DefaultTokenValidity
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	return &TokenService{
		secret:   secret,
		validity: cfg.Validity,
		issuer:   cfg.Issuer,
		now:      time.Now,
	}, nil
}

// WithClock returns a copy of the service that reads time from now
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	clone := *s
	clone.now = now
	return &clone
}

// Validity returns the configured token lifetime
func (s *TokenService) Validity() time.Duration {
	return s.validity
}

// Issue signs a token for subject that expires after the validity window
func (s *TokenService) Issue(subject string) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("token subject is required")
	}

	issuedAt := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.validity)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of raw and returns its subject.
// Malformed input is reported as ErrTokenInvalid, never as a panic.
func (s *TokenService) Verify(raw string) (string, error) {
	if raw == "" {
		return "", ErrTokenInvalid
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	// exp is exclusive: a token stops being valid at the instant it expires
	if !s.now().Before(claims.ExpiresAt.Time) {
		return "", ErrTokenExpired
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	return claims.Subject, nil
}
