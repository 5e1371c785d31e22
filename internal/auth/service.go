package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/electromart/internal/common"
)

const (
	defaultTokenTTL = time.Hour
	adminSubject    = "admin"
)

// ErrAdminDisabled is returned when no admin password hash is configured.
var ErrAdminDisabled = errors.New("auth: admin access is not configured")

// Service authenticates the single admin principal and issues short lived access tokens.
type Service struct {
	passwordHash string
	secret       []byte
	tokenTTL     time.Duration
	now          func() time.Time
	signer       jwa.SignatureAlgorithm
	validator    TokenValidator
	issuer       string
	audience     string
	clockSkew    time.Duration
}

// Config configures the auth service.
type Config struct {
	Secret       string
	PasswordHash string
	TokenTTL     time.Duration
	Issuer       string
	Audience     string
	ClockSkew    time.Duration
}

// LoginResult is returned after a successful admin login.
type LoginResult struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// NewService constructs a Service. An empty PasswordHash is allowed; Enabled then reports
// false and every login fails with ErrAdminDisabled.
func NewService(cfg Config) (*Service, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	hash := strings.TrimSpace(cfg.PasswordHash)
	if hash != "" {
		if _, _, _, err := argon2id.DecodeHash(hash); err != nil {
			return nil, fmt.Errorf("auth: admin password hash: %w", err)
		}
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = "electromart"
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = "electromart-admin"
	}
	clockSkew := max(cfg.ClockSkew, 0)

	return &Service{
		passwordHash: hash,
		secret:       []byte(secret),
		tokenTTL:     ttl,
		now:          time.Now,
		signer:       jwa.HS256,
		validator: TokenValidator{
			Issuer:    issuer,
			Audience:  audience,
			Subject:   adminSubject,
			ClockSkew: clockSkew,
			Algorithm: jwa.HS256,
		},
		issuer:    issuer,
		audience:  audience,
		clockSkew: clockSkew,
	}, nil
}

// WithNow allows tests to override the time provider.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Enabled reports whether admin login is possible.
func (s *Service) Enabled() bool {
	return s != nil && s.passwordHash != ""
}

// Login verifies password against the configured argon2id hash and issues an access token.
func (s *Service) Login(_ context.Context, password string) (LoginResult, error) {
	if !s.Enabled() {
		return LoginResult{}, common.NewAppError("ADMIN_DISABLED", "admin access is not configured", http.StatusServiceUnavailable, ErrAdminDisabled)
	}
	if password == "" {
		return LoginResult{}, common.InvalidInput("password is required", nil)
	}
	ok, err := argon2id.ComparePasswordAndHash(password, s.passwordHash)
	if err != nil {
		return LoginResult{}, fmt.Errorf("compare password: %w", err)
	}
	if !ok {
		return LoginResult{}, common.NewAppError("INVALID_CREDENTIALS", "invalid password", http.StatusUnauthorized, nil)
	}
	token, expiresAt, err := s.signAccessToken(adminSubject)
	if err != nil {
		return LoginResult{}, fmt.Errorf("sign token: %w", err)
	}
	return LoginResult{AccessToken: token, TokenType: "Bearer", ExpiresAt: expiresAt}, nil
}

// ParseAccessToken validates an access token and returns its subject.
func (s *Service) ParseAccessToken(token string) (string, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return "", unauthorized("missing token", nil)
	}
	algorithm, err := extractTokenAlgorithm(trimmed)
	if err != nil {
		return "", unauthorized("invalid token", err)
	}
	if algorithm != s.validator.Algorithm {
		return "", unauthorized("invalid token", fmt.Errorf("unexpected token algorithm %s", algorithm))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, s.secret), jwt.WithValidate(false))
	if err != nil {
		return "", unauthorized("invalid token", err)
	}
	if err := s.validator.Validate(parsed, algorithm, s.now()); err != nil {
		return "", unauthorized("invalid token", err)
	}
	return parsed.Subject(), nil
}

func unauthorized(message string, err error) *common.AppError {
	return common.NewAppError("UNAUTHORIZED", message, http.StatusUnauthorized, err)
}

func extractTokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) != 1 {
		return "", fmt.Errorf("auth: expected one signature, got %d", len(signatures))
	}
	headers := signatures[0].ProtectedHeaders()
	if headers == nil {
		return "", errors.New("auth: token missing protected headers")
	}
	alg := headers.Algorithm()
	switch alg {
	case "":
		return "", errors.New("auth: token missing algorithm")
	case jwa.NoSignature:
		return "", errors.New("auth: token uses none algorithm")
	}
	return alg, nil
}

func (s *Service) signAccessToken(subject string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.tokenTTL)
	token, err := jwt.NewBuilder().
		Subject(subject).
		Issuer(s.issuer).
		Audience([]string{s.audience}).
		IssuedAt(now).
		NotBefore(now.Add(-s.clockSkew)).
		Expiration(expiresAt).
		Build()
	if err != nil {
		return "", time.Time{}, err
	}
	signed, err := jwt.Sign(token, jwt.WithKey(s.signer, s.secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return string(signed), expiresAt, nil
}
