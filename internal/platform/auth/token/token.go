package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Overland-East-Bay/address-book-api/internal/app/apperr"
	"github.com/Overland-East-Bay/address-book-api/internal/domain"
	clockport "github.com/Overland-East-Bay/address-book-api/internal/ports/out/clock"
)

var (
	// ErrMissingSecret is returned by New when no signing secret is configured.
	ErrMissingSecret = &apperr.Error{Kind: apperr.KindConfig, Code: "CONFIG_ERROR", Message: "token signing secret is not configured"}

	ErrMissingToken     = &apperr.Error{Kind: apperr.KindMissingToken, Code: "UNAUTHORIZED", Message: "missing or malformed bearer token"}
	ErrInvalidSignature = &apperr.Error{Kind: apperr.KindInvalidSignature, Code: "UNAUTHORIZED", Message: "invalid token"}
	ErrExpired          = &apperr.Error{Kind: apperr.KindExpired, Code: "TOKEN_EXPIRED", Message: "token expired"}
)

const bearerPrefix = "Bearer "

// DefaultTTL matches the lifetime used when TOKEN_EXPIRES_IN is unset.
const DefaultTTL = time.Hour

// Config holds the process-wide signing material. It is built once at startup.
type Config struct {
	Secret []byte
	TTL    time.Duration
	Issuer string
}

// IdentityClaims is the caller-supplied part of a token. Timestamps and the
// token id are always computed by the Manager.
type IdentityClaims struct {
	SubjectID domain.UserID
	Email     string
	Name      string
}

// SessionClaims are the verified contents of a token.
type SessionClaims struct {
	SubjectID domain.UserID
	Email     string
	Name      string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Token is a freshly issued credential.
type Token struct {
	Value  string
	Claims SessionClaims
}

type jwtClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// Manager issues and verifies HS256 tokens. It holds no mutable state and is
// safe for concurrent use.
type Manager struct {
	secret []byte
	ttl    time.Duration
	issuer string
	clk    clockport.Clock
	parser *jwt.Parser

	newTokenID func() string
}

func New(cfg Config, clk clockport.Clock) (*Manager, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrMissingSecret
	}
	if clk == nil {
		return nil, errors.New("token: nil clock")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(clk.Now),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	return &Manager{
		secret:     secret,
		ttl:        ttl,
		issuer:     cfg.Issuer,
		clk:        clk,
		parser:     jwt.NewParser(opts...),
		newTokenID: uuid.NewString,
	}, nil
}

func (m *Manager) TTL() time.Duration { return m.ttl }

// Issue signs claims with iat=now and exp=now+TTL.
func (m *Manager) Issue(id IdentityClaims) (Token, error) {
	now := m.clk.Now().Truncate(time.Second)
	exp := now.Add(m.ttl)
	return m.sign(id, now, exp)
}

func (m *Manager) sign(id IdentityClaims, iat, exp time.Time) (Token, error) {
	claims := jwtClaims{
		Email: id.Email,
		Name:  id.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        m.newTokenID(),
			Subject:   id.SubjectID.String(),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return Token{}, err
	}
	return Token{
		Value: signed,
		Claims: SessionClaims{
			SubjectID: id.SubjectID,
			Email:     id.Email,
			Name:      id.Name,
			TokenID:   claims.ID,
			IssuedAt:  iat.UTC(),
			ExpiresAt: exp.UTC(),
		},
	}, nil
}

// Authenticate extracts a bearer token from an Authorization header value and verifies it.
func (m *Manager) Authenticate(rawHeader string) (SessionClaims, error) {
	raw, ok := BearerToken(rawHeader)
	if !ok {
		return SessionClaims{}, ErrMissingToken
	}
	return m.Parse(raw)
}

// Parse verifies signature, algorithm, issuer and expiry of a compact token.
// The signature is checked before any claim, so a forged expired token reports
// ErrInvalidSignature.
func (m *Manager) Parse(raw string) (SessionClaims, error) {
	var claims jwtClaims
	_, err := m.parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return SessionClaims{}, ErrExpired
		}
		return SessionClaims{}, ErrInvalidSignature
	}

	// Every issued token carries a jti; logout revokes by it.
	sub, ok := domain.ParseUserID(claims.Subject)
	if !ok || claims.ExpiresAt == nil || claims.ID == "" {
		return SessionClaims{}, ErrInvalidSignature
	}
	out := SessionClaims{
		SubjectID: sub,
		Email:     claims.Email,
		Name:      claims.Name,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.UTC(),
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.UTC()
	}
	return out, nil
}

// BearerToken returns the token part of "Bearer <token>". The scheme match is exact.
func BearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	if raw == "" {
		return "", false
	}
	return raw, true
}
