package token

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memclock "github.com/Overland-East-Bay/address-book-api/internal/adapters/memory/clock"
	"github.com/Overland-East-Bay/address-book-api/internal/app/apperr"
	"github.com/Overland-East-Bay/address-book-api/internal/domain"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newManager(t *testing.T, secret string, ttl time.Duration) (*Manager, *memclock.ManualClock) {
	t.Helper()
	clk := memclock.NewManualClock(t0)
	m, err := New(Config{Secret: []byte(secret), TTL: ttl, Issuer: "address-book-test"}, clk)
	require.NoError(t, err)
	return m, clk
}

func TestNew_RequiresSecret(t *testing.T) {
	t.Parallel()

	_, err := New(Config{TTL: time.Hour}, memclock.NewManualClock(t0))
	require.Error(t, err)
	assert.Equal(t, apperr.KindConfig, apperr.KindOf(err))
}

func TestIssueThenAuthenticate_RoundTrip(t *testing.T) {
	t.Parallel()

	m, clk := newManager(t, "s3cret", 10*time.Minute)
	tok, err := m.Issue(IdentityClaims{SubjectID: 42, Email: "ann@test.com", Name: "Ann Lee"})
	require.NoError(t, err)
	assert.Equal(t, t0, tok.Claims.IssuedAt)
	assert.Equal(t, t0.Add(10*time.Minute), tok.Claims.ExpiresAt)
	assert.NotEmpty(t, tok.Claims.TokenID)

	clk.Advance(10*time.Minute - time.Second)
	got, err := m.Authenticate("Bearer " + tok.Value)
	require.NoError(t, err)
	assert.Equal(t, domain.UserID(42), got.SubjectID)
	assert.Equal(t, "ann@test.com", got.Email)
	assert.Equal(t, "Ann Lee", got.Name)
	assert.Equal(t, tok.Claims.TokenID, got.TokenID)
	assert.Equal(t, tok.Claims.ExpiresAt, got.ExpiresAt)
}

func TestAuthenticate_ExpiredAfterTTL(t *testing.T) {
	t.Parallel()

	m, clk := newManager(t, "s3cret", time.Minute)
	tok, err := m.Issue(IdentityClaims{SubjectID: 1, Email: "a@b.co", Name: "Abe"})
	require.NoError(t, err)

	clk.Advance(time.Minute)
	_, err = m.Authenticate("Bearer " + tok.Value)
	assert.ErrorIs(t, err, ErrExpired)
	assert.Equal(t, apperr.KindExpired, apperr.KindOf(err))
}

func TestAuthenticate_ExpiredOneSecondAgo(t *testing.T) {
	t.Parallel()

	m, _ := newManager(t, "s3cret", time.Hour)
	tok, err := m.sign(IdentityClaims{SubjectID: 9, Email: "x@y.io", Name: "Xavier"}, t0.Add(-time.Hour), t0.Add(-time.Second))
	require.NoError(t, err)

	_, err = m.Parse(tok.Value)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestAuthenticate_WrongSecret(t *testing.T) {
	t.Parallel()

	issuer, _ := newManager(t, "secret-a", time.Hour)
	verifier, _ := newManager(t, "secret-b", time.Hour)

	for _, sub := range []domain.UserID{1, 2, 1 << 40} {
		tok, err := issuer.Issue(IdentityClaims{SubjectID: sub, Email: "e@x.io", Name: "Eve"})
		require.NoError(t, err)
		_, err = verifier.Authenticate("Bearer " + tok.Value)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	}
}

func TestAuthenticate_WrongSecretAndExpiredReportsSignature(t *testing.T) {
	t.Parallel()

	issuer, _ := newManager(t, "secret-a", time.Hour)
	verifier, _ := newManager(t, "secret-b", time.Hour)
	tok, err := issuer.sign(IdentityClaims{SubjectID: 3, Email: "e@x.io", Name: "Eve"}, t0.Add(-2*time.Hour), t0.Add(-time.Hour))
	require.NoError(t, err)

	_, err = verifier.Parse(tok.Value)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestAuthenticate_MissingOrMalformedHeader(t *testing.T) {
	t.Parallel()

	m, _ := newManager(t, "s3cret", time.Hour)
	for _, h := range []string{"", "Bearer", "Bearer   ", "Basic abc", "bearer abc", "Token abc"} {
		_, err := m.Authenticate(h)
		assert.ErrorIs(t, err, ErrMissingToken, "header %q", h)
	}
}

func TestAuthenticate_CorruptedToken(t *testing.T) {
	t.Parallel()

	m, _ := newManager(t, "s3cret", time.Hour)
	tok, err := m.Issue(IdentityClaims{SubjectID: 5, Email: "c@d.io", Name: "Cid"})
	require.NoError(t, err)

	parts := strings.Split(tok.Value, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	for _, raw := range []string{"not-a-jwt", tampered, tok.Value + "AA"} {
		_, err := m.Parse(raw)
		assert.ErrorIs(t, err, ErrInvalidSignature, "token %q", raw)
	}
}

func TestParse_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	m, _ := newManager(t, "s3cret", time.Hour)
	claims := jwt.MapClaims{
		"sub": "1",
		"iss": "address-book-test",
		"exp": t0.Add(time.Hour).Unix(),
	}
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	for _, raw := range []string{none, hs512} {
		_, err := m.Parse(raw)
		assert.True(t, errors.Is(err, ErrInvalidSignature), "err=%v", err)
	}
}

func TestParse_RejectsNonNumericSubject(t *testing.T) {
	t.Parallel()

	m, _ := newManager(t, "s3cret", time.Hour)
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "dev|alice",
		"iss": "address-book-test",
		"exp": t0.Add(time.Hour).Unix(),
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	_, err = m.Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestParse_RequiresTokenID(t *testing.T) {
	t.Parallel()

	m, _ := newManager(t, "s3cret", time.Hour)
	claims := jwt.MapClaims{
		"sub":   "1",
		"iss":   "address-book-test",
		"exp":   t0.Add(time.Hour).Unix(),
		"email": "ann@test.com",
		"name":  "Ann Lee",
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s3cret"))
	require.NoError(t, err)
	_, err = m.Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	claims["jti"] = "jti-1"
	raw, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s3cret"))
	require.NoError(t, err)
	got, err := m.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "jti-1", got.TokenID)
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	raw, ok := BearerToken("Bearer abc.def.ghi")
	assert.True(t, ok)
	assert.Equal(t, "abc.def.ghi", raw)
}
