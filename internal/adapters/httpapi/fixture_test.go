package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	memaddressrepo "github.com/Overland-East-Bay/address-book-api/internal/adapters/memory/addressrepo"
	memclock "github.com/Overland-East-Bay/address-book-api/internal/adapters/memory/clock"
	memidempotency "github.com/Overland-East-Bay/address-book-api/internal/adapters/memory/idempotency"
	memrevocation "github.com/Overland-East-Bay/address-book-api/internal/adapters/memory/revocation"
	memuserrepo "github.com/Overland-East-Bay/address-book-api/internal/adapters/memory/userrepo"
	"github.com/Overland-East-Bay/address-book-api/internal/app/accounts"
	"github.com/Overland-East-Bay/address-book-api/internal/app/addresses"
	"github.com/Overland-East-Bay/address-book-api/internal/domain"
	"github.com/Overland-East-Bay/address-book-api/internal/platform/auth/bcrypthasher"
	"github.com/Overland-East-Bay/address-book-api/internal/platform/auth/token"
	"github.com/Overland-East-Bay/address-book-api/internal/platform/metrics"
)

const testSecret = "router-test-secret"

type apiFixture struct {
	h       http.Handler
	clk     *memclock.ManualClock
	tokens  *token.Manager
	metrics *metrics.Metrics
}

type fixtureOptions struct {
	revocation bool
	rateLimit  rate.Limit
	rateBurst  int
	trustProxy bool
}

func newAPIFixture(t *testing.T, opts fixtureOptions) *apiFixture {
	t.Helper()

	clk := memclock.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	users := memuserrepo.NewRepo()
	addrs := memaddressrepo.NewRepo(users)
	hasher, err := bcrypthasher.New(bcrypt.MinCost)
	require.NoError(t, err)
	tokens, err := token.New(token.Config{Secret: []byte(testSecret), TTL: time.Hour, Issuer: "test"}, clk)
	require.NoError(t, err)

	acct := accounts.NewService(users, hasher, tokens, clk)
	ro := RouterOptions{
		Accounts:      acct,
		Addresses:     addresses.NewService(addrs, clk),
		Tokens:        tokens,
		Idem:          memidempotency.NewStore(time.Hour, clk),
		Metrics:       metrics.New(),
		AuthRateLimit: opts.rateLimit,
		AuthRateBurst: opts.rateBurst,
		TrustProxy:    opts.trustProxy,
	}
	if opts.revocation {
		store := memrevocation.NewStore(1000, 2*time.Hour, clk)
		acct.WithRevocation(store)
		ro.Revoked = store
	}

	return &apiFixture{
		h:       NewRouter(ro),
		clk:     clk,
		tokens:  tokens,
		metrics: ro.Metrics,
	}
}

type testResponse struct {
	status int
	body   []byte
	header http.Header
}

func (f *apiFixture) do(t *testing.T, method, path, bearer string, body any, headers ...string) testResponse {
	t.Helper()

	var r io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			r = bytes.NewBufferString(b)
		default:
			raw, err := json.Marshal(b)
			require.NoError(t, err)
			r = bytes.NewReader(raw)
		}
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)
	return testResponse{status: rec.Code, body: rec.Body.Bytes(), header: rec.Header()}
}

// signup registers a user and returns its id and a fresh access token.
func (f *apiFixture) signup(t *testing.T, name, email string) (domain.UserID, string) {
	t.Helper()

	res := f.do(t, http.MethodPost, "/user/register", "", map[string]string{
		"name": name, "email": email, "password": "secret123",
	})
	require.Equal(t, http.StatusCreated, res.status, string(res.body))

	res = f.do(t, http.MethodPost, "/user/login", "", map[string]string{
		"email": email, "password": "secret123",
	})
	require.Equal(t, http.StatusOK, res.status, string(res.body))
	lr := decodeBody[loginResponse](t, res.body)
	return domain.UserID(lr.User.ID), lr.AccessToken
}

func decodeBody[T any](t *testing.T, b []byte) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(b, &out), "body=%s", string(b))
	return out
}

type errorEnvelope struct {
	Error struct {
		Code      string         `json:"code"`
		Message   string         `json:"message"`
		Details   map[string]any `json:"details"`
		RequestID string         `json:"requestId"`
	} `json:"error"`
}

func requireError(t *testing.T, res testResponse, wantStatus int, wantCode string) errorEnvelope {
	t.Helper()
	require.Equal(t, wantStatus, res.status, "body=%s", string(res.body))
	env := decodeBody[errorEnvelope](t, res.body)
	require.Equal(t, wantCode, env.Error.Code, "body=%s", string(res.body))
	return env
}
