package itest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Overland-East-Bay/address-book-api/internal/adapters/httpapi"
	memaddressrepo "github.com/Overland-East-Bay/address-book-api/internal/adapters/memory/addressrepo"
	memclock "github.com/Overland-East-Bay/address-book-api/internal/adapters/memory/clock"
	memidempotency "github.com/Overland-East-Bay/address-book-api/internal/adapters/memory/idempotency"
	memuserrepo "github.com/Overland-East-Bay/address-book-api/internal/adapters/memory/userrepo"
	pgaddressrepo "github.com/Overland-East-Bay/address-book-api/internal/adapters/postgres/addressrepo"
	pgidempotency "github.com/Overland-East-Bay/address-book-api/internal/adapters/postgres/idempotency"
	postgres_testutil "github.com/Overland-East-Bay/address-book-api/internal/adapters/postgres/testutil"
	pguserrepo "github.com/Overland-East-Bay/address-book-api/internal/adapters/postgres/userrepo"
	"github.com/Overland-East-Bay/address-book-api/internal/app/accounts"
	"github.com/Overland-East-Bay/address-book-api/internal/app/addresses"
	"github.com/Overland-East-Bay/address-book-api/internal/domain"
	"github.com/Overland-East-Bay/address-book-api/internal/platform/auth/bcrypthasher"
	"github.com/Overland-East-Bay/address-book-api/internal/platform/auth/token"
	"github.com/Overland-East-Bay/address-book-api/internal/platform/metrics"
	addressrepoport "github.com/Overland-East-Bay/address-book-api/internal/ports/out/addressrepo"
	idempotencyport "github.com/Overland-East-Bay/address-book-api/internal/ports/out/idempotency"
	userrepoport "github.com/Overland-East-Bay/address-book-api/internal/ports/out/userrepo"
)

type backend string

const (
	backendMemory   backend = "memory"
	backendPostgres backend = "postgres"
)

const itestSecret = "itest-secret"

func backendsFromEnv(t *testing.T) []backend {
	t.Helper()
	switch strings.ToLower(strings.TrimSpace(os.Getenv("ITEST_BACKEND"))) {
	case "", "memory":
		return []backend{backendMemory}
	case "postgres":
		return []backend{backendPostgres}
	case "all":
		return []backend{backendMemory, backendPostgres}
	default:
		t.Fatalf("unknown ITEST_BACKEND value (expected memory|postgres|all)")
		return nil
	}
}

type testServer struct {
	baseURL string
	client  *http.Client
	clk     *memclock.ManualClock
}

func newTestServer(t *testing.T, b backend) *testServer {
	t.Helper()

	clk := memclock.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	var (
		userRepo  userrepoport.Repository
		addrRepo  addressrepoport.Repository
		idemStore idempotencyport.Store
	)

	switch b {
	case backendPostgres:
		pool := postgres_testutil.OpenMigratedPool(t)
		userRepo = pguserrepo.NewRepo(pool)
		addrRepo = pgaddressrepo.NewRepo(pool)
		idemStore = pgidempotency.NewStore(pool, time.Hour, clk)
	case backendMemory:
		users := memuserrepo.NewRepo()
		userRepo = users
		addrRepo = memaddressrepo.NewRepo(users)
		idemStore = memidempotency.NewStore(time.Hour, clk)
	default:
		t.Fatalf("unknown backend: %s", b)
	}

	hasher, err := bcrypthasher.New(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypthasher.New: %v", err)
	}
	tokens, err := token.New(token.Config{Secret: []byte(itestSecret), TTL: time.Hour, Issuer: "itest"}, clk)
	if err != nil {
		t.Fatalf("token.New: %v", err)
	}

	handler := httpapi.NewRouter(httpapi.RouterOptions{
		Accounts:  accounts.NewService(userRepo, hasher, tokens, clk),
		Addresses: addresses.NewService(addrRepo, clk),
		Tokens:    tokens,
		Idem:      idemStore,
		Metrics:   metrics.New(),
	})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &testServer{
		baseURL: srv.URL,
		client:  srv.Client(),
		clk:     clk,
	}
}

func (s *testServer) url(path string) string {
	if strings.HasPrefix(path, "/") {
		return s.baseURL + path
	}
	return s.baseURL + "/" + path
}

func (s *testServer) doJSON(t *testing.T, method string, path string, bearer string, body any) (int, []byte, http.Header) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.url(path), r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out, resp.Header
}

// signup registers and logs in, returning the user id and token.
func (s *testServer) signup(t *testing.T, name, email, password string) (int64, string) {
	t.Helper()

	status, body, _ := s.doJSON(t, http.MethodPost, "/user/register", "", map[string]string{
		"name": name, "email": email, "password": password,
	})
	if status != http.StatusCreated {
		t.Fatalf("register status=%d body=%s", status, string(body))
	}
	status, body, _ = s.doJSON(t, http.MethodPost, "/user/login", "", map[string]string{
		"email": email, "password": password,
	})
	if status != http.StatusOK {
		t.Fatalf("login status=%d body=%s", status, string(body))
	}
	lr := mustUnmarshal[loginResponse](t, body)
	return lr.User.ID, lr.AccessToken
}

type userBody struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type loginResponse struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
	User        userBody  `json:"user"`
}

type addressBody struct {
	ID          int64  `json:"id"`
	OwnerID     int64  `json:"ownerId"`
	OwnerName   string `json:"ownerName"`
	Title       string `json:"title"`
	Country     string `json:"country"`
	FullAddress string `json:"fullAddress"`
	PostalCode  string `json:"postalCode"`
}

type addressResponse struct {
	Message string      `json:"message"`
	Address addressBody `json:"address"`
}

type errorResponse struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"requestId"`
	} `json:"error"`
}

func mustUnmarshal[T any](t *testing.T, b []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v\nbody=%s", err, string(b))
	}
	return out
}

func requireErrorCode(t *testing.T, status int, body []byte, wantStatus int, wantCode string) {
	t.Helper()
	if status != wantStatus {
		t.Fatalf("status=%d want=%d body=%s", status, wantStatus, string(body))
	}
	got := mustUnmarshal[errorResponse](t, body)
	if got.Error.Code != wantCode {
		t.Fatalf("error.code=%q want=%q body=%s", got.Error.Code, wantCode, string(body))
	}
}

func requireHeaderPresent(t *testing.T, h http.Header, key string) {
	t.Helper()
	if strings.TrimSpace(h.Get(key)) == "" {
		t.Fatalf("expected header %q to be present", key)
	}
}

func jsonReader(t *testing.T, v any) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return bytes.NewReader(b)
}

func readAll(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return b
}

func domainID(id int64) domain.UserID { return domain.UserID(id) }
