package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/Overland-East-Bay/address-book-api/internal/app/accounts"
	"github.com/Overland-East-Bay/address-book-api/internal/app/addresses"
	"github.com/Overland-East-Bay/address-book-api/internal/platform/logging"
	"github.com/Overland-East-Bay/address-book-api/internal/platform/metrics"
	"github.com/Overland-East-Bay/address-book-api/internal/ports/out/idempotency"
	"github.com/Overland-East-Bay/address-book-api/internal/ports/out/revocation"
)

type RouterOptions struct {
	Accounts  *accounts.Service
	Addresses *addresses.Service
	Tokens    Authenticator

	// Optional collaborators; nil disables the feature.
	Revoked revocation.Store
	Idem    idempotency.Store
	Metrics *metrics.Metrics
	Logger  *slog.Logger

	// TrustProxy rewrites RemoteAddr from X-Forwarded-For / X-Real-IP. Leave it
	// off unless a proxy in front overwrites those headers; otherwise any
	// caller picks its own rate-limit bucket.
	TrustProxy bool

	// AuthRateLimit applies per client IP to /user/register and /user/login.
	// Zero disables limiting.
	AuthRateLimit rate.Limit
	AuthRateBurst int
}

// NewRouter constructs the API HTTP router.
//
// Reads of addresses are public. Everything under the bearer group requires a
// valid, unexpired, unrevoked token.
func NewRouter(opts RouterOptions) http.Handler {
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	s := NewServer(opts.Accounts, opts.Addresses, opts.Idem, log, opts.Metrics)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if opts.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(requestLogger(log, opts.Metrics))
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
	})

	// Infra endpoints.
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	bearer := NewAuthMiddleware(opts.Tokens, opts.Revoked, opts.Metrics, log)

	r.Route("/user", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if opts.AuthRateLimit > 0 {
				r.Use(NewRateLimiter(opts.AuthRateLimit, opts.AuthRateBurst, opts.Metrics).Middleware)
			}
			r.Post("/register", s.Register)
			r.Post("/login", s.Login)
		})
		r.Group(func(r chi.Router) {
			r.Use(bearer)
			r.Get("/auth", s.AuthInfo)
			r.Get("/me", s.Me)
			r.Post("/profile", s.UpdateProfile)
			r.Patch("/profile", s.UpdateProfile)
			r.Post("/logout", s.Logout)
		})
	})

	r.Route("/address", func(r chi.Router) {
		r.Get("/", s.ListAddresses)
		r.Get("/{id}", s.GetAddress)
		r.Group(func(r chi.Router) {
			r.Use(bearer)
			r.Post("/", s.CreateAddress)
			r.Put("/{id}", s.UpdateAddress)
			r.Delete("/{id}", s.DeleteAddress)
		})
	})

	return r
}
