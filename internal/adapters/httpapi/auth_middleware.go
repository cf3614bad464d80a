package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Overland-East-Bay/address-book-api/internal/app/apperr"
	"github.com/Overland-East-Bay/address-book-api/internal/platform/auth/token"
	"github.com/Overland-East-Bay/address-book-api/internal/platform/logging"
	"github.com/Overland-East-Bay/address-book-api/internal/platform/metrics"
	"github.com/Overland-East-Bay/address-book-api/internal/ports/out/revocation"
)

// Authenticator verifies the raw Authorization header value.
type Authenticator interface {
	Authenticate(rawHeader string) (token.SessionClaims, error)
}

var errTokenRevoked = &apperr.Error{Kind: apperr.KindUnauthorized, Code: "TOKEN_REVOKED", Message: "token has been revoked"}

// NewAuthMiddleware enforces Authorization: Bearer <token> on the routes it wraps.
//
// On success the verified claims are stored in the request context. revoked,
// m and log may be nil.
func NewAuthMiddleware(tokens Authenticator, revoked revocation.Store, m *metrics.Metrics, log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logging.Discard()
	}
	record := func(outcome string) {
		if m != nil {
			m.RecordAuth(outcome)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := tokens.Authenticate(r.Header.Get("Authorization"))
			if err != nil {
				switch {
				case errors.Is(err, token.ErrMissingToken):
					record(metrics.OutcomeMissingToken)
				case errors.Is(err, token.ErrExpired):
					record(metrics.OutcomeExpired)
				default:
					record(metrics.OutcomeInvalidSignature)
				}
				writeAppError(w, r, log, err)
				return
			}

			if revoked != nil {
				gone, err := revoked.IsRevoked(r.Context(), claims.TokenID)
				if err != nil {
					writeAppError(w, r, log, apperr.Storage(err))
					return
				}
				if gone {
					record(metrics.OutcomeRevoked)
					writeAppError(w, r, log, errTokenRevoked)
					return
				}
			}

			record(metrics.OutcomeOK)
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}
