package httpapi

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/nullable"
	"github.com/oapi-codegen/runtime"

	"github.com/Overland-East-Bay/address-book-api/internal/app/accounts"
	"github.com/Overland-East-Bay/address-book-api/internal/app/addresses"
	"github.com/Overland-East-Bay/address-book-api/internal/app/apperr"
	"github.com/Overland-East-Bay/address-book-api/internal/domain"
	"github.com/Overland-East-Bay/address-book-api/internal/platform/metrics"
	"github.com/Overland-East-Bay/address-book-api/internal/ports/out/idempotency"
)

const (
	maxBodyBytes = 1 << 20

	msgUserUpdated = "User updated"

	idempotencyKeyHeader   = "Idempotency-Key"
	idempotentReplayHeader = "Idempotent-Replayed"
	createAddressRoute     = "/address"
)

// Server holds the HTTP handlers. It only translates between JSON and the
// application services; all rules live in the services.
type Server struct {
	Accounts  *accounts.Service
	Addresses *addresses.Service
	Idem      idempotency.Store

	log     *slog.Logger
	metrics *metrics.Metrics
}

func NewServer(accountsSvc *accounts.Service, addressesSvc *addresses.Service, idem idempotency.Store, log *slog.Logger, m *metrics.Metrics) *Server {
	return &Server{
		Accounts:  accountsSvc,
		Addresses: addressesSvc,
		Idem:      idem,
		log:       log,
		metrics:   m,
	}
}

type userJSON struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type addressJSON struct {
	ID          int64     `json:"id"`
	OwnerID     int64     `json:"ownerId"`
	OwnerName   string    `json:"ownerName,omitempty"`
	Title       string    `json:"title"`
	Country     string    `json:"country"`
	FullAddress string    `json:"fullAddress"`
	PostalCode  string    `json:"postalCode"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profileRequest struct {
	Name  nullable.Nullable[string] `json:"name,omitempty"`
	Email nullable.Nullable[string] `json:"email,omitempty"`
}

type addressRequest struct {
	Title       string `json:"title"`
	Country     string `json:"country"`
	FullAddress string `json:"fullAddress"`
	PostalCode  string `json:"postalCode"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type registerResponse struct {
	Message string   `json:"message"`
	User    userJSON `json:"user"`
}

type loginResponse struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
	User        userJSON  `json:"user"`
}

type authInfoResponse struct {
	User      userJSON  `json:"user"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type userResponse struct {
	Message string   `json:"message,omitempty"`
	User    userJSON `json:"user"`
}

type addressResponse struct {
	Message string      `json:"message,omitempty"`
	Address addressJSON `json:"address"`
}

type addressListResponse struct {
	Addresses []addressJSON `json:"addresses"`
}

func (s *Server) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.Accounts.Register(r.Context(), accounts.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeAppError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, registerResponse{Message: res.Message, User: userFromDomain(res.User)})
}

func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.Accounts.Login(r.Context(), accounts.LoginInput{Email: req.Email, Password: req.Password})
	if s.metrics != nil {
		s.metrics.RecordLogin(err == nil)
	}
	if err != nil {
		writeAppError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: res.AccessToken,
		ExpiresAt:   res.ExpiresAt,
		User:        userFromDomain(res.User),
	})
}

// AuthInfo echoes the identity carried by the verified token without a storage lookup.
func (s *Server) AuthInfo(w http.ResponseWriter, r *http.Request) {
	c, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeAppError(w, r, s.log, accounts.ErrNotAuthenticated)
		return
	}
	writeJSON(w, http.StatusOK, authInfoResponse{
		User:      userJSON{ID: int64(c.SubjectID), Email: c.Email, Name: c.Name},
		ExpiresAt: c.ExpiresAt,
	})
}

func (s *Server) Me(w http.ResponseWriter, r *http.Request) {
	u, err := s.Accounts.Me(r.Context(), SubjectFromContext(r.Context()))
	if err != nil {
		writeAppError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: userFromDomain(u)})
}

func (s *Server) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if !s.decode(w, r, &req) {
		return
	}
	u, err := s.Accounts.UpdateProfile(r.Context(), SubjectFromContext(r.Context()), accounts.ProfilePatch{
		Name:  optionalStringFromNullable(req.Name),
		Email: optionalStringFromNullable(req.Email),
	})
	if err != nil {
		writeAppError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{Message: msgUserUpdated, User: userFromDomain(u)})
}

func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	c, _ := ClaimsFromContext(r.Context())
	if err := s.Accounts.Logout(r.Context(), c); err != nil {
		writeAppError(w, r, s.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) ListAddresses(w http.ResponseWriter, r *http.Request) {
	var search *string
	if err := runtime.BindQueryParameter("form", true, false, "search", r.URL.Query(), &search); err != nil {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "invalid search parameter", nil)
		return
	}
	p := addresses.ListParams{}
	if search != nil {
		p.Search = *search
	}
	views, err := s.Addresses.List(r.Context(), p)
	if err != nil {
		writeAppError(w, r, s.log, err)
		return
	}
	out := make([]addressJSON, 0, len(views))
	for _, v := range views {
		out = append(out, addressViewFromDomain(v))
	}
	writeJSON(w, http.StatusOK, addressListResponse{Addresses: out})
}

func (s *Server) GetAddress(w http.ResponseWriter, r *http.Request) {
	id, ok := s.addressID(w, r)
	if !ok {
		return
	}
	v, err := s.Addresses.Get(r.Context(), id)
	if err != nil {
		writeAppError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, addressResponse{Address: addressViewFromDomain(v)})
}

func (s *Server) CreateAddress(w http.ResponseWriter, r *http.Request) {
	sub := SubjectFromContext(r.Context())
	var req addressRequest
	if !s.decode(w, r, &req) {
		return
	}

	// Idempotency handling:
	// - Replay if same user+key+route+bodyHash
	// - Reject if same user+key+route with a different bodyHash (409)
	key := strings.TrimSpace(r.Header.Get(idempotencyKeyHeader))
	useIdem := key != "" && s.Idem != nil
	var metaFP, respFP idempotency.Fingerprint
	if useIdem {
		bodyHash, err := hashAddressBody(req)
		if err != nil {
			writeAppError(w, r, s.log, err)
			return
		}
		metaFP = idempotency.Fingerprint{
			Key:     idempotency.Key(key),
			Subject: sub,
			Method:  http.MethodPost,
			Route:   createAddressRoute,
		}
		respFP = metaFP
		respFP.BodyHash = bodyHash

		if meta, ok, err := s.Idem.Get(r.Context(), metaFP); err != nil {
			writeAppError(w, r, s.log, apperr.Storage(err))
			return
		} else if ok && string(meta.Body) != bodyHash {
			writeError(w, r, http.StatusConflict, "IDEMPOTENCY_KEY_REUSE", "idempotency key reuse with different payload", nil)
			return
		}
		if rec, ok, err := s.Idem.Get(r.Context(), respFP); err != nil {
			writeAppError(w, r, s.log, apperr.Storage(err))
			return
		} else if ok && rec.StatusCode == http.StatusCreated {
			w.Header().Set("Content-Type", rec.ContentType)
			w.Header().Set(idempotentReplayHeader, "true")
			w.WriteHeader(rec.StatusCode)
			_, _ = w.Write(rec.Body)
			return
		}
	}

	a, err := s.Addresses.Create(r.Context(), sub, addressInput(req))
	if err != nil {
		writeAppError(w, r, s.log, err)
		return
	}
	resp := addressResponse{Message: addresses.MsgCreated, Address: addressFromDomain(a)}

	if useIdem {
		// CreatedAt is stamped by the store's clock. Failing to record only
		// loses replay; the address already exists.
		if b, err := json.Marshal(resp); err == nil {
			if err := s.Idem.Put(r.Context(), metaFP, idempotency.Record{ContentType: "text/plain", Body: []byte(respFP.BodyHash)}); err != nil {
				s.log.WarnContext(r.Context(), "idempotency put failed", "err", err)
			}
			if err := s.Idem.Put(r.Context(), respFP, idempotency.Record{StatusCode: http.StatusCreated, ContentType: "application/json", Body: b}); err != nil {
				s.log.WarnContext(r.Context(), "idempotency put failed", "err", err)
			}
		}
	}

	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) UpdateAddress(w http.ResponseWriter, r *http.Request) {
	id, ok := s.addressID(w, r)
	if !ok {
		return
	}
	var req addressRequest
	if !s.decode(w, r, &req) {
		return
	}
	a, err := s.Addresses.Update(r.Context(), SubjectFromContext(r.Context()), id, addressInput(req))
	if err != nil {
		writeAppError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, addressResponse{Message: addresses.MsgUpdated, Address: addressFromDomain(a)})
}

func (s *Server) DeleteAddress(w http.ResponseWriter, r *http.Request) {
	id, ok := s.addressID(w, r)
	if !ok {
		return
	}
	if err := s.Addresses.Delete(r.Context(), SubjectFromContext(r.Context()), id); err != nil {
		writeAppError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: addresses.MsgDeleted})
}

func (s *Server) addressID(w http.ResponseWriter, r *http.Request) (domain.AddressID, bool) {
	var id int64
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
	})
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "invalid address id", map[string]any{"id": "id must be an integer"})
		return 0, false
	}
	return domain.AddressID(id), true
}

// decode reads a JSON body. An empty body decodes as the zero value so the
// services report per-field validation errors.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "request body must be valid JSON", nil)
		return false
	}
	return true
}

func userFromDomain(u domain.PublicUser) userJSON {
	return userJSON{ID: int64(u.ID), Email: u.Email, Name: u.Name}
}

func addressFromDomain(a domain.Address) addressJSON {
	return addressJSON{
		ID:          int64(a.ID),
		OwnerID:     int64(a.OwnerID),
		Title:       a.Title,
		Country:     a.Country,
		FullAddress: a.FullAddress,
		PostalCode:  a.PostalCode,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func addressViewFromDomain(v domain.AddressView) addressJSON {
	out := addressFromDomain(v.Address)
	out.OwnerName = v.OwnerName
	return out
}

func addressInput(req addressRequest) addresses.Input {
	return addresses.Input{
		Title:       req.Title,
		Country:     req.Country,
		FullAddress: req.FullAddress,
		PostalCode:  req.PostalCode,
	}
}

func optionalStringFromNullable(n nullable.Nullable[string]) accounts.Optional[string] {
	if !n.IsSpecified() {
		return accounts.Unspecified[string]()
	}
	if n.IsNull() {
		return accounts.Null[string]()
	}
	v, err := n.Get()
	if err != nil {
		return accounts.Unspecified[string]()
	}
	return accounts.Some(v)
}

func hashAddressBody(b addressRequest) (string, error) {
	canon := b
	canon.Title = domain.NormalizeText(canon.Title)
	canon.Country = domain.NormalizeText(canon.Country)
	canon.FullAddress = domain.NormalizeText(canon.FullAddress)
	canon.PostalCode = domain.NormalizeText(canon.PostalCode)
	raw, err := json.Marshal(canon)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
