package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Overland-East-Bay/address-book-api/internal/app/apperr"
	"github.com/Overland-East-Bay/address-book-api/internal/domain"
	"github.com/Overland-East-Bay/address-book-api/internal/platform/auth/token"
	"github.com/Overland-East-Bay/address-book-api/internal/platform/validation"
	clockport "github.com/Overland-East-Bay/address-book-api/internal/ports/out/clock"
	"github.com/Overland-East-Bay/address-book-api/internal/ports/out/password"
	"github.com/Overland-East-Bay/address-book-api/internal/ports/out/revocation"
	"github.com/Overland-East-Bay/address-book-api/internal/ports/out/userrepo"
)

// TokenIssuer mints session tokens for verified identities.
type TokenIssuer interface {
	Issue(id token.IdentityClaims) (token.Token, error)
}

type Service struct {
	users  userrepo.Repository
	hasher password.Hasher
	tokens TokenIssuer
	clk    clockport.Clock
	v      *validation.Validator

	// revoked is nil when server-side logout is disabled.
	revoked revocation.Store

	dummyOnce sync.Once
	dummyHash string
}

func NewService(users userrepo.Repository, hasher password.Hasher, tokens TokenIssuer, clk clockport.Clock) *Service {
	return &Service{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		clk:    clk,
		v:      validation.New(),
	}
}

// WithRevocation enables Logout to record token ids in store.
func (s *Service) WithRevocation(store revocation.Store) *Service {
	s.revoked = store
	return s
}

func (s *Service) RevocationEnabled() bool { return s.revoked != nil }

func (s *Service) Register(ctx context.Context, in RegisterInput) (RegisterResult, error) {
	f := registerFields{
		Name:     domain.NormalizeHumanName(in.Name),
		Email:    domain.NormalizeEmail(in.Email),
		Password: strings.TrimSpace(in.Password),
	}
	if err := s.validate(f); err != nil {
		return RegisterResult{}, err
	}

	// Fast path only; the repository's unique constraint is authoritative.
	if _, err := s.users.GetByEmail(ctx, f.Email); err == nil {
		return RegisterResult{}, ErrEmailTaken
	} else if !errors.Is(err, userrepo.ErrNotFound) {
		return RegisterResult{}, apperr.Storage(err)
	}

	hash, err := s.hasher.Hash(f.Password)
	if err != nil {
		return RegisterResult{}, apperr.Storage(err)
	}

	u, err := s.users.Create(ctx, userrepo.NewUser{
		Email:        f.Email,
		Name:         f.Name,
		PasswordHash: hash,
		CreatedAt:    s.clk.Now(),
	})
	if err != nil {
		if errors.Is(err, userrepo.ErrEmailTaken) {
			return RegisterResult{}, ErrEmailTaken
		}
		return RegisterResult{}, apperr.Storage(err)
	}
	return RegisterResult{
		User:    u.Public(),
		Message: fmt.Sprintf("Email %s was registered successfully.", u.Email),
	}, nil
}

func (s *Service) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	f := loginFields{
		Email:    domain.NormalizeEmail(in.Email),
		Password: strings.TrimSpace(in.Password),
	}
	if err := s.validate(f); err != nil {
		return LoginResult{}, err
	}

	u, err := s.users.GetByEmail(ctx, f.Email)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			// Spend the same bcrypt work as a real comparison.
			_ = s.hasher.Verify(f.Password, s.dummy())
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, apperr.Storage(err)
	}
	if !s.hasher.Verify(f.Password, u.PasswordHash) {
		return LoginResult{}, ErrInvalidCredentials
	}

	tok, err := s.tokens.Issue(token.IdentityClaims{SubjectID: u.ID, Email: u.Email, Name: u.Name})
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue token: %w", err)
	}
	return LoginResult{
		AccessToken: tok.Value,
		ExpiresAt:   tok.Claims.ExpiresAt,
		User:        u.Public(),
	}, nil
}

// UpdateProfile applies the specified fields of patch to the subject's profile.
// A zero subject means the caller is not authenticated.
func (s *Service) UpdateProfile(ctx context.Context, subject domain.UserID, patch ProfilePatch) (domain.PublicUser, error) {
	if subject == 0 {
		return domain.PublicUser{}, ErrNotAuthenticated
	}

	nulls := map[string]string{}
	if patch.Name.IsNull() {
		nulls["name"] = "name cannot be null"
	}
	if patch.Email.IsNull() {
		nulls["email"] = "email cannot be null"
	}
	if len(nulls) > 0 {
		return domain.PublicUser{}, apperr.Validation("invalid profile", nulls)
	}

	var f profileFields
	if patch.Name.IsSpecified() {
		name := domain.NormalizeHumanName(patch.Name.Value())
		f.Name = &name
	}
	if patch.Email.IsSpecified() {
		email := domain.NormalizeEmail(patch.Email.Value())
		f.Email = &email
	}
	if err := s.validate(f); err != nil {
		return domain.PublicUser{}, err
	}

	u, err := s.users.UpdateProfile(ctx, subject, userrepo.ProfileChange{Name: f.Name, Email: f.Email}, s.clk.Now())
	if err != nil {
		switch {
		case errors.Is(err, userrepo.ErrNotFound):
			return domain.PublicUser{}, ErrUserNotFound
		case errors.Is(err, userrepo.ErrEmailTaken):
			return domain.PublicUser{}, ErrEmailTaken
		}
		return domain.PublicUser{}, apperr.Storage(err)
	}
	return u.Public(), nil
}

// Me returns the stored profile of subject.
func (s *Service) Me(ctx context.Context, subject domain.UserID) (domain.PublicUser, error) {
	if subject == 0 {
		return domain.PublicUser{}, ErrNotAuthenticated
	}
	u, err := s.users.GetByID(ctx, subject)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return domain.PublicUser{}, ErrUserNotFound
		}
		return domain.PublicUser{}, apperr.Storage(err)
	}
	return u.Public(), nil
}

// Logout revokes the presented token until its expiry. Without a revocation
// store it is a no-op and the token stays valid until it expires.
func (s *Service) Logout(ctx context.Context, claims token.SessionClaims) error {
	if s.revoked == nil {
		return nil
	}
	if claims.TokenID == "" {
		return ErrNotAuthenticated
	}
	if err := s.revoked.Revoke(ctx, claims.TokenID, claims.ExpiresAt); err != nil {
		return apperr.Storage(err)
	}
	return nil
}

func (s *Service) validate(f any) error {
	fields, err := s.v.Struct(f)
	if err != nil {
		return err
	}
	if len(fields) > 0 {
		return apperr.Validation("invalid input", fields)
	}
	return nil
}

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("placeholder-credential-0")
	})
	return s.dummyHash
}
