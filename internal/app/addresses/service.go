package addresses

import (
	"context"
	"errors"

	"github.com/Overland-East-Bay/address-book-api/internal/app/apperr"
	"github.com/Overland-East-Bay/address-book-api/internal/app/authz"
	"github.com/Overland-East-Bay/address-book-api/internal/domain"
	"github.com/Overland-East-Bay/address-book-api/internal/platform/validation"
	"github.com/Overland-East-Bay/address-book-api/internal/ports/out/addressrepo"
	clockport "github.com/Overland-East-Bay/address-book-api/internal/ports/out/clock"
)

const (
	MsgCreated = "Address was created successfully."
	MsgUpdated = "Address was updated successfully."
	MsgDeleted = "Address was deleted successfully."
)

var ErrAddressNotFound = apperr.NotFound("No such address")

// Service manages addresses. Reads are public; writes require the caller to
// be the recorded owner.
type Service struct {
	repo addressrepo.Repository
	clk  clockport.Clock
	v    *validation.Validator
}

func NewService(repo addressrepo.Repository, clk clockport.Clock) *Service {
	return &Service{repo: repo, clk: clk, v: validation.New()}
}

func (s *Service) Create(ctx context.Context, owner domain.UserID, in Input) (domain.Address, error) {
	if owner == 0 {
		return domain.Address{}, apperr.Unauthorized("authentication required")
	}
	f, err := s.validate(in)
	if err != nil {
		return domain.Address{}, err
	}
	a, err := s.repo.Create(ctx, addressrepo.NewAddress{
		OwnerID:   owner,
		Fields:    f,
		CreatedAt: s.clk.Now(),
	})
	if err != nil {
		return domain.Address{}, apperr.Storage(err)
	}
	return a, nil
}

func (s *Service) List(ctx context.Context, p ListParams) ([]domain.AddressView, error) {
	out, err := s.repo.List(ctx, addressrepo.Filter{Search: domain.NormalizeText(p.Search)})
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id domain.AddressID) (domain.AddressView, error) {
	v, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, addressrepo.ErrNotFound) {
			return domain.AddressView{}, ErrAddressNotFound
		}
		return domain.AddressView{}, apperr.Storage(err)
	}
	return v, nil
}

// Update replaces the address fields. Order of checks: existence, ownership,
// then input validation, all inside the repository's atomic section.
func (s *Service) Update(ctx context.Context, subject domain.UserID, id domain.AddressID, in Input) (domain.Address, error) {
	if subject == 0 {
		return domain.Address{}, apperr.Unauthorized("authentication required")
	}
	a, err := s.repo.Update(ctx, id, s.clk.Now(), func(cur domain.Address) (addressrepo.Fields, error) {
		if err := authz.Authorize(subject, cur.OwnerID); err != nil {
			return addressrepo.Fields{}, err
		}
		return s.validate(in)
	})
	if err != nil {
		return domain.Address{}, mapWriteError(err)
	}
	return a, nil
}

func (s *Service) Delete(ctx context.Context, subject domain.UserID, id domain.AddressID) error {
	if subject == 0 {
		return apperr.Unauthorized("authentication required")
	}
	err := s.repo.Delete(ctx, id, func(cur domain.Address) error {
		return authz.Authorize(subject, cur.OwnerID)
	})
	if err != nil {
		return mapWriteError(err)
	}
	return nil
}

func (s *Service) validate(in Input) (addressrepo.Fields, error) {
	f := fields{
		Title:       domain.NormalizeText(in.Title),
		Country:     domain.NormalizeText(in.Country),
		FullAddress: domain.NormalizeText(in.FullAddress),
		PostalCode:  domain.NormalizeText(in.PostalCode),
	}
	bad, err := s.v.Struct(f)
	if err != nil {
		return addressrepo.Fields{}, err
	}
	if len(bad) > 0 {
		return addressrepo.Fields{}, apperr.Validation("invalid address", bad)
	}
	return addressrepo.Fields{
		Title:       f.Title,
		Country:     f.Country,
		FullAddress: f.FullAddress,
		PostalCode:  f.PostalCode,
	}, nil
}

func mapWriteError(err error) error {
	if errors.Is(err, addressrepo.ErrNotFound) {
		return ErrAddressNotFound
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae
	}
	return apperr.Storage(err)
}
