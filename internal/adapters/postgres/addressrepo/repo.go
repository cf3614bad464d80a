package addressrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	postgres "github.com/Overland-East-Bay/address-book-api/internal/adapters/postgres"
	"github.com/Overland-East-Bay/address-book-api/internal/domain"
	"github.com/Overland-East-Bay/address-book-api/internal/ports/out/addressrepo"
)

// Repo is a Postgres implementation of addressrepo.Repository.
//
// Update and Delete lock the target row (SELECT ... FOR UPDATE) inside a
// transaction, run the caller's check, then write. A concurrent writer blocks
// on the lock and re-reads the committed state.
type Repo struct {
	db postgres.DB
}

func NewRepo(db postgres.DB) *Repo {
	return &Repo{db: db}
}

const viewColumns = `
	a.id,
	a.user_id,
	a.title,
	a.country,
	a.full_address,
	a.postal_code,
	a.created_at,
	a.updated_at,
	u.name
`

func (r *Repo) Create(ctx context.Context, a addressrepo.NewAddress) (domain.Address, error) {
	if r.db == nil {
		return domain.Address{}, errors.New("nil postgres pool")
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO addresses (user_id, title, country, full_address, postal_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING id, user_id, title, country, full_address, postal_code, created_at, updated_at
	`,
		int64(a.OwnerID),
		a.Title,
		a.Country,
		a.FullAddress,
		a.PostalCode,
		a.CreatedAt.UTC(),
	)
	out, err := scanAddress(row)
	if err != nil {
		return domain.Address{}, fmt.Errorf("insert address: %w", err)
	}
	return out, nil
}

func (r *Repo) Get(ctx context.Context, id domain.AddressID) (domain.AddressView, error) {
	if r.db == nil {
		return domain.AddressView{}, errors.New("nil postgres pool")
	}
	row := r.db.QueryRow(ctx, `
		SELECT `+viewColumns+`
		FROM addresses a
		JOIN users u ON u.id = a.user_id
		WHERE a.id = $1
	`, int64(id))
	return scanView(row)
}

func (r *Repo) List(ctx context.Context, f addressrepo.Filter) ([]domain.AddressView, error) {
	if r.db == nil {
		return nil, errors.New("nil postgres pool")
	}
	// strpos keeps the search literal (no LIKE wildcards from user input).
	rows, err := r.db.Query(ctx, `
		SELECT `+viewColumns+`
		FROM addresses a
		JOIN users u ON u.id = a.user_id
		WHERE $1::text = ''
		   OR strpos(lower(a.title), lower($1)) > 0
		   OR strpos(lower(a.country), lower($1)) > 0
		   OR strpos(lower(a.full_address), lower($1)) > 0
		   OR strpos(lower(a.postal_code), lower($1)) > 0
		ORDER BY a.created_at DESC, a.id DESC
	`, f.Search)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.AddressView, 0)
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) Update(ctx context.Context, id domain.AddressID, at time.Time, fn addressrepo.UpdateFunc) (domain.Address, error) {
	if r.db == nil {
		return domain.Address{}, errors.New("nil postgres pool")
	}
	var out domain.Address
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		cur, err := lockAddress(ctx, tx, id)
		if err != nil {
			return err
		}
		next, err := fn(cur)
		if err != nil {
			return err
		}
		out, err = scanAddress(tx.QueryRow(ctx, `
			UPDATE addresses
			SET title = $2,
			    country = $3,
			    full_address = $4,
			    postal_code = $5,
			    updated_at = $6
			WHERE id = $1
			RETURNING id, user_id, title, country, full_address, postal_code, created_at, updated_at
		`,
			int64(id),
			next.Title,
			next.Country,
			next.FullAddress,
			next.PostalCode,
			at.UTC(),
		))
		return err
	})
	if err != nil {
		return domain.Address{}, err
	}
	return out, nil
}

func (r *Repo) Delete(ctx context.Context, id domain.AddressID, fn addressrepo.CheckFunc) error {
	if r.db == nil {
		return errors.New("nil postgres pool")
	}
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		cur, err := lockAddress(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(cur); err != nil {
			return err
		}
		ct, err := tx.Exec(ctx, `DELETE FROM addresses WHERE id = $1`, int64(id))
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return addressrepo.ErrNotFound
		}
		return nil
	})
}

func lockAddress(ctx context.Context, tx pgx.Tx, id domain.AddressID) (domain.Address, error) {
	return scanAddress(tx.QueryRow(ctx, `
		SELECT id, user_id, title, country, full_address, postal_code, created_at, updated_at
		FROM addresses
		WHERE id = $1
		FOR UPDATE
	`, int64(id)))
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAddress(row scanner) (domain.Address, error) {
	var (
		id, owner int64
		a         domain.Address
	)
	if err := row.Scan(&id, &owner, &a.Title, &a.Country, &a.FullAddress, &a.PostalCode, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Address{}, addressrepo.ErrNotFound
		}
		return domain.Address{}, err
	}
	a.ID = domain.AddressID(id)
	a.OwnerID = domain.UserID(owner)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return a, nil
}

func scanView(row scanner) (domain.AddressView, error) {
	var (
		id, owner int64
		v         domain.AddressView
	)
	if err := row.Scan(&id, &owner, &v.Title, &v.Country, &v.FullAddress, &v.PostalCode, &v.CreatedAt, &v.UpdatedAt, &v.OwnerName); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.AddressView{}, addressrepo.ErrNotFound
		}
		return domain.AddressView{}, err
	}
	v.ID = domain.AddressID(id)
	v.OwnerID = domain.UserID(owner)
	v.CreatedAt = v.CreatedAt.UTC()
	v.UpdatedAt = v.UpdatedAt.UTC()
	return v, nil
}
