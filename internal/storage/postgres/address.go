package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/sqshop/internal/domain/address"
)

const addressColumns = `id, user_id, street_address, apartment_address, country, address_type, is_default`

var _ address.Repository = (*AddressRepository)(nil)

// AddressRepository implements address.Repository backed by PostgreSQL.
type AddressRepository struct {
	db *DB
}

// NewAddressRepository returns an AddressRepository on db.
func NewAddressRepository(db *DB) *AddressRepository {
	return &AddressRepository{db: db}
}

// Save upserts a. A default address clears the default flag of the user's
// other addresses of the same type in the same transaction.
func (r *AddressRepository) Save(ctx context.Context, a *address.Address) error {
	return r.db.WithinTx(ctx, func(ctx context.Context) error {
		q := r.db.conn(ctx)
		if a.Default {
			if _, err := q.Exec(ctx, `UPDATE addresses SET is_default = FALSE
				WHERE user_id = $1 AND address_type = $2 AND id <> $3 AND is_default`,
				a.UserID, a.Type, a.ID); err != nil {
				return fmt.Errorf("clearing default addresses: %w", err)
			}
		}
		tag, err := q.Exec(ctx, `INSERT INTO addresses (`+addressColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET
				street_address = EXCLUDED.street_address,
				apartment_address = EXCLUDED.apartment_address,
				country = EXCLUDED.country,
				address_type = EXCLUDED.address_type,
				is_default = EXCLUDED.is_default
			WHERE addresses.user_id = EXCLUDED.user_id`,
			a.ID, a.UserID, a.Street, a.Apartment, a.Country, a.Type, a.Default)
		if err != nil {
			return fmt.Errorf("saving address %q: %w", a.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return address.ErrNotFound
		}
		return nil
	})
}

// Get returns one address of userID.
func (r *AddressRepository) Get(ctx context.Context, userID, id string) (*address.Address, error) {
	row := r.db.conn(ctx).QueryRow(ctx,
		`SELECT `+addressColumns+` FROM addresses WHERE id = $1 AND user_id = $2`, id, userID)
	a, err := scanAddress(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, address.ErrNotFound
		}
		return nil, fmt.Errorf("getting address %q: %w", id, err)
	}
	return &a, nil
}

// List returns the addresses of userID, defaults first.
func (r *AddressRepository) List(ctx context.Context, userID string) ([]address.Address, error) {
	rows, err := r.db.conn(ctx).Query(ctx, `SELECT `+addressColumns+` FROM addresses
		WHERE user_id = $1 ORDER BY is_default DESC, address_type, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing addresses: %w", err)
	}
	addrs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (address.Address, error) {
		return scanAddress(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scanning addresses: %w", err)
	}
	return addrs, nil
}

// Delete removes one address of userID.
func (r *AddressRepository) Delete(ctx context.Context, userID, id string) error {
	tag, err := r.db.conn(ctx).Exec(ctx, `DELETE FROM addresses WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting address %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return address.ErrNotFound
	}
	return nil
}

func scanAddress(row pgx.Row) (address.Address, error) {
	var a address.Address
	err := row.Scan(&a.ID, &a.UserID, &a.Street, &a.Apartment, &a.Country, &a.Type, &a.Default)
	return a, err
}
