package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"

	"github.com/fineahban/marketplace/internal/apperror"
	"github.com/fineahban/marketplace/internal/model"
	"github.com/fineahban/marketplace/internal/repository"
)

var _ repository.UserRepository = (*UserDB)(nil)

const userColumns = `id, email, first_name, last_name, avatar, facebook_uid, google_oauth2_uid,
	city, country, state, zip, is_admin, is_banned,
	total_sale_posts, total_swap_posts, total_need_posts, total_rent_posts, total_posts,
	created_at, updated_at`

// ResolveSocial finds or creates the user behind a social login.
//
// Resolution order, all inside one transaction:
//
//  1. By email. The row gets the fresh profile and the provider's external
//     id is attached. If the provider slot already holds a DIFFERENT id the
//     login is rejected with a conflict rather than silently relinked.
//  2. By the provider's external id. The person changed their email at the
//     provider; the row follows the new address.
//  3. Insert. ON CONFLICT (email) makes two racing first logins for the same
//     person converge on one row instead of failing one of them.
//
// Absent address fields (nil) never overwrite stored values.
func (db *UserDB) ResolveSocial(ctx context.Context, p *model.SocialProfile) (*model.User, error) {
	col := p.Provider.Column()
	if col == "" {
		return nil, apperror.ValidationFailed("provider", "invalid provider")
	}

	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	var user *model.User
	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		id, err := resolveID(ctx, tx, col, p)
		if err != nil {
			return err
		}
		user, err = getUserWhere(ctx, tx, "id = ?", id)
		if err != nil {
			return err
		}
		// A racing login may have linked a different id to this email first.
		if user.SocialID(p.Provider) != p.SocialID {
			return apperror.Conflict("user", p.Email)
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperror.Conflict("user", p.SocialID)
		}
		return nil, mapErr(ctx, "resolving social user", err)
	}

	return user, nil
}

func resolveID(ctx context.Context, tx *sqlx.Tx, col string, p *model.SocialProfile) (int64, error) {
	existing, err := getUserWhere(ctx, tx, "email = ?", p.Email)
	switch {
	case err == nil:
		if cur := existing.SocialID(p.Provider); cur != "" && cur != p.SocialID {
			return 0, apperror.Conflict("user", p.Email)
		}
		return existing.ID, updateProfile(ctx, tx, existing.ID, col, p)
	case !errors.Is(err, sql.ErrNoRows):
		return 0, err
	}

	existing, err = getUserWhere(ctx, tx, col+" = ?", p.SocialID)
	switch {
	case err == nil:
		return existing.ID, updateProfile(ctx, tx, existing.ID, col, p)
	case !errors.Is(err, sql.ErrNoRows):
		return 0, err
	}

	ts := now()
	q := tx.Rebind(fmt.Sprintf(`
		INSERT INTO users (email, first_name, last_name, avatar, %[1]s,
			city, country, state, zip, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (email) DO UPDATE SET
			first_name = excluded.first_name,
			last_name  = excluded.last_name,
			avatar     = excluded.avatar,
			%[1]s      = COALESCE(users.%[1]s, excluded.%[1]s),
			city       = COALESCE(excluded.city, users.city),
			country    = COALESCE(excluded.country, users.country),
			state      = COALESCE(excluded.state, users.state),
			zip        = COALESCE(excluded.zip, users.zip),
			updated_at = excluded.updated_at
		RETURNING id`, col))
	var id int64
	err = tx.GetContext(ctx, &id, q,
		p.Email, p.FirstName, p.LastName, p.Avatar, p.SocialID,
		p.City, p.Country, p.State, p.Zip, ts, ts,
	)
	return id, err
}

func getUserWhere(ctx context.Context, tx *sqlx.Tx, where string, arg any) (*model.User, error) {
	var u model.User
	q := tx.Rebind(`SELECT ` + userColumns + ` FROM users WHERE ` + where)
	if err := tx.GetContext(ctx, &u, q, arg); err != nil {
		return nil, err
	}
	return &u, nil
}

func updateProfile(ctx context.Context, tx *sqlx.Tx, id int64, col string, p *model.SocialProfile) error {
	q := tx.Rebind(fmt.Sprintf(`
		UPDATE users SET
			email      = ?,
			first_name = ?,
			last_name  = ?,
			avatar     = ?,
			%s         = ?,
			city       = COALESCE(?, city),
			country    = COALESCE(?, country),
			state      = COALESCE(?, state),
			zip        = COALESCE(?, zip),
			updated_at = ?
		WHERE id = ?`, col))
	_, err := tx.ExecContext(ctx, q,
		p.Email, p.FirstName, p.LastName, p.Avatar, p.SocialID,
		p.City, p.Country, p.State, p.Zip, now(), id,
	)
	return err
}

// GetBySocialID looks a user up by a provider's external id.
func (db *UserDB) GetBySocialID(ctx context.Context, provider model.Provider, socialID string) (*model.User, error) {
	col := provider.Column()
	if col == "" {
		return nil, apperror.ValidationFailed("provider", "invalid provider")
	}

	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	var u model.User
	q := db.x.Rebind(`SELECT ` + userColumns + ` FROM users WHERE ` + col + ` = ?`)
	if err := db.x.GetContext(ctx, &u, q, socialID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", socialID)
		}
		return nil, mapErr(ctx, "getting user by social id", err)
	}
	return &u, nil
}

// GetByID retrieves a user by internal id.
// Returns apperror.ErrNotFound if no user exists with that id.
func (db *UserDB) GetByID(ctx context.Context, id int64) (*model.User, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	var u model.User
	q := db.x.Rebind(`SELECT ` + userColumns + ` FROM users WHERE id = ?`)
	if err := db.x.GetContext(ctx, &u, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", strconv.FormatInt(id, 10))
		}
		return nil, mapErr(ctx, "getting user", err)
	}
	return &u, nil
}
