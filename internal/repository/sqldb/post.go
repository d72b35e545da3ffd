package sqldb

import (
	"context"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/fineahban/marketplace/internal/apperror"
	"github.com/fineahban/marketplace/internal/model"
	"github.com/fineahban/marketplace/internal/repository"
)

var _ repository.PostRepository = (*PostDB)(nil)

// Create inserts post and increments the author's counters in the same
// transaction: total_posts by one, plus the category counter of every flag set
// on the post. Either both land or neither does.
//
// The counter UPDATE runs first. It doubles as the author existence check,
// so an unknown user_id fails with apperror.ErrNotFound before anything is
// inserted.
func (db *PostDB) Create(ctx context.Context, post *model.Post) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	post.CreatedAt = now()

	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind(`
			UPDATE users SET
				total_posts      = total_posts + 1,
				total_rent_posts = total_rent_posts + ?,
				total_swap_posts = total_swap_posts + ?,
				total_need_posts = total_need_posts + ?,
				total_sale_posts = total_sale_posts + ?,
				updated_at       = ?
			WHERE id = ?`),
			b2i(post.IsRent), b2i(post.IsSwap), b2i(post.IsNeed), b2i(post.IsSale),
			post.CreatedAt, post.UserID,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return apperror.NotFound("user", strconv.FormatInt(post.UserID, 10))
		}

		return tx.GetContext(ctx, &post.ID, tx.Rebind(`
			INSERT INTO posts (body, is_rent, is_swap, is_need, is_sale, is_male, is_female, user_id, image, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			RETURNING id`),
			post.Body, post.IsRent, post.IsSwap, post.IsNeed, post.IsSale,
			post.IsMale, post.IsFemale, post.UserID, post.Image, post.CreatedAt,
		)
	})
	if err != nil {
		return mapErr(ctx, "creating post", err)
	}
	return nil
}

// List returns posts with their author's name, newest first.
//
// Set filter flags are OR-ed: {Rent, Sale} yields every post that is for rent
// or for sale. An empty filter returns everything.
func (db *PostDB) List(ctx context.Context, filter model.PostFilter) ([]model.PostWithAuthor, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	var b strings.Builder
	b.WriteString(`
		SELECT p.id, p.body, p.is_rent, p.is_swap, p.is_need, p.is_sale, p.is_male, p.is_female,
			p.user_id, p.image, p.created_at, u.first_name, u.last_name
		FROM posts p
		JOIN users u ON u.id = p.user_id`)

	var args []any
	if !filter.Empty() {
		var conds []string
		for _, f := range []struct {
			set bool
			col string
		}{
			{filter.Rent, "p.is_rent"},
			{filter.Sale, "p.is_sale"},
			{filter.Need, "p.is_need"},
			{filter.Swap, "p.is_swap"},
		} {
			if f.set {
				conds = append(conds, f.col+" = ?")
				args = append(args, true)
			}
		}
		b.WriteString("\n\t\tWHERE " + strings.Join(conds, " OR "))
	}
	b.WriteString("\n\t\tORDER BY p.created_at DESC, p.id DESC")

	posts := []model.PostWithAuthor{}
	if err := db.x.SelectContext(ctx, &posts, db.x.Rebind(b.String()), args...); err != nil {
		return nil, mapErr(ctx, "listing posts", err)
	}
	return posts, nil
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
