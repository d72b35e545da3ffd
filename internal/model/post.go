package model

import "time"

// Post is a classifieds listing.
//
// The four category flags are independent: a post can be both for rent and
// for sale. IsMale/IsFemale are stored exactly as submitted; whether they
// describe the poster or the intended audience is up to the client.
type Post struct {
	ID        int64     `json:"id"         db:"id"`
	Body      string    `json:"body"       db:"body"`
	IsRent    bool      `json:"is_rent"    db:"is_rent"`
	IsSwap    bool      `json:"is_swap"    db:"is_swap"`
	IsNeed    bool      `json:"is_need"    db:"is_need"`
	IsSale    bool      `json:"is_sale"    db:"is_sale"`
	IsMale    bool      `json:"is_male"    db:"is_male"`
	IsFemale  bool      `json:"is_female"  db:"is_female"`
	UserID    int64     `json:"user_id"    db:"user_id"`
	Image     *string   `json:"image"      db:"image"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// PostWithAuthor is a Post joined with its author's name, as returned by the
// listing endpoint.
type PostWithAuthor struct {
	Post
	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name"  db:"last_name"`
}

// PostFilter selects posts by category. Set flags are OR-ed together; a zero
// filter matches every post.
type PostFilter struct {
	Rent bool
	Sale bool
	Need bool
	Swap bool
}

// Empty reports whether no category was requested.
func (f PostFilter) Empty() bool {
	return !f.Rent && !f.Sale && !f.Need && !f.Swap
}
