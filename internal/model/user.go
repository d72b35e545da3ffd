// Package model defines the data structures used throughout the application.
package model

import "time"

// User is the canonical record for one real person, however many social
// providers they sign in with.
//
// WHY EMAIL IS THE JOIN KEY:
// Google and Facebook each hand us their own opaque user id. The same person
// has a different id at each provider, but (almost always) the same email.
// The users table carries a UNIQUE constraint on email, and each provider slot
// (facebook_uid, google_oauth2_uid) is UNIQUE too, so one external id can never
// point at two rows.
//
// WHY *string FOR THE PROVIDER SLOTS AND ADDRESS?
// These columns are nullable. A nil pointer serializes as JSON null and maps to
// SQL NULL, which keeps "never set" distinct from "set to empty string".
type User struct {
	ID          int64   `json:"id"                db:"id"`
	Email       string  `json:"email"             db:"email"`
	FirstName   string  `json:"first_name"        db:"first_name"`
	LastName    string  `json:"last_name"         db:"last_name"`
	Avatar      string  `json:"avatar"            db:"avatar"`
	FacebookUID *string `json:"facebook_uid"      db:"facebook_uid"`
	GoogleUID   *string `json:"google_oauth2_uid" db:"google_oauth2_uid"`

	City    *string `json:"city"    db:"city"`
	Country *string `json:"country" db:"country"`
	State   *string `json:"state"   db:"state"`
	Zip     *string `json:"zip"     db:"zip"`

	IsAdmin  bool `json:"is_admin"  db:"is_admin"`
	IsBanned bool `json:"is_banned" db:"is_banned"`

	TotalSalePosts int64 `json:"total_sale_posts" db:"total_sale_posts"`
	TotalSwapPosts int64 `json:"total_swap_posts" db:"total_swap_posts"`
	TotalNeedPosts int64 `json:"total_need_posts" db:"total_need_posts"`
	TotalRentPosts int64 `json:"total_rent_posts" db:"total_rent_posts"`
	TotalPosts     int64 `json:"total_posts"      db:"total_posts"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// SocialID returns the external id stored in the slot for p, or "" when the
// slot is empty.
func (u *User) SocialID(p Provider) string {
	var v *string
	switch p {
	case ProviderFacebook:
		v = u.FacebookUID
	case ProviderGoogle:
		v = u.GoogleUID
	}
	if v == nil {
		return ""
	}
	return *v
}

// SocialProfile is what a provider tells us about the person logging in.
// It is the input of the identity resolver.
//
// The address fields are optional: nil means "not submitted", and the stored
// value is left alone.
type SocialProfile struct {
	Email     string   `json:"email"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Avatar    string   `json:"avatar"`
	SocialID  string   `json:"socialId"`
	Provider  Provider `json:"provider"`
	City      *string  `json:"city,omitempty"`
	Country   *string  `json:"country,omitempty"`
	State     *string  `json:"state,omitempty"`
	Zip       *string  `json:"zip,omitempty"`
}
