// Package repository declares the storage contracts the services depend on.
//
// The services only ever see these interfaces. The sqldb package implements
// all three on top of one *sqlx.DB, and the service tests swap in hand-written
// fakes.
package repository

import (
	"context"

	"github.com/fineahban/marketplace/internal/model"
)

type UserRepository interface {
	// ResolveSocial returns the canonical user for profile, creating or
	// updating it in a single transaction. Email is matched first, then the
	// provider's external id.
	ResolveSocial(ctx context.Context, profile *model.SocialProfile) (*model.User, error)
	GetBySocialID(ctx context.Context, provider model.Provider, socialID string) (*model.User, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

type PostRepository interface {
	// Create stores post and bumps the author's counters atomically.
	Create(ctx context.Context, post *model.Post) error
	List(ctx context.Context, filter model.PostFilter) ([]model.PostWithAuthor, error)
}

type MessageRepository interface {
	Create(ctx context.Context, msg *model.Message) error
	// ListConversations returns the newest message of every conversation
	// userID takes part in, newest conversation first.
	ListConversations(ctx context.Context, userID int64) ([]model.Message, error)
	// ListBetween returns the full transcript between a and b, oldest first.
	ListBetween(ctx context.Context, a, b int64) ([]model.Message, error)
}
