// Package service holds the business rules. Handlers call services, services
// call repositories; nothing in here knows about HTTP.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fineahban/marketplace/internal/apperror"
	"github.com/fineahban/marketplace/internal/auth"
	"github.com/fineahban/marketplace/internal/model"
	"github.com/fineahban/marketplace/internal/repository"
)

// MaxFieldLength is the ceiling applied to every free-text user field before
// it is stored. Counted in characters (runes), not bytes.
const MaxFieldLength = 255

// IdentityService maps social logins onto canonical users and issues session
// tokens for them.
type IdentityService struct {
	users  repository.UserRepository
	tokens *auth.TokenService
	logger *slog.Logger
}

func NewIdentityService(users repository.UserRepository, tokens *auth.TokenService, logger *slog.Logger) *IdentityService {
	return &IdentityService{
		users:  users,
		tokens: tokens,
		logger: logger,
	}
}

// AuthResult bundles the user record and the issued token so the handler can
// set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// SocialLogin validates and normalizes a social profile, resolves it to the
// canonical user and issues a session token.
//
// Storage failures are logged here together with the submitted payload; the
// caller only ever sees a generic error.
func (s *IdentityService) SocialLogin(ctx context.Context, p model.SocialProfile) (*AuthResult, error) {
	provider, err := model.ParseProvider(string(p.Provider))
	if err != nil {
		return nil, apperror.ValidationFailed("provider", "invalid provider")
	}
	p.Provider = provider

	p.Email = truncate(strings.ToLower(strings.TrimSpace(p.Email)))
	p.SocialID = truncate(strings.TrimSpace(p.SocialID))
	if p.Email == "" {
		return nil, apperror.ValidationFailed("email", "email is required")
	}
	if p.SocialID == "" {
		return nil, apperror.ValidationFailed("socialId", "socialId is required")
	}

	p.FirstName = truncate(p.FirstName)
	p.LastName = truncate(p.LastName)
	p.Avatar = truncate(p.Avatar)
	p.City = truncatePtr(p.City)
	p.Country = truncatePtr(p.Country)
	p.State = truncatePtr(p.State)
	p.Zip = truncatePtr(p.Zip)

	user, err := s.users.ResolveSocial(ctx, &p)
	if err != nil {
		var appErr *apperror.AppError
		if !errors.As(err, &appErr) {
			s.logger.Error("social login failed",
				slog.Any("payload", p),
				slog.String("error", err.Error()),
			)
		}
		return nil, fmt.Errorf("resolving %s login: %w", p.Provider, err)
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("generating token for user %d: %w", user.ID, err)
	}

	s.logger.Info("user signed in",
		slog.Int64("userID", user.ID),
		slog.String("provider", string(p.Provider)),
	)

	return &AuthResult{User: user, Token: token}, nil
}

// LoginWithProfile is SocialLogin for a profile fetched by the server-side
// OAuth flow.
func (s *IdentityService) LoginWithProfile(ctx context.Context, provider model.Provider, prof *auth.Profile) (*AuthResult, error) {
	return s.SocialLogin(ctx, model.SocialProfile{
		Email:     prof.Email,
		FirstName: prof.FirstName,
		LastName:  prof.LastName,
		Avatar:    prof.AvatarURL,
		SocialID:  prof.ID,
		Provider:  provider,
	})
}

// GetBySocialID looks a user up by provider name and external id.
func (s *IdentityService) GetBySocialID(ctx context.Context, provider, socialID string) (*model.User, error) {
	p, err := model.ParseProvider(provider)
	if err != nil {
		return nil, apperror.ValidationFailed("provider", "invalid provider")
	}
	socialID = strings.TrimSpace(socialID)
	if socialID == "" {
		return nil, apperror.ValidationFailed("socialId", "socialId is required")
	}
	return s.users.GetBySocialID(ctx, p, socialID)
}

func (s *IdentityService) GetByID(ctx context.Context, id int64) (*model.User, error) {
	if id <= 0 {
		return nil, apperror.ValidationFailed("userId", "userId must be a positive integer")
	}
	return s.users.GetByID(ctx, id)
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= MaxFieldLength {
		return s
	}
	return string(r[:MaxFieldLength])
}

func truncatePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := truncate(*s)
	return &v
}
