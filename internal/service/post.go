package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fineahban/marketplace/internal/apperror"
	"github.com/fineahban/marketplace/internal/model"
	"github.com/fineahban/marketplace/internal/repository"
)

const MaxPostBodyLength = 10000

// PostService creates and lists classifieds posts.
type PostService struct {
	posts  repository.PostRepository
	logger *slog.Logger
}

func NewPostService(posts repository.PostRepository, logger *slog.Logger) *PostService {
	return &PostService{
		posts:  posts,
		logger: logger,
	}
}

// Create validates post and stores it. The repository bumps the author's
// counters in the same transaction.
func (s *PostService) Create(ctx context.Context, post *model.Post) error {
	post.Body = strings.TrimSpace(post.Body)

	if post.Body == "" {
		return apperror.ValidationFailed("body", "post body is required")
	}
	if len([]rune(post.Body)) > MaxPostBodyLength {
		return apperror.ValidationFailed("body",
			fmt.Sprintf("post body must be %d characters or less", MaxPostBodyLength))
	}
	if post.UserID <= 0 {
		return apperror.ValidationFailed("userId", "userId must be a positive integer")
	}
	if post.Image != nil {
		img := strings.TrimSpace(*post.Image)
		if img == "" {
			post.Image = nil
		} else {
			img = truncate(img)
			post.Image = &img
		}
	}

	if err := s.posts.Create(ctx, post); err != nil {
		var appErr *apperror.AppError
		if !errors.As(err, &appErr) {
			s.logger.Error("failed to create post",
				slog.Any("payload", post),
				slog.String("error", err.Error()),
			)
		}
		return fmt.Errorf("creating post: %w", err)
	}

	s.logger.Info("post created",
		slog.Int64("id", post.ID),
		slog.Int64("userID", post.UserID),
	)
	return nil
}

// List returns posts matching any of the filter's categories, newest first.
func (s *PostService) List(ctx context.Context, filter model.PostFilter) ([]model.PostWithAuthor, error) {
	posts, err := s.posts.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	return posts, nil
}
