package handler

import (
	"log/slog"
	"net/http"

	"github.com/fineahban/marketplace/internal/model"
	"github.com/fineahban/marketplace/internal/service"
)

type PostHandler struct {
	posts  *service.PostService
	logger *slog.Logger
}

func NewPostHandler(posts *service.PostService, logger *slog.Logger) *PostHandler {
	return &PostHandler{posts: posts, logger: logger}
}

// createPostRequest is the JSON body of POST /api/posts.
type createPostRequest struct {
	Body     string  `json:"body"`
	IsRent   bool    `json:"isRent"`
	IsSwap   bool    `json:"isSwap"`
	IsNeed   bool    `json:"isNeed"`
	IsSale   bool    `json:"isSale"`
	IsMale   bool    `json:"isMale"`
	IsFemale bool    `json:"isFemale"`
	UserID   int64   `json:"userId"`
	Image    *string `json:"image"`
}

// HandleList returns posts newest first.
//
// HTTP: GET /api/posts?isRent=true&isSale=true
//
// Filters are OR-combined: a post matching any requested category is
// returned. Only the literal string "true" switches a filter on.
func (h *PostHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.PostFilter{
		Rent: q.Get("isRent") == "true",
		Sale: q.Get("isSale") == "true",
		Need: q.Get("isNeed") == "true",
		Swap: q.Get("isSwap") == "true",
	}

	posts, err := h.posts.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// HandleCreate stores a post and bumps the author's counters.
//
// HTTP: POST /api/posts
func (h *PostHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warn("invalid post JSON", slog.String("error", err.Error()))
		writeError(w, invalidBody())
		return
	}

	post := &model.Post{
		Body:     req.Body,
		IsRent:   req.IsRent,
		IsSwap:   req.IsSwap,
		IsNeed:   req.IsNeed,
		IsSale:   req.IsSale,
		IsMale:   req.IsMale,
		IsFemale: req.IsFemale,
		UserID:   req.UserID,
		Image:    req.Image,
	}
	if err := h.posts.Create(r.Context(), post); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, post)
}
