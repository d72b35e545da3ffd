package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fineahban/marketplace/internal/auth"
	"github.com/fineahban/marketplace/internal/model"
	"github.com/fineahban/marketplace/internal/service"
)

// IdentityHandler exposes social login and user lookups.
//
// HTTP:
//   - POST /api/social-login                 → resolve a social profile to a user
//   - GET  /api/user/{provider}/{socialId}   → lookup by external id
//   - GET  /api/user/{userId}                → lookup by internal id
type IdentityHandler struct {
	identity *service.IdentityService
	tokenTTL time.Duration
	logger   *slog.Logger
}

func NewIdentityHandler(identity *service.IdentityService, tokenTTL time.Duration, logger *slog.Logger) *IdentityHandler {
	return &IdentityHandler{identity: identity, tokenTTL: tokenTTL, logger: logger}
}

// HandleSocialLogin upserts the user behind a social profile.
//
// REQUEST BODY:
//
//	{"email":"a@x.com","firstName":"Ada","lastName":"L","avatar":"...",
//	 "socialId":"123","provider":"google","city":"Oslo"}
//
// The response body is the user row. The session token travels only in the
// HttpOnly cookie.
func (h *IdentityHandler) HandleSocialLogin(w http.ResponseWriter, r *http.Request) {
	var profile model.SocialProfile
	if err := decodeJSON(w, r, &profile); err != nil {
		h.logger.Warn("invalid social login JSON", slog.String("error", err.Error()))
		writeError(w, invalidBody())
		return
	}

	result, err := h.identity.SocialLogin(r.Context(), profile)
	if err != nil {
		writeError(w, err)
		return
	}

	setTokenCookie(w, result.Token, h.tokenTTL)
	writeJSON(w, http.StatusOK, result.User)
}

func (h *IdentityHandler) HandleGetBySocialID(w http.ResponseWriter, r *http.Request) {
	user, err := h.identity.GetBySocialID(r.Context(),
		chi.URLParam(r, "provider"),
		chi.URLParam(r, "socialId"),
	)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *IdentityHandler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userId")
	if err != nil {
		writeError(w, err)
		return
	}

	user, err := h.identity.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// setTokenCookie stores the session token in an HttpOnly cookie.
// SameSite=Lax keeps it on top-level navigations (the OAuth redirect back to
// us) but off cross-site POSTs.
func setTokenCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		// Secure: true, // Uncomment in production (requires HTTPS)
	})
}

func clearTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
