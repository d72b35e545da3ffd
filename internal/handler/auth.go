package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/xid"

	"github.com/fineahban/marketplace/internal/apperror"
	"github.com/fineahban/marketplace/internal/auth"
	"github.com/fineahban/marketplace/internal/model"
	"github.com/fineahban/marketplace/internal/service"
)

const stateCookie = "oauth_state"

// OAuthFlow is one provider's authorization-code flow.
// *auth.OAuthProvider implements it.
type OAuthFlow interface {
	Name() model.Provider
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.Profile, error)
}

// AuthHandler runs the server-side OAuth login flows and session endpoints.
//
// HANDLER RESPONSIBILITIES:
//   - HandleLogin    → redirect the browser to the provider's consent page
//   - HandleCallback → exchange the code, resolve the user, issue the token cookie
//   - HandleLogout   → clear the token cookie
//   - HandleMe       → return the currently signed-in user
type AuthHandler struct {
	flows       map[model.Provider]OAuthFlow
	identity    *service.IdentityService
	tokenTTL    time.Duration
	redirectURL string
	logger      *slog.Logger
}

// NewAuthHandler registers the given flows. Providers that are not passed in
// answer 404 on their login and callback routes.
func NewAuthHandler(
	identity *service.IdentityService,
	tokenTTL time.Duration,
	redirectURL string,
	logger *slog.Logger,
	flows ...OAuthFlow,
) *AuthHandler {
	byName := make(map[model.Provider]OAuthFlow, len(flows))
	for _, f := range flows {
		byName[f.Name()] = f
	}
	return &AuthHandler{
		flows:       byName,
		identity:    identity,
		tokenTTL:    tokenTTL,
		redirectURL: redirectURL,
		logger:      logger,
	}
}

func (h *AuthHandler) flow(r *http.Request) (OAuthFlow, error) {
	name := chi.URLParam(r, "provider")
	if f, ok := h.flows[model.Provider(name)]; ok {
		return f, nil
	}
	return nil, apperror.NotFound("provider", name)
}

// HandleLogin redirects to the provider.
//
// HTTP: GET /auth/{provider}/login
//
// A random state value goes both into the redirect and into a short-lived
// cookie; the callback only proceeds when the two match.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	f, err := h.flow(r)
	if err != nil {
		writeError(w, err)
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, f.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleCallback completes the OAuth login flow.
//
// HTTP: GET /auth/{provider}/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for the provider profile
//  3. Resolve the canonical user (same path as POST /api/social-login)
//  4. Set the token cookie and redirect to the app
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	f, err := h.flow(r)
	if err != nil {
		writeError(w, err)
		return
	}

	// --- Step 1: Validate CSRF state ---
	c, err := r.Cookie(stateCookie)
	if err != nil || c.Value == "" || r.URL.Query().Get("state") != c.Value {
		h.logger.Warn("auth callback: state mismatch", slog.String("provider", string(f.Name())))
		writeError(w, apperror.ValidationFailed("state", "invalid OAuth state"))
		return
	}

	// Single-use.
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization",
			slog.String("provider", string(f.Name())),
			slog.String("error", errParam),
		)
		http.Redirect(w, r, h.redirectURL+"?auth=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, apperror.ValidationFailed("code", "missing OAuth code"))
		return
	}

	// --- Step 2: Exchange code for the profile ---
	profile, err := f.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: exchange failed",
			slog.String("provider", string(f.Name())),
			slog.String("error", err.Error()),
		)
		writeError(w, apperror.Unauthorized("authentication failed"))
		return
	}

	// --- Step 3: Resolve the user ---
	result, err := h.identity.LoginWithProfile(r.Context(), f.Name(), profile)
	if err != nil {
		writeError(w, err)
		return
	}

	// --- Step 4: Cookie and redirect ---
	setTokenCookie(w, result.Token, h.tokenTTL)
	http.Redirect(w, r, h.redirectURL, http.StatusSeeOther)
}

// HandleLogout clears the token cookie.
//
// HTTP: POST /auth/logout
//
// Tokens are stateless, so the token itself stays valid until it expires;
// the browser just stops sending it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	clearTokenCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the signed-in user.
//
// HTTP: GET /api/me (behind auth.RequireAuth)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	user, err := h.identity.GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
