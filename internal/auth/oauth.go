package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
	"golang.org/x/oauth2/google"

	"github.com/fineahban/marketplace/internal/model"
)

const (
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"
	facebookMeURL     = "https://graph.facebook.com/me?fields=id,email,first_name,last_name,picture.type(large)"
)

// Profile is the subset of a provider's user record we need to resolve a
// canonical user.
type Profile struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
	AvatarURL string
}

// OAuthProvider runs the authorization-code flow against one provider.
//
// OAUTH FLOW (same for Google and Facebook):
//  1. AuthURL builds the consent-screen URL; the browser is redirected there.
//  2. The provider redirects back to our callback with ?code=...&state=...
//  3. Exchange trades the code for an access token and fetches the profile.
type OAuthProvider struct {
	name       model.Provider
	config     *oauth2.Config
	profileURL string
	decode     func(io.Reader) (*Profile, error)
}

// NewGoogleProvider configures Google sign-in with the openid email profile scopes.
func NewGoogleProvider(clientID, clientSecret, callbackURL string) *OAuthProvider {
	return newProvider(model.ProviderGoogle, &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  callbackURL,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     google.Endpoint,
	}, googleUserInfoURL, decodeGoogle)
}

// NewFacebookProvider configures Facebook Login. The email permission is
// needed because email is how accounts are linked across providers.
func NewFacebookProvider(clientID, clientSecret, callbackURL string) *OAuthProvider {
	return newProvider(model.ProviderFacebook, &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  callbackURL,
		Scopes:       []string{"email", "public_profile"},
		Endpoint:     facebook.Endpoint,
	}, facebookMeURL, decodeFacebook)
}

func newProvider(name model.Provider, cfg *oauth2.Config, profileURL string, decode func(io.Reader) (*Profile, error)) *OAuthProvider {
	return &OAuthProvider{name: name, config: cfg, profileURL: profileURL, decode: decode}
}

func (p *OAuthProvider) Name() model.Provider {
	return p.name
}

// AuthURL returns the provider consent URL carrying state.
func (p *OAuthProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades an authorization code for the user's profile.
func (p *OAuthProvider) Exchange(ctx context.Context, code string) (*Profile, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging %s OAuth code: %w", p.name, err)
	}

	// config.Client attaches the access token to every request it makes.
	client := p.config.Client(ctx, oauthToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.profileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: building %s profile request: %w", p.name, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: calling %s profile API: %w", p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: %s profile API returned status %d", p.name, resp.StatusCode)
	}

	profile, err := p.decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("auth: decoding %s profile: %w", p.name, err)
	}
	if profile.ID == "" {
		return nil, fmt.Errorf("auth: %s returned a profile without an id", p.name)
	}
	if profile.Email == "" {
		return nil, fmt.Errorf("auth: %s did not share an email address", p.name)
	}

	return profile, nil
}

func decodeGoogle(r io.Reader) (*Profile, error) {
	var v struct {
		Sub        string `json:"sub"`
		Email      string `json:"email"`
		GivenName  string `json:"given_name"`
		FamilyName string `json:"family_name"`
		Picture    string `json:"picture"`
	}
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		return nil, err
	}
	return &Profile{
		ID:        v.Sub,
		Email:     v.Email,
		FirstName: v.GivenName,
		LastName:  v.FamilyName,
		AvatarURL: v.Picture,
	}, nil
}

func decodeFacebook(r io.Reader) (*Profile, error) {
	var v struct {
		ID        string `json:"id"`
		Email     string `json:"email"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Picture   struct {
			Data struct {
				URL string `json:"url"`
			} `json:"data"`
		} `json:"picture"`
	}
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		return nil, err
	}
	return &Profile{
		ID:        v.ID,
		Email:     v.Email,
		FirstName: v.FirstName,
		LastName:  v.LastName,
		AvatarURL: v.Picture.Data.URL,
	}, nil
}
