package model

import "fmt"

// Provider names a third-party identity provider.
type Provider string

const (
	ProviderFacebook Provider = "facebook"
	ProviderGoogle   Provider = "google"
)

// ParseProvider accepts only the providers we know how to link.
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(s); p {
	case ProviderFacebook, ProviderGoogle:
		return p, nil
	default:
		return "", fmt.Errorf("unknown provider %q", s)
	}
}

// Column is the users table column holding this provider's external id.
func (p Provider) Column() string {
	switch p {
	case ProviderFacebook:
		return "facebook_uid"
	case ProviderGoogle:
		return "google_oauth2_uid"
	default:
		return ""
	}
}
