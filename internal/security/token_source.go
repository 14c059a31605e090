package security

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

// AzureADAuth handles Azure Active Directory authentication for the
// Power BI API using a long-lived refresh token
type AzureADAuth struct {
	conf   *oauth2.Config
	tokens oauth2.TokenSource
}

// NewAzureADAuth creates an authenticator that redeems the refresh
// token on first use and caches access tokens until they expire.
// Concurrent callers share one cached token.
func NewAzureADAuth(ctx context.Context, authorityBaseURL, tenantID, clientID, refreshToken string, scopes []string) (*AzureADAuth, error) {
	if authorityBaseURL == "" {
		return nil, fmt.Errorf("authority base URL is required")
	}
	if tenantID == "" {
		return nil, fmt.Errorf("tenant ID is required")
	}
	if clientID == "" {
		return nil, fmt.Errorf("client ID is required")
	}
	if refreshToken == "" {
		return nil, fmt.Errorf("refresh token is required")
	}

	conf := &oauth2.Config{
		ClientID: clientID,
		Endpoint: oauth2.Endpoint{
			AuthURL:  fmt.Sprintf("%s/%s/oauth2/v2.0/authorize", authorityBaseURL, tenantID),
			TokenURL: fmt.Sprintf("%s/%s/oauth2/v2.0/token", authorityBaseURL, tenantID),
		},
		Scopes: scopes,
	}

	seed := &oauth2.Token{RefreshToken: refreshToken}

	return &AzureADAuth{
		conf:   conf,
		tokens: conf.TokenSource(ctx, seed),
	}, nil
}

// TokenSource exposes the cached token source for HTTP clients
func (a *AzureADAuth) TokenSource() oauth2.TokenSource {
	return a.tokens
}

// GetToken retrieves a valid access token, refreshing if necessary
func (a *AzureADAuth) GetToken(ctx context.Context) (*oauth2.Token, error) {
	return a.tokens.Token()
}
