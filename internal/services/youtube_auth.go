package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
)

const (
	googleAuthURL  = "https://accounts.google.com/o/oauth2/auth"
	googleTokenURL = "https://oauth2.googleapis.com/token"
	youTubeScope   = "https://www.googleapis.com/auth/youtube.readonly"
)

// YouTubeOAuthConfig builds the authorization code flow config for the Data API.
func YouTubeOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{youTubeScope},
		Endpoint: oauth2.Endpoint{
			AuthURL:  googleAuthURL,
			TokenURL: googleTokenURL,
		},
	}
}

// YouTubeAuthURL returns the consent page URL, asking for a refresh token.
func YouTubeAuthURL(cfg *oauth2.Config, state string) string {
	return cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// StaticToken wraps a bare access token, as found in config, in a token source.
func StaticToken(accessToken string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
}

// YouTubeTokenSource picks the best available credential: a saved token refreshed through cfg,
// then a static access token. It returns nil when neither exists.
func YouTubeTokenSource(ctx context.Context, cfg *oauth2.Config, saved *oauth2.Token, accessToken string) oauth2.TokenSource {
	switch {
	case saved != nil && cfg != nil && cfg.ClientID != "":
		return cfg.TokenSource(ctx, saved)
	case saved != nil:
		return oauth2.StaticTokenSource(saved)
	case accessToken != "":
		return StaticToken(accessToken)
	default:
		return nil
	}
}

// LoadToken reads a token saved by [SaveToken].
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("%w: token file %s: %v", ErrMalformedResponse, path, err)
	}
	return &tok, nil
}

// SaveToken writes tok as JSON readable only by the current user.
func SaveToken(path string, tok *oauth2.Token) error {
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create token directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}
