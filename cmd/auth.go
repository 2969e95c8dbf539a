package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/desertthunder/openbeats/internal/models"
	"github.com/desertthunder/openbeats/internal/server"
	"github.com/desertthunder/openbeats/internal/services"
	"github.com/desertthunder/openbeats/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const authTimeout = 2 * time.Minute

// AuthYouTube runs the OAuth2 authorization code flow for the YouTube Data API and saves the token.
//
// Starts a local HTTP server, opens browser for user authorization, and exchanges auth code for tokens.
func (r *Runner) AuthYouTube(ctx context.Context, cmd *cli.Command) error {
	yc := r.config.Credentials.YouTube
	if yc.ClientID == "" || yc.ClientSecret == "" {
		return fmt.Errorf("%w: credentials.youtube client_id and client_secret must be set", shared.ErrMissingCredentials)
	}
	if yc.TokenFile == "" {
		return fmt.Errorf("%w: credentials.youtube.token_file is empty", shared.ErrInvalidConfig)
	}

	oauthCfg := youTubeOAuthConfig(r.config)
	token, err := r.doOAuth(ctx, "YouTube", oauthCfg, func(state string) string {
		return services.YouTubeAuthURL(oauthCfg, state)
	})
	if err != nil {
		return err
	}

	if err := services.SaveToken(yc.TokenFile, token); err != nil {
		return err
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Token saved to %s\n\n", yc.TokenFile)
	r.writePlain("You can now use: openbeats search --sources ytmusic \"your song\"\n")
	return nil
}

// doOAuth executes an authorization code flow with a local callback server.
func (r *Runner) doOAuth(ctx context.Context, provider string, exchanger server.Exchanger, authURL func(state string) string) (*oauth2.Token, error) {
	state := shared.GenerateID()
	handler := server.NewOAuthHandler(provider, exchanger, state)
	router := server.NewBasicRouter()
	router.Use(server.Recover(r.logger))
	router.Handler(handler)

	addr := r.config.Server.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srvCtx, stop := context.WithCancel(ctx)
	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth callback server for %s at %v", provider, addr)
		serverErrors <- server.ServeListener(srvCtx, ln, router, r.logger)
	}()
	defer func() {
		stop()
		<-serverErrors
	}()

	link := authURL(state)
	r.writePlain("→ Opening browser for %s authorization...\n", provider)
	if err := shared.OpenBrowser(link); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", link)
	}

	r.writePlain("→ Waiting for authorization (%s timeout)...\n", authTimeout)

	timeout := time.NewTimer(authTimeout)
	defer timeout.Stop()

	var result server.OAuthResult
	select {
	case result = <-handler.Result():
	case err := <-serverErrors:
		serverErrors <- err
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, authTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}
	if result.Token == nil {
		return nil, fmt.Errorf("no token received")
	}
	return result.Token, nil
}

type sourceStatus struct {
	Source     models.Source `json:"source"`
	Enabled    bool          `json:"enabled"`
	Configured bool          `json:"configured"`
	Detail     string        `json:"detail"`
}

// sourceStatuses reports, per known source, whether it is enabled and has what it needs.
func sourceStatuses(cfg *shared.Config) []sourceStatus {
	enabled := map[models.Source]bool{}
	for _, name := range cfg.Sources.Enabled {
		if src, err := models.ParseSource(name); err == nil {
			enabled[src] = true
		}
	}

	statuses := make([]sourceStatus, 0, len(models.Sources))
	for _, src := range models.Sources {
		st := sourceStatus{Source: src, Enabled: enabled[src], Configured: true}
		switch src {
		case models.SourceJamendo:
			st.Configured = cfg.Credentials.Jamendo.ClientID != ""
			st.Detail = "client_id"
		case models.SourceFMA:
			st.Detail = "no credentials needed"
		case models.SourceAudius:
			st.Detail = "discovery " + cfg.Audius.DiscoveryURL
		case models.SourceYouTube:
			yc := cfg.Credentials.YouTube
			switch {
			case tokenFileExists(yc.TokenFile):
				st.Detail = "oauth token " + yc.TokenFile
			case yc.AccessToken != "":
				st.Detail = "access_token"
			case yc.APIKey != "":
				st.Detail = "api_key"
			default:
				st.Configured = false
				st.Detail = "api_key or `auth youtube`"
			}
			st.Detail += fmt.Sprintf(", %d mirrors", len(cfg.Resolver.Mirrors))
		}
		statuses = append(statuses, st)
	}
	return statuses
}

// AuthStatus shows which sources can be searched and played.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	statuses := sourceStatuses(r.config)
	if cmd.Bool("json") {
		return r.writeJSON(statuses, cmd.Bool("pretty"))
	}

	for _, st := range statuses {
		mark := "✓"
		switch {
		case !st.Enabled:
			mark = "-"
		case !st.Configured:
			mark = "✗"
		}
		r.writePlain("%s %-20s %s\n", mark, st.Source.Label(), st.Detail)
	}
	return nil
}

func tokenFileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
