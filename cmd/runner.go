package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/openbeats/internal/models"
	"github.com/desertthunder/openbeats/internal/player"
	"github.com/desertthunder/openbeats/internal/repositories"
	"github.com/desertthunder/openbeats/internal/resolver"
	"github.com/desertthunder/openbeats/internal/services"
	"github.com/desertthunder/openbeats/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Searcher fans a query out to the catalogs.
type Searcher interface {
	SearchDetailed(ctx context.Context, query string, limit int, sources ...models.Source) ([]models.Track, []services.SourceResult)
}

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	search     Searcher
	resolver   player.StreamResolver
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Search and Resolver are built from Config when nil.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Search     Searcher
	Resolver   player.StreamResolver
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		search:     opts.Search,
		resolver:   opts.Resolver,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}

	if r.search == nil || r.resolver == nil {
		agg, res, err := buildSources(context.Background(), r.config, r.logger)
		if err != nil {
			r.logger.Warn("failed to configure sources", "error", err)
		}
		if r.search == nil {
			r.search = agg
		}
		if r.resolver == nil {
			r.resolver = res
		}
	}
	return r
}

// buildSources wires one adapter per enabled source and the resolver over them.
//
// Adapters without credentials are still registered so that searches report them as not configured.
func buildSources(ctx context.Context, cfg *shared.Config, logger *log.Logger) (*services.Aggregator, *resolver.Resolver, error) {
	var (
		adapters []services.Adapter
		locators []services.AudioLocator
		backends []resolver.Backend
		errs     []error
	)

	for _, name := range cfg.Sources.Enabled {
		src, err := models.ParseSource(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err))
			continue
		}

		client := sourceClient(cfg)
		switch src {
		case models.SourceJamendo:
			j := services.NewJamendo(client, cfg.Credentials.Jamendo.ClientID)
			adapters, locators = append(adapters, j), append(locators, j)
		case models.SourceFMA:
			a := services.NewArchive(client)
			adapters, locators = append(adapters, a), append(locators, a)
		case models.SourceAudius:
			a := services.NewAudius(client, cfg.Audius.DiscoveryURL, cfg.Audius.FallbackHost)
			adapters, locators = append(adapters, a), append(locators, a)
		case models.SourceYouTube:
			yc := cfg.Credentials.YouTube
			adapters = append(adapters, services.NewYouTube(ctx, client, yc.APIKey, youTubeTokenSource(ctx, cfg, logger)))

			// Mirrors get their own unlimited client; the resolver bounds each request by context.
			b, err := resolver.NewBackends(cfg.Resolver.Mirrors, services.NewClient(&http.Client{}, 0))
			if err != nil {
				errs = append(errs, err)
				continue
			}
			backends = b
		}
	}

	agg := services.NewAggregator(logger, cfg.Search.Timeout(), adapters...)
	res := resolver.New(shared.WithLogger(logger, "component", "resolver"), resolver.Options{
		Locators:         locators,
		Backends:         backends,
		MirrorTimeout:    cfg.Resolver.MirrorTimeout(),
		CacheTTL:         cfg.Resolver.CacheTTL(),
		DegradedFallback: cfg.Resolver.DegradedFallback,
	})
	return agg, res, errors.Join(errs...)
}

// sourceClient builds the HTTP client for one provider. Each provider gets its own token bucket
// of search.rate_limit requests per second.
func sourceClient(cfg *shared.Config) *services.Client {
	return services.NewClient(nil, cfg.Search.RateLimit)
}

// youTubeTokenSource prefers a token saved by `auth youtube` over a configured access token.
func youTubeTokenSource(ctx context.Context, cfg *shared.Config, logger *log.Logger) oauth2.TokenSource {
	yc := cfg.Credentials.YouTube

	var saved *oauth2.Token
	if tokenFileExists(yc.TokenFile) {
		tok, err := services.LoadToken(yc.TokenFile)
		if err != nil {
			logger.Warn("ignoring unreadable youtube token", "path", yc.TokenFile, "error", err)
		} else {
			saved = tok
		}
	}
	return services.YouTubeTokenSource(ctx, youTubeOAuthConfig(cfg), saved, yc.AccessToken)
}

func youTubeOAuthConfig(cfg *shared.Config) *oauth2.Config {
	yc := cfg.Credentials.YouTube
	return services.YouTubeOAuthConfig(yc.ClientID, yc.ClientSecret, fmt.Sprintf("http://%s/callback", cfg.Server.Addr()))
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		searchCommand, resolveCommand, playCommand, serveCommand,
		historyCommand, favoritesCommand, playlistsCommand, setupCommand, authCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger, e.g. with a file logger while the TUI owns the terminal.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// openStore opens the configured database, applying pending migrations.
func (r *Runner) openStore(ctx context.Context) (*repositories.Store, func(), error) {
	db, err := shared.OpenDatabase(ctx, r.config.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	closeFn := func() {
		if err := db.Close(); err != nil {
			r.logger.Warn("failed to close database", "error", err)
		}
	}
	return repositories.NewStore(db), closeFn, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
