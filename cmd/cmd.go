// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

func outputFlags(pretty bool) []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
			Value: pretty,
		},
	}
}

func exportFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Export format: json, csv, markdown or txt",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Export path (a directory for markdown)",
		},
	}
}

// searchCommand searches every enabled catalog
func searchCommand(r *Runner) *cli.Command {
	flags := []cli.Flag{
		&cli.IntFlag{
			Name:    "limit",
			Aliases: []string{"n"},
			Usage:   "Maximum results per source (defaults to search.default_limit)",
		},
		&cli.StringFlag{
			Name:    "sources",
			Aliases: []string{"s"},
			Usage:   "Comma separated sources: jamendo, fma, audius, ytmusic",
		},
		&cli.BoolFlag{
			Name:  "save",
			Usage: "Store result metadata so tracks can be favorited or added to playlists by id",
		},
	}
	flags = append(flags, outputFlags(true)...)
	flags = append(flags, exportFlags()...)

	return &cli.Command{
		Name:      "search",
		Aliases:   []string{"s"},
		Usage:     "Search free and streamable catalogs",
		ArgsUsage: "<query>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "query"},
		},
		Flags:  flags,
		Action: r.Search,
	}
}

// resolveCommand resolves one track to a playable stream URL
func resolveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "Resolve a track id (e.g. audius-D7KyD) to a playable URL",
		ArgsUsage: "<track-id>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "track"},
		},
		Flags: append(outputFlags(true), &cli.BoolFlag{
			Name:  "open",
			Usage: "Open the external page in the browser when only a link is available",
		}),
		Action: r.Resolve,
	}
}

// playCommand launches the interactive terminal player
func playCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "play",
		Aliases:   []string{"tui", "ui"},
		Usage:     "Launch the interactive player, optionally searching right away",
		ArgsUsage: "[query]",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "query"},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "playlist",
				Usage: "Start with a stored playlist queued",
			},
			&cli.BoolFlag{
				Name:  "favorites",
				Usage: "Start with favorites queued",
			},
			&cli.StringFlag{
				Name:    "sources",
				Aliases: []string{"s"},
				Usage:   "Comma separated sources to search",
			},
			&cli.BoolFlag{
				Name:  "no-mpris",
				Usage: "Do not register with the desktop media controls",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where logs go while the player owns the terminal",
				Value: "./tmp/openbeats-tui.log",
			},
		},
		Action: r.Play,
	}
}

// serveCommand runs a headless player controlled over HTTP and MPRIS
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run a headless player with the local remote-control API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host (defaults to server.host)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Listen port (defaults to server.port)",
			},
			&cli.BoolFlag{
				Name:  "no-mpris",
				Usage: "Do not register with the desktop media controls",
			},
		},
		Action: r.Serve,
	}
}

// historyCommand handles listening history
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Listening history",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "Show recent plays, newest first",
				Flags: append(append(outputFlags(true), exportFlags()...), &cli.IntFlag{
					Name:    "limit",
					Aliases: []string{"n"},
					Usage:   "Maximum plays to show",
					Value:   25,
				}),
				Action: r.HistoryList,
			},
			{
				Name:   "stats",
				Usage:  "Show total listening time",
				Flags:  outputFlags(true),
				Action: r.HistoryStats,
			},
			{
				Name:   "clear",
				Usage:  "Delete all recorded plays",
				Action: r.HistoryClear,
			},
		},
	}
}

// favoritesCommand handles favorite tracks
func favoritesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "favorites",
		Aliases: []string{"fav"},
		Usage:   "Favorite tracks",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List favorites, newest first",
				Flags:  append(outputFlags(true), exportFlags()...),
				Action: r.FavoritesList,
			},
			{
				Name:      "add",
				Usage:     "Favorite a stored track",
				ArgsUsage: "<track-id>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "track"},
				},
				Action: r.FavoritesAdd,
			},
			{
				Name:      "remove",
				Aliases:   []string{"rm"},
				Usage:     "Remove a favorite",
				ArgsUsage: "<track-id>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "track"},
				},
				Action: r.FavoritesRemove,
			},
		},
	}
}

// playlistsCommand handles local playlists
func playlistsCommand(r *Runner) *cli.Command {
	idArg := []cli.Argument{&cli.StringArg{Name: "id"}}

	return &cli.Command{
		Name:    "playlists",
		Aliases: []string{"pl"},
		Usage:   "Local playlists",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List playlists",
				Flags:  outputFlags(true),
				Action: r.PlaylistsList,
			},
			{
				Name:      "show",
				Usage:     "Show a playlist and its tracks",
				ArgsUsage: "<playlist-id>",
				Arguments: idArg,
				Flags:     outputFlags(true),
				Action:    r.PlaylistsShow,
			},
			{
				Name:      "create",
				Usage:     "Create a playlist",
				ArgsUsage: "<title>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "title"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "description",
						Usage: "Playlist description",
					},
					&cli.BoolFlag{
						Name:  "public",
						Usage: "Mark the playlist public",
					},
					&cli.BoolFlag{
						Name:  "from-favorites",
						Usage: "Seed the playlist with every favorite",
					},
				},
				Action: r.PlaylistsCreate,
			},
			{
				Name:      "add",
				Usage:     "Append a stored track to a playlist",
				ArgsUsage: "<playlist-id> <track-id>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
					&cli.StringArg{Name: "track"},
				},
				Action: r.PlaylistsAdd,
			},
			{
				Name:      "remove",
				Aliases:   []string{"rm"},
				Usage:     "Remove the track at a 1-based position",
				ArgsUsage: "<playlist-id> <position>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
					&cli.StringArg{Name: "position"},
				},
				Action: r.PlaylistsRemove,
			},
			{
				Name:      "delete",
				Usage:     "Delete a playlist",
				ArgsUsage: "<playlist-id>",
				Arguments: idArg,
				Action:    r.PlaylistsDelete,
			},
			{
				Name:      "export",
				Usage:     "Export a playlist to a file",
				ArgsUsage: "<playlist-id>",
				Arguments: idArg,
				Flags: append(exportFlags(), &cli.StringFlag{
					Name:  "cover",
					Usage: "Cover image URL for markdown exports (defaults to the first track's artwork)",
				}),
				Action: r.PlaylistsExport,
			},
			{
				Name:      "export-all",
				Usage:     "Export every playlist (or the given ids) into a directory with a manifest",
				ArgsUsage: "[playlist-id...]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format: json, csv, markdown or txt",
						Value:   "json",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output directory (default: openbeats_export_{epoch})",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent export workers",
						Value: 4,
					},
				},
				Action: r.PlaylistsExportAll,
			},
		},
	}
}

// setupCommand handles setup operations for database and configuration.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
			{
				Name:   "config",
				Usage:  "Write the example configuration file",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupConfig,
			},
			{
				Name:   "migrations",
				Usage:  "Show applied and pending migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupMigrations,
			},
			{
				Name:   "rollback",
				Usage:  "Revert the most recent migration",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupRollback,
			},
		},
	}
}

// authCommand handles provider authentication
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage provider credentials",
		Commands: []*cli.Command{
			{
				Name:   "youtube",
				Usage:  "Authorize the YouTube Data API with OAuth2",
				Action: r.AuthYouTube,
			},
			{
				Name:   "status",
				Usage:  "Show which sources are configured",
				Flags:  outputFlags(true),
				Action: r.AuthStatus,
			},
		},
	}
}
