// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func tuiFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "tui",
		Usage: "Show an interactive progress view (logs go to log.file)",
	}
}

func limitFlag() cli.Flag {
	return &cli.IntFlag{
		Name:    "limit",
		Aliases: []string{"n"},
		Usage:   "Download at most N tracks per list; -1 for all (default: archive.limit)",
	}
}

func workersFlag() cli.Flag {
	return &cli.IntFlag{
		Name:    "workers",
		Aliases: []string{"w"},
		Usage:   "Concurrent downloads (default: archive.workers)",
	}
}

// setupCommand handles setup operations for config, database and credentials.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Create config.toml from the default template",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize the archive index and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:    "credentials",
				Aliases: []string{"creds", "auth"},
				Usage:   "Store the OAuth token and client id from a browser session",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "curl-file",
						Usage: "Path to a file containing a request copied with DevTools (Copy as cURL)",
					},
					&cli.StringFlag{
						Name:  "token",
						Usage: "OAuth token (prompted when missing)",
					},
					&cli.StringFlag{
						Name:  "client-id",
						Usage: "Client id (prompted when missing)",
					},
					&cli.BoolFlag{
						Name:  "check",
						Usage: "Verify the credentials by fetching the profile",
					},
					&cli.BoolFlag{
						Name:  "open",
						Usage: "Open the SoundCloud sign-in page before prompting",
					},
				},
				Action: r.SetupCredentials,
			},
		},
	}
}

// fetchCommand crawls metadata into JSON files under archive.output_dir.
func fetchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "fetch",
		Usage: "Fetch likes and playlists metadata",
		Commands: []*cli.Command{
			{
				Name:  "likes",
				Usage: "Fetch every liked track into likes.json",
				Flags: []cli.Flag{
					tuiFlag(),
					&cli.StringFlag{
						Name:  "csv",
						Usage: "Also write a CSV listing to this path",
					},
				},
				Action: r.FetchLikes,
			},
			{
				Name:   "playlists",
				Usage:  "Fetch and hydrate every playlist into playlists.json",
				Flags:  []cli.Flag{tuiFlag()},
				Action: r.FetchPlaylists,
			},
			{
				Name:   "all",
				Usage:  "Fetch likes and playlists",
				Flags:  []cli.Flag{tuiFlag()},
				Action: r.FetchAll,
			},
		},
	}
}

// downloadCommand streams audio for previously fetched metadata.
func downloadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "download",
		Usage: "Download audio for fetched likes or playlists",
		Commands: []*cli.Command{
			{
				Name:   "likes",
				Usage:  "Download liked tracks listed in likes.json",
				Flags:  []cli.Flag{limitFlag(), workersFlag(), tuiFlag()},
				Action: r.DownloadLikes,
			},
			{
				Name:   "playlists",
				Usage:  "Download playlist tracks listed in playlists.json",
				Flags:  []cli.Flag{limitFlag(), workersFlag(), tuiFlag()},
				Action: r.DownloadPlaylists,
			},
		},
	}
}

// runCommand fetches everything then downloads everything.
func runCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "run",
		Usage:  "Fetch all metadata, then download likes and playlists",
		Flags:  []cli.Flag{limitFlag(), workersFlag(), tuiFlag()},
		Action: r.Run,
	}
}

// archiveCommand reports on the archive index.
func archiveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "archive",
		Usage: "Inspect the archive index",
		Commands: []*cli.Command{
			{
				Name:  "status",
				Usage: "Show archived files and recent runs",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "runs",
						Usage: "Number of recent runs to show",
						Value: 10,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.ArchiveStatus,
			},
		},
	}
}

// apiCommand handles direct API calls
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct API calls for debugging",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Direct GET relative to api.base_url, prints raw JSON",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output compact JSON",
					},
				},
				Action: r.APIGet,
			},
			{
				Name:  "dump",
				Usage: "Dump the profile and the first page of likes and playlists",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
					&cli.BoolFlag{
						Name:  "save",
						Usage: "Save dump to api_dump.json",
					},
				},
				Action: r.APIDump,
			},
		},
	}
}
