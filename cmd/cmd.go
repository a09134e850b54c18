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

// setupCommand initializes the config file and the media library database
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Initialize config file, database, and migrations",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Setup,
	}
}

// syncCommand runs the watchlist sync for all configured accounts
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Sync watchlists and print wanted items",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:  "user",
				Usage: "Only sync the named account",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output run results as JSON",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Disable watchlist removal for this run",
			},
		},
		Action: r.Sync,
	}
}

// exportCommand writes one account's sync result to a file
func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Sync one account and export the result",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:  "user",
				Usage: "Account to sync (defaults to the main account)",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Export format: json, csv, markdown",
				Value:   "json",
			},
			&cli.StringFlag{
				Name:     "output",
				Aliases:  []string{"o"},
				Usage:    "Output file path",
				Required: true,
			},
		},
		Action: r.Export,
	}
}

// cacheCommand inspects and clears per-account detail caches
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Detail cache operations",
		Commands: []*cli.Command{
			{
				Name:  "stats",
				Usage: "Show detail cache statistics per account",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.CacheStats,
			},
			{
				Name:   "clear",
				Usage:  "Clear detail caches for all configured accounts",
				Flags:  []cli.Flag{configFlag()},
				Action: r.CacheClear,
			},
		},
	}
}

// tokensCommand validates and reports account token status
func tokensCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tokens",
		Usage: "Account token operations",
		Commands: []*cli.Command{
			{
				Name:   "validate",
				Usage:  "Validate all configured account tokens",
				Flags:  []cli.Flag{configFlag()},
				Action: r.TokensValidate,
			},
			{
				Name:  "status",
				Usage: "Show persisted token status",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
						Value: true,
					},
				},
				Action: r.TokensStatus,
			},
		},
	}
}
