package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/watchsync/internal/formatter"
	"github.com/desertthunder/watchsync/internal/repositories"
	"github.com/desertthunder/watchsync/internal/services"
	"github.com/desertthunder/watchsync/internal/shared"
	"github.com/desertthunder/watchsync/internal/tasks"
	"github.com/desertthunder/watchsync/internal/ui"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
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

	return &Runner{
		config:     opts.Config,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, syncCommand, exportCommand, cacheCommand, tokensCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig reloads configuration from the command's --config flag, falling
// back to the config the Runner was created with.
func (r *Runner) loadConfig(cmd *cli.Command) *shared.Config {
	path := cmd.String("config")
	if path == "" {
		return r.config
	}
	if loaded, err := shared.LoadConfig(path); err == nil {
		return loaded
	}
	return r.config
}

func (r *Runner) writeJSON(data any) error {
	encoder := json.NewEncoder(r.output)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	if _, err := fmt.Fprintf(r.output, format+"\n", args...); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// accountName labels an account for caches, token status, and --user filters.
type namedAccount struct {
	Name   string
	Token  string
	Expect string // expected username; empty for the main account
}

// accounts builds the configured account list, main account first.
func (r *Runner) accounts(config *shared.Config) []namedAccount {
	var accounts []namedAccount
	if config.Plex.Token != "" {
		name := config.Plex.Username
		if name == "" {
			name = "main"
		}
		accounts = append(accounts, namedAccount{Name: name, Token: config.Plex.Token})
	}
	for _, account := range config.Plex.Accounts {
		if account.Token == "" || account.Username == "" {
			r.logger.Warn("skipping account with missing username or token", "username", account.Username)
			continue
		}
		accounts = append(accounts, namedAccount{Name: account.Username, Token: account.Token, Expect: account.Username})
	}
	return accounts
}

func (r *Runner) newAccountService(config *shared.Config, token string) services.AccountService {
	return services.NewPlexService(token, r.logger, services.PlexOpts{
		BaseURL: config.Plex.BaseURL,
		Client:  r.httpClient,
	})
}

// buildEngine wires the pipeline collaborators from configuration. The caller
// owns the returned cleanup function.
func (r *Runner) buildEngine(config *shared.Config, dryRun bool) (*tasks.WatchlistEngine, func(), error) {
	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open media library: %w", err)
	}
	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	metadata := services.NewTraktService(config.Trakt.ClientID, config.Trakt.BaseURL, r.httpClient, r.logger)
	presence := repositories.NewMediaRepository(db)
	fetcher := tasks.NewDetailFetcher(r.logger, tasks.FetcherOpts{
		Client:         r.httpClient,
		Concurrency:    config.Fetch.Concurrency,
		BatchThreshold: config.Fetch.BatchThreshold,
		BatchSize:      config.Fetch.BatchSize,
		Timeout:        config.Fetch.Timeout(),
	})

	processing := tasks.ProcessorOpts{
		RemovalEnabled: config.Processing.RemovalEnabled && !dryRun,
		KeepSeries:     config.Processing.KeepSeries,
	}

	engine := tasks.NewWatchlistEngine(metadata, presence, fetcher, tasks.EngineOpts{
		CacheDir:        config.Cache.Directory,
		CacheTTL:        config.Cache.TTL(),
		CacheMaxEntries: config.Cache.MaxEntries,
		Processing:      processing,
	}, r.logger)

	return engine, func() { db.Close() }, nil
}

// drainProgress logs progress updates until the channel closes.
func (r *Runner) drainProgress(progress <-chan tasks.ProgressUpdate, done chan<- struct{}) {
	for update := range progress {
		r.logger.Debug("progress", "phase", update.Phase.String(), "message", update.Message)
	}
	close(done)
}

// Setup initializes the config file, opens the database, and runs migrations.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if err := shared.CreateConfigFile(path); err != nil {
		r.logger.Warn("config file not created", "path", path, "err", err)
	} else {
		r.writePlainln("Created config file at %s", path)
	}

	config := r.loadConfig(cmd)
	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := shared.RunMigrations(db); err != nil {
		return err
	}
	return r.writePlainln("Database ready at %s", config.Database.Path)
}

// Sync runs the watchlist sync for all configured accounts (or one with --user).
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)
	accounts := r.accounts(config)
	if len(accounts) == 0 {
		return shared.ErrMissingToken
	}
	if user := cmd.String("user"); user != "" {
		accounts = filterAccounts(accounts, user)
		if len(accounts) == 0 {
			return fmt.Errorf("%w: no configured account named %q", shared.ErrInvalidFlag, user)
		}
	}

	engine, cleanup, err := r.buildEngine(config, cmd.Bool("dry-run"))
	if err != nil {
		return err
	}
	defer cleanup()

	var runAccounts []tasks.Account
	for _, account := range accounts {
		runAccounts = append(runAccounts, tasks.Account{
			Service:        r.newAccountService(config, account.Token),
			ExpectUsername: account.Expect,
		})
	}

	progress := make(chan tasks.ProgressUpdate, 16)
	done := make(chan struct{})
	go r.drainProgress(progress, done)

	results := engine.RunAll(ctx, progress, runAccounts)
	close(progress)
	<-done

	if cmd.Bool("json") {
		return r.writeJSON(results)
	}
	for _, result := range results {
		if err := r.writePlainln("%s", ui.RenderRunSummary(result)); err != nil {
			return err
		}
	}
	return nil
}

// Export syncs a single account and writes the formatted result to a file.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)
	accounts := r.accounts(config)
	if len(accounts) == 0 {
		return shared.ErrMissingToken
	}
	if user := cmd.String("user"); user != "" {
		accounts = filterAccounts(accounts, user)
		if len(accounts) == 0 {
			return fmt.Errorf("%w: no configured account named %q", shared.ErrInvalidFlag, user)
		}
	}
	account := accounts[0]

	var render func(*tasks.SyncRunResult) ([]byte, error)
	switch format := cmd.String("format"); format {
	case "json":
		render = formatter.ExportToJSON
	case "csv":
		render = formatter.ExportToCSV
	case "markdown", "md":
		render = formatter.ExportToMarkdown
	default:
		return fmt.Errorf("%w: unsupported format %q", shared.ErrInvalidFlag, format)
	}

	engine, cleanup, err := r.buildEngine(config, false)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := engine.Run(ctx, nil, tasks.Account{
		Service:        r.newAccountService(config, account.Token),
		ExpectUsername: account.Expect,
	})
	if err != nil {
		return err
	}

	data, err := render(result)
	if err != nil {
		return err
	}

	path := cmd.String("output")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return r.writePlainln("Exported %d wanted items to %s", len(result.Wanted), path)
}

// CacheStats prints detail-cache statistics for every configured account.
func (r *Runner) CacheStats(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)
	accounts := r.accounts(config)
	if len(accounts) == 0 {
		return shared.ErrMissingToken
	}

	stats := map[string]tasks.CacheStats{}
	for _, account := range accounts {
		cache := tasks.NewDetailCache(
			filepath.Join(config.Cache.Directory, fmt.Sprintf("detail_cache_%s.json", account.Name)),
			config.Cache.TTL(), config.Cache.MaxEntries, r.logger)
		stats[account.Name] = cache.Stats()
	}

	if cmd.Bool("json") {
		return r.writeJSON(stats)
	}
	for name, s := range stats {
		if err := r.writePlainln("%s", ui.RenderCacheStats(name, s)); err != nil {
			return err
		}
	}
	return nil
}

// CacheClear drops and persists empty detail caches for all accounts.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)
	for _, account := range r.accounts(config) {
		path := filepath.Join(config.Cache.Directory, fmt.Sprintf("detail_cache_%s.json", account.Name))
		cache := tasks.NewDetailCache(path, config.Cache.TTL(), config.Cache.MaxEntries, r.logger)
		cache.Clear()
		if err := cache.Commit(); err != nil {
			r.logger.Error("failed to clear cache", "account", account.Name, "err", err)
			continue
		}
		r.writePlainln("Cleared cache for %s", account.Name)
	}
	return nil
}

// TokensValidate validates every configured token and persists the outcome.
func (r *Runner) TokensValidate(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)
	accounts := r.accounts(config)
	if len(accounts) == 0 {
		return shared.ErrMissingToken
	}

	manager := services.NewTokenManager(filepath.Join(config.Cache.Directory, "token_status.json"), r.logger)
	for _, account := range accounts {
		status := manager.Validate(ctx, account.Name, r.newAccountService(config, account.Token))
		state := "invalid"
		if status.Valid {
			state = "valid"
		}
		if err := r.writePlainln("%s: %s", account.Name, state); err != nil {
			return err
		}
	}
	return nil
}

// TokensStatus prints the persisted token status map.
func (r *Runner) TokensStatus(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)
	manager := services.NewTokenManager(filepath.Join(config.Cache.Directory, "token_status.json"), r.logger)
	return r.writeJSON(manager.Status())
}

func filterAccounts(accounts []namedAccount, name string) []namedAccount {
	var filtered []namedAccount
	for _, account := range accounts {
		if account.Name == name {
			filtered = append(filtered, account)
		}
	}
	return filtered
}
