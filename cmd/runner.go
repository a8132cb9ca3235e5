package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/authrelay/internal/auth"
	"github.com/desertthunder/authrelay/internal/repositories"
	"github.com/desertthunder/authrelay/internal/server"
	"github.com/desertthunder/authrelay/internal/services"
	"github.com/desertthunder/authrelay/internal/shared"
	"github.com/desertthunder/authrelay/internal/ui"
	"github.com/desertthunder/authrelay/internal/web"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config *shared.Config
	logger *log.Logger
	output io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config *shared.Config
	Logger *log.Logger
	Output io.Writer
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

	return &Runner{
		config: opts.Config,
		logger: opts.Logger,
		output: opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		serveCommand, setupCommand, migrateCommand, tokensCommand, configCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig reloads configuration from the command's --config flag when the
// file exists, falling back to the runner's startup config.
func (r *Runner) loadConfig(cmd *cli.Command) *shared.Config {
	configPath := cmd.String("config")
	if configPath == "" {
		return r.config
	}
	if _, err := os.Stat(configPath); err != nil {
		return r.config
	}

	config, err := shared.LoadConfig(configPath)
	if err != nil {
		r.logger.Warn("failed to load config, using defaults", "path", configPath, "error", err)
		return r.config
	}
	return config
}

// openDatabase opens and migrates the configured SQLite database.
func (r *Runner) openDatabase(config *shared.Config) (*sql.DB, error) {
	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// Serve starts the authorization relay server and blocks until shutdown.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)

	if port := cmd.Int("port"); port != 0 {
		config.Server.Port = int(port)
	}
	if cmd.Bool("no-pkce") {
		config.Relay.UsePKCE = false
	}
	if cmd.Bool("persist") {
		config.Relay.PersistTokens = true
	}

	if err := config.Validate(); err != nil {
		return err
	}

	spotify, err := services.NewSpotifyService(map[string]string{
		"client_id":     config.Credentials.Spotify.ClientID,
		"client_secret": config.Credentials.Spotify.ClientSecret,
		"redirect_uri":  config.Credentials.Spotify.RedirectURI,
		"scope":         strings.Join(config.Credentials.Spotify.Scopes, " "),
	})
	if err != nil {
		return fmt.Errorf("failed to create spotify service: %w", err)
	}

	opts := server.RelayOpts{
		UsePKCE:        config.Relay.UsePKCE,
		PersistTokens:  config.Relay.PersistTokens,
		AppRedirectURI: config.Relay.AppRedirectURI,
		Spotify:        spotify,
		Attempts:       auth.NewAttemptStore(time.Duration(config.Relay.AttemptTTL) * time.Second),
		Logger:         r.logger,
	}

	if config.Relay.PersistTokens {
		db, err := r.openDatabase(config)
		if err != nil {
			return err
		}
		defer db.Close()
		opts.Tokens = repositories.NewTokenRepository(db)
	}

	relay, err := server.NewRelay(opts)
	if err != nil {
		return err
	}

	router := server.NewBasicRouter()
	router.Use(
		server.Recover(r.logger),
		server.RequestLogger(r.logger),
		server.RateLimit(5, 10),
	)
	router.Handler(relay)
	router.Handler(web.NewStaticHandler())

	srv := server.NewServer(config.Server, router, r.logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go relay.Janitor(ctx, time.Minute)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	r.writePlain("%s\n", ui.Title("authrelay"))
	r.writePlain("%s\n", ui.OK("✓ Relay listening on "+srv.Addr()))
	if config.Relay.PersistTokens {
		r.writePlain("%s\n", ui.Help("persisting refresh tokens to "+config.Database.Path))
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Setup creates the config file when missing, then initializes the database.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		r.writePlain("%s\n", ui.OK("✓ Config template written to "+configPath))
	}

	config := r.loadConfig(cmd)

	r.logger.Info("initializing database", "path", config.Database.Path)
	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	r.writePlain("%s\n", ui.OK("✓ Database ready at "+config.Database.Path))
	r.writePlain("%s\n", ui.Help("set CLIENT_ID / CLIENT_SECRET or edit "+configPath+" before serving"))
	return nil
}

// MigrateUp applies pending migrations.
func (r *Runner) MigrateUp(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return r.writePlain("%s\n", ui.OK("✓ Migrations applied"))
}

// MigrateDown rolls back the most recent migration.
func (r *Runner) MigrateDown(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := shared.RollbackMigration(db); err != nil {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}

	return r.writePlain("%s\n", ui.Warn("rolled back most recent migration"))
}

// Tokens lists persisted token records without printing secrets.
func (r *Runner) Tokens(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)

	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := repositories.NewTokenRepository(db).List()
	if err != nil {
		return fmt.Errorf("failed to list token records: %w", err)
	}

	if cmd.Bool("json") {
		type entry struct {
			UserID      string    `json:"user_id"`
			DisplayName string    `json:"display_name,omitempty"`
			UpdatedAt   time.Time `json:"updated_at"`
		}
		entries := make([]entry, 0, len(records))
		for _, record := range records {
			entries = append(entries, entry{record.UserID, record.DisplayName, record.UpdatedAt})
		}
		return r.writeJSON(entries, true)
	}

	if len(records) == 0 {
		return r.writePlain("%s\n", ui.Help("no token records yet"))
	}

	for _, record := range records {
		name := record.DisplayName
		if name == "" {
			name = "-"
		}
		r.writePlain("%s\t%s\t%s\n", record.UserID, name, record.UpdatedAt.Format(time.RFC3339))
	}
	return nil
}

// ConfigInit writes the embedded config template.
func (r *Runner) ConfigInit(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("path")
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	return r.writePlain("%s\n", ui.OK("✓ Config template written to "+path))
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

	if _, err := r.output.Write(append(output, '\n')); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
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
