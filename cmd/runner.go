package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/zester/internal/models"
	"github.com/desertthunder/zester/internal/repositories"
	"github.com/desertthunder/zester/internal/services"
	"github.com/desertthunder/zester/internal/shared"
	"github.com/desertthunder/zester/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The transport and archive index are created on first use so that commands which need neither
// (setup config, api get without credentials) never touch them.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
	prompter   *shared.Prompter
	transport  services.Transport
	soundcloud *services.SoundCloudService
	db         *sql.DB
	tracks     *repositories.ArchivedTrackRepository
	runs       *repositories.RunRepository
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	Prompter   *shared.Prompter
	// Transport replaces the SoundCloud client, for tests.
	Transport services.Transport
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
	if opts.Prompter == nil {
		opts.Prompter = shared.NewPrompter()
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		prompter:   opts.Prompter,
		transport:  opts.Transport,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, fetchCommand, downloadCommand, runCommand, archiveCommand, apiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before loads the configuration named by --config. A missing file is not an error: defaults and
// environment overrides apply so that `setup config` can create it.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	r.configPath = cmd.String("config")

	config, err := shared.LoadConfig(r.configPath)
	switch {
	case errors.Is(err, shared.ErrMissingConfig):
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
		config = shared.DefaultConfig()
		if err := shared.ApplyEnv(config); err != nil {
			return ctx, err
		}
	case err != nil:
		return ctx, err
	}
	r.config = config

	level, err := shared.ParseLogLevel(config.Log.Level)
	if err != nil {
		return ctx, err
	}
	shared.SetLogLevel(r.logger, level)
	return ctx, nil
}

// SetLogger replaces the logger, e.g. with a file logger while the TUI owns the terminal.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// Close releases the archive index.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db, r.tracks, r.runs = nil, nil, nil
	return err
}

func (r *Runner) credentials() models.Credentials {
	return models.Credentials{
		OAuthToken: r.config.Credentials.OAuthToken,
		ClientID:   r.config.Credentials.ClientID,
	}
}

// service returns the SoundCloud client, creating it from the configured credentials.
func (r *Runner) service() (*services.SoundCloudService, error) {
	if r.soundcloud != nil {
		return r.soundcloud, nil
	}

	sc, err := services.NewSoundCloudService(r.credentials(), services.SoundCloudOptions{
		BaseURL:           r.config.API.BaseURL,
		RequestsPerSecond: r.config.API.RequestsPerSecond,
		Timeout:           r.config.API.Timeout,
		PageSize:          r.config.API.PageSize,
	})
	if err != nil {
		return nil, err
	}
	r.soundcloud = sc
	return sc, nil
}

func (r *Runner) remote() (services.Transport, error) {
	if r.transport != nil {
		return r.transport, nil
	}
	if err := r.config.Validate(); err != nil {
		return nil, err
	}
	sc, err := r.service()
	if err != nil {
		return nil, err
	}
	r.transport = sc
	return sc, nil
}

// engine builds an archive engine from config. workers overrides archive.workers when positive.
func (r *Runner) engine(workers int) (*tasks.ArchiveEngine, error) {
	transport, err := r.remote()
	if err != nil {
		return nil, err
	}

	if workers <= 0 {
		workers = r.config.Archive.Workers
	}
	return tasks.NewArchiveEngine(transport, tasks.Options{
		Retry: tasks.RetryPolicy{
			Delay:      r.config.Archive.RetryDelay,
			MaxRetries: r.config.Archive.MaxRetries,
		},
		Pacing:  r.config.Archive.PacingDelay,
		Workers: workers,
	}), nil
}

// index opens the archive index. Failures are logged and leave the index disabled; it is bookkeeping only.
func (r *Runner) index() bool {
	if r.db != nil {
		return true
	}

	db, err := shared.OpenArchiveIndex(r.config.Database)
	if err != nil {
		r.logger.Warn("archive index unavailable", "path", r.config.Database.Path, "error", err)
		return false
	}
	r.db = db
	r.tracks = repositories.NewArchivedTrackRepository(db)
	r.runs = repositories.NewRunRepository(db)
	return true
}

// recorder returns the archive index recorder, or nil when the index is unavailable.
func (r *Runner) recorder() *repositories.ArchiveRecorder {
	if !r.index() {
		return nil
	}
	return repositories.NewArchiveRecorder(r.tracks)
}

// runCounts is what a phase reports to the run history.
type runCounts struct {
	total, done, failed int
}

// record runs fn as a run of the given kind, storing its outcome in the archive index when available.
func (r *Runner) record(kind models.RunKind, fn func() (runCounts, error)) error {
	logger := shared.WithLogger(r.logger, "run", kind)

	var run *models.ArchiveRun
	if r.index() {
		started, err := r.runs.Start(kind)
		if err != nil {
			logger.Warn("failed to record run", "error", err)
		}
		run = started
	}

	counts, err := fn()

	if run != nil {
		if ferr := r.runs.Finish(run, counts.total, counts.done, counts.failed, err); ferr != nil {
			logger.Warn("failed to record run outcome", "error", ferr)
		}
	}
	logger.Debug("run finished", "total", counts.total, "done", counts.done, "failed", counts.failed)
	return err
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
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
