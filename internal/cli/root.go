package cli

import (
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/roach88/vstore/internal/config"
	"github.com/roach88/vstore/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	Addr       string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the vstore CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "vstore",
		Short: "vstore - versioned entities in Redis",
		Long: "Inspect and mutate versioned Redis entities, follow their change " +
			"channels and replay recorded changes.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Addr, "addr", "", "Redis address (overrides config and environment)")

	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewSetCommand(opts))
	cmd.AddCommand(NewClearCommand(opts))
	cmd.AddCommand(NewTouchCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewCountCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewJournalCommand(opts))
	cmd.AddCommand(NewLatchCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// loadConfig resolves settings from the config file, the environment and
// flags, in increasing precedence.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return cfg, WrapExitError(ExitCommandError, "failed to load config", err)
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, WrapExitError(ExitCommandError, "invalid environment", err)
	}
	if opts.Addr != "" {
		cfg.Redis.Addr = opts.Addr
	}
	if err := cfg.Validate(); err != nil {
		return cfg, WrapExitError(ExitCommandError, "invalid config", err)
	}
	return cfg, nil
}

// session is the per-command connection state.
type session struct {
	cfg    config.Config
	logger *slog.Logger
	rdb    *redis.Client
	client *store.Client
	out    *OutputFormatter
}

// connect loads settings, opens a Redis connection and checks that the
// server answers.
func connect(cmd *cobra.Command, opts *RootOptions) (*session, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	logger, err := cfg.NewLogger(cmd.ErrOrStderr(), opts.Verbose)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid log settings", err)
	}

	rdb := redis.NewClient(cfg.RedisOptions())
	if err := rdb.Ping(cmd.Context()).Err(); err != nil {
		_ = rdb.Close()
		return nil, WrapExitError(ExitCommandError,
			fmt.Sprintf("cannot reach redis at %s", cfg.Redis.Addr), err)
	}
	logger.Debug("connected", "addr", cfg.Redis.Addr, "db", cfg.Redis.DB)

	return &session{
		cfg:    cfg,
		logger: logger,
		rdb:    rdb,
		client: store.New(rdb, cfg.ClientOptions(logger)...),
		out:    NewOutputFormatter(cmd, opts),
	}, nil
}

func (s *session) Close() {
	if err := s.client.Close(); err != nil {
		s.logger.Warn("failed to close store client", "error", err)
	}
	if err := s.rdb.Close(); err != nil {
		s.logger.Warn("failed to close redis connection", "error", err)
	}
}

// entity resolves a collection and id, reporting bad names as command
// errors.
func (s *session) entity(collection, id string) (*store.Entity, error) {
	e, err := s.client.Entity(collection, id)
	if err != nil {
		return nil, s.out.Fail("invalid entity", err)
	}
	return e, nil
}
