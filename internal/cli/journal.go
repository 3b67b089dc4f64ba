package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/vstore/internal/journal"
)

// JournalOptions holds flags for the journal command.
type JournalOptions struct {
	Collection string
	Entity     string
	History    bool
	Since      int64
	Limit      int
}

// NewJournalCommand creates the journal command for reading a change
// journal recorded by watch.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{}

	cmd := &cobra.Command{
		Use:   "journal [path]",
		Short: "Read a recorded change journal",
		Long: `Print the changes recorded in a journal, in arrival order. Without a
path the journal.path config setting is used.

With --collection and --entity the entity's state is reconstructed by
replaying its changes; add --history to print the changes instead.`,
		Example: `  vstore journal changes.db --since 100 --limit 20
  vstore journal changes.db --collection users --entity u1`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runJournal(cmd, rootOpts, opts, args[0])
			}
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			if cfg.Journal.Path == "" {
				return NewExitError(ExitCommandError, "no journal path given and journal.path is not configured")
			}
			return runJournal(cmd, rootOpts, opts, cfg.Journal.Path)
		},
	}

	cmd.Flags().StringVar(&opts.Collection, "collection", "", "collection of the entity to inspect")
	cmd.Flags().StringVar(&opts.Entity, "entity", "", "id of the entity to inspect (requires --collection)")
	cmd.Flags().BoolVar(&opts.History, "history", false, "print the entity's changes instead of its state")
	cmd.Flags().Int64Var(&opts.Since, "since", 0, "only changes with a sequence number above this")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "maximum number of changes (0 for all)")

	return cmd
}

func runJournal(cmd *cobra.Command, rootOpts *RootOptions, opts *JournalOptions, path string) error {
	out := NewOutputFormatter(cmd, rootOpts)

	if opts.Entity != "" && opts.Collection == "" {
		return NewExitError(ExitCommandError, "--entity requires --collection")
	}
	if _, err := os.Stat(path); err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("journal not found: %s", path), err)
	}

	j, err := journal.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	ctx := cmd.Context()
	if opts.Entity == "" {
		entries, err := j.ReadSince(ctx, opts.Since, opts.Limit)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to read journal", err)
		}
		view, err := newJournalView(entries)
		if err != nil {
			return WrapExitError(ExitFailure, "corrupt journal entry", err)
		}
		return out.Success(view)
	}

	if opts.History {
		entries, err := j.ReadEntity(ctx, opts.Collection, opts.Entity)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to read journal", err)
		}
		view, err := newJournalView(entries)
		if err != nil {
			return WrapExitError(ExitFailure, "corrupt journal entry", err)
		}
		return out.Success(view)
	}

	state, err := j.State(ctx, opts.Collection, opts.Entity)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to replay entity", err)
	}
	out.VerboseLog("replayed %s:%s up to #%d", opts.Collection, opts.Entity, state.LastSeq)
	return out.Success(newStateView(state))
}
