package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/vstore/internal/journal"
	"github.com/roach88/vstore/internal/store"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	JournalPath string
	Count       int
	Timeout     time.Duration
}

// NewWatchCommand creates the watch command, which follows a collection's
// change channel and optionally records it to a journal.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{}

	cmd := &cobra.Command{
		Use:   "watch <collection>",
		Short: "Print changes published for a collection",
		Long: `Subscribe to a collection's change channel and print every change as it
arrives. With --journal each message is also appended to a SQLite journal
that the journal command can read back.

Runs until interrupted, until --count changes were seen, or until --timeout
elapses.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, rootOpts, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.JournalPath, "journal", "j", "", "append changes to this SQLite journal (default journal.path from config)")
	cmd.Flags().IntVarP(&opts.Count, "count", "n", 0, "exit after this many changes (0 for no limit)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "exit after this long (0 for no limit)")

	return cmd
}

func runWatch(cmd *cobra.Command, rootOpts *RootOptions, opts *WatchOptions, collection string) error {
	s, err := connect(cmd, rootOpts)
	if err != nil {
		return err
	}
	defer s.Close()

	if _, err := s.client.Index(collection); err != nil {
		return s.out.Fail("invalid collection", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	w := &watcher{
		ctx:        ctx,
		collection: collection,
		limit:      opts.Count,
		out:        s.out,
		logger:     s.logger,
		done:       make(chan struct{}),
	}
	journalPath := opts.JournalPath
	if journalPath == "" {
		journalPath = s.cfg.Journal.Path
	}
	if journalPath != "" {
		j, err := journal.Open(journalPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer j.Close()
		w.journal = j
	}

	channel := store.ChangeChannel(collection)
	sub, err := s.client.Subscribe(ctx, channel, w.handle)
	if err != nil {
		return s.out.Fail("subscribe failed", err)
	}
	s.logger.Debug("watching", "channel", channel, "journal", journalPath)

	select {
	case <-ctx.Done():
	case <-w.done:
	}
	if err := sub.Close(); err != nil {
		s.logger.Warn("failed to close subscription", "channel", channel, "error", err)
	}

	seen, werr := w.result()
	s.out.VerboseLog("%d changes seen on %s", seen, channel)
	if werr != nil {
		return WrapExitError(ExitFailure, "watch failed", werr)
	}
	return nil
}

// watcher handles messages on the subscription's listener goroutine.
type watcher struct {
	ctx        context.Context
	collection string
	limit      int
	journal    *journal.Journal
	out        *OutputFormatter
	logger     *slog.Logger

	mu   sync.Mutex
	seen int
	err  error
	once sync.Once
	done chan struct{}
}

func (w *watcher) handle(channel, message string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.finished() {
		return
	}

	changes, err := store.ParseChanges(w.collection, []byte(message))
	if err != nil {
		w.logger.Warn("skipping malformed change message", "channel", channel, "error", err)
		return
	}

	var seqs []int64
	if w.journal != nil {
		seqs, err = w.journal.AppendMessage(w.ctx, w.collection, []byte(message))
		if err != nil {
			w.err = fmt.Errorf("journal: %w", err)
			w.once.Do(func() { close(w.done) })
			return
		}
	}

	for i, ch := range changes {
		view := newChangeView(ch)
		if seqs != nil {
			view.Seq = seqs[i]
		}
		if err := w.out.Success(view); err != nil {
			w.logger.Warn("failed to write change", "error", err)
		}
		w.seen++
		if w.finished() {
			w.once.Do(func() { close(w.done) })
			return
		}
	}
}

func (w *watcher) finished() bool {
	return w.err != nil || (w.limit > 0 && w.seen >= w.limit)
}

func (w *watcher) result() (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seen, w.err
}
