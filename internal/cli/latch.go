package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewLatchCommand creates the latch command group.
func NewLatchCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "latch",
		Short: "Manage countdown latches",
		Long: `A latch releases its stored values to exactly one caller: the one whose
decrement brings the count to zero. The latch is deleted on release.`,
	}

	cmd.AddCommand(newLatchInitCommand(rootOpts))
	cmd.AddCommand(newLatchDecrementCommand(rootOpts))
	cmd.AddCommand(newLatchRemainingCommand(rootOpts))

	return cmd
}

func newLatchInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init <id> <count> [field=value...]",
		Short: "Create or replace a latch",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return WrapExitError(ExitCommandError, fmt.Sprintf("invalid count %q", args[1]), err)
			}
			pairs, err := parseAssignments(args[2:])
			if err != nil {
				return err
			}

			s, err := connect(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer s.Close()

			l, err := s.client.Latch(args[0])
			if err != nil {
				return s.out.Fail("invalid latch", err)
			}
			if err := l.Init(cmd.Context(), count, pairs...); err != nil {
				return s.out.Fail("latch init failed", err)
			}
			return s.out.Success(latchView{ID: l.ID(), Remaining: &count})
		},
	}
}

func newLatchDecrementCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "decrement <id> [field...]",
		Short: "Decrement a latch, printing the named values if it releases",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := connect(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer s.Close()

			l, err := s.client.Latch(args[0])
			if err != nil {
				return s.out.Fail("invalid latch", err)
			}
			res, err := l.Decrement(cmd.Context(), args[1:]...)
			if err != nil {
				return s.out.Fail("latch decrement failed", err)
			}

			view := latchView{ID: l.ID()}
			if values, ok := res.Get(); ok {
				view.Released = true
				view.Values = map[string]json.RawMessage{}
				for _, v := range values {
					if raw := rawValue(v); raw != nil {
						view.Values[v.Field()] = raw
					}
				}
			}
			return s.out.Success(view)
		},
	}
}

func newLatchRemainingCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remaining <id>",
		Short: "Print how many decrements a latch still needs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := connect(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer s.Close()

			l, err := s.client.Latch(args[0])
			if err != nil {
				return s.out.Fail("invalid latch", err)
			}
			n, err := l.Remaining(cmd.Context())
			if err != nil {
				return s.out.Fail("latch lookup failed", err)
			}
			return s.out.Success(latchView{ID: l.ID(), Remaining: &n})
		},
	}
}
