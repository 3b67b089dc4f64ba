package cli

import (
	"github.com/spf13/cobra"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	Limit int
}

// NewListCommand creates the list command, which scans a collection index.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{}

	cmd := &cobra.Command{
		Use:   "list <collection>",
		Short: "List the ids in a collection index",
		Long: `Scan a collection index incrementally and print every id once. Order
is unspecified.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := connect(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer s.Close()

			x, err := s.client.Index(args[0])
			if err != nil {
				return s.out.Fail("invalid collection", err)
			}

			view := listView{Collection: x.Collection(), IDs: []string{}}
			for e, err := range x.All(cmd.Context()) {
				if err != nil {
					return s.out.Fail("scan failed", err)
				}
				view.IDs = append(view.IDs, e.ID())
				if opts.Limit > 0 && len(view.IDs) >= opts.Limit {
					break
				}
			}
			s.logger.Debug("scanned index", "collection", x.Collection(), "ids", len(view.IDs))
			return s.out.Success(view)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "stop after this many ids (0 for all)")

	return cmd
}

// NewCountCommand creates the count command.
func NewCountCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "count <collection>",
		Short: "Print the number of entities in a collection index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := connect(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer s.Close()

			x, err := s.client.Index(args[0])
			if err != nil {
				return s.out.Fail("invalid collection", err)
			}
			n, err := x.Count(cmd.Context())
			if err != nil {
				return s.out.Fail("count failed", err)
			}
			return s.out.Success(countView{Collection: x.Collection(), Count: n})
		},
	}
}
