package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewGetCommand creates the get command for reading an entity.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <collection> <id> [field...]",
		Short: "Print an entity's version and fields",
		Long: `Read an entity hash. With no field names every field is printed;
otherwise only the named fields are read, and absent ones are listed.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := connect(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer s.Close()

			e, err := s.entity(args[0], args[1])
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			view := entityView{Key: e.Key(), Fields: map[string]json.RawMessage{}}
			if view.Exists, err = e.Exists(ctx); err != nil {
				return s.out.Fail("failed to read entity", err)
			}
			if !view.Exists {
				if err := s.out.Success(view); err != nil {
					return err
				}
				return NewExitError(ExitFailure, fmt.Sprintf("%s does not exist", e.Key()))
			}
			if view.Version, err = e.Version(ctx); err != nil {
				return s.out.Fail("failed to read version", err)
			}

			if fields := args[2:]; len(fields) > 0 {
				values, err := e.GetMany(ctx, fields...)
				if err != nil {
					return s.out.Fail("failed to read fields", err)
				}
				for _, v := range values {
					if raw := rawValue(v); raw != nil {
						view.Fields[v.Field()] = raw
					} else {
						view.Missing = append(view.Missing, v.Field())
					}
				}
			} else {
				all, err := e.GetAll(ctx)
				if err != nil {
					return s.out.Fail("failed to read fields", err)
				}
				for name, v := range all {
					view.Fields[name] = rawValue(v)
				}
			}
			return s.out.Success(view)
		},
	}
}

// NewSetCommand creates the set command for checked field updates.
func NewSetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <collection> <id> field=value...",
		Short: "Set fields with a checked mutation",
		Long: `Write fields atomically. The version is bumped and a change message
published only if at least one value differs from what is stored.

Values are parsed as JSON; anything that is not valid JSON is stored as a
string, so name=alice and name='"alice"' are equivalent.`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			pairs, err := parseAssignments(args[2:])
			if err != nil {
				return err
			}

			s, err := connect(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer s.Close()

			e, err := s.entity(args[0], args[1])
			if err != nil {
				return err
			}
			res, err := e.CheckedSet(cmd.Context(), pairs...)
			if err != nil {
				return s.out.Fail("set failed", err)
			}
			return s.out.Success(newMutationView(e, res))
		},
	}
}

// NewClearCommand creates the clear command for checked field removal.
func NewClearCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <collection> <id> field...",
		Short: "Remove fields with a checked mutation",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := connect(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer s.Close()

			e, err := s.entity(args[0], args[1])
			if err != nil {
				return err
			}
			res, err := e.CheckedClear(cmd.Context(), args[2:]...)
			if err != nil {
				return s.out.Fail("clear failed", err)
			}
			return s.out.Success(newMutationView(e, res))
		},
	}
}

// NewTouchCommand creates the touch command, which bumps an entity's
// version without changing fields.
func NewTouchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "touch <collection> <id>",
		Short: "Bump an entity's version and publish it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := connect(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer s.Close()

			e, err := s.entity(args[0], args[1])
			if err != nil {
				return err
			}
			mod, err := e.CheckedTouch(cmd.Context())
			if err != nil {
				return s.out.Fail("touch failed", err)
			}
			view := mutationView{
				Key:      e.Key(),
				Modified: true,
				Inserted: mod.Inserted,
				Version:  mod.Version,
			}
			if p, ok := mod.Payload.Get(); ok {
				view.Payload = &p
			}
			return s.out.Success(view)
		},
	}
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <collection> <id>",
		Short: "Delete an entity and publish its removal",
		Long: `Remove the entity hash and its index entry. Exits with status 1 if the
entity did not exist.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := connect(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer s.Close()

			e, err := s.entity(args[0], args[1])
			if err != nil {
				return err
			}
			deleted, err := e.CheckedDelete(cmd.Context())
			if err != nil {
				return s.out.Fail("delete failed", err)
			}
			if err := s.out.Success(deleteView{Key: e.Key(), Deleted: deleted}); err != nil {
				return err
			}
			if !deleted {
				return NewExitError(ExitFailure, fmt.Sprintf("%s does not exist", e.Key()))
			}
			return nil
		},
	}
}

// parseAssignments turns name=value arguments into a field/value list.
func parseAssignments(args []string) ([]any, error) {
	pairs := make([]any, 0, 2*len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, NewExitError(ExitCommandError,
				fmt.Sprintf("invalid assignment %q: expected field=value", arg))
		}
		pairs = append(pairs, name, parseValue(value))
	}
	return pairs, nil
}

func parseValue(s string) any {
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	return s
}
