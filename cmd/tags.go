package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-mlconsole/cmd/config"
	tagstui "github.com/mattsolo1/grove-mlconsole/internal/tui/tags"
	"github.com/mattsolo1/grove-mlconsole/pkg/mutation"
	"github.com/mattsolo1/grove-mlconsole/pkg/selection"
	"github.com/mattsolo1/grove-mlconsole/pkg/session"
)

func NewTagsCmd(rt *config.Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "View and edit experiment tags",
	}

	cmd.AddCommand(newTagsListCmd(rt))
	cmd.AddCommand(newTagsSetCmd(rt))
	cmd.AddCommand(newTagsSelectCmd(rt))
	cmd.AddCommand(newTagsRemoveCmd(rt))
	cmd.AddCommand(newTagsEditCmd(rt))
	return cmd
}

func newTagsListCmd(rt *config.Runtime) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "ls EXPERIMENT",
		Short: "List the tags of an experiment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := rt.Service(ctx)
			if err != nil {
				return err
			}
			v, err := svc.OpenTags(ctx, rt.User(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), v.Snapshot())
			}

			st, err := rt.Sessions().Load(session.KindTags, args[0])
			if err != nil {
				return err
			}
			renderTags(cmd.OutOrStdout(), v.Rows(), st.RowIndices(v.Rows()))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	return cmd
}

// parseAssignments splits key=value arguments. The key is not validated here so that
// an empty key reaches the commit check and is reported the same way as everywhere else.
func parseAssignments(args []string) ([][2]string, error) {
	out := make([][2]string, 0, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		out = append(out, [2]string{key, value})
	}
	return out, nil
}

// applyEdit opens an edit session on the experiment, runs fn and saves the result.
func applyEdit(cmd *cobra.Command, rt *config.Runtime, exp string, fn func(rows *selection.Rows) error) (*mutation.Result, error) {
	ctx := cmd.Context()
	svc, err := rt.Service(ctx)
	if err != nil {
		return nil, err
	}
	v, err := svc.OpenTags(ctx, rt.User(), exp)
	if err != nil {
		return nil, err
	}
	if err := v.BeginEdit(); err != nil {
		return nil, err
	}
	if err := v.Edit(fn); err != nil {
		_ = v.CancelEdit()
		return nil, err
	}
	return svc.ApplyTagEdits(ctx, rt.User(), exp)
}

func newTagsSetCmd(rt *config.Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "set EXPERIMENT key=value...",
		Short: "Add or update tags",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pairs, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}

			res, err := applyEdit(cmd, rt, args[0], func(rows *selection.Rows) error {
				for _, kv := range pairs {
					index := -1
					for i, row := range rows.Rows() {
						if row.Key == kv[0] {
							index = i
							break
						}
					}
					if index < 0 {
						index = rows.InsertRow(rt.User())
					}
					rows.UpdateRow(index, kv[0], kv[1])
				}
				return nil
			})
			if err != nil {
				return err
			}

			// Row indices may have shifted, so a saved selection no longer applies.
			if err := rt.Sessions().Clear(session.KindTags, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %d tags\n", len(res.Rows))
			return nil
		},
	}
}

func newTagsSelectCmd(rt *config.Runtime) *cobra.Command {
	var (
		deselect bool
		all      bool
		none     bool
	)

	cmd := &cobra.Command{
		Use:   "select EXPERIMENT [INDEX...]",
		Short: "Select tag rows for removal",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			exp := args[0]
			indices, err := parseIndices(args[1:])
			if err != nil {
				return err
			}

			svc, err := rt.Service(ctx)
			if err != nil {
				return err
			}
			v, err := svc.OpenTags(ctx, rt.User(), exp)
			if err != nil {
				return err
			}
			st, err := rt.Sessions().Load(session.KindTags, exp)
			if err != nil {
				return err
			}

			rows := selection.NewRows(v.Rows())
			for _, i := range st.RowIndices(v.Rows()) {
				rows.ToggleRow(i, true)
			}
			switch {
			case all:
				rows.SelectAll(true)
			case none:
				rows.SelectAll(false)
			default:
				for _, i := range indices {
					rows.ToggleRow(i, !deselect)
				}
			}

			st.Rows = session.PinRows(rows.Rows(), rows.Selected())
			if err := rt.Sessions().Save(session.KindTags, exp, st); err != nil {
				return err
			}
			renderTags(cmd.OutOrStdout(), rows.Rows(), rows.Selected())
			return nil
		},
	}

	cmd.Flags().BoolVar(&deselect, "deselect", false, "Remove from the selection instead of adding")
	cmd.Flags().BoolVar(&all, "all", false, "Select every row")
	cmd.Flags().BoolVar(&none, "none", false, "Clear the selection")
	return cmd
}

func parseIndices(args []string) ([]int, error) {
	out := make([]int, 0, len(args))
	for _, a := range args {
		i, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("invalid row index %q", a)
		}
		out = append(out, i)
	}
	return out, nil
}

func newTagsRemoveCmd(rt *config.Runtime) *cobra.Command {
	var (
		indices []int
		keys    []string
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "rm EXPERIMENT",
		Short: "Remove tag rows",
		Long: `Remove tag rows by index, by key, or the rows chosen with "mlc tags select".

Examples:
  mlc tags rm EXP --index 0 --index 2
  mlc tags rm EXP --key task
  mlc tags rm EXP                       # Remove the selected rows`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exp := args[0]
			fromSession := len(indices) == 0 && len(keys) == 0
			st, err := rt.Sessions().Load(session.KindTags, exp)
			if err != nil {
				return err
			}
			if fromSession && len(st.Rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing selected")
				return nil
			}

			if !force && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), "Remove the selected tags?") {
				fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")
				return nil
			}

			var removed, skipped int
			res, err := applyEdit(cmd, rt, exp, func(rows *selection.Rows) error {
				targets := indices
				if fromSession {
					// Rows that changed since they were selected are not removed.
					targets = st.RowIndices(rows.Rows())
					skipped = len(st.Rows) - len(targets)
				}
				for _, i := range targets {
					rows.ToggleRow(i, true)
				}
				for i, row := range rows.Rows() {
					for _, k := range keys {
						if row.Key == k {
							rows.ToggleRow(i, true)
						}
					}
				}
				removed = rows.DeleteSelected()
				if removed == 0 {
					return mutation.ErrNothingSelected
				}
				return nil
			})
			if errors.Is(err, mutation.ErrNothingSelected) && fromSession {
				if clearErr := rt.Sessions().Clear(session.KindTags, exp); clearErr != nil {
					return clearErr
				}
				return fmt.Errorf("every selected row changed since it was selected: %w", err)
			}
			if err != nil {
				return err
			}

			if err := rt.Sessions().Clear(session.KindTags, exp); err != nil {
				return err
			}
			if skipped > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Skipped %d selected rows that changed since they were selected\n", skipped)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d tags, %d remain\n", removed, len(res.Rows))
			return nil
		},
	}

	cmd.Flags().IntSliceVar(&indices, "index", nil, "Row index to remove (repeatable)")
	cmd.Flags().StringSliceVar(&keys, "key", nil, "Tag key to remove (repeatable)")
	cmd.Flags().BoolVar(&force, "force", false, "Skip confirmation prompt")
	return cmd
}

func newTagsEditCmd(rt *config.Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "edit EXPERIMENT",
		Short: "Edit the tags of an experiment interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := rt.Service(ctx)
			if err != nil {
				return err
			}
			v, err := svc.OpenTags(ctx, rt.User(), args[0])
			if err != nil {
				return err
			}

			p := tea.NewProgram(tagstui.New(ctx, svc, rt.User(), v), tea.WithAltScreen())
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("error running TUI: %w", err)
			}

			// Saved rows may have shifted, so a stored row selection no longer applies.
			return rt.Sessions().Clear(session.KindTags, args[0])
		},
	}
}
