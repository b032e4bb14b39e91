package cmd

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-mlconsole/cmd/config"
	artifactstui "github.com/mattsolo1/grove-mlconsole/internal/tui/artifacts"
	"github.com/mattsolo1/grove-mlconsole/pkg/mutation"
	"github.com/mattsolo1/grove-mlconsole/pkg/session"
)

// openArtifactView loads the run's tree and reapplies the saved selection and expansion.
func openArtifactView(ctx context.Context, rt *config.Runtime, run string) (*mutation.ArtifactView, error) {
	svc, err := rt.Service(ctx)
	if err != nil {
		return nil, err
	}
	v, err := svc.OpenArtifacts(ctx, rt.User(), run)
	if err != nil {
		return nil, err
	}
	st, err := rt.Sessions().Load(session.KindArtifacts, run)
	if err != nil {
		rt.Logger.WithError(err).Warn("ignoring unreadable session")
		return v, nil
	}
	if err := v.Restore(st.Selected, st.Expanded); err != nil {
		return nil, err
	}
	return v, nil
}

func saveArtifactView(rt *config.Runtime, v *mutation.ArtifactView) error {
	snap := v.Snapshot()
	return rt.Sessions().Save(session.KindArtifacts, v.Owner(), &session.State{
		Selected: snap.Selected,
		Expanded: snap.Expanded,
	})
}

func NewArtifactsCmd(rt *config.Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artifacts",
		Short: "Browse, select and delete run artifacts",
	}

	cmd.AddCommand(newArtifactsListCmd(rt))
	cmd.AddCommand(newArtifactsSelectCmd(rt))
	cmd.AddCommand(newArtifactsExpandCmd(rt))
	cmd.AddCommand(newArtifactsRemoveCmd(rt))
	cmd.AddCommand(newArtifactsBrowseCmd(rt))
	return cmd
}

func newArtifactsListCmd(rt *config.Runtime) *cobra.Command {
	var (
		jsonOutput bool
		showAll    bool
	)

	cmd := &cobra.Command{
		Use:   "ls RUN",
		Short: "Show the artifact tree of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := openArtifactView(cmd.Context(), rt, args[0])
			if err != nil {
				return err
			}
			// Listing repairs the session if IDs vanished since it was saved.
			if err := saveArtifactView(rt, v); err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), v.Snapshot())
			}
			renderTree(cmd.OutOrStdout(), v.Snapshot(), showAll)
			fmt.Fprintf(cmd.OutOrStdout(), "\nSelected: %s\n", v.Summary().Describe())
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	cmd.Flags().BoolVarP(&showAll, "all", "a", false, "Show the contents of collapsed directories")
	return cmd
}

func newArtifactsSelectCmd(rt *config.Runtime) *cobra.Command {
	var (
		cascade  bool
		deselect bool
		all      bool
		none     bool
	)

	cmd := &cobra.Command{
		Use:   "select RUN [IDS...]",
		Short: "Select or deselect artifacts",
		Long: `Change the selection of a run's artifacts. The selection is kept between invocations.

Examples:
  mlc artifacts select RUN model --cascade        # Select a directory and its contents
  mlc artifacts select RUN metrics.json --deselect
  mlc artifacts select RUN --all                  # Select everything
  mlc artifacts select RUN --none                 # Clear the selection`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all && none {
				return fmt.Errorf("--all and --none are mutually exclusive")
			}
			if !all && !none && len(args) < 2 {
				return fmt.Errorf("specify artifact IDs or use --all/--none")
			}

			v, err := openArtifactView(cmd.Context(), rt, args[0])
			if err != nil {
				return err
			}

			switch {
			case all:
				err = v.SelectAll(true)
			case none:
				err = v.SelectAll(false)
			default:
				for _, id := range args[1:] {
					if err = v.SetSelected(id, !deselect, cascade); err != nil {
						break
					}
				}
			}
			if err != nil {
				return err
			}

			if err := saveArtifactView(rt, v); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Selected: %s\n", v.Summary().Describe())
			return nil
		},
	}

	cmd.Flags().BoolVarP(&cascade, "cascade", "r", false, "Apply to every descendant of a directory")
	cmd.Flags().BoolVar(&deselect, "deselect", false, "Remove from the selection instead of adding")
	cmd.Flags().BoolVar(&all, "all", false, "Select every artifact")
	cmd.Flags().BoolVar(&none, "none", false, "Clear the selection")
	return cmd
}

func newArtifactsExpandCmd(rt *config.Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "expand RUN DIR...",
		Short: "Toggle the expansion of directories in the listing",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := openArtifactView(cmd.Context(), rt, args[0])
			if err != nil {
				return err
			}
			for _, id := range args[1:] {
				v.ToggleExpand(id)
			}
			if err := saveArtifactView(rt, v); err != nil {
				return err
			}
			renderTree(cmd.OutOrStdout(), v.Snapshot(), false)
			return nil
		},
	}
}

func newArtifactsRemoveCmd(rt *config.Runtime) *cobra.Command {
	var (
		dryRun bool
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "rm RUN",
		Short: "Delete the selected artifacts",
		Long: `Delete the selected artifacts of a run from the artifact store.

The selection is only cleared once the store confirms the deletion. If the store
rejects it, nothing changes locally and the command can be retried.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			run := args[0]
			out := cmd.OutOrStdout()

			v, err := openArtifactView(ctx, rt, run)
			if err != nil {
				return err
			}
			// Dangling IDs are dropped by the summary, so persist the repaired selection.
			summary := v.Summary()
			if err := saveArtifactView(rt, v); err != nil {
				return err
			}

			if summary.Total() == 0 {
				fmt.Fprintln(out, "Nothing selected")
				return nil
			}

			if dryRun {
				fmt.Fprintln(out, "Would delete:")
				for _, n := range summary.Nodes {
					fmt.Fprintf(out, "  %s\n", n.ID)
				}
				return nil
			}

			if !force && !confirm(cmd.InOrStdin(), out, fmt.Sprintf("Delete %s?", summary.Describe())) {
				fmt.Fprintln(out, "Cancelled")
				return nil
			}

			svc, err := rt.Service(ctx)
			if err != nil {
				return err
			}
			res, err := svc.DeleteSelectedArtifacts(ctx, rt.User(), run)
			if err != nil {
				return err
			}
			if err := saveArtifactView(rt, v); err != nil {
				return err
			}

			fmt.Fprintf(out, "Deleted %d items\n", res.Removed)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be deleted without doing it")
	cmd.Flags().BoolVar(&force, "force", false, "Skip confirmation prompt")
	return cmd
}

func newArtifactsBrowseCmd(rt *config.Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "browse RUN",
		Short: "Browse, select and delete artifacts interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			v, err := openArtifactView(ctx, rt, args[0])
			if err != nil {
				return err
			}
			svc, err := rt.Service(ctx)
			if err != nil {
				return err
			}

			model := artifactstui.New(ctx, svc, rt.User(), v)
			p := tea.NewProgram(model, tea.WithAltScreen())
			final, err := p.Run()
			if err != nil {
				return fmt.Errorf("error running TUI: %w", err)
			}

			// Keep the selection for later invocations of select and rm.
			if m, ok := final.(artifactstui.Model); ok {
				v = m.Artifacts()
			}
			return saveArtifactView(rt, v)
		},
	}
}
