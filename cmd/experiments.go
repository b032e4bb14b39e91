package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-mlconsole/cmd/config"
)

func NewExperimentsCmd(rt *config.Runtime) *cobra.Command {
	var (
		jsonOutput     bool
		includeDeleted bool
	)

	cmd := &cobra.Command{
		Use:   "experiments",
		Short: "List experiments on the MLflow tracking server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			exps, err := rt.MLflow().SearchExperiments(cmd.Context())
			if err != nil {
				return err
			}

			shown := exps[:0]
			for _, e := range exps {
				if includeDeleted || !e.IsDeleted() {
					shown = append(shown, e)
				}
			}

			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), shown)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSTAGE\tTAGS\tARTIFACTS")
			for _, e := range shown {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", e.ID, e.Name, title.String(e.LifecycleStage), len(e.Tags), e.ArtifactLocation)
			}
			if err := w.Flush(); err != nil {
				fmt.Fprintln(os.Stderr, err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	cmd.Flags().BoolVar(&includeDeleted, "deleted", false, "Include deleted experiments")
	return cmd
}
