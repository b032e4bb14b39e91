package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-mlconsole/cmd/config"
	"github.com/mattsolo1/grove-mlconsole/pkg/permission"
)

func NewPermCmd(rt *config.Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "perm",
		Short: "Manage grants in the permission registry",
		Long: `Manage grants in the sqlite permission registry.

Resources are "run:<id>" for a run's artifacts and "experiment:<id>" for an
experiment's tags. Operations are view, edit, delete and manage. The registry is
only consulted when permissions.backend is "sqlite".`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "grant USER RESOURCE OPERATION",
		Short: "Grant an operation on a resource",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := rt.Registry()
			if err != nil {
				return err
			}
			op := permission.Operation(strings.ToLower(args[2]))
			if err := reg.Grant(cmd.Context(), args[0], args[1], op); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Granted %s on %s to %s\n", op, args[1], args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "revoke USER RESOURCE OPERATION",
		Short: "Revoke an operation on a resource",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := rt.Registry()
			if err != nil {
				return err
			}
			op := permission.Operation(strings.ToLower(args[2]))
			if err := reg.Revoke(cmd.Context(), args[0], args[1], op); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Revoked %s on %s from %s\n", op, args[1], args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show USER RESOURCE",
		Short: "Show the operations and level a user holds on a resource",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := rt.Registry()
			if err != nil {
				return err
			}
			ops, err := reg.Operations(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			level, err := reg.Level(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			names := make([]string, len(ops))
			for i, op := range ops {
				names[i] = string(op)
			}
			if len(names) == 0 {
				names = []string{"(none)"}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Level:      %s\nOperations: %s\n", title.String(level.String()), strings.Join(names, ", "))
			return nil
		},
	})

	return cmd
}
