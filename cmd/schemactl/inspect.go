package main

import (
	"github.com/spf13/cobra"

	"github.com/maloquacious/schemactl/internal/report"
	"github.com/maloquacious/schemactl/internal/schema"
)

func newInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [table...]",
		Short: "List tables, or show the live columns and indexes of the named tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			st, err := a.openStore(ctx, "")
			if err != nil {
				return err
			}
			defer st.Close()

			if len(args) == 0 {
				tables, err := st.Tables(ctx)
				if err != nil {
					return err
				}
				return report.WriteList(cmd.OutOrStdout(), a.format, "Table", tables)
			}

			for _, name := range args {
				t, err := schema.Inspect(ctx, st, name)
				if err != nil {
					return err
				}
				if err := report.WriteSchema(cmd.OutOrStdout(), a.format, t); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
