package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/maloquacious/schemactl/internal/config"
	"github.com/maloquacious/schemactl/internal/report"
	"github.com/maloquacious/schemactl/internal/store"
)

func newBackupCmd(a *app) *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a timestamped copy of the database, or list existing copies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.RequireDB(); err != nil {
				return err
			}

			if list {
				backups, err := store.ListBackups(a.cfg.BackupDir, a.cfg.DB)
				if err != nil {
					return err
				}
				return report.WriteBackups(cmd.OutOrStdout(), a.format, backups, time.Now())
			}

			ctx := cmd.Context()
			st, err := a.openStore(ctx, "")
			if err != nil {
				return err
			}
			defer st.Close()

			b, err := a.takeBackup(ctx, st)
			if err != nil {
				return err
			}
			return report.WriteBackups(cmd.OutOrStdout(), a.format, []store.Backup{b}, time.Now())
		},
	}
	cmd.Flags().String(config.KeyBackupDir, "", "directory for backups (default next to the database)")
	cmd.Flags().BoolVar(&list, "list", false, "list existing backups, newest first")
	return cmd
}
