package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/maloquacious/schemactl/internal/config"
	"github.com/maloquacious/schemactl/internal/manifest"
	"github.com/maloquacious/schemactl/internal/report"
	"github.com/maloquacious/schemactl/internal/schema"
	"github.com/maloquacious/schemactl/internal/store"
)

func newReconcileCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Add the columns and indexes the manifest lists but the database lacks",
		Long: `Reconcile brings every table named in the manifest up to date by adding
missing columns and indexes. Existing columns, data and tables are never
modified or removed, so running it again is always safe.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runReconcile(cmd)
		},
	}
	cmd.Flags().String(config.KeyManifest, "", "path to the schema manifest (YAML)")
	cmd.Flags().Bool(config.KeyBackup, false, "back up the database before altering it")
	cmd.Flags().String(config.KeyBackupDir, "", "directory for backups (default next to the database)")
	cmd.Flags().Bool(config.KeyStopOnError, false, "stop at the first failed column and skip the rest")
	cmd.Flags().Bool(config.KeyRecord, false, "record the manifest version in the database after a clean run")
	return cmd
}

func (a *app) runReconcile(cmd *cobra.Command) error {
	ctx := cmd.Context()

	m, err := a.loadManifest()
	if err != nil {
		return err
	}
	st, err := a.openStore(ctx, m.Version)
	if err != nil {
		return err
	}
	defer st.Close()

	if a.cfg.Backup {
		if _, err := a.takeBackup(ctx, st); err != nil {
			return err
		}
	}

	results, runErr := schema.Run(ctx, st, m.Tables, schema.Options{
		StopOnError: a.cfg.StopOnError,
		Logger:      a.log,
	})
	if err := report.WriteResults(cmd.OutOrStdout(), a.format, results); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}

	summary := report.Summarize(results)
	if err := schema.Errors(results); err != nil {
		a.log.Debug("failures: %v", err)
		return fmt.Errorf("reconcile finished with failures: %s", summary)
	}
	a.log.Info("reconcile complete: %s", summary)

	if a.cfg.Record {
		return a.recordVersion(ctx, st, m.Version)
	}
	return nil
}

func newPlanCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan [table...]",
		Short: "Show what reconcile would add without changing the database",
		Long: `Plan compares the manifest with the live database and lists every column
and index as present, missing or failed. Naming tables limits the plan to
those manifest entries. Nothing is modified.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			m, err := a.loadManifest()
			if err != nil {
				return err
			}
			tables, err := selectTables(m, args)
			if err != nil {
				return err
			}
			st, err := a.openStore(ctx, m.Version)
			if err != nil {
				return err
			}
			defer st.Close()

			results, planErr := schema.PlanAll(ctx, st, tables)
			if err := report.WriteResults(cmd.OutOrStdout(), a.format, results); err != nil {
				return err
			}
			if planErr != nil {
				return planErr
			}
			if err := schema.Errors(results); err != nil {
				a.log.Debug("failures: %v", err)
				return fmt.Errorf("plan found items reconcile cannot apply: %s", report.Summarize(results))
			}
			return nil
		},
	}
	cmd.Flags().String(config.KeyManifest, "", "path to the schema manifest (YAML)")
	return cmd
}

// selectTables returns the manifest entries named in names, in the order
// given, or every entry when names is empty.
func selectTables(m *manifest.Manifest, names []string) ([]schema.TableSpec, error) {
	if len(names) == 0 {
		return m.Tables, nil
	}
	tables := make([]schema.TableSpec, 0, len(names))
	for _, name := range names {
		spec, ok := m.Table(name)
		if !ok {
			return nil, fmt.Errorf("table %q is not in the manifest", name)
		}
		tables = append(tables, spec)
	}
	return tables, nil
}

// takeBackup copies the database into the configured backup directory.
func (a *app) takeBackup(ctx context.Context, st store.Store) (store.Backup, error) {
	started := time.Now()
	if a.cfg.BackupDir != "" {
		if err := os.MkdirAll(a.cfg.BackupDir, 0755); err != nil {
			return store.Backup{}, fmt.Errorf("failed to create backup directory: %w", err)
		}
	}
	path, err := store.NextBackupPath(a.cfg.BackupDir, st.Path(), started)
	if err != nil {
		return store.Backup{}, err
	}
	if err := st.Backup(ctx, path); err != nil {
		return store.Backup{}, err
	}

	b := store.Backup{Path: path, TakenAt: started}
	if info, err := os.Stat(path); err == nil {
		b.Size = info.Size()
	}
	a.log.Info("backed up %s to %s (%s in %s)", st.Path(), path, humanize.Bytes(uint64(b.Size)), time.Since(started).Round(time.Millisecond))
	return b, nil
}

// recordVersion stamps the database with version once a run left nothing behind.
func (a *app) recordVersion(ctx context.Context, st store.Store, version string) error {
	if version == "" {
		a.log.Warn("manifest has no version, nothing to record")
		return nil
	}
	if err := st.InitSchema(ctx); err != nil {
		return err
	}
	if err := st.RecordVersion(ctx, version); err != nil {
		return err
	}
	a.log.Info("recorded schema version %s", version)
	return nil
}
