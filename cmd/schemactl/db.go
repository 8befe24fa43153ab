package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/maloquacious/schemactl/internal/config"
	"github.com/maloquacious/schemactl/internal/manifest"
	"github.com/maloquacious/schemactl/internal/report"
	"github.com/maloquacious/schemactl/internal/schema"
	"github.com/maloquacious/schemactl/internal/store"
)

func newDBInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the schema_migrations bookkeeping table in an existing database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			st, err := a.openStore(ctx, "")
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.InitSchema(ctx); err != nil {
				return err
			}
			a.log.Info("initialized bookkeeping in %s", a.cfg.DB)
			return nil
		},
	}
}

func newDBVerifyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify database integrity, recorded version and pending changes",
		Long: `Verify runs SQLite's integrity check and reports the bookkeeping state.
With a manifest it also compares the recorded version and lists any columns
or indexes reconcile would still add. Nothing is modified.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var m *manifest.Manifest
			if a.cfg.Manifest != "" {
				var err error
				if m, err = a.loadManifest(); err != nil {
					return err
				}
			}
			expected := ""
			if m != nil {
				expected = m.Version
			}

			st, err := a.openStore(ctx, expected)
			if err != nil {
				return err
			}
			defer st.Close()

			state, err := st.CheckState(ctx)
			if err != nil {
				return err
			}
			status := report.Status{
				Database:        a.cfg.DB,
				State:           state.String(),
				ExpectedVersion: expected,
			}
			if state != store.StateUninitialized {
				if status.RecordedVersion, err = st.GetSchemaVersion(ctx); err != nil {
					return err
				}
			}
			if status.Problems, err = st.IntegrityCheck(ctx); err != nil {
				return err
			}

			var results []*schema.Result
			if m != nil {
				if results, err = schema.PlanAll(ctx, st, m.Tables); err != nil {
					return err
				}
			}
			if err := report.WriteStatus(cmd.OutOrStdout(), a.format, status, results); err != nil {
				return err
			}

			var failures []string
			if len(status.Problems) > 0 {
				failures = append(failures, fmt.Sprintf("%d integrity problems", len(status.Problems)))
			}
			// a manifest without a version has nothing to compare the record with
			if m != nil && m.Version != "" && state != store.StateReady {
				failures = append(failures, "state is "+state.String())
			}
			if n := report.Pending(results); n > 0 {
				failures = append(failures, fmt.Sprintf("%d items pending", n))
			}
			if err := schema.Errors(results); err != nil {
				failures = append(failures, err.Error())
			}
			if len(failures) > 0 {
				return fmt.Errorf("verify failed: %s", strings.Join(failures, ", "))
			}
			a.log.Info("%s verified", a.cfg.DB)
			return nil
		},
	}
	cmd.Flags().String(config.KeyManifest, "", "path to the schema manifest (YAML); enables version and pending checks")
	return cmd
}
