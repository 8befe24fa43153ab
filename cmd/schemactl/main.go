package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/maloquacious/semver"
	"github.com/spf13/cobra"

	"github.com/maloquacious/schemactl/internal/config"
	"github.com/maloquacious/schemactl/internal/logger"
	"github.com/maloquacious/schemactl/internal/manifest"
	"github.com/maloquacious/schemactl/internal/report"
	"github.com/maloquacious/schemactl/internal/store"
	"github.com/maloquacious/schemactl/internal/store/sqlite"
)

var (
	version   = semver.Version{Minor: 1, PreRelease: "alpha", Build: semver.Commit()}
	buildDate = ""
)

// app carries the state resolved before any command runs.
type app struct {
	cfg    *config.Config
	log    *logger.ZeroLogger
	format report.Format
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "schemactl",
		Short:         "Additive schema reconciler for SQLite stores",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.String(config.KeyConfig, "", "config file (default ./.schemactl.yaml)")
	pf.String(config.KeyDB, "", "path to the SQLite database file")
	pf.StringP(config.KeyOutput, "o", "", "output format: table, json, yaml (default table on a terminal, json otherwise)")
	pf.String(config.KeyLogLevel, "info", "log level: debug, info, warn, error")
	pf.String(config.KeyLogFormat, "auto", "log format: auto, console, json")

	// db command group
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Datastore management commands",
	}
	dbCmd.AddCommand(newDBInitCmd(a), newDBVerifyCmd(a))

	rootCmd.AddCommand(
		newReconcileCmd(a),
		newPlanCmd(a),
		newInspectCmd(a),
		newBackupCmd(a),
		dbCmd,
		newVersionCmd(),
	)
	return rootCmd
}

// setup resolves configuration and builds the logger for this invocation.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	a.cfg = cfg

	a.log = logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: cmd.ErrOrStderr(),
	})

	a.format, err = report.ParseFormat(cfg.Output)
	if err != nil {
		return err
	}
	if cfg.ConfigFile != "" {
		a.log.Debug("using config file %s", cfg.ConfigFile)
	}
	return nil
}

// openStore opens the configured database. It never creates the file.
func (a *app) openStore(ctx context.Context, expectedVersion string) (store.Store, error) {
	if err := a.cfg.RequireDB(); err != nil {
		return nil, err
	}
	st := sqlite.New(a.cfg.DB, expectedVersion)
	if err := st.Open(ctx); err != nil {
		return nil, err
	}
	a.log.Debug("opened %s", a.cfg.DB)
	return st, nil
}

func (a *app) loadManifest() (*manifest.Manifest, error) {
	if err := a.cfg.RequireManifest(); err != nil {
		return nil, err
	}
	m, err := manifest.Load(a.cfg.Manifest)
	if err != nil {
		return nil, err
	}
	a.log.Debug("loaded manifest %s: version %q, %d tables", a.cfg.Manifest, m.Version, len(m.Tables))
	return m, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the schemactl version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if buildDate != "" {
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "schemactl %s (built %s)\n", version.String(), buildDate)
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "schemactl %s\n", version.String())
			return err
		},
	}
}
