package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String(KeyConfig, "", "")
	fs.String(KeyDB, "", "")
	fs.String(KeyManifest, "", "")
	fs.Bool(KeyBackup, false, "")
	fs.String(KeyBackupDir, "", "")
	fs.Bool(KeyStopOnError, false, "")
	fs.String(KeyOutput, "", "")
	fs.String(KeyLogLevel, "info", "")
	require.NoError(t, fs.Parse(args))
	return fs
}

// isolate runs the test in an empty directory with no SCHEMACTL_* variables.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	for _, k := range []string{"DB", "MANIFEST", "BACKUP", "BACKUP_DIR", "STOP_ON_ERROR", "RECORD", "OUTPUT", "LOG_LEVEL", "LOG_FORMAT", "CONFIG"} {
		t.Setenv(EnvPrefix+"_"+k, "")
		os.Unsetenv(EnvPrefix + "_" + k)
	}
	return dir
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(testFlags(t))
	require.NoError(t, err)

	assert.Empty(t, cfg.DB, "there is no default database path")
	assert.Empty(t, cfg.ConfigFile)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "auto", cfg.LogFormat)
	assert.False(t, cfg.Backup)
	assert.Error(t, cfg.RequireDB())
	assert.Error(t, cfg.RequireManifest())
}

func TestLoadPrecedence(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".schemactl.yaml"), []byte(
		"db: from-file.db\nmanifest: file.yaml\nbackup-dir: file-backups\nstop-on-error: true\n"), 0644))
	t.Setenv("SCHEMACTL_MANIFEST", "env.yaml")
	t.Setenv("SCHEMACTL_BACKUP_DIR", "env-backups")

	cfg, err := Load(testFlags(t, "--backup-dir", "flag-backups"))
	require.NoError(t, err)

	assert.Equal(t, ".schemactl.yaml", filepath.Base(cfg.ConfigFile))
	assert.Equal(t, "from-file.db", cfg.DB)
	assert.Equal(t, "env.yaml", cfg.Manifest)
	assert.Equal(t, "flag-backups", cfg.BackupDir)
	assert.True(t, cfg.StopOnError)
	assert.NoError(t, cfg.RequireDB())
}

func TestLoadExplicitConfigFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "ops.yaml")
	require.NoError(t, os.WriteFile(path, []byte("db: ops.db\noutput: json\n"), 0644))

	cfg, err := Load(testFlags(t, "--config", path))
	require.NoError(t, err)
	assert.Equal(t, "ops.db", cfg.DB)
	assert.Equal(t, "json", cfg.Output)

	_, err = Load(testFlags(t, "--config", filepath.Join(dir, "missing.yaml")))
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SCHEMACTL_DB=dotenv.db\nSCHEMACTL_RECORD=true\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.local"), []byte("SCHEMACTL_DB=local.db\n"), 0644))
	t.Cleanup(func() {
		os.Unsetenv("SCHEMACTL_DB")
		os.Unsetenv("SCHEMACTL_RECORD")
	})

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "local.db", cfg.DB)
	assert.True(t, cfg.Record)
}
