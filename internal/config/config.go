// Package config resolves schemactl settings from, in order of precedence,
// command-line flags, SCHEMACTL_* environment variables (including those
// loaded from .env and .env.local), a config file, and flag defaults.
//
// There is deliberately no default database path: every command that
// touches a store must be told which one.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable schemactl reads.
const EnvPrefix = "SCHEMACTL"

// Keys shared by flags, environment variables and the config file.
const (
	KeyConfig      = "config"
	KeyDB          = "db"
	KeyManifest    = "manifest"
	KeyBackup      = "backup"
	KeyBackupDir   = "backup-dir"
	KeyStopOnError = "stop-on-error"
	KeyRecord      = "record"
	KeyOutput      = "output"
	KeyLogLevel    = "log-level"
	KeyLogFormat   = "log-format"
)

// Config holds the resolved settings for one invocation.
type Config struct {
	ConfigFile string

	DB          string
	Manifest    string
	Backup      bool
	BackupDir   string
	StopOnError bool
	Record      bool

	Output    string
	LogLevel  string
	LogFormat string
}

// Load resolves the configuration. flags may be nil; when given, flags the
// user set take precedence over everything else.
func Load(flags *pflag.FlagSet) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "auto")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", err)
		}
	}

	if file := v.GetString(KeyConfig); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(".schemactl")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	return &Config{
		ConfigFile:  v.ConfigFileUsed(),
		DB:          v.GetString(KeyDB),
		Manifest:    v.GetString(KeyManifest),
		Backup:      v.GetBool(KeyBackup),
		BackupDir:   v.GetString(KeyBackupDir),
		StopOnError: v.GetBool(KeyStopOnError),
		Record:      v.GetBool(KeyRecord),
		Output:      v.GetString(KeyOutput),
		LogLevel:    v.GetString(KeyLogLevel),
		LogFormat:   v.GetString(KeyLogFormat),
	}, nil
}

// RequireDB returns an error when no database path is configured.
func (c *Config) RequireDB() error {
	if c.DB == "" {
		return fmt.Errorf("no database configured: pass --%s or set %s_DB", KeyDB, EnvPrefix)
	}
	return nil
}

// RequireManifest returns an error when no manifest path is configured.
func (c *Config) RequireManifest() error {
	if c.Manifest == "" {
		return fmt.Errorf("no manifest configured: pass --%s or set %s_MANIFEST", KeyManifest, EnvPrefix)
	}
	return nil
}

// loadEnvFiles loads .env.local then .env. godotenv never overrides a
// variable that is already set, so the real environment wins, then
// .env.local, then .env.
func loadEnvFiles() {
	for _, envFile := range []string{".env.local", ".env"} {
		_ = godotenv.Load(envFile)
	}
}
