package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mattsolo1/grove-mlconsole/pkg/permission"
	s3store "github.com/mattsolo1/grove-mlconsole/pkg/storage/s3"
)

// Config is the decoded configuration of the console.
type Config struct {
	DataDir            string            `mapstructure:"data_dir"`
	LogLevel           string            `mapstructure:"log_level"`
	User               string            `mapstructure:"user"`
	PersistenceTimeout time.Duration     `mapstructure:"persistence_timeout"`
	Artifacts          ArtifactsConfig   `mapstructure:"artifacts"`
	Tags               TagsConfig        `mapstructure:"tags"`
	MLflow             MLflowConfig      `mapstructure:"mlflow"`
	Permissions        PermissionsConfig `mapstructure:"permissions"`
	Server             ServerConfig      `mapstructure:"server"`
}

type ArtifactsConfig struct {
	Backend string         `mapstructure:"backend"`
	Local   LocalConfig    `mapstructure:"local"`
	S3      s3store.Config `mapstructure:"s3"`
}

type LocalConfig struct {
	Root string `mapstructure:"root"`
}

type TagsConfig struct {
	Backend string `mapstructure:"backend"`
}

type MLflowConfig struct {
	TrackingURI string `mapstructure:"tracking_uri"`
}

type PermissionsConfig struct {
	Backend      string           `mapstructure:"backend"`
	DefaultLevel permission.Level `mapstructure:"default_level"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// InitConfig points viper at the config file and environment and registers defaults.
func InitConfig() {
	if cfgFile := viper.GetString("config_file"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		configDir := filepath.Join(home, ".config", "mlc")
		viper.AddConfigPath(configDir)
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("MLC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	SetDefaults(viper.GetViper())

	// A missing config file is fine; defaults and env cover everything.
	_ = viper.ReadInConfig()
}

// SetDefaults registers every known key so that env overrides reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	dataDir := filepath.Join(os.Getenv("HOME"), ".local", "share", "mlc")
	v.SetDefault("data_dir", dataDir)
	v.SetDefault("log_level", "warn")
	v.SetDefault("user", os.Getenv("USER"))
	v.SetDefault("persistence_timeout", "30s")

	v.SetDefault("artifacts.backend", "local")
	v.SetDefault("artifacts.local.root", filepath.Join(dataDir, "artifacts"))
	v.SetDefault("artifacts.s3.endpoint", "")
	v.SetDefault("artifacts.s3.bucket", "")
	v.SetDefault("artifacts.s3.prefix", "mlruns")
	v.SetDefault("artifacts.s3.region", "us-east-1")
	v.SetDefault("artifacts.s3.access_key", "")
	v.SetDefault("artifacts.s3.secret_key", "")
	v.SetDefault("artifacts.s3.path_style", true)

	v.SetDefault("tags.backend", "sqlite")
	v.SetDefault("mlflow.tracking_uri", "http://127.0.0.1:5000")

	v.SetDefault("permissions.backend", "static")
	v.SetDefault("permissions.default_level", "edit")

	v.SetDefault("server.addr", ":8080")
}

// Load decodes the viper state into a Config.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Artifacts.Backend {
	case "local", "s3", "mlflow":
	default:
		return fmt.Errorf("unknown artifacts backend %q", c.Artifacts.Backend)
	}
	switch c.Tags.Backend {
	case "sqlite", "mlflow":
	default:
		return fmt.Errorf("unknown tags backend %q", c.Tags.Backend)
	}
	switch c.Permissions.Backend {
	case "static", "sqlite":
	default:
		return fmt.Errorf("unknown permissions backend %q", c.Permissions.Backend)
	}
	if c.PersistenceTimeout < 0 {
		return fmt.Errorf("persistence_timeout must not be negative")
	}
	return nil
}

// NewLogger builds the process logger. An unparsable level falls back to warn.
func NewLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.WarnLevel
	}
	logger.SetLevel(lvl)
	return logger
}

// AddGlobalFlags registers the persistent flags shared by every command.
// Flags the standard grove root already defines are reused instead of redefined.
func AddGlobalFlags(cmd *cobra.Command) {
	bindFlag(cmd, "config_file", "config", "config file (default is $HOME/.config/mlc/config.yaml)")
	bindFlag(cmd, "user", "user", "act as this user (default $USER)")
	bindFlag(cmd, "log_level", "log-level", "log level: debug, info, warn, error")
}

func bindFlag(cmd *cobra.Command, key, name, usage string) {
	flags := cmd.PersistentFlags()
	if flags.Lookup(name) == nil {
		flags.String(name, "", usage)
	}
	_ = viper.BindPFlag(key, flags.Lookup(name))
}
