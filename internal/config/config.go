// Package config loads the daemon's configuration file through viper,
// mirroring the config-discovery shape of ppomes-TokenShield/cli/main.go's
// initConfig (config-path flag, $HOME and "." search paths, YAML, env var
// overrides) generalized from a CLI client's session config to the
// daemon's listen/worker/module settings.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// ModuleConfig names one adaptation module's dynamic-load coordinates, the
// way the original daemon's config named a shared object and its
// create/destroy entry points. This build resolves modules through static
// registration instead of dlopen, so ModulePath here is informational — it
// is unmarshaled but neither loaded nor otherwise read.
type ModuleConfig struct {
	ModulePath string `mapstructure:"module_path"`
	ModuleName string `mapstructure:"module_name"`
}

// Config is the fully-resolved daemon configuration.
type Config struct {
	Port           int                     `mapstructure:"port"`
	Children       int                     `mapstructure:"children"`
	MaxRequests    int                     `mapstructure:"max_requests"`
	ReadTimeoutSec int                     `mapstructure:"read_timeout_seconds"`
	PIDFile        string                  `mapstructure:"pid_file"`
	RunDir         string                  `mapstructure:"run_dir"`
	LogFile        string                  `mapstructure:"log_file"`
	LogCategory    string                  `mapstructure:"log_category"`
	Modules        map[string]ModuleConfig `mapstructure:"modules"`
	Handlers       HandlersConfig          `mapstructure:"handlers"`
	Audit          AuditConfig             `mapstructure:"audit"`
}

// HandlersConfig names which registered module serves each method's
// default URI path.
type HandlersConfig struct {
	Reqmod  string `mapstructure:"reqmod"`
	Respmod string `mapstructure:"respmod"`
}

// AuditConfig carries the MySQL connection and Fernet key the audit
// modifier needs, mirroring ppomes-TokenShield/icap-server-go/main.go's
// Config{DBHost, DBUser, DBPass, DBName, EncryptionKey}.
type AuditConfig struct {
	DBHost        string `mapstructure:"db_host"`
	DBUser        string `mapstructure:"db_user"`
	DBPass        string `mapstructure:"db_pass"`
	DBName        string `mapstructure:"db_name"`
	EncryptionKey string `mapstructure:"encryption_key"`
	Table         string `mapstructure:"table"`
}

// Defaults mirrors the constants the original daemon compiled in.
func Defaults() Config {
	return Config{
		Port:           1344,
		Children:       4,
		MaxRequests:    1000,
		ReadTimeoutSec: 30,
		PIDFile:        "/var/run/bitz-icapd.pid",
		RunDir:         "/var/run",
		LogFile:        "",
		LogCategory:    "icapd",
	}
}

// Load reads configFile (or, if configFile is empty, looks for a file named
// bitz-icapd in ".", /etc/bitz-icapd and $HOME and reads it as YAML) and
// merges it over Defaults. Environment variables prefixed BITZ_ICAPD_
// override top-level keys, e.g. BITZ_ICAPD_PORT=1345, following
// viper.AutomaticEnv the way ppomes-TokenShield/cli/main.go does for its
// own settings; no key replacer is set, so nested keys such as
// handlers.reqmod have no underscore-style variable.
func Load(configFile string) (Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("bitz-icapd")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/bitz-icapd")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	v.SetEnvPrefix("BITZ_ICAPD")
	v.AutomaticEnv()

	cfg := Defaults()
	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configFile != "" {
			return Config{}, fmt.Errorf("config: reading %s: %w", configFile, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("port", cfg.Port)
	v.SetDefault("children", cfg.Children)
	v.SetDefault("max_requests", cfg.MaxRequests)
	v.SetDefault("read_timeout_seconds", cfg.ReadTimeoutSec)
	v.SetDefault("pid_file", cfg.PIDFile)
	v.SetDefault("run_dir", cfg.RunDir)
	v.SetDefault("log_file", cfg.LogFile)
	v.SetDefault("log_category", cfg.LogCategory)
}
