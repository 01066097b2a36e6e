package secureconfig

import (
	"os"
	"path/filepath"
	"time"

	"github.com/reddit/secureconfig.go/breakerbp"
	"github.com/reddit/secureconfig.go/configbp"
	"github.com/reddit/secureconfig.go/log"
	"github.com/reddit/secureconfig.go/redisbp"
	"github.com/reddit/secureconfig.go/retrybp"
	"github.com/reddit/secureconfig.go/secrets"
)

// EnvironmentEnv is the environment variable naming the environment when
// Config.Environment is empty.
const EnvironmentEnv = "SECURECONFIG_ENVIRONMENT"

// DefaultSettingsFile is the base application settings file name.
const DefaultSettingsFile = "appsettings.yaml"

// Config is the host configuration used by New.
//
// It's separate from the application settings: it only tells New where the
// settings are and how to tune the infrastructure around them.
// Can be deserialized from YAML, strictly.
//
// Example:
//
//	applicationName: orders
//	environment: staging
//	envPrefix: ORDERS_
//	stopTimeout: 10s
//	log:
//	 level: info
//	 defaultFileName: orders.log
//	vault:
//	 path: /var/vault/{name}.json
//	redis:
//	 timeouts:
//	  dial: 1s
//	breaker:
//	 minRequestsToTrip: 10
//	 failureThreshold: 0.5
//	cacheStartup:
//	 attempts: 3
//	 initialDelay: 100ms
//	refresh:
//	 passTimeout: 10s
type Config struct {
	// ApplicationName is attached to every log entry as "app".
	ApplicationName string `yaml:"applicationName"`

	// Environment selects the optional appsettings.<environment>.yaml file.
	// Defaults to the EnvironmentEnv environment variable.
	Environment string `yaml:"environment"`

	// SettingsDir is the directory holding the settings files.
	// Defaults to the directory of the config file.
	SettingsDir string `yaml:"settingsDir"`

	// SettingsFile is the base settings file, relative to SettingsDir.
	// Defaults to DefaultSettingsFile.
	SettingsFile string `yaml:"settingsFile"`

	// UserSecretsFile is an optional settings file layered above the
	// environment file, relative to SettingsDir unless absolute.
	UserSecretsFile string `yaml:"userSecretsFile"`

	// EnvPrefix selects the environment variables layered above the files.
	// With an empty prefix every environment variable is used.
	EnvPrefix string `yaml:"envPrefix"`

	// StopTimeout bounds App.Close in Run.
	//
	// If this is not set, then no timeout will be set on Close.
	StopTimeout time.Duration `yaml:"stopTimeout"`

	Log          log.Config           `yaml:"log"`
	Sentry       log.SentryConfig     `yaml:"sentry"`
	Vault        secrets.VaultConfig  `yaml:"vault"`
	Redis        redisbp.ClientConfig `yaml:"redis"`
	Breaker      breakerbp.Config     `yaml:"breaker"`
	CacheStartup retrybp.Config       `yaml:"cacheStartup"`
	Refresh      RefreshConfig        `yaml:"refresh"`
}

// RefreshConfig tunes the cache refresh.
type RefreshConfig struct {
	// PassTimeout bounds a single refresh pass.
	// Defaults to cacherefresh.DefaultPassTimeout.
	PassTimeout time.Duration `yaml:"passTimeout"`
}

// ParseConfig parses the config file at path strictly.
//
// An empty path falls back to the configbp.ConfigPathEnv environment
// variable, and when that's empty too a zero Config is returned.
func ParseConfig(path string) (Config, error) {
	var cfg Config
	if path == "" {
		path = os.Getenv(configbp.ConfigPathEnv)
	}
	if path == "" {
		return cfg, nil
	}
	if err := configbp.ParseStrictFile(path, &cfg); err != nil {
		return Config{}, err
	}
	if cfg.SettingsDir == "" {
		cfg.SettingsDir = filepath.Dir(path)
	}
	return cfg, nil
}

// EnvironmentName returns Environment or the EnvironmentEnv environment
// variable.
func (cfg Config) EnvironmentName() string {
	if cfg.Environment != "" {
		return cfg.Environment
	}
	return os.Getenv(EnvironmentEnv)
}

// SettingsPaths returns the base, environment and user secrets settings
// files. The last two are empty when not configured.
func (cfg Config) SettingsPaths() (base, env, user string) {
	dir := cfg.SettingsDir
	if dir == "" {
		dir = "."
	}
	name := cfg.SettingsFile
	if name == "" {
		name = DefaultSettingsFile
	}
	base = filepath.Join(dir, name)
	if e := cfg.EnvironmentName(); e != "" {
		ext := filepath.Ext(name)
		env = filepath.Join(dir, name[:len(name)-len(ext)]+"."+e+ext)
	}
	if cfg.UserSecretsFile != "" {
		user = cfg.UserSecretsFile
		if !filepath.IsAbs(user) {
			user = filepath.Join(dir, user)
		}
	}
	return base, env, user
}
