package secureconfig

import (
	"errors"
	"strings"

	"github.com/reddit/secureconfig.go/configbp"
	"github.com/reddit/secureconfig.go/log"
)

// Configuration sections read by New.
const (
	InitialConfigurationSection = "InitialConfiguration"
	ApplicationSecretsSection   = "ApplicationSecrets"
)

// RTEPlaceholder is replaced by Settings.RTE in the vault name and key.
const RTEPlaceholder = "{RTE}"

// FileLoggerSecret is the secret holding the File sink connection string.
const FileLoggerSecret = "FileLogger"

// Settings is the InitialConfiguration section of the application settings.
type Settings struct {
	// SerializationFormat is used when dumping values to the logs,
	// "Json" or "String".
	SerializationFormat log.SerializationFormat `yaml:"SerializationFormat"`

	// KeyVaultKey is the configuration key holding the vault payload.
	KeyVaultKey string `yaml:"KeyVaultKey"`

	// KeyVaultName names the vault to open.
	KeyVaultName string `yaml:"KeyVaultName"`

	// RTE is the runtime environment, e.g. "dev" or "prod".
	RTE string `yaml:"RTE"`

	EnabledLoggers log.Sinks `yaml:"EnabledLoggers"`
}

// Expand returns s with RTEPlaceholder replaced by RTE in KeyVaultName and
// KeyVaultKey.
func (s Settings) Expand() Settings {
	s.KeyVaultName = strings.ReplaceAll(s.KeyVaultName, RTEPlaceholder, s.RTE)
	s.KeyVaultKey = strings.ReplaceAll(s.KeyVaultKey, RTEPlaceholder, s.RTE)
	return s
}

// IsLoggerEnabled reports whether sink is listed in EnabledLoggers.
func (s Settings) IsLoggerEnabled(sink log.Sink) bool {
	return s.EnabledLoggers.Enabled(sink)
}

// IsLoggingEnabled reports whether EnabledLoggers allows logging at all.
func (s Settings) IsLoggingEnabled() bool {
	return s.EnabledLoggers.LoggingEnabled()
}

// Format returns SerializationFormat, defaulting to JSON.
func (s Settings) Format() log.SerializationFormat {
	if s.SerializationFormat == "" {
		return log.SerializationJSON
	}
	return s.SerializationFormat
}

// LoadSettings binds the InitialConfiguration section of store and expands
// it.
//
// A missing section gives zero Settings.
func LoadSettings(store *configbp.Store) (Settings, error) {
	var s Settings
	if err := store.Bind(InitialConfigurationSection, &s); err != nil {
		if errors.Is(err, configbp.ErrSectionNotFound) {
			return Settings{}, nil
		}
		return Settings{}, err
	}
	return s.Expand(), nil
}
