package secrets

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/reddit/secureconfig.go/configbp"
	"github.com/reddit/secureconfig.go/filewatcher"
	"github.com/reddit/secureconfig.go/log"
)

const (
	// NamePlaceholder in VaultConfig.Path is replaced by the vault name.
	NamePlaceholder = "{name}"

	// DefaultVaultTimeout is used when VaultConfig.Timeout is not positive.
	DefaultVaultTimeout = 30 * time.Second

	// VaultKeySeparator replaces configbp.KeyDelimiter in vault secret names,
	// which can't contain colons.
	VaultKeySeparator = "--"
)

var parserFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: promNamespace,
	Name:      "parser_failure_total",
	Help:      "Total number of vault document parser failures",
})

// Vault is a named secret source.
//
// Failures are opaque, a secret that can't be read is absent.
type Vault interface {
	Lookup(name string) (string, bool)
}

// VaultConfig is the configuration of a FileVault.
//
// Can be deserialized from YAML.
type VaultConfig struct {
	// Path to the vault document. NamePlaceholder is replaced by the vault
	// name, e.g. "/var/run/vault/{name}.json".
	Path string `yaml:"path"`

	// Timeout waiting for the document to appear.
	// Defaults to DefaultVaultTimeout.
	Timeout time.Duration `yaml:"timeout"`

	// MaxFileSize is the soft size limit of the document,
	// see filewatcher.Config.
	MaxFileSize configbp.Int64String `yaml:"maxFileSize"`
}

// ResolvePath returns Path with NamePlaceholder replaced by name.
func (c VaultConfig) ResolvePath(name string) (string, error) {
	if c.Path == "" {
		return "", ErrVaultNotConfigured
	}
	if strings.Contains(c.Path, NamePlaceholder) {
		if name == "" {
			return "", fmt.Errorf("%w: vault path %q needs a vault name", ErrVaultNotConfigured, c.Path)
		}
		return strings.ReplaceAll(c.Path, NamePlaceholder, name), nil
	}
	return c.Path, nil
}

type vaultData struct {
	values map[string]string
	// folded maps lowercased names to names.
	folded map[string]string
}

func newVaultData(values map[string]string) *vaultData {
	d := &vaultData{
		values: values,
		folded: make(map[string]string, len(values)),
	}
	for name := range values {
		d.folded[strings.ToLower(name)] = name
	}
	return d
}

func parseVault(r io.Reader) (interface{}, error) {
	values, err := ParseDocument(r)
	if err != nil {
		return nil, err
	}
	return newVaultData(values), nil
}

// FileVault serves secrets from a vault document on disk, reloading it when
// the file changes.
//
// Lookups are case-insensitive when there's no exact match.
type FileVault struct {
	watcher filewatcher.FileWatcher
}

// OpenVault opens the FileVault configured by cfg for the vault named name.
//
// It blocks until the document is available, cfg.Timeout passes or ctx is
// done.
func OpenVault(ctx context.Context, cfg VaultConfig, name string, logger log.Wrapper) (*FileVault, error) {
	path, err := cfg.ResolvePath(name)
	if err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultVaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	watcher, err := filewatcher.New(ctx, filewatcher.Config{
		Path:   path,
		Parser: parseVault,
		Logger: func(ctx context.Context, msg string) {
			parserFailures.Inc()
			logger.Log(ctx, msg)
		},
		MaxFileSize: int64(cfg.MaxFileSize),
	})
	if err != nil {
		return nil, fmt.Errorf("secrets.OpenVault: %w", err)
	}
	return &FileVault{watcher: watcher}, nil
}

func (v *FileVault) data() *vaultData {
	d, _ := v.watcher.Get().(*vaultData)
	if d == nil {
		return newVaultData(nil)
	}
	return d
}

// Lookup implements Vault.
func (v *FileVault) Lookup(name string) (string, bool) {
	d := v.data()
	if value, ok := d.values[name]; ok {
		return value, true
	}
	if actual, ok := d.folded[strings.ToLower(name)]; ok {
		return d.values[actual], true
	}
	return "", false
}

// Names returns the secret names currently in the vault, sorted.
func (v *FileVault) Names() []string {
	d := v.data()
	names := make([]string, 0, len(d.values))
	for name := range d.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close stops watching the vault document.
func (v *FileVault) Close() error {
	v.watcher.Stop()
	return nil
}

// MapVault is a Vault backed by a map, for tests.
type MapVault map[string]string

// Lookup implements Vault.
func (m MapVault) Lookup(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

// Names returns the secret names, sorted.
func (m MapVault) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Provider exposes a Vault as a configbp.Provider.
//
// Configuration keys map to secret names by replacing ":" with "--", so the
// secret "ConnectionStrings--Cache" is the key "ConnectionStrings:Cache".
type Provider struct {
	Vault Vault
}

// Lookup implements configbp.Provider.
func (p Provider) Lookup(key string) (string, bool) {
	if p.Vault == nil {
		return "", false
	}
	return p.Vault.Lookup(strings.ReplaceAll(key, configbp.KeyDelimiter, VaultKeySeparator))
}

// Keys implements configbp.KeyLister when the Vault can list its names.
func (p Provider) Keys() []string {
	lister, ok := p.Vault.(interface{ Names() []string })
	if !ok {
		return nil
	}
	names := lister.Names()
	keys := make([]string, len(names))
	for i, name := range names {
		keys[i] = strings.ReplaceAll(name, VaultKeySeparator, configbp.KeyDelimiter)
	}
	return keys
}

var (
	_ Vault              = (*FileVault)(nil)
	_ Vault              = MapVault(nil)
	_ io.Closer          = (*FileVault)(nil)
	_ configbp.Provider  = Provider{}
	_ configbp.KeyLister = Provider{}
)
