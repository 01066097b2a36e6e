package secureconfig

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"

	"github.com/reddit/secureconfig.go/batchcloser"
	"github.com/reddit/secureconfig.go/breakerbp"
	"github.com/reddit/secureconfig.go/cacherefresh"
	"github.com/reddit/secureconfig.go/configbp"
	"github.com/reddit/secureconfig.go/log"
	"github.com/reddit/secureconfig.go/prometheusbp"
	"github.com/reddit/secureconfig.go/redisbp"
	"github.com/reddit/secureconfig.go/retrybp"
	"github.com/reddit/secureconfig.go/runtimebp"
	"github.com/reddit/secureconfig.go/secrets"
)

// App is the configured application New returns.
type App interface {
	io.Closer

	Config() Config
	Settings() Settings
	Store() *configbp.Store

	// Secrets returns the resolved secret set.
	Secrets() secrets.Set

	// Resolution tells where the secrets came from.
	Resolution() secrets.Result

	// Cache returns the cache, or nil when there's none.
	Cache() *redisbp.Cache

	Refresher() *cacherefresh.Refresher
	Logger() log.Logger

	// RefreshConfigurationFromCache starts the cache refresh, see
	// cacherefresh.Refresher.Start.
	RefreshConfigurationFromCache(ctx context.Context) bool
}

// Args are the args used by New.
type Args struct {
	// ConfigPath is the host config file, see ParseConfig.
	ConfigPath string

	// Config is used as is instead of parsing ConfigPath when non-nil.
	Config *Config
}

// New parses the host config, builds the layered configuration, resolves the
// application secrets, initializes logging and sentry, connects the cache
// and prepares the cache refresh.
//
// The vault and the cache are optional: failing to open either is logged and
// New carries on without it.
func New(ctx context.Context, args Args) (App, error) {
	var cfg Config
	if args.Config != nil {
		cfg = *args.Config
	} else {
		var err error
		cfg, err = ParseConfig(args.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("secureconfig.New: %w", err)
		}
	}

	store, err := newStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("secureconfig.New: %w", err)
	}
	settings, err := LoadSettings(store)
	if err != nil {
		return nil, fmt.Errorf("secureconfig.New: %w", err)
	}

	app := &impl{
		cfg:      cfg,
		settings: settings,
		store:    store,
		logger:   log.ZapLogger{},
	}
	closers := batchcloser.New()
	fail := func(err error) (App, error) {
		if closeErr := closers.Close(); closeErr != nil {
			log.Errorw("Failed to close after init error", "err", closeErr)
		}
		return nil, fmt.Errorf("secureconfig.New: %w", err)
	}

	// Log through the console sinks until the file target is known.
	closer, err := log.InitSinks(log.SinkArgs{
		Config: cfg.Log,
		Sinks:  bootstrapSinks(settings.EnabledLoggers),
	})
	if err != nil {
		return fail(err)
	}
	closers.Add(closer)

	if settings.KeyVaultName != "" && cfg.Vault.Path != "" {
		vault, err := secrets.OpenVault(ctx, cfg.Vault, settings.KeyVaultName, log.ZapWrapper(log.WarnLevel))
		if err != nil {
			app.logger.Log(ctx, log.WarnLevel, "secureconfig: vault unavailable", "vault", settings.KeyVaultName, "err", err)
		} else {
			store.AddProvider(secrets.Provider{Vault: vault})
			closers.Add(vault)
		}
	}

	var local secrets.ApplicationSecrets
	if err := store.Bind(ApplicationSecretsSection, &local); err != nil && !errors.Is(err, configbp.ErrSectionNotFound) {
		return fail(err)
	}
	app.result = secrets.Resolve(ctx, store, settings.KeyVaultKey, local, app.logger)

	closer, err = initSinks(cfg, settings, app.result.Set)
	if err != nil {
		return fail(err)
	}
	closers.Add(closer)
	app.logger.Log(
		ctx,
		log.InfoLevel,
		"secureconfig: secrets resolved",
		"status", app.result.Status.String(),
		"reason", app.result.Reason,
		"count", app.result.Set.Len(),
	)

	closer, err = log.InitSentry(cfg.Sentry)
	if err != nil {
		return fail(err)
	}
	closers.Add(closer)

	app.cache = connectCache(ctx, cfg, app.result.Set, app.logger)
	refreshCfg := cacherefresh.Config{
		Target:      store,
		Logger:      app.logger,
		PassTimeout: cfg.Refresh.PassTimeout,
	}
	if app.cache != nil {
		closers.Add(app.cache)
		refreshCfg.Cache = app.cache
	}
	app.refresher = cacherefresh.New(refreshCfg, app.result.Set)
	closers.Add(app.refresher)
	app.closers = closers

	if info, ok := debug.ReadBuildInfo(); ok {
		prometheusbp.RecordModuleVersions(info)
	}
	return app, nil
}

func newStore(cfg Config) (*configbp.Store, error) {
	store := configbp.NewStore()
	base, env, user := cfg.SettingsPaths()
	if err := store.AddFile(base, false); err != nil {
		return nil, err
	}
	if env != "" {
		if err := store.AddFile(env, true); err != nil {
			return nil, err
		}
	}
	if user != "" {
		if err := store.AddFile(user, true); err != nil {
			return nil, err
		}
	}
	store.AddEnvironment(cfg.EnvPrefix)
	return store, nil
}

// bootstrapSinks returns sinks without the File sink.
func bootstrapSinks(sinks log.Sinks) log.Sinks {
	if !sinks.LoggingEnabled() {
		return sinks
	}
	var out log.Sinks
	for _, name := range sinks {
		if name != string(log.SinkFile) {
			out = append(out, name)
		}
	}
	if len(out) == 0 && len(sinks) > 0 {
		return log.Sinks{string(log.SinkNone)}
	}
	return out
}

func initSinks(cfg Config, settings Settings, set secrets.Set) (io.Closer, error) {
	env := settings.RTE
	if env == "" {
		env = cfg.EnvironmentName()
	}
	args := log.SinkArgs{
		Config: cfg.Log,
		Sinks:  settings.EnabledLoggers,
		Fields: []interface{}{
			"host", runtimebp.Hostname(),
			"app", cfg.ApplicationName,
			"env", env,
		},
	}
	if settings.IsLoggerEnabled(log.SinkFile) {
		conn, _ := set.ConnectionString(FileLoggerSecret)
		target, err := log.ParseFileTarget(conn)
		if err != nil && cfg.Log.DefaultFileName == "" {
			// Keep the other sinks rather than failing the whole application.
			log.Warnw("File sink disabled", "secret", FileLoggerSecret, "err", err)
			args.Sinks = bootstrapSinks(args.Sinks)
		}
		args.File = target
	}
	return log.InitSinks(args)
}

func connectCache(ctx context.Context, cfg Config, set secrets.Set, logger log.Logger) *redisbp.Cache {
	var breaker breakerbp.CircuitBreaker
	if cfg.Breaker.Enabled() {
		bc := cfg.Breaker
		if bc.Name == "" {
			bc.Name = cfg.Redis.ClientName()
		}
		bc.Logger = logger
		breaker = breakerbp.NewFailureRatioBreaker(bc)
	}

	cache, err := redisbp.NewCacheFromSecrets(set, cfg.Redis, breaker)
	if err != nil {
		logger.Log(ctx, log.WarnLevel, "secureconfig: cache unavailable", "err", err)
		return nil
	}
	if cache == nil {
		logger.Log(ctx, log.DebugLevel, "secureconfig: no cache configured", "secret", cfg.Redis.SecretName())
		return nil
	}
	if err := retrybp.Do(ctx, func() error {
		return cache.Ping(ctx)
	}, cfg.CacheStartup.Options()...); err != nil {
		logger.Log(ctx, log.WarnLevel, "secureconfig: cache unreachable", "err", err)
		if err := cache.Close(); err != nil {
			logger.Log(ctx, log.WarnLevel, "secureconfig: closing cache", "err", err)
		}
		return nil
	}
	return cache
}

type impl struct {
	cfg       Config
	settings  Settings
	store     *configbp.Store
	result    secrets.Result
	cache     *redisbp.Cache
	refresher *cacherefresh.Refresher
	logger    log.Logger
	closers   *batchcloser.BatchCloser
}

func (app *impl) Config() Config {
	return app.cfg
}

func (app *impl) Settings() Settings {
	return app.settings
}

func (app *impl) Store() *configbp.Store {
	return app.store
}

func (app *impl) Secrets() secrets.Set {
	return app.result.Set
}

func (app *impl) Resolution() secrets.Result {
	return app.result
}

func (app *impl) Cache() *redisbp.Cache {
	return app.cache
}

func (app *impl) Refresher() *cacherefresh.Refresher {
	return app.refresher
}

func (app *impl) Logger() log.Logger {
	return app.logger
}

func (app *impl) RefreshConfigurationFromCache(ctx context.Context) bool {
	return app.refresher.Start(ctx)
}

func (app *impl) Close() error {
	if app.closers == nil {
		return app.refresher.Close()
	}
	err := app.closers.Close()
	if err != nil {
		log.Errorw("Failed to close app", "err", err)
	}
	return err
}

// NewTestApp returns an App using the given Config, store and secrets that
// can be used in testing.
//
// NewTestApp does not initialize logging, sentry, the vault or the cache.
// The refresher is built from set, and only starts when cache is non-nil.
func NewTestApp(cfg Config, store *configbp.Store, set secrets.Set, cache cacherefresh.Cache) App {
	if store == nil {
		store = configbp.NewStore()
	}
	settings, err := LoadSettings(store)
	if err != nil {
		log.Warnw("NewTestApp: invalid settings", "err", err)
	}
	app := &impl{
		cfg:      cfg,
		settings: settings,
		store:    store,
		result: secrets.Result{
			Set:    set,
			Status: secrets.StatusLocalOnly,
		},
		logger: log.ZapLogger{},
	}
	if rc, ok := cache.(*redisbp.Cache); ok {
		app.cache = rc
	}
	refreshCfg := cacherefresh.Config{
		Target:      store,
		Logger:      app.logger,
		PassTimeout: cfg.Refresh.PassTimeout,
	}
	if cache != nil {
		refreshCfg.Cache = cache
	}
	app.refresher = cacherefresh.New(refreshCfg, set)
	return app
}

var (
	_ App = (*impl)(nil)
)
