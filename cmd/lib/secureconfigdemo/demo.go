package secureconfigdemo

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/reddit/secureconfig.go"
	"github.com/reddit/secureconfig.go/log"
)

// Run runs the demo.
//
// It returns 0 to indicate success,
// and non-zero to indicate failure.
func Run() (ret int) {
	if err := RunArgs(context.Background(), os.Args, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// RunArgs is the more customizable/testable version of Run.
//
// In production code it expects you to pass in os.Args as the arg.
func RunArgs(ctx context.Context, args []string, out io.Writer) error {
	kingpinApp := kingpin.New(args[0], "Boots an application from its secure configuration and dumps what it got.")
	configPath := kingpinApp.Flag("config", "Path to the YAML host configuration file, defaults to $SECURECONFIG_CONFIG_PATH.").String()
	settingsDir := kingpinApp.Flag("settings-dir", "Directory holding appsettings.yaml, overrides the config file.").String()
	environment := kingpinApp.Flag("environment", "Environment selecting appsettings.<environment>.yaml.").String()
	envPrefix := kingpinApp.Flag("env-prefix", "Prefix of the environment variables layered above the settings files.").String()
	format := kingpinApp.Flag("format", "Serialization format of the dumps, overrides InitialConfiguration.").Enum(
		string(log.SerializationJSON),
		string(log.SerializationString),
	)
	refresh := kingpinApp.Flag("refresh", "Start the cache refresh when it's configured.").Bool()
	wait := kingpinApp.Flag("wait", "How long to keep running after the dumps.").Default("0s").Duration()
	kingpinApp.Terminate(nil)
	kingpinApp.UsageWriter(out)
	kingpinApp.ErrorWriter(out)

	if _, err := kingpinApp.Parse(args[1:]); err != nil {
		return fmt.Errorf("failed to parse args: %w", err)
	}

	cfg, err := secureconfig.ParseConfig(*configPath)
	if err != nil {
		return err
	}
	if *settingsDir != "" {
		cfg.SettingsDir = *settingsDir
	}
	if *environment != "" {
		cfg.Environment = *environment
	}
	if *envPrefix != "" {
		cfg.EnvPrefix = *envPrefix
	}

	app, err := secureconfig.New(ctx, secureconfig.Args{Config: &cfg})
	if err != nil {
		return err
	}
	return secureconfig.Run(ctx, app, demo{
		out:     out,
		format:  log.SerializationFormat(*format),
		refresh: *refresh,
		wait:    *wait,
	})
}

type demo struct {
	out     io.Writer
	format  log.SerializationFormat
	refresh bool
	wait    time.Duration
}

func (d demo) Run(ctx context.Context, app secureconfig.App) error {
	logger := app.Logger()
	format := d.format
	if format == "" {
		format = app.Settings().Format()
	}
	logger.Log(ctx, log.InfoLevel, "Application started", "at", time.Now().UTC())

	log.Dump(ctx, logger, log.InfoLevel, "Dumping InitialConfiguration", app.Settings(), format)
	log.Dump(ctx, logger, log.InfoLevel, "Dumping ApplicationSecrets", app.Secrets().Redacted(), format)

	conn, _ := app.Secrets().ConnectionString(secureconfig.FileLoggerSecret)
	log.Dump(ctx, logger, log.InfoLevel, "FileLogger connection string value", conn, format)
	if secret, ok := app.Secrets().Secret(secureconfig.FileLoggerSecret); ok {
		log.Dump(ctx, logger, log.InfoLevel, "FileLogger entire secret", secret, format)
		for _, md := range secret.Metadata {
			log.Dump(ctx, logger, log.InfoLevel, "MetaData", md, format)
		}
	}

	result := app.Resolution()
	fmt.Fprintf(d.out, "secrets: %s (%d entries)\n", result.Status, result.Set.Len())
	if result.Reason != nil {
		fmt.Fprintf(d.out, "vault: %v\n", result.Reason)
	}
	for _, name := range result.Set.Names() {
		fmt.Fprintf(d.out, "  %s\n", name)
	}

	if d.refresh {
		started := app.RefreshConfigurationFromCache(ctx)
		fmt.Fprintf(d.out, "cache refresh started: %v\n", started)
		if spec, ok := app.Refresher().Spec(); ok && started {
			for _, key := range spec.Keys() {
				v, _ := app.Store().Get(key)
				fmt.Fprintf(d.out, "  %s=%q\n", key, v)
			}
		}
	}

	if d.wait > 0 {
		timer := time.NewTimer(d.wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
	}
	logger.Log(ctx, log.InfoLevel, "Application ended", "at", time.Now().UTC())
	return nil
}
