package redisbp

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultSecretName is the secret holding the cache connection string.
const DefaultSecretName = "ApplicationCache"

// Default ports, matching the connection string conventions used by the
// secret producers.
const (
	DefaultPort    = "6379"
	DefaultTLSPort = "6380"
)

// ErrInvalidConnectionString is returned when a connection string can't be
// turned into redis.Options.
var ErrInvalidConnectionString = errors.New("redisbp: invalid connection string")

// ClientConfig configures the cache client.
//
// The connection itself comes from a secret, ClientConfig only tunes it.
// Can be deserialized from YAML.
//
// Example:
//
//	redis:
//	 name: orders-cache
//	 pool:
//	  size: 10
//	 retries:
//	  max: 2
//	 timeouts:
//	  dial: 1s
//	  read: 100ms
type ClientConfig struct {
	// Name identifies the client in metrics. Defaults to the secret name.
	Name string `yaml:"name"`

	// Secret is the name of the secret holding the connection string.
	// Defaults to DefaultSecretName.
	Secret string `yaml:"secret"`

	Pool     PoolOptions    `yaml:"pool"`
	Retries  RetryOptions   `yaml:"retries"`
	Timeouts TimeoutOptions `yaml:"timeouts"`
}

// SecretName returns Secret or DefaultSecretName.
func (cfg ClientConfig) SecretName() string {
	if cfg.Secret != "" {
		return cfg.Secret
	}
	return DefaultSecretName
}

// ClientName returns Name or the secret name.
func (cfg ClientConfig) ClientName() string {
	if cfg.Name != "" {
		return cfg.Name
	}
	return cfg.SecretName()
}

// Options returns a redis.Options for the connection string conn, with the
// values from cfg applied.
//
// See ParseConnectionString for the supported formats.
func (cfg ClientConfig) Options(conn string) (*redis.Options, error) {
	options, err := ParseConnectionString(conn)
	if err != nil {
		return nil, err
	}
	cfg.Pool.ApplyOptions(options)
	cfg.Retries.ApplyOptions(options)
	cfg.Timeouts.ApplyOptions(options)
	return options, nil
}

// ParseConnectionString parses either a redis URL (redis:// or rediss://),
// passed to redis.ParseURL, or a comma separated connection string:
//
//	host[:port][,password=<password>][,user=<user>][,ssl=<bool>][,defaultDatabase=<n>][,connectTimeout=<ms>][,syncTimeout=<ms>]
//
// Option names are case-insensitive and unknown options are ignored.
// Only the first endpoint is used. The default port is DefaultPort, or
// DefaultTLSPort with ssl=true.
func ParseConnectionString(conn string) (*redis.Options, error) {
	conn = strings.TrimSpace(conn)
	if conn == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidConnectionString)
	}
	if strings.HasPrefix(conn, "redis://") || strings.HasPrefix(conn, "rediss://") {
		options, err := redis.ParseURL(conn)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConnectionString, err)
		}
		return options, nil
	}

	options := new(redis.Options)
	var host, port string
	var useTLS bool
	for _, token := range strings.Split(conn, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		i := strings.IndexByte(token, '=')
		if i < 0 {
			if host != "" {
				continue
			}
			var err error
			host, port, err = splitHostPort(token)
			if err != nil {
				return nil, err
			}
			continue
		}

		key, value := strings.ToLower(strings.TrimSpace(token[:i])), strings.TrimSpace(token[i+1:])
		switch key {
		case "password":
			options.Password = value
		case "user":
			options.Username = value
		case "ssl":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return nil, fmt.Errorf("%w: ssl=%q", ErrInvalidConnectionString, value)
			}
			useTLS = b
		case "defaultdatabase":
			db, err := strconv.Atoi(value)
			if err != nil || db < 0 {
				return nil, fmt.Errorf("%w: defaultDatabase=%q", ErrInvalidConnectionString, value)
			}
			options.DB = db
		case "connecttimeout":
			d, err := parseMillis(key, value)
			if err != nil {
				return nil, err
			}
			options.DialTimeout = d
		case "synctimeout":
			d, err := parseMillis(key, value)
			if err != nil {
				return nil, err
			}
			options.ReadTimeout = d
			options.WriteTimeout = d
		}
	}
	if host == "" {
		return nil, fmt.Errorf("%w: no endpoint", ErrInvalidConnectionString)
	}
	if port == "" {
		port = DefaultPort
		if useTLS {
			port = DefaultTLSPort
		}
	}
	options.Addr = net.JoinHostPort(host, port)
	if useTLS {
		options.TLSConfig = &tls.Config{
			ServerName: host,
			MinVersion: tls.VersionTLS12,
		}
	}
	return options, nil
}

func splitHostPort(endpoint string) (host, port string, err error) {
	if !strings.Contains(endpoint, ":") {
		return endpoint, "", nil
	}
	host, port, err = net.SplitHostPort(endpoint)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidConnectionString, err)
	}
	if _, err := strconv.ParseUint(port, 10, 16); err != nil {
		return "", "", fmt.Errorf("%w: port %q", ErrInvalidConnectionString, port)
	}
	return host, port, nil
}

func parseMillis(key, value string) (time.Duration, error) {
	ms, err := strconv.Atoi(value)
	if err != nil || ms < 0 {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidConnectionString, key, value)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// PoolOptions is used to configure the pool attributes of a redis-go Client.
// If any value is not set, it will use whatever default is defined by
// redis-go.
//
// Can be deserialized from YAML.
type PoolOptions struct {
	// Maps to PoolSize on the redis-go options.
	Size int `yaml:"size"`

	// Maps to MinIdleConns on the redis-go options.
	MinIdleConnections int `yaml:"minIdleConnections"`

	// Maps to MaxConnAge on the redis-go options.
	MaxConnectionAge time.Duration `yaml:"maxConnectionAge"`

	// Maps to PoolTimeout on the redis-go options.
	Timeout time.Duration `yaml:"timeout"`
}

// ApplyOptions applies the PoolOptions to the redis.Options.
func (opts PoolOptions) ApplyOptions(options *redis.Options) {
	if opts.MinIdleConnections != 0 {
		options.MinIdleConns = opts.MinIdleConnections
	}
	if opts.MaxConnectionAge != 0 {
		options.MaxConnAge = opts.MaxConnectionAge
	}
	if opts.Size != 0 {
		options.PoolSize = opts.Size
	}
	if opts.Timeout != 0 {
		options.PoolTimeout = opts.Timeout
	}
}

// RetryOptions is used to configure the command retries of a redis-go Client.
//
// Can be deserialized from YAML.
type RetryOptions struct {
	// Maps to MaxRetries on the redis-go options.
	Max int `yaml:"max"`

	// Maps to MinRetryBackoff on the redis-go options.
	MinBackoff time.Duration `yaml:"minBackoff"`

	// Maps to MaxRetryBackoff on the redis-go options.
	MaxBackoff time.Duration `yaml:"maxBackoff"`
}

// ApplyOptions applies the RetryOptions to the redis.Options.
func (opts RetryOptions) ApplyOptions(options *redis.Options) {
	if opts.Max != 0 {
		options.MaxRetries = opts.Max
	}
	if opts.MinBackoff != 0 {
		options.MinRetryBackoff = opts.MinBackoff
	}
	if opts.MaxBackoff != 0 {
		options.MaxRetryBackoff = opts.MaxBackoff
	}
}

// TimeoutOptions overrides the timeouts of a redis-go Client, including the
// ones set by the connection string.
//
// Can be deserialized from YAML.
type TimeoutOptions struct {
	Dial  time.Duration `yaml:"dial"`
	Read  time.Duration `yaml:"read"`
	Write time.Duration `yaml:"write"`
}

// ApplyOptions applies the TimeoutOptions to the redis.Options.
func (opts TimeoutOptions) ApplyOptions(options *redis.Options) {
	if opts.Dial != 0 {
		options.DialTimeout = opts.Dial
	}
	if opts.Read != 0 {
		options.ReadTimeout = opts.Read
	}
	if opts.Write != 0 {
		options.WriteTimeout = opts.Write
	}
}
