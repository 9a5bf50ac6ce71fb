// Package config resolves the devserve runtime configuration.
//
// Values come from command-line flags, environment variables (optionally
// seeded from a .env file) and built-in defaults, in that order of
// precedence. The resulting Config is validated once and treated as
// immutable for the lifetime of the process.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Tyrowin/devserve/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Defaults applied when neither a flag nor an environment variable is set.
const (
	DefaultPort      = 3000
	DefaultHost      = "127.0.0.1"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "console"
)

// Flag names, which double as viper keys.
const (
	KeyPort           = "port"
	KeyRoot           = "root"
	KeyHost           = "host"
	KeyNoReload       = "no-reload"
	KeyLogLevel       = "log-level"
	KeyLogFormat      = "log-format"
	KeyAllowedOrigins = "allowed-origins"
)

var envKeys = map[string]string{
	KeyPort:           "PORT",
	KeyRoot:           "ROOT",
	KeyHost:           "HOST",
	KeyNoReload:       "NO_RELOAD",
	KeyLogLevel:       "LOG_LEVEL",
	KeyLogFormat:      "LOG_FORMAT",
	KeyAllowedOrigins: "ALLOWED_ORIGINS",
}

var (
	// ErrInvalidPort is returned when the port (or port+1) is outside 1..65535.
	ErrInvalidPort = errors.New("invalid port")
	// ErrInvalidRoot is returned when the root is missing or not a directory.
	ErrInvalidRoot = errors.New("invalid root directory")
)

// Config holds the server settings derived at startup.
type Config struct {
	// Root is the absolute path of the served directory.
	Root string
	// Port is the HTTP listener port; the push channel listens on Port+1.
	Port int
	// Host is the bind address for both listeners.
	Host string
	// Reload enables snippet injection, the push channel and the watcher.
	Reload bool
	// AllowedOrigins lists the browser origins accepted by the push channel:
	// the HTTP listener's own origins plus any configured extras.
	AllowedOrigins []string
	// Log configures the zap logger.
	Log logger.Config
}

// RegisterFlags adds the devserve flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.Int(KeyPort, DefaultPort, "port for the HTTP listener; live reload uses port+1")
	fs.String(KeyRoot, "", "directory to serve (default: current working directory)")
	fs.String(KeyHost, DefaultHost, "bind address for both listeners")
	fs.Bool(KeyNoReload, false, "disable HTML injection, the reload channel and the file watcher")
	fs.String(KeyLogLevel, DefaultLogLevel, "log level: debug, info, warn, error")
	fs.String(KeyLogFormat, DefaultLogFormat, "log format: console or json")
	fs.StringSlice(KeyAllowedOrigins, nil, "extra origins allowed to open the reload channel (* allows all)")
}

// Load builds a validated Config. fs may be nil, in which case only the
// environment and defaults are consulted.
func Load(fs *pflag.FlagSet) (*Config, error) {
	// A missing .env is the normal case; variables already present in the
	// process environment are not overwritten.
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault(KeyPort, DefaultPort)
	v.SetDefault(KeyHost, DefaultHost)
	v.SetDefault(KeyNoReload, false)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyLogFormat, DefaultLogFormat)

	for key, env := range envKeys {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}
	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	cfg := &Config{
		Port:           v.GetInt(KeyPort),
		Host:           strings.TrimSpace(v.GetString(KeyHost)),
		Reload:         !parseToggle(v.GetString(KeyNoReload)),
		AllowedOrigins: originsValue(v.Get(KeyAllowedOrigins)),
		Log: logger.Config{
			Level:  v.GetString(KeyLogLevel),
			Format: v.GetString(KeyLogFormat),
		},
	}

	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}

	root, err := resolveRoot(v.GetString(KeyRoot))
	if err != nil {
		return nil, err
	}
	cfg.Root = root

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.AllowedOrigins = dedupe(append(cfg.DefaultOrigins(), cfg.AllowedOrigins...))

	return cfg, nil
}

// Validate checks the port range and the root directory.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65534 {
		return fmt.Errorf("%w: %d (must be 1-65534 so port+1 is usable)", ErrInvalidPort, c.Port)
	}

	info, err := os.Stat(c.Root)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRoot, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidRoot, c.Root)
	}
	return nil
}

// Address returns the HTTP listener address.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ReloadPort returns the push channel port.
func (c *Config) ReloadPort() int {
	return c.Port + 1
}

// ReloadAddress returns the push channel listener address.
func (c *Config) ReloadAddress() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.ReloadPort()))
}

// DefaultOrigins returns the origins pages served by the HTTP listener will
// present when they open the reload channel. A wildcard host can be reached
// under any address, so every origin is allowed.
func (c *Config) DefaultOrigins() []string {
	port := strconv.Itoa(c.Port)
	origins := []string{"http://" + c.Address()}

	switch c.Host {
	case "127.0.0.1", "localhost":
		origins = append(origins,
			"http://"+net.JoinHostPort("localhost", port),
			"http://"+net.JoinHostPort("127.0.0.1", port),
		)
	case "", "0.0.0.0", "::":
		origins = append(origins, "*")
	}

	return origins
}

func resolveRoot(root string) (string, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrInvalidRoot, err)
		}
		root = wd
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidRoot, err)
	}
	return abs, nil
}

// parseToggle treats recognised booleans literally and any other non-empty
// value as set.
func parseToggle(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return true
}

func originsValue(raw any) []string {
	switch val := raw.(type) {
	case []string:
		return parseOrigins(strings.Join(val, ","))
	case string:
		return parseOrigins(val)
	default:
		return nil
	}
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := values[:0]
	for _, value := range values {
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		result = append(result, value)
	}
	return result
}
