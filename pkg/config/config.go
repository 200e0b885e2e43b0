// Package config provides the configuration for cla-bot.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// AuthorizationMode controls how the server behaves when credentials are
// missing: in strict mode missing webhook secrets or installation ids fail
// closed, in permissive mode they fall back to best-effort behavior suitable
// for local development.
type AuthorizationMode string

const (
	// AuthorizationStrict fails closed on missing credentials.
	AuthorizationStrict AuthorizationMode = "strict"

	// AuthorizationPermissive falls back to unverified behavior when no
	// credentials are configured.
	AuthorizationPermissive AuthorizationMode = "permissive"
)

// HTTPConfig is the HTTP configuration for the server.
type HTTPConfig struct {
	// ListenAddr is the address on which the HTTP server will listen.
	ListenAddr string `env:"LISTEN_ADDR" yaml:"listen_addr"`

	// PublicURL is the public URL of the HTTP server.
	PublicURL string `env:"PUBLIC_URL" yaml:"public_url"`

	// AdminToken is the bearer token required by the admin API endpoints.
	AdminToken string `env:"ADMIN_TOKEN" yaml:"admin_token"`
}

// StatsConfig is the configuration for the metrics server.
type StatsConfig struct {
	// ListenAddr is the address on which the metrics server will listen.
	ListenAddr string `env:"LISTEN_ADDR" yaml:"listen_addr"`
}

// LogConfig is the logger configuration.
type LogConfig struct {
	// Format is the format of the logs.
	// Valid values are "json", "logfmt", and "text".
	Format string `env:"FORMAT" yaml:"format"`

	// Time format for the log `ts` field.
	// Format must be described in Golang's time format.
	TimeFormat string `env:"TIME_FORMAT" yaml:"time_format"`

	// Path to a file to write logs to.
	// If not set, logs will be written to stderr.
	Path string `env:"PATH" yaml:"path"`
}

// DBConfig is the database connection configuration.
type DBConfig struct {
	// Driver is the driver for the database.
	Driver string `env:"DRIVER" yaml:"driver"`

	// DataSource is the database data source name.
	DataSource string `env:"DATA_SOURCE" yaml:"data_source"`
}

// GitHubConfig is the GitHub App configuration.
type GitHubConfig struct {
	// APIURL is the base URL of the GitHub REST API.
	APIURL string `env:"API_URL" yaml:"api_url"`

	// AppID is the numeric GitHub App id.
	AppID int64 `env:"APP_ID" yaml:"app_id"`

	// PrivateKeyPath is the path to the GitHub App RSA private key in PEM
	// format.
	PrivateKeyPath string `env:"PRIVATE_KEY_PATH" yaml:"private_key_path"`

	// WebhookSecret is the shared secret used to verify inbound webhook
	// signatures.
	WebhookSecret string `env:"WEBHOOK_SECRET" yaml:"webhook_secret"`
}

// RecheckConfig is the configuration for bulk compliance rechecks.
type RecheckConfig struct {
	// Concurrency is the number of pull requests processed at a time during
	// a bulk recheck. The GitHub API rate limit is the binding constraint,
	// so this defaults to 1.
	Concurrency int `env:"CONCURRENCY" yaml:"concurrency"`
}

// JobsConfig is the configuration for cron jobs.
type JobsConfig struct {
	// Reconcile is the cron spec for the periodic full reconcile of all
	// active organizations. Empty disables the job.
	Reconcile string `env:"RECONCILE" yaml:"reconcile"`
}

// Config is the configuration for cla-bot.
type Config struct {
	// Name is the name of the server.
	Name string `env:"NAME" yaml:"name"`

	// AuthMode selects strict or permissive credential handling.
	AuthMode AuthorizationMode `env:"AUTH_MODE" yaml:"auth_mode"`

	// HTTP is the configuration for the HTTP server.
	HTTP HTTPConfig `envPrefix:"HTTP_" yaml:"http"`

	// Stats is the configuration for the metrics server.
	Stats StatsConfig `envPrefix:"STATS_" yaml:"stats"`

	// Log is the logger configuration.
	Log LogConfig `envPrefix:"LOG_" yaml:"log"`

	// DB is the database configuration.
	DB DBConfig `envPrefix:"DB_" yaml:"db"`

	// GitHub is the GitHub App configuration.
	GitHub GitHubConfig `envPrefix:"GITHUB_" yaml:"github"`

	// Recheck is the bulk recheck configuration.
	Recheck RecheckConfig `envPrefix:"RECHECK_" yaml:"recheck"`

	// Jobs is the configuration for cron jobs.
	Jobs JobsConfig `envPrefix:"JOBS_" yaml:"jobs"`

	// DataPath is the path to the directory where cla-bot will store its
	// data.
	DataPath string `env:"DATA_PATH" yaml:"-"`
}

// IsStrict returns true when the server runs with strict authorization.
func (c *Config) IsStrict() bool {
	return c.AuthMode != AuthorizationPermissive
}

// Environ returns the config as a list of environment variables.
func (c *Config) Environ() []string {
	envs := []string{}
	if c == nil {
		return envs
	}

	envs = append(envs, []string{
		fmt.Sprintf("CLA_BOT_NAME=%s", c.Name),
		fmt.Sprintf("CLA_BOT_DATA_PATH=%s", c.DataPath),
		fmt.Sprintf("CLA_BOT_AUTH_MODE=%s", c.AuthMode),
		fmt.Sprintf("CLA_BOT_HTTP_LISTEN_ADDR=%s", c.HTTP.ListenAddr),
		fmt.Sprintf("CLA_BOT_HTTP_PUBLIC_URL=%s", c.HTTP.PublicURL),
		fmt.Sprintf("CLA_BOT_STATS_LISTEN_ADDR=%s", c.Stats.ListenAddr),
		fmt.Sprintf("CLA_BOT_LOG_FORMAT=%s", c.Log.Format),
		fmt.Sprintf("CLA_BOT_LOG_TIME_FORMAT=%s", c.Log.TimeFormat),
		fmt.Sprintf("CLA_BOT_DB_DRIVER=%s", c.DB.Driver),
		fmt.Sprintf("CLA_BOT_DB_DATA_SOURCE=%s", c.DB.DataSource),
		fmt.Sprintf("CLA_BOT_GITHUB_API_URL=%s", c.GitHub.APIURL),
		fmt.Sprintf("CLA_BOT_GITHUB_APP_ID=%d", c.GitHub.AppID),
		fmt.Sprintf("CLA_BOT_GITHUB_PRIVATE_KEY_PATH=%s", c.GitHub.PrivateKeyPath),
		fmt.Sprintf("CLA_BOT_RECHECK_CONCURRENCY=%d", c.Recheck.Concurrency),
		fmt.Sprintf("CLA_BOT_JOBS_RECONCILE=%s", c.Jobs.Reconcile),
	}...)

	return envs
}

// IsDebug returns true if the server is running in debug mode.
func IsDebug() bool {
	debug, _ := strconv.ParseBool(os.Getenv("CLA_BOT_DEBUG"))
	return debug
}

// IsVerbose returns true if the server is running in verbose mode.
// Verbose mode is only enabled if debug mode is enabled.
func IsVerbose() bool {
	verbose, _ := strconv.ParseBool(os.Getenv("CLA_BOT_VERBOSE"))
	return IsDebug() && verbose
}

// parseFile parses the given file as a configuration file.
// The file must be in YAML format.
func parseFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}

	defer f.Close() // nolint: errcheck
	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}

	return cfg.Validate()
}

// ParseFile parses the config from the default file path.
// This also calls Validate() on the config.
func (c *Config) ParseFile() error {
	return parseFile(c, c.ConfigPath())
}

// parseEnv parses the environment variables as a configuration file.
func parseEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{
		Prefix: "CLA_BOT_",
	}); err != nil {
		return fmt.Errorf("parse environment variables: %w", err)
	}

	return cfg.Validate()
}

// ParseEnv parses the config from the environment variables.
// This also calls Validate() on the config.
func (c *Config) ParseEnv() error {
	return parseEnv(c)
}

// ParseConfig parses the config from the given file path and the
// environment. This also calls Validate() on the config.
func ParseConfig(cfg *Config, path string) error {
	if err := parseFile(cfg, path); err != nil {
		return err
	}

	return parseEnv(cfg)
}

// Parse parses the config from the default file path and environment
// variables. This also calls Validate() on the config.
func (c *Config) Parse() error {
	if err := c.ParseFile(); err != nil {
		return err
	}

	return c.ParseEnv()
}

// writeConfig writes the configuration to the given file.
func writeConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(newConfigFile(cfg)), 0o644) // nolint: errcheck, gosec
}

// WriteConfig writes the configuration to the default file.
func (c *Config) WriteConfig() error {
	return writeConfig(c, c.ConfigPath())
}

// DefaultDataPath returns the path to the data directory.
// It uses the CLA_BOT_DATA_PATH environment variable if set, otherwise it
// uses "data".
func DefaultDataPath() string {
	dp := os.Getenv("CLA_BOT_DATA_PATH")
	if dp == "" {
		dp = "data"
	}

	return dp
}

// ConfigPath returns the path to the config file.
func (c *Config) ConfigPath() string { // nolint:revive
	return filepath.Join(c.DataPath, "config.yaml")
}

func exist(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Exist returns true if the config file exists.
func (c *Config) Exist() bool {
	return exist(c.ConfigPath())
}

// DefaultConfig returns the default Config. All the path values are relative
// to the data directory.
// Use Validate() to validate the config and ensure absolute paths.
func DefaultConfig() *Config {
	return &Config{
		Name:     "CLA Bot",
		AuthMode: AuthorizationStrict,
		DataPath: DefaultDataPath(),
		HTTP: HTTPConfig{
			ListenAddr: ":23230",
			PublicURL:  "http://localhost:23230",
		},
		Stats: StatsConfig{
			ListenAddr: "localhost:23233",
		},
		Log: LogConfig{
			Format:     "text",
			TimeFormat: time.DateTime,
		},
		DB: DBConfig{
			Driver: "sqlite",
			DataSource: "cla-bot.db" +
				"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)",
		},
		GitHub: GitHubConfig{
			APIURL: "https://api.github.com",
		},
		Recheck: RecheckConfig{
			Concurrency: 1,
		},
		Jobs: JobsConfig{
			Reconcile: "@daily",
		},
	}
}

// Validate validates the configuration.
// It updates the configuration with absolute paths.
func (c *Config) Validate() error {
	if !filepath.IsAbs(c.DataPath) {
		dp, err := filepath.Abs(c.DataPath)
		if err != nil {
			return err
		}
		c.DataPath = dp
	}

	c.HTTP.PublicURL = strings.TrimSuffix(c.HTTP.PublicURL, "/")
	c.GitHub.APIURL = strings.TrimSuffix(c.GitHub.APIURL, "/")

	switch c.AuthMode {
	case "":
		c.AuthMode = AuthorizationStrict
	case AuthorizationStrict, AuthorizationPermissive:
	default:
		return fmt.Errorf("invalid auth mode %q", c.AuthMode)
	}

	if c.GitHub.PrivateKeyPath != "" && !filepath.IsAbs(c.GitHub.PrivateKeyPath) {
		c.GitHub.PrivateKeyPath = filepath.Join(c.DataPath, c.GitHub.PrivateKeyPath)
	}

	if strings.HasPrefix(c.DB.Driver, "sqlite") && !filepath.IsAbs(c.DB.DataSource) {
		c.DB.DataSource = filepath.Join(c.DataPath, c.DB.DataSource)
	}

	if c.Recheck.Concurrency < 1 {
		c.Recheck.Concurrency = 1
	}

	if c.IsStrict() && c.GitHub.WebhookSecret == "" {
		return fmt.Errorf("webhook secret is required in strict mode")
	}

	return nil
}
