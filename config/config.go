// Package config loads the connection parameters: built-in defaults, then a
// .env file, then ESTETICA_* environment variables and an optional config file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/shrek82/estetica-db/dialect"
	"github.com/shrek82/estetica-db/validator"
)

// EnvPrefix is prepended to every environment variable, e.g. ESTETICA_HOST.
const EnvPrefix = "ESTETICA"

// Keys understood by NewViper, as config file keys and (upper-cased, with the
// prefix) as environment variables.
const (
	KeyDriver         = "driver"
	KeyHost           = "host"
	KeyPort           = "port"
	KeyUser           = "user"
	KeyPassword       = "password"
	KeyDatabase       = "database"
	KeyMaxPoolSize    = "max_pool_size"
	KeyAcquireTimeout = "acquire_timeout"
	KeyParams         = "params"
	KeyLogLevel       = "log_level"
	KeyLogFormat      = "log_format"
	KeySlowThreshold  = "slow_threshold"
)

// Config holds the process-wide connection settings, read once at startup.
type Config struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	// MaxPoolSize is the fixed number of pooled connections.
	MaxPoolSize int
	// AcquireTimeout bounds the wait for a free connection; zero waits forever.
	AcquireTimeout time.Duration
	// Params are extra driver DSN parameters (charset, sslmode, _busy_timeout...).
	Params map[string]string

	LogLevel  string
	LogFormat string
	// SlowThreshold enables the slow statement log when positive.
	SlowThreshold time.Duration
}

// Default returns the settings the service has always used for local development.
func Default() Config {
	return Config{
		Driver:      "mysql",
		Host:        "localhost",
		Port:        3306,
		User:        "root",
		Password:    "root",
		Database:    "estetica_plus",
		MaxPoolSize: 10,
		LogLevel:    "info",
		LogFormat:   "text",
	}
}

// NewViper returns a viper instance carrying the defaults and bound to the
// ESTETICA_* environment.
func NewViper() *viper.Viper {
	d := Default()
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyDriver, d.Driver)
	v.SetDefault(KeyHost, d.Host)
	v.SetDefault(KeyPort, d.Port)
	v.SetDefault(KeyUser, d.User)
	v.SetDefault(KeyPassword, d.Password)
	v.SetDefault(KeyDatabase, d.Database)
	v.SetDefault(KeyMaxPoolSize, d.MaxPoolSize)
	v.SetDefault(KeyAcquireTimeout, "0s")
	v.SetDefault(KeyParams, "")
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyLogFormat, d.LogFormat)
	v.SetDefault(KeySlowThreshold, "0s")
	return v
}

// Load reads the given .env files (".env" when none are named; missing files
// are skipped), then the environment and, when cfgFile is not empty, that
// config file. The result is validated.
func Load(cfgFile string, envFiles ...string) (*Config, error) {
	if err := LoadDotenv(envFiles...); err != nil {
		return nil, err
	}

	v := NewViper()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
		}
	}
	return FromViper(v)
}

// LoadDotenv loads the given files into the environment (".env" when none
// are named). Missing files are skipped; variables already set win.
func LoadDotenv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}
	return nil
}

// FromViper builds and validates a Config from v.
func FromViper(v *viper.Viper) (*Config, error) {
	params, err := ParseParams(v.GetString(KeyParams))
	if err != nil {
		return nil, err
	}
	cfg := &Config{
		Driver:         v.GetString(KeyDriver),
		Host:           v.GetString(KeyHost),
		Port:           v.GetInt(KeyPort),
		User:           v.GetString(KeyUser),
		Password:       v.GetString(KeyPassword),
		Database:       v.GetString(KeyDatabase),
		MaxPoolSize:    v.GetInt(KeyMaxPoolSize),
		AcquireTimeout: v.GetDuration(KeyAcquireTimeout),
		Params:         params,
		LogLevel:       v.GetString(KeyLogLevel),
		LogFormat:      v.GetString(KeyLogFormat),
		SlowThreshold:  v.GetDuration(KeySlowThreshold),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseParams parses "k1=v1,k2=v2" into a map. An empty string yields nil.
func ParseParams(s string) (map[string]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	params := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, val, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid dsn parameter %q, expected key=value", pair)
		}
		params[strings.TrimSpace(k)] = strings.TrimSpace(val)
	}
	return params, nil
}

// Validate checks the settings against the registered drivers.
func (c *Config) Validate() error {
	names := dialect.Names()
	allowed := make([]any, len(names))
	for i, n := range names {
		allowed[i] = n
	}

	rules := validator.Rules{
		"Driver":      {validator.Required, validator.In(allowed...).Msg("unsupported driver, expected one of " + strings.Join(names, ", "))},
		"Database":    {validator.Required},
		"MaxPoolSize": {validator.Range(1, 10000)},
		"LogLevel":    {validator.In("silent", "error", "warn", "info").Optional()},
		"LogFormat":   {validator.In("text", "json").Optional()},
	}
	if c.Driver != "sqlite3" {
		rules["Host"] = []validator.Rule{validator.Required}
		rules["User"] = []validator.Rule{validator.Required}
		rules["Port"] = []validator.Rule{validator.Range(0, 65535)}
	}
	if err := rules.Validate(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.AcquireTimeout < 0 {
		return fmt.Errorf("invalid config: AcquireTimeout: must not be negative")
	}
	return nil
}

// ConnParams converts the settings for the dialect's DSN builder.
func (c *Config) ConnParams() dialect.ConnParams {
	return dialect.ConnParams{
		Host:     c.Host,
		Port:     c.Port,
		User:     c.User,
		Password: c.Password,
		Database: c.Database,
		Params:   c.Params,
	}
}

// DSN builds the data source name for the configured driver.
func (c *Config) DSN() (string, error) {
	d, ok := dialect.Get(c.Driver)
	if !ok {
		return "", fmt.Errorf("unknown dialect %s", c.Driver)
	}
	return d.DSN(c.ConnParams()), nil
}

// String describes the target without the password.
func (c *Config) String() string {
	keys := make([]string, 0, len(c.Params))
	for k := range c.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if c.Driver == "sqlite3" {
		return fmt.Sprintf("sqlite3:%s params=%v", c.Database, keys)
	}
	return fmt.Sprintf("%s://%s@%s:%d/%s params=%v", c.Driver, c.User, c.Host, c.Port, c.Database, keys)
}
