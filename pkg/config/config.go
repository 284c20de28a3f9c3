package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jdziat/simple-cdc-handoff/pkg/controlplane"
	"github.com/jdziat/simple-cdc-handoff/pkg/marker"
)

// EnvPrefix prefixes every environment variable key.
const EnvPrefix = "HANDOFF"

// Config is the complete, validated configuration of one handoff process.
type Config struct {
	ControlPlane ControlPlaneConfig `mapstructure:"control_plane"`
	Job          JobConfig          `mapstructure:"job"`
	Source       SourceConfig       `mapstructure:"source"`
	Poll         PollConfig         `mapstructure:"poll"`
	Journal      JournalConfig      `mapstructure:"journal"`
	Watch        WatchConfig        `mapstructure:"watch"`
	Log          LogConfig          `mapstructure:"log"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
}

type ControlPlaneConfig struct {
	Host           string        `mapstructure:"host" validate:"required"`
	Port           int           `mapstructure:"port" validate:"min=1,max=65535"`
	BasePath       string        `mapstructure:"base_path"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
	Retries        int           `mapstructure:"retries" validate:"min=0,max=10"`
}

type JobConfig struct {
	Name         string `mapstructure:"name" validate:"required,max=255"`
	ConfigFile   string `mapstructure:"config_file"`
	MarkerPolicy string `mapstructure:"marker_policy" validate:"oneof=before-load after-load"`
}

// SourceConfig locates the source database. DSN wins over the Oracle
// connection fields when both are set.
type SourceConfig struct {
	Dialect      string        `mapstructure:"dialect" validate:"oneof=oracle postgres tidb mysql sqlite"`
	DSN          string        `mapstructure:"dsn"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port" validate:"min=1,max=65535"`
	ServiceName  string        `mapstructure:"service_name"`
	User         string        `mapstructure:"user"`
	Password     string        `mapstructure:"password"`
	Query        string        `mapstructure:"query"`
	QueryTimeout time.Duration `mapstructure:"query_timeout" validate:"gt=0"`
}

type PollConfig struct {
	Interval        time.Duration `mapstructure:"interval" validate:"gt=0"`
	SnapshotTimeout time.Duration `mapstructure:"snapshot_timeout" validate:"gte=0"`
	ClaimTimeout    time.Duration `mapstructure:"claim_timeout" validate:"gte=0"`
}

// JournalConfig enables the run journal. An empty DSN disables it.
type JournalConfig struct {
	DSN string `mapstructure:"dsn"`
}

type WatchConfig struct {
	Schedule string `mapstructure:"schedule" validate:"required"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error DEBUG INFO WARN ERROR"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

// MetricsConfig enables the /metrics endpoint. An empty address disables it.
type MetricsConfig struct {
	Address string `mapstructure:"address"`
}

// defaults holds every key with its built-in value.
var defaults = map[string]any{
	"control_plane.port":            8282,
	"control_plane.base_path":       "/connect/api/v1",
	"control_plane.request_timeout": 30 * time.Second,
	"control_plane.retries":         2,
	"job.name":                      "oracle-job",
	"job.config_file":               "redis_connect_oracle_CHINOOK.json",
	"job.marker_policy":             "before-load",
	"source.dialect":                "oracle",
	"source.port":                   1521,
	"source.service_name":           "ORCLPDB1",
	"source.query_timeout":          15 * time.Second,
	"poll.interval":                 5 * time.Second,
	"poll.snapshot_timeout":         12 * time.Hour,
	"poll.claim_timeout":            10 * time.Minute,
	"watch.schedule":                "@every 30s",
	"log.level":                     "info",
	"log.format":                    "json",
}

// legacyEnv lists the variable names existing deployments set. The
// HANDOFF_ form of a key is checked first.
var legacyEnv = map[string]string{
	"control_plane.host":  "REDIS_CONNECT_HOST",
	"control_plane.port":  "REDIS_CONNECT_PORT",
	"job.name":            "JOB_NAME",
	"job.config_file":     "JOB_CONFIG_FILE",
	"source.host":         "ORACLE_HOST",
	"source.port":         "ORACLE_PORT",
	"source.service_name": "ORACLE_SERVICE_NAME",
	"source.user":         "ORACLE_USER",
	"source.password":     "ORACLE_PASSWORD",
}

// FlagKeys maps command-line flag names onto configuration keys.
var FlagKeys = map[string]string{
	"host":             "control_plane.host",
	"port":             "control_plane.port",
	"request-timeout":  "control_plane.request_timeout",
	"retries":          "control_plane.retries",
	"job":              "job.name",
	"config-file":      "job.config_file",
	"marker-policy":    "job.marker_policy",
	"dialect":          "source.dialect",
	"source-dsn":       "source.dsn",
	"marker-query":     "source.query",
	"poll-interval":    "poll.interval",
	"snapshot-timeout": "poll.snapshot_timeout",
	"claim-timeout":    "poll.claim_timeout",
	"journal":          "journal.dsn",
	"schedule":         "watch.schedule",
	"log-level":        "log.level",
	"log-format":       "log.format",
	"metrics-addr":     "metrics.address",
}

// optionalKeys have no default.
var optionalKeys = []string{
	"control_plane.host",
	"source.dsn",
	"source.host",
	"source.user",
	"source.password",
	"source.query",
	"journal.dsn",
	"metrics.address",
}

// Keys returns every configuration key, sorted.
func Keys() []string {
	keys := make([]string, 0, len(defaults)+len(optionalKeys))
	for key := range defaults {
		keys = append(keys, key)
	}
	keys = append(keys, optionalKeys...)
	slices.Sort(keys)
	return keys
}

// Sources tells Load where to look besides the environment.
type Sources struct {
	// ConfigFile is an optional YAML file.
	ConfigFile string
	// EnvFile is loaded into the environment first. Empty means ".env"
	// when it exists.
	EnvFile string
	// Flags are bound by FlagKeys. Only flags set explicitly override.
	Flags *pflag.FlagSet
}

// Load resolves and validates the configuration.
func Load(src Sources) (*Config, error) {
	if err := loadEnvFile(src.EnvFile); err != nil {
		return nil, err
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Explicit bindings make keys without a default visible to Unmarshal
	// and add the legacy names as fallbacks.
	for _, key := range Keys() {
		names := []string{key, EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}
		if legacy, ok := legacyEnv[key]; ok {
			names = append(names, legacy)
		}
		if err := v.BindEnv(names...); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	if src.ConfigFile != "" {
		v.SetConfigFile(src.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", src.ConfigFile, err)
		}
	}

	if src.Flags != nil {
		for name, key := range FlagKeys {
			if f := src.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("config: bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadEnvFile(path string) error {
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		path = ".env"
	}
	// godotenv.Load never overrides variables that are already set.
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: load env file %s: %w", path, err)
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the source settings.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := c.Source.DataSourceName(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Source.Query == "" {
		d, _ := marker.ParseDialect(c.Source.Dialect)
		if d.DefaultQuery() == "" {
			return fmt.Errorf("config: source.query is required for dialect %s", c.Source.Dialect)
		}
	}
	return nil
}

// DataSourceName returns the DSN of the source database, building an
// Oracle easy-connect URL from the connection fields when no DSN is set.
func (s SourceConfig) DataSourceName() (string, error) {
	if s.DSN != "" {
		return s.DSN, nil
	}
	if s.Dialect != string(marker.DialectOracle) {
		return "", fmt.Errorf("source.dsn is required for dialect %s", s.Dialect)
	}
	var missing []string
	if s.Host == "" {
		missing = append(missing, "source.host")
	}
	if s.ServiceName == "" {
		missing = append(missing, "source.service_name")
	}
	if s.User == "" {
		missing = append(missing, "source.user")
	}
	if len(missing) > 0 {
		return "", errors.New("missing " + strings.Join(missing, ", "))
	}
	return marker.OracleDSN(s.Host, s.Port, s.ServiceName, s.User, s.Password), nil
}

// BaseURL returns the control plane API root.
func (c ControlPlaneConfig) BaseURL() string {
	return controlplane.BaseURL(c.Host, c.Port, c.BasePath)
}
