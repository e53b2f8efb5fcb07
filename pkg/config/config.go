package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/edgeflare/eelytics/pkg/mqtt"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Version is set at build time with -ldflags "-X github.com/edgeflare/eelytics/pkg/config.Version=...".
var Version = "dev"

const (
	// EnvPrefix is prepended to every environment override, e.g. EELYTICS_POSTGRES_CONNSTRING.
	EnvPrefix = "EELYTICS"
	// ConfigName is the base name of the config file searched in $HOME/.config and ".".
	ConfigName = "eelytics"
)

// Config holds application-wide configuration
type Config struct {
	Postgres PostgresConfig     `mapstructure:"postgres"`
	MQTT     mqtt.ClientOptions `mapstructure:"mqtt"`
	HTTP     HTTPConfig         `mapstructure:"http"`
	Metrics  MetricsConfig      `mapstructure:"metrics"`
	Log      LogConfig          `mapstructure:"log"`
}

type PostgresConfig struct {
	ConnString   string        `mapstructure:"connString"`
	MaxConns     int32         `mapstructure:"maxConns"`
	ReadyTimeout time.Duration `mapstructure:"readyTimeout"`
}

type HTTPConfig struct {
	ListenAddr        string        `mapstructure:"listenAddr"`
	ReadHeaderTimeout time.Duration `mapstructure:"readHeaderTimeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdownTimeout"`
	TLS               HTTPTLSConfig `mapstructure:"tls"`
}

// HTTPTLSConfig enables HTTPS. A self-signed pair is generated when the files do not exist.
type HTTPTLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"certFile"`
	KeyFile  string `mapstructure:"keyFile"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

var defaults = map[string]any{
	"postgres.connString":         "postgres://eelytics_admin@localhost:5432/eelytics_db?sslmode=disable",
	"postgres.maxConns":           4,
	"postgres.readyTimeout":       "30s",
	"mqtt.servers":                []string{mqtt.DefaultBroker},
	"mqtt.clientID":               "",
	"mqtt.username":               "",
	"mqtt.password":               "",
	"mqtt.keepAlive":              "5s",
	"mqtt.pingTimeout":            "10s",
	"mqtt.connectTimeout":         "10s",
	"mqtt.connectRetryInterval":   "5s",
	"mqtt.maxReconnectInterval":   "1m",
	"mqtt.qos":                    0,
	"mqtt.autoReconnect":          true,
	"mqtt.connectRetry":           true,
	"mqtt.cleanSession":           true,
	"mqtt.tls.enabled":            false,
	"mqtt.tls.insecureSkipVerify": false,
	"mqtt.tls.serverName":         "",
	"mqtt.tls.caFile":             "",
	"mqtt.tls.certFile":           "",
	"mqtt.tls.keyFile":            "",
	"http.listenAddr":             ":5000",
	"http.readHeaderTimeout":      "5s",
	"http.shutdownTimeout":        "10s",
	"http.tls.enabled":            false,
	"http.tls.certFile":           "./tls/tls.crt",
	"http.tls.keyFile":            "./tls/tls.key",
	"metrics.enabled":             true,
	"metrics.addr":                ":9100",
	"log.level":                   "info",
}

// Load reads configuration from, in increasing precedence: defaults, the config file, a .env
// file in the working directory, EELYTICS_* environment variables and flags. A missing config
// file is not an error unless cfgFile names it explicitly.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	// .env only fills variables that are not already set
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config"))
		}
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("error binding flags: %w", err)
		}
		if f := flags.Lookup("log-level"); f != nil {
			if err := v.BindPFlag("log.level", f); err != nil {
				return nil, fmt.Errorf("error binding flags: %w", err)
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Postgres.ConnString == "" {
		errs = append(errs, errors.New("postgres.connString is required"))
	}
	if c.Postgres.MaxConns < 1 {
		errs = append(errs, fmt.Errorf("postgres.maxConns must be positive, got %d", c.Postgres.MaxConns))
	}
	if len(c.MQTT.Servers) == 0 {
		errs = append(errs, errors.New("mqtt.servers must list at least one broker"))
	}
	if c.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS))
	}
	if c.HTTP.ListenAddr == "" {
		errs = append(errs, errors.New("http.listenAddr is required"))
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		errs = append(errs, errors.New("metrics.addr is required when metrics are enabled"))
	}
	return errors.Join(errs...)
}
