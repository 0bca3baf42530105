package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultUpstreamURL is the NerdGraph endpoint every relayed request goes to
// unless overridden.
const DefaultUpstreamURL = "https://api.newrelic.com/graphql"

// Config holds the relay settings. It is built once at startup and never
// mutated afterwards.
type Config struct {
	ListenPort string `mapstructure:"listen_port"`
	// IndexFile is the single static HTML document served on / and /index.html
	IndexFile string         `mapstructure:"index_file"`
	Upstream  UpstreamConfig `mapstructure:"upstream"`
	Logging   LoggingConfig  `mapstructure:"logging"`
	Tracing   TracingConfig  `mapstructure:"tracing"`
	TLS       TLSConfig      `mapstructure:"tls"`
	CORS      CORSConfig     `mapstructure:"cors"`
	Server    ServerConfig   `mapstructure:"server"`
}

// UpstreamConfig describes the GraphQL endpoint requests are forwarded to.
type UpstreamConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Environment string `mapstructure:"environment"` // "development" switches to console output
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
	Endpoint    string `mapstructure:"endpoint"` // OTLP/HTTP collector host:port
}

type TLSConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	CertDir string `mapstructure:"cert_dir"`
}

type CORSConfig struct {
	AllowedOrigin string `mapstructure:"allowed_origin"`
}

type ServerConfig struct {
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_port", "5001")
	v.SetDefault("index_file", "index.html")
	v.SetDefault("upstream.url", DefaultUpstreamURL)
	v.SetDefault("upstream.timeout", "60s")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.environment", "production")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "nerdrelay")
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tls.enabled", false)
	v.SetDefault("tls.cert_dir", "certs")
	v.SetDefault("cors.allowed_origin", "*")
	v.SetDefault("server.shutdown_timeout", "10s")
}

// LoadConfig builds the configuration from defaults, an optional YAML file,
// NERDRELAY_* environment variables and the given command-line flags, in
// increasing order of precedence. An empty path skips the file.
func LoadConfig(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("nerdrelay")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "error reading config file")
		}
	}

	if flags != nil {
		if f := flags.Lookup("port"); f != nil {
			if err := v.BindPFlag("listen_port", f); err != nil {
				return nil, errors.Wrap(err, "bind port flag")
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "error unmarshaling config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the relay cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenPort) == "" {
		return errors.New("listen_port must not be empty")
	}
	if strings.TrimSpace(c.Upstream.URL) == "" {
		return errors.New("upstream.url must not be empty")
	}
	if c.Upstream.Timeout <= 0 {
		return errors.Errorf("upstream.timeout must be positive, got %s", c.Upstream.Timeout)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.Errorf("server.shutdown_timeout must be positive, got %s", c.Server.ShutdownTimeout)
	}
	return nil
}

// LocateIndex resolves IndexFile to an absolute path. It returns "" when the
// file does not exist or is a directory.
func (c *Config) LocateIndex() string {
	if c.IndexFile == "" {
		return ""
	}
	abs, err := filepath.Abs(c.IndexFile)
	if err != nil {
		return ""
	}
	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		return ""
	}
	return abs
}
