package env

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io/ioutil"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/sethvargo/go-envconfig"
	"go.uber.org/zap"

	"github.com/luma/piconats/client"
	"github.com/luma/piconats/internal/meta"
	"github.com/luma/piconats/transport"
)

var (
	ErrBadServer = errors.New("Server must look like nats://host:port, tls://host:port or host:port")
)

// Config is read from the environment first and then from the TOML file passed to
// LoadConfig, whatever the file sets wins.
type Config struct {
	Server string `env:"PICONATS_SERVER,default=nats://127.0.0.1:4222" toml:"server"`
	Name   string `env:"PICONATS_NAME,default=piconats" toml:"name"`

	User  string `env:"PICONATS_USER" toml:"user"`
	Pass  string `env:"PICONATS_PASS" toml:"pass"`
	Token string `env:"PICONATS_TOKEN" toml:"token"`

	PingInterval   Duration `env:"PICONATS_PING_INTERVAL,default=2m" toml:"ping_interval"`
	ConnectTimeout Duration `env:"PICONATS_CONNECT_TIMEOUT,default=2s" toml:"connect_timeout"`
	MaxPingsOut    int      `env:"PICONATS_MAX_PINGS_OUT,default=2" toml:"max_pings_out"`
	MaxPayload     int      `env:"PICONATS_MAX_PAYLOAD" toml:"max_payload"`
	NoEcho         bool     `env:"PICONATS_NO_ECHO" toml:"no_echo"`
	Verbose        bool     `env:"PICONATS_VERBOSE" toml:"verbose"`

	// Trace logs every byte sent and received at debug level
	Trace bool `env:"PICONATS_TRACE" toml:"trace"`

	LogLevel  string `env:"PICONATS_LOG_LEVEL,default=info" toml:"log_level"`
	DebugHTTP bool   `env:"PICONATS_DEBUG_HTTP" toml:"debug_http"`
}

// LoadConfig reads .env.local if there is one, then the environment, then the TOML
// file at path. An empty path skips the file.
func LoadConfig(ctx context.Context, path string) (*Config, error) {
	config := Config{}

	if err := godotenv.Load(".env.local"); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("Failed to load .env.local: %w", err)
		}
	}

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, err
	}

	if path == "" {
		return &config, nil
	}

	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("Failed to read config file: %w", err)
	}

	// fields missing from the file keep what the environment set
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("Failed to parse config file %s: %w", path, err)
	}

	return &config, nil
}

// ClientOptions maps the config onto the client's options. Credentials in the server
// URL are used when the config has none of its own.
func (c *Config) ClientOptions(log *zap.Logger) client.Options {
	opts := client.Options{
		Name:           c.Name,
		User:           c.User,
		Pass:           c.Pass,
		Token:          c.Token,
		PingInterval:   time.Duration(c.PingInterval),
		ConnectTimeout: time.Duration(c.ConnectTimeout),
		MaxPingsOut:    c.MaxPingsOut,
		MaxPayload:     c.MaxPayload,
		Verbose:        c.Verbose,
		NoEcho:         c.NoEcho,
		Version:        meta.Version,
		Logger:         log,
	}

	if opts.User != "" || opts.Token != "" {
		return opts
	}

	if u, err := parseServer(c.Server); err == nil && u.User != nil {
		if pass, ok := u.User.Password(); ok {
			opts.User, opts.Pass = u.User.Username(), pass
		} else {
			opts.Token = u.User.Username()
		}
	}

	return opts
}

// TransportOptions maps the server URL onto the TCP transport's options.
func (c *Config) TransportOptions(log *zap.Logger) (transport.Options, error) {
	u, err := parseServer(c.Server)
	if err != nil {
		return transport.Options{}, err
	}

	opts := transport.Options{
		Host:           u.Hostname(),
		Port:           transport.DefaultPort,
		ConnectTimeout: time.Duration(c.ConnectTimeout),
		Trace:          c.Trace,
		Log:            log,
	}

	if u.Scheme == "tls" {
		opts.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	if port := u.Port(); port != "" {
		if opts.Port, err = strconv.Atoi(port); err != nil || opts.Port < 1 || opts.Port > 65535 {
			return transport.Options{}, fmt.Errorf("Failed to parse server '%s', bad port: %w", c.Server, ErrBadServer)
		}
	}

	return opts, nil
}

// Addr is host:port of the server, for logging.
func (c *Config) Addr() string {
	opts, err := c.TransportOptions(zap.NewNop())
	if err != nil {
		return c.Server
	}

	return net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
}

func parseServer(server string) (*url.URL, error) {
	raw := server
	if !strings.Contains(raw, "://") {
		raw = "nats://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("Failed to parse server '%s': %w", server, ErrBadServer)
	}

	if u.Scheme != "nats" && u.Scheme != "tls" {
		return nil, fmt.Errorf("Failed to parse server '%s', unknown scheme: %w", server, ErrBadServer)
	}

	if u.Hostname() == "" {
		return nil, fmt.Errorf("Failed to parse server '%s', no host: %w", server, ErrBadServer)
	}

	return u, nil
}

// Duration parses strings such as "90s" or "2m" from both the environment and TOML.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}

	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) EnvDecode(val string) error {
	return d.UnmarshalText([]byte(val))
}
