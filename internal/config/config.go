// ABOUTME: Environment configuration for the lavamon binary
// ABOUTME: Reads .env files and LAVA_* variables into node configs
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/disgoorg/snowflake/v2"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/lavaclient/lava-go/pkg/backoff"
	"github.com/lavaclient/lava-go/pkg/lava"
)

// Config is everything lavamon reads from the environment.
type Config struct {
	Nodes      []NodeSpec `env:"LAVA_NODES" envSeparator:","`
	Password   string     `env:"LAVA_PASSWORD" envDefault:"youshallnotpass"`
	UserID     uint64     `env:"LAVA_USER_ID"`
	ClientName string     `env:"LAVA_CLIENT_NAME"`
	Version    int        `env:"LAVA_VERSION" envDefault:"4"`
	Secure     bool       `env:"LAVA_SECURE"`

	ResumeTimeout  time.Duration `env:"LAVA_RESUME_TIMEOUT" envDefault:"60s"`
	RequestTimeout time.Duration `env:"LAVA_REQUEST_TIMEOUT" envDefault:"10s"`
	ReconnectBase  time.Duration `env:"LAVA_RECONNECT_BASE" envDefault:"2s"`
	ReconnectMax   time.Duration `env:"LAVA_RECONNECT_MAX" envDefault:"5m"`
	ReconnectTries int           `env:"LAVA_RECONNECT_TRIES"`

	Discover     bool   `env:"LAVA_DISCOVER"`
	DiscordToken string `env:"DISCORD_TOKEN"`
	LogLevel     string `env:"LAVA_LOG_LEVEL" envDefault:"info"`
}

// NodeSpec is one LAVA_NODES entry: [id@]host[:port]. IPv6 hosts with a
// port are bracketed: [::1]:2333.
type NodeSpec struct {
	ID   string
	Host string
	Port int
}

// UnmarshalText parses a node entry.
func (n *NodeSpec) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" {
		return errors.New("empty node entry")
	}

	if id, rest, ok := strings.Cut(s, "@"); ok {
		n.ID = id
		s = rest
	}

	n.Port = lava.DefaultPort
	host, port, err := net.SplitHostPort(s)
	if err != nil {
		// No port: a bare host, IPv6 literal or bracketed IPv6 literal.
		host, port = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]"), ""
	}
	n.Host = host
	if port != "" {
		p, err := strconv.Atoi(port)
		if err != nil || p <= 0 || p > 65535 {
			return fmt.Errorf("node %q: invalid port %q", string(text), port)
		}
		n.Port = p
	}
	if n.Host == "" {
		return fmt.Errorf("node %q: missing host", string(text))
	}
	if n.ID == "" {
		n.ID = net.JoinHostPort(n.Host, strconv.Itoa(n.Port))
	}
	return nil
}

// Load reads the given .env files (default ".env") and then the process
// environment, which wins. Missing files are skipped.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}

	environ := make(map[string]string)
	for _, f := range files {
		vars, err := godotenv.Read(f)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f, err)
		}
		for k, v := range vars {
			environ[k] = v
		}
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			environ[k] = v
		}
	}

	return parse(environ)
}

func parse(environ map[string]string) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.Version != 3 && cfg.Version != 4 {
		return nil, fmt.Errorf("LAVA_VERSION must be 3 or 4, got %d", cfg.Version)
	}
	return &cfg, nil
}

// Level is the configured log level.
func (c *Config) Level() (zerolog.Level, error) {
	return zerolog.ParseLevel(c.LogLevel)
}

// NodeConfig builds the node config shared by every node, without an
// address.
func (c *Config) NodeConfig() lava.NodeConfig {
	return lava.NodeConfig{
		Password:        c.Password,
		UserID:          snowflake.ID(c.UserID),
		ClientName:      c.ClientName,
		Version:         c.Version,
		Secure:          c.Secure,
		ReconnectOnFail: true,
		Reconnect: backoff.Config{
			Base:     c.ReconnectBase,
			Max:      c.ReconnectMax,
			MaxTries: c.ReconnectTries,
		},
		ResumeTimeout:  c.ResumeTimeout,
		RequestTimeout: c.RequestTimeout,
	}
}

// NodeConfigs builds one node config per LAVA_NODES entry.
func (c *Config) NodeConfigs() []lava.NodeConfig {
	out := make([]lava.NodeConfig, 0, len(c.Nodes))
	for _, n := range c.Nodes {
		nc := c.NodeConfig()
		nc.ID = n.ID
		nc.Host = n.Host
		nc.Port = n.Port
		out = append(out, nc)
	}
	return out
}
