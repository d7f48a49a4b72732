// ABOUTME: Node configuration and defaults
// ABOUTME: Endpoints, credentials, reconnect policy and player limits
package lava

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/lavaclient/lava-go/internal/version"
	"github.com/lavaclient/lava-go/pkg/backoff"
	"github.com/lavaclient/lava-go/pkg/protocol"
)

const (
	DefaultPort      = 2333
	DefaultMaxVolume = 1000
	DefaultVolume    = 100
)

// NodeConfig describes one node.
type NodeConfig struct {
	// ID names the node within a pool. Generated when empty.
	ID string

	Host   string
	Port   int
	Secure bool

	// WSURL and RESTURL override the URLs derived from Host and Port.
	WSURL   string
	RESTURL string

	Password   string
	UserID     snowflake.ID
	ClientName string

	// Version selects the protocol: 4 (default) sends commands over REST,
	// 3 sends them as WebSocket ops.
	Version int

	// ReconnectOnFail keeps retrying in the background when the first
	// connect fails. Lost connections are always retried.
	ReconnectOnFail bool
	Reconnect       backoff.Config

	// ResumeTimeout enables session resuming; the node keeps players alive
	// this long after a disconnect.
	ResumeTimeout time.Duration

	// SkipReplay stops players from re-sending their track when a reconnect
	// could not resume the old session.
	SkipReplay bool

	RequestTimeout   time.Duration
	HandshakeTimeout time.Duration
	RateLimit        rate.Limit
	RateBurst        int
	HTTPClient       *http.Client

	// MaxVolume bounds Player.SetVolume. Default 1000.
	MaxVolume int

	Logger zerolog.Logger
	// OnEvent receives player and node events. It may call Player commands.
	OnEvent func(Event)
}

func (c *NodeConfig) applyDefaults() {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Version == 0 {
		c.Version = 4
	}
	if c.ClientName == "" {
		c.ClientName = version.ClientName()
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = protocol.DefaultRequestTimeout
	}
	if c.MaxVolume <= 0 {
		c.MaxVolume = DefaultMaxVolume
	}
}

func (c NodeConfig) hostPort() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c NodeConfig) wsURL() string {
	if c.WSURL != "" {
		return c.WSURL
	}
	scheme := "ws"
	if c.Secure {
		scheme = "wss"
	}
	path := "/v4/websocket"
	if c.Version < 4 {
		path = "/"
	}
	return scheme + "://" + c.hostPort() + path
}

func (c NodeConfig) restURL() string {
	if c.RESTURL != "" {
		return c.RESTURL
	}
	scheme := "http"
	if c.Secure {
		scheme = "https"
	}
	return scheme + "://" + c.hostPort()
}
