// ABOUTME: mDNS discovery of Lavalink nodes
// ABOUTME: Browses _lavalink._tcp and can advertise a node for others to find
package discovery

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/rs/zerolog"
)

// ServiceType is the mDNS service nodes are announced under.
const ServiceType = "_lavalink._tcp"

const defaultInterval = 10 * time.Second

// Config holds discovery configuration
type Config struct {
	// ServiceName, Port, Version and Secure describe the node to advertise.
	ServiceName string
	Port        int
	Version     int
	Secure      bool

	// Interval between browse queries. Default 10s.
	Interval time.Duration
	Logger   zerolog.Logger
}

// Manager handles mDNS operations
type Manager struct {
	config Config
	log    zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	nodes  chan NodeInfo

	mu   sync.Mutex
	seen map[string]bool
}

// NodeInfo describes a discovered node
type NodeInfo struct {
	Name    string
	Host    string
	Port    int
	Version int
	Secure  bool
}

// Addr is host:port.
func (n NodeInfo) Addr() string {
	return net.JoinHostPort(n.Host, strconv.Itoa(n.Port))
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	if config.Interval <= 0 {
		config.Interval = defaultInterval
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		config: config,
		log:    config.Logger.With().Str("component", "discovery").Logger(),
		ctx:    ctx,
		cancel: cancel,
		nodes:  make(chan NodeInfo, 10),
		seen:   make(map[string]bool),
	}
}

// Advertise announces a node on this host until Stop is called.
func (m *Manager) Advertise() error {
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		txtRecords(m.config),
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	m.log.Info().Str("name", m.config.ServiceName).Int("port", m.config.Port).Msg("advertising node")

	go func() {
		<-m.ctx.Done()
		server.Shutdown()
	}()

	return nil
}

// Browse starts looking for nodes. Each node is reported once on Nodes.
func (m *Manager) Browse() {
	go m.browseLoop()
}

func (m *Manager) browseLoop() {
	for {
		entries := make(chan *mdns.ServiceEntry, 10)
		done := make(chan struct{})

		go func() {
			defer close(done)
			for entry := range entries {
				node, ok := nodeFromEntry(entry)
				if !ok || !m.markSeen(node) {
					continue
				}

				m.log.Info().Str("name", node.Name).Str("addr", node.Addr()).Msg("discovered node")

				select {
				case m.nodes <- node:
				case <-m.ctx.Done():
				}
			}
		}()

		params := &mdns.QueryParam{
			Service:     ServiceType,
			Domain:      "local",
			Timeout:     3 * time.Second,
			Entries:     entries,
			DisableIPv6: true,
		}
		if err := mdns.Query(params); err != nil {
			m.log.Warn().Err(err).Msg("mdns query failed")
		}
		close(entries)
		<-done

		select {
		case <-m.ctx.Done():
			return
		case <-time.After(m.config.Interval):
		}
	}
}

func (m *Manager) markSeen(n NodeInfo) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := n.Addr()
	if m.seen[key] {
		return false
	}
	m.seen[key] = true
	return true
}

// Nodes returns the channel of discovered nodes
func (m *Manager) Nodes() <-chan NodeInfo {
	return m.nodes
}

// Stop stops the discovery manager
func (m *Manager) Stop() {
	m.cancel()
}

func nodeFromEntry(e *mdns.ServiceEntry) (NodeInfo, bool) {
	var host string
	switch {
	case e.AddrV4 != nil:
		host = e.AddrV4.String()
	case e.AddrV6 != nil:
		host = e.AddrV6.String()
	default:
		host = strings.TrimSuffix(e.Host, ".")
	}
	if host == "" || e.Port == 0 {
		return NodeInfo{}, false
	}

	info := parseTXT(e.InfoFields)
	info.Name = strings.TrimSuffix(e.Name, "."+ServiceType+".local.")
	info.Host = host
	info.Port = e.Port
	return info, true
}

// parseTXT reads "version=3" and "secure=true" records. Anything else is
// ignored; the version defaults to 4.
func parseTXT(fields []string) NodeInfo {
	info := NodeInfo{Version: 4}
	for _, f := range fields {
		key, value, ok := strings.Cut(f, "=")
		if !ok {
			continue
		}
		switch strings.ToLower(key) {
		case "version":
			if v, err := strconv.Atoi(strings.TrimPrefix(value, "v")); err == nil && v > 0 {
				info.Version = v
			}
		case "secure":
			info.Secure, _ = strconv.ParseBool(value)
		}
	}
	return info
}

func txtRecords(c Config) []string {
	version := c.Version
	if version == 0 {
		version = 4
	}
	return []string{
		"version=" + strconv.Itoa(version),
		"secure=" + strconv.FormatBool(c.Secure),
	}
}

// getLocalIPs returns local IP addresses
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
