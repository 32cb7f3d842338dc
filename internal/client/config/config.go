// Package config resolves the terminal peer settings. Priority, highest
// first: command-line flags, WARPMESH_* environment variables, client.yaml,
// defaults.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/kkyr/fig"
	"github.com/pion/webrtc/v4"
)

const (
	EnvPrefix = "WARPMESH"
	FileName  = "client.yaml"
)

var ErrRelayWithoutTURN = errors.New("cannot force relay mode without a TURN server")

type Config struct {
	// ServerURL is the websocket endpoint of the relay.
	ServerURL string `fig:"server_url" default:"ws://localhost:8080/ws"`

	STUNServer string `fig:"stun_server" default:"stun:stun.l.google.com:19302"`
	TURNServer string `fig:"turn_server"`
	TURNUser   string `fig:"turn_username"`
	TURNPass   string `fig:"turn_password"`
	ForceRelay bool   `fig:"force_relay"`

	// Name is shown to the other peers.
	Name string `fig:"name"`
}

// Options carry flag values. Empty fields leave the loaded value alone.
type Options struct {
	ServerURL  string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool
	Name       string
}

func Load(opts Options) (*Config, error) {
	var c Config
	err := fig.Load(&c, fig.File(FileName), fig.Dirs(searchDirs()...), fig.UseEnv(EnvPrefix))
	if errors.Is(err, fig.ErrFileNotFound) {
		c = Config{}
		err = fig.Load(&c, fig.IgnoreFile(), fig.UseEnv(EnvPrefix))
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	c.apply(opts)

	if c.Name == "" {
		c.Name = defaultName()
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) apply(o Options) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.ServerURL, o.ServerURL)
	set(&c.STUNServer, o.STUNServer)
	set(&c.TURNServer, o.TURNServer)
	set(&c.TURNUser, o.TURNUser)
	set(&c.TURNPass, o.TURNPass)
	set(&c.Name, o.Name)
	if o.ForceRelay {
		c.ForceRelay = true
	}
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("invalid server URL %q: scheme must be ws or wss", c.ServerURL)
	}
	if c.ForceRelay && c.TURNServer == "" {
		return ErrRelayWithoutTURN
	}
	return nil
}

// TURNServers expands the TURN host into the usual transports, or returns nil
// when no TURN server is configured.
func (c *Config) TURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	host := strings.TrimPrefix(c.TURNServer, "turn:")
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", host),
		fmt.Sprintf("turn:%s:3478?transport=tcp", host),
		fmt.Sprintf("turns:%s:5349?transport=tcp", host),
	}
}

func (c *Config) ICEServers() []webrtc.ICEServer {
	var servers []webrtc.ICEServer
	if c.STUNServer != "" {
		servers = append(servers, webrtc.ICEServer{URLs: []string{c.STUNServer}})
	}
	if turn := c.TURNServers(); turn != nil {
		servers = append(servers, webrtc.ICEServer{
			URLs:       turn,
			Username:   c.TURNUser,
			Credential: c.TURNPass,
		})
	}
	return servers
}

func searchDirs() []string {
	dirs := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".warpmesh"))
	}
	return dirs
}

func defaultName() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return "warpmesh"
}
