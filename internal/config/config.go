// Package config loads the signaling server configuration from a YAML file,
// WARPMESH_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/kkyr/fig"
)

const (
	EnvPrefix = "WARPMESH"
	FileName  = "config.yaml"
)

// Listen addresses used when nothing else is set. They must match the
// default tags below.
const (
	DefaultAddress           = ":8080"
	DefaultMonitoringAddress = ":6601"
)

type Config struct {
	Server     Server
	Signaling  Signaling
	Monitoring Monitoring
	Log        Log
}

type Server struct {
	Address         string `fig:"address" default:":8080"`
	ReadBufferSize  int    `fig:"read_buffer_size" default:"65536"`
	WriteBufferSize int    `fig:"write_buffer_size" default:"65536"`
}

type Signaling struct {
	// SingleRoom rejects a join while the peer is still in another room.
	SingleRoom     bool          `fig:"single_room"`
	SendBuffer     int           `fig:"send_buffer" default:"256"`
	WriteWait      time.Duration `fig:"write_wait" default:"10s"`
	PongWait       time.Duration `fig:"pong_wait" default:"60s"`
	MaxMessageSize int64         `fig:"max_message_size" default:"65536"`
}

// Monitoring is the separate listener for metrics and profiling.
type Monitoring struct {
	MetricsEnabled   bool   `fig:"metrics_enabled"`
	ProfilingEnabled bool   `fig:"profiling_enabled"`
	Address          string `fig:"address" default:":6601"`
	URLPrefix        string `fig:"url_prefix"`
}

func (m Monitoring) Enabled() bool { return m.MetricsEnabled || m.ProfilingEnabled }

type Log struct {
	Debug   bool `fig:"debug"`
	Console bool `fig:"console"`
	NoColor bool `fig:"no_color"`
}

// Load reads the configuration. A non-empty path names a file or the directory
// holding config.yaml; otherwise the usual places are searched. A missing file
// is not an error: env variables and defaults still apply.
func Load(path string) (Config, error) {
	var conf Config

	file, dirs := FileName, searchDirs()
	if path != "" {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			file, dirs = filepath.Base(path), []string{filepath.Dir(path)}
		} else {
			dirs = []string{path}
		}
	}

	err := fig.Load(&conf, fig.File(file), fig.Dirs(dirs...), fig.UseEnv(EnvPrefix))
	if errors.Is(err, fig.ErrFileNotFound) {
		conf = Config{}
		err = fig.Load(&conf, fig.IgnoreFile(), fig.UseEnv(EnvPrefix))
	}
	if err != nil {
		return Config{}, err
	}
	return conf, nil
}

func searchDirs() []string {
	dirs := []string{".", "configs"}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".warpmesh"))
	}
	return dirs
}
