package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoadDefaults(t *testing.T) {
	conf, err := Load(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if conf.Server.Address != ":8080" {
		t.Errorf("address = %q", conf.Server.Address)
	}
	if conf.Signaling.SendBuffer != 256 || conf.Signaling.PongWait != time.Minute {
		t.Errorf("signaling = %+v", conf.Signaling)
	}
	if conf.Signaling.SingleRoom {
		t.Error("single room on by default")
	}
	if conf.Monitoring.Enabled() {
		t.Error("monitoring on by default")
	}
}

func TestLoadWithoutFile(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())

	conf, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if conf.Server.Address != DefaultAddress {
		t.Errorf("address = %q, want %q", conf.Server.Address, DefaultAddress)
	}
	if conf.Monitoring.Address != DefaultMonitoringAddress {
		t.Errorf("monitoring address = %q, want %q", conf.Monitoring.Address, DefaultMonitoringAddress)
	}
}

func TestFlagDefaultsMatchConfig(t *testing.T) {
	conf, err := Load(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	new(Flags).AddFlags(fs)

	tests := []struct {
		flag string
		want string
	}{
		{"addr", conf.Server.Address},
		{"metrics-addr", conf.Monitoring.Address},
	}
	for _, tt := range tests {
		if got := fs.Lookup(tt.flag).DefValue; got != tt.want {
			t.Errorf("--%s default = %q, config default = %q", tt.flag, got, tt.want)
		}
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	data := []byte("server:\n  address: \":9000\"\nsignaling:\n  single_room: true\n  pong_wait: 30s\nmonitoring:\n  metrics_enabled: true\n")
	path := filepath.Join(dir, "warpmesh.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	conf, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if conf.Server.Address != ":9000" {
		t.Errorf("address = %q", conf.Server.Address)
	}
	if !conf.Signaling.SingleRoom || conf.Signaling.PongWait != 30*time.Second {
		t.Errorf("signaling = %+v", conf.Signaling)
	}
	if conf.Signaling.WriteWait != 10*time.Second {
		t.Errorf("write wait = %v, want default", conf.Signaling.WriteWait)
	}
	if !conf.Monitoring.Enabled() || conf.Monitoring.Address != ":6601" {
		t.Errorf("monitoring = %+v", conf.Monitoring)
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("WARPMESH_SERVER_ADDRESS", ":7000")
	t.Setenv("WARPMESH_SIGNALING_SEND_BUFFER", "16")

	conf, err := Load(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if conf.Server.Address != ":7000" {
		t.Errorf("address = %q", conf.Server.Address)
	}
	if conf.Signaling.SendBuffer != 16 {
		t.Errorf("send buffer = %d", conf.Signaling.SendBuffer)
	}
}

func TestFlagsOverrideOnlyWhenSet(t *testing.T) {
	conf := Config{Server: Server{Address: ":9000"}, Monitoring: Monitoring{Address: ":7000"}}

	var f Flags
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f.AddFlags(fs)
	if err := fs.Parse([]string{"--single-room", "--metrics", "-d"}); err != nil {
		t.Fatal(err)
	}
	f.Apply(&conf)

	if conf.Server.Address != ":9000" {
		t.Errorf("unset flag replaced address with %q", conf.Server.Address)
	}
	if conf.Monitoring.Address != ":7000" {
		t.Errorf("unset flag replaced monitoring address with %q", conf.Monitoring.Address)
	}
	if !conf.Signaling.SingleRoom || !conf.Monitoring.MetricsEnabled || !conf.Log.Debug {
		t.Errorf("flags not applied: %+v", conf)
	}
}

func TestFlagsConfigPath(t *testing.T) {
	var f Flags
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f.AddFlags(fs)
	if err := fs.Parse([]string{"-c", "/etc/warpmesh", "--addr", ":1234"}); err != nil {
		t.Fatal(err)
	}
	var conf Config
	f.Apply(&conf)
	if f.ConfigPath != "/etc/warpmesh" || conf.Server.Address != ":1234" {
		t.Errorf("path = %q, address = %q", f.ConfigPath, conf.Server.Address)
	}
}
