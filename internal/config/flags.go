package config

import "github.com/spf13/pflag"

// Flags are command-line overrides. Only flags set by the user replace the
// loaded values.
type Flags struct {
	fs *pflag.FlagSet

	ConfigPath string

	address     string
	singleRoom  bool
	debug       bool
	console     bool
	metrics     bool
	metricsAddr string
	pprof       bool
}

func (f *Flags) AddFlags(fs *pflag.FlagSet) *Flags {
	f.fs = fs
	fs.StringVarP(&f.ConfigPath, "config", "c", "", "Path to the config file or its directory")
	fs.StringVarP(&f.address, "addr", "a", DefaultAddress, "Address the signaling server listens on")
	fs.BoolVar(&f.singleRoom, "single-room", false, "Allow a peer in one room at a time")
	fs.BoolVarP(&f.debug, "debug", "d", false, "Enable debug logging")
	fs.BoolVar(&f.console, "console", false, "Human-readable log output")
	fs.BoolVar(&f.metrics, "metrics", false, "Expose Prometheus metrics on the monitoring server")
	fs.StringVar(&f.metricsAddr, "metrics-addr", DefaultMonitoringAddress, "Address of the monitoring server")
	fs.BoolVar(&f.pprof, "pprof", false, "Expose pprof handlers on the monitoring server")
	return f
}

// Apply copies every flag the user set into conf.
func (f *Flags) Apply(conf *Config) {
	if f.fs == nil {
		return
	}
	if f.fs.Changed("addr") {
		conf.Server.Address = f.address
	}
	if f.fs.Changed("single-room") {
		conf.Signaling.SingleRoom = f.singleRoom
	}
	if f.fs.Changed("debug") {
		conf.Log.Debug = f.debug
	}
	if f.fs.Changed("console") {
		conf.Log.Console = f.console
	}
	if f.fs.Changed("metrics") {
		conf.Monitoring.MetricsEnabled = f.metrics
	}
	if f.fs.Changed("metrics-addr") {
		conf.Monitoring.Address = f.metricsAddr
	}
	if f.fs.Changed("pprof") {
		conf.Monitoring.ProfilingEnabled = f.pprof
	}
}
