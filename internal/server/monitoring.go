package server

import (
	"net/http"
	"net/http/pprof"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BioHazard786/warpmesh/internal/config"
	"github.com/BioHazard786/warpmesh/internal/logging"
	"github.com/BioHazard786/warpmesh/internal/metrics"
)

// NewMonitoringHandler serves Prometheus metrics and pprof under the
// configured prefix.
func NewMonitoringHandler(conf config.Monitoring, m *metrics.Metrics, log *logging.Logger) http.Handler {
	if log == nil {
		log = logging.Nop()
	}
	h := http.NewServeMux()

	if conf.ProfilingEnabled {
		prefix := conf.URLPrefix + "/debug/pprof"
		log.Info().Str("path", prefix).Msg("profiling is enabled")
		h.HandleFunc(prefix+"/", pprof.Index)
		h.HandleFunc(prefix+"/cmdline", pprof.Cmdline)
		h.HandleFunc(prefix+"/profile", pprof.Profile)
		h.HandleFunc(prefix+"/symbol", pprof.Symbol)
		h.HandleFunc(prefix+"/trace", pprof.Trace)
		// named profiles are not routed by Index under a custom prefix
		for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
			h.Handle(prefix+"/"+name, pprof.Handler(name))
		}
	}

	if conf.MetricsEnabled && m != nil {
		path := conf.URLPrefix + "/metrics"
		log.Info().Str("path", path).Msg("prometheus metrics are enabled")
		h.Handle(path, promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry}))
	}

	return h
}

// NewMonitoring creates the monitoring server. It is not started.
func NewMonitoring(conf config.Monitoring, m *metrics.Metrics, log *logging.Logger) (*Server, error) {
	return New("monitoring", conf.Address, NewMonitoringHandler(conf, m, log), log)
}
