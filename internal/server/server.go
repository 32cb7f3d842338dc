// Package server exposes the signaling hub and the monitoring endpoints over
// HTTP.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/BioHazard786/warpmesh/internal/logging"
)

type Server struct {
	http.Server

	name     string
	listener net.Listener
	log      *logging.Logger
}

// New binds address right away so the real address (":0" included) is known
// before Run.
func New(name, address string, handler http.Handler, log *logging.Logger) (*Server, error) {
	if log == nil {
		log = logging.Nop()
	}
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	s := &Server{
		Server: http.Server{
			Addr:              ln.Addr().String(),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		name:     name,
		listener: ln,
		log:      log,
	}
	return s, nil
}

func (s *Server) Run() { go s.run() }

func (s *Server) run() {
	s.log.Info().Str("server", s.name).Str("addr", s.Addr).Msg("listening")
	err := s.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		s.log.Debug().Str("server", s.name).Msg("server closed")
		return
	}
	s.log.Error().Err(err).Str("server", s.name).Msg("server stopped")
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Str("server", s.name).Msg("shutting down")
	return s.Server.Shutdown(ctx)
}

func (s *Server) String() string { return s.name + "::" + s.Addr }
