package command

import (
	"context"
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/BioHazard786/warpmesh/internal/client/config"
	"github.com/BioHazard786/warpmesh/internal/client/mesh"
	"github.com/BioHazard786/warpmesh/internal/client/signaling"
	"github.com/BioHazard786/warpmesh/internal/client/ui"
	"github.com/BioHazard786/warpmesh/internal/protocol"
	"github.com/BioHazard786/warpmesh/internal/version"
)

// ConnectionContext is everything one room session runs on.
type ConnectionContext struct {
	Client  *signaling.Client
	Handler *signaling.Handler
	Mesh    *mesh.Mesh
	Config  *config.Config
}

func NewConnectionContext(ctx context.Context, cfg *config.Config) (*ConnectionContext, error) {
	client, err := dial(ctx, cfg.ServerURL)
	if err != nil {
		return nil, err
	}

	m := mesh.New(client, mesh.Options{
		Name:       cfg.Name,
		Version:    version.Version,
		ICEServers: cfg.ICEServers(),
		ForceRelay: cfg.ForceRelay,
		Log:        logger,
	})
	handler := signaling.NewHandler(m, logger)
	go handler.Run(client.Incoming())

	return &ConnectionContext{
		Client:  client,
		Handler: handler,
		Mesh:    m,
		Config:  cfg,
	}, nil
}

// Close leaves every room, then tears down the peer connections and the relay
// connection.
func (c *ConnectionContext) Close() {
	_ = c.Client.LeaveRoom("")
	c.Mesh.Close()
	c.Client.Close()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(opts)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func dial(ctx context.Context, url string) (*signaling.Client, error) {
	sp := ui.NewConnectionSpinner("Connecting to relay...")
	sp.Start()
	client, err := signaling.Dial(ctx, url, logger)
	if err != nil {
		sp.Stop()
		return nil, fmt.Errorf("connect to server: %w", err)
	}
	sp.Success("Connected to relay")
	return client, nil
}

func runSession(ctx context.Context, room protocol.RoomID) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.ForceRelay {
		ui.PrintInfo("Relay mode: traffic goes through " + cfg.TURNServer)
	}

	conn, err := NewConnectionContext(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()
	if conn.Mesh.Policy() == webrtc.ICETransportPolicyRelay && !cfg.ForceRelay {
		ui.PrintWarning("Restrictive network detected, connecting through TURN only")
	}

	if err := conn.Client.JoinRoom(room); err != nil {
		return fmt.Errorf("join room: %w", err)
	}
	logger.Debug().Str("room", room.String()).Str("name", cfg.Name).Msg("joined room")

	model := ui.NewSessionModel(room, cfg.Name, conn.Mesh.Events(), conn.Client.Done(), conn.Mesh.Send)
	if err := ui.RunSession(model); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	if !model.Quitting() {
		return errDisconnected
	}
	return nil
}
