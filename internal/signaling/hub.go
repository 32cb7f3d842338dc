package signaling

import (
	"context"
	"errors"
	"time"

	"github.com/BioHazard786/warpmesh/internal/logging"
	"github.com/BioHazard786/warpmesh/internal/metrics"
	"github.com/BioHazard786/warpmesh/internal/protocol"
	"github.com/BioHazard786/warpmesh/internal/registry"
)

// Config tunes the hub and its connections. Zero fields take defaults.
type Config struct {
	Policy Policy

	// SendBuffer is the outbound queue length per peer. A peer whose queue
	// fills up is disconnected.
	SendBuffer int

	// WriteWait is the time allowed to write a message to the peer.
	WriteWait time.Duration

	// PongWait is the time allowed to read the next pong message from the peer.
	PongWait time.Duration

	// MaxMessageSize is the largest frame accepted from a peer.
	MaxMessageSize int64
}

const (
	defaultSendBuffer     = 256
	defaultWriteWait      = 10 * time.Second
	defaultPongWait       = 60 * time.Second
	defaultMaxMessageSize = 64 * 1024 // enough for SDP
)

func (c Config) withDefaults() Config {
	if c.SendBuffer <= 0 {
		c.SendBuffer = defaultSendBuffer
	}
	if c.WriteWait <= 0 {
		c.WriteWait = defaultWriteWait
	}
	if c.PongWait <= 0 {
		c.PongWait = defaultPongWait
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = defaultMaxMessageSize
	}
	return c
}

// pingPeriod must be less than PongWait.
func (c Config) pingPeriod() time.Duration { return c.PongWait * 9 / 10 }

type inbound struct {
	client  *Client
	message *protocol.Message
}

// Hub is the central brain of the signaling server. It owns every
// connection and the room registry; Run is the only goroutine that touches
// them, so each event is handled to completion before the next one starts.
type Hub struct {
	conf Config

	// Register receives clients that have just connected.
	Register chan *Client

	// Unregister receives clients whose connection is gone.
	Unregister chan *Client

	messages chan *inbound
	clients  map[protocol.PeerID]*Client
	relay    *Relay
	done     chan struct{}

	// leaving is the peer whose disconnect is being cleaned up. Messages
	// addressed to it are expected to go nowhere.
	leaving protocol.PeerID

	log     *logging.Logger
	metrics *metrics.Metrics
}

// NewHub creates a hub. Both log and m may be nil.
func NewHub(conf Config, log *logging.Logger, m *metrics.Metrics) *Hub {
	if log == nil {
		log = logging.Nop()
	}
	h := &Hub{
		conf:       conf.withDefaults(),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		messages:   make(chan *inbound),
		clients:    make(map[protocol.PeerID]*Client),
		done:       make(chan struct{}),
		log:        log,
		metrics:    m,
	}
	h.relay = NewRelay(registry.New(), h, WithPolicy(conf.Policy), WithLogger(log), WithMetrics(m))
	return h
}

// Run processes hub events until ctx is done. Every connection is closed on
// the way out.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for id, c := range h.clients {
				delete(h.clients, id)
				close(c.Send)
				c.close()
			}
			h.metrics.SetPeers(0)
			return

		case c := <-h.Register:
			h.clients[c.ID] = c
			h.metrics.SetPeers(len(h.clients))
			h.log.Info().Str("peer", c.ID.String()).Str("addr", c.remoteAddr()).Msg("client registered")
			h.safely(func() { h.relay.Connect(c.ID) })

		case c := <-h.Unregister:
			if _, ok := h.clients[c.ID]; ok {
				delete(h.clients, c.ID)
				close(c.Send)
			}
			h.metrics.SetPeers(len(h.clients))
			h.log.Info().Str("peer", c.ID.String()).Msg("client unregistered")
			h.leaving = c.ID
		h.safely(func() { h.relay.Disconnect(c.ID) })
		h.leaving = ""

		case in := <-h.messages:
			if _, ok := h.clients[in.client.ID]; !ok {
				continue
			}
			h.safely(func() { h.handle(in) })
		}
	}
}

func (h *Hub) handle(in *inbound) {
	peer := in.client.ID
	err := h.relay.Handle(peer, in.message)
	if err == nil {
		return
	}
	h.metrics.ProtocolError(reason(err))
	ev := h.log.Warn()
	if errors.Is(err, ErrNotJoined) {
		ev = h.log.Debug()
	}
	ev.Err(err).Str("peer", peer.String()).Str("type", string(in.message.Type)).Msg("request ignored")
}

// safely keeps a bad message from taking the whole relay down.
func (h *Hub) safely(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error().Interface("panic", r).Msg("recovered in hub")
		}
	}()
	fn()
}

// Emit queues msg for one peer. Unknown peers are skipped and counted as
// unreachable, except the peer being disconnected; a peer whose queue is full
// is disconnected.
func (h *Hub) Emit(to protocol.PeerID, msg *protocol.Message) {
	c, ok := h.clients[to]
	if !ok && to == h.leaving {
		return
	}
	if !ok || c.evicted {
		h.metrics.Drop(metrics.DropUnreachable)
		h.log.Debug().Err(ErrPeerUnreachable).Str("peer", to.String()).Str("type", string(msg.Type)).Msg("message dropped")
		return
	}
	h.send(c, msg)
}

// Broadcast queues msg for every connected peer.
func (h *Hub) Broadcast(msg *protocol.Message) {
	for _, c := range h.clients {
		if !c.evicted {
			h.send(c, msg)
		}
	}
}

func (h *Hub) send(c *Client, msg *protocol.Message) {
	select {
	case c.Send <- msg:
		h.metrics.Sent(string(msg.Type))
	default:
		h.evict(c)
	}
}

// evict closes a connection that cannot keep up. Its read pump then
// unregisters it and the usual disconnect cleanup runs.
func (h *Hub) evict(c *Client) {
	c.evicted = true
	h.metrics.Drop(metrics.DropSlowPeer)
	h.log.Warn().Str("peer", c.ID.String()).Msg("send queue full, closing connection")
	c.close()
}

// Attach hands a new client to the hub. It reports false once the hub has
// stopped.
func (h *Hub) Attach(c *Client) bool {
	select {
	case h.Register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregister(c *Client) {
	select {
	case h.Unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) incoming(c *Client, msg *protocol.Message) bool {
	select {
	case h.messages <- &inbound{client: c, message: msg}:
		return true
	case <-h.done:
		return false
	}
}
