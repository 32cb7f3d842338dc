// Package signaling is the terminal peer's side of the relay protocol.
package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"

	"github.com/BioHazard786/warpmesh/internal/client/resolve"
	"github.com/BioHazard786/warpmesh/internal/logging"
	"github.com/BioHazard786/warpmesh/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var ErrClosed = errors.New("signaling connection closed")

// Client manages the websocket connection to the relay.
type Client struct {
	conn     *websocket.Conn
	incoming chan *protocol.Message
	outgoing chan *protocol.Message
	done     chan struct{}
	once     sync.Once
	log      *logging.Logger
}

// Dial connects to the relay at serverURL.
func Dial(ctx context.Context, serverURL string, log *logging.Logger) (*Client, error) {
	if log == nil {
		log = logging.Nop()
	}
	dialer := *websocket.DefaultDialer
	dialer.NetDialContext = resolve.DialContext

	conn, resp, err := dialer.DialContext(ctx, serverURL, nil)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", serverURL, err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	c := &Client{
		conn:     conn,
		incoming: make(chan *protocol.Message, 32),
		outgoing: make(chan *protocol.Message, 32),
		done:     make(chan struct{}),
		log:      log,
	}
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.readPump()
	go c.writePump()
	return c, nil
}

// readPump reads messages from the websocket connection. Incoming is closed
// when the connection ends.
func (c *Client) readPump() {
	defer func() {
		close(c.incoming)
		c.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.log.Debug().Err(err).Msg("signaling read ended")
			}
			return
		}
		msg, err := protocol.Parse(data)
		if err != nil {
			c.log.Warn().Err(err).Msg("ignored message from relay")
			continue
		}
		select {
		case c.incoming <- msg:
		case <-c.done:
			return
		}
	}
}

// writePump writes queued messages and keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.outgoing:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				c.log.Debug().Err(err).Msg("signaling write failed")
				c.Close()
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}

		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.flush()
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// flush writes whatever is still queued, so a leave_room sent right before
// Close reaches the relay.
func (c *Client) flush() {
	for {
		select {
		case msg := <-c.outgoing:
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

// Incoming delivers every message from the relay in order.
func (c *Client) Incoming() <-chan *protocol.Message { return c.incoming }

// Done is closed once the connection is shutting down.
func (c *Client) Done() <-chan struct{} { return c.done }

// Send queues msg for the relay.
func (c *Client) Send(msg *protocol.Message) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.outgoing <- msg:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

func (c *Client) send(kind protocol.Kind, payload any) error {
	msg, err := protocol.New(kind, payload)
	if err != nil {
		return err
	}
	return c.Send(msg)
}

func (c *Client) JoinRoom(room protocol.RoomID) error {
	return c.send(protocol.KindJoinRoom, protocol.JoinRoom{Room: room})
}

// LeaveRoom leaves room, or every room when room is empty.
func (c *Client) LeaveRoom(room protocol.RoomID) error {
	return c.send(protocol.KindLeaveRoom, protocol.LeaveRoom{Room: room})
}

func (c *Client) SendSessionDescription(to protocol.PeerID, sdp webrtc.SessionDescription) error {
	raw, err := json.Marshal(sdp)
	if err != nil {
		return err
	}
	return c.send(protocol.KindRelaySessionDescription, protocol.SessionDescription{Peer: to, SessionDescription: raw})
}

func (c *Client) SendICECandidate(to protocol.PeerID, candidate webrtc.ICECandidateInit) error {
	raw, err := json.Marshal(candidate)
	if err != nil {
		return err
	}
	return c.send(protocol.KindRelayICECandidate, protocol.ICECandidate{Peer: to, ICECandidate: raw})
}

// Close ends the connection. It is safe to call more than once.
func (c *Client) Close() {
	c.once.Do(func() { close(c.done) })
}
