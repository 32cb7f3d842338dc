package signaling

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/BioHazard786/warpmesh/internal/metrics"
	"github.com/BioHazard786/warpmesh/internal/protocol"
)

// Client is a wrapper for a single websocket connection (a peer).
type Client struct {
	// ID is the peer id the relay knows this connection by.
	ID protocol.PeerID

	// Hub is the hub that manages this client.
	Hub *Hub

	// Conn is the websocket connection.
	Conn *websocket.Conn

	// Send is a buffered channel of outbound messages. The hub writes to it
	// and WritePump drains it onto the websocket.
	Send chan *protocol.Message

	// evicted is owned by the hub goroutine.
	evicted bool
}

func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		ID:   protocol.NewPeerID(),
		Hub:  hub,
		Conn: conn,
		Send: make(chan *protocol.Message, hub.conf.SendBuffer),
	}
}

// ReadPump pumps messages from the websocket connection to the hub.
//
// The application runs ReadPump in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.unregister(c)
		c.close()
	}()

	conf := c.Hub.conf
	log := c.Hub.log
	c.Conn.SetReadLimit(conf.MaxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(conf.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(conf.PongWait))
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("peer", c.ID.String()).Msg("read error")
			}
			return
		}

		msg, err := protocol.Parse(data)
		if err != nil {
			c.Hub.metrics.Drop(metrics.DropMalformed)
			log.Warn().Err(err).Str("peer", c.ID.String()).Msg("dropped unparseable message")
			continue
		}
		if !c.Hub.incoming(c, msg) {
			return
		}
	}
}

// WritePump pumps messages from the hub to the websocket connection.
//
// A goroutine running WritePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) WritePump() {
	conf := c.Hub.conf
	ticker := time.NewTicker(conf.pingPeriod())
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(conf.WriteWait))
			if !ok {
				// The hub closed the channel.
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteJSON(message); err != nil {
				c.Hub.log.Debug().Err(err).Str("peer", c.ID.String()).Msg("write error")
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(conf.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) close() {
	if c.Conn != nil {
		_ = c.Conn.Close()
	}
}

func (c *Client) remoteAddr() string {
	if c.Conn == nil {
		return ""
	}
	return c.Conn.RemoteAddr().String()
}
