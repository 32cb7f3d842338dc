package server

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/BioHazard786/warpmesh/internal/logging"
	"github.com/BioHazard786/warpmesh/internal/signaling"
)

const defaultBufferSize = 64 * 1024

type Options struct {
	ReadBufferSize  int
	WriteBufferSize int
}

// NewHandler returns the public routes: the websocket endpoint peers connect
// to and a health check.
func NewHandler(hub *signaling.Hub, log *logging.Logger, opts Options) http.Handler {
	if log == nil {
		log = logging.Nop()
	}
	if opts.ReadBufferSize <= 0 {
		opts.ReadBufferSize = defaultBufferSize
	}
	if opts.WriteBufferSize <= 0 {
		opts.WriteBufferSize = defaultBufferSize
	}
	upgrader := websocket.Upgrader{
		ReadBufferSize:  opts.ReadBufferSize,
		WriteBufferSize: opts.WriteBufferSize,
		// Peers are not authenticated; any origin may connect.
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", health)
	mux.HandleFunc("/ws", serveWs(hub, upgrader, log))
	return mux
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Signaling server is healthy."))
}

// serveWs upgrades the request and hands the connection to the hub, which
// owns it from then on.
func serveWs(hub *signaling.Hub, upgrader websocket.Upgrader, log *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Str("addr", r.RemoteAddr).Msg("websocket upgrade failed")
			return
		}

		client := signaling.NewClient(hub, conn)
		if !hub.Attach(client) {
			_ = conn.Close()
			return
		}

		go client.WritePump()
		go client.ReadPump()
	}
}
