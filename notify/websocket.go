package notify

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/c0deZ3R0/go-quote-sync/logging"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 4 * 1024,
}

// WebSocketBridge pushes broker changes to connected UI clients as JSON
// messages over a WebSocket.
type WebSocketBridge struct {
	broker *Broker
	logger *logging.Logger
}

// NewWebSocketBridge creates a bridge over the given broker.
func NewWebSocketBridge(broker *Broker) *WebSocketBridge {
	return &WebSocketBridge{
		broker: broker,
		logger: logging.WithComponent(logging.Component("notify-ws")),
	}
}

// ServeHTTP upgrades the request and streams changes until the client
// disconnects or the broker closes.
func (w *WebSocketBridge) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(rw, r, nil)
	if err != nil {
		w.logger.Error("failed to upgrade the websocket", slog.String("error", err.Error()))
		return
	}
	defer ws.Close()

	sub := w.broker.Subscribe(32)
	defer sub.Cancel()

	w.logger.Info("websocket client connected", slog.String("remote", r.RemoteAddr))

	// Reader goroutine: detect client disconnect so the write loop exits.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case change, ok := <-sub.C():
			if !ok {
				return
			}
			if err := ws.WriteJSON(change); err != nil {
				w.logger.Warn("failed to write websocket JSON", slog.String("error", err.Error()))
				return
			}
		case <-done:
			w.logger.Info("websocket client disconnected", slog.String("remote", r.RemoteAddr))
			return
		}
	}
}
