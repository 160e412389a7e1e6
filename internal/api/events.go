package api

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"

	"github.com/steward-ai/stewardd/internal/bus"
)

// eventSubscriberBuffer is the per-connection event buffer. A subscriber that
// falls this far behind starts missing events rather than blocking publishers.
const eventSubscriberBuffer = 64

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The daemon binds to localhost and the UI connects from a file origin.
	CheckOrigin: func(*http.Request) bool { return true },
}

// EventsHandler upgrades the connection to a websocket and streams bus
// envelopes to it until the client disconnects. Delivery is at-most-once:
// there is no backlog or replay for late or slow subscribers.
func EventsHandler(logger hclog.Logger, events *bus.Bus) http.HandlerFunc {
	wsLogger := logger.Named("api").Named("events")

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			wsLogger.Error("Websocket upgrade failed", "error", err)
			return
		}

		ch := events.Subscribe(eventSubscriberBuffer)
		defer func() {
			events.Unsubscribe(ch)
			_ = conn.Close()
		}()

		// Drain client frames so close/ping control messages are processed;
		// the stream is one-way otherwise.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, rerr := conn.ReadMessage(); rerr != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-done:
				return
			case env, ok := <-ch:
				if !ok {
					return
				}
				if werr := conn.WriteJSON(env); werr != nil {
					wsLogger.Debug("Subscriber write failed, dropping connection", "error", werr)
					return
				}
			}
		}
	}
}
