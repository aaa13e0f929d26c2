package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/loadboard/loadboard/internal/domain/event"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin checks belong to the reverse proxy in front of this service.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// channelsFromRequest reads the channel keys a viewer wants, e.g.
// ?channels=admin,carrier:<id>,load:<id>. Admin consoles default to the
// admin broadcast channel.
func channelsFromRequest(r *http.Request) []string {
	channels := splitCSV(r.URL.Query().Get("channels"))
	if len(channels) == 0 {
		channels = []string{event.ChannelAdmin}
	}
	return channels
}

func (s *Server) sseEndpoint(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "streaming not supported")
		return
	}

	sub := s.hub.Subscribe(channelsFromRequest(r))
	defer s.hub.Unsubscribe(sub.ID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// Send an initial comment to flush headers and keep the connection alive.
	_, _ = w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case ev := <-sub.Events:
			if ev == nil {
				return
			}
			payload, _ := json.Marshal(ev)
			_, _ = w.Write([]byte("event: "))
			_, _ = w.Write([]byte(ev.Type))
			_, _ = w.Write([]byte("\ndata: "))
			_, _ = w.Write(payload)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) wsEndpoint(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	sub := s.hub.Subscribe(channelsFromRequest(r))
	defer s.hub.Unsubscribe(sub.ID)

	// Read pump: the client sends nothing we care about, but reading is
	// what surfaces the close frame.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev := <-sub.Events:
			if ev == nil {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
