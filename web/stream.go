package web

import (
	"encoding/json"
	"fmt"
	"net/http"

	"gamefeed-service/logger"
	"gamefeed-service/models"
	"gamefeed-service/services"
)

// handleStream serves the server-push event stream. Each event is
// framed as an event-type line, a JSON data line and an id line,
// terminated by a blank line.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	conn := ParseConnContext(r)
	if !s.limiter.Allow(conn.RemoteKey) {
		http.Error(w, services.ErrRateLimitExceeded.Error(), http.StatusTooManyRequests)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	logger.Printf("[Stream] client %s connected (mode=%s tier=%s)", conn.RemoteKey, conn.Mode, conn.Tier)

	s.dispatcher.Run(r.Context(), conn, func(event models.Event) error {
		if err := writeSSE(w, event); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})

	logger.Printf("[Stream] client %s disconnected", conn.RemoteKey)
}

// writeSSE frames one event onto an SSE stream.
func writeSSE(w http.ResponseWriter, event models.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		// Nothing in models fails to marshal; skip rather than kill
		// the stream if it ever does.
		logger.Errorf("[Stream] failed to marshal event %s: %v", event.ID, err)
		return nil
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\nid: %s\n\n", event.Kind, data, event.ID)
	return err
}
