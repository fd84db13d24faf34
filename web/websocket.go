package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"gamefeed-service/logger"
	"gamefeed-service/models"
	"gamefeed-service/services"
)

// handleWebSocket serves the bidirectional variant of the stream. The
// dispatch loop is identical to SSE; only the framing differs. Inbound
// client messages are drained and ignored except for close.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn := ParseConnContext(r)
	if !s.limiter.Allow(conn.RemoteKey) {
		http.Error(w, services.ErrRateLimitExceeded.Error(), http.StatusTooManyRequests)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Errorf("[WS] upgrade error: %v", err)
		return
	}
	defer ws.Close()

	logger.Printf("[WS] client %s connected (mode=%s tier=%s)", conn.RemoteKey, conn.Mode, conn.Tier)

	// The read pump only detects disconnects and cancels the dispatch
	// loop when the socket dies.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Errorf("[WS] read error: %v", err)
				}
				return
			}
		}
	}()

	// Welcome frame mirrors the SSE headers' implicit handshake. It is
	// a status envelope, so clients decode one shape from the first
	// frame on.
	if data, err := json.Marshal(wsWelcome(conn, conn.Demo || s.config.DemoMode())); err == nil {
		ws.WriteMessage(websocket.TextMessage, data)
	}

	s.dispatcher.Run(ctx, conn, func(event models.Event) error {
		return ws.WriteJSON(wsFrame(event))
	})

	logger.Printf("[WS] client %s disconnected", conn.RemoteKey)
}

// wsWelcome builds the handshake frame announcing the negotiated
// connection parameters, in the kind/data envelope.
func wsWelcome(conn *ConnContext, demo bool) map[string]interface{} {
	return map[string]interface{}{
		"kind": "status",
		"data": map[string]interface{}{
			"message": fmt.Sprintf("connected (mode=%s tier=%s demo=%t)", conn.Mode, conn.Tier, demo),
			"mode":    conn.Mode,
			"tier":    conn.Tier,
			"demo":    demo,
		},
	}
}

// wsFrame wraps an event in the same kind/data envelope the SSE path
// produces, so clients decode one shape regardless of transport.
func wsFrame(event models.Event) map[string]interface{} {
	return map[string]interface{}{
		"kind": event.Kind,
		"id":   event.ID,
		"data": event,
	}
}
