package agent

import (
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// WSTransport is the bidirectional socket transport.
type WSTransport struct {
	url  string
	tier string

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// NewWSTransport points at a websocket endpoint, e.g.
// ws://host:8080/ws?mode=commander.
func NewWSTransport(url, tier string) *WSTransport {
	return &WSTransport{
		url:  url,
		tier: tier,
	}
}

func (t *WSTransport) Open(onMessage func([]byte), onClose func(error)) error {
	header := http.Header{}
	if t.tier != "" {
		header.Set("X-Feed-Tier", t.tier)
	}

	conn, _, err := websocket.DefaultDialer.Dial(t.url, header)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		conn.Close()
		return errors.New("transport closed")
	}
	t.conn = conn
	t.mu.Unlock()

	go t.readLoop(conn, onMessage, onClose)
	return nil
}

func (t *WSTransport) readLoop(conn *websocket.Conn, onMessage func([]byte), onClose func(error)) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			closed := t.closed
			t.mu.Unlock()
			if closed || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				onClose(nil)
			} else {
				onClose(err)
			}
			return
		}
		onMessage(message)
	}
}

func (t *WSTransport) Send(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil || t.closed {
		return ErrNotConnected
	}
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *WSTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if t.conn != nil {
		t.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		return t.conn.Close()
	}
	return nil
}
