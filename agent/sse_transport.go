package agent

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// ErrSendUnsupported reports a send on a unidirectional transport.
var ErrSendUnsupported = errors.New("transport is receive-only")

// ErrNotConnected reports a send before Open or after Close.
var ErrNotConnected = errors.New("not connected")

// SSETransport consumes a server-push event stream. Each wire frame is
// an event-type line, a data line and an id line followed by a blank
// line; frames are reassembled into the agent's envelope shape so both
// transports deliver identical messages.
type SSETransport struct {
	url    string
	tier   string
	client *http.Client

	mu     sync.Mutex
	resp   *http.Response
	closed bool
}

// NewSSETransport points at a stream endpoint, e.g.
// http://host:8080/api/stream?mode=commander. No client timeout: the
// connection is long-lived by design.
func NewSSETransport(url, tier string) *SSETransport {
	return &SSETransport{
		url:    url,
		tier:   tier,
		client: &http.Client{},
	}
}

func (t *SSETransport) Open(onMessage func([]byte), onClose func(error)) error {
	req, err := http.NewRequest(http.MethodGet, t.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	if t.tier != "" {
		req.Header.Set("X-Feed-Tier", t.tier)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to open stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return fmt.Errorf("stream returned status %d", resp.StatusCode)
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		resp.Body.Close()
		return errors.New("transport closed")
	}
	t.resp = resp
	t.mu.Unlock()

	go t.readLoop(resp, onMessage, onClose)
	return nil
}

// readLoop parses frames until the stream dies.
func (t *SSETransport) readLoop(resp *http.Response, onMessage func([]byte), onClose func(error)) {
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var eventType, data, id string
	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			if data != "" {
				onMessage(envelope(eventType, data, id))
			}
			eventType, data, id = "", "", ""
			continue
		}

		switch {
		case strings.HasPrefix(line, "event: "):
			eventType = line[len("event: "):]
		case strings.HasPrefix(line, "data: "):
			data = line[len("data: "):]
		case strings.HasPrefix(line, "id: "):
			id = line[len("id: "):]
		}
	}

	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()

	if closed {
		onClose(nil)
		return
	}
	err := scanner.Err()
	if err == nil {
		err = errors.New("stream ended")
	}
	onClose(err)
}

// envelope rebuilds the envelope both transports deliver: the frame's
// event-type line becomes the kind, the data line the body.
func envelope(eventType, data, id string) []byte {
	wrapped := struct {
		Kind string          `json:"kind"`
		ID   string          `json:"id,omitempty"`
		Data json.RawMessage `json:"data"`
	}{
		Kind: eventType,
		ID:   id,
		Data: json.RawMessage(data),
	}
	out, err := json.Marshal(wrapped)
	if err != nil {
		// data was not valid JSON; pass it through as a string body
		wrapped.Data, _ = json.Marshal(data)
		out, _ = json.Marshal(wrapped)
	}
	return out
}

func (t *SSETransport) Send([]byte) error {
	return ErrSendUnsupported
}

func (t *SSETransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if t.resp != nil {
		t.resp.Body.Close()
	}
	return nil
}
